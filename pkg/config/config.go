package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"gopkg.in/ini.v1"
)

const (
	CoreSectionName    = "core"
	WebhookSectionName = "webhook"

	// EnvPrefix starts the environment variables overriding settings: QUIRC_<SECTION>_<OPTION>.
	EnvPrefix = "QUIRC_"
)

var (
	ErrNoSection    = errors.New("section does not exist")
	ErrNoOption     = errors.New("option does not exist")
	ErrInvalidValue = errors.New("invalid value")
)

var loadOptions = ini.LoadOptions{
	AllowPythonMultilineValues: true,
	IgnoreInlineComment:        true,
	InsensitiveKeys:            true,
}

// Settings is the content of an INI settings file plus its environment overrides.
type Settings struct {
	mtx       sync.RWMutex
	path      string
	file      *ini.File
	overrides map[string]map[string]string
	environ   func() []string

	core    CoreSection
	webhook WebhookSection
}

type Option func(*Settings)

// WithEnviron replaces os.Environ as the source of overrides.
func WithEnviron(environ func() []string) Option {
	return func(s *Settings) { s.environ = environ }
}

// Load reads the settings file at path.
func Load(path string, opts ...Option) (*Settings, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	f, err := ini.LoadSources(loadOptions, abs)
	if err != nil {
		return nil, fmt.Errorf("unable to read settings %s: %w", abs, err)
	}

	return newSettings(abs, f, opts)
}

// Parse reads settings from memory. The result has no path and cannot be saved.
func Parse(data string, opts ...Option) (*Settings, error) {
	f, err := ini.LoadSources(loadOptions, []byte(data))
	if err != nil {
		return nil, err
	}

	return newSettings("", f, opts)
}

func newSettings(path string, f *ini.File, opts []Option) (*Settings, error) {
	s := &Settings{
		path:    path,
		file:    f,
		environ: os.Environ,
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.refresh(); err != nil {
		return nil, err
	}
	return s, nil
}

// refresh recomputes the overrides and the typed sections. The caller holds the write lock or
// owns s exclusively.
func (s *Settings) refresh() error {
	s.overrides = envOverrides(s.file, s.environ())

	core, err := parseCore(s.rawGetter(CoreSectionName), s.path)
	if err != nil {
		return err
	}
	s.core = core
	s.webhook = parseWebhook(s.rawGetter(WebhookSectionName))
	return nil
}

var envUnsafe = regexp.MustCompile(`[^A-Z0-9]+`)

func envName(section string) string {
	return envUnsafe.ReplaceAllString(strings.ToUpper(section), "_")
}

// envOverrides maps QUIRC_<SECTION>_<OPTION> variables to the known sections, longest section
// name first so a section like "my_plugin" wins over "my".
func envOverrides(f *ini.File, environ []string) map[string]map[string]string {
	sections := []string{CoreSectionName, WebhookSectionName}
	for _, name := range f.SectionStrings() {
		if name != ini.DefaultSection {
			sections = append(sections, name)
		}
	}
	sort.SliceStable(sections, func(i, j int) bool {
		return len(envName(sections[i])) > len(envName(sections[j]))
	})

	out := make(map[string]map[string]string)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		rest := strings.TrimPrefix(key, EnvPrefix)

		for _, section := range sections {
			prefix := envName(section) + "_"
			if !strings.HasPrefix(rest, prefix) || len(rest) == len(prefix) {
				continue
			}
			if _, ok := out[section]; !ok {
				out[section] = make(map[string]string)
			}
			out[section][strings.ToLower(strings.TrimPrefix(rest, prefix))] = value
			break
		}
	}
	return out
}

func (s *Settings) rawGetter(section string) func(option string) (string, bool) {
	return func(option string) (string, bool) {
		return s.get(section, option)
	}
}

func (s *Settings) get(section, option string) (string, bool) {
	if v, ok := s.overrides[section][option]; ok {
		return v, true
	}
	sec, err := s.file.GetSection(section)
	if err != nil || !sec.HasKey(option) {
		return "", false
	}
	return sec.Key(option).String(), true
}

// Path is the absolute path of the settings file, empty for in-memory settings.
func (s *Settings) Path() string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.path
}

// Name is the file name of the settings without extension.
func (s *Settings) Name() string {
	p := s.Path()
	if p == "" {
		return "default"
	}
	return strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
}

func (s *Settings) Core() CoreSection {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.core
}

func (s *Settings) Webhook() WebhookSection {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.webhook
}

// HasSection reports whether the file has the section.
func (s *Settings) HasSection(section string) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.file.HasSection(section)
}

// HasOption reports whether the file or the environment sets the option.
func (s *Settings) HasOption(section, option string) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	_, ok := s.get(section, option)
	return ok
}

// Get returns a raw value.
func (s *Settings) Get(section, option string) (string, error) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if !s.file.HasSection(section) && s.overrides[section] == nil {
		return "", fmt.Errorf("%w: %s", ErrNoSection, section)
	}
	v, ok := s.get(section, option)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s", ErrNoOption, section, option)
	}
	return v, nil
}

// GetDefault returns a raw value or def when the option is not set.
func (s *Settings) GetDefault(section, option, def string) string {
	v, err := s.Get(section, option)
	if err != nil {
		return def
	}
	return v
}

// Section returns every option of a section, environment overrides included.
func (s *Settings) Section(section string) map[string]string {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	out := make(map[string]string)
	if sec, err := s.file.GetSection(section); err == nil {
		for _, k := range sec.Keys() {
			out[k.Name()] = k.String()
		}
	}
	for k, v := range s.overrides[section] {
		out[k] = v
	}
	return out
}

// Set stores a value, creating the section when needed. Core and webhook values are validated.
func (s *Settings) Set(section, option, value string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	sec := s.file.Section(section)
	previous, had := "", sec.HasKey(option)
	if had {
		previous = sec.Key(option).String()
	}
	sec.Key(option).SetValue(value)

	if err := s.refresh(); err != nil {
		if had {
			sec.Key(option).SetValue(previous)
		} else {
			sec.DeleteKey(option)
		}
		_ = s.refresh()
		return err
	}
	return nil
}

// Unset removes an option and the section when it becomes empty. It reports whether the option
// was set.
func (s *Settings) Unset(section, option string) (bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	sec, err := s.file.GetSection(section)
	if err != nil {
		return false, fmt.Errorf("%w: %s", ErrNoSection, section)
	}

	removed := sec.HasKey(option)
	sec.DeleteKey(option)
	if len(sec.Keys()) == 0 {
		s.file.DeleteSection(section)
	}

	return removed, s.refresh()
}

// Save writes the file back to its path.
func (s *Settings) Save() error {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	if s.path == "" {
		return errors.New("settings have no file to save to")
	}
	return s.file.SaveTo(s.path)
}

// Reload reads the file again.
func (s *Settings) Reload() error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.path == "" {
		return s.refresh()
	}

	f, err := ini.LoadSources(loadOptions, s.path)
	if err != nil {
		return err
	}

	previous := s.file
	s.file = f
	if err := s.refresh(); err != nil {
		s.file = previous
		_ = s.refresh()
		return err
	}
	return nil
}

// Channel returns the settings of a channel section. Channel names are matched case-insensitively.
func (s *Settings) Channel(name string) ChannelSection {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	for _, sec := range s.file.Sections() {
		if strings.EqualFold(sec.Name(), name) {
			return parseChannel(sec.Name(), func(option string) (string, bool) {
				return s.get(sec.Name(), option)
			})
		}
	}
	return ChannelSection{Name: name}
}

// ParseList splits a list value on new lines when it spans several lines, else on commas.
func ParseList(value string) []string {
	sep := ","
	if strings.Contains(strings.TrimSpace(value), "\n") {
		sep = "\n"
	}

	out := []string{}
	for _, item := range strings.Split(value, sep) {
		item = strings.TrimSpace(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}
