package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
)

const DefaultExtension = ".cfg"

// EnumerateConfigs lists the file names in dir with the extension.
func EnumerateConfigs(dir, ext string) ([]string, error) {
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	out := []string{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ext {
			continue
		}
		out = append(out, e.Name())
	}
	sort.Strings(out)
	return out, nil
}

// FindConfig resolves a config name: an existing path is used as is, else the name is looked up
// in dir, with the default extension added when it has none.
func FindConfig(dir, name string) string {
	if name == "" {
		name = "default"
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}

	candidate := filepath.Join(dir, name)
	if filepath.Ext(name) == "" {
		if _, err := os.Stat(candidate + DefaultExtension); err == nil || !fileExists(candidate) {
			return candidate + DefaultExtension
		}
	}
	return candidate
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}

// InitValues are written by Init into a new settings file.
type InitValues struct {
	Nick     string
	Host     string
	Port     int
	UseSSL   bool
	Owner    string
	Channels []string
}

var initTemplate = template.Must(template.New("config").Parse(`[core]
nick = {{ .Nick }}
host = {{ .Host }}
{{- if .Port }}
port = {{ .Port }}
{{- end }}
use_ssl = {{ .UseSSL }}
owner = {{ .Owner }}
channels = {{ range $i, $c := .Channels }}{{ if $i }},{{ end }}{{ $c }}{{ end }}
prefix = \.
`))

// Init creates a new settings file at path. It fails when the file already exists.
func Init(path string, values InitValues) error {
	if filepath.Ext(path) != DefaultExtension {
		return fmt.Errorf("%w: settings files must use the %s extension", ErrInvalidValue, DefaultExtension)
	}
	if fileExists(path) {
		return fmt.Errorf("settings file %s already exists: %w", path, os.ErrExist)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	return initTemplate.Execute(f, values)
}
