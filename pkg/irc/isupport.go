package irc

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// ChanModes holds the four CHANMODES categories.
type ChanModes struct {
	A string // list modes, always take a parameter
	B string // always take a parameter
	C string // take a parameter only when set
	D string // never take a parameter
}

// Prefix maps prefix modes to their nick prefixes, in the order advertised.
type Prefix struct {
	Modes    string
	Prefixes string
}

// ExtBan is the extended ban prefix and the ban types it supports.
type ExtBan struct {
	Prefix string
	Types  string
}

var (
	DefaultChanModes = ChanModes{A: "beI", B: "k", C: "l", D: "BCMNORScimnpstz"}
	DefaultPrefix    = Prefix{Modes: "qaohv", Prefixes: "~&@%+"}
)

// ISupport stores the parameters advertised by RPL_ISUPPORT (005). It is safe for concurrent use.
type ISupport struct {
	mtx    sync.RWMutex
	params map[string]string
	flags  map[string]bool
}

func NewISupport() *ISupport {
	return &ISupport{
		params: make(map[string]string),
		flags:  make(map[string]bool),
	}
}

// IsBounce reports whether the 005 arguments are an RPL_BOUNCE reply instead of a token list.
// args are the message params after the target nick, trailing text excluded.
func IsBounce(args []string) bool {
	if len(args) < 2 {
		return false
	}
	if strings.ContainsAny(args[0], "=") {
		return false
	}
	_, err := strconv.Atoi(args[1])
	return err == nil && strings.Contains(args[0], ".")
}

// Apply adds, updates, or removes parameters from a list of ISUPPORT tokens.
func (s *ISupport) Apply(tokens []string) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	for _, token := range tokens {
		if token == "" {
			continue
		}

		if strings.HasPrefix(token, "-") {
			name := strings.ToUpper(token[1:])
			if !s.has(name) {
				return fmt.Errorf("Server is trying to negate unadvertised parameter: %s", name)
			}
			delete(s.params, name)
			delete(s.flags, name)
			continue
		}

		name, value, hasValue := strings.Cut(token, "=")
		name = strings.ToUpper(name)
		if hasValue {
			s.params[name] = value
			delete(s.flags, name)
		} else {
			s.flags[name] = true
			delete(s.params, name)
		}
	}

	return nil
}

func (s *ISupport) has(name string) bool {
	if _, ok := s.params[name]; ok {
		return true
	}
	return s.flags[name]
}

// Has reports whether the parameter was advertised.
func (s *ISupport) Has(name string) bool {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return s.has(strings.ToUpper(name))
}

// Len returns the number of advertised parameters.
func (s *ISupport) Len() int {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	return len(s.params) + len(s.flags)
}

// Raw returns the value of a parameter as sent by the server.
func (s *ISupport) Raw(name string) (string, bool) {
	s.mtx.RLock()
	defer s.mtx.RUnlock()

	name = strings.ToUpper(name)
	v, ok := s.params[name]
	if !ok && s.flags[name] {
		return "", true
	}
	return v, ok
}

// Int returns an integer parameter. Missing or empty values report false.
func (s *ISupport) Int(name string) (int, bool) {
	v, ok := s.Raw(name)
	if !ok || v == "" {
		return 0, false
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return i, true
}

func (s *ISupport) withDefault(name, def string) string {
	v, ok := s.Raw(name)
	if !ok || v == "" {
		return def
	}
	return v
}

// Excepts returns the ban exception mode, "e" when advertised without a value.
func (s *ISupport) Excepts() (string, bool) {
	if !s.Has("EXCEPTS") {
		return "", false
	}
	return s.withDefault("EXCEPTS", "e"), true
}

// Invex returns the invite exception mode, "I" when advertised without a value.
func (s *ISupport) Invex() (string, bool) {
	if !s.Has("INVEX") {
		return "", false
	}
	return s.withDefault("INVEX", "I"), true
}

// ChanModes returns the CHANMODES categories, or the defaults when not advertised.
func (s *ISupport) ChanModes() ChanModes {
	v, ok := s.Raw("CHANMODES")
	if !ok || v == "" {
		return DefaultChanModes
	}

	parts := strings.Split(v, ",")
	for len(parts) < 4 {
		parts = append(parts, "")
	}
	return ChanModes{A: parts[0], B: parts[1], C: parts[2], D: parts[3]}
}

// Prefix returns the PREFIX parameter, or the defaults when not advertised.
func (s *ISupport) Prefix() Prefix {
	v, ok := s.Raw("PREFIX")
	if !ok || !strings.HasPrefix(v, "(") {
		return DefaultPrefix
	}

	end := strings.IndexByte(v, ')')
	if end < 0 {
		return DefaultPrefix
	}
	return Prefix{Modes: v[1:end], Prefixes: v[end+1:]}
}

// ExtBan returns the EXTBAN parameter.
func (s *ISupport) ExtBan() (ExtBan, bool) {
	v, ok := s.Raw("EXTBAN")
	if !ok {
		return ExtBan{}, false
	}
	prefix, types, _ := strings.Cut(v, ",")
	return ExtBan{Prefix: prefix, Types: types}, true
}

// limits parses NAME:limit lists. Missing limits are reported as -1.
func limits(v string) map[string]int {
	out := make(map[string]int)
	for _, item := range strings.Split(v, ",") {
		if item == "" {
			continue
		}
		name, limit, _ := strings.Cut(item, ":")
		n, err := strconv.Atoi(limit)
		if err != nil {
			n = -1
		}
		out[name] = n
	}
	return out
}

// MaxList returns the MAXLIST limits by mode letters.
func (s *ISupport) MaxList() (map[string]int, bool) {
	v, ok := s.Raw("MAXLIST")
	if !ok {
		return nil, false
	}
	return limits(v), true
}

// TargMax returns the TARGMAX limits by command. Commands without a limit map to -1.
func (s *ISupport) TargMax() (map[string]int, bool) {
	v, ok := s.Raw("TARGMAX")
	if !ok {
		return nil, false
	}
	out := make(map[string]int)
	for k, n := range limits(v) {
		out[strings.ToUpper(k)] = n
	}
	return out, true
}

// CaseMapping returns the advertised case mapping.
func (s *ISupport) CaseMapping() CaseMapping {
	return ParseCaseMapping(s.withDefault("CASEMAPPING", "rfc1459"))
}

// ChanTypes returns the channel prefixes.
func (s *ISupport) ChanTypes() string {
	return s.withDefault("CHANTYPES", DefaultChanTypes)
}

// StatusMsg returns the prefixes allowed in front of a channel name as a message target.
func (s *ISupport) StatusMsg() string {
	return s.withDefault("STATUSMSG", "@+")
}
