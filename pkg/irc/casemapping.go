package irc

import "strings"

// CaseMapping decides which nicknames and channel names are considered equal.
type CaseMapping int

const (
	RFC1459 CaseMapping = iota
	ASCII
	StrictRFC1459
)

// ParseCaseMapping returns the mapping advertised with the CASEMAPPING token. Unknown values use RFC1459.
func ParseCaseMapping(name string) CaseMapping {
	switch strings.ToLower(name) {
	case "ascii":
		return ASCII
	case "strict-rfc1459":
		return StrictRFC1459
	default:
		return RFC1459
	}
}

func (c CaseMapping) String() string {
	switch c {
	case ASCII:
		return "ascii"
	case StrictRFC1459:
		return "strict-rfc1459"
	default:
		return "rfc1459"
	}
}

// Lower folds name according to the mapping.
func (c CaseMapping) Lower(name string) string {
	b := []byte(name)
	for i, ch := range b {
		switch {
		case ch >= 'A' && ch <= 'Z':
			b[i] = ch + 32
		case c == ASCII:
		case ch == '[':
			b[i] = '{'
		case ch == ']':
			b[i] = '}'
		case ch == '\\':
			b[i] = '|'
		case ch == '~' && c == RFC1459:
			b[i] = '^'
		}
	}
	return string(b)
}

// Equal reports whether two names are the same under the mapping.
func (c CaseMapping) Equal(a, b string) bool {
	return c.Lower(a) == c.Lower(b)
}

const DefaultChanTypes = "#&+!"

// IsChannel reports whether name starts with one of the channel type prefixes.
func IsChannel(name, chantypes string) bool {
	if name == "" {
		return false
	}
	if chantypes == "" {
		chantypes = DefaultChanTypes
	}
	return strings.IndexByte(chantypes, name[0]) >= 0
}
