package irc

import (
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"mvdan.cc/xurls/v2"
)

const ctcpDelim = "\x01"

// CTCP unwraps a CTCP message. ok is false when text is not CTCP.
func CTCP(text string) (command, body string, ok bool) {
	if len(text) < 2 || !strings.HasPrefix(text, ctcpDelim) {
		return "", "", false
	}

	inner := strings.TrimPrefix(text, ctcpDelim)
	inner = strings.TrimSuffix(inner, ctcpDelim)
	if inner == "" {
		return "", "", false
	}

	command, body, _ = strings.Cut(inner, " ")
	return strings.ToUpper(command), body, true
}

// FormatCTCP wraps body into a CTCP message.
func FormatCTCP(command, body string) string {
	if body == "" {
		return ctcpDelim + command + ctcpDelim
	}
	return ctcpDelim + command + " " + body + ctcpDelim
}

const (
	ControlBold          = "\x02"
	ControlColor         = "\x03"
	ControlHexColor      = "\x04"
	ControlReset         = "\x0f"
	ControlMonospace     = "\x11"
	ControlReverse       = "\x16"
	ControlItalic        = "\x1d"
	ControlStrikethrough = "\x1e"
	ControlUnderline     = "\x1f"
)

func Bold(text string) string      { return ControlBold + text + ControlBold }
func Italic(text string) string    { return ControlItalic + text + ControlItalic }
func Underline(text string) string { return ControlUnderline + text + ControlUnderline }

// Color wraps text in mIRC color codes. A negative bg leaves the background untouched.
func Color(text string, fg, bg int) string {
	code := ControlColor + twoDigits(fg)
	if bg >= 0 {
		code += "," + twoDigits(bg)
	}
	return code + text + ControlColor
}

func twoDigits(n int) string {
	if n < 0 {
		n = 0
	}
	n = n % 100
	return string([]byte{byte('0' + n/10), byte('0' + n%10)})
}

var formattingRegex = regexp.MustCompile(
	"\x03(?:\\d{1,2}(?:,\\d{1,2})?)?|\x04(?:[0-9a-fA-F]{6}(?:,[0-9a-fA-F]{6})?)?|[\x02\x0f\x11\x16\x1d\x1e\x1f]",
)

// StripFormatting removes bold, color and other formatting control codes.
func StripFormatting(text string) string {
	return formattingRegex.ReplaceAllString(text, "")
}

// SplitMessage splits text into parts that each fit in maxBytes. At most maxMessages parts are
// returned; when text does not fit, the last part is cut to leave room for truncation. trailing is
// appended to the last part.
func SplitMessage(text string, maxBytes, maxMessages int, truncation, trailing string) []string {
	if maxMessages < 1 {
		maxMessages = 1
	}
	if maxBytes <= len(trailing) {
		maxBytes = len(trailing) + 1
	}

	parts := []string{}
	for len(parts) < maxMessages {
		last := len(parts) == maxMessages-1
		limit := maxBytes
		if last {
			limit = maxBytes - len(trailing)
		}

		if len(text) <= limit {
			parts = append(parts, text+trailing)
			return parts
		}

		if last {
			cutAt := limit - len(truncation)
			if cutAt < 0 {
				cutAt = 0
			}
			head, _ := splitAt(text, cutAt, false)
			parts = append(parts, head+truncation+trailing)
			return parts
		}

		// Leading whitespace would leave an empty first part.
		text = strings.TrimLeft(text, " \t")
		if len(text) <= limit {
			continue
		}
		head, rest := splitAt(text, limit, true)
		parts = append(parts, head)
		text = rest
	}

	return parts
}

// splitAt cuts text to at most n bytes without breaking a rune. When onSpace is set, the cut is made
// on the last whitespace if there is one.
func splitAt(text string, n int, onSpace bool) (string, string) {
	if n >= len(text) {
		return text, ""
	}

	cut := n
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}

	if onSpace {
		if text[cut] == ' ' || text[cut] == '\t' {
			return strings.TrimRight(text[:cut], " \t"), strings.TrimLeft(text[cut:], " \t")
		}
		if idx := strings.LastIndexAny(text[:cut], " \t"); idx > 0 {
			return strings.TrimRight(text[:idx], " \t"), strings.TrimLeft(text[idx:], " \t")
		}
	}

	if cut == 0 {
		_, size := utf8.DecodeRuneInString(text)
		cut = size
		if onSpace {
			return text[:cut], text[cut:]
		}
		return "", text
	}

	return text[:cut], text[cut:]
}

var urlRegexCache sync.Map

// urlRegex matches URLs whose scheme is one of schemes.
func urlRegex(schemes []string) (*regexp.Regexp, error) {
	key := strings.Join(schemes, "|")
	if re, ok := urlRegexCache.Load(key); ok {
		return re.(*regexp.Regexp), nil
	}

	quoted := make([]string, 0, len(schemes))
	for _, s := range schemes {
		quoted = append(quoted, regexp.QuoteMeta(s))
	}
	re, err := xurls.StrictMatchingScheme(`\b(?:` + strings.Join(quoted, "|") + `)://`)
	if err != nil {
		return nil, err
	}
	urlRegexCache.Store(key, re)
	return re, nil
}

// DefaultURLSchemes are the schemes extracted from messages when none are configured.
var DefaultURLSchemes = []string{"http", "https"}

// ExtractURLs returns the distinct URLs found in text, in order of appearance.
func ExtractURLs(text string, schemes []string) []string {
	if len(schemes) == 0 {
		schemes = DefaultURLSchemes
	}

	urls := []string{}
	re, err := urlRegex(schemes)
	if err != nil {
		return urls
	}

	seen := map[string]bool{}
	for _, u := range re.FindAllString(text, -1) {
		if seen[u] {
			continue
		}
		seen[u] = true
		urls = append(urls, u)
	}
	return urls
}
