package irc

import (
	"errors"
	"sort"
	"strings"

	"github.com/fluffle/goirc/client"
)

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrMissingCommand = errors.New("message has no command")
)

// MaxLineLength is the maximum size of a line sent to the server, CRLF included.
const MaxLineLength = 512

// Message is a single line of the IRC protocol.
type Message struct {
	Tags    map[string]string
	Source  string
	Nick    string
	User    string
	Host    string
	Command string
	Params  []string
}

// ParseMessage parses a raw line as received from the server.
func ParseMessage(line string) (m *Message, err error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil, ErrEmptyMessage
	}

	// ParseLine indexes past the arguments it expects on short lines.
	defer func() {
		if recover() != nil {
			m, err = nil, ErrMissingCommand
		}
	}()

	l := client.ParseLine(line)
	if l == nil || l.Cmd == "" {
		return nil, ErrMissingCommand
	}

	m = &Message{
		Tags:    make(map[string]string, len(l.Tags)),
		Source:  l.Src,
		Command: l.Cmd,
		Params:  append([]string(nil), l.Args...),
	}
	for k, v := range l.Tags {
		m.Tags[k] = strings.ReplaceAll(v, `\\`, `\`)
	}
	if l.Nick != "" {
		m.Nick, m.User, m.Host = l.Nick, l.Ident, l.Host
	} else if l.Src != "" {
		m.Nick, m.User, m.Host = SplitHostmask(l.Src)
	}
	restoreCTCP(m, line)

	return m, nil
}

// restoreCTCP undoes the CTCP unwrapping of ParseLine so PRIVMSG and NOTICE keep their raw text.
func restoreCTCP(m *Message, line string) {
	switch m.Command {
	case client.ACTION:
		m.Command = "PRIVMSG"
	case client.CTCP:
		m.Command = "PRIVMSG"
		m.Params = m.Params[1:]
	case client.CTCPREPLY:
		m.Command = "NOTICE"
		m.Params = m.Params[1:]
	default:
		return
	}

	if text := m.Param(1); strings.HasPrefix(text, ctcpDelim) && strings.HasSuffix(text, ctcpDelim) {
		return
	}
	m.Params[1] = rawTrailing(line)
}

func rawTrailing(line string) string {
	if strings.HasPrefix(line, "@") {
		_, line, _ = strings.Cut(line, " ")
	}
	if strings.HasPrefix(line, ":") {
		_, line, _ = strings.Cut(line, " ")
	}
	_, trailing, _ := strings.Cut(line, " :")
	return trailing
}

// SplitHostmask splits nick!user@host. A source without ! or @ is returned as the nick.
func SplitHostmask(source string) (nick, user, host string) {
	nick = source
	if idx := strings.IndexByte(nick, '@'); idx >= 0 {
		host = nick[idx+1:]
		nick = nick[:idx]
	}
	if idx := strings.IndexByte(nick, '!'); idx >= 0 {
		user = nick[idx+1:]
		nick = nick[:idx]
	}
	return nick, user, host
}

// Trailing returns the last parameter of the message, or an empty string.
func (m *Message) Trailing() string {
	if len(m.Params) == 0 {
		return ""
	}
	return m.Params[len(m.Params)-1]
}

// Param returns the i-th parameter, or an empty string when it is missing.
func (m *Message) Param(i int) string {
	if i < 0 || i >= len(m.Params) {
		return ""
	}
	return m.Params[i]
}

// String serializes the message as a raw line without the CRLF terminator.
func (m *Message) String() string {
	var sb strings.Builder

	if len(m.Tags) > 0 {
		sb.WriteByte('@')
		sb.WriteString(FormatTags(m.Tags))
		sb.WriteByte(' ')
	}

	if m.Source != "" {
		sb.WriteByte(':')
		sb.WriteString(m.Source)
		sb.WriteByte(' ')
	}

	sb.WriteString(m.Command)

	for i, p := range m.Params {
		sb.WriteByte(' ')
		if i == len(m.Params)-1 && (p == "" || strings.ContainsRune(p, ' ') || strings.HasPrefix(p, ":")) {
			sb.WriteByte(':')
		}
		sb.WriteString(p)
	}

	return sb.String()
}

// BuildLine joins command arguments into a raw line; the last argument is always sent as trailing
// when there is more than one.
func BuildLine(args ...string) string {
	clean := make([]string, 0, len(args))
	for _, a := range args {
		clean = append(clean, Safe(a))
	}

	if len(clean) > 1 {
		last := clean[len(clean)-1]
		return strings.Join(clean[:len(clean)-1], " ") + " :" + last
	}

	return strings.Join(clean, " ")
}

// Safe strips characters that would break the line protocol.
func Safe(text string) string {
	return strings.NewReplacer("\r", "", "\n", "", "\x00", "").Replace(text)
}

var tagEscaper = strings.NewReplacer(`\`, `\\`, ";", `\:`, " ", `\s`, "\r", `\r`, "\n", `\n`)

// FormatTags serializes tags sorted by key.
func FormatTags(tags map[string]string) string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := tags[k]
		if v == "" {
			parts = append(parts, k)
			continue
		}
		parts = append(parts, k+"="+tagEscaper.Replace(v))
	}
	return strings.Join(parts, ";")
}
