package trigger

import (
	"strings"
	"time"

	"github.com/jirwin/quirc/pkg/irc"
)

// PreTrigger is a line from the server, parsed but not yet matched against any rule.
type PreTrigger struct {
	Line         string
	Tags         map[string]string
	Hostmask     string
	Nick         string
	User         string
	Host         string
	Event        string
	Args         []string
	Text         string
	Plain        string
	Sender       string
	IsPrivmsg    bool
	StatusPrefix string
	CTCP         string
	Time         time.Time
	Account      string
	URLs         []string
	// IsEcho is set when the line was sent by the bot itself.
	IsEcho       bool
}

type options struct {
	caseMapping    irc.CaseMapping
	statusPrefixes string
	chanTypes      string
	urlSchemes     []string
	now            func() time.Time
}

type Option func(*options)

func WithCaseMapping(c irc.CaseMapping) Option {
	return func(o *options) {
		o.caseMapping = c
	}
}

func WithStatusPrefixes(prefixes string) Option {
	return func(o *options) {
		o.statusPrefixes = prefixes
	}
}

func WithChanTypes(chanTypes string) Option {
	return func(o *options) {
		o.chanTypes = chanTypes
	}
}

func WithURLSchemes(schemes []string) Option {
	return func(o *options) {
		o.urlSchemes = schemes
	}
}

// WithClock overrides the time used for lines without a server-time tag.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

var serverTimeLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseServerTime(v string) (time.Time, bool) {
	for _, layout := range serverTimeLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// NewPreTrigger parses line as seen by a bot using ownNick.
func NewPreTrigger(ownNick, line string, opts ...Option) (*PreTrigger, error) {
	o := &options{
		caseMapping:    irc.RFC1459,
		statusPrefixes: "@+",
		chanTypes:      irc.DefaultChanTypes,
		urlSchemes:     irc.DefaultURLSchemes,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	msg, err := irc.ParseMessage(line)
	if err != nil {
		return nil, err
	}

	p := &PreTrigger{
		Line:     strings.TrimRight(line, "\r\n"),
		Tags:     msg.Tags,
		Hostmask: msg.Source,
		Nick:     msg.Nick,
		User:     msg.User,
		Host:     msg.Host,
		Event:    msg.Command,
		Args:     msg.Params,
		Text:     msg.Trailing(),
		Account:  msg.Tags["account"],
		IsEcho:   msg.Nick != "" && o.caseMapping.Equal(msg.Nick, ownNick),
	}

	if v, ok := msg.Tags["time"]; ok {
		if t, ok := parseServerTime(v); ok {
			p.Time = t
		}
	}
	if p.Time.IsZero() {
		p.Time = o.now().UTC()
	}

	if p.Event == "PRIVMSG" || p.Event == "NOTICE" {
		if cmd, body, ok := irc.CTCP(p.Text); ok {
			p.CTCP = cmd
			p.Text = body
		}
	}

	if len(p.Args) > 0 {
		target := p.Args[0]
		if len(target) > 1 && strings.IndexByte(o.statusPrefixes, target[0]) >= 0 && irc.IsChannel(target[1:], o.chanTypes) {
			p.StatusPrefix = target[:1]
			target = target[1:]
		}

		if irc.IsChannel(target, o.chanTypes) {
			p.Sender = target
		} else {
			p.Sender = p.Nick
			p.IsPrivmsg = true
		}
	}

	p.Plain = irc.StripFormatting(p.Text)
	p.URLs = irc.ExtractURLs(p.Plain, o.urlSchemes)

	return p, nil
}

// IsChannelMessage reports whether the line was sent to a channel.
func (p *PreTrigger) IsChannelMessage() bool {
	return p.Sender != "" && !p.IsPrivmsg
}
