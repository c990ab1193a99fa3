package rules

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/trigger"
)

var (
	// ErrNoLimit is returned by a handler that must not count against its rate limits.
	ErrNoLimit   = errors.New("no rate limit")
	ErrNoHandler = errors.New("rule has no handler")
)

type Priority int

const (
	PriorityHigh Priority = iota
	PriorityMedium
	PriorityLow
)

func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityLow:
		return "low"
	default:
		return "medium"
	}
}

// ParsePriority accepts "high", "medium" and "low".
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "high":
		return PriorityHigh, nil
	case "medium", "":
		return PriorityMedium, nil
	case "low":
		return PriorityLow, nil
	}
	return PriorityMedium, fmt.Errorf("unknown priority: %s", s)
}

// Kind tells how a rule matches lines.
type Kind int

const (
	KindRule Kind = iota
	KindFind
	KindSearch
	KindCommand
	KindNickCommand
	KindActionCommand
	KindURLCallback
)

func (k Kind) String() string {
	switch k {
	case KindFind:
		return "FindRule"
	case KindSearch:
		return "SearchRule"
	case KindCommand:
		return "Command"
	case KindNickCommand:
		return "NickCommand"
	case KindActionCommand:
		return "ActionCommand"
	case KindURLCallback:
		return "URLCallback"
	default:
		return "Rule"
	}
}

// Handler runs when a rule matches.
type Handler func(ctx context.Context, t *trigger.Trigger) error

// Example documents how a rule is used.
type Example struct {
	Text             string
	Results          []string
	IsHelp           bool
	IsPattern        bool
	IsPrivateMessage bool
	IsAdmin          bool
	IsOwner          bool
}

type rateLimit struct {
	user    time.Duration
	channel time.Duration
	global  time.Duration

	userMessage    string
	channelMessage string
	globalMessage  string
}

type options struct {
	plugin        string
	label         string
	priority      Priority
	events        []string
	intents       []*regexp.Regexp
	allowEcho     bool
	threaded      bool
	unblockable   bool
	outputPrefix  string
	doc           string
	examples      []Example
	handler       Handler
	aliases       []string
	nickAliases   []string
	helpPrefix    string
	schemes       []string
	commandPrefix string
	rate          rateLimit
	caseMapping   irc.CaseMapping
	now           func() time.Time
}

type Option func(*options)

func WithPlugin(name string) Option {
	return func(o *options) { o.plugin = name }
}

func WithLabel(label string) Option {
	return func(o *options) { o.label = label }
}

func WithPriority(p Priority) Option {
	return func(o *options) { o.priority = p }
}

// WithEvents sets the IRC commands a rule listens to. The default is PRIVMSG.
func WithEvents(events ...string) Option {
	return func(o *options) {
		o.events = o.events[:0]
		for _, e := range events {
			o.events = append(o.events, strings.ToUpper(e))
		}
	}
}

// WithIntents limits a rule to CTCP messages whose command matches one of the patterns.
func WithIntents(intents ...string) Option {
	return func(o *options) {
		for _, i := range intents {
			o.intents = append(o.intents, regexp.MustCompile("(?i)^(?:"+i+")$"))
		}
	}
}

// WithEcho lets the rule match lines sent by the bot itself.
func WithEcho() Option {
	return func(o *options) { o.allowEcho = true }
}

func WithThreaded(threaded bool) Option {
	return func(o *options) { o.threaded = threaded }
}

// WithUnblockable makes the rule ignore nick and host blocks and rate limits.
func WithUnblockable() Option {
	return func(o *options) { o.unblockable = true }
}

func WithOutputPrefix(prefix string) Option {
	return func(o *options) { o.outputPrefix = prefix }
}

func WithDoc(doc string) Option {
	return func(o *options) { o.doc = doc }
}

func WithExamples(examples ...Example) Option {
	return func(o *options) { o.examples = append(o.examples, examples...) }
}

func WithHandler(h Handler) Option {
	return func(o *options) { o.handler = h }
}

func WithAliases(aliases ...string) Option {
	return func(o *options) { o.aliases = append(o.aliases, aliases...) }
}

func WithNickAliases(aliases ...string) Option {
	return func(o *options) { o.nickAliases = append(o.nickAliases, aliases...) }
}

// WithHelpPrefix sets the prefix shown in command examples.
func WithHelpPrefix(prefix string) Option {
	return func(o *options) { o.helpPrefix = prefix }
}

// WithSchemes sets the URL schemes a URL callback looks at.
func WithSchemes(schemes ...string) Option {
	return func(o *options) { o.schemes = schemes }
}

// WithCommandPrefix makes a URL callback skip lines that start with the command prefix.
func WithCommandPrefix(prefix string) Option {
	return func(o *options) { o.commandPrefix = prefix }
}

// WithRateLimit sets the user, channel and global rate limits. Zero disables a limit.
func WithRateLimit(user, channel, global time.Duration) Option {
	return func(o *options) {
		o.rate.user = user
		o.rate.channel = channel
		o.rate.global = global
	}
}

// WithRateMessages sets the notices sent when a limit is hit. See RenderRateMessage for placeholders.
func WithRateMessages(user, channel, global string) Option {
	return func(o *options) {
		o.rate.userMessage = user
		o.rate.channelMessage = channel
		o.rate.globalMessage = global
	}
}

func WithCaseMapping(c irc.CaseMapping) Option {
	return func(o *options) { o.caseMapping = c }
}

// WithClock overrides the clock used for rate limiting.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// Rule matches lines from the server and runs a handler for every match.
type Rule struct {
	kind     Kind
	opts     options
	patterns []*regexp.Regexp
	name     string
	nick     string

	prefixRegex *regexp.Regexp

	mtx        sync.Mutex
	userTimes  map[string]time.Time
	chanTimes  map[string]time.Time
	globalTime time.Time
	executions int
}

func newRule(kind Kind, patterns []*regexp.Regexp, opts []Option) *Rule {
	o := options{
		priority:    PriorityMedium,
		events:      []string{"PRIVMSG"},
		threaded:    true,
		caseMapping: irc.RFC1459,
		helpPrefix:  ".",
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Rule{
		kind:      kind,
		opts:      o,
		patterns:  patterns,
		userTimes: make(map[string]time.Time),
		chanTimes: make(map[string]time.Time),
	}

	if o.commandPrefix != "" {
		r.prefixRegex = regexp.MustCompile("^(?:" + o.commandPrefix + ")")
	}

	return r
}

// NewRule matches patterns against the start of the text.
func NewRule(patterns []*regexp.Regexp, opts ...Option) *Rule {
	return newRule(KindRule, patterns, opts)
}

// NewFindRule yields every match of the patterns anywhere in the text.
func NewFindRule(patterns []*regexp.Regexp, opts ...Option) *Rule {
	return newRule(KindFind, patterns, opts)
}

// NewSearchRule yields the first match of each pattern anywhere in the text.
func NewSearchRule(patterns []*regexp.Regexp, opts ...Option) *Rule {
	return newRule(KindSearch, patterns, opts)
}

// commandArgs matches the rest of the line: group 2 is the whole of it, groups 3 to 6 its first words.
const commandArgs = `(?:\s+((\S+)?(?:\s+(\S+))?(?:\s+(\S+))?(?:\s+(\S+))?.*))?$`

func nameAlternation(names []string) string {
	quoted := make([]string, 0, len(names))
	for _, n := range names {
		quoted = append(quoted, regexp.QuoteMeta(n))
	}
	return strings.Join(quoted, "|")
}

// NewCommand matches "<prefix><name> args" where prefix is a regular expression.
func NewCommand(name, prefix string, opts ...Option) *Rule {
	r := newRule(KindCommand, nil, opts)
	r.name = name

	names := append([]string{name}, r.opts.aliases...)
	re := regexp.MustCompile(`(?i)^(?:` + prefix + `)(` + nameAlternation(names) + `)` + commandArgs)
	r.patterns = []*regexp.Regexp{re}
	return r
}

// NewNickCommand matches "<nick>: <name> args" for the nick and its aliases.
func NewNickCommand(nick, name string, opts ...Option) *Rule {
	r := newRule(KindNickCommand, nil, opts)
	r.name = name
	r.nick = nick

	nicks := append([]string{nick}, r.opts.nickAliases...)
	names := append([]string{name}, r.opts.aliases...)
	re := regexp.MustCompile(`(?i)^(?:` + nameAlternation(nicks) + `)[:,]?\s+(` + nameAlternation(names) + `)` + commandArgs)
	r.patterns = []*regexp.Regexp{re}
	return r
}

// NewActionCommand matches "/me <name> args".
func NewActionCommand(name string, opts ...Option) *Rule {
	r := newRule(KindActionCommand, nil, opts)
	r.name = name

	names := append([]string{name}, r.opts.aliases...)
	re := regexp.MustCompile(`(?i)^(` + nameAlternation(names) + `)` + commandArgs)
	r.patterns = []*regexp.Regexp{re}
	return r
}

// NewURLCallback searches every URL of a message with the patterns.
func NewURLCallback(patterns []*regexp.Regexp, opts ...Option) *Rule {
	return newRule(KindURLCallback, patterns, opts)
}

func (r *Rule) Kind() Kind { return r.kind }

func (r *Rule) Plugin() string { return r.opts.plugin }

// Name is the command name. It is empty for pattern rules.
func (r *Rule) Name() string { return r.name }

func (r *Rule) Aliases() []string { return r.opts.aliases }

// inlineFlags matches the flag group a pattern was compiled with, like (?i).
var inlineFlags = regexp.MustCompile(`^\(\?[a-zA-Z]+\)`)

// Label names the rule in help and metrics: the explicit label, the command name or the first
// pattern without its flags.
func (r *Rule) Label() string {
	if r.opts.label != "" {
		return r.opts.label
	}
	if r.name != "" {
		return r.name
	}
	if len(r.patterns) > 0 {
		return inlineFlags.ReplaceAllString(r.patterns[0].String(), "")
	}
	return "(anonymous)"
}

func (r *Rule) Priority() Priority { return r.opts.priority }

func (r *Rule) IsThreaded() bool { return r.opts.threaded }

func (r *Rule) IsUnblockable() bool { return r.opts.unblockable }

func (r *Rule) AllowEcho() bool { return r.opts.allowEcho }

func (r *Rule) OutputPrefix() string { return r.opts.outputPrefix }

func (r *Rule) Doc() string { return r.opts.doc }

func (r *Rule) Patterns() []*regexp.Regexp { return r.patterns }

// HasAlias reports whether name is an alias. The command name is not an alias.
func (r *Rule) HasAlias(name string) bool {
	for _, a := range r.opts.aliases {
		if strings.EqualFold(a, name) {
			return true
		}
	}
	return false
}

func (r *Rule) String() string {
	plugin := r.opts.plugin
	if plugin == "" {
		plugin = "(no-plugin)"
	}

	switch r.kind {
	case KindCommand, KindActionCommand:
		return fmt.Sprintf("<%s %s.%s [%s]>", r.kind, plugin, r.name, strings.Join(r.opts.aliases, "|"))
	case KindNickCommand:
		return fmt.Sprintf("<%s %s.%s [%s] (%s [%s])>", r.kind, plugin, r.name,
			strings.Join(r.opts.aliases, "|"), r.nick, strings.Join(r.opts.nickAliases, "|"))
	}

	label := r.opts.label
	if label == "" {
		label = "(anonymous)"
	}
	return fmt.Sprintf("<%s %s.%s (%d)>", r.kind, plugin, label, len(r.patterns))
}

// Usages returns the examples flagged as help, or the first example when none is. Command examples
// use the help prefix and nick command examples use the bot's nick.
func (r *Rule) Usages() []Example {
	picked := []Example{}
	for _, e := range r.opts.examples {
		if e.IsHelp {
			picked = append(picked, e)
		}
	}
	if len(picked) == 0 && len(r.opts.examples) > 0 {
		picked = append(picked, r.opts.examples[0])
	}

	out := make([]Example, 0, len(picked))
	for _, e := range picked {
		switch r.kind {
		case KindCommand:
			if strings.HasPrefix(e.Text, ".") {
				e.Text = r.opts.helpPrefix + e.Text[1:]
			}
		case KindNickCommand:
			e.Text = strings.ReplaceAll(e.Text, "$nickname", r.nick)
		}
		out = append(out, e)
	}
	return out
}

// Examples returns every example, including the ones not shown as help.
func (r *Rule) Examples() []Example { return r.opts.examples }

// MatchEvent reports whether the rule listens to the IRC command.
func (r *Rule) MatchEvent(event string) bool {
	if event == "" {
		return false
	}
	for _, e := range r.opts.events {
		if e == event {
			return true
		}
	}
	return false
}

// MatchIntent reports whether the rule accepts the CTCP command of a line. intent is empty for
// lines that are not CTCP.
func (r *Rule) MatchIntent(intent string) bool {
	switch r.kind {
	case KindActionCommand:
		return intent == "ACTION"
	case KindCommand, KindNickCommand:
		return intent == ""
	}

	if len(r.opts.intents) == 0 {
		return true
	}
	for _, re := range r.opts.intents {
		if re.MatchString(intent) {
			return true
		}
	}
	return false
}

// Match returns every match of the rule for the line.
func (r *Rule) Match(pre *trigger.PreTrigger) []*trigger.Match {
	if !r.MatchEvent(pre.Event) || !r.MatchIntent(pre.CTCP) {
		return nil
	}
	if pre.IsEcho && !r.opts.allowEcho {
		return nil
	}

	if r.kind == KindURLCallback {
		if r.prefixRegex != nil && r.prefixRegex.MatchString(pre.Text) {
			return nil
		}
		urls := pre.URLs
		if len(r.opts.schemes) > 0 {
			urls = irc.ExtractURLs(pre.Plain, r.opts.schemes)
		}
		matches := []*trigger.Match{}
		for _, u := range urls {
			for _, re := range r.patterns {
				if loc := re.FindStringSubmatchIndex(u); loc != nil {
					matches = append(matches, trigger.NewMatch(re, u, loc))
				}
			}
		}
		return matches
	}

	return r.Parse(pre.Text)
}

// Parse matches text against the patterns of the rule.
func (r *Rule) Parse(text string) []*trigger.Match {
	matches := []*trigger.Match{}
	for _, re := range r.patterns {
		switch r.kind {
		case KindFind:
			for _, loc := range re.FindAllStringSubmatchIndex(text, -1) {
				matches = append(matches, trigger.NewMatch(re, text, loc))
			}
		case KindSearch:
			if loc := re.FindStringSubmatchIndex(text); loc != nil {
				matches = append(matches, trigger.NewMatch(re, text, loc))
			}
		default:
			// The leftmost match starts at 0 whenever the text matches from its start.
			if loc := re.FindStringSubmatchIndex(text); loc != nil && loc[0] == 0 {
				matches = append(matches, trigger.NewMatch(re, text, loc))
			}
		}
	}
	return matches
}

// Execute runs the handler. Unless the handler returns ErrNoLimit, the execution counts against the
// rate limits of the trigger's nick and channel.
func (r *Rule) Execute(ctx context.Context, t *trigger.Trigger) (err error) {
	if r.opts.handler == nil {
		return ErrNoHandler
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in %s: %v", r, rec)
			r.markExecuted(t)
		}
	}()

	err = r.opts.handler(ctx, t)
	if errors.Is(err, ErrNoLimit) {
		return nil
	}

	r.markExecuted(t)
	return err
}

func (r *Rule) markExecuted(t *trigger.Trigger) {
	now := r.opts.now()

	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.executions++
	r.userTimes[r.opts.caseMapping.Lower(t.Nick)] = now
	if t.IsChannelMessage() {
		r.chanTimes[r.opts.caseMapping.Lower(t.Sender)] = now
	}
	r.globalTime = now
}

// Executions returns how many times the rule counted an execution.
func (r *Rule) Executions() int {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.executions
}

func (r *Rule) remaining(last time.Time, limit time.Duration) time.Duration {
	if limit <= 0 || last.IsZero() {
		return 0
	}
	left := limit - r.opts.now().Sub(last)
	if left < 0 {
		return 0
	}
	return left
}

func (r *Rule) userRemaining(nick string) time.Duration {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.remaining(r.userTimes[r.opts.caseMapping.Lower(nick)], r.opts.rate.user)
}

func (r *Rule) channelRemaining(channel string) time.Duration {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.remaining(r.chanTimes[r.opts.caseMapping.Lower(channel)], r.opts.rate.channel)
}

func (r *Rule) globalRemaining() time.Duration {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	return r.remaining(r.globalTime, r.opts.rate.global)
}

func (r *Rule) IsUserRateLimited(nick string) bool {
	return r.userRemaining(nick) > 0
}

func (r *Rule) IsChannelRateLimited(channel string) bool {
	return r.channelRemaining(channel) > 0
}

func (r *Rule) IsGlobalRateLimited() bool {
	return r.globalRemaining() > 0
}

// RenderRateMessage fills the placeholders of a rate limit message: {nick}, {channel}, {sender},
// {plugin}, {label}, {time_left}, {time_left_sec}, {rate_limit}, {rate_limit_sec} and
// {rate_limit_type}.
func (r *Rule) RenderRateMessage(template, limitType, nick, channel string, left, limit time.Duration) string {
	if template == "" {
		return ""
	}

	left = left.Round(time.Second)
	sender := channel
	if sender == "" {
		sender = nick
	}

	return strings.NewReplacer(
		"{nick}", nick,
		"{channel}", channel,
		"{sender}", sender,
		"{plugin}", r.opts.plugin,
		"{label}", r.Label(),
		"{time_left}", left.String(),
		"{time_left_sec}", strconv.Itoa(int(left.Seconds())),
		"{rate_limit}", limit.String(),
		"{rate_limit_sec}", strconv.Itoa(int(limit.Seconds())),
		"{rate_limit_type}", limitType,
	).Replace(template)
}

func (r *Rule) UserRateMessage(nick string) string {
	return r.RenderRateMessage(r.opts.rate.userMessage, "user", nick, "", r.userRemaining(nick), r.opts.rate.user)
}

func (r *Rule) ChannelRateMessage(nick, channel string) string {
	return r.RenderRateMessage(r.opts.rate.channelMessage, "channel", nick, channel, r.channelRemaining(channel), r.opts.rate.channel)
}

func (r *Rule) GlobalRateMessage(nick string) string {
	return r.RenderRateMessage(r.opts.rate.globalMessage, "global", nick, "", r.globalRemaining(), r.opts.rate.global)
}
