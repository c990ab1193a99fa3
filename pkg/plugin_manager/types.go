package plugin_manager

import (
	"context"
	"net/http"
	"time"

	"github.com/jirwin/quirc/pkg/rules"
	"github.com/jirwin/quirc/pkg/trigger"
)

// TriggerMsg is passed to a rule handler for every match.
type TriggerMsg struct {
	Helper  PluginHelper
	Trigger *trigger.Trigger
}

// Handler runs when a command, hook or URL callback matches. Returning rules.ErrNoLimit keeps the
// call from counting against rate limits.
type Handler func(ctx context.Context, msg *TriggerMsg) error

// JobHandler runs on a job's intervals.
type JobHandler func(ctx context.Context, helper PluginHelper) error

// Command is a prefixed, nick addressed or action command.
type Command struct {
	kind    rules.Kind
	name    string
	handler Handler
	opts    []rules.Option
}

// GetName returns the name the command is invoked with.
func (c *Command) GetName() string {
	return c.name
}

// MakeCommand returns a command invoked as <prefix><name> [args].
func MakeCommand(name string, handler Handler, opts ...rules.Option) *Command {
	return &Command{
		kind:    rules.KindCommand,
		name:    name,
		handler: handler,
		opts:    opts,
	}
}

// MakeNickCommand returns a command invoked as "<bot nick>: <name> [args]".
func MakeNickCommand(name string, handler Handler, opts ...rules.Option) *Command {
	return &Command{
		kind:    rules.KindNickCommand,
		name:    name,
		handler: handler,
		opts:    opts,
	}
}

// MakeActionCommand returns a command invoked with a CTCP ACTION ("/me <name> [args]").
func MakeActionCommand(name string, handler Handler, opts ...rules.Option) *Command {
	return &Command{
		kind:    rules.KindActionCommand,
		name:    name,
		handler: handler,
		opts:    opts,
	}
}

// Hook matches regular expressions against lines. $nickname in a pattern stands for the bot's
// nick. Patterns are case-insensitive.
type Hook struct {
	kind     rules.Kind
	patterns []string
	handler  Handler
	opts     []rules.Option
}

// MakeHook returns a hook matching patterns at the start of the text. Without patterns it sees every
// line of its events.
func MakeHook(patterns []string, handler Handler, opts ...rules.Option) *Hook {
	if len(patterns) == 0 {
		patterns = []string{".*"}
	}
	return &Hook{
		kind:     rules.KindRule,
		patterns: patterns,
		handler:  handler,
		opts:     opts,
	}
}

// MakeFindHook returns a hook called for every match of the patterns anywhere in the text.
func MakeFindHook(patterns []string, handler Handler, opts ...rules.Option) *Hook {
	return &Hook{
		kind:     rules.KindFind,
		patterns: patterns,
		handler:  handler,
		opts:     opts,
	}
}

// MakeSearchHook returns a hook called for the first match of each pattern anywhere in the text.
func MakeSearchHook(patterns []string, handler Handler, opts ...rules.Option) *Hook {
	return &Hook{
		kind:     rules.KindSearch,
		patterns: patterns,
		handler:  handler,
		opts:     opts,
	}
}

// URLCallback is called for links matching one of its patterns.
type URLCallback struct {
	patterns []string
	handler  Handler
	opts     []rules.Option
}

func MakeURLCallback(patterns []string, handler Handler, opts ...rules.Option) *URLCallback {
	return &URLCallback{
		patterns: patterns,
		handler:  handler,
		opts:     opts,
	}
}

// Job runs a handler on one or more intervals.
type Job struct {
	label     string
	intervals []time.Duration
	threaded  bool
	handler   JobHandler
}

// MakeJob returns a job. Threaded jobs run in their own goroutine and may overlap other jobs.
func MakeJob(label string, intervals []time.Duration, threaded bool, handler JobHandler) *Job {
	return &Job{
		label:     label,
		intervals: intervals,
		threaded:  threaded,
		handler:   handler,
	}
}

// Webhook is the interface that a plugin implements to register a custom webhook.
type Webhook interface {
	GetName() string
	Channel() chan<- *WebhookMsg
	Run(ctx context.Context)
}

// WebhookMsg is the struct that is sent to the plugin's channel. The plugin closes or sends on Done
// once it has written its response.
type WebhookMsg struct {
	Helper         PluginHelper
	Request        *http.Request
	ResponseWriter http.ResponseWriter
	Done           chan bool
}

// registeredWebhook is the internal struct that represents a registered webhook
type registeredWebhook struct {
	PluginID string
	Webhook  Webhook
}

// webhook is an implementation of the Webhook interface
type webhook struct {
	name    string
	channel chan *WebhookMsg
	runFunc func(ctx context.Context, webhookChan <-chan *WebhookMsg)
}

// GetName returns the name of the webhook
func (wh *webhook) GetName() string {
	return wh.name
}

// Channel returns the channel the manager writes WebhookMsg to when a request is received
func (wh *webhook) Channel() chan<- *WebhookMsg {
	return wh.channel
}

// Run executes the webhook's runFunc
func (wh *webhook) Run(ctx context.Context) {
	wh.runFunc(ctx, wh.channel)
}

// MakeWebhook is a helper function that returns a Webhook served on /plugin/<name>
func MakeWebhook(name string, runFunc func(ctx context.Context, whChan <-chan *WebhookMsg)) Webhook {
	return &webhook{
		name:    name,
		runFunc: runFunc,
		channel: make(chan *WebhookMsg),
	}
}

// Plugin is the interface to implement a plugin
type Plugin interface {
	GetId() string
}

type CommandPlugin interface {
	Plugin
	GetCommands() []*Command
}

type HookPlugin interface {
	Plugin
	GetHooks() []*Hook
}

type URLPlugin interface {
	Plugin
	GetURLCallbacks() []*URLCallback
}

type JobPlugin interface {
	Plugin
	GetJobs() []*Job
}

type WebhookPlugin interface {
	Plugin
	GetWebhooks() []Webhook
}

// LoadPlugin is set up before any of its rules are registered. A load error aborts registration.
type LoadPlugin interface {
	Plugin
	Load(helper PluginHelper) error
}

// ShutdownPlugin is called when the plugin is unregistered or the bot stops.
type ShutdownPlugin interface {
	Plugin
	Shutdown(helper PluginHelper)
}

// CapabilityPlugin asks for extra IRCv3 capabilities.
type CapabilityPlugin interface {
	Plugin
	GetCapabilities() []string
}

type plugin struct {
	id           string
	commands     []*Command
	hooks        []*Hook
	urlCallbacks []*URLCallback
	jobs         []*Job
	webhooks     []Webhook
	capabilities []string
	loadFunc     func(helper PluginHelper) error
	shutdownFunc func(helper PluginHelper)
}

func (p *plugin) GetId() string                   { return p.id }
func (p *plugin) GetCommands() []*Command         { return p.commands }
func (p *plugin) GetHooks() []*Hook               { return p.hooks }
func (p *plugin) GetURLCallbacks() []*URLCallback { return p.urlCallbacks }
func (p *plugin) GetJobs() []*Job                 { return p.jobs }
func (p *plugin) GetWebhooks() []Webhook          { return p.webhooks }
func (p *plugin) GetCapabilities() []string       { return p.capabilities }

func (p *plugin) Load(helper PluginHelper) error {
	if p.loadFunc == nil {
		return nil
	}
	return p.loadFunc(helper)
}

func (p *plugin) Shutdown(helper PluginHelper) {
	if p.shutdownFunc != nil {
		p.shutdownFunc(helper)
	}
}

type PluginOption func(*plugin)

func WithCommands(commands ...*Command) PluginOption {
	return func(p *plugin) { p.commands = append(p.commands, commands...) }
}

func WithHooks(hooks ...*Hook) PluginOption {
	return func(p *plugin) { p.hooks = append(p.hooks, hooks...) }
}

func WithURLCallbacks(callbacks ...*URLCallback) PluginOption {
	return func(p *plugin) { p.urlCallbacks = append(p.urlCallbacks, callbacks...) }
}

func WithJobs(jobs ...*Job) PluginOption {
	return func(p *plugin) { p.jobs = append(p.jobs, jobs...) }
}

func WithWebhooks(webhooks ...Webhook) PluginOption {
	return func(p *plugin) { p.webhooks = append(p.webhooks, webhooks...) }
}

func WithCapabilities(caps ...string) PluginOption {
	return func(p *plugin) { p.capabilities = append(p.capabilities, caps...) }
}

func WithLoad(f func(helper PluginHelper) error) PluginOption {
	return func(p *plugin) { p.loadFunc = f }
}

func WithShutdown(f func(helper PluginHelper)) PluginOption {
	return func(p *plugin) { p.shutdownFunc = f }
}

// MakePlugin builds a plugin from its parts.
func MakePlugin(id string, opts ...PluginOption) Plugin {
	p := &plugin{id: id}
	for _, opt := range opts {
		opt(p)
	}
	return p
}
