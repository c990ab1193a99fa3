package plugin_manager

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/irc_manager"
	"github.com/jirwin/quirc/pkg/jobs"
	"github.com/jirwin/quirc/pkg/metrics"
	"github.com/jirwin/quirc/pkg/rules"
	"github.com/jirwin/quirc/pkg/trigger"
	"github.com/jirwin/quirc/pkg/webhook_manager"
)

const (
	coreTasksPlugin = "coretasks"

	defaultWebhookTimeout = 5 * time.Second
	defaultJobStopTimeout = 10 * time.Second
)

var (
	ErrInvalidPlugin       = errors.New("invalid plugin")
	ErrEmptyPluginID       = errors.New("must provide a unique plugin id")
	ErrPluginExists        = errors.New("plugin already registered")
	ErrPluginDisabled      = errors.New("plugin disabled by configuration")
	ErrPluginNotRegistered = errors.New("plugin not registered")
	ErrWebhookExists       = errors.New("webhook already exists")
)

type Config struct {
	Nick       string
	AliasNicks []string
	Prefix     string
	HelpPrefix string
	Enable     []string
	Exclude    []string

	WebhookTimeout time.Duration
	JobStopTimeout time.Duration
}

func NewConfig(settings *config.Settings) (Config, error) {
	core := settings.Core()

	c := Config{
		Nick:           core.Nick,
		AliasNicks:     core.AliasNicks,
		Prefix:         core.Prefix,
		HelpPrefix:     core.HelpPrefix,
		Enable:         core.Enable,
		Exclude:        core.Exclude,
		WebhookTimeout: defaultWebhookTimeout,
		JobStopTimeout: defaultJobStopTimeout,
	}

	return c, nil
}

type Manager interface {
	Run(ctx context.Context)
	Register(p interface{}) error
	Unregister(id string) error
	Reload(id string) error
	Plugins() []string
	Commands() []*rules.Rule
	WaitRunning()
}

type registeredPlugin struct {
	plugin   Plugin
	cancel   context.CancelFunc
	wg       *sync.WaitGroup
	webhooks []string
}

type ManagerImpl struct {
	c              Config
	l              *zap.Logger
	settings       *config.Settings
	ircManager     irc_manager.Manager
	webhookManager webhook_manager.Manager
	dataStore      data_store.DataStore
	rules          *rules.Manager
	scheduler      *jobs.Scheduler
	memory         *Memory
	started        time.Time
	now            func() time.Time

	// registerMtx serializes Register and Unregister. mtx guards the maps.
	registerMtx sync.Mutex
	mtx         sync.RWMutex
	plugins     map[string]*registeredPlugin
	webhooks    map[string]*registeredWebhook

	ctx     context.Context
	cancel  context.CancelFunc
	running sync.WaitGroup
}

// Run dispatches the lines received by the IRC manager until ctx is done or the IRC manager stops.
// Plugins are shut down before it returns.
func (m *ManagerImpl) Run(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		m.scheduler.Run(runCtx)
	}()

	m.l.Info("running plugin manager")
	m.handleEvents(runCtx)

	cancel()
	<-schedulerDone
	m.shutdown()
}

func (m *ManagerImpl) handleEvents(ctx context.Context) {
	events := m.ircManager.Events()
	for {
		select {
		case pre, ok := <-events:
			if !ok {
				m.l.Info("irc manager stopped")
				return
			}
			m.Dispatch(ctx, pre)

		case <-ctx.Done():
			return
		}
	}
}

// shutdown waits for running rules and jobs, then shuts every plugin down.
func (m *ManagerImpl) shutdown() {
	m.WaitRunning()
	if err := m.scheduler.Stop(m.c.JobStopTimeout); err != nil {
		m.l.Warn("jobs still running", zap.Error(err))
	}

	for _, id := range m.Plugins() {
		if err := m.Unregister(id); err != nil {
			m.l.Error("error shutting down plugin", zap.String("plugin_id", id), zap.Error(err))
		}
	}
	m.cancel()
	m.l.Info("plugin manager stopped")
}

// WaitRunning blocks until every threaded rule call has returned.
func (m *ManagerImpl) WaitRunning() {
	m.running.Wait()
}

// Enabled applies core.enable and core.exclude, both lists of glob patterns.
func (c Config) Enabled(id string) bool {
	for _, pattern := range c.Exclude {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return false
		}
	}
	if len(c.Enable) == 0 {
		return true
	}
	for _, pattern := range c.Enable {
		if ok, _ := doublestar.Match(pattern, id); ok {
			return true
		}
	}
	return false
}

// patternNick replaces $nickname in a pattern with the bot's nick and its aliases.
func (m *ManagerImpl) patternNick(pattern string) string {
	if !strings.Contains(pattern, "$nickname") {
		return pattern
	}
	nicks := []string{regexp.QuoteMeta(m.c.Nick)}
	for _, alias := range m.c.AliasNicks {
		nicks = append(nicks, regexp.QuoteMeta(alias))
	}
	return strings.ReplaceAll(pattern, "$nickname", "(?:"+strings.Join(nicks, "|")+")")
}

func (m *ManagerImpl) compile(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + m.patternNick(p))
		if err != nil {
			return nil, fmt.Errorf("invalid pattern %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// withPatternLabel labels a rule after its first pattern as written, before $nickname expansion.
// A label given by the plugin wins.
func withPatternLabel(patterns []string, opts []rules.Option) []rules.Option {
	if len(patterns) == 0 {
		return opts
	}
	return append([]rules.Option{rules.WithLabel(patterns[0])}, opts...)
}

// ruleOptions puts the manager's options around the plugin's own. The handler always comes last.
func (m *ManagerImpl) ruleOptions(id string, opts []rules.Option, handler Handler, rule **rules.Rule) []rules.Option {
	out := []rules.Option{
		rules.WithCaseMapping(m.ircManager.CaseMapping()),
		rules.WithHelpPrefix(m.c.HelpPrefix),
	}
	out = append(out, opts...)
	out = append(out,
		rules.WithPlugin(id),
		rules.WithHandler(m.wrapHandler(id, handler, rule)),
	)
	return out
}

func (m *ManagerImpl) wrapHandler(id string, handler Handler, rule **rules.Rule) rules.Handler {
	return func(ctx context.Context, t *trigger.Trigger) error {
		return handler(ctx, &TriggerMsg{
			Helper:  m.newHelper(id, t, *rule),
			Trigger: t,
		})
	}
}

// buildRules turns the commands, hooks and URL callbacks of a plugin into rules.
func (m *ManagerImpl) buildRules(p Plugin) ([]*rules.Rule, error) {
	id := p.GetId()
	out := []*rules.Rule{}

	if cp, ok := p.(CommandPlugin); ok {
		for _, cmd := range cp.GetCommands() {
			if cmd.name == "" || cmd.handler == nil {
				return nil, fmt.Errorf("%w: command without name or handler in %s", ErrInvalidPlugin, id)
			}
			r := new(*rules.Rule)
			opts := m.ruleOptions(id, cmd.opts, cmd.handler, r)
			switch cmd.kind {
			case rules.KindNickCommand:
				*r = rules.NewNickCommand(m.c.Nick, cmd.name, append([]rules.Option{rules.WithNickAliases(m.c.AliasNicks...)}, opts...)...)
			case rules.KindActionCommand:
				*r = rules.NewActionCommand(cmd.name, opts...)
			default:
				*r = rules.NewCommand(cmd.name, m.c.Prefix, opts...)
			}
			out = append(out, *r)
		}
	}

	if hp, ok := p.(HookPlugin); ok {
		for _, hk := range hp.GetHooks() {
			if hk.handler == nil {
				return nil, fmt.Errorf("%w: hook without handler in %s", ErrInvalidPlugin, id)
			}
			patterns, err := m.compile(hk.patterns)
			if err != nil {
				return nil, err
			}
			r := new(*rules.Rule)
			opts := m.ruleOptions(id, withPatternLabel(hk.patterns, hk.opts), hk.handler, r)
			switch hk.kind {
			case rules.KindFind:
				*r = rules.NewFindRule(patterns, opts...)
			case rules.KindSearch:
				*r = rules.NewSearchRule(patterns, opts...)
			default:
				*r = rules.NewRule(patterns, opts...)
			}
			out = append(out, *r)
		}
	}

	if up, ok := p.(URLPlugin); ok {
		for _, cb := range up.GetURLCallbacks() {
			if cb.handler == nil {
				return nil, fmt.Errorf("%w: url callback without handler in %s", ErrInvalidPlugin, id)
			}
			patterns, err := m.compile(cb.patterns)
			if err != nil {
				return nil, err
			}
			r := new(*rules.Rule)
			opts := append([]rules.Option{rules.WithCommandPrefix(m.c.Prefix)}, m.ruleOptions(id, withPatternLabel(cb.patterns, cb.opts), cb.handler, r)...)
			*r = rules.NewURLCallback(patterns, opts...)
			out = append(out, *r)
		}
	}

	return out, nil
}

func (m *ManagerImpl) buildJobs(p Plugin, helper PluginHelper) ([]*jobs.Job, error) {
	jp, ok := p.(JobPlugin)
	if !ok {
		return nil, nil
	}

	out := []*jobs.Job{}
	for _, job := range jp.GetJobs() {
		if job.handler == nil {
			return nil, fmt.Errorf("%w: job without handler in %s", ErrInvalidPlugin, p.GetId())
		}
		handler := job.handler
		j, err := jobs.NewJob(m.scheduler.Now(), job.intervals, p.GetId(), job.label, job.threaded, func(ctx context.Context) error {
			return handler(ctx, helper)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, nil
}

// Register registers the given Plugin with the Bot.
func (m *ManagerImpl) Register(p interface{}) error {
	if p == nil {
		return ErrInvalidPlugin
	}

	plgin, ok := p.(Plugin)
	if !ok {
		return ErrInvalidPlugin
	}

	id := plgin.GetId()
	if id == "" {
		return ErrEmptyPluginID
	}
	if !m.c.Enabled(id) {
		m.l.Info("skipping disabled plugin", zap.String("plugin_id", id))
		return fmt.Errorf("%w: %s", ErrPluginDisabled, id)
	}

	m.registerMtx.Lock()
	defer m.registerMtx.Unlock()

	m.mtx.RLock()
	_, exists := m.plugins[id]
	m.mtx.RUnlock()
	if exists {
		return fmt.Errorf("%w: %s", ErrPluginExists, id)
	}

	ruleList, err := m.buildRules(plgin)
	if err != nil {
		return err
	}

	helper := m.newHelper(id, nil, nil)
	jobList, err := m.buildJobs(plgin, helper)
	if err != nil {
		return err
	}

	var webhookList []Webhook
	if wp, ok := plgin.(WebhookPlugin); ok {
		webhookList = wp.GetWebhooks()
		m.mtx.RLock()
		for _, wh := range webhookList {
			if _, ok := m.webhooks[wh.GetName()]; ok {
				m.mtx.RUnlock()
				return fmt.Errorf("%w: %s", ErrWebhookExists, wh.GetName())
			}
		}
		m.mtx.RUnlock()
	}

	if err := m.dataStore.InitPluginBucket(id); err != nil {
		return err
	}

	if cp, ok := plgin.(CapabilityPlugin); ok {
		m.ircManager.RequestCapabilities(cp.GetCapabilities()...)
	}

	if lp, ok := plgin.(LoadPlugin); ok {
		if err := lp.Load(helper); err != nil {
			return fmt.Errorf("loading plugin %s: %w", id, err)
		}
	}

	for _, r := range ruleList {
		m.l.Info("registering rule", zap.String("plugin_id", id), zap.String("rule", r.String()))
		m.rules.RegisterAny(r)
	}

	for _, j := range jobList {
		m.l.Info("registering job", zap.String("plugin_id", id), zap.String("job", j.String()))
		m.scheduler.Register(j)
	}

	ctx, cancel := context.WithCancel(m.ctx)
	rp := &registeredPlugin{
		plugin: plgin,
		cancel: cancel,
		wg:     &sync.WaitGroup{},
	}

	m.mtx.Lock()
	for _, wh := range webhookList {
		m.webhooks[wh.GetName()] = &registeredWebhook{
			PluginID: id,
			Webhook:  wh,
		}
		rp.webhooks = append(rp.webhooks, wh.GetName())
		m.l.Info("registering webhook", zap.String("webhook_name", wh.GetName()), zap.String("plugin_id", id))

		rp.wg.Add(1)
		go func(wh Webhook) {
			defer rp.wg.Done()

			wh.Run(ctx)
		}(wh)
	}
	m.plugins[id] = rp
	m.mtx.Unlock()

	return nil
}

// Unregister removes a plugin's rules, jobs and webhooks and shuts it down.
func (m *ManagerImpl) Unregister(id string) error {
	m.registerMtx.Lock()
	defer m.registerMtx.Unlock()

	m.mtx.Lock()
	rp, ok := m.plugins[id]
	if !ok {
		m.mtx.Unlock()
		return fmt.Errorf("%w: %s", ErrPluginNotRegistered, id)
	}
	for _, name := range rp.webhooks {
		delete(m.webhooks, name)
	}
	delete(m.plugins, id)
	m.mtx.Unlock()

	removed := m.rules.UnregisterPlugin(id)
	removed += m.scheduler.UnregisterPlugin(id)

	rp.cancel()
	rp.wg.Wait()

	if sp, ok := rp.plugin.(ShutdownPlugin); ok {
		sp.Shutdown(m.newHelper(id, nil, nil))
	}

	m.l.Info("unregistered plugin", zap.String("plugin_id", id), zap.Int("callables", removed))
	return nil
}

// Reload unregisters a plugin and registers it again, running its setup anew.
func (m *ManagerImpl) Reload(id string) error {
	m.mtx.RLock()
	rp, ok := m.plugins[id]
	m.mtx.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrPluginNotRegistered, id)
	}

	if err := m.Unregister(id); err != nil {
		return err
	}
	return m.Register(rp.plugin)
}

// Plugins returns the ids of the registered plugins, sorted.
func (m *ManagerImpl) Plugins() []string {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	out := make([]string, 0, len(m.plugins))
	for id := range m.plugins {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Commands returns every prefixed command, sorted by name.
func (m *ManagerImpl) Commands() []*rules.Rule {
	return m.rules.Commands()
}

// Rules exposes the rule manager.
func (m *ManagerImpl) Rules() *rules.Manager {
	return m.rules
}

// Scheduler exposes the job scheduler.
func (m *ManagerImpl) Scheduler() *jobs.Scheduler {
	return m.scheduler
}

func New(
	c Config,
	l *zap.Logger,
	settings *config.Settings,
	ircManager irc_manager.Manager,
	webhookManager webhook_manager.Manager,
	dataStore data_store.DataStore,
) (*ManagerImpl, error) {
	m := &ManagerImpl{
		c:              c,
		l:              l.Named("plugin-manager"),
		settings:       settings,
		ircManager:     ircManager,
		webhookManager: webhookManager,
		dataStore:      dataStore,
		rules:          rules.NewManager(),
		memory:         NewMemory(),
		started:        time.Now(),
		now:            time.Now,
		plugins:        make(map[string]*registeredPlugin),
		webhooks:       make(map[string]*registeredWebhook),
	}
	if m.c.WebhookTimeout <= 0 {
		m.c.WebhookTimeout = defaultWebhookTimeout
	}
	if m.c.JobStopTimeout <= 0 {
		m.c.JobStopTimeout = defaultJobStopTimeout
	}
	m.ctx, m.cancel = context.WithCancel(context.Background())

	m.scheduler = jobs.NewScheduler(l, jobs.WithRunHook(func(j *jobs.Job, d time.Duration, err error) {
		metrics.JobRuns.WithLabelValues(j.Plugin, metrics.Result(err)).Inc()
	}))

	webhookManager.RegisterRoute("/plugin/{webhook-name}", m.handlePluginWebhook, []string{"GET", "POST", "DELETE", "PUT"}, true)

	return m, nil
}
