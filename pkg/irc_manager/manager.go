package irc_manager

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/metrics"
	"github.com/jirwin/quirc/pkg/trigger"
)

const eventBuffer = 256

type Config struct {
	Nick       string
	User       string
	Name       string
	AliasNicks []string

	ServerPassword string
	AuthMethod     string
	AuthUsername   string
	AuthPassword   string
	AuthTarget     string

	Channels          []string
	CommandsOnConnect []string
	Modes             string

	Identity trigger.Identity

	Timeout      time.Duration
	PingInterval time.Duration

	ReconnectInitial time.Duration
	ReconnectMax     time.Duration
	QuitTimeout      time.Duration

	Flood   FloodConfig
	Backend BackendConfig
}

func NewConfig(settings *config.Settings) (Config, error) {
	core := settings.Core()

	c := Config{
		Nick:              core.Nick,
		User:              core.User,
		Name:              core.Name,
		AliasNicks:        core.AliasNicks,
		ServerPassword:    core.ServerPassword,
		AuthMethod:        core.AuthMethod,
		AuthUsername:      core.AuthUsername,
		AuthPassword:      core.AuthPassword,
		AuthTarget:        core.AuthTarget,
		Channels:          core.Channels,
		CommandsOnConnect: core.CommandsOnConnect,
		Modes:             core.Modes,
		Identity: trigger.Identity{
			Owner:         core.Owner,
			OwnerAccount:  core.OwnerAccount,
			Admins:        core.Admins,
			AdminAccounts: core.AdminAccounts,
		},
		Timeout:          core.Timeout,
		PingInterval:     core.TimeoutPingInterval,
		ReconnectInitial: 5 * time.Second,
		ReconnectMax:     5 * time.Minute,
		QuitTimeout:      5 * time.Second,
		Flood: FloodConfig{
			BurstLines:   core.FloodBurstLines,
			EmptyWait:    core.FloodEmptyWait,
			RefillRate:   core.FloodRefillRate,
			TextLength:   core.FloodTextLength,
			MaxWait:      core.FloodMaxWait,
			PenaltyRatio: core.FloodPenaltyRatio,
		},
		Backend: BackendConfig{
			Host:        core.Host,
			Port:        core.Port,
			UseSSL:      core.UseSSL,
			VerifySSL:   core.VerifySSL,
			CACerts:     core.CACerts,
			BindHost:    core.BindHost,
			DialTimeout: 30 * time.Second,
		},
	}

	return c, nil
}

type Manager interface {
	Start(ctx context.Context) error
	Done() <-chan struct{}
	Events() <-chan *trigger.PreTrigger
	Quit(message string)

	Nick() string
	Registered() bool
	ServerHostname() string
	CaseMapping() irc.CaseMapping
	ISupport() *irc.ISupport
	PreTriggerOptions() []trigger.Option
	RequestCapabilities(caps ...string)
	HasCapability(name string) bool
	SetIdentity(id trigger.Identity)
	Identity() trigger.Identity

	Write(args ...string) error
	Say(text, dest string, maxMessages int, truncation, trailing string) error
	Notice(text, dest string) error
	Action(text, dest string) error
	Reply(text, dest, nick string, notice bool) error
	Join(channel, password string) error
	Part(channel, message string) error
	Kick(channel, nick, message string) error
	Mode(target string, modes ...string) error
	ChangeNick(nick string) error

	GetChannel(name string) (Channel, bool)
	GetUser(nick string) (User, bool)
	Channels() []Channel
	HasPrivilege(channel, nick string, priv irc.Privilege) bool
}

type ManagerImpl struct {
	c       Config
	l       *zap.Logger
	backend Backend
	state   *state
	caps    *capabilities
	flood   *floodControl
	loop    *antiLoop
	events  chan *trigger.PreTrigger
	done    chan struct{}
	now     func() time.Time

	writeMtx sync.Mutex
	floodMtx sync.Mutex

	mtx       sync.RWMutex
	ctx       context.Context
	cancel    context.CancelFunc
	isupport  *irc.ISupport
	identity  trigger.Identity
	quitting  bool
	quitTimer *time.Timer
	lastRecv  time.Time
	pingSent  bool
}

func (m *ManagerImpl) Done() <-chan struct{} {
	return m.done
}

// Events streams every line received from the server once the core tasks have processed it. The
// channel is closed when Start returns.
func (m *ManagerImpl) Events() <-chan *trigger.PreTrigger {
	return m.events
}

// Start connects and serves the connection until Quit is called or ctx is cancelled. Lost
// connections are retried with exponential backoff.
func (m *ManagerImpl) Start(ctx context.Context) error {
	m.mtx.Lock()
	m.ctx, m.cancel = context.WithCancel(ctx)
	runCtx := m.ctx
	m.mtx.Unlock()

	defer func() {
		m.mtx.Lock()
		if m.quitTimer != nil {
			m.quitTimer.Stop()
		}
		m.mtx.Unlock()
		m.cancel()
		metrics.Connected.Set(0)
		close(m.events)
		close(m.done)
	}()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = m.c.ReconnectInitial
	bo.MaxInterval = m.c.ReconnectMax

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			metrics.Reconnects.Inc()
		}

		registered, err := m.session(runCtx)
		metrics.Connected.Set(0)

		if m.isQuitting() || runCtx.Err() != nil {
			m.l.Info("disconnected", zap.Error(err))
			return nil
		}

		if registered {
			bo.Reset()
		}
		wait := bo.NextBackOff()
		if wait < 0 {
			wait = m.c.ReconnectMax
		}
		m.l.Warn("connection lost, reconnecting", zap.Error(err), zap.Duration("wait", wait))

		t := time.NewTimer(wait)
		select {
		case <-t.C:
		case <-runCtx.Done():
			t.Stop()
			return nil
		}
	}
}

// session runs one connection and reports whether the bot got registered on it.
func (m *ManagerImpl) session(ctx context.Context) (bool, error) {
	m.l.Info("connecting", zap.String("host", m.c.Backend.Host), zap.Int("port", m.c.Backend.Port))
	if err := m.backend.Connect(ctx); err != nil {
		return false, err
	}
	m.resetSession()

	sessCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}
	defer func() {
		cancel()
		wg.Wait()
	}()

	wg.Add(2)
	go func() {
		defer wg.Done()
		<-sessCtx.Done()
		m.backend.Close() //nolint:errcheck
	}()
	go func() {
		defer wg.Done()
		m.watchdog(sessCtx)
	}()

	if err := m.register(); err != nil {
		return false, err
	}

	for {
		line, err := m.backend.ReadLine()
		if err != nil {
			return m.Registered(), err
		}
		m.touch()

		pre, err := m.process(line)
		if err != nil {
			m.l.Warn("unable to parse line", zap.String("line", line), zap.Error(err))
			continue
		}

		select {
		case m.events <- pre:
		case <-ctx.Done():
			return m.Registered(), ctx.Err()
		}
	}
}

func (m *ManagerImpl) resetSession() {
	m.state.reset(m.c.Nick)
	m.caps.reset()

	m.mtx.Lock()
	defer m.mtx.Unlock()
	m.isupport = irc.NewISupport()
	m.lastRecv = m.now()
	m.pingSent = false
}

func (m *ManagerImpl) touch() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.lastRecv = m.now()
	m.pingSent = false
}

// watchdog pings the server after a quiet period and drops the connection when it stays silent.
func (m *ManagerImpl) watchdog(ctx context.Context) {
	if m.c.Timeout <= 0 {
		return
	}

	interval := m.c.PingInterval
	if interval <= 0 || interval > m.c.Timeout {
		interval = m.c.Timeout
	}
	ticker := time.NewTicker(interval / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mtx.Lock()
			idle := m.now().Sub(m.lastRecv)
			sendPing := idle >= interval && !m.pingSent
			if sendPing {
				m.pingSent = true
			}
			m.mtx.Unlock()

			if idle >= m.c.Timeout {
				m.l.Warn("ping timeout", zap.Duration("idle", idle))
				m.backend.Close() //nolint:errcheck
				return
			}
			if sendPing {
				target := m.ServerHostname()
				if target == "" {
					target = m.c.Backend.Host
				}
				m.send("PING", target) //nolint:errcheck
			}
		}
	}
}

// process parses a line and updates the connection state from it.
func (m *ManagerImpl) process(line string) (*trigger.PreTrigger, error) {
	pre, err := trigger.NewPreTrigger(m.Nick(), line, m.PreTriggerOptions()...)
	if err != nil {
		return nil, err
	}
	metrics.LinesReceived.WithLabelValues(pre.Event).Inc()

	if pre.Account != "" && pre.Nick != "" {
		account := pre.Account
		m.state.updateUser(pre.Nick, func(u *userState) {
			u.account = account
		})
	}

	if h, ok := coreTasks[pre.Event]; ok {
		h(m, pre)
	}

	return pre, nil
}

// Process handles a line as if it had been received from the server, without queueing it on
// Events. Tests use it to drive the manager without a running session.
func (m *ManagerImpl) Process(line string) (*trigger.PreTrigger, error) {
	return m.process(line)
}

func (m *ManagerImpl) register() error {
	m.caps.startNegotiation()
	if err := m.send("CAP", "LS", "302"); err != nil {
		return err
	}

	password := m.c.ServerPassword
	if m.c.AuthMethod == config.AuthServer {
		password = m.c.AuthPassword
	}
	if password != "" {
		if err := m.send("PASS", password); err != nil {
			return err
		}
	}

	if err := m.send("NICK", m.c.Nick); err != nil {
		return err
	}
	return m.Write("USER", m.c.User, "0", "*", m.c.Name)
}

// Quit sends QUIT and stops reconnecting. The connection is closed if the server does not close it
// within the quit timeout.
func (m *ManagerImpl) Quit(message string) {
	m.mtx.Lock()
	if m.quitting {
		m.mtx.Unlock()
		return
	}
	m.quitting = true
	cancel := m.cancel
	if cancel != nil {
		m.quitTimer = time.AfterFunc(m.c.QuitTimeout, cancel)
	}
	m.mtx.Unlock()

	if err := m.Write("QUIT", message); err != nil && cancel != nil {
		cancel()
	}
}

func (m *ManagerImpl) isQuitting() bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.quitting
}

func (m *ManagerImpl) Nick() string {
	m.state.RLock()
	defer m.state.RUnlock()

	return m.state.nick
}

func (m *ManagerImpl) Registered() bool {
	m.state.RLock()
	defer m.state.RUnlock()

	return m.state.registered
}

func (m *ManagerImpl) ServerHostname() string {
	m.state.RLock()
	defer m.state.RUnlock()

	return m.state.serverHostname
}

func (m *ManagerImpl) CaseMapping() irc.CaseMapping {
	m.state.RLock()
	defer m.state.RUnlock()

	return m.state.cm
}

func (m *ManagerImpl) ISupport() *irc.ISupport {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return m.isupport
}

// PreTriggerOptions returns the parsing options matching what the server advertised.
func (m *ManagerImpl) PreTriggerOptions() []trigger.Option {
	is := m.ISupport()
	return []trigger.Option{
		trigger.WithCaseMapping(is.CaseMapping()),
		trigger.WithStatusPrefixes(is.StatusMsg()),
		trigger.WithChanTypes(is.ChanTypes()),
		trigger.WithClock(m.now),
	}
}

func (m *ManagerImpl) SetIdentity(id trigger.Identity) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.identity = id
}

// Identity returns the owner and admin settings using the current case mapping.
func (m *ManagerImpl) Identity() trigger.Identity {
	m.mtx.RLock()
	id := m.identity
	m.mtx.RUnlock()

	id.CaseMapping = m.CaseMapping()
	return id
}

func (m *ManagerImpl) GetChannel(name string) (Channel, bool) {
	return m.state.channel(name)
}

func (m *ManagerImpl) GetUser(nick string) (User, bool) {
	return m.state.getUser(nick)
}

func (m *ManagerImpl) Channels() []Channel {
	return m.state.channelList()
}

// HasPrivilege reports whether nick holds at least priv in channel.
func (m *ManagerImpl) HasPrivilege(channel, nick string, priv irc.Privilege) bool {
	p, ok := m.state.privilege(channel, nick)
	return ok && p >= priv
}

var ErrNoRecipient = errors.New("no recipient")

func New(c Config, l *zap.Logger, backend Backend) (*ManagerImpl, error) {
	m := &ManagerImpl{
		c:        c,
		l:        l.Named("irc-manager"),
		backend:  backend,
		state:    newState(c.Nick),
		caps:     newCapabilities(c),
		flood:    newFloodControl(c.Flood),
		loop:     newAntiLoop(),
		events:   make(chan *trigger.PreTrigger, eventBuffer),
		done:     make(chan struct{}),
		now:      time.Now,
		isupport: irc.NewISupport(),
		identity: c.Identity,
	}

	return m, nil
}
