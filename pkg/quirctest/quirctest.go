// Package quirctest runs plugins against an in-memory IRC connection.
//
// A Bot has a settings file in a temporary home directory, a bolt store and a mock backend. Lines
// given to Line are processed by the IRC manager and dispatched to the registered plugins, and
// everything the bot writes can be read back with Sent.
package quirctest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/data_store/factory"
	"github.com/jirwin/quirc/pkg/irc_manager"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/webhook_manager"
)

const (
	Nick       = "TestBot"
	Owner      = "Owner"
	Admin      = "Admin"
	Channel    = "#channel"
	ServerHost = "irc.example.com"
)

const baseSettings = `[core]
nick = %s
owner = %s
admins = %s
host = %s
homedir = %s
flood_burst_lines = 1000
flood_refill_rate = 1000
`

type options struct {
	core     []string
	sections []string
}

type Option func(*options)

// WithCore adds "option = value" lines to the [core] section.
func WithCore(lines ...string) Option {
	return func(o *options) { o.core = append(o.core, lines...) }
}

// WithSection adds a section with the given lines.
func WithSection(name string, lines ...string) Option {
	return func(o *options) {
		o.sections = append(o.sections, "["+name+"]\n"+strings.Join(lines, "\n")+"\n")
	}
}

type Bot struct {
	t testing.TB

	Settings *config.Settings
	IRC      *irc_manager.ManagerImpl
	Backend  *irc_manager.MockBackend
	Webhooks *webhook_manager.ManagerImpl
	Plugins  *plugin_manager.ManagerImpl
	Store    data_store.DataStore
}

// New builds a bot registered on the mock server.
func New(t testing.TB, opts ...Option) *Bot {
	t.Helper()

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	home := t.TempDir()
	path := filepath.Join(home, "default.cfg")
	data := fmt.Sprintf(baseSettings, Nick, Owner, Admin, ServerHost, home)
	for _, line := range o.core {
		data += line + "\n"
	}
	data += strings.Join(o.sections, "")
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	settings, err := config.Load(path, config.WithEnviron(func() []string { return nil }))
	require.NoError(t, err)

	l := zaptest.NewLogger(t, zaptest.Level(zap.WarnLevel))

	store, err := factory.New(settings, l)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	ic, err := irc_manager.NewConfig(settings)
	require.NoError(t, err)
	ic.Flood = irc_manager.FloodConfig{BurstLines: 1000, RefillRate: 1000}

	backend := irc_manager.NewMockBackend()
	ircManager, err := irc_manager.New(ic, l, backend)
	require.NoError(t, err)
	require.NoError(t, backend.Connect(context.Background()))

	wc, err := webhook_manager.NewConfig(settings)
	require.NoError(t, err)
	webhooks, err := webhook_manager.New(wc, l)
	require.NoError(t, err)

	pc, err := plugin_manager.NewConfig(settings)
	require.NoError(t, err)
	plugins, err := plugin_manager.New(pc, l, settings, ircManager, webhooks, store)
	require.NoError(t, err)

	b := &Bot{
		t:        t,
		Settings: settings,
		IRC:      ircManager,
		Backend:  backend,
		Webhooks: webhooks,
		Plugins:  plugins,
		Store:    store,
	}
	t.Cleanup(func() {
		plugins.WaitRunning()
		for _, id := range plugins.Plugins() {
			plugins.Unregister(id) //nolint:errcheck
		}
	})

	b.Line(fmt.Sprintf(":%s 001 %s :Welcome", ServerHost, Nick))
	b.ClearSent()

	return b
}

// Register registers plugins and fails the test on error.
func (b *Bot) Register(plugins ...plugin_manager.Plugin) {
	b.t.Helper()

	for _, p := range plugins {
		require.NoError(b.t, b.Plugins.Register(p))
	}
}

// Line handles raw as a line from the server and waits for every rule it triggered to return.
func (b *Bot) Line(raw string) {
	b.t.Helper()

	pre, err := b.IRC.Process(raw)
	require.NoError(b.t, err)
	b.Plugins.Dispatch(context.Background(), pre)
	b.Plugins.WaitRunning()
}

// Privmsg sends text from nick to target. A target equal to the bot's nick is a private message.
func (b *Bot) Privmsg(nick, target, text string) {
	b.t.Helper()
	b.Line(fmt.Sprintf(":%s PRIVMSG %s :%s", Hostmask(nick), target, text))
}

// Say sends text from nick to Channel.
func (b *Bot) Say(nick, text string) {
	b.t.Helper()
	b.Privmsg(nick, Channel, text)
}

// Action sends a CTCP ACTION from nick to target.
func (b *Bot) Action(nick, target, text string) {
	b.t.Helper()
	b.Privmsg(nick, target, "\x01ACTION "+text+"\x01")
}

// Join makes the bot join channel with the given nicks present.
func (b *Bot) Join(channel string, nicks ...string) {
	b.t.Helper()

	b.Line(fmt.Sprintf(":%s JOIN %s", Hostmask(Nick), channel))
	b.Line(fmt.Sprintf(":%s 353 %s = %s :%s", ServerHost, Nick, channel, strings.Join(append([]string{Nick}, nicks...), " ")))
	b.Line(fmt.Sprintf(":%s 366 %s %s :End of /NAMES list.", ServerHost, Nick, channel))
	b.ClearSent()
}

// Sent returns the lines written since the last ClearSent.
func (b *Bot) Sent() []string {
	return b.Backend.Sent()
}

func (b *Bot) ClearSent() {
	b.Backend.ClearSent()
}

// Hostmask returns a hostmask for nick.
func Hostmask(nick string) string {
	return fmt.Sprintf("%s!%s@example.com", nick, strings.ToLower(nick))
}
