package bot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store/factory"
	"github.com/jirwin/quirc/pkg/irc_manager"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/webhook_manager"
)

func contains(lines []string, want string) bool {
	for _, l := range lines {
		if l == want {
			return true
		}
	}
	return false
}

func writeSettings(t *testing.T, path, owner string) {
	data := "[core]\nnick = Quirc\nowner = " + owner + "\nquit_message = bye\nhomedir = " + filepath.Dir(path) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))
}

func newBot(t *testing.T, settings *config.Settings) (*QuircBot, *irc_manager.MockBackend, *irc_manager.ManagerImpl) {
	l := zap.NewNop()

	store, err := factory.New(settings, l)
	require.NoError(t, err)

	ic, err := irc_manager.NewConfig(settings)
	require.NoError(t, err)
	ic.Flood = irc_manager.FloodConfig{BurstLines: 1000, RefillRate: 1000}
	backend := irc_manager.NewMockBackend()
	ircManager, err := irc_manager.New(ic, l, backend)
	require.NoError(t, err)

	wc, err := webhook_manager.NewConfig(settings)
	require.NoError(t, err)
	webhooks, err := webhook_manager.New(wc, l)
	require.NoError(t, err)

	pc, err := plugin_manager.NewConfig(settings)
	require.NoError(t, err)
	plugins, err := plugin_manager.New(pc, l, settings, ircManager, webhooks, store)
	require.NoError(t, err)

	c, err := NewConfig(settings)
	require.NoError(t, err)
	q, err := New(c, l, settings, ircManager, plugins, webhooks, store)
	require.NoError(t, err)

	return q, backend, ircManager
}

func TestNewConfig(t *testing.T) {
	settings, err := config.Parse("[core]\nnick = Quirc\n", config.WithEnviron(func() []string { return nil }))
	require.NoError(t, err)

	c, err := NewConfig(settings)
	require.NoError(t, err)
	require.False(t, c.WatchSettings)
	require.Equal(t, "Quitting", c.QuitMessage)
}

func TestStartAndStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := filepath.Join(t.TempDir(), "default.cfg")
	writeSettings(t, path, "Boss")
	settings, err := config.Load(path, config.WithEnviron(func() []string { return nil }))
	require.NoError(t, err)

	q, backend, ircManager := newBot(t, settings)

	stopped := make(chan struct{})
	require.NoError(t, q.RegisterPlugin(plugin_manager.MakePlugin("hello",
		plugin_manager.WithCommands(plugin_manager.MakeCommand("hello", func(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
			return msg.Helper.Say("hi " + msg.Trigger.Nick)
		})),
		plugin_manager.WithShutdown(func(helper plugin_manager.PluginHelper) {
			close(stopped)
		}),
	)))

	require.NoError(t, q.Start(context.Background()))

	require.Eventually(t, func() bool {
		return contains(backend.Sent(), "USER quirc 0 * :Quirc IRC bot")
	}, time.Second, 5*time.Millisecond)

	backend.Feed(
		":irc.example.com CAP * LS :multi-prefix",
		":irc.example.com CAP * ACK :multi-prefix",
		":irc.example.com 001 Quirc :Welcome",
		":Alice!alice@example.com PRIVMSG #test :.hello",
	)
	require.Eventually(t, func() bool {
		return contains(backend.Sent(), "PRIVMSG #test :hi Alice")
	}, time.Second, 5*time.Millisecond)

	writeSettings(t, path, "NewBoss")
	require.Eventually(t, func() bool {
		return ircManager.Identity().Owner == "NewBoss"
	}, 5*time.Second, 10*time.Millisecond)

	q.Stop()

	select {
	case <-q.Done():
	default:
		t.Fatal("bot not done after Stop")
	}
	require.NoError(t, q.Err())
	require.True(t, contains(backend.Sent(), "QUIT :bye"))

	select {
	case <-stopped:
	default:
		t.Fatal("plugin not shut down")
	}
}

func TestContextCancel(t *testing.T) {
	defer goleak.VerifyNone(t)

	settings, err := config.Parse("[core]\nnick = Quirc\nhomedir = "+t.TempDir()+"\n",
		config.WithEnviron(func() []string { return nil }))
	require.NoError(t, err)

	q, _, _ := newBot(t, settings)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, q.Start(ctx))
	cancel()

	select {
	case <-q.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop")
	}
	require.NoError(t, q.Err())
}
