package bot

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/irc_manager"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/webhook_manager"
)

type Config struct {
	WatchSettings bool
	QuitMessage   string
}

func NewConfig(settings *config.Settings) (Config, error) {
	c := Config{
		WatchSettings: settings.Path() != "",
		QuitMessage:   settings.GetDefault("core", "quit_message", "Quitting"),
	}

	return c, nil
}

type QuircBot struct {
	l              *zap.Logger
	c              Config
	settings       *config.Settings
	ircManager     irc_manager.Manager
	pluginManager  plugin_manager.Manager
	webhookManager webhook_manager.Manager
	dataStore      data_store.DataStore

	mtx    sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Start runs the managers in the background. The bot stops when the IRC connection is given up,
// when ctx is cancelled or when Stop is called; Done is closed once everything has shut down.
func (q *QuircBot) Start(ctx context.Context) error {
	q.mtx.Lock()
	if q.cancel != nil {
		q.mtx.Unlock()
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	q.mtx.Unlock()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		q.webhookManager.Run(gctx)
		return nil
	})

	g.Go(func() error {
		q.pluginManager.Run(gctx)
		return nil
	})

	g.Go(func() error {
		defer cancel()
		if err := q.ircManager.Start(gctx); err != nil {
			q.l.Error("irc connection failed", zap.Error(err))
			return err
		}
		return nil
	})

	if q.c.WatchSettings {
		g.Go(func() error {
			if err := q.settings.Watch(gctx, q.l, q.settingsChanged); err != nil {
				q.l.Warn("not watching settings", zap.Error(err))
			}
			return nil
		})
	}

	go func() {
		err := g.Wait()
		q.dataStore.Close()

		q.mtx.Lock()
		q.err = err
		q.mtx.Unlock()

		close(q.done)
		q.l.Info("bot stopped")
	}()

	return nil
}

// settingsChanged applies the settings that can change while connected.
func (q *QuircBot) settingsChanged(settings *config.Settings) {
	c, err := irc_manager.NewConfig(settings)
	if err != nil {
		q.l.Error("invalid settings", zap.Error(err))
		return
	}
	q.ircManager.SetIdentity(c.Identity)
}

// Stop quits IRC and waits for the bot to shut down.
func (q *QuircBot) Stop() {
	q.mtx.Lock()
	started := q.cancel != nil
	q.mtx.Unlock()

	if !started {
		q.dataStore.Close()
		return
	}

	q.ircManager.Quit(q.c.QuitMessage)
	<-q.done
}

func (q *QuircBot) Done() <-chan struct{} {
	return q.done
}

// Err returns the error the bot stopped with, once Done is closed.
func (q *QuircBot) Err() error {
	q.mtx.Lock()
	defer q.mtx.Unlock()

	return q.err
}

func (q *QuircBot) RegisterPlugin(plugin interface{}) error {
	return q.pluginManager.Register(plugin)
}

func New(
	c Config,
	l *zap.Logger,
	settings *config.Settings,
	ircManager irc_manager.Manager,
	pluginManager plugin_manager.Manager,
	webhookManager webhook_manager.Manager,
	dataStore data_store.DataStore,
) (*QuircBot, error) {
	q := &QuircBot{
		c:              c,
		l:              l.Named("quirc-bot"),
		settings:       settings,
		ircManager:     ircManager,
		pluginManager:  pluginManager,
		webhookManager: webhookManager,
		dataStore:      dataStore,
		done:           make(chan struct{}),
	}

	return q, nil
}
