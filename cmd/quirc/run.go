package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli"
	"go.uber.org/zap"

	quirc "github.com/jirwin/quirc/pkg"
	"github.com/jirwin/quirc/pkg/builtin_plugins"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/uzap"
)

func run(c *cli.Context) error {
	settings, err := loadSettings(c)
	if err != nil {
		return err
	}

	lc, err := uzap.NewConfig(settings)
	if err != nil {
		return err
	}
	if c.GlobalBool("dev") {
		lc.Dev = true
	}
	l, err := uzap.New(lc)
	if err != nil {
		return err
	}
	defer l.Sync() //nolint:errcheck
	zap.ReplaceGlobals(l)

	bot, err := quirc.NewQuirc(settings, l)
	if err != nil {
		l.Error("error creating bot", zap.Error(err))
		return cli.NewExitError(err.Error(), 1)
	}

	for _, p := range builtin_plugins.All() {
		err := bot.RegisterPlugin(p)
		if errors.Is(err, plugin_manager.ErrPluginDisabled) {
			continue
		}
		if err != nil {
			l.Error("error registering plugin", zap.String("plugin_id", p.GetId()), zap.Error(err))
			bot.Stop()
			return cli.NewExitError(err.Error(), 1)
		}
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(signals)

	if err := bot.Start(context.Background()); err != nil {
		return err
	}

	select {
	case sig := <-signals:
		l.Info("received signal, quitting", zap.String("signal", sig.String()))
		bot.Stop()
	case <-bot.Done():
	}

	if err := bot.Err(); err != nil {
		l.Error("bot stopped with error", zap.Error(err))
		return cli.NewExitError(err.Error(), 1)
	}
	return nil
}
