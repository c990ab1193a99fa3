//go:build wireinject
// +build wireinject

package quirc

import (
	"github.com/google/wire"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/bot"
	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store/factory"
	"github.com/jirwin/quirc/pkg/irc_manager"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/webhook_manager"
)

func NewQuirc(settings *config.Settings, l *zap.Logger) (*bot.QuircBot, error) {
	wire.Build(
		factory.New,

		irc_manager.Wired,
		wire.Bind(new(irc_manager.Manager), new(*irc_manager.ManagerImpl)),

		webhook_manager.Wired,
		wire.Bind(new(webhook_manager.Manager), new(*webhook_manager.ManagerImpl)),

		plugin_manager.Wired,
		wire.Bind(new(plugin_manager.Manager), new(*plugin_manager.ManagerImpl)),

		bot.Wired,
	)
	return nil, nil
}
