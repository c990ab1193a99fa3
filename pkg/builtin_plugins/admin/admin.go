package admin

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const defaultQuitMessage = "Quitting on command from %s"

type level int

const (
	levelAdmin level = iota
	levelOwner
)

func allowed(msg *plugin_manager.TriggerMsg, lvl level) bool {
	switch lvl {
	case levelOwner:
		return msg.Trigger.Owner
	default:
		return msg.Trigger.Admin
	}
}

// gated wraps a handler so it only runs for admins or the owner. Everyone else is ignored.
func gated(lvl level, privateOnly bool, handler plugin_manager.Handler) plugin_manager.Handler {
	return func(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
		if !allowed(msg, lvl) {
			zap.L().Info("ignoring admin command", zap.String("nick", msg.Trigger.Nick), zap.String("command", msg.Trigger.Group(1)))
			return rules.ErrNoLimit
		}
		if privateOnly && msg.Trigger.IsChannelMessage() {
			msg.Helper.Reply("Please use that command in a private message.") //nolint:errcheck
			return rules.ErrNoLimit
		}
		return handler(ctx, msg)
	}
}

func joinCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	channel, key := msg.Trigger.Group(3), msg.Trigger.Group(4)
	if channel == "" {
		return msg.Helper.Reply("Which channel?")
	}
	return msg.Helper.Join(channel, key)
}

func partCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	channel := msg.Trigger.Group(3)
	if channel == "" {
		if !msg.Trigger.IsChannelMessage() {
			return msg.Helper.Reply("Which channel?")
		}
		channel = msg.Trigger.Sender
	}

	reason := strings.TrimSpace(strings.TrimPrefix(msg.Trigger.Group(2), channel))
	return msg.Helper.Part(channel, reason)
}

func quitCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	reason := msg.Trigger.Group(2)
	if reason == "" {
		reason = fmt.Sprintf(defaultQuitMessage, msg.Trigger.Nick)
	}
	msg.Helper.StopBot(reason)
	return nil
}

func sayCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	dest := msg.Trigger.Group(3)
	text := strings.TrimSpace(strings.TrimPrefix(msg.Trigger.Group(2), dest))
	if dest == "" || text == "" {
		return msg.Helper.Reply("Usage: say <channel|nick> <message>")
	}
	return msg.Helper.SayTo(dest, text)
}

func meCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	dest := msg.Trigger.Group(3)
	text := strings.TrimSpace(strings.TrimPrefix(msg.Trigger.Group(2), dest))
	if dest == "" || text == "" {
		return msg.Helper.Reply("Usage: me <channel|nick> <action>")
	}
	return msg.Helper.ActionTo(dest, text)
}

func modeCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	fields := strings.Fields(msg.Trigger.Group(2))
	if len(fields) == 0 {
		return msg.Helper.Reply("Usage: mode [target] <modes> [params]")
	}

	target := msg.Helper.Nick()
	if strings.ContainsAny(fields[0][:1], "#&") && len(fields) > 1 {
		target, fields = fields[0], fields[1:]
	}
	return msg.Helper.Mode(target, fields...)
}

func nickCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	nick := msg.Trigger.Group(3)
	if nick == "" {
		return msg.Helper.Reply("Usage: nick <new nick>")
	}
	return msg.Helper.ChangeNick(nick)
}

// splitOption parses "section.option", where the section defaults to core.
func splitOption(arg string) (string, string) {
	if i := strings.Index(arg, "."); i >= 0 {
		return arg[:i], arg[i+1:]
	}
	return "core", arg
}

func setCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	arg := msg.Trigger.Group(3)
	if arg == "" {
		return msg.Helper.Reply("Usage: set section.option value")
	}
	section, option := splitOption(arg)
	value := strings.TrimSpace(strings.TrimPrefix(msg.Trigger.Group(2), arg))

	if value == "" {
		value, err := msg.Helper.Settings().Get(section, option)
		if err != nil {
			return msg.Helper.Reply(fmt.Sprintf("%s.%s is not set.", section, option))
		}
		if strings.Contains(option, "password") || strings.Contains(option, "secret") {
			value = "(password censored)"
		}
		return msg.Helper.Reply(fmt.Sprintf("%s.%s = %s", section, option, value))
	}

	if err := msg.Helper.Settings().Set(section, option, value); err != nil {
		return err
	}
	return msg.Helper.Reply(fmt.Sprintf("Set %s.%s.", section, option))
}

func unsetCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	arg := msg.Trigger.Group(3)
	if arg == "" {
		return msg.Helper.Reply("Usage: unset section.option")
	}
	section, option := splitOption(arg)

	removed, err := msg.Helper.Settings().Unset(section, option)
	if err != nil && !errors.Is(err, config.ErrNoSection) {
		return err
	}
	if !removed {
		return msg.Helper.Reply(fmt.Sprintf("%s.%s is not set.", section, option))
	}
	return msg.Helper.Reply(fmt.Sprintf("Unset %s.%s.", section, option))
}

func saveCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	if err := msg.Helper.Settings().Save(); err != nil {
		return err
	}
	return msg.Helper.Reply("Configuration saved.")
}

func reloadCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	id := msg.Trigger.Group(3)
	if id == "" {
		return msg.Helper.Reply("Which plugin?")
	}
	if err := msg.Helper.ReloadPlugin(id); err != nil {
		zap.L().Error("error reloading plugin", zap.String("plugin", id), zap.Error(err))
		return msg.Helper.Reply(fmt.Sprintf("Unable to reload %s: %s", id, err))
	}
	return msg.Helper.Reply(fmt.Sprintf("Reloaded %s.", id))
}

func pluginsCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	ids := msg.Helper.Plugins()
	sort.Strings(ids)
	return msg.Helper.Say(fmt.Sprintf("Loaded plugins: %s", strings.Join(ids, ", ")))
}

func command(name string, lvl level, privateOnly bool, handler plugin_manager.Handler, opts ...rules.Option) *plugin_manager.Command {
	return plugin_manager.MakeCommand(name, gated(lvl, privateOnly, handler), append(opts, rules.WithPriority(rules.PriorityLow))...)
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"admin",
		plugin_manager.WithCommands(
			command("join", levelAdmin, false, joinCommand,
				rules.WithDoc("Joins a channel, with an optional key."),
				rules.WithExamples(rules.Example{Text: ".join #example", IsAdmin: true})),
			command("part", levelAdmin, false, partCommand,
				rules.WithDoc("Leaves a channel, the current one by default."),
				rules.WithExamples(rules.Example{Text: ".part #example see you", IsAdmin: true})),
			command("quit", levelOwner, false, quitCommand,
				rules.WithDoc("Disconnects the bot."),
				rules.WithExamples(rules.Example{Text: ".quit going away", IsOwner: true})),
			command("say", levelAdmin, false, sayCommand,
				rules.WithAliases("msg"),
				rules.WithDoc("Sends a message to a channel or nick."),
				rules.WithExamples(rules.Example{Text: ".say #example hello", IsAdmin: true})),
			command("me", levelAdmin, false, meCommand,
				rules.WithDoc("Sends an action to a channel or nick."),
				rules.WithExamples(rules.Example{Text: ".me #example waves", IsAdmin: true})),
			command("mode", levelAdmin, false, modeCommand,
				rules.WithDoc("Sets modes on a channel or on the bot."),
				rules.WithExamples(rules.Example{Text: ".mode #example +o Alice", IsAdmin: true})),
			command("nick", levelOwner, false, nickCommand,
				rules.WithDoc("Changes the bot's nick."),
				rules.WithExamples(rules.Example{Text: ".nick Quirc2", IsOwner: true})),
			command("set", levelOwner, true, setCommand,
				rules.WithAliases("get"),
				rules.WithDoc("Shows or changes a configuration value. Without a section the core section is used."),
				rules.WithExamples(rules.Example{Text: ".set core.prefix !", IsOwner: true, IsPrivateMessage: true})),
			command("unset", levelOwner, true, unsetCommand,
				rules.WithDoc("Removes a configuration value."),
				rules.WithExamples(rules.Example{Text: ".unset example.option", IsOwner: true, IsPrivateMessage: true})),
			command("save", levelOwner, false, saveCommand,
				rules.WithDoc("Writes the configuration file."),
				rules.WithExamples(rules.Example{Text: ".save", IsOwner: true})),
			command("reload", levelAdmin, false, reloadCommand,
				rules.WithDoc("Reloads a plugin."),
				rules.WithExamples(rules.Example{Text: ".reload karma", IsAdmin: true})),
			command("plugins", levelAdmin, false, pluginsCommand,
				rules.WithDoc("Lists the loaded plugins."),
				rules.WithExamples(rules.Example{Text: ".plugins", IsAdmin: true})),
		),
	)
}
