package echo

import (
	"context"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

func echoCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	text := msg.Trigger.Group(2)
	if text == "" {
		return rules.ErrNoLimit
	}

	return msg.Helper.Say(text)
}

func echoAction(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return msg.Helper.Action(msg.Trigger.Plain)
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"echo",
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("echo", echoCommand,
				rules.WithDoc("Repeats the given text."),
				rules.WithExamples(rules.Example{Text: ".echo hello", Results: []string{"hello"}}),
			),
			plugin_manager.MakeActionCommand("echoes", echoAction,
				rules.WithDoc("Echoes an action back."),
			),
		),
	)
}
