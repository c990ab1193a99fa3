package ping

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

var greetings = []string{"Hi", "Hey", "Hello"}

func interjection(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return msg.Helper.Say(msg.Trigger.Nick + "!")
}

func greeting(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return msg.Helper.Say(fmt.Sprintf("%s %s", greetings[rand.Intn(len(greetings))], msg.Trigger.Nick))
}

func pingCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return msg.Helper.Reply("Pong!")
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"ping",
		plugin_manager.WithHooks(
			plugin_manager.MakeHook([]string{`$nickname!\s*$`}, interjection,
				rules.WithLabel("interjection"),
				rules.WithPriority(rules.PriorityHigh),
				rules.WithThreaded(false),
			),
			plugin_manager.MakeHook([]string{`(?:hi|hello|hey)[,!]?\s+$nickname[\s!.]*$`}, greeting,
				rules.WithLabel("greeting"),
			),
		),
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("ping", pingCommand,
				rules.WithDoc("Checks that the bot is listening."),
				rules.WithExamples(rules.Example{Text: ".ping", Results: []string{"Pong!"}}),
			),
		),
	)
}
