package help

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

func findCommand(commands []*rules.Rule, name string) (*rules.Rule, bool) {
	for _, r := range commands {
		if strings.EqualFold(r.Name(), name) {
			return r, true
		}
	}
	for _, r := range commands {
		if r.HasAlias(name) {
			return r, true
		}
	}
	return nil, false
}

// commandLines returns one "plugin: command, command" line per plugin, sorted by plugin.
func commandLines(commands []*rules.Rule) []string {
	byPlugin := make(map[string][]string)
	for _, r := range commands {
		byPlugin[r.Plugin()] = append(byPlugin[r.Plugin()], r.Name())
	}

	plugins := make([]string, 0, len(byPlugin))
	for p := range byPlugin {
		plugins = append(plugins, p)
	}
	sort.Strings(plugins)

	lines := make([]string, 0, len(plugins))
	for _, p := range plugins {
		names := byPlugin[p]
		sort.Strings(names)
		lines = append(lines, fmt.Sprintf("%s: %s", strings.ToUpper(p), strings.Join(names, ", ")))
	}
	return lines
}

func helpCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	name := msg.Trigger.Group(3)
	if name == "" {
		return commandsCommand(ctx, msg)
	}
	name = strings.TrimPrefix(name, msg.Helper.Settings().Core().HelpPrefix)

	r, ok := findCommand(msg.Helper.Commands(), name)
	if !ok {
		msg.Helper.Reply(fmt.Sprintf("Sorry, I don't know the %s command.", name)) //nolint:errcheck
		return rules.ErrNoLimit
	}

	doc := r.Doc()
	if doc == "" {
		doc = fmt.Sprintf("No documentation for %s.", r.Name())
	}
	if err := msg.Helper.Reply(doc); err != nil {
		return err
	}

	for _, usage := range r.Usages() {
		if err := msg.Helper.Say("e.g. " + usage.Text); err != nil {
			return err
		}
	}

	if aliases := r.Aliases(); len(aliases) > 0 {
		return msg.Helper.Say("Aliases: " + strings.Join(aliases, ", "))
	}
	return nil
}

func commandsCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	nick := msg.Trigger.Nick
	if msg.Trigger.IsChannelMessage() {
		if err := msg.Helper.Reply("I am sending you a private message of all my commands!"); err != nil {
			return err
		}
	}

	for _, line := range commandLines(msg.Helper.Commands()) {
		if err := msg.Helper.SayTo(nick, line); err != nil {
			return err
		}
	}

	prefix := msg.Helper.Settings().Core().HelpPrefix
	return msg.Helper.SayTo(nick, fmt.Sprintf("For help, do '%shelp example' where example is the name of the command you want help for.", prefix))
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"help",
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("help", helpCommand,
				rules.WithAliases("doc"),
				rules.WithPriority(rules.PriorityLow),
				rules.WithDoc("Shows a command's documentation and usage. Without a command, lists every command."),
				rules.WithExamples(rules.Example{Text: ".help echo", IsHelp: true}),
			),
			plugin_manager.MakeCommand("commands", commandsCommand,
				rules.WithPriority(rules.PriorityLow),
				rules.WithDoc("Sends you a private message listing every command."),
				rules.WithExamples(rules.Example{Text: ".commands"}),
			),
		),
	)
}
