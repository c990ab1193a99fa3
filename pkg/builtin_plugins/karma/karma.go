package karma

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

func scoreCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	item := strings.TrimSpace(msg.Trigger.Group(2))
	if item == "" {
		msg.Helper.Reply("I need a name to look up the score for.") //nolint:errcheck
		return rules.ErrNoLimit
	}

	score := "0"
	err := msg.Helper.Store().Get(strings.ToLower(item), func(val []byte) error {
		if val != nil {
			score = string(val)
		}
		return nil
	})
	if err != nil {
		zap.L().Error("unable to get score", zap.Error(err))
		return fmt.Errorf("unable to fetch score for %s: %w", item, err)
	}

	return msg.Helper.Say(fmt.Sprintf("Score for %s is %s", item, score))
}

var (
	ppRegex = regexp.MustCompile(`.+\+\+$`)
	mmRegex = regexp.MustCompile(".+--$")
)

func adjust(store data_store.PluginStore, item string, delta int) error {
	return store.GetAndUpdate(strings.ToLower(item), func(val []byte) ([]byte, error) {
		if val == nil {
			return []byte(strconv.Itoa(delta)), nil
		}

		karma, err := strconv.Atoi(string(val))
		if err != nil {
			return nil, err
		}

		return []byte(strconv.Itoa(karma + delta)), nil
	})
}

func karmaHook(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	store := msg.Helper.Store()

	for _, t := range strings.Fields(msg.Trigger.Plain) {
		delta := 0
		switch {
		case ppRegex.MatchString(t):
			delta = 1
		case mmRegex.MatchString(t):
			delta = -1
		default:
			continue
		}

		item := t[:len(t)-2]
		if delta > 0 && strings.EqualFold(item, msg.Trigger.Nick) {
			continue
		}

		if err := adjust(store, item, delta); err != nil {
			zap.L().Error("error updating karma", zap.String("token", t), zap.Error(err))
		}
	}

	return rules.ErrNoLimit
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"karma",
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("score", scoreCommand,
				rules.WithDoc("Shows the karma of something."),
				rules.WithExamples(rules.Example{Text: ".score gophers", Results: []string{"Score for gophers is 3"}}),
			),
		),
		plugin_manager.WithHooks(
			plugin_manager.MakeSearchHook([]string{`\S+(?:\+\+|--)(?:\s|$)`}, karmaHook,
				rules.WithLabel("karma"),
				rules.WithThreaded(false),
			),
		),
	)
}
