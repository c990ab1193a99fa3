package resp

import (
	"context"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const defaultReallyDelay = "45s"

var farewells = []string{"bye!", "bye", "see ya", "see ya!"}

func byeHook(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return msg.Helper.Say(farewells[rand.Intn(len(farewells))])
}

func welcomeBackHook(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return msg.Helper.Reply("Thank you!")
}

// reallyHook answers after a random pause of up to [resp] really_delay.
func reallyHook(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	maxDelay, err := time.ParseDuration(msg.Helper.Setting("really_delay", defaultReallyDelay))
	if err != nil {
		zap.L().Warn("invalid really_delay", zap.Error(err))
		maxDelay, _ = time.ParseDuration(defaultReallyDelay)
	}

	if maxDelay > 0 {
		t := time.NewTimer(time.Duration(rand.Int63n(int64(maxDelay))))
		defer t.Stop()

		select {
		case <-t.C:
		case <-ctx.Done():
			return nil
		}
	}

	return msg.Helper.Reply("Yes, really.")
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"resp",
		plugin_manager.WithHooks(
			plugin_manager.MakeHook([]string{`(?:g2g!?|bye!?)$`}, byeHook,
				rules.WithLabel("bye"),
				rules.WithPriority(rules.PriorityHigh),
			),
			plugin_manager.MakeHook([]string{`(?:wb|welcome\sback).*$nickname(?:\s|$)`}, welcomeBackHook,
				rules.WithLabel("wb"),
			),
			plugin_manager.MakeHook([]string{`$nickname:\s+really!?$`}, reallyHook,
				rules.WithLabel("really"),
				rules.WithPriority(rules.PriorityHigh),
			),
		),
	)
}
