package uptime

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

// formatDuration spells out d down to the second, e.g. "1 day, 2 hours and 5 seconds".
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return "less than a second"
	}

	units := []struct {
		size time.Duration
		name string
	}{
		{24 * time.Hour, "day"},
		{time.Hour, "hour"},
		{time.Minute, "minute"},
		{time.Second, "second"},
	}

	parts := []string{}
	for _, u := range units {
		n := int(d / u.size)
		d -= time.Duration(n) * u.size
		if n > 0 {
			parts = append(parts, english.Plural(n, u.name, ""))
		}
	}
	return english.WordSeries(parts, "and")
}

func uptimeCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	return msg.Helper.Say(fmt.Sprintf("I've been sitting here for %s and I keep going!", formatDuration(msg.Helper.Uptime())))
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"uptime",
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("uptime", uptimeCommand,
				rules.WithDoc("Tells how long the bot has been running."),
				rules.WithExamples(rules.Example{Text: ".uptime"}),
			),
		),
	)
}
