package remind

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/karrick/tparse/v2"
	uuid "github.com/satori/go.uuid"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const (
	checkInterval = 2500 * time.Millisecond
	timeLayout    = "2006-01-02 15:04:05 MST"
	maxPending    = 20
)

// Reminder is stored as JSON under a random id in the plugin's store.
type Reminder struct {
	Nick    string    `json:"nick"`
	Dest    string    `json:"dest"`
	Message string    `json:"message"`
	Due     time.Time `json:"due"`
	Created time.Time `json:"created"`
}

type reminders struct {
	now func() time.Time
}

func (r *reminders) inCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	when := msg.Trigger.Group(3)
	text := strings.TrimSpace(strings.TrimPrefix(msg.Trigger.Group(2), when))
	if when == "" || text == "" {
		msg.Helper.Reply("Usage: in <duration> <message>, e.g. in 1h30m check the oven") //nolint:errcheck
		return rules.ErrNoLimit
	}

	now := r.now().UTC()
	due, err := tparse.AddDuration(now, when)
	if err != nil || !due.After(now) {
		msg.Helper.Reply(fmt.Sprintf("Sorry, I don't understand the duration '%s'.", when)) //nolint:errcheck
		return rules.ErrNoLimit
	}

	pending, err := r.pending(msg.Helper.Store(), msg.Trigger.Nick)
	if err != nil {
		return err
	}
	if len(pending) >= maxPending {
		return msg.Helper.Reply("You have too many reminders already.")
	}

	reminder := &Reminder{
		Nick:    msg.Trigger.Nick,
		Dest:    msg.Trigger.Sender,
		Message: text,
		Due:     due,
		Created: now,
	}
	data, err := data_store.Encode(reminder)
	if err != nil {
		return err
	}
	if err := msg.Helper.Store().Update(uuid.NewV4().String(), data); err != nil {
		return err
	}

	return msg.Helper.Reply(fmt.Sprintf("Okay, I will remind you at %s.", due.Format(timeLayout)))
}

// pending returns the reminders of nick, or every reminder when nick is empty, sorted by due time.
func (r *reminders) pending(store data_store.PluginStore, nick string) (map[string]*Reminder, error) {
	out := make(map[string]*Reminder)
	err := store.ForEach(func(key string, value []byte) error {
		reminder := &Reminder{}
		if _, err := data_store.Decode(value, reminder); err != nil {
			zap.L().Warn("skipping unreadable reminder", zap.String("key", key), zap.Error(err))
			return nil
		}
		if nick == "" || strings.EqualFold(reminder.Nick, nick) {
			out[key] = reminder
		}
		return nil
	})
	return out, err
}

func (r *reminders) remindersCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	pending, err := r.pending(msg.Helper.Store(), msg.Trigger.Nick)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return msg.Helper.Reply("You have no reminders.")
	}

	dues := make([]string, 0, len(pending))
	for _, reminder := range pending {
		dues = append(dues, reminder.Due.Format(timeLayout))
	}
	sort.Strings(dues)
	return msg.Helper.Reply(fmt.Sprintf("You have %d reminder(s), next at %s.", len(pending), dues[0]))
}

// fire sends every reminder that is due and removes it.
func (r *reminders) fire(ctx context.Context, helper plugin_manager.PluginHelper) error {
	store := helper.Store()
	pending, err := r.pending(store, "")
	if err != nil {
		return err
	}

	now := r.now()
	due := make([]string, 0, len(pending))
	for key, reminder := range pending {
		if !reminder.Due.After(now) {
			due = append(due, key)
		}
	}
	sort.Slice(due, func(i, j int) bool {
		return pending[due[i]].Due.Before(pending[due[j]].Due)
	})

	for _, key := range due {
		reminder := pending[key]
		if err := helper.SayTo(reminder.Dest, fmt.Sprintf("%s: %s", reminder.Nick, reminder.Message)); err != nil {
			return err
		}
		if err := store.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func newPlugin(now func() time.Time) plugin_manager.Plugin {
	r := &reminders{now: now}

	return plugin_manager.MakePlugin(
		"remind",
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("in", r.inCommand,
				rules.WithDoc("Reminds you of something after a duration such as 10m, 1h30m or 2d."),
				rules.WithExamples(rules.Example{Text: ".in 10m check the oven"}),
			),
			plugin_manager.MakeCommand("reminders", r.remindersCommand,
				rules.WithDoc("Tells how many reminders you have pending."),
				rules.WithExamples(rules.Example{Text: ".reminders"}),
			),
		),
		plugin_manager.WithJobs(
			plugin_manager.MakeJob("fire-reminders", []time.Duration{checkInterval}, false, r.fire),
		),
	)
}

func Register() plugin_manager.Plugin {
	return newPlugin(time.Now)
}
