package seen

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/plugin_manager"
	"github.com/jirwin/quirc/pkg/rules"
)

const seenKey = "seen"

// Sighting is the last channel message of a nick.
type Sighting struct {
	Nick    string    `json:"nick"`
	Time    time.Time `json:"time"`
	Channel string    `json:"channel"`
	Message string    `json:"message"`
	Action  bool      `json:"action,omitempty"`
}

func (s *Sighting) String() string {
	message := s.Message
	if s.Action {
		message = fmt.Sprintf("* %s %s", s.Nick, s.Message)
	}
	return fmt.Sprintf("I last saw %s %s in %s, saying: %s", s.Nick, humanize.Time(s.Time), s.Channel, message)
}

func recordHook(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	if !msg.Trigger.IsChannelMessage() {
		return rules.ErrNoLimit
	}

	s := &Sighting{
		Nick:    msg.Trigger.Nick,
		Time:    msg.Trigger.Time,
		Channel: msg.Trigger.Sender,
		Message: msg.Trigger.Plain,
		Action:  msg.Trigger.CTCP == "ACTION",
	}
	if err := msg.Helper.DB().SetNickValue(msg.Trigger.Nick, seenKey, s); err != nil {
		zap.L().Error("unable to record sighting", zap.String("nick", msg.Trigger.Nick), zap.Error(err))
		return err
	}
	return rules.ErrNoLimit
}

func seenCommand(ctx context.Context, msg *plugin_manager.TriggerMsg) error {
	nick := msg.Trigger.Group(3)
	if nick == "" {
		msg.Helper.Reply("Seen who?") //nolint:errcheck
		return rules.ErrNoLimit
	}

	if irc.RFC1459.Equal(nick, msg.Helper.Nick()) {
		return msg.Helper.Reply("I'm right here!")
	}
	if irc.RFC1459.Equal(nick, msg.Trigger.Nick) {
		return msg.Helper.Reply("I'm looking right at you.")
	}

	s := &Sighting{}
	ok, err := msg.Helper.DB().GetNickValue(nick, seenKey, s)
	if err != nil {
		return err
	}
	if !ok {
		return msg.Helper.Reply(fmt.Sprintf("Sorry, I haven't seen %s around.", nick))
	}

	return msg.Helper.Say(s.String())
}

func Register() plugin_manager.Plugin {
	return plugin_manager.MakePlugin(
		"seen",
		plugin_manager.WithHooks(
			plugin_manager.MakeHook(nil, recordHook,
				rules.WithLabel("record"),
				rules.WithPriority(rules.PriorityLow),
				rules.WithThreaded(false),
				rules.WithUnblockable(),
			),
		),
		plugin_manager.WithCommands(
			plugin_manager.MakeCommand("seen", seenCommand,
				rules.WithDoc("Reports when and where a nick last spoke."),
				rules.WithExamples(rules.Example{Text: ".seen Alice"}),
			),
		),
	)
}
