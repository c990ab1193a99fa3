package plugin_manager

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/data_store"
	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/irc_manager"
	"github.com/jirwin/quirc/pkg/rules"
	"github.com/jirwin/quirc/pkg/trigger"
)

var (
	// ErrNoDestination is returned when a message has no explicit destination and no trigger to
	// answer to.
	ErrNoDestination = errors.New("no destination for message")
	ErrNotAChannel   = errors.New("not a channel")
)

// PluginHelper is handed to plugins. Inside a rule call it is bound to the trigger, so messages
// default to the channel or nick the trigger came from.
type PluginHelper interface {
	Say(text string) error
	SayTo(dest, text string) error
	SayLong(dest, text string, maxMessages int, truncation, trailing string) error
	Reply(text string) error
	Notice(text string) error
	NoticeTo(dest, text string) error
	Action(text string) error
	ActionTo(dest, text string) error
	Kick(nick, message string) error
	Join(channel, password string) error
	Part(channel, message string) error
	Mode(target string, modes ...string) error
	ChangeNick(nick string) error
	Write(args ...string) error

	Nick() string
	GetChannel(name string) (irc_manager.Channel, bool)
	GetUser(nick string) (irc_manager.User, bool)
	HasChannelPrivilege(channel, nick string, priv irc.Privilege) bool

	Store() data_store.PluginStore
	DB() data_store.DataStore
	Memory() *Memory
	Settings() *config.Settings
	Setting(option, def string) string

	Commands() []*rules.Rule
	Plugins() []string
	ReloadPlugin(id string) error
	StopBot(message string)

	Trigger() *trigger.Trigger
	Logger() *zap.Logger
	Uptime() time.Duration
}

type pluginHelper struct {
	m        *ManagerImpl
	l        *zap.Logger
	pluginID string
	trigger  *trigger.Trigger
	rule     *rules.Rule
}

func (p *pluginHelper) outputPrefix() string {
	if p.rule == nil {
		return ""
	}
	return p.rule.OutputPrefix()
}

// destination is the trigger's channel, with its status prefix, or the nick for private messages.
func (p *pluginHelper) destination() (string, error) {
	if p.trigger == nil || p.trigger.Sender == "" {
		return "", ErrNoDestination
	}
	return p.trigger.StatusPrefix + p.trigger.Sender, nil
}

func (p *pluginHelper) Say(text string) error {
	dest, err := p.destination()
	if err != nil {
		return err
	}
	return p.SayTo(dest, text)
}

func (p *pluginHelper) SayTo(dest, text string) error {
	return p.SayLong(dest, text, 1, "", "")
}

// SayLong sends text split over up to maxMessages lines.
func (p *pluginHelper) SayLong(dest, text string, maxMessages int, truncation, trailing string) error {
	if dest == "" {
		return ErrNoDestination
	}
	return p.m.ircManager.Say(p.outputPrefix()+text, dest, maxMessages, truncation, trailing)
}

// Reply addresses the trigger's nick in the trigger's channel.
func (p *pluginHelper) Reply(text string) error {
	dest, err := p.destination()
	if err != nil {
		return err
	}
	return p.m.ircManager.Reply(text, dest, p.trigger.Nick, false)
}

func (p *pluginHelper) Notice(text string) error {
	dest, err := p.destination()
	if err != nil {
		return err
	}
	return p.NoticeTo(dest, text)
}

func (p *pluginHelper) NoticeTo(dest, text string) error {
	if dest == "" {
		return ErrNoDestination
	}
	return p.m.ircManager.Notice(p.outputPrefix()+text, dest)
}

func (p *pluginHelper) Action(text string) error {
	dest, err := p.destination()
	if err != nil {
		return err
	}
	return p.ActionTo(dest, text)
}

func (p *pluginHelper) ActionTo(dest, text string) error {
	if dest == "" {
		return ErrNoDestination
	}
	return p.m.ircManager.Action(text, dest)
}

// Kick removes nick from the trigger's channel.
func (p *pluginHelper) Kick(nick, message string) error {
	if p.trigger == nil || p.trigger.Sender == "" {
		return ErrNoDestination
	}
	if !p.trigger.IsChannelMessage() {
		return fmt.Errorf("%w: %s", ErrNotAChannel, p.trigger.Sender)
	}
	return p.m.ircManager.Kick(p.trigger.Sender, nick, message)
}

func (p *pluginHelper) Join(channel, password string) error {
	return p.m.ircManager.Join(channel, password)
}

func (p *pluginHelper) Part(channel, message string) error {
	return p.m.ircManager.Part(channel, message)
}

func (p *pluginHelper) Mode(target string, modes ...string) error {
	return p.m.ircManager.Mode(target, modes...)
}

func (p *pluginHelper) ChangeNick(nick string) error {
	return p.m.ircManager.ChangeNick(nick)
}

func (p *pluginHelper) Write(args ...string) error {
	return p.m.ircManager.Write(args...)
}

func (p *pluginHelper) Nick() string {
	return p.m.ircManager.Nick()
}

func (p *pluginHelper) GetChannel(name string) (irc_manager.Channel, bool) {
	return p.m.ircManager.GetChannel(name)
}

func (p *pluginHelper) GetUser(nick string) (irc_manager.User, bool) {
	return p.m.ircManager.GetUser(nick)
}

func (p *pluginHelper) HasChannelPrivilege(channel, nick string, priv irc.Privilege) bool {
	return p.m.ircManager.HasPrivilege(channel, nick, priv)
}

func (p *pluginHelper) Store() data_store.PluginStore {
	return p.m.dataStore.GetStore(p.pluginID)
}

func (p *pluginHelper) DB() data_store.DataStore {
	return p.m.dataStore
}

func (p *pluginHelper) Memory() *Memory {
	return p.m.memory
}

func (p *pluginHelper) Settings() *config.Settings {
	return p.m.settings
}

// Setting reads an option from the plugin's own section.
func (p *pluginHelper) Setting(option, def string) string {
	return p.m.settings.GetDefault(p.pluginID, option, def)
}

func (p *pluginHelper) Commands() []*rules.Rule {
	return p.m.Commands()
}

func (p *pluginHelper) Plugins() []string {
	return p.m.Plugins()
}

// ReloadPlugin reloads a plugin. It must not be called from a plugin's own webhook goroutine.
func (p *pluginHelper) ReloadPlugin(id string) error {
	return p.m.Reload(id)
}

// StopBot quits IRC, which shuts the bot down.
func (p *pluginHelper) StopBot(message string) {
	p.l.Info("stopping bot", zap.String("message", message))
	p.m.ircManager.Quit(message)
}

func (p *pluginHelper) Trigger() *trigger.Trigger {
	return p.trigger
}

func (p *pluginHelper) Logger() *zap.Logger {
	return p.l
}

func (p *pluginHelper) Uptime() time.Duration {
	return p.m.now().Sub(p.m.started)
}

func (m *ManagerImpl) newHelper(pluginID string, t *trigger.Trigger, rule *rules.Rule) *pluginHelper {
	return &pluginHelper{
		m:        m,
		l:        m.l.Named(fmt.Sprintf("plugin-helper-%s", pluginID)),
		pluginID: pluginID,
		trigger:  t,
		rule:     rule,
	}
}
