package irc_manager

import (
	"strings"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/metrics"
	"github.com/jirwin/quirc/pkg/trigger"
)

// whoxQueryType tags the WHOX requests sent on join so their replies can be recognized.
const whoxQueryType = "999"

type coreTask func(m *ManagerImpl, pre *trigger.PreTrigger)

var coreTasks = map[string]coreTask{
	"PING":         handlePing,
	"ERROR":        handleError,
	"001":          handleWelcome,
	"004":          handleMyInfo,
	"005":          handleISupport,
	"433":          handleNickInUse,
	"353":          handleNames,
	"332":          handleTopicReply,
	"324":          handleChannelModes,
	"352":          handleWho,
	"354":          handleWhox,
	"JOIN":         handleJoin,
	"PART":         handlePart,
	"KICK":         handleKick,
	"QUIT":         handleQuit,
	"NICK":         handleNick,
	"MODE":         handleMode,
	"TOPIC":        handleTopic,
	"ACCOUNT":      handleAccount,
	"AWAY":         handleAway,
	"CHGHOST":      handleChghost,
	"INVITE":       handleInvite,
	"CAP":          handleCap,
	"AUTHENTICATE": handleAuthenticate,
	"900":          handleSASLResult,
	"902":          handleSASLResult,
	"903":          handleSASLResult,
	"904":          handleSASLResult,
	"905":          handleSASLResult,
	"906":          handleSASLResult,
	"907":          handleSASLResult,
	"908":          handleSASLResult,
}

func arg(pre *trigger.PreTrigger, i int) string {
	if i < 0 || i >= len(pre.Args) {
		return ""
	}
	return pre.Args[i]
}

func handlePing(m *ManagerImpl, pre *trigger.PreTrigger) {
	m.send("PONG", pre.Text) //nolint:errcheck
}

func handleError(m *ManagerImpl, pre *trigger.PreTrigger) {
	m.l.Error("server closed the connection", zap.String("reason", pre.Text))
	m.backend.Close() //nolint:errcheck
}

func handleWelcome(m *ManagerImpl, pre *trigger.PreTrigger) {
	nick := arg(pre, 0)

	m.state.Lock()
	if nick != "" {
		m.state.nick = nick
	}
	m.state.registered = true
	m.state.Unlock()

	m.caps.Lock()
	m.caps.negotiating = false
	m.caps.Unlock()

	metrics.Connected.Set(1)
	m.l.Info("registered", zap.String("nick", m.Nick()))

	if m.c.Modes != "" {
		modes := m.c.Modes
		if !strings.HasPrefix(modes, "+") && !strings.HasPrefix(modes, "-") {
			modes = "+" + modes
		}
		m.send("MODE", m.Nick(), modes) //nolint:errcheck
	}

	if m.c.AuthMethod == config.AuthNickServ && m.c.AuthPassword != "" {
		target := m.c.AuthTarget
		if target == "" {
			target = "NickServ"
		}
		identify := "IDENTIFY " + m.c.AuthPassword
		if m.c.AuthUsername != "" {
			identify = "IDENTIFY " + m.c.AuthUsername + " " + m.c.AuthPassword
		}
		m.Write("PRIVMSG", target, identify) //nolint:errcheck
	}

	for _, channel := range m.c.Channels {
		name, key, _ := strings.Cut(strings.TrimSpace(channel), " ")
		if name == "" {
			continue
		}
		m.Join(name, strings.TrimSpace(key)) //nolint:errcheck
	}

	for _, cmd := range m.c.CommandsOnConnect {
		cmd = strings.ReplaceAll(cmd, "$nickname", m.Nick())
		m.writeLine(irc.Safe(cmd)) //nolint:errcheck
	}
}

func handleMyInfo(m *ManagerImpl, pre *trigger.PreTrigger) {
	m.state.Lock()
	defer m.state.Unlock()

	m.state.serverHostname = arg(pre, 1)
}

func handleISupport(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 3 {
		return
	}
	tokens := pre.Args[1 : len(pre.Args)-1]
	if irc.IsBounce(tokens) {
		return
	}

	is := m.ISupport()
	if err := is.Apply(tokens); err != nil {
		m.l.Warn("invalid ISUPPORT reply", zap.Error(err))
		return
	}
	m.state.setCaseMapping(is.CaseMapping())
}

// handleNickInUse retries registration with an underscore appended to the nick.
func handleNickInUse(m *ManagerImpl, pre *trigger.PreTrigger) {
	if m.Registered() {
		m.l.Warn("nick is already in use", zap.String("nick", arg(pre, 1)))
		return
	}

	m.state.Lock()
	m.state.nick += "_"
	nick := m.state.nick
	m.state.Unlock()

	m.l.Warn("nick is already in use, retrying", zap.String("nick", nick))
	m.send("NICK", nick) //nolint:errcheck
}

func (m *ManagerImpl) modeParser() *irc.ModeParser {
	is := m.ISupport()
	return irc.NewModeParser(is.ChanModes(), is.Prefix())
}

func handleNames(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 4 {
		return
	}
	channel := pre.Args[2]
	prefixes := m.ISupport().Prefix().Prefixes

	for _, name := range strings.Fields(pre.Text) {
		nick, priv := irc.SplitNamesPrefix(name, prefixes)
		nick, user, host := irc.SplitHostmask(nick)
		if nick == "" {
			continue
		}
		if !m.state.join(channel, nick, priv) {
			continue
		}
		if user != "" || host != "" {
			m.state.updateUser(nick, func(u *userState) {
				u.user = user
				u.host = host
			})
		}
	}
}

func handleJoin(m *ManagerImpl, pre *trigger.PreTrigger) {
	channel := arg(pre, 0)
	if channel == "" || pre.Nick == "" {
		return
	}

	self := m.CaseMapping().Equal(pre.Nick, m.Nick())
	if self {
		m.state.addChannel(channel, pre.Time)
		m.state.Lock()
		m.state.hostmask = pre.Hostmask
		m.state.Unlock()
	}

	if !m.state.join(channel, pre.Nick, 0) {
		return
	}

	account := ""
	realName := ""
	if len(pre.Args) >= 3 {
		account = pre.Args[1]
		realName = pre.Args[2]
	}
	m.state.updateUser(pre.Nick, func(u *userState) {
		u.user = pre.User
		u.host = pre.Host
		switch account {
		case "":
		case "*":
			u.account = ""
		default:
			u.account = account
		}
		if realName != "" {
			u.realName = realName
		}
	})

	if self {
		m.l.Info("joined channel", zap.String("channel", channel))
		m.send("MODE", channel) //nolint:errcheck
		if m.ISupport().Has("WHOX") {
			m.send("WHO", channel, "%tcuhnfar,"+whoxQueryType) //nolint:errcheck
		} else {
			m.send("WHO", channel) //nolint:errcheck
		}
	}
}

func handlePart(m *ManagerImpl, pre *trigger.PreTrigger) {
	channel := arg(pre, 0)
	if m.CaseMapping().Equal(pre.Nick, m.Nick()) {
		m.l.Info("left channel", zap.String("channel", channel))
		m.state.removeChannel(channel)
		return
	}
	m.state.part(channel, pre.Nick)
}

func handleKick(m *ManagerImpl, pre *trigger.PreTrigger) {
	channel := arg(pre, 0)
	nick := arg(pre, 1)
	if m.CaseMapping().Equal(nick, m.Nick()) {
		m.l.Warn("kicked from channel", zap.String("channel", channel), zap.String("by", pre.Nick), zap.String("reason", pre.Text))
		m.state.removeChannel(channel)
		return
	}
	m.state.part(channel, nick)
}

func handleQuit(m *ManagerImpl, pre *trigger.PreTrigger) {
	m.state.quit(pre.Nick)
}

func handleNick(m *ManagerImpl, pre *trigger.PreTrigger) {
	newNick := arg(pre, 0)
	if newNick == "" || pre.Nick == "" {
		return
	}
	m.state.rename(pre.Nick, newNick)
}

func handleMode(m *ManagerImpl, pre *trigger.PreTrigger) {
	target := arg(pre, 0)
	if len(pre.Args) < 2 {
		return
	}

	if !irc.IsChannel(target, m.ISupport().ChanTypes()) {
		if m.CaseMapping().Equal(target, m.Nick()) {
			m.state.Lock()
			m.state.userModes = applyUserModes(m.state.userModes, pre.Args[1])
			m.state.Unlock()
		}
		return
	}

	if !m.state.tracked(target) {
		return
	}

	changes, err := m.modeParser().Parse(pre.Args[1], pre.Args[2:])
	if err != nil {
		m.l.Warn("unable to parse mode change, refreshing users", zap.String("line", pre.Line), zap.Error(err))
		m.send("WHO", target) //nolint:errcheck
		return
	}

	refresh := false
	for _, c := range changes.Changes {
		if c.Privilege != 0 {
			if !m.state.setPrivilege(target, c.Param, c.Privilege, c.Adding) {
				refresh = true
			}
			continue
		}
		if strings.IndexByte(m.ISupport().ChanModes().A, c.Mode) >= 0 {
			continue
		}
		m.state.setMode(target, string(c.Mode), c.Param, c.Adding)
	}
	if refresh {
		m.send("WHO", target) //nolint:errcheck
	}
}

// applyUserModes applies a user modestring such as "+iw-x" to the current modes.
func applyUserModes(current, change string) string {
	adding := true
	modes := []byte(current)
	for i := 0; i < len(change); i++ {
		c := change[i]
		switch c {
		case '+':
			adding = true
		case '-':
			adding = false
		default:
			idx := strings.IndexByte(string(modes), c)
			if adding && idx < 0 {
				modes = append(modes, c)
			} else if !adding && idx >= 0 {
				modes = append(modes[:idx], modes[idx+1:]...)
			}
		}
	}
	return string(modes)
}

func handleChannelModes(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 3 {
		return
	}
	channel := pre.Args[1]
	changes, err := m.modeParser().Parse(pre.Args[2], pre.Args[3:])
	if err != nil {
		m.l.Warn("unable to parse channel modes", zap.String("line", pre.Line), zap.Error(err))
		return
	}
	for _, c := range changes.Changes {
		if c.Privilege == 0 {
			m.state.setMode(channel, string(c.Mode), c.Param, c.Adding)
		}
	}
}

func handleTopic(m *ManagerImpl, pre *trigger.PreTrigger) {
	m.state.setTopic(arg(pre, 0), pre.Text)
}

func handleTopicReply(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 3 {
		return
	}
	m.state.setTopic(pre.Args[1], pre.Text)
}

// whoFlags returns the away state and the channel privileges carried by WHO reply flags like "G*@".
func whoFlags(flags, prefixes string) (bool, irc.Privilege) {
	away := strings.HasPrefix(flags, "G")
	flags = strings.TrimLeft(flags, "HG*")
	_, priv := irc.SplitNamesPrefix(flags, prefixes)
	return away, priv
}

func (m *ManagerImpl) learnUser(channel, nick, user, host, flags, account, realName string) {
	away, priv := whoFlags(flags, m.ISupport().Prefix().Prefixes)

	m.state.join(channel, nick, 0)
	m.state.addPrivilege(channel, nick, priv)
	m.state.updateUser(nick, func(u *userState) {
		u.user = user
		u.host = host
		u.away = away
		if realName != "" {
			u.realName = realName
		}
		if account != "" {
			if account == "0" {
				u.account = ""
			} else {
				u.account = account
			}
		}
	})
}

// handleWho reads "<me> <channel> <user> <host> <server> <nick> <flags> :<hops> <realname>".
func handleWho(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 8 {
		return
	}
	_, realName, _ := strings.Cut(pre.Args[7], " ")
	m.learnUser(pre.Args[1], pre.Args[5], pre.Args[2], pre.Args[3], pre.Args[6], "", realName)
}

// handleWhox reads replies to "%tcuhnfar" requests:
// "<me> <type> <channel> <user> <host> <nick> <flags> <account> :<realname>".
func handleWhox(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 9 || pre.Args[1] != whoxQueryType {
		return
	}
	m.learnUser(pre.Args[2], pre.Args[5], pre.Args[3], pre.Args[4], pre.Args[6], pre.Args[7], pre.Args[8])
}

func handleAccount(m *ManagerImpl, pre *trigger.PreTrigger) {
	account := arg(pre, 0)
	if account == "*" {
		account = ""
	}
	m.state.updateUser(pre.Nick, func(u *userState) {
		u.account = account
	})
}

func handleAway(m *ManagerImpl, pre *trigger.PreTrigger) {
	away := len(pre.Args) > 0
	m.state.updateUser(pre.Nick, func(u *userState) {
		u.away = away
	})
}

func handleChghost(m *ManagerImpl, pre *trigger.PreTrigger) {
	if len(pre.Args) < 2 {
		return
	}
	user, host := pre.Args[0], pre.Args[1]
	m.state.updateUser(pre.Nick, func(u *userState) {
		u.user = user
		u.host = host
	})

	if m.CaseMapping().Equal(pre.Nick, m.Nick()) {
		m.state.Lock()
		m.state.hostmask = pre.Nick + "!" + user + "@" + host
		m.state.Unlock()
	}
}

// handleInvite joins channels the bot is invited to by an admin.
func handleInvite(m *ManagerImpl, pre *trigger.PreTrigger) {
	channel := arg(pre, 1)
	if channel == "" || !m.CaseMapping().Equal(arg(pre, 0), m.Nick()) {
		return
	}

	account := ""
	if u, ok := m.GetUser(pre.Nick); ok {
		account = u.Account
	}
	t := trigger.NewTrigger(m.Identity(), pre, trigger.TextMatch(pre.Text), account)
	if !t.Admin {
		m.l.Info("ignoring invite", zap.String("channel", channel), zap.String("from", pre.Nick))
		return
	}

	m.Join(channel, "") //nolint:errcheck
}
