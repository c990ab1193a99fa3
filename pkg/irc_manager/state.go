package irc_manager

import (
	"sort"
	"sync"
	"time"

	"github.com/jirwin/quirc/pkg/irc"
)

// Channel is a snapshot of a joined channel. Privileges is keyed by the lowered nick.
type Channel struct {
	Name       string
	Topic      string
	Modes      map[string]string
	Users      []string
	Privileges map[string]irc.Privilege
	JoinTime   time.Time
}

// User is a snapshot of a user sharing at least one channel with the bot.
type User struct {
	Nick     string
	User     string
	Host     string
	Account  string
	RealName string
	Away     bool
	Channels []string
}

// Hostmask returns nick!user@host.
func (u User) Hostmask() string {
	return u.Nick + "!" + u.User + "@" + u.Host
}

type channelState struct {
	name       string
	topic      string
	modes      map[string]string
	users      map[string]string
	privileges map[string]irc.Privilege
	joinTime   time.Time
}

type userState struct {
	nick     string
	user     string
	host     string
	account  string
	realName string
	away     bool
	channels map[string]string
}

type state struct {
	sync.RWMutex

	cm             irc.CaseMapping
	nick           string
	hostmask       string
	serverHostname string
	userModes      string
	registered     bool
	channels       map[string]*channelState
	users          map[string]*userState
}

func newState(nick string) *state {
	return &state{
		cm:       irc.RFC1459,
		nick:     nick,
		channels: make(map[string]*channelState),
		users:    make(map[string]*userState),
	}
}

// reset forgets everything learned on a previous connection.
func (s *state) reset(nick string) {
	s.Lock()
	defer s.Unlock()

	s.cm = irc.RFC1459
	s.nick = nick
	s.hostmask = ""
	s.serverHostname = ""
	s.userModes = ""
	s.registered = false
	s.channels = make(map[string]*channelState)
	s.users = make(map[string]*userState)
}

func (s *state) id(name string) string {
	return s.cm.Lower(name)
}

// setCaseMapping re-keys every tracked name after the server advertised a new mapping.
func (s *state) setCaseMapping(cm irc.CaseMapping) {
	s.Lock()
	defer s.Unlock()

	if cm == s.cm {
		return
	}
	s.cm = cm

	channels := make(map[string]*channelState, len(s.channels))
	for _, c := range s.channels {
		users := make(map[string]string, len(c.users))
		privileges := make(map[string]irc.Privilege, len(c.privileges))
		for id, nick := range c.users {
			users[s.id(nick)] = nick
			privileges[s.id(nick)] = c.privileges[id]
		}
		c.users = users
		c.privileges = privileges
		channels[s.id(c.name)] = c
	}
	s.channels = channels

	users := make(map[string]*userState, len(s.users))
	for _, u := range s.users {
		joined := make(map[string]string, len(u.channels))
		for _, name := range u.channels {
			joined[s.id(name)] = name
		}
		u.channels = joined
		users[s.id(u.nick)] = u
	}
	s.users = users
}

func (s *state) isSelf(nick string) bool {
	return s.cm.Equal(nick, s.nick)
}

func (s *state) user(nick string) *userState {
	id := s.id(nick)
	u, ok := s.users[id]
	if !ok {
		u = &userState{nick: nick, channels: make(map[string]string)}
		s.users[id] = u
	}
	return u
}

func (s *state) addChannel(name string, joined time.Time) {
	s.Lock()
	defer s.Unlock()

	id := s.id(name)
	if _, ok := s.channels[id]; ok {
		return
	}
	s.channels[id] = &channelState{
		name:       name,
		modes:      make(map[string]string),
		users:      make(map[string]string),
		privileges: make(map[string]irc.Privilege),
		joinTime:   joined,
	}
}

// forget drops a user that no longer shares any channel with the bot.
func (s *state) forget(u *userState) {
	if len(u.channels) == 0 && !s.isSelf(u.nick) {
		delete(s.users, s.id(u.nick))
	}
}

func (s *state) removeChannel(name string) {
	s.Lock()
	defer s.Unlock()

	id := s.id(name)
	c, ok := s.channels[id]
	if !ok {
		return
	}
	delete(s.channels, id)

	for uid := range c.users {
		if u, ok := s.users[uid]; ok {
			delete(u.channels, id)
			s.forget(u)
		}
	}
}

// join records nick in channel. It returns false when the channel is not tracked.
func (s *state) join(channel, nick string, priv irc.Privilege) bool {
	s.Lock()
	defer s.Unlock()

	c, ok := s.channels[s.id(channel)]
	if !ok {
		return false
	}

	u := s.user(nick)
	uid := s.id(nick)
	c.users[uid] = u.nick
	c.privileges[uid] |= priv
	u.channels[s.id(channel)] = c.name
	return true
}

func (s *state) part(channel, nick string) {
	s.Lock()
	defer s.Unlock()

	cid := s.id(channel)
	uid := s.id(nick)
	if c, ok := s.channels[cid]; ok {
		delete(c.users, uid)
		delete(c.privileges, uid)
	}
	if u, ok := s.users[uid]; ok {
		delete(u.channels, cid)
		s.forget(u)
	}
}

func (s *state) quit(nick string) {
	s.Lock()
	defer s.Unlock()

	uid := s.id(nick)
	for _, c := range s.channels {
		delete(c.users, uid)
		delete(c.privileges, uid)
	}
	delete(s.users, uid)
}

func (s *state) rename(oldNick, newNick string) {
	s.Lock()
	defer s.Unlock()

	oldID := s.id(oldNick)
	newID := s.id(newNick)

	if s.cm.Equal(oldNick, s.nick) {
		s.nick = newNick
	}

	u, ok := s.users[oldID]
	if !ok {
		return
	}
	delete(s.users, oldID)
	u.nick = newNick
	s.users[newID] = u

	for cid := range u.channels {
		c, ok := s.channels[cid]
		if !ok {
			continue
		}
		priv := c.privileges[oldID]
		delete(c.users, oldID)
		delete(c.privileges, oldID)
		c.users[newID] = newNick
		c.privileges[newID] = priv
	}
}

// setPrivilege applies one privilege mode change.
func (s *state) setPrivilege(channel, nick string, priv irc.Privilege, adding bool) bool {
	s.Lock()
	defer s.Unlock()

	c, ok := s.channels[s.id(channel)]
	if !ok {
		return false
	}
	uid := s.id(nick)
	if _, ok := c.users[uid]; !ok {
		return false
	}

	if adding {
		c.privileges[uid] |= priv
	} else {
		c.privileges[uid] &^= priv
	}
	return true
}

// addPrivilege merges privileges learned from a WHO reply.
func (s *state) addPrivilege(channel, nick string, priv irc.Privilege) {
	s.Lock()
	defer s.Unlock()

	c, ok := s.channels[s.id(channel)]
	if !ok {
		return
	}
	uid := s.id(nick)
	if _, ok := c.users[uid]; ok {
		c.privileges[uid] |= priv
	}
}

func (s *state) setMode(channel, mode, value string, adding bool) {
	s.Lock()
	defer s.Unlock()

	c, ok := s.channels[s.id(channel)]
	if !ok {
		return
	}
	if adding {
		c.modes[mode] = value
	} else {
		delete(c.modes, mode)
	}
}

func (s *state) setTopic(channel, topic string) {
	s.Lock()
	defer s.Unlock()

	if c, ok := s.channels[s.id(channel)]; ok {
		c.topic = topic
	}
}

// updateUser changes a known user. Unknown users are ignored.
func (s *state) updateUser(nick string, f func(u *userState)) {
	s.Lock()
	defer s.Unlock()

	if u, ok := s.users[s.id(nick)]; ok {
		f(u)
	}
}

func (s *state) tracked(channel string) bool {
	s.RLock()
	defer s.RUnlock()

	_, ok := s.channels[s.id(channel)]
	return ok
}

func (c *channelState) snapshot() Channel {
	out := Channel{
		Name:       c.name,
		Topic:      c.topic,
		Modes:      make(map[string]string, len(c.modes)),
		Users:      make([]string, 0, len(c.users)),
		Privileges: make(map[string]irc.Privilege, len(c.privileges)),
		JoinTime:   c.joinTime,
	}
	for k, v := range c.modes {
		out.Modes[k] = v
	}
	for _, nick := range c.users {
		out.Users = append(out.Users, nick)
	}
	sort.Strings(out.Users)
	for k, v := range c.privileges {
		out.Privileges[k] = v
	}
	return out
}

func (u *userState) snapshot() User {
	out := User{
		Nick:     u.nick,
		User:     u.user,
		Host:     u.host,
		Account:  u.account,
		RealName: u.realName,
		Away:     u.away,
		Channels: make([]string, 0, len(u.channels)),
	}
	for _, name := range u.channels {
		out.Channels = append(out.Channels, name)
	}
	sort.Strings(out.Channels)
	return out
}

func (s *state) channel(name string) (Channel, bool) {
	s.RLock()
	defer s.RUnlock()

	c, ok := s.channels[s.id(name)]
	if !ok {
		return Channel{}, false
	}
	return c.snapshot(), true
}

func (s *state) getUser(nick string) (User, bool) {
	s.RLock()
	defer s.RUnlock()

	u, ok := s.users[s.id(nick)]
	if !ok {
		return User{}, false
	}
	return u.snapshot(), true
}

func (s *state) channelList() []Channel {
	s.RLock()
	defer s.RUnlock()

	out := make([]Channel, 0, len(s.channels))
	for _, c := range s.channels {
		out = append(out, c.snapshot())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

// privilege returns the privileges nick holds in channel.
func (s *state) privilege(channel, nick string) (irc.Privilege, bool) {
	s.RLock()
	defer s.RUnlock()

	c, ok := s.channels[s.id(channel)]
	if !ok {
		return 0, false
	}
	p, ok := c.privileges[s.id(nick)]
	return p, ok
}
