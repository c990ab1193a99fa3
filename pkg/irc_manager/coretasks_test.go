package irc_manager

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/config"
	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/trigger"
)

func testConfig(nick string) Config {
	return Config{
		Nick:             nick,
		User:             "quirc",
		Name:             "Quirc bot",
		ReconnectInitial: 10 * time.Millisecond,
		ReconnectMax:     50 * time.Millisecond,
		QuitTimeout:      time.Second,
		Flood: FloodConfig{
			BurstLines: 1000,
			RefillRate: 1000,
		},
		Backend: BackendConfig{Host: "irc.example.com", Port: 6667},
	}
}

// newConnectedManager returns a manager whose mock backend is connected, for feeding lines directly.
func newConnectedManager(t *testing.T, c Config) (*ManagerImpl, *MockBackend) {
	backend := NewMockBackend()
	m, err := New(c, zap.NewNop(), backend)
	require.NoError(t, err)
	require.NoError(t, backend.Connect(context.Background()))
	return m, backend
}

func feed(t *testing.T, m *ManagerImpl, lines ...string) {
	for _, line := range lines {
		_, err := m.process(line)
		require.NoError(t, err)
	}
}

func privileges(t *testing.T, m *ManagerImpl, channel string) map[string]irc.Privilege {
	c, ok := m.GetChannel(channel)
	require.True(t, ok)
	return c.Privileges
}

func joinNames(t *testing.T, m *ManagerImpl, nicks ...string) {
	feed(t, m, ":Foo!foo@bot.host JOIN #test")
	for _, nick := range nicks {
		feed(t, m, ":test.example.com 353 Foo = #test :Foo "+nick)
	}
}

func TestMixedModes(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Foo"))
	joinNames(t, m, "Unothing", "Uvoice", "Uhalfop", "Uop", "Uadmin", "Uowner")

	feed(t, m, "MODE #test +qvhao Uowner Uvoice Uhalfop Uadmin Uop")

	privs := privileges(t, m, "#test")
	require.Equal(t, irc.Privilege(0), privs["unothing"])
	require.Equal(t, irc.Voice, privs["uvoice"])
	require.Equal(t, irc.HalfOp, privs["uhalfop"])
	require.Equal(t, irc.Op, privs["uop"])
	require.Equal(t, irc.Admin, privs["uadmin"])
	require.Equal(t, irc.Owner, privs["uowner"])
}

func TestMixedModeRemoval(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Foo"))
	joinNames(t, m, "Uvoice", "Uop")

	feed(t, m,
		"MODE #test +qao Uvoice Uvoice Uvoice",
		"MODE #test -o+o-qa+v Uvoice Uop Uvoice Uvoice Uvoice",
	)

	privs := privileges(t, m, "#test")
	require.Equal(t, irc.Voice, privs["uvoice"])
	require.Equal(t, irc.Op, privs["uop"])
}

func TestMixedModeTypes(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Foo"))
	joinNames(t, m, "Uvoice", "Uop", "Uadmin", "Uvoice2", "Uop2", "Uadmin2")

	feed(t, m, "MODE #test +amov Uadmin Uop Uvoice")
	privs := privileges(t, m, "#test")
	require.Equal(t, irc.Voice, privs["uvoice"])
	require.Equal(t, irc.Op, privs["uop"])
	require.Equal(t, irc.Admin, privs["uadmin"])

	feed(t, m, "MODE #test +abov Uadmin2 x!y@z Uop2 Uvoice2")
	privs = privileges(t, m, "#test")
	require.Equal(t, irc.Voice, privs["uvoice2"])
	require.Equal(t, irc.Op, privs["uop2"])
	require.Equal(t, irc.Admin, privs["uadmin2"])
}

func TestChannelModes(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Foo"))
	joinNames(t, m)

	feed(t, m, ":test.example.com 324 Foo #test +ntk secret")
	c, _ := m.GetChannel("#test")
	require.Equal(t, map[string]string{"n": "", "t": "", "k": "secret"}, c.Modes)

	feed(t, m, ":Op!op@host MODE #test +l-k 10 secret", ":Op!op@host MODE #test +b *!*@spam")
	c, _ = m.GetChannel("#test")
	require.Equal(t, map[string]string{"n": "", "t": "", "l": "10"}, c.Modes)
}

func TestUserModes(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Foo"))
	feed(t, m, ":Foo MODE Foo :+iwx", ":Foo MODE Foo :-w")

	m.state.RLock()
	defer m.state.RUnlock()
	require.Equal(t, "ix", m.state.userModes)
}

func TestParseReplyMyInfo(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m, ":test.example.com 004 Quirc test.example.com SomeIRCd-v0 uSeRmOdEs cHaNnElMoDeS")
	require.Equal(t, "test.example.com", m.ServerHostname())
}

func TestParseReplyISupport(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))

	feed(t, m, ":test.example.com 005 Quirc go_here.example.com 1234 :Try this other server... or not.")
	require.Equal(t, 0, m.ISupport().Len())

	feed(t, m, ":test.example.com 005 Quirc SAFELIST EXCEPTS INVEX=n AWAYLEN=200 TARGMAX=PRIVMSG:3,JOIN: CHANMODES=beI,k,l,BCMNORScimnpstz PREFIX=(ov)@+ :are supported by this server")
	is := m.ISupport()
	require.True(t, is.Has("SAFELIST"))
	awayLen, ok := is.Int("AWAYLEN")
	require.True(t, ok)
	require.Equal(t, 200, awayLen)
	require.Equal(t, irc.Prefix{Modes: "ov", Prefixes: "@+"}, is.Prefix())

	feed(t, m, ":test.example.com 005 Quirc -TARGMAX :are supported by this server")
	require.False(t, m.ISupport().Has("TARGMAX"))

	// Negating an unadvertised parameter is logged and ignored.
	feed(t, m, ":test.example.com 005 Quirc -UNADVERTISED :are supported by this server")
	require.True(t, m.ISupport().Has("SAFELIST"))
}

func TestCaseMappingUpdate(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m,
		":Quirc!quirc@bot.host JOIN #test",
		":Foo[m]!foo@host JOIN #test",
	)

	_, ok := m.GetUser("foo{m}")
	require.True(t, ok)

	feed(t, m, ":irc.example.com 005 Quirc CASEMAPPING=ascii :are supported by this server")
	require.Equal(t, irc.ASCII, m.CaseMapping())

	_, ok = m.GetUser("foo{m}")
	require.False(t, ok)
	u, ok := m.GetUser("FOO[M]")
	require.True(t, ok)
	require.Equal(t, "Foo[m]", u.Nick)
	require.True(t, m.HasPrivilege("#TEST", "foo[m]", 0))
}

func TestNamesReply(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m,
		":Quirc!quirc@bot.host JOIN #test",
		":irc.example.com 353 Quirc = #test :@+Alice %Bob ~Carol Dave @Eve!eve@e.host",
		":irc.example.com 353 Quirc = #elsewhere :Mallory",
		":irc.example.com 366 Quirc #test :End of /NAMES list.",
	)

	require.True(t, m.HasPrivilege("#test", "alice", irc.Op))
	require.Equal(t, irc.Op|irc.Voice, privileges(t, m, "#test")["alice"])
	require.True(t, m.HasPrivilege("#test", "Bob", irc.HalfOp))
	require.False(t, m.HasPrivilege("#test", "Bob", irc.Op))
	require.True(t, m.HasPrivilege("#test", "Carol", irc.Owner))
	require.False(t, m.HasPrivilege("#test", "Dave", irc.Voice))
	require.True(t, m.HasPrivilege("#test", "Dave", 0))

	eve, ok := m.GetUser("eve")
	require.True(t, ok)
	require.Equal(t, "Eve!eve@e.host", eve.Hostmask())

	_, ok = m.GetChannel("#elsewhere")
	require.False(t, ok)
	_, ok = m.GetUser("Mallory")
	require.False(t, ok)

	c, _ := m.GetChannel("#test")
	require.Equal(t, []string{"Alice", "Bob", "Carol", "Dave", "Eve", "Quirc"}, c.Users)
}

func TestOwnJoin(t *testing.T) {
	m, backend := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m, "@time=2021-06-01T12:00:00.000Z :Quirc!quirc@bot.host JOIN #test")

	c, ok := m.GetChannel("#test")
	require.True(t, ok)
	require.True(t, time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC).Equal(c.JoinTime))
	require.Equal(t, []string{"MODE #test", "WHO #test"}, backend.Sent())
	require.Equal(t, "Quirc!quirc@bot.host", m.hostmask())

	backend.ClearSent()
	feed(t, m, ":irc.example.com 005 Quirc WHOX :are supported by this server", ":Quirc!quirc@bot.host JOIN #other")
	require.Equal(t, []string{"MODE #other", "WHO #other %tcuhnfar,999"}, backend.Sent())

	require.Len(t, m.Channels(), 2)
}

func TestUserTracking(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m,
		":Quirc!quirc@bot.host JOIN #test",
		":Alice!alice@a.host JOIN #test alice_acct :Alice Liddell",
		":irc.example.com 353 Quirc = #test :Quirc @Alice Bob Carol",
	)

	alice, ok := m.GetUser("alice")
	require.True(t, ok)
	require.Equal(t, User{
		Nick:     "Alice",
		User:     "alice",
		Host:     "a.host",
		Account:  "alice_acct",
		RealName: "Alice Liddell",
		Channels: []string{"#test"},
	}, alice)

	feed(t, m,
		":Alice!alice@a.host ACCOUNT *",
		":Alice!alice@a.host AWAY :gone fishing",
		":Alice!alice@a.host CHGHOST newuser new.host",
	)
	alice, _ = m.GetUser("Alice")
	require.Equal(t, "", alice.Account)
	require.True(t, alice.Away)
	require.Equal(t, "Alice!newuser@new.host", alice.Hostmask())

	feed(t, m, ":Alice!newuser@new.host AWAY", ":Alice!newuser@new.host NICK Alicia")
	_, ok = m.GetUser("Alice")
	require.False(t, ok)
	alicia, ok := m.GetUser("alicia")
	require.True(t, ok)
	require.False(t, alicia.Away)
	require.True(t, m.HasPrivilege("#test", "Alicia", irc.Op))

	feed(t, m, "@account=alicia_acct :Alicia!newuser@new.host PRIVMSG #test :hi")
	alicia, _ = m.GetUser("alicia")
	require.Equal(t, "alicia_acct", alicia.Account)

	feed(t, m,
		":Alicia!newuser@new.host PART #test :bye",
		":Alicia!newuser@new.host KICK #test Bob :out",
		":Carol!carol@c.host QUIT :bye",
	)
	for _, nick := range []string{"Alicia", "Bob", "Carol"} {
		_, ok = m.GetUser(nick)
		require.False(t, ok, nick)
	}
	c, _ := m.GetChannel("#test")
	require.Equal(t, []string{"Quirc"}, c.Users)
}

func TestOwnPartAndKick(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m,
		":Quirc!quirc@bot.host JOIN #one",
		":Quirc!quirc@bot.host JOIN #two",
		":irc.example.com 353 Quirc = #one :Quirc Alice",
		":irc.example.com 353 Quirc = #two :Quirc Alice Bob",
	)

	feed(t, m, ":Quirc!quirc@bot.host PART #one")
	_, ok := m.GetChannel("#one")
	require.False(t, ok)
	alice, ok := m.GetUser("Alice")
	require.True(t, ok)
	require.Equal(t, []string{"#two"}, alice.Channels)

	feed(t, m, ":Op!op@host KICK #two Quirc :go away")
	require.Empty(t, m.Channels())
	_, ok = m.GetUser("Bob")
	require.False(t, ok)
	_, ok = m.GetUser("Quirc")
	require.True(t, ok)
}

func TestOwnNickChange(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m, ":Quirc!quirc@bot.host NICK Quirc2")
	require.Equal(t, "Quirc2", m.Nick())
}

func TestWhoReplies(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m,
		":Quirc!quirc@bot.host JOIN #test",
		":irc.example.com 352 Quirc #test bob b.host irc.example.com Bob G@ :0 Bob Builder",
		":irc.example.com 354 Quirc 999 #test carol c.host Carol H+ carol_acct :Carol Danvers",
		":irc.example.com 354 Quirc 123 #test dave d.host Dave H dave_acct :Dave",
	)

	bob, ok := m.GetUser("bob")
	require.True(t, ok)
	require.True(t, bob.Away)
	require.Equal(t, "Bob Builder", bob.RealName)
	require.True(t, m.HasPrivilege("#test", "Bob", irc.Op))

	carol, ok := m.GetUser("carol")
	require.True(t, ok)
	require.False(t, carol.Away)
	require.Equal(t, "carol_acct", carol.Account)
	require.Equal(t, "Carol Danvers", carol.RealName)
	require.Equal(t, irc.Voice, privileges(t, m, "#test")["carol"])

	_, ok = m.GetUser("dave")
	require.False(t, ok)
}

func TestTopic(t *testing.T) {
	m, _ := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m,
		":Quirc!quirc@bot.host JOIN #test",
		":irc.example.com 332 Quirc #test :The topic",
	)
	c, _ := m.GetChannel("#test")
	require.Equal(t, "The topic", c.Topic)

	feed(t, m, ":Alice!a@host TOPIC #test :A new topic")
	c, _ = m.GetChannel("#test")
	require.Equal(t, "A new topic", c.Topic)
}

func TestPingPong(t *testing.T) {
	m, backend := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m, "PING :irc.example.com")
	require.Equal(t, []string{"PONG irc.example.com"}, backend.Sent())
}

func TestErrorClosesConnection(t *testing.T) {
	m, backend := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m, "ERROR :Closing Link: bot.host (Ping timeout)")
	require.False(t, backend.Connected())
}

func TestNickInUse(t *testing.T) {
	m, backend := newConnectedManager(t, testConfig("Quirc"))
	feed(t, m, ":irc.example.com 433 * Quirc :Nickname is already in use")
	require.Equal(t, []string{"NICK Quirc_"}, backend.Sent())
	require.Equal(t, "Quirc_", m.Nick())

	feed(t, m, ":irc.example.com 001 Quirc_ :Welcome")
	backend.ClearSent()
	feed(t, m, ":irc.example.com 433 Quirc_ Other :Nickname is already in use")
	require.Empty(t, backend.Sent())
}

func TestWelcome(t *testing.T) {
	c := testConfig("Quirc")
	c.Modes = "B"
	c.AuthMethod = config.AuthNickServ
	c.AuthUsername = "quirc"
	c.AuthPassword = "secret"
	c.AuthTarget = "NickServ"
	c.Channels = []string{"#a", "#b key"}
	c.CommandsOnConnect = []string{"PRIVMSG $nickname :hi"}

	m, backend := newConnectedManager(t, c)
	feed(t, m, ":irc.example.com 001 Quirc :Welcome to the network")

	require.True(t, m.Registered())
	require.Equal(t, []string{
		"MODE Quirc +B",
		"PRIVMSG NickServ :IDENTIFY quirc secret",
		"JOIN #a",
		"JOIN #b key",
		"PRIVMSG Quirc :hi",
	}, backend.Sent())
}

func TestCapNegotiation(t *testing.T) {
	m, backend := newConnectedManager(t, testConfig("Quirc"))
	require.NoError(t, m.register())
	require.Equal(t, []string{"CAP LS 302", "NICK Quirc", "USER quirc 0 * :Quirc bot"}, backend.Sent())

	backend.ClearSent()
	feed(t, m,
		":irc.example.com CAP * LS * :multi-prefix unknown-cap",
		":irc.example.com CAP * LS :server-time sasl=PLAIN",
	)
	require.Equal(t, []string{"CAP REQ :multi-prefix server-time"}, backend.Sent())

	backend.ClearSent()
	feed(t, m, ":irc.example.com CAP * ACK :multi-prefix server-time")
	require.Equal(t, []string{"CAP END"}, backend.Sent())
	require.True(t, m.HasCapability("multi-prefix"))
	require.False(t, m.HasCapability("sasl"))
	require.Equal(t, []string{"multi-prefix", "server-time"}, m.EnabledCapabilities())

	backend.ClearSent()
	feed(t, m, ":irc.example.com CAP Quirc NEW :away-notify", ":irc.example.com CAP Quirc DEL :server-time")
	require.Equal(t, []string{"CAP REQ :away-notify"}, backend.Sent())
	require.False(t, m.HasCapability("server-time"))
}

func TestCapNak(t *testing.T) {
	m, backend := newConnectedManager(t, testConfig("Quirc"))
	m.RequestCapabilities("Draft/Custom")
	require.NoError(t, m.register())
	backend.ClearSent()

	feed(t, m, ":irc.example.com CAP * LS :draft/custom")
	require.Equal(t, []string{"CAP REQ :draft/custom"}, backend.Sent())

	feed(t, m, ":irc.example.com CAP * NAK :draft/custom")
	require.Equal(t, []string{"CAP REQ :draft/custom", "CAP END"}, backend.Sent())
}

func TestCapNothingToRequest(t *testing.T) {
	m, backend := newConnectedManager(t, testConfig("Quirc"))
	require.NoError(t, m.register())
	backend.ClearSent()

	feed(t, m, ":irc.example.com CAP * LS :unknown-cap")
	require.Equal(t, []string{"CAP END"}, backend.Sent())
}

func TestSASLPlain(t *testing.T) {
	c := testConfig("Quirc")
	c.AuthMethod = config.AuthSASL
	c.AuthUsername = "bot"
	c.AuthPassword = "secret"
	c.AuthTarget = "PLAIN"

	m, backend := newConnectedManager(t, c)
	require.NoError(t, m.register())
	backend.ClearSent()

	feed(t, m, ":irc.example.com CAP * LS :multi-prefix sasl=PLAIN,EXTERNAL")
	require.Equal(t, []string{"CAP REQ :multi-prefix sasl"}, backend.Sent())

	backend.ClearSent()
	feed(t, m, ":irc.example.com CAP * ACK :multi-prefix sasl")
	require.Equal(t, []string{"AUTHENTICATE PLAIN"}, backend.Sent())

	backend.ClearSent()
	feed(t, m, "AUTHENTICATE +")
	token := base64.StdEncoding.EncodeToString([]byte("bot\x00bot\x00secret"))
	require.Equal(t, []string{"AUTHENTICATE " + token}, backend.Sent())

	backend.ClearSent()
	feed(t, m,
		":irc.example.com 900 Quirc Quirc!quirc@bot.host bot :You are now logged in as bot",
		":irc.example.com 903 Quirc :SASL authentication successful",
	)
	require.Equal(t, []string{"CAP END"}, backend.Sent())
}

func TestSASLUnsupportedMechanism(t *testing.T) {
	c := testConfig("Quirc")
	c.AuthMethod = config.AuthSASL
	c.AuthTarget = "EXTERNAL"

	m, backend := newConnectedManager(t, c)
	require.NoError(t, m.register())
	backend.ClearSent()

	feed(t, m, ":irc.example.com CAP * LS :sasl=PLAIN")
	require.Equal(t, []string{"CAP END"}, backend.Sent())
}

func TestSASLFailure(t *testing.T) {
	c := testConfig("Quirc")
	c.AuthMethod = config.AuthSASL
	c.AuthTarget = "EXTERNAL"

	m, backend := newConnectedManager(t, c)
	require.NoError(t, m.register())
	feed(t, m,
		":irc.example.com CAP * LS :sasl",
		":irc.example.com CAP * ACK :sasl",
		"AUTHENTICATE +",
	)
	backend.ClearSent()

	feed(t, m, ":irc.example.com 904 Quirc :SASL authentication failed")
	require.Equal(t, []string{"CAP END"}, backend.Sent())
}

func TestSASLChunks(t *testing.T) {
	long := make([]byte, 800)
	for i := range long {
		long[i] = 'A'
	}

	tests := []struct {
		name    string
		payload string
		want    []string
	}{
		{name: "empty", payload: "", want: []string{"+"}},
		{name: "short", payload: "abc", want: []string{"abc"}},
		{name: "exact", payload: string(long[:400]), want: []string{string(long[:400]), "+"}},
		{name: "split", payload: string(long[:450]), want: []string{string(long[:400]), string(long[:50])}},
		{name: "two exact", payload: string(long), want: []string{string(long[:400]), string(long[:400]), "+"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, saslChunks(tt.payload))
		})
	}
}

func TestInvite(t *testing.T) {
	c := testConfig("Quirc")
	c.Identity = trigger.Identity{Owner: "Boss", Admins: []string{"*!*@trusted.host"}}

	m, backend := newConnectedManager(t, c)
	feed(t, m,
		":Boss!boss@b.host INVITE Quirc #secret",
		":Helper!h@trusted.host INVITE Quirc :#helpers",
		":Rando!r@r.host INVITE Quirc #other",
		":Boss!boss@b.host INVITE Someone #wrong",
	)
	require.Equal(t, []string{"JOIN #secret", "JOIN #helpers"}, backend.Sent())
}
