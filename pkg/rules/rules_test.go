package rules

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jirwin/quirc/pkg/trigger"
)

const botNick = "TestBot"

func pre(t *testing.T, line string) *trigger.PreTrigger {
	t.Helper()
	p, err := trigger.NewPreTrigger(botNick, line)
	require.NoError(t, err)
	return p
}

func matchAll() *regexp.Regexp {
	return regexp.MustCompile(`.*`)
}

func TestManagerRule(t *testing.T) {
	rule := NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("testplugin"), WithLabel("testrule"))
	m := NewManager()
	m.Register(rule)

	require.True(t, m.HasRule("testrule"))
	require.True(t, m.HasRule("testrule", InPlugin("testplugin")))
	require.False(t, m.HasRule("testrule", InPlugin("not-plugin")))

	items := m.TriggeredRules(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Hello, world"))
	require.Len(t, items, 1)
	require.Equal(t, rule, items[0].Rule)
	require.Equal(t, "Hello, world", items[0].Match.Group(0))
}

func TestManagerCommand(t *testing.T) {
	cmd := NewCommand("hello", `\.`, WithPlugin("testplugin"))
	m := NewManager()
	m.RegisterCommand(cmd)

	items := m.TriggeredRules(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.hello"))
	require.Len(t, items, 1)
	require.Equal(t, cmd, items[0].Rule)
	require.Equal(t, ".hello", items[0].Match.Group(0))
	require.Equal(t, "hello", items[0].Match.Group(1))

	require.Equal(t, map[string]map[string]*Rule{"testplugin": {"hello": cmd}}, m.AllCommands())
	require.Empty(t, m.AllNickCommands())
}

func TestManagerNickCommand(t *testing.T) {
	cmd := NewNickCommand("Bot", "hello", WithPlugin("testplugin"))
	m := NewManager()
	m.RegisterNickCommand(cmd)

	items := m.TriggeredRules(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Bot: hello"))
	require.Len(t, items, 1)
	require.Equal(t, "Bot: hello", items[0].Match.Group(0))
	require.Equal(t, "hello", items[0].Match.Group(1))

	require.Empty(t, m.AllCommands())
	require.Equal(t, map[string]map[string]*Rule{"testplugin": {"hello": cmd}}, m.AllNickCommands())
}

func TestManagerActionCommand(t *testing.T) {
	cmd := NewActionCommand("hello", WithPlugin("testplugin"))
	m := NewManager()
	m.RegisterActionCommand(cmd)

	items := m.TriggeredRules(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :\x01ACTION hello\x01"))
	require.Len(t, items, 1)
	require.Equal(t, "hello", items[0].Match.Group(0))
	require.Equal(t, "hello", items[0].Match.Group(1))

	require.Empty(t, m.AllCommands())
	require.Empty(t, m.AllNickCommands())
	require.Len(t, m.AllActionCommands(), 1)
}

func TestManagerOrdering(t *testing.T) {
	m := NewManager()
	url := NewURLCallback([]*regexp.Regexp{regexp.MustCompile(`example\.com`)}, WithPlugin("p"), WithLabel("url"), WithCommandPrefix(`\.`))
	cmd := NewCommand("hello", `\.`, WithPlugin("p"))
	low := NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("p"), WithLabel("low"), WithPriority(PriorityLow))
	medium := NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("p"), WithLabel("medium"))
	high := NewSearchRule([]*regexp.Regexp{regexp.MustCompile(`https`)}, WithPlugin("p"), WithLabel("high"), WithPriority(PriorityHigh))

	m.RegisterURLCallback(url)
	m.RegisterCommand(cmd)
	m.Register(low)
	m.Register(medium)
	m.Register(high)

	items := m.TriggeredRules(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.hello https://example.com"))
	got := []*Rule{}
	for _, item := range items {
		got = append(got, item.Rule)
	}
	require.Equal(t, []*Rule{high, medium, cmd, low}, got, "the URL callback skips command lines")

	items = m.TriggeredRules(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :see https://example.com"))
	got = got[:0]
	for _, item := range items {
		got = append(got, item.Rule)
	}
	require.Equal(t, []*Rule{high, medium, url, low}, got)
}

func TestManagerUnregisterPlugin(t *testing.T) {
	aRule := NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("plugin_a"), WithLabel("the_rule"))
	bRule := NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("plugin_b"), WithLabel("the_rule"))
	aCommand := NewCommand("hello", `\.`, WithPlugin("plugin_a"))
	bCommand := NewCommand("hello", `\.`, WithPlugin("plugin_b"))

	m := NewManager()
	m.Register(aRule)
	m.RegisterCommand(aCommand)
	m.Register(bRule)
	m.RegisterCommand(bCommand)

	line := pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.hello")
	require.Len(t, m.TriggeredRules(line), 4)
	require.True(t, m.HasCommand("hello"))

	require.Equal(t, 2, m.UnregisterPlugin("plugin_a"))
	require.True(t, m.HasRule("the_rule"))
	require.False(t, m.HasRule("the_rule", InPlugin("plugin_a")))
	require.True(t, m.HasCommand("hello"))
	require.False(t, m.HasCommand("hello", InPlugin("plugin_a")))

	items := m.TriggeredRules(line)
	require.Len(t, items, 2)
	require.Equal(t, bRule, items[0].Rule)
	require.Equal(t, bCommand, items[1].Rule)
}

func TestManagerRegisterReplacesCommand(t *testing.T) {
	m := NewManager()
	first := NewCommand("hello", `\.`, WithPlugin("p"))
	second := NewCommand("hello", `\.`, WithPlugin("p"), WithAliases("hi"))
	m.RegisterCommand(first)
	m.RegisterCommand(second)

	require.Len(t, m.Commands(), 1)
	found, ok := m.FindCommand("hi")
	require.True(t, ok)
	require.Equal(t, second, found)
}

func TestManagerEvents(t *testing.T) {
	ruleDefault := NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("testplugin"), WithLabel("testrule"))
	ruleEvents := NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("testplugin"), WithLabel("testrule"), WithEvents("PRIVMSG", "NOTICE"))
	m := NewManager()
	m.Register(ruleDefault)
	m.Register(ruleEvents)

	items := m.TriggeredRules(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Hello, world"))
	require.Len(t, items, 2)
	require.Equal(t, ruleDefault, items[0].Rule)
	require.Equal(t, ruleEvents, items[1].Rule)

	items = m.TriggeredRules(pre(t, ":Foo!foo@example.com NOTICE #quirc :Hello, world"))
	require.Len(t, items, 1)
	require.Equal(t, ruleEvents, items[0].Rule)
}

func TestManagerHasCommandAliases(t *testing.T) {
	m := NewManager()
	m.RegisterCommand(NewCommand("hello", `\.`, WithPlugin("testplugin"), WithAliases("hi")))
	m.RegisterNickCommand(NewNickCommand("Bot", "greet", WithPlugin("testplugin"), WithAliases("yo")))
	m.RegisterActionCommand(NewActionCommand("wave", WithPlugin("testplugin"), WithAliases("waves")))

	require.True(t, m.HasCommand("hello"))
	require.False(t, m.HasCommand("hi"))
	require.True(t, m.HasCommand("hi", FollowAlias()))
	require.False(t, m.HasCommand("unknown", FollowAlias()))

	require.True(t, m.HasNickCommand("greet"))
	require.False(t, m.HasNickCommand("yo"))
	require.True(t, m.HasNickCommand("yo", FollowAlias()))
	require.False(t, m.HasCommand("greet"))

	require.True(t, m.HasActionCommand("wave"))
	require.True(t, m.HasActionCommand("waves", FollowAlias()))
	require.False(t, m.HasCommand("wave"))
}

func TestRuleString(t *testing.T) {
	require.Equal(t, "<Rule testplugin.testrule (1)>", NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("testplugin"), WithLabel("testrule")).String())
	require.Equal(t, "<Rule (no-plugin).testrule (1)>", NewRule([]*regexp.Regexp{matchAll()}, WithLabel("testrule")).String())
	require.Equal(t, "<Rule testplugin.(anonymous) (1)>", NewRule([]*regexp.Regexp{matchAll()}, WithPlugin("testplugin")).String())
	require.Equal(t, "<Command testplugin.hello [hi|hey]>", NewCommand("hello", `\.`, WithPlugin("testplugin"), WithAliases("hi", "hey")).String())
	require.Equal(t, "<NickCommand testplugin.hello [hi] (TestBot [Alfred|Joe])>",
		NewNickCommand("TestBot", "hello", WithPlugin("testplugin"), WithAliases("hi"), WithNickAliases("Alfred", "Joe")).String())
	require.Equal(t, "<ActionCommand (no-plugin).hello []>", NewActionCommand("hello").String())
}

func TestRuleDefaults(t *testing.T) {
	rule := NewRule([]*regexp.Regexp{matchAll()})
	require.Equal(t, PriorityMedium, rule.Priority())
	require.Equal(t, "", rule.OutputPrefix())
	require.True(t, rule.IsThreaded())
	require.False(t, rule.IsUnblockable())
	require.False(t, rule.AllowEcho())
	require.Equal(t, ".*", rule.Label())
	require.Equal(t, "hello,? world", NewRule([]*regexp.Regexp{regexp.MustCompile(`(?i)hello,? world`)}).Label())
	require.Equal(t, "greeting", NewRule([]*regexp.Regexp{regexp.MustCompile(`(?i)hello`)}, WithLabel("greeting")).Label())

	rule = NewRule([]*regexp.Regexp{matchAll()}, WithPriority(PriorityLow), WithOutputPrefix("[plugin] "), WithThreaded(false), WithUnblockable(), WithEcho())
	require.Equal(t, PriorityLow, rule.Priority())
	require.Equal(t, "[plugin] ", rule.OutputPrefix())
	require.False(t, rule.IsThreaded())
	require.True(t, rule.IsUnblockable())
	require.True(t, rule.AllowEcho())

	require.True(t, rule.MatchEvent("PRIVMSG"))
	require.False(t, rule.MatchEvent("JOIN"))
	require.False(t, rule.MatchEvent(""))

	p, err := ParsePriority("high")
	require.NoError(t, err)
	require.Equal(t, PriorityHigh, p)
	_, err = ParsePriority("urgent")
	require.Error(t, err)
}

func TestRuleMatch(t *testing.T) {
	line := pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Hello, world")

	rule := NewRule([]*regexp.Regexp{regexp.MustCompile(`(?i)hello,?\s(\w+)`)})
	matches := rule.Match(line)
	require.Len(t, matches, 1)
	require.Equal(t, "Hello, world", matches[0].Group(0))
	require.Equal(t, "world", matches[0].Group(1))

	rule = NewRule([]*regexp.Regexp{matchAll()}, WithEvents("JOIN"))
	require.Empty(t, rule.Match(line))

	join := pre(t, ":Foo!foo@example.com JOIN #quirc")
	require.Empty(t, NewRule([]*regexp.Regexp{matchAll()}).Match(join))
	matches = rule.Match(join)
	require.Len(t, matches, 1)
	require.Equal(t, "#quirc", matches[0].Group(0))
}

func TestRuleMatchMultiplePatterns(t *testing.T) {
	patterns := []*regexp.Regexp{}
	for _, p := range []string{`hello`, `hi`, `hey`, `hello|hi`} {
		patterns = append(patterns, regexp.MustCompile(`(?i)`+p))
	}
	rule := NewRule(patterns, WithPlugin("testplugin"), WithLabel("handler"))
	require.Equal(t, "<Rule testplugin.handler (4)>", rule.String())

	matches := rule.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Hello, world"))
	require.Len(t, matches, 2)
	for _, m := range matches {
		require.Equal(t, "Hello", m.Group(0))
	}

	matches = rule.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :hey how are you doing?"))
	require.Len(t, matches, 1)
	require.Equal(t, "hey", matches[0].Group(0))
}

func TestRuleMatchIntent(t *testing.T) {
	action := pre(t, ":Foo!foo@example.com PRIVMSG #quirc :\x01ACTION Hello, world\x01")

	rule := NewRule([]*regexp.Regexp{matchAll()})
	matches := rule.Match(action)
	require.Len(t, matches, 1)
	require.Equal(t, "Hello, world", matches[0].Group(0))
	require.True(t, rule.MatchIntent(""))

	rule = NewRule([]*regexp.Regexp{matchAll()}, WithIntents("ACTION"))
	require.Len(t, rule.Match(action), 1)
	require.False(t, rule.MatchIntent(""))

	rule = NewRule([]*regexp.Regexp{matchAll()}, WithIntents("VERSION"))
	require.Empty(t, rule.Match(action))
	require.True(t, rule.MatchIntent("version"))
	require.False(t, rule.MatchIntent("PING"))

	cmd := NewActionCommand("hello", WithIntents("VERSION", "SOURCE"))
	require.True(t, cmd.MatchIntent("ACTION"))
	require.False(t, cmd.MatchIntent("VERSION"))
}

func TestRuleMatchEcho(t *testing.T) {
	echo := pre(t, ":TestBot!quirc@example.com PRIVMSG #quirc :Hi!")

	require.Empty(t, NewRule([]*regexp.Regexp{matchAll()}).Match(echo))

	matches := NewRule([]*regexp.Regexp{matchAll()}, WithEcho()).Match(echo)
	require.Len(t, matches, 1)
	require.Equal(t, "Hi!", matches[0].Group(0))
}

func TestRuleParse(t *testing.T) {
	rule := NewRule([]*regexp.Regexp{matchAll()})
	require.NotEmpty(t, rule.Parse(""))
	require.NotEmpty(t, rule.Parse("Hello, world!"))

	rule = NewRule([]*regexp.Regexp{regexp.MustCompile(`Hello`)})
	require.NotEmpty(t, rule.Parse("Hello, world!"))
	require.Empty(t, rule.Parse("World, Hello!"), "partial matches only work from the start of the text")

	rule = NewRule([]*regexp.Regexp{regexp.MustCompile(`(\w+),? world!$`)})
	results := rule.Parse("Hello world!")
	require.Len(t, results, 1)
	require.Equal(t, "Hello", results[0].Group(1))

	find := NewFindRule([]*regexp.Regexp{regexp.MustCompile(`(\w+)\+\+`)})
	results = find.Parse("foo++ and bar++")
	require.Len(t, results, 2)
	require.Equal(t, "foo", results[0].Group(1))
	require.Equal(t, "bar", results[1].Group(1))

	search := NewSearchRule([]*regexp.Regexp{regexp.MustCompile(`(\w+)\+\+`)})
	results = search.Parse("foo++ and bar++")
	require.Len(t, results, 1)
	require.Equal(t, "foo", results[0].Group(1))
}

func TestCommandMatch(t *testing.T) {
	cmd := NewCommand("hello", `\.`, WithAliases("hi", "hey"))

	matches := cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.hello"))
	require.Len(t, matches, 1)
	require.Equal(t, ".hello", matches[0].Group(0))
	require.Equal(t, "hello", matches[0].Group(1))
	for i := 2; i <= 6; i++ {
		require.False(t, matches[0].HasGroup(i))
	}

	matches = cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.HI there you   all now"))
	require.Len(t, matches, 1)
	require.Equal(t, "HI", matches[0].Group(1))
	require.Equal(t, "there you   all now", matches[0].Group(2))
	require.Equal(t, "there", matches[0].Group(3))
	require.Equal(t, "you", matches[0].Group(4))
	require.Equal(t, "all", matches[0].Group(5))
	require.Equal(t, "now", matches[0].Group(6))

	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :hello")))
	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.bye")))
	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.hellothere")))
	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :\x01ACTION .hello\x01")))
	require.Empty(t, NewCommand("hello", `\?`).Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.hello")))

	require.True(t, cmd.HasAlias("hi"))
	require.False(t, cmd.HasAlias("hello"))
	require.Equal(t, "hello", cmd.Label())
}

func TestNickCommandMatch(t *testing.T) {
	cmd := NewNickCommand("TestBot", "hello", WithAliases("hi"), WithNickAliases("AliasBot", "SupBot"))

	for _, text := range []string{"TestBot: hello", "AliasBot: hello", "SupBot, hi", "testbot hello"} {
		matches := cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :"+text))
		require.Len(t, matches, 1, text)
		require.Equal(t, text, matches[0].Group(0))
	}

	for _, text := range []string{".hello", "TestBot: .hello", "TestBot: bye"} {
		require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :"+text)), text)
	}
}

func TestActionCommandMatch(t *testing.T) {
	cmd := NewActionCommand("hello", WithAliases("hi", "hey"))

	matches := cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :\x01ACTION hey\x01"))
	require.Len(t, matches, 1)
	require.Equal(t, "hey", matches[0].Group(0))
	require.Equal(t, "hey", matches[0].Group(1))

	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :hello")))
	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :\x01VERSION hello\x01")))
	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :\x01ACTION .hello\x01")))
	require.Empty(t, cmd.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :\x01ACTION bye\x01")))
}

func TestURLCallbackMatch(t *testing.T) {
	cb := NewURLCallback([]*regexp.Regexp{regexp.MustCompile(`https?://(www\.)?example\.com/(\w+)`)}, WithCommandPrefix(`\.`))

	matches := cb.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :look https://example.com/one and http://www.example.com/two"))
	require.Len(t, matches, 2)
	require.Equal(t, "one", matches[0].Group(2))
	require.Equal(t, "two", matches[1].Group(2))

	require.Empty(t, cb.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :.title https://example.com/one")))
	require.Empty(t, cb.Match(pre(t, ":Foo!foo@example.com PRIVMSG #quirc :https://other.org/one")))
}

func TestRuleUsages(t *testing.T) {
	cmd := NewCommand("hello", `;`, WithHelpPrefix(";"), WithAliases("hi"), WithExamples(
		Example{Text: ".hello", Results: []string{"Hi!"}, IsHelp: true},
		Example{Text: ";hi", IsHelp: true},
	))
	usages := cmd.Usages()
	require.Len(t, usages, 2)
	require.Equal(t, ";hello", usages[0].Text)
	require.Equal(t, []string{"Hi!"}, usages[0].Results)
	require.Equal(t, ";hi", usages[1].Text)

	nick := NewNickCommand("TestBot", "hello", WithExamples(Example{Text: "$nickname: hello", IsHelp: true}))
	require.Equal(t, "TestBot: hello", nick.Usages()[0].Text)

	rule := NewRule([]*regexp.Regexp{matchAll()}, WithExamples(
		Example{Text: "hey"},
		Example{Text: "hello"},
	))
	require.Equal(t, []Example{{Text: "hey"}}, rule.Usages())
	require.Len(t, rule.Examples(), 2)
}

func TestRuleExecute(t *testing.T) {
	line := pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Hello, world")

	rule := NewRule([]*regexp.Regexp{matchAll()})
	trig := trigger.NewTrigger(trigger.Identity{}, line, rule.Match(line)[0], "")
	require.ErrorIs(t, rule.Execute(context.Background(), trig), ErrNoHandler)

	var got string
	rule = NewRule([]*regexp.Regexp{matchAll()}, WithHandler(func(ctx context.Context, t *trigger.Trigger) error {
		got = t.Group(0)
		return nil
	}))
	require.NoError(t, rule.Execute(context.Background(), trig))
	require.Equal(t, "Hello, world", got)
	require.Equal(t, 1, rule.Executions())

	boom := NewRule([]*regexp.Regexp{matchAll()}, WithHandler(func(ctx context.Context, t *trigger.Trigger) error {
		panic("boom")
	}))
	err := boom.Execute(context.Background(), trig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")

	failing := NewRule([]*regexp.Regexp{matchAll()}, WithHandler(func(ctx context.Context, t *trigger.Trigger) error {
		return errors.New("failed")
	}))
	require.EqualError(t, failing.Execute(context.Background(), trig), "failed")
	require.Equal(t, 1, failing.Executions())
}

func TestRuleRateLimit(t *testing.T) {
	now := time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	line := pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Hello, world")
	handler := WithHandler(func(ctx context.Context, t *trigger.Trigger) error { return nil })

	rule := NewRule([]*regexp.Regexp{matchAll()}, handler, WithClock(clock),
		WithRateLimit(20*time.Second, 20*time.Second, 20*time.Second),
		WithRateMessages("{nick}: wait {time_left_sec}s", "{channel} is limited ({rate_limit_type})", ""),
		WithPlugin("testplugin"))
	trig := trigger.NewTrigger(trigger.Identity{}, line, rule.Match(line)[0], "")

	require.False(t, rule.IsUserRateLimited("Foo"))
	require.False(t, rule.IsChannelRateLimited("#quirc"))
	require.False(t, rule.IsGlobalRateLimited())

	require.NoError(t, rule.Execute(context.Background(), trig))

	require.True(t, rule.IsUserRateLimited("foo"))
	require.True(t, rule.IsChannelRateLimited("#QUIRC"))
	require.True(t, rule.IsGlobalRateLimited())
	require.Equal(t, "Foo: wait 20s", rule.UserRateMessage("Foo"))
	require.Equal(t, "#quirc is limited (channel)", rule.ChannelRateMessage("Foo", "#quirc"))
	require.Equal(t, "", rule.GlobalRateMessage("Foo"))

	now = now.Add(15 * time.Second)
	require.Equal(t, "Foo: wait 5s", rule.UserRateMessage("Foo"))

	now = now.Add(6 * time.Second)
	require.False(t, rule.IsUserRateLimited("Foo"))
	require.False(t, rule.IsGlobalRateLimited())
}

func TestRuleRateLimitNoLimit(t *testing.T) {
	line := pre(t, ":Foo!foo@example.com PRIVMSG #quirc :Hello, world")

	unlimited := NewRule([]*regexp.Regexp{matchAll()}, WithHandler(func(ctx context.Context, t *trigger.Trigger) error { return nil }))
	trig := trigger.NewTrigger(trigger.Identity{}, line, unlimited.Match(line)[0], "")
	require.NoError(t, unlimited.Execute(context.Background(), trig))
	require.False(t, unlimited.IsUserRateLimited("Foo"))
	require.False(t, unlimited.IsGlobalRateLimited())

	ignored := NewRule([]*regexp.Regexp{matchAll()},
		WithRateLimit(20*time.Second, 20*time.Second, 20*time.Second),
		WithHandler(func(ctx context.Context, t *trigger.Trigger) error { return ErrNoLimit }))
	require.NoError(t, ignored.Execute(context.Background(), trig))
	require.False(t, ignored.IsUserRateLimited("Foo"))
	require.False(t, ignored.IsChannelRateLimited("#quirc"))
	require.False(t, ignored.IsGlobalRateLimited())
	require.Equal(t, 0, ignored.Executions())
}
