package trigger

import (
	"regexp"
	"strings"

	"github.com/jirwin/quirc/pkg/irc"
)

// Match is the result of a rule pattern matching a line.
type Match struct {
	groups  []string
	present []bool
	names   map[string]int
}

// NewMatch builds a Match from the submatch indexes returned by re on text.
func NewMatch(re *regexp.Regexp, text string, loc []int) *Match {
	m := &Match{
		names: make(map[string]int),
	}

	for i := 0; i+1 < len(loc); i += 2 {
		if loc[i] < 0 {
			m.groups = append(m.groups, "")
			m.present = append(m.present, false)
			continue
		}
		m.groups = append(m.groups, text[loc[i]:loc[i+1]])
		m.present = append(m.present, true)
	}

	if re != nil {
		for i, name := range re.SubexpNames() {
			if name != "" {
				m.names[name] = i
			}
		}
	}

	return m
}

// TextMatch is a match whose only group is the whole text.
func TextMatch(text string) *Match {
	return &Match{
		groups:  []string{text},
		present: []bool{true},
		names:   map[string]int{},
	}
}

// Group returns the i-th group. Missing groups are returned as an empty string.
func (m *Match) Group(i int) string {
	if m == nil || i < 0 || i >= len(m.groups) {
		return ""
	}
	return m.groups[i]
}

// HasGroup reports whether the i-th group participated in the match.
func (m *Match) HasGroup(i int) bool {
	if m == nil || i < 0 || i >= len(m.present) {
		return false
	}
	return m.present[i]
}

// Named returns a named group.
func (m *Match) Named(name string) string {
	if m == nil {
		return ""
	}
	if i, ok := m.names[name]; ok {
		return m.Group(i)
	}
	return ""
}

// Groups returns the positional arguments of the match: every group but the whole match. It is
// named Groups so it does not shadow PreTrigger.Args, the raw IRC parameters.
func (m *Match) Groups() []string {
	if m == nil || len(m.groups) < 2 {
		return nil
	}
	return m.groups[1:]
}

// Identity holds the settings that decide who owns and administers the bot.
type Identity struct {
	Owner         string
	OwnerAccount  string
	Admins        []string
	AdminAccounts []string
	CaseMapping   irc.CaseMapping
}

// Trigger is a PreTrigger matched by a rule.
type Trigger struct {
	*PreTrigger
	Match   *Match
	Admin   bool
	Owner   bool
	Account string
}

// NewTrigger binds pre to match. account is the services account known for the sender, if any.
func NewTrigger(id Identity, pre *PreTrigger, match *Match, account string) *Trigger {
	if account == "" {
		account = pre.Account
	}

	t := &Trigger{
		PreTrigger: pre,
		Match:      match,
		Account:    account,
	}

	if id.OwnerAccount != "" {
		t.Owner = account != "" && account == id.OwnerAccount
	} else {
		t.Owner = matchHostOrNick(id.CaseMapping, id.Owner, pre)
	}

	t.Admin = t.Owner
	if !t.Admin && account != "" {
		for _, a := range id.AdminAccounts {
			if a == account {
				t.Admin = true
				break
			}
		}
	}
	if !t.Admin {
		for _, a := range id.Admins {
			if matchHostOrNick(id.CaseMapping, a, pre) {
				t.Admin = true
				break
			}
		}
	}

	return t
}

// Group is a shortcut to the matched groups.
func (t *Trigger) Group(i int) string {
	return t.Match.Group(i)
}

// hostmaskRegex turns a nick or nick!user@host pattern using * and ? wildcards into a regex.
func hostmaskRegex(pattern string) (*regexp.Regexp, error) {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.ReplaceAll(quoted, `\*`, ".*")
	quoted = strings.ReplaceAll(quoted, `\?`, ".")
	return regexp.Compile("(?i)^" + quoted + "$")
}

func matchHostOrNick(cm irc.CaseMapping, pattern string, pre *PreTrigger) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || pre.Nick == "" {
		return false
	}

	if !strings.ContainsAny(pattern, "*?!@") {
		return cm.Equal(pattern, pre.Nick)
	}

	re, err := hostmaskRegex(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(pre.Nick) || re.MatchString(pre.Nick+"!"+pre.User+"@"+pre.Host)
}
