package rules

import (
	"sort"
	"strings"
	"sync"

	"github.com/jirwin/quirc/pkg/trigger"
)

// Triggered is a rule paired with one of its matches.
type Triggered struct {
	Rule  *Rule
	Match *trigger.Match
}

// Manager stores the rules of every plugin and finds the ones a line triggers.
type Manager struct {
	mtx            sync.RWMutex
	rules          []*Rule
	commands       []*Rule
	nickCommands   []*Rule
	actionCommands []*Rule
	urlCallbacks   []*Rule
}

func NewManager() *Manager {
	return &Manager{}
}

// register appends r, replacing a command with the same plugin and name.
func register(list []*Rule, r *Rule) []*Rule {
	if r.name != "" {
		for i, existing := range list {
			if existing.opts.plugin == r.opts.plugin && strings.EqualFold(existing.name, r.name) {
				list[i] = r
				return list
			}
		}
	}
	return append(list, r)
}

// Register adds a pattern rule (Rule, FindRule or SearchRule).
func (m *Manager) Register(r *Rule) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.rules = append(m.rules, r)
}

func (m *Manager) RegisterCommand(r *Rule) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.commands = register(m.commands, r)
}

func (m *Manager) RegisterNickCommand(r *Rule) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.nickCommands = register(m.nickCommands, r)
}

func (m *Manager) RegisterActionCommand(r *Rule) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.actionCommands = register(m.actionCommands, r)
}

func (m *Manager) RegisterURLCallback(r *Rule) {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.urlCallbacks = append(m.urlCallbacks, r)
}

// RegisterAny dispatches r to the registration matching its kind.
func (m *Manager) RegisterAny(r *Rule) {
	switch r.kind {
	case KindCommand:
		m.RegisterCommand(r)
	case KindNickCommand:
		m.RegisterNickCommand(r)
	case KindActionCommand:
		m.RegisterActionCommand(r)
	case KindURLCallback:
		m.RegisterURLCallback(r)
	default:
		m.Register(r)
	}
}

func without(list []*Rule, plugin string) ([]*Rule, int) {
	kept := list[:0]
	removed := 0
	for _, r := range list {
		if r.opts.plugin == plugin {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	return kept, removed
}

// UnregisterPlugin removes every rule of a plugin and returns how many were removed.
func (m *Manager) UnregisterPlugin(plugin string) int {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	total := 0
	var n int
	m.rules, n = without(m.rules, plugin)
	total += n
	m.commands, n = without(m.commands, plugin)
	total += n
	m.nickCommands, n = without(m.nickCommands, plugin)
	total += n
	m.actionCommands, n = without(m.actionCommands, plugin)
	total += n
	m.urlCallbacks, n = without(m.urlCallbacks, plugin)
	total += n

	return total
}

type lookupOptions struct {
	plugin      string
	followAlias bool
}

type LookupOption func(*lookupOptions)

// InPlugin limits a lookup to one plugin.
func InPlugin(plugin string) LookupOption {
	return func(o *lookupOptions) { o.plugin = plugin }
}

// FollowAlias makes a command lookup match aliases too.
func FollowAlias() LookupOption {
	return func(o *lookupOptions) { o.followAlias = true }
}

func lookup(list []*Rule, match func(*Rule) bool, opts []LookupOption) bool {
	o := &lookupOptions{}
	for _, opt := range opts {
		opt(o)
	}

	for _, r := range list {
		if o.plugin != "" && r.opts.plugin != o.plugin {
			continue
		}
		if match(r) {
			return true
		}
	}
	return false
}

func commandLookup(list []*Rule, name string, opts []LookupOption) bool {
	o := &lookupOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return lookup(list, func(r *Rule) bool {
		if strings.EqualFold(r.name, name) {
			return true
		}
		return o.followAlias && r.HasAlias(name)
	}, opts)
}

// HasRule reports whether a pattern rule with this label is registered.
func (m *Manager) HasRule(label string, opts ...LookupOption) bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return lookup(m.rules, func(r *Rule) bool { return r.Label() == label }, opts)
}

func (m *Manager) HasCommand(name string, opts ...LookupOption) bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return commandLookup(m.commands, name, opts)
}

func (m *Manager) HasNickCommand(name string, opts ...LookupOption) bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return commandLookup(m.nickCommands, name, opts)
}

func (m *Manager) HasActionCommand(name string, opts ...LookupOption) bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return commandLookup(m.actionCommands, name, opts)
}

func (m *Manager) HasURLCallback(label string, opts ...LookupOption) bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return lookup(m.urlCallbacks, func(r *Rule) bool { return r.Label() == label }, opts)
}

func byPlugin(list []*Rule) map[string]map[string]*Rule {
	out := make(map[string]map[string]*Rule)
	for _, r := range list {
		if _, ok := out[r.opts.plugin]; !ok {
			out[r.opts.plugin] = make(map[string]*Rule)
		}
		out[r.opts.plugin][r.name] = r
	}
	return out
}

// AllCommands returns the prefixed commands by plugin and name.
func (m *Manager) AllCommands() map[string]map[string]*Rule {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return byPlugin(m.commands)
}

// AllNickCommands returns the nick commands by plugin and name.
func (m *Manager) AllNickCommands() map[string]map[string]*Rule {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return byPlugin(m.nickCommands)
}

// AllActionCommands returns the action commands by plugin and name.
func (m *Manager) AllActionCommands() map[string]map[string]*Rule {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	return byPlugin(m.actionCommands)
}

// Commands returns every prefixed command sorted by name.
func (m *Manager) Commands() []*Rule {
	m.mtx.RLock()
	out := append([]*Rule(nil), m.commands...)
	m.mtx.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return strings.ToLower(out[i].name) < strings.ToLower(out[j].name)
	})
	return out
}

// FindCommand returns a prefixed command by name or alias.
func (m *Manager) FindCommand(name string) (*Rule, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	for _, r := range m.commands {
		if strings.EqualFold(r.name, name) {
			return r, true
		}
	}
	for _, r := range m.commands {
		if r.HasAlias(name) {
			return r, true
		}
	}
	return nil, false
}

// TriggeredRules returns the rules matching pre, ordered by priority, then by kind (pattern rules,
// commands, nick commands, action commands, URL callbacks), then by registration order.
func (m *Manager) TriggeredRules(pre *trigger.PreTrigger) []Triggered {
	m.mtx.RLock()
	groups := [][]*Rule{
		append([]*Rule(nil), m.rules...),
		append([]*Rule(nil), m.commands...),
		append([]*Rule(nil), m.nickCommands...),
		append([]*Rule(nil), m.actionCommands...),
		append([]*Rule(nil), m.urlCallbacks...),
	}
	m.mtx.RUnlock()

	out := []Triggered{}
	for _, priority := range []Priority{PriorityHigh, PriorityMedium, PriorityLow} {
		for _, group := range groups {
			for _, r := range group {
				if r.opts.priority != priority {
					continue
				}
				for _, match := range r.Match(pre) {
					out = append(out, Triggered{Rule: r, Match: match})
				}
			}
		}
	}
	return out
}
