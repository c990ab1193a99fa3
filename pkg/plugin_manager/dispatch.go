package plugin_manager

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jirwin/quirc/pkg/irc"
	"github.com/jirwin/quirc/pkg/metrics"
	"github.com/jirwin/quirc/pkg/rules"
	"github.com/jirwin/quirc/pkg/trigger"
)

const errorTimeFormat = "2006-01-02 15:04:05.000000"

// blockMatch reports whether value is matched in full by pattern, as a case-insensitive regular
// expression, or equals it.
func blockMatch(pattern, value string, equal func(a, b string) bool) bool {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" || value == "" {
		return false
	}
	if re, err := regexp.Compile("(?i)^(?:" + pattern + ")$"); err == nil && re.MatchString(value) {
		return true
	}
	return equal(pattern, value)
}

func isBlocked(patterns []string, value string, equal func(a, b string) bool) bool {
	for _, p := range patterns {
		if blockMatch(p, value, equal) {
			return true
		}
	}
	return false
}

// Dispatch runs every rule triggered by pre, in priority order. Threaded rules run in their own
// goroutine; see WaitRunning.
func (m *ManagerImpl) Dispatch(ctx context.Context, pre *trigger.PreTrigger) {
	// Lines replayed from before the bot joined the channel are ignored.
	if _, ok := pre.Tags["time"]; ok && pre.Sender != "" {
		if ch, ok := m.ircManager.GetChannel(pre.Sender); ok && !ch.JoinTime.IsZero() && pre.Time.Before(ch.JoinTime) {
			return
		}
	}

	triggered := m.rules.TriggeredRules(pre)
	if len(triggered) == 0 {
		return
	}

	core := m.settings.Core()
	cm := m.ircManager.CaseMapping()
	nickBlocked := isBlocked(core.NickBlocks, pre.Nick, cm.Equal)
	hostBlocked := isBlocked(core.HostBlocks, pre.Host, func(a, b string) bool { return a == b })
	blocked := nickBlocked || hostBlocked

	account := ""
	if u, ok := m.ircManager.GetUser(pre.Nick); ok {
		account = u.Account
	}
	id := m.ircManager.Identity()

	blockedRules := []string{}
	for _, tr := range triggered {
		t := trigger.NewTrigger(id, pre, tr.Match, account)

		if blocked && !t.Admin && !tr.Rule.IsUnblockable() {
			blockedRules = append(blockedRules, tr.Rule.String())
			metrics.RulesBlocked.WithLabelValues(tr.Rule.Plugin(), "blocklist").Inc()
			continue
		}

		if tr.Rule.IsThreaded() {
			m.running.Add(1)
			go func(r *rules.Rule, t *trigger.Trigger) {
				defer m.running.Done()
				m.callRule(ctx, r, t)
			}(tr.Rule, t)
			continue
		}
		m.callRule(ctx, tr.Rule, t)
	}

	if len(blockedRules) > 0 {
		blockType := "host blocklist"
		switch {
		case nickBlocked && hostBlocked:
			blockType = "both blocklists"
		case nickBlocked:
			blockType = "nick blocklist"
		}
		m.l.Debug("blocked rules",
			zap.String("nick", pre.Nick),
			zap.Strings("rules", blockedRules),
			zap.String("block_type", blockType),
		)
	}
}

// callRule applies rate limits and channel settings, then executes the rule.
func (m *ManagerImpl) callRule(ctx context.Context, r *rules.Rule, t *trigger.Trigger) {
	helper := m.newHelper(r.Plugin(), t, r)
	isChannel := t.IsChannelMessage()

	if !t.Admin && !r.IsUnblockable() {
		limitType, message := "", ""
		switch {
		case r.IsUserRateLimited(t.Nick):
			limitType, message = "user", r.UserRateMessage(t.Nick)
		case isChannel && r.IsChannelRateLimited(t.Sender):
			limitType, message = "channel", r.ChannelRateMessage(t.Nick, t.Sender)
		case r.IsGlobalRateLimited():
			limitType, message = "global", r.GlobalRateMessage(t.Nick)
		}

		if limitType != "" {
			metrics.RulesRateLimited.WithLabelValues(r.Plugin(), limitType).Inc()
			if message != "" {
				helper.NoticeTo(t.Nick, message) //nolint:errcheck
			}
			return
		}
	}

	if isChannel && r.Plugin() != coreTasksPlugin {
		channel := m.settings.Channel(t.Sender)
		if channel.PluginDisabled(r.Plugin()) || channel.CommandDisabled(r.Plugin(), r.Label()) {
			metrics.RulesBlocked.WithLabelValues(r.Plugin(), "disabled").Inc()
			return
		}
	}

	start := time.Now()
	err := r.Execute(ctx, t)
	metrics.RuleDuration.WithLabelValues(r.Plugin()).Observe(time.Since(start).Seconds())
	metrics.RuleExecutions.WithLabelValues(r.Plugin(), metrics.Result(err)).Inc()

	if err != nil {
		m.reportError(r, t, err)
	}
}

// errorMessage describes a failed rule call the way it is reported in channel.
func errorMessage(err error, t *trigger.Trigger, at time.Time) string {
	message := "Unexpected error"
	if detail := err.Error(); detail != "" {
		message = fmt.Sprintf("%s (%s)", message, detail)
	}
	return fmt.Sprintf("%s from %s at %s. Message was: %s",
		message, t.Nick, at.UTC().Format(errorTimeFormat), irc.Safe(t.Group(0)))
}

func (m *ManagerImpl) reportError(r *rules.Rule, t *trigger.Trigger, err error) {
	message := errorMessage(err, t, m.now())
	m.l.Error("error in rule",
		zap.String("plugin_id", r.Plugin()),
		zap.String("rule", r.String()),
		zap.String("nick", t.Nick),
		zap.String("line", t.Line),
		zap.Error(err),
	)

	if m.settings.Core().ReplyErrors && t.Sender != "" {
		m.ircManager.Say(message, t.Sender, 1, "", "") //nolint:errcheck
	}
}
