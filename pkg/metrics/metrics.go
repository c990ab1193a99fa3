package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "quirc"

var (
	LinesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_received_total",
			Help:      "Lines received from the IRC server by command",
		},
		[]string{"command"},
	)

	LinesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lines_sent_total",
			Help:      "Lines written to the IRC server",
		},
	)

	MessagesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dropped_total",
			Help:      "Outgoing messages dropped or replaced by the anti-loop guard",
		},
		[]string{"reason"},
	)

	RuleExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rule_executions_total",
			Help:      "Rule executions by plugin and result",
		},
		[]string{"plugin", "result"},
	)

	RuleDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rule_duration_seconds",
			Help:      "Time spent in rule handlers",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"plugin"},
	)

	RulesRateLimited = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_rate_limited_total",
			Help:      "Rule calls skipped because of a rate limit",
		},
		[]string{"plugin", "limit_type"},
	)

	RulesBlocked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rules_blocked_total",
			Help:      "Rule calls skipped because the sender is blocked or the rule is disabled",
		},
		[]string{"plugin", "reason"},
	)

	Reconnects = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnects_total",
			Help:      "Connection attempts after the first one",
		},
	)

	Connected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while registered with the IRC server",
		},
	)

	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Scheduled job runs by plugin and result",
		},
		[]string{"plugin", "result"},
	)

	WebhookRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_requests_total",
			Help:      "Plugin webhook requests by webhook and outcome",
		},
		[]string{"webhook", "outcome"},
	)
)

// Result labels an error as "ok" or "error".
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
