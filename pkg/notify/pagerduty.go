package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/telekom/ses-account-monitor/pkg/metrics"
)

// PagerDuty event classes; they key the dedup string so a later resolve
// closes the incident opened by an earlier trigger.
const (
	classSendingQuota = "ses_account_sending_quota"
	classReputation   = "ses_account_reputation"

	detailsVersion = "v1"
)

type pdPayload struct {
	Summary       string         `json:"summary"`
	Timestamp     string         `json:"timestamp"`
	Source        string         `json:"source"`
	Severity      string         `json:"severity"`
	Component     string         `json:"component"`
	Group         string         `json:"group"`
	Class         string         `json:"class"`
	CustomDetails map[string]any `json:"custom_details,omitempty"`
}

// pdEvent is a PagerDuty Events API v2 payload. Resolve events carry only
// the routing key, dedup key and action.
type pdEvent struct {
	Payload     *pdPayload `json:"payload,omitempty"`
	RoutingKey  string     `json:"routing_key"`
	DedupKey    string     `json:"dedup_key"`
	EventAction string     `json:"event_action"`
	Client      string     `json:"client,omitempty"`
	ClientURL   string     `json:"client_url,omitempty"`
}

// PagerDutyConfig configures the PagerDuty Events API channel.
type PagerDutyConfig struct {
	EventsURL  string
	RoutingKey string

	ServiceName string
	AccountName string
	Region      string
	Environment string
	ConsoleURL  string

	DryRun bool
}

// PagerDutyNotifier queues Events API v2 payloads and posts them on Flush.
type PagerDutyNotifier struct {
	cfg    PagerDutyConfig
	client *http.Client
	log    *zap.SugaredLogger
	queue  []pdEvent
}

func NewPagerDutyNotifier(cfg PagerDutyConfig, log *zap.SugaredLogger) *PagerDutyNotifier {
	return &PagerDutyNotifier{
		cfg:    cfg,
		client: &http.Client{},
		log:    log.Named("pagerduty"),
	}
}

func (n *PagerDutyNotifier) Name() string { return "pagerduty" }

func (n *PagerDutyNotifier) Pending() int { return len(n.queue) }

// EnqueueQuotaTrigger queues a trigger event for a breached sending quota.
func (n *PagerDutyNotifier) EnqueueQuotaTrigger(stats QuotaStats, thresholdPercent float64, eventTime time.Time) {
	details := n.baseDetails(stats.Timestamp)
	details["volume"] = stats.Sent
	details["max_volume"] = stats.Max
	details["utilization"] = fmt.Sprintf("%.0f%%", stats.UtilizationPercent)
	details["threshold"] = fmt.Sprintf("%.0f%%", thresholdPercent)

	n.enqueue(n.trigger(
		"SES account sending quota is at capacity.",
		classSendingQuota,
		eventTime,
		details,
	))
}

// EnqueueQuotaResolve queues a resolve event for the sending quota incident.
func (n *PagerDutyNotifier) EnqueueQuotaResolve() {
	n.enqueue(n.resolve(classSendingQuota))
}

// EnqueueReputationTrigger queues a trigger event carrying every breached
// reputation metric and the action the monitor took.
func (n *PagerDutyNotifier) EnqueueReputationTrigger(reputationMetrics []Metric, action string, eventTime time.Time) {
	details := n.baseDetails(eventTime)
	details["action"] = action
	switch action {
	case ActionPause:
		details["action_message"] = "SES account sending is paused."
	case ActionAlert:
		details["action_message"] = "SES account is in danger of being suspended."
	}

	for _, m := range reputationMetrics {
		name := metricKey(m.Label)
		details[name] = formatPercent(m.Percent)
		details[name+"_threshold"] = formatPercent(m.ThresholdPercent)
		details[name+"_timestamp"] = m.Timestamp.Format(time.RFC3339)
	}

	n.enqueue(n.trigger(
		"SES account reputation is at dangerous levels.",
		classReputation,
		eventTime,
		details,
	))
}

// EnqueueReputationResolve queues a resolve event for the reputation incident.
func (n *PagerDutyNotifier) EnqueueReputationResolve() {
	n.enqueue(n.resolve(classReputation))
}

// Flush posts every queued event. The queue is drained regardless of
// delivery outcome.
func (n *PagerDutyNotifier) Flush(ctx context.Context) error {
	pending := n.queue
	n.queue = nil

	if len(pending) == 0 {
		return nil
	}

	n.log.Debugw("Flushing PagerDuty events", "events", len(pending))

	var errs error
	for _, event := range pending {
		eventID := fmt.Sprintf("%s::%s", event.EventAction, event.DedupKey)

		if n.cfg.DryRun {
			n.log.Infow("Dry run, skipping PagerDuty delivery", "event", eventID)
			metrics.NotificationsSent.WithLabelValues(n.Name()).Inc()
			continue
		}

		if err := postJSON(ctx, n.client, n.cfg.EventsURL, event); err != nil {
			n.log.Errorw("PagerDuty delivery failed", "event", eventID, "error", err)
			metrics.NotificationsFailed.WithLabelValues(n.Name()).Inc()
			errs = multierr.Append(errs, fmt.Errorf("pagerduty event %s: %w", eventID, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(n.Name()).Inc()
	}
	return errs
}

func (n *PagerDutyNotifier) trigger(summary, class string, eventTime time.Time, details map[string]any) pdEvent {
	return pdEvent{
		Payload: &pdPayload{
			Summary:       summary,
			Timestamp:     eventTime.Format(time.RFC3339),
			Source:        n.cfg.ServiceName,
			Severity:      "critical",
			Component:     "ses",
			Group:         "aws-" + n.cfg.AccountName,
			Class:         class,
			CustomDetails: details,
		},
		RoutingKey:  n.cfg.RoutingKey,
		DedupKey:    n.dedupKey(class),
		EventAction: "trigger",
		Client:      "AWS Console",
		ClientURL:   n.cfg.ConsoleURL,
	}
}

func (n *PagerDutyNotifier) resolve(class string) pdEvent {
	return pdEvent{
		RoutingKey:  n.cfg.RoutingKey,
		DedupKey:    n.dedupKey(class),
		EventAction: "resolve",
	}
}

func (n *PagerDutyNotifier) baseDetails(ts time.Time) map[string]any {
	return map[string]any{
		"aws_account_name": n.cfg.AccountName,
		"aws_region":       n.cfg.Region,
		"aws_environment":  n.cfg.Environment,
		"ts":               ts.Format(time.RFC3339),
		"version":          detailsVersion,
	}
}

func (n *PagerDutyNotifier) dedupKey(class string) string {
	return fmt.Sprintf("%s/%s", n.cfg.ServiceName, class)
}

func (n *PagerDutyNotifier) enqueue(event pdEvent) {
	n.queue = append(n.queue, event)
	metrics.NotificationsQueued.WithLabelValues(n.Name()).Inc()
}

// metricKey turns a metric label into a custom-details key
// ("Bounce Rate" -> "bounce_rate").
func metricKey(label string) string {
	return strings.ToLower(strings.ReplaceAll(label, " ", "_"))
}
