package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/telekom/ses-account-monitor/pkg/metrics"
)

const slackUsername = "SES Account Monitor"

// statusColor maps a threshold status to a Slack attachment color.
var statusColor = map[string]string{
	StatusCritical: "danger",
	StatusWarning:  "warning",
	StatusOK:       "good",
}

type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short,omitempty"`
}

type slackAttachment struct {
	Fallback   string       `json:"fallback"`
	Color      string       `json:"color"`
	Fields     []slackField `json:"fields"`
	Footer     string       `json:"footer"`
	FooterIcon string       `json:"footer_icon,omitempty"`
	Ts         int64        `json:"ts"`
}

type slackMessage struct {
	Channel     string            `json:"channel,omitempty"`
	Attachments []slackAttachment `json:"attachments"`
	IconEmoji   string            `json:"icon_emoji,omitempty"`
	Username    string            `json:"username"`
}

// SlackConfig configures the Slack webhook channel.
type SlackConfig struct {
	WebhookURL    string
	Channels      []string
	IconEmoji     string
	FooterIconURL string

	ServiceName            string
	AccountName            string
	Region                 string
	Environment            string
	ConsoleURL             string
	ReputationDashboardURL string

	DryRun bool
}

// SlackNotifier queues attachment-style messages and fans them out to every
// configured channel on Flush.
type SlackNotifier struct {
	cfg    SlackConfig
	client *http.Client
	log    *zap.SugaredLogger
	queue  []slackMessage
}

func NewSlackNotifier(cfg SlackConfig, log *zap.SugaredLogger) *SlackNotifier {
	return &SlackNotifier{
		cfg:    cfg,
		client: &http.Client{},
		log:    log.Named("slack"),
	}
}

func (n *SlackNotifier) Name() string { return "slack" }

func (n *SlackNotifier) Pending() int { return len(n.queue) }

// EnqueueSendingQuotaMessage queues a quota status message.
func (n *SlackNotifier) EnqueueSendingQuotaMessage(status string, stats QuotaStats, thresholdPercent float64, eventTime time.Time) {
	fields := []slackField{
		{Title: "Service", Value: fmt.Sprintf("<%s|SES Account Sending>", n.cfg.ConsoleURL), Short: true},
		{Title: "Account", Value: n.cfg.AccountName, Short: true},
		{Title: "Region", Value: n.cfg.Region, Short: true},
		{Title: "Environment", Value: n.cfg.Environment, Short: true},
		{Title: "Status", Value: status, Short: true},
		{Title: "Time", Value: stats.Timestamp.Format(time.RFC3339)},
		{Title: "Utilization", Value: formatPercent(stats.UtilizationPercent), Short: true},
		{Title: "Threshold", Value: formatPercent(thresholdPercent), Short: true},
		{Title: "Volume", Value: strconv.FormatFloat(stats.Sent, 'f', -1, 64), Short: true},
		{Title: "Max Volume", Value: strconv.FormatFloat(stats.Max, 'f', -1, 64), Short: true},
		{Title: "Message", Value: fmt.Sprintf("SES account sending rate has breached the %s threshold.", status)},
	}

	n.enqueue(slackMessage{
		Attachments: []slackAttachment{{
			Fallback:   fmt.Sprintf("SES account sending rate has breached %s threshold.", status),
			Color:      statusColor[status],
			Fields:     fields,
			Footer:     n.cfg.ServiceName,
			FooterIcon: n.cfg.FooterIconURL,
			Ts:         eventTime.Unix(),
		}},
		IconEmoji: n.cfg.IconEmoji,
		Username:  slackUsername,
	})
}

// EnqueueReputationMessage queues a reputation status message carrying one
// field pair per metric.
func (n *SlackNotifier) EnqueueReputationMessage(status string, reputationMetrics []Metric, action string, eventTime time.Time) {
	fallback, primary := reputationText(status)

	fields := []slackField{
		{Title: "Service", Value: fmt.Sprintf("<%s|SES Account Reputation>", n.cfg.ReputationDashboardURL), Short: true},
		{Title: "Account", Value: n.cfg.AccountName, Short: true},
		{Title: "Region", Value: n.cfg.Region, Short: true},
		{Title: "Environment", Value: n.cfg.Environment, Short: true},
		{Title: "Status", Value: status, Short: true},
		{Title: "Action", Value: action, Short: true},
	}

	for _, m := range reputationMetrics {
		fields = append(fields,
			slackField{
				Title: fmt.Sprintf("%s / Threshold", m.Label),
				Value: fmt.Sprintf("%s / %s", formatPercent(m.Percent), formatPercent(m.ThresholdPercent)),
				Short: true,
			},
			slackField{
				Title: fmt.Sprintf("%s Time", m.Label),
				Value: m.Timestamp.Format(time.RFC3339),
				Short: true,
			})
	}
	fields = append(fields, slackField{Title: "Message", Value: primary})

	n.enqueue(slackMessage{
		Attachments: []slackAttachment{{
			Fallback:   fallback,
			Color:      statusColor[status],
			Fields:     fields,
			Footer:     n.cfg.ServiceName,
			FooterIcon: n.cfg.FooterIconURL,
			Ts:         eventTime.Unix(),
		}},
		IconEmoji: n.cfg.IconEmoji,
		Username:  slackUsername,
	})
}

// Flush posts every queued message to every configured channel. The queue
// is drained regardless of delivery outcome.
func (n *SlackNotifier) Flush(ctx context.Context) error {
	pending := n.queue
	n.queue = nil

	if len(pending) == 0 {
		return nil
	}

	n.log.Debugw("Flushing Slack notifications", "messages", len(pending), "channels", len(n.cfg.Channels))

	var errs error
	for _, msg := range pending {
		for _, channel := range n.cfg.Channels {
			msg.Channel = channel

			if n.cfg.DryRun {
				n.log.Infow("Dry run, skipping Slack delivery", "channel", channel, "fallback", msg.Attachments[0].Fallback)
				metrics.NotificationsSent.WithLabelValues(n.Name()).Inc()
				continue
			}

			if err := postJSON(ctx, n.client, n.cfg.WebhookURL, msg); err != nil {
				n.log.Errorw("Slack delivery failed", "channel", channel, "error", err)
				metrics.NotificationsFailed.WithLabelValues(n.Name()).Inc()
				errs = multierr.Append(errs, fmt.Errorf("slack channel %s: %w", channel, err))
				continue
			}
			metrics.NotificationsSent.WithLabelValues(n.Name()).Inc()
		}
	}
	return errs
}

func (n *SlackNotifier) enqueue(msg slackMessage) {
	n.queue = append(n.queue, msg)
	metrics.NotificationsQueued.WithLabelValues(n.Name()).Inc()
}

func reputationText(status string) (fallback, primary string) {
	if status == StatusOK {
		return "SES account reputation has recovered.",
			fmt.Sprintf("SES account reputation status is %s.", status)
	}
	return fmt.Sprintf("SES account reputation has breached %s threshold.", status),
		fmt.Sprintf("SES account reputation has breached the %s threshold.", status)
}

// formatPercent renders a percentage-form value ("5.00%" for 5).
func formatPercent(v float64) string {
	return fmt.Sprintf("%.2f%%", v)
}
