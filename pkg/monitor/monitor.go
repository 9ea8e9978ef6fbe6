// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/telekom/ses-account-monitor/pkg/audit"
	"github.com/telekom/ses-account-monitor/pkg/config"
	"github.com/telekom/ses-account-monitor/pkg/metrics"
	"github.com/telekom/ses-account-monitor/pkg/notify"
	"github.com/telekom/ses-account-monitor/pkg/reputation"
	"github.com/telekom/ses-account-monitor/pkg/ses"
)

// SendingService is the SES account surface the monitor drives.
type SendingService interface {
	GetSendingStats(ctx context.Context) (ses.SendingStats, error)
	IsSendingEnabled(ctx context.Context) (bool, error)
	PauseSending(ctx context.Context) error
	ResumeSending(ctx context.Context) error
}

// ReputationService supplies the latest reputation metric readings.
type ReputationService interface {
	GetMetrics(ctx context.Context, at time.Time) ([]reputation.Reading, error)
}

// SlackQueue queues Slack messages for the dispatcher to deliver.
type SlackQueue interface {
	EnqueueSendingQuotaMessage(status string, stats notify.QuotaStats, thresholdPercent float64, eventTime time.Time)
	EnqueueReputationMessage(status string, reputationMetrics []notify.Metric, action string, eventTime time.Time)
}

// PagerDutyQueue queues PagerDuty events for the dispatcher to deliver.
type PagerDutyQueue interface {
	EnqueueQuotaTrigger(stats notify.QuotaStats, thresholdPercent float64, eventTime time.Time)
	EnqueueQuotaResolve()
	EnqueueReputationTrigger(reputationMetrics []notify.Metric, action string, eventTime time.Time)
	EnqueueReputationResolve()
}

// EmailQueue queues plain-text summary mails.
type EmailQueue interface {
	EnqueueSummary(subject, body string)
}

// Flusher delivers everything the checks queued.
type Flusher interface {
	Pending() int
	Flush(ctx context.Context) error
}

// Deps bundles the monitor's collaborators. Slack, PagerDuty and Email may
// be nil when the channel is not configured.
type Deps struct {
	Sending    SendingService
	Reputation ReputationService
	Slack      SlackQueue
	PagerDuty  PagerDutyQueue
	Email      EmailQueue
	Dispatcher Flusher
	Trail      *audit.Trail
}

// RunStatus is a snapshot of the most recent monitor invocation.
type RunStatus struct {
	RunID              string    `json:"runId"`
	StartedAt          time.Time `json:"startedAt"`
	FinishedAt         time.Time `json:"finishedAt"`
	QuotaSeverity      string    `json:"quotaSeverity,omitempty"`
	ReputationSeverity string    `json:"reputationSeverity,omitempty"`
	ReputationAction   string    `json:"reputationAction,omitempty"`
	Error              string    `json:"error,omitempty"`
}

// Monitor runs the sending quota and reputation checks, classifies the
// readings against the configured thresholds, manages account sending under
// the managed strategy and queues notifications for the dispatcher.
type Monitor struct {
	cfg  config.Config
	deps Deps
	log  *zap.SugaredLogger

	mu      sync.RWMutex
	lastRun RunStatus
}

func New(cfg config.Config, deps Deps, log *zap.SugaredLogger) *Monitor {
	return &Monitor{
		cfg:  cfg,
		deps: deps,
		log:  log.Named("monitor"),
	}
}

// Status returns the snapshot of the last completed run.
func (m *Monitor) Status() RunStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRun
}

// Run performs one monitor invocation: every enabled check runs, then all
// queued notifications are flushed. Any check or delivery failure makes the
// whole invocation fail so the scheduler retries it.
func (m *Monitor) Run(ctx context.Context) error {
	runID := uuid.NewString()
	now := time.Now().UTC()
	status := RunStatus{RunID: runID, StartedAt: now}

	m.log.Infow("Starting monitor run", "runId", runID, "strategy", m.cfg.Monitor.Strategy)

	var errs error
	if m.cfg.Monitor.SendingQuota {
		sev, err := m.checkSendingQuota(ctx, runID, now)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			status.QuotaSeverity = sev.String()
		}
	}
	if m.cfg.Monitor.Reputation {
		sev, action, err := m.checkReputation(ctx, runID, now)
		if err != nil {
			errs = multierr.Append(errs, err)
		} else {
			status.ReputationSeverity = sev.String()
			status.ReputationAction = action
		}
	}

	errs = multierr.Append(errs, m.flush(ctx, runID))

	status.FinishedAt = time.Now().UTC()
	if errs != nil {
		status.Error = errs.Error()
	}

	m.mu.Lock()
	m.lastRun = status
	m.mu.Unlock()

	if errs != nil {
		m.log.Errorw("Monitor run finished with failures", "runId", runID, "error", errs)
		return errs
	}
	m.log.Infow("Monitor run finished", "runId", runID,
		"quotaSeverity", status.QuotaSeverity,
		"reputationSeverity", status.ReputationSeverity)
	return nil
}

func (m *Monitor) checkSendingQuota(ctx context.Context, runID string, now time.Time) (Severity, error) {
	metrics.ChecksRun.WithLabelValues("quota").Inc()

	stats, err := m.deps.Sending.GetSendingStats(ctx)
	if err != nil {
		metrics.CheckFailures.WithLabelValues("quota").Inc()
		return SeverityOK, fmt.Errorf("sending quota check: %w", err)
	}

	threshold := m.cfg.Thresholds.SendingQuota
	sev := Classify(stats.UtilizationPercent, threshold)

	metrics.SendingQuotaUsedPercent.Set(stats.UtilizationPercent)
	metrics.CheckSeverity.WithLabelValues("quota").Set(float64(sev))

	m.log.Infow("Checked SES sending quota",
		"runId", runID,
		"utilizationPercent", stats.UtilizationPercent,
		"severity", sev.String())

	event := audit.NewEvent(audit.EventQuotaChecked, sev.AuditSeverity())
	event.RunID = runID
	event.WithDetail("sent", stats.Sent).
		WithDetail("max", stats.Max).
		WithDetail("utilizationPercent", stats.UtilizationPercent)
	m.deps.Trail.Record(ctx, event)

	quota := notify.QuotaStats{
		Sent:               stats.Sent,
		Max:                stats.Max,
		UtilizationPercent: stats.UtilizationPercent,
		Timestamp:          stats.Timestamp,
	}

	// The quota check never pauses sending; AWS throttles excess volume
	// on its own. It only raises and resolves incidents.
	switch sev {
	case SeverityCritical:
		if m.deps.PagerDuty != nil && m.cfg.Notify.PagerDuty.OnSendingQuota {
			m.deps.PagerDuty.EnqueueQuotaTrigger(quota, threshold.CriticalPercent, now)
		}
		if m.deps.Slack != nil && m.cfg.Notify.Slack.OnSendingQuota {
			m.deps.Slack.EnqueueSendingQuotaMessage(notify.StatusCritical, quota, threshold.CriticalPercent, now)
		}
		m.emailSummary(
			fmt.Sprintf("[CRITICAL] SES sending quota at %.2f%%", stats.UtilizationPercent),
			fmt.Sprintf("Volume: %.0f of %.0f", stats.Sent, stats.Max),
			fmt.Sprintf("Threshold: %.2f%%", threshold.CriticalPercent))
	case SeverityWarning:
		if m.deps.PagerDuty != nil && m.cfg.Notify.PagerDuty.OnSendingQuota {
			m.deps.PagerDuty.EnqueueQuotaResolve()
		}
		if m.deps.Slack != nil && m.cfg.Notify.Slack.OnSendingQuota {
			m.deps.Slack.EnqueueSendingQuotaMessage(notify.StatusWarning, quota, threshold.WarningPercent, now)
		}
		m.emailSummary(
			fmt.Sprintf("[WARNING] SES sending quota at %.2f%%", stats.UtilizationPercent),
			fmt.Sprintf("Volume: %.0f of %.0f", stats.Sent, stats.Max),
			fmt.Sprintf("Threshold: %.2f%%", threshold.WarningPercent))
	default:
		if m.deps.PagerDuty != nil && m.cfg.Notify.PagerDuty.OnSendingQuota {
			m.deps.PagerDuty.EnqueueQuotaResolve()
		}
	}

	return sev, nil
}

// classifiedReading pairs a reputation reading with its threshold verdict.
type classifiedReading struct {
	reading   reputation.Reading
	threshold config.Threshold
	severity  Severity
}

func (m *Monitor) checkReputation(ctx context.Context, runID string, now time.Time) (Severity, string, error) {
	metrics.ChecksRun.WithLabelValues("reputation").Inc()

	readings, err := m.deps.Reputation.GetMetrics(ctx, now)
	if err != nil {
		metrics.CheckFailures.WithLabelValues("reputation").Inc()
		return SeverityOK, "", fmt.Errorf("reputation check: %w", err)
	}

	overall := SeverityOK
	classified := make([]classifiedReading, 0, len(readings))
	for _, r := range readings {
		threshold, ok := m.thresholdFor(r.ID)
		if !ok {
			m.log.Warnw("No threshold configured for reputation metric", "metric", r.ID)
			continue
		}
		sev := Classify(r.Percent, threshold)
		if sev > overall {
			overall = sev
		}
		metrics.ReputationPercent.WithLabelValues(r.ID).Set(r.Percent)
		classified = append(classified, classifiedReading{reading: r, threshold: threshold, severity: sev})
	}
	metrics.CheckSeverity.WithLabelValues("reputation").Set(float64(overall))

	m.log.Infow("Checked SES account reputation",
		"runId", runID,
		"metrics", len(classified),
		"severity", overall.String())

	event := audit.NewEvent(audit.EventReputationChecked, overall.AuditSeverity())
	event.RunID = runID
	for _, c := range classified {
		event.WithDetail(c.reading.ID, c.reading.Percent)
		event.WithDetail(c.reading.ID+"_severity", c.severity.String())
	}
	m.deps.Trail.Record(ctx, event)

	action := ""
	switch overall {
	case SeverityCritical:
		action = notify.ActionAlert
		if m.cfg.Monitor.Strategy == config.StrategyManaged {
			if err := m.pauseSending(ctx, runID); err != nil {
				return overall, "", err
			}
			action = notify.ActionPause
		}

		breached := notifyMetrics(classified, SeverityWarning)
		if m.deps.PagerDuty != nil && m.cfg.Notify.PagerDuty.OnReputation {
			m.deps.PagerDuty.EnqueueReputationTrigger(breached, action, now)
		}
		if m.deps.Slack != nil && m.cfg.Notify.Slack.OnReputation {
			m.deps.Slack.EnqueueReputationMessage(notify.StatusCritical, breached, action, now)
		}
		m.emailSummary("[CRITICAL] SES account reputation at dangerous levels", metricLines(breached)...)

	case SeverityWarning:
		action = notify.ActionAlert
		if m.cfg.Monitor.Strategy == config.StrategyManaged {
			resumed, err := m.resumeIfPaused(ctx, runID)
			if err != nil {
				return overall, "", err
			}
			if resumed {
				action = notify.ActionResume
			}
		}

		breached := notifyMetrics(classified, SeverityWarning)
		if m.deps.Slack != nil && m.cfg.Notify.Slack.OnReputation {
			m.deps.Slack.EnqueueReputationMessage(notify.StatusWarning, breached, action, now)
		}
		m.emailSummary("[WARNING] SES account reputation degraded", metricLines(breached)...)

	default:
		if m.cfg.Monitor.Strategy == config.StrategyManaged {
			resumed, err := m.resumeIfPaused(ctx, runID)
			if err != nil {
				return overall, "", err
			}
			if resumed {
				action = notify.ActionResume
				if m.deps.Slack != nil && m.cfg.Notify.Slack.OnReputation {
					m.deps.Slack.EnqueueReputationMessage(notify.StatusOK, notifyMetrics(classified, SeverityOK), action, now)
				}
			}
		}
	}

	return overall, action, nil
}

// pauseSending disables account sending if it is currently enabled.
func (m *Monitor) pauseSending(ctx context.Context, runID string) error {
	enabled, err := m.deps.Sending.IsSendingEnabled(ctx)
	if err != nil {
		return fmt.Errorf("reputation check: %w", err)
	}
	if !enabled {
		m.log.Debugw("Account sending already paused", "runId", runID)
		return nil
	}

	if err := m.deps.Sending.PauseSending(ctx); err != nil {
		return fmt.Errorf("pausing account sending: %w", err)
	}
	metrics.SendingPaused.Inc()

	event := audit.NewEvent(audit.EventSendingPaused, audit.SeverityCritical)
	event.RunID = runID
	m.deps.Trail.Record(ctx, event)
	return nil
}

// resumeIfPaused re-enables account sending if it is currently paused and
// reports whether it did.
func (m *Monitor) resumeIfPaused(ctx context.Context, runID string) (bool, error) {
	enabled, err := m.deps.Sending.IsSendingEnabled(ctx)
	if err != nil {
		return false, fmt.Errorf("reputation check: %w", err)
	}
	if enabled {
		return false, nil
	}

	if err := m.deps.Sending.ResumeSending(ctx); err != nil {
		return false, fmt.Errorf("resuming account sending: %w", err)
	}
	metrics.SendingResumed.Inc()

	event := audit.NewEvent(audit.EventSendingResumed, audit.SeverityOK)
	event.RunID = runID
	m.deps.Trail.Record(ctx, event)
	return true, nil
}

func (m *Monitor) flush(ctx context.Context, runID string) error {
	pending := m.deps.Dispatcher.Pending()
	err := m.deps.Dispatcher.Flush(ctx)

	severity := audit.SeverityOK
	event := audit.NewEvent(audit.EventNotificationsFlushed, severity)
	event.RunID = runID
	event.WithDetail("queued", pending)
	if err != nil {
		event.Severity = audit.SeverityWarning
		event.WithDetail("error", err.Error())
	}
	m.deps.Trail.Record(ctx, event)

	if err != nil {
		return fmt.Errorf("flushing notifications: %w", err)
	}
	return nil
}

func (m *Monitor) emailSummary(subject string, lines ...string) {
	if m.deps.Email == nil {
		return
	}
	m.deps.Email.EnqueueSummary(subject, strings.Join(lines, "\n"))
}

func (m *Monitor) thresholdFor(metricID string) (config.Threshold, bool) {
	switch metricID {
	case reputation.MetricBounceRate:
		return m.cfg.Thresholds.BounceRate, true
	case reputation.MetricComplaintRate:
		return m.cfg.Thresholds.ComplaintRate, true
	}
	return config.Threshold{}, false
}

// notifyMetrics renders the readings at or above the given severity into
// notification metrics. The threshold shown is the one the reading breached.
func notifyMetrics(classified []classifiedReading, min Severity) []notify.Metric {
	out := make([]notify.Metric, 0, len(classified))
	for _, c := range classified {
		if c.severity < min {
			continue
		}
		threshold := c.threshold.WarningPercent
		if c.severity == SeverityCritical {
			threshold = c.threshold.CriticalPercent
		}
		out = append(out, notify.Metric{
			Label:            c.reading.Label,
			Percent:          c.reading.Percent,
			ThresholdPercent: threshold,
			Timestamp:        c.reading.Timestamp,
		})
	}
	return out
}

func metricLines(breached []notify.Metric) []string {
	lines := make([]string, 0, len(breached))
	for _, m := range breached {
		lines = append(lines, fmt.Sprintf("%s: %.2f%% (threshold %.2f%%)", m.Label, m.Percent, m.ThresholdPercent))
	}
	return lines
}
