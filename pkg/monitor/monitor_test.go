// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telekom/ses-account-monitor/pkg/audit"
	"github.com/telekom/ses-account-monitor/pkg/config"
	"github.com/telekom/ses-account-monitor/pkg/notify"
	"github.com/telekom/ses-account-monitor/pkg/reputation"
	"github.com/telekom/ses-account-monitor/pkg/ses"
)

type fakeSending struct {
	stats    ses.SendingStats
	statsErr error

	enabled    bool
	enabledErr error

	pauseCalls  int
	resumeCalls int
}

func (f *fakeSending) GetSendingStats(context.Context) (ses.SendingStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeSending) IsSendingEnabled(context.Context) (bool, error) {
	return f.enabled, f.enabledErr
}

func (f *fakeSending) PauseSending(context.Context) error {
	f.pauseCalls++
	f.enabled = false
	return nil
}

func (f *fakeSending) ResumeSending(context.Context) error {
	f.resumeCalls++
	f.enabled = true
	return nil
}

type fakeReputation struct {
	readings []reputation.Reading
	err      error
}

func (f *fakeReputation) GetMetrics(context.Context, time.Time) ([]reputation.Reading, error) {
	return f.readings, f.err
}

type slackCall struct {
	status  string
	action  string
	metrics []notify.Metric
}

type fakeSlack struct {
	quotaStatuses []string
	reputation    []slackCall
}

func (f *fakeSlack) EnqueueSendingQuotaMessage(status string, _ notify.QuotaStats, _ float64, _ time.Time) {
	f.quotaStatuses = append(f.quotaStatuses, status)
}

func (f *fakeSlack) EnqueueReputationMessage(status string, reputationMetrics []notify.Metric, action string, _ time.Time) {
	f.reputation = append(f.reputation, slackCall{status: status, action: action, metrics: reputationMetrics})
}

type fakePagerDuty struct {
	quotaTriggers      int
	quotaResolves      int
	reputationTriggers []slackCall
	reputationResolves int
}

func (f *fakePagerDuty) EnqueueQuotaTrigger(notify.QuotaStats, float64, time.Time) {
	f.quotaTriggers++
}

func (f *fakePagerDuty) EnqueueQuotaResolve() { f.quotaResolves++ }

func (f *fakePagerDuty) EnqueueReputationTrigger(reputationMetrics []notify.Metric, action string, _ time.Time) {
	f.reputationTriggers = append(f.reputationTriggers, slackCall{action: action, metrics: reputationMetrics})
}

func (f *fakePagerDuty) EnqueueReputationResolve() { f.reputationResolves++ }

type fakeDispatcher struct {
	pending    int
	flushErr   error
	flushCalls int
}

func (f *fakeDispatcher) Pending() int { return f.pending }

func (f *fakeDispatcher) Flush(context.Context) error {
	f.flushCalls++
	return f.flushErr
}

type harness struct {
	sending    *fakeSending
	reputation *fakeReputation
	slack      *fakeSlack
	pagerduty  *fakePagerDuty
	dispatcher *fakeDispatcher
	monitor    *Monitor
}

func newHarness(t *testing.T, mutate func(*config.Config)) *harness {
	t.Helper()

	cfg := config.Config{}
	cfg.AWS.Region = "eu-central-1"
	cfg.AWS.AccountName = "test"
	cfg.AWS.Environment = "test"
	cfg.Monitor.SendingQuota = true
	cfg.Monitor.Reputation = true
	cfg.Notify.Slack.OnSendingQuota = true
	cfg.Notify.Slack.OnReputation = true
	cfg.Notify.PagerDuty.OnSendingQuota = true
	cfg.Notify.PagerDuty.OnReputation = true
	cfg.Defaults()
	if mutate != nil {
		mutate(&cfg)
	}

	log := zap.NewNop().Sugar()
	h := &harness{
		sending:    &fakeSending{enabled: true},
		reputation: &fakeReputation{},
		slack:      &fakeSlack{},
		pagerduty:  &fakePagerDuty{},
		dispatcher: &fakeDispatcher{},
	}
	h.monitor = New(cfg, Deps{
		Sending:    h.sending,
		Reputation: h.reputation,
		Slack:      h.slack,
		PagerDuty:  h.pagerduty,
		Dispatcher: h.dispatcher,
		Trail:      audit.NewTrail("test-service", log),
	}, log)
	return h
}

func quotaStats(utilization float64) ses.SendingStats {
	return ses.SendingStats{
		Sent:               utilization,
		Max:                100,
		UtilizationPercent: utilization,
		Timestamp:          time.Now().UTC(),
	}
}

func bounceReading(percent float64) reputation.Reading {
	return reputation.Reading{
		ID:        reputation.MetricBounceRate,
		Label:     "Bounce Rate",
		Percent:   percent,
		Timestamp: time.Now().UTC(),
	}
}

func TestRunAllOK(t *testing.T) {
	h := newHarness(t, nil)
	h.sending.stats = quotaStats(10)
	h.reputation.readings = []reputation.Reading{bounceReading(1)}

	require.NoError(t, h.monitor.Run(context.Background()))

	// An ok quota still resolves any open incident, nothing else is queued.
	assert.Equal(t, 1, h.pagerduty.quotaResolves)
	assert.Zero(t, h.pagerduty.quotaTriggers)
	assert.Empty(t, h.slack.quotaStatuses)
	assert.Empty(t, h.slack.reputation)
	assert.Zero(t, h.sending.pauseCalls)
	assert.Zero(t, h.sending.resumeCalls)
	assert.Equal(t, 1, h.dispatcher.flushCalls)

	status := h.monitor.Status()
	assert.Equal(t, "ok", status.QuotaSeverity)
	assert.Equal(t, "ok", status.ReputationSeverity)
	assert.Empty(t, status.Error)
}

func TestQuotaCritical(t *testing.T) {
	h := newHarness(t, nil)
	h.sending.stats = quotaStats(95)
	h.reputation.readings = []reputation.Reading{bounceReading(1)}

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Equal(t, 1, h.pagerduty.quotaTriggers)
	assert.Zero(t, h.pagerduty.quotaResolves)
	assert.Equal(t, []string{notify.StatusCritical}, h.slack.quotaStatuses)

	// The quota check never touches account sending.
	assert.Zero(t, h.sending.pauseCalls)
}

func TestQuotaWarningResolvesIncident(t *testing.T) {
	h := newHarness(t, nil)
	h.sending.stats = quotaStats(85)
	h.reputation.readings = []reputation.Reading{bounceReading(1)}

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Zero(t, h.pagerduty.quotaTriggers)
	assert.Equal(t, 1, h.pagerduty.quotaResolves)
	assert.Equal(t, []string{notify.StatusWarning}, h.slack.quotaStatuses)
}

func TestReputationCriticalManagedPausesOnce(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Monitor.Strategy = config.StrategyManaged
	})
	h.sending.stats = quotaStats(10)
	h.reputation.readings = []reputation.Reading{bounceReading(9)}

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Equal(t, 1, h.sending.pauseCalls)
	require.Len(t, h.pagerduty.reputationTriggers, 1)
	assert.Equal(t, notify.ActionPause, h.pagerduty.reputationTriggers[0].action)
	require.Len(t, h.slack.reputation, 1)
	assert.Equal(t, notify.StatusCritical, h.slack.reputation[0].status)
	assert.Equal(t, notify.ActionPause, h.slack.reputation[0].action)

	// A second critical run must not pause again.
	require.NoError(t, h.monitor.Run(context.Background()))
	assert.Equal(t, 1, h.sending.pauseCalls)
}

func TestReputationCriticalAlertStrategyOnlyAlerts(t *testing.T) {
	h := newHarness(t, nil)
	h.sending.stats = quotaStats(10)
	h.reputation.readings = []reputation.Reading{bounceReading(9)}

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Zero(t, h.sending.pauseCalls)
	require.Len(t, h.pagerduty.reputationTriggers, 1)
	assert.Equal(t, notify.ActionAlert, h.pagerduty.reputationTriggers[0].action)
}

func TestReputationCriticalCarriesWarningMetrics(t *testing.T) {
	h := newHarness(t, nil)
	h.sending.stats = quotaStats(10)
	h.reputation.readings = []reputation.Reading{
		bounceReading(9),
		{ID: reputation.MetricComplaintRate, Label: "Complaint Rate", Percent: 0.02, Timestamp: time.Now().UTC()},
	}

	require.NoError(t, h.monitor.Run(context.Background()))

	require.Len(t, h.pagerduty.reputationTriggers, 1)
	metrics := h.pagerduty.reputationTriggers[0].metrics
	require.Len(t, metrics, 2)
	assert.Equal(t, "Bounce Rate", metrics[0].Label)
	assert.Equal(t, 8.0, metrics[0].ThresholdPercent)
	assert.Equal(t, "Complaint Rate", metrics[1].Label)
	assert.Equal(t, 0.01, metrics[1].ThresholdPercent)
}

func TestReputationWarningResumesWhenPaused(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Monitor.Strategy = config.StrategyManaged
	})
	h.sending.stats = quotaStats(10)
	h.sending.enabled = false
	h.reputation.readings = []reputation.Reading{bounceReading(6)}

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Equal(t, 1, h.sending.resumeCalls)
	assert.Empty(t, h.pagerduty.reputationTriggers)
	require.Len(t, h.slack.reputation, 1)
	assert.Equal(t, notify.StatusWarning, h.slack.reputation[0].status)
	assert.Equal(t, notify.ActionResume, h.slack.reputation[0].action)
}

func TestReputationOKResumesAndAnnouncesRecovery(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Monitor.Strategy = config.StrategyManaged
	})
	h.sending.stats = quotaStats(10)
	h.sending.enabled = false
	h.reputation.readings = []reputation.Reading{bounceReading(1)}

	require.NoError(t, h.monitor.Run(context.Background()))

	assert.Equal(t, 1, h.sending.resumeCalls)
	require.Len(t, h.slack.reputation, 1)
	assert.Equal(t, notify.StatusOK, h.slack.reputation[0].status)
	assert.Equal(t, notify.ActionResume, h.slack.reputation[0].action)

	// Already enabled, ok again: nothing to announce.
	require.NoError(t, h.monitor.Run(context.Background()))
	assert.Equal(t, 1, h.sending.resumeCalls)
	assert.Len(t, h.slack.reputation, 1)
}

func TestFlushFailureFailsRun(t *testing.T) {
	h := newHarness(t, nil)
	h.sending.stats = quotaStats(10)
	h.reputation.readings = []reputation.Reading{bounceReading(1)}
	h.dispatcher.flushErr = errors.New("slack channel #alerts: 500")

	err := h.monitor.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flushing notifications")
	assert.Contains(t, h.monitor.Status().Error, "flushing notifications")
}

func TestCheckFailureFailsRunButStillFlushes(t *testing.T) {
	h := newHarness(t, nil)
	h.sending.statsErr = errors.New("throttled")
	h.reputation.readings = []reputation.Reading{bounceReading(1)}

	err := h.monitor.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sending quota check")

	// The reputation check and the flush still ran.
	assert.Equal(t, "ok", h.monitor.Status().ReputationSeverity)
	assert.Equal(t, 1, h.dispatcher.flushCalls)
}

func TestDisabledChecksAreSkipped(t *testing.T) {
	h := newHarness(t, func(cfg *config.Config) {
		cfg.Monitor.SendingQuota = false
		cfg.Monitor.Reputation = false
	})

	require.NoError(t, h.monitor.Run(context.Background()))

	status := h.monitor.Status()
	assert.Empty(t, status.QuotaSeverity)
	assert.Empty(t, status.ReputationSeverity)
	assert.Equal(t, 1, h.dispatcher.flushCalls)
}
