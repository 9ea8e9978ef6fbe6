package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ChecksRun = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ses_monitor_checks_total",
		Help: "Total number of metric checks performed",
	}, []string{"check"})
	CheckFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ses_monitor_check_failures_total",
		Help: "Total number of metric checks that failed to complete",
	}, []string{"check"})

	// Notification metrics
	NotificationsQueued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ses_monitor_notifications_queued_total",
		Help: "Total number of notifications queued per channel",
	}, []string{"channel"})
	NotificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ses_monitor_notifications_sent_total",
		Help: "Total number of notifications delivered per channel",
	}, []string{"channel"})
	NotificationsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ses_monitor_notifications_failed_total",
		Help: "Total number of notification deliveries that failed per channel",
	}, []string{"channel"})

	// Management actions
	SendingPaused = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ses_monitor_sending_paused_total",
		Help: "Total number of times account sending was paused",
	})
	SendingResumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "ses_monitor_sending_resumed_total",
		Help: "Total number of times account sending was resumed",
	})

	// Latest observed values
	SendingQuotaUsedPercent = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "ses_monitor_sending_quota_used_percent",
		Help: "Latest observed sending quota utilization percentage",
	})
	ReputationPercent = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ses_monitor_reputation_percent",
		Help: "Latest observed reputation metric percentage",
	}, []string{"metric"})
	CheckSeverity = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ses_monitor_check_severity",
		Help: "Latest severity per check (0 ok, 1 warning, 2 critical)",
	}, []string{"check"})

	// Audit trail metrics
	AuditEventsEmitted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ses_monitor_audit_events_emitted_total",
		Help: "Total number of audit events written per sink",
	}, []string{"sink"})
	AuditEventsDropped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ses_monitor_audit_events_dropped_total",
		Help: "Total number of audit events that failed to write per sink",
	}, []string{"sink"})
)

func init() {
	prometheus.MustRegister(ChecksRun)
	prometheus.MustRegister(CheckFailures)
	prometheus.MustRegister(NotificationsQueued)
	prometheus.MustRegister(NotificationsSent)
	prometheus.MustRegister(NotificationsFailed)
	prometheus.MustRegister(SendingPaused)
	prometheus.MustRegister(SendingResumed)
	prometheus.MustRegister(SendingQuotaUsedPercent)
	prometheus.MustRegister(ReputationPercent)
	prometheus.MustRegister(CheckSeverity)
	prometheus.MustRegister(AuditEventsEmitted)
	prometheus.MustRegister(AuditEventsDropped)
}

// MetricsHandler returns an http.Handler exposing Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
