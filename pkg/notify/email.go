// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package notify

import (
	"context"
	"fmt"
	"math"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"

	"github.com/telekom/ses-account-monitor/pkg/metrics"
)

// mailDialer is the gomail surface the notifier needs; tests stub it.
type mailDialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// EmailConfig configures the SMTP summary channel.
type EmailConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	SenderAddress string
	SenderName    string
	Recipients    []string

	RetryCount     int
	RetryBackoffMs int

	DryRun bool
}

type emailItem struct {
	subject string
	body    string
}

// EmailNotifier sends plain-text summaries over SMTP with bounded retry
// and exponential backoff.
type EmailNotifier struct {
	cfg    EmailConfig
	dialer mailDialer
	log    *zap.SugaredLogger
	queue  []emailItem
}

func NewEmailNotifier(cfg EmailConfig, log *zap.SugaredLogger) *EmailNotifier {
	if cfg.SenderAddress == "" {
		cfg.SenderAddress = "noreply@ses-account-monitor"
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "SES Account Monitor"
	}
	if cfg.RetryCount <= 0 {
		cfg.RetryCount = 3
	}
	if cfg.RetryBackoffMs <= 0 {
		cfg.RetryBackoffMs = 100
	}

	return &EmailNotifier{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		log:    log.Named("email"),
	}
}

func (n *EmailNotifier) Name() string { return "email" }

func (n *EmailNotifier) Pending() int { return len(n.queue) }

// EnqueueSummary queues a plain-text notification mail.
func (n *EmailNotifier) EnqueueSummary(subject, body string) {
	n.queue = append(n.queue, emailItem{subject: subject, body: body})
	metrics.NotificationsQueued.WithLabelValues(n.Name()).Inc()
}

// Flush sends every queued mail, retrying each with exponential backoff
// before counting it as failed.
func (n *EmailNotifier) Flush(_ context.Context) error {
	pending := n.queue
	n.queue = nil

	if len(pending) == 0 {
		return nil
	}

	n.log.Debugw("Flushing email notifications", "messages", len(pending), "recipients", len(n.cfg.Recipients))

	var errs error
	for _, item := range pending {
		if n.cfg.DryRun {
			n.log.Infow("Dry run, skipping email delivery", "subject", item.subject)
			metrics.NotificationsSent.WithLabelValues(n.Name()).Inc()
			continue
		}

		if err := n.send(item); err != nil {
			n.log.Errorw("Email delivery failed", "subject", item.subject, "error", err)
			metrics.NotificationsFailed.WithLabelValues(n.Name()).Inc()
			errs = multierr.Append(errs, fmt.Errorf("email %q: %w", item.subject, err))
			continue
		}
		metrics.NotificationsSent.WithLabelValues(n.Name()).Inc()
	}
	return errs
}

func (n *EmailNotifier) send(item emailItem) error {
	msg := gomail.NewMessage()
	msg.SetAddressHeader("From", n.cfg.SenderAddress, n.cfg.SenderName)
	msg.SetHeader("To", n.cfg.Recipients...)
	msg.SetHeader("Subject", item.subject)
	msg.SetBody("text/plain", item.body)

	var lastErr error
	backoffMs := n.cfg.RetryBackoffMs

	for attempt := 0; attempt <= n.cfg.RetryCount; attempt++ {
		err := n.dialer.DialAndSend(msg)
		if err == nil {
			return nil
		}

		lastErr = err
		if attempt < n.cfg.RetryCount {
			n.log.Warnw("Email send attempt failed, retrying",
				"attempt", attempt+1,
				"backoffMs", backoffMs,
				"error", err)
			time.Sleep(time.Duration(backoffMs) * time.Millisecond)
			backoffMs = int(math.Min(float64(backoffMs)*2, 32000))
		}
	}
	return lastErr
}
