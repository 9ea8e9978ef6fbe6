// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package notify implements the monitor's notification channels. Each
// channel queues payloads while checks run and delivers them on Flush;
// the Dispatcher flushes every channel and aggregates failures so a single
// failed delivery fails the whole invocation.
package notify

import (
	"context"
	"time"
)

// Threshold status names as they appear in notifications.
const (
	StatusOK       = "OK"
	StatusWarning  = "WARNING"
	StatusCritical = "CRITICAL"
)

// Actions the monitor reports alongside reputation notifications.
const (
	ActionAlert  = "alert"
	ActionPause  = "pause"
	ActionResume = "resume"
)

// Notifier is a notification channel with a pending queue.
type Notifier interface {
	// Name identifies the channel in logs and metrics.
	Name() string

	// Pending returns the number of queued, undelivered payloads.
	Pending() int

	// Flush delivers all queued payloads. The queue is drained even when
	// deliveries fail; the returned error aggregates every failure.
	Flush(ctx context.Context) error
}

// Metric is a breached or recovered metric as rendered into notifications.
// Percent and ThresholdPercent are in percentage form (5% is 5).
type Metric struct {
	Label            string
	Percent          float64
	ThresholdPercent float64
	Timestamp        time.Time
}

// QuotaStats carries the sending quota reading into notifications.
type QuotaStats struct {
	Sent               float64
	Max                float64
	UtilizationPercent float64
	Timestamp          time.Time
}
