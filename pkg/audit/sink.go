// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"

	"go.uber.org/zap"
)

// Sink receives audit events. Implementations must tolerate concurrent
// writes.
type Sink interface {
	Name() string
	Write(ctx context.Context, event *Event) error
	Close() error
}

// LogSink emits audit events through the structured logger. It is always
// available and serves as the default trail destination.
type LogSink struct {
	log *zap.SugaredLogger
}

func NewLogSink(log *zap.SugaredLogger) *LogSink {
	return &LogSink{log: log.Named("audit")}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Write(_ context.Context, event *Event) error {
	s.log.Infow("Audit event",
		"id", event.ID,
		"type", event.Type,
		"severity", event.Severity,
		"runId", event.RunID,
		"service", event.Service,
		"details", event.Details)
	return nil
}

func (s *LogSink) Close() error { return nil }
