// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/telekom/ses-account-monitor/pkg/metrics"
)

// Trail fans audit events out to every registered sink. A failing sink
// never fails the monitor run; the event is counted as dropped for that
// sink and the remaining sinks still receive it.
type Trail struct {
	service string
	sinks   []Sink
	log     *zap.SugaredLogger
}

func NewTrail(service string, log *zap.SugaredLogger, sinks ...Sink) *Trail {
	return &Trail{
		service: service,
		sinks:   sinks,
		log:     log.Named("audit-trail"),
	}
}

// Record stamps the event with the service identity and delivers it to
// every sink.
func (t *Trail) Record(ctx context.Context, event *Event) {
	if event.Service == "" {
		event.Service = t.service
	}

	for _, sink := range t.sinks {
		if err := sink.Write(ctx, event); err != nil {
			metrics.AuditEventsDropped.WithLabelValues(sink.Name()).Inc()
			t.log.Warnw("Audit sink rejected event",
				"sink", sink.Name(),
				"eventId", event.ID,
				"eventType", event.Type,
				"error", err)
			continue
		}
		metrics.AuditEventsEmitted.WithLabelValues(sink.Name()).Inc()
	}
}

// Close closes every sink, keeping the first error.
func (t *Trail) Close() error {
	var firstErr error
	for _, sink := range t.sinks {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
