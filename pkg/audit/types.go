// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package audit records the monitor's decisions as structured events.
// Every invocation leaves a trail of what was read, how it was classified
// and what was done about it.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies a monitor decision.
type EventType string

const (
	// Check events carry the reading and resulting severity.
	EventQuotaChecked      EventType = "check.quota"
	EventReputationChecked EventType = "check.reputation"

	// Management actions under the managed strategy.
	EventSendingPaused  EventType = "sending.paused"
	EventSendingResumed EventType = "sending.resumed"

	// Notification dispatch outcome for the whole invocation.
	EventNotificationsFlushed EventType = "notifications.flushed"
)

// Severity mirrors the threshold classification of the event's subject.
type Severity string

const (
	SeverityOK       Severity = "ok"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Event is one audit record.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Severity  Severity       `json:"severity"`
	Timestamp time.Time      `json:"timestamp"`
	RunID     string         `json:"runId,omitempty"`
	Service   string         `json:"service,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
}

// NewEvent creates an event with a fresh ID and UTC timestamp.
func NewEvent(eventType EventType, severity Severity) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Severity:  severity,
		Timestamp: time.Now().UTC(),
		Details:   map[string]any{},
	}
}

// WithDetail attaches a key/value pair to the event.
func (e *Event) WithDetail(key string, value any) *Event {
	if e.Details == nil {
		e.Details = map[string]any{}
	}
	e.Details[key] = value
	return e
}
