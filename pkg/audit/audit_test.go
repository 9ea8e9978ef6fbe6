// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingSink struct {
	name   string
	events []*Event
	err    error
	closed bool
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Write(_ context.Context, event *Event) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) Close() error {
	s.closed = true
	return nil
}

func TestNewEvent(t *testing.T) {
	event := NewEvent(EventQuotaChecked, SeverityWarning).
		WithDetail("utilizationPercent", 85.0)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, EventQuotaChecked, event.Type)
	assert.Equal(t, SeverityWarning, event.Severity)
	assert.False(t, event.Timestamp.IsZero())
	assert.Equal(t, 85.0, event.Details["utilizationPercent"])

	other := NewEvent(EventQuotaChecked, SeverityWarning)
	assert.NotEqual(t, event.ID, other.ID)
}

func TestTrailFansOutAndStampsService(t *testing.T) {
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	trail := NewTrail("test-service", zap.NewNop().Sugar(), first, second)

	trail.Record(context.Background(), NewEvent(EventSendingPaused, SeverityCritical))

	require.Len(t, first.events, 1)
	require.Len(t, second.events, 1)
	assert.Equal(t, "test-service", first.events[0].Service)
}

func TestTrailFailingSinkDoesNotBlockOthers(t *testing.T) {
	failing := &recordingSink{name: "kafka", err: errors.New("broker unreachable")}
	healthy := &recordingSink{name: "log"}
	trail := NewTrail("test-service", zap.NewNop().Sugar(), failing, healthy)

	trail.Record(context.Background(), NewEvent(EventQuotaChecked, SeverityOK))

	assert.Empty(t, failing.events)
	require.Len(t, healthy.events, 1)
}

func TestTrailClose(t *testing.T) {
	first := &recordingSink{name: "first"}
	second := &recordingSink{name: "second"}
	trail := NewTrail("test-service", zap.NewNop().Sugar(), first, second)

	require.NoError(t, trail.Close())
	assert.True(t, first.closed)
	assert.True(t, second.closed)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(zap.NewNop().Sugar())
	assert.Equal(t, "log", sink.Name())
	assert.NoError(t, sink.Write(context.Background(), NewEvent(EventNotificationsFlushed, SeverityOK)))
	assert.NoError(t, sink.Close())
}

func TestKafkaSinkConfigValidation(t *testing.T) {
	log := zap.NewNop().Sugar()

	_, err := NewKafkaSink(KafkaSinkConfig{Topic: "audit"}, log)
	assert.ErrorContains(t, err, "broker")

	_, err = NewKafkaSink(KafkaSinkConfig{Brokers: []string{"localhost:9092"}}, log)
	assert.ErrorContains(t, err, "topic")

	_, err = NewKafkaSink(KafkaSinkConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "audit",
		SASL:    &KafkaSASLConfig{Mechanism: "GSSAPI"},
	}, log)
	assert.ErrorContains(t, err, "unsupported SASL mechanism")
}

func TestKafkaSinkClosedWrite(t *testing.T) {
	sink, err := NewKafkaSink(KafkaSinkConfig{
		Brokers: []string{"localhost:9092"},
		Topic:   "audit",
	}, zap.NewNop().Sugar())
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	err = sink.Write(context.Background(), NewEvent(EventQuotaChecked, SeverityOK))
	assert.ErrorContains(t, err, "closed")
}
