package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubNotifier struct {
	name       string
	pending    int
	flushErr   error
	flushCalls int
}

func (s *stubNotifier) Name() string { return s.name }
func (s *stubNotifier) Pending() int { return s.pending }
func (s *stubNotifier) Flush(context.Context) error {
	s.flushCalls++
	return s.flushErr
}

func TestDispatcherFlushesEveryChannel(t *testing.T) {
	slack := &stubNotifier{name: "slack", pending: 2}
	pagerduty := &stubNotifier{name: "pagerduty", pending: 1}

	d := NewDispatcher(zap.NewNop().Sugar(), slack, pagerduty)

	assert.Equal(t, 3, d.Pending())
	require.NoError(t, d.Flush(context.Background()))
	assert.Equal(t, 1, slack.flushCalls)
	assert.Equal(t, 1, pagerduty.flushCalls)
}

func TestDispatcherAggregatesFailures(t *testing.T) {
	failing := &stubNotifier{name: "slack", flushErr: errors.New("slack down")}
	healthy := &stubNotifier{name: "pagerduty"}
	alsoFailing := &stubNotifier{name: "email", flushErr: errors.New("smtp down")}

	d := NewDispatcher(zap.NewNop().Sugar(), failing, healthy, alsoFailing)

	err := d.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack down")
	assert.Contains(t, err.Error(), "smtp down")

	// A failing channel never blocks the ones after it.
	assert.Equal(t, 1, healthy.flushCalls)
	assert.Equal(t, 1, alsoFailing.flushCalls)
}

func TestDispatcherWithoutChannels(t *testing.T) {
	d := NewDispatcher(zap.NewNop().Sugar())
	assert.Zero(t, d.Pending())
	assert.NoError(t, d.Flush(context.Background()))
}
