package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type stubDialer struct {
	calls    int
	failures int
}

func (s *stubDialer) DialAndSend(_ ...*gomail.Message) error {
	s.calls++
	if s.calls <= s.failures {
		return errors.New("connection refused")
	}
	return nil
}

func testEmailNotifier(dialer mailDialer) *EmailNotifier {
	n := NewEmailNotifier(EmailConfig{
		Host:           "smtp.example.com",
		Port:           587,
		Recipients:     []string{"ops@example.com"},
		RetryCount:     2,
		RetryBackoffMs: 1,
	}, zap.NewNop().Sugar())
	n.dialer = dialer
	return n
}

func TestEmailFlushSendsQueuedMail(t *testing.T) {
	dialer := &stubDialer{}
	n := testEmailNotifier(dialer)

	n.EnqueueSummary("[CRITICAL] SES sending quota at 95.00%", "Volume: 95 of 100")
	assert.Equal(t, 1, n.Pending())

	require.NoError(t, n.Flush(context.Background()))
	assert.Equal(t, 1, dialer.calls)
	assert.Zero(t, n.Pending())
}

func TestEmailRetriesWithBackoff(t *testing.T) {
	dialer := &stubDialer{failures: 2}
	n := testEmailNotifier(dialer)

	n.EnqueueSummary("subject", "body")

	require.NoError(t, n.Flush(context.Background()))
	assert.Equal(t, 3, dialer.calls)
}

func TestEmailGivesUpAfterRetries(t *testing.T) {
	dialer := &stubDialer{failures: 10}
	n := testEmailNotifier(dialer)

	n.EnqueueSummary("subject", "body")

	err := n.Flush(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subject")
	assert.Equal(t, 3, dialer.calls)
	assert.Zero(t, n.Pending())
}

func TestEmailDryRun(t *testing.T) {
	dialer := &stubDialer{}
	n := testEmailNotifier(dialer)
	n.cfg.DryRun = true

	n.EnqueueSummary("subject", "body")

	require.NoError(t, n.Flush(context.Background()))
	assert.Zero(t, dialer.calls)
}
