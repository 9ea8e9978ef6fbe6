package ses

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsses "github.com/aws/aws-sdk-go-v2/service/ses"
	"go.uber.org/zap"
)

// API is the subset of the SES client the monitor needs.
type API interface {
	GetSendQuota(ctx context.Context, params *awsses.GetSendQuotaInput, optFns ...func(*awsses.Options)) (*awsses.GetSendQuotaOutput, error)
	GetAccountSendingEnabled(ctx context.Context, params *awsses.GetAccountSendingEnabledInput, optFns ...func(*awsses.Options)) (*awsses.GetAccountSendingEnabledOutput, error)
	UpdateAccountSendingEnabled(ctx context.Context, params *awsses.UpdateAccountSendingEnabledInput, optFns ...func(*awsses.Options)) (*awsses.UpdateAccountSendingEnabledOutput, error)
}

// SendingStats is one reading of the account sending quota.
type SendingStats struct {
	Sent               float64
	Max                float64
	UtilizationPercent float64
	Timestamp          time.Time
}

// Service wraps the SES account-level API.
type Service struct {
	client API
	log    *zap.SugaredLogger
}

// NewService creates a Service from an AWS SDK config.
func NewService(cfg aws.Config, log *zap.SugaredLogger) *Service {
	return NewServiceWithClient(awsses.NewFromConfig(cfg), log)
}

// NewServiceWithClient creates a Service with an explicit client, used by
// tests and callers that customize the SDK client.
func NewServiceWithClient(client API, log *zap.SugaredLogger) *Service {
	return &Service{client: client, log: log.Named("ses")}
}

// GetSendingStats fetches the 24-hour sending quota and derives the
// utilization percentage (80% is 80).
func (s *Service) GetSendingStats(ctx context.Context) (SendingStats, error) {
	out, err := s.client.GetSendQuota(ctx, &awsses.GetSendQuotaInput{})
	if err != nil {
		return SendingStats{}, fmt.Errorf("fetching SES send quota: %w", err)
	}

	stats := SendingStats{
		Sent:      out.SentLast24Hours,
		Max:       out.Max24HourSend,
		Timestamp: time.Now().UTC(),
	}
	if out.Max24HourSend > 0 {
		stats.UtilizationPercent = (out.SentLast24Hours / out.Max24HourSend) * 100.0
	}

	s.log.Debugw("Fetched SES sending stats",
		"sent", stats.Sent,
		"max", stats.Max,
		"utilizationPercent", stats.UtilizationPercent)

	return stats, nil
}

// IsSendingEnabled reports whether account-level sending is enabled.
func (s *Service) IsSendingEnabled(ctx context.Context) (bool, error) {
	out, err := s.client.GetAccountSendingEnabled(ctx, &awsses.GetAccountSendingEnabledInput{})
	if err != nil {
		return false, fmt.Errorf("fetching SES account sending state: %w", err)
	}
	return out.Enabled, nil
}

// PauseSending disables account-level sending. Pausing an already paused
// account is a no-op on the provider side.
func (s *Service) PauseSending(ctx context.Context) error {
	s.log.Infow("Pausing SES account sending")
	_, err := s.client.UpdateAccountSendingEnabled(ctx, &awsses.UpdateAccountSendingEnabledInput{Enabled: false})
	if err != nil {
		return fmt.Errorf("pausing SES account sending: %w", err)
	}
	s.log.Infow("SES account sending paused")
	return nil
}

// ResumeSending re-enables account-level sending.
func (s *Service) ResumeSending(ctx context.Context) error {
	s.log.Infow("Resuming SES account sending")
	_, err := s.client.UpdateAccountSendingEnabled(ctx, &awsses.UpdateAccountSendingEnabledInput{Enabled: true})
	if err != nil {
		return fmt.Errorf("resuming SES account sending: %w", err)
	}
	s.log.Infow("SES account sending resumed")
	return nil
}
