package reputation

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"go.uber.org/zap"
)

// Metric identifiers, stable across notifications and audit events.
const (
	MetricBounceRate    = "bounce_rate"
	MetricComplaintRate = "complaint_rate"
)

// API is the subset of the CloudWatch client the monitor needs.
type API interface {
	GetMetricData(ctx context.Context, params *cloudwatch.GetMetricDataInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.GetMetricDataOutput, error)
}

// Reading is the latest datapoint of one reputation metric. Percent is in
// percentage form: a 5% bounce rate is 5.
type Reading struct {
	ID        string
	Label     string
	Percent   float64
	Timestamp time.Time
}

// Service fetches SES account reputation metrics from CloudWatch.
type Service struct {
	client API
	log    *zap.SugaredLogger

	// Period is the CloudWatch statistic period, Window how far back
	// GetMetricData looks from the target time.
	Period time.Duration
	Window time.Duration
}

// NewService creates a Service from an AWS SDK config.
func NewService(cfg aws.Config, period, window time.Duration, log *zap.SugaredLogger) *Service {
	return NewServiceWithClient(cloudwatch.NewFromConfig(cfg), period, window, log)
}

// NewServiceWithClient creates a Service with an explicit client.
func NewServiceWithClient(client API, period, window time.Duration, log *zap.SugaredLogger) *Service {
	if period <= 0 {
		period = 15 * time.Minute
	}
	if window <= 0 {
		window = 30 * time.Minute
	}
	return &Service{
		client: client,
		log:    log.Named("reputation"),
		Period: period,
		Window: window,
	}
}

// GetMetrics fetches the bounce and complaint rates and returns the latest
// reading per metric. Metrics without datapoints in the window are omitted.
func (s *Service) GetMetrics(ctx context.Context, at time.Time) ([]Reading, error) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	s.log.Debugw("Fetching SES reputation metric data", "at", at, "window", s.Window)

	out, err := s.client.GetMetricData(ctx, s.buildInput(at))
	if err != nil {
		return nil, fmt.Errorf("fetching SES reputation metrics: %w", err)
	}

	var readings []Reading
	for _, result := range out.MetricDataResults {
		reading, ok := latestDatapoint(result)
		if !ok {
			s.log.Debugw("Reputation metric has no datapoints in window", "metric", aws.ToString(result.Id))
			continue
		}
		readings = append(readings, reading)
	}

	s.log.Debugw("Fetched SES reputation metrics", "count", len(readings))
	return readings, nil
}

func (s *Service) buildInput(at time.Time) *cloudwatch.GetMetricDataInput {
	period := int32(s.Period.Seconds())
	query := func(id, metricName, label string) types.MetricDataQuery {
		return types.MetricDataQuery{
			Id:    aws.String(id),
			Label: aws.String(label),
			MetricStat: &types.MetricStat{
				Metric: &types.Metric{
					Namespace:  aws.String("AWS/SES"),
					MetricName: aws.String(metricName),
				},
				Period: aws.Int32(period),
				Stat:   aws.String("Average"),
			},
			ReturnData: aws.Bool(true),
		}
	}

	return &cloudwatch.GetMetricDataInput{
		MetricDataQueries: []types.MetricDataQuery{
			query(MetricBounceRate, "Reputation.BounceRate", "Bounce Rate"),
			query(MetricComplaintRate, "Reputation.ComplaintRate", "Complaint Rate"),
		},
		StartTime: aws.Time(at.Add(-s.Window)),
		EndTime:   aws.Time(at),
	}
}

// latestDatapoint picks the most recent value of a metric data result.
// CloudWatch does not guarantee ordering of the timestamp slice, and
// reports reputation rates as fractions (0.05 for 5%), so the value is
// converted to percentage form.
func latestDatapoint(result types.MetricDataResult) (Reading, bool) {
	if len(result.Timestamps) == 0 || len(result.Timestamps) != len(result.Values) {
		return Reading{}, false
	}

	last := 0
	for i, ts := range result.Timestamps {
		if ts.After(result.Timestamps[last]) {
			last = i
		}
	}

	return Reading{
		ID:        aws.ToString(result.Id),
		Label:     aws.ToString(result.Label),
		Percent:   result.Values[last] * 100.0,
		Timestamp: result.Timestamps[last].UTC(),
	}, true
}
