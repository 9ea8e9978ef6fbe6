package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// Management strategies for the monitored SES account.
const (
	StrategyAlert   = "alert"
	StrategyManaged = "managed"
)

// Threshold holds the warning/critical percentage cutoffs for one metric.
// Percentages are absolute: 80% is 80, not 0.8.
type Threshold struct {
	WarningPercent  float64 `yaml:"warningPercent"`
	CriticalPercent float64 `yaml:"criticalPercent"`
}

// Thresholds groups the cutoffs for every monitored metric.
type Thresholds struct {
	SendingQuota  Threshold `yaml:"sendingQuota"`
	BounceRate    Threshold `yaml:"bounceRate"`
	ComplaintRate Threshold `yaml:"complaintRate"`
}

type Server struct {
	ListenAddress string `yaml:"listenAddress"`
}

type AWS struct {
	Region      string `yaml:"region"`
	AccountName string `yaml:"accountName"`
	Environment string `yaml:"environment"`
}

type Monitor struct {
	// Strategy is either "alert" (notify only) or "managed" (notify and
	// pause/resume account sending on reputation transitions).
	Strategy string `yaml:"strategy"`

	SendingQuota bool `yaml:"sendingQuota"`
	Reputation   bool `yaml:"reputation"`

	// CheckInterval is the polling interval for the long-running mode.
	// Ignored in one-shot mode.
	CheckInterval time.Duration `yaml:"checkInterval"`

	// ReputationPeriodSeconds is the CloudWatch statistic period.
	ReputationPeriodSeconds int `yaml:"reputationPeriodSeconds"`
	// ReputationWindowSeconds is how far back GetMetricData looks.
	ReputationWindowSeconds int `yaml:"reputationWindowSeconds"`

	// ServiceName identifies this monitor in notifications and dedup keys.
	// Defaults to "<account>-<region>-<environment>-ses-account-monitor".
	ServiceName string `yaml:"serviceName"`

	ConsoleURL             string `yaml:"consoleURL"`
	ReputationDashboardURL string `yaml:"reputationDashboardURL"`
}

type Slack struct {
	OnSendingQuota bool     `yaml:"onSendingQuota"`
	OnReputation   bool     `yaml:"onReputation"`
	WebhookURL     string   `yaml:"webhookURL"`
	Channels       []string `yaml:"channels"`
	IconEmoji      string   `yaml:"iconEmoji"`
	FooterIconURL  string   `yaml:"footerIconURL"`
}

type PagerDuty struct {
	OnSendingQuota bool   `yaml:"onSendingQuota"`
	OnReputation   bool   `yaml:"onReputation"`
	EventsURL      string `yaml:"eventsURL"`
	RoutingKey     string `yaml:"routingKey"`
}

type Email struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	User           string   `yaml:"user"`
	Password       string   `yaml:"password"`
	SenderAddress  string   `yaml:"senderAddress"`
	SenderName     string   `yaml:"senderName"`
	Recipients     []string `yaml:"recipients"`
	RetryCount     int      `yaml:"retryCount"`
	RetryBackoffMs int      `yaml:"retryBackoffMs"`
}

type Notify struct {
	// DryRun logs notification payloads instead of delivering them.
	DryRun    bool      `yaml:"dryRun"`
	Slack     Slack     `yaml:"slack"`
	PagerDuty PagerDuty `yaml:"pagerDuty"`
	Email     Email     `yaml:"email"`
}

type KafkaAudit struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`

	TLSEnabled         bool   `yaml:"tlsEnabled"`
	InsecureSkipVerify bool   `yaml:"insecureSkipVerify"`
	SASLMechanism      string `yaml:"saslMechanism"`
	SASLUsername       string `yaml:"saslUsername"`
	SASLPassword       string `yaml:"saslPassword"`
}

type Audit struct {
	Kafka KafkaAudit `yaml:"kafka"`
}

type Config struct {
	Server     Server     `yaml:"server"`
	AWS        AWS        `yaml:"aws"`
	Monitor    Monitor    `yaml:"monitor"`
	Thresholds Thresholds `yaml:"thresholds"`
	Notify     Notify     `yaml:"notify"`
	Audit      Audit      `yaml:"audit"`
}

// Load reads the monitor configuration. The YAML file is optional; every
// value can be supplied or overridden through environment variables (the
// README lists the full table). If configPath is empty the
// SES_MONITOR_CONFIG_PATH environment variable is consulted, and a missing
// file is not an error.
func Load(configPath ...string) (Config, error) {
	var path string
	if len(configPath) > 0 && configPath[0] != "" {
		path = configPath[0]
	} else {
		path = os.Getenv("SES_MONITOR_CONFIG_PATH")
	}

	var config Config

	if path != "" {
		content, err := os.ReadFile(path)
		if err != nil {
			return config, fmt.Errorf("trying to open ses-account-monitor config file %s: %v", path, err)
		}
		if err := yaml.Unmarshal(content, &config); err != nil {
			return config, fmt.Errorf("error unmarshaling YAML %s: %v", path, err)
		}
	}

	config.applyEnv()
	config.Defaults()

	return config, nil
}

// applyEnv overlays environment variables onto the config. The variable
// names follow the monitor's original deployment contract.
func (c *Config) applyEnv() {
	envString(&c.AWS.Region, "AWS_REGION", "AWS_DEFAULT_REGION")
	envString(&c.AWS.AccountName, "AWS_ACCOUNT_NAME")
	envString(&c.AWS.Environment, "ENVIRONMENT")

	envString(&c.Monitor.Strategy, "SES_MONITOR_STRATEGY")
	envBool(&c.Monitor.SendingQuota, "MONITOR_SES_SENDING_QUOTA")
	envBool(&c.Monitor.Reputation, "MONITOR_SES_REPUTATION")
	envDuration(&c.Monitor.CheckInterval, "SES_MONITOR_CHECK_INTERVAL")
	envInt(&c.Monitor.ReputationPeriodSeconds, "SES_REPUTATION_PERIOD")
	envInt(&c.Monitor.ReputationWindowSeconds, "SES_REPUTATION_METRIC_TIMEDELTA")
	envString(&c.Monitor.ServiceName, "SES_MONITOR_SERVICE_NAME")
	envString(&c.Monitor.ConsoleURL, "SES_CONSOLE_URL")
	envString(&c.Monitor.ReputationDashboardURL, "SES_REPUTATION_DASHBOARD_URL")

	envFloat(&c.Thresholds.SendingQuota.WarningPercent, "SES_SENDING_QUOTA_WARNING_PERCENT")
	envFloat(&c.Thresholds.SendingQuota.CriticalPercent, "SES_SENDING_QUOTA_CRITICAL_PERCENT")
	envFloat(&c.Thresholds.BounceRate.WarningPercent, "SES_BOUNCE_RATE_WARNING_PERCENT")
	envFloat(&c.Thresholds.BounceRate.CriticalPercent, "SES_BOUNCE_RATE_CRITICAL_PERCENT")
	envFloat(&c.Thresholds.ComplaintRate.WarningPercent, "SES_COMPLAINT_RATE_WARNING_PERCENT")
	envFloat(&c.Thresholds.ComplaintRate.CriticalPercent, "SES_COMPLAINT_RATE_CRITICAL_PERCENT")

	envBool(&c.Notify.DryRun, "NOTIFY_DRY_RUN")
	envBool(&c.Notify.Slack.OnSendingQuota, "NOTIFY_SLACK_ON_SES_SENDING_QUOTA")
	envBool(&c.Notify.Slack.OnReputation, "NOTIFY_SLACK_ON_SES_REPUTATION")
	envString(&c.Notify.Slack.WebhookURL, "SLACK_WEBHOOK_URL")
	envList(&c.Notify.Slack.Channels, "SLACK_CHANNELS")
	envString(&c.Notify.Slack.IconEmoji, "SLACK_ICON_EMOJI")
	envString(&c.Notify.Slack.FooterIconURL, "SLACK_FOOTER_ICON_URL")

	envBool(&c.Notify.PagerDuty.OnSendingQuota, "NOTIFY_PAGER_DUTY_ON_SES_SENDING_QUOTA")
	envBool(&c.Notify.PagerDuty.OnReputation, "NOTIFY_PAGER_DUTY_ON_SES_REPUTATION")
	envString(&c.Notify.PagerDuty.EventsURL, "PAGER_DUTY_EVENTS_URL")
	envString(&c.Notify.PagerDuty.RoutingKey, "PAGER_DUTY_ROUTING_KEY")

	envBool(&c.Notify.Email.Enabled, "NOTIFY_EMAIL_ENABLED")
	envString(&c.Notify.Email.Host, "NOTIFY_EMAIL_HOST")
	envInt(&c.Notify.Email.Port, "NOTIFY_EMAIL_PORT")
	envString(&c.Notify.Email.User, "NOTIFY_EMAIL_USER")
	envString(&c.Notify.Email.Password, "NOTIFY_EMAIL_PASSWORD")
	envString(&c.Notify.Email.SenderAddress, "NOTIFY_EMAIL_SENDER")
	envList(&c.Notify.Email.Recipients, "NOTIFY_EMAIL_RECIPIENTS")

	envBool(&c.Audit.Kafka.Enabled, "AUDIT_KAFKA_ENABLED")
	envList(&c.Audit.Kafka.Brokers, "AUDIT_KAFKA_BROKERS")
	envString(&c.Audit.Kafka.Topic, "AUDIT_KAFKA_TOPIC")
}

// Defaults fills zero values with the monitor's stock settings.
func (c *Config) Defaults() {
	if c.Server.ListenAddress == "" {
		c.Server.ListenAddress = ":8080"
	}
	if c.AWS.AccountName == "" {
		c.AWS.AccountName = "undefined"
	}
	if c.AWS.Environment == "" {
		c.AWS.Environment = "undefined"
	}

	if c.Monitor.Strategy == "" {
		c.Monitor.Strategy = StrategyAlert
	}
	if c.Monitor.CheckInterval <= 0 {
		c.Monitor.CheckInterval = 5 * time.Minute
	}
	if c.Monitor.ReputationPeriodSeconds <= 0 {
		c.Monitor.ReputationPeriodSeconds = 900
	}
	if c.Monitor.ReputationWindowSeconds <= 0 {
		c.Monitor.ReputationWindowSeconds = 1800
	}
	if c.Monitor.ServiceName == "" {
		c.Monitor.ServiceName = fmt.Sprintf("%s-%s-%s-ses-account-monitor",
			c.AWS.AccountName, c.AWS.Region, c.AWS.Environment)
	}
	if c.Monitor.ConsoleURL == "" && c.AWS.Region != "" {
		base := fmt.Sprintf("https://%s.console.aws.amazon.com/ses/home?region=%s", c.AWS.Region, c.AWS.Region)
		c.Monitor.ConsoleURL = base + "#dashboard:"
		if c.Monitor.ReputationDashboardURL == "" {
			c.Monitor.ReputationDashboardURL = base + "#reputation-dashboard:"
		}
	}

	if c.Thresholds.SendingQuota.WarningPercent == 0 {
		c.Thresholds.SendingQuota.WarningPercent = 80
	}
	if c.Thresholds.SendingQuota.CriticalPercent == 0 {
		c.Thresholds.SendingQuota.CriticalPercent = 90
	}
	if c.Thresholds.BounceRate.WarningPercent == 0 {
		c.Thresholds.BounceRate.WarningPercent = 5
	}
	if c.Thresholds.BounceRate.CriticalPercent == 0 {
		c.Thresholds.BounceRate.CriticalPercent = 8
	}
	if c.Thresholds.ComplaintRate.WarningPercent == 0 {
		c.Thresholds.ComplaintRate.WarningPercent = 0.01
	}
	if c.Thresholds.ComplaintRate.CriticalPercent == 0 {
		c.Thresholds.ComplaintRate.CriticalPercent = 0.04
	}

	if c.Notify.PagerDuty.EventsURL == "" {
		c.Notify.PagerDuty.EventsURL = "https://events.pagerduty.com/v2/enqueue"
	}
	if c.Notify.Slack.FooterIconURL == "" {
		c.Notify.Slack.FooterIconURL = "https://platform.slack-edge.com/img/default_application_icon.png"
	}
	if c.Notify.Email.Port == 0 {
		c.Notify.Email.Port = 587
	}
	if c.Notify.Email.RetryCount <= 0 {
		c.Notify.Email.RetryCount = 3
	}
	if c.Notify.Email.RetryBackoffMs <= 0 {
		c.Notify.Email.RetryBackoffMs = 100
	}

	if c.Audit.Kafka.Topic == "" {
		c.Audit.Kafka.Topic = "ses-account-monitor.audit"
	}
}

// Validate rejects configurations the monitor cannot act on.
func (c *Config) Validate() error {
	if c.Monitor.Strategy != StrategyAlert && c.Monitor.Strategy != StrategyManaged {
		return fmt.Errorf("unknown management strategy %q: expected %q or %q",
			c.Monitor.Strategy, StrategyAlert, StrategyManaged)
	}
	if c.AWS.Region == "" {
		return fmt.Errorf("AWS region must be set (AWS_REGION)")
	}

	for name, t := range map[string]Threshold{
		"sendingQuota":  c.Thresholds.SendingQuota,
		"bounceRate":    c.Thresholds.BounceRate,
		"complaintRate": c.Thresholds.ComplaintRate,
	} {
		if t.CriticalPercent < t.WarningPercent {
			return fmt.Errorf("threshold %s: critical (%v) must not be below warning (%v)",
				name, t.CriticalPercent, t.WarningPercent)
		}
	}

	if (c.Notify.Slack.OnSendingQuota || c.Notify.Slack.OnReputation) && c.Notify.Slack.WebhookURL == "" && !c.Notify.DryRun {
		return fmt.Errorf("slack notifications enabled but no webhook URL configured")
	}
	if (c.Notify.PagerDuty.OnSendingQuota || c.Notify.PagerDuty.OnReputation) && c.Notify.PagerDuty.RoutingKey == "" && !c.Notify.DryRun {
		return fmt.Errorf("pagerduty notifications enabled but no routing key configured")
	}
	if c.Notify.Email.Enabled {
		if c.Notify.Email.Host == "" {
			return fmt.Errorf("email notifications enabled but no SMTP host configured")
		}
		if len(c.Notify.Email.Recipients) == 0 {
			return fmt.Errorf("email notifications enabled but no recipients configured")
		}
	}
	if c.Audit.Kafka.Enabled && len(c.Audit.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka audit sink enabled but no brokers configured")
	}
	return nil
}

func envString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func envBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func envInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func envList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}
