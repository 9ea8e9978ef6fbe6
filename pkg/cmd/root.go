// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package cmd wires the monitor's services together and runs them.
package cmd

import (
	"context"
	stdlog "log"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/telekom/ses-account-monitor/pkg/api"
	"github.com/telekom/ses-account-monitor/pkg/audit"
	"github.com/telekom/ses-account-monitor/pkg/config"
	"github.com/telekom/ses-account-monitor/pkg/monitor"
	"github.com/telekom/ses-account-monitor/pkg/notify"
	"github.com/telekom/ses-account-monitor/pkg/reputation"
	"github.com/telekom/ses-account-monitor/pkg/ses"
	"github.com/telekom/ses-account-monitor/pkg/version"
)

type rootFlags struct {
	configPath string
	debug      bool
	once       bool
	dryRun     bool
}

func NewRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:          "ses-account-monitor",
		Short:        "Monitors an AWS SES account's sending quota and reputation",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), flags)
		},
	}

	root.Flags().StringVar(&flags.configPath, "config", "", "Path to config file (optional, env vars apply on top)")
	root.Flags().BoolVar(&flags.debug, "debug", false, "Enable debug logging and gin debug mode")
	root.Flags().BoolVar(&flags.once, "once", false, "Run a single check and exit (for external schedulers)")
	root.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Log notification payloads instead of delivering them")

	root.AddCommand(NewVersionCommand())

	return root
}

func run(ctx context.Context, flags *rootFlags) error {
	log := setupLogger(flags.debug)
	defer func() { _ = log.Sync() }()

	log.With("version", version.Version).Info("Starting ses-account-monitor")

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		log.Fatalf("Error loading ses-account-monitor config: %v", err)
	}
	if flags.dryRun {
		cfg.Notify.DryRun = true
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid ses-account-monitor config: %v", err)
	}

	if flags.debug {
		log.Infof("%#v", cfg)
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		log.Fatalf("Error loading AWS configuration: %v", err)
	}

	trail, err := buildTrail(cfg, log)
	if err != nil {
		log.Fatalf("Error setting up audit trail: %v", err)
	}
	defer func() { _ = trail.Close() }()

	mon := buildMonitor(cfg, awsCfg, trail, log)

	if flags.once {
		return mon.Run(ctx)
	}

	runner := monitor.NewRunner(mon, cfg.Monitor.CheckInterval, log)
	go runner.Start(ctx)

	server := api.NewServer(log.Desugar(), cfg, mon, flags.debug)
	server.Listen()
	return nil
}

func buildMonitor(cfg config.Config, awsCfg aws.Config, trail *audit.Trail, log *zap.SugaredLogger) *monitor.Monitor {
	period := time.Duration(cfg.Monitor.ReputationPeriodSeconds) * time.Second
	window := time.Duration(cfg.Monitor.ReputationWindowSeconds) * time.Second

	deps := monitor.Deps{
		Sending:    ses.NewService(awsCfg, log),
		Reputation: reputation.NewService(awsCfg, period, window, log),
		Trail:      trail,
	}

	var notifiers []notify.Notifier
	if cfg.Notify.Slack.OnSendingQuota || cfg.Notify.Slack.OnReputation {
		slack := notify.NewSlackNotifier(notify.SlackConfig{
			WebhookURL:             cfg.Notify.Slack.WebhookURL,
			Channels:               cfg.Notify.Slack.Channels,
			IconEmoji:              cfg.Notify.Slack.IconEmoji,
			FooterIconURL:          cfg.Notify.Slack.FooterIconURL,
			ServiceName:            cfg.Monitor.ServiceName,
			AccountName:            cfg.AWS.AccountName,
			Region:                 cfg.AWS.Region,
			Environment:            cfg.AWS.Environment,
			ConsoleURL:             cfg.Monitor.ConsoleURL,
			ReputationDashboardURL: cfg.Monitor.ReputationDashboardURL,
			DryRun:                 cfg.Notify.DryRun,
		}, log)
		deps.Slack = slack
		notifiers = append(notifiers, slack)
	}
	if cfg.Notify.PagerDuty.OnSendingQuota || cfg.Notify.PagerDuty.OnReputation {
		pagerduty := notify.NewPagerDutyNotifier(notify.PagerDutyConfig{
			EventsURL:   cfg.Notify.PagerDuty.EventsURL,
			RoutingKey:  cfg.Notify.PagerDuty.RoutingKey,
			ServiceName: cfg.Monitor.ServiceName,
			AccountName: cfg.AWS.AccountName,
			Region:      cfg.AWS.Region,
			Environment: cfg.AWS.Environment,
			ConsoleURL:  cfg.Monitor.ConsoleURL,
			DryRun:      cfg.Notify.DryRun,
		}, log)
		deps.PagerDuty = pagerduty
		notifiers = append(notifiers, pagerduty)
	}
	if cfg.Notify.Email.Enabled {
		email := notify.NewEmailNotifier(notify.EmailConfig{
			Host:           cfg.Notify.Email.Host,
			Port:           cfg.Notify.Email.Port,
			User:           cfg.Notify.Email.User,
			Password:       cfg.Notify.Email.Password,
			SenderAddress:  cfg.Notify.Email.SenderAddress,
			SenderName:     cfg.Notify.Email.SenderName,
			Recipients:     cfg.Notify.Email.Recipients,
			RetryCount:     cfg.Notify.Email.RetryCount,
			RetryBackoffMs: cfg.Notify.Email.RetryBackoffMs,
			DryRun:         cfg.Notify.DryRun,
		}, log)
		deps.Email = email
		notifiers = append(notifiers, email)
	}
	deps.Dispatcher = notify.NewDispatcher(log, notifiers...)

	return monitor.New(cfg, deps, log)
}

func buildTrail(cfg config.Config, log *zap.SugaredLogger) (*audit.Trail, error) {
	sinks := []audit.Sink{audit.NewLogSink(log)}

	if cfg.Audit.Kafka.Enabled {
		kafkaCfg := audit.KafkaSinkConfig{
			Brokers: cfg.Audit.Kafka.Brokers,
			Topic:   cfg.Audit.Kafka.Topic,
		}
		if cfg.Audit.Kafka.TLSEnabled {
			kafkaCfg.TLS = &audit.KafkaTLSConfig{
				Enabled:            true,
				InsecureSkipVerify: cfg.Audit.Kafka.InsecureSkipVerify,
			}
		}
		if cfg.Audit.Kafka.SASLMechanism != "" {
			kafkaCfg.SASL = &audit.KafkaSASLConfig{
				Mechanism: cfg.Audit.Kafka.SASLMechanism,
				Username:  cfg.Audit.Kafka.SASLUsername,
				Password:  cfg.Audit.Kafka.SASLPassword,
			}
		}

		kafkaSink, err := audit.NewKafkaSink(kafkaCfg, log)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, kafkaSink)
	}

	return audit.NewTrail(cfg.Monitor.ServiceName, log, sinks...), nil
}

func setupLogger(debug bool) *zap.SugaredLogger {
	var zlog *zap.Logger
	var err error
	if debug {
		zlog, err = zap.NewDevelopment()
	} else {
		zlog, err = zap.NewProduction()
	}
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return zlog.Sugar()
}
