// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package monitor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Runner invokes the monitor on a fixed interval. A failed run is logged
// and retried on the next tick; it never stops the loop.
type Runner struct {
	monitor  *Monitor
	interval time.Duration
	log      *zap.SugaredLogger
}

func NewRunner(monitor *Monitor, interval time.Duration, log *zap.SugaredLogger) *Runner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Runner{
		monitor:  monitor,
		interval: interval,
		log:      log.Named("runner"),
	}
}

// Start runs the monitor immediately and then on every tick until the
// context is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.log.Infow("Starting monitor loop", "interval", r.interval)

	if err := r.monitor.Run(ctx); err != nil {
		r.log.Warnw("Monitor run failed, retrying next tick", "error", err)
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.log.Infow("Stopping monitor loop")
			return
		case <-ticker.C:
			if err := r.monitor.Run(ctx); err != nil {
				r.log.Warnw("Monitor run failed, retrying next tick", "error", err)
			}
		}
	}
}
