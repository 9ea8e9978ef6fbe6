package notify

import (
	"context"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Dispatcher flushes a set of notification channels. Every channel is
// flushed even when earlier ones fail; failures are aggregated so the
// caller can fail the whole invocation and let the scheduler retry.
type Dispatcher struct {
	notifiers []Notifier
	log       *zap.SugaredLogger
}

func NewDispatcher(log *zap.SugaredLogger, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{notifiers: notifiers, log: log.Named("dispatch")}
}

// Pending returns the total number of queued payloads across channels.
func (d *Dispatcher) Pending() int {
	total := 0
	for _, n := range d.notifiers {
		total += n.Pending()
	}
	return total
}

// Flush delivers every queued notification on every channel.
func (d *Dispatcher) Flush(ctx context.Context) error {
	var errs error
	for _, n := range d.notifiers {
		if err := n.Flush(ctx); err != nil {
			d.log.Errorw("Notification channel reported failures", "channel", n.Name(), "error", err)
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
