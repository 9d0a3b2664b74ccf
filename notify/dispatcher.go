package notify

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/flyingwithjoel/fwj-api/telemetry"
)

const (
	defaultConcurrency = 8
	taskTimeout        = 15 * time.Second
)

// Dispatcher runs best-effort deliveries off the request path. Tasks get a context
// detached from the request (so a finished response does not cancel them) bounded by a
// 15s timeout. Failures are logged and counted, never returned. When all slots are
// busy new tasks are dropped.
type Dispatcher struct {
	g errgroup.Group
}

// NewDispatcher bounds the number of concurrently running tasks.
func NewDispatcher(concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	d := &Dispatcher{}
	d.g.SetLimit(concurrency)
	return d
}

// Go schedules fn. channel labels the task for logs and metrics ("webhook", "email").
// It reports whether the task was accepted.
func (d *Dispatcher) Go(ctx context.Context, channel string, fn func(ctx context.Context) error) bool {
	logger := telemetry.LoggerWithCorr(ctx).With(slog.String("component", "notify"), slog.String("channel", channel))
	if d == nil {
		return false
	}
	detached := context.WithoutCancel(ctx)
	ok := d.g.TryGo(func() error {
		tctx, cancel := context.WithTimeout(detached, taskTimeout)
		defer cancel()
		err := fn(tctx)
		telemetry.Inc(telemetry.Notifications, channel, telemetry.Result(err))
		if err != nil {
			logger.Warn("best-effort notification failed", slog.Any("err", err))
		}
		return nil
	})
	if !ok {
		telemetry.Inc(telemetry.Notifications, channel, "dropped")
		logger.Warn("notification dropped: dispatcher saturated")
	}
	return ok
}

// Wait blocks until every scheduled task has finished.
func (d *Dispatcher) Wait() {
	if d != nil {
		_ = d.g.Wait()
	}
}
