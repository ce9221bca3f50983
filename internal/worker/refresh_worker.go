// Package worker runs refreshes on a schedule and on request.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"financeboard/internal/amqp"
	"financeboard/internal/core"
	"financeboard/internal/log"
	"financeboard/internal/services"
)

// DefaultInterval matches the dashboard's 60s polling.
const DefaultInterval = 60 * time.Second

// Refresher is the part of services.RefreshService the worker drives.
type Refresher interface {
	Refresh(ctx context.Context, month core.Month) services.RefreshReport
}

// RefreshWorker refreshes the current month every interval and handles
// refresh requests from the queue.
type RefreshWorker struct {
	refresher Refresher
	interval  time.Duration
	logger    *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRefreshWorker(refresher Refresher, interval time.Duration, logger *log.Logger) *RefreshWorker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &RefreshWorker{
		refresher: refresher,
		interval:  interval,
		logger:    logger.WithComponent(log.ComponentWorker),
	}
}

// HandleRefreshRequest processes one queued request. Storage and transport
// failures are returned so the message is redelivered; data problems are not.
func (w *RefreshWorker) HandleRefreshRequest(ctx context.Context, msg *amqp.RefreshRequest) error {
	month, err := msg.TargetMonth()
	if err != nil {
		return fmt.Errorf("refresh request %s: %w", msg.ID, err)
	}
	w.logger.InfoContext(ctx, "Processing refresh request",
		log.FieldMessageID, msg.ID.String(),
		log.FieldMonth, msg.Month,
		log.FieldReason, msg.Reason,
	)

	report := w.refresher.Refresh(ctx, month)
	switch report.Outcome.Reason {
	case core.ReasonStorage, core.ReasonTransport:
		return errors.New(report.Outcome.String())
	}
	return nil
}

// Start runs the periodic loop in the background. It refreshes once right
// away.
func (w *RefreshWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("refresh worker is already running")
	}
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})
	stop, done := w.stopCh, w.doneCh
	w.mu.Unlock()

	go func() {
		defer close(done)
		w.loop(ctx, stop)
	}()

	w.logger.InfoContext(ctx, "Refresh worker started", "interval", w.interval.String())
	return nil
}

// Stop signals the loop and waits for the cycle in flight to finish.
func (w *RefreshWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	stop, done := w.stopCh, w.doneCh
	w.running = false
	w.mu.Unlock()

	close(stop)
	select {
	case <-done:
		w.logger.InfoContext(ctx, "Refresh worker stopped")
		return nil
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Refresh worker stop timed out")
		return ctx.Err()
	}
}

func (w *RefreshWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Run is the blocking form of Start, returning when ctx is done.
func (w *RefreshWorker) Run(ctx context.Context) error {
	w.loop(ctx, nil)
	return ctx.Err()
}

func (w *RefreshWorker) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.tick(ctx)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *RefreshWorker) tick(ctx context.Context) {
	report := w.refresher.Refresh(ctx, core.Month{})
	if !report.Outcome.OK {
		w.logger.WarnContext(ctx, "Scheduled refresh degraded",
			log.NewFields().WithOperation(log.OpRefresh).WithMonth(report.Month).WithOutcome(report.Outcome).ToSlice()...)
	}
}
