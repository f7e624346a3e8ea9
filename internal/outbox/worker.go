package outbox

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Dispatcher delivers a claimed trigger to its downstream processor.
type Dispatcher interface {
	Dispatch(ctx context.Context, trig Trigger) error
}

// Store defines the persistence operations the worker needs.
type Store interface {
	ClaimBatch(ctx context.Context, limit, backoffSeconds int) ([]Trigger, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
}

// Options tune the polling loop.
type Options struct {
	PollSeconds    int
	BatchSize      int
	MaxAttempts    int
	BackoffSeconds int
}

func (o *Options) fill() {
	if o.PollSeconds <= 0 {
		o.PollSeconds = 5
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 20
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BackoffSeconds <= 0 {
		o.BackoffSeconds = 10
	}
}

// Worker polls the outbox and dispatches due triggers.
type Worker struct {
	store      Store
	dispatcher Dispatcher
	opts       Options
	cron       *cron.Cron
	logger     *slog.Logger
}

// NewWorker creates an outbox worker.
func NewWorker(log *slog.Logger, store Store, dispatcher Dispatcher, opts Options) *Worker {
	if log == nil {
		log = slog.Default()
	}
	opts.fill()
	return &Worker{
		store:      store,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     log.With(slog.String("service", "outbox")),
	}
}

// Start begins polling in the background.
func (w *Worker) Start(ctx context.Context) error {
	if w.cron != nil {
		return fmt.Errorf("outbox worker already started")
	}
	w.cron = cron.New()
	_, err := w.cron.AddFunc(fmt.Sprintf("@every %ds", w.opts.PollSeconds), func() {
		if err := w.ProcessOnce(ctx); err != nil {
			w.logger.Error("outbox pass failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule outbox poll: %w", err)
	}
	w.cron.Start()
	w.logger.Info("outbox worker started", slog.Int("poll_seconds", w.opts.PollSeconds))
	return nil
}

// Stop halts polling and waits for an in-flight pass to finish.
func (w *Worker) Stop() {
	if w.cron == nil {
		return
	}
	<-w.cron.Stop().Done()
	w.logger.Info("outbox worker stopped")
}

// ProcessOnce claims one batch of due triggers and dispatches each. A failed
// dispatch leaves the trigger pending for the backoff to retry, until the
// attempt budget runs out and the trigger is retired.
func (w *Worker) ProcessOnce(ctx context.Context) error {
	batch, err := w.store.ClaimBatch(ctx, w.opts.BatchSize, w.opts.BackoffSeconds)
	if err != nil {
		return fmt.Errorf("claim triggers: %w", err)
	}

	for _, trig := range batch {
		if err := w.dispatcher.Dispatch(ctx, trig); err != nil {
			w.logger.Warn("trigger dispatch failed",
				slog.String("trigger_id", trig.ID),
				slog.String("kind", trig.Kind),
				slog.Int("attempts", trig.Attempts),
				slog.String("error", err.Error()),
			)
			if trig.Attempts >= w.opts.MaxAttempts {
				if err := w.store.MarkFailed(ctx, trig.ID); err != nil {
					return fmt.Errorf("mark trigger failed: %w", err)
				}
				w.logger.Error("trigger retired",
					slog.String("trigger_id", trig.ID),
					slog.String("kind", trig.Kind),
				)
			}
			continue
		}
		if err := w.store.MarkSent(ctx, trig.ID); err != nil {
			return fmt.Errorf("mark trigger sent: %w", err)
		}
	}
	return nil
}
