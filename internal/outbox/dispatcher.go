// Package outbox delivers transition events written alongside order
// updates. A poller picks up undispatched rows and hands them to the
// registered sinks; delivery is at least once, so sinks must tolerate
// replays.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/metrics"
)

type EventSource interface {
	PendingEvents(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id string, at time.Time) error
	RecordFailure(ctx context.Context, id string) error
	CountPending(ctx context.Context) (int, error)
}

type Sink interface {
	HandleEvent(ctx context.Context, ev domain.OutboxEvent) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(ctx context.Context, ev domain.OutboxEvent) error

func (f SinkFunc) HandleEvent(ctx context.Context, ev domain.OutboxEvent) error {
	return f(ctx, ev)
}

type fanout []Sink

// Fanout delivers each event to every sink. Any sink error keeps the
// event pending, so the whole group is retried; idempotent sinks make
// that safe.
func Fanout(sinks ...Sink) Sink {
	return fanout(sinks)
}

func (f fanout) HandleEvent(ctx context.Context, ev domain.OutboxEvent) error {
	var errs []error
	for _, s := range f {
		if err := s.HandleEvent(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

const (
	defaultPollInterval = 2 * time.Second
	defaultBatchSize    = 50
)

type Dispatcher struct {
	source  EventSource
	sink    Sink
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Set

	interval time.Duration
	batch    int
}

func NewDispatcher(source EventSource, sink Sink, clk clock.Clock, logger *slog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		source:   source,
		sink:     sink,
		clock:    clk,
		logger:   logger,
		interval: defaultPollInterval,
		batch:    defaultBatchSize,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type DispatcherOption func(*Dispatcher)

func WithPollInterval(d time.Duration) DispatcherOption {
	return func(dp *Dispatcher) {
		if d > 0 {
			dp.interval = d
		}
	}
}

func WithBatchSize(n int) DispatcherOption {
	return func(dp *Dispatcher) {
		if n > 0 {
			dp.batch = n
		}
	}
}

func WithMetrics(m *metrics.Set) DispatcherOption {
	return func(dp *Dispatcher) {
		dp.metrics = m
	}
}

// Run polls until ctx is cancelled. Drain errors are logged, not
// returned: a broken store heals on a later tick.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.logger.Info("outbox dispatcher started", "interval", d.interval, "batch", d.batch)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("outbox dispatcher stopped")
			return nil
		case <-ticker.C:
			if err := d.Drain(ctx); err != nil {
				d.logger.Error("outbox drain failed", "error", err)
			}
		}
	}
}

// Drain dispatches one batch of pending events. A failing sink keeps
// its event pending with an incremented attempt count; later events in
// the batch are still tried.
func (d *Dispatcher) Drain(ctx context.Context) error {
	events, err := d.source.PendingEvents(ctx, d.batch)
	if err != nil {
		return fmt.Errorf("pending events: %w", err)
	}

	for _, ev := range events {
		if err := d.sink.HandleEvent(ctx, ev); err != nil {
			d.logger.Warn("event dispatch failed",
				"event_id", ev.ID, "kind", ev.Kind, "attempts", ev.Attempts+1, "error", err)
			d.observe(string(ev.Kind), "error")
			if err := d.source.RecordFailure(ctx, ev.ID); err != nil {
				d.logger.Error("record dispatch failure", "event_id", ev.ID, "error", err)
			}
			continue
		}

		if err := d.source.MarkDispatched(ctx, ev.ID, d.clock.Now()); err != nil {
			// The sink already ran; the event is retried, sinks must
			// dedupe on order id.
			d.logger.Error("mark dispatched", "event_id", ev.ID, "error", err)
			continue
		}
		d.observe(string(ev.Kind), "ok")
	}

	if d.metrics != nil {
		if n, err := d.source.CountPending(ctx); err == nil {
			d.metrics.OutboxPending.Set(float64(n))
		}
	}
	return nil
}

func (d *Dispatcher) observe(kind, outcome string) {
	if d.metrics != nil {
		d.metrics.ObserveDispatch(kind, outcome)
	}
}
