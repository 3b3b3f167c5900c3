package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type StaleOrderSource interface {
	ListUnpaidBefore(ctx context.Context, cutoff time.Time, limit int) ([]string, error)
}

type Refunder interface {
	RequestRefund(ctx context.Context, orderID string) (domain.Order, error)
}

const (
	defaultPaymentTTL    = 24 * time.Hour
	defaultSweepSchedule = "@every 10m"
	defaultSweepBatch    = 100
)

// Sweeper expires orders that never got paid: anything still in
// pending_payment past the TTL is refunded through the ordinary
// lifecycle path, so it gets the same events and audit trail as a
// buyer-requested refund.
type Sweeper struct {
	source   StaleOrderSource
	refunder Refunder
	clock    clock.Clock
	logger   *slog.Logger

	ttl      time.Duration
	schedule string
	batch    int

	cron *cron.Cron
}

func NewSweeper(source StaleOrderSource, refunder Refunder, clk clock.Clock, logger *slog.Logger, opts ...SweeperOption) *Sweeper {
	s := &Sweeper{
		source:   source,
		refunder: refunder,
		clock:    clk,
		logger:   logger,
		ttl:      defaultPaymentTTL,
		schedule: defaultSweepSchedule,
		batch:    defaultSweepBatch,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type SweeperOption func(*Sweeper)

// WithPaymentTTL overrides how long an order may wait for payment.
func WithPaymentTTL(d time.Duration) SweeperOption {
	return func(s *Sweeper) {
		if d > 0 {
			s.ttl = d
		}
	}
}

// WithSchedule overrides the cron schedule for sweep runs.
func WithSchedule(spec string) SweeperOption {
	return func(s *Sweeper) {
		if spec != "" {
			s.schedule = spec
		}
	}
}

// WithSweepBatch overrides how many stale orders one run picks up.
func WithSweepBatch(n int) SweeperOption {
	return func(s *Sweeper) {
		if n > 0 {
			s.batch = n
		}
	}
}

// Start schedules periodic sweeps until Stop is called.
func (s *Sweeper) Start() error {
	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Sweep(context.Background()); err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
	}); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	s.logger.Info("expiry sweeper started", "schedule", s.schedule, "payment_ttl", s.ttl)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep refunds one batch of stale orders and reports how many it
// closed. Contention and orders settled since listing are skipped
// quietly; the next run picks up whatever is left.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-s.ttl)

	ids, err := s.source.ListUnpaidBefore(ctx, cutoff, s.batch)
	if err != nil {
		return 0, err
	}

	refunded := 0
	for _, id := range ids {
		if _, err := s.refunder.RequestRefund(ctx, id); err != nil {
			if errors.Is(err, domain.ErrBusy) ||
				errors.Is(err, domain.ErrAlreadyTerminal) ||
				errors.Is(err, domain.ErrOrderNotFound) {
				continue
			}
			s.logger.Warn("expire stale order", "order_id", id, "error", err)
			continue
		}
		refunded++
	}

	if refunded > 0 {
		s.logger.Info("expired stale orders", "count", refunded, "cutoff", cutoff)
	}
	return refunded, nil
}
