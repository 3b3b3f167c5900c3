package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/delivery"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/escrow"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/metrics"
)

type LifecycleRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetOrderForUpdate(ctx context.Context, id string) (domain.Order, error)
	UpdateOrder(ctx context.Context, o domain.Order) error
	AppendEvent(ctx context.Context, ev domain.OutboxEvent) error
}

// LifecycleService applies state transitions to existing orders. Every
// operation runs as one transaction: lock the order row, apply the
// escrow/delivery rules in memory, write the order back and append the
// outbox events describing what happened. A second writer hitting the
// same order gets ErrBusy immediately instead of queueing on the lock.
type LifecycleService struct {
	repo    LifecycleRepository
	ledger  *escrow.Ledger
	tracker *delivery.Tracker
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Set
}

func NewLifecycleService(repo LifecycleRepository, ledger *escrow.Ledger, tracker *delivery.Tracker, clk clock.Clock, logger *slog.Logger, opts ...LifecycleOption) *LifecycleService {
	svc := &LifecycleService{
		repo:    repo,
		ledger:  ledger,
		tracker: tracker,
		clock:   clk,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type LifecycleOption func(*LifecycleService)

// WithMetrics wires transition counters into the service.
func WithMetrics(m *metrics.Set) LifecycleOption {
	return func(s *LifecycleService) {
		s.metrics = m
	}
}

// MarkPaid records the buyer's payment: funds move into escrow and the
// order becomes paid.
func (s *LifecycleService) MarkPaid(ctx context.Context, orderID string) (domain.Order, error) {
	return s.transition(ctx, "pay", orderID, func(o *domain.Order) ([]domain.EventKind, bool, error) {
		if o.Terminal() {
			return nil, false, domain.ErrAlreadyTerminal
		}
		if o.OrderStatus != domain.OrderStatusPendingPayment {
			return nil, false, domain.ErrInvalidTransition
		}
		if err := s.ledger.Hold(o, o.FinalPrice); err != nil {
			return nil, false, err
		}
		now := s.clock.Now()
		o.OrderStatus = domain.OrderStatusPaid
		o.PaidAt = &now
		return []domain.EventKind{domain.EventOrderPaid}, true, nil
	})
}

// SubmitCreative attaches the ad creative to a paid order and moves it
// into review.
func (s *LifecycleService) SubmitCreative(ctx context.Context, orderID, content, mediaID string) (domain.Order, error) {
	return s.transition(ctx, "submit_creative", orderID, func(o *domain.Order) ([]domain.EventKind, bool, error) {
		if o.Terminal() {
			return nil, false, domain.ErrAlreadyTerminal
		}
		if err := s.tracker.SubmitCreative(o, content, mediaID); err != nil {
			return nil, false, err
		}
		return []domain.EventKind{domain.EventCreativeSubmitted}, true, nil
	})
}

// ApproveCreative accepts the creative and immediately publishes the
// post, so approval and posting commit together.
func (s *LifecycleService) ApproveCreative(ctx context.Context, orderID string) (domain.Order, error) {
	return s.transition(ctx, "approve_creative", orderID, func(o *domain.Order) ([]domain.EventKind, bool, error) {
		if o.Terminal() {
			return nil, false, domain.ErrAlreadyTerminal
		}
		if err := s.tracker.Approve(o); err != nil {
			return nil, false, err
		}
		if err := s.tracker.Publish(o); err != nil {
			return nil, false, err
		}
		return []domain.EventKind{domain.EventCreativeApproved, domain.EventOrderPosted}, true, nil
	})
}

// RejectCreative declines the creative under review. Funds stay held;
// the buyer can refund or the owner can wait for a new order.
func (s *LifecycleService) RejectCreative(ctx context.Context, orderID, reason string) (domain.Order, error) {
	return s.transition(ctx, "reject_creative", orderID, func(o *domain.Order) ([]domain.EventKind, bool, error) {
		if o.Terminal() {
			return nil, false, domain.ErrAlreadyTerminal
		}
		if err := s.tracker.Reject(o, reason); err != nil {
			return nil, false, err
		}
		return []domain.EventKind{domain.EventCreativeRejected}, true, nil
	})
}

// ConfirmDelivery records the buyer's sign-off on the posted ad, the
// precondition for releasing escrow.
func (s *LifecycleService) ConfirmDelivery(ctx context.Context, orderID, confirmedBy string) (domain.Order, error) {
	return s.transition(ctx, "confirm_delivery", orderID, func(o *domain.Order) ([]domain.EventKind, bool, error) {
		if o.Terminal() {
			return nil, false, domain.ErrAlreadyTerminal
		}
		if err := s.tracker.ConfirmDelivery(o, confirmedBy); err != nil {
			return nil, false, err
		}
		return []domain.EventKind{domain.EventOrderDelivered}, true, nil
	})
}

// ReleaseFunds pays held escrow out to the channel owner and completes
// the order. Requires a confirmed delivery.
func (s *LifecycleService) ReleaseFunds(ctx context.Context, orderID string) (domain.Order, error) {
	return s.transition(ctx, "release", orderID, func(o *domain.Order) ([]domain.EventKind, bool, error) {
		if o.Terminal() {
			return nil, false, domain.ErrAlreadyTerminal
		}
		if err := s.ledger.Release(o); err != nil {
			return nil, false, err
		}
		now := s.clock.Now()
		o.OrderStatus = domain.OrderStatusCompleted
		o.CompletedAt = &now
		return []domain.EventKind{domain.EventEscrowReleased}, true, nil
	})
}

// RequestRefund returns escrowed funds to the buyer and closes the
// order. Refunding an already refunded order succeeds without writing
// anything, so buyer retries and the expiry sweeper can overlap safely.
func (s *LifecycleService) RequestRefund(ctx context.Context, orderID string) (domain.Order, error) {
	return s.transition(ctx, "refund", orderID, func(o *domain.Order) ([]domain.EventKind, bool, error) {
		changed, err := s.ledger.Refund(o)
		if err != nil {
			return nil, false, err
		}
		if !changed {
			return nil, false, nil
		}
		o.OrderStatus = domain.OrderStatusRefunded
		return []domain.EventKind{domain.EventOrderRefunded}, true, nil
	})
}

// transition is the shared transaction wrapper: lock, apply, write,
// emit. apply returns the outbox events to append and whether the
// order was mutated at all; on write=false the transaction commits
// without touching the row.
func (s *LifecycleService) transition(ctx context.Context, op, orderID string, apply func(o *domain.Order) ([]domain.EventKind, bool, error)) (domain.Order, error) {
	if !isValidID(orderID) {
		return domain.Order{}, domain.ErrInvalidID
	}

	var out domain.Order
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		o, err := s.repo.GetOrderForUpdate(txCtx, orderID)
		if err != nil {
			return err
		}

		kinds, write, err := apply(&o)
		if err != nil {
			return err
		}

		if write {
			if err := s.repo.UpdateOrder(txCtx, o); err != nil {
				return err
			}
			now := s.clock.Now()
			for _, kind := range kinds {
				ev, err := newEvent(o, kind, now)
				if err != nil {
					return err
				}
				if err := s.repo.AppendEvent(txCtx, ev); err != nil {
					return err
				}
			}
		}

		out = o
		return nil
	})

	s.observe(op, orderID, out, err)
	if err != nil {
		return domain.Order{}, err
	}
	return out, nil
}

func (s *LifecycleService) observe(op, orderID string, o domain.Order, err error) {
	if s.metrics != nil {
		s.metrics.ObserveTransition(op, outcomeLabel(err))
	}
	if err != nil {
		s.logger.Warn("order transition failed",
			"op", op, "order_id", orderID, "error", err)
		return
	}
	s.logger.Info("order transition",
		"op", op, "order_id", orderID,
		"order_status", o.OrderStatus, "escrow_status", o.EscrowStatus)
}

func outcomeLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.Is(err, domain.ErrAlreadyTerminal):
		return "terminal"
	case errors.Is(err, domain.ErrDeliveryNotConfirmed):
		return "not_confirmed"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, domain.ErrOrderNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrStorageUnavailable):
		return "storage"
	default:
		return "error"
	}
}

// newEvent snapshots the order into an outbox event. The payload is
// the post-transition state, so receivers never reload the row.
func newEvent(o domain.Order, kind domain.EventKind, now time.Time) (domain.OutboxEvent, error) {
	payload, err := json.Marshal(domain.EventPayload{
		OrderID:      o.ID,
		BuyerID:      o.BuyerID,
		ChannelID:    o.ChannelID,
		OrderStatus:  o.OrderStatus,
		EscrowStatus: o.EscrowStatus,
		Amount:       o.FinalPrice,
		PostURL:      o.PostURL,
		Reason:       o.RejectReason,
		ConfirmedBy:  o.DeliveryConfirmedBy,
	})
	if err != nil {
		return domain.OutboxEvent{}, fmt.Errorf("marshal event payload: %w", err)
	}

	return domain.OutboxEvent{
		ID:        newID(),
		OrderID:   o.ID,
		Kind:      kind,
		Payload:   payload,
		CreatedAt: now,
	}, nil
}
