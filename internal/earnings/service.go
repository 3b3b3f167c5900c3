// Package earnings rolls released escrow amounts up into per-channel
// owner balances. Credits arrive through the outbox, which delivers at
// least once; the store dedupes on order id.
package earnings

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type CreditStore interface {
	InsertCredit(ctx context.Context, credit domain.EarningsCredit) error
	SumEarnings(ctx context.Context, channelID string) (int64, error)
}

type Service struct {
	store  CreditStore
	clock  clock.Clock
	logger *slog.Logger
}

func NewService(store CreditStore, clk clock.Clock, logger *slog.Logger) *Service {
	return &Service{store: store, clock: clk, logger: logger}
}

// HandleEvent credits the channel when escrow is released. Other event
// kinds pass through untouched so the service can sit on a shared
// fanout.
func (s *Service) HandleEvent(ctx context.Context, ev domain.OutboxEvent) error {
	if ev.Kind != domain.EventEscrowReleased {
		return nil
	}

	var payload domain.EventPayload
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
	}

	credit := domain.EarningsCredit{
		OrderID:    payload.OrderID,
		ChannelID:  payload.ChannelID,
		Amount:     payload.Amount,
		CreditedAt: s.clock.Now(),
	}
	if err := s.store.InsertCredit(ctx, credit); err != nil {
		return fmt.Errorf("insert credit for order %s: %w", payload.OrderID, err)
	}

	s.logger.Info("earnings credited",
		"order_id", payload.OrderID, "channel_id", payload.ChannelID, "amount", payload.Amount)
	return nil
}

// TotalForChannel reports the lifetime earnings of a channel in minor
// currency units.
func (s *Service) TotalForChannel(ctx context.Context, channelID string) (int64, error) {
	if _, err := uuid.Parse(channelID); err != nil {
		return 0, domain.ErrInvalidID
	}
	total, err := s.store.SumEarnings(ctx, channelID)
	if err != nil {
		return 0, fmt.Errorf("sum earnings: %w", err)
	}
	return total, nil
}
