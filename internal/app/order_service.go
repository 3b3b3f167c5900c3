package app

import (
	"context"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type OrderRepository interface {
	CreateOrder(ctx context.Context, o domain.Order) error
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListOrdersByChannel(ctx context.Context, channelID string) ([]domain.Order, error)
}

type ChannelReader interface {
	GetChannel(ctx context.Context, id string) (domain.Channel, error)
}

// OrderService creates orders against a channel's published pricing
// and serves order reads. All mutations after creation go through the
// LifecycleService.
type OrderService struct {
	orders   OrderRepository
	channels ChannelReader
	clock    clock.Clock
}

func NewOrderService(orders OrderRepository, channels ChannelReader, clk clock.Clock) *OrderService {
	return &OrderService{orders: orders, channels: channels, clock: clk}
}

type CreateOrderInput struct {
	BuyerID       string
	ChannelID     string
	AdFormat      string
	DeclaredPrice int64
	Discount      int64
}

// CreateOrder validates the quote against the channel's pricing and
// persists a new order in pending_payment with pending escrow. The
// declared price must match the channel's listed price exactly; the
// discount may not exceed it, so the final price never goes negative.
func (s *OrderService) CreateOrder(ctx context.Context, in CreateOrderInput) (domain.Order, error) {
	if in.BuyerID == "" {
		return domain.Order{}, domain.ErrBuyerRequired
	}
	if !isValidID(in.ChannelID) {
		return domain.Order{}, domain.ErrInvalidID
	}

	ch, err := s.channels.GetChannel(ctx, in.ChannelID)
	if err != nil {
		return domain.Order{}, err
	}
	if ch.Status != domain.ChannelStatusActive {
		return domain.Order{}, domain.ErrChannelInactive
	}
	if !ch.Verified {
		return domain.Order{}, domain.ErrChannelNotVerified
	}

	price, ok := ch.PriceFor(in.AdFormat)
	if !ok {
		return domain.Order{}, domain.ErrUnknownAdFormat
	}
	if in.DeclaredPrice != price {
		return domain.Order{}, domain.ErrPriceMismatch
	}
	if in.Discount < 0 || in.Discount > price {
		return domain.Order{}, domain.ErrInvalidDiscount
	}

	o := domain.Order{
		ID:             newID(),
		BuyerID:        in.BuyerID,
		ChannelID:      ch.ID,
		AdFormat:       in.AdFormat,
		Price:          price,
		DiscountAmount: in.Discount,
		FinalPrice:     price - in.Discount,
		OrderStatus:    domain.OrderStatusPendingPayment,
		EscrowStatus:   domain.EscrowStatusPending,
		CreatedAt:      s.clock.Now(),
	}

	if err := s.orders.CreateOrder(ctx, o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

func (s *OrderService) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if !isValidID(id) {
		return domain.Order{}, domain.ErrInvalidID
	}
	return s.orders.GetOrder(ctx, id)
}

// GetEscrowStatus returns the escrow projection of an order.
func (s *OrderService) GetEscrowStatus(ctx context.Context, id string) (domain.EscrowState, error) {
	o, err := s.GetOrder(ctx, id)
	if err != nil {
		return domain.EscrowState{}, err
	}
	return o.EscrowState(), nil
}

func (s *OrderService) ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error) {
	if buyerID == "" {
		return nil, domain.ErrBuyerRequired
	}
	return s.orders.ListOrdersByBuyer(ctx, buyerID)
}

func (s *OrderService) ListOrdersByChannel(ctx context.Context, channelID string) ([]domain.Order, error) {
	if !isValidID(channelID) {
		return nil, domain.ErrInvalidID
	}
	return s.orders.ListOrdersByChannel(ctx, channelID)
}
