package app

import (
	"context"
	"log/slog"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type ChannelRepository interface {
	CreateChannel(ctx context.Context, ch domain.Channel) error
	GetChannel(ctx context.Context, id string) (domain.Channel, error)
	ListChannels(ctx context.Context, status domain.ChannelStatus) ([]domain.Channel, error)
	UpdateChannel(ctx context.Context, ch domain.Channel) error
}

// AdminVerifier checks that a channel's registered owner actually
// administers the channel on Telegram.
type AdminVerifier interface {
	VerifyAdmin(ctx context.Context, ch domain.Channel) (bool, error)
}

// AllowAllVerifier approves every ownership check. Used when no bot
// token is configured, so listings can go live in a local setup.
type AllowAllVerifier struct{}

func (AllowAllVerifier) VerifyAdmin(context.Context, domain.Channel) (bool, error) {
	return true, nil
}

// ChannelService manages the channel catalog: listing, verification
// and the pricing that orders are validated against.
type ChannelService struct {
	repo     ChannelRepository
	verifier AdminVerifier
	clock    clock.Clock
	logger   *slog.Logger
}

func NewChannelService(repo ChannelRepository, verifier AdminVerifier, clk clock.Clock, logger *slog.Logger) *ChannelService {
	return &ChannelService{repo: repo, verifier: verifier, clock: clk, logger: logger}
}

type CreateChannelInput struct {
	OwnerID    string
	TelegramID int64
	Username   string
	Title      string
	Pricing    map[string]int64
}

// CreateChannel lists a new channel in pending status. It stays
// unavailable to buyers until verified.
func (s *ChannelService) CreateChannel(ctx context.Context, in CreateChannelInput) (domain.Channel, error) {
	if in.OwnerID == "" {
		return domain.Channel{}, domain.ErrOwnerRequired
	}
	if in.Title == "" {
		return domain.Channel{}, domain.ErrTitleRequired
	}
	if len(in.Pricing) == 0 {
		return domain.Channel{}, domain.ErrInvalidPricing
	}
	for _, price := range in.Pricing {
		if price <= 0 {
			return domain.Channel{}, domain.ErrInvalidPricing
		}
	}

	ch := domain.Channel{
		ID:         newID(),
		OwnerID:    in.OwnerID,
		TelegramID: in.TelegramID,
		Username:   in.Username,
		Title:      in.Title,
		Pricing:    in.Pricing,
		Verified:   false,
		Status:     domain.ChannelStatusPending,
		CreatedAt:  s.clock.Now(),
	}

	if err := s.repo.CreateChannel(ctx, ch); err != nil {
		return domain.Channel{}, err
	}

	s.logger.Info("channel listed", "channel_id", ch.ID, "title", ch.Title)
	return ch, nil
}

// VerifyChannel runs the ownership check and, on success, marks the
// channel verified and activates it.
func (s *ChannelService) VerifyChannel(ctx context.Context, id string) (domain.Channel, error) {
	if !isValidID(id) {
		return domain.Channel{}, domain.ErrInvalidID
	}

	ch, err := s.repo.GetChannel(ctx, id)
	if err != nil {
		return domain.Channel{}, err
	}

	ok, err := s.verifier.VerifyAdmin(ctx, ch)
	if err != nil {
		return domain.Channel{}, err
	}
	if !ok {
		return domain.Channel{}, domain.ErrChannelNotVerified
	}

	ch.Verified = true
	if ch.Status == domain.ChannelStatusPending {
		ch.Status = domain.ChannelStatusActive
	}

	if err := s.repo.UpdateChannel(ctx, ch); err != nil {
		return domain.Channel{}, err
	}

	s.logger.Info("channel verified", "channel_id", ch.ID, "status", ch.Status)
	return ch, nil
}

func (s *ChannelService) GetChannel(ctx context.Context, id string) (domain.Channel, error) {
	if !isValidID(id) {
		return domain.Channel{}, domain.ErrInvalidID
	}
	return s.repo.GetChannel(ctx, id)
}

// ListChannels returns channels, optionally filtered by status.
func (s *ChannelService) ListChannels(ctx context.Context, status domain.ChannelStatus) ([]domain.Channel, error) {
	return s.repo.ListChannels(ctx, status)
}
