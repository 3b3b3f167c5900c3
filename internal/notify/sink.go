package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

type ChannelReader interface {
	GetChannel(ctx context.Context, id string) (domain.Channel, error)
}

// Sink consumes outbox events and notifies the parties affected by
// each transition. Send failures are logged and dropped rather than
// returned: a recipient who blocked the bot must not wedge the event
// queue, and the outbox would otherwise re-send to the recipients that
// already got the message.
type Sink struct {
	channels ChannelReader
	notifier Notifier
	logger   *slog.Logger
}

func NewSink(channels ChannelReader, notifier Notifier, logger *slog.Logger) *Sink {
	return &Sink{channels: channels, notifier: notifier, logger: logger}
}

func (s *Sink) HandleEvent(ctx context.Context, ev domain.OutboxEvent) error {
	var p domain.EventPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Kind, err)
	}

	msgs, err := s.compose(ctx, ev.Kind, p)
	if err != nil {
		return err
	}

	for _, msg := range msgs {
		if err := s.notifier.Send(ctx, msg); err != nil {
			s.logger.Warn("notification failed",
				"event_id", ev.ID, "kind", ev.Kind, "recipient", msg.Recipient, "error", err)
		}
	}
	return nil
}

// compose builds the messages for one event. The channel owner's
// recipient id comes from the channel record; the buyer's from the
// event payload.
func (s *Sink) compose(ctx context.Context, kind domain.EventKind, p domain.EventPayload) ([]Message, error) {
	owner := func(text string) ([]Message, error) {
		ch, err := s.channels.GetChannel(ctx, p.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve channel %s: %w", p.ChannelID, err)
		}
		return []Message{{Recipient: ch.OwnerID, Text: text}}, nil
	}
	buyer := func(text string) ([]Message, error) {
		return []Message{{Recipient: p.BuyerID, Text: text}}, nil
	}

	amount := strconv.FormatInt(p.Amount, 10)

	switch kind {
	case domain.EventOrderPaid:
		ch, err := s.channels.GetChannel(ctx, p.ChannelID)
		if err != nil {
			return nil, fmt.Errorf("resolve channel %s: %w", p.ChannelID, err)
		}
		return []Message{
			{Recipient: p.BuyerID, Text: "Payment received. " + amount + " is held in escrow until your ad is delivered."},
			{Recipient: ch.OwnerID, Text: "New paid order for " + ch.Title + ". Waiting for the buyer's creative."},
		}, nil
	case domain.EventCreativeSubmitted:
		return owner("A creative was submitted for review.")
	case domain.EventCreativeApproved:
		return buyer("Your creative was approved and is being scheduled.")
	case domain.EventCreativeRejected:
		text := "Your creative was rejected."
		if p.Reason != "" {
			text += " Reason: " + p.Reason
		}
		return buyer(text)
	case domain.EventOrderPosted:
		return buyer("Your ad is live: " + p.PostURL)
	case domain.EventOrderDelivered:
		return owner("Delivery was confirmed. Escrow release is next.")
	case domain.EventEscrowReleased:
		return owner("Escrow released: " + amount + " was credited to your earnings.")
	case domain.EventOrderRefunded:
		return buyer("Your order was refunded: " + amount + ".")
	default:
		return nil, nil
	}
}
