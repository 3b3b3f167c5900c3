// Package delivery drives the creative and posting side of an order:
// creative submission and review, publication, and the buyer's
// delivery confirmation that unlocks escrow release.
package delivery

import (
	"fmt"
	"hash/fnv"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

// Tracker applies delivery-side transitions to an order in memory.
// Like the escrow ledger it never touches storage; callers load, apply
// and write back atomically.
type Tracker struct {
	clock clock.Clock
}

func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{clock: clk}
}

// SubmitCreative attaches the ad creative to a paid order and moves it
// to review. Resubmission while still in review replaces the creative.
func (t *Tracker) SubmitCreative(o *domain.Order, content, mediaID string) error {
	if content == "" && mediaID == "" {
		return domain.ErrEmptyCreative
	}
	switch o.OrderStatus {
	case domain.OrderStatusPaid, domain.OrderStatusPendingApproval:
	default:
		return domain.ErrInvalidTransition
	}

	o.CreativeContent = content
	o.CreativeMediaID = mediaID
	o.OrderStatus = domain.OrderStatusPendingApproval
	return nil
}

// Approve accepts the creative under review.
func (t *Tracker) Approve(o *domain.Order) error {
	if o.OrderStatus != domain.OrderStatusPendingApproval {
		return domain.ErrInvalidTransition
	}
	o.OrderStatus = domain.OrderStatusApproved
	o.RejectReason = ""
	return nil
}

// Reject declines the creative under review. The order keeps its held
// funds; refund is the only way out of rejected.
func (t *Tracker) Reject(o *domain.Order, reason string) error {
	if o.OrderStatus != domain.OrderStatusPendingApproval {
		return domain.ErrInvalidTransition
	}
	o.OrderStatus = domain.OrderStatusRejected
	o.RejectReason = reason
	return nil
}

// Publish marks an approved order as posted and records a simulated
// post URL. Publishing an already posted order is a no-op so retries
// never mint a second URL or timestamp.
func (t *Tracker) Publish(o *domain.Order) error {
	if o.AutoPosted {
		return nil
	}
	if o.OrderStatus != domain.OrderStatusApproved {
		return domain.ErrInvalidTransition
	}

	now := t.clock.Now()
	o.AutoPosted = true
	o.AutoPostedAt = &now
	o.PostURL = PostURL(o.ID)
	o.OrderStatus = domain.OrderStatusPosted
	return nil
}

// ConfirmDelivery records the buyer's sign-off on a posted order. The
// confirming party is part of the audit trail and is required.
func (t *Tracker) ConfirmDelivery(o *domain.Order, confirmedBy string) error {
	if confirmedBy == "" {
		return domain.ErrConfirmedByRequired
	}
	if o.OrderStatus != domain.OrderStatusPosted || o.DeliveryConfirmed {
		return domain.ErrInvalidTransition
	}

	now := t.clock.Now()
	o.DeliveryConfirmed = true
	o.DeliveryConfirmedAt = &now
	o.DeliveryConfirmedBy = confirmedBy
	o.OrderStatus = domain.OrderStatusDelivered
	return nil
}

// PostURL derives a stable Telegram-style message link from the order
// id. Deterministic so republish attempts and tests agree on the URL.
func PostURL(orderID string) string {
	h := fnv.New64a()
	h.Write([]byte(orderID))
	sum := h.Sum64()
	return fmt.Sprintf("https://t.me/c/%d/%d", 1000000000+sum%9000000000, 1+sum%100000)
}
