// Package escrow holds the settlement rules for order funds: held
// exactly once after payment, then released to the channel owner or
// refunded to the buyer, never both.
package escrow

import (
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

// Ledger applies escrow transitions to an order in memory. Callers own
// atomicity: load the order under a lock, apply, then write back.
type Ledger struct {
	clock clock.Clock
}

func NewLedger(clk clock.Clock) *Ledger {
	return &Ledger{clock: clk}
}

// Hold locks amount for the order. Valid only while escrow is pending;
// the amount and held timestamp are set once and never change.
func (l *Ledger) Hold(o *domain.Order, amount int64) error {
	if o.EscrowStatus != domain.EscrowStatusPending {
		if o.Terminal() {
			return domain.ErrAlreadyTerminal
		}
		return domain.ErrInvalidTransition
	}

	now := l.clock.Now()
	o.EscrowStatus = domain.EscrowStatusHeld
	o.EscrowAmount = amount
	o.EscrowHeldAt = &now
	return nil
}

// Release pays held funds out to the channel owner. It requires both
// held escrow and a confirmed delivery; a missing confirmation is
// reported as ErrDeliveryNotConfirmed rather than a generic transition
// failure.
func (l *Ledger) Release(o *domain.Order) error {
	switch o.EscrowStatus {
	case domain.EscrowStatusHeld:
		if !o.DeliveryConfirmed {
			return domain.ErrDeliveryNotConfirmed
		}
	case domain.EscrowStatusReleased, domain.EscrowStatusRefunded:
		return domain.ErrAlreadyTerminal
	default:
		return domain.ErrInvalidTransition
	}

	now := l.clock.Now()
	o.EscrowStatus = domain.EscrowStatusReleased
	o.EscrowReleasedAt = &now
	return nil
}

// Refund returns funds to the buyer from pending or held escrow. A
// repeat refund is a no-op reported as changed=false, nil; refunding
// released funds fails with ErrAlreadyTerminal.
func (l *Ledger) Refund(o *domain.Order) (changed bool, err error) {
	switch o.EscrowStatus {
	case domain.EscrowStatusPending, domain.EscrowStatusHeld:
		o.EscrowStatus = domain.EscrowStatusRefunded
		return true, nil
	case domain.EscrowStatusRefunded:
		return false, nil
	default:
		return false, domain.ErrAlreadyTerminal
	}
}
