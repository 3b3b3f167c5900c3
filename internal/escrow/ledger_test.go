package escrow

import (
	"errors"
	"testing"
	"time"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/clock"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestLedger() *Ledger {
	return NewLedger(clock.NewFixed(testNow))
}

func TestHold_FromPending(t *testing.T) {
	t.Parallel()

	l := newTestLedger()
	o := &domain.Order{EscrowStatus: domain.EscrowStatusPending}

	if err := l.Hold(o, 8000); err != nil {
		t.Fatalf("hold: %v", err)
	}
	if o.EscrowStatus != domain.EscrowStatusHeld {
		t.Fatalf("expected held, got %s", o.EscrowStatus)
	}
	if o.EscrowAmount != 8000 {
		t.Fatalf("expected amount 8000, got %d", o.EscrowAmount)
	}
	if o.EscrowHeldAt == nil || !o.EscrowHeldAt.Equal(testNow) {
		t.Fatalf("expected held_at %v, got %v", testNow, o.EscrowHeldAt)
	}
}

func TestHold_InvalidStates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status domain.EscrowStatus
		want   error
	}{
		{"already held", domain.EscrowStatusHeld, domain.ErrInvalidTransition},
		{"released", domain.EscrowStatusReleased, domain.ErrAlreadyTerminal},
		{"refunded", domain.EscrowStatusRefunded, domain.ErrAlreadyTerminal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLedger()
			o := &domain.Order{EscrowStatus: tc.status, EscrowAmount: 500}

			err := l.Hold(o, 9999)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if o.EscrowAmount != 500 {
				t.Fatalf("amount must not change on failed hold, got %d", o.EscrowAmount)
			}
		})
	}
}

func TestRelease_RequiresConfirmedDelivery(t *testing.T) {
	t.Parallel()

	l := newTestLedger()
	o := &domain.Order{EscrowStatus: domain.EscrowStatusHeld}

	err := l.Release(o)
	if !errors.Is(err, domain.ErrDeliveryNotConfirmed) {
		t.Fatalf("expected ErrDeliveryNotConfirmed, got %v", err)
	}
	if o.EscrowStatus != domain.EscrowStatusHeld {
		t.Fatalf("escrow must stay held, got %s", o.EscrowStatus)
	}

	o.DeliveryConfirmed = true
	if err := l.Release(o); err != nil {
		t.Fatalf("release after confirmation: %v", err)
	}
	if o.EscrowStatus != domain.EscrowStatusReleased {
		t.Fatalf("expected released, got %s", o.EscrowStatus)
	}
	if o.EscrowReleasedAt == nil || !o.EscrowReleasedAt.Equal(testNow) {
		t.Fatalf("expected released_at %v, got %v", testNow, o.EscrowReleasedAt)
	}
}

func TestRelease_InvalidStates(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		status domain.EscrowStatus
		want   error
	}{
		{"pending", domain.EscrowStatusPending, domain.ErrInvalidTransition},
		{"released", domain.EscrowStatusReleased, domain.ErrAlreadyTerminal},
		{"refunded", domain.EscrowStatusRefunded, domain.ErrAlreadyTerminal},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestLedger()
			o := &domain.Order{EscrowStatus: tc.status, DeliveryConfirmed: true}

			if err := l.Release(o); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestRefund_FromPendingAndHeld(t *testing.T) {
	t.Parallel()

	for _, status := range []domain.EscrowStatus{domain.EscrowStatusPending, domain.EscrowStatusHeld} {
		t.Run(string(status), func(t *testing.T) {
			l := newTestLedger()
			o := &domain.Order{EscrowStatus: status}

			changed, err := l.Refund(o)
			if err != nil {
				t.Fatalf("refund: %v", err)
			}
			if !changed {
				t.Fatal("expected changed=true on first refund")
			}
			if o.EscrowStatus != domain.EscrowStatusRefunded {
				t.Fatalf("expected refunded, got %s", o.EscrowStatus)
			}
		})
	}
}

func TestRefund_RepeatIsNoop(t *testing.T) {
	t.Parallel()

	l := newTestLedger()
	o := &domain.Order{EscrowStatus: domain.EscrowStatusHeld, EscrowAmount: 1200}

	if _, err := l.Refund(o); err != nil {
		t.Fatalf("first refund: %v", err)
	}
	before := *o

	changed, err := l.Refund(o)
	if err != nil {
		t.Fatalf("second refund must succeed, got %v", err)
	}
	if changed {
		t.Fatal("second refund must not report a change")
	}
	if *o != before {
		t.Fatalf("second refund must not mutate the order: %+v vs %+v", *o, before)
	}
}

func TestRefund_AfterRelease(t *testing.T) {
	t.Parallel()

	l := newTestLedger()
	o := &domain.Order{EscrowStatus: domain.EscrowStatusHeld, DeliveryConfirmed: true}

	if err := l.Release(o); err != nil {
		t.Fatalf("release: %v", err)
	}

	changed, err := l.Refund(o)
	if !errors.Is(err, domain.ErrAlreadyTerminal) {
		t.Fatalf("expected ErrAlreadyTerminal, got %v", err)
	}
	if changed {
		t.Fatal("failed refund must not report a change")
	}
	if o.EscrowStatus != domain.EscrowStatusReleased {
		t.Fatalf("released funds must stay released, got %s", o.EscrowStatus)
	}
}
