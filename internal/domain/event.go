package domain

import "time"

// EventKind names an outbox event emitted on an order transition.
type EventKind string

const (
	EventOrderPaid         EventKind = "order.paid"
	EventCreativeSubmitted EventKind = "creative.submitted"
	EventCreativeApproved  EventKind = "creative.approved"
	EventCreativeRejected  EventKind = "creative.rejected"
	EventOrderPosted       EventKind = "order.posted"
	EventOrderDelivered    EventKind = "order.delivered"
	EventEscrowReleased    EventKind = "escrow.released"
	EventOrderRefunded     EventKind = "order.refunded"
)

// OutboxEvent is a transition record written in the same transaction
// as the order mutation it describes. A poller dispatches pending
// events after commit; delivery is at least once, so receivers must
// tolerate replays.
type OutboxEvent struct {
	ID           string
	OrderID      string
	Kind         EventKind
	Payload      []byte
	CreatedAt    time.Time
	DispatchedAt *time.Time
	Attempts     int
}

// EventPayload is the JSON body of an outbox event: a snapshot of the
// order right after the transition committed.
type EventPayload struct {
	OrderID      string       `json:"order_id"`
	BuyerID      string       `json:"buyer_id"`
	ChannelID    string       `json:"channel_id"`
	OrderStatus  OrderStatus  `json:"order_status"`
	EscrowStatus EscrowStatus `json:"escrow_status"`
	Amount       int64        `json:"amount"`
	PostURL      string       `json:"post_url,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	ConfirmedBy  string       `json:"confirmed_by,omitempty"`
}

// EarningsCredit is a channel owner's payout entry, written once per
// released order. OrderID is the idempotency key.
type EarningsCredit struct {
	OrderID    string
	ChannelID  string
	Amount     int64
	CreditedAt time.Time
}
