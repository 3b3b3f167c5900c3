package domain

import "time"

// OrderStatus tracks an order through the campaign lifecycle, from
// creation to one of the two terminal outcomes (completed or refunded).
type OrderStatus string

const (
	OrderStatusPendingPayment  OrderStatus = "pending_payment"
	OrderStatusPaid            OrderStatus = "paid"
	OrderStatusPendingApproval OrderStatus = "pending_approval"
	OrderStatusApproved        OrderStatus = "approved"
	OrderStatusRejected        OrderStatus = "rejected"
	OrderStatusPosted          OrderStatus = "posted"
	OrderStatusDelivered       OrderStatus = "delivered"
	OrderStatusCompleted       OrderStatus = "completed"
	OrderStatusRefunded        OrderStatus = "refunded"
)

// EscrowStatus tracks the money attached to an order. It advances
// independently of OrderStatus but never out of step with it.
type EscrowStatus string

const (
	EscrowStatusPending  EscrowStatus = "pending"
	EscrowStatusHeld     EscrowStatus = "held"
	EscrowStatusReleased EscrowStatus = "released"
	EscrowStatusRefunded EscrowStatus = "refunded"
)

// Order is an ad placement bought on a channel. All money fields are
// minor currency units. Timestamp pointers are nil until the matching
// transition happens and are set at most once.
type Order struct {
	ID        string
	BuyerID   string
	ChannelID string
	AdFormat  string

	Price          int64
	DiscountAmount int64
	FinalPrice     int64

	OrderStatus  OrderStatus
	EscrowStatus EscrowStatus

	EscrowAmount     int64
	EscrowHeldAt     *time.Time
	EscrowReleasedAt *time.Time

	DeliveryConfirmed   bool
	DeliveryConfirmedAt *time.Time
	DeliveryConfirmedBy string

	AutoPosted   bool
	AutoPostedAt *time.Time
	PostURL      string

	CreativeContent string
	CreativeMediaID string
	RejectReason    string

	CreatedAt   time.Time
	PaidAt      *time.Time
	CompletedAt *time.Time
}

// Terminal reports whether the order reached a final settlement. Once
// escrow has been released or refunded no further lifecycle or escrow
// mutation is allowed; the row is kept for audit.
func (o Order) Terminal() bool {
	return o.EscrowStatus == EscrowStatusReleased || o.EscrowStatus == EscrowStatusRefunded
}

// EscrowState is the escrow-only projection of an order, served to
// callers that track settlement without the full order view.
type EscrowState struct {
	OrderID             string
	Status              EscrowStatus
	Amount              int64
	AmountSet           bool
	HeldAt              *time.Time
	ReleasedAt          *time.Time
	DeliveryConfirmed   bool
	DeliveryConfirmedAt *time.Time
	DeliveryConfirmedBy string
}

// EscrowState returns the escrow projection of the order. Amount is
// only meaningful once funds were held; AmountSet tells the two apart
// from a genuine zero-value hold.
func (o Order) EscrowState() EscrowState {
	return EscrowState{
		OrderID:             o.ID,
		Status:              o.EscrowStatus,
		Amount:              o.EscrowAmount,
		AmountSet:           o.EscrowHeldAt != nil,
		HeldAt:              o.EscrowHeldAt,
		ReleasedAt:          o.EscrowReleasedAt,
		DeliveryConfirmed:   o.DeliveryConfirmed,
		DeliveryConfirmedAt: o.DeliveryConfirmedAt,
		DeliveryConfirmedBy: o.DeliveryConfirmedBy,
	}
}
