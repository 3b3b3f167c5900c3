package domain

import "time"

// ChannelStatus is the moderation state of a listed channel. Only
// active channels can take orders.
type ChannelStatus string

const (
	ChannelStatusPending  ChannelStatus = "pending"
	ChannelStatusActive   ChannelStatus = "active"
	ChannelStatusRejected ChannelStatus = "rejected"
	ChannelStatusDisabled ChannelStatus = "disabled"
)

// Channel is a Telegram channel listed on the marketplace. Pricing
// maps ad format names to a fixed price in minor currency units;
// orders must quote one of these prices exactly.
type Channel struct {
	ID         string
	OwnerID    string
	TelegramID int64
	Username   string
	Title      string
	Pricing    map[string]int64
	Verified   bool
	Status     ChannelStatus
	CreatedAt  time.Time
}

// PriceFor looks up the listed price for an ad format.
func (c Channel) PriceFor(format string) (int64, bool) {
	price, ok := c.Pricing[format]
	return price, ok
}
