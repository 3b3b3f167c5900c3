package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

// OrderCounter is the order-side source for marketplace statistics.
type OrderCounter interface {
	CountOrders(ctx context.Context) (int, error)
	CountActiveOrders(ctx context.Context) (int, error)
}

// ChannelCounter is the catalog-side source for marketplace statistics.
type ChannelCounter interface {
	CountChannels(ctx context.Context, status domain.ChannelStatus) (int, error)
}

// PendingEventCounter reports the outbox backlog.
type PendingEventCounter interface {
	CountPending(ctx context.Context) (int, error)
}

// HandleStats returns an HTTP handler for the marketplace overview
// counters shown on the storefront.
func HandleStats(orders OrderCounter, channels ChannelCounter, outbox PendingEventCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		total, err := orders.CountOrders(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		active, err := orders.CountActiveOrders(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		channelCount, err := channels.CountChannels(ctx, "")
		if err != nil {
			writeServiceError(w, err)
			return
		}
		pending, err := outbox.CountPending(ctx)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(statsResponse{
			OrdersTotal:   total,
			OrdersActive:  active,
			ChannelsTotal: channelCount,
			OutboxPending: pending,
		})
	}
}

type statsResponse struct {
	OrdersTotal   int `json:"orders_total"`
	OrdersActive  int `json:"orders_active"`
	ChannelsTotal int `json:"channels_total"`
	OutboxPending int `json:"outbox_pending"`
}
