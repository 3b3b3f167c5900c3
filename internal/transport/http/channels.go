package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/app"
	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

// ChannelDirectory is the minimal interface needed for channel endpoints.
type ChannelDirectory interface {
	CreateChannel(ctx context.Context, in app.CreateChannelInput) (domain.Channel, error)
	GetChannel(ctx context.Context, id string) (domain.Channel, error)
	ListChannels(ctx context.Context, status domain.ChannelStatus) ([]domain.Channel, error)
	VerifyChannel(ctx context.Context, id string) (domain.Channel, error)
}

// EarningsReader is the minimal interface needed for the earnings endpoint.
type EarningsReader interface {
	TotalForChannel(ctx context.Context, channelID string) (int64, error)
}

// HandleCreateChannel returns an HTTP handler for listing a channel on
// the marketplace.
func HandleCreateChannel(svc ChannelDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createChannelRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		ch, err := svc.CreateChannel(r.Context(), app.CreateChannelInput{
			OwnerID:    req.OwnerID,
			TelegramID: req.TelegramID,
			Username:   req.Username,
			Title:      req.Title,
			Pricing:    req.Pricing,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toChannelResponse(ch))
	}
}

// HandleListChannels returns an HTTP handler for browsing the catalog.
// An optional status query parameter narrows the listing.
func HandleListChannels(svc ChannelDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := domain.ChannelStatus(r.URL.Query().Get("status"))

		channels, err := svc.ListChannels(r.Context(), status)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]channelResponse, 0, len(channels))
		for _, ch := range channels {
			resp = append(resp, toChannelResponse(ch))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleGetChannel returns an HTTP handler for reading one channel.
func HandleGetChannel(svc ChannelDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := svc.GetChannel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toChannelResponse(ch))
	}
}

// HandleVerifyChannel returns an HTTP handler for the ownership check
// that activates a channel.
func HandleVerifyChannel(svc ChannelDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ch, err := svc.VerifyChannel(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toChannelResponse(ch))
	}
}

// HandleChannelEarnings returns an HTTP handler for the owner's
// lifetime earnings roll-up.
func HandleChannelEarnings(svc EarningsReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channelID := chi.URLParam(r, "id")

		total, err := svc.TotalForChannel(r.Context(), channelID)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(earningsResponse{
			ChannelID: channelID,
			Total:     total,
		})
	}
}

type createChannelRequest struct {
	OwnerID    string           `json:"owner_id"`
	TelegramID int64            `json:"telegram_id"`
	Username   string           `json:"username,omitempty"`
	Title      string           `json:"title"`
	Pricing    map[string]int64 `json:"pricing"`
}

type channelResponse struct {
	ID         string           `json:"id"`
	OwnerID    string           `json:"owner_id"`
	TelegramID int64            `json:"telegram_id"`
	Username   string           `json:"username,omitempty"`
	Title      string           `json:"title"`
	Pricing    map[string]int64 `json:"pricing"`
	Verified   bool             `json:"verified"`
	Status     string           `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
}

func toChannelResponse(ch domain.Channel) channelResponse {
	return channelResponse{
		ID:         ch.ID,
		OwnerID:    ch.OwnerID,
		TelegramID: ch.TelegramID,
		Username:   ch.Username,
		Title:      ch.Title,
		Pricing:    ch.Pricing,
		Verified:   ch.Verified,
		Status:     string(ch.Status),
		CreatedAt:  ch.CreatedAt,
	}
}

type earningsResponse struct {
	ChannelID string `json:"channel_id"`
	Total     int64  `json:"total"`
}
