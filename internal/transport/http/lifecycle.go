package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

// OrderLifecycle is the minimal interface needed for the transition
// endpoints.
type OrderLifecycle interface {
	MarkPaid(ctx context.Context, orderID string) (domain.Order, error)
	SubmitCreative(ctx context.Context, orderID, content, mediaID string) (domain.Order, error)
	ApproveCreative(ctx context.Context, orderID string) (domain.Order, error)
	RejectCreative(ctx context.Context, orderID, reason string) (domain.Order, error)
	ConfirmDelivery(ctx context.Context, orderID, confirmedBy string) (domain.Order, error)
	ReleaseFunds(ctx context.Context, orderID string) (domain.Order, error)
	RequestRefund(ctx context.Context, orderID string) (domain.Order, error)
}

// HandlePayOrder returns an HTTP handler for recording the buyer's
// payment and holding it in escrow.
func HandlePayOrder(svc OrderLifecycle) http.HandlerFunc {
	return transitionHandler(svc.MarkPaid)
}

// HandleSubmitCreative returns an HTTP handler for attaching the ad
// creative to a paid order.
func HandleSubmitCreative(svc OrderLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitCreativeRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		o, err := svc.SubmitCreative(r.Context(), chi.URLParam(r, "id"), req.Content, req.MediaID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeOrder(w, o)
	}
}

// HandleApproveCreative returns an HTTP handler for the channel owner's
// approval. The post is published in the same step.
func HandleApproveCreative(svc OrderLifecycle) http.HandlerFunc {
	return transitionHandler(svc.ApproveCreative)
}

// HandleRejectCreative returns an HTTP handler for declining a creative
// under review.
func HandleRejectCreative(svc OrderLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req rejectCreativeRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		o, err := svc.RejectCreative(r.Context(), chi.URLParam(r, "id"), req.Reason)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeOrder(w, o)
	}
}

// HandleConfirmDelivery returns an HTTP handler for the buyer's
// delivery sign-off.
func HandleConfirmDelivery(svc OrderLifecycle) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req confirmDeliveryRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		o, err := svc.ConfirmDelivery(r.Context(), chi.URLParam(r, "id"), req.ConfirmedBy)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeOrder(w, o)
	}
}

// HandleReleaseFunds returns an HTTP handler for paying held escrow out
// to the channel owner.
func HandleReleaseFunds(svc OrderLifecycle) http.HandlerFunc {
	return transitionHandler(svc.ReleaseFunds)
}

// HandleRefundOrder returns an HTTP handler for returning held funds to
// the buyer. Repeating a refund succeeds with the unchanged order.
func HandleRefundOrder(svc OrderLifecycle) http.HandlerFunc {
	return transitionHandler(svc.RequestRefund)
}

// transitionHandler adapts a body-less transition to an HTTP handler.
func transitionHandler(op func(ctx context.Context, orderID string) (domain.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := op(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeOrder(w, o)
	}
}

func writeOrder(w http.ResponseWriter, o domain.Order) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(toOrderResponse(o))
}

type submitCreativeRequest struct {
	Content string `json:"content"`
	MediaID string `json:"media_id,omitempty"`
}

type rejectCreativeRequest struct {
	Reason string `json:"reason,omitempty"`
}

type confirmDeliveryRequest struct {
	ConfirmedBy string `json:"confirmed_by"`
}
