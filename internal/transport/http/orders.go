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

// OrderDirectory is the minimal interface needed for order creation and
// reads.
type OrderDirectory interface {
	CreateOrder(ctx context.Context, in app.CreateOrderInput) (domain.Order, error)
	GetOrder(ctx context.Context, id string) (domain.Order, error)
	GetEscrowStatus(ctx context.Context, id string) (domain.EscrowState, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]domain.Order, error)
	ListOrdersByChannel(ctx context.Context, channelID string) ([]domain.Order, error)
}

// HandleCreateOrder returns an HTTP handler for placing an order
// against a channel's published pricing.
func HandleCreateOrder(svc OrderDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createOrderRequest
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		o, err := svc.CreateOrder(r.Context(), app.CreateOrderInput{
			BuyerID:       req.BuyerID,
			ChannelID:     req.ChannelID,
			AdFormat:      req.AdFormat,
			DeclaredPrice: req.Price,
			Discount:      req.Discount,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(toOrderResponse(o))
	}
}

// HandleGetOrder returns an HTTP handler for reading one order.
func HandleGetOrder(svc OrderDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		o, err := svc.GetOrder(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(toOrderResponse(o))
	}
}

// HandleListOrders returns an HTTP handler for listing orders by buyer
// or by channel. Exactly one of the two query parameters must be set.
func HandleListOrders(svc OrderDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyerID := r.URL.Query().Get("buyer_id")
		channelID := r.URL.Query().Get("channel_id")
		if (buyerID == "") == (channelID == "") {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody,
				"exactly one of buyer_id or channel_id is required")
			return
		}

		var (
			orders []domain.Order
			err    error
		)
		if buyerID != "" {
			orders, err = svc.ListOrdersByBuyer(r.Context(), buyerID)
		} else {
			orders, err = svc.ListOrdersByChannel(r.Context(), channelID)
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]orderResponse, 0, len(orders))
		for _, o := range orders {
			resp = append(resp, toOrderResponse(o))
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// HandleEscrowStatus returns an HTTP handler for the escrow projection
// of an order.
func HandleEscrowStatus(svc OrderDirectory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		es, err := svc.GetEscrowStatus(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := escrowResponse{
			OrderID:             es.OrderID,
			Status:              string(es.Status),
			HeldAt:              es.HeldAt,
			ReleasedAt:          es.ReleasedAt,
			DeliveryConfirmed:   es.DeliveryConfirmed,
			DeliveryConfirmedAt: es.DeliveryConfirmedAt,
			DeliveryConfirmedBy: es.DeliveryConfirmedBy,
		}
		if es.AmountSet {
			resp.Amount = &es.Amount
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}

type createOrderRequest struct {
	BuyerID   string `json:"buyer_id"`
	ChannelID string `json:"channel_id"`
	AdFormat  string `json:"ad_format"`
	Price     int64  `json:"price"`
	Discount  int64  `json:"discount,omitempty"`
}

type orderResponse struct {
	ID             string `json:"id"`
	BuyerID        string `json:"buyer_id"`
	ChannelID      string `json:"channel_id"`
	AdFormat       string `json:"ad_format"`
	Price          int64  `json:"price"`
	DiscountAmount int64  `json:"discount_amount"`
	FinalPrice     int64  `json:"final_price"`

	OrderStatus  string `json:"order_status"`
	EscrowStatus string `json:"escrow_status"`

	DeliveryConfirmed bool   `json:"delivery_confirmed"`
	AutoPosted        bool   `json:"auto_posted"`
	PostURL           string `json:"post_url,omitempty"`

	CreativeContent string `json:"creative_content,omitempty"`
	CreativeMediaID string `json:"creative_media_id,omitempty"`
	RejectReason    string `json:"reject_reason,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toOrderResponse(o domain.Order) orderResponse {
	return orderResponse{
		ID:                o.ID,
		BuyerID:           o.BuyerID,
		ChannelID:         o.ChannelID,
		AdFormat:          o.AdFormat,
		Price:             o.Price,
		DiscountAmount:    o.DiscountAmount,
		FinalPrice:        o.FinalPrice,
		OrderStatus:       string(o.OrderStatus),
		EscrowStatus:      string(o.EscrowStatus),
		DeliveryConfirmed: o.DeliveryConfirmed,
		AutoPosted:        o.AutoPosted,
		PostURL:           o.PostURL,
		CreativeContent:   o.CreativeContent,
		CreativeMediaID:   o.CreativeMediaID,
		RejectReason:      o.RejectReason,
		CreatedAt:         o.CreatedAt,
		PaidAt:            o.PaidAt,
		CompletedAt:       o.CompletedAt,
	}
}

type escrowResponse struct {
	OrderID             string     `json:"order_id"`
	Status              string     `json:"status"`
	Amount              *int64     `json:"amount,omitempty"`
	HeldAt              *time.Time `json:"held_at,omitempty"`
	ReleasedAt          *time.Time `json:"released_at,omitempty"`
	DeliveryConfirmed   bool       `json:"delivery_confirmed"`
	DeliveryConfirmedAt *time.Time `json:"delivery_confirmed_at,omitempty"`
	DeliveryConfirmedBy string     `json:"delivery_confirmed_by,omitempty"`
}
