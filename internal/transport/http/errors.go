package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/macbere/Telegram-Ads-marketplace-App/internal/domain"
)

const (
	codeMethodNotAllowed     = "method_not_allowed"
	codeNotFound             = "not_found"
	codeInvalidRequestBody   = "invalid_request_body"
	codeInvalidID            = "invalid_id"
	codeBuyerRequired        = "buyer_required"
	codeOwnerRequired        = "owner_required"
	codeTitleRequired        = "title_required"
	codeInvalidPricing       = "invalid_pricing"
	codeUnknownAdFormat      = "unknown_ad_format"
	codePriceMismatch        = "price_mismatch"
	codeInvalidDiscount      = "invalid_discount"
	codeEmptyCreative        = "empty_creative"
	codeConfirmedByRequired  = "confirmed_by_required"
	codeOrderNotFound        = "order_not_found"
	codeChannelNotFound      = "channel_not_found"
	codeChannelExists        = "channel_already_exists"
	codeChannelNotVerified   = "channel_not_verified"
	codeChannelInactive      = "channel_inactive"
	codeOrderBusy            = "order_busy"
	codeInvalidTransition    = "invalid_transition"
	codeOrderTerminal        = "order_terminal"
	codeDeliveryNotConfirmed = "delivery_not_confirmed"
	codeStorageUnavailable   = "storage_unavailable"
	codeForbidden            = "forbidden"
	codeInternalError        = "internal_error"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	payload, err := json.Marshal(errorResponse{
		Error: msg,
		Code:  code,
	})
	if err != nil {
		_, _ = w.Write([]byte(`{"error":"internal error","code":"internal_error"}`))
		return
	}
	_, _ = w.Write(payload)
}

// writeServiceError maps a service error onto the wire. Every endpoint
// shares this table; handlers only add checks for their own request
// parsing.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		writeError(w, http.StatusBadRequest, codeInvalidID, err.Error())
	case errors.Is(err, domain.ErrBuyerRequired):
		writeError(w, http.StatusBadRequest, codeBuyerRequired, err.Error())
	case errors.Is(err, domain.ErrOwnerRequired):
		writeError(w, http.StatusBadRequest, codeOwnerRequired, err.Error())
	case errors.Is(err, domain.ErrTitleRequired):
		writeError(w, http.StatusBadRequest, codeTitleRequired, err.Error())
	case errors.Is(err, domain.ErrInvalidPricing):
		writeError(w, http.StatusBadRequest, codeInvalidPricing, err.Error())
	case errors.Is(err, domain.ErrUnknownAdFormat):
		writeError(w, http.StatusBadRequest, codeUnknownAdFormat, err.Error())
	case errors.Is(err, domain.ErrPriceMismatch):
		writeError(w, http.StatusBadRequest, codePriceMismatch, err.Error())
	case errors.Is(err, domain.ErrInvalidDiscount):
		writeError(w, http.StatusBadRequest, codeInvalidDiscount, err.Error())
	case errors.Is(err, domain.ErrEmptyCreative):
		writeError(w, http.StatusBadRequest, codeEmptyCreative, err.Error())
	case errors.Is(err, domain.ErrConfirmedByRequired):
		writeError(w, http.StatusBadRequest, codeConfirmedByRequired, err.Error())
	case errors.Is(err, domain.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, codeOrderNotFound, err.Error())
	case errors.Is(err, domain.ErrChannelNotFound):
		writeError(w, http.StatusNotFound, codeChannelNotFound, err.Error())
	case errors.Is(err, domain.ErrChannelExists):
		writeError(w, http.StatusConflict, codeChannelExists, err.Error())
	case errors.Is(err, domain.ErrChannelNotVerified):
		writeError(w, http.StatusConflict, codeChannelNotVerified, err.Error())
	case errors.Is(err, domain.ErrChannelInactive):
		writeError(w, http.StatusConflict, codeChannelInactive, err.Error())
	case errors.Is(err, domain.ErrBusy):
		writeError(w, http.StatusConflict, codeOrderBusy, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, codeInvalidTransition, err.Error())
	case errors.Is(err, domain.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, codeOrderTerminal, err.Error())
	case errors.Is(err, domain.ErrDeliveryNotConfirmed):
		writeError(w, http.StatusConflict, codeDeliveryNotConfirmed, err.Error())
	case errors.Is(err, domain.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, codeStorageUnavailable, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}
}
