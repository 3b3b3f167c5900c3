package domain

import "errors"

var (
	ErrInvalidTransition = errors.New("invalid transition for current order state")
	// ErrDeliveryNotConfirmed is distinct from ErrInvalidTransition so
	// callers can tell "not yet" apart from "never".
	ErrDeliveryNotConfirmed = errors.New("delivery not confirmed")
	ErrAlreadyTerminal      = errors.New("order already settled")

	ErrPriceMismatch   = errors.New("declared price does not match channel pricing")
	ErrUnknownAdFormat = errors.New("channel does not list this ad format")
	ErrInvalidDiscount = errors.New("discount invalid for this price")

	ErrBuyerRequired       = errors.New("buyer id required")
	ErrOwnerRequired       = errors.New("owner id required")
	ErrTitleRequired       = errors.New("channel title required")
	ErrInvalidPricing      = errors.New("pricing must list positive prices")
	ErrEmptyCreative       = errors.New("creative content required")
	ErrConfirmedByRequired = errors.New("confirming party required")

	ErrOrderNotFound      = errors.New("order not found")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrChannelNotVerified = errors.New("channel not verified")
	ErrChannelInactive    = errors.New("channel not active")
	ErrChannelExists      = errors.New("channel already listed")
	ErrInvalidID          = errors.New("invalid id")

	// ErrBusy is returned immediately when another mutation holds the
	// same order; callers retry instead of queueing.
	ErrBusy               = errors.New("order busy")
	ErrStorageUnavailable = errors.New("storage unavailable")
)
