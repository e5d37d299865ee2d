package escrow

import "errors"

var (
	ErrInvalidAmount       = errors.New("amount must be nonzero")
	ErrNotFound            = errors.New("order not found")
	ErrUnauthorized        = errors.New("caller is not the maker")
	ErrNotActive           = errors.New("order is not active")
	ErrVenueMismatch       = errors.New("venue fingerprint mismatch")
	ErrInsufficientBalance = errors.New("insufficient balance")
)
