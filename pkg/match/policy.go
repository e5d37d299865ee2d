package match

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrAmountOverflow     = errors.New("swap amount cannot be negated")
	ErrUnauthorizedCaller = errors.New("caller not authorized for this entry point")
	ErrRelayNotBound      = errors.New("relay identity not bound")
)

// AdminPolicy decides who may bind the relay identity to the engine. The
// check is deliberately pluggable: library code ships no permissive default,
// deployments must choose one explicitly.
type AdminPolicy interface {
	Authorize(caller common.Address) error
}

// SingleAdmin authorizes exactly one configured admin address.
type SingleAdmin struct {
	Admin common.Address
}

func (p SingleAdmin) Authorize(caller common.Address) error {
	if caller != p.Admin {
		return ErrUnauthorizedCaller
	}
	return nil
}

// DenyAll rejects every caller. The zero-value policy for engines whose
// relay is fixed at construction and must never be rebound.
type DenyAll struct{}

func (DenyAll) Authorize(common.Address) error { return ErrUnauthorizedCaller }
