package venue

import (
	"encoding/binary"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ID is the deterministic fingerprint of a venue's immutable configuration.
// Any caller presenting the same descriptor recomputes the same fingerprint.
type ID = common.Hash

// Venue describes a trading pair plus its immutable fee/tick parameters.
// The fingerprint is derived from these fields only; mutable venue state
// (liquidity, price) lives outside this package.
type Venue struct {
	Asset0      common.Address // token sold when sellsAssetZero=true
	Asset1      common.Address
	FeeBps      int64
	TickSpacing int64
}

// New validates the descriptor and returns it with its fingerprint precomputed.
func New(asset0, asset1 common.Address, feeBps, tickSpacing int64) (*Venue, error) {
	v := &Venue{Asset0: asset0, Asset1: asset1, FeeBps: feeBps, TickSpacing: tickSpacing}
	if err := v.Validate(); err != nil {
		return nil, fmt.Errorf("invalid venue: %w", err)
	}
	return v, nil
}

// Validate checks descriptor sanity.
func (v *Venue) Validate() error {
	if v.Asset0 == (common.Address{}) || v.Asset1 == (common.Address{}) {
		return fmt.Errorf("both assets must be specified")
	}
	if v.Asset0 == v.Asset1 {
		return fmt.Errorf("assets must differ")
	}
	if v.FeeBps < 0 {
		return fmt.Errorf("fee cannot be negative")
	}
	if v.TickSpacing <= 0 {
		return fmt.Errorf("tick spacing must be positive")
	}
	return nil
}

// Fingerprint hashes the packed immutable config with keccak256.
// Layout: asset0 (20B) || asset1 (20B) || feeBps (8B BE) || tickSpacing (8B BE).
func (v *Venue) Fingerprint() ID {
	var buf [56]byte
	copy(buf[0:20], v.Asset0[:])
	copy(buf[20:40], v.Asset1[:])
	binary.BigEndian.PutUint64(buf[40:48], uint64(v.FeeBps))
	binary.BigEndian.PutUint64(buf[48:56], uint64(v.TickSpacing))

	h := sha3.NewLegacyKeccak256()
	h.Write(buf[:])
	var id ID
	copy(id[:], h.Sum(nil))
	return id
}

// SellingAsset returns the asset a maker gives up for the given side.
func (v *Venue) SellingAsset(sellsAssetZero bool) common.Address {
	if sellsAssetZero {
		return v.Asset0
	}
	return v.Asset1
}

// BuyingAsset returns the asset a maker receives for the given side.
func (v *Venue) BuyingAsset(sellsAssetZero bool) common.Address {
	if sellsAssetZero {
		return v.Asset1
	}
	return v.Asset0
}
