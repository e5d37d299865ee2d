package feed

import (
	"errors"
	"math/big"
)

// PriceScale is the fixed-point unit of normalized prices: 1.0 == 1e8.
// Trigger limit prices use the same unit.
const PriceScale = 100_000_000

var (
	ErrBadSqrtPrice  = errors.New("sqrt price is not a positive integer")
	ErrPriceOverflow = errors.New("normalized price exceeds uint64")
)

var (
	bigScale = big.NewInt(PriceScale)
	maxU64   = new(big.Int).SetUint64(^uint64(0))
)

// NormalizeSqrtPriceX96 converts a pool's Q64.96 square-root price into the
// fixed-point price of asset0 in asset1 units:
//
//	price = sqrtPriceX96^2 * PriceScale / 2^192
//
// The input arrives as a decimal string because the raw value does not fit
// in 64 bits.
func NormalizeSqrtPriceX96(sqrtPriceX96 string) (uint64, error) {
	sp, ok := new(big.Int).SetString(sqrtPriceX96, 10)
	if !ok || sp.Sign() <= 0 {
		return 0, ErrBadSqrtPrice
	}

	p := new(big.Int).Mul(sp, sp)
	p.Mul(p, bigScale)
	p.Rsh(p, 192)

	if p.Cmp(maxU64) > 0 {
		return 0, ErrPriceOverflow
	}
	return p.Uint64(), nil
}
