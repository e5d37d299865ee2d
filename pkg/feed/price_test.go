package feed

import (
	"errors"
	"math/big"
	"testing"
)

func TestNormalizeSqrtPriceX96(t *testing.T) {
	q96 := new(big.Int).Lsh(big.NewInt(1), 96)

	cases := []struct {
		name string
		sp   *big.Int
		want uint64
	}{
		{"unit price", q96, PriceScale},
		{"price 4", new(big.Int).Lsh(q96, 1), 4 * PriceScale},
		{"price 1/4", new(big.Int).Rsh(q96, 1), PriceScale / 4},
	}
	for _, c := range cases {
		got, err := NormalizeSqrtPriceX96(c.sp.String())
		if err != nil {
			t.Errorf("%s: %v", c.name, err)
			continue
		}
		if got != c.want {
			t.Errorf("%s: got %d, want %d", c.name, got, c.want)
		}
	}
}

func TestNormalizeRejectsBadInput(t *testing.T) {
	for _, in := range []string{"", "abc", "-5", "0", "1.5"} {
		if _, err := NormalizeSqrtPriceX96(in); !errors.Is(err, ErrBadSqrtPrice) {
			t.Errorf("%q: err = %v, want ErrBadSqrtPrice", in, err)
		}
	}
}

func TestNormalizeOverflow(t *testing.T) {
	// sqrt price of 2^160 squares to 2^320; shifted down 192 bits that is
	// 2^128, far past uint64.
	huge := new(big.Int).Lsh(big.NewInt(1), 160)
	if _, err := NormalizeSqrtPriceX96(huge.String()); !errors.Is(err, ErrPriceOverflow) {
		t.Errorf("err = %v, want ErrPriceOverflow", err)
	}
}
