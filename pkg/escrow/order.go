package escrow

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/daehyun-ko/crossfill/pkg/venue"
)

// OriginKind classifies who posted an order, recorded from the caller's origin
// context at post time. It is a label for analytics only: a motivated caller
// can mimic either classification, so it must never gate matching or custody.
type OriginKind int8

const (
	OriginDirect   OriginKind = iota // posted by an externally-owned caller (manual trader)
	OriginContract                   // posted through another program (autonomous agent)
)

func (k OriginKind) String() string {
	switch k {
	case OriginDirect:
		return "direct"
	case OriginContract:
		return "contract"
	default:
		return "unknown"
	}
}

// Order is a resting commitment to sell a fixed amount of one asset for a
// minimum amount of the other. Records are never deleted: a filled or
// cancelled order stays readable with Active=false.
type Order struct {
	ID      uint64         // strictly increasing, assigned at post
	Maker   common.Address // owns the escrowed funds
	VenueID venue.ID       // fingerprint of the venue posted against

	SellsAssetZero bool
	SellAsset      common.Address // snapshot of the venue's assets at post time,
	BuyAsset       common.Address // so the record settles without a descriptor lookup

	AmountIn     uint64 // locked in escrow at post; immutable
	MinAmountOut uint64 // minimum acceptable counter amount; immutable

	Expiry int64 // unix ms; 0 = never expires; checked lazily
	Active bool  // flips false exactly once, on fill/cancel/expiry eviction

	Origin    OriginKind
	CreatedAt int64 // unix ms
}

// Expired reports whether the order is past its expiry at the given time.
func (o *Order) Expired(nowMilli int64) bool {
	return o.Expiry > 0 && nowMilli > o.Expiry
}
