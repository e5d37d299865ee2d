package escrow

import "github.com/daehyun-ko/crossfill/pkg/venue"

// VenueIndex keeps the per-venue collection of live order ids.
//
// Removal swaps the target with the last element and shrinks, giving O(1)
// amortized cost at the price of non-deterministic iteration order after
// removals. The match scan does not rely on index order for correctness, only
// for which order is picked among several simultaneously eligible ones
// (first-scanned-wins).
//
// Not self-locking: owned and serialized by the Ledger's mutex.
type VenueIndex struct {
	live map[venue.ID][]uint64
}

// NewVenueIndex creates an empty index.
func NewVenueIndex() *VenueIndex {
	return &VenueIndex{live: make(map[venue.ID][]uint64)}
}

// Append records a live order id for a venue.
func (x *VenueIndex) Append(v venue.ID, orderID uint64) {
	x.live[v] = append(x.live[v], orderID)
}

// Remove deletes an order id via swap-with-last.
// Returns false if the id was not indexed for the venue.
func (x *VenueIndex) Remove(v venue.ID, orderID uint64) bool {
	ids := x.live[v]
	for i, id := range ids {
		if id == orderID {
			last := len(ids) - 1
			ids[i] = ids[last]
			x.live[v] = ids[:last]
			return true
		}
	}
	return false
}

// Live returns a snapshot copy of the venue's live order ids in index order.
func (x *VenueIndex) Live(v venue.ID) []uint64 {
	ids := x.live[v]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out
}

// Len returns the number of indexed ids for a venue.
func (x *VenueIndex) Len(v venue.ID) int {
	return len(x.live[v])
}

// Contains reports whether an order id is indexed for a venue.
func (x *VenueIndex) Contains(v venue.ID, orderID uint64) bool {
	for _, id := range x.live[v] {
		if id == orderID {
			return true
		}
	}
	return false
}
