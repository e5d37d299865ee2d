package escrow

import (
	"testing"

	"github.com/daehyun-ko/crossfill/pkg/venue"
)

func TestVenueIndexSwapRemove(t *testing.T) {
	x := NewVenueIndex()
	v := venue.ID{0x01}

	for id := uint64(1); id <= 4; id++ {
		x.Append(v, id)
	}

	// Removing from the middle swaps the last element into the hole.
	if !x.Remove(v, 2) {
		t.Fatal("remove failed")
	}
	live := x.Live(v)
	if len(live) != 3 {
		t.Fatalf("len = %d, want 3", len(live))
	}
	if live[1] != 4 {
		t.Errorf("swapped slot = %d, want 4", live[1])
	}
	if x.Contains(v, 2) {
		t.Error("removed id still indexed")
	}

	if x.Remove(v, 2) {
		t.Error("second remove of same id succeeded")
	}
	if x.Remove(venue.ID{0x02}, 1) {
		t.Error("remove against wrong venue succeeded")
	}
}

func TestVenueIndexLiveIsSnapshot(t *testing.T) {
	x := NewVenueIndex()
	v := venue.ID{0x01}
	x.Append(v, 1)
	x.Append(v, 2)

	snap := x.Live(v)
	x.Remove(v, 1)

	if len(snap) != 2 {
		t.Errorf("snapshot mutated: len = %d, want 2", len(snap))
	}
	if x.Len(v) != 1 {
		t.Errorf("index len = %d, want 1", x.Len(v))
	}
}
