package storage

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/daehyun-ko/crossfill/pkg/escrow"
	"github.com/daehyun-ko/crossfill/pkg/trigger"
	"github.com/daehyun-ko/crossfill/pkg/util"
	"github.com/daehyun-ko/crossfill/pkg/venue"
)

var (
	alice  = common.HexToAddress("0xAA00000000000000000000000000000000000000")
	bob    = common.HexToAddress("0xBB00000000000000000000000000000000000000")
	tokenA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	tokenB = common.HexToAddress("0x1000000000000000000000000000000000000002")
)

// newTestStore opens a store on a unique temporary path per test to avoid
// Pebble lock conflicts.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := fmt.Sprintf("./tmp_test_%s.db", t.Name())
	os.RemoveAll(dbPath)
	t.Cleanup(func() { os.RemoveAll(dbPath) })

	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOrderRoundTrip(t *testing.T) {
	s := newTestStore(t)

	orders := []*escrow.Order{
		{ID: 1, Maker: alice, VenueID: venue.ID{0x01}, SellsAssetZero: true,
			SellAsset: tokenA, BuyAsset: tokenB, AmountIn: 100, MinAmountOut: 90, Active: true},
		{ID: 2, Maker: bob, VenueID: venue.ID{0x01}, AmountIn: 50, MinAmountOut: 40, Active: false},
	}
	for _, o := range orders {
		if err := s.SaveOrder(o); err != nil {
			t.Fatalf("save order %d: %v", o.ID, err)
		}
	}

	got, err := s.LoadOrders()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("loaded %d orders, want 2", len(got))
	}
	// Keys are big-endian ids, so iteration returns ascending ids.
	if got[0].ID != 1 || got[1].ID != 2 {
		t.Errorf("order ids = %d,%d want 1,2", got[0].ID, got[1].ID)
	}
	if got[0].Maker != alice || !got[0].Active || got[0].AmountIn != 100 {
		t.Errorf("order 1 fields lost: %+v", got[0])
	}
}

func TestTriggerRoundTrip(t *testing.T) {
	s := newTestStore(t)

	tr := &trigger.Trigger{ID: 5, OrderID: 7, Maker: alice, Direction: trigger.Lower,
		LimitPrice: 3000, Active: true, CreatedAt: 12345}
	if err := s.SaveTrigger(tr); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadTriggers()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 1 || got[0].ID != 5 || got[0].LimitPrice != 3000 {
		t.Errorf("loaded = %+v", got)
	}
}

func TestBalanceRoundTrip(t *testing.T) {
	s := newTestStore(t)

	s.SaveBalance(alice, tokenA, 100)
	s.SaveBalance(alice, tokenB, 200)
	s.SaveBalance(bob, tokenA, 300)
	// Overwrite keeps only the latest value.
	s.SaveBalance(alice, tokenA, 150)

	balances, err := s.LoadBalances()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if balances[alice][tokenA] != 150 || balances[alice][tokenB] != 200 {
		t.Errorf("alice balances = %v", balances[alice])
	}
	if balances[bob][tokenA] != 300 {
		t.Errorf("bob balances = %v", balances[bob])
	}
}

// TestLedgerRestore drives the full persistence cycle: mutate a ledger, then
// rebuild a fresh one from the same store and compare custody state.
func TestLedgerRestore(t *testing.T) {
	s := newTestStore(t)
	clock := &util.FakeClock{T: time.UnixMilli(1_000_000)}
	v, _ := venue.New(tokenA, tokenB, 30, 60)

	l1 := escrow.NewLedger(clock, s, nil)
	l1.Deposit(alice, tokenA, 1000)
	l1.Deposit(bob, tokenB, 500)
	live, _ := l1.Post(v, true, 400, 350, 0, alice, escrow.OriginDirect)
	cancelled, _ := l1.Post(v, true, 100, 90, 0, alice, escrow.OriginDirect)
	l1.Cancel(cancelled, v.Fingerprint(), alice)

	l2 := escrow.NewLedger(clock, s, nil)
	if err := l2.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if got := l2.Balance(alice, tokenA); got != 600 {
		t.Errorf("alice tokenA = %d, want 600", got)
	}
	if got := l2.EscrowedTotal(tokenA); got != 400 {
		t.Errorf("escrowed = %d, want 400", got)
	}
	if ids := l2.LiveOrders(v.Fingerprint()); len(ids) != 1 || ids[0] != live {
		t.Errorf("live orders = %v, want [%d]", ids, live)
	}
	if err := l2.CheckInvariants(); err != nil {
		t.Errorf("invariants after restore: %v", err)
	}

	// Ids keep increasing across the restart.
	next, err := l2.Post(v, true, 10, 5, 0, alice, escrow.OriginDirect)
	if err != nil {
		t.Fatalf("post after restore: %v", err)
	}
	if next <= cancelled {
		t.Errorf("id %d not greater than pre-restart %d", next, cancelled)
	}
}

// TestAuthorityRestore verifies fired triggers stay spent across a restart.
func TestAuthorityRestore(t *testing.T) {
	s := newTestStore(t)
	clock := &util.FakeClock{T: time.UnixMilli(1_000_000)}

	a1 := trigger.NewAuthority(trigger.Config{Clock: clock, Store: s})
	firedID := a1.Arm(1, alice, 3000, trigger.Lower)
	armedID := a1.Arm(2, alice, 2000, trigger.Lower)
	a1.OnPriceUpdate(context.Background(), 2500) // fires only the 3000 trigger

	a2 := trigger.NewAuthority(trigger.Config{Clock: clock, Store: s})
	if err := a2.Restore(); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if tr, ok := a2.Trigger(firedID); !ok || tr.Active {
		t.Errorf("fired trigger re-armed after restore: %+v", tr)
	}
	if tr, ok := a2.Trigger(armedID); !ok || !tr.Active {
		t.Errorf("armed trigger lost after restore: %+v", tr)
	}

	// The restored armed trigger still fires.
	if fired := a2.OnPriceUpdate(context.Background(), 1500); fired != 1 {
		t.Errorf("fired = %d after restore, want 1", fired)
	}
}
