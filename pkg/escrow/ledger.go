package escrow

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/daehyun-ko/crossfill/pkg/util"
	"github.com/daehyun-ko/crossfill/pkg/venue"
)

// Store is the persistence surface the ledger needs. Implemented by
// storage.Store; nil disables persistence (tests, ephemeral nodes).
type Store interface {
	SaveOrder(o *Order) error
	LoadOrders() ([]*Order, error)
	SaveBalance(account, asset common.Address, amount uint64) error
	LoadBalances() (map[common.Address]map[common.Address]uint64, error)
}

// FillReceipt reports the two settled legs of a fill.
type FillReceipt struct {
	OrderID        uint64
	Maker          common.Address
	Counterparty   common.Address
	AssetToMaker   common.Address // order's buy asset
	AmountToMaker  uint64         // exactly MinAmountOut
	AssetToTaker   common.Address // order's sell asset, from escrow
	AmountToTaker  uint64         // the full AmountIn the maker locked
	SellsAssetZero bool
}

// Ledger custodies locked maker funds and owns the order records and the
// per-venue index of live orders.
//
// Every money-moving entry point (Deposit, Withdraw, Post, Cancel, Fill,
// EvictExpired) runs under one mutex: no call may mutate escrow while another
// is in flight. Fill paths flip Active false before moving any funds, so a
// redelivered trigger or a racing cancel settles at most once.
type Ledger struct {
	mu sync.Mutex

	clock util.Clock
	store Store
	log   *zap.SugaredLogger

	nextID uint64
	orders map[uint64]*Order
	index  *VenueIndex

	balances map[common.Address]map[common.Address]uint64 // account -> asset -> free
	escrowed map[common.Address]uint64                    // asset -> total locked
}

// NewLedger creates a ledger. store may be nil for memory-only operation.
func NewLedger(clock util.Clock, store Store, log *zap.SugaredLogger) *Ledger {
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Ledger{
		clock:    clock,
		store:    store,
		log:      log,
		orders:   make(map[uint64]*Order),
		index:    NewVenueIndex(),
		balances: make(map[common.Address]map[common.Address]uint64),
		escrowed: make(map[common.Address]uint64),
	}
}

// Restore reloads orders and balances from the store.
// Active orders are re-indexed; escrow totals are rebuilt from the records.
func (l *Ledger) Restore() error {
	if l.store == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	orders, err := l.store.LoadOrders()
	if err != nil {
		return fmt.Errorf("load orders: %w", err)
	}
	balances, err := l.store.LoadBalances()
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}

	for _, o := range orders {
		l.orders[o.ID] = o
		if o.ID >= l.nextID {
			l.nextID = o.ID + 1
		}
		if o.Active {
			l.index.Append(o.VenueID, o.ID)
			l.escrowed[o.SellAsset] += o.AmountIn
		}
	}
	if balances != nil {
		l.balances = balances
	}

	l.log.Infow("ledger_restored", "orders", len(orders), "next_id", l.nextID)
	return nil
}

// Deposit credits an account's free balance of an asset.
func (l *Ledger) Deposit(account, asset common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.credit(account, asset, amount)
	l.persistBalance(account, asset)
	return nil
}

// Withdraw debits an account's free balance of an asset.
func (l *Ledger) Withdraw(account, asset common.Address, amount uint64) error {
	if amount == 0 {
		return ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.debit(account, asset, amount); err != nil {
		return err
	}
	l.persistBalance(account, asset)
	return nil
}

// Balance returns an account's free balance of an asset.
func (l *Ledger) Balance(account, asset common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account][asset]
}

// EscrowedTotal returns the total locked amount of an asset across all
// active orders.
func (l *Ledger) EscrowedTotal(asset common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.escrowed[asset]
}

// Post locks amountIn of the selling asset in escrow and records a new order.
// Fails atomically: on any error no order exists and no funds moved.
// Returns a strictly increasing order id.
func (l *Ledger) Post(v *venue.Venue, sellsAssetZero bool, amountIn, minAmountOut uint64, duration time.Duration, maker common.Address, origin OriginKind) (uint64, error) {
	if amountIn == 0 {
		return 0, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	sellAsset := v.SellingAsset(sellsAssetZero)
	if err := l.debit(maker, sellAsset, amountIn); err != nil {
		return 0, err
	}

	now := l.clock.Now().UnixMilli()
	var expiry int64
	if duration > 0 {
		expiry = now + duration.Milliseconds()
	}

	id := l.nextID
	l.nextID++

	o := &Order{
		ID:             id,
		Maker:          maker,
		VenueID:        v.Fingerprint(),
		SellsAssetZero: sellsAssetZero,
		SellAsset:      sellAsset,
		BuyAsset:       v.BuyingAsset(sellsAssetZero),
		AmountIn:       amountIn,
		MinAmountOut:   minAmountOut,
		Expiry:         expiry,
		Active:         true,
		Origin:         origin,
		CreatedAt:      now,
	}

	l.orders[id] = o
	l.index.Append(o.VenueID, id)
	l.escrowed[sellAsset] += amountIn

	l.persistOrder(o)
	l.persistBalance(maker, sellAsset)

	l.log.Infow("order_posted",
		"order_id", id,
		"maker", maker.Hex(),
		"venue", o.VenueID.Hex(),
		"sells_asset_zero", sellsAssetZero,
		"amount_in", amountIn,
		"min_amount_out", minAmountOut,
		"origin", origin.String())
	return id, nil
}

// Cancel deactivates an order and refunds the locked amount to its maker.
// Only the maker may cancel, and only against the venue the order was posted to.
func (l *Ledger) Cancel(orderID uint64, venueID venue.ID, caller common.Address) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return ErrNotFound
	}
	if o.Maker != caller {
		return ErrUnauthorized
	}
	if !o.Active {
		return ErrNotActive
	}
	if o.VenueID != venueID {
		return ErrVenueMismatch
	}

	l.deactivate(o)
	l.credit(o.Maker, o.SellAsset, o.AmountIn)

	l.persistOrder(o)
	l.persistBalance(o.Maker, o.SellAsset)

	l.log.Infow("order_cancelled", "order_id", orderID, "maker", caller.Hex())
	return nil
}

// Fill settles both legs of a match: minAmountOut of the counter asset moves
// from the counterparty to the maker, and the full escrowed amountIn moves to
// the counterparty. The counterparty is the live swap's taker on the market
// path and the pre-designated beneficiary on the trigger path.
//
// The order's Active flag flips before any funds move; a fill that races a
// cancel or a duplicate trigger delivery fails with ErrNotActive and leaves
// every balance untouched.
func (l *Ledger) Fill(orderID uint64, venueID venue.ID, counterparty common.Address) (FillReceipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return FillReceipt{}, ErrNotFound
	}
	if !o.Active {
		return FillReceipt{}, ErrNotActive
	}
	if o.VenueID != venueID {
		return FillReceipt{}, ErrVenueMismatch
	}
	if l.balances[counterparty][o.BuyAsset] < o.MinAmountOut {
		return FillReceipt{}, ErrInsufficientBalance
	}

	// Activation flip first; fund movement cannot fail past this point.
	l.deactivate(o)

	l.debitUnchecked(counterparty, o.BuyAsset, o.MinAmountOut)
	l.credit(o.Maker, o.BuyAsset, o.MinAmountOut)
	l.credit(counterparty, o.SellAsset, o.AmountIn)

	l.persistOrder(o)
	l.persistBalance(counterparty, o.BuyAsset)
	l.persistBalance(counterparty, o.SellAsset)
	l.persistBalance(o.Maker, o.BuyAsset)

	l.log.Infow("order_filled",
		"order_id", orderID,
		"maker", o.Maker.Hex(),
		"counterparty", counterparty.Hex(),
		"amount_to_maker", o.MinAmountOut,
		"amount_to_counterparty", o.AmountIn)

	return FillReceipt{
		OrderID:        orderID,
		Maker:          o.Maker,
		Counterparty:   counterparty,
		AssetToMaker:   o.BuyAsset,
		AmountToMaker:  o.MinAmountOut,
		AssetToTaker:   o.SellAsset,
		AmountToTaker:  o.AmountIn,
		SellsAssetZero: o.SellsAssetZero,
	}, nil
}

// EvictExpired retires an expired-but-active order the first time a scan
// touches it: escrow refunds to the maker and the id leaves the index, so
// stale entries stop consuming scan budget. Returns true if the order was
// evicted by this call.
func (l *Ledger) EvictExpired(orderID uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok || !o.Active || !o.Expired(l.clock.Now().UnixMilli()) {
		return false
	}

	l.deactivate(o)
	l.credit(o.Maker, o.SellAsset, o.AmountIn)

	l.persistOrder(o)
	l.persistBalance(o.Maker, o.SellAsset)

	l.log.Infow("order_expired_evicted", "order_id", orderID, "maker", o.Maker.Hex())
	return true
}

// Order returns a copy of an order record for read-only use.
func (l *Ledger) Order(orderID uint64) (Order, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	o, ok := l.orders[orderID]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// LiveOrders returns a snapshot of the venue's live order ids in index order.
func (l *Ledger) LiveOrders(venueID venue.ID) []uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.index.Live(venueID)
}

// Orders returns copies of all order records for an account (live and settled).
func (l *Ledger) Orders(maker common.Address) []Order {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []Order
	for _, o := range l.orders {
		if o.Maker == maker {
			out = append(out, *o)
		}
	}
	return out
}

// CheckInvariants verifies that per-asset escrow totals equal the sum of
// AmountIn over active orders, and that an order is indexed iff it is active.
func (l *Ledger) CheckInvariants() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	locked := make(map[common.Address]uint64)
	for _, o := range l.orders {
		indexed := l.index.Contains(o.VenueID, o.ID)
		if o.Active && !indexed {
			return fmt.Errorf("active order %d missing from index", o.ID)
		}
		if !o.Active && indexed {
			return fmt.Errorf("inactive order %d still indexed", o.ID)
		}
		if o.Active {
			locked[o.SellAsset] += o.AmountIn
		}
	}

	for asset, want := range locked {
		if got := l.escrowed[asset]; got != want {
			return fmt.Errorf("escrow total for %s = %d, active orders sum to %d", asset.Hex(), got, want)
		}
	}
	for asset, got := range l.escrowed {
		if got != locked[asset] {
			return fmt.Errorf("escrow total for %s = %d, active orders sum to %d", asset.Hex(), got, locked[asset])
		}
	}
	return nil
}

// deactivate flips Active false, removes the id from the index and releases
// the escrow total accounting. Callers hold the mutex and move funds after.
func (l *Ledger) deactivate(o *Order) {
	o.Active = false
	l.index.Remove(o.VenueID, o.ID)
	l.escrowed[o.SellAsset] -= o.AmountIn
}

func (l *Ledger) credit(account, asset common.Address, amount uint64) {
	m, ok := l.balances[account]
	if !ok {
		m = make(map[common.Address]uint64)
		l.balances[account] = m
	}
	m[asset] += amount
}

func (l *Ledger) debit(account, asset common.Address, amount uint64) error {
	if l.balances[account][asset] < amount {
		return ErrInsufficientBalance
	}
	l.balances[account][asset] -= amount
	return nil
}

// debitUnchecked assumes the caller already validated sufficiency.
func (l *Ledger) debitUnchecked(account, asset common.Address, amount uint64) {
	l.balances[account][asset] -= amount
}

func (l *Ledger) persistOrder(o *Order) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveOrder(o); err != nil {
		l.log.Warnw("order_persist_failed", "order_id", o.ID, "err", err)
	}
}

func (l *Ledger) persistBalance(account, asset common.Address) {
	if l.store == nil {
		return
	}
	if err := l.store.SaveBalance(account, asset, l.balances[account][asset]); err != nil {
		l.log.Warnw("balance_persist_failed", "account", account.Hex(), "err", err)
	}
}
