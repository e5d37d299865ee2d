package match

import (
	"errors"
	"math"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/daehyun-ko/crossfill/pkg/escrow"
	"github.com/daehyun-ko/crossfill/pkg/relay"
	"github.com/daehyun-ko/crossfill/pkg/util"
	"github.com/daehyun-ko/crossfill/pkg/venue"
)

// ScanCap bounds how many index entries a single swap may examine. A swap is
// on the caller's latency path; whatever the book looks like, one match pass
// touches at most this many records.
const ScanCap = 50

// Outcome reports what a match pass did. Zero value means the swap passed
// through unmatched.
type Outcome struct {
	Filled  bool
	OrderID uint64
	Receipt escrow.FillReceipt
	Scanned int
}

// Engine runs the opportunistic match pass on incoming swaps and executes
// relayed trigger fills. It owns no funds: all settlement goes through the
// ledger, whose single mutex serializes every money-moving call.
type Engine struct {
	ledger *escrow.Ledger
	clock  util.Clock
	log    *zap.SugaredLogger

	// coordinator is the only caller allowed on the swap path.
	coordinator common.Address

	relayMu    sync.RWMutex
	admin      AdminPolicy
	relayAddr  common.Address
	relayBound bool

	// onFill, when set, observes every settled fill (both paths).
	onFill func(escrow.FillReceipt)
}

// NewEngine creates a matching engine bound to a swap coordinator identity.
// admin may be nil, in which case the relay identity can never be bound.
func NewEngine(ledger *escrow.Ledger, clock util.Clock, log *zap.SugaredLogger, coordinator common.Address, admin AdminPolicy) *Engine {
	if clock == nil {
		clock = util.RealClock{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if admin == nil {
		admin = DenyAll{}
	}
	return &Engine{
		ledger:      ledger,
		clock:       clock,
		log:         log,
		coordinator: coordinator,
		admin:       admin,
	}
}

// SetFillHook registers an observer for settled fills. Call before serving.
func (e *Engine) SetFillHook(fn func(escrow.FillReceipt)) {
	e.onFill = fn
}

// BindRelay records the relay identity whose authorizations TriggerOrder
// accepts. Gated by the admin policy; rebinding replaces the previous identity.
func (e *Engine) BindRelay(caller, relayAddr common.Address) error {
	if err := e.admin.Authorize(caller); err != nil {
		return err
	}

	e.relayMu.Lock()
	e.relayAddr = relayAddr
	e.relayBound = true
	e.relayMu.Unlock()

	e.log.Infow("relay_bound", "relay", relayAddr.Hex(), "by", caller.Hex())
	return nil
}

// Relay returns the bound relay identity, if any.
func (e *Engine) Relay() (common.Address, bool) {
	e.relayMu.RLock()
	defer e.relayMu.RUnlock()
	return e.relayAddr, e.relayBound
}

// MatchIncomingSwap runs the match pass for a swap arriving at a venue.
//
// amountSpecified follows the venue's sign convention: negative is exact
// input (the taker offers -amountSpecified of the asset it sells), positive
// or zero is exact output. Exact-output swaps pass through unmatched; the
// pass cannot know the input until the venue prices the swap.
//
// The scan walks the venue's live index in order, at most ScanCap entries,
// and fills the FIRST order the offer satisfies. Price is the order's own
// MinAmountOut: any surplus the taker offered beyond it stays with the
// taker's swap, it is not paid to the maker. Expired orders encountered
// mid-scan are evicted (refunded and de-indexed) and still consume scan
// budget this one time.
func (e *Engine) MatchIncomingSwap(v *venue.Venue, amountSpecified int64, takerWantsAssetZero bool, taker, caller common.Address) (Outcome, error) {
	if caller != e.coordinator {
		return Outcome{}, ErrUnauthorizedCaller
	}
	// -MinInt64 does not exist in int64.
	if amountSpecified == math.MinInt64 {
		return Outcome{}, ErrAmountOverflow
	}
	if amountSpecified >= 0 {
		return Outcome{}, nil
	}
	offered := uint64(-amountSpecified)

	venueID := v.Fingerprint()
	out := Outcome{}
	for _, id := range e.ledger.LiveOrders(venueID) {
		if out.Scanned == ScanCap {
			break
		}
		out.Scanned++

		o, ok := e.ledger.Order(id)
		if !ok || !o.Active {
			continue
		}
		if o.Expired(e.clock.Now().UnixMilli()) {
			e.ledger.EvictExpired(id)
			continue
		}
		if o.VenueID != venueID {
			// index corruption; abort rather than settle across venues
			e.log.Errorw("index_venue_mismatch", "order_id", id, "venue", venueID.Hex())
			return out, escrow.ErrVenueMismatch
		}
		// The taker sells what the maker wants to buy when both reference the
		// same side: a maker selling asset0 serves a taker who wants asset0.
		if o.SellsAssetZero != takerWantsAssetZero {
			continue
		}
		if offered < o.MinAmountOut {
			continue
		}

		receipt, err := e.ledger.Fill(id, venueID, taker)
		if err != nil {
			if errors.Is(err, escrow.ErrNotActive) {
				continue // raced a cancel between snapshot and fill
			}
			return out, err
		}

		out.Filled = true
		out.OrderID = id
		out.Receipt = receipt
		e.log.Infow("swap_matched",
			"order_id", id,
			"taker", taker.Hex(),
			"offered", offered,
			"taken", receipt.AmountToMaker,
			"scanned", out.Scanned)
		if e.onFill != nil {
			e.onFill(receipt)
		}
		return out, nil
	}
	return out, nil
}

// TriggerOrder executes a relayed fill authorization: the order settles
// against the pre-designated beneficiary at its own price. Only the bound
// relay identity may call. Stale authorizations (the order cancelled,
// already filled, or a duplicate delivery of the same trigger) fail with
// ErrNotActive and move nothing.
func (e *Engine) TriggerOrder(orderID uint64, beneficiary, caller common.Address) (escrow.FillReceipt, error) {
	e.relayMu.RLock()
	bound, addr := e.relayBound, e.relayAddr
	e.relayMu.RUnlock()
	if !bound {
		return escrow.FillReceipt{}, ErrRelayNotBound
	}
	if caller != addr {
		return escrow.FillReceipt{}, ErrUnauthorizedCaller
	}

	o, ok := e.ledger.Order(orderID)
	if !ok {
		return escrow.FillReceipt{}, escrow.ErrNotFound
	}
	if o.Active && o.Expired(e.clock.Now().UnixMilli()) {
		e.ledger.EvictExpired(orderID)
		return escrow.FillReceipt{}, escrow.ErrNotActive
	}

	receipt, err := e.ledger.Fill(orderID, o.VenueID, beneficiary)
	if err != nil {
		return escrow.FillReceipt{}, err
	}

	e.log.Infow("trigger_filled", "order_id", orderID, "beneficiary", beneficiary.Hex())
	if e.onFill != nil {
		e.onFill(receipt)
	}
	return receipt, nil
}

// ConsumeAuthorization verifies a relayed message and executes it. The caller
// identity on the fill path is the recovered signer, so a message signed by
// anything other than the bound relay fails the same way a wrong caller does.
func (e *Engine) ConsumeAuthorization(m relay.Message) (escrow.FillReceipt, error) {
	signer, err := m.SignerAddress()
	if err != nil {
		return escrow.FillReceipt{}, err
	}
	return e.TriggerOrder(m.Payload.OrderID, m.Payload.Beneficiary, signer)
}
