package trigger

import (
	"container/heap"
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/daehyun-ko/crossfill/pkg/crypto"
	"github.com/daehyun-ko/crossfill/pkg/relay"
	"github.com/daehyun-ko/crossfill/pkg/util"
)

// Store is the persistence surface the authority needs; nil disables it.
type Store interface {
	SaveTrigger(t *Trigger) error
	LoadTriggers() ([]*Trigger, error)
}

// Authority watches the normalized price feed and emits at most one
// authorization per armed trigger. It lives on its own execution domain:
// everything it tells the venue travels through the relay channel, which may
// duplicate or reorder, so every trigger flips to fired BEFORE its message
// is published, and a trigger that has fired can never emit again, whatever
// the channel does with the first copy.
type Authority struct {
	mu sync.Mutex

	clock   util.Clock
	log     *zap.SugaredLogger
	store   Store
	channel relay.Channel
	signer  *crypto.Signer

	targetDomain   uint64
	targetContract common.Address
	gasBudget      uint64
	beneficiary    common.Address

	nextID   uint64
	triggers map[uint64]*Trigger
	lower    lowerLadder
	upper    upperLadder

	// onFire, when set, observes every fired trigger.
	onFire func(triggerID, orderID, price uint64)
}

// Config wires the authority's relay identity and cross-domain addressing.
type Config struct {
	Clock          util.Clock
	Log            *zap.SugaredLogger
	Store          Store
	Channel        relay.Channel
	Signer         *crypto.Signer
	TargetDomain   uint64
	TargetContract common.Address
	GasBudget      uint64
	Beneficiary    common.Address
}

// NewAuthority creates a trigger authority.
func NewAuthority(cfg Config) *Authority {
	clock := cfg.Clock
	if clock == nil {
		clock = util.RealClock{}
	}
	log := cfg.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	a := &Authority{
		clock:          clock,
		log:            log,
		store:          cfg.Store,
		channel:        cfg.Channel,
		signer:         cfg.Signer,
		targetDomain:   cfg.TargetDomain,
		targetContract: cfg.TargetContract,
		gasBudget:      cfg.GasBudget,
		beneficiary:    cfg.Beneficiary,
		triggers:       make(map[uint64]*Trigger),
	}
	heap.Init(&a.lower)
	heap.Init(&a.upper)
	return a
}

// SetFireHook registers an observer for fired triggers. Call before serving.
func (a *Authority) SetFireHook(fn func(triggerID, orderID, price uint64)) {
	a.onFire = fn
}

// Restore reloads trigger records and re-ladders the still-armed ones.
func (a *Authority) Restore() error {
	if a.store == nil {
		return nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	triggers, err := a.store.LoadTriggers()
	if err != nil {
		return err
	}
	for _, t := range triggers {
		a.triggers[t.ID] = t
		if t.ID >= a.nextID {
			a.nextID = t.ID + 1
		}
		if t.Active {
			a.ladderAdd(t)
		}
	}
	a.log.Infow("authority_restored", "triggers", len(triggers))
	return nil
}

// Arm appends a new armed trigger for an order. No uniqueness check: multiple
// triggers per order are permitted and fire independently.
func (a *Authority) Arm(orderID uint64, maker common.Address, limitPrice uint64, dir Direction) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := a.nextID
	a.nextID++

	t := &Trigger{
		ID:         id,
		OrderID:    orderID,
		Maker:      maker,
		Direction:  dir,
		LimitPrice: limitPrice,
		Active:     true,
		CreatedAt:  a.clock.Now().UnixMilli(),
	}
	a.triggers[id] = t
	a.ladderAdd(t)
	a.persist(t)

	a.log.Infow("trigger_armed",
		"trigger_id", id,
		"order_id", orderID,
		"maker", maker.Hex(),
		"direction", dir.String(),
		"limit_price", limitPrice)
	return id
}

// OnPriceUpdate evaluates the armed set against a normalized price and fires
// every trigger whose condition holds. Cost is proportional to the number of
// triggers that fire, not to the number armed: the ladders expose exactly the
// satisfiable prefix. Returns the number fired.
func (a *Authority) OnPriceUpdate(ctx context.Context, price uint64) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	fired := 0
	for {
		top, ok := a.lower.Peek()
		if !ok || price >= top.limit {
			break
		}
		heap.Pop(&a.lower)
		if a.fire(ctx, top.id, price) {
			fired++
		}
	}
	for {
		top, ok := a.upper.Peek()
		if !ok || price <= top.limit {
			break
		}
		heap.Pop(&a.upper)
		if a.fire(ctx, top.id, price) {
			fired++
		}
	}
	return fired
}

// Trigger returns a copy of a trigger record for read-only use.
func (a *Authority) Trigger(id uint64) (Trigger, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.triggers[id]
	if !ok {
		return Trigger{}, false
	}
	return *t, true
}

// Triggers returns copies of all trigger records (armed and fired).
func (a *Authority) Triggers() []Trigger {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]Trigger, 0, len(a.triggers))
	for _, t := range a.triggers {
		out = append(out, *t)
	}
	return out
}

// fire flips the trigger and emits its authorization. The flip happens first:
// a publish failure leaves the trigger fired (spent), never re-armable. The
// relay infrastructure owns delivery; this side never retries.
func (a *Authority) fire(ctx context.Context, triggerID uint64, price uint64) bool {
	t, ok := a.triggers[triggerID]
	if !ok || !t.Active {
		return false
	}

	t.Active = false
	t.FiredAt = a.clock.Now().UnixMilli()
	a.persist(t)

	m := relay.Message{
		TargetDomain:   a.targetDomain,
		TargetContract: a.targetContract,
		GasBudget:      a.gasBudget,
		Payload: relay.FillAuthorization{
			OrderID:     t.OrderID,
			Beneficiary: a.beneficiary,
		},
	}
	if a.signer != nil {
		if err := m.Sign(a.signer); err != nil {
			a.log.Errorw("authorization_sign_failed", "trigger_id", triggerID, "err", err)
			return true // fired regardless; the trigger is spent
		}
	}
	if a.channel != nil {
		if err := a.channel.Publish(ctx, m); err != nil {
			a.log.Warnw("authorization_publish_failed", "trigger_id", triggerID, "err", err)
		}
	}

	a.log.Infow("trigger_fired",
		"trigger_id", triggerID,
		"order_id", t.OrderID,
		"price", price,
		"limit_price", t.LimitPrice,
		"direction", t.Direction.String())
	if a.onFire != nil {
		a.onFire(triggerID, t.OrderID, price)
	}
	return true
}

func (a *Authority) ladderAdd(t *Trigger) {
	entry := ladderEntry{limit: t.LimitPrice, id: t.ID}
	if t.Direction == Lower {
		heap.Push(&a.lower, entry)
	} else {
		heap.Push(&a.upper, entry)
	}
}

func (a *Authority) persist(t *Trigger) {
	if a.store == nil {
		return
	}
	if err := a.store.SaveTrigger(t); err != nil {
		a.log.Warnw("trigger_persist_failed", "trigger_id", t.ID, "err", err)
	}
}
