package storage

import (
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/ethereum/go-ethereum/common"

	"github.com/daehyun-ko/crossfill/pkg/escrow"
	"github.com/daehyun-ko/crossfill/pkg/trigger"
)

// Store persists order records, trigger records and account balances to
// Pebble so the venue restarts without losing custody state. Records are
// written on every mutation and never deleted, matching the "marked inactive,
// never removed" lifecycle of the ledger.
//
// Thread-safe: all writes go through the owning component's mutex.
type Store struct {
	db *pebble.DB
}

// NewStore opens a Pebble database at the given path.
func NewStore(dbPath string) (*Store, error) {
	db, err := pebble.Open(dbPath, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble db at %s: %w", dbPath, err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveOrder persists an order record.
func (s *Store) SaveOrder(o *escrow.Order) error {
	data, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.db.Set(orderKey(o.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// LoadOrders loads every persisted order record.
func (s *Store) LoadOrders() ([]*escrow.Order, error) {
	prefix := []byte(prefixOrder)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	defer iter.Close()

	var orders []*escrow.Order
	for iter.First(); iter.Valid(); iter.Next() {
		var o escrow.Order
		if err := json.Unmarshal(iter.Value(), &o); err != nil {
			continue // Skip invalid entries
		}
		orders = append(orders, &o)
	}
	return orders, nil
}

// SaveTrigger persists a trigger record.
func (s *Store) SaveTrigger(t *trigger.Trigger) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger: %w", err)
	}
	if err := s.db.Set(triggerKey(t.ID), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save trigger: %w", err)
	}
	return nil
}

// LoadTriggers loads every persisted trigger record.
func (s *Store) LoadTriggers() ([]*trigger.Trigger, error) {
	prefix := []byte(prefixTrigger)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate triggers: %w", err)
	}
	defer iter.Close()

	var triggers []*trigger.Trigger
	for iter.First(); iter.Valid(); iter.Next() {
		var t trigger.Trigger
		if err := json.Unmarshal(iter.Value(), &t); err != nil {
			continue
		}
		triggers = append(triggers, &t)
	}
	return triggers, nil
}

// SaveBalance persists one account's free balance of one asset.
func (s *Store) SaveBalance(account, asset common.Address, amount uint64) error {
	data, err := json.Marshal(amount)
	if err != nil {
		return fmt.Errorf("failed to marshal balance: %w", err)
	}
	if err := s.db.Set(balanceKey(account, asset), data, pebble.Sync); err != nil {
		return fmt.Errorf("failed to save balance: %w", err)
	}
	return nil
}

// LoadBalances rebuilds the account -> asset -> free balance map.
func (s *Store) LoadBalances() (map[common.Address]map[common.Address]uint64, error) {
	prefix := []byte(prefixBalance)
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: keyUpperBound(prefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to iterate balances: %w", err)
	}
	defer iter.Close()

	balances := make(map[common.Address]map[common.Address]uint64)
	for iter.First(); iter.Valid(); iter.Next() {
		account, asset, ok := splitBalanceKey(iter.Key())
		if !ok {
			continue
		}
		var amount uint64
		if err := json.Unmarshal(iter.Value(), &amount); err != nil {
			continue
		}
		m, exists := balances[account]
		if !exists {
			m = make(map[common.Address]uint64)
			balances[account] = m
		}
		m[asset] = amount
	}
	return balances, nil
}
