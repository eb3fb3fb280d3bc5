package subscription

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for testing and local
// development. It honors the same version CAS contract as durable stores.
type MemoryStore struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*Subscription
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{subs: make(map[uuid.UUID]*Subscription)}
}

func (ms *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	sub, ok := ms.subs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneSubscription(sub)
}

func (ms *MemoryStore) Save(ctx context.Context, sub *Subscription) error {
	if sub == nil {
		return fmt.Errorf("subscription cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	existing, ok := ms.subs[sub.ID]
	if !ok {
		if sub.Version != 0 {
			return ErrVersionConflict
		}
	} else if existing.Version != sub.Version {
		return ErrVersionConflict
	}

	stored, err := cloneSubscription(sub)
	if err != nil {
		return err
	}
	stored.Version++
	ms.subs[sub.ID] = stored
	sub.Version = stored.Version
	return nil
}

func (ms *MemoryStore) ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var due []*Subscription
	for _, sub := range ms.subs {
		eligible := ((sub.Status == StatusActive || sub.Status == StatusTrialing) && !sub.NextBillingDate.After(asOf)) ||
			(sub.Status == StatusPastDue && sub.NextRetryAt != nil && !sub.NextRetryAt.After(asOf))
		if !eligible {
			continue
		}
		cp, err := cloneSubscription(sub)
		if err != nil {
			return nil, err
		}
		due = append(due, cp)
	}
	return due, nil
}

func (ms *MemoryStore) List(ctx context.Context, filter Filter) ([]*Subscription, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Subscription
	for _, sub := range ms.subs {
		if !filter.Matches(sub) {
			continue
		}
		cp, err := cloneSubscription(sub)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, nil
}

// cloneSubscription deep-copies through JSON so stored aggregates can never be
// mutated through retained pointers. The aggregate is fully JSON-serializable
// by construction (the postgres store relies on the same property).
func cloneSubscription(sub *Subscription) (*Subscription, error) {
	raw, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to clone subscription: %w", err)
	}
	var cp Subscription
	if err := json.Unmarshal(raw, &cp); err != nil {
		return nil, fmt.Errorf("failed to clone subscription: %w", err)
	}
	return &cp, nil
}

// MemoryTransactionStore is an in-memory TransactionStore implementation.
type MemoryTransactionStore struct {
	mu  sync.RWMutex
	txs map[uuid.UUID]PaymentTransaction
}

// NewMemoryTransactionStore creates an empty in-memory transaction store.
func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{txs: make(map[uuid.UUID]PaymentTransaction)}
}

func (ms *MemoryTransactionStore) Save(ctx context.Context, tx *PaymentTransaction) error {
	if tx == nil {
		return fmt.Errorf("transaction cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	// Transactions are immutable once processed.
	if existing, ok := ms.txs[tx.ID]; ok && !existing.ProcessedAt.IsZero() {
		return fmt.Errorf("payment transaction %s is immutable", tx.ID)
	}
	ms.txs[tx.ID] = *tx
	return nil
}

func (ms *MemoryTransactionStore) Get(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	tx, ok := ms.txs[id]
	if !ok {
		return nil, ErrTransactionNotFound
	}
	return &tx, nil
}

func (ms *MemoryTransactionStore) List(ctx context.Context, filter TransactionFilter) ([]*PaymentTransaction, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*PaymentTransaction
	for _, tx := range ms.txs {
		if filter.Matches(&tx) {
			cp := tx
			out = append(out, &cp)
		}
	}
	return out, nil
}
