package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
)

// Store defines the persistence interface for subscription aggregates.
//
// Save performs a compare-and-set on Version: it persists the aggregate only
// if the stored version still matches, then increments it. A mismatch returns
// ErrVersionConflict. This is the single-writer guarantee: two concurrent
// ticks or callers can never both commit against the same snapshot.
type Store interface {
	// Get retrieves a subscription by ID. Returns ErrNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// Save creates or updates a subscription with optimistic concurrency.
	// New aggregates must have Version 0; on success Version is incremented.
	Save(ctx context.Context, sub *Subscription) error

	// ListDue returns subscriptions eligible for renewal processing at asOf:
	// active or trialing with NextBillingDate <= asOf (trial conversion bills
	// at trial end), or past_due with NextRetryAt <= asOf (failed-charge retry).
	ListDue(ctx context.Context, asOf time.Time) ([]*Subscription, error)

	// List returns subscriptions matching the filter, unsorted and unpaged.
	List(ctx context.Context, filter Filter) ([]*Subscription, error)
}

// TransactionStore persists payment transactions.
type TransactionStore interface {
	Save(ctx context.Context, tx *PaymentTransaction) error
	Get(ctx context.Context, id uuid.UUID) (*PaymentTransaction, error)
	List(ctx context.Context, filter TransactionFilter) ([]*PaymentTransaction, error)
}

// Filter narrows subscription queries. Zero values mean "no constraint".
type Filter struct {
	Statuses          []Status
	Tiers             []catalog.Tier
	Cycles            []catalog.BillingCycle
	UserID            *uuid.UUID
	CreatedFrom       *time.Time
	CreatedTo         *time.Time
	Trialing          *bool
	CancelAtPeriodEnd *bool
}

// Matches reports whether the subscription satisfies every set constraint.
func (f Filter) Matches(s *Subscription) bool {
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, s.Status) {
		return false
	}
	if len(f.Tiers) > 0 && !containsTier(f.Tiers, s.Tier) {
		return false
	}
	if len(f.Cycles) > 0 && !containsCycle(f.Cycles, s.BillingCycle) {
		return false
	}
	if f.UserID != nil && s.UserID != *f.UserID {
		return false
	}
	if f.CreatedFrom != nil && s.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && s.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	if f.Trialing != nil && s.IsTrialing() != *f.Trialing {
		return false
	}
	if f.CancelAtPeriodEnd != nil && s.CancelAtPeriodEnd != *f.CancelAtPeriodEnd {
		return false
	}
	return true
}

func containsStatus(list []Status, v Status) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func containsTier(list []catalog.Tier, v catalog.Tier) bool {
	for _, t := range list {
		if t == v {
			return true
		}
	}
	return false
}

func containsCycle(list []catalog.BillingCycle, v catalog.BillingCycle) bool {
	for _, c := range list {
		if c == v {
			return true
		}
	}
	return false
}

// TransactionFilter narrows payment transaction queries.
type TransactionFilter struct {
	SubscriptionID *uuid.UUID
	Types          []TransactionType
	Statuses       []TransactionStatus
	From           *time.Time
	To             *time.Time
}

// Matches reports whether the transaction satisfies every set constraint.
func (f TransactionFilter) Matches(tx *PaymentTransaction) bool {
	if f.SubscriptionID != nil && tx.SubscriptionID != *f.SubscriptionID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if tx.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if tx.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.From != nil && tx.CreatedAt.Before(*f.From) {
		return false
	}
	if f.To != nil && tx.CreatedAt.After(*f.To) {
		return false
	}
	return true
}
