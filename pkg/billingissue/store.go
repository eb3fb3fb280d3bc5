package billingissue

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Store persists billing issue records.
type Store interface {
	// Get retrieves an issue by ID. Returns ErrIssueNotFound if absent.
	Get(ctx context.Context, id uuid.UUID) (*Issue, error)

	// Save creates or updates an issue.
	Save(ctx context.Context, issue *Issue) error

	// FindOpen returns the open issue for a (subscription, type) pair, or
	// ErrIssueNotFound. This query is the detector's deduplication primitive.
	FindOpen(ctx context.Context, subscriptionID uuid.UUID, issueType Type) (*Issue, error)

	// List returns issues matching the filter.
	List(ctx context.Context, filter Filter) ([]*Issue, error)
}

// Filter narrows issue queries. Zero values mean "no constraint".
type Filter struct {
	SubscriptionID *uuid.UUID
	Types          []Type
	Statuses       []Status
}

// Matches reports whether the issue satisfies every set constraint.
func (f Filter) Matches(issue *Issue) bool {
	if f.SubscriptionID != nil && issue.SubscriptionID != *f.SubscriptionID {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, t := range f.Types {
			if issue.Type == t {
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
			if issue.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// MemoryStore is an in-memory Store implementation for testing and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	issues map[uuid.UUID]*Issue
}

// NewMemoryStore creates an empty in-memory issue store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{issues: make(map[uuid.UUID]*Issue)}
}

func (ms *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Issue, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	issue, ok := ms.issues[id]
	if !ok {
		return nil, ErrIssueNotFound
	}
	return cloneIssue(issue), nil
}

func (ms *MemoryStore) Save(ctx context.Context, issue *Issue) error {
	if issue == nil {
		return fmt.Errorf("issue cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.issues[issue.ID] = cloneIssue(issue)
	return nil
}

func (ms *MemoryStore) FindOpen(ctx context.Context, subscriptionID uuid.UUID, issueType Type) (*Issue, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	for _, issue := range ms.issues {
		if issue.SubscriptionID == subscriptionID && issue.Type == issueType && issue.Open() {
			return cloneIssue(issue), nil
		}
	}
	return nil, ErrIssueNotFound
}

func (ms *MemoryStore) List(ctx context.Context, filter Filter) ([]*Issue, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var out []*Issue
	for _, issue := range ms.issues {
		if filter.Matches(issue) {
			out = append(out, cloneIssue(issue))
		}
	}
	return out, nil
}

func cloneIssue(issue *Issue) *Issue {
	cp := *issue
	cp.ResolutionSteps = append([]ResolutionStep(nil), issue.ResolutionSteps...)
	if issue.ResolvedAt != nil {
		at := *issue.ResolvedAt
		cp.ResolvedAt = &at
	}
	return &cp
}
