package subscription

import (
	"context"
	"sort"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
)

// Page controls search pagination and ordering.
type Page struct {
	Offset   int
	Limit    int // 0 means DefaultPageSize
	SortBy   SortField
	SortDesc bool
}

// SortField selects the search sort key.
type SortField string

const (
	SortByCreatedAt       SortField = "created_at"
	SortByNextBillingDate SortField = "next_billing_date"
	SortByAmount          SortField = "amount"
)

// DefaultPageSize bounds unpaged search calls.
const DefaultPageSize = 50

// SearchResult is one page of matches plus whole-result-set aggregations.
type SearchResult struct {
	Items        []*Subscription
	Total        int
	StatusCounts map[Status]int
	TierCounts   map[catalog.Tier]int
	CycleCounts  map[catalog.BillingCycle]int
}

// Search returns a paginated, sorted view over subscriptions matching the
// filter, with distribution aggregations computed over the full match set
// rather than the returned page.
func (s *Service) Search(ctx context.Context, filter Filter, page Page) (*SearchResult, error) {
	matches, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Total:        len(matches),
		StatusCounts: make(map[Status]int),
		TierCounts:   make(map[catalog.Tier]int),
		CycleCounts:  make(map[catalog.BillingCycle]int),
	}
	for _, sub := range matches {
		result.StatusCounts[sub.Status]++
		result.TierCounts[sub.Tier]++
		result.CycleCounts[sub.BillingCycle]++
	}

	sortSubscriptions(matches, page.SortBy, page.SortDesc)

	limit := page.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	offset := page.Offset
	if offset < 0 {
		offset = 0
	}
	if offset >= len(matches) {
		result.Items = []*Subscription{}
		return result, nil
	}
	end := min(offset+limit, len(matches))
	result.Items = matches[offset:end]
	return result, nil
}

func sortSubscriptions(subs []*Subscription, field SortField, desc bool) {
	less := func(a, b *Subscription) bool {
		switch field {
		case SortByNextBillingDate:
			return a.NextBillingDate.Before(b.NextBillingDate)
		case SortByAmount:
			return a.Amount < b.Amount
		default:
			return a.CreatedAt.Before(b.CreatedAt)
		}
	}
	sort.SliceStable(subs, func(i, j int) bool {
		if desc {
			return less(subs[j], subs[i])
		}
		return less(subs[i], subs[j])
	})
}
