package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func seedSearchData(t *testing.T, store *subscription.MemoryStore) {
	t.Helper()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, planID := range []string{"basic", "basic", "pro", "pro", "pro"} {
		sub := &subscription.Subscription{
			ID:                 uuid.New(),
			UserID:             uuid.New(),
			Status:             subscription.StatusActive,
			Tier:               catalog.TierBasic,
			PlanID:             planID,
			BillingCycle:       catalog.BillingCycleMonthly,
			Amount:             int64(1000 * (i + 1)),
			Currency:           "USD",
			CurrentPeriodStart: now.AddDate(0, 0, i),
			CurrentPeriodEnd:   now.AddDate(0, 1, i),
			NextBillingDate:    now.AddDate(0, 1, i),
			CreatedAt:          now.AddDate(0, 0, i),
			UpdatedAt:          now.AddDate(0, 0, i),
		}
		if planID == "pro" {
			sub.Tier = catalog.TierPro
		}
		if i == 4 {
			sub.Status = subscription.StatusCanceled
		}
		require.NoError(t, store.Save(ctx, sub))
	}
}

func TestServiceSearch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("aggregations cover the full match set", func(t *testing.T) {
		t.Parallel()

		svc, store := newTestService(t, now)
		seedSearchData(t, store)

		result, err := svc.Search(ctx, subscription.Filter{}, subscription.Page{Limit: 2})
		require.NoError(t, err)

		assert.Equal(t, 5, result.Total)
		assert.Len(t, result.Items, 2)
		assert.Equal(t, 4, result.StatusCounts[subscription.StatusActive])
		assert.Equal(t, 1, result.StatusCounts[subscription.StatusCanceled])
		assert.Equal(t, 2, result.TierCounts[catalog.TierBasic])
		assert.Equal(t, 3, result.TierCounts[catalog.TierPro])
		assert.Equal(t, 5, result.CycleCounts[catalog.BillingCycleMonthly])
	})

	t.Run("sort by amount descending", func(t *testing.T) {
		t.Parallel()

		svc, store := newTestService(t, now)
		seedSearchData(t, store)

		result, err := svc.Search(ctx, subscription.Filter{}, subscription.Page{
			Limit:    5,
			SortBy:   subscription.SortByAmount,
			SortDesc: true,
		})
		require.NoError(t, err)

		require.Len(t, result.Items, 5)
		for i := 1; i < len(result.Items); i++ {
			assert.GreaterOrEqual(t, result.Items[i-1].Amount, result.Items[i].Amount)
		}
	})

	t.Run("pagination", func(t *testing.T) {
		t.Parallel()

		svc, store := newTestService(t, now)
		seedSearchData(t, store)

		page1, err := svc.Search(ctx, subscription.Filter{}, subscription.Page{
			Limit: 2, SortBy: subscription.SortByCreatedAt,
		})
		require.NoError(t, err)
		page2, err := svc.Search(ctx, subscription.Filter{}, subscription.Page{
			Offset: 2, Limit: 2, SortBy: subscription.SortByCreatedAt,
		})
		require.NoError(t, err)
		page3, err := svc.Search(ctx, subscription.Filter{}, subscription.Page{
			Offset: 4, Limit: 2, SortBy: subscription.SortByCreatedAt,
		})
		require.NoError(t, err)

		assert.Len(t, page1.Items, 2)
		assert.Len(t, page2.Items, 2)
		assert.Len(t, page3.Items, 1)

		seen := make(map[uuid.UUID]bool)
		for _, page := range []*subscription.SearchResult{page1, page2, page3} {
			for _, sub := range page.Items {
				assert.False(t, seen[sub.ID], "duplicate across pages")
				seen[sub.ID] = true
			}
		}
		assert.Len(t, seen, 5)
	})

	t.Run("offset past the end returns an empty page", func(t *testing.T) {
		t.Parallel()

		svc, store := newTestService(t, now)
		seedSearchData(t, store)

		result, err := svc.Search(ctx, subscription.Filter{}, subscription.Page{Offset: 100})
		require.NoError(t, err)
		assert.Empty(t, result.Items)
		assert.Equal(t, 5, result.Total)
	})

	t.Run("filter narrows results and aggregations", func(t *testing.T) {
		t.Parallel()

		svc, store := newTestService(t, now)
		seedSearchData(t, store)

		result, err := svc.Search(ctx, subscription.Filter{
			Tiers: []catalog.Tier{catalog.TierBasic},
		}, subscription.Page{})
		require.NoError(t, err)

		assert.Equal(t, 2, result.Total)
		assert.Equal(t, 2, result.TierCounts[catalog.TierBasic])
		assert.Zero(t, result.TierCounts[catalog.TierPro])
	})
}
