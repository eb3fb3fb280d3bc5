package catalog_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
)

func testPlans() []catalog.Plan {
	return []catalog.Plan{
		{
			ID:   "free",
			Name: "Free",
			Tier: catalog.TierFree,
			Pricing: []catalog.Pricing{
				{Cycle: catalog.BillingCycleMonthly, Price: catalog.Money{Amount: 0, Currency: "USD"}},
			},
			Limits: map[catalog.Resource]int64{catalog.ResourceProjects: 1},
			Public: true,
		},
		{
			ID:   "pro",
			Name: "Pro",
			Tier: catalog.TierPro,
			Pricing: []catalog.Pricing{
				{Cycle: catalog.BillingCycleMonthly, Price: catalog.Money{Amount: 4900, Currency: "USD"}},
				{Cycle: catalog.BillingCycleYearly, Price: catalog.Money{Amount: 49000, Currency: "USD"}},
			},
			TrialDays: 14,
			Limits:    map[catalog.Resource]int64{catalog.ResourceProjects: catalog.Unlimited},
			Features:  []catalog.Feature{catalog.FeatureAPI, catalog.FeatureAnalytics},
			Public:    true,
		},
	}
}

func TestCatalogGet(t *testing.T) {
	t.Parallel()

	cat, err := catalog.New(context.Background(), catalog.NewInMemSource(testPlans()...))
	require.NoError(t, err)

	t.Run("existing plan", func(t *testing.T) {
		t.Parallel()

		plan, err := cat.Get("pro")
		require.NoError(t, err)
		assert.Equal(t, "pro", plan.ID)
		assert.Equal(t, catalog.TierPro, plan.Tier)
		assert.True(t, plan.HasTrial())
	})

	t.Run("unknown plan", func(t *testing.T) {
		t.Parallel()

		_, err := cat.Get("nonexistent")
		assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
	})

	t.Run("returned plan is a copy", func(t *testing.T) {
		t.Parallel()

		plan, err := cat.Get("pro")
		require.NoError(t, err)
		plan.Limits[catalog.ResourceProjects] = 999
		plan.Pricing[0].Price.Amount = 1

		again, err := cat.Get("pro")
		require.NoError(t, err)
		assert.Equal(t, catalog.Unlimited, again.Limits[catalog.ResourceProjects])
		assert.Equal(t, int64(4900), again.Pricing[0].Price.Amount)
	})
}

func TestCatalogByTierAndCycle(t *testing.T) {
	t.Parallel()

	cat, err := catalog.New(context.Background(), catalog.NewInMemSource(testPlans()...))
	require.NoError(t, err)

	t.Run("resolves tier and cycle", func(t *testing.T) {
		t.Parallel()

		plan, price, err := cat.ByTierAndCycle(catalog.TierPro, catalog.BillingCycleYearly)
		require.NoError(t, err)
		assert.Equal(t, "pro", plan.ID)
		assert.Equal(t, int64(49000), price.Amount)
	})

	t.Run("tier without matching cycle", func(t *testing.T) {
		t.Parallel()

		_, _, err := cat.ByTierAndCycle(catalog.TierFree, catalog.BillingCycleYearly)
		assert.ErrorIs(t, err, catalog.ErrPlanNotFound)
	})
}

func TestCatalogValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		plan catalog.Plan
	}{
		{
			name: "unknown tier",
			plan: catalog.Plan{
				ID:      "bad",
				Tier:    catalog.Tier("platinum"),
				Pricing: []catalog.Pricing{{Cycle: catalog.BillingCycleMonthly}},
			},
		},
		{
			name: "no pricing",
			plan: catalog.Plan{ID: "bad", Tier: catalog.TierBasic},
		},
		{
			name: "negative trial days",
			plan: catalog.Plan{
				ID:        "bad",
				Tier:      catalog.TierBasic,
				TrialDays: -1,
				Pricing:   []catalog.Pricing{{Cycle: catalog.BillingCycleMonthly}},
			},
		},
		{
			name: "negative price",
			plan: catalog.Plan{
				ID:   "bad",
				Tier: catalog.TierBasic,
				Pricing: []catalog.Pricing{
					{Cycle: catalog.BillingCycleMonthly, Price: catalog.Money{Amount: -100}},
				},
			},
		},
		{
			name: "unknown billing cycle",
			plan: catalog.Plan{
				ID:      "bad",
				Tier:    catalog.TierBasic,
				Pricing: []catalog.Pricing{{Cycle: catalog.BillingCycle("weekly")}},
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := catalog.New(context.Background(), catalog.NewInMemSource(tt.plan))
			assert.ErrorIs(t, err, catalog.ErrInvalidPlanConfiguration)
		})
	}
}

func TestPlanPriceFor(t *testing.T) {
	t.Parallel()

	plan := testPlans()[1]

	price, err := plan.PriceFor(catalog.BillingCycleMonthly)
	require.NoError(t, err)
	assert.Equal(t, int64(4900), price.Amount)
	assert.Equal(t, "USD", price.Currency)

	_, err = plan.PriceFor(catalog.BillingCycle("weekly"))
	assert.ErrorIs(t, err, catalog.ErrPricingNotFound)
}

func TestPlanTrial(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	withTrial := catalog.Plan{TrialDays: 14}
	assert.True(t, withTrial.HasTrial())
	assert.Equal(t, start.AddDate(0, 0, 14), withTrial.TrialEndsAt(start))

	noTrial := catalog.Plan{}
	assert.False(t, noTrial.HasTrial())
	assert.Equal(t, start, noTrial.TrialEndsAt(start))
}

func TestTierRank(t *testing.T) {
	t.Parallel()

	assert.Less(t, catalog.TierFree.Rank(), catalog.TierBasic.Rank())
	assert.Less(t, catalog.TierBasic.Rank(), catalog.TierPro.Rank())
	assert.Less(t, catalog.TierPro.Rank(), catalog.TierEnterprise.Rank())
	assert.Equal(t, -1, catalog.Tier("platinum").Rank())
	assert.False(t, catalog.Tier("platinum").Valid())
}

func TestNewInMemSourcePanicsOnEmpty(t *testing.T) {
	t.Parallel()

	assert.Panics(t, func() { catalog.NewInMemSource() })
}
