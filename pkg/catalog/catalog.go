package catalog

import (
	"context"
	"errors"
)

// Catalog provides read access to the published plan set.
// Plans are loaded once at construction and shared without locking afterwards;
// the catalog is read-mostly reference data.
type Catalog struct {
	plans map[string]Plan
}

// New loads plans from the given source and validates them.
func New(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("catalog: Source is required")
	}

	plans, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadPlans, err)
	}

	if err := validatePlans(plans); err != nil {
		return nil, err
	}

	return &Catalog{plans: plans}, nil
}

// Get returns the plan with the given ID.
func (c *Catalog) Get(planID string) (Plan, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return Plan{}, ErrPlanNotFound
	}
	return clonePlan(plan), nil
}

// ByTierAndCycle finds a public plan matching the tier that offers the given
// billing cycle. Used to resolve the new price on tier changes.
func (c *Catalog) ByTierAndCycle(tier Tier, cycle BillingCycle) (Plan, Money, error) {
	for _, plan := range c.plans {
		if plan.Tier != tier {
			continue
		}
		if price, err := plan.PriceFor(cycle); err == nil {
			return clonePlan(plan), price, nil
		}
	}
	return Plan{}, Money{}, ErrPlanNotFound
}

// List returns all plans in the catalog.
func (c *Catalog) List() []Plan {
	out := make([]Plan, 0, len(c.plans))
	for _, plan := range c.plans {
		out = append(out, clonePlan(plan))
	}
	return out
}
