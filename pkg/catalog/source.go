package catalog

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Source defines how plans are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[string]Plan, error)
}

type inMemSource struct {
	mu    sync.RWMutex
	plans map[string]Plan
}

// NewInMemSource returns an in-memory Source with a deep copy of the given plans.
// Panics if no plans are provided to ensure the catalog always has at least one valid plan.
// Deep copying prevents external modifications from affecting the source's state.
func NewInMemSource(plans ...Plan) Source {
	if len(plans) < 1 {
		panic("catalog: at least one plan is required")
	}
	plansCopy := make(map[string]Plan, len(plans))
	for _, plan := range plans {
		plansCopy[plan.ID] = clonePlan(plan)
	}

	return &inMemSource{plans: plansCopy}
}

// Load returns a copy of all available plans from memory.
// Deep copying prevents callers from modifying the source's internal state.
func (s *inMemSource) Load(ctx context.Context) (map[string]Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	plansCopy := make(map[string]Plan, len(s.plans))
	for id, plan := range s.plans {
		plansCopy[id] = clonePlan(plan)
	}
	return plansCopy, nil
}

func clonePlan(plan Plan) Plan {
	return Plan{
		ID:          plan.ID,
		Name:        plan.Name,
		Description: plan.Description,
		Tier:        plan.Tier,
		Pricing:     slices.Clone(plan.Pricing),
		TrialDays:   plan.TrialDays,
		Limits:      maps.Clone(plan.Limits),
		Features:    slices.Clone(plan.Features),
		Public:      plan.Public,
	}
}

// validatePlans ensures plan configurations are internally consistent.
// Catches common configuration errors early to prevent runtime issues.
func validatePlans(plans map[string]Plan) error {
	for planID, plan := range plans {
		if plan.ID != planID {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan ID mismatch: map key %s != plan.ID %s", planID, plan.ID))
		}
		if !plan.Tier.Valid() {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has unknown tier %q", planID, plan.Tier))
		}
		if plan.TrialDays < 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has negative trial days: %d", planID, plan.TrialDays))
		}
		if len(plan.Pricing) == 0 {
			return errors.Join(ErrInvalidPlanConfiguration,
				fmt.Errorf("plan %s has no pricing entries", planID))
		}
		for _, pricing := range plan.Pricing {
			if !pricing.Cycle.Valid() {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has unknown billing cycle %q", planID, pricing.Cycle))
			}
			if pricing.Price.Amount < 0 {
				return errors.Join(ErrInvalidPlanConfiguration,
					fmt.Errorf("plan %s has negative price for cycle %s", planID, pricing.Cycle))
			}
		}
	}
	return nil
}
