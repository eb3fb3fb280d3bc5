package catalog

import (
	"time"
)

// Pricing maps one billing cycle to its price.
type Pricing struct {
	Cycle BillingCycle
	Price Money
}

// Plan describes a subscription plan and its pricing/limit constraints.
// Plans are immutable reference data: subscriptions copy the resolved price
// at creation time so later catalog changes never affect existing subscribers.
type Plan struct {
	ID          string
	Name        string
	Description string
	Tier        Tier
	Pricing     []Pricing
	TrialDays   int
	Limits      map[Resource]int64 // -1 represents unlimited
	Features    []Feature
	Public      bool // available for self-service signup
}

// PriceFor resolves the plan's price for the given billing cycle.
func (p Plan) PriceFor(cycle BillingCycle) (Money, error) {
	for _, pricing := range p.Pricing {
		if pricing.Cycle == cycle {
			return pricing.Price, nil
		}
	}
	return Money{}, ErrPricingNotFound
}

// TrialEndsAt calculates when the trial period ends.
// Returns startedAt unchanged if no trial is available.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}

// HasTrial reports whether the plan grants a trial period.
func (p Plan) HasTrial() bool {
	return p.TrialDays > 0
}
