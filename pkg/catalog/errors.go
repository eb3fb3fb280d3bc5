package catalog

import "errors"

var (
	ErrPlanNotFound             = errors.New("subscription plan not found")
	ErrPricingNotFound          = errors.New("no pricing for requested billing cycle")
	ErrInvalidPlanConfiguration = errors.New("invalid subscription plan configuration")
	ErrFailedToLoadPlans        = errors.New("failed to load subscription plans")
)
