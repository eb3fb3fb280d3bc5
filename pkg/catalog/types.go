package catalog

// Tier identifies a subscription tier level.
type Tier string

const (
	TierFree       Tier = "free"
	TierBasic      Tier = "basic"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// tierRanks orders tiers explicitly so that upgrade/downgrade decisions never
// depend on declaration order. Unknown tiers rank -1.
var tierRanks = map[Tier]int{
	TierFree:       0,
	TierBasic:      1,
	TierPro:        2,
	TierEnterprise: 3,
}

// Rank returns the numeric rank of the tier, or -1 for unknown tiers.
func (t Tier) Rank() int {
	rank, ok := tierRanks[t]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether the tier is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierRanks[t]
	return ok
}

// BillingCycle represents the billing frequency for a subscription plan.
type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// Valid reports whether the billing cycle is supported.
func (c BillingCycle) Valid() bool {
	return c == BillingCycleMonthly || c == BillingCycleYearly
}

// Money represents a monetary amount in the smallest currency unit.
// For example, $10.99 USD would be Amount: 1099, Currency: "USD".
type Money struct {
	Amount   int64  `json:"amount"`   // Amount in smallest currency unit (cents for USD)
	Currency string `json:"currency"` // ISO 4217 currency code
}

// Resource represents a countable resource constrained by a plan.
type Resource string

const (
	ResourceProjects  Resource = "projects"
	ResourceUsers     Resource = "users"
	ResourceAPIKeys   Resource = "api_keys"
	ResourceStorage   Resource = "storage" // Measured in GB
	ResourceBandwidth Resource = "bandwidth"
)

const (
	// Unlimited indicates no limit for a resource (-1 chosen for SQL compatibility)
	Unlimited int64 = -1
)

// Feature represents a plan-specific capability that can be enabled/disabled.
type Feature string

const (
	FeatureAPI             Feature = "api"
	FeatureSSO             Feature = "sso"
	FeatureAnalytics       Feature = "analytics"
	FeaturePrioritySupport Feature = "priority_support"
	FeatureAuditLog        Feature = "audit_log"
)
