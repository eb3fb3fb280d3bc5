// Package catalog holds the immutable subscription plan reference data:
// named plans with per-cycle pricing, trial length, resource limits, and
// feature flags.
//
// Plans are referenced by ID and never embedded by value into a subscription;
// the subscription ledger copies the resolved price at creation or tier-change
// time, so publishing new catalog prices never rewrites history.
//
// Tier ordering is an explicit rank table (see Tier.Rank), not enum
// declaration order, so tiers can be added or reordered in source without
// changing upgrade/downgrade semantics.
package catalog
