package subscription

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
)

// Subscription is the aggregate root for one customer's paid-plan state.
//
// The Amount/Currency pair is the current effective price, captured from the
// catalog at creation or tier-change time; later catalog price changes never
// affect existing subscriptions. Modifications, Renewals, and Credits are
// append-only audit trails and the only source of historical amounts.
//
// All mutation happens through ledger operations or the renewal processor;
// Version is the optimistic-concurrency token enforcing the single-writer
// guarantee at the store.
type Subscription struct {
	ID                  uuid.UUID `json:"id"`
	UserID              uuid.UUID `json:"user_id"`
	ExternalCustomerRef string    `json:"external_customer_ref,omitempty"`
	ProviderSubRef      string    `json:"provider_sub_ref,omitempty"`

	Status       Status               `json:"status"`
	Tier         catalog.Tier         `json:"tier"`
	PlanID       string               `json:"plan_id"`
	BillingCycle catalog.BillingCycle `json:"billing_cycle"`
	Amount       int64                `json:"amount"` // current effective price in cents
	Currency     string               `json:"currency"`

	CurrentPeriodStart time.Time  `json:"current_period_start"`
	CurrentPeriodEnd   time.Time  `json:"current_period_end"`
	NextBillingDate    time.Time  `json:"next_billing_date"`
	NextRetryAt        *time.Time `json:"next_retry_at,omitempty"`
	TrialStart         *time.Time `json:"trial_start,omitempty"`
	TrialEnd           *time.Time `json:"trial_end,omitempty"`

	DiscountCode string `json:"discount_code,omitempty"`

	CancelAtPeriodEnd bool       `json:"cancel_at_period_end"`
	CanceledAt        *time.Time `json:"canceled_at,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	PausedAt          *time.Time `json:"paused_at,omitempty"`
	PauseReason       string     `json:"pause_reason,omitempty"`

	PaymentMethod PaymentMethod `json:"payment_method"`
	Billing       BillingInfo   `json:"billing"`
	Usage         Usage         `json:"usage"`

	Modifications []Modification `json:"modifications"`
	Renewals      []Renewal      `json:"renewals"`
	Credits       []Credit       `json:"credits"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Modification is one entry in the tier/cancel/pause/resume audit trail.
type Modification struct {
	ID            uuid.UUID        `json:"id"`
	Type          ModificationType `json:"type"`
	FromTier      catalog.Tier     `json:"from_tier,omitempty"`
	ToTier        catalog.Tier     `json:"to_tier,omitempty"`
	FromAmount    int64            `json:"from_amount"`
	ToAmount      int64            `json:"to_amount"`
	ProratedDelta int64            `json:"prorated_delta"`
	Reason        string           `json:"reason,omitempty"`
	EffectiveAt   time.Time        `json:"effective_at"`
	CreatedAt     time.Time        `json:"created_at"`
}

// Renewal records one billing attempt at a period boundary, success or failure.
type Renewal struct {
	ID             uuid.UUID     `json:"id"`
	PeriodStart    time.Time     `json:"period_start"`
	PeriodEnd      time.Time     `json:"period_end"`
	Amount         int64         `json:"amount"`
	CreditApplied  int64         `json:"credit_applied"`
	Charged        int64         `json:"charged"`
	Currency       string        `json:"currency"`
	PaymentStatus  PaymentStatus `json:"payment_status"`
	FailureReason  string        `json:"failure_reason,omitempty"`
	TransactionRef string        `json:"transaction_ref,omitempty"`
	NextRetryAt    *time.Time    `json:"next_retry_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Credit is a manual or promotional balance adjustment with its own remaining balance.
type Credit struct {
	ID         uuid.UUID  `json:"id"`
	Amount     int64      `json:"amount"`
	UsedAmount int64      `json:"used_amount"`
	Reason     string     `json:"reason,omitempty"`
	Type       CreditType `json:"type"`
	CreatedBy  string     `json:"created_by,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Balance returns the unredeemed portion of the credit.
func (c Credit) Balance() int64 {
	return c.Amount - c.UsedAmount
}

// Available reports whether the credit still has balance and has not expired.
func (c Credit) Available(asOf time.Time) bool {
	if c.Balance() <= 0 {
		return false
	}
	return c.ExpiresAt == nil || c.ExpiresAt.After(asOf)
}

func (s *Subscription) IsActive() bool   { return s.Status == StatusActive }
func (s *Subscription) IsTrialing() bool { return s.Status == StatusTrialing }
func (s *Subscription) IsPaused() bool   { return s.Status == StatusPaused }
func (s *Subscription) IsCanceled() bool { return s.Status == StatusCanceled }
func (s *Subscription) IsPastDue() bool  { return s.Status == StatusPastDue }

// transition moves the subscription to a new status, validating against the
// lifecycle table. Every status write in the package goes through here.
func (s *Subscription) transition(to Status, now time.Time) error {
	if s.Status == to {
		return ErrAlreadyInState
	}
	if !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = now
	return nil
}

// Validate checks the aggregate's structural invariants.
func (s *Subscription) Validate() error {
	if !s.CurrentPeriodStart.Before(s.CurrentPeriodEnd) {
		return ErrInvalidPeriod
	}
	if s.Status == StatusActive && !s.NextBillingDate.Equal(s.CurrentPeriodEnd) {
		return fmt.Errorf("%w: next billing date %s != period end %s",
			ErrInvalidPeriod, s.NextBillingDate, s.CurrentPeriodEnd)
	}
	return nil
}

// AvailableCredit returns the total redeemable credit balance at asOf.
func (s *Subscription) AvailableCredit(asOf time.Time) int64 {
	var total int64
	for _, c := range s.Credits {
		if c.Available(asOf) {
			total += c.Balance()
		}
	}
	return total
}

// ApplyCredit consumes up to amount of available credit balance, oldest
// credits first, recording usage on each. Returns the amount actually applied.
// UsedAmount never exceeds a credit's Amount.
func (s *Subscription) ApplyCredit(asOf time.Time, amount int64) int64 {
	if amount <= 0 {
		return 0
	}
	var applied int64
	for i := range s.Credits {
		if applied >= amount {
			break
		}
		c := &s.Credits[i]
		if !c.Available(asOf) {
			continue
		}
		take := min(c.Balance(), amount-applied)
		c.UsedAmount += take
		applied += take
	}
	return applied
}

// LatestRenewal returns the most recent renewal record, or nil if none exist.
// Renewals are appended in commit order, so the last entry is the latest.
func (s *Subscription) LatestRenewal() *Renewal {
	if len(s.Renewals) == 0 {
		return nil
	}
	return &s.Renewals[len(s.Renewals)-1]
}

// advancePeriod moves the billing period forward by one billing cycle.
func (s *Subscription) advancePeriod() {
	s.CurrentPeriodStart = s.CurrentPeriodEnd
	s.CurrentPeriodEnd = AddCycle(s.CurrentPeriodEnd, s.BillingCycle)
	s.NextBillingDate = s.CurrentPeriodEnd
	s.NextRetryAt = nil
}

// AddCycle advances t by one billing cycle.
func AddCycle(t time.Time, cycle catalog.BillingCycle) time.Time {
	if cycle == catalog.BillingCycleYearly {
		return t.AddDate(1, 0, 0)
	}
	return t.AddDate(0, 1, 0)
}
