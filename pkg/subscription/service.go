package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
	"github.com/dmitrymomot/billingkit/pkg/proration"
)

// Service is the subscription ledger: the single set of invariant-checked
// entry points through which all synchronous subscription mutation funnels.
type Service struct {
	catalog *catalog.Catalog
	store   Store
	clock   func() time.Time
	logger  *slog.Logger
}

// NewService creates the ledger service.
// Panics if required dependencies are nil to fail fast during initialization.
func NewService(cat *catalog.Catalog, store Store, opts ...ServiceOption) *Service {
	if cat == nil {
		panic("subscription: catalog is required")
	}
	if store == nil {
		panic("subscription: store is required")
	}

	s := &Service{
		catalog: cat,
		store:   store,
		clock:   func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the inputs for creating a subscription.
type CreateParams struct {
	UserID              uuid.UUID
	PlanID              string
	BillingCycle        catalog.BillingCycle
	PaymentMethod       PaymentMethod
	Billing             BillingInfo
	ExternalCustomerRef string
	DiscountCode        string
}

// Create opens a new subscription on the given plan and billing cycle.
//
// The plan's price for the requested cycle is resolved and copied onto the
// aggregate. Plans with trial days start TRIALING with the first billing date
// at trial end; otherwise the subscription starts ACTIVE with the first period
// seeded one cycle out. No gateway charge happens here; the first charge is
// the renewal processor's job at the period boundary.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Subscription, error) {
	plan, err := s.catalog.Get(params.PlanID)
	if err != nil {
		return nil, err
	}
	price, err := plan.PriceFor(params.BillingCycle)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	sub := &Subscription{
		ID:                  uuid.New(),
		UserID:              params.UserID,
		ExternalCustomerRef: params.ExternalCustomerRef,
		Status:              StatusActive,
		Tier:                plan.Tier,
		PlanID:              plan.ID,
		BillingCycle:        params.BillingCycle,
		Amount:              price.Amount,
		Currency:            price.Currency,
		DiscountCode:        params.DiscountCode,
		CurrentPeriodStart:  now,
		PaymentMethod:       params.PaymentMethod,
		Billing:             params.Billing,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if plan.HasTrial() {
		trialEnd := plan.TrialEndsAt(now)
		sub.Status = StatusTrialing
		sub.TrialStart = &now
		sub.TrialEnd = &trialEnd
		sub.CurrentPeriodEnd = trialEnd
	} else {
		sub.CurrentPeriodEnd = AddCycle(now, params.BillingCycle)
	}
	sub.NextBillingDate = sub.CurrentPeriodEnd

	sub.Modifications = append(sub.Modifications, Modification{
		ID:          uuid.New(),
		Type:        ModificationUpgrade,
		ToTier:      plan.Tier,
		ToAmount:    price.Amount,
		Reason:      "subscription created",
		EffectiveAt: now,
		CreatedAt:   now,
	})

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription created",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("plan_id", plan.ID),
		slog.String("status", string(sub.Status)))

	return sub, nil
}

// ChangeTier switches the subscription to a different tier at the existing
// billing cycle, effective immediately. The prorated delta for the remainder
// of the current period is computed and recorded on the modification; a
// negative delta additionally books a proration-type credit so the unused
// balance reduces the next renewal charge. Exactly one modification record is
// appended per call.
func (s *Service) ChangeTier(ctx context.Context, id uuid.UUID, newTier catalog.Tier, effectiveAt time.Time, reason string) (*Subscription, error) {
	if !newTier.Valid() {
		return nil, ErrInvalidTier
	}

	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot change tier of %s subscription", ErrInvalidStateTransition, sub.Status)
	}
	if sub.Tier == newTier {
		return nil, ErrSameTier
	}
	if sub.Tier.Rank() < 0 {
		return nil, ErrInvalidTier
	}

	plan, price, err := s.catalog.ByTierAndCycle(newTier, sub.BillingCycle)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	if effectiveAt.IsZero() {
		effectiveAt = now
	}

	quote := proration.Calculate(sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.Amount, price.Amount, effectiveAt)

	modType := ModificationUpgrade
	if newTier.Rank() < sub.Tier.Rank() {
		modType = ModificationDowngrade
	}

	mod := Modification{
		ID:            uuid.New(),
		Type:          modType,
		FromTier:      sub.Tier,
		ToTier:        newTier,
		FromAmount:    sub.Amount,
		ToAmount:      price.Amount,
		ProratedDelta: quote.Delta,
		Reason:        reason,
		EffectiveAt:   effectiveAt,
		CreatedAt:     now,
	}

	sub.Tier = newTier
	sub.PlanID = plan.ID
	sub.Amount = price.Amount
	sub.Currency = price.Currency
	sub.UpdatedAt = now
	sub.Modifications = append(sub.Modifications, mod)

	// A downgrade's unused balance becomes redeemable credit against future renewals.
	if quote.Delta < 0 {
		sub.Credits = append(sub.Credits, Credit{
			ID:        uuid.New(),
			Amount:    -quote.Delta,
			Type:      CreditProration,
			Reason:    fmt.Sprintf("proration credit for %s to %s", mod.FromTier, mod.ToTier),
			CreatedAt: now,
		})
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.Save(ctx, sub); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "subscription tier changed",
		slog.String("subscription_id", sub.ID.String()),
		slog.String("from_tier", string(mod.FromTier)),
		slog.String("to_tier", string(newTier)),
		slog.Int64("prorated_delta", quote.Delta))

	return sub, nil
}

// Cancel cancels the subscription. With atPeriodEnd the subscription stays
// active until the renewal processor reaches the period boundary and flips it;
// otherwise the cancellation takes effect immediately. Either way exactly one
// cancel modification is appended.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, atPeriodEnd bool, reason string) error {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if sub.IsCanceled() {
		return ErrAlreadyInState
	}

	now := s.clock()
	if atPeriodEnd {
		if sub.CancelAtPeriodEnd {
			return ErrAlreadyInState
		}
		sub.CancelAtPeriodEnd = true
		sub.CancelReason = reason
		sub.UpdatedAt = now
	} else {
		if err := sub.transition(StatusCanceled, now); err != nil {
			return err
		}
		sub.CanceledAt = &now
		sub.CancelReason = reason
	}

	sub.Modifications = append(sub.Modifications, Modification{
		ID:          uuid.New(),
		Type:        ModificationCancel,
		FromTier:    sub.Tier,
		FromAmount:  sub.Amount,
		Reason:      reason,
		EffectiveAt: now,
		CreatedAt:   now,
	})

	if err := s.store.Save(ctx, sub); err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "subscription canceled",
		slog.String("subscription_id", sub.ID.String()),
		slog.Bool("at_period_end", atPeriodEnd))
	return nil
}

// Pause suspends billing. Only legal from ACTIVE; while paused the renewal
// processor skips the subscription entirely.
func (s *Service) Pause(ctx context.Context, id uuid.UUID, reason string) error {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	now := s.clock()
	if err := sub.transition(StatusPaused, now); err != nil {
		return err
	}
	sub.PausedAt = &now
	sub.PauseReason = reason
	sub.Modifications = append(sub.Modifications, Modification{
		ID:          uuid.New(),
		Type:        ModificationPause,
		FromTier:    sub.Tier,
		FromAmount:  sub.Amount,
		Reason:      reason,
		EffectiveAt: now,
		CreatedAt:   now,
	})

	return s.store.Save(ctx, sub)
}

// Resume reactivates a paused subscription. Tier and amount are untouched.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) error {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !sub.IsPaused() {
		if sub.IsActive() {
			return ErrAlreadyInState
		}
		return fmt.Errorf("%w: cannot resume %s subscription", ErrInvalidStateTransition, sub.Status)
	}

	now := s.clock()
	if err := sub.transition(StatusActive, now); err != nil {
		return err
	}
	sub.PausedAt = nil
	sub.PauseReason = ""
	sub.Modifications = append(sub.Modifications, Modification{
		ID:          uuid.New(),
		Type:        ModificationResume,
		FromTier:    sub.Tier,
		FromAmount:  sub.Amount,
		EffectiveAt: now,
		CreatedAt:   now,
	})

	return s.store.Save(ctx, sub)
}

// AddCreditParams carries the inputs for a manual balance adjustment.
type AddCreditParams struct {
	Amount    int64
	Reason    string
	Type      CreditType
	CreatedBy string
	ExpiresAt *time.Time
}

// AddCredit appends a credit to the subscription's credit ledger. It does not
// touch the subscription amount; redemption happens at renewal time.
func (s *Service) AddCredit(ctx context.Context, id uuid.UUID, params AddCreditParams) (uuid.UUID, error) {
	if params.Amount <= 0 {
		return uuid.Nil, ErrInvalidCreditAmount
	}

	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return uuid.Nil, err
	}

	now := s.clock()
	credit := Credit{
		ID:        uuid.New(),
		Amount:    params.Amount,
		Reason:    params.Reason,
		Type:      params.Type,
		CreatedBy: params.CreatedBy,
		ExpiresAt: params.ExpiresAt,
		CreatedAt: now,
	}
	if credit.Type == "" {
		credit.Type = CreditManual
	}
	sub.Credits = append(sub.Credits, credit)
	sub.UpdatedAt = now

	if err := s.store.Save(ctx, sub); err != nil {
		return uuid.Nil, err
	}
	return credit.ID, nil
}

// Get retrieves a subscription by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, id)
}

// IsNotFound reports whether the error is the ledger's not-found condition.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
