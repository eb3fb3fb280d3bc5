package subscription_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func newActiveSubscription(now time.Time) *subscription.Subscription {
	return &subscription.Subscription{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		Status:             subscription.StatusActive,
		Tier:               catalog.TierPro,
		PlanID:             "pro",
		BillingCycle:       catalog.BillingCycleMonthly,
		Amount:             4900,
		Currency:           "USD",
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		NextBillingDate:    now.AddDate(0, 1, 0),
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func TestCanTransition(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from    subscription.Status
		to      subscription.Status
		allowed bool
	}{
		{subscription.StatusTrialing, subscription.StatusActive, true},
		{subscription.StatusTrialing, subscription.StatusPastDue, true},
		{subscription.StatusTrialing, subscription.StatusPaused, false},
		{subscription.StatusActive, subscription.StatusPaused, true},
		{subscription.StatusActive, subscription.StatusPastDue, true},
		{subscription.StatusActive, subscription.StatusTrialing, false},
		{subscription.StatusPastDue, subscription.StatusActive, true},
		{subscription.StatusPastDue, subscription.StatusUnpaid, true},
		{subscription.StatusPastDue, subscription.StatusPaused, false},
		{subscription.StatusPaused, subscription.StatusActive, true},
		{subscription.StatusUnpaid, subscription.StatusActive, true},
		{subscription.StatusCanceled, subscription.StatusActive, false},
		{subscription.StatusIncompleteExpired, subscription.StatusActive, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.from)+" to "+string(tt.to), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.allowed, subscription.CanTransition(tt.from, tt.to))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	assert.True(t, subscription.StatusCanceled.Terminal())
	assert.True(t, subscription.StatusIncompleteExpired.Terminal())
	assert.False(t, subscription.StatusActive.Terminal())
	assert.False(t, subscription.StatusPastDue.Terminal())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("valid aggregate", func(t *testing.T) {
		t.Parallel()
		sub := newActiveSubscription(now)
		require.NoError(t, sub.Validate())
	})

	t.Run("inverted period", func(t *testing.T) {
		t.Parallel()
		sub := newActiveSubscription(now)
		sub.CurrentPeriodEnd = sub.CurrentPeriodStart.AddDate(0, 0, -1)
		assert.ErrorIs(t, sub.Validate(), subscription.ErrInvalidPeriod)
	})

	t.Run("active with drifted next billing date", func(t *testing.T) {
		t.Parallel()
		sub := newActiveSubscription(now)
		sub.NextBillingDate = sub.CurrentPeriodEnd.AddDate(0, 0, 1)
		assert.ErrorIs(t, sub.Validate(), subscription.ErrInvalidPeriod)
	})
}

func TestCredits(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("balance and availability", func(t *testing.T) {
		t.Parallel()

		expired := now.AddDate(0, 0, -1)
		credit := subscription.Credit{Amount: 1000, UsedAmount: 400}
		assert.Equal(t, int64(600), credit.Balance())
		assert.True(t, credit.Available(now))

		credit.ExpiresAt = &expired
		assert.False(t, credit.Available(now))

		spent := subscription.Credit{Amount: 1000, UsedAmount: 1000}
		assert.False(t, spent.Available(now))
	})

	t.Run("apply consumes oldest first", func(t *testing.T) {
		t.Parallel()

		sub := newActiveSubscription(now)
		sub.Credits = []subscription.Credit{
			{ID: uuid.New(), Amount: 500, CreatedAt: now.AddDate(0, 0, -10)},
			{ID: uuid.New(), Amount: 800, CreatedAt: now.AddDate(0, 0, -5)},
		}

		assert.Equal(t, int64(1300), sub.AvailableCredit(now))

		applied := sub.ApplyCredit(now, 700)
		assert.Equal(t, int64(700), applied)
		assert.Equal(t, int64(500), sub.Credits[0].UsedAmount)
		assert.Equal(t, int64(200), sub.Credits[1].UsedAmount)
		assert.Equal(t, int64(600), sub.AvailableCredit(now))
	})

	t.Run("apply skips expired credits", func(t *testing.T) {
		t.Parallel()

		expired := now.AddDate(0, 0, -1)
		sub := newActiveSubscription(now)
		sub.Credits = []subscription.Credit{
			{ID: uuid.New(), Amount: 500, ExpiresAt: &expired},
			{ID: uuid.New(), Amount: 300},
		}

		applied := sub.ApplyCredit(now, 500)
		assert.Equal(t, int64(300), applied)
		assert.Equal(t, int64(0), sub.Credits[0].UsedAmount)
		assert.Equal(t, int64(300), sub.Credits[1].UsedAmount)
	})

	t.Run("apply never exceeds requested amount", func(t *testing.T) {
		t.Parallel()

		sub := newActiveSubscription(now)
		sub.Credits = []subscription.Credit{{ID: uuid.New(), Amount: 10000}}

		assert.Equal(t, int64(4900), sub.ApplyCredit(now, 4900))
		assert.Equal(t, int64(5100), sub.AvailableCredit(now))
		assert.Equal(t, int64(0), sub.ApplyCredit(now, 0))
		assert.Equal(t, int64(0), sub.ApplyCredit(now, -5))
	})
}

func TestRecordRenewalSuccess(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("advances the period by one cycle", func(t *testing.T) {
		t.Parallel()

		sub := newActiveSubscription(now)
		prevEnd := sub.CurrentPeriodEnd

		require.NoError(t, sub.RecordRenewalSuccess(now, 4900, 0, "tx_1"))

		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Equal(t, prevEnd, sub.CurrentPeriodStart)
		assert.Equal(t, prevEnd.AddDate(0, 1, 0), sub.CurrentPeriodEnd)
		assert.Equal(t, sub.CurrentPeriodEnd, sub.NextBillingDate)
		assert.Nil(t, sub.NextRetryAt)

		require.Len(t, sub.Renewals, 1)
		renewal := sub.Renewals[0]
		assert.Equal(t, subscription.PaymentSucceeded, renewal.PaymentStatus)
		assert.Equal(t, int64(4900), renewal.Charged)
		assert.Equal(t, "tx_1", renewal.TransactionRef)
		// The renewal records the period that just closed.
		assert.Equal(t, prevEnd, renewal.PeriodEnd)
	})

	t.Run("recovers past_due to active", func(t *testing.T) {
		t.Parallel()

		sub := newActiveSubscription(now)
		retryAt := now.AddDate(0, 0, 1)
		require.NoError(t, sub.RecordRenewalFailure(now, 4900, "declined", retryAt))
		require.Equal(t, subscription.StatusPastDue, sub.Status)

		require.NoError(t, sub.RecordRenewalSuccess(now.AddDate(0, 0, 1), 4900, 0, "tx_2"))
		assert.Equal(t, subscription.StatusActive, sub.Status)
		assert.Nil(t, sub.NextRetryAt)
	})

	t.Run("converts trialing to active", func(t *testing.T) {
		t.Parallel()

		sub := newActiveSubscription(now)
		sub.Status = subscription.StatusTrialing

		require.NoError(t, sub.RecordRenewalSuccess(now, 4900, 0, "tx_3"))
		assert.Equal(t, subscription.StatusActive, sub.Status)
	})
}

func TestRecordRenewalFailure(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := newActiveSubscription(now)
	periodEnd := sub.CurrentPeriodEnd
	retryAt := now.Add(24 * time.Hour)

	require.NoError(t, sub.RecordRenewalFailure(now, 4900, "declined: insufficient funds", retryAt))

	assert.Equal(t, subscription.StatusPastDue, sub.Status)
	require.NotNil(t, sub.NextRetryAt)
	assert.Equal(t, retryAt, *sub.NextRetryAt)
	// The billing period must not advance on failure.
	assert.Equal(t, periodEnd, sub.CurrentPeriodEnd)
	assert.Equal(t, periodEnd, sub.NextBillingDate)

	require.Len(t, sub.Renewals, 1)
	assert.Equal(t, subscription.PaymentFailed, sub.Renewals[0].PaymentStatus)
	assert.Equal(t, "declined: insufficient funds", sub.Renewals[0].FailureReason)

	// A second failure stays past_due and pushes the retry out.
	laterRetry := retryAt.Add(24 * time.Hour)
	require.NoError(t, sub.RecordRenewalFailure(retryAt, 4900, "declined", laterRetry))
	assert.Equal(t, subscription.StatusPastDue, sub.Status)
	assert.Equal(t, laterRetry, *sub.NextRetryAt)
	assert.Len(t, sub.Renewals, 2)
}

func TestMarkCanceled(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := newActiveSubscription(now)
	sub.CancelAtPeriodEnd = true

	require.NoError(t, sub.MarkCanceled(now, "cancel at period end"))

	assert.Equal(t, subscription.StatusCanceled, sub.Status)
	require.NotNil(t, sub.CanceledAt)
	require.Len(t, sub.Modifications, 1)
	assert.Equal(t, subscription.ModificationCancel, sub.Modifications[0].Type)

	// Canceled is terminal.
	assert.Error(t, sub.MarkCanceled(now, "again"))
}

func TestLatestRenewal(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	sub := newActiveSubscription(now)
	assert.Nil(t, sub.LatestRenewal())

	require.NoError(t, sub.RecordRenewalFailure(now, 4900, "declined", now.Add(time.Hour)))
	require.NoError(t, sub.RecordRenewalSuccess(now.Add(time.Hour), 4900, 0, "tx_1"))

	latest := sub.LatestRenewal()
	require.NotNil(t, latest)
	assert.Equal(t, subscription.PaymentSucceeded, latest.PaymentStatus)
}

func TestAddCycle(t *testing.T) {
	t.Parallel()

	base := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		subscription.AddCycle(base, catalog.BillingCycleMonthly))
	assert.Equal(t, time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
		subscription.AddCycle(base, catalog.BillingCycleYearly))
}

func TestPaymentMethodExpiry(t *testing.T) {
	t.Parallel()

	pm := subscription.PaymentMethod{ExpMonth: 6, ExpYear: 2025}

	// Valid through June 2025; expires at the start of July.
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), pm.ExpiresAt())

	asOf := time.Date(2025, 6, 20, 0, 0, 0, 0, time.UTC)
	assert.False(t, pm.ExpiresWithin(asOf, 7*24*time.Hour))
	assert.True(t, pm.ExpiresWithin(asOf, 14*24*time.Hour))

	// Already expired reports true for any window.
	assert.True(t, pm.ExpiresWithin(time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), time.Hour))

	// No expiry data never flags.
	assert.False(t, subscription.PaymentMethod{}.ExpiresWithin(asOf, 14*24*time.Hour))
}
