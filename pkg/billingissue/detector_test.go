package billingissue_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/billingkit/pkg/billingissue"
	"github.com/dmitrymomot/billingkit/pkg/catalog"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

func seedSubscription(t *testing.T, store subscription.Store, mutate func(*subscription.Subscription)) *subscription.Subscription {
	t.Helper()

	created := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	sub := &subscription.Subscription{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		Status:             subscription.StatusActive,
		Tier:               catalog.TierPro,
		PlanID:             "pro",
		BillingCycle:       catalog.BillingCycleMonthly,
		Amount:             4900,
		Currency:           "USD",
		CurrentPeriodStart: created,
		CurrentPeriodEnd:   created.AddDate(0, 1, 0),
		NextBillingDate:    created.AddDate(0, 1, 0),
		PaymentMethod: subscription.PaymentMethod{
			Ref: "pm_1", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030,
		},
		CreatedAt: created,
		UpdatedAt: created,
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, store.Save(context.Background(), sub))
	return sub
}

func newDetector(subs subscription.Store, issues billingissue.Store, now time.Time) *billingissue.Detector {
	return billingissue.NewDetector(subs, issues, billingissue.Config{},
		billingissue.WithClock(func() time.Time { return now }))
}

func TestRunIssueDetection(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	t.Run("flags a card expiring inside the lookahead", func(t *testing.T) {
		t.Parallel()

		subs := subscription.NewMemoryStore()
		issues := billingissue.NewMemoryStore()
		sub := seedSubscription(t, subs, func(s *subscription.Subscription) {
			s.PaymentMethod.ExpMonth = 5
			s.PaymentMethod.ExpYear = 2025
		})

		summary, err := newDetector(subs, issues, asOf).RunIssueDetection(ctx, asOf)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Scanned)
		assert.Equal(t, 1, summary.Raised)

		open, err := issues.FindOpen(ctx, sub.ID, billingissue.TypeCardExpiring)
		require.NoError(t, err)
		assert.Equal(t, billingissue.StatusOpen, open.Status)
		assert.Contains(t, open.Message, "4242")
	})

	t.Run("healthy card raises nothing", func(t *testing.T) {
		t.Parallel()

		subs := subscription.NewMemoryStore()
		issues := billingissue.NewMemoryStore()
		seedSubscription(t, subs, nil)

		summary, err := newDetector(subs, issues, asOf).RunIssueDetection(ctx, asOf)
		require.NoError(t, err)
		assert.Zero(t, summary.Raised)
		assert.Equal(t, 1, summary.Skipped)
	})

	t.Run("repeated runs never duplicate an open issue", func(t *testing.T) {
		t.Parallel()

		subs := subscription.NewMemoryStore()
		issues := billingissue.NewMemoryStore()
		sub := seedSubscription(t, subs, func(s *subscription.Subscription) {
			s.PaymentMethod.ExpMonth = 5
			s.PaymentMethod.ExpYear = 2025
		})

		det := newDetector(subs, issues, asOf)
		first, err := det.RunIssueDetection(ctx, asOf)
		require.NoError(t, err)
		second, err := det.RunIssueDetection(ctx, asOf)
		require.NoError(t, err)

		assert.Equal(t, 1, first.Raised)
		assert.Zero(t, second.Raised)

		all, err := issues.List(ctx, billingissue.Filter{SubscriptionID: &sub.ID})
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("flags an overdue renewal retry", func(t *testing.T) {
		t.Parallel()

		subs := subscription.NewMemoryStore()
		issues := billingissue.NewMemoryStore()
		sub := seedSubscription(t, subs, func(s *subscription.Subscription) {
			retryAt := asOf.Add(-48 * time.Hour)
			require.NoError(t, s.RecordRenewalFailure(asOf.Add(-72*time.Hour), 4900, "declined", retryAt))
		})

		summary, err := newDetector(subs, issues, asOf).RunIssueDetection(ctx, asOf)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Raised)

		open, err := issues.FindOpen(ctx, sub.ID, billingissue.TypeRenewalOverdue)
		require.NoError(t, err)
		assert.Contains(t, open.Message, "declined")
	})

	t.Run("pending retry is not overdue", func(t *testing.T) {
		t.Parallel()

		subs := subscription.NewMemoryStore()
		issues := billingissue.NewMemoryStore()
		seedSubscription(t, subs, func(s *subscription.Subscription) {
			retryAt := asOf.Add(12 * time.Hour)
			require.NoError(t, s.RecordRenewalFailure(asOf.Add(-time.Hour), 4900, "declined", retryAt))
		})

		summary, err := newDetector(subs, issues, asOf).RunIssueDetection(ctx, asOf)
		require.NoError(t, err)
		assert.Zero(t, summary.Raised)
	})

	t.Run("recovered renewal is not flagged", func(t *testing.T) {
		t.Parallel()

		subs := subscription.NewMemoryStore()
		issues := billingissue.NewMemoryStore()
		seedSubscription(t, subs, func(s *subscription.Subscription) {
			retryAt := asOf.Add(-48 * time.Hour)
			require.NoError(t, s.RecordRenewalFailure(asOf.Add(-72*time.Hour), 4900, "declined", retryAt))
			require.NoError(t, s.RecordRenewalSuccess(asOf.Add(-24*time.Hour), 4900, 0, "tx_ok"))
		})

		summary, err := newDetector(subs, issues, asOf).RunIssueDetection(ctx, asOf)
		require.NoError(t, err)
		assert.Zero(t, summary.Raised)
	})

	t.Run("canceled subscriptions are not scanned", func(t *testing.T) {
		t.Parallel()

		subs := subscription.NewMemoryStore()
		issues := billingissue.NewMemoryStore()
		seedSubscription(t, subs, func(s *subscription.Subscription) {
			s.Status = subscription.StatusCanceled
			s.PaymentMethod.ExpMonth = 5
			s.PaymentMethod.ExpYear = 2025
		})

		summary, err := newDetector(subs, issues, asOf).RunIssueDetection(ctx, asOf)
		require.NoError(t, err)
		assert.Zero(t, summary.Scanned)
		assert.Zero(t, summary.Raised)
	})
}

func TestResolve(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	asOf := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	subs := subscription.NewMemoryStore()
	issues := billingissue.NewMemoryStore()
	sub := seedSubscription(t, subs, func(s *subscription.Subscription) {
		s.PaymentMethod.ExpMonth = 5
		s.PaymentMethod.ExpYear = 2025
	})

	det := newDetector(subs, issues, asOf)
	_, err := det.RunIssueDetection(ctx, asOf)
	require.NoError(t, err)

	open, err := issues.FindOpen(ctx, sub.ID, billingissue.TypeCardExpiring)
	require.NoError(t, err)

	require.NoError(t, det.Resolve(ctx, open.ID, "customer updated the card"))

	resolved, err := issues.Get(ctx, open.ID)
	require.NoError(t, err)
	assert.Equal(t, billingissue.StatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolvedAt)
	require.Len(t, resolved.ResolutionSteps, 1)
	assert.Equal(t, "customer updated the card", resolved.ResolutionSteps[0].Note)

	// Resolving twice is rejected; resolved issues are history.
	assert.ErrorIs(t, det.Resolve(ctx, open.ID, "again"), billingissue.ErrIssueAlreadyResolved)

	// After resolution the pair is free again: a new run reopens tracking.
	summary, err := det.RunIssueDetection(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Raised)

	all, err := issues.List(ctx, billingissue.Filter{SubscriptionID: &sub.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestResolveUnknownIssue(t *testing.T) {
	t.Parallel()

	det := newDetector(subscription.NewMemoryStore(), billingissue.NewMemoryStore(),
		time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC))

	err := det.Resolve(context.Background(), uuid.New(), "note")
	assert.ErrorIs(t, err, billingissue.ErrIssueNotFound)
}
