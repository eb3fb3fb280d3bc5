package subscription

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Aggregate-level operations invoked by the renewal processor. They live here
// so every status write stays behind the package's transition table and the
// processor commits one consistent aggregate per Save.

// MarkCanceled flips a subscription carrying the cancel-at-period-end flag to
// canceled, recording the flip in the modifications trail. No charge happens.
func (s *Subscription) MarkCanceled(now time.Time, reason string) error {
	if err := s.transition(StatusCanceled, now); err != nil {
		return err
	}
	s.CanceledAt = &now
	if s.CancelReason == "" {
		s.CancelReason = reason
	}
	s.Modifications = append(s.Modifications, Modification{
		ID:          uuid.New(),
		Type:        ModificationCancel,
		FromTier:    s.Tier,
		FromAmount:  s.Amount,
		Reason:      reason,
		EffectiveAt: now,
		CreatedAt:   now,
	})
	return nil
}

// RecordRenewalSuccess appends a succeeded renewal for the period that just
// closed and advances the billing period by one cycle. Past-due and trialing
// subscriptions recover to active.
func (s *Subscription) RecordRenewalSuccess(now time.Time, charged, creditApplied int64, transactionRef string) error {
	s.Renewals = append(s.Renewals, Renewal{
		ID:             uuid.New(),
		PeriodStart:    s.CurrentPeriodStart,
		PeriodEnd:      s.CurrentPeriodEnd,
		Amount:         s.Amount,
		CreditApplied:  creditApplied,
		Charged:        charged,
		Currency:       s.Currency,
		PaymentStatus:  PaymentSucceeded,
		TransactionRef: transactionRef,
		CreatedAt:      now,
	})

	if s.Status != StatusActive {
		if err := s.transition(StatusActive, now); err != nil {
			return err
		}
	}
	s.advancePeriod()
	s.UpdatedAt = now
	return s.Validate()
}

// RecordRenewalFailure appends a failed renewal, schedules the retry, and
// degrades the subscription to past_due. The billing period is deliberately
// not advanced: the next tick re-selects the subscription via NextRetryAt.
func (s *Subscription) RecordRenewalFailure(now time.Time, attempted int64, reason string, retryAt time.Time) error {
	s.Renewals = append(s.Renewals, Renewal{
		ID:            uuid.New(),
		PeriodStart:   s.CurrentPeriodStart,
		PeriodEnd:     s.CurrentPeriodEnd,
		Amount:        s.Amount,
		Charged:       attempted,
		Currency:      s.Currency,
		PaymentStatus: PaymentFailed,
		FailureReason: reason,
		NextRetryAt:   &retryAt,
		CreatedAt:     now,
	})
	s.NextRetryAt = &retryAt

	if s.Status != StatusPastDue {
		if err := s.transition(StatusPastDue, now); err != nil && !errors.Is(err, ErrAlreadyInState) {
			return err
		}
	}
	s.UpdatedAt = now
	return nil
}
