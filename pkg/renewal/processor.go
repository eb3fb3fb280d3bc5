package renewal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/gateway"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Processor runs the periodic renewal batch: it selects subscriptions due for
// billing, attempts a charge through the payment gateway, and advances or
// degrades their state accordingly.
//
// The processor is safe to re-run against the same due set. Every item is
// re-loaded and re-checked for eligibility inside its own compare-and-set
// write, so a subscription already advanced by a previous partial run is
// skipped rather than double-charged.
type Processor struct {
	store   subscription.Store
	txs     subscription.TransactionStore
	gateway gateway.Gateway
	cfg     Config
	clock   func() time.Time
	logger  *slog.Logger
}

// NewProcessor creates a renewal processor.
// Panics if required dependencies are nil to fail fast during initialization.
// The gateway is wrapped with the configured charge timeout so a slow
// processor call degrades into a failed charge instead of blocking the batch.
func NewProcessor(store subscription.Store, txs subscription.TransactionStore, gw gateway.Gateway, cfg Config, opts ...Option) *Processor {
	if store == nil {
		panic("renewal: subscription store is required")
	}
	if txs == nil {
		panic("renewal: transaction store is required")
	}
	if gw == nil {
		panic("renewal: gateway is required")
	}

	cfg = cfg.withDefaults()
	p := &Processor{
		store:   store,
		txs:     txs,
		gateway: gateway.WithTimeout(gw, cfg.ChargeTimeout),
		cfg:     cfg,
		clock:   func() time.Time { return time.Now().UTC() },
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summary reports the outcome of one batch run.
type Summary struct {
	Due      int
	Renewed  int
	Canceled int
	Failed   int
	Skipped  int
	Errors   []error
}

// outcome classifies how one subscription left the batch.
type outcome int

const (
	outcomeSkipped outcome = iota
	outcomeRenewed
	outcomeCanceled
	outcomeFailed
)

// RunRenewalBatch processes every subscription due at asOf. Each subscription
// is an independent unit of work: item failures are recorded in the summary
// and never abort the batch. Items are processed on a bounded worker pool;
// mutation of a single aggregate stays serialized through the store's version
// compare-and-set.
func (p *Processor) RunRenewalBatch(ctx context.Context, asOf time.Time) (Summary, error) {
	due, err := p.store.ListDue(ctx, asOf)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to select due subscriptions: %w", err)
	}

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		sem     = make(chan struct{}, p.cfg.Concurrency)
		summary = Summary{Due: len(due)}
	)

	for _, sub := range due {
		wg.Add(1)
		sem <- struct{}{}
		go func(id uuid.UUID) {
			defer wg.Done()
			defer func() { <-sem }()
			defer func() {
				if r := recover(); r != nil {
					mu.Lock()
					summary.Failed++
					summary.Errors = append(summary.Errors, fmt.Errorf("panic processing subscription %s: %v", id, r))
					mu.Unlock()
				}
			}()

			result, err := p.processOne(ctx, id, asOf)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				summary.Failed++
				summary.Errors = append(summary.Errors, fmt.Errorf("subscription %s: %w", id, err))
				p.logger.ErrorContext(ctx, "renewal item failed",
					slog.String("subscription_id", id.String()),
					slog.String("error", err.Error()))
				return
			}
			switch result {
			case outcomeRenewed:
				summary.Renewed++
			case outcomeCanceled:
				summary.Canceled++
			case outcomeFailed:
				summary.Failed++
			default:
				summary.Skipped++
			}
		}(sub.ID)
	}
	wg.Wait()

	p.logger.InfoContext(ctx, "renewal batch finished",
		slog.Time("as_of", asOf),
		slog.Int("due", summary.Due),
		slog.Int("renewed", summary.Renewed),
		slog.Int("canceled", summary.Canceled),
		slog.Int("failed", summary.Failed),
		slog.Int("skipped", summary.Skipped))

	return summary, nil
}

// chargeAttempt records the single gateway call made for one item during one
// tick. Conflict retries reuse it instead of charging again.
type chargeAttempt struct {
	done    bool
	charged int64
	result  *gateway.ChargeResult
}

// processOne renews a single subscription, retrying a bounded number of times
// when a concurrent writer wins the version race. The gateway is invoked at
// most once per item per tick: a retry re-applies only the ledger mutation
// against a fresh snapshot, never the charge itself.
func (p *Processor) processOne(ctx context.Context, id uuid.UUID, asOf time.Time) (outcome, error) {
	var (
		lastErr error
		charge  chargeAttempt
	)
	for attempt := 0; attempt <= p.cfg.ConflictRetries; attempt++ {
		sub, err := p.store.Get(ctx, id)
		if err != nil {
			return outcomeSkipped, err
		}

		result, err := p.renew(ctx, sub, asOf, &charge)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, subscription.ErrVersionConflict) {
			return outcomeSkipped, err
		}
		lastErr = err
	}
	return outcomeSkipped, fmt.Errorf("gave up after %d conflict retries: %w", p.cfg.ConflictRetries, lastErr)
}

// renew applies the renewal decision to one freshly loaded aggregate and
// commits it with a single Save.
func (p *Processor) renew(ctx context.Context, sub *subscription.Subscription, asOf time.Time, charge *chargeAttempt) (outcome, error) {
	if !eligible(sub, asOf) {
		// Already advanced by a previous run, paused, or otherwise out of scope.
		return outcomeSkipped, nil
	}

	now := p.clock()

	if !charge.done {
		if sub.CancelAtPeriodEnd {
			return p.cancelAtBoundary(ctx, sub, now)
		}

		creditAvailable := sub.AvailableCredit(now)
		charge.charged = sub.Amount - min(creditAvailable, sub.Amount)

		if charge.charged > 0 {
			res, err := p.gateway.Charge(ctx, gateway.ChargeRequest{
				SubscriptionID:   sub.ID,
				Amount:           charge.charged,
				Currency:         sub.Currency,
				PaymentMethodRef: sub.PaymentMethod.Ref,
			})
			if err != nil {
				// Transport fault with unknown outcome: treated as a failed attempt,
				// retried on the next tick like any decline.
				charge.result = &gateway.ChargeResult{
					Succeeded:      false,
					FailureCode:    "gateway_error",
					FailureMessage: err.Error(),
				}
			} else {
				charge.result = res
			}
		} else {
			// Fully covered by credit balance: no gateway call at all.
			charge.result = &gateway.ChargeResult{Succeeded: true}
		}
		charge.done = true
	}

	if charge.result.Succeeded {
		return p.commitSuccess(ctx, sub, now, charge.charged, charge.result)
	}
	return p.commitFailure(ctx, sub, now, asOf, charge.charged, charge.result)
}

func (p *Processor) cancelAtBoundary(ctx context.Context, sub *subscription.Subscription, now time.Time) (outcome, error) {
	if err := sub.MarkCanceled(now, "cancel at period end"); err != nil {
		return outcomeSkipped, err
	}
	if err := p.store.Save(ctx, sub); err != nil {
		return outcomeSkipped, err
	}
	p.logger.InfoContext(ctx, "subscription canceled at period end",
		slog.String("subscription_id", sub.ID.String()))
	return outcomeCanceled, nil
}

func (p *Processor) commitSuccess(ctx context.Context, sub *subscription.Subscription, now time.Time, charged int64, result *gateway.ChargeResult) (outcome, error) {
	applied := sub.ApplyCredit(now, sub.Amount-charged)
	if err := sub.RecordRenewalSuccess(now, charged, applied, result.TransactionRef); err != nil {
		return outcomeSkipped, err
	}
	if err := p.store.Save(ctx, sub); err != nil {
		return outcomeSkipped, err
	}

	if charged > 0 {
		tx := &subscription.PaymentTransaction{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			Type:           subscription.TransactionRenewal,
			Status:         subscription.TransactionSucceeded,
			Amount:         charged,
			Net:            charged,
			Currency:       sub.Currency,
			GatewayRef:     result.TransactionRef,
			ProcessedAt:    now,
			CreatedAt:      now,
		}
		if err := p.txs.Save(ctx, tx); err != nil {
			// The renewal itself committed; a transaction write failure is an
			// accounting gap to surface, not a reason to fail the item twice.
			p.logger.ErrorContext(ctx, "failed to record payment transaction",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("error", err.Error()))
		}
	}
	return outcomeRenewed, nil
}

func (p *Processor) commitFailure(ctx context.Context, sub *subscription.Subscription, now, asOf time.Time, attempted int64, result *gateway.ChargeResult) (outcome, error) {
	retryAt := asOf.Add(p.cfg.RetryBackoff)
	reason := result.FailureCode
	if result.FailureMessage != "" {
		reason = fmt.Sprintf("%s: %s", result.FailureCode, result.FailureMessage)
	}

	if err := sub.RecordRenewalFailure(now, attempted, reason, retryAt); err != nil {
		return outcomeSkipped, err
	}
	if err := p.store.Save(ctx, sub); err != nil {
		return outcomeSkipped, err
	}

	tx := &subscription.PaymentTransaction{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		Type:           subscription.TransactionRenewal,
		Status:         subscription.TransactionFailed,
		Amount:         attempted,
		Currency:       sub.Currency,
		FailureReason:  reason,
		ProcessedAt:    now,
		CreatedAt:      now,
	}
	if err := p.txs.Save(ctx, tx); err != nil {
		p.logger.ErrorContext(ctx, "failed to record payment transaction",
			slog.String("subscription_id", sub.ID.String()),
			slog.String("error", err.Error()))
	}
	return outcomeFailed, nil
}

// eligible re-checks the due condition against a freshly loaded aggregate.
// This is the idempotency core: a subscription advanced by an earlier partial
// run no longer satisfies it and is skipped.
func eligible(sub *subscription.Subscription, asOf time.Time) bool {
	switch sub.Status {
	case subscription.StatusActive, subscription.StatusTrialing:
		return !sub.NextBillingDate.After(asOf)
	case subscription.StatusPastDue:
		return sub.NextRetryAt != nil && !sub.NextRetryAt.After(asOf)
	default:
		// Paused and terminal subscriptions never bill.
		return false
	}
}
