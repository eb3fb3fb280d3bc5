package billingissue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Config holds the detector's tunables.
type Config struct {
	// CardExpiryLookahead is how far ahead of a payment method's expiry the
	// detector starts flagging it.
	CardExpiryLookahead time.Duration `env:"ISSUE_CARD_EXPIRY_LOOKAHEAD" envDefault:"168h"`
}

func (c Config) withDefaults() Config {
	if c.CardExpiryLookahead <= 0 {
		c.CardExpiryLookahead = 7 * 24 * time.Hour
	}
	return c
}

// Detector scans subscriptions for billing anomalies and raises deduplicated
// issue records. It is idempotent by construction: every creation is preceded
// by an open-issue query for the same (subscription, type) pair, so repeated
// runs against unchanged state create nothing new. The detector never
// auto-resolves issues; resolution is an explicit operation.
type Detector struct {
	subs   subscription.Store
	issues Store
	cfg    Config
	clock  func() time.Time
	logger *slog.Logger
}

// NewDetector creates a billing issue detector.
// Panics if required dependencies are nil to fail fast during initialization.
func NewDetector(subs subscription.Store, issues Store, cfg Config, opts ...Option) *Detector {
	if subs == nil {
		panic("billingissue: subscription store is required")
	}
	if issues == nil {
		panic("billingissue: issue store is required")
	}

	d := &Detector{
		subs:   subs,
		issues: issues,
		cfg:    cfg.withDefaults(),
		clock:  func() time.Time { return time.Now().UTC() },
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Summary reports the outcome of one detection run.
type Summary struct {
	Scanned int
	Raised  int
	Skipped int
	Errors  []error
}

// RunIssueDetection scans billable subscriptions as of the given time.
// Per-item failures are recorded and never abort the run.
func (d *Detector) RunIssueDetection(ctx context.Context, asOf time.Time) (Summary, error) {
	subs, err := d.subs.List(ctx, subscription.Filter{
		Statuses: []subscription.Status{
			subscription.StatusTrialing,
			subscription.StatusActive,
			subscription.StatusPastDue,
			subscription.StatusPaused,
		},
	})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list subscriptions: %w", err)
	}

	summary := Summary{Scanned: len(subs)}
	for _, sub := range subs {
		raised, err := d.inspect(ctx, sub, asOf)
		if err != nil {
			summary.Errors = append(summary.Errors, fmt.Errorf("subscription %s: %w", sub.ID, err))
			d.logger.ErrorContext(ctx, "issue detection failed for subscription",
				slog.String("subscription_id", sub.ID.String()),
				slog.String("error", err.Error()))
			continue
		}
		summary.Raised += raised
		if raised == 0 {
			summary.Skipped++
		}
	}

	d.logger.InfoContext(ctx, "issue detection finished",
		slog.Time("as_of", asOf),
		slog.Int("scanned", summary.Scanned),
		slog.Int("raised", summary.Raised),
		slog.Int("errors", len(summary.Errors)))

	return summary, nil
}

func (d *Detector) inspect(ctx context.Context, sub *subscription.Subscription, asOf time.Time) (int, error) {
	raised := 0

	if sub.PaymentMethod.ExpiresWithin(asOf, d.cfg.CardExpiryLookahead) {
		created, err := d.raise(ctx, sub.ID, TypeCardExpiring, fmt.Sprintf(
			"payment method %s •••• %s expires %02d/%d",
			sub.PaymentMethod.Brand, sub.PaymentMethod.Last4,
			sub.PaymentMethod.ExpMonth, sub.PaymentMethod.ExpYear))
		if err != nil {
			return raised, err
		}
		if created {
			raised++
		}
	}

	if latest := sub.LatestRenewal(); latest != nil &&
		latest.PaymentStatus == subscription.PaymentFailed &&
		latest.NextRetryAt != nil && latest.NextRetryAt.Before(asOf) {
		created, err := d.raise(ctx, sub.ID, TypeRenewalOverdue, fmt.Sprintf(
			"renewal failed (%s) and retry scheduled for %s has passed",
			latest.FailureReason, latest.NextRetryAt.Format(time.RFC3339)))
		if err != nil {
			return raised, err
		}
		if created {
			raised++
		}
	}

	return raised, nil
}

// raise creates an open issue unless one already exists for the pair.
func (d *Detector) raise(ctx context.Context, subID uuid.UUID, issueType Type, message string) (bool, error) {
	_, err := d.issues.FindOpen(ctx, subID, issueType)
	if err == nil {
		return false, nil // already tracked
	}
	if !errors.Is(err, ErrIssueNotFound) {
		return false, err
	}

	now := d.clock()
	issue := &Issue{
		ID:             uuid.New(),
		SubscriptionID: subID,
		Type:           issueType,
		Status:         StatusOpen,
		Message:        message,
		CreatedAt:      now,
	}
	if err := d.issues.Save(ctx, issue); err != nil {
		return false, err
	}

	d.logger.InfoContext(ctx, "billing issue raised",
		slog.String("subscription_id", subID.String()),
		slog.String("type", string(issueType)))
	return true, nil
}

// Resolve closes an open issue with a resolution note. Resolved issues are
// retained for history.
func (d *Detector) Resolve(ctx context.Context, issueID uuid.UUID, note string) error {
	issue, err := d.issues.Get(ctx, issueID)
	if err != nil {
		return err
	}
	if !issue.Open() {
		return ErrIssueAlreadyResolved
	}

	now := d.clock()
	issue.Status = StatusResolved
	issue.ResolvedAt = &now
	issue.ResolutionSteps = append(issue.ResolutionSteps, ResolutionStep{Note: note, At: now})

	return d.issues.Save(ctx, issue)
}
