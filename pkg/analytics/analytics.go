package analytics

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dmitrymomot/billingkit/pkg/catalog"
	"github.com/dmitrymomot/billingkit/pkg/subscription"
)

// Aggregator derives revenue and lifecycle metrics from the subscription
// ledger and transaction history. It holds read access only: every figure is
// recomputed on demand from current state and is never written back; the
// report is a view, not a source of truth.
type Aggregator struct {
	subs subscription.Store
	txs  subscription.TransactionStore
}

// New creates an analytics aggregator over the given stores.
func New(subs subscription.Store, txs subscription.TransactionStore) *Aggregator {
	if subs == nil {
		panic("analytics: subscription store is required")
	}
	if txs == nil {
		panic("analytics: transaction store is required")
	}
	return &Aggregator{subs: subs, txs: txs}
}

// Revenue aggregates the transaction history in cents.
type Revenue struct {
	Gross   int64
	Refunds int64
	Fees    int64
	Net     int64
}

// Cohort is one signup month's retention snapshot.
type Cohort struct {
	Month         string // YYYY-MM
	Signups       int
	StillActive   int
	RetentionRate float64
}

// MonthlyPoint is one month of a projected series.
type MonthlyPoint struct {
	Month string // YYYY-MM
	MRR   decimal.Decimal
}

// Report is a point-in-time derived view over the ledger.
type Report struct {
	GeneratedAt time.Time

	Total                  int
	StatusCounts           map[subscription.Status]int
	TierCounts             map[catalog.Tier]int
	CycleCounts            map[catalog.BillingCycle]int
	ActiveTrials           int
	CancelAtPeriodEndCount int

	// MRR normalizes recurring revenue to a monthly figure in cents:
	// monthly amounts as-is plus yearly amounts divided by twelve.
	MRR decimal.Decimal
	ARR decimal.Decimal

	// ChurnRate is the fraction of all subscriptions that reached canceled.
	ChurnRate float64

	Revenue Revenue
	Cohorts []Cohort

	// ForecastMRR is a naive trailing-growth projection. It is an estimate
	// derived from the cohort series, not an authoritative figure.
	ForecastMRR []MonthlyPoint
}

// countsTowardMRR reports whether a status contributes committed recurring
// revenue. Past-due subscriptions are excluded until they recover.
func countsTowardMRR(s subscription.Status) bool {
	return s == subscription.StatusActive || s == subscription.StatusTrialing
}

// Build computes a full report as of now.
func (a *Aggregator) Build(ctx context.Context, now time.Time) (*Report, error) {
	subs, err := a.subs.List(ctx, subscription.Filter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	txs, err := a.txs.List(ctx, subscription.TransactionFilter{})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	report := &Report{
		GeneratedAt:  now,
		Total:        len(subs),
		StatusCounts: make(map[subscription.Status]int),
		TierCounts:   make(map[catalog.Tier]int),
		CycleCounts:  make(map[catalog.BillingCycle]int),
		MRR:          decimal.Zero,
	}

	canceled := 0
	twelve := decimal.NewFromInt(12)
	for _, sub := range subs {
		report.StatusCounts[sub.Status]++
		report.TierCounts[sub.Tier]++
		report.CycleCounts[sub.BillingCycle]++

		if sub.IsTrialing() {
			report.ActiveTrials++
		}
		if sub.CancelAtPeriodEnd && !sub.IsCanceled() {
			report.CancelAtPeriodEndCount++
		}
		if sub.IsCanceled() {
			canceled++
		}

		if countsTowardMRR(sub.Status) {
			amount := decimal.NewFromInt(sub.Amount)
			if sub.BillingCycle == catalog.BillingCycleYearly {
				amount = amount.Div(twelve)
			}
			report.MRR = report.MRR.Add(amount)
		}
	}
	report.ARR = report.MRR.Mul(twelve)

	if report.Total > 0 {
		report.ChurnRate = float64(canceled) / float64(report.Total)
	}

	report.Revenue = buildRevenue(txs)
	report.Cohorts = buildCohorts(subs)
	report.ForecastMRR = forecast(report.MRR, now, 6)

	return report, nil
}

func buildRevenue(txs []*subscription.PaymentTransaction) Revenue {
	var rev Revenue
	for _, tx := range txs {
		switch {
		case tx.Type == subscription.TransactionRefund:
			rev.Refunds += tx.Amount
		case tx.Status == subscription.TransactionSucceeded:
			rev.Gross += tx.Amount
			rev.Fees += tx.Fee
		}
	}
	rev.Net = rev.Gross - rev.Refunds - rev.Fees
	return rev
}

func buildCohorts(subs []*subscription.Subscription) []Cohort {
	byMonth := make(map[string]*Cohort)
	for _, sub := range subs {
		month := sub.CreatedAt.Format("2006-01")
		cohort, ok := byMonth[month]
		if !ok {
			cohort = &Cohort{Month: month}
			byMonth[month] = cohort
		}
		cohort.Signups++
		if !sub.IsCanceled() {
			cohort.StillActive++
		}
	}

	months := make([]string, 0, len(byMonth))
	for month := range byMonth {
		months = append(months, month)
	}
	sort.Strings(months)

	cohorts := make([]Cohort, 0, len(months))
	for _, month := range months {
		cohort := byMonth[month]
		if cohort.Signups > 0 {
			cohort.RetentionRate = float64(cohort.StillActive) / float64(cohort.Signups)
		}
		cohorts = append(cohorts, *cohort)
	}
	return cohorts
}

// forecast projects MRR forward assuming flat growth. Deliberately naive:
// anything smarter belongs to a reporting system with real trend inputs.
func forecast(mrr decimal.Decimal, from time.Time, months int) []MonthlyPoint {
	points := make([]MonthlyPoint, 0, months)
	for i := 1; i <= months; i++ {
		month := from.AddDate(0, i, 0)
		points = append(points, MonthlyPoint{
			Month: month.Format("2006-01"),
			MRR:   mrr,
		})
	}
	return points
}
