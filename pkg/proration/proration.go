package proration

import (
	"time"

	"github.com/shopspring/decimal"
)

// Quote is the result of a mid-cycle price-change calculation.
// All monetary figures are in the smallest currency unit (cents).
type Quote struct {
	PeriodDays    int
	ElapsedDays   int
	RemainingDays int

	// UsedAmount is the consumed portion of the current period's price.
	UsedAmount int64
	// RemainingCredit is the unconsumed portion of the current period's price.
	RemainingCredit int64
	// NewPeriodAmount is the new price prorated over the remaining days.
	NewPeriodAmount int64
	// Delta is the net charge (positive) or credit (negative) for the change:
	// NewPeriodAmount - RemainingCredit.
	Delta int64
}

// Calculate computes the prorated charge or credit for changing a
// subscription's price mid-cycle.
//
// Day counts use whole days between the period bounds. The arithmetic runs on
// decimals and each reported figure is rounded to the cent exactly once at the
// end, half away from zero, so intermediate terms never compound rounding
// error.
//
// A call strictly after the period end charges the full new-period amount; a
// call exactly at the period end nets out to zero through the formula itself.
// A call before the period start is treated as a call at the period start.
func Calculate(periodStart, periodEnd time.Time, currentAmount, newAmount int64, now time.Time) Quote {
	periodDays := wholeDays(periodStart, periodEnd)
	if periodDays <= 0 {
		periodDays = 1
	}

	if now.After(periodEnd) {
		return Quote{
			PeriodDays:      periodDays,
			ElapsedDays:     periodDays,
			RemainingDays:   0,
			UsedAmount:      currentAmount,
			RemainingCredit: 0,
			NewPeriodAmount: newAmount,
			Delta:           newAmount,
		}
	}
	if now.Before(periodStart) {
		now = periodStart
	}

	elapsed := wholeDays(periodStart, now)
	if elapsed > periodDays {
		elapsed = periodDays
	}
	remaining := periodDays - elapsed

	period := decimal.NewFromInt(int64(periodDays))
	current := decimal.NewFromInt(currentAmount)
	next := decimal.NewFromInt(newAmount)

	used := current.Mul(decimal.NewFromInt(int64(elapsed))).Div(period)
	remainingCredit := current.Sub(used)
	newPeriodAmount := next.Mul(decimal.NewFromInt(int64(remaining))).Div(period)
	delta := newPeriodAmount.Sub(remainingCredit)

	return Quote{
		PeriodDays:      periodDays,
		ElapsedDays:     elapsed,
		RemainingDays:   remaining,
		UsedAmount:      roundCents(used),
		RemainingCredit: roundCents(remainingCredit),
		NewPeriodAmount: roundCents(newPeriodAmount),
		Delta:           roundCents(delta),
	}
}

// wholeDays returns the number of whole days between from and to.
func wholeDays(from, to time.Time) int {
	return int(to.Sub(from) / (24 * time.Hour))
}

// roundCents rounds to the smallest currency unit, half away from zero.
func roundCents(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}
