package analytics

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

var hundred = decimal.NewFromInt(100)

// CategorySpend is one row of the category breakdown.
type CategorySpend struct {
	Category core.Category
	// Amount is the monthly-equivalent spend of the group.
	Amount decimal.Decimal
	// Percentage is the group's share of the monthly total, 0..100. It is
	// zero for every group when the total is zero.
	Percentage decimal.Decimal
}

// Summary bundles the dashboard views computed from one record set.
type Summary struct {
	MonthlyTotal decimal.Decimal
	AnnualTotal  decimal.Decimal
	Count        int
	Categories   []CategorySpend
	Upcoming     []Renewal
}

// annualEquivalent returns the per-year amount of one record. Records whose
// frequency has no registered cycle contribute zero.
func annualEquivalent(s core.Subscription) decimal.Decimal {
	cycle, err := GetBillingCycle(s.Frequency)
	if err != nil {
		return decimal.Zero
	}
	return cycle.AnnualEquivalent(s.Amount.Decimal())
}

// MonthlyEquivalent returns the per-month amount of one record, zero for an
// unknown frequency.
func MonthlyEquivalent(s core.Subscription) decimal.Decimal {
	cycle, err := GetBillingCycle(s.Frequency)
	if err != nil {
		return decimal.Zero
	}
	return cycle.MonthlyEquivalent(s.Amount.Decimal())
}

// AnnualTotal is the sum of every record's annual-equivalent amount.
func AnnualTotal(subs []core.Subscription) decimal.Decimal {
	total := decimal.Zero
	for _, s := range subs {
		total = total.Add(annualEquivalent(s))
	}
	return total
}

// MonthlyTotal is the sum of every record's monthly-equivalent amount.
//
// Computed as AnnualTotal / 12, so AnnualTotal == 12 * MonthlyTotal holds exactly.
func MonthlyTotal(subs []core.Subscription) decimal.Decimal {
	return AnnualTotal(subs).Div(twelve)
}

// CategoryBreakdown groups records by category (missing or unknown -> Other)
// and sums their monthly-equivalent amounts. Rows are ordered by amount
// descending; equal amounts keep first-encountered order.
func CategoryBreakdown(subs []core.Subscription) []CategorySpend {
	annual := make(map[core.Category]decimal.Decimal)
	order := make([]core.Category, 0)
	total := decimal.Zero
	for _, s := range subs {
		c := s.Category.Normalize()
		if _, seen := annual[c]; !seen {
			annual[c] = decimal.Zero
			order = append(order, c)
		}
		a := annualEquivalent(s)
		annual[c] = annual[c].Add(a)
		total = total.Add(a)
	}

	out := make([]CategorySpend, 0, len(order))
	for _, c := range order {
		pct := decimal.Zero
		if !total.IsZero() {
			pct = annual[c].Mul(hundred).Div(total)
		}
		out = append(out, CategorySpend{
			Category:   c,
			Amount:     annual[c].Div(twelve),
			Percentage: pct,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Amount.GreaterThan(out[j].Amount)
	})
	return out
}

// Summarize computes totals, the category breakdown and the renewals due in
// the next windowDays days.
func Summarize(subs []core.Subscription, windowDays int, now time.Time) Summary {
	return Summary{
		MonthlyTotal: MonthlyTotal(subs),
		AnnualTotal:  AnnualTotal(subs),
		Count:        len(subs),
		Categories:   CategoryBreakdown(subs),
		Upcoming:     UpcomingRenewals(subs, windowDays, now),
	}
}
