package sheets

import (
	"time"

	"subtrack/internal/analytics"
	"subtrack/internal/core"
)

// Header is the first row of a published table.
var Header = []string{"Name", "Category", "Billing", "Amount", "Monthly", "Start date", "Next renewal"}

// Rows renders subs as a table: the header, one row per subscription, a blank
// separator, the totals and the category breakdown.
func Rows(subs []core.Subscription, now time.Time) [][]string {
	rows := make([][]string, 0, len(subs)+8)
	rows = append(rows, Header)

	for _, s := range subs {
		next := ""
		if d, ok := analytics.NextRenewal(s, now); ok {
			next = d.String()
		}
		rows = append(rows, []string{
			s.Name,
			string(s.Category),
			string(s.Frequency),
			s.Amount.Decimal().StringFixed(2),
			analytics.MonthlyEquivalent(s).StringFixed(2),
			s.StartDate.String(),
			next,
		})
	}

	rows = append(rows,
		[]string{},
		[]string{"Monthly total", analytics.MonthlyTotal(subs).StringFixed(2)},
		[]string{"Annual total", analytics.AnnualTotal(subs).StringFixed(2)},
		[]string{},
		[]string{"Category", "Monthly", "Share %"},
	)
	for _, c := range analytics.CategoryBreakdown(subs) {
		rows = append(rows, []string{string(c.Category), c.Amount.StringFixed(2), c.Percentage.StringFixed(2)})
	}
	return rows
}
