package analytics

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

// MonthLabelLayout renders series labels such as "Mar 2025".
const MonthLabelLayout = "Jan 2006"

// TimeRange is the analytics window picked in the UI.
type TimeRange string

const (
	Range3Months TimeRange = "3m"
	Range6Months TimeRange = "6m"
	Range1Year   TimeRange = "1y"

	DefaultTimeRange = Range3Months
)

// ParseTimeRange accepts "3m", "6m" and "1y". An empty string is the default range.
func ParseTimeRange(s string) (TimeRange, error) {
	switch TimeRange(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultTimeRange, nil
	case Range3Months:
		return Range3Months, nil
	case Range6Months:
		return Range6Months, nil
	case Range1Year, "12m":
		return Range1Year, nil
	default:
		return "", fmt.Errorf("invalid time range %q (want 3m, 6m or 1y)", s)
	}
}

// Months returns the number of calendar months the range covers.
func (r TimeRange) Months() int {
	switch r {
	case Range6Months:
		return 6
	case Range1Year:
		return 12
	default:
		return 3
	}
}

// MonthPoint is one entry of a monthly series.
type MonthPoint struct {
	Label string
	Month time.Time // first day of the month, UTC
	Total decimal.Decimal
}

// trailingMonths returns the first day of each of the n months ending with
// the month containing now, oldest first.
func trailingMonths(n int, now time.Time) []time.Time {
	if n <= 0 {
		return nil
	}
	y, m, _ := now.Date()
	out := make([]time.Time, n)
	for i := 0; i < n; i++ {
		out[i] = time.Date(y, m-time.Month(n-1-i), 1, 0, 0, 0, 0, time.UTC)
	}
	return out
}

// MonthlySeries returns n entries for the trailing months ending at the month
// of now. Every entry carries the present monthly total: the series shows
// today's run rate across the window, not reconstructed history.
func MonthlySeries(subs []core.Subscription, n int, now time.Time) []MonthPoint {
	months := trailingMonths(n, now)
	total := MonthlyTotal(subs)
	out := make([]MonthPoint, 0, len(months))
	for _, month := range months {
		out = append(out, MonthPoint{
			Label: month.Format(MonthLabelLayout),
			Month: month,
			Total: total,
		})
	}
	return out
}

// HistoricalSeries is like MonthlySeries but each month only counts records
// whose start date is on or before the last day of that month.
func HistoricalSeries(subs []core.Subscription, n int, now time.Time) []MonthPoint {
	months := trailingMonths(n, now)
	out := make([]MonthPoint, 0, len(months))
	for _, month := range months {
		monthEnd := month.AddDate(0, 1, -1)
		active := make([]core.Subscription, 0, len(subs))
		for _, s := range subs {
			if !s.StartDate.After(monthEnd) {
				active = append(active, s)
			}
		}
		out = append(out, MonthPoint{
			Label: month.Format(MonthLabelLayout),
			Month: month,
			Total: MonthlyTotal(active),
		})
	}
	return out
}
