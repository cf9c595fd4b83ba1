// Package analytics aggregates subscription records into spending views.
//
// This file implements the Strategy Pattern for billing frequencies. Each
// frequency has a BillingCycle that knows how to normalise an amount and how
// long one period lasts.
package analytics

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

var twelve = decimal.NewFromInt(12)

// BillingCycle is the strategy interface for a billing frequency.
type BillingCycle interface {
	// MonthlyEquivalent normalises one charge to a per-month amount.
	MonthlyEquivalent(amount decimal.Decimal) decimal.Decimal
	// AnnualEquivalent normalises one charge to a per-year amount.
	AnnualEquivalent(amount decimal.Decimal) decimal.Decimal
	// PeriodMonths is the length of one billing period in calendar months.
	PeriodMonths() int
}

// MonthlyCycle charges every calendar month.
type MonthlyCycle struct{}

func (MonthlyCycle) MonthlyEquivalent(amount decimal.Decimal) decimal.Decimal { return amount }

func (MonthlyCycle) AnnualEquivalent(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(twelve)
}

func (MonthlyCycle) PeriodMonths() int { return 1 }

// AnnualCycle charges once a year on the start date anniversary.
type AnnualCycle struct{}

func (AnnualCycle) MonthlyEquivalent(amount decimal.Decimal) decimal.Decimal {
	return amount.Div(twelve)
}

func (AnnualCycle) AnnualEquivalent(amount decimal.Decimal) decimal.Decimal { return amount }

func (AnnualCycle) PeriodMonths() int { return 12 }

var (
	cyclesMu sync.RWMutex
	cycles   = map[core.BillingFrequency]BillingCycle{
		core.Monthly:  MonthlyCycle{},
		core.Annually: AnnualCycle{},
	}
)

// GetBillingCycle returns the cycle registered for a frequency.
func GetBillingCycle(frequency core.BillingFrequency) (BillingCycle, error) {
	cyclesMu.RLock()
	defer cyclesMu.RUnlock()
	cycle, ok := cycles[frequency]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrInvalidFrequency, frequency)
	}
	return cycle, nil
}

// RegisterBillingCycle adds or replaces the cycle for a frequency.
func RegisterBillingCycle(frequency core.BillingFrequency, cycle BillingCycle) {
	cyclesMu.Lock()
	defer cyclesMu.Unlock()
	cycles[frequency] = cycle
}

// addMonthsClamped moves d forward by n calendar months, clamping the day to
// the last day of the target month (Jan 31 + 1 -> Feb 28/29).
func addMonthsClamped(d core.Date, n int) core.Date {
	y, m, day := d.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(first.Year(), first.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		day = last
	}
	return core.NewDate(first.Year(), int(first.Month()), day)
}
