package analytics

import (
	"sort"
	"time"

	"subtrack/internal/core"
)

// DefaultRenewalWindowDays is the lookahead used when none is configured.
const DefaultRenewalWindowDays = 7

// Renewal is a subscription with its next projected charge date.
type Renewal struct {
	Subscription core.Subscription
	RenewsOn     core.Date
	DaysUntil    int
}

// NextRenewal projects the first anniversary of s.StartDate strictly after
// the start date and on or after the calendar day of now. Every candidate is
// computed from the start date itself, so a 31st keeps returning to the 31st
// in long months. It reports false when the frequency is unknown.
func NextRenewal(s core.Subscription, now time.Time) (core.Date, bool) {
	cycle, err := GetBillingCycle(s.Frequency)
	if err != nil || s.StartDate.IsZero() {
		return core.Date{}, false
	}
	today := core.DateOf(now)
	period := cycle.PeriodMonths()

	// Jump close to today, then walk forward.
	k := 1
	if s.StartDate.Before(today.Time) {
		elapsed := (today.Year()-s.StartDate.Year())*12 + int(today.Month()) - int(s.StartDate.Month())
		if guess := elapsed/period - 1; guess > k {
			k = guess
		}
	}
	for {
		candidate := addMonthsClamped(s.StartDate, k*period)
		if !candidate.Before(today.Time) {
			return candidate, true
		}
		k++
	}
}

// UpcomingRenewals returns the records whose next renewal falls within
// [day(now), day(now)+windowDays], both ends inclusive. Results are ordered
// by renewal date, then by start date, then by input order. A negative window
// returns nothing.
func UpcomingRenewals(subs []core.Subscription, windowDays int, now time.Time) []Renewal {
	out := make([]Renewal, 0)
	if windowDays < 0 {
		return out
	}
	today := core.DateOf(now)
	horizon := today.AddDate(0, 0, windowDays)
	for _, s := range subs {
		next, ok := NextRenewal(s, now)
		if !ok || next.After(horizon) {
			continue
		}
		out = append(out, Renewal{
			Subscription: s,
			RenewsOn:     next,
			DaysUntil:    today.DaysUntil(next),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].RenewsOn.Equal(out[j].RenewsOn.Time) {
			return out[i].RenewsOn.Before(out[j].RenewsOn.Time)
		}
		return out[i].Subscription.StartDate.Before(out[j].Subscription.StartDate.Time)
	})
	return out
}
