package analytics

import (
	"testing"
	"time"

	"subtrack/internal/core"
)

func TestNextRenewal(t *testing.T) {
	tests := []struct {
		name  string
		start core.Date
		freq  core.BillingFrequency
		now   time.Time
		want  core.Date
	}{
		{"monthly later this month", core.NewDate(2024, 1, 20), core.Monthly,
			time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC), core.NewDate(2024, 5, 20)},
		{"monthly renews today", core.NewDate(2024, 1, 10), core.Monthly,
			time.Date(2024, 5, 10, 23, 59, 0, 0, time.UTC), core.NewDate(2024, 5, 10)},
		{"monthly already passed this month", core.NewDate(2024, 1, 5), core.Monthly,
			time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), core.NewDate(2024, 6, 5)},
		{"31st clamps in february", core.NewDate(2024, 1, 31), core.Monthly,
			time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC), core.NewDate(2024, 2, 29)},
		{"31st returns to 31st", core.NewDate(2024, 1, 31), core.Monthly,
			time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), core.NewDate(2024, 3, 31)},
		{"leap day annual", core.NewDate(2024, 2, 29), core.Annually,
			time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), core.NewDate(2025, 2, 28)},
		{"annual next year", core.NewDate(2020, 7, 1), core.Annually,
			time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC), core.NewDate(2025, 7, 1)},
		{"start today renews next period", core.NewDate(2024, 5, 10), core.Monthly,
			time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC), core.NewDate(2024, 6, 10)},
		{"future start", core.NewDate(2024, 9, 1), core.Monthly,
			time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC), core.NewDate(2024, 10, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sub("x", 100, tt.freq, core.Other, tt.start)
			got, ok := NextRenewal(s, tt.now)
			if !ok {
				t.Fatal("NextRenewal() reported no renewal")
			}
			if got != tt.want {
				t.Errorf("NextRenewal() = %s, want %s", got, tt.want)
			}
		})
	}

	if _, ok := NextRenewal(sub("x", 100, "weekly", core.Other, core.NewDate(2024, 1, 1)), time.Now()); ok {
		t.Error("NextRenewal() with invalid frequency should report false")
	}
}

func TestUpcomingRenewals(t *testing.T) {
	now := time.Date(2024, 5, 10, 15, 0, 0, 0, time.UTC)
	subs := []core.Subscription{
		sub("late-start-early-renewal", 100, core.Monthly, core.Other, core.NewDate(2024, 4, 12)),
		sub("edge", 100, core.Monthly, core.Other, core.NewDate(2023, 12, 17)),
		sub("outside", 100, core.Monthly, core.Other, core.NewDate(2024, 1, 18)),
		sub("early-start-late-renewal", 100, core.Annually, core.Other, core.NewDate(2020, 5, 15)),
		sub("today", 100, core.Monthly, core.Other, core.NewDate(2024, 2, 10)),
		sub("broken", 100, "", core.Other, core.NewDate(2024, 2, 11)),
	}

	got := UpcomingRenewals(subs, DefaultRenewalWindowDays, now)
	want := []struct {
		id   string
		on   core.Date
		days int
	}{
		{"today", core.NewDate(2024, 5, 10), 0},
		{"late-start-early-renewal", core.NewDate(2024, 5, 12), 2},
		{"early-start-late-renewal", core.NewDate(2024, 5, 15), 5},
		{"edge", core.NewDate(2024, 5, 17), 7},
	}
	if len(got) != len(want) {
		t.Fatalf("UpcomingRenewals() returned %d, want %d: %+v", len(got), len(want), got)
	}
	for i, w := range want {
		if got[i].Subscription.ID != w.id || got[i].RenewsOn != w.on || got[i].DaysUntil != w.days {
			t.Errorf("entry %d = {%s %s %d}, want {%s %s %d}",
				i, got[i].Subscription.ID, got[i].RenewsOn, got[i].DaysUntil, w.id, w.on, w.days)
		}
	}

	horizon := core.DateOf(now).AddDate(0, 0, DefaultRenewalWindowDays)
	for _, r := range got {
		if r.RenewsOn.Before(core.DateOf(now).Time) || r.RenewsOn.After(horizon) {
			t.Errorf("%s renews on %s outside window", r.Subscription.ID, r.RenewsOn)
		}
	}
}

func TestUpcomingRenewalsTieBreak(t *testing.T) {
	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	subs := []core.Subscription{
		sub("newer", 100, core.Monthly, core.Other, core.NewDate(2024, 3, 12)),
		sub("older", 100, core.Annually, core.Other, core.NewDate(2022, 5, 12)),
	}
	got := UpcomingRenewals(subs, 3, now)
	if len(got) != 2 || got[0].Subscription.ID != "older" {
		t.Fatalf("UpcomingRenewals() = %+v, want older first", got)
	}
}

func TestUpcomingRenewalsEmpty(t *testing.T) {
	now := time.Now()
	if got := UpcomingRenewals(nil, 7, now); got == nil || len(got) != 0 {
		t.Errorf("UpcomingRenewals(nil) = %#v", got)
	}
	if got := UpcomingRenewals(musicAndShopping(), -1, now); len(got) != 0 {
		t.Errorf("negative window returned %d", len(got))
	}
}
