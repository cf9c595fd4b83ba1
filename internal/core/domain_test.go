package core

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDateValidate(t *testing.T) {
	cases := []struct {
		d  Date
		ok bool
	}{
		{NewDate(2025, 1, 1), true},
		{NewDate(2025, 12, 31), true},
		{Date{Time: time.Time{}}, false}, // zero time
	}
	for i, tc := range cases {
		err := tc.d.Validate()
		if tc.ok && err != nil {
			t.Fatalf("case %d expected ok, got %v", i, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d != NewDate(2024, 2, 29) {
		t.Fatalf("got %v", d)
	}
	d, err = ParseDate("2024-03-01T22:15:00Z")
	if err != nil || d != NewDate(2024, 3, 1) {
		t.Fatalf("timestamp: got %v, err=%v", d, err)
	}
	if _, err := ParseDate("01/03/2024"); !errors.Is(err, ErrInvalidDate) {
		t.Fatalf("expected ErrInvalidDate, got %v", err)
	}
}

func TestDateDaysUntil(t *testing.T) {
	if got := NewDate(2024, 2, 27).DaysUntil(NewDate(2024, 3, 2)); got != 4 {
		t.Errorf("DaysUntil() = %d, want 4", got)
	}
}

func TestMoneyValidate(t *testing.T) {
	if err := (Money{Cents: 1}).Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := (Money{Cents: 0}).Validate(); err != nil {
		t.Fatalf("zero should be allowed, got %v", err)
	}
	if err := (Money{Cents: -1}).Validate(); err == nil {
		t.Fatalf("expected error for negative")
	}
}

func TestParseBillingFrequency(t *testing.T) {
	tests := []struct {
		in   string
		want BillingFrequency
		ok   bool
	}{
		{"monthly", Monthly, true},
		{" Monthly ", Monthly, true},
		{"annually", Annually, true},
		{"yearly", Annually, true},
		{"weekly", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseBillingFrequency(tt.in)
			if tt.ok && (err != nil || got != tt.want) {
				t.Errorf("ParseBillingFrequency(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidFrequency) {
				t.Errorf("ParseBillingFrequency(%q) error = %v, want ErrInvalidFrequency", tt.in, err)
			}
		})
	}
}

func TestSubscriptionValidate(t *testing.T) {
	good := Subscription{
		Name:      "Spotify",
		Amount:    Money{Cents: 999},
		Frequency: Monthly,
		StartDate: NewDate(2025, 1, 1),
		Category:  Music,
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Subscription)
		want   error
	}{
		{"empty name", func(s *Subscription) { s.Name = "  " }, ErrEmptyName},
		{"long name", func(s *Subscription) { s.Name = strings.Repeat("x", 101) }, ErrNameTooLong},
		{"negative amount", func(s *Subscription) { s.Amount = Money{Cents: -5} }, ErrInvalidAmount},
		{"bad frequency", func(s *Subscription) { s.Frequency = "weekly" }, ErrInvalidFrequency},
		{"bad category", func(s *Subscription) { s.Category = "Pets" }, ErrInvalidCategory},
		{"zero start", func(s *Subscription) { s.StartDate = Date{} }, ErrInvalidDate},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := good
			tt.mutate(&sub)
			err := sub.Validate()
			if !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
			if !IsValidationError(err) {
				t.Errorf("IsValidationError(%v) = false", err)
			}
		})
	}
}

func TestSubscriptionValidateNameLengthCountsCharacters(t *testing.T) {
	sub := Subscription{
		Amount:    Money{Cents: 999},
		Frequency: Monthly,
		StartDate: NewDate(2025, 1, 1),
		Category:  Music,
	}

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"40 multibyte", strings.Repeat("音", 40), nil},
		{"100 multibyte", strings.Repeat("音", 100), nil},
		{"101 multibyte", strings.Repeat("音", 101), ErrNameTooLong},
		{"100 emoji", strings.Repeat("🎵", 100), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sub
			s.Name = tt.in
			if err := s.Validate(); !errors.Is(err, tt.want) {
				t.Errorf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in   string
		want Category
		ok   bool
	}{
		{"", Other, true},
		{"music", Music, true},
		{"Health & Fitness", HealthFitness, true},
		{"cloud storage", CloudStorage, true},
		{"Pets", "", false},
	}
	for _, tt := range tests {
		got, err := ParseCategory(tt.in)
		if tt.ok && (err != nil || got != tt.want) {
			t.Errorf("ParseCategory(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
		if !tt.ok && !errors.Is(err, ErrInvalidCategory) {
			t.Errorf("ParseCategory(%q) error = %v", tt.in, err)
		}
	}
}

func TestCategoryNormalize(t *testing.T) {
	if got := Category("").Normalize(); got != Other {
		t.Errorf("empty.Normalize() = %q", got)
	}
	if got := Category("Pets").Normalize(); got != Other {
		t.Errorf("unknown.Normalize() = %q", got)
	}
	if got := Gaming.Normalize(); got != Gaming {
		t.Errorf("Gaming.Normalize() = %q", got)
	}
	if n := len(Categories()); n != 10 {
		t.Errorf("Categories() has %d entries, want 10", n)
	}
}
