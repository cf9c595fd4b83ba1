// Package export serialises a user's subscriptions to portable files.
//
// The JSON dump keeps the column names of the hosted database so that a dump
// taken from the mobile client and one taken from this service are
// interchangeable.
package export

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"subtrack/internal/core"
)

// Record is one subscription row as it appears in a dump.
type Record struct {
	ID               string      `json:"id"`
	UserID           string      `json:"user_id"`
	Name             string      `json:"name"`
	Amount           json.Number `json:"amount"`
	BillingFrequency string      `json:"billing_frequency"`
	StartDate        string      `json:"start_date"`
	Category         string      `json:"category"`
	CreatedAt        string      `json:"created_at"`
	UpdatedAt        string      `json:"updated_at"`
}

// Dump is the top-level export document.
type Dump struct {
	ExportDate    time.Time `json:"exportDate"`
	Subscriptions []Record  `json:"subscriptions"`
}

// NewDump builds a dump of subs stamped with now.
func NewDump(subs []core.Subscription, now time.Time) Dump {
	records := make([]Record, 0, len(subs))
	for _, s := range subs {
		records = append(records, FromSubscription(s))
	}
	return Dump{ExportDate: now.UTC(), Subscriptions: records}
}

func FromSubscription(s core.Subscription) Record {
	return Record{
		ID:               s.ID,
		UserID:           s.UserID,
		Name:             s.Name,
		Amount:           json.Number(s.Amount.Decimal().StringFixed(2)),
		BillingFrequency: string(s.Frequency),
		StartDate:        s.StartDate.String(),
		Category:         string(s.Category),
		CreatedAt:        formatTimestamp(s.CreatedAt),
		UpdatedAt:        formatTimestamp(s.UpdatedAt),
	}
}

// Subscription converts a record back into the domain type. A missing amount
// is zero and an empty category becomes Other; unknown categories are rejected.
func (r Record) Subscription() (core.Subscription, error) {
	amount := decimal.Zero
	if r.Amount != "" {
		var err error
		amount, err = decimal.NewFromString(r.Amount.String())
		if err != nil || amount.IsNegative() {
			return core.Subscription{}, fmt.Errorf("record %s: %w", r.ID, core.ErrInvalidAmount)
		}
	}
	freq, err := core.ParseBillingFrequency(r.BillingFrequency)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	cat, err := core.ParseCategory(r.Category)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	start, err := core.ParseDate(r.StartDate)
	if err != nil {
		return core.Subscription{}, fmt.Errorf("record %s: %w", r.ID, err)
	}
	return core.Subscription{
		ID:        r.ID,
		UserID:    r.UserID,
		Name:      r.Name,
		Amount:    core.MoneyFromDecimal(amount),
		Frequency: freq,
		StartDate: start,
		Category:  cat,
		CreatedAt: parseTimestamp(r.CreatedAt),
		UpdatedAt: parseTimestamp(r.UpdatedAt),
	}, nil
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
