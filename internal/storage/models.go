package storage

import "database/sql"

// Timestamps are stored as fixed-width UTC text so that string comparison
// orders them chronologically.
const timeLayout = "2006-01-02T15:04:05Z"

type Subscription struct {
	ID               string
	UserID           string
	Name             string
	AmountCents      int64
	BillingFrequency string
	StartDate        string
	Category         string
	CreatedAt        string
	UpdatedAt        string
}

type UserPreference struct {
	UserID    string
	Key       string
	Value     string
	UpdatedAt string
}

type Reminder struct {
	ID             string
	SubscriptionID string
	UserID         string
	NotifyAt       string
	RenewsOn       string
	Title          string
	Body           string
	Status         string
	CreatedAt      string
	SentAt         sql.NullString
}
