// Package store defines the persistence ports for subscriptions. Every
// operation is scoped to a user; a record owned by another user is reported
// as not found.
package store

import (
	"context"
	"errors"

	"subtrack/internal/core"
)

var ErrNotFound = errors.New("subscription not found")

type (
	SubscriptionReader interface {
		// ListSubscriptions returns the user's subscriptions, newest first.
		ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error)
		GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error)
	}

	SubscriptionWriter interface {
		// CreateSubscription persists s and returns it with ID and timestamps set.
		CreateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		UpdateSubscription(ctx context.Context, s core.Subscription) (core.Subscription, error)
		DeleteSubscription(ctx context.Context, userID, id string) error
	}

	SubscriptionStore interface {
		SubscriptionReader
		SubscriptionWriter
	}
)
