// Package cached wraps a subscription store with a per-user list cache.
package cached

import (
	"context"
	"time"

	"subtrack/internal/cache"
	"subtrack/internal/core"
	"subtrack/internal/store"
)

// Store serves ListSubscriptions from a per-user LRU and drops the user's
// entry on every successful write.
type Store struct {
	next  store.SubscriptionStore
	lists *cache.LoadingCache[[]core.Subscription]
}

var _ store.SubscriptionStore = (*Store)(nil)

func New(next store.SubscriptionStore, maxUsers int, ttl time.Duration) *Store {
	return &Store{
		next:  next,
		lists: cache.NewLoadingCache(cache.NewLRUCache[[]core.Subscription](maxUsers, ttl)),
	}
}

// Cache exposes the underlying LRU for cleanup registration and stats.
func (s *Store) Cache() *cache.LRUCache[[]core.Subscription] {
	return s.lists.LRUCache
}

func (s *Store) ListSubscriptions(ctx context.Context, userID string) ([]core.Subscription, error) {
	subs, err := s.lists.GetOrLoad(userID, func() ([]core.Subscription, error) {
		return s.next.ListSubscriptions(ctx, userID)
	})
	if err != nil {
		return nil, err
	}
	// callers may sort or append; hand out a copy
	out := make([]core.Subscription, len(subs))
	copy(out, subs)
	return out, nil
}

func (s *Store) GetSubscription(ctx context.Context, userID, id string) (core.Subscription, error) {
	return s.next.GetSubscription(ctx, userID, id)
}

func (s *Store) CreateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	created, err := s.next.CreateSubscription(ctx, sub)
	if err == nil {
		s.lists.Invalidate(created.UserID)
	}
	return created, err
}

func (s *Store) UpdateSubscription(ctx context.Context, sub core.Subscription) (core.Subscription, error) {
	updated, err := s.next.UpdateSubscription(ctx, sub)
	if err == nil {
		s.lists.Invalidate(sub.UserID)
	}
	return updated, err
}

func (s *Store) DeleteSubscription(ctx context.Context, userID, id string) error {
	err := s.next.DeleteSubscription(ctx, userID, id)
	if err == nil {
		s.lists.Invalidate(userID)
	}
	return err
}

// Close closes the wrapped store when it holds resources.
func (s *Store) Close() error {
	if c, ok := s.next.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
