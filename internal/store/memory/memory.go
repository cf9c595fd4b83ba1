package memory

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"subtrack/internal/core"
	"subtrack/internal/export"
	"subtrack/internal/store"
)

type Store struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]core.Subscription
	seq   map[string]int // insertion order, breaks created_at ties
	next  int
}

func New() *Store {
	return &Store{
		now:   time.Now,
		items: make(map[string]core.Subscription),
		seq:   make(map[string]int),
	}
}

// NewFromFile seeds a store from an export dump. A missing file yields an
// empty store.
func NewFromFile(path string) (*Store, error) {
	s := New()
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer f.Close()

	dump, err := export.ReadJSON(f)
	if err != nil {
		return nil, err
	}
	subs, err := dump.Domain()
	if err != nil {
		return nil, fmt.Errorf("seed file %s: %w", path, err)
	}
	for _, sub := range subs {
		s.put(sub)
	}
	return s, nil
}

func (s *Store) put(sub core.Subscription) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.items[sub.ID] = sub
	s.seq[sub.ID] = s.next
}

func (s *Store) ListSubscriptions(_ context.Context, userID string) ([]core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Subscription, 0)
	for _, sub := range s.items {
		if sub.UserID == userID {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return s.seq[out[i].ID] > s.seq[out[j].ID]
	})
	return out, nil
}

func (s *Store) GetSubscription(_ context.Context, userID, id string) (core.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.items[id]
	if !ok || sub.UserID != userID {
		return core.Subscription{}, store.ErrNotFound
	}
	return sub, nil
}

func (s *Store) CreateSubscription(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	now := s.now().UTC()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	sub.CreatedAt = now
	sub.UpdatedAt = now

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[sub.ID]; exists {
		return core.Subscription{}, fmt.Errorf("subscription %s already exists", sub.ID)
	}
	s.next++
	s.items[sub.ID] = sub
	s.seq[sub.ID] = s.next
	return sub, nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub core.Subscription) (core.Subscription, error) {
	if err := sub.Validate(); err != nil {
		return core.Subscription{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[sub.ID]
	if !ok || existing.UserID != sub.UserID {
		return core.Subscription{}, store.ErrNotFound
	}
	sub.CreatedAt = existing.CreatedAt
	sub.UpdatedAt = s.now().UTC()
	s.items[sub.ID] = sub
	return sub, nil
}

func (s *Store) DeleteSubscription(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.items[id]
	if !ok || existing.UserID != userID {
		return store.ErrNotFound
	}
	delete(s.items, id)
	delete(s.seq, id)
	return nil
}
