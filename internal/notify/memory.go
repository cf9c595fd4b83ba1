package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu    sync.Mutex
	items []Reminder
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) SaveReminder(_ context.Context, r Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r.Status == "" {
		r.Status = StatusPending
	}
	m.items = append(m.items, r)
	return nil
}

func (m *MemoryStore) GetReminder(_ context.Context, userID, id string) (Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.items {
		if r.ID == id && r.UserID == userID {
			return r, nil
		}
	}
	return Reminder{}, ErrReminderNotFound
}

func (m *MemoryStore) cancelWhere(match func(Reminder) bool) int {
	n := 0
	for i := range m.items {
		if m.items[i].Status == StatusPending && match(m.items[i]) {
			m.items[i].Status = StatusCanceled
			n++
		}
	}
	return n
}

func (m *MemoryStore) CancelReminder(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelWhere(func(r Reminder) bool { return r.ID == id && r.UserID == userID }) == 0 {
		return ErrReminderNotFound
	}
	return nil
}

func (m *MemoryStore) CancelSubscriptionReminders(_ context.Context, userID, subscriptionID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelWhere(func(r Reminder) bool {
		return r.UserID == userID && r.SubscriptionID == subscriptionID
	}), nil
}

func (m *MemoryStore) CancelAllReminders(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancelWhere(func(r Reminder) bool { return r.UserID == userID }), nil
}

func (m *MemoryStore) pendingWhere(match func(Reminder) bool) []Reminder {
	out := make([]Reminder, 0)
	for _, r := range m.items {
		if r.Status == StatusPending && match(r) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].NotifyAt.Before(out[j].NotifyAt) })
	return out
}

func (m *MemoryStore) DueReminders(_ context.Context, now time.Time, limit int) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	due := m.pendingWhere(func(r Reminder) bool { return !r.NotifyAt.After(now) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *MemoryStore) MarkReminderSent(_ context.Context, id string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].Status == StatusPending {
			m.items[i].Status = StatusSent
			m.items[i].SentAt = sentAt
			return nil
		}
	}
	return ErrReminderNotFound
}

func (m *MemoryStore) ListReminders(_ context.Context, userID string) ([]Reminder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pendingWhere(func(r Reminder) bool { return r.UserID == userID }), nil
}
