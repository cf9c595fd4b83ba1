package memory

import (
	"context"
	"sync"
	"time"

	"subtrack/internal/core"
	"subtrack/internal/sheets"
)

// Publisher keeps the last published table of each user in memory.
type Publisher struct {
	mu     sync.Mutex
	now    func() time.Time
	tables map[string][][]string
	count  int
}

var _ sheets.Publisher = (*Publisher)(nil)

func New() *Publisher {
	return &Publisher{now: time.Now, tables: make(map[string][][]string)}
}

func (p *Publisher) PublishSubscriptions(_ context.Context, userID string, subs []core.Subscription) error {
	rows := sheets.Rows(subs, p.now())
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tables[userID] = rows
	p.count++
	return nil
}

// Table returns the rows last published for userID.
func (p *Publisher) Table(userID string) ([][]string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rows, ok := p.tables[userID]
	return rows, ok
}

// Publishes counts calls to PublishSubscriptions.
func (p *Publisher) Publishes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}
