package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Feed is an in-process backend.Feed.
type Feed struct {
	mu     sync.Mutex
	subs   map[model.Table]map[int]chan model.Change
	nextID int
	closed bool
}

// Compile-time check that Feed implements backend.Feed.
var _ backend.Feed = (*Feed)(nil)

func NewFeed() *Feed {
	return &Feed{subs: make(map[model.Table]map[int]chan model.Change)}
}

// Publish delivers c to every subscriber of its table. Full subscriber
// buffers drop the change.
func (f *Feed) Publish(c model.Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[c.ChangeTable()] {
		select {
		case ch <- c:
		default:
		}
	}
}

// Subscribe implements backend.Feed.
func (f *Feed) Subscribe(ctx context.Context, table model.Table) (<-chan model.Change, func(), error) {
	if !table.IsValid() {
		return nil, nil, fmt.Errorf("subscribe: unknown table %q", table)
	}
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, nil, errors.New("subscribe: feed closed")
	}
	id := f.nextID
	f.nextID++
	ch := make(chan model.Change, 32)
	if f.subs[table] == nil {
		f.subs[table] = make(map[int]chan model.Change)
	}
	f.subs[table][id] = ch
	f.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			if c, ok := f.subs[table][id]; ok {
				delete(f.subs[table], id)
				close(c)
			}
		})
	}
	return ch, cancel, nil
}

// Subscribers returns the number of live subscriptions on table.
func (f *Feed) Subscribers(table model.Table) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs[table])
}

// Drop closes every subscription on table, as a transport failure would.
func (f *Feed) Drop(table model.Table) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs[table] {
		close(ch)
		delete(f.subs[table], id)
	}
}

// Close closes every subscription and rejects new ones.
func (f *Feed) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.Drop(model.TableTasks)
	f.Drop(model.TableSections)
	return nil
}
