// Package replica holds the in-memory copy of a user's tasks and sections
// that every other component reads from and writes into.
package replica

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Collection is a keyed set of records with a fixed display order.
// All methods are safe for concurrent use.
type Collection[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	key   func(T) string
	less  func(a, b T) bool

	closed *atomic.Bool
	notify func()
}

func newCollection[T any](key func(T) string, less func(a, b T) bool, closed *atomic.Bool, notify func()) *Collection[T] {
	return &Collection[T]{
		items:  make(map[string]T),
		key:    key,
		less:   less,
		closed: closed,
		notify: notify,
	}
}

// ReplaceAll discards the current contents and installs items.
func (c *Collection[T]) ReplaceAll(items []T) {
	next := make(map[string]T, len(items))
	for _, it := range items {
		next[c.key(it)] = it
	}
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.items = next
	c.mu.Unlock()
	c.notify()
}

// Upsert inserts item or replaces the record with the same key.
func (c *Collection[T]) Upsert(item T) {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return
	}
	c.items[c.key(item)] = item
	c.mu.Unlock()
	c.notify()
}

// Remove deletes the record with the given id and returns it.
func (c *Collection[T]) Remove(id string) (T, bool) {
	var zero T
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return zero, false
	}
	prev, ok := c.items[id]
	if ok {
		delete(c.items, id)
	}
	c.mu.Unlock()
	if ok {
		c.notify()
	}
	return prev, ok
}

// Patch applies fn to the record with the given id in place and returns the
// record as it was before fn ran. It reports false if no such record exists.
func (c *Collection[T]) Patch(id string, fn func(*T)) (T, bool) {
	var zero T
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return zero, false
	}
	prev, ok := c.items[id]
	if ok {
		next := prev
		fn(&next)
		c.items[id] = next
	}
	c.mu.Unlock()
	if ok {
		c.notify()
	}
	return prev, ok
}

// Swap replaces the record keyed oldID with item, which may carry a different
// key. It reports whether oldID was present. item is stored either way.
func (c *Collection[T]) Swap(oldID string, item T) bool {
	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		return false
	}
	_, ok := c.items[oldID]
	delete(c.items, oldID)
	c.items[c.key(item)] = item
	c.mu.Unlock()
	c.notify()
	return ok
}

// Get returns the record with the given id.
func (c *Collection[T]) Get(id string) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	it, ok := c.items[id]
	return it, ok
}

// List returns a sorted copy of every record.
func (c *Collection[T]) List() []T {
	c.mu.RLock()
	out := make([]T, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, it)
	}
	c.mu.RUnlock()
	slices.SortFunc(out, func(a, b T) int {
		switch {
		case c.less(a, b):
			return -1
		case c.less(b, a):
			return 1
		}
		return 0
	})
	return out
}

// Max returns the greatest record under cmp, or false if the collection is
// empty.
func (c *Collection[T]) Max(cmp func(a, b T) int) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var best T
	found := false
	for _, it := range c.items {
		if !found || cmp(it, best) > 0 {
			best, found = it, true
		}
	}
	return best, found
}

// Len returns the number of records.
func (c *Collection[T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Store is the replica of one user's data.
type Store struct {
	Tasks    *Collection[model.Task]
	Sections *Collection[model.Section]

	closed  atomic.Bool
	changes chan struct{}
}

// New returns an empty store.
func New() *Store {
	s := &Store{changes: make(chan struct{}, 1)}
	s.Tasks = newCollection(model.TaskID, model.TaskLess, &s.closed, s.signal)
	s.Sections = newCollection(model.SectionID, model.SectionLess, &s.closed, s.signal)
	return s
}

// Changes returns a channel that receives a value after writes. Bursts of
// writes are coalesced into a single notification.
func (s *Store) Changes() <-chan struct{} { return s.changes }

func (s *Store) signal() {
	select {
	case s.changes <- struct{}{}:
	default:
	}
}

// Close marks the store as discarded. Later writes are ignored, so results
// of requests that complete after the owning session ended have no effect.
// Close waits for writes already in progress.
func (s *Store) Close() {
	s.Tasks.mu.Lock()
	s.Sections.mu.Lock()
	s.closed.Store(true)
	s.Sections.mu.Unlock()
	s.Tasks.mu.Unlock()
}

// Closed reports whether Close has been called.
func (s *Store) Closed() bool { return s.closed.Load() }

// Snapshot is a point-in-time copy of the store contents.
type Snapshot struct {
	Tasks    []model.Task
	Sections []model.Section
}

// Snapshot returns sorted copies of both collections.
func (s *Store) Snapshot() Snapshot {
	return Snapshot{Tasks: s.Tasks.List(), Sections: s.Sections.List()}
}
