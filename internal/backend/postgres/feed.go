package postgres

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

// NotifyChannel is the channel the migration's trigger notifies on.
const NotifyChannel = "quadrant_changes"

const subscriberBuffer = 32

// Feed is a backend.Feed fed by LISTEN/NOTIFY. A single connection serves
// every subscription; changes are fanned out by table.
type Feed struct {
	userID string
	logger *slog.Logger
	conn   io.Closer

	mu     sync.Mutex
	subs   map[model.Table]map[int]chan model.Change
	nextID int
	closed bool

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// Compile-time check that Feed implements backend.Feed.
var _ backend.Feed = (*Feed)(nil)

// NewFeed listens on NotifyChannel. Only changes owned by userID are
// delivered; an empty userID delivers every change.
func NewFeed(databaseURL, userID string, logger *slog.Logger) (*Feed, error) {
	if logger == nil {
		logger = slog.Default()
	}
	listener := pq.NewListener(databaseURL, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed:
			logger.Warn("change feed connection attempt failed", "err", err)
		case pq.ListenerEventDisconnected:
			logger.Warn("change feed disconnected", "err", err)
		case pq.ListenerEventReconnected:
			logger.Info("change feed reconnected")
		}
	})
	if err := listener.Listen(NotifyChannel); err != nil {
		listener.Close()
		return nil, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	return newFeed(listener.Notify, listener, userID, logger), nil
}

func newFeed(notify <-chan *pq.Notification, conn io.Closer, userID string, logger *slog.Logger) *Feed {
	f := &Feed{
		userID: userID,
		logger: logger,
		conn:   conn,
		subs:   make(map[model.Table]map[int]chan model.Change),
		done:   make(chan struct{}),
	}
	f.wg.Add(1)
	go f.run(notify)
	return f
}

func (f *Feed) run(notify <-chan *pq.Notification) {
	defer f.wg.Done()
	defer f.closeSubscribers()
	for {
		select {
		case <-f.done:
			return
		case n, ok := <-notify:
			if !ok {
				f.logger.Warn("change feed stopped")
				return
			}
			if n == nil {
				// The listener reconnected; notifications sent while it was
				// down are lost.
				continue
			}
			f.dispatch(n.Extra)
		}
	}
}

func (f *Feed) dispatch(payload string) {
	c, err := model.DecodeChange([]byte(payload))
	if err != nil {
		f.logger.Warn("dropping malformed change", "err", err)
		return
	}
	if f.userID != "" && c.ChangeUser() != f.userID {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs[c.ChangeTable()] {
		select {
		case ch <- c:
		default:
			f.logger.Debug("subscriber busy, change coalesced", "table", c.ChangeTable())
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
	ch := make(chan model.Change, subscriberBuffer)
	if f.subs[table] == nil {
		f.subs[table] = make(map[int]chan model.Change)
	}
	f.subs[table][id] = ch
	f.mu.Unlock()

	stop := make(chan struct{})
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			f.mu.Lock()
			if c, ok := f.subs[table][id]; ok {
				delete(f.subs[table], id)
				close(c)
			}
			f.mu.Unlock()
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-stop:
		}
	}()
	return ch, cancel, nil
}

func (f *Feed) closeSubscribers() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	for table, subs := range f.subs {
		for id, ch := range subs {
			close(ch)
			delete(subs, id)
		}
		delete(f.subs, table)
	}
}

// Close stops the listener and closes every subscription channel.
func (f *Feed) Close() error {
	var err error
	f.closeOnce.Do(func() {
		close(f.done)
		err = f.conn.Close()
		f.wg.Wait()
	})
	return err
}
