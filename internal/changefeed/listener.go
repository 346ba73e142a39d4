package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Channel names used by a session.
const (
	ChannelTasks    = "tasks-changes"
	ChannelSections = "sections-changes"
)

// State is the lifecycle state of a named subscription.
type State int

const (
	StateUnsubscribed State = iota
	StateSubscribing
	StateActive
	StateError
)

func (s State) String() string {
	switch s {
	case StateUnsubscribed:
		return "unsubscribed"
	case StateSubscribing:
		return "subscribing"
	case StateActive:
		return "active"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Refresher reloads collections. *Fetcher implements it.
type Refresher interface {
	FetchTasks(ctx context.Context) error
	FetchSections(ctx context.Context) error
}

// ErrSubscriptionLost is reported when an active subscription's stream ends
// without being torn down by the Listener.
var ErrSubscriptionLost = errors.New("change feed subscription lost")

// ErrorFunc receives subscription failures.
type ErrorFunc func(channel string, table model.Table, err error)

// Listener owns the named change-feed subscriptions of a session and turns
// each change into a re-fetch of the affected collections. It does not
// re-subscribe on its own: failures go to the error callback and the caller
// decides when to call Subscribe again.
type Listener struct {
	feed    backend.Feed
	fetch   Refresher
	onError ErrorFunc
	logger  *slog.Logger

	mu   sync.Mutex
	subs map[string]*subscription
}

type subscription struct {
	name   string
	table  model.Table
	cancel context.CancelFunc
	done   chan struct{}

	mu    sync.Mutex
	state State
}

func (s *subscription) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

func (s *subscription) getState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NewListener creates a Listener. onError may be nil.
func NewListener(feed backend.Feed, fetch Refresher, onError ErrorFunc, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		feed:    feed,
		fetch:   fetch,
		onError: onError,
		logger:  logger,
		subs:    make(map[string]*subscription),
	}
}

// Subscribe opens the subscription called name on table. An existing
// subscription with the same name is torn down first, so at most one is
// live per name. The subscription reports StateSubscribing until the feed
// accepts it, and Subscribe returns once it has.
func (l *Listener) Subscribe(ctx context.Context, name string, table model.Table) error {
	l.Unsubscribe(name)

	sub := &subscription{name: name, table: table, done: make(chan struct{}), state: StateSubscribing}
	subCtx, cancel := context.WithCancel(ctx)
	sub.cancel = cancel

	l.mu.Lock()
	old, ok := l.subs[name]
	l.subs[name] = sub
	l.mu.Unlock()
	if ok {
		// A concurrent Subscribe registered first; replace it.
		old.cancel()
		<-old.done
	}

	ch, stop, err := l.feed.Subscribe(subCtx, table)
	if err != nil {
		l.mu.Lock()
		if l.subs[name] == sub {
			delete(l.subs, name)
		}
		l.mu.Unlock()
		cancel()
		sub.setState(StateUnsubscribed)
		close(sub.done)
		return fmt.Errorf("subscribe %s: %w", name, err)
	}
	sub.setState(StateActive)

	l.logger.Debug("subscribed", "channel", name, "table", table)
	go l.run(subCtx, sub, ch, stop)
	return nil
}

// Unsubscribe tears down the named subscription, if any, and waits for its
// goroutine to exit.
func (l *Listener) Unsubscribe(name string) {
	l.mu.Lock()
	sub, ok := l.subs[name]
	if ok {
		delete(l.subs, name)
	}
	l.mu.Unlock()
	if !ok {
		return
	}
	sub.cancel()
	<-sub.done
}

// State returns the state of the named subscription.
func (l *Listener) State(name string) State {
	l.mu.Lock()
	sub, ok := l.subs[name]
	l.mu.Unlock()
	if !ok {
		return StateUnsubscribed
	}
	return sub.getState()
}

// Close tears down every subscription.
func (l *Listener) Close() {
	l.mu.Lock()
	names := make([]string, 0, len(l.subs))
	for name := range l.subs {
		names = append(names, name)
	}
	l.mu.Unlock()
	for _, name := range names {
		l.Unsubscribe(name)
	}
}

func (l *Listener) run(ctx context.Context, sub *subscription, ch <-chan model.Change, stop func()) {
	l.consume(ctx, sub, ch)
	stop()
	if ctx.Err() != nil {
		sub.setState(StateUnsubscribed)
		close(sub.done)
		return
	}

	// The stream ended underneath us. The store keeps its last fetched state.
	sub.setState(StateError)
	close(sub.done)
	l.logger.Warn("change feed subscription failed", "channel", sub.name, "table", sub.table)
	if l.onError != nil {
		l.onError(sub.name, sub.table, ErrSubscriptionLost)
	}
}

// consume handles changes until ch closes or ctx ends. Changes that are
// already queued are folded into one round of re-fetches.
func (l *Listener) consume(ctx context.Context, sub *subscription, ch <-chan model.Change) {
	for {
		var c model.Change
		var ok bool
		select {
		case <-ctx.Done():
			return
		case c, ok = <-ch:
			if !ok {
				return
			}
		}
		need := refetchFor(c)
		closed := false
	drain:
		for {
			select {
			case c, ok = <-ch:
				if !ok {
					closed = true
					break drain
				}
				need |= refetchFor(c)
			default:
				break drain
			}
		}
		l.refresh(ctx, sub.name, need)
		if closed {
			return
		}
	}
}

type refetchSet uint8

const (
	refetchTasks refetchSet = 1 << iota
	refetchSections
)

// refetchFor maps a change onto the collections it invalidates. Section
// changes reload tasks as well.
func refetchFor(c model.Change) refetchSet {
	switch c.ChangeTable() {
	case model.TableTasks:
		if u, ok := c.(model.Update); ok && u.SectionChanged() {
			return refetchTasks | refetchSections
		}
		return refetchTasks
	case model.TableSections:
		return refetchSections | refetchTasks
	}
	return 0
}

// Refresh reloads the collections a change on table could affect. Callers
// use it after re-subscribing, since changes may have been missed while the
// subscription was down.
func (l *Listener) Refresh(ctx context.Context, table model.Table) {
	need := refetchTasks
	if table == model.TableSections {
		need |= refetchSections
	}
	l.refresh(ctx, string(table), need)
}

func (l *Listener) refresh(ctx context.Context, channel string, need refetchSet) {
	if need&refetchSections != 0 {
		if err := l.fetch.FetchSections(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("refetch sections failed", "channel", channel, "err", err)
		}
	}
	if need&refetchTasks != 0 {
		if err := l.fetch.FetchTasks(ctx); err != nil && ctx.Err() == nil {
			l.logger.Warn("refetch tasks failed", "channel", channel, "err", err)
		}
	}
}
