// Package session binds the sync engine to one signed-in identity. A Session
// owns the replica, the mutation gateway, the change-feed listener and the
// reminder scheduler; nothing in it is process-wide.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/changefeed"
	"github.com/alfredjeanlab/quadrant/internal/gateway"
	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/reminder"
	"github.com/alfredjeanlab/quadrant/internal/replica"
)

// Resubscribe delays.
const (
	DefaultResubscribeDelay = 2 * time.Second
	maxResubscribeDelay     = time.Minute
)

// Options configures Open.
type Options struct {
	UserID  string
	Backend backend.Backend

	// Feed delivers remote changes. Nil runs without a change feed.
	Feed backend.Feed
	// Notifier raises reminders. Nil runs without reminders.
	Notifier reminder.Notifier

	Retry            changefeed.RetryPolicy
	ResubscribeDelay time.Duration
	ReminderInterval time.Duration
	Thresholds       []int

	// OnSubscriptionError observes change-feed failures. The session
	// re-subscribes regardless.
	OnSubscriptionError func(channel string, err error)

	// Closer is closed after the session is torn down. Typically it releases
	// the backend and feed connections.
	Closer io.Closer

	Logger *slog.Logger
}

// Session is the synchronization context of one user.
type Session struct {
	userID    string
	store     *replica.Store
	fetcher   *changefeed.Fetcher
	gateway   *gateway.Gateway
	listener  *changefeed.Listener
	reminders *reminder.Scheduler
	closer    io.Closer
	logger    *slog.Logger

	onSubErr         func(channel string, err error)
	resubscribeDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// Open starts a session: it subscribes to both change channels, loads both
// collections and starts the reminder scheduler. If the initial load fails
// the session is torn down and the error returned.
func Open(ctx context.Context, opts Options) (*Session, error) {
	if opts.UserID == "" {
		return nil, errors.New("open session: user id is required")
	}
	if opts.Backend == nil {
		return nil, errors.New("open session: backend is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("user", opts.UserID)
	delay := opts.ResubscribeDelay
	if delay <= 0 {
		delay = DefaultResubscribeDelay
	}

	store := replica.New()
	fetcher := changefeed.NewFetcher(store, opts.Backend, opts.Retry, logger)
	sctx, cancel := context.WithCancel(context.Background())
	s := &Session{
		userID:           opts.UserID,
		store:            store,
		fetcher:          fetcher,
		gateway:          gateway.New(store, opts.Backend, fetcher, logger),
		closer:           opts.Closer,
		logger:           logger,
		onSubErr:         opts.OnSubscriptionError,
		resubscribeDelay: delay,
		ctx:              sctx,
		cancel:           cancel,
	}

	// Subscribe before loading so that nothing between the two is missed.
	if opts.Feed != nil {
		s.listener = changefeed.NewListener(opts.Feed, fetcher, s.subscriptionFailed, logger)
		for _, c := range []struct {
			name  string
			table model.Table
		}{
			{changefeed.ChannelTasks, model.TableTasks},
			{changefeed.ChannelSections, model.TableSections},
		} {
			if err := s.listener.Subscribe(sctx, c.name, c.table); err != nil {
				s.subscriptionFailed(c.name, c.table, err)
			}
		}
	}

	if err := fetcher.RefetchAll(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("open session: initial load: %w", err)
	}

	if opts.Notifier != nil {
		s.reminders = reminder.NewScheduler(store.Tasks, opts.Notifier, opts.ReminderInterval, opts.Thresholds, logger)
		s.reminders.Start()
	}

	logger.Info("session opened", "tasks", store.Tasks.Len(), "sections", store.Sections.Len())
	return s, nil
}

// UserID returns the identity the session belongs to.
func (s *Session) UserID() string { return s.userID }

// Store returns the session's replica.
func (s *Session) Store() *replica.Store { return s.store }

// Gateway returns the session's mutation gateway.
func (s *Session) Gateway() *gateway.Gateway { return s.gateway }

// Refresh reloads both collections.
func (s *Session) Refresh(ctx context.Context) error { return s.fetcher.RefetchAll(ctx) }

// SubscriptionState returns the state of a change channel.
func (s *Session) SubscriptionState(channel string) changefeed.State {
	if s.listener == nil {
		return changefeed.StateUnsubscribed
	}
	return s.listener.State(channel)
}

// Close unsubscribes, halts reminders and closes the store. Remote calls
// still in flight are left to finish; their results are discarded. Close is
// safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
	if s.listener != nil {
		s.listener.Close()
	}
	if s.reminders != nil {
		s.reminders.Stop()
	}
	s.store.Close()
	if s.closer != nil {
		if err := s.closer.Close(); err != nil {
			s.logger.Warn("close session resources", "err", err)
		}
	}
	s.logger.Info("session closed")
}

// subscriptionFailed is the listener's error callback. It reports the
// failure and schedules a re-subscribe.
func (s *Session) subscriptionFailed(channel string, table model.Table, err error) {
	s.logger.Warn("change feed unavailable", "channel", channel, "err", err)
	if s.onSubErr != nil {
		s.onSubErr(channel, err)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()
	go s.resubscribe(channel, table)
}

// resubscribe retries the subscription with doubling delays until it
// succeeds or the session closes, then reloads what may have been missed.
func (s *Session) resubscribe(channel string, table model.Table) {
	defer s.wg.Done()
	delay := s.resubscribeDelay
	for {
		t := time.NewTimer(delay)
		select {
		case <-s.ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}

		err := s.listener.Subscribe(s.ctx, channel, table)
		if err == nil {
			s.logger.Info("change feed restored", "channel", channel)
			s.listener.Refresh(s.ctx, table)
			return
		}
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("re-subscribe failed", "channel", channel, "err", err, "retry_in", delay)
		delay = min(delay*2, maxResubscribeDelay)
	}
}
