package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/backend/memory"
	"github.com/alfredjeanlab/quadrant/internal/backend/postgres"
	"github.com/alfredjeanlab/quadrant/internal/backend/rest"
	"github.com/alfredjeanlab/quadrant/internal/changefeed"
	"github.com/alfredjeanlab/quadrant/internal/config"
	"github.com/alfredjeanlab/quadrant/internal/events"
	"github.com/alfredjeanlab/quadrant/internal/reminder"
	"github.com/alfredjeanlab/quadrant/internal/session"
	"github.com/alfredjeanlab/quadrant/internal/sync"
)

// sessionMode selects the live parts of a session.
type sessionMode struct {
	feed      bool
	reminders reminder.Notifier
}

// oneShot loads the data once: no feed and no reminders.
var oneShot = sessionMode{}

// closers closes its members in reverse order.
type closers []interface{ Close() error }

func (cs closers) Close() error {
	var errs []error
	for i := len(cs) - 1; i >= 0; i-- {
		errs = append(errs, cs[i].Close())
	}
	return errors.Join(errs...)
}

// openSession opens a session for c.UserID with the configured backend and,
// in live mode, the configured feed.
func openSession(ctx context.Context, c *config.Config, mode sessionMode) (*session.Session, error) {
	if err := c.ValidateSession(); err != nil {
		return nil, err
	}
	be, memFeed, err := openBackend(ctx, c)
	if err != nil {
		return nil, err
	}
	res := closers{be}

	var feed backend.Feed
	if mode.feed {
		var owned bool
		feed, owned, err = openFeed(c, memFeed)
		if err != nil {
			_ = res.Close()
			return nil, err
		}
		if owned {
			res = append(res, feed)
		}
	}

	return session.Open(ctx, session.Options{
		UserID:   c.UserID,
		Backend:  be,
		Feed:     feed,
		Notifier: mode.reminders,
		Retry: changefeed.RetryPolicy{
			Attempts: c.FetchAttempts,
			Base:     c.FetchBackoff,
			Max:      c.FetchMaxBackoff,
		},
		ReminderInterval: c.ReminderInterval,
		Thresholds:       c.ReminderThresholds,
		Closer:           res,
		Logger:           logger,
	})
}

// openBackend builds the configured backend. The memory backend carries its
// own feed, returned as the second value.
func openBackend(ctx context.Context, c *config.Config) (backend.Backend, *memory.Feed, error) {
	switch c.Backend {
	case config.BackendPostgres:
		be, err := postgres.New(ctx, c.DatabaseURL, c.UserID)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		return be, nil, nil
	case config.BackendREST:
		be, err := rest.New(c.RESTURL, c.APIKey, c.Token, c.UserID)
		if err != nil {
			return nil, nil, err
		}
		return be, nil, nil
	case config.BackendMemory:
		mem := memory.New(c.UserID)
		if seedFile != "" {
			f, err := os.Open(seedFile)
			if err != nil {
				return nil, nil, fmt.Errorf("open seed: %w", err)
			}
			defer f.Close()
			tasks, sections, err := sync.ImportJSONL(f)
			if err != nil {
				return nil, nil, fmt.Errorf("read seed %s: %w", seedFile, err)
			}
			mem.Seed(tasks, sections)
		}
		return mem, mem.Feed(), nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
}

// openFeed builds the configured change feed. Owned reports whether the
// caller must close it; the memory feed is closed with its backend.
func openFeed(c *config.Config, memFeed *memory.Feed) (feed backend.Feed, owned bool, err error) {
	switch c.EffectiveFeed() {
	case config.FeedPostgres:
		f, err := postgres.NewFeed(c.DatabaseURL, c.UserID, logger)
		if err != nil {
			return nil, false, fmt.Errorf("listen postgres: %w", err)
		}
		return f, true, nil
	case config.FeedNATS:
		f, err := events.NewNATSFeed(c.NATSURL, c.UserID, logger)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	case config.FeedRedis:
		f, err := events.NewRedisFeed(c.RedisURL, c.UserID, logger)
		if err != nil {
			return nil, false, err
		}
		return f, true, nil
	case config.FeedMemory:
		if memFeed == nil {
			return nil, false, errors.New("the memory feed requires the memory backend")
		}
		return memFeed, false, nil
	}
	return events.NoopFeed{}, false, nil
}
