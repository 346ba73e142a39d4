// Package changefeed keeps the replica in step with remote changes: it
// re-fetches collections with bounded retry and listens on the change feed
// to decide what to re-fetch.
package changefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
	"github.com/alfredjeanlab/quadrant/internal/replica"
)

// RetryPolicy bounds the attempts of a fetch. The delay before attempt n+1
// is Base*2^(n-1), capped at Max.
type RetryPolicy struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

// DefaultRetryPolicy is used when a zero policy is given.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Base: 500 * time.Millisecond, Max: 8 * time.Second}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Attempts <= 0 {
		p.Attempts = DefaultRetryPolicy.Attempts
	}
	if p.Base <= 0 {
		p.Base = DefaultRetryPolicy.Base
	}
	if p.Max <= 0 {
		p.Max = DefaultRetryPolicy.Max
	}
	if p.Max < p.Base {
		p.Max = p.Base
	}
	return p
}

// Delay returns the wait after the given failed attempt (1-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.Base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= p.Max {
			return p.Max
		}
	}
	return d
}

// Fetcher replaces store collections with the remote contents.
type Fetcher struct {
	store   *replica.Store
	backend backend.Backend
	retry   RetryPolicy
	logger  *slog.Logger
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewFetcher(store *replica.Store, be backend.Backend, retry RetryPolicy, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		store:   store,
		backend: be,
		retry:   retry.normalized(),
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// FetchTasks reloads the task collection. After the last failed attempt the
// store is left as it was and the error is returned.
func (f *Fetcher) FetchTasks(ctx context.Context) error {
	tasks, err := withRetry(ctx, f, "tasks", f.backend.ListTasks)
	if err != nil {
		return err
	}
	f.store.Tasks.ReplaceAll(tasks)
	return nil
}

// FetchSections reloads the section collection.
func (f *Fetcher) FetchSections(ctx context.Context) error {
	sections, err := withRetry(ctx, f, "sections", f.backend.ListSections)
	if err != nil {
		return err
	}
	f.store.Sections.ReplaceAll(sections)
	return nil
}

// RefetchAll reloads sections and then tasks. Both are attempted even if the
// first fails.
func (f *Fetcher) RefetchAll(ctx context.Context) error {
	return errors.Join(f.FetchSections(ctx), f.FetchTasks(ctx))
}

// Fetch reloads the given collections in order.
func (f *Fetcher) Fetch(ctx context.Context, tables ...model.Table) error {
	var errs []error
	for _, t := range tables {
		switch t {
		case model.TableTasks:
			errs = append(errs, f.FetchTasks(ctx))
		case model.TableSections:
			errs = append(errs, f.FetchSections(ctx))
		}
	}
	return errors.Join(errs...)
}

func withRetry[T any](ctx context.Context, f *Fetcher, what string, list func(context.Context) ([]T, error)) ([]T, error) {
	var lastErr error
	for attempt := 1; attempt <= f.retry.Attempts; attempt++ {
		items, err := list(ctx)
		if err == nil {
			return items, nil
		}
		lastErr = err
		if !retryable(err) || attempt == f.retry.Attempts {
			break
		}
		delay := f.retry.Delay(attempt)
		f.logger.Debug("fetch failed, retrying", "collection", what, "attempt", attempt, "delay", delay, "err", err)
		if err := f.sleep(ctx, delay); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", what, err)
		}
	}
	return nil, fmt.Errorf("fetch %s: %w", what, lastErr)
}

// retryable reports whether another attempt could succeed.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch backend.CodeOf(err) {
	case backend.CodeUnauthorized, backend.CodeInvalid:
		return false
	}
	return true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
