// Package reminder scans the replicated task list on a fixed interval and
// raises one local alert per task each time its due time crosses a
// threshold.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// DefaultInterval is the scan interval used when none is configured.
const DefaultInterval = 15 * time.Second

// DefaultThresholds are the alert thresholds in minutes before due.
var DefaultThresholds = []int{60, 30, 15, 5, 1}

// TaskSource provides the current task list. The replica's task collection
// implements it.
type TaskSource interface {
	List() []model.Task
}

type firedKey struct {
	taskID    string
	threshold int
	due       int64
}

type dueKey struct {
	taskID string
	due    int64
}

type permission int

const (
	permissionUnknown permission = iota
	permissionGranted
	permissionDenied
)

// Scheduler raises due-date alerts. The set of alerts already raised lives
// as long as the Scheduler and is pruned when a task's due time changes, the
// task is completed, or it disappears.
type Scheduler struct {
	tasks      TaskSource
	notifier   Notifier
	interval   time.Duration
	thresholds []int // ascending
	logger     *slog.Logger
	now        func() time.Time

	mu         sync.Mutex
	fired      map[firedKey]struct{}
	permission permission

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler. Zero interval and empty thresholds take
// the defaults; non-positive thresholds are ignored.
func NewScheduler(tasks TaskSource, n Notifier, interval time.Duration, thresholds []int, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	var ts []int
	for _, t := range thresholds {
		if t > 0 {
			ts = append(ts, t)
		}
	}
	if len(ts) == 0 {
		ts = slices.Clone(DefaultThresholds)
	}
	slices.Sort(ts)
	ts = slices.Compact(ts)
	return &Scheduler{
		tasks:      tasks,
		notifier:   n,
		interval:   interval,
		thresholds: ts,
		logger:     logger,
		now:        time.Now,
		fired:      make(map[firedKey]struct{}),
	}
}

// Start runs a scan immediately and then on every tick until Stop.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop halts the ticker and waits for a running scan to finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	s.Tick(ctx, s.now())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx, s.now())
		}
	}
}

// Tick scans the task list as of now and returns the alerts it raised.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) []Alert {
	if !s.permitted(ctx) {
		return nil
	}

	tasks := s.tasks.List()

	s.mu.Lock()
	live := make(map[dueKey]struct{}, len(tasks))
	var pending []Alert
	for _, t := range tasks {
		if t.Completed || !t.HasDue() {
			continue
		}
		due := t.DueAt.UnixNano()
		live[dueKey{t.ID, due}] = struct{}{}

		minutes := int(t.DueAt.Sub(now) / time.Minute)
		threshold, ok := s.crossed(minutes)
		if !ok {
			continue
		}
		k := firedKey{taskID: t.ID, threshold: threshold, due: due}
		if _, done := s.fired[k]; done {
			continue
		}
		s.fired[k] = struct{}{}
		pending = append(pending, alertFor(t, threshold, minutes))
	}
	for k := range s.fired {
		if _, ok := live[dueKey{k.taskID, k.due}]; !ok {
			delete(s.fired, k)
		}
	}
	s.mu.Unlock()

	for _, a := range pending {
		if err := s.notifier.Show(ctx, a); err != nil {
			s.logger.Warn("show reminder failed", "key", a.Key, "err", err)
		}
	}
	return pending
}

// crossed returns the smallest threshold not below minutes. Overdue tasks
// and tasks further out than the largest threshold have none.
func (s *Scheduler) crossed(minutes int) (int, bool) {
	if minutes <= 0 {
		return 0, false
	}
	for _, t := range s.thresholds {
		if t >= minutes {
			return t, true
		}
	}
	return 0, false
}

func (s *Scheduler) permitted(ctx context.Context) bool {
	s.mu.Lock()
	p := s.permission
	s.mu.Unlock()
	if p != permissionUnknown {
		return p == permissionGranted
	}

	ok, err := s.notifier.RequestPermission(ctx)
	if err != nil {
		s.logger.Debug("notification permission request failed", "err", err)
		ok = false
	}
	p = permissionDenied
	if ok {
		p = permissionGranted
	} else {
		s.logger.Debug("notifications not permitted, reminders disabled")
	}
	s.mu.Lock()
	s.permission = p
	s.mu.Unlock()
	return ok
}

func alertFor(t model.Task, threshold, minutes int) Alert {
	title := "Task Due Soon"
	if minutes == 60 {
		title = "Task Due in an Hour"
	}
	return Alert{
		Title: title,
		Body:  fmt.Sprintf("\"%s\" is due in %s", t.Title, minutesText(minutes)),
		Key:   fmt.Sprintf("%s-%d", t.ID, threshold),
	}
}

func minutesText(m int) string {
	switch m {
	case 1:
		return "1 minute"
	case 60:
		return "1 hour"
	}
	return fmt.Sprintf("%d minutes", m)
}
