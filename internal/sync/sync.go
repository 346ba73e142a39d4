package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alfredjeanlab/quadrant/internal/replica"
)

// Destination is the interface for an export target (S3, a file, etc.).
type Destination interface {
	// Write sends the JSONL payload to the destination.
	Write(ctx context.Context, data []byte) error
}

// Source provides the data to export. *replica.Store implements it.
type Source interface {
	Snapshot() replica.Snapshot
}

// Scheduler runs periodic exports to one or more destinations.
type Scheduler struct {
	source       Source
	userID       string
	destinations []Destination
	interval     time.Duration
	logger       *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewScheduler creates a scheduler that exports userID's data from src to
// the given destinations at the specified interval.
func NewScheduler(src Source, userID string, destinations []Destination, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		source:       src,
		userID:       userID,
		destinations: destinations,
		interval:     interval,
		logger:       logger,
	}
}

// Start begins periodic export. It runs an initial export immediately, then
// on each tick. A non-positive interval exports once.
func (s *Scheduler) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx)
	}()
}

// Stop cancels the scheduler and waits for the current export (if any) to
// finish.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *Scheduler) run(ctx context.Context) {
	// Run once immediately at startup.
	s.logResult(s.ExportOnce(ctx))
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.logResult(s.ExportOnce(ctx))
		}
	}
}

// ExportOnce exports the current snapshot to every destination. Every
// destination is attempted; the errors are joined.
func (s *Scheduler) ExportOnce(ctx context.Context) error {
	snap := s.source.Snapshot()
	var buf bytes.Buffer
	if err := ExportJSONL(&buf, s.userID, snap.Tasks, snap.Sections); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	data := buf.Bytes()

	var errs []error
	for i, dest := range s.destinations {
		if err := dest.Write(ctx, data); err != nil {
			s.logger.Error("export destination write failed", "destination", fmt.Sprintf("%d", i), "err", err)
			errs = append(errs, err)
		}
	}

	s.logger.Info("export completed", "destinations", len(s.destinations), "bytes", len(data), "tasks", len(snap.Tasks))
	return errors.Join(errs...)
}

func (s *Scheduler) logResult(err error) {
	if err != nil {
		s.logger.Error("export failed", "err", err)
	}
}
