package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/alfredjeanlab/quadrant/internal/config"
	"github.com/alfredjeanlab/quadrant/internal/session"
	"github.com/alfredjeanlab/quadrant/internal/sync"
)

// withSession runs fn against a freshly loaded one-shot session. When fn
// mutates and the memory backend was seeded from a file, the resulting state
// is written back to that file so offline edits persist.
func withSession(mutates bool, fn func(ctx context.Context, s *session.Session) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	s, err := openSession(ctx, cfg, oneShot)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := fn(ctx, s); err != nil {
		return err
	}
	if mutates && cfg.Backend == config.BackendMemory && seedFile != "" {
		return saveSeed(ctx, s)
	}
	return nil
}

func saveSeed(ctx context.Context, s *session.Session) error {
	snap := s.Store().Snapshot()
	var buf bytes.Buffer
	if err := sync.ExportJSONL(&buf, s.UserID(), snap.Tasks, snap.Sections); err != nil {
		return err
	}
	if err := sync.NewFileDestination(seedFile).Write(ctx, buf.Bytes()); err != nil {
		return fmt.Errorf("save %s: %w", seedFile, err)
	}
	return nil
}
