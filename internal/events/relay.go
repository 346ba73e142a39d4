package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Relay republishes every change read from a source feed on the bus topic of
// the change's owner.
type Relay struct {
	source backend.Feed
	pub    Publisher
	topic  func(userID string, table model.Table) string
	logger *slog.Logger
}

func NewRelay(source backend.Feed, pub Publisher, topic func(string, model.Table) string, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{source: source, pub: pub, topic: topic, logger: logger}
}

// Run forwards changes until ctx is cancelled or the source fails.
func (r *Relay) Run(ctx context.Context) error {
	tasks, cancelTasks, err := r.source.Subscribe(ctx, model.TableTasks)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	defer cancelTasks()
	sections, cancelSections, err := r.source.Subscribe(ctx, model.TableSections)
	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}
	defer cancelSections()

	r.logger.Info("relay started")
	for {
		var (
			c  model.Change
			ok bool
		)
		select {
		case <-ctx.Done():
			return nil
		case c, ok = <-tasks:
		case c, ok = <-sections:
		}
		if !ok {
			if ctx.Err() != nil {
				return nil
			}
			return errors.New("relay: source feed closed")
		}
		topic := r.topic(c.ChangeUser(), c.ChangeTable())
		if err := r.pub.Publish(ctx, topic, c); err != nil {
			r.logger.Warn("relay publish failed", "topic", topic, "err", err)
			continue
		}
		r.logger.Debug("relayed change", "topic", topic)
	}
}
