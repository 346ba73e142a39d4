package events

import (
	"context"
	"sync"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// NoopPublisher is a Publisher that does nothing.
type NoopPublisher struct{}

func (n *NoopPublisher) Publish(ctx context.Context, topic string, event any) error {
	return nil
}

func (n *NoopPublisher) Close() error {
	return nil
}

// NoopFeed is a feed that never delivers changes (used when no change feed
// is configured). Subscriptions stay open until cancelled.
type NoopFeed struct{}

func (NoopFeed) Subscribe(ctx context.Context, table model.Table) (<-chan model.Change, func(), error) {
	ch := make(chan model.Change)
	var once sync.Once
	return ch, func() { once.Do(func() { close(ch) }) }, nil
}

func (NoopFeed) Close() error { return nil }
