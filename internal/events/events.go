// Package events carries row-level changes between processes over a message
// bus, for sessions that cannot listen on the database directly.
package events

import (
	"context"
	"strings"

	"github.com/alfredjeanlab/quadrant/internal/model"
)

// Subject returns the NATS subject changes of table owned by userID are
// published on.
func Subject(userID string, table model.Table) string {
	return "quadrant." + token(userID) + "." + string(table)
}

// RedisChannel returns the Redis pub/sub channel for changes of table owned
// by userID.
func RedisChannel(userID string, table model.Table) string {
	return "quadrant:" + userID + ":" + string(table)
}

// token makes s safe as a single NATS subject token.
func token(s string) string {
	return strings.NewReplacer(".", "_", "*", "_", ">", "_", " ", "_").Replace(s)
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
