package events

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alfredjeanlab/quadrant/internal/backend"
	"github.com/alfredjeanlab/quadrant/internal/model"
)

// BusFeed adapts a Subscriber to backend.Feed. Each table subscription maps
// to one bus topic for the feed's user.
type BusFeed struct {
	sub    Subscriber
	userID string
	topic  func(userID string, table model.Table) string
	logger *slog.Logger
}

// Compile-time check that BusFeed implements backend.Feed.
var _ backend.Feed = (*BusFeed)(nil)

// NewBusFeed returns a feed reading userID's changes from sub, using topic
// to name the bus channel for each table.
func NewBusFeed(sub Subscriber, userID string, topic func(string, model.Table) string, logger *slog.Logger) *BusFeed {
	if logger == nil {
		logger = slog.Default()
	}
	return &BusFeed{sub: sub, userID: userID, topic: topic, logger: logger}
}

// NewNATSFeed connects to NATS and returns a feed on Subject.
func NewNATSFeed(url, userID string, logger *slog.Logger) (*BusFeed, error) {
	sub, err := NewNATSSubscriber(url)
	if err != nil {
		return nil, err
	}
	return NewBusFeed(sub, userID, Subject, logger), nil
}

// NewRedisFeed connects to Redis and returns a feed on RedisChannel.
func NewRedisFeed(url, userID string, logger *slog.Logger) (*BusFeed, error) {
	client, err := NewRedisClient(url)
	if err != nil {
		return nil, err
	}
	return NewBusFeed(NewRedisSubscriber(client), userID, RedisChannel, logger), nil
}

// Subscribe implements backend.Feed.
func (f *BusFeed) Subscribe(ctx context.Context, table model.Table) (<-chan model.Change, func(), error) {
	if !table.IsValid() {
		return nil, nil, fmt.Errorf("subscribe: unknown table %q", table)
	}
	topic := f.topic(f.userID, table)
	raw, cancelRaw, err := f.sub.Subscribe(topic)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan model.Change, 16)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case data, ok := <-raw:
				if !ok {
					return
				}
				c, err := model.DecodeChange(data)
				if err != nil {
					f.logger.Warn("dropping malformed change", "topic", topic, "err", err)
					continue
				}
				if c.ChangeTable() != table || c.ChangeUser() != f.userID {
					continue
				}
				select {
				case out <- c:
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			cancelRaw()
			<-done
		})
	}
	return out, cancel, nil
}

// Close closes the underlying subscriber connection.
func (f *BusFeed) Close() error { return f.sub.Close() }
