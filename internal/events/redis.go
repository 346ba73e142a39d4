package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a client from a redis:// URL or a bare host:port.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		if strings.Contains(url, "://") {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = &redis.Options{Addr: url}
	}
	return redis.NewClient(opts), nil
}

// RedisPublisher publishes JSON-encoded events to Redis channels.
type RedisPublisher struct {
	client *redis.Client
}

func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return p.client.Publish(ctx, topic, data).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// RedisSubscriber subscribes to events from Redis channels.
type RedisSubscriber struct {
	client *redis.Client
}

func NewRedisSubscriber(client *redis.Client) *RedisSubscriber {
	return &RedisSubscriber{client: client}
}

// Subscribe returns a channel that receives raw payloads published on the
// given channel. The returned channel is closed by cancel or when the
// connection is lost.
func (s *RedisSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	ctx := context.Background()
	ps := s.client.Subscribe(ctx, topic)
	// Wait for the subscription confirmation so that later publishes are
	// delivered.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}

	out := make(chan []byte, 64)
	stop := make(chan struct{})
	done := make(chan struct{})
	msgs := ps.Channel()
	go func() {
		defer close(done)
		defer close(out)
		for {
			select {
			case <-stop:
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				default:
				}
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(stop)
			_ = ps.Close()
			<-done
		})
	}
	return out, cancel, nil
}

func (s *RedisSubscriber) Close() error {
	return s.client.Close()
}
