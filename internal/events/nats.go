package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes JSON-encoded events to NATS subjects.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.Name("quadrant-relay"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}
	return p.conn.Publish(topic, data)
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// NATSSubscriber subscribes to NATS subjects. The client reconnects on its
// own, but whatever was published while it was away is gone: a disconnect
// therefore ends every open subscription, and consumers re-subscribe once
// the connection is back.
type NATSSubscriber struct {
	conn *nats.Conn

	mu   sync.Mutex
	subs map[*natsSub]struct{}
}

// natsSub is one subscription's delivery channel.
type natsSub struct {
	sub *nats.Subscription
	ch  chan []byte

	mu     sync.Mutex
	closed bool
}

func (s *natsSub) deliver(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- data:
	default:
		// Channel full: a refetch is already pending downstream.
	}
}

func (s *natsSub) end() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	if s.sub != nil {
		_ = s.sub.Unsubscribe()
	}
	close(s.ch)
}

// NewNATSSubscriber connects to NATS with automatic reconnection support.
// Extra nats.Option values are applied after the defaults.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	s := &NATSSubscriber{subs: make(map[*natsSub]struct{})}
	defaults := []nats.Option{
		nats.Name("quadrant-client"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(*nats.Conn, error) { s.endAll() }),
		nats.ClosedHandler(func(*nats.Conn) { s.endAll() }),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	s.conn = nc
	return s, nil
}

// Subscribe returns a channel that receives raw event payloads for the given
// subject. The channel is closed by cancel or when the connection drops.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan []byte, func(), error) {
	if !s.conn.IsConnected() {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, nats.ErrConnectionReconnecting)
	}
	ns := &natsSub{ch: make(chan []byte, 64)}
	sub, err := s.conn.Subscribe(topic, func(msg *nats.Msg) { ns.deliver(msg.Data) })
	if err != nil {
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	ns.sub = sub
	// Flush so the subscription is registered on the server before any
	// publish on another connection.
	if err := s.conn.Flush(); err != nil {
		ns.end()
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	s.mu.Lock()
	s.subs[ns] = struct{}{}
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		delete(s.subs, ns)
		s.mu.Unlock()
		ns.end()
	}
	return ns.ch, cancel, nil
}

// endAll closes every open subscription.
func (s *NATSSubscriber) endAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[*natsSub]struct{})
	s.mu.Unlock()
	for ns := range subs {
		ns.end()
	}
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
