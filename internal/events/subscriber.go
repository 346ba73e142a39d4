package events

// Subscriber receives raw payloads from a message bus.
type Subscriber interface {
	// Subscribe delivers the payloads published on topic. The channel is
	// closed by the returned cancel func, or by the subscriber when delivery
	// stops for any other reason; payloads may have been missed in that case.
	Subscribe(topic string) (<-chan []byte, func(), error)
	Close() error
}
