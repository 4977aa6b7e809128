package eventbus

import (
	"context"
	"sync"
)

// MemoryBus is the process-local Bus backend.
type MemoryBus struct {
	mu     sync.RWMutex
	topics map[string]map[*Subscription]struct{}
	closed bool
}

// NewMemoryBus returns an empty process-local bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		topics: make(map[string]map[*Subscription]struct{}),
	}
}

// Publish delivers payload synchronously to every current subscriber of topic,
// so a single publisher's messages arrive in publish order.
func (b *MemoryBus) Publish(ctx context.Context, topic string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg, err := encode(topic, payload)
	if err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrClosed
	}

	for sub := range b.topics[topic] {
		sub.deliver(msg)
	}
	return nil
}

// Subscribe registers a subscription on topic.
func (b *MemoryBus) Subscribe(ctx context.Context, topic string, filter Filter) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrClosed
	}

	var sub *Subscription
	sub = newSubscription(ctx, topic, filter, func() { b.remove(topic, sub) })

	subs, ok := b.topics[topic]
	if !ok {
		subs = make(map[*Subscription]struct{})
		b.topics[topic] = subs
	}
	subs[sub] = struct{}{}

	return sub, nil
}

// SubscriberCount returns the number of live subscriptions on topic.
func (b *MemoryBus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.topics[topic])
}

// Close ends every subscription.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	var subs []*Subscription
	for _, set := range b.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	b.topics = make(map[string]map[*Subscription]struct{})
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

func (b *MemoryBus) remove(topic string, sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.topics[topic]
	if !ok {
		return
	}
	delete(subs, sub)
	if len(subs) == 0 {
		delete(b.topics, topic)
	}
}
