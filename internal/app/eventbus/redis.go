package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// RedisBus is the Bus backend for multi-instance deployments, built on Redis Pub/Sub.
// Topics are mapped to channels under a configurable prefix.
type RedisBus struct {
	client *redis.Client
	prefix string

	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	closed bool
}

// NewRedisBus returns a bus publishing on client's channels, prefixed with prefix.
func NewRedisBus(client *redis.Client, prefix string) *RedisBus {
	return &RedisBus{
		client: client,
		prefix: prefix,
		subs:   make(map[*Subscription]struct{}),
	}
}

func (b *RedisBus) channel(topic string) string {
	return b.prefix + topic
}

// Publish sends the encoded payload to the topic's channel.
func (b *RedisBus) Publish(ctx context.Context, topic string, payload any) error {
	if b.isClosed() {
		return ErrClosed
	}

	msg, err := encode(topic, payload)
	if err != nil {
		return err
	}

	if err := b.client.Publish(ctx, b.channel(topic), []byte(msg.Payload)).Err(); err != nil {
		return fmt.Errorf("eventbus: redis publish %s: %w", topic, err)
	}
	return nil
}

// Subscribe opens a Redis subscription on the topic's channel. It returns only after
// Redis confirmed the subscription, so a publish that follows is guaranteed to be seen.
func (b *RedisBus) Subscribe(ctx context.Context, topic string, filter Filter) (*Subscription, error) {
	if b.isClosed() {
		return nil, ErrClosed
	}

	pubsub := b.client.Subscribe(ctx, b.channel(topic))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("eventbus: redis subscribe %s: %w", topic, err)
	}

	var sub *Subscription
	sub = newSubscription(ctx, topic, filter, func() {
		if err := pubsub.Close(); err != nil && !strings.Contains(err.Error(), "closed") {
			sub.logger.Warn().Err(err).Msg("Failed to close Redis subscription")
		}
		b.mu.Lock()
		delete(b.subs, sub)
		b.mu.Unlock()
	})

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		sub.Close()
		return nil, ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	go func() {
		for m := range pubsub.Channel() {
			sub.deliver(Message{Topic: topic, Payload: json.RawMessage(m.Payload)})
		}
	}()

	return sub, nil
}

// Close ends every subscription opened through this bus. The client itself is left open.
func (b *RedisBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true

	subs := make([]*Subscription, 0, len(b.subs))
	for sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
	}
	return nil
}

func (b *RedisBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.closed
}
