/*
Package eventbus is the topic-keyed publish/subscribe core used for real-time fan-out.

Every payload is JSON-encoded once at publish time, so the process-local and the Redis
backends deliver identical bytes. Each live subscription to a topic receives every message
published after it was created, exactly once; there is no backlog and no replay.
*/
package eventbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"livechat/internal/pkg/logx"
)

// SubscriptionBuffer is the number of undelivered messages a subscription holds
// before further messages are dropped for that subscriber.
const SubscriptionBuffer = 256

// ErrClosed is returned by a Bus that has been shut down.
var ErrClosed = errors.New("eventbus: closed")

// EventClass names one of the per-chatroom event streams.
type EventClass string

const (
	ClassNewMessage        EventClass = "newMessage"
	ClassUserStartedTyping EventClass = "userStartedTyping"
	ClassUserStoppedTyping EventClass = "userStoppedTyping"
	ClassLiveUsers         EventClass = "liveUserInChatroom"
)

// Topic returns the topic name for class scoped to chatroomID, e.g. "newMessage.5".
func Topic(class EventClass, chatroomID int64) string {
	return fmt.Sprintf("%s.%d", class, chatroomID)
}

// Message is a published payload as seen by subscribers.
type Message struct {
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Decode unmarshals the payload into dst.
func (m Message) Decode(dst any) error {
	return json.Unmarshal(m.Payload, dst)
}

// Filter decides per message whether a subscriber receives it.
type Filter func(Message) bool

// Typed adapts a predicate over a decoded payload type into a Filter.
// Payloads that do not decode into T are rejected.
func Typed[T any](pred func(T) bool) Filter {
	return func(m Message) bool {
		var v T
		if err := m.Decode(&v); err != nil {
			return false
		}
		return pred(v)
	}
}

// Bus is the publish/subscribe contract shared by every backend.
type Bus interface {
	// Publish delivers payload to every live subscription on topic.
	Publish(ctx context.Context, topic string, payload any) error

	// Subscribe registers a subscription on topic. A nil filter accepts every message.
	// The subscription ends when ctx is cancelled or Close is called.
	Subscribe(ctx context.Context, topic string, filter Filter) (*Subscription, error)

	// Close ends every subscription and rejects further use.
	Close() error
}

// Notify publishes payload and reports a failure to the log instead of returning it.
// Mutations use it so that a lost notification never fails the mutation itself.
func Notify(ctx context.Context, bus Bus, topic string, payload any) {
	if err := bus.Publish(ctx, topic, payload); err != nil {
		logx.Error(err, "Failed to publish event", "topic", topic)
	}
}

// encode builds the Message delivered for payload.
func encode(topic string, payload any) (Message, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		return Message{Topic: topic, Payload: raw}, nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("eventbus: encode payload for %s: %w", topic, err)
	}
	return Message{Topic: topic, Payload: data}, nil
}

// Subscription is a single subscriber's view of a topic.
type Subscription struct {
	topic  string
	filter Filter

	// events is closed once the subscription ends.
	events chan Message

	// done is closed once the subscription ends; it stops the context watcher.
	done chan struct{}

	// mu guards closed and serializes delivery against Close.
	mu     sync.Mutex
	closed bool

	// release detaches the subscription from its backend.
	release func()

	logger zerolog.Logger
}

func newSubscription(ctx context.Context, topic string, filter Filter, release func()) *Subscription {
	s := &Subscription{
		topic:   topic,
		filter:  filter,
		events:  make(chan Message, SubscriptionBuffer),
		done:    make(chan struct{}),
		release: release,
		logger:  logx.Component("EventBus").With().Str("topic", topic).Logger(),
	}

	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	return s
}

// Topic returns the topic the subscription listens on.
func (s *Subscription) Topic() string {
	return s.topic
}

// Events returns the message stream. It is closed when the subscription ends.
func (s *Subscription) Events() <-chan Message {
	return s.events
}

// Done is closed when the subscription ends.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription and releases it from the bus. Safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.events)
	close(s.done)
	s.mu.Unlock()

	if s.release != nil {
		s.release()
	}
}

// deliver hands msg to the subscriber unless it is filtered out or the buffer is full.
// It never blocks the publisher.
func (s *Subscription) deliver(msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.filter != nil && !s.filter(msg) {
		return
	}

	select {
	case s.events <- msg:
	default:
		s.logger.Warn().Int("buffer", SubscriptionBuffer).Msg("Subscriber is not keeping up. Message dropped.")
	}
}
