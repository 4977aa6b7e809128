/*
Package gateway turns long-lived client connections into event bus subscriptions.

A connection is authenticated once, at connect time; a Session only exists for a valid
identity. Each subscription maps an operation to a topic, a filter bound to the
subscription arguments and a resolver that shapes the payload sent to the client.
*/
package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"livechat/internal/app/eventbus"
	"livechat/internal/pkg/auth"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
)

// deliveryBuffer is the number of resolved payloads queued per session.
const deliveryBuffer = 64

// ConnectionParams are the key/value parameters sent with the connection handshake.
type ConnectionParams map[string]string

// Token returns the credential carried by the params: the "token" key, or a bearer
// "Authorization" value.
func (p ConnectionParams) Token() string {
	if token := p["token"]; token != "" {
		return token
	}
	for _, key := range []string{"Authorization", "authorization"} {
		if token, ok := auth.BearerToken(p[key]); ok {
			return token
		}
	}
	return ""
}

// Delivery is one resolved event for a subscription. Complete marks the end of a
// subscription that was not ended by the client.
type Delivery struct {
	ID       string
	Payload  json.RawMessage
	Complete bool
}

// Gateway authenticates connections and opens sessions on the bus.
type Gateway struct {
	validator auth.Validator
	bus       eventbus.Bus
	logger    zerolog.Logger

	mu     sync.Mutex
	conns  map[*Conn]struct{}
	closed bool
}

// New returns a Gateway validating credentials with validator and subscribing on bus.
func New(validator auth.Validator, bus eventbus.Bus) *Gateway {
	return &Gateway{
		validator: validator,
		bus:       bus,
		logger:    logx.Component("Gateway"),
		conns:     make(map[*Conn]struct{}),
	}
}

// Connect validates the credential in params and opens a session for it.
// A missing or invalid credential yields an auth error and no session.
func (g *Gateway) Connect(ctx context.Context, params ConnectionParams) (*Session, error) {
	token := params.Token()
	if token == "" {
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	identity, err := g.validator.Validate(token)
	if err != nil {
		g.logger.Warn().Err(err).Msg("Connection rejected: invalid credential.")
		return nil, errs.NewError(errs.ErrUnauthorized)
	}

	ctx, cancel := context.WithCancel(auth.WithPrincipal(ctx, auth.Authenticated(identity)))

	return &Session{
		ctx:        ctx,
		cancel:     cancel,
		bus:        g.bus,
		identity:   identity,
		subs:       make(map[string]*eventbus.Subscription),
		deliveries: make(chan Delivery, deliveryBuffer),
		logger:     g.logger.With().Int64("user_id", identity.UserID).Logger(),
	}, nil
}

// Session is an authenticated connection's set of subscriptions.
type Session struct {
	ctx      context.Context
	cancel   context.CancelFunc
	bus      eventbus.Bus
	identity auth.Identity

	mu     sync.Mutex
	subs   map[string]*eventbus.Subscription
	closed bool

	deliveries chan Delivery
	wg         sync.WaitGroup
	closeOnce  sync.Once

	logger zerolog.Logger
}

// Context carries the session's Authenticated principal. It is cancelled by Close.
func (s *Session) Context() context.Context {
	return s.ctx
}

// Identity returns the identity validated at connect time.
func (s *Session) Identity() auth.Identity {
	return s.identity
}

// Deliveries returns the stream of resolved events for every subscription of the session.
// It is closed once the session is closed.
func (s *Session) Deliveries() <-chan Delivery {
	return s.deliveries
}

// Subscribe starts the subscription id for op. Ids must be unique among live subscriptions.
func (s *Session) Subscribe(id string, op Operation, args Args) error {
	def, ok := operations[op]
	if !ok {
		return errs.NewError(errs.ErrUnknownOperation, string(op))
	}
	if id == "" {
		return errs.NewError(errs.ErrInvalidParams).WithField("id", "must not be empty")
	}
	if args.ChatroomID <= 0 {
		return errs.NewError(errs.ErrInvalidParams).WithField("chatroomId", "must be a positive integer")
	}
	if args.UserID == 0 {
		args.UserID = s.identity.UserID
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errs.NewError(errs.ErrSessionClosed)
	}
	if _, exists := s.subs[id]; exists {
		return errs.NewError(errs.ErrSubscriptionExists, id)
	}

	topic := eventbus.Topic(def.class, args.ChatroomID)

	var filter eventbus.Filter
	if def.filter != nil {
		filter = def.filter(args)
	}

	sub, err := s.bus.Subscribe(s.ctx, topic, filter)
	if err != nil {
		return errs.Upstream(errs.ErrUnknown, err, "Failed to open subscription", "topic", topic)
	}
	s.subs[id] = sub

	s.wg.Add(1)
	go s.pump(id, sub, def.resolve)

	s.logger.Debug().Str("subscription_id", id).Str("topic", topic).Msg("Subscription started.")
	return nil
}

// Unsubscribe ends the subscription id. It reports whether the id was live.
func (s *Session) Unsubscribe(id string) bool {
	s.mu.Lock()
	sub, ok := s.subs[id]
	delete(s.subs, id)
	s.mu.Unlock()

	if ok {
		sub.Close()
	}
	return ok
}

// Close ends every subscription and the session. Presence state is not touched.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		subs := s.subs
		s.subs = make(map[string]*eventbus.Subscription)
		s.mu.Unlock()

		s.cancel()
		for _, sub := range subs {
			sub.Close()
		}

		s.wg.Wait()
		close(s.deliveries)
	})
}

// pump resolves sub's messages into deliveries until the subscription or the session ends.
func (s *Session) pump(id string, sub *eventbus.Subscription, resolve resolver) {
	defer s.wg.Done()

	for msg := range sub.Events() {
		payload, err := resolve(msg)
		if err != nil {
			s.logger.Warn().Err(err).Str("topic", msg.Topic).Msg("Dropping event that failed to resolve.")
			continue
		}
		if !s.send(Delivery{ID: id, Payload: payload}) {
			return
		}
	}

	// The bus ended the subscription on its own; tell the client.
	s.mu.Lock()
	current, ok := s.subs[id]
	ended := ok && current == sub
	if ended {
		delete(s.subs, id)
	}
	s.mu.Unlock()

	if ended {
		s.send(Delivery{ID: id, Complete: true})
	}
}

func (s *Session) send(d Delivery) bool {
	select {
	case s.deliveries <- d:
		return true
	case <-s.ctx.Done():
		return false
	}
}
