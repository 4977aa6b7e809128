/*
Package auth models the caller identity attached to every inbound operation.

A Principal is either anonymous or authenticated; both the per-call HTTP guard and the
WebSocket connection handshake populate it through the same Validator before any
service method runs.
*/
package auth

import (
	"context"
	"errors"
)

// ErrInvalidCredential is returned by validators for missing, malformed or expired credentials.
var ErrInvalidCredential = errors.New("invalid credential")

// Identity is the validated caller.
type Identity struct {
	UserID int64  `json:"id"`
	Email  string `json:"email,omitempty"`
}

// Validator turns a raw credential into an Identity.
type Validator interface {
	Validate(credential string) (Identity, error)
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(credential string) (Identity, error)

// Validate calls f(credential).
func (f ValidatorFunc) Validate(credential string) (Identity, error) {
	return f(credential)
}

type state uint8

const (
	stateAnonymous state = iota
	stateAuthenticated
)

// Principal is the request context's caller: Anonymous or Authenticated(identity).
// The zero value is Anonymous.
type Principal struct {
	state    state
	identity Identity
}

// Anonymous returns the unauthenticated principal.
func Anonymous() Principal {
	return Principal{}
}

// Authenticated returns a principal carrying id.
func Authenticated(id Identity) Principal {
	return Principal{state: stateAuthenticated, identity: id}
}

// Identity returns the identity and true for authenticated principals.
func (p Principal) Identity() (Identity, bool) {
	return p.identity, p.state == stateAuthenticated
}

// IsAuthenticated reports whether p carries an identity.
func (p Principal) IsAuthenticated() bool {
	return p.state == stateAuthenticated
}

type contextKey struct{}

// WithPrincipal returns a copy of ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored in ctx, or Anonymous.
func FromContext(ctx context.Context) Principal {
	p, ok := ctx.Value(contextKey{}).(Principal)
	if !ok {
		return Anonymous()
	}
	return p
}

// IdentityFromContext is shorthand for FromContext(ctx).Identity().
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	return FromContext(ctx).Identity()
}
