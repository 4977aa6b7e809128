package jwt

import (
	"fmt"

	"livechat/internal/pkg/auth"
)

// Validator validates HS256 access tokens against a shared secret.
type Validator struct {
	secretKey string
}

var _ auth.Validator = (*Validator)(nil)

// NewValidator returns a Validator for tokens signed with secretKey.
func NewValidator(secretKey string) *Validator {
	return &Validator{secretKey: secretKey}
}

// Validate parses credential and returns the identity it carries.
func (v *Validator) Validate(credential string) (auth.Identity, error) {
	if credential == "" {
		return auth.Identity{}, auth.ErrInvalidCredential
	}

	payload, err := ParseToken(credential, v.secretKey)
	if err != nil {
		return auth.Identity{}, fmt.Errorf("%w: %v", auth.ErrInvalidCredential, err)
	}

	if payload.UserID <= 0 {
		return auth.Identity{}, fmt.Errorf("%w: token carries no user id", auth.ErrInvalidCredential)
	}

	return auth.Identity{UserID: payload.UserID, Email: payload.Email}, nil
}
