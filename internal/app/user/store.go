package user

import (
	"context"
	"errors"
)

// ErrNotFound is returned by a Store when the user does not exist.
var ErrNotFound = errors.New("user not found")

// ProfileUpdate lists profile fields to change. A nil field is left untouched.
type ProfileUpdate struct {
	Fullname  *string
	AvatarURL *string
}

// Store is the persistence collaborator for users.
type Store interface {
	// FindUser returns the user with id, or ErrNotFound.
	FindUser(ctx context.Context, id int64) (*User, error)

	// UpdateProfile applies update and returns the stored user, or ErrNotFound.
	UpdateProfile(ctx context.Context, id int64, update ProfileUpdate) (*User, error)

	// SearchUsers returns users whose full name contains fullname (case-insensitive),
	// excluding excludeID.
	SearchUsers(ctx context.Context, fullname string, excludeID int64) ([]User, error)
}
