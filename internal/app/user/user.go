/*
Package user contains the user identity model and profile operations.

It defines the representation of a chat participant used in persisted messages,
membership lists, typing events and live-presence snapshots.
*/
package user

import "time"

// User represents a chat participant.
type User struct {
	// ID is the numeric identifier issued by the user store.
	ID int64 `json:"id"`

	// Fullname is the display name shown next to messages.
	Fullname string `json:"fullname"`

	// Email is the login address of the user.
	Email string `json:"email"`

	// Avatar is the public URL of the avatar image, empty when unset.
	Avatar string `json:"avatar,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
