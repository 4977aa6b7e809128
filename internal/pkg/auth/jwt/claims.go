package jwt

import "github.com/golang-jwt/jwt"

// Payload defines the JWT claims accepted by the chat server.
// Tokens are issued by the external auth service; this server only validates them.
type Payload struct {
	// StandardClaims embeds Exp, Iat and Iss, which drive token validity checks.
	jwt.StandardClaims

	// UserID is the numeric identifier of the authenticated user.
	UserID int64 `json:"userId"`

	// Email is informational and never used for authorization.
	Email string `json:"email,omitempty"`
}
