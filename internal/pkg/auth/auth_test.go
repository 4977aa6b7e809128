package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func staticValidator(token string, id Identity) Validator {
	return ValidatorFunc(func(credential string) (Identity, error) {
		if credential != token {
			return Identity{}, ErrInvalidCredential
		}
		return id, nil
	})
}

func TestPrincipal(t *testing.T) {
	anon := FromContext(context.Background())
	_, ok := anon.Identity()
	assert.False(t, ok)
	assert.False(t, anon.IsAuthenticated())

	ctx := WithPrincipal(context.Background(), Authenticated(Identity{UserID: 9}))
	id, ok := IdentityFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, int64(9), id.UserID)
}

func TestBearerToken(t *testing.T) {
	token, ok := BearerToken("Bearer abc")
	assert.True(t, ok)
	assert.Equal(t, "abc", token)

	_, ok = BearerToken("Basic abc")
	assert.False(t, ok)
	_, ok = BearerToken("Bearer ")
	assert.False(t, ok)
	_, ok = BearerToken("")
	assert.False(t, ok)
}

func TestGuard(t *testing.T) {
	var reached Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	handler := Guard(staticValidator("good", Identity{UserID: 4}))(next)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"invalid", "Bearer bad", http.StatusUnauthorized},
		{"valid", "Bearer good", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = Identity{}
			req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, int64(4), reached.UserID)
			} else {
				assert.Zero(t, reached.UserID)
			}
		})
	}
}

func TestValidatorFunc(t *testing.T) {
	v := ValidatorFunc(func(string) (Identity, error) { return Identity{}, errors.New("nope") })
	_, err := v.Validate("x")
	assert.Error(t, err)
}
