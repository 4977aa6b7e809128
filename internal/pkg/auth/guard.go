package auth

import (
	"net/http"
	"strings"

	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/resp"
)

// BearerToken extracts the token from an "Authorization: Bearer <token>" header value.
func BearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}

	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

// Guard returns a middleware that requires a valid bearer credential. Requests without one
// are rejected with an authorization error before reaching any handler; accepted requests
// carry an Authenticated principal in their context.
func Guard(validator Validator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			identity, err := validator.Validate(token)
			if err != nil {
				logx.Warn("Rejected request with invalid credential", "error", err, "path", r.URL.Path)
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}

			ctx := WithPrincipal(r.Context(), Authenticated(identity))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
