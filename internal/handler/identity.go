package handler

import (
	"net/http"

	"livechat/internal/app/user"
	"livechat/internal/pkg/auth"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/resp"
)

// callerID returns the authenticated user id placed in the context by auth.Guard.
func callerID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
		return 0, false
	}
	return identity.UserID, true
}

// caller loads the full user record of the authenticated caller.
func caller(w http.ResponseWriter, r *http.Request, deps *AppDeps) (*user.User, bool) {
	id, ok := callerID(w, r)
	if !ok {
		return nil, false
	}

	u, err := deps.Users.GetUser(r.Context(), id)
	if err != nil {
		resp.RespondErr(w, r, err)
		return nil, false
	}
	return u, true
}
