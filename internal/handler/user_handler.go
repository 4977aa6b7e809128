package handler

import (
	"net/http"

	"livechat/internal/app/storage"
	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/req"
	"livechat/internal/pkg/resp"
)

// HandleGetUserProfile returns the caller's own user record.
func HandleGetUserProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		u, ok := caller(w, r, deps)
		if !ok {
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}

// HandleUpdateUserProfile updates the caller's full name and optionally the avatar.
// The body is a multipart form with a "fullname" field and an optional "file" part.
func HandleUpdateUserProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		if !req.IsMultipart(r) {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnsupportedMediaType))
			return
		}

		if customErr := req.SetupMultipart(w, r); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}
		defer r.MultipartForm.RemoveAll()

		file, header, customErr := req.FormFile(r, "file")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var avatar *storage.Upload
		if file != nil {
			defer file.Close()
			avatar = &storage.Upload{
				Name:        header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Size:        header.Size,
				Body:        file,
			}
		}

		u, err := deps.Users.UpdateProfile(r.Context(), userID, r.FormValue("fullname"), avatar)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, u)
	}
}

// HandleSearchUsers finds users by full name, excluding the caller.
func HandleSearchUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		users, err := deps.Users.SearchUsers(r.Context(), r.URL.Query().Get("fullname"), userID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}
