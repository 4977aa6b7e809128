package handler

import (
	"net/http"

	"livechat/internal/pkg/req"
	"livechat/internal/pkg/resp"
)

// HandleEnterChatroom marks the caller live in a chatroom and returns the live-user snapshot.
func HandleEnterChatroom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, ok := caller(w, r, deps)
		if !ok {
			return
		}

		live, err := deps.Presence.Enter(r.Context(), chatroomID, *u)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, live)
	}
}

// HandleLeaveChatroom removes the caller from a chatroom's live users.
func HandleLeaveChatroom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, ok := caller(w, r, deps)
		if !ok {
			return
		}

		if err := deps.Presence.Leave(r.Context(), chatroomID, *u); err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, true)
	}
}

// HandleGetLiveUsers returns the current live users of a chatroom.
func HandleGetLiveUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		live, err := deps.Presence.LiveUsers(r.Context(), chatroomID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, live)
	}
}

// HandleTypingStarted announces that the caller started typing.
func HandleTypingStarted(deps *AppDeps) http.HandlerFunc {
	return handleTyping(deps, true)
}

// HandleTypingStopped announces that the caller stopped typing.
func HandleTypingStopped(deps *AppDeps) http.HandlerFunc {
	return handleTyping(deps, false)
}

func handleTyping(deps *AppDeps, started bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, ok := caller(w, r, deps)
		if !ok {
			return
		}

		if started {
			deps.Typing.NotifyStarted(r.Context(), chatroomID, *u)
		} else {
			deps.Typing.NotifyStopped(r.Context(), chatroomID, *u)
		}

		resp.RespondSuccess(w, r, u)
	}
}
