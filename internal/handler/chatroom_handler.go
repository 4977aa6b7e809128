package handler

import (
	"net/http"

	"livechat/internal/app/chatroom"
	"livechat/internal/app/storage"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/req"
	"livechat/internal/pkg/resp"
)

// CreateChatroomRequest is the body of POST /api/chatrooms.
type CreateChatroomRequest struct {
	Name string `json:"name"`
}

// AddUsersRequest is the body of POST /api/chatrooms/{chatroomID}/users.
type AddUsersRequest struct {
	UserIDs []int64 `json:"userIds"`
}

// SendMessageRequest is the JSON body of POST /api/chatrooms/{chatroomID}/messages.
type SendMessageRequest struct {
	Content string `json:"content"`
}

// HandleCreateChatroom creates a chatroom whose first member is the caller.
func HandleCreateChatroom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		var body CreateChatroomRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Chatrooms.CreateChatroom(r.Context(), body.Name, userID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		logx.Info("Chatroom created", "chatroom_id", room.ID, "creator_id", userID)
		resp.RespondSuccess(w, r, room)
	}
}

// HandleAddUsersToChatroom adds members to an existing chatroom.
func HandleAddUsersToChatroom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		var body AddUsersRequest
		if customErr := req.BindJSON(r, &body); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		room, err := deps.Chatrooms.AddUsersToChatroom(r.Context(), chatroomID, body.UserIDs)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, room)
	}
}

// HandleDeleteChatroom removes a chatroom with its memberships and messages.
func HandleDeleteChatroom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := deps.Chatrooms.DeleteChatroom(r.Context(), chatroomID); err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		logx.Info("Chatroom deleted", "chatroom_id", chatroomID)
		resp.RespondSuccess(w, r, map[string]int64{"id": chatroomID})
	}
}

// HandleSendMessage persists a message and notifies chatroom subscribers.
// It accepts either a JSON body or a multipart form with a "content" field and an optional "image" file.
func HandleSendMessage(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := callerID(w, r)
		if !ok {
			return
		}

		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		in := chatroom.SendMessageInput{ChatroomID: chatroomID, AuthorID: userID}

		if req.IsMultipart(r) {
			if customErr := req.SetupMultipart(w, r); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			defer r.MultipartForm.RemoveAll()

			in.Content = r.FormValue("content")

			file, header, customErr := req.FormFile(r, "image")
			if customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			if file != nil {
				defer file.Close()
				in.Image = &storage.Upload{
					Name:        header.Filename,
					ContentType: header.Header.Get("Content-Type"),
					Size:        header.Size,
					Body:        file,
				}
			}
		} else {
			var body SendMessageRequest
			if customErr := req.BindJSON(r, &body); customErr != nil {
				resp.RespondError(w, r, customErr)
				return
			}
			in.Content = body.Content
		}

		msg, err := deps.Chatrooms.SendMessage(r.Context(), in)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, msg)
	}
}

// HandleGetChatroomsForUser lists the chatrooms a user belongs to, with members and messages.
func HandleGetChatroomsForUser(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, customErr := req.PathID(r, "userID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		rooms, err := deps.Chatrooms.GetChatroomsForUser(r.Context(), userID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, rooms)
	}
}

// HandleGetMessagesForChatroom lists a chatroom's messages oldest first.
func HandleGetMessagesForChatroom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		messages, err := deps.Chatrooms.GetMessagesForChatroom(r.Context(), chatroomID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, messages)
	}
}

// HandleGetUsersOfChatroom lists a chatroom's members.
func HandleGetUsersOfChatroom(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chatroomID, customErr := req.PathID(r, "chatroomID")
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		users, err := deps.Chatrooms.GetUsersOfChatroom(r.Context(), chatroomID)
		if err != nil {
			resp.RespondErr(w, r, err)
			return
		}

		resp.RespondSuccess(w, r, users)
	}
}
