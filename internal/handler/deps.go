package handler

import (
	"livechat/internal/app/chatroom"
	"livechat/internal/app/gateway"
	"livechat/internal/app/presence"
	"livechat/internal/app/typing"
	"livechat/internal/app/user"
	"livechat/internal/configs"
	"livechat/internal/pkg/auth"
)

// AppDeps holds everything the HTTP layer calls into.
type AppDeps struct {
	Config *configs.AppConfig

	Chatrooms *chatroom.Service
	Users     *user.Service
	Presence  *presence.Service
	Typing    *typing.Coordinator
	Gateway   *gateway.Gateway

	// Validator checks bearer credentials for the API guard.
	Validator auth.Validator

	// AssetsDir is served under /assets when images are stored on local disk. Empty disables it.
	AssetsDir string
}
