package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"livechat/internal/pkg/errs"
	"livechat/internal/pkg/limiter"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/resp"
)

// HandleWebSocket creates an HTTP HandlerFunc that upgrades subscription connections.
// Credentials are not read here: the gateway authenticates the connection_init frame.
func HandleWebSocket(deps *AppDeps, upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := limiter.ClientIP(r)

		if !rateLimiter.Allow(ip) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", ip)
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket", "ip", ip)
			return
		}

		deps.Gateway.Serve(r.Context(), conn)
	}
}
