/*
Package handler provides the HTTP handlers and routing setup for the livechat server.

This file defines the main Router, applying necessary middleware like logging, CORS,
authentication and IP-based rate limiting before delegating requests to specific handlers
(API and WebSocket).
*/
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"livechat/internal/pkg/auth"
	"livechat/internal/pkg/limiter"
	"livechat/internal/pkg/logx"
	"livechat/internal/pkg/resp"
)

const (
	CreateRate  = 0.05
	CreateBurst = 2
	JoinRate    = 0.2
	JoinBurst   = 5
)

// Limiters are the IP rate limiters used by the router. Stop them on shutdown.
type Limiters struct {
	Create *limiter.IPRateLimiter
	Join   *limiter.IPRateLimiter
}

// NewLimiters returns the default limiters for chatroom creation and WebSocket handshakes.
func NewLimiters() *Limiters {
	return &Limiters{
		Create: limiter.NewIPRateLimiter(rate.Limit(CreateRate), CreateBurst),
		Join:   limiter.NewIPRateLimiter(rate.Limit(JoinRate), JoinBurst),
	}
}

// Stop releases the limiters' cleanup goroutines.
func (l *Limiters) Stop() {
	l.Create.Stop()
	l.Join.Stop()
}

// Router sets up the main HTTP routing table (chi.Router) for the application.
// It configures CORS, applies global middleware, guards the API with the bearer
// credential validator and rate limits chatroom creation and WebSocket handshakes.
func Router(deps *AppDeps, limiters *Limiters) http.Handler {
	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	var wsUpgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if deps.Config.IsDevelopment() {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]string{
			"status":  "ok",
			"service": "livechat",
		}
		resp.RespondSuccess(w, r, data)
	})

	if deps.AssetsDir != "" {
		r.Handle("/assets/*", http.StripPrefix("/assets/", http.FileServer(http.Dir(deps.AssetsDir))))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(auth.Guard(deps.Validator))

		api.Route("/chatrooms", func(rooms chi.Router) {
			rooms.With(limiters.Create.Middleware).Post("/", HandleCreateChatroom(deps))

			rooms.Route("/{chatroomID}", func(room chi.Router) {
				room.Delete("/", HandleDeleteChatroom(deps))

				room.Get("/users", HandleGetUsersOfChatroom(deps))
				room.Post("/users", HandleAddUsersToChatroom(deps))

				room.Get("/messages", HandleGetMessagesForChatroom(deps))
				room.Post("/messages", HandleSendMessage(deps))

				room.Post("/enter", HandleEnterChatroom(deps))
				room.Post("/leave", HandleLeaveChatroom(deps))
				room.Get("/live-users", HandleGetLiveUsers(deps))

				room.Post("/typing/start", HandleTypingStarted(deps))
				room.Post("/typing/stop", HandleTypingStopped(deps))
			})
		})

		api.Route("/users", func(users chi.Router) {
			users.Get("/search", HandleSearchUsers(deps))
			users.Get("/{userID}/chatrooms", HandleGetChatroomsForUser(deps))
		})

		api.Route("/user", func(user chi.Router) {
			user.Get("/profile", HandleGetUserProfile(deps))
			user.Post("/profile", HandleUpdateUserProfile(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(deps, wsUpgrader, limiters.Join))

	return r
}
