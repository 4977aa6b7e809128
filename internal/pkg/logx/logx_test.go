package logx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"203.0.113.57:51234", "203.0.113.0"},
		{"203.0.113.57", "203.0.113.0"},
		{"127.0.0.1:8080", "127.0.0.1"},
		{"[2001:db8:85a3::8a2e:370:7334]:443", "2001:db8:85a3::"},
		{"not-an-ip", "unknown_ip"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, anonymizeIP(tt.in))
		})
	}
}

func TestCheckFields(t *testing.T) {
	Silence()

	assert.Equal(t, []any{"k", 1}, checkFields("Info", []any{"k", 1}))
	assert.Nil(t, checkFields("Info", []any{"dangling"}))
}

func TestRequestLogger_PassesThrough(t *testing.T) {
	Silence()

	handler := middleware.RequestID(RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	var pattern string
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req)
			pattern = routePattern(req)
		})
	})
	r.Get("/api/chatrooms/{chatroomID}/messages", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chatrooms/42/messages", nil))
	assert.Equal(t, "/api/chatrooms/{chatroomID}/messages", pattern)

	assert.Equal(t, "/raw", routePattern(httptest.NewRequest(http.MethodGet, "/raw", nil)))
}

func TestIsUpgrade(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/ws", nil)
	assert.False(t, isUpgrade(r))

	r.Header.Set("Upgrade", "WebSocket")
	assert.True(t, isUpgrade(r))
}
