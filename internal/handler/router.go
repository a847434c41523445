package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"pairchat/internal/pkg/auth/jwt"
	"pairchat/internal/pkg/errs"
	"pairchat/internal/pkg/limiter"
	"pairchat/internal/pkg/logx"
	"pairchat/internal/pkg/resp"
)

const (
	AuthRate  = 0.2
	AuthBurst = 5
)

// Router sets up the HTTP routing table. Rate limiters stop sweeping when ctx ends.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AuthRate), AuthBurst)
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.WSConnectRate), deps.Config.WSConnectBurst)

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
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.Ready != nil {
			if err := deps.Ready(r.Context()); err != nil {
				logx.Warn("Health check failed", "error", err.Error())
				resp.RespondError(w, r, errs.NewError(errs.ErrStoreUnavailable))
				return
			}
		}

		resp.RespondSuccess(w, r, map[string]any{
			"status":   "ok",
			"service":  "pairchat",
			"sessions": deps.Hub.SessionCount(),
		})
	})

	r.Route("/api", func(api chi.Router) {
		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
			auth.With(RequireIdentity).Post("/logout", HandleLogout(deps))
		})

		api.Group(func(private chi.Router) {
			private.Use(RequireIdentity)
			private.Use(PresenceTouch(deps.Presence))

			private.Get("/users", HandleListUsers(deps))
			private.Get("/users/{username}/status", HandleGetStatus(deps))

			private.Get("/chat/{username}/messages", HandleChatHistory(deps))
			private.Get("/messages/unread", HandleUnreadCounts(deps))

			private.Get("/friends", HandleListFriends(deps))
			private.Get("/friends/requests", HandlePendingFriendRequests(deps))
			private.Post("/friends/requests", HandleSendFriendRequest(deps))
			private.Post("/friends/requests/{sender}/accept", HandleAcceptFriendRequest(deps))
		})
	})

	r.Get("/ws", HandleWebSocket(wsUpgrader, connectLimiter, deps))

	return r
}
