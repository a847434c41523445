package handler

import (
	"net/http"

	"github.com/gorilla/websocket"

	"pairchat/internal/pkg/auth/jwt"
	"pairchat/internal/pkg/errs"
	"pairchat/internal/pkg/limiter"
	"pairchat/internal/pkg/logx"
	"pairchat/internal/pkg/resp"
)

// HandleWebSocket upgrades the connection and hands it to the hub.
// The identity comes from the token query parameter; connections without one are
// upgraded and then closed with a policy violation.
func HandleWebSocket(upgrader websocket.Upgrader, rateLimiter *limiter.IPRateLimiter, deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rateLimiter.Allow(r) {
			logx.Warn("WebSocket connection rejected: Rate limit exceeded.", "ip", limiter.ClientIP(r))
			resp.RespondError(w, r, errs.NewError(errs.ErrRateLimitExceeded))
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			logx.Error(err, "Failed to upgrade connection to WebSocket")
			return
		}

		username := jwt.Username(r)
		if username == "" {
			deps.Hub.Reject(conn, "authentication required")
			return
		}

		logx.Info("WebSocket connection established", "username", username)

		deps.Hub.Serve(conn, username)
	}
}
