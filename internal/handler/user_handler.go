package handler

import (
	"net/http"

	"pairchat/internal/pkg/auth/jwt"
	"pairchat/internal/pkg/resp"
)

// HandleListUsers returns every other user with their online flag.
func HandleListUsers(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roster, err := deps.Hub.Roster(r.Context(), jwt.Username(r))
		if err != nil {
			resp.RespondError(w, r, toCustomError(err, "list_users"))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"users": roster})
	}
}

// HandleGetStatus returns the presence of one user.
func HandleGetStatus(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		peer, customErr := lookupPeer(r, deps)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		status := deps.Presence.GetStatus(r.Context(), peer)
		resp.RespondSuccess(w, r, map[string]any{"username": peer, "status": status})
	}
}
