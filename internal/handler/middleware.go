package handler

import (
	"net/http"

	"pairchat/internal/app/presence"
	"pairchat/internal/pkg/auth/jwt"
	"pairchat/internal/pkg/errs"
	"pairchat/internal/pkg/resp"
)

// RequireIdentity rejects anonymous requests with ErrUnauthorized.
func RequireIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if jwt.Username(r) == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// PresenceTouch marks the caller online on every authenticated request.
// Nothing is broadcast; rosters pick the change up on their next refresh.
func PresenceTouch(svc *presence.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if username := jwt.Username(r); username != "" {
				svc.MarkOnline(r.Context(), username)
			}

			next.ServeHTTP(w, r)
		})
	}
}
