package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"pairchat/internal/app/message"
	"pairchat/internal/app/user"
	"pairchat/internal/pkg/auth/jwt"
	"pairchat/internal/pkg/errs"
	"pairchat/internal/pkg/logx"
	"pairchat/internal/pkg/resp"
)

// lookupPeer resolves the {username} path parameter to a registered user.
func lookupPeer(r *http.Request, deps *AppDeps) (string, *errs.CustomError) {
	peer := chi.URLParam(r, "username")
	if err := user.ValidateUsername(peer); err != nil {
		return "", errs.NewError(errs.ErrPeerNotFound)
	}

	if _, err := deps.Users.GetByUsername(r.Context(), peer); err != nil {
		return "", toCustomError(err, "lookup_peer")
	}

	return peer, nil
}

// parsePage reads ?page=N. A missing value selects the last page; a malformed one the first.
func parsePage(r *http.Request) int {
	raw := r.URL.Query().Get("page")
	if raw == "" {
		return 0
	}

	page, err := strconv.Atoi(raw)
	if err != nil {
		return 1
	}
	return page
}

// HandleChatHistory returns one page of the conversation with {username} and marks the
// peer's messages to the caller as read.
func HandleChatHistory(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		self := jwt.Username(r)

		peer, customErr := lookupPeer(r, deps)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if peer == self {
			resp.RespondError(w, r, errs.NewError(errs.ErrSelfChat))
			return
		}

		if _, err := deps.Messages.MarkRead(r.Context(), peer, self); err != nil {
			logx.Error(err, "history: failed to mark messages read", "username", self, "peer", peer)
		}

		page, err := deps.Messages.ListBetween(r.Context(), self, peer, parsePage(r), message.DefaultPageSize)
		if err != nil {
			resp.RespondError(w, r, toCustomError(err, "chat_history"))
			return
		}

		resp.RespondSuccess(w, r, page)
	}
}

// HandleUnreadCounts returns the caller's unread message counts keyed by sender.
func HandleUnreadCounts(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		counts, err := deps.Messages.UnreadCounts(r.Context(), jwt.Username(r))
		if err != nil {
			resp.RespondError(w, r, toCustomError(err, "unread_counts"))
			return
		}

		resp.RespondSuccess(w, r, counts)
	}
}
