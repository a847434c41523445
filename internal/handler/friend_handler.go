package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"pairchat/internal/pkg/auth/jwt"
	"pairchat/internal/pkg/logx"
	"pairchat/internal/pkg/req"
	"pairchat/internal/pkg/resp"
)

type FriendRequestInput struct {
	Receiver string `json:"receiver"`
}

// HandleSendFriendRequest sends a friend request from the caller to the given receiver.
func HandleSendFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input FriendRequestInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sender := jwt.Username(r)
		if err := deps.Friends.SendRequest(r.Context(), sender, input.Receiver); err != nil {
			resp.RespondError(w, r, toCustomError(err, "send_friend_request"))
			return
		}

		logx.Info("Friend request sent", "sender", sender, "receiver", input.Receiver)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleAcceptFriendRequest accepts the pending request from {sender} to the caller.
func HandleAcceptFriendRequest(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sender := chi.URLParam(r, "sender")
		receiver := jwt.Username(r)

		if err := deps.Friends.AcceptRequest(r.Context(), sender, receiver); err != nil {
			resp.RespondError(w, r, toCustomError(err, "accept_friend_request"))
			return
		}

		logx.Info("Friend request accepted", "sender", sender, "receiver", receiver)
		resp.RespondSuccess(w, r, nil)
	}
}

// HandleListFriends returns the caller's friends.
func HandleListFriends(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		friends, err := deps.Friends.ListFriends(r.Context(), jwt.Username(r))
		if err != nil {
			resp.RespondError(w, r, toCustomError(err, "list_friends"))
			return
		}

		if friends == nil {
			friends = []string{}
		}
		resp.RespondSuccess(w, r, map[string]any{"friends": friends})
	}
}

// HandlePendingFriendRequests returns the requests waiting for the caller.
func HandlePendingFriendRequests(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pending, err := deps.Friends.PendingRequests(r.Context(), jwt.Username(r))
		if err != nil {
			resp.RespondError(w, r, toCustomError(err, "pending_friend_requests"))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"requests": pending})
	}
}
