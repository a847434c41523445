package handler

import (
	"context"
	"errors"

	"pairchat/internal/app/chat"
	"pairchat/internal/app/message"
	"pairchat/internal/app/presence"
	"pairchat/internal/app/user"
	"pairchat/internal/configs"
	"pairchat/internal/pkg/errs"
	"pairchat/internal/pkg/logx"
)

// AppDeps carries everything the HTTP layer needs.
type AppDeps struct {
	Config   *configs.AppConfig
	Hub      *chat.Hub
	Users    user.Store
	Friends  user.FriendStore
	Messages message.Store
	Presence *presence.Service

	// Ready reports whether external backends are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
}

// toCustomError maps a domain error onto the client error table.
// Errors without a mapping are logged and reported as unavailable storage.
func toCustomError(err error, op string) *errs.CustomError {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		return errs.NewError(errs.ErrPeerNotFound)
	case errors.Is(err, user.ErrUserExists):
		return errs.NewError(errs.ErrUserAlreadyExists)
	case errors.Is(err, user.ErrInvalidUsername):
		return errs.NewError(errs.ErrInvalidUsername)
	case errors.Is(err, user.ErrInvalidPassword):
		return errs.NewError(errs.ErrInvalidPassword)
	case errors.Is(err, user.ErrSelfRequest):
		return errs.NewError(errs.ErrFriendRequestSelf)
	case errors.Is(err, user.ErrRequestExists):
		return errs.NewError(errs.ErrFriendRequestExists)
	case errors.Is(err, user.ErrRequestNotFound):
		return errs.NewError(errs.ErrFriendRequestNotFound)
	case errors.Is(err, message.ErrEmptyContent):
		return errs.NewError(errs.ErrMessageContentEmpty)
	case errors.Is(err, message.ErrContentTooLong):
		return errs.NewError(errs.ErrMessageContentTooLong, message.MaxContentBytes)
	case errors.Is(err, message.ErrInvalidReceiver):
		return errs.NewError(errs.ErrPeerNotFound)
	case errors.Is(err, chat.ErrSelfChat):
		return errs.NewError(errs.ErrSelfChat)
	}

	logx.Error(err, "Store operation failed", "op", op)
	return errs.NewError(errs.ErrStoreUnavailable)
}
