package errs

import "net/http"

// errorMap holds the client message and HTTP status for every code.
var errorMap = map[int]CustomError{
	// 1xxx
	ErrInvalidParams:        {Code: ErrInvalidParams, Message: "Invalid request parameters.", Status: http.StatusBadRequest},
	ErrUnsupportedMediaType: {Code: ErrUnsupportedMediaType, Message: "Unsupported request format.", Status: http.StatusUnsupportedMediaType},
	ErrInvalidJSONFormat:    {Code: ErrInvalidJSONFormat, Message: "Unsupported request format.", Status: http.StatusBadRequest},
	ErrExtraContentInBody:   {Code: ErrExtraContentInBody, Message: "Request contains unexpected data.", Status: http.StatusBadRequest},
	ErrRateLimitExceeded:    {Code: ErrRateLimitExceeded, Message: "Too many requests. Please try again later.", Status: http.StatusTooManyRequests},

	// 2xxx
	ErrPeerNotFound:          {Code: ErrPeerNotFound, Message: "User not found.", Status: http.StatusNotFound},
	ErrNotFriends:            {Code: ErrNotFriends, Message: "You can only chat with friends.", Status: http.StatusForbidden},
	ErrSelfChat:              {Code: ErrSelfChat, Message: "You cannot chat with yourself.", Status: http.StatusBadRequest},
	ErrMessageContentTooLong: {Code: ErrMessageContentTooLong, Message: "Message is too long (max %d bytes).", Status: http.StatusBadRequest},
	ErrMessageContentEmpty:   {Code: ErrMessageContentEmpty, Message: "Message is empty.", Status: http.StatusBadRequest},
	ErrFriendRequestExists:   {Code: ErrFriendRequestExists, Message: "Friend request already sent.", Status: http.StatusConflict},
	ErrFriendRequestNotFound: {Code: ErrFriendRequestNotFound, Message: "Friend request not found.", Status: http.StatusNotFound},
	ErrFriendRequestSelf:     {Code: ErrFriendRequestSelf, Message: "You cannot add yourself as a friend.", Status: http.StatusBadRequest},

	// 3xxx
	ErrUnauthorized:       {Code: ErrUnauthorized, Message: "Please sign in to continue.", Status: http.StatusUnauthorized},
	ErrAlreadyLoggedIn:    {Code: ErrAlreadyLoggedIn, Message: "You are already signed in.", Status: http.StatusBadRequest},
	ErrInvalidUsername:    {Code: ErrInvalidUsername, Message: "Invalid username.", Status: http.StatusBadRequest},
	ErrInvalidPassword:    {Code: ErrInvalidPassword, Message: "Invalid password.", Status: http.StatusBadRequest},
	ErrUserAlreadyExists:  {Code: ErrUserAlreadyExists, Message: "Username is already taken.", Status: http.StatusConflict},
	ErrInvalidCredentials: {Code: ErrInvalidCredentials, Message: "Incorrect username or password.", Status: http.StatusUnauthorized},

	// 5xxx
	ErrUnknown:          {Code: ErrUnknown, Message: "Something went wrong. Please try again.", Status: http.StatusInternalServerError},
	ErrStoreUnavailable: {Code: ErrStoreUnavailable, Message: "Service temporarily unavailable.", Status: http.StatusServiceUnavailable},
}
