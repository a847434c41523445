/*
Package errs provides the application error type and its code constants.

Codes identify request, chat, user/session and internal failures both in logs and
in the JSON bodies returned to HTTP clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body is not valid JSON.
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates trailing data after the JSON document.
	ErrExtraContentInBody = 1004

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007
)

// 2xxx: Chat and Messaging Errors
const (
	// ErrPeerNotFound indicates that the chat peer does not exist.
	ErrPeerNotFound = 2101

	// ErrNotFriends indicates that a chat was attempted between users who are not friends.
	ErrNotFriends = 2102

	// ErrSelfChat indicates that a user tried to open a chat with themselves.
	ErrSelfChat = 2103

	// ErrMessageContentTooLong indicates that the message exceeded the maximum length.
	ErrMessageContentTooLong = 2201

	// ErrMessageContentEmpty indicates that the message had no visible content.
	ErrMessageContentEmpty = 2202

	// ErrFriendRequestExists indicates a duplicate friend request.
	ErrFriendRequestExists = 2301

	// ErrFriendRequestNotFound indicates that there is no pending request to accept.
	ErrFriendRequestNotFound = 2302

	// ErrFriendRequestSelf indicates a friend request addressed to its own sender.
	ErrFriendRequestSelf = 2303
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates a missing or invalid identity.
	ErrUnauthorized = 3001

	// ErrAlreadyLoggedIn indicates that a signed-in user called register or login.
	ErrAlreadyLoggedIn = 3002

	// ErrInvalidUsername indicates a username outside the allowed pattern.
	ErrInvalidUsername = 3003

	// ErrInvalidPassword indicates a password outside the allowed length.
	ErrInvalidPassword = 3004

	// ErrUserAlreadyExists indicates that the username is taken.
	ErrUserAlreadyExists = 3005

	// ErrInvalidCredentials indicates a failed login.
	ErrInvalidCredentials = 3006
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified internal error.
	ErrUnknown = 5000

	// ErrStoreUnavailable indicates that a backing store could not be reached.
	ErrStoreUnavailable = 5001
)
