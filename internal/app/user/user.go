/*
Package user contains the registered user directory and the friendship graph.

Usernames are the identities used everywhere else: as JWT subject, presence key and as the
members of private chat group names. They are restricted to lowercase letters, digits and
underscores so they can be joined with ':' without ambiguity.
*/
package user

import (
	"context"
	"errors"
	"regexp"
	"time"
	"unicode/utf8"
)

var (
	ErrUserNotFound    = errors.New("user: not found")
	ErrUserExists      = errors.New("user: already exists")
	ErrInvalidUsername = errors.New("user: invalid username")
	ErrInvalidPassword = errors.New("user: invalid password")
	ErrSelfRequest     = errors.New("user: cannot befriend yourself")
	ErrRequestExists   = errors.New("user: friend request already exists")
	ErrRequestNotFound = errors.New("user: friend request not found")
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 72 // bcrypt input limit, in bytes
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9_]{4,20}$`)

// User is a registered account.
type User struct {
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// ValidateUsername checks name against the allowed identity alphabet and length.
func ValidateUsername(name string) error {
	if !usernamePattern.MatchString(name) {
		return ErrInvalidUsername
	}
	return nil
}

// ValidatePassword checks the password length limits.
func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength || len(password) > MaxPasswordLength {
		return ErrInvalidPassword
	}
	return nil
}

// Store is the user directory.
type Store interface {
	// Create registers a user. It returns ErrUserExists when the name is taken.
	Create(ctx context.Context, username, passwordHash string) (User, error)

	// GetByUsername returns ErrUserNotFound for unknown names.
	GetByUsername(ctx context.Context, username string) (User, error)

	// ListUsernames returns every registered username in ascending order.
	ListUsernames(ctx context.Context) ([]string, error)
}

// FriendRequestStatus is the state of a friend request.
type FriendRequestStatus string

const (
	RequestPending  FriendRequestStatus = "pending"
	RequestAccepted FriendRequestStatus = "accepted"
)

// FriendRequest is a directed request from Sender to Receiver.
type FriendRequest struct {
	Sender    string              `json:"sender"`
	Receiver  string              `json:"receiver"`
	Status    FriendRequestStatus `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
}

// FriendStore records friend requests. Two users are friends once a request between them,
// in either direction, has been accepted.
type FriendStore interface {
	AreFriends(ctx context.Context, a, b string) (bool, error)

	// SendRequest returns ErrSelfRequest, ErrUserNotFound or ErrRequestExists when
	// the request cannot be created.
	SendRequest(ctx context.Context, sender, receiver string) error

	// AcceptRequest accepts the pending request from sender to receiver.
	AcceptRequest(ctx context.Context, sender, receiver string) error

	// ListFriends returns the usernames befriended by username in ascending order.
	ListFriends(ctx context.Context, username string) ([]string, error)

	// PendingRequests returns the requests waiting for receiver to accept.
	PendingRequests(ctx context.Context, receiver string) ([]FriendRequest, error)
}
