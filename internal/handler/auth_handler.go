/*
Package handler provides the HTTP handlers and routing of the chat server.
*/
package handler

import (
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"pairchat/internal/app/presence"
	"pairchat/internal/app/user"
	"pairchat/internal/pkg/auth/jwt"
	"pairchat/internal/pkg/errs"
	"pairchat/internal/pkg/logx"
	"pairchat/internal/pkg/req"
	"pairchat/internal/pkg/resp"
)

type CredentialsInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string    `json:"token"`
	User  user.User `json:"user"`
}

// HandleRegister creates an account and returns a token for it.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jwt.Username(r) != "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if err := user.ValidateUsername(input.Username); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidUsername))
			return
		}
		if err := user.ValidatePassword(input.Password); err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidPassword))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			logx.Error(err, "register: password hashing failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		created, err := deps.Users.Create(r.Context(), input.Username, string(hashedPassword))
		if err != nil {
			if errors.Is(err, user.ErrUserExists) {
				logx.Warn("registration conflict: username already exists", "username", input.Username)
			}
			resp.RespondError(w, r, toCustomError(err, "register"))
			return
		}

		respondWithToken(w, r, deps, created)
	}
}

// HandleLogin verifies credentials and issues a token.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jwt.Username(r) != "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrAlreadyLoggedIn))
			return
		}

		var input CredentialsInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		found, err := deps.Users.GetByUsername(r.Context(), input.Username)
		if err != nil {
			if !errors.Is(err, user.ErrUserNotFound) {
				resp.RespondError(w, r, toCustomError(err, "login"))
				return
			}
			logx.Warn("login: unknown user", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(found.PasswordHash), []byte(input.Password)); err != nil {
			logx.Warn("login: password mismatch", "username", input.Username)
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		respondWithToken(w, r, deps, found)
	}
}

func respondWithToken(w http.ResponseWriter, r *http.Request, deps *AppDeps, u user.User) {
	token, err := jwt.IssueIdentityToken(u.Username, deps.Config.JWTSecret)
	if err != nil {
		logx.Error(err, "jwt generation failed", "username", u.Username)
		resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
		return
	}

	resp.RespondSuccess(w, r, authResponse{Token: token, User: u})
}

// HandleLogout marks the caller offline and tells the lobby.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		username := jwt.Username(r)

		deps.Presence.MarkOffline(r.Context(), username)
		deps.Hub.AnnouncePresence(r.Context(), username, presence.StatusOffline)

		resp.RespondSuccess(w, r, nil)
	}
}
