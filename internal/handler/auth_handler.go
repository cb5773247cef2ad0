/*
Package handler provides the HTTP handlers and routing setup for the SlashChat server.

This file contains the authentication handlers: sign-up, login, session
restore, and logout. Authentication yields a session token; the live feeds a
session carries are consumed over the WebSocket endpoint, so the HTTP handlers
release their session's feeds as soon as the response payload is built.
*/
package handler

import (
	"net/http"
	"time"

	"slashchat/internal/app/store"
	"slashchat/internal/pkg/auth/jwt"
	"slashchat/internal/pkg/req"
	"slashchat/internal/pkg/resp"
)

type SignUpInput struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RestoreInput struct {
	Token string `json:"token"`
}

// sessionPayload shapes the response data for a freshly opened session.
func sessionPayload(token string, u store.User) map[string]any {
	return map[string]any{
		"token": token,
		"user": map[string]any{
			"username": u.Username,
			"xp":       u.XP,
			"level":    u.Level,
			"joinDate": u.JoinDate.Format(time.RFC3339),
			"lastSeen": u.LastSeen.Format(time.RFC3339),
		},
	}
}

// HandleSignUp processes the request to create a new user account and opens a
// session for it.
func HandleSignUp(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input SignUpInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sess, customErr := deps.Controller.SignUp(r.Context(), input.Username, input.Password, input.ConfirmPassword)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, user := sess.Token(), sess.User()
		deps.Controller.Disconnect(sess)

		resp.RespondSuccess(w, r, sessionPayload(token, user))
	}
}

// HandleLogin verifies user credentials and opens a session.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sess, customErr := deps.Controller.Login(r.Context(), input.Username, input.Password)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		token, user := sess.Token(), sess.User()
		deps.Controller.Disconnect(sess)

		resp.RespondSuccess(w, r, sessionPayload(token, user))
	}
}

// HandleRestore re-hydrates a session from a previously issued token. A token
// whose user no longer exists yields an empty success payload, telling the
// client to drop its cache and show the sign-in form.
func HandleRestore(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RestoreInput
		if customErr := req.BindJSON(r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		sess, customErr := deps.Controller.RestoreSession(r.Context(), input.Token)
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		if sess == nil {
			resp.RespondSuccess(w, r, map[string]any{"session": nil})
			return
		}

		token, user := sess.Token(), sess.User()
		deps.Controller.Disconnect(sess)

		resp.RespondSuccess(w, r, sessionPayload(token, user))
	}
}

// HandleLogout removes the caller's presence entry. The token arrives via the
// Authorization header; a request without a valid token is a no-op success,
// keeping logout idempotent from the client's point of view.
func HandleLogout(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims := jwt.GetClaimsFromContext(r)
		if claims == nil {
			resp.RespondSuccess(w, r, nil)
			return
		}

		deps.Controller.LogoutByUsername(r.Context(), claims.Username)

		resp.RespondSuccess(w, r, nil)
	}
}
