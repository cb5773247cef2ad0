/*
Package handler provides the HTTP handlers and routing setup for the SlashChat server.

This file contains the message backlog handler.
*/
package handler

import (
	"net/http"

	"slashchat/internal/pkg/resp"
)

// HandleRecentMessages returns the latest message backlog in chronological
// order, ready for the client to render oldest-first.
func HandleRecentMessages(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		messages, customErr := deps.Controller.RecentMessages(r.Context())
		if customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		resp.RespondSuccess(w, r, map[string]any{
			"messages": messages,
		})
	}
}
