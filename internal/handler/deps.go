package handler

import (
	"slashchat/internal/app/session"
	"slashchat/internal/configs"
)

// AppDeps bundles the dependencies shared by all HTTP and WebSocket handlers.
type AppDeps struct {
	Controller *session.Controller
	Config     *configs.AppConfig
}
