package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/qwen-chat/backend/internal/handler/chat"
	middlewarePkg "github.com/zhouzirui/qwen-chat/backend/internal/middleware"
)

// FunctionsPrefix mirrors the edge-function layout clients already call.
const FunctionsPrefix = "/functions/v1"

// NewRouter wires HTTP routes to core services.
func NewRouter(completer chat.Completer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	chatHandler := chat.New(completer)

	r.Route(FunctionsPrefix, func(fn chi.Router) {
		chatHandler.RegisterRoutes(fn)
	})

	return r
}
