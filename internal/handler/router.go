package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	chatHandler "github.com/dvergara/docuchat/internal/handler/chat"
	"github.com/dvergara/docuchat/internal/handler/events"
	middlewarePkg "github.com/dvergara/docuchat/internal/middleware"
	"github.com/dvergara/docuchat/internal/service/conversation"
)

// NewRouter wires HTTP routes to the conversation core.
func NewRouter(svc *conversation.Service, hub *events.Hub) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Route("/api", func(api chi.Router) {
		chatHandler.New(svc).RegisterRoutes(api)
		hub.RegisterRoutes(api)
	})

	return r
}
