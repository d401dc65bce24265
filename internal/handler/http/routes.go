package http

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withTraceID)
	router.Use(h.withLogging)

	// routes without authorization
	router.Group(func(r chi.Router) {
		r.Post("/api/invitations/{token}/accept", h.acceptInvitation)
		// the realtime socket authenticates in-band with its first frame
		r.Get("/api/ws", h.serveRealtime)
	})

	// routes with authorization
	router.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Post("/api/circles/{circleID}/sync", h.pushChanges)
		r.Get("/api/circles/{circleID}/sync", h.pullChanges)
	})

	return router
}
