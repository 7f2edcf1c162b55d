package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/gtdspace/internal/docservice"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *docservice.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Calendar.
	r.Get("/calendar", h.GetCalendar)
	r.Post("/calendar/move", h.MoveEntry)
	r.Post("/calendar/resize", h.ResizeEntry)

	// Documents.
	r.Get("/documents", h.ListDocuments)
	r.Get("/documents/*", h.GetDocument)
	r.Patch("/documents/*", h.PatchDocument)

	// Habits.
	r.Get("/habits", h.ListHabits)
	r.Post("/habits/status/*", h.SetHabitStatus)

	// References.
	r.Get("/references/options", h.ReferenceOptions)
	r.Get("/references/backlinks/*", h.Backlinks)

	// Search.
	r.Get("/search", h.Search)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
