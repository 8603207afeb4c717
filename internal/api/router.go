package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/starford/raido/internal/engine"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(eng *engine.Engine, defaultLimit int, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(eng, defaultLimit)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Search.
	r.Get("/search", h.Search)

	// On-demand indexing.
	r.Post("/index", h.Index)

	// Deletion and movement history.
	r.Get("/deletions", h.Deletions)
	r.Get("/movements", h.Movements)
	r.Post("/track/deletion", h.TrackDeletion)
	r.Post("/track/movement", h.TrackMovement)

	// Cleanup reports.
	r.Get("/duplicates", h.Duplicates)
	r.Get("/large-files", h.LargeFiles)
	r.Get("/old-files", h.OldFiles)

	// Observability.
	r.Get("/stats", h.Stats)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
