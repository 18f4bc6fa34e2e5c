package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/gallowaylab/plasmiddb/internal/index"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
// store may be nil when no index is configured.
func NewRouter(cat Catalog, store index.SnapshotStore, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(cat, store)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	r.Get("/summary", h.Summary)
	r.Get("/plasmids", h.ListPlasmids)
	r.Get("/plasmids/{slug}", h.GetPlasmid)
	r.Get("/alt-groups", h.ListAltGroups)
	r.Get("/owners", h.ListOwners)
	r.Post("/reload", h.Reload)

	// Index-backed queries.
	r.Get("/search", h.Search)
	r.Get("/violations", h.Violations)
	r.Get("/builds/last", h.LastBuild)

	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
