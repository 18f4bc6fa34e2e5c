package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/gallowaylab/plasmiddb/internal/apperr"
	"github.com/gallowaylab/plasmiddb/internal/catalog"
	"github.com/gallowaylab/plasmiddb/internal/index"
	"github.com/gallowaylab/plasmiddb/internal/plasmid"
)

// Catalog is the build state the handlers read from.
type Catalog interface {
	Current() (*catalog.View, error)
	Reload(ctx context.Context) (*catalog.View, error)
}

// Handler holds API route handlers.
type Handler struct {
	cat   Catalog
	store index.SnapshotStore
}

// NewHandler creates a new Handler. store may be nil, in which case the
// search, violation and build history routes answer 503.
func NewHandler(cat Catalog, store index.SnapshotStore) *Handler {
	return &Handler{cat: cat, store: store}
}

// view returns the current build or writes 503 when nothing was built yet.
func (h *Handler) view(w http.ResponseWriter) (*catalog.View, bool) {
	v, err := h.cat.Current()
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusServiceUnavailable, "no build available yet")
		} else {
			slog.Error("current build failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return nil, false
	}
	return v, true
}

func (h *Handler) requireStore(w http.ResponseWriter) bool {
	if h.store == nil {
		writeError(w, http.StatusServiceUnavailable, "index disabled")
		return false
	}
	return true
}

// Summary handles GET /api/summary.
//
//	@Summary		Lint summary of the current build
//	@Tags			lint
//	@Produce		json
//	@Success		200	{object}	SummaryResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/summary [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, SummaryResponse{
		BuiltAt:  v.BuiltAt,
		Plasmids: len(v.Plasmids),
		Summary:  v.Summary,
	})
}

// ListPlasmids handles GET /api/plasmids.
//
//	@Summary		List plasmids with optional filtering
//	@Tags			plasmids
//	@Produce		json
//	@Param			owner		query		string	false	"Owner display name"
//	@Param			category	query		string	false	"Violation category"
//	@Param			severity	query		string	false	"Violation severity"	Enums(error, warning)
//	@Success		200			{object}	PlasmidListResponse
//	@Failure		400			{object}	errResponse
//	@Failure		503			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plasmids [get]
func (h *Handler) ListPlasmids(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sev := plasmid.Severity(q.Get("severity"))
	if sev != "" && sev != plasmid.SeverityError && sev != plasmid.SeverityWarning {
		writeError(w, http.StatusBadRequest, "severity must be error or warning")
		return
	}
	v, ok := h.view(w)
	if !ok {
		return
	}
	items := v.Select(catalog.Filter{
		Owner:    q.Get("owner"),
		Category: q.Get("category"),
		Severity: sev,
	})
	writeJSON(w, http.StatusOK, PlasmidListResponse{
		Plasmids: toPlasmidDTOs(items),
		Total:    len(items),
	})
}

// GetPlasmid handles GET /api/plasmids/{slug}.
//
//	@Summary		Get a single plasmid by slug
//	@Tags			plasmids
//	@Produce		json
//	@Param			slug	path		string	true	"Plasmid slug"
//	@Success		200		{object}	PlasmidDTO
//	@Failure		404		{object}	errResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/plasmids/{slug} [get]
func (h *Handler) GetPlasmid(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w)
	if !ok {
		return
	}
	slug := chi.URLParam(r, "slug")
	p, err := v.Plasmid(slug)
	if err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, toPlasmidDTO(p))
}

// ListAltGroups handles GET /api/alt-groups.
//
//	@Summary		List alternate-name groups
//	@Tags			plasmids
//	@Produce		json
//	@Success		200	{object}	AltGroupListResponse
//	@Failure		503	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/alt-groups [get]
func (h *Handler) ListAltGroups(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w)
	if !ok {
		return
	}
	groups := make([]AltGroupDTO, 0, len(v.AltGroups))
	for _, g := range v.AltGroups {
		groups = append(groups, AltGroupDTO{
			Key:     g.Key,
			Title:   g.Title,
			Page:    g.PageName(),
			Members: refs(g.Members),
			Summary: g.Summary,
		})
	}
	writeJSON(w, http.StatusOK, AltGroupListResponse{Groups: groups})
}

// ListOwners handles GET /api/owners.
//
//	@Summary		List owners with their flagged plasmids
//	@Tags			lint
//	@Produce		json
//	@Param			flagged	query		bool	false	"Only owners with errors or warnings"
//	@Success		200		{object}	OwnerListResponse
//	@Failure		503		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/owners [get]
func (h *Handler) ListOwners(w http.ResponseWriter, r *http.Request) {
	v, ok := h.view(w)
	if !ok {
		return
	}
	flagged, _ := strconv.ParseBool(r.URL.Query().Get("flagged"))
	owners := make([]OwnerDTO, 0, len(v.Owners))
	for _, g := range v.Owners {
		if flagged && len(g.Errors) == 0 && len(g.Warnings) == 0 {
			continue
		}
		owners = append(owners, OwnerDTO{
			Name:     g.Name,
			Users:    nonNil(g.Users),
			Plasmids: refs(g.Plasmids),
			Errors:   refs(g.Errors),
			Warnings: refs(g.Warnings),
		})
	}
	writeJSON(w, http.StatusOK, OwnerListResponse{Owners: owners})
}

// Reload handles POST /api/reload.
//
//	@Summary		Rebuild from the source
//	@Tags			lint
//	@Produce		json
//	@Success		200	{object}	ReloadResponse
//	@Failure		500	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/reload [post]
func (h *Handler) Reload(w http.ResponseWriter, r *http.Request) {
	v, err := h.cat.Reload(r.Context())
	if err != nil {
		slog.Error("reload failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "reload failed")
		return
	}
	writeJSON(w, http.StatusOK, ReloadResponse{
		BuiltAt:        v.BuiltAt,
		Plasmids:       len(v.Plasmids),
		ErrorRecords:   v.Summary.ErrorRecords,
		WarningRecords: v.Summary.WarningRecords,
	})
}

// Search handles GET /api/search.
//
//	@Summary		Full-text search over names and technical details
//	@Tags			search
//	@Produce		json
//	@Param			q		query		string	true	"Search query"
//	@Param			limit	query		int		false	"Max results"
//	@Success		200		{object}	SearchResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if !h.requireStore(w) {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	hits, err := h.store.Search(q, limit)
	if err != nil {
		slog.Error("search failed", slog.String("q", q), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	results := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		results = append(results, SearchResult{Slug: hit.Slug, Name: hit.Name, Snippet: hit.Snippet})
	}
	writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// Violations handles GET /api/violations.
//
//	@Summary		Stored violations of one category
//	@Tags			lint
//	@Produce		json
//	@Param			category	query		string	true	"Violation category"
//	@Success		200			{object}	ViolationListResponse
//	@Failure		400			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/violations [get]
func (h *Handler) Violations(w http.ResponseWriter, r *http.Request) {
	cat := r.URL.Query().Get("category")
	if cat == "" {
		writeError(w, http.StatusBadRequest, "query parameter 'category' is required")
		return
	}
	if !h.requireStore(w) {
		return
	}
	rows, err := h.store.ViolationsByCategory(r.Context(), cat)
	if err != nil {
		slog.Error("violations failed", slog.String("category", cat), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]ViolationDTO, 0, len(rows))
	for _, row := range rows {
		out = append(out, ViolationDTO{
			Slug:     row.Slug,
			Catalog:  row.Catalog,
			Severity: row.Severity,
			Category: row.Category,
			Message:  row.Message,
		})
	}
	writeJSON(w, http.StatusOK, ViolationListResponse{Violations: out})
}

// LastBuild handles GET /api/builds/last.
//
//	@Summary		Most recently recorded build
//	@Tags			lint
//	@Produce		json
//	@Success		200	{object}	BuildDTO
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/builds/last [get]
func (h *Handler) LastBuild(w http.ResponseWriter, r *http.Request) {
	if !h.requireStore(w) {
		return
	}
	b, err := h.store.LastBuild(r.Context())
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no builds recorded")
		} else {
			slog.Error("last build failed", slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, toBuildDTO(b))
}
