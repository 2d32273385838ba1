package history

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/HerbHall/faceanalyzer/internal/server"
	"go.uber.org/zap"
)

// Handler serves the stored analyses.
type Handler struct {
	repo   Repository
	logger *zap.Logger
}

// NewHandler creates a Handler over repo.
func NewHandler(repo Repository, logger *zap.Logger) *Handler {
	return &Handler{repo: repo, logger: logger}
}

// RegisterRoutes implements server.RouteRegistrar.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/analyses", h.handleList)
	mux.HandleFunc("GET /api/v1/analyses/{id}", h.handleGet)
}

// handleList returns the most recent analyses.
//
//	@Summary		List analyses
//	@Tags			history
//	@Produce		json
//	@Param			limit	query		int	false	"Maximum records (1-100)"
//	@Success		200		{array}		Record
//	@Failure		400		{object}	server.Problem
//	@Router			/analyses [get]
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	limit := DefaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			server.BadRequest(w, "limit must be a positive integer", r.URL.Path)
			return
		}
		limit = n
	}

	records, err := h.repo.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list analyses", zap.Error(err))
		server.InternalError(w, "failed to list analyses", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, records)
}

// handleGet returns one analysis by ID.
//
//	@Summary		Get analysis
//	@Tags			history
//	@Produce		json
//	@Param			id	path		string	true	"Analysis ID"
//	@Success		200	{object}	Record
//	@Failure		404	{object}	server.Problem
//	@Router			/analyses/{id} [get]
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rec, err := h.repo.Get(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		server.NotFound(w, "analysis "+id+" not found", r.URL.Path)
		return
	}
	if err != nil {
		h.logger.Error("failed to get analysis", zap.String("id", id), zap.Error(err))
		server.InternalError(w, "failed to get analysis", r.URL.Path)
		return
	}
	server.WriteJSON(w, http.StatusOK, rec)
}
