package catalog

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/HerbHall/faceanalyzer/internal/server"
	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
	"go.uber.org/zap"
)

const maxRequestBytes = 1 << 20

// RecommendationRequest is the body for POST /api/v1/catalog/recommendations.
type RecommendationRequest struct {
	Features []string `json:"features"`
}

// RecommendedService is a ranked service with its score.
type RecommendedService struct {
	pkgcatalog.Service
	Score float64 `json:"score"`
}

// RecommendationResponse is the response for POST /api/v1/catalog/recommendations.
type RecommendationResponse struct {
	Count    int                  `json:"count"`
	Services []RecommendedService `json:"services"`
}

// EntriesResponse is the response for GET /api/v1/catalog/entries.
type EntriesResponse struct {
	Count      int                   `json:"count"`
	Categories []pkgcatalog.Category `json:"categories"`
}

// Handler serves the catalog and direct ranking API.
type Handler struct {
	engine *Engine
	logger *zap.Logger
}

// NewHandler creates a new catalog API handler.
func NewHandler(engine *Engine, logger *zap.Logger) *Handler {
	return &Handler{engine: engine, logger: logger}
}

// RegisterRoutes implements server.RouteRegistrar.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/catalog/recommendations", h.handleRecommendations)
	mux.HandleFunc("GET /api/v1/catalog/entries", h.handleListEntries)
}

// handleRecommendations ranks the catalog against the given feature phrases.
//
//	@Summary		Rank services for features
//	@Description	Scores every catalog service against the detected feature phrases and returns the top matches, best first.
//	@Tags			catalog
//	@Accept			json
//	@Produce		json
//	@Param			request	body		RecommendationRequest	true	"Detected features"
//	@Success		200		{object}	RecommendationResponse
//	@Failure		400		{object}	server.Problem
//	@Router			/catalog/recommendations [post]
func (h *Handler) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	var req RecommendationRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.PayloadTooLarge(w, "request body too large", r.URL.Path)
			return
		}
		server.BadRequest(w, "invalid JSON body: "+err.Error(), r.URL.Path)
		return
	}

	scored := h.engine.RecommendScored(NormalizeFeatures(req.Features))
	resp := RecommendationResponse{
		Count:    len(scored),
		Services: make([]RecommendedService, 0, len(scored)),
	}
	for _, s := range scored {
		resp.Services = append(resp.Services, RecommendedService{Service: s.Service, Score: s.Score})
	}
	server.WriteJSON(w, http.StatusOK, resp)
}

// handleListEntries returns the full catalog grouped by category.
//
//	@Summary		List catalog entries
//	@Description	Returns every service grouped by category in catalog order.
//	@Tags			catalog
//	@Produce		json
//	@Success		200	{object}	EntriesResponse
//	@Router			/catalog/entries [get]
func (h *Handler) handleListEntries(w http.ResponseWriter, _ *http.Request) {
	cat := h.engine.Catalog()
	categories := cat.Categories()
	if categories == nil {
		categories = []pkgcatalog.Category{}
	}
	server.WriteJSON(w, http.StatusOK, EntriesResponse{
		Count:      cat.Len(),
		Categories: categories,
	})
}

// NormalizeFeatures trims every feature and drops the blank ones.
func NormalizeFeatures(features []string) []string {
	out := make([]string, 0, len(features))
	for _, f := range features {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
