package analyze

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/HerbHall/faceanalyzer/internal/history"
	"github.com/HerbHall/faceanalyzer/internal/server"
	"github.com/HerbHall/faceanalyzer/pkg/llm"
)

// DefaultMaxUploadBytes caps the image body size.
const DefaultMaxUploadBytes = 10 << 20

var allowedImageTypes = []string{"image/jpeg", "image/png", "image/webp", "image/gif"}

// Response is the body of a successful POST /analyze.
type Response struct {
	AnalysisID      string           `json:"analysis_id,omitempty"`
	Recommendations []Recommendation `json:"recommendations"`
}

// DetailedResponse is returned when the caller asks for ?details=true.
type DetailedResponse struct {
	AnalysisID string `json:"analysis_id,omitempty"`
	*Result
}

// parseFailure mirrors the 502 body clients of the original deployment parse.
type parseFailure struct {
	Error   string          `json:"error"`
	Raw     string          `json:"raw"`
	Cleaned string          `json:"cleaned,omitempty"`
	Parsed  json.RawMessage `json:"parsed,omitempty"`
}

// Handler serves the photo analysis endpoint.
type Handler struct {
	analyzer *Analyzer
	history  history.Repository
	maxBytes int64
	logger   *zap.Logger
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHistory stores every successful analysis in repo.
func WithHistory(repo history.Repository) HandlerOption {
	return func(h *Handler) { h.history = repo }
}

// WithMaxUploadBytes overrides DefaultMaxUploadBytes.
func WithMaxUploadBytes(n int64) HandlerOption {
	return func(h *Handler) {
		if n > 0 {
			h.maxBytes = n
		}
	}
}

// NewHandler creates a Handler.
func NewHandler(analyzer *Analyzer, logger *zap.Logger, opts ...HandlerOption) *Handler {
	h := &Handler{analyzer: analyzer, maxBytes: DefaultMaxUploadBytes, logger: logger}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes implements server.RouteRegistrar.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /analyze", h.handleAnalyze)
}

// handleAnalyze runs the full pipeline on the raw image in the request body.
//
//	@Summary		Analyze a face photo
//	@Description	Detects skin conditions and enhancement goals in the uploaded image and returns explained treatment recommendations.
//	@Tags			analyze
//	@Accept			image/jpeg,image/png,image/webp,image/gif
//	@Produce		json
//	@Param			details	query		bool	false	"Include detected features and ranked candidates"
//	@Success		200		{object}	Response
//	@Failure		400		{object}	server.Problem
//	@Failure		413		{object}	server.Problem
//	@Failure		415		{object}	server.Problem
//	@Failure		429		{object}	server.Problem
//	@Failure		502		{object}	parseFailure
//	@Failure		503		{object}	server.Problem
//	@Failure		504		{object}	server.Problem
//	@Router			/analyze [post]
func (h *Handler) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			server.PayloadTooLarge(w, "image exceeds "+strconv.FormatInt(h.maxBytes, 10)+" bytes", r.URL.Path)
			return
		}
		server.BadRequest(w, "failed to read request body", r.URL.Path)
		return
	}
	if len(data) == 0 {
		server.BadRequest(w, "request body is empty: send the image bytes", r.URL.Path)
		return
	}

	mt := mimetype.Detect(data)
	if !mimetype.EqualsAny(mt.String(), allowedImageTypes...) {
		server.UnsupportedMediaType(w, "unsupported image type "+mt.String(), r.URL.Path)
		return
	}

	h.logger.Info("analysis requested", zap.Int("bytes", len(data)), zap.String("mime", mt.String()))

	res, err := h.analyzer.Analyze(r.Context(), llm.Image{MIMEType: mt.String(), Data: data})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	id := h.save(r.Context(), res)
	if details, _ := strconv.ParseBool(r.URL.Query().Get("details")); details {
		server.WriteJSON(w, http.StatusOK, DetailedResponse{AnalysisID: id, Result: res})
		return
	}
	server.WriteJSON(w, http.StatusOK, Response{AnalysisID: id, Recommendations: res.Recommendations})
}

// save records res when history is enabled and returns the new ID. Storage
// failures are logged and do not fail the request.
func (h *Handler) save(ctx context.Context, res *Result) string {
	if h.history == nil {
		return ""
	}
	recs, err := json.Marshal(res.Recommendations)
	if err != nil {
		h.logger.Warn("failed to encode recommendations for history", zap.Error(err))
		return ""
	}
	rec := &history.Record{
		Features:        res.Features,
		Candidates:      res.CandidateNames(),
		Recommendations: recs,
		Model:           res.Model,
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := h.history.Save(ctx, rec); err != nil {
		h.logger.Warn("failed to save analysis", zap.Error(err))
		return ""
	}
	return rec.ID
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var perr *ParseError
	if errors.As(err, &perr) {
		server.WriteJSON(w, http.StatusBadGateway, parseFailure{
			Error:   perr.Message(),
			Raw:     perr.Raw,
			Cleaned: perr.Cleaned,
			Parsed:  perr.Parsed,
		})
		return
	}

	code, ok := llm.CodeOf(err)
	if !ok {
		h.logger.Error("analysis failed", zap.Error(err))
		server.InternalError(w, "analysis failed", r.URL.Path)
		return
	}

	h.logger.Warn("inference provider error", zap.String("code", string(code)), zap.Error(err))
	switch code {
	case llm.ErrCodeRateLimited:
		w.Header().Set("Retry-After", "5")
		server.RateLimited(w, "inference provider rate limit reached", r.URL.Path)
	case llm.ErrCodeTimeout:
		server.Upstream(w, http.StatusGatewayTimeout, "inference provider timed out", r.URL.Path)
	case llm.ErrCodeUnavailable:
		server.Unavailable(w, "inference provider temporarily unavailable", r.URL.Path)
	default:
		server.Upstream(w, http.StatusBadGateway, "inference provider error: "+string(code), r.URL.Path)
	}
}
