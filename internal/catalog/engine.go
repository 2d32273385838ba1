package catalog

import (
	"strconv"

	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
	"go.uber.org/zap"
)

// debugScoreCount is how many scores are logged per query at debug level.
const debugScoreCount = 10

// Engine ranks services from a fixed catalog. Service profiles are computed
// once at construction, so an Engine is immutable and safe for concurrent use.
type Engine struct {
	cat      *pkgcatalog.Catalog
	profiles []serviceProfile
	opts     Options
	logger   *zap.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLimit sets the number of services Recommend returns.
func WithLimit(n int) EngineOption {
	return func(e *Engine) { e.opts.Limit = n }
}

// WithWeights overrides the scoring weights.
func WithWeights(w Weights) EngineOption {
	return func(e *Engine) { e.opts.Weights = w }
}

// NewEngine creates a recommendation engine backed by the given catalog.
func NewEngine(cat *pkgcatalog.Catalog, logger *zap.Logger, opts ...EngineOption) (*Engine, error) {
	profiles, err := buildProfiles(cat)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Engine{cat: cat, profiles: profiles, logger: logger}
	for _, opt := range opts {
		opt(e)
	}
	e.opts = e.opts.withDefaults()
	return e, nil
}

// Catalog returns the catalog the engine ranks against.
func (e *Engine) Catalog() *pkgcatalog.Catalog {
	return e.cat
}

// Limit returns the configured shortlist size.
func (e *Engine) Limit() int {
	return e.opts.Limit
}

// Scores returns every service with a positive score for the features,
// sorted descending.
func (e *Engine) Scores(features []string) []ScoredService {
	scored := scoreProfiles(e.profiles, newQuery(features), e.opts.Weights)
	if ce := e.logger.Check(zap.DebugLevel, "recommendation scores"); ce != nil {
		top := truncate(scored, debugScoreCount)
		summary := make([]string, len(top))
		for i := range top {
			summary[i] = top[i].Service.Name + "=" + strconv.FormatFloat(top[i].Score, 'f', -1, 64)
		}
		ce.Write(zap.Int("features", len(features)), zap.Int("matched", len(scored)), zap.Strings("top", summary))
	}
	return scored
}

// RecommendScored returns the shortlist with scores.
func (e *Engine) RecommendScored(features []string) []ScoredService {
	return truncate(e.Scores(features), e.opts.Limit)
}

// Recommend returns the shortlist of services for the features.
func (e *Engine) Recommend(features []string) []pkgcatalog.Service {
	return servicesOf(e.RecommendScored(features))
}
