// Package analyze turns a face photo into treatment recommendations: a vision
// model lists the detected features, the catalog engine shortlists services
// and a second model call refines the shortlist into explained picks.
package analyze

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/faceanalyzer/internal/catalog"
	"github.com/HerbHall/faceanalyzer/internal/metrics"
	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
	"github.com/HerbHall/faceanalyzer/pkg/llm"
)

// Recommendation types returned by the pipeline.
const (
	TypeProblemSolving = "Problem-Solving"
	TypeEnhancement    = "Aesthetic Enhancement"
	TypeObservation    = "Observation"
	TypeGeneralAdvice  = "General Advice"
)

// Fallback kinds reported in Result.Fallback and the fallbacks metric.
const (
	FallbackNoFeatures   = "no_features"
	FallbackNoCandidates = "no_candidates"
)

// Recommendation is one explained service pick.
type Recommendation struct {
	ServiceName      string   `json:"service_name"`
	Type             string   `json:"type"`
	Explanation      string   `json:"explanation"`
	RelevantFeatures []string `json:"relevant_features"`
}

// Result is the outcome of one analysis.
type Result struct {
	Features        []string                `json:"features"`
	Candidates      []catalog.ScoredService `json:"candidates"`
	Recommendations []Recommendation        `json:"recommendations"`
	Model           string                  `json:"model,omitempty"`
	Fallback        string                  `json:"fallback,omitempty"`
}

// CandidateNames lists the shortlisted service names in rank order.
func (r *Result) CandidateNames() []string {
	names := make([]string, len(r.Candidates))
	for i, c := range r.Candidates {
		names[i] = c.Service.Name
	}
	return names
}

func noFeaturesRecommendation() Recommendation {
	return Recommendation{
		ServiceName:      "No Specific Issues or Enhancements Detected",
		Type:             TypeObservation,
		Explanation:      "The image analysis did not identify specific features requiring targeted treatment recommendations at this time. A general consultation might be beneficial.",
		RelevantFeatures: []string{},
	}
}

func consultationRecommendation(features []string) Recommendation {
	return Recommendation{
		ServiceName:      "Consultation Recommended",
		Type:             TypeGeneralAdvice,
		Explanation:      "While features were detected, our algorithm couldn't pinpoint specific services with high confidence. A consultation is recommended to discuss your goals and explore suitable options.",
		RelevantFeatures: features,
	}
}

// Analyzer runs the detection, ranking and refinement pipeline.
type Analyzer struct {
	provider llm.Provider
	engine   *catalog.Engine
	logger   *zap.Logger
	metrics  *metrics.Metrics
	model    string
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithMetrics records call outcomes on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Analyzer) { a.metrics = m }
}

// WithModel overrides the provider's default model for both calls.
func WithModel(model string) Option {
	return func(a *Analyzer) { a.model = model }
}

// New creates an Analyzer.
func New(provider llm.Provider, engine *catalog.Engine, logger *zap.Logger, opts ...Option) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Analyzer{provider: provider, engine: engine, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze detects features in img and recommends services for them.
func (a *Analyzer) Analyze(ctx context.Context, img llm.Image) (*Result, error) {
	features, model, err := a.detect(ctx, img)
	if err != nil {
		return nil, err
	}
	res, err := a.Recommend(ctx, features)
	if err != nil {
		return nil, err
	}
	if res.Model == "" {
		res.Model = model
	}
	return res, nil
}

// DetectFeatures asks the vision model for the features visible in img.
// Features are trimmed and blank entries dropped.
func (a *Analyzer) DetectFeatures(ctx context.Context, img llm.Image) ([]string, error) {
	features, _, err := a.detect(ctx, img)
	return features, err
}

func (a *Analyzer) detect(ctx context.Context, img llm.Image) ([]string, string, error) {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: detectSystemPrompt},
		{Role: llm.RoleUser, Content: detectUserPrompt, Images: []llm.Image{img}},
	}
	resp, took, err := a.chat(ctx, StageDetect, messages, detectMaxTokens)
	if err != nil {
		return nil, "", err
	}

	var doc struct {
		DetectedFeatures json.RawMessage `json:"detected_features"`
	}
	var raw []string
	cleaned, perr := a.decode(StageDetect, resp.Content, &doc)
	if perr == nil && (!isJSONArray(doc.DetectedFeatures) || json.Unmarshal(doc.DetectedFeatures, &raw) != nil) {
		perr = &ParseError{Stage: StageDetect, Kind: ErrUnexpectedShape, Raw: resp.Content, Cleaned: cleaned, Parsed: json.RawMessage(cleaned)}
	}
	if perr != nil {
		a.metrics.ObserveLLM(string(StageDetect), metrics.OutcomeInvalidJSON, took)
		return nil, "", perr
	}
	a.metrics.ObserveLLM(string(StageDetect), metrics.OutcomeOK, took)

	features := catalog.NormalizeFeatures(raw)
	a.logger.Info("features detected", zap.Strings("features", features), zap.String("model", resp.Model))
	return features, resp.Model, nil
}

// Recommend shortlists catalog services for features and asks the model to
// refine them. When there are no features, or no service matches, a fixed
// advisory recommendation is returned without a model call. Blank features
// are dropped first, so they never reach the ranking, where an empty feature
// would match every service.
func (a *Analyzer) Recommend(ctx context.Context, features []string) (*Result, error) {
	features = catalog.NormalizeFeatures(features)
	res := &Result{Features: features, Candidates: []catalog.ScoredService{}}

	if len(features) == 0 {
		a.metrics.ObserveFallback(FallbackNoFeatures)
		res.Fallback = FallbackNoFeatures
		res.Recommendations = []Recommendation{noFeaturesRecommendation()}
		return res, nil
	}

	scored := a.engine.RecommendScored(features)
	a.metrics.ObserveCandidates(len(scored))
	if len(scored) == 0 {
		a.metrics.ObserveFallback(FallbackNoCandidates)
		res.Fallback = FallbackNoCandidates
		res.Recommendations = []Recommendation{consultationRecommendation(features)}
		return res, nil
	}
	res.Candidates = scored
	a.logger.Info("services shortlisted", zap.Strings("services", res.CandidateNames()))

	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: recommendSystemPrompt},
		{Role: llm.RoleUser, Content: recommendUserPrompt(features, servicesOf(scored))},
	}
	resp, took, err := a.chat(ctx, StageRecommend, messages, recommendMaxTokens)
	if err != nil {
		return nil, err
	}

	var doc struct {
		Recommendations json.RawMessage `json:"recommendations"`
	}
	var recs []Recommendation
	cleaned, perr := a.decode(StageRecommend, resp.Content, &doc)
	if perr == nil && (!isJSONArray(doc.Recommendations) || json.Unmarshal(doc.Recommendations, &recs) != nil) {
		perr = &ParseError{Stage: StageRecommend, Kind: ErrUnexpectedShape, Raw: resp.Content, Cleaned: cleaned, Parsed: json.RawMessage(cleaned)}
	}
	if perr != nil {
		a.metrics.ObserveLLM(string(StageRecommend), metrics.OutcomeInvalidJSON, took)
		return nil, perr
	}
	a.metrics.ObserveLLM(string(StageRecommend), metrics.OutcomeOK, took)
	for i := range recs {
		if recs[i].RelevantFeatures == nil {
			recs[i].RelevantFeatures = []string{}
		}
	}

	res.Recommendations = recs
	res.Model = resp.Model
	return res, nil
}

func (a *Analyzer) chat(ctx context.Context, stage Stage, messages []llm.Message, maxTokens int) (*llm.Response, time.Duration, error) {
	opts := []llm.CallOption{llm.WithMaxTokens(maxTokens), llm.WithJSONFormat()}
	if a.model != "" {
		opts = append(opts, llm.WithModel(a.model))
	}

	start := time.Now()
	resp, err := a.provider.Chat(ctx, messages, opts...)
	took := time.Since(start)
	if err != nil {
		a.metrics.ObserveLLM(string(stage), metrics.OutcomeError, took)
		a.logger.Warn("model call failed", zap.String("stage", string(stage)), zap.Duration("took", took), zap.Error(err))
		return nil, took, fmt.Errorf("%s: %w", stage, err)
	}
	a.logger.Debug("model replied", zap.String("stage", string(stage)), zap.String("raw", resp.Content), zap.Duration("took", took))
	return resp, took, nil
}

// decode extracts the JSON document from raw into target. It returns the
// extracted text, or a ParseError when nothing usable was found.
func (a *Analyzer) decode(stage Stage, raw string, target any) (string, error) {
	cleaned, ok := ExtractJSON(raw)
	if !ok {
		a.logger.Warn("model reply had no JSON", zap.String("stage", string(stage)), zap.String("raw", raw))
		return "", &ParseError{Stage: stage, Kind: ErrUnparseableJSON, Raw: raw}
	}
	if err := json.Unmarshal([]byte(cleaned), target); err != nil {
		a.logger.Warn("model JSON has unexpected structure", zap.String("stage", string(stage)), zap.String("cleaned", cleaned))
		return "", &ParseError{Stage: stage, Kind: ErrUnexpectedShape, Raw: raw, Cleaned: cleaned, Parsed: json.RawMessage(cleaned)}
	}
	return cleaned, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func servicesOf(scored []catalog.ScoredService) []pkgcatalog.Service {
	out := make([]pkgcatalog.Service, len(scored))
	for i, s := range scored {
		out[i] = s.Service
	}
	return out
}
