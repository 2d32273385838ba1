package analyze

import (
	"context"
	"errors"
	"strings"
	"testing"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/HerbHall/faceanalyzer/internal/catalog"
	"github.com/HerbHall/faceanalyzer/internal/metrics"
	"github.com/HerbHall/faceanalyzer/internal/testutil"
	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
	"github.com/HerbHall/faceanalyzer/pkg/llm"
)

var testImage = llm.Image{MIMEType: "image/png", Data: []byte("\x89PNG\r\n\x1a\nfake")}

const finalReply = `{"recommendations":[{"service_name":"Lip Filler","type":"Aesthetic Enhancement","explanation":"Adds volume to thin lips.","relevant_features":["thin lips"]},{"service_name":"Botox","type":"Problem-Solving","explanation":"Relaxes forehead lines."}]}`

func newEngine(t *testing.T) *catalog.Engine {
	t.Helper()
	cat, err := pkgcatalog.Default()
	require.NoError(t, err)
	engine, err := catalog.NewEngine(cat, zap.NewNop())
	require.NoError(t, err)
	return engine
}

func newAnalyzer(t *testing.T, replies ...testutil.MockReply) (*Analyzer, *testutil.MockProvider, *metrics.Metrics) {
	t.Helper()
	mock := testutil.NewMockProvider(replies...)
	m := metrics.New()
	return New(mock, newEngine(t), testutil.Logger(), WithMetrics(m)), mock, m
}

func TestAnalyze_FullPipeline(t *testing.T) {
	a, mock, m := newAnalyzer(t,
		testutil.MockReply{Content: `{"detected_features":["thin lips"," forehead wrinkles ",""]}`},
		testutil.MockReply{Content: finalReply},
	)

	res, err := a.Analyze(context.Background(), testImage)
	require.NoError(t, err)

	assert.Equal(t, []string{"thin lips", "forehead wrinkles"}, res.Features)
	require.NotEmpty(t, res.Candidates)
	assert.LessOrEqual(t, len(res.Candidates), catalog.DefaultLimit)
	assert.Contains(t, res.CandidateNames(), "Lip Filler")
	assert.Contains(t, res.CandidateNames(), "Botox")
	assert.Empty(t, res.Fallback)
	assert.Equal(t, "mock-model", res.Model)

	require.Len(t, res.Recommendations, 2)
	assert.Equal(t, "Lip Filler", res.Recommendations[0].ServiceName)
	assert.Equal(t, TypeEnhancement, res.Recommendations[0].Type)
	assert.Equal(t, []string{}, res.Recommendations[1].RelevantFeatures)

	calls := mock.Calls()
	require.Len(t, calls, 2)

	detect := calls[0]
	assert.Equal(t, 500, detect.Options.MaxTokens)
	assert.True(t, detect.Options.JSONFormat)
	require.Len(t, detect.Messages, 2)
	assert.Equal(t, llm.RoleSystem, detect.Messages[0].Role)
	assert.Contains(t, detect.Messages[0].Content, `"detected_features"`)
	assert.Equal(t, []llm.Image{testImage}, detect.Messages[1].Images)

	refine := calls[1]
	assert.Equal(t, 1500, refine.Options.MaxTokens)
	assert.True(t, refine.Options.JSONFormat)
	user := refine.Messages[1].Content
	assert.True(t, strings.HasPrefix(user, `The image analysis detected these features: ["thin lips","forehead wrinkles"].`), user)
	assert.Contains(t, user, "- Service: Lip Filler\n  Description: ")
	assert.Contains(t, user, "select up to 3-4 final recommendations")
	assert.Empty(t, refine.Messages[1].Images)

	assert.Equal(t, 1.0, promtest.ToFloat64(m.LLMCalls.WithLabelValues("detect", metrics.OutcomeOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.LLMCalls.WithLabelValues("recommend", metrics.OutcomeOK)))
}

func TestAnalyze_NoFeaturesFallback(t *testing.T) {
	a, mock, m := newAnalyzer(t, testutil.MockReply{Content: `{"detected_features":[]}`})

	res, err := a.Analyze(context.Background(), testImage)
	require.NoError(t, err)

	assert.Len(t, mock.Calls(), 1, "no refinement call without features")
	assert.Equal(t, FallbackNoFeatures, res.Fallback)
	require.Len(t, res.Recommendations, 1)
	rec := res.Recommendations[0]
	assert.Equal(t, "No Specific Issues or Enhancements Detected", rec.ServiceName)
	assert.Equal(t, TypeObservation, rec.Type)
	assert.Equal(t, []string{}, rec.RelevantFeatures)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Fallbacks.WithLabelValues(FallbackNoFeatures)))
}

func TestAnalyze_BlankFeaturesAreDropped(t *testing.T) {
	a, mock, m := newAnalyzer(t, testutil.MockReply{Content: `{"detected_features":["   ",""]}`})

	res, err := a.Analyze(context.Background(), testImage)
	require.NoError(t, err)
	assert.Len(t, mock.Calls(), 1)
	assert.Empty(t, res.Features)
	assert.Empty(t, res.Candidates, "a blank feature must not match every service")
	assert.Equal(t, FallbackNoFeatures, res.Fallback)

	res, err = a.Recommend(context.Background(), []string{"\t", " "})
	require.NoError(t, err)
	assert.Len(t, mock.Calls(), 1, "no model call for blank features")
	assert.Equal(t, FallbackNoFeatures, res.Fallback)
	assert.Equal(t, 2.0, promtest.ToFloat64(m.Fallbacks.WithLabelValues(FallbackNoFeatures)))
}

func TestRecommend_NoCandidatesFallback(t *testing.T) {
	a, mock, m := newAnalyzer(t)

	features := []string{"zzqx", "qqvv"}
	res, err := a.Recommend(context.Background(), features)
	require.NoError(t, err)

	assert.Empty(t, mock.Calls())
	assert.Equal(t, FallbackNoCandidates, res.Fallback)
	assert.Empty(t, res.Candidates)
	require.Len(t, res.Recommendations, 1)
	rec := res.Recommendations[0]
	assert.Equal(t, "Consultation Recommended", rec.ServiceName)
	assert.Equal(t, TypeGeneralAdvice, rec.Type)
	assert.Equal(t, features, rec.RelevantFeatures)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.Fallbacks.WithLabelValues(FallbackNoCandidates)))
}

func TestRecommend_CandidateListingUsesNA(t *testing.T) {
	cat := testutil.NewCatalog("body", testutil.NewService(
		testutil.WithName("PRP Therapy"),
		testutil.WithEnhancements("natural glow", "collagen boost"),
	))
	engine, err := catalog.NewEngine(cat, nil)
	require.NoError(t, err)
	mock := testutil.NewMockProvider(testutil.MockReply{Content: finalReply})
	a := New(mock, engine, nil, WithModel("gpt-4o"))

	_, err = a.Recommend(context.Background(), []string{"natural glow"})
	require.NoError(t, err)

	calls := mock.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "gpt-4o", calls[0].Options.Model)
	assert.Contains(t, calls[0].Messages[1].Content,
		"- Service: PRP Therapy\n  Description: N/A\n  Problems Treated: N/A\n  Enhancements: natural glow; collagen boost\n")
}

func TestAnalyze_ParseFailures(t *testing.T) {
	tests := []struct {
		name    string
		replies []testutil.MockReply
		stage   Stage
		kind    error
		message string
	}{
		{
			name:    "detect prose",
			replies: []testutil.MockReply{{Content: "I cannot help with that."}},
			stage:   StageDetect,
			kind:    ErrUnparseableJSON,
			message: "Feature detection model did not return parseable JSON.",
		},
		{
			name:    "detect missing key",
			replies: []testutil.MockReply{{Content: `{"features":["acne"]}`}},
			stage:   StageDetect,
			kind:    ErrUnexpectedShape,
			message: "Feature detection JSON in unexpected format.",
		},
		{
			name:    "detect not array",
			replies: []testutil.MockReply{{Content: `{"detected_features":"acne"}`}},
			stage:   StageDetect,
			kind:    ErrUnexpectedShape,
		},
		{
			name: "recommend prose",
			replies: []testutil.MockReply{
				{Content: `{"detected_features":["thin lips"]}`},
				{Content: "no json here"},
			},
			stage:   StageRecommend,
			kind:    ErrUnparseableJSON,
			message: "Final recommendation model did not return parseable JSON.",
		},
		{
			name: "recommend wrong shape",
			replies: []testutil.MockReply{
				{Content: `{"detected_features":["thin lips"]}`},
				{Content: `{"recommendations":{"service_name":"Lip Filler"}}`},
			},
			stage: StageRecommend,
			kind:  ErrUnexpectedShape,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _, m := newAnalyzer(t, tt.replies...)

			_, err := a.Analyze(context.Background(), testImage)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.stage, perr.Stage)
			assert.Equal(t, tt.replies[len(tt.replies)-1].Content, perr.Raw)
			if tt.message != "" {
				assert.Equal(t, tt.message, perr.Message())
			}
			if errors.Is(tt.kind, ErrUnexpectedShape) {
				assert.NotEmpty(t, perr.Cleaned)
			}
			assert.Equal(t, 1.0, promtest.ToFloat64(m.LLMCalls.WithLabelValues(string(tt.stage), metrics.OutcomeInvalidJSON)))
		})
	}
}

func TestAnalyze_ProviderError(t *testing.T) {
	limited := llm.NewProviderError(llm.ErrCodeRateLimited, "slow down", nil)
	a, _, m := newAnalyzer(t, testutil.MockReply{Err: limited})

	_, err := a.Analyze(context.Background(), testImage)
	require.Error(t, err)
	assert.True(t, llm.IsCode(err, llm.ErrCodeRateLimited))
	assert.True(t, strings.HasPrefix(err.Error(), "detect: "))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.LLMCalls.WithLabelValues("detect", metrics.OutcomeError)))
}

func TestDetectFeatures_FencedReply(t *testing.T) {
	a, _, _ := newAnalyzer(t, testutil.MockReply{Content: "```json\n{\"detected_features\": [\"dull skin tone\", \"acne scars\"]}\n```"})

	features, err := a.DetectFeatures(context.Background(), testImage)
	require.NoError(t, err)
	assert.Equal(t, []string{"dull skin tone", "acne scars"}, features)
}
