package catalog

import (
	"sync"
	"testing"

	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func defaultEngine(t *testing.T, opts ...EngineOption) *Engine {
	t.Helper()
	cat, err := pkgcatalog.Default()
	if err != nil {
		t.Fatalf("Default() error: %v", err)
	}
	engine, err := NewEngine(cat, zap.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	return engine
}

func TestEngine_MatchesRank(t *testing.T) {
	engine := defaultEngine(t)
	features := []string{"forehead wrinkles", "thin lips", "uneven pigmentation", "sun damage"}

	want, err := Rank(features, engine.Catalog())
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	got := engine.Recommend(features)

	if len(got) != len(want) {
		t.Fatalf("Recommend() returned %d services, Rank() %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			t.Errorf("position %d: engine %q, rank %q", i, got[i].Name, want[i].Name)
		}
	}
}

func TestEngine_Recommend_ExpectedLeaders(t *testing.T) {
	engine := defaultEngine(t)

	tests := []struct {
		features []string
		want     string
	}{
		{[]string{"forehead wrinkles"}, "Botox"},
		{[]string{"thin lips"}, "Lip Filler"},
		{[]string{"double chin"}, "Kybella"},
		{[]string{"rosacea", "redness"}, "IPL Photofacial"},
		{[]string{"unwanted facial hair"}, "Laser Hair Removal"},
	}
	for _, tt := range tests {
		got := engine.Recommend(tt.features)
		if len(got) == 0 {
			t.Errorf("Recommend(%v) returned nothing", tt.features)
			continue
		}
		if got[0].Name != tt.want {
			t.Errorf("Recommend(%v)[0] = %q, want %q", tt.features, got[0].Name, tt.want)
		}
	}
}

func TestEngine_WithLimit(t *testing.T) {
	engine := defaultEngine(t, WithLimit(2))
	if engine.Limit() != 2 {
		t.Fatalf("Limit() = %d, want 2", engine.Limit())
	}
	got := engine.Recommend([]string{"acne scars", "fine lines", "dull skin tone"})
	if len(got) != 2 {
		t.Errorf("len(Recommend) = %d, want 2", len(got))
	}
}

func TestEngine_DefaultLimit(t *testing.T) {
	engine := defaultEngine(t, WithLimit(0))
	if engine.Limit() != DefaultLimit {
		t.Errorf("Limit() = %d, want %d", engine.Limit(), DefaultLimit)
	}
}

func TestEngine_ScoresSortedAndPositive(t *testing.T) {
	engine := defaultEngine(t)
	scored := engine.Scores([]string{"acne scars", "fine lines", "hydrated skin"})
	if len(scored) <= DefaultLimit {
		t.Fatalf("expected more than %d matches, got %d", DefaultLimit, len(scored))
	}
	for i := range scored {
		if scored[i].Score <= 0 {
			t.Errorf("%s has non-positive score %v", scored[i].Service.Name, scored[i].Score)
		}
		if i > 0 && scored[i].Score > scored[i-1].Score {
			t.Errorf("scores not descending at %d: %v > %v", i, scored[i].Score, scored[i-1].Score)
		}
	}
}

func TestEngine_LogsTopScoresAtDebug(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	cat, _ := pkgcatalog.Default()
	engine, err := NewEngine(cat, zap.New(core))
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}

	engine.Recommend([]string{"thin lips"})

	entries := logs.FilterMessage("recommendation scores").All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 score log entry, got %d", len(entries))
	}
	top, ok := entries[0].ContextMap()["top"].([]interface{})
	if !ok || len(top) == 0 {
		t.Fatalf("top field = %#v", entries[0].ContextMap()["top"])
	}
	if len(top) > debugScoreCount {
		t.Errorf("logged %d scores, want at most %d", len(top), debugScoreCount)
	}
}

func TestEngine_ConcurrentRecommend(t *testing.T) {
	engine := defaultEngine(t)
	want := engine.Recommend([]string{"sun spots", "fine lines"})

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got := engine.Recommend([]string{"sun spots", "fine lines"})
			if len(got) != len(want) {
				t.Errorf("concurrent Recommend returned %d services, want %d", len(got), len(want))
				return
			}
			for j := range got {
				if got[j].Name != want[j].Name {
					t.Errorf("concurrent Recommend[%d] = %q, want %q", j, got[j].Name, want[j].Name)
				}
			}
		}()
	}
	wg.Wait()
}
