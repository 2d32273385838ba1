// Package catalog ranks catalog services against detected feature phrases and
// serves the catalog over HTTP.
package catalog

import (
	"fmt"
	"sort"
	"strings"

	pkgcatalog "github.com/HerbHall/faceanalyzer/pkg/catalog"
)

// DefaultLimit is the number of services a recommendation returns.
const DefaultLimit = 5

// ErrInvalidServiceRecord is returned when a catalog service has no name.
var ErrInvalidServiceRecord = pkgcatalog.ErrInvalidServiceRecord

// Weights are the points awarded per match kind. Phrase matches are strong
// signals; keyword overlaps are weak corroboration.
type Weights struct {
	NameMatch          float64 `json:"name_match" mapstructure:"name_match"`
	ProblemPhrase      float64 `json:"problem_phrase" mapstructure:"problem_phrase"`
	EnhancementPhrase  float64 `json:"enhancement_phrase" mapstructure:"enhancement_phrase"`
	ProblemKeyword     float64 `json:"problem_keyword" mapstructure:"problem_keyword"`
	EnhancementKeyword float64 `json:"enhancement_keyword" mapstructure:"enhancement_keyword"`
	NameKeyword        float64 `json:"name_keyword" mapstructure:"name_keyword"`
	DescriptionKeyword float64 `json:"description_keyword" mapstructure:"description_keyword"`
}

// DefaultWeights returns the standard 25/20/15/3/2/1/0.5 scheme.
func DefaultWeights() Weights {
	return Weights{
		NameMatch:          25,
		ProblemPhrase:      20,
		EnhancementPhrase:  15,
		ProblemKeyword:     3,
		EnhancementKeyword: 2,
		NameKeyword:        1,
		DescriptionKeyword: 0.5,
	}
}

// Options tunes a ranking call. Zero values select the defaults.
type Options struct {
	Limit   int
	Weights Weights
}

func (o Options) withDefaults() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Weights == (Weights{}) {
		o.Weights = DefaultWeights()
	}
	return o
}

// ScoredService pairs a service with its aggregate score for one query.
type ScoredService struct {
	Service pkgcatalog.Service `json:"service"`
	Score   float64            `json:"score"`
}

// Rank returns up to DefaultLimit services ordered by descending score. Ties
// keep catalog traversal order and services scoring zero are never returned.
func Rank(features []string, cat *pkgcatalog.Catalog) ([]pkgcatalog.Service, error) {
	scored, err := RankWith(features, cat, Options{})
	if err != nil {
		return nil, err
	}
	return servicesOf(scored), nil
}

// RankWith is Rank with explicit options, returning the scores alongside the
// services.
func RankWith(features []string, cat *pkgcatalog.Catalog, opts Options) ([]ScoredService, error) {
	opts = opts.withDefaults()
	scored, err := scoreWith(features, cat, opts.Weights)
	if err != nil {
		return nil, err
	}
	return truncate(scored, opts.Limit), nil
}

// Score returns every service with a positive score, sorted descending.
func Score(features []string, cat *pkgcatalog.Catalog) ([]ScoredService, error) {
	return scoreWith(features, cat, DefaultWeights())
}

func scoreWith(features []string, cat *pkgcatalog.Catalog, w Weights) ([]ScoredService, error) {
	profiles, err := buildProfiles(cat)
	if err != nil {
		return nil, err
	}
	return scoreProfiles(profiles, newQuery(features), w), nil
}

// serviceProfile caches the lowercased fields and keyword sets of a service.
type serviceProfile struct {
	service             pkgcatalog.Service
	nameLower           string
	problemsLower       []string
	enhancementsLower   []string
	nameKeywords        map[string]struct{}
	problemKeywords     map[string]struct{}
	enhancementKeywords map[string]struct{}
	descriptionKeywords map[string]struct{}
}

func buildProfiles(cat *pkgcatalog.Catalog) ([]serviceProfile, error) {
	profiles := make([]serviceProfile, 0, cat.Len())
	for _, c := range cat.Categories() {
		for i, s := range c.Services {
			if strings.TrimSpace(s.Name) == "" {
				return nil, fmt.Errorf("catalog: %s[%d]: %w", c.Name, i, ErrInvalidServiceRecord)
			}
			profiles = append(profiles, newServiceProfile(s))
		}
	}
	return profiles, nil
}

func newServiceProfile(s pkgcatalog.Service) serviceProfile {
	p := serviceProfile{
		service:             s,
		nameLower:           strings.ToLower(s.Name),
		problemsLower:       lowerAll(s.ProblemsTreated),
		enhancementsLower:   lowerAll(s.Enhancements),
		nameKeywords:        keywordSet(ExtractKeywords(s.Name)),
		descriptionKeywords: keywordSet(ExtractKeywords(s.Description)),
	}

	var problemKeywords, enhancementKeywords []string
	for _, phrase := range s.ProblemsTreated {
		problemKeywords = append(problemKeywords, ExtractKeywords(phrase)...)
	}
	for _, phrase := range s.Enhancements {
		enhancementKeywords = append(enhancementKeywords, ExtractKeywords(phrase)...)
	}
	p.problemKeywords = keywordSet(problemKeywords)
	p.enhancementKeywords = keywordSet(enhancementKeywords)
	return p
}

// queryFeature is a normalized input phrase.
type queryFeature struct {
	lower    string
	keywords []string
}

func newQuery(features []string) []queryFeature {
	q := make([]queryFeature, len(features))
	for i, f := range features {
		lower := strings.ToLower(strings.TrimSpace(f))
		q[i] = queryFeature{lower: lower, keywords: ExtractKeywords(lower)}
	}
	return q
}

// scoreProfiles scores every profile and returns the positive ones in stable
// descending order.
func scoreProfiles(profiles []serviceProfile, query []queryFeature, w Weights) []ScoredService {
	var out []ScoredService
	for i := range profiles {
		total := 0.0
		for _, f := range query {
			total += profiles[i].featureScore(f, w)
		}
		if total > 0 {
			out = append(out, ScoredService{Service: profiles[i].service, Score: total})
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		return out[a].Score > out[b].Score
	})
	return out
}

// featureScore is the contribution of a single feature to the service score.
func (p *serviceProfile) featureScore(f queryFeature, w Weights) float64 {
	score := 0.0

	if strings.Contains(p.nameLower, f.lower) || strings.Contains(f.lower, p.nameLower) {
		score += w.NameMatch
	}
	for _, phrase := range p.problemsLower {
		if strings.Contains(phrase, f.lower) {
			score += w.ProblemPhrase
		}
	}
	for _, phrase := range p.enhancementsLower {
		if strings.Contains(phrase, f.lower) {
			score += w.EnhancementPhrase
		}
	}

	score += float64(overlap(f.keywords, p.problemKeywords)) * w.ProblemKeyword
	score += float64(overlap(f.keywords, p.enhancementKeywords)) * w.EnhancementKeyword
	score += float64(overlap(f.keywords, p.nameKeywords)) * w.NameKeyword
	score += float64(overlap(f.keywords, p.descriptionKeywords)) * w.DescriptionKeyword
	return score
}

// overlap counts the feature keywords present in set. Repeated feature
// keywords count each time.
func overlap(keywords []string, set map[string]struct{}) int {
	n := 0
	for _, k := range keywords {
		if _, ok := set[k]; ok {
			n++
		}
	}
	return n
}

func truncate(scored []ScoredService, limit int) []ScoredService {
	if len(scored) > limit {
		return scored[:limit]
	}
	return scored
}

func servicesOf(scored []ScoredService) []pkgcatalog.Service {
	out := make([]pkgcatalog.Service, len(scored))
	for i := range scored {
		out[i] = scored[i].Service
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
