package service

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/match"
	"go.uber.org/zap"
)

const (
	// DefaultMaxFacts is the default projection size.
	DefaultMaxFacts = 10
	// DefaultMinConfidence is the effective-confidence floor for inclusion.
	DefaultMinConfidence = 0.3
	// FlatRelevance is the relevance assigned to every fact when no task
	// is given, so ordering falls back to effective confidence alone.
	FlatRelevance = 0.5
	// KeywordTokenWeight is the relevance contribution per shared token
	// between task and fact content.
	KeywordTokenWeight = 0.15
	// KeywordOverlapCap bounds the total keyword-overlap contribution.
	KeywordOverlapCap = 0.7
	// ProvenMaturityBoost is the flat relevance boost for proven facts.
	ProvenMaturityBoost = 0.05
	// TaskContextBoost applies to context facts for any non-empty task.
	TaskContextBoost = 0.05
	// IntentCategoryBoost applies to the category matching the task intent.
	IntentCategoryBoost = 0.15
	// PlanningFocusBoost applies to focus facts for planning-flavored tasks.
	PlanningFocusBoost = 0.1
)

type taskIntent int

const (
	intentGeneral taskIntent = iota
	intentDebugging
	intentWriting
	intentPlanning
)

// RankedFact is a fact scored for a projection query.
type RankedFact struct {
	domain.Fact
	Relevance           float64 `json:"relevance"`
	EffectiveConfidence float64 `json:"effective_confidence"`
	Score               float64 `json:"score"`
}

// ProjectionResult is a ranked, task-relevant subset of active facts plus
// observability counters.
type ProjectionResult struct {
	Facts       []RankedFact `json:"facts"`
	TotalFacts  int          `json:"total_facts"`
	FilteredOut int          `json:"filtered_out"`
}

// ProjectionService answers "what do I know relevant to X" by ranking
// active facts on relevance-to-task times decayed confidence.
type ProjectionService struct {
	facts  *FactService
	logger *zap.Logger
}

func NewProjectionService(facts *FactService, logger *zap.Logger) *ProjectionService {
	return &ProjectionService{facts: facts, logger: logger}
}

// Project ranks active facts for the given task. Facts below the
// effective-confidence floor are dropped unless proven: validated long-term
// knowledge never silently disappears purely from decay.
func (s *ProjectionService) Project(ctx context.Context, task string, maxFacts int, minConfidence float64) *ProjectionResult {
	if maxFacts <= 0 {
		maxFacts = DefaultMaxFacts
	}
	if minConfidence <= 0 {
		minConfidence = DefaultMinConfidence
	}

	facts := s.facts.List(ctx)
	intent := detectTaskIntent(task)
	taskTokens := tokenSet(task)

	result := &ProjectionResult{TotalFacts: len(facts)}
	ranked := make([]RankedFact, 0, len(facts))
	for i := range facts {
		f := facts[i]
		effConf := s.facts.EffectiveConfidence(&f)
		if effConf < minConfidence && f.Maturity != domain.MaturityProven {
			result.FilteredOut++
			continue
		}
		relevance := scoreRelevance(&f, task, taskTokens, intent)
		ranked = append(ranked, RankedFact{
			Fact:                f,
			Relevance:           relevance,
			EffectiveConfidence: effConf,
			Score:               relevance * effConf,
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	if len(ranked) > maxFacts {
		ranked = ranked[:maxFacts]
	}
	result.Facts = ranked

	s.logger.Debug("projection computed",
		zap.String("task", task),
		zap.Int("total", result.TotalFacts),
		zap.Int("returned", len(ranked)),
		zap.Int("filtered_out", result.FilteredOut))

	return result
}

// scoreRelevance combines keyword overlap with intent-driven category
// boosts and a small boost for proven maturity, capped at 1.0. With no
// task, relevance is flat.
func scoreRelevance(f *domain.Fact, task string, taskTokens map[string]bool, intent taskIntent) float64 {
	if task == "" {
		return FlatRelevance
	}

	shared := 0
	for _, tok := range contentTokens(f.Content) {
		if taskTokens[tok] {
			shared++
		}
	}
	relevance := math.Min(KeywordOverlapCap, float64(shared)*KeywordTokenWeight)

	switch {
	case intent == intentDebugging && f.Category == domain.CategoryExpertise:
		relevance += IntentCategoryBoost
	case intent == intentWriting && f.Category == domain.CategoryPreference:
		relevance += IntentCategoryBoost
	case intent == intentPlanning && f.Category == domain.CategoryFocus:
		relevance += PlanningFocusBoost
	}
	if f.Category == domain.CategoryContext {
		relevance += TaskContextBoost
	}
	if f.Maturity == domain.MaturityProven {
		relevance += ProvenMaturityBoost
	}

	return math.Min(1.0, relevance)
}

func detectTaskIntent(task string) taskIntent {
	t := strings.ToLower(task)
	for _, kw := range []string{"debug", "fix", "error", "bug", "crash", "broken", "failing"} {
		if strings.Contains(t, kw) {
			return intentDebugging
		}
	}
	for _, kw := range []string{"write", "writing", "draft", "document", "blog", "email", "post"} {
		if strings.Contains(t, kw) {
			return intentWriting
		}
	}
	for _, kw := range []string{"plan", "roadmap", "design", "architect", "scope"} {
		if strings.Contains(t, kw) {
			return intentPlanning
		}
	}
	return intentGeneral
}

func tokenSet(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range contentTokens(s) {
		tokens[tok] = true
	}
	return tokens
}

// stopwords excluded from keyword overlap; shared filler is not relevance.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "has": true, "are": true, "was": true, "its": true,
	"about": true, "from": true, "into": true, "user": true, "prefers": true,
}

func contentTokens(s string) []string {
	var out []string
	for _, tok := range strings.Fields(match.Normalize(s)) {
		if len(tok) < 3 || stopwords[tok] {
			continue
		}
		out = append(out, tok)
	}
	return out
}
