package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// MinVisitOccurrences is the repeat count below which a visit cluster
	// is treated as noise.
	MinVisitOccurrences = 3
	// PatternBaseConfidence is the starting confidence for a pattern-derived
	// candidate.
	PatternBaseConfidence = 0.4
	// PatternPerOccurrence is the confidence gained per observed occurrence.
	PatternPerOccurrence = 0.05
	// PatternMaxConfidence caps pattern-derived confidence below certainty;
	// this path is unvalidated inference.
	PatternMaxConfidence = 0.8
)

// ignoredSources are generic, low-signal grouping keys excluded
// unconditionally: search engines, social networks, code hosting.
var ignoredSources = map[string]bool{
	"google.com":     true,
	"bing.com":       true,
	"duckduckgo.com": true,
	"twitter.com":    true,
	"x.com":          true,
	"facebook.com":   true,
	"instagram.com":  true,
	"linkedin.com":   true,
	"reddit.com":     true,
	"youtube.com":    true,
	"github.com":     true,
	"gitlab.com":     true,
	"bitbucket.org":  true,
}

// PatternService derives candidates from clustered low-level signals, e.g.
// repeated visits to the same source.
type PatternService struct {
	registry    *RegistryService
	categorizer Categorizer
	logger      *zap.Logger
}

func NewPatternService(registry *RegistryService, categorizer Categorizer, logger *zap.Logger) *PatternService {
	return &PatternService{registry: registry, categorizer: categorizer, logger: logger}
}

type visitCluster struct {
	key     string
	count   int
	samples []string
}

// Analyze clusters repeated-visit signals by normalized origin, categorizes
// clusters above the noise floor, and registers the resulting candidates.
// Returns the admitted candidates sorted descending by confidence.
func (s *PatternService) Analyze(ctx context.Context, signals []domain.Signal, now time.Time) ([]domain.Candidate, error) {
	clusters := make(map[string]*visitCluster)
	var order []string
	for _, sig := range signals {
		if sig.Type != domain.SignalVisit {
			continue
		}
		key := normalizeOrigin(sig.Source)
		if key == "" || ignoredSources[key] {
			continue
		}
		c, ok := clusters[key]
		if !ok {
			c = &visitCluster{key: key}
			clusters[key] = c
			order = append(order, key)
		}
		c.count++
		if sig.Payload != "" && len(c.samples) < 5 {
			c.samples = append(c.samples, sig.Payload)
		}
	}

	var cands []domain.Candidate
	for _, key := range order {
		c := clusters[key]
		if c.count < MinVisitOccurrences {
			continue
		}

		kc, err := s.categorizer.Categorize(ctx, c.key, c.samples)
		if err != nil || kc == nil {
			if err != nil {
				s.logger.Debug("categorization failed for pattern key", zap.String("key", c.key), zap.Error(err))
			}
			kc = &KeyCategory{Label: c.key, Category: domain.CategoryContext}
		}

		confidence := math.Min(PatternMaxConfidence, PatternBaseConfidence+PatternPerOccurrence*float64(c.count))
		cands = append(cands, domain.Candidate{
			ID:         uuid.New(),
			Category:   kc.Category,
			Content:    candidateContent(kc),
			Confidence: confidence,
			SourceRef:  c.key,
			Signals:    []string{fmt.Sprintf("%d visits to %s", c.count, c.key)},
			CreatedAt:  now,
		})
	}

	sort.SliceStable(cands, func(i, j int) bool { return cands[i].Confidence > cands[j].Confidence })

	return s.registry.Register(ctx, cands, now)
}

func candidateContent(kc *KeyCategory) string {
	switch kc.Category {
	case domain.CategoryExpertise:
		return fmt.Sprintf("Has working knowledge of %s", kc.Label)
	case domain.CategoryFocus:
		return fmt.Sprintf("Currently focused on %s", kc.Label)
	case domain.CategoryPreference:
		return fmt.Sprintf("Shows a preference for %s", kc.Label)
	default:
		return fmt.Sprintf("Regularly engages with %s", kc.Label)
	}
}

// normalizeOrigin reduces a source string to a stable grouping key: the
// lowercased host without scheme, credentials, port, path, or www prefix.
func normalizeOrigin(source string) string {
	s := strings.TrimSpace(strings.ToLower(source))
	if s == "" {
		return ""
	}
	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
	}
	if i := strings.IndexAny(s, "/?#"); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndex(s, "@"); i >= 0 {
		s = s[i+1:]
	}
	if i := strings.Index(s, ":"); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimPrefix(s, "www.")
	return s
}
