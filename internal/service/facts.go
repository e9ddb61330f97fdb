package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/match"
	"github.com/aretelabs/arete/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrFactNotFound      = errors.New("fact not found")
	ErrFactContentEmpty  = errors.New("content is required")
	ErrInvalidCategory   = errors.New("invalid category")
	ErrInvalidVisibility = errors.New("invalid visibility")
	ErrInvalidSource     = errors.New("invalid source")
)

const (
	// DefaultHalfLifeDays is how long effective confidence takes to halve
	// without revalidation.
	DefaultHalfLifeDays = 60.0
	// ValidationConfidenceBoost is added to stored confidence on validate.
	ValidationConfidenceBoost = 0.2
	// MaxConfidence caps stored confidence.
	MaxConfidence = 1.0
	// DefaultFuzzyThreshold is the minimum similarity for fuzzy fact lookup.
	DefaultFuzzyThreshold = 0.7
)

// EffectiveConfidenceAt discounts a fact's stored confidence by elapsed
// time since its last validation via exponential half-life decay. Pure; it
// never mutates the stored confidence.
func EffectiveConfidenceAt(f *domain.Fact, halfLifeDays float64, now time.Time) float64 {
	if halfLifeDays <= 0 {
		halfLifeDays = DefaultHalfLifeDays
	}
	last := f.LastValidated
	if last.IsZero() {
		last = f.CreatedAt
	}
	days := now.Sub(last).Hours() / 24.0
	if days <= 0 {
		return clamp01(f.Confidence)
	}
	return clamp01(f.Confidence) * math.Pow(0.5, days/halfLifeDays)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// FactService owns fact entities: creation defaults, validation and
// maturity transitions, decay, and lookup. The working set is materialized
// from the document store at operation start and flushed at operation end.
type FactService struct {
	docs         domain.DocumentStore
	namespace    string
	halfLifeDays float64
	logger       *zap.Logger
	now          func() time.Time
}

func NewFactService(docs domain.DocumentStore, namespace string, logger *zap.Logger) *FactService {
	return &FactService{
		docs:         docs,
		namespace:    namespace,
		halfLifeDays: DefaultHalfLifeDays,
		logger:       logger,
		now:          time.Now,
	}
}

func (s *FactService) SetHalfLife(days float64) {
	if days > 0 {
		s.halfLifeDays = days
	}
}

// SetNow overrides the clock. Tests use this to make decay deterministic.
func (s *FactService) SetNow(now func() time.Time) {
	s.now = now
}

func (s *FactService) HalfLifeDays() float64 {
	return s.halfLifeDays
}

// loadDocument reads the fact document. A missing or unreadable store is
// treated as empty rather than failing the caller; only writes surface
// storage errors.
func (s *FactService) loadDocument(ctx context.Context) *domain.FactDocument {
	doc := &domain.FactDocument{}
	raw, err := s.docs.Read(ctx, s.namespace, domain.DocFacts)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			s.logger.Warn("fact document unreadable, treating store as empty", zap.Error(err))
		}
		return doc
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		s.logger.Warn("fact document corrupt, treating store as empty", zap.Error(err))
		return &domain.FactDocument{}
	}
	return doc
}

func (s *FactService) saveDocument(ctx context.Context, doc *domain.FactDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal fact document: %w", err)
	}
	if err := s.docs.Replace(ctx, s.namespace, domain.DocFacts, raw); err != nil {
		return fmt.Errorf("persist fact document: %w", err)
	}
	return nil
}

// CreateFactInput carries caller-provided fields for a new fact. Zero-value
// fields fall back to source-derived defaults.
type CreateFactInput struct {
	Content    string
	Category   domain.Category
	Visibility domain.Visibility
	Source     domain.Source
	SourceRef  string
	Confidence *float64
}

// Create validates input, applies source-derived defaults, and persists the
// new fact. Manual facts start established at full confidence; everything
// else starts as an unvalidated candidate.
func (s *FactService) Create(ctx context.Context, input CreateFactInput) (*domain.Fact, []domain.Event, error) {
	if input.Content == "" {
		return nil, nil, ErrFactContentEmpty
	}
	if input.Category == "" {
		input.Category = domain.CategoryContext
	}
	if !domain.ValidCategory(string(input.Category)) {
		return nil, nil, ErrInvalidCategory
	}
	if input.Visibility == "" {
		input.Visibility = domain.VisibilityTrusted
	}
	if !domain.ValidVisibility(string(input.Visibility)) {
		return nil, nil, ErrInvalidVisibility
	}
	if input.Source == "" {
		input.Source = domain.SourceManual
	}
	if !domain.ValidSource(string(input.Source)) {
		return nil, nil, ErrInvalidSource
	}

	now := s.now()
	confidence := input.Source.InitialConfidence()
	if input.Confidence != nil {
		confidence = clamp01(*input.Confidence)
	}

	fact := domain.Fact{
		ID:              uuid.New(),
		Category:        input.Category,
		Content:         input.Content,
		Confidence:      confidence,
		LastValidated:   now,
		ValidationCount: input.Source.InitialValidationCount(),
		Maturity:        input.Source.InitialMaturity(),
		Visibility:      input.Visibility,
		Source:          input.Source,
		SourceRef:       input.SourceRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	doc := s.loadDocument(ctx)
	doc.Facts = append(doc.Facts, fact)
	if err := s.saveDocument(ctx, doc); err != nil {
		return nil, nil, err
	}

	s.logger.Debug("fact created",
		zap.String("fact_id", fact.ID.String()),
		zap.String("category", string(fact.Category)),
		zap.String("source", string(fact.Source)))

	events := []domain.Event{{Type: domain.EventFactCreated, FactID: fact.ID, Detail: fact.Content}}
	return &fact, events, nil
}

// Remember creates a fact, or revalidates the existing one when content
// with the same normalized form is already stored. The duplicate path is a
// successful outcome signaled via the returned flag, not an error.
func (s *FactService) Remember(ctx context.Context, input CreateFactInput) (*domain.Fact, bool, []domain.Event, error) {
	if input.Content == "" {
		return nil, false, nil, ErrFactContentEmpty
	}

	key := match.Normalize(input.Content)
	for _, f := range s.List(ctx) {
		if match.Normalize(f.Content) == key {
			validated, events, err := s.Validate(ctx, f.ID)
			if err != nil {
				return nil, false, nil, err
			}
			return validated, true, events, nil
		}
	}

	fact, events, err := s.Create(ctx, input)
	if err != nil {
		return nil, false, nil, err
	}
	return fact, false, events, nil
}

// Validate reconfirms a fact: bumps the validation count, boosts confidence
// by a capped fixed step, stamps the validation time, and recomputes
// maturity from the new count without ever downgrading it.
func (s *FactService) Validate(ctx context.Context, id uuid.UUID) (*domain.Fact, []domain.Event, error) {
	doc := s.loadDocument(ctx)
	idx := -1
	for i := range doc.Facts {
		if doc.Facts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil, ErrFactNotFound
	}

	now := s.now()
	f := &doc.Facts[idx]
	f.ValidationCount++
	f.Confidence = math.Min(MaxConfidence, clamp01(f.Confidence)+ValidationConfidenceBoost)
	f.LastValidated = now
	f.Maturity = domain.MaxMaturity(f.Maturity, domain.MaturityForCount(f.ValidationCount))
	f.UpdatedAt = now

	if err := s.saveDocument(ctx, doc); err != nil {
		return nil, nil, err
	}

	s.logger.Debug("fact validated",
		zap.String("fact_id", f.ID.String()),
		zap.Int("validation_count", f.ValidationCount),
		zap.Float64("confidence", f.Confidence),
		zap.String("maturity", string(f.Maturity)))

	validated := *f
	events := []domain.Event{{Type: domain.EventFactValidated, FactID: f.ID}}
	return &validated, events, nil
}

// Remove deletes a fact from the active store outright. Sweep-based
// archival is the preferred path; this is the explicit caller operation.
func (s *FactService) Remove(ctx context.Context, id uuid.UUID) ([]domain.Event, error) {
	doc := s.loadDocument(ctx)
	idx := -1
	for i := range doc.Facts {
		if doc.Facts[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrFactNotFound
	}

	doc.Facts = append(doc.Facts[:idx], doc.Facts[idx+1:]...)
	if err := s.saveDocument(ctx, doc); err != nil {
		return nil, err
	}
	return []domain.Event{{Type: domain.EventFactRemoved, FactID: id}}, nil
}

// List returns all active facts.
func (s *FactService) List(ctx context.Context) []domain.Fact {
	return s.loadDocument(ctx).Facts
}

// EffectiveConfidence applies the configured half-life to a fact at the
// service clock's current time.
func (s *FactService) EffectiveConfidence(f *domain.Fact) float64 {
	return EffectiveConfidenceAt(f, s.halfLifeDays, s.now())
}

// Find resolves a fact by id first, then exact normalized content, then
// fuzzy content match. The returned score is 1.0 for exact matches.
func (s *FactService) Find(ctx context.Context, id, content string, fuzzyThreshold float64) (*domain.Fact, float64, error) {
	if fuzzyThreshold <= 0 {
		fuzzyThreshold = DefaultFuzzyThreshold
	}
	facts := s.List(ctx)

	if id != "" {
		if parsed, err := uuid.Parse(id); err == nil {
			for i := range facts {
				if facts[i].ID == parsed {
					return &facts[i], 1.0, nil
				}
			}
		}
	}

	if content == "" {
		return nil, 0, ErrFactNotFound
	}

	key := match.Normalize(content)
	for i := range facts {
		if match.Normalize(facts[i].Content) == key {
			return &facts[i], 1.0, nil
		}
	}

	best, ok := match.FindBestMatch(content, facts, func(f domain.Fact) string { return f.Content }, fuzzyThreshold)
	if !ok {
		return nil, 0, ErrFactNotFound
	}
	found := best.Item
	return &found, best.Score, nil
}

// FilterByVisibility keeps facts whose privacy tier is at or below the
// requested maximum. Missing visibility defaults to trusted.
func FilterByVisibility(facts []domain.Fact, maxTier domain.Visibility) []domain.Fact {
	limit := maxTier.Tier()
	filtered := make([]domain.Fact, 0, len(facts))
	for _, f := range facts {
		if f.Visibility.Tier() <= limit {
			filtered = append(filtered, f)
		}
	}
	return filtered
}
