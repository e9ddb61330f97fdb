package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/google/uuid"
)

func TestEffectiveConfidence_HalfLifeDecay(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fact := &domain.Fact{Confidence: 1.0, LastValidated: base}

	tests := []struct {
		name     string
		daysOld  float64
		want     float64
	}{
		{"fresh fact keeps full confidence", 0, 1.0},
		{"one half-life halves", 60, 0.5},
		{"two half-lives quarter", 120, 0.25},
		{"three half-lives eighth", 180, 0.125},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := base.Add(time.Duration(tt.daysOld*24) * time.Hour)
			got := EffectiveConfidenceAt(fact, 60, now)
			if math.Abs(got-tt.want) > 0.01*tt.want+1e-9 {
				t.Errorf("effective confidence at %v days = %f, want %f", tt.daysOld, got, tt.want)
			}
		})
	}
}

func TestEffectiveConfidence_FallsBackToCreatedAt(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fact := &domain.Fact{Confidence: 0.8, CreatedAt: created}

	got := EffectiveConfidenceAt(fact, 60, created.AddDate(0, 0, 60))
	if math.Abs(got-0.4) > 0.005 {
		t.Errorf("expected ~0.4 after one half-life from creation, got %f", got)
	}
}

func TestEffectiveConfidence_NeverMutates(t *testing.T) {
	fact := &domain.Fact{Confidence: 1.0, LastValidated: time.Now().AddDate(0, 0, -120)}
	_ = EffectiveConfidenceAt(fact, 60, time.Now())
	if fact.Confidence != 1.0 {
		t.Errorf("stored confidence mutated to %f", fact.Confidence)
	}
}

func TestCreate_ManualDefaults(t *testing.T) {
	svc := newTestFacts(newMemDocStore())

	fact, events, err := svc.Create(context.Background(), CreateFactInput{Content: "Prefers dark mode"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fact.Confidence != 1.0 {
		t.Errorf("manual confidence = %f, want 1.0", fact.Confidence)
	}
	if fact.Maturity != domain.MaturityEstablished {
		t.Errorf("manual maturity = %s, want established", fact.Maturity)
	}
	if fact.ValidationCount != 1 {
		t.Errorf("manual validation count = %d, want 1", fact.ValidationCount)
	}
	if fact.Category != domain.CategoryContext {
		t.Errorf("default category = %s, want context", fact.Category)
	}
	if fact.Visibility != domain.VisibilityTrusted {
		t.Errorf("default visibility = %s, want trusted", fact.Visibility)
	}
	if len(events) != 1 || events[0].Type != domain.EventFactCreated {
		t.Errorf("expected one fact.created event, got %+v", events)
	}
}

func TestCreate_InferredDefaults(t *testing.T) {
	svc := newTestFacts(newMemDocStore())

	fact, _, err := svc.Create(context.Background(), CreateFactInput{
		Content: "Has working knowledge of Go",
		Source:  domain.SourceInferred,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fact.Confidence != 0.5 {
		t.Errorf("inferred confidence = %f, want 0.5", fact.Confidence)
	}
	if fact.Maturity != domain.MaturityCandidate {
		t.Errorf("inferred maturity = %s, want candidate", fact.Maturity)
	}
	if fact.ValidationCount != 0 {
		t.Errorf("inferred validation count = %d, want 0", fact.ValidationCount)
	}
}

func TestCreate_Invalid(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	ctx := context.Background()

	if _, _, err := svc.Create(ctx, CreateFactInput{}); !errors.Is(err, ErrFactContentEmpty) {
		t.Errorf("empty content: got %v, want ErrFactContentEmpty", err)
	}
	if _, _, err := svc.Create(ctx, CreateFactInput{Content: "x", Category: "vibes"}); !errors.Is(err, ErrInvalidCategory) {
		t.Errorf("bad category: got %v, want ErrInvalidCategory", err)
	}
	if _, _, err := svc.Create(ctx, CreateFactInput{Content: "x", Visibility: "secret"}); !errors.Is(err, ErrInvalidVisibility) {
		t.Errorf("bad visibility: got %v, want ErrInvalidVisibility", err)
	}
}

func TestCreate_ExplicitConfidenceClamped(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	over := 1.7
	fact, _, err := svc.Create(context.Background(), CreateFactInput{Content: "x", Confidence: &over})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fact.Confidence != 1.0 {
		t.Errorf("confidence = %f, want clamped to 1.0", fact.Confidence)
	}
}

func TestValidate_MaturityThresholds(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	ctx := context.Background()

	fact, _, err := svc.Create(ctx, CreateFactInput{Content: "drinks coffee", Source: domain.SourceInferred})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Count 1: still a candidate.
	v, _, err := svc.Validate(ctx, fact.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Maturity != domain.MaturityCandidate {
		t.Errorf("count 1 maturity = %s, want candidate", v.Maturity)
	}

	// Count 2: established.
	v, _, _ = svc.Validate(ctx, fact.ID)
	if v.ValidationCount != 2 || v.Maturity != domain.MaturityEstablished {
		t.Errorf("count %d maturity = %s, want established at 2", v.ValidationCount, v.Maturity)
	}

	// Counts 3, 4: still established; count 5: proven.
	svc.Validate(ctx, fact.ID)
	v, _, _ = svc.Validate(ctx, fact.ID)
	if v.Maturity != domain.MaturityEstablished {
		t.Errorf("count 4 maturity = %s, want established", v.Maturity)
	}
	v, _, _ = svc.Validate(ctx, fact.ID)
	if v.ValidationCount != 5 || v.Maturity != domain.MaturityProven {
		t.Errorf("count %d maturity = %s, want proven at 5", v.ValidationCount, v.Maturity)
	}
}

func TestValidate_ConfidenceCapped(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	ctx := context.Background()

	fact, _, err := svc.Create(ctx, CreateFactInput{Content: "uses vim"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Manual facts start at 1.0; boosts must not exceed the cap.
	v, _, err := svc.Validate(ctx, fact.ID)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Confidence != MaxConfidence {
		t.Errorf("confidence = %f, want capped at %f", v.Confidence, MaxConfidence)
	}
}

func TestValidate_MaturityNeverRegresses(t *testing.T) {
	docs := newMemDocStore()
	svc := newTestFacts(docs)
	ctx := context.Background()

	// Seed a proven fact whose count alone would only imply candidate.
	id := uuid.New()
	doc := domain.FactDocument{Facts: []domain.Fact{{
		ID:              id,
		Category:        domain.CategoryCore,
		Content:         "lives in Lisbon",
		Confidence:      0.9,
		ValidationCount: 0,
		Maturity:        domain.MaturityProven,
		CreatedAt:       time.Now(),
	}}}
	raw, _ := json.Marshal(doc)
	docs.docs["test/"+domain.DocFacts] = raw

	v, _, err := svc.Validate(ctx, id)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if v.Maturity != domain.MaturityProven {
		t.Errorf("maturity regressed to %s", v.Maturity)
	}
}

func TestValidate_NotFound(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	if _, _, err := svc.Validate(context.Background(), uuid.New()); !errors.Is(err, ErrFactNotFound) {
		t.Errorf("got %v, want ErrFactNotFound", err)
	}
}

func TestRemember_DeduplicatesOnNormalizedContent(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	ctx := context.Background()

	first, already, _, err := svc.Remember(ctx, CreateFactInput{Content: "Prefers dark mode"})
	if err != nil {
		t.Fatalf("remember: %v", err)
	}
	if already {
		t.Fatal("first remember reported already exists")
	}

	second, already, _, err := svc.Remember(ctx, CreateFactInput{Content: "  prefers DARK mode! "})
	if err != nil {
		t.Fatalf("remember duplicate: %v", err)
	}
	if !already {
		t.Fatal("duplicate remember did not report already exists")
	}
	if second.ID != first.ID {
		t.Errorf("duplicate produced a new fact %s, want %s", second.ID, first.ID)
	}
	if second.ValidationCount != first.ValidationCount+1 {
		t.Errorf("duplicate did not validate: count %d, want %d", second.ValidationCount, first.ValidationCount+1)
	}
	if got := len(svc.List(ctx)); got != 1 {
		t.Errorf("fact count = %d, want 1", got)
	}
}

func TestRemove(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	ctx := context.Background()

	fact, _, _ := svc.Create(ctx, CreateFactInput{Content: "drinks tea"})
	events, err := svc.Remove(ctx, fact.ID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventFactRemoved {
		t.Errorf("expected one fact.removed event, got %+v", events)
	}
	if got := len(svc.List(ctx)); got != 0 {
		t.Errorf("fact count after remove = %d, want 0", got)
	}

	if _, err := svc.Remove(ctx, fact.ID); !errors.Is(err, ErrFactNotFound) {
		t.Errorf("second remove: got %v, want ErrFactNotFound", err)
	}
}

func TestFind(t *testing.T) {
	svc := newTestFacts(newMemDocStore())
	ctx := context.Background()

	fact, _, _ := svc.Create(ctx, CreateFactInput{Content: "Prefers dark mode editors"})

	byID, score, err := svc.Find(ctx, fact.ID.String(), "", 0)
	if err != nil || byID.ID != fact.ID || score != 1.0 {
		t.Errorf("find by id: fact=%v score=%f err=%v", byID, score, err)
	}

	byExact, score, err := svc.Find(ctx, "", "prefers dark mode editors!", 0)
	if err != nil || byExact.ID != fact.ID || score != 1.0 {
		t.Errorf("find by exact content: fact=%v score=%f err=%v", byExact, score, err)
	}

	byFuzzy, score, err := svc.Find(ctx, "", "prefers dark mode editor", 0)
	if err != nil || byFuzzy.ID != fact.ID {
		t.Errorf("find by fuzzy content: fact=%v err=%v", byFuzzy, err)
	}
	if score >= 1.0 || score < DefaultFuzzyThreshold {
		t.Errorf("fuzzy score = %f, want in [%f, 1.0)", score, DefaultFuzzyThreshold)
	}

	if _, _, err := svc.Find(ctx, "", "enjoys skydiving", 0); !errors.Is(err, ErrFactNotFound) {
		t.Errorf("unrelated content: got %v, want ErrFactNotFound", err)
	}
}

func TestLoadDocument_RecoversFromCorruptStore(t *testing.T) {
	docs := newMemDocStore()
	docs.docs["test/"+domain.DocFacts] = []byte("not json")
	svc := newTestFacts(docs)

	if got := len(svc.List(context.Background())); got != 0 {
		t.Errorf("corrupt document yielded %d facts, want 0", got)
	}

	// Writes after recovery still work.
	if _, _, err := svc.Create(context.Background(), CreateFactInput{Content: "fresh start"}); err != nil {
		t.Fatalf("create after corrupt read: %v", err)
	}
}

func TestSaveDocument_SurfacesWriteErrors(t *testing.T) {
	docs := newMemDocStore()
	docs.writeErr = errors.New("disk on fire")
	svc := newTestFacts(docs)

	if _, _, err := svc.Create(context.Background(), CreateFactInput{Content: "x"}); err == nil {
		t.Error("expected create to surface the write error")
	}
}

func TestFilterByVisibility(t *testing.T) {
	facts := []domain.Fact{
		{Content: "public", Visibility: domain.VisibilityPublic},
		{Content: "trusted", Visibility: domain.VisibilityTrusted},
		{Content: "local", Visibility: domain.VisibilityLocal},
		{Content: "unset"},
	}

	tests := []struct {
		tier domain.Visibility
		want int
	}{
		{domain.VisibilityPublic, 1},
		{domain.VisibilityTrusted, 3}, // unset defaults to trusted
		{domain.VisibilityLocal, 4},
	}
	for _, tt := range tests {
		if got := len(FilterByVisibility(facts, tt.tier)); got != tt.want {
			t.Errorf("tier %s: %d facts, want %d", tt.tier, got, tt.want)
		}
	}
}
