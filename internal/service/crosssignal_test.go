package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/llm"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

func newTestCrossSignal(client domain.ClassifierClient) (*CrossSignalService, *RegistryService, *FactService) {
	registry, facts, _ := newTestRegistry()
	svc := NewCrossSignalService(registry, facts, client, zap.NewNop())
	svc.SetLimiter(rate.NewLimiter(rate.Inf, 1))
	return svc, registry, facts
}

func insightSignals() []domain.Signal {
	return []domain.Signal{
		{Type: domain.SignalInsight, Source: "session", Payload: "asked about goroutine leaks twice"},
		{Type: domain.SignalVisit, Source: "pkg.go.dev", Payload: "sync package docs"},
	}
}

func TestCorrelate_RegistersValidCandidates(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteResponse = "```json\n" + `{
		"candidates": [
			{"content": "Is learning Go concurrency", "category": "focus", "confidence": 0.7, "signals": ["insight", "visit"], "reasoning": "repeated questions"}
		],
		"reinforce": [],
		"downgrade": []
	}` + "\n```"

	svc, registry, _ := newTestCrossSignal(mock)
	now := time.Now()

	cands, actions := svc.Correlate(context.Background(), insightSignals(), now)
	if len(cands) != 1 {
		t.Fatalf("expected one candidate, got %d", len(cands))
	}
	if cands[0].Category != domain.CategoryFocus {
		t.Errorf("category = %s, want focus", cands[0].Category)
	}
	if cands[0].SourceRef != "classifier" {
		t.Errorf("source ref = %q, want classifier", cands[0].SourceRef)
	}
	if len(actions.Reinforce)+len(actions.Downgrade) != 0 {
		t.Errorf("unexpected actions: %+v", actions)
	}
	if got := len(registry.ListAll(context.Background(), now)); got != 1 {
		t.Errorf("registry holds %d candidates, want 1", got)
	}
	if len(mock.CompleteCalls) != 1 {
		t.Fatalf("classifier called %d times, want 1", len(mock.CompleteCalls))
	}
}

func TestCorrelate_PromptCarriesFactsAndSignals(t *testing.T) {
	mock := llm.NewMockClient()
	svc, _, facts := newTestCrossSignal(mock)

	facts.Create(context.Background(), CreateFactInput{Content: "Prefers dark mode"})

	svc.Correlate(context.Background(), insightSignals(), time.Now())
	if len(mock.CompleteCalls) != 1 {
		t.Fatal("classifier not called")
	}
	prompt := mock.CompleteCalls[0]
	if !strings.Contains(prompt, "Prefers dark mode") {
		t.Error("prompt missing existing fact content")
	}
	if !strings.Contains(prompt, "goroutine leaks") {
		t.Error("prompt missing signal payload")
	}
	if !strings.Contains(prompt, "## insight") || !strings.Contains(prompt, "## visit") {
		t.Error("prompt missing signal type sections")
	}
}

func TestCorrelate_DropsInvalidCandidates(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteResponse = `{
		"candidates": [
			{"content": "", "category": "focus", "confidence": 0.7},
			{"content": "Likes vibes", "category": "vibes", "confidence": 0.7},
			{"content": "Prefers dark mode", "category": "preference", "confidence": 0.7},
			{"content": "Collects vinyl records", "category": "context", "confidence": 3.5}
		]
	}`

	svc, _, facts := newTestCrossSignal(mock)
	facts.Create(context.Background(), CreateFactInput{Content: "prefers dark mode"})

	cands, _ := svc.Correlate(context.Background(), insightSignals(), time.Now())
	if len(cands) != 1 {
		t.Fatalf("expected only the valid novel candidate, got %d: %+v", len(cands), cands)
	}
	if cands[0].Content != "Collects vinyl records" {
		t.Errorf("surviving candidate = %q", cands[0].Content)
	}
	if cands[0].Confidence != 1.0 {
		t.Errorf("confidence = %f, want clamped to 1.0", cands[0].Confidence)
	}
}

func TestCorrelate_ActionsRequireFactID(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteResponse = `{
		"candidates": [],
		"reinforce": [{"factId": "abc-123", "reason": "seen again"}, {"factId": "", "reason": "no id"}],
		"downgrade": [{"factId": "def-456", "reason": "contradicted"}]
	}`

	svc, _, _ := newTestCrossSignal(mock)
	_, actions := svc.Correlate(context.Background(), insightSignals(), time.Now())
	if len(actions.Reinforce) != 1 || actions.Reinforce[0].FactID != "abc-123" {
		t.Errorf("reinforce actions = %+v", actions.Reinforce)
	}
	if len(actions.Downgrade) != 1 || actions.Downgrade[0].FactID != "def-456" {
		t.Errorf("downgrade actions = %+v", actions.Downgrade)
	}
}

func TestCorrelate_ClassifierFailureDegradesToEmpty(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteError = errors.New("upstream 500")

	svc, _, _ := newTestCrossSignal(mock)
	cands, actions := svc.Correlate(context.Background(), insightSignals(), time.Now())
	if len(cands) != 0 || len(actions.Reinforce)+len(actions.Downgrade) != 0 {
		t.Errorf("failure path returned results: %+v %+v", cands, actions)
	}
}

func TestCorrelate_UnparsableResponseDegradesToEmpty(t *testing.T) {
	mock := llm.NewMockClient()
	mock.CompleteResponse = "Sorry, I cannot help with that."

	svc, _, _ := newTestCrossSignal(mock)
	cands, _ := svc.Correlate(context.Background(), insightSignals(), time.Now())
	if len(cands) != 0 {
		t.Errorf("prose response produced candidates: %+v", cands)
	}
}

func TestCorrelate_NilClientOrNoSignals(t *testing.T) {
	svc, _, _ := newTestCrossSignal(nil)
	if cands, _ := svc.Correlate(context.Background(), insightSignals(), time.Now()); len(cands) != 0 {
		t.Errorf("nil client produced candidates: %+v", cands)
	}

	mock := llm.NewMockClient()
	svc, _, _ = newTestCrossSignal(mock)
	svc.Correlate(context.Background(), nil, time.Now())
	if len(mock.CompleteCalls) != 0 {
		t.Error("classifier called with no signals")
	}
}

func TestCorrelate_RateLimited(t *testing.T) {
	mock := llm.NewMockClient()
	svc, _, _ := newTestCrossSignal(mock)
	svc.SetLimiter(rate.NewLimiter(rate.Every(time.Hour), 1))

	svc.Correlate(context.Background(), insightSignals(), time.Now())
	svc.Correlate(context.Background(), insightSignals(), time.Now())
	if len(mock.CompleteCalls) != 1 {
		t.Errorf("classifier called %d times, want 1 within the limit window", len(mock.CompleteCalls))
	}
}

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare object", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"surrounded by prose", `Here you go: {"a": {"b": 2}} hope that helps`, `{"a": {"b": 2}}`},
		{"braces inside strings", `{"a": "}{"}`, `{"a": "}{"}`},
		{"no object", "nothing here", ""},
		{"unbalanced", `{"a": 1`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractJSONObject(tt.in); got != tt.want {
				t.Errorf("extractJSONObject(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
