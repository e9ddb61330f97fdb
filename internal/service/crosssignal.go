package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/llm"
	"github.com/aretelabs/arete/internal/match"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultClassifierTimeout bounds a single external classifier call.
// Expiry is treated the same as a classifier failure.
const DefaultClassifierTimeout = 30 * time.Second

// InferenceActions are the advisory reinforce/downgrade suggestions
// surfaced to the caller once per inference pass.
type InferenceActions struct {
	Reinforce []domain.ReinforceAction `json:"reinforce,omitempty"`
	Downgrade []domain.DowngradeAction `json:"downgrade,omitempty"`
}

// CrossSignalService correlates heterogeneous signals into candidates plus
// reinforce/downgrade suggestions by delegating to the external classifier.
// Every failure on this path degrades to an empty result; the caller falls
// back to pattern-derived candidates alone.
type CrossSignalService struct {
	registry *RegistryService
	facts    *FactService
	client   domain.ClassifierClient
	limiter  *rate.Limiter
	timeout  time.Duration
	logger   *zap.Logger
}

func NewCrossSignalService(registry *RegistryService, facts *FactService, client domain.ClassifierClient, logger *zap.Logger) *CrossSignalService {
	return &CrossSignalService{
		registry: registry,
		facts:    facts,
		client:   client,
		limiter:  rate.NewLimiter(rate.Every(2*time.Second), 3),
		timeout:  DefaultClassifierTimeout,
		logger:   logger,
	}
}

func (s *CrossSignalService) SetTimeout(d time.Duration) {
	if d > 0 {
		s.timeout = d
	}
}

func (s *CrossSignalService) SetLimiter(l *rate.Limiter) {
	if l != nil {
		s.limiter = l
	}
}

type correlateCandidate struct {
	Content    string   `json:"content"`
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Signals    []string `json:"signals"`
	Reasoning  string   `json:"reasoning"`
}

type correlateAction struct {
	FactID string `json:"factId"`
	Reason string `json:"reason"`
}

type correlateResponse struct {
	Candidates []correlateCandidate `json:"candidates"`
	Reinforce  []correlateAction    `json:"reinforce"`
	Downgrade  []correlateAction    `json:"downgrade"`
}

// Correlate aggregates the given signals into a context bundle, asks the
// classifier to correlate them, validates the untrusted response, and
// registers the surviving candidates. Never returns an error: transport and
// parse failures are logged and yield empty results.
func (s *CrossSignalService) Correlate(ctx context.Context, signals []domain.Signal, now time.Time) ([]domain.Candidate, InferenceActions) {
	var actions InferenceActions

	if s.client == nil || len(signals) == 0 {
		return nil, actions
	}
	if !s.limiter.Allow() {
		s.logger.Debug("classifier call rate limited, skipping correlation pass")
		return nil, actions
	}

	facts := s.facts.List(ctx)
	factContents := make([]string, 0, len(facts))
	factKeys := make(map[string]bool, len(facts))
	for _, f := range facts {
		factContents = append(factContents, fmt.Sprintf("[%s] %s (%s)", f.ID, f.Content, f.Category))
		factKeys[match.Normalize(f.Content)] = true
	}

	// The registry keeps the authoritative block list; feeding it into the
	// prompt reduces wasted proposals, and Register re-checks regardless.
	blockedContents := s.registry.BlockedContents(ctx)

	prompt := llm.CorrelatePromptFor(buildSignalBundle(signals), factContents, blockedContents)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.client.Complete(callCtx, prompt, 2048)
	if err != nil {
		s.logger.Warn("classifier correlation failed, falling back to pattern candidates", zap.Error(err))
		return nil, actions
	}

	obj := extractJSONObject(raw)
	if obj == "" {
		s.logger.Warn("classifier response contained no JSON object")
		return nil, actions
	}
	var resp correlateResponse
	if err := json.Unmarshal([]byte(obj), &resp); err != nil {
		s.logger.Warn("classifier response unparsable", zap.Error(err))
		return nil, actions
	}

	var cands []domain.Candidate
	for _, rc := range resp.Candidates {
		content := strings.TrimSpace(rc.Content)
		if content == "" || !domain.ValidCategory(rc.Category) {
			continue
		}
		if factKeys[match.Normalize(content)] {
			continue
		}
		cands = append(cands, domain.Candidate{
			ID:         uuid.New(),
			Category:   domain.Category(rc.Category),
			Content:    content,
			Confidence: clamp01(rc.Confidence),
			SourceRef:  "classifier",
			Signals:    rc.Signals,
			CreatedAt:  now,
		})
	}

	for _, ra := range resp.Reinforce {
		if strings.TrimSpace(ra.FactID) == "" {
			continue
		}
		actions.Reinforce = append(actions.Reinforce, domain.ReinforceAction{FactID: ra.FactID, Reason: ra.Reason})
	}
	for _, da := range resp.Downgrade {
		if strings.TrimSpace(da.FactID) == "" {
			continue
		}
		actions.Downgrade = append(actions.Downgrade, domain.DowngradeAction{FactID: da.FactID, Reason: da.Reason})
	}

	registered, err := s.registry.Register(ctx, cands, now)
	if err != nil {
		s.logger.Warn("failed to register classifier candidates", zap.Error(err))
		return nil, actions
	}
	return registered, actions
}

// buildSignalBundle renders heterogeneous signals into the structured text
// block embedded in the correlation prompt.
func buildSignalBundle(signals []domain.Signal) string {
	sections := map[domain.SignalType][]string{}
	var order []domain.SignalType
	for _, sig := range signals {
		if _, ok := sections[sig.Type]; !ok {
			order = append(order, sig.Type)
		}
		line := sig.Source
		if sig.Payload != "" {
			line += ": " + sig.Payload
		}
		sections[sig.Type] = append(sections[sig.Type], line)
	}

	var b strings.Builder
	for _, t := range order {
		fmt.Fprintf(&b, "## %s\n", t)
		for _, line := range sections[t] {
			b.WriteString("- ")
			b.WriteString(line)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// extractJSONObject pulls the first balanced JSON object out of free text
// that may wrap it in code fences or commentary.
func extractJSONObject(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)

	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
