package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/service"
	"go.uber.org/zap"
)

// DefaultLookbackDays bounds how far back submitted signals are considered.
const DefaultLookbackDays = 7

type InferHandler struct {
	patterns    *service.PatternService
	crossSignal *service.CrossSignalService
	registry    *service.RegistryService
	logger      *zap.Logger
}

func NewInferHandler(patterns *service.PatternService, crossSignal *service.CrossSignalService, registry *service.RegistryService, logger *zap.Logger) *InferHandler {
	return &InferHandler{patterns: patterns, crossSignal: crossSignal, registry: registry, logger: logger}
}

type rejectInput struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type inferRequest struct {
	LookbackDays int             `json:"lookback_days,omitempty"`
	Signals      []domain.Signal `json:"signals,omitempty"`
	Accept       []string        `json:"accept,omitempty"`
	Reject       []rejectInput   `json:"reject,omitempty"`
}

type acceptOutcome struct {
	ID            string       `json:"id"`
	Fact          *domain.Fact `json:"fact,omitempty"`
	AlreadyExists bool         `json:"already_exists,omitempty"`
	Error         string       `json:"error,omitempty"`
}

type rejectOutcome struct {
	ID    string `json:"id"`
	Error string `json:"error,omitempty"`
}

type inferResponse struct {
	Candidates []domain.Candidate       `json:"candidates"`
	Actions    service.InferenceActions `json:"actions"`
	Accepted   []acceptOutcome          `json:"accepted,omitempty"`
	Rejected   []rejectOutcome          `json:"rejected,omitempty"`
	Summary    string                   `json:"summary"`
}

// Infer runs one inference pass: the caller submits raw signals plus any
// verdicts on previously surfaced candidates, and gets back the current
// candidate set and advisory actions.
func (h *InferHandler) Infer(w http.ResponseWriter, r *http.Request) {
	var req inferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := time.Now()
	ctx := r.Context()

	var resp inferResponse

	// Verdicts first, so a rejection suppresses rephrasings from this very
	// pass's inference.
	for _, id := range req.Accept {
		outcome := acceptOutcome{ID: id}
		result, err := h.registry.Accept(ctx, id)
		if err != nil {
			if errors.Is(err, service.ErrCandidateNotFound) {
				outcome.Error = err.Error()
			} else {
				outcome.Error = "failed to accept candidate"
				h.logger.Error("candidate accept failed", zap.String("id", id), zap.Error(err))
			}
		} else {
			outcome.Fact = result.Fact
			outcome.AlreadyExists = result.AlreadyExists
			dispatchEvents(h.logger, result.Events)
		}
		resp.Accepted = append(resp.Accepted, outcome)
	}
	for _, rej := range req.Reject {
		outcome := rejectOutcome{ID: rej.ID}
		result, err := h.registry.Reject(ctx, rej.ID, rej.Reason)
		if err != nil {
			if errors.Is(err, service.ErrCandidateNotFound) {
				outcome.Error = err.Error()
			} else {
				outcome.Error = "failed to reject candidate"
				h.logger.Error("candidate reject failed", zap.String("id", rej.ID), zap.Error(err))
			}
		} else {
			dispatchEvents(h.logger, result.Events)
		}
		resp.Rejected = append(resp.Rejected, outcome)
	}

	signals := filterByLookback(req.Signals, req.LookbackDays, now)

	if len(signals) > 0 {
		if _, err := h.patterns.Analyze(ctx, signals, now); err != nil {
			writeError(w, http.StatusInternalServerError, "failed to register pattern candidates")
			return
		}
		_, resp.Actions = h.crossSignal.Correlate(ctx, signals, now)
	}

	resp.Candidates = h.registry.ListAll(ctx, now)
	if resp.Candidates == nil {
		resp.Candidates = []domain.Candidate{}
	}

	resp.Summary = fmt.Sprintf("%d candidate(s) pending review", len(resp.Candidates))
	if n := len(resp.Actions.Reinforce) + len(resp.Actions.Downgrade); n > 0 {
		resp.Summary += fmt.Sprintf(", %d suggested action(s) on existing facts", n)
	}

	writeJSON(w, http.StatusOK, resp)
}

// filterByLookback drops signals older than the lookback window. Signals
// without a timestamp are assumed current and kept.
func filterByLookback(signals []domain.Signal, lookbackDays int, now time.Time) []domain.Signal {
	if lookbackDays <= 0 {
		lookbackDays = DefaultLookbackDays
	}
	cutoff := now.AddDate(0, 0, -lookbackDays)

	kept := make([]domain.Signal, 0, len(signals))
	for _, s := range signals {
		if !s.Timestamp.IsZero() && s.Timestamp.Before(cutoff) {
			continue
		}
		kept = append(kept, s)
	}
	return kept
}
