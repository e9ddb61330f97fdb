package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/service"
	"go.uber.org/zap"
)

type RememberHandler struct {
	facts  *service.FactService
	logger *zap.Logger
}

func NewRememberHandler(facts *service.FactService, logger *zap.Logger) *RememberHandler {
	return &RememberHandler{facts: facts, logger: logger}
}

type rememberRequest struct {
	Content    string   `json:"content"`
	Category   string   `json:"category,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	SourceRef  string   `json:"source_ref,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
	Operation  string   `json:"operation,omitempty"` // add (default), validate, remove
	ID         string   `json:"id,omitempty"`
}

type rememberResponse struct {
	Fact          *domain.Fact `json:"fact,omitempty"`
	AlreadyExists bool         `json:"already_exists,omitempty"`
	Removed       bool         `json:"removed,omitempty"`
	Summary       string       `json:"summary"`
}

func (h *RememberHandler) Remember(w http.ResponseWriter, r *http.Request) {
	var req rememberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Operation {
	case "", "add":
		h.add(w, r, req)
	case "validate":
		h.validate(w, r, req)
	case "remove":
		h.remove(w, r, req)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown operation: %s (valid: add, validate, remove)", req.Operation))
	}
}

func (h *RememberHandler) add(w http.ResponseWriter, r *http.Request, req rememberRequest) {
	fact, alreadyExists, events, err := h.facts.Remember(r.Context(), service.CreateFactInput{
		Content:    req.Content,
		Category:   domain.Category(req.Category),
		Visibility: domain.Visibility(req.Visibility),
		Source:     domain.SourceManual,
		SourceRef:  req.SourceRef,
		Confidence: req.Confidence,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFactContentEmpty),
			errors.Is(err, service.ErrInvalidCategory),
			errors.Is(err, service.ErrInvalidVisibility):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to store fact")
		}
		return
	}

	dispatchEvents(h.logger, events)

	summary := fmt.Sprintf("Remembered: %s", fact.Content)
	if alreadyExists {
		summary = fmt.Sprintf("Already known, validated instead: %s", fact.Content)
	}
	writeJSON(w, http.StatusCreated, rememberResponse{Fact: fact, AlreadyExists: alreadyExists, Summary: summary})
}

func (h *RememberHandler) validate(w http.ResponseWriter, r *http.Request, req rememberRequest) {
	found, _, err := h.facts.Find(r.Context(), req.ID, req.Content, 0)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	fact, events, err := h.facts.Validate(r.Context(), found.ID)
	if err != nil {
		if errors.Is(err, service.ErrFactNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to validate fact")
		return
	}

	dispatchEvents(h.logger, events)
	writeJSON(w, http.StatusOK, rememberResponse{
		Fact:    fact,
		Summary: fmt.Sprintf("Validated (%d confirmations, %s): %s", fact.ValidationCount, fact.Maturity, fact.Content),
	})
}

func (h *RememberHandler) remove(w http.ResponseWriter, r *http.Request, req rememberRequest) {
	found, _, err := h.facts.Find(r.Context(), req.ID, req.Content, 0)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	events, err := h.facts.Remove(r.Context(), found.ID)
	if err != nil {
		if errors.Is(err, service.ErrFactNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to remove fact")
		return
	}

	dispatchEvents(h.logger, events)
	writeJSON(w, http.StatusOK, rememberResponse{
		Removed: true,
		Summary: fmt.Sprintf("Forgot: %s", found.Content),
	})
}
