package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/aretelabs/arete/internal/service"
	"go.uber.org/zap"
)

type ProjectHandler struct {
	projection *service.ProjectionService
	logger     *zap.Logger
}

func NewProjectHandler(projection *service.ProjectionService, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{projection: projection, logger: logger}
}

type projectRequest struct {
	Task          string  `json:"task,omitempty"`
	MaxFacts      int     `json:"max_facts,omitempty"`
	MinConfidence float64 `json:"min_confidence,omitempty"`
}

type projectResponse struct {
	Facts       []service.RankedFact `json:"facts"`
	TotalFacts  int                  `json:"total_facts"`
	FilteredOut int                  `json:"filtered_out"`
	Summary     string               `json:"summary"`
}

// Project returns the ranked facts most worth loading into working context
// for the caller's current task.
func (h *ProjectHandler) Project(w http.ResponseWriter, r *http.Request) {
	var req projectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.projection.Project(r.Context(), req.Task, req.MaxFacts, req.MinConfidence)

	facts := result.Facts
	if facts == nil {
		facts = []service.RankedFact{}
	}

	summary := fmt.Sprintf("%d of %d fact(s) selected", len(facts), result.TotalFacts)
	if req.Task != "" {
		summary += fmt.Sprintf(" for task %q", req.Task)
	}
	if result.FilteredOut > 0 {
		summary += fmt.Sprintf(" (%d below confidence floor)", result.FilteredOut)
	}

	writeJSON(w, http.StatusOK, projectResponse{
		Facts:       facts,
		TotalFacts:  result.TotalFacts,
		FilteredOut: result.FilteredOut,
		Summary:     summary,
	})
}
