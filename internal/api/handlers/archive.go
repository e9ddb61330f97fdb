package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/aretelabs/arete/internal/service"
	"go.uber.org/zap"
)

type ArchiveHandler struct {
	sweeper *service.SweeperService
	logger  *zap.Logger
}

func NewArchiveHandler(sweeper *service.SweeperService, logger *zap.Logger) *ArchiveHandler {
	return &ArchiveHandler{sweeper: sweeper, logger: logger}
}

type archiveRequest struct {
	Threshold float64 `json:"threshold,omitempty"`
}

type archiveResponse struct {
	ArchivedCount  int    `json:"archived_count"`
	RemainingCount int    `json:"remaining_count"`
	Summary        string `json:"summary"`
}

// Archive triggers an on-demand sweep. An empty body sweeps at the
// configured threshold.
func (h *ArchiveHandler) Archive(w http.ResponseWriter, r *http.Request) {
	var req archiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.sweeper.Sweep(r.Context(), req.Threshold)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "sweep failed")
		return
	}

	dispatchEvents(h.logger, result.Events)
	writeJSON(w, http.StatusOK, archiveResponse{
		ArchivedCount:  result.ArchivedCount,
		RemainingCount: result.RemainingCount,
		Summary:        fmt.Sprintf("Archived %d fact(s), %d remain active", result.ArchivedCount, result.RemainingCount),
	})
}
