package handlers

import (
	"fmt"
	"net/http"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/service"
	"go.uber.org/zap"
)

type FactsHandler struct {
	facts  *service.FactService
	logger *zap.Logger
}

func NewFactsHandler(facts *service.FactService, logger *zap.Logger) *FactsHandler {
	return &FactsHandler{facts: facts, logger: logger}
}

type factView struct {
	domain.Fact
	EffectiveConfidence float64 `json:"effective_confidence"`
}

type listFactsResponse struct {
	Facts   []factView `json:"facts"`
	Total   int        `json:"total"`
	Summary string     `json:"summary"`
}

// List returns active facts with their decayed confidence. The visibility
// query parameter sets the maximum privacy tier to expose; it defaults to
// local, the widest tier, since the server itself is the local surface.
func (h *FactsHandler) List(w http.ResponseWriter, r *http.Request) {
	visibility := domain.VisibilityLocal
	if v := r.URL.Query().Get("visibility"); v != "" {
		if !domain.ValidVisibility(v) {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid visibility: %s", v))
			return
		}
		visibility = domain.Visibility(v)
	}

	category := r.URL.Query().Get("category")
	if category != "" && !domain.ValidCategory(category) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid category: %s", category))
		return
	}

	all := h.facts.List(r.Context())
	total := len(all)

	visible := service.FilterByVisibility(all, visibility)
	views := make([]factView, 0, len(visible))
	for i := range visible {
		f := visible[i]
		if category != "" && f.Category != domain.Category(category) {
			continue
		}
		views = append(views, factView{Fact: f, EffectiveConfidence: h.facts.EffectiveConfidence(&f)})
	}

	writeJSON(w, http.StatusOK, listFactsResponse{
		Facts:   views,
		Total:   total,
		Summary: fmt.Sprintf("%d of %d fact(s) visible at tier %s", len(views), total, visibility),
	})
}
