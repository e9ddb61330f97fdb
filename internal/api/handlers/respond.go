package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// dispatchEvents emits post-commit events collected by a successful
// operation. The core never fires side effects inline; this layer does,
// after the mutation is durable.
func dispatchEvents(logger *zap.Logger, events []domain.Event) {
	for _, e := range events {
		fields := []zap.Field{zap.String("type", string(e.Type))}
		if e.FactID != uuid.Nil {
			fields = append(fields, zap.String("fact_id", e.FactID.String()))
		}
		if e.Detail != "" {
			fields = append(fields, zap.String("detail", e.Detail))
		}
		logger.Info("event", fields...)
	}
}
