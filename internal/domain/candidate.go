package domain

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is an ephemeral proposed fact awaiting accept or reject. It is
// owned by the registry and never coexists with a fact of equivalent
// normalized content.
type Candidate struct {
	ID         uuid.UUID `json:"id"`
	Category   Category  `json:"category"`
	Content    string    `json:"content"`
	Confidence float64   `json:"confidence"`
	SourceRef  string    `json:"source_ref,omitempty"`
	Signals    []string  `json:"signals,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RegisteredCandidate is the persisted form of a registry arena entry. The
// expiry is stored explicitly so staleness checks stay deterministic.
type RegisteredCandidate struct {
	Candidate
	ExpiresAt time.Time `json:"expires_at"`
}

// CandidateDocument is the persisted registry arena.
type CandidateDocument struct {
	Entries []RegisteredCandidate `json:"entries"`
}

// BlockedEntry records a rejected candidate. Future candidate generation
// must exclude anything matching it, fuzzily as well as exactly.
type BlockedEntry struct {
	CandidateID uuid.UUID `json:"candidate_id,omitempty"`
	ContentKey  string    `json:"content_key"`
	Reason      string    `json:"reason,omitempty"`
	BlockedAt   time.Time `json:"blocked_at"`
}

// BlockDocument is the persisted block list.
type BlockDocument struct {
	Entries []BlockedEntry `json:"entries"`
}

// ReinforceAction suggests an existing fact is well supported by recent
// signals. Advisory only; it never mutates the fact directly.
type ReinforceAction struct {
	FactID string `json:"fact_id"`
	Reason string `json:"reason,omitempty"`
}

// DowngradeAction suggests an existing fact is poorly supported by recent
// signals. Advisory only.
type DowngradeAction struct {
	FactID string `json:"fact_id"`
	Reason string `json:"reason,omitempty"`
}
