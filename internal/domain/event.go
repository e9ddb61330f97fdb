package domain

import "github.com/google/uuid"

type EventType string

const (
	EventFactCreated       EventType = "fact.created"
	EventFactValidated     EventType = "fact.validated"
	EventFactRemoved       EventType = "fact.removed"
	EventFactArchived      EventType = "fact.archived"
	EventCandidateAccepted EventType = "candidate.accepted"
	EventCandidateRejected EventType = "candidate.rejected"
)

// Event is a post-commit side effect. Services collect events on successful
// mutations and the calling layer dispatches them after the operation
// returns, keeping the core free of fire-and-forget I/O.
type Event struct {
	Type   EventType `json:"type"`
	FactID uuid.UUID `json:"fact_id,omitempty"`
	Detail string    `json:"detail,omitempty"`
}
