package domain

import "time"

type SignalType string

const (
	SignalVisit        SignalType = "visit"
	SignalInsight      SignalType = "insight"
	SignalConversation SignalType = "conversation"
	SignalFile         SignalType = "file"
	SignalSelection    SignalType = "selection"
)

// Signal is a low-level behavioral event observed by the calling agent.
type Signal struct {
	Type      SignalType `json:"type"`
	Source    string     `json:"source"`
	Timestamp time.Time  `json:"timestamp"`
	Payload   string     `json:"payload,omitempty"`
}
