package domain

import (
	"time"

	"github.com/google/uuid"
)

type Category string

const (
	CategoryCore       Category = "core"
	CategoryExpertise  Category = "expertise"
	CategoryPreference Category = "preference"
	CategoryContext    Category = "context"
	CategoryFocus      Category = "focus"
)

func ValidCategory(c string) bool {
	switch Category(c) {
	case CategoryCore, CategoryExpertise, CategoryPreference, CategoryContext, CategoryFocus:
		return true
	}
	return false
}

type Maturity string

const (
	MaturityCandidate   Maturity = "candidate"
	MaturityEstablished Maturity = "established"
	MaturityProven      Maturity = "proven"
)

const (
	// EstablishedValidationCount is the validation count at which a fact
	// becomes established.
	EstablishedValidationCount = 2
	// ProvenValidationCount is the validation count at which a fact
	// becomes proven.
	ProvenValidationCount = 5
)

// MaturityForCount computes the maturity tier implied by a validation count.
func MaturityForCount(validationCount int) Maturity {
	switch {
	case validationCount >= ProvenValidationCount:
		return MaturityProven
	case validationCount >= EstablishedValidationCount:
		return MaturityEstablished
	default:
		return MaturityCandidate
	}
}

func (m Maturity) rank() int {
	switch m {
	case MaturityProven:
		return 2
	case MaturityEstablished:
		return 1
	default:
		return 0
	}
}

// MaxMaturity returns the higher of two maturity tiers. Maturity only moves
// forward under validation, never back.
func MaxMaturity(a, b Maturity) Maturity {
	if b.rank() > a.rank() {
		return b
	}
	return a
}

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityTrusted Visibility = "trusted"
	VisibilityLocal   Visibility = "local"
)

func ValidVisibility(v string) bool {
	switch Visibility(v) {
	case VisibilityPublic, VisibilityTrusted, VisibilityLocal:
		return true
	}
	return false
}

// Tier returns the ordered privacy tier: public(0) < trusted(1) < local(2).
// A missing visibility defaults to trusted.
func (v Visibility) Tier() int {
	switch v {
	case VisibilityPublic:
		return 0
	case VisibilityLocal:
		return 2
	default:
		return 1
	}
}

type Source string

const (
	SourceManual       Source = "manual"
	SourceInferred     Source = "inferred"
	SourceConversation Source = "conversation"
	SourceImported     Source = "imported"
)

func ValidSource(s string) bool {
	switch Source(s) {
	case SourceManual, SourceInferred, SourceConversation, SourceImported:
		return true
	}
	return false
}

// InitialConfidence returns the default confidence for a newly created fact.
// Manual facts start fully trusted; everything else starts at 0.5.
func (s Source) InitialConfidence() float64 {
	if s == SourceManual {
		return 1.0
	}
	return 0.5
}

// InitialMaturity returns the default maturity for a newly created fact.
func (s Source) InitialMaturity() Maturity {
	if s == SourceManual {
		return MaturityEstablished
	}
	return MaturityCandidate
}

// InitialValidationCount returns the default validation count for a newly
// created fact. Creating a fact manually counts as its first validation.
func (s Source) InitialValidationCount() int {
	if s == SourceManual {
		return 1
	}
	return 0
}

// Fact is a durable claim about the user with confidence and provenance.
type Fact struct {
	ID              uuid.UUID  `json:"id"`
	Category        Category   `json:"category"`
	Content         string     `json:"content"`
	Confidence      float64    `json:"confidence"`
	LastValidated   time.Time  `json:"last_validated"`
	ValidationCount int        `json:"validation_count"`
	Maturity        Maturity   `json:"maturity"`
	Visibility      Visibility `json:"visibility"`
	Source          Source     `json:"source"`
	SourceRef       string     `json:"source_ref,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ArchiveBatch is a timestamped set of facts moved out of the active store
// by a sweep. Content is preserved so archival stays reversible.
type ArchiveBatch struct {
	ArchivedAt time.Time `json:"archived_at"`
	Threshold  float64   `json:"threshold"`
	Facts      []Fact    `json:"facts"`
}

// FactDocument is the persisted form of the active fact store plus its
// archive history, written back as one whole document.
type FactDocument struct {
	Facts    []Fact         `json:"facts"`
	Archives []ArchiveBatch `json:"archives,omitempty"`
}
