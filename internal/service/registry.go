package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"github.com/aretelabs/arete/internal/match"
	"github.com/aretelabs/arete/internal/store"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrCandidateNotFound = errors.New("candidate not found")

const (
	// DefaultCandidateTTL is how long a registered candidate stays
	// returnable before soft expiry.
	DefaultCandidateTTL = 24 * time.Hour
	// BlockMatchThreshold is the similarity above which a proposed content
	// is treated as a rephrasing of a rejected one.
	BlockMatchThreshold = 0.82
	// blockContainmentMinLen guards the containment check against short
	// strings that substring-match everything.
	blockContainmentMinLen = 12
)

type arenaEntry struct {
	cand      domain.Candidate
	expiresAt time.Time
}

// RegistryService tracks ephemeral proposed facts in an explicit arena
// keyed by candidate id, with an explicit expiry per entry. All staleness
// checks take an explicit now so behavior is deterministic under test.
type RegistryService struct {
	facts     *FactService
	docs      domain.DocumentStore
	namespace string
	ttl       time.Duration
	logger    *zap.Logger

	mu          sync.Mutex
	arena       map[uuid.UUID]arenaEntry
	arenaLoaded bool
	blocked     []domain.BlockedEntry
	blockLoaded bool
}

func NewRegistryService(facts *FactService, docs domain.DocumentStore, namespace string, logger *zap.Logger) *RegistryService {
	return &RegistryService{
		facts:     facts,
		docs:      docs,
		namespace: namespace,
		ttl:       DefaultCandidateTTL,
		logger:    logger,
		arena:     make(map[uuid.UUID]arenaEntry),
	}
}

func (s *RegistryService) SetTTL(ttl time.Duration) {
	if ttl > 0 {
		s.ttl = ttl
	}
}

// ensureLoaded lazily materializes the arena and block list from their
// documents. Unreadable documents recover to empty, matching fact reads.
func (s *RegistryService) ensureLoaded(ctx context.Context) {
	if !s.arenaLoaded {
		s.arenaLoaded = true
		var doc domain.CandidateDocument
		if raw, err := s.docs.Read(ctx, s.namespace, domain.DocCandidates); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("candidate document unreadable, starting empty", zap.Error(err))
			}
		} else if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Warn("candidate document corrupt, starting empty", zap.Error(err))
		} else {
			for _, e := range doc.Entries {
				s.arena[e.ID] = arenaEntry{cand: e.Candidate, expiresAt: e.ExpiresAt}
			}
		}
	}
	if !s.blockLoaded {
		s.blockLoaded = true
		var doc domain.BlockDocument
		if raw, err := s.docs.Read(ctx, s.namespace, domain.DocBlocklist); err != nil {
			if !errors.Is(err, store.ErrNotFound) {
				s.logger.Warn("block document unreadable, starting empty", zap.Error(err))
			}
		} else if err := json.Unmarshal(raw, &doc); err != nil {
			s.logger.Warn("block document corrupt, starting empty", zap.Error(err))
		} else {
			s.blocked = doc.Entries
		}
	}
}

func (s *RegistryService) flushArena(ctx context.Context) error {
	doc := domain.CandidateDocument{Entries: make([]domain.RegisteredCandidate, 0, len(s.arena))}
	for _, e := range s.arena {
		doc.Entries = append(doc.Entries, domain.RegisteredCandidate{Candidate: e.cand, ExpiresAt: e.expiresAt})
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal candidate document: %w", err)
	}
	if err := s.docs.Replace(ctx, s.namespace, domain.DocCandidates, raw); err != nil {
		return fmt.Errorf("persist candidate document: %w", err)
	}
	return nil
}

func (s *RegistryService) flushBlocklist(ctx context.Context) error {
	raw, err := json.Marshal(domain.BlockDocument{Entries: s.blocked})
	if err != nil {
		return fmt.Errorf("marshal block document: %w", err)
	}
	if err := s.docs.Replace(ctx, s.namespace, domain.DocBlocklist, raw); err != nil {
		return fmt.Errorf("persist block document: %w", err)
	}
	return nil
}

// isBlockedLocked reports whether content (or the original candidate id)
// matches the block list, fuzzily as well as exactly. Over-suppression is
// preferred to resurfacing a rejected fact.
func (s *RegistryService) isBlockedLocked(content string, candidateID uuid.UUID) bool {
	key := match.Normalize(content)
	for _, b := range s.blocked {
		if candidateID != uuid.Nil && b.CandidateID == candidateID {
			return true
		}
		if b.ContentKey == key {
			return true
		}
		if match.Similarity(key, b.ContentKey) >= BlockMatchThreshold {
			return true
		}
		shorter, longer := key, b.ContentKey
		if len(shorter) > len(longer) {
			shorter, longer = longer, shorter
		}
		if len(shorter) >= blockContainmentMinLen && strings.Contains(longer, shorter) {
			return true
		}
	}
	return false
}

// BlockedContents returns the normalized contents of all block-list
// entries, for embedding into classifier prompts.
func (s *RegistryService) BlockedContents(ctx context.Context) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	out := make([]string, 0, len(s.blocked))
	for _, b := range s.blocked {
		out = append(out, b.ContentKey)
	}
	return out
}

// IsBlocked reports whether content matches the block list.
func (s *RegistryService) IsBlocked(ctx context.Context, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)
	return s.isBlockedLocked(content, uuid.Nil)
}

// Register filters and admits proposed candidates. A candidate is dropped
// when its normalized content matches the block list or an existing fact;
// one matching a registered candidate replaces it (latest wins). Returns
// the admitted subset in input order.
func (s *RegistryService) Register(ctx context.Context, cands []domain.Candidate, now time.Time) ([]domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	factKeys := make(map[string]bool)
	for _, f := range s.facts.List(ctx) {
		factKeys[match.Normalize(f.Content)] = true
	}

	var accepted []domain.Candidate
	for _, c := range cands {
		key := match.Normalize(c.Content)
		if key == "" {
			continue
		}
		if s.isBlockedLocked(c.Content, c.ID) {
			s.logger.Debug("candidate suppressed by block list", zap.String("content", c.Content))
			continue
		}
		if factKeys[key] {
			s.logger.Debug("candidate matches existing fact, skipped", zap.String("content", c.Content))
			continue
		}

		// Latest wins over a previously registered candidate with the same
		// normalized content.
		for id, e := range s.arena {
			if match.Normalize(e.cand.Content) == key {
				delete(s.arena, id)
			}
		}

		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		if c.CreatedAt.IsZero() {
			c.CreatedAt = now
		}
		c.Confidence = clamp01(c.Confidence)
		s.arena[c.ID] = arenaEntry{cand: c, expiresAt: now.Add(s.ttl)}
		accepted = append(accepted, c)
	}

	if len(accepted) > 0 {
		if err := s.flushArena(ctx); err != nil {
			return nil, err
		}
	}
	return accepted, nil
}

// ListAll returns registered candidates that have not passed their expiry.
// Expired entries are filtered, not deleted, so a slightly-late accept
// still resolves. Candidates whose normalized content now matches an
// existing fact are filtered too: a fact can appear after registration
// (e.g. a manual remember of the same content), and a candidate never
// surfaces alongside an equivalent fact.
func (s *RegistryService) ListAll(ctx context.Context, now time.Time) []domain.Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	factKeys := make(map[string]bool)
	for _, f := range s.facts.List(ctx) {
		factKeys[match.Normalize(f.Content)] = true
	}

	var out []domain.Candidate
	for _, e := range s.arena {
		if now.After(e.expiresAt) {
			continue
		}
		if factKeys[match.Normalize(e.cand.Content)] {
			continue
		}
		out = append(out, e.cand)
	}
	return out
}

// Get returns a candidate by id, including soft-expired entries.
func (s *RegistryService) Get(ctx context.Context, id uuid.UUID) (*domain.Candidate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	e, ok := s.arena[id]
	if !ok {
		return nil, ErrCandidateNotFound
	}
	cand := e.cand
	return &cand, nil
}

// RemoveByID drops a candidate from the arena without blocking it.
func (s *RegistryService) RemoveByID(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	if _, ok := s.arena[id]; !ok {
		return ErrCandidateNotFound
	}
	delete(s.arena, id)
	return s.flushArena(ctx)
}

// findLocked resolves a candidate by id string or normalized content.
func (s *RegistryService) findLocked(idOrContent string) (arenaEntry, bool) {
	if parsed, err := uuid.Parse(idOrContent); err == nil {
		if e, ok := s.arena[parsed]; ok {
			return e, true
		}
	}
	key := match.Normalize(idOrContent)
	for _, e := range s.arena {
		if match.Normalize(e.cand.Content) == key {
			return e, true
		}
	}
	return arenaEntry{}, false
}

// AcceptResult reports the outcome of promoting a candidate.
type AcceptResult struct {
	Fact          *domain.Fact   `json:"fact,omitempty"`
	AlreadyExists bool           `json:"already_exists"`
	Events        []domain.Event `json:"-"`
}

// Accept promotes a candidate into a fact with a fresh identity. The fact
// insertion and candidate removal are applied as one unit: the candidate
// leaves the arena only after the fact document write succeeds. When a fact
// with equivalent content already exists the accept is a successful no-op.
func (s *RegistryService) Accept(ctx context.Context, idOrContent string) (*AcceptResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	e, ok := s.findLocked(idOrContent)
	if !ok {
		return nil, ErrCandidateNotFound
	}

	key := match.Normalize(e.cand.Content)
	for _, f := range s.facts.List(ctx) {
		if match.Normalize(f.Content) == key {
			existing := f
			delete(s.arena, e.cand.ID)
			if err := s.flushArena(ctx); err != nil {
				return nil, err
			}
			return &AcceptResult{Fact: &existing, AlreadyExists: true}, nil
		}
	}

	now := s.facts.now()
	fact := domain.Fact{
		ID:              uuid.New(),
		Category:        e.cand.Category,
		Content:         e.cand.Content,
		Confidence:      clamp01(e.cand.Confidence),
		LastValidated:   now,
		ValidationCount: 0,
		Maturity:        domain.MaturityCandidate,
		Visibility:      domain.VisibilityTrusted,
		Source:          domain.SourceInferred,
		SourceRef:       e.cand.SourceRef,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// Two documents, two writes: the fact write commits first. If the arena
	// flush then fails, the fact is durable, the caller sees the error, and
	// the stale persisted candidate resolves on retry via the already-exists
	// path above (which removes it).
	doc := s.facts.loadDocument(ctx)
	doc.Facts = append(doc.Facts, fact)
	if err := s.facts.saveDocument(ctx, doc); err != nil {
		return nil, err
	}

	delete(s.arena, e.cand.ID)
	if err := s.flushArena(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("candidate accepted",
		zap.String("candidate_id", e.cand.ID.String()),
		zap.String("fact_id", fact.ID.String()))

	return &AcceptResult{
		Fact:   &fact,
		Events: []domain.Event{{Type: domain.EventCandidateAccepted, FactID: fact.ID, Detail: fact.Content}},
	}, nil
}

// RejectResult reports the outcome of rejecting a candidate.
type RejectResult struct {
	Blocked domain.BlockedEntry `json:"blocked"`
	Events  []domain.Event      `json:"-"`
}

// Reject converts a candidate into a block-list entry so neither it nor a
// close rephrasing resurfaces from future inference.
func (s *RegistryService) Reject(ctx context.Context, idOrContent, reason string) (*RejectResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensureLoaded(ctx)

	e, ok := s.findLocked(idOrContent)
	if !ok {
		return nil, ErrCandidateNotFound
	}

	entry := domain.BlockedEntry{
		CandidateID: e.cand.ID,
		ContentKey:  match.Normalize(e.cand.Content),
		Reason:      reason,
		BlockedAt:   s.facts.now(),
	}
	s.blocked = append(s.blocked, entry)
	if err := s.flushBlocklist(ctx); err != nil {
		return nil, err
	}

	delete(s.arena, e.cand.ID)
	if err := s.flushArena(ctx); err != nil {
		return nil, err
	}

	s.logger.Info("candidate rejected",
		zap.String("candidate_id", e.cand.ID.String()),
		zap.String("reason", reason))

	return &RejectResult{
		Blocked: entry,
		Events:  []domain.Event{{Type: domain.EventCandidateRejected, Detail: e.cand.Content}},
	}, nil
}
