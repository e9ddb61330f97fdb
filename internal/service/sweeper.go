package service

import (
	"context"
	"sync"
	"time"

	"github.com/aretelabs/arete/internal/domain"
	"go.uber.org/zap"
)

const (
	// DefaultArchiveThreshold is the effective confidence below which a
	// fact leaves the active set.
	DefaultArchiveThreshold = 0.1

	defaultSweepInterval = 24 * time.Hour
)

// SweepResult reports a sweep outcome.
type SweepResult struct {
	ArchivedCount  int            `json:"archived_count"`
	RemainingCount int            `json:"remaining_count"`
	Events         []domain.Event `json:"-"`
}

// SweeperService moves decayed facts into timestamped archive batches.
// Nothing is discarded outright; archived content stays recoverable.
type SweeperService struct {
	facts  *FactService
	logger *zap.Logger

	threshold float64
	interval  time.Duration
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func NewSweeperService(facts *FactService, logger *zap.Logger) *SweeperService {
	return &SweeperService{
		facts:     facts,
		logger:    logger,
		threshold: DefaultArchiveThreshold,
		interval:  defaultSweepInterval,
		stopCh:    make(chan struct{}),
	}
}

func (s *SweeperService) SetThreshold(threshold float64) {
	if threshold > 0 {
		s.threshold = threshold
	}
}

func (s *SweeperService) SetInterval(d time.Duration) {
	if d > 0 {
		s.interval = d
	}
}

// Sweep archives every active fact whose effective confidence has decayed
// below threshold. A non-positive threshold uses the configured default.
func (s *SweeperService) Sweep(ctx context.Context, threshold float64) (*SweepResult, error) {
	if threshold <= 0 {
		threshold = s.threshold
	}

	doc := s.facts.loadDocument(ctx)
	now := s.facts.now()

	var kept, archived []domain.Fact
	for _, f := range doc.Facts {
		if EffectiveConfidenceAt(&f, s.facts.halfLifeDays, now) < threshold {
			archived = append(archived, f)
		} else {
			kept = append(kept, f)
		}
	}

	result := &SweepResult{ArchivedCount: len(archived), RemainingCount: len(kept)}
	if len(archived) == 0 {
		return result, nil
	}

	doc.Facts = kept
	doc.Archives = append(doc.Archives, domain.ArchiveBatch{
		ArchivedAt: now,
		Threshold:  threshold,
		Facts:      archived,
	})
	if err := s.facts.saveDocument(ctx, doc); err != nil {
		return nil, err
	}

	for _, f := range archived {
		result.Events = append(result.Events, domain.Event{Type: domain.EventFactArchived, FactID: f.ID, Detail: f.Content})
	}

	s.logger.Info("sweep complete",
		zap.Float64("threshold", threshold),
		zap.Int("archived", result.ArchivedCount),
		zap.Int("remaining", result.RemainingCount))

	return result, nil
}

// Start runs periodic sweeps until Stop is called.
func (s *SweeperService) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("sweep worker started", zap.Duration("interval", s.interval))

		for {
			select {
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
				if _, err := s.Sweep(ctx, 0); err != nil {
					s.logger.Error("periodic sweep failed", zap.Error(err))
				}
				cancel()
			case <-s.stopCh:
				s.logger.Info("sweep worker stopped")
				return
			}
		}
	}()
}

func (s *SweeperService) Stop() {
	close(s.stopCh)
	s.wg.Wait()
}
