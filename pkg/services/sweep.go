package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/database"
	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
)

// SweepResult summarizes one sweep.
type SweepResult struct {
	Scanned  int
	Enriched int
}

// EnrichmentSweeper finds current reviews still lacking tone or sentiment and
// runs them through the enrichment service outside the request path.
type EnrichmentSweeper struct {
	repo       repositories.ReviewRepository
	enrichment EnrichmentService
	getScope   database.ScopeFunc
	batch      int
	retryAfter time.Duration
	now        func() time.Time
	logger     *zap.Logger
}

func NewEnrichmentSweeper(
	repo repositories.ReviewRepository,
	enrichment EnrichmentService,
	getScope database.ScopeFunc,
	batch int,
	retryAfter time.Duration,
	logger *zap.Logger,
) *EnrichmentSweeper {
	if batch < 1 {
		batch = 50
	}
	return &EnrichmentSweeper{
		repo:       repo,
		enrichment: enrichment,
		getScope:   getScope,
		batch:      batch,
		retryAfter: retryAfter,
		now:        time.Now,
		logger:     logger.Named("enrichment-sweep"),
	}
}

// RunOnce enriches at most one batch of rows.
func (s *EnrichmentSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	rows, err := s.listCandidates(ctx)
	if err != nil {
		return SweepResult{}, err
	}
	if len(rows) == 0 {
		return SweepResult{}, nil
	}

	result := SweepResult{Scanned: len(rows)}
	for _, row := range s.enrichment.EnrichMissing(ctx, rows) {
		if row.IsEnriched() {
			result.Enriched++
		}
	}

	s.logger.Info("Enrichment sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("enriched", result.Enriched))
	return result, nil
}

// listCandidates holds a connection only for the read; enrichment acquires its own.
func (s *EnrichmentSweeper) listCandidates(ctx context.Context) ([]*models.ReviewHistory, error) {
	scopedCtx, cleanup, err := s.getScope(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer cleanup()

	rows, err := s.repo.ListUnenriched(scopedCtx, models.UnenrichedFilter{
		CheckedBefore: s.now().Add(-s.retryAfter),
		Limit:         s.batch,
	})
	if err != nil {
		return nil, fmt.Errorf("list unenriched reviews: %w", err)
	}
	return rows, nil
}

// Run sweeps every interval until ctx is done. A failed sweep is logged and
// retried on the next tick.
func (s *EnrichmentSweeper) Run(ctx context.Context, interval time.Duration) error {
	s.logger.Info("Starting enrichment sweep", zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("Enrichment sweep failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Enrichment sweep stopped")
			return nil
		case <-ticker.C:
		}
	}
}
