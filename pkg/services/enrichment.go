package services

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/database"
	"github.com/ekaya-inc/review-engine/pkg/llm"
	"github.com/ekaya-inc/review-engine/pkg/logging"
	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
)

// EnrichmentService fills in missing tone and sentiment.
// It never returns an error: a row that cannot be enriched is returned as is.
//
// When built with a ScopeFunc, both methods release the database scope carried
// by ctx before the first write, so callers must finish their own queries first.
type EnrichmentService interface {
	// EnsureEnriched returns row with tone and sentiment set when possible.
	EnsureEnriched(ctx context.Context, row *models.ReviewHistory) *models.ReviewHistory
	// EnrichMissing applies EnsureEnriched to every row, preserving order.
	EnrichMissing(ctx context.Context, rows []*models.ReviewHistory) []*models.ReviewHistory
}

// EnrichmentConfig controls enrichment concurrency and retry pacing.
type EnrichmentConfig struct {
	MaxConcurrent int
	// RetryAfter is how long a failed row is left alone before the next attempt.
	RetryAfter time.Duration
	// AttemptTimeout bounds one shared classification. It does not end with
	// the caller that started it.
	AttemptTimeout time.Duration
	// WriteTimeout bounds acquiring a connection and persisting one result.
	WriteTimeout time.Duration
}

const (
	defaultAttemptTimeout = 30 * time.Second
	defaultWriteTimeout   = 5 * time.Second
)

type enrichmentService struct {
	repo      repositories.ReviewRepository
	annotator SentimentAnnotator
	pool      *llm.WorkerPool
	// getScope acquires a dedicated connection per write. When nil, writes use
	// the scope already in the caller's context.
	getScope       database.ScopeFunc
	group          singleflight.Group
	retryAfter     time.Duration
	attemptTimeout time.Duration
	writeTimeout   time.Duration
	now            func() time.Time
	logger         *zap.Logger
}

func NewEnrichmentService(
	repo repositories.ReviewRepository,
	annotator SentimentAnnotator,
	getScope database.ScopeFunc,
	cfg EnrichmentConfig,
	logger *zap.Logger,
) EnrichmentService {
	logger = logger.Named("enrichment")
	if cfg.MaxConcurrent > 1 && getScope == nil {
		// A pooled connection cannot be shared between goroutines.
		logger.Warn("No scope provider; enriching serially", zap.Int("max_concurrent", cfg.MaxConcurrent))
		cfg.MaxConcurrent = 1
	}
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = defaultAttemptTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	return &enrichmentService{
		repo:           repo,
		annotator:      annotator,
		pool:           llm.NewWorkerPool(llm.WorkerPoolConfig{MaxConcurrent: cfg.MaxConcurrent}, logger),
		getScope:       getScope,
		retryAfter:     cfg.RetryAfter,
		attemptTimeout: cfg.AttemptTimeout,
		writeTimeout:   cfg.WriteTimeout,
		now:            time.Now,
		logger:         logger,
	}
}

var _ EnrichmentService = (*enrichmentService)(nil)

func (s *enrichmentService) EnrichMissing(ctx context.Context, rows []*models.ReviewHistory) []*models.ReviewHistory {
	out := make([]*models.ReviewHistory, len(rows))
	copy(out, rows)
	if !hasUnenriched(rows) {
		return out
	}
	s.releaseCallerScope(ctx)

	var items []llm.WorkItem[*models.ReviewHistory]
	var positions []int
	for i, row := range rows {
		if row.IsEnriched() {
			continue
		}
		row := row
		items = append(items, llm.WorkItem[*models.ReviewHistory]{
			ID: strconv.FormatInt(row.ID, 10),
			Execute: func(ctx context.Context) (*models.ReviewHistory, error) {
				return s.ensureEnriched(ctx, row), nil
			},
		})
		positions = append(positions, i)
	}
	results := llm.Process(ctx, s.pool, items, nil)
	for i, r := range results {
		// Items never started because ctx ended keep their original row.
		if r.Err == nil && r.Result != nil {
			out[positions[i]] = r.Result
		}
	}
	return out
}

func (s *enrichmentService) EnsureEnriched(ctx context.Context, row *models.ReviewHistory) *models.ReviewHistory {
	if row.IsEnriched() {
		return row
	}
	s.releaseCallerScope(ctx)
	return s.ensureEnriched(ctx, row)
}

func hasUnenriched(rows []*models.ReviewHistory) bool {
	for _, row := range rows {
		if !row.IsEnriched() {
			return true
		}
	}
	return false
}

// releaseCallerScope gives the caller's connection back to the pool when every
// write acquires its own. A request must never hold one connection while
// waiting for another.
func (s *enrichmentService) releaseCallerScope(ctx context.Context) {
	if s.getScope != nil {
		database.ReleaseScope(ctx)
	}
}

func (s *enrichmentService) ensureEnriched(ctx context.Context, row *models.ReviewHistory) *models.ReviewHistory {
	if row.IsEnriched() {
		return row
	}
	if err := s.checkRetryWindow(row); err != nil {
		s.logger.Debug("Skipping enrichment",
			zap.Int64("review_row_id", row.ID),
			zap.Error(err))
		return row
	}

	// Concurrent requests for the same row share one annotator call, so the
	// call must outlive whichever caller started it.
	v, _, _ := s.group.Do(strconv.FormatInt(row.ID, 10), func() (any, error) {
		attemptCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.attemptTimeout)
		defer cancel()
		return s.enrich(attemptCtx, row), nil
	})
	return v.(*models.ReviewHistory).Clone()
}

func (s *enrichmentService) checkRetryWindow(row *models.ReviewHistory) error {
	if row.EnrichmentCheckedAt == nil || s.retryAfter <= 0 {
		return nil
	}
	if s.now().Sub(*row.EnrichmentCheckedAt) < s.retryAfter {
		return apperrors.ErrEnrichmentPending
	}
	return nil
}

func (s *enrichmentService) enrich(ctx context.Context, row *models.ReviewHistory) *models.ReviewHistory {
	sentiment, err := s.annotator.Classify(ctx, row.TextOrEmpty(), row.Stars)

	// A write gets its own deadline even when classification used up the attempt.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err != nil {
		s.logger.Warn("Enrichment failed",
			zap.Int64("review_row_id", row.ID),
			zap.String("review_id", row.ReviewID),
			zap.String("error_type", string(llm.GetErrorType(err))),
			zap.String("error", logging.SanitizeError(err)))

		if markErr := s.withScope(writeCtx, func(ctx context.Context) error {
			return s.repo.MarkChecked(ctx, row.ID)
		}); markErr != nil {
			s.logger.Warn("Failed to record enrichment attempt",
				zap.Int64("review_row_id", row.ID),
				zap.Error(markErr))
		}
		return row
	}

	var result *models.ReviewHistory
	err = s.withScope(writeCtx, func(ctx context.Context) error {
		won, err := s.repo.SetSentiment(ctx, row.ID, *sentiment)
		if err != nil {
			return err
		}
		if won {
			result = row.Clone()
			result.Apply(*sentiment)
			now := s.now().UTC()
			result.EnrichmentCheckedAt = &now
			return nil
		}
		// Another writer got there first; return what it stored.
		stored, err := s.repo.GetByID(ctx, row.ID)
		if err != nil {
			return err
		}
		result = stored
		return nil
	})
	if err != nil {
		s.logger.Warn("Failed to persist enrichment",
			zap.Int64("review_row_id", row.ID),
			zap.Error(err))
		return row
	}

	s.logger.Debug("Enriched review",
		zap.Int64("review_row_id", row.ID),
		zap.String("tone", *result.Tone),
		zap.String("sentiment", *result.Sentiment))
	return result
}

func (s *enrichmentService) withScope(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.getScope == nil {
		return fn(ctx)
	}
	scopedCtx, cleanup, err := s.getScope(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(scopedCtx)
}
