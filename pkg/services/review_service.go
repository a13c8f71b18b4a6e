package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
)

// DefaultPageSize is the number of reviews returned per page.
const DefaultPageSize = 15

// ReviewService reads latest-version reviews. It never calls the annotator;
// enrichment is a separate step composed by the caller.
type ReviewService interface {
	// FetchPage returns up to one page of a category's reviews created strictly
	// before cursor (nil for the first page), newest first.
	FetchPage(ctx context.Context, categoryID int64, cursor *time.Time) (*models.ReviewPage, error)
	// GetLatest returns the current version of one logical review.
	GetLatest(ctx context.Context, reviewID string) (*models.ReviewHistory, error)
}

type reviewService struct {
	repo     repositories.ReviewRepository
	pageSize int
	logger   *zap.Logger
}

func NewReviewService(repo repositories.ReviewRepository, pageSize int, logger *zap.Logger) ReviewService {
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	return &reviewService{
		repo:     repo,
		pageSize: pageSize,
		logger:   logger.Named("reviews"),
	}
}

var _ ReviewService = (*reviewService)(nil)

func (s *reviewService) FetchPage(ctx context.Context, categoryID int64, cursor *time.Time) (*models.ReviewPage, error) {
	rows, err := s.repo.ListLatest(ctx, models.ReviewFilter{
		CategoryID: &categoryID,
		Before:     cursor,
		Limit:      s.pageSize,
	})
	if err != nil {
		return nil, fmt.Errorf("fetch page for category %d: %w", categoryID, err)
	}

	page := &models.ReviewPage{Rows: rows}
	if len(rows) > 0 {
		next := rows[len(rows)-1].CreatedAt
		page.NextCursor = &next
	}
	if page.Rows == nil {
		page.Rows = []*models.ReviewHistory{}
	}

	s.logger.Debug("Fetched review page",
		zap.Int64("category_id", categoryID),
		zap.Int("rows", len(page.Rows)),
		zap.Bool("has_cursor", cursor != nil))
	return page, nil
}

func (s *reviewService) GetLatest(ctx context.Context, reviewID string) (*models.ReviewHistory, error) {
	row, err := s.repo.GetLatest(ctx, reviewID)
	if err != nil {
		return nil, fmt.Errorf("get review %s: %w", reviewID, err)
	}
	return row, nil
}
