package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
)

// DefaultTrendsLimit is the number of categories ranked by TopCategories.
const DefaultTrendsLimit = 5

// TrendService ranks categories by the average stars of their current reviews.
type TrendService interface {
	TopCategories(ctx context.Context) ([]*models.CategoryTrend, error)
}

type trendService struct {
	repo   repositories.TrendRepository
	limit  int
	logger *zap.Logger
}

func NewTrendService(repo repositories.TrendRepository, limit int, logger *zap.Logger) TrendService {
	if limit < 1 {
		limit = DefaultTrendsLimit
	}
	return &trendService{
		repo:   repo,
		limit:  limit,
		logger: logger.Named("trends"),
	}
}

var _ TrendService = (*trendService)(nil)

// TopCategories keeps the repository's ranking, which uses the unrounded mean.
// Averages are reported to two places with half-to-even rounding.
func (s *trendService) TopCategories(ctx context.Context) ([]*models.CategoryTrend, error) {
	stats, err := s.repo.TopCategories(ctx, s.limit)
	if err != nil {
		return nil, fmt.Errorf("aggregate trends: %w", err)
	}

	trends := make([]*models.CategoryTrend, 0, len(stats))
	for _, st := range stats {
		trends = append(trends, &models.CategoryTrend{
			ID:           st.ID,
			Name:         st.Name,
			Description:  st.Description,
			AverageStars: st.MeanStars.RoundBank(2).InexactFloat64(),
			TotalReviews: st.TotalReviews,
		})
	}
	return trends, nil
}
