package repositories

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ekaya-inc/review-engine/pkg/database"
	"github.com/ekaya-inc/review-engine/pkg/models"
)

// TrendRepository aggregates latest-version reviews per category.
type TrendRepository interface {
	// TopCategories returns at most limit categories ranked by unrounded mean
	// stars descending, then category id ascending. Categories without
	// reviews are absent.
	TopCategories(ctx context.Context, limit int) ([]*models.CategoryStats, error)
}

type trendRepository struct{}

func NewTrendRepository() TrendRepository {
	return &trendRepository{}
}

var _ TrendRepository = (*trendRepository)(nil)

func (r *trendRepository) TopCategories(ctx context.Context, limit int) ([]*models.CategoryStats, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	// AVG is read as text so the exact numeric value reaches decimal rounding.
	q := psql.Select(
		"c.id", "c.name", "c.description",
		"AVG(latest.stars)::text AS mean_stars",
		"COUNT(*) AS total_reviews",
	).
		FromSelect(latestReviews(nil), "latest").
		Join("category c ON c.id = latest.category_id").
		GroupBy("c.id", "c.name", "c.description").
		OrderBy("AVG(latest.stars) DESC", "c.id ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build trends query: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate trends: %w", err)
	}
	defer rows.Close()

	stats := make([]*models.CategoryStats, 0)
	for rows.Next() {
		var s models.CategoryStats
		var mean string
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &mean, &s.TotalReviews); err != nil {
			return nil, fmt.Errorf("failed to scan trend row: %w", err)
		}
		s.MeanStars, err = decimal.NewFromString(mean)
		if err != nil {
			return nil, fmt.Errorf("failed to parse mean stars %q: %w", mean, err)
		}
		stats = append(stats, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trend rows: %w", err)
	}
	return stats, nil
}
