package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/database"
	"github.com/ekaya-inc/review-engine/pkg/models"
)

// ReviewRepository provides data access for review history rows.
type ReviewRepository interface {
	// ListLatest returns latest-version rows ordered by created_at DESC, id DESC.
	ListLatest(ctx context.Context, filter models.ReviewFilter) ([]*models.ReviewHistory, error)
	// GetLatest returns the current version of one logical review.
	GetLatest(ctx context.Context, reviewID string) (*models.ReviewHistory, error)
	GetByID(ctx context.Context, id int64) (*models.ReviewHistory, error)
	// SetSentiment writes tone and sentiment only if the row is still missing
	// one of them. Reports whether this call performed the write.
	SetSentiment(ctx context.Context, id int64, s models.Sentiment) (bool, error)
	// MarkChecked stamps enrichment_checked_at after a failed attempt.
	MarkChecked(ctx context.Context, id int64) error
	ListUnenriched(ctx context.Context, filter models.UnenrichedFilter) ([]*models.ReviewHistory, error)
	Create(ctx context.Context, review *models.ReviewHistory) error
}

type reviewRepository struct{}

func NewReviewRepository() ReviewRepository {
	return &reviewRepository{}
}

var _ ReviewRepository = (*reviewRepository)(nil)

func (r *reviewRepository) ListLatest(ctx context.Context, filter models.ReviewFilter) ([]*models.ReviewHistory, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	q := psql.Select(reviewColumns...).
		FromSelect(latestReviews(filter.CategoryID), "latest").
		OrderBy("created_at DESC", "id DESC")
	if filter.Before != nil {
		q = q.Where(squirrel.Lt{"created_at": *filter.Before})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build latest reviews query: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list latest reviews: %w", err)
	}
	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reviews: %w", err)
	}
	return reviews, nil
}

func (r *reviewRepository) GetLatest(ctx context.Context, reviewID string) (*models.ReviewHistory, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query, args, err := psql.Select(reviewColumns...).
		From("reviewhistory").
		Where(squirrel.Eq{"review_id": reviewID}).
		OrderBy("created_at DESC", "id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build review query: %w", err)
	}

	review, err := scanReview(scope.Conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review %s: %w", reviewID, err)
	}
	return review, nil
}

func (r *reviewRepository) GetByID(ctx context.Context, id int64) (*models.ReviewHistory, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query, args, err := psql.Select(reviewColumns...).
		From("reviewhistory").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build review query: %w", err)
	}

	review, err := scanReview(scope.Conn.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get review row %d: %w", id, err)
	}
	return review, nil
}

func (r *reviewRepository) SetSentiment(ctx context.Context, id int64, s models.Sentiment) (bool, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return false, fmt.Errorf("no database scope in context")
	}

	query, args, err := psql.Update("reviewhistory").
		Set("tone", s.Tone).
		Set("sentiment", s.Sentiment).
		Set("enrichment_checked_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		Where(needsEnrichment).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build enrichment update: %w", err)
	}

	tag, err := scope.Conn.Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to store sentiment for row %d: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *reviewRepository) MarkChecked(ctx context.Context, id int64) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	query, args, err := psql.Update("reviewhistory").
		Set("enrichment_checked_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build check update: %w", err)
	}

	if _, err := scope.Conn.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to mark row %d checked: %w", id, err)
	}
	return nil
}

func (r *reviewRepository) ListUnenriched(ctx context.Context, filter models.UnenrichedFilter) ([]*models.ReviewHistory, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	q := psql.Select(reviewColumns...).
		FromSelect(latestReviews(nil), "latest").
		Where(needsEnrichment).
		Where(squirrel.Or{
			squirrel.Eq{"enrichment_checked_at": nil},
			squirrel.Lt{"enrichment_checked_at": filter.CheckedBefore},
		}).
		OrderBy("created_at DESC", "id DESC")
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build unenriched query: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list unenriched reviews: %w", err)
	}
	reviews, err := collectReviews(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan reviews: %w", err)
	}
	return reviews, nil
}

// Create inserts a review version. A zero CreatedAt lets the database assign it.
func (r *reviewRepository) Create(ctx context.Context, review *models.ReviewHistory) error {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return fmt.Errorf("no database scope in context")
	}

	var createdAt any = squirrel.Expr("now()")
	if !review.CreatedAt.IsZero() {
		createdAt = review.CreatedAt
	}

	query, args, err := psql.Insert("reviewhistory").
		Columns("text", "stars", "review_id", "tone", "sentiment", "category_id", "created_at").
		Values(review.Text, review.Stars, review.ReviewID, review.Tone, review.Sentiment, review.CategoryID, createdAt).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build review insert: %w", err)
	}

	var created, updated time.Time
	if err := scope.Conn.QueryRow(ctx, query, args...).Scan(&review.ID, &created, &updated); err != nil {
		return fmt.Errorf("failed to create review %s: %w", review.ReviewID, err)
	}
	review.CreatedAt = created.UTC()
	review.UpdatedAt = updated.UTC()
	return nil
}
