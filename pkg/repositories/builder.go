package repositories

import (
	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/review-engine/pkg/models"
)

// psql builds statements with PostgreSQL $n placeholders.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var reviewColumns = []string{
	"id", "text", "stars", "review_id", "tone", "sentiment",
	"category_id", "created_at", "updated_at", "enrichment_checked_at",
}

// latestReviews selects the current version of every logical review,
// optionally restricted to one category. Ties on created_at go to the
// highest surrogate id.
//
// The subquery keeps squirrel's default '?' placeholders; the outer Dollar
// builder numbers them when the full statement is rendered.
func latestReviews(categoryID *int64) squirrel.SelectBuilder {
	q := squirrel.Select(reviewColumns...).
		Options("DISTINCT ON (review_id)").
		From("reviewhistory").
		OrderBy("review_id", "created_at DESC", "id DESC")
	if categoryID != nil {
		q = q.Where(squirrel.Eq{"category_id": *categoryID})
	}
	return q
}

// needsEnrichment matches rows where either field is still missing.
var needsEnrichment = squirrel.Or{
	squirrel.Eq{"tone": nil},
	squirrel.Eq{"sentiment": nil},
}

func scanReview(row pgx.Row) (*models.ReviewHistory, error) {
	var r models.ReviewHistory
	err := row.Scan(
		&r.ID, &r.Text, &r.Stars, &r.ReviewID, &r.Tone, &r.Sentiment,
		&r.CategoryID, &r.CreatedAt, &r.UpdatedAt, &r.EnrichmentCheckedAt,
	)
	if err != nil {
		return nil, err
	}
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	if r.EnrichmentCheckedAt != nil {
		t := r.EnrichmentCheckedAt.UTC()
		r.EnrichmentCheckedAt = &t
	}
	return &r, nil
}

func collectReviews(rows pgx.Rows) ([]*models.ReviewHistory, error) {
	defer rows.Close()

	result := make([]*models.ReviewHistory, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, r)
	}
	return result, rows.Err()
}
