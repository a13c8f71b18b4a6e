package repositories

import (
	"context"
	"fmt"

	"github.com/ekaya-inc/review-engine/pkg/database"
	"github.com/ekaya-inc/review-engine/pkg/models"
)

// AccessLogRepository appends to the access log.
type AccessLogRepository interface {
	Create(ctx context.Context, text string) (*models.AccessLogEntry, error)
	// ListRecent returns the newest entries first.
	ListRecent(ctx context.Context, limit int) ([]*models.AccessLogEntry, error)
}

type accessLogRepository struct{}

func NewAccessLogRepository() AccessLogRepository {
	return &accessLogRepository{}
}

var _ AccessLogRepository = (*accessLogRepository)(nil)

func (r *accessLogRepository) Create(ctx context.Context, text string) (*models.AccessLogEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	query, args, err := psql.Insert("accesslog").
		Columns("text").
		Values(text).
		Suffix("RETURNING id, text, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build access log insert: %w", err)
	}

	var e models.AccessLogEntry
	if err := scope.Conn.QueryRow(ctx, query, args...).Scan(&e.ID, &e.Text, &e.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to write access log: %w", err)
	}
	return &e, nil
}

func (r *accessLogRepository) ListRecent(ctx context.Context, limit int) ([]*models.AccessLogEntry, error) {
	scope, ok := database.GetScope(ctx)
	if !ok {
		return nil, fmt.Errorf("no database scope in context")
	}

	q := psql.Select("id", "text", "created_at").From("accesslog").OrderBy("id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build access log query: %w", err)
	}

	rows, err := scope.Conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list access log: %w", err)
	}
	defer rows.Close()

	entries := make([]*models.AccessLogEntry, 0)
	for rows.Next() {
		var e models.AccessLogEntry
		if err := rows.Scan(&e.ID, &e.Text, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan access log entry: %w", err)
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
