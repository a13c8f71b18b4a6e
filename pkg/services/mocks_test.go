package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/repositories"
)

// mockReviewRepo implements repositories.ReviewRepository over an in-memory table.
// It does not resolve latest versions; tests seed one row per logical review.
type mockReviewRepo struct {
	mu   sync.Mutex
	rows map[int64]*models.ReviewHistory

	listErr   error
	setErr    error
	markErr   error
	lastLimit int

	setCalls  int
	markCalls int
	// beforeSet runs inside SetSentiment before the conditional check.
	beforeSet func(id int64)
}

func newMockReviewRepo(rows ...*models.ReviewHistory) *mockReviewRepo {
	m := &mockReviewRepo{rows: make(map[int64]*models.ReviewHistory)}
	for _, r := range rows {
		m.rows[r.ID] = r.Clone()
	}
	return m
}

var _ repositories.ReviewRepository = (*mockReviewRepo)(nil)

func (m *mockReviewRepo) sorted() []*models.ReviewHistory {
	out := make([]*models.ReviewHistory, 0, len(m.rows))
	for _, r := range m.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}

func (m *mockReviewRepo) ListLatest(_ context.Context, filter models.ReviewFilter) ([]*models.ReviewHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = filter.Limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*models.ReviewHistory
	for _, r := range m.sorted() {
		if filter.CategoryID != nil && r.CategoryID != *filter.CategoryID {
			continue
		}
		if filter.Before != nil && !r.CreatedAt.Before(*filter.Before) {
			continue
		}
		out = append(out, r.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockReviewRepo) GetLatest(_ context.Context, reviewID string) (*models.ReviewHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.sorted() {
		if r.ReviewID == reviewID {
			return r.Clone(), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *mockReviewRepo) GetByID(_ context.Context, id int64) (*models.ReviewHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return r.Clone(), nil
}

func (m *mockReviewRepo) SetSentiment(_ context.Context, id int64, s models.Sentiment) (bool, error) {
	if m.beforeSet != nil {
		m.beforeSet(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.setErr != nil {
		return false, m.setErr
	}
	r, ok := m.rows[id]
	if !ok || r.IsEnriched() {
		return false, nil
	}
	r.Apply(s)
	now := time.Now().UTC()
	r.EnrichmentCheckedAt = &now
	return true, nil
}

func (m *mockReviewRepo) MarkChecked(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.markCalls++
	if m.markErr != nil {
		return m.markErr
	}
	if r, ok := m.rows[id]; ok {
		now := time.Now().UTC()
		r.EnrichmentCheckedAt = &now
	}
	return nil
}

func (m *mockReviewRepo) ListUnenriched(_ context.Context, filter models.UnenrichedFilter) ([]*models.ReviewHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = filter.Limit
	var out []*models.ReviewHistory
	for _, r := range m.sorted() {
		if r.IsEnriched() {
			continue
		}
		if r.EnrichmentCheckedAt != nil && !r.EnrichmentCheckedAt.Before(filter.CheckedBefore) {
			continue
		}
		out = append(out, r.Clone())
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (m *mockReviewRepo) Create(_ context.Context, review *models.ReviewHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	review.ID = int64(len(m.rows) + 1)
	m.rows[review.ID] = review.Clone()
	return nil
}

func (m *mockReviewRepo) stored(id int64) *models.ReviewHistory {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Clone()
}

// mockAnnotator implements SentimentAnnotator.
type mockAnnotator struct {
	mu       sync.Mutex
	calls    int
	classify func(ctx context.Context, text string, stars int) (*models.Sentiment, error)
}

func (m *mockAnnotator) Classify(ctx context.Context, text string, stars int) (*models.Sentiment, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.classify != nil {
		return m.classify(ctx, text, stars)
	}
	return &models.Sentiment{Tone: "neutral", Sentiment: "neutral"}, nil
}

func (m *mockAnnotator) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockTrendRepo implements repositories.TrendRepository.
type mockTrendRepo struct {
	stats     []*models.CategoryStats
	err       error
	lastLimit int
}

func (m *mockTrendRepo) TopCategories(_ context.Context, limit int) ([]*models.CategoryStats, error) {
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	if len(m.stats) > limit {
		return m.stats[:limit], nil
	}
	return m.stats, nil
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// newRow builds an unenriched review created minutes after baseTime.
func newRow(id int64, reviewID string, stars int, minutes int) *models.ReviewHistory {
	return &models.ReviewHistory{
		ID:         id,
		Text:       strPtr("text of " + reviewID),
		Stars:      stars,
		ReviewID:   reviewID,
		CreatedAt:  baseTime.Add(time.Duration(minutes) * time.Minute),
		CategoryID: 1,
	}
}

func enrichedRow(id int64, reviewID string, stars int, minutes int) *models.ReviewHistory {
	r := newRow(id, reviewID, stars, minutes)
	r.Apply(models.Sentiment{Tone: "formal", Sentiment: "positive"})
	return r
}
