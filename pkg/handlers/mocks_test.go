package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/ekaya-inc/review-engine/pkg/models"
)

// mockReviewService is a configurable mock for review handler tests.
type mockReviewService struct {
	page       *models.ReviewPage
	row        *models.ReviewHistory
	err        error
	lastCat    int64
	lastCursor *time.Time
}

func (m *mockReviewService) FetchPage(_ context.Context, categoryID int64, cursor *time.Time) (*models.ReviewPage, error) {
	m.lastCat, m.lastCursor = categoryID, cursor
	if m.err != nil {
		return nil, m.err
	}
	if m.page != nil {
		return m.page, nil
	}
	return &models.ReviewPage{Rows: []*models.ReviewHistory{}}, nil
}

func (m *mockReviewService) GetLatest(_ context.Context, _ string) (*models.ReviewHistory, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.row, nil
}

// mockEnrichmentService fills every row with a fixed classification.
type mockEnrichmentService struct {
	calls int
}

func (m *mockEnrichmentService) EnsureEnriched(_ context.Context, row *models.ReviewHistory) *models.ReviewHistory {
	if row.IsEnriched() {
		return row
	}
	m.calls++
	out := row.Clone()
	out.Apply(models.Sentiment{Tone: "informal", Sentiment: "positive"})
	return out
}

func (m *mockEnrichmentService) EnrichMissing(ctx context.Context, rows []*models.ReviewHistory) []*models.ReviewHistory {
	out := make([]*models.ReviewHistory, len(rows))
	for i, r := range rows {
		out[i] = m.EnsureEnriched(ctx, r)
	}
	return out
}

// mockTrendService returns canned trends.
type mockTrendService struct {
	trends []*models.CategoryTrend
	err    error
}

func (m *mockTrendService) TopCategories(context.Context) ([]*models.CategoryTrend, error) {
	return m.trends, m.err
}

// mockAccessLogger records logged strings.
type mockAccessLogger struct {
	mu      sync.Mutex
	entries []string
}

func (m *mockAccessLogger) Log(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, text)
}

func (m *mockAccessLogger) logged() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.entries...)
}

// noScope stands in for the database scope middleware.
func noScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}
