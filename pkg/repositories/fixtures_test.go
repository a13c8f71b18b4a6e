//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/testhelpers"
)

// repoTestContext holds test dependencies for repository tests.
type repoTestContext struct {
	t          *testing.T
	testDB     *testhelpers.TestDB
	reviews    ReviewRepository
	categories CategoryRepository
	trends     TrendRepository
	accessLog  AccessLogRepository
	base       time.Time
}

// setupRepoTest truncates the shared database and returns a fresh context.
func setupRepoTest(t *testing.T) *repoTestContext {
	testDB := testhelpers.GetTestDB(t)
	testDB.Truncate(t)

	return &repoTestContext{
		t:          t,
		testDB:     testDB,
		reviews:    NewReviewRepository(),
		categories: NewCategoryRepository(),
		trends:     NewTrendRepository(),
		accessLog:  NewAccessLogRepository(),
		base:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// createTestContext returns a context with a database scope.
func (tc *repoTestContext) createTestContext() (context.Context, func()) {
	return tc.testDB.Scoped(tc.t)
}

func (tc *repoTestContext) createCategory(ctx context.Context, name string) *models.Category {
	tc.t.Helper()
	c := &models.Category{Name: name}
	require.NoError(tc.t, tc.categories.Create(ctx, c))
	return c
}

// createReview inserts a version of reviewID created minutes after the base time.
func (tc *repoTestContext) createReview(ctx context.Context, categoryID int64, reviewID string, stars int, minutes int) *models.ReviewHistory {
	tc.t.Helper()
	text := "review " + reviewID
	r := &models.ReviewHistory{
		Text:       &text,
		Stars:      stars,
		ReviewID:   reviewID,
		CategoryID: categoryID,
		CreatedAt:  tc.base.Add(time.Duration(minutes) * time.Minute),
	}
	require.NoError(tc.t, tc.reviews.Create(ctx, r))
	return r
}

func int64Ptr(v int64) *int64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }
