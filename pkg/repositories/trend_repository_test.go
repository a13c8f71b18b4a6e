//go:build integration

package repositories

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrendRepository_TopCategories(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	a := tc.createCategory(ctx, "A")
	b := tc.createCategory(ctx, "B")
	tc.createCategory(ctx, "Empty")

	tc.createReview(ctx, a.ID, "a1", 8, 0)
	tc.createReview(ctx, a.ID, "a2", 6, 1)
	tc.createReview(ctx, b.ID, "b1", 1, 0)
	// Superseded: only the 9 star version counts.
	tc.createReview(ctx, b.ID, "b1", 9, 5)

	stats, err := tc.trends.TopCategories(ctx, 5)
	require.NoError(t, err)
	require.Len(t, stats, 2, "categories without reviews are absent")

	assert.Equal(t, b.ID, stats[0].ID)
	assert.True(t, stats[0].MeanStars.Equal(decimal.NewFromInt(9)), "got %s", stats[0].MeanStars)
	assert.Equal(t, int64(1), stats[0].TotalReviews)

	assert.Equal(t, a.ID, stats[1].ID)
	assert.True(t, stats[1].MeanStars.Equal(decimal.NewFromInt(7)), "got %s", stats[1].MeanStars)
	assert.Equal(t, int64(2), stats[1].TotalReviews)
}

func TestTrendRepository_TiesRankByCategoryID(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	first := tc.createCategory(ctx, "First")
	second := tc.createCategory(ctx, "Second")
	tc.createReview(ctx, second.ID, "s1", 5, 0)
	tc.createReview(ctx, first.ID, "f1", 5, 0)

	stats, err := tc.trends.TopCategories(ctx, 1)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, first.ID, stats[0].ID)
}
