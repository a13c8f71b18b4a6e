//go:build integration

package repositories

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/models"
)

func TestReviewRepository_ListLatest_OneRowPerReview(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	books := tc.createCategory(ctx, "Books")
	tc.createReview(ctx, books.ID, "rev_2_0", 5, 0)
	newer := tc.createReview(ctx, books.ID, "rev_2_0", 8, 10)

	rows, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(books.ID), Limit: 15})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, newer.ID, rows[0].ID)
	assert.Equal(t, 8, rows[0].Stars)
}

func TestReviewRepository_ListLatest_TieBreaksOnHighestID(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	c := tc.createCategory(ctx, "Electronics")
	tc.createReview(ctx, c.ID, "rev_1_0", 3, 0)
	second := tc.createReview(ctx, c.ID, "rev_1_0", 9, 0)

	rows, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(c.ID)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, second.ID, rows[0].ID)

	latest, err := tc.reviews.GetLatest(ctx, "rev_1_0")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)
}

func TestReviewRepository_ListLatest_FiltersCategory(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	a := tc.createCategory(ctx, "Garden")
	b := tc.createCategory(ctx, "Toys")
	tc.createReview(ctx, a.ID, "rev_a", 7, 0)
	tc.createReview(ctx, b.ID, "rev_b", 4, 1)

	rows, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(a.ID)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "rev_a", rows[0].ReviewID)

	all, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestReviewRepository_ListLatest_CursorPagesAreDisjoint(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	c := tc.createCategory(ctx, "Sports")
	for i := 0; i < 20; i++ {
		tc.createReview(ctx, c.ID, fmt.Sprintf("rev_%d", i), 5, i)
	}

	page1, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(c.ID), Limit: 15})
	require.NoError(t, err)
	require.Len(t, page1, 15)
	for i := 1; i < len(page1); i++ {
		assert.True(t, page1[i-1].CreatedAt.After(page1[i].CreatedAt), "page must be ordered newest first")
	}

	cursor := page1[len(page1)-1].CreatedAt
	page2, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(c.ID), Before: &cursor, Limit: 15})
	require.NoError(t, err)
	require.Len(t, page2, 5)

	seen := map[string]bool{}
	for _, r := range append(page1, page2...) {
		assert.False(t, seen[r.ReviewID], "review %s returned twice", r.ReviewID)
		seen[r.ReviewID] = true
	}
	assert.Len(t, seen, 20, "no review may be skipped")

	oldest := page2[len(page2)-1].CreatedAt
	page3, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(c.ID), Before: &oldest, Limit: 15})
	require.NoError(t, err)
	assert.Empty(t, page3)
}

func TestReviewRepository_ListLatest_CursorAppliesAfterResolution(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	c := tc.createCategory(ctx, "Beauty")
	tc.createReview(ctx, c.ID, "rev_x", 2, 0)
	tc.createReview(ctx, c.ID, "rev_x", 6, 50)

	// The superseded version is older than the cursor but must not resurface.
	cursor := tc.base.Add(30 * time.Minute)
	rows, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(c.ID), Before: &cursor})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

// The cursor is a bare timestamp, so rows sharing the last row's created_at
// that did not fit on the page are not returned by the next one.
func TestReviewRepository_ListLatest_CursorSkipsTimestampTies(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	c := tc.createCategory(ctx, "Sports")
	tc.createReview(ctx, c.ID, "rev_tie_a", 4, 0)
	tc.createReview(ctx, c.ID, "rev_tie_b", 5, 0)
	tied := tc.createReview(ctx, c.ID, "rev_tie_c", 6, 0)
	older := tc.createReview(ctx, c.ID, "rev_old", 7, -10)

	page1, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(c.ID), Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)
	assert.Equal(t, tied.ID, page1[0].ID, "ties are ordered by id descending")

	cursor := page1[len(page1)-1].CreatedAt
	page2, err := tc.reviews.ListLatest(ctx, models.ReviewFilter{CategoryID: int64Ptr(c.ID), Before: &cursor, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 1)
	assert.Equal(t, older.ID, page2[0].ID, "rev_tie_a shares the cursor timestamp and is skipped")
}

func TestReviewRepository_GetLatest_NotFound(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	_, err := tc.reviews.GetLatest(ctx, "rev_missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = tc.reviews.GetByID(ctx, 424242)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestReviewRepository_SetSentiment_WritesOnce(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	c := tc.createCategory(ctx, "Fashion")
	r := tc.createReview(ctx, c.ID, "rev_f", 7, 0)

	won, err := tc.reviews.SetSentiment(ctx, r.ID, models.Sentiment{Tone: "formal", Sentiment: "positive"})
	require.NoError(t, err)
	assert.True(t, won)

	won, err = tc.reviews.SetSentiment(ctx, r.ID, models.Sentiment{Tone: "informal", Sentiment: "negative"})
	require.NoError(t, err)
	assert.False(t, won, "second write must not overwrite")

	stored, err := tc.reviews.GetByID(ctx, r.ID)
	require.NoError(t, err)
	require.True(t, stored.IsEnriched())
	assert.Equal(t, "formal", *stored.Tone)
	assert.Equal(t, "positive", *stored.Sentiment)
	assert.NotNil(t, stored.EnrichmentCheckedAt)
	assert.True(t, stored.UpdatedAt.After(r.UpdatedAt) || stored.UpdatedAt.Equal(r.UpdatedAt))
}

func TestReviewRepository_ListUnenriched(t *testing.T) {
	tc := setupRepoTest(t)
	ctx, cleanup := tc.createTestContext()
	defer cleanup()

	c := tc.createCategory(ctx, "Automotive")
	pending := tc.createReview(ctx, c.ID, "rev_pending", 5, 0)
	checked := tc.createReview(ctx, c.ID, "rev_checked", 5, 1)
	done := tc.createReview(ctx, c.ID, "rev_done", 5, 2)

	require.NoError(t, tc.reviews.MarkChecked(ctx, checked.ID))
	_, err := tc.reviews.SetSentiment(ctx, done.ID, models.Sentiment{Tone: "neutral", Sentiment: "neutral"})
	require.NoError(t, err)

	// Checked just now: skipped while the retry window is open.
	rows, err := tc.reviews.ListUnenriched(ctx, models.UnenrichedFilter{CheckedBefore: time.Now().Add(-time.Hour)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, pending.ID, rows[0].ID)

	// Window elapsed: both unenriched rows are due.
	rows, err = tc.reviews.ListUnenriched(ctx, models.UnenrichedFilter{CheckedBefore: time.Now().Add(time.Hour)})
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}
