package models

import (
	"time"
)

// Category groups reviews. Categories are never deleted.
type Category struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description"`
}

// ReviewHistory is one stored version of a logical review.
// Every revision of a review shares ReviewID; the row with the newest
// CreatedAt (then highest ID) is the current one.
type ReviewHistory struct {
	ID         int64     `json:"id"`
	Text       *string   `json:"text"`
	Stars      int       `json:"stars"`
	ReviewID   string    `json:"review_id"`
	CreatedAt  time.Time `json:"created_at"`
	Tone       *string   `json:"tone"`
	Sentiment  *string   `json:"sentiment"`
	CategoryID int64     `json:"category_id"`

	UpdatedAt time.Time `json:"-"`
	// EnrichmentCheckedAt is stamped whenever an enrichment attempt finishes.
	EnrichmentCheckedAt *time.Time `json:"-"`
}

// IsEnriched reports whether both tone and sentiment are present.
func (r *ReviewHistory) IsEnriched() bool {
	return r.Tone != nil && r.Sentiment != nil
}

// TextOrEmpty returns the review text, or "" when the review has no text.
func (r *ReviewHistory) TextOrEmpty() string {
	if r.Text == nil {
		return ""
	}
	return *r.Text
}

// Apply sets tone and sentiment from s.
func (r *ReviewHistory) Apply(s Sentiment) {
	tone, sentiment := s.Tone, s.Sentiment
	r.Tone = &tone
	r.Sentiment = &sentiment
}

// Clone returns a shallow copy whose pointer fields are not shared with r.
func (r *ReviewHistory) Clone() *ReviewHistory {
	c := *r
	if r.Text != nil {
		v := *r.Text
		c.Text = &v
	}
	if r.Tone != nil {
		v := *r.Tone
		c.Tone = &v
	}
	if r.Sentiment != nil {
		v := *r.Sentiment
		c.Sentiment = &v
	}
	if r.EnrichmentCheckedAt != nil {
		v := *r.EnrichmentCheckedAt
		c.EnrichmentCheckedAt = &v
	}
	return &c
}

// Sentiment is the annotator's classification of one review.
type Sentiment struct {
	Tone      string `json:"tone"`
	Sentiment string `json:"sentiment"`
}

// ReviewFilter selects latest-version rows.
type ReviewFilter struct {
	CategoryID *int64
	// Before is an exclusive upper bound on created_at.
	Before *time.Time
	Limit  int
}

// UnenrichedFilter selects latest-version rows that still need enrichment.
type UnenrichedFilter struct {
	// CheckedBefore skips rows whose last enrichment attempt is newer than this.
	CheckedBefore time.Time
	Limit         int
}

// ReviewPage is one page of latest-version reviews.
// NextCursor is nil when the page is empty.
type ReviewPage struct {
	Rows       []*ReviewHistory
	NextCursor *time.Time
}
