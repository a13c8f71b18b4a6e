package apperrors

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidCursor     = errors.New("invalid cursor")
	ErrInvalidCategoryID = errors.New("invalid category id")
	// ErrAnnotationFailed wraps every way a tone/sentiment classification can fail.
	ErrAnnotationFailed = errors.New("annotation failed")
	// ErrEnrichmentPending is returned when a row's last failed enrichment attempt
	// is too recent to retry.
	ErrEnrichmentPending = errors.New("enrichment recently attempted")
	ErrQueueFull         = errors.New("queue full")
	ErrQueueClosed       = errors.New("queue closed")
)
