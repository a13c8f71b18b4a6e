package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
)

// cursorLayouts are tried in order. Layouts without a zone are read as UTC.
var cursorLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseCategoryIDValue parses a category id query value.
func ParseCategoryIDValue(raw string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: category_id is required", apperrors.ErrInvalidCategoryID)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not an integer", apperrors.ErrInvalidCategoryID, raw)
	}
	return id, nil
}

// ParseCursorValue parses an ISO-8601 pagination cursor. Empty means no cursor.
func ParseCursorValue(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	// An unescaped '+' in a query string arrives as a space.
	if len(raw) > 19 {
		raw = raw[:19] + strings.Replace(raw[19:], " ", "+", 1)
	}
	for _, layout := range cursorLayouts {
		if t, err := time.ParseInLocation(layout, raw, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %q is not an ISO-8601 timestamp", apperrors.ErrInvalidCursor, raw)
}

// FormatCursor renders a cursor as it is accepted by ParseCursorValue.
func FormatCursor(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}

// ParseCategoryID reads the required category_id query parameter.
// Returns the id and true on success, or 0 and false after writing a 400 response.
func ParseCategoryID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int64, bool) {
	id, err := ParseCategoryIDValue(r.URL.Query().Get("category_id"))
	if err != nil {
		writeBadRequest(w, "invalid_category_id", err, logger)
		return 0, false
	}
	return id, true
}

// ParseCursor reads the optional cursor query parameter.
// Returns nil and true when absent, or nil and false after writing a 400 response.
func ParseCursor(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (*time.Time, bool) {
	cursor, err := ParseCursorValue(r.URL.Query().Get("cursor"))
	if err != nil {
		writeBadRequest(w, "invalid_cursor", err, logger)
		return nil, false
	}
	return cursor, true
}

func writeBadRequest(w http.ResponseWriter, errorCode string, err error, logger *zap.Logger) {
	if err := ErrorResponse(w, http.StatusBadRequest, errorCode, err.Error()); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}
