package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ekaya-inc/review-engine/pkg/apperrors"
	"github.com/ekaya-inc/review-engine/pkg/logging"
	"github.com/ekaya-inc/review-engine/pkg/models"
	"github.com/ekaya-inc/review-engine/pkg/services"
	"github.com/ekaya-inc/review-engine/pkg/services/accesslog"
)

// ReviewResponse is one review in API responses.
type ReviewResponse struct {
	ID         int64     `json:"id"`
	Text       *string   `json:"text"`
	Stars      int       `json:"stars"`
	ReviewID   string    `json:"review_id"`
	CreatedAt  time.Time `json:"created_at"`
	Tone       *string   `json:"tone"`
	Sentiment  *string   `json:"sentiment"`
	CategoryID int64     `json:"category_id"`
}

// ReviewListResponse is the body of GET /reviews/.
type ReviewListResponse struct {
	Data       []ReviewResponse `json:"data"`
	NextCursor *string          `json:"next_cursor"`
}

// ReviewsHandler serves review pages, trends and single review lookups.
type ReviewsHandler struct {
	reviews    services.ReviewService
	enrichment services.EnrichmentService
	trends     services.TrendService
	accessLog  accesslog.Logger
	logger     *zap.Logger
}

func NewReviewsHandler(
	reviews services.ReviewService,
	enrichment services.EnrichmentService,
	trends services.TrendService,
	accessLog accesslog.Logger,
	logger *zap.Logger,
) *ReviewsHandler {
	return &ReviewsHandler{
		reviews:    reviews,
		enrichment: enrichment,
		trends:     trends,
		accessLog:  accessLog,
		logger:     logger.Named("reviews-handler"),
	}
}

// RegisterRoutes registers the review routes. withScope supplies the
// request's database connection.
func (h *ReviewsHandler) RegisterRoutes(mux *http.ServeMux, withScope func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("GET /reviews", withScope(h.List))
	mux.HandleFunc("GET /reviews/{$}", withScope(h.List))
	mux.HandleFunc("GET /reviews/trends", withScope(h.Trends))
	mux.HandleFunc("GET /reviews/{review_id}", withScope(h.Get))
	mux.HandleFunc("GET /log-test", h.LogTest)
	mux.HandleFunc("GET /log-test/{$}", h.LogTest)
}

// List handles GET /reviews/?category_id=&cursor=.
func (h *ReviewsHandler) List(w http.ResponseWriter, r *http.Request) {
	categoryID, ok := ParseCategoryID(w, r, h.logger)
	if !ok {
		return
	}
	cursor, ok := ParseCursor(w, r, h.logger)
	if !ok {
		return
	}

	page, err := h.reviews.FetchPage(r.Context(), categoryID, cursor)
	if err != nil {
		h.internalError(w, "Failed to list reviews", err)
		return
	}
	rows := h.enrichment.EnrichMissing(r.Context(), page.Rows)

	response := ReviewListResponse{
		Data:       make([]ReviewResponse, 0, len(rows)),
		NextCursor: FormatCursor(page.NextCursor),
	}
	for _, row := range rows {
		response.Data = append(response.Data, toReviewResponse(row))
	}

	if err := WriteJSON(w, http.StatusOK, response); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return
	}
	h.accessLog.Log(fmt.Sprintf("GET /reviews/?category_id=%d", categoryID))
}

// Trends handles GET /reviews/trends.
func (h *ReviewsHandler) Trends(w http.ResponseWriter, r *http.Request) {
	trends, err := h.trends.TopCategories(r.Context())
	if err != nil {
		h.internalError(w, "Failed to aggregate trends", err)
		return
	}

	if err := WriteJSON(w, http.StatusOK, trends); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return
	}
	h.accessLog.Log("GET /reviews/trends")
}

// Get handles GET /reviews/{review_id}.
func (h *ReviewsHandler) Get(w http.ResponseWriter, r *http.Request) {
	reviewID := r.PathValue("review_id")

	row, err := h.reviews.GetLatest(r.Context(), reviewID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "not_found", "Review not found"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.internalError(w, "Failed to get review", err)
		return
	}
	row = h.enrichment.EnsureEnriched(r.Context(), row)

	if err := WriteJSON(w, http.StatusOK, toReviewResponse(row)); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
		return
	}
	h.accessLog.Log("GET /reviews/" + reviewID)
}

// LogTest handles GET /log-test/.
func (h *ReviewsHandler) LogTest(w http.ResponseWriter, r *http.Request) {
	h.accessLog.Log("Test log entry")
	if err := WriteJSON(w, http.StatusOK, MessageResponse{Message: "Log entry queued"}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *ReviewsHandler) internalError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, zap.String("error", logging.SanitizeError(err)))
	if err := ErrorResponse(w, http.StatusInternalServerError, "internal_error", message); err != nil {
		h.logger.Error("Failed to write error response", zap.Error(err))
	}
}

func toReviewResponse(r *models.ReviewHistory) ReviewResponse {
	return ReviewResponse{
		ID:         r.ID,
		Text:       r.Text,
		Stars:      r.Stars,
		ReviewID:   r.ReviewID,
		CreatedAt:  r.CreatedAt.UTC(),
		Tone:       r.Tone,
		Sentiment:  r.Sentiment,
		CategoryID: r.CategoryID,
	}
}
