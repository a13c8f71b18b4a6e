package models

import (
	"github.com/shopspring/decimal"
)

// CategoryStats is the raw aggregate over latest-version reviews of one category.
type CategoryStats struct {
	Category
	MeanStars    decimal.Decimal
	TotalReviews int64
}

// CategoryTrend is a ranked entry of the trends endpoint.
type CategoryTrend struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	AverageStars float64 `json:"average_stars"`
	TotalReviews int64   `json:"total_reviews"`
}
