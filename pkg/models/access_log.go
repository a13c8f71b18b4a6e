package models

import "time"

// AccessLogEntry is one row of the append-only access log.
type AccessLogEntry struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}
