package analytics

import (
	"time"

	"github.com/motomercado/search-platform/internal/recommend"
)

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventIndexDoc   EventType = "index_document"
	EventView       EventType = "view"
	EventPurchase   EventType = "purchase"
	EventRating     EventType = "rating"
)

// SearchEvent describes one executed search query.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Index     string    `json:"index"`
	Query     string    `json:"query"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IndexEvent describes one document write into an index.
type IndexEvent struct {
	Type       EventType `json:"type"`
	Index      string    `json:"index"`
	DocumentID string    `json:"document_id"`
	TokenCount int       `json:"token_count"`
	LatencyMs  int64     `json:"latency_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// TrackingEvent describes a user interaction with a product. View and
// purchase events carry the product record so the recommendation service can
// vectorize products it has never seen; rating events carry Rating instead.
type TrackingEvent struct {
	Type      EventType         `json:"type"`
	UserID    string            `json:"user_id"`
	ProductID string            `json:"product_id"`
	Product   recommend.Product `json:"product,omitempty"`
	Rating    float64           `json:"rating,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
