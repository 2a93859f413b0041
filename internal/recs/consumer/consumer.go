// Package consumer ingests tracking events from Kafka into the
// recommendation model, so interactions recorded by other services (or other
// instances) still shape this instance's recommendations.
package consumer

import (
	"context"
	"log/slog"

	"github.com/motomercado/search-platform/internal/analytics"
	"github.com/motomercado/search-platform/internal/recommend"
	"github.com/motomercado/search-platform/pkg/kafka"
)

// HandleTrackingEvent applies view, purchase, and rating events to the model.
// Undecodable or unknown events are logged and skipped so one bad message
// never stalls the partition.
func HandleTrackingEvent(rec *recommend.Recommender) kafka.MessageHandler {
	log := slog.Default().With("component", "tracking-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[analytics.TrackingEvent](value)
		if err != nil {
			log.Error("failed to decode tracking event", "error", err)
			return nil
		}
		switch event.Type {
		case analytics.EventView:
			rec.TrackProductView(event.UserID, event.ProductID, event.Product)
		case analytics.EventPurchase:
			rec.TrackPurchase(event.UserID, event.ProductID, event.Product)
		case analytics.EventRating:
			if err := rec.RecordRating(event.UserID, event.ProductID, event.Rating); err != nil {
				log.Warn("dropping invalid rating event",
					"user_id", event.UserID,
					"product_id", event.ProductID,
					"rating", event.Rating,
				)
			}
		default:
			log.Warn("unknown tracking event type", "type", string(event.Type))
		}
		return nil
	}
}
