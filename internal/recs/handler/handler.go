// Package handler exposes the recommendation engine over HTTP: interaction
// tracking, ratings, the ranked recommendation surfaces, and model
// snapshot management.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/motomercado/search-platform/internal/analytics"
	"github.com/motomercado/search-platform/internal/recommend"
	pkgerrors "github.com/motomercado/search-platform/pkg/errors"
	"github.com/motomercado/search-platform/pkg/logger"
	"github.com/motomercado/search-platform/pkg/metrics"
)

const defaultTopN = 10

type Handler struct {
	recommender *recommend.Recommender
	snapshots   *recommend.SnapshotStore
	collector   *analytics.Collector
	metrics     *metrics.Metrics
	logger      *slog.Logger
}

func New(rec *recommend.Recommender, snapshots *recommend.SnapshotStore, collector *analytics.Collector, m *metrics.Metrics) *Handler {
	return &Handler{
		recommender: rec,
		snapshots:   snapshots,
		collector:   collector,
		metrics:     m,
		logger:      slog.Default().With("component", "recs-handler"),
	}
}

// Register wires all tracking and recommendation routes onto the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/track/view", h.TrackView).Methods(http.MethodPost)
	r.HandleFunc("/track/purchase", h.TrackPurchase).Methods(http.MethodPost)
	r.HandleFunc("/ratings", h.RecordRating).Methods(http.MethodPost)
	r.HandleFunc("/products/popular", h.Popular).Methods(http.MethodGet)
	r.HandleFunc("/products/{id}/similar", h.Similar).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/recommendations", h.Personalized).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/recommendations/collaborative", h.Collaborative).Methods(http.MethodGet)
	r.HandleFunc("/users/{id}/recommendations/hybrid", h.Hybrid).Methods(http.MethodGet)
	r.HandleFunc("/model/export", h.ExportModel).Methods(http.MethodGet)
	r.HandleFunc("/model/import", h.ImportModel).Methods(http.MethodPost)
	r.HandleFunc("/model/snapshot", h.SaveSnapshot).Methods(http.MethodPost)
}

type trackRequest struct {
	UserID    string            `json:"userId"`
	ProductID string            `json:"productId"`
	Product   recommend.Product `json:"product"`
}

func (h *Handler) TrackView(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTrack(w, r)
	if !ok {
		return
	}
	h.recommender.TrackProductView(req.UserID, req.ProductID, req.Product)
	h.metrics.TrackingEventsTotal.WithLabelValues("view").Inc()
	h.trackEvent(analytics.EventView, req, 0)
	h.writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (h *Handler) TrackPurchase(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeTrack(w, r)
	if !ok {
		return
	}
	h.recommender.TrackPurchase(req.UserID, req.ProductID, req.Product)
	h.metrics.TrackingEventsTotal.WithLabelValues("purchase").Inc()
	h.trackEvent(analytics.EventPurchase, req, 0)
	h.writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (h *Handler) RecordRating(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string  `json:"userId"`
		ProductID string  `json:"productId"`
		Rating    float64 `json:"rating"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "userId, productId, and rating are required")
		return
	}
	if err := h.recommender.RecordRating(req.UserID, req.ProductID, req.Rating); err != nil {
		h.writeAppError(w, err)
		return
	}
	h.metrics.RatingsRecordedTotal.Inc()
	h.trackEvent(analytics.EventRating, trackRequest{UserID: req.UserID, ProductID: req.ProductID}, req.Rating)
	h.writeJSON(w, http.StatusAccepted, map[string]bool{"success": true})
}

func (h *Handler) Similar(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["id"]
	results := h.recommender.FindSimilarProducts(productID, topNParam(r))
	h.metrics.RecommendationsTotal.WithLabelValues("similar").Inc()
	h.writeJSON(w, http.StatusOK, map[string]any{"recommendations": results})
}

func (h *Handler) Collaborative(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	results := h.recommender.CollaborativeRecommendations(userID, topNParam(r))
	h.metrics.RecommendationsTotal.WithLabelValues("collaborative").Inc()
	h.writeJSON(w, http.StatusOK, map[string]any{"recommendations": results})
}

func (h *Handler) Hybrid(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	seedID := r.URL.Query().Get("productId")
	results := h.recommender.HybridRecommendations(userID, seedID, topNParam(r))
	h.metrics.RecommendationsTotal.WithLabelValues("hybrid").Inc()
	h.writeJSON(w, http.StatusOK, map[string]any{"recommendations": results})
}

func (h *Handler) Personalized(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["id"]
	q := r.URL.Query()
	ctx := recommend.Context{
		ProductID: q.Get("productId"),
		Category:  q.Get("category"),
	}
	if maxPrice := q.Get("maxPrice"); maxPrice != "" {
		parsed, err := strconv.ParseFloat(maxPrice, 64)
		if err != nil || parsed < 0 {
			h.writeError(w, http.StatusBadRequest, "maxPrice must be a non-negative number")
			return
		}
		ctx.MaxPrice = parsed
	}
	results := h.recommender.GetPersonalizedRecommendations(userID, ctx, topNParam(r))
	h.metrics.RecommendationsTotal.WithLabelValues("personalized").Inc()
	logger.FromContext(r.Context()).Info("personalized recommendations served",
		"user_id", userID,
		"returned", len(results),
	)
	h.writeJSON(w, http.StatusOK, map[string]any{"recommendations": results})
}

func (h *Handler) Popular(w http.ResponseWriter, r *http.Request) {
	results := h.recommender.GetPopularProducts(topNParam(r))
	h.metrics.RecommendationsTotal.WithLabelValues("popular").Inc()
	h.writeJSON(w, http.StatusOK, map[string]any{"recommendations": results})
}

func (h *Handler) ExportModel(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.recommender.ExportModel())
}

func (h *Handler) ImportModel(w http.ResponseWriter, r *http.Request) {
	var snap recommend.ModelSnapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		h.writeError(w, http.StatusBadRequest, "malformed model snapshot")
		return
	}
	h.recommender.ImportModel(&snap)
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) SaveSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		h.writeError(w, http.StatusServiceUnavailable, "snapshot store is disabled")
		return
	}
	if err := h.snapshots.Save(r.Context(), h.recommender.ExportModel()); err != nil {
		h.metrics.ModelSnapshotsTotal.WithLabelValues("error").Inc()
		h.logger.Error("manual snapshot failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "snapshot failed")
		return
	}
	h.metrics.ModelSnapshotsTotal.WithLabelValues("ok").Inc()
	h.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (h *Handler) decodeTrack(w http.ResponseWriter, r *http.Request) (trackRequest, bool) {
	var req trackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" || req.ProductID == "" {
		h.writeError(w, http.StatusBadRequest, "userId and productId are required")
		return trackRequest{}, false
	}
	return req, true
}

func (h *Handler) trackEvent(eventType analytics.EventType, req trackRequest, rating float64) {
	if h.collector == nil {
		return
	}
	h.collector.Track(analytics.TrackingEvent{
		Type:      eventType,
		UserID:    req.UserID,
		ProductID: req.ProductID,
		Product:   req.Product,
		Rating:    rating,
		Timestamp: time.Now().UTC(),
	})
}

func topNParam(r *http.Request) int {
	raw := r.URL.Query().Get("topN")
	if raw == "" {
		return defaultTopN
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return defaultTopN
	}
	return n
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	msg := err.Error()
	var appErr *pkgerrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	h.writeError(w, pkgerrors.HTTPStatusCode(err), msg)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
