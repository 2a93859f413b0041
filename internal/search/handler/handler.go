// Package handler exposes the index engine over HTTP. Routes follow the
// Elasticsearch envelope conventions: responses carry _id/_index/_source
// fields and searches return took/hits/aggregations.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/motomercado/search-platform/internal/analytics"
	"github.com/motomercado/search-platform/internal/engine"
	"github.com/motomercado/search-platform/internal/search/cache"
	pkgerrors "github.com/motomercado/search-platform/pkg/errors"
	"github.com/motomercado/search-platform/pkg/kafka"
	"github.com/motomercado/search-platform/pkg/logger"
	"github.com/motomercado/search-platform/pkg/metrics"
	"github.com/motomercado/search-platform/pkg/middleware"
	"github.com/motomercado/search-platform/pkg/tracing"
)

const maxBodyBytes = 4 << 20

type Handler struct {
	engine        *engine.Engine
	cache         *cache.QueryCache
	collector     *analytics.Collector
	invalidations *kafka.Producer
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// New builds the handler. invalidations may be nil; when set, every write
// publishes the touched index so other instances drop their cached results.
func New(eng *engine.Engine, queryCache *cache.QueryCache, collector *analytics.Collector, invalidations *kafka.Producer, m *metrics.Metrics) *Handler {
	return &Handler{
		engine:        eng,
		cache:         queryCache,
		collector:     collector,
		invalidations: invalidations,
		metrics:       m,
		logger:        slog.Default().With("component", "search-handler"),
	}
}

// InvalidationMessage names the index whose cached search results are stale.
type InvalidationMessage struct {
	Index string `json:"index"`
}

// Register wires all index and document routes onto the router.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/indices", h.ListIndices).Methods(http.MethodGet)
	r.HandleFunc("/indices/{index}", h.CreateIndex).Methods(http.MethodPut)
	r.HandleFunc("/indices/{index}", h.DeleteIndex).Methods(http.MethodDelete)
	r.HandleFunc("/indices/{index}/docs/{id}", h.IndexDocument).Methods(http.MethodPut)
	r.HandleFunc("/indices/{index}/docs/{id}", h.GetDocument).Methods(http.MethodGet)
	r.HandleFunc("/indices/{index}/docs/{id}", h.UpdateDocument).Methods(http.MethodPatch)
	r.HandleFunc("/indices/{index}/docs/{id}", h.DeleteDocument).Methods(http.MethodDelete)
	r.HandleFunc("/indices/{index}/bulk", h.BulkIndex).Methods(http.MethodPost)
	r.HandleFunc("/indices/{index}/search", h.Search).Methods(http.MethodPost)
	r.HandleFunc("/cache/stats", h.CacheStats).Methods(http.MethodGet)
	r.HandleFunc("/cache/invalidate", h.CacheInvalidate).Methods(http.MethodPost)
}

func (h *Handler) CreateIndex(w http.ResponseWriter, r *http.Request) {
	index := mux.Vars(r)["index"]
	body := h.readBody(w, r)
	if body == nil {
		return
	}
	var mapping engine.Mapping
	if len(body) > 0 {
		if err := json.Unmarshal(body, &mapping); err != nil {
			h.writeError(w, http.StatusBadRequest, "malformed mapping body")
			return
		}
	}
	result := h.engine.CreateIndex(index, mapping)
	h.invalidateCache(r, index)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteIndex(w http.ResponseWriter, r *http.Request) {
	index := mux.Vars(r)["index"]
	if !h.engine.DeleteIndex(index) {
		h.writeJSON(w, http.StatusNotFound, map[string]bool{"acknowledged": false})
		return
	}
	h.invalidateCache(r, index)
	h.writeJSON(w, http.StatusOK, map[string]bool{"acknowledged": true})
}

func (h *Handler) ListIndices(w http.ResponseWriter, r *http.Request) {
	names := h.engine.Indices()
	indices := make([]map[string]any, 0, len(names))
	for _, name := range names {
		indices = append(indices, map[string]any{
			"index":      name,
			"docs_count": h.engine.DocCount(name),
		})
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"indices": indices})
}

func (h *Handler) IndexDocument(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	vars := mux.Vars(r)
	index, id := vars["index"], vars["id"]

	body := h.readBody(w, r)
	if body == nil {
		return
	}
	var doc engine.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		h.writeError(w, http.StatusBadRequest, "document body must be a JSON object")
		return
	}

	result := h.engine.Index(index, id, doc)
	h.metrics.DocsIndexedTotal.Inc()
	h.invalidateCache(r, index)
	h.trackIndexEvent(r, index, id, time.Since(start))
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) BulkIndex(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	index := mux.Vars(r)["index"]

	body := h.readBody(w, r)
	if body == nil {
		return
	}
	var payload struct {
		Documents []engine.BulkDocument `json:"documents"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Documents) == 0 {
		h.writeError(w, http.StatusBadRequest, "bulk body requires a non-empty documents array")
		return
	}

	result := h.engine.BulkIndex(index, payload.Documents)
	h.metrics.DocsIndexedTotal.Add(float64(len(payload.Documents)))
	h.invalidateCache(r, index)
	logger.FromContext(r.Context()).Info("bulk index complete",
		"index", index,
		"docs", len(payload.Documents),
		"latency_ms", time.Since(start).Milliseconds(),
	)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	result := h.engine.Get(vars["index"], vars["id"])
	status := http.StatusOK
	if !result.Found {
		status = http.StatusNotFound
	}
	h.writeJSON(w, status, result)
}

func (h *Handler) UpdateDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, id := vars["index"], vars["id"]

	body := h.readBody(w, r)
	if body == nil {
		return
	}
	var partial engine.Document
	if err := json.Unmarshal(body, &partial); err != nil {
		h.writeError(w, http.StatusBadRequest, "update body must be a JSON object")
		return
	}

	result := h.engine.Update(index, id, partial)
	if !result.Found {
		h.writeJSON(w, http.StatusNotFound, result)
		return
	}
	h.invalidateCache(r, index)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) DeleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	index, id := vars["index"], vars["id"]

	result := h.engine.Delete(index, id)
	if !result.Found {
		h.writeJSON(w, http.StatusNotFound, result)
		return
	}
	h.metrics.DocsDeletedTotal.Inc()
	h.invalidateCache(r, index)
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)
	index := mux.Vars(r)["index"]

	ctx, span := tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
	span.SetAttr("index", index)
	defer span.End()

	body := h.readBody(w, r)
	if body == nil {
		return
	}

	_, parseSpan := tracing.StartChildSpan(ctx, "parse-request")
	req, err := engine.ParseRequest(body)
	parseSpan.End()
	if err != nil {
		h.metrics.SearchQueriesTotal.WithLabelValues("error").Inc()
		h.writeAppError(w, err)
		return
	}

	var resp *engine.SearchResponse
	cacheHit := false
	if h.cache != nil {
		resp, cacheHit = h.cache.GetOrCompute(ctx, index, body, func() *engine.SearchResponse {
			_, execSpan := tracing.StartChildSpan(ctx, "execute-query")
			defer execSpan.End()
			return h.engine.Search(index, req)
		})
	} else {
		resp = h.engine.Search(index, req)
	}

	latency := time.Since(start)
	resultType := "hit"
	if resp.Hits.Total.Value == 0 {
		resultType = "zero_result"
	}
	h.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	h.metrics.SearchResultsCount.Observe(float64(resp.Hits.Total.Value))
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	h.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())

	log.Info("search completed",
		"index", index,
		"total_hits", resp.Hits.Total.Value,
		"returned", len(resp.Hits.Hits),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.collector != nil {
		eventType := analytics.EventSearch
		if resp.Hits.Total.Value == 0 {
			eventType = analytics.EventZeroResult
		}
		h.collector.Track(analytics.SearchEvent{
			Type:      eventType,
			Index:     index,
			Query:     string(body),
			TotalHits: resp.Hits.Total.Value,
			Returned:  len(resp.Hits.Hits),
			LatencyMs: latency.Milliseconds(),
			CacheHit:  cacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}
	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}
	if err := h.cache.Invalidate(r.Context(), r.URL.Query().Get("index")); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) trackIndexEvent(r *http.Request, index, id string, latency time.Duration) {
	if h.collector == nil {
		return
	}
	h.collector.Track(analytics.IndexEvent{
		Type:       analytics.EventIndexDoc,
		Index:      index,
		DocumentID: id,
		LatencyMs:  latency.Milliseconds(),
		Timestamp:  time.Now().UTC(),
	})
}

func (h *Handler) invalidateCache(r *http.Request, index string) {
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context(), index); err != nil {
			h.logger.Warn("cache invalidation after write failed", "index", index, "error", err)
		}
	}
	if h.invalidations != nil {
		err := h.invalidations.Publish(r.Context(), kafka.Event{
			Key:   index,
			Value: InvalidationMessage{Index: index},
		})
		if err != nil {
			h.logger.Warn("cache invalidation publish failed", "index", index, "error", err)
		}
	}
}

// readBody reads and length-limits the request body, writing a 400 and
// returning nil on failure. An empty body yields an empty slice.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) []byte {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "failed to read request body")
		return nil
	}
	if body == nil {
		body = []byte{}
	}
	return body
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
