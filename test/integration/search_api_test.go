// Package integration verifies the HTTP surfaces of both services with real
// handler wiring. External dependencies (Kafka, PostgreSQL, Redis) are left
// unconfigured, so the services run in their degraded in-memory mode.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"

	"github.com/motomercado/search-platform/internal/engine"
	searchhandler "github.com/motomercado/search-platform/internal/search/handler"
	"github.com/motomercado/search-platform/pkg/config"
	"github.com/motomercado/search-platform/pkg/metrics"
	"github.com/motomercado/search-platform/pkg/middleware"
)

// Prometheus collectors register globally, so every test server shares one
// metrics instance.
var testMetrics = metrics.New()

func newSearchServer(t *testing.T) *httptest.Server {
	t.Helper()

	eng := engine.NewEngine(config.SearchConfig{DefaultAnalyzer: "standard"})
	h := searchhandler.New(eng, nil, nil, nil, testMetrics)

	router := mux.NewRouter()
	api := router.PathPrefix("/api/v1").Subrouter()
	h.Register(api)
	router.Use(middleware.RequestID)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, payload any) (*http.Response, map[string]any) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req, err := http.NewRequest(method, url, &body)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, url, err)
	}
	return resp, decoded
}

func TestDocumentLifecycle(t *testing.T) {
	srv := newSearchServer(t)
	base := srv.URL + "/api/v1"

	doc := map[string]any{
		"name":     "Filtro de aceite Honda",
		"category": "motor",
		"price":    25000,
	}
	resp, body := doJSON(t, http.MethodPut, base+"/indices/products/docs/p1", doc)
	if resp.StatusCode != http.StatusOK || body["result"] != "created" {
		t.Fatalf("index: status=%d body=%v", resp.StatusCode, body)
	}

	resp, body = doJSON(t, http.MethodGet, base+"/indices/products/docs/p1", nil)
	if resp.StatusCode != http.StatusOK || body["found"] != true {
		t.Fatalf("get: status=%d body=%v", resp.StatusCode, body)
	}
	source := body["_source"].(map[string]any)
	if source["name"] != "Filtro de aceite Honda" {
		t.Errorf("unexpected source: %v", source)
	}

	resp, body = doJSON(t, http.MethodPatch, base+"/indices/products/docs/p1", map[string]any{"price": 22000})
	if resp.StatusCode != http.StatusOK || body["result"] != "updated" {
		t.Fatalf("update: status=%d body=%v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodDelete, base+"/indices/products/docs/p1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("delete: status=%d", resp.StatusCode)
	}
	resp, _ = doJSON(t, http.MethodGet, base+"/indices/products/docs/p1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete: status=%d, want 404", resp.StatusCode)
	}
}

func TestBulkIndexAndSearch(t *testing.T) {
	srv := newSearchServer(t)
	base := srv.URL + "/api/v1"

	bulk := map[string]any{
		"documents": []map[string]any{
			{"_id": "p1", "_source": map[string]any{"name": "Filtro de aceite Honda", "category": "motor", "price": 25000}},
			{"_id": "p2", "_source": map[string]any{"name": "Filtro de aire Yamaha", "category": "motor", "price": 18000}},
			{"_id": "p3", "_source": map[string]any{"name": "Casco integral Shoei", "category": "cascos", "price": 850000}},
		},
	}
	resp, body := doJSON(t, http.MethodPost, base+"/indices/products/bulk", bulk)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("bulk: status=%d body=%v", resp.StatusCode, body)
	}

	query := map[string]any{
		"query": map[string]any{"match": map[string]any{"name": "filtro"}},
		"aggs": map[string]any{
			"categories": map[string]any{"terms": map[string]any{"field": "category"}},
		},
	}
	resp, body = doJSON(t, http.MethodPost, base+"/indices/products/search", query)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("search: status=%d body=%v", resp.StatusCode, body)
	}
	hits := body["hits"].(map[string]any)
	total := hits["total"].(map[string]any)
	if total["value"].(float64) != 2 {
		t.Errorf("match total = %v, want 2", total["value"])
	}
	if _, ok := body["aggregations"].(map[string]any)["categories"]; !ok {
		t.Errorf("aggregations missing: %v", body["aggregations"])
	}

	// Searching an index that does not exist is an empty result, not an error.
	resp, body = doJSON(t, http.MethodPost, base+"/indices/ghost/search", map[string]any{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ghost search: status=%d", resp.StatusCode)
	}
	if total := body["hits"].(map[string]any)["total"].(map[string]any); total["value"].(float64) != 0 {
		t.Errorf("ghost index total = %v, want 0", total["value"])
	}
}

func TestSearchRejectsMalformedQueries(t *testing.T) {
	srv := newSearchServer(t)
	base := srv.URL + "/api/v1"

	for _, query := range []map[string]any{
		{"query": map[string]any{
			"match": map[string]any{"name": "a"},
			"term":  map[string]any{"b": "c"},
		}},
		{"query": map[string]any{"knn": map[string]any{"field": "v"}}},
	} {
		resp, body := doJSON(t, http.MethodPost, base+"/indices/products/search", query)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("query %v: status=%d, want 400 (%v)", query, resp.StatusCode, body)
		}
	}
}

func TestListIndices(t *testing.T) {
	srv := newSearchServer(t)
	base := srv.URL + "/api/v1"

	doJSON(t, http.MethodPut, base+"/indices/products", map[string]any{"analyzer": "spanish"})
	doJSON(t, http.MethodPut, base+"/indices/reviews", nil)

	resp, body := doJSON(t, http.MethodGet, base+"/indices", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list: status=%d", resp.StatusCode)
	}
	if indices := body["indices"].([]any); len(indices) != 2 {
		t.Errorf("got %d indices, want 2", len(indices))
	}
}

func TestCacheEndpointsWithoutRedis(t *testing.T) {
	srv := newSearchServer(t)
	base := srv.URL + "/api/v1"

	resp, body := doJSON(t, http.MethodGet, base+"/cache/stats", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "disabled" {
		t.Errorf("cache stats: status=%d body=%v", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, http.MethodPost, base+"/cache/invalidate", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("cache invalidate: status=%d, want 503", resp.StatusCode)
	}
}
