package engine

import (
	"reflect"
	"testing"

	"github.com/motomercado/search-platform/pkg/config"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(config.SearchConfig{DefaultAnalyzer: "standard"})
}

func productDoc(name, category string, price float64) Document {
	return Document{
		"name":     String(name),
		"category": String(category),
		"price":    Number(price),
	}
}

func TestCreateIndex(t *testing.T) {
	eng := newTestEngine(t)
	result := eng.CreateIndex("products", Mapping{Analyzer: "spanish"})
	if !result.Acknowledged {
		t.Fatal("expected acknowledged index creation")
	}
	if result.Index != "products" {
		t.Errorf("expected index name products, got %q", result.Index)
	}
}

func TestCreateIndexOverwritesExisting(t *testing.T) {
	eng := newTestEngine(t)
	eng.CreateIndex("products", Mapping{})
	eng.Index("products", "p1", productDoc("Filtro de aceite", "motor", 25000))

	eng.CreateIndex("products", Mapping{})
	if count := eng.DocCount("products"); count != 0 {
		t.Errorf("recreated index should be empty, has %d docs", count)
	}
}

func TestIndexImplicitlyCreatesIndex(t *testing.T) {
	eng := newTestEngine(t)
	result := eng.Index("products", "p1", productDoc("Filtro de aceite Honda", "motor", 25000))
	if result.Result != "created" {
		t.Errorf("expected result created, got %q", result.Result)
	}
	if count := eng.DocCount("products"); count != 1 {
		t.Errorf("expected 1 document, got %d", count)
	}
}

func TestIndexUpsert(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", productDoc("Filtro de aceite", "motor", 25000))
	result := eng.Index("products", "p1", productDoc("Filtro de aire", "motor", 18000))
	if result.Result != "updated" {
		t.Errorf("expected result updated, got %q", result.Result)
	}
	if count := eng.DocCount("products"); count != 1 {
		t.Errorf("upsert should not add a document, got %d", count)
	}
}

// Re-indexing the same document twice must leave get and search results
// unchanged.
func TestReindexIsIdempotent(t *testing.T) {
	eng := newTestEngine(t)
	doc := productDoc("Filtro de aceite Honda", "motor", 25000)
	eng.Index("products", "p1", doc)
	first := eng.Get("products", "p1")

	eng.Index("products", "p1", doc)
	second := eng.Get("products", "p1")

	if !reflect.DeepEqual(first, second) {
		t.Errorf("re-index changed get result: %+v vs %+v", first, second)
	}
	resp := eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "filtro"}})
	if resp.Hits.Total.Value != 1 {
		t.Errorf("expected 1 hit after re-index, got %d", resp.Hits.Total.Value)
	}
}

// Overwriting a document must strip postings from its previous version so
// old tokens stop matching.
func TestOverwriteRemovesStalePostings(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", productDoc("Filtro de aceite", "motor", 25000))
	eng.Index("products", "p1", productDoc("Pastillas freno", "frenos", 30000))

	resp := eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "filtro"}})
	if resp.Hits.Total.Value != 0 {
		t.Errorf("stale token still matches after overwrite: %d hits", resp.Hits.Total.Value)
	}
	resp = eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "pastillas"}})
	if resp.Hits.Total.Value != 1 {
		t.Errorf("new token does not match after overwrite: %d hits", resp.Hits.Total.Value)
	}
}

func TestGet(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", productDoc("Filtro de aceite Honda", "motor", 25000))

	result := eng.Get("products", "p1")
	if !result.Found {
		t.Fatal("expected document to be found")
	}
	if name, _ := result.Source["name"].Str(); name != "Filtro de aceite Honda" {
		t.Errorf("unexpected name %q", name)
	}

	if eng.Get("products", "missing").Found {
		t.Error("expected found=false for unknown id")
	}
	if eng.Get("unknown-index", "p1").Found {
		t.Error("expected found=false for unknown index")
	}
}

func TestUpdateShallowMergesAndReindexes(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", productDoc("Filtro de aceite", "motor", 25000))

	result := eng.Update("products", "p1", Document{
		"name":  String("Filtro de aire premium"),
		"stock": Number(12),
	})
	if !result.Found || result.Result != "updated" {
		t.Fatalf("unexpected update result %+v", result)
	}

	got := eng.Get("products", "p1")
	if name, _ := got.Source["name"].Str(); name != "Filtro de aire premium" {
		t.Errorf("merged name = %q", name)
	}
	if category, _ := got.Source["category"].Str(); category != "motor" {
		t.Errorf("untouched field lost: category = %q", category)
	}
	if stock, _ := got.Source["stock"].Num(); stock != 12 {
		t.Errorf("new field missing: stock = %v", stock)
	}

	// The old token must no longer match after the update re-index.
	resp := eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "aceite"}})
	if resp.Hits.Total.Value != 0 {
		t.Errorf("stale token matched after update: %d hits", resp.Hits.Total.Value)
	}
	resp = eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "premium"}})
	if resp.Hits.Total.Value != 1 {
		t.Errorf("updated token missing: %d hits", resp.Hits.Total.Value)
	}
}

func TestUpdateUnknownDocument(t *testing.T) {
	eng := newTestEngine(t)
	eng.CreateIndex("products", Mapping{})
	if eng.Update("products", "missing", Document{"name": String("x")}).Found {
		t.Error("expected found=false updating unknown document")
	}
	if eng.Update("unknown-index", "p1", Document{}).Found {
		t.Error("expected found=false updating unknown index")
	}
}

func TestDelete(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", productDoc("Filtro de aceite", "motor", 25000))

	result := eng.Delete("products", "p1")
	if !result.Found || result.Result != "deleted" {
		t.Fatalf("unexpected delete result %+v", result)
	}
	if eng.Get("products", "p1").Found {
		t.Error("document still found after delete")
	}
	resp := eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "filtro"}})
	if resp.Hits.Total.Value != 0 {
		t.Errorf("postings survived delete: %d hits", resp.Hits.Total.Value)
	}

	if eng.Delete("products", "p1").Found {
		t.Error("second delete reported found=true")
	}
}

func TestDeleteIndex(t *testing.T) {
	eng := newTestEngine(t)
	eng.CreateIndex("products", Mapping{})
	if !eng.DeleteIndex("products") {
		t.Error("expected delete of existing index to succeed")
	}
	if eng.DeleteIndex("products") {
		t.Error("expected delete of missing index to report false")
	}
}

func TestBulkIndex(t *testing.T) {
	eng := newTestEngine(t)
	result := eng.BulkIndex("products", []BulkDocument{
		{ID: "p1", Source: productDoc("Filtro de aceite", "motor", 25000)},
		{ID: "p2", Source: productDoc("Pastillas freno", "frenos", 30000)},
		{ID: "p1", Source: productDoc("Filtro de aire", "motor", 18000)},
	})
	if len(result.Items) != 3 {
		t.Fatalf("expected 3 bulk items, got %d", len(result.Items))
	}
	if result.Items[0].Index.Result != "created" || result.Items[2].Index.Result != "updated" {
		t.Errorf("unexpected bulk results: %+v", result.Items)
	}
	if count := eng.DocCount("products"); count != 2 {
		t.Errorf("expected 2 documents after bulk, got %d", count)
	}
}

// The canonical catalog scenario: one product indexed, match_all sees it, a
// match on its name scores above zero, and a term on the wrong category
// matches nothing.
func TestCatalogScenario(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", productDoc("Filtro de aceite Honda", "motor", 25000))

	resp := eng.Search("products", &SearchRequest{Query: MatchAllQuery{}})
	if resp.Hits.Total.Value != 1 {
		t.Fatalf("match_all total = %d, want 1", resp.Hits.Total.Value)
	}

	resp = eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "filtro honda"}})
	if resp.Hits.Total.Value != 1 {
		t.Fatalf("match total = %d, want 1", resp.Hits.Total.Value)
	}
	if hit := resp.Hits.Hits[0]; hit.ID != "p1" || hit.Score <= 0 {
		t.Errorf("expected p1 with positive score, got id=%q score=%v", hit.ID, hit.Score)
	}

	resp = eng.Search("products", &SearchRequest{Query: TermQuery{Field: "category", Value: String("frenos")}})
	if resp.Hits.Total.Value != 0 {
		t.Errorf("term on wrong category total = %d, want 0", resp.Hits.Total.Value)
	}
}

func TestIndices(t *testing.T) {
	eng := newTestEngine(t)
	eng.CreateIndex("products", Mapping{})
	eng.CreateIndex("reviews", Mapping{})
	names := eng.Indices()
	if len(names) != 2 {
		t.Errorf("expected 2 indices, got %v", names)
	}
}
