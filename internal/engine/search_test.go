package engine

import (
	"testing"
)

func seedCatalog(t *testing.T) *Engine {
	t.Helper()
	eng := newTestEngine(t)
	eng.BulkIndex("products", []BulkDocument{
		{ID: "p1", Source: productDoc("Filtro de aceite Honda", "motor", 25000)},
		{ID: "p2", Source: productDoc("Filtro de aire Yamaha", "motor", 18000)},
		{ID: "p3", Source: productDoc("Pastillas de freno Honda", "frenos", 45000)},
		{ID: "p4", Source: productDoc("Casco integral Shoei", "cascos", 850000)},
		{ID: "p5", Source: productDoc("Llanta trasera Michelin", "llantas", 320000)},
	})
	return eng
}

func hitIDs(resp *SearchResponse) []string {
	ids := make([]string, 0, len(resp.Hits.Hits))
	for _, h := range resp.Hits.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}

func containsID(resp *SearchResponse, id string) bool {
	for _, h := range resp.Hits.Hits {
		if h.ID == id {
			return true
		}
	}
	return false
}

func TestSearchUnknownIndexYieldsEmptyResponse(t *testing.T) {
	eng := newTestEngine(t)
	resp := eng.Search("nope", &SearchRequest{Query: MatchAllQuery{}})
	if resp.Hits.Total.Value != 0 || len(resp.Hits.Hits) != 0 {
		t.Errorf("expected empty response, got %+v", resp.Hits)
	}
	if resp.TimedOut {
		t.Error("timed_out should always be false")
	}
}

func TestMatchScoresOrderByRelevance(t *testing.T) {
	eng := seedCatalog(t)
	// p1 matches both tokens, p2 only "filtro", p3 only "honda".
	resp := eng.Search("products", &SearchRequest{Query: MatchQuery{Field: "name", Text: "filtro honda"}})
	if resp.Hits.Total.Value != 3 {
		t.Fatalf("expected 3 matches, got %d", resp.Hits.Total.Value)
	}
	if resp.Hits.Hits[0].ID != "p1" {
		t.Errorf("two-token match should rank first, got order %v", hitIDs(resp))
	}
	if resp.Hits.MaxScore == nil || *resp.Hits.MaxScore != resp.Hits.Hits[0].Score {
		t.Errorf("max_score should equal the top hit score")
	}
	for i := 1; i < len(resp.Hits.Hits); i++ {
		if resp.Hits.Hits[i].Score > resp.Hits.Hits[i-1].Score {
			t.Errorf("scores not descending: %v", resp.Hits.Hits)
		}
	}
}

func TestMultiMatchSumsFieldScores(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: MultiMatchQuery{Fields: []string{"name", "category"}, Text: "freno"},
	})
	// "freno" appears in p3's name; category "frenos" does not tokenize to
	// "freno" so only the name field contributes.
	if !containsID(resp, "p3") {
		t.Errorf("expected p3 in results, got %v", hitIDs(resp))
	}
}

func TestTermQueryIsExactAndUnanalyzed(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{Query: TermQuery{Field: "category", Value: String("motor")}})
	if resp.Hits.Total.Value != 2 {
		t.Errorf("term motor total = %d, want 2", resp.Hits.Total.Value)
	}
	// Term matching never analyzes: a different case does not match.
	resp = eng.Search("products", &SearchRequest{Query: TermQuery{Field: "category", Value: String("Motor")}})
	if resp.Hits.Total.Value != 0 {
		t.Errorf("case-differing term matched %d docs", resp.Hits.Total.Value)
	}
	// Scores are a constant 1 for filter-style queries.
	resp = eng.Search("products", &SearchRequest{Query: TermQuery{Field: "category", Value: String("cascos")}})
	if resp.Hits.Hits[0].Score != 1 {
		t.Errorf("term score = %v, want 1", resp.Hits.Hits[0].Score)
	}
}

func TestTermsQueryMatchesAnyValue(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: TermsQuery{Field: "category", Values: []Value{String("cascos"), String("llantas")}},
	})
	if resp.Hits.Total.Value != 2 {
		t.Errorf("terms total = %d, want 2", resp.Hits.Total.Value)
	}
}

func TestRangeQuery(t *testing.T) {
	eng := seedCatalog(t)
	gte := 20000.0
	lt := 100000.0
	resp := eng.Search("products", &SearchRequest{
		Query: RangeQuery{Field: "price", Bounds: RangeBounds{GTE: &gte, LT: &lt}},
	})
	// p1 (25000) and p3 (45000); p2 (18000) is below, the rest above.
	if resp.Hits.Total.Value != 2 {
		t.Errorf("range total = %d, want 2: %v", resp.Hits.Total.Value, hitIDs(resp))
	}
}

func TestRangeWithoutBoundsMatchesNothing(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{Query: RangeQuery{Field: "price"}})
	if resp.Hits.Total.Value != 0 {
		t.Errorf("unbounded range matched %d docs", resp.Hits.Total.Value)
	}
}

func TestRangeOnNonNumericFieldMatchesNothing(t *testing.T) {
	eng := seedCatalog(t)
	gte := 1.0
	resp := eng.Search("products", &SearchRequest{
		Query: RangeQuery{Field: "name", Bounds: RangeBounds{GTE: &gte}},
	})
	if resp.Hits.Total.Value != 0 {
		t.Errorf("range over text field matched %d docs", resp.Hits.Total.Value)
	}
}

func TestFuzzyQueryBound(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", Document{"brand": String("honda")})
	eng.Index("products", "p2", Document{"brand": String("hondda")})
	eng.Index("products", "p3", Document{"brand": String("suzuki")})

	resp := eng.Search("products", &SearchRequest{
		Query: FuzzyQuery{Field: "brand", Value: "Honda", MaxDistance: 1},
	})
	if resp.Hits.Total.Value != 2 {
		t.Fatalf("fuzzy total = %d, want 2: %v", resp.Hits.Total.Value, hitIDs(resp))
	}
	// Exact match scores 1, one edit away scores 1/2.
	for _, h := range resp.Hits.Hits {
		switch h.ID {
		case "p1":
			if h.Score != 1 {
				t.Errorf("exact fuzzy score = %v, want 1", h.Score)
			}
		case "p2":
			if h.Score != 0.5 {
				t.Errorf("distance-1 fuzzy score = %v, want 0.5", h.Score)
			}
		}
	}
}

func TestBoolMustIntersectsAndSumsScores(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: BoolQuery{Must: []Query{
			MatchQuery{Field: "name", Text: "filtro"},
			TermQuery{Field: "category", Value: String("motor")},
		}},
	})
	if resp.Hits.Total.Value != 2 {
		t.Fatalf("bool must total = %d, want 2", resp.Hits.Total.Value)
	}
	for _, h := range resp.Hits.Hits {
		if h.Score <= 1 {
			t.Errorf("must should sum clause scores, got %v for %s", h.Score, h.ID)
		}
	}
}

func TestBoolMustNotNeverIntersectsMust(t *testing.T) {
	eng := seedCatalog(t)
	must := eng.Search("products", &SearchRequest{
		Query: MatchQuery{Field: "name", Text: "honda"},
	})
	combined := eng.Search("products", &SearchRequest{
		Query: BoolQuery{
			Must:    []Query{MatchQuery{Field: "name", Text: "honda"}},
			MustNot: []Query{TermQuery{Field: "category", Value: String("frenos")}},
		},
	})
	if must.Hits.Total.Value != 2 || combined.Hits.Total.Value != 1 {
		t.Fatalf("unexpected totals: must=%d combined=%d", must.Hits.Total.Value, combined.Hits.Total.Value)
	}
	for _, h := range combined.Hits.Hits {
		if category, _ := h.Source["category"].Str(); category == "frenos" {
			t.Errorf("must_not document %s leaked into results", h.ID)
		}
	}
}

func TestBoolSingleShouldBehavesLikeClauseAlone(t *testing.T) {
	eng := seedCatalog(t)
	alone := eng.Search("products", &SearchRequest{
		Query: TermQuery{Field: "category", Value: String("motor")},
	})
	should := eng.Search("products", &SearchRequest{
		Query: BoolQuery{Should: []Query{TermQuery{Field: "category", Value: String("motor")}}},
	})
	if alone.Hits.Total.Value != should.Hits.Total.Value {
		t.Errorf("single should total = %d, clause alone = %d",
			should.Hits.Total.Value, alone.Hits.Total.Value)
	}
	for _, h := range alone.Hits.Hits {
		if !containsID(should, h.ID) {
			t.Errorf("document %s missing from should results", h.ID)
		}
	}
}

func TestBoolFilterRestrictsWithoutScoring(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: BoolQuery{
			Must:   []Query{MatchQuery{Field: "name", Text: "filtro"}},
			Filter: []Query{TermQuery{Field: "category", Value: String("motor")}},
		},
	})
	noFilter := eng.Search("products", &SearchRequest{
		Query: MatchQuery{Field: "name", Text: "filtro"},
	})
	if resp.Hits.Total.Value != noFilter.Hits.Total.Value {
		t.Fatalf("filter changed the motor-only hit set")
	}
	for i, h := range resp.Hits.Hits {
		if h.Score != noFilter.Hits.Hits[i].Score {
			t.Errorf("filter altered score for %s: %v vs %v", h.ID, h.Score, noFilter.Hits.Hits[i].Score)
		}
	}
}

func TestTopLevelFilter(t *testing.T) {
	eng := seedCatalog(t)
	lte := 50000.0
	resp := eng.Search("products", &SearchRequest{
		Query:  MatchAllQuery{},
		Filter: []Query{RangeQuery{Field: "price", Bounds: RangeBounds{LTE: &lte}}},
	})
	if resp.Hits.Total.Value != 3 {
		t.Errorf("filtered total = %d, want 3: %v", resp.Hits.Total.Value, hitIDs(resp))
	}
}

func TestSortMultiKey(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: MatchAllQuery{},
		Sort: []SortKey{
			{Field: "category"},
			{Field: "price", Desc: true},
		},
	})
	got := hitIDs(resp)
	// Categories ascending: cascos, frenos, llantas, motor; within motor the
	// higher price (p1) first.
	want := []string{"p4", "p3", "p5", "p1", "p2"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sort order = %v, want %v", got, want)
		}
	}
}

func TestSortNumericDescending(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: MatchAllQuery{},
		Sort:  []SortKey{{Field: "price", Desc: true}},
	})
	prev := resp.Hits.Hits[0]
	for _, h := range resp.Hits.Hits[1:] {
		pn, _ := prev.Source["price"].Num()
		hn, _ := h.Source["price"].Num()
		if hn > pn {
			t.Fatalf("prices not descending: %v", hitIDs(resp))
		}
		prev = h
	}
}

func TestPagination(t *testing.T) {
	eng := seedCatalog(t)
	req := &SearchRequest{
		Query: MatchAllQuery{},
		Sort:  []SortKey{{Field: "price"}},
		From:  1,
		Size:  2,
	}
	resp := eng.Search("products", req)
	if resp.Hits.Total.Value != 5 {
		t.Errorf("pagination changed total: %d", resp.Hits.Total.Value)
	}
	if len(resp.Hits.Hits) != 2 {
		t.Fatalf("page size = %d, want 2", len(resp.Hits.Hits))
	}
	// Prices ascending are p2,p1,p3,p5,p4; page [1:3] is p1,p3.
	if got := hitIDs(resp); got[0] != "p1" || got[1] != "p3" {
		t.Errorf("page contents = %v", got)
	}
}

func TestPaginationDefaultsAndOverrun(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{Query: MatchAllQuery{}, From: 100})
	if len(resp.Hits.Hits) != 0 {
		t.Errorf("overrun page returned %d hits", len(resp.Hits.Hits))
	}
	resp = eng.Search("products", &SearchRequest{Query: MatchAllQuery{}, From: -3, Size: -1})
	if len(resp.Hits.Hits) != 5 {
		t.Errorf("negative from/size fell outside defaults: %d hits", len(resp.Hits.Hits))
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"honda", "honda", 0},
		{"honda", "hondda", 1},
		{"casco", "carro", 2},
		{"", "moto", 4},
		{"suspensión", "suspension", 1},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q,%q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		// Symmetry.
		if got := levenshtein(tt.b, tt.a); got != tt.want {
			t.Errorf("levenshtein(%q,%q) = %d, want %d", tt.b, tt.a, got, tt.want)
		}
	}
}

func TestAggregations(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: MatchAllQuery{},
		Aggs: map[string]Aggregation{
			"by_category": TermsAgg{Field: "category"},
			"avg_price":   MetricAgg{Field: "price", Op: OpAvg},
			"price_stats": MetricAgg{Field: "price", Op: OpStats},
			"price_hist":  HistogramAgg{Field: "price", Interval: 100000},
		},
	})

	byCategory := resp.Aggregations["by_category"]
	if len(byCategory.Buckets) != 4 {
		t.Fatalf("expected 4 category buckets, got %v", byCategory.Buckets)
	}
	if byCategory.Buckets[0].Key != "motor" || byCategory.Buckets[0].DocCount != 2 {
		t.Errorf("top bucket = %+v, want motor/2", byCategory.Buckets[0])
	}

	avg := resp.Aggregations["avg_price"]
	wantAvg := (25000.0 + 18000 + 45000 + 850000 + 320000) / 5
	if avg.Value == nil || *avg.Value != wantAvg {
		t.Errorf("avg_price = %v, want %v", avg.Value, wantAvg)
	}

	stats := resp.Aggregations["price_stats"]
	if stats.Count == nil || *stats.Count != 5 {
		t.Errorf("stats count = %v, want 5", stats.Count)
	}
	if stats.Min == nil || *stats.Min != 18000 || stats.Max == nil || *stats.Max != 850000 {
		t.Errorf("stats min/max = %v/%v", stats.Min, stats.Max)
	}

	hist := resp.Aggregations["price_hist"]
	// Buckets: 0 (three docs), 300000 (p5), 800000 (p4), keys ascending.
	if len(hist.Buckets) != 3 {
		t.Fatalf("histogram buckets = %v", hist.Buckets)
	}
	if hist.Buckets[0].Key != 0.0 || hist.Buckets[0].DocCount != 3 {
		t.Errorf("first histogram bucket = %+v", hist.Buckets[0])
	}
	if hist.Buckets[2].Key != 800000.0 || hist.Buckets[2].DocCount != 1 {
		t.Errorf("last histogram bucket = %+v", hist.Buckets[2])
	}
}

// Aggregations reduce the query-filtered hit set, not the whole index.
func TestAggregationsRespectQueryScope(t *testing.T) {
	eng := seedCatalog(t)
	resp := eng.Search("products", &SearchRequest{
		Query: TermQuery{Field: "category", Value: String("motor")},
		Aggs: map[string]Aggregation{
			"sum_price": MetricAgg{Field: "price", Op: OpSum},
		},
	})
	sum := resp.Aggregations["sum_price"]
	if sum.Value == nil || *sum.Value != 43000 {
		t.Errorf("scoped sum = %v, want 43000", sum.Value)
	}
}

func TestAggregationsIgnoreNonNumericValues(t *testing.T) {
	eng := newTestEngine(t)
	eng.Index("products", "p1", Document{"price": Number(10)})
	eng.Index("products", "p2", Document{"price": String("not-a-number")})
	eng.Index("products", "p3", Document{"name": String("sin precio")})

	resp := eng.Search("products", &SearchRequest{
		Query: MatchAllQuery{},
		Aggs:  map[string]Aggregation{"avg": MetricAgg{Field: "price", Op: OpAvg}},
	})
	avg := resp.Aggregations["avg"]
	if avg.Value == nil || *avg.Value != 10 {
		t.Errorf("avg over mixed values = %v, want 10", avg.Value)
	}
}
