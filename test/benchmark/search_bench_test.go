package benchmark

import (
	"fmt"
	"testing"

	"github.com/motomercado/search-platform/internal/engine"
	"github.com/motomercado/search-platform/pkg/config"
)

var (
	categories = []string{"motor", "frenos", "cascos", "llantas", "accesorios"}
	brands     = []string{"honda", "yamaha", "suzuki", "shoei", "michelin"}
	nouns      = []string{"filtro", "pastillas", "casco", "llanta", "aceite", "cadena"}
)

func seededEngine(docs int) *engine.Engine {
	eng := engine.NewEngine(config.SearchConfig{DefaultAnalyzer: "standard"})
	bulk := make([]engine.BulkDocument, 0, docs)
	for i := 0; i < docs; i++ {
		bulk = append(bulk, engine.BulkDocument{
			ID: fmt.Sprintf("p%d", i),
			Source: engine.Document{
				"name":     engine.String(fmt.Sprintf("%s %s %d", nouns[i%len(nouns)], brands[i%len(brands)], i)),
				"category": engine.String(categories[i%len(categories)]),
				"brand":    engine.String(brands[i%len(brands)]),
				"price":    engine.Number(float64(10_000 + i*137%900_000)),
			},
		})
	}
	eng.BulkIndex("products", bulk)
	return eng
}

func BenchmarkIndexDocument(b *testing.B) {
	eng := engine.NewEngine(config.SearchConfig{DefaultAnalyzer: "standard"})
	doc := engine.Document{
		"name":     engine.String("Filtro de aceite Honda CB-190"),
		"category": engine.String("motor"),
		"price":    engine.Number(25_000),
	}
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		eng.Index("products", fmt.Sprintf("p%d", i), doc)
	}
}

func BenchmarkSearch(b *testing.B) {
	requests := map[string]*engine.SearchRequest{
		"match": {Query: engine.MatchQuery{Field: "name", Text: "filtro honda"}},
		"bool": {Query: engine.BoolQuery{
			Must:   []engine.Query{engine.MatchQuery{Field: "name", Text: "filtro"}},
			Filter: []engine.Query{engine.TermQuery{Field: "category", Value: engine.String("motor")}},
		}},
		"fuzzy": {Query: engine.FuzzyQuery{Field: "brand", Value: "hondda", MaxDistance: 2}},
		"sorted": {
			Query: engine.MatchAllQuery{},
			Sort:  []engine.SortKey{{Field: "price", Desc: true}},
			Size:  25,
		},
		"aggregations": {
			Query: engine.MatchAllQuery{},
			Aggs: map[string]engine.Aggregation{
				"categories": engine.TermsAgg{Field: "category", Size: 10},
				"avg_price":  engine.MetricAgg{Field: "price", Op: engine.OpAvg},
			},
		},
	}

	for _, docs := range []int{100, 1000, 10000} {
		eng := seededEngine(docs)
		for name, req := range requests {
			b.Run(fmt.Sprintf("%s_docs_%d", name, docs), func(b *testing.B) {
				b.ReportAllocs()
				for i := 0; i < b.N; i++ {
					resp := eng.Search("products", req)
					_ = resp
				}
			})
		}
	}
}

func BenchmarkSearchParallel(b *testing.B) {
	eng := seededEngine(1000)
	req := &engine.SearchRequest{Query: engine.MatchQuery{Field: "name", Text: "filtro honda"}}
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			resp := eng.Search("products", req)
			_ = resp
		}
	})
}

func BenchmarkParseRequest(b *testing.B) {
	body := []byte(`{
		"query": {"bool": {
			"must": [{"match": {"name": "filtro honda"}}],
			"filter": [{"range": {"price": {"gte": 10000, "lte": 100000}}}]
		}},
		"sort": [{"price": "desc"}],
		"aggs": {"categories": {"terms": {"field": "category"}}},
		"size": 25
	}`)
	b.ReportAllocs()
	b.SetBytes(int64(len(body)))
	for i := 0; i < b.N; i++ {
		req, err := engine.ParseRequest(body)
		if err != nil {
			b.Fatal(err)
		}
		_ = req
	}
}
