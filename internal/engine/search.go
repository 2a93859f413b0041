package engine

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/motomercado/search-platform/internal/analyzer"
)

const defaultSize = 10

// Search executes a parsed request against a named index. An unknown index
// yields an empty response rather than an error.
func (e *Engine) Search(indexName string, req *SearchRequest) *SearchResponse {
	start := time.Now()

	e.mu.RLock()
	defer e.mu.RUnlock()

	resp := &SearchResponse{
		Hits: HitsSection{
			Total: TotalHits{Value: 0, Relation: "eq"},
			Hits:  []Hit{},
		},
	}
	ix, ok := e.indices[indexName]
	if !ok {
		resp.Took = time.Since(start).Milliseconds()
		return resp
	}

	query := req.Query
	if query == nil {
		query = MatchAllQuery{}
	}
	scores := ix.evalQuery(query)

	for _, f := range req.Filter {
		keep := ix.evalQuery(f)
		for id := range scores {
			if _, ok := keep[id]; !ok {
				delete(scores, id)
			}
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{
			ID:     id,
			Score:  math.Round(score*10000) / 10000,
			Source: ix.docs[id].Clone(),
		})
	}
	sortHits(hits, req.Sort)

	resp.Hits.Total = TotalHits{Value: len(hits), Relation: "eq"}
	if len(hits) > 0 {
		maxScore := hits[0].Score
		for _, h := range hits[1:] {
			if h.Score > maxScore {
				maxScore = h.Score
			}
		}
		resp.Hits.MaxScore = &maxScore
	}
	if len(req.Aggs) > 0 {
		resp.Aggregations = ix.runAggregations(req.Aggs, hits)
	}

	resp.Hits.Hits = paginate(hits, req.From, req.Size)
	resp.Took = time.Since(start).Milliseconds()
	return resp
}

// evalQuery returns matching document ids with their scores. Filter-style
// variants (term, range) score a constant 1.
func (ix *searchIndex) evalQuery(q Query) map[string]float64 {
	switch q := q.(type) {
	case MatchAllQuery:
		all := make(map[string]float64, len(ix.docs))
		for id := range ix.docs {
			all[id] = 1
		}
		return all
	case MatchQuery:
		return ix.evalMatch(q.Field, q.Text)
	case MultiMatchQuery:
		merged := make(map[string]float64)
		for _, field := range q.Fields {
			for id, score := range ix.evalMatch(field, q.Text) {
				merged[id] += score
			}
		}
		return merged
	case TermQuery:
		return ix.evalPredicate(func(doc Document) bool {
			return Equal(doc[q.Field], q.Value)
		})
	case TermsQuery:
		return ix.evalPredicate(func(doc Document) bool {
			for _, v := range q.Values {
				if Equal(doc[q.Field], v) {
					return true
				}
			}
			return false
		})
	case RangeQuery:
		return ix.evalPredicate(func(doc Document) bool {
			return inRange(doc[q.Field], q.Bounds)
		})
	case FuzzyQuery:
		return ix.evalFuzzy(q)
	case BoolQuery:
		return ix.evalBool(q)
	default:
		return map[string]float64{}
	}
}

// evalMatch analyzes the query text with the index analyzer and scores
// candidate documents by summed tf·idf over the named field's tokens.
func (ix *searchIndex) evalMatch(field, text string) map[string]float64 {
	queryTokens := analyzer.Analyze(text, ix.analyzer)
	if len(queryTokens) == 0 {
		return map[string]float64{}
	}

	candidates := make(map[string]struct{})
	for _, token := range queryTokens {
		for id := range ix.postings[token] {
			candidates[id] = struct{}{}
		}
	}

	totalDocs := len(ix.docs)
	scores := make(map[string]float64, len(candidates))
	for id := range candidates {
		fieldText, ok := ix.docs[id][field].Str()
		if !ok {
			continue
		}
		fieldTokens := analyzer.Analyze(fieldText, ix.analyzer)
		if len(fieldTokens) == 0 {
			continue
		}
		freq := make(map[string]int, len(fieldTokens))
		for _, t := range fieldTokens {
			freq[t]++
		}
		var score float64
		for _, token := range queryTokens {
			count := freq[token]
			if count == 0 {
				continue
			}
			tf := float64(count) / float64(len(fieldTokens))
			score += tf * idf(totalDocs, ix.docFreq(token))
		}
		if score > 0 {
			scores[id] = score
		}
	}
	return scores
}

// idf is smoothed with +1 inside the log so single-document corpora still
// produce positive scores.
func idf(totalDocs, docFreq int) float64 {
	return math.Log(float64(totalDocs)/float64(1+docFreq) + 1)
}

func (ix *searchIndex) evalPredicate(pred func(Document) bool) map[string]float64 {
	matches := make(map[string]float64)
	for id, doc := range ix.docs {
		if pred(doc) {
			matches[id] = 1
		}
	}
	return matches
}

func (ix *searchIndex) evalFuzzy(q FuzzyQuery) map[string]float64 {
	target := strings.ToLower(q.Value)
	matches := make(map[string]float64)
	for id, doc := range ix.docs {
		text, ok := doc[q.Field].Str()
		if !ok {
			continue
		}
		distance := levenshtein(strings.ToLower(text), target)
		if distance <= q.MaxDistance {
			matches[id] = 1 / float64(1+distance)
		}
	}
	return matches
}

// evalBool implements the bool algebra: must clauses intersect and sum
// scores, should acts as a union gate over the running set, must_not
// subtracts, and filter restricts without contributing to the score.
func (ix *searchIndex) evalBool(q BoolQuery) map[string]float64 {
	var result map[string]float64

	if len(q.Must) > 0 {
		for i, sub := range q.Must {
			scores := ix.evalQuery(sub)
			if i == 0 {
				result = scores
				continue
			}
			for id := range result {
				if s, ok := scores[id]; ok {
					result[id] += s
				} else {
					delete(result, id)
				}
			}
		}
	} else {
		result = make(map[string]float64, len(ix.docs))
		for id := range ix.docs {
			result[id] = 0
		}
	}

	if len(q.Should) > 0 {
		gate := make(map[string]struct{})
		for _, sub := range q.Should {
			for id := range ix.evalQuery(sub) {
				gate[id] = struct{}{}
			}
		}
		for id := range result {
			if _, ok := gate[id]; !ok {
				delete(result, id)
			}
		}
	}

	for _, sub := range q.MustNot {
		for id := range ix.evalQuery(sub) {
			delete(result, id)
		}
	}

	for _, sub := range q.Filter {
		keep := ix.evalQuery(sub)
		for id := range result {
			if _, ok := keep[id]; !ok {
				delete(result, id)
			}
		}
	}
	return result
}

func inRange(v Value, bounds RangeBounds) bool {
	n, ok := v.AsNumber()
	if !ok {
		return false
	}
	if bounds.GTE != nil && n < *bounds.GTE {
		return false
	}
	if bounds.GT != nil && n <= *bounds.GT {
		return false
	}
	if bounds.LTE != nil && n > *bounds.LTE {
		return false
	}
	if bounds.LT != nil && n >= *bounds.LT {
		return false
	}
	return bounds.GTE != nil || bounds.GT != nil || bounds.LTE != nil || bounds.LT != nil
}

// sortHits orders by the given keys, first non-equal key wins, stable
// otherwise. Without sort keys the order is score descending, id ascending.
func sortHits(hits []Hit, keys []SortKey) {
	if len(keys) == 0 {
		sort.SliceStable(hits, func(i, j int) bool {
			if hits[i].Score != hits[j].Score {
				return hits[i].Score > hits[j].Score
			}
			return hits[i].ID < hits[j].ID
		})
		return
	}
	sort.SliceStable(hits, func(i, j int) bool {
		for _, key := range keys {
			c := compareValues(hits[i].Source[key.Field], hits[j].Source[key.Field])
			if c == 0 {
				continue
			}
			if key.Desc {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

// compareValues orders two field values: numbers numerically when both sides
// are numeric, otherwise by display text. Missing values sort first.
func compareValues(a, b Value) int {
	an, aok := a.AsNumber()
	bn, bok := b.AsNumber()
	if aok && bok {
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a.Text(), b.Text())
}

func paginate(hits []Hit, from, size int) []Hit {
	if from < 0 {
		from = 0
	}
	if size <= 0 {
		size = defaultSize
	}
	if from >= len(hits) {
		return []Hit{}
	}
	end := from + size
	if end > len(hits) {
		end = len(hits)
	}
	return hits[from:end]
}
