package engine

// Query is the closed set of supported query variants. Execution switches
// exhaustively over the concrete types.
type Query interface {
	isQuery()
}

// MatchAllQuery matches every document with a constant score of 1.
type MatchAllQuery struct{}

// MatchQuery analyzes Text with the index analyzer and scores documents by
// TF-IDF over the named field.
type MatchQuery struct {
	Field string
	Text  string
}

// MultiMatchQuery runs a MatchQuery over several fields and sums the scores.
type MultiMatchQuery struct {
	Fields []string
	Text   string
}

// TermQuery matches documents whose field equals Value exactly, without
// analysis.
type TermQuery struct {
	Field string
	Value Value
}

// TermsQuery matches documents whose field equals any of Values.
type TermsQuery struct {
	Field  string
	Values []Value
}

// RangeBounds holds optional numeric bounds; nil means unbounded.
type RangeBounds struct {
	GTE *float64
	GT  *float64
	LTE *float64
	LT  *float64
}

// RangeQuery matches documents whose numeric field value satisfies Bounds.
// Non-numeric field values never match.
type RangeQuery struct {
	Field  string
	Bounds RangeBounds
}

// FuzzyQuery matches documents whose lowercased field value is within
// MaxDistance Levenshtein edits of the lowercased target.
type FuzzyQuery struct {
	Field       string
	Value       string
	MaxDistance int
}

// BoolQuery combines sub-queries: Must intersects and accumulates scores,
// Should gates on at least one matching clause without boosting, MustNot
// subtracts, and Filter restricts without scoring.
type BoolQuery struct {
	Must    []Query
	Should  []Query
	MustNot []Query
	Filter  []Query
}

func (MatchAllQuery) isQuery()   {}
func (MatchQuery) isQuery()      {}
func (MultiMatchQuery) isQuery() {}
func (TermQuery) isQuery()       {}
func (TermsQuery) isQuery()      {}
func (RangeQuery) isQuery()      {}
func (FuzzyQuery) isQuery()      {}
func (BoolQuery) isQuery()       {}

// SortKey orders results by a document field, ascending unless Desc.
type SortKey struct {
	Field string
	Desc  bool
}

// MetricOp selects a numeric reducer for a MetricAgg.
type MetricOp int

const (
	OpAvg MetricOp = iota
	OpSum
	OpMin
	OpMax
	OpStats
)

// Aggregation is the closed set of supported aggregation variants.
type Aggregation interface {
	isAggregation()
}

// TermsAgg buckets hits by the field's scalar value, top Size buckets by
// doc count descending.
type TermsAgg struct {
	Field string
	Size  int
}

// MetricAgg reduces the numeric values of a field; non-numeric and missing
// values are ignored.
type MetricAgg struct {
	Field string
	Op    MetricOp
}

// HistogramAgg buckets numeric values into fixed-width intervals keyed by
// floor(value/interval)*interval.
type HistogramAgg struct {
	Field    string
	Interval float64
}

func (TermsAgg) isAggregation()     {}
func (MetricAgg) isAggregation()    {}
func (HistogramAgg) isAggregation() {}

// SearchRequest is a fully parsed search: one query, optional filters,
// multi-key sort, pagination, and named aggregations.
type SearchRequest struct {
	Query  Query
	Filter []Query
	Sort   []SortKey
	From   int
	Size   int
	Aggs   map[string]Aggregation
}

// TotalHits mirrors the Elasticsearch total-hits object.
type TotalHits struct {
	Value    int    `json:"value"`
	Relation string `json:"relation"`
}

// Hit is a single scored search result.
type Hit struct {
	ID     string   `json:"_id"`
	Score  float64  `json:"_score"`
	Source Document `json:"_source"`
}

// HitsSection groups the hit list with its total and max score.
type HitsSection struct {
	Total    TotalHits `json:"total"`
	MaxScore *float64  `json:"max_score"`
	Hits     []Hit     `json:"hits"`
}

// Bucket is one entry of a terms or histogram aggregation.
type Bucket struct {
	Key      any `json:"key"`
	DocCount int `json:"doc_count"`
}

// AggResult holds the outcome of a single aggregation; which fields are set
// depends on the aggregation variant.
type AggResult struct {
	Value   *float64 `json:"value,omitempty"`
	Count   *int     `json:"count,omitempty"`
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Avg     *float64 `json:"avg,omitempty"`
	Sum     *float64 `json:"sum,omitempty"`
	Buckets []Bucket `json:"buckets,omitempty"`
}

// SearchResponse mirrors the Elasticsearch response envelope.
type SearchResponse struct {
	Took         int64                `json:"took"`
	TimedOut     bool                 `json:"timed_out"`
	Hits         HitsSection          `json:"hits"`
	Aggregations map[string]AggResult `json:"aggregations,omitempty"`
}
