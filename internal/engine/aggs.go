package engine

import (
	"math"
	"sort"
)

const defaultTermsSize = 10

// runAggregations evaluates every named aggregation over the already
// query-reduced hit set, never the whole index.
func (ix *searchIndex) runAggregations(aggs map[string]Aggregation, hits []Hit) map[string]AggResult {
	results := make(map[string]AggResult, len(aggs))
	for name, agg := range aggs {
		switch agg := agg.(type) {
		case TermsAgg:
			results[name] = termsAggregation(hits, agg)
		case MetricAgg:
			results[name] = metricAggregation(hits, agg)
		case HistogramAgg:
			results[name] = histogramAggregation(hits, agg)
		}
	}
	return results
}

// termsAggregation buckets hits by the field's scalar display value, top-N
// by doc count descending, key ascending on ties.
func termsAggregation(hits []Hit, agg TermsAgg) AggResult {
	counts := make(map[string]int)
	for _, hit := range hits {
		key := hit.Source[agg.Field].Text()
		if key == "" {
			continue
		}
		counts[key]++
	}
	buckets := make([]Bucket, 0, len(counts))
	for key, count := range counts {
		buckets = append(buckets, Bucket{Key: key, DocCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].DocCount != buckets[j].DocCount {
			return buckets[i].DocCount > buckets[j].DocCount
		}
		return buckets[i].Key.(string) < buckets[j].Key.(string)
	})
	size := agg.Size
	if size <= 0 {
		size = defaultTermsSize
	}
	if len(buckets) > size {
		buckets = buckets[:size]
	}
	return AggResult{Buckets: buckets}
}

// metricAggregation reduces the numeric values of the field, ignoring
// non-numeric and missing values.
func metricAggregation(hits []Hit, agg MetricAgg) AggResult {
	var values []float64
	for _, hit := range hits {
		if n, ok := hit.Source[agg.Field].Num(); ok {
			values = append(values, n)
		}
	}
	if len(values) == 0 {
		if agg.Op == OpStats {
			zero := 0
			return AggResult{Count: &zero}
		}
		return AggResult{}
	}

	sum := 0.0
	minV, maxV := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	avg := sum / float64(len(values))

	switch agg.Op {
	case OpAvg:
		return AggResult{Value: &avg}
	case OpSum:
		return AggResult{Value: &sum}
	case OpMin:
		return AggResult{Value: &minV}
	case OpMax:
		return AggResult{Value: &maxV}
	case OpStats:
		count := len(values)
		return AggResult{Count: &count, Min: &minV, Max: &maxV, Avg: &avg, Sum: &sum}
	}
	return AggResult{}
}

// histogramAggregation buckets numeric values into fixed-width intervals,
// bucket key = floor(value/interval)*interval, sorted ascending.
func histogramAggregation(hits []Hit, agg HistogramAgg) AggResult {
	if agg.Interval <= 0 {
		return AggResult{Buckets: []Bucket{}}
	}
	counts := make(map[float64]int)
	for _, hit := range hits {
		n, ok := hit.Source[agg.Field].Num()
		if !ok {
			continue
		}
		key := math.Floor(n/agg.Interval) * agg.Interval
		counts[key]++
	}
	keys := make([]float64, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Float64s(keys)
	buckets := make([]Bucket, 0, len(keys))
	for _, key := range keys {
		buckets = append(buckets, Bucket{Key: key, DocCount: counts[key]})
	}
	return AggResult{Buckets: buckets}
}
