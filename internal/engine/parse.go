package engine

import (
	"encoding/json"
	"fmt"

	pkgerrors "github.com/motomercado/search-platform/pkg/errors"
)

// autoFuzziness is the edit-distance used when a fuzzy query asks for "AUTO".
const autoFuzziness = 2

// ParseRequest decodes an Elasticsearch-style JSON search descriptor into a
// typed SearchRequest. Malformed descriptors yield ErrInvalidQuery.
func ParseRequest(data []byte) (*SearchRequest, error) {
	var raw struct {
		Query  json.RawMessage            `json:"query"`
		Filter json.RawMessage            `json:"filter"`
		Sort   json.RawMessage            `json:"sort"`
		From   int                        `json:"from"`
		Size   int                        `json:"size"`
		Aggs   map[string]json.RawMessage `json:"aggs"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "malformed search body: %v", err)
		}
	}

	req := &SearchRequest{From: raw.From, Size: raw.Size}

	if len(raw.Query) > 0 {
		q, err := parseQuery(raw.Query)
		if err != nil {
			return nil, err
		}
		req.Query = q
	}
	if len(raw.Filter) > 0 {
		filters, err := parseQueryList(raw.Filter)
		if err != nil {
			return nil, err
		}
		req.Filter = filters
	}
	if len(raw.Sort) > 0 {
		keys, err := parseSort(raw.Sort)
		if err != nil {
			return nil, err
		}
		req.Sort = keys
	}
	if len(raw.Aggs) > 0 {
		req.Aggs = make(map[string]Aggregation, len(raw.Aggs))
		for name, rawAgg := range raw.Aggs {
			agg, err := parseAggregation(name, rawAgg)
			if err != nil {
				return nil, err
			}
			req.Aggs[name] = agg
		}
	}
	return req, nil
}

func parseQuery(data json.RawMessage) (Query, error) {
	var variants map[string]json.RawMessage
	if err := json.Unmarshal(data, &variants); err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "malformed query: %v", err)
	}
	if len(variants) == 0 {
		return MatchAllQuery{}, nil
	}
	if len(variants) > 1 {
		return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "query must have exactly one variant key")
	}

	for variant, body := range variants {
		switch variant {
		case "match_all":
			return MatchAllQuery{}, nil
		case "match":
			field, text, err := singleFieldString(body)
			if err != nil {
				return nil, err
			}
			return MatchQuery{Field: field, Text: text}, nil
		case "multi_match":
			var mm struct {
				Query  string   `json:"query"`
				Fields []string `json:"fields"`
			}
			if err := json.Unmarshal(body, &mm); err != nil || len(mm.Fields) == 0 {
				return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "multi_match requires query and fields")
			}
			return MultiMatchQuery{Fields: mm.Fields, Text: mm.Query}, nil
		case "term":
			field, value, err := singleFieldValue(body)
			if err != nil {
				return nil, err
			}
			return TermQuery{Field: field, Value: value}, nil
		case "terms":
			var fields map[string][]Value
			if err := json.Unmarshal(body, &fields); err != nil || len(fields) != 1 {
				return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "terms requires a single field with a value list")
			}
			for field, values := range fields {
				return TermsQuery{Field: field, Values: values}, nil
			}
		case "range":
			return parseRange(body)
		case "fuzzy":
			return parseFuzzy(body)
		case "bool":
			return parseBool(body)
		default:
			return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "unsupported query variant %q", variant)
		}
	}
	return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "empty query")
}

func parseRange(body json.RawMessage) (Query, error) {
	var fields map[string]struct {
		GTE *float64 `json:"gte"`
		GT  *float64 `json:"gt"`
		LTE *float64 `json:"lte"`
		LT  *float64 `json:"lt"`
	}
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) != 1 {
		return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "range requires a single field with bounds")
	}
	for field, b := range fields {
		return RangeQuery{
			Field:  field,
			Bounds: RangeBounds{GTE: b.GTE, GT: b.GT, LTE: b.LTE, LT: b.LT},
		}, nil
	}
	return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "empty range")
}

func parseFuzzy(body json.RawMessage) (Query, error) {
	var fields map[string]struct {
		Value     string          `json:"value"`
		Fuzziness json.RawMessage `json:"fuzziness"`
	}
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) != 1 {
		return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "fuzzy requires a single field")
	}
	for field, f := range fields {
		maxDistance := autoFuzziness
		if len(f.Fuzziness) > 0 {
			var auto string
			var n int
			if err := json.Unmarshal(f.Fuzziness, &n); err == nil {
				maxDistance = n
			} else if err := json.Unmarshal(f.Fuzziness, &auto); err != nil || auto != "AUTO" {
				return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, `fuzziness must be a number or "AUTO"`)
			}
		}
		return FuzzyQuery{Field: field, Value: f.Value, MaxDistance: maxDistance}, nil
	}
	return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "empty fuzzy")
}

func parseBool(body json.RawMessage) (Query, error) {
	var clauses struct {
		Must    json.RawMessage `json:"must"`
		Should  json.RawMessage `json:"should"`
		MustNot json.RawMessage `json:"must_not"`
		Filter  json.RawMessage `json:"filter"`
	}
	if err := json.Unmarshal(body, &clauses); err != nil {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "malformed bool query: %v", err)
	}
	q := BoolQuery{}
	var err error
	if len(clauses.Must) > 0 {
		if q.Must, err = parseQueryList(clauses.Must); err != nil {
			return nil, err
		}
	}
	if len(clauses.Should) > 0 {
		if q.Should, err = parseQueryList(clauses.Should); err != nil {
			return nil, err
		}
	}
	if len(clauses.MustNot) > 0 {
		if q.MustNot, err = parseQueryList(clauses.MustNot); err != nil {
			return nil, err
		}
	}
	if len(clauses.Filter) > 0 {
		if q.Filter, err = parseQueryList(clauses.Filter); err != nil {
			return nil, err
		}
	}
	return q, nil
}

// parseQueryList accepts either a single query object or an array of them.
func parseQueryList(data json.RawMessage) ([]Query, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		q, qerr := parseQuery(data)
		if qerr != nil {
			return nil, qerr
		}
		return []Query{q}, nil
	}
	queries := make([]Query, 0, len(items))
	for _, item := range items {
		q, err := parseQuery(item)
		if err != nil {
			return nil, err
		}
		queries = append(queries, q)
	}
	return queries, nil
}

// parseSort accepts ["field", {"field":"desc"}, {"field":{"order":"asc"}}].
func parseSort(data json.RawMessage) ([]SortKey, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		items = []json.RawMessage{data}
	}
	keys := make([]SortKey, 0, len(items))
	for _, item := range items {
		var field string
		if err := json.Unmarshal(item, &field); err == nil {
			keys = append(keys, SortKey{Field: field})
			continue
		}
		var spec map[string]json.RawMessage
		if err := json.Unmarshal(item, &spec); err != nil || len(spec) != 1 {
			return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "sort entries must be a field name or single-key object")
		}
		for f, rawOrder := range spec {
			var order string
			if err := json.Unmarshal(rawOrder, &order); err != nil {
				var obj struct {
					Order string `json:"order"`
				}
				if err := json.Unmarshal(rawOrder, &obj); err != nil {
					return nil, pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "malformed sort order")
				}
				order = obj.Order
			}
			keys = append(keys, SortKey{Field: f, Desc: order == "desc"})
		}
	}
	return keys, nil
}

func parseAggregation(name string, data json.RawMessage) (Aggregation, error) {
	var variants map[string]json.RawMessage
	if err := json.Unmarshal(data, &variants); err != nil || len(variants) != 1 {
		return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "aggregation %q must have exactly one variant key", name)
	}
	for variant, body := range variants {
		switch variant {
		case "terms":
			var t struct {
				Field string `json:"field"`
				Size  int    `json:"size"`
			}
			if err := json.Unmarshal(body, &t); err != nil || t.Field == "" {
				return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "terms aggregation %q requires a field", name)
			}
			return TermsAgg{Field: t.Field, Size: t.Size}, nil
		case "avg", "sum", "min", "max", "stats":
			var m struct {
				Field string `json:"field"`
			}
			if err := json.Unmarshal(body, &m); err != nil || m.Field == "" {
				return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "%s aggregation %q requires a field", variant, name)
			}
			ops := map[string]MetricOp{
				"avg": OpAvg, "sum": OpSum, "min": OpMin, "max": OpMax, "stats": OpStats,
			}
			return MetricAgg{Field: m.Field, Op: ops[variant]}, nil
		case "histogram":
			var h struct {
				Field    string  `json:"field"`
				Interval float64 `json:"interval"`
			}
			if err := json.Unmarshal(body, &h); err != nil || h.Field == "" || h.Interval <= 0 {
				return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "histogram aggregation %q requires field and positive interval", name)
			}
			return HistogramAgg{Field: h.Field, Interval: h.Interval}, nil
		default:
			return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "unsupported aggregation variant %q", variant)
		}
	}
	return nil, pkgerrors.Newf(pkgerrors.ErrInvalidQuery, 400, "empty aggregation %q", name)
}

// singleFieldString decodes {"field": "text"} bodies.
func singleFieldString(body json.RawMessage) (string, string, error) {
	var fields map[string]string
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) != 1 {
		return "", "", pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "expected a single field with string text")
	}
	for field, text := range fields {
		return field, text, nil
	}
	return "", "", fmt.Errorf("unreachable")
}

// singleFieldValue decodes {"field": <scalar>} bodies.
func singleFieldValue(body json.RawMessage) (string, Value, error) {
	var fields map[string]Value
	if err := json.Unmarshal(body, &fields); err != nil || len(fields) != 1 {
		return "", Null(), pkgerrors.New(pkgerrors.ErrInvalidQuery, 400, "expected a single field with a scalar value")
	}
	for field, value := range fields {
		return field, value, nil
	}
	return "", Null(), fmt.Errorf("unreachable")
}
