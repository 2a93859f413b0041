// Package engine implements the in-memory document index: schemaless
// documents over a closed Value union, an inverted postings structure kept
// consistent on every write, and a typed query language with TF-IDF scoring
// and aggregations.
package engine

import (
	"encoding/json"
	"sort"
	"strconv"
)

// Kind discriminates the closed set of value types a document field may hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindList
	KindMap
)

// Value is a tagged union over the JSON scalar and container types. Field
// access goes through the typed accessors so numeric aggregation and term
// comparison stay checked at the boundary.
type Value struct {
	kind Kind
	b    bool
	num  float64
	str  string
	list []Value
	obj  map[string]Value
}

// Document is a schemaless record stored verbatim as the hit source.
type Document map[string]Value

func Null() Value              { return Value{kind: KindNull} }
func Bool(b bool) Value        { return Value{kind: KindBool, b: b} }
func Number(n float64) Value   { return Value{kind: KindNumber, num: n} }
func String(s string) Value    { return Value{kind: KindString, str: s} }
func List(vs ...Value) Value   { return Value{kind: KindList, list: vs} }
func Object(m map[string]Value) Value {
	return Value{kind: KindMap, obj: m}
}

func (v Value) Kind() Kind   { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }

// Str returns the string payload when the value is a string.
func (v Value) Str() (string, bool) {
	return v.str, v.kind == KindString
}

// Num returns the numeric payload when the value is a number.
func (v Value) Num() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// BoolVal returns the boolean payload when the value is a bool.
func (v Value) BoolVal() (bool, bool) {
	return v.b, v.kind == KindBool
}

// ListVal returns the list payload when the value is a list.
func (v Value) ListVal() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// MapVal returns the map payload when the value is a map.
func (v Value) MapVal() (map[string]Value, bool) {
	return v.obj, v.kind == KindMap
}

// Text renders a scalar value as its display string. Containers and nulls
// render empty: they never participate in term matching or bucket keys.
func (v Value) Text() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// AsNumber coerces the value to a float64 where a comparison makes sense:
// numbers directly, numeric strings via parsing. Everything else reports
// false, which makes malformed comparisons evaluate false downstream.
func (v Value) AsNumber() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		n, err := strconv.ParseFloat(v.str, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// Equal reports deep equality between two values.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.num == b.num
	case KindString:
		return a.str == b.str
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.obj) != len(b.obj) {
			return false
		}
		for k, av := range a.obj {
			bv, ok := b.obj[k]
			if !ok || !Equal(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

// Interface converts the value back to plain Go types for JSON encoding.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	case KindMap:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// FromAny converts decoded JSON (any) into a Value. Unknown types map to null.
func FromAny(raw any) Value {
	switch t := raw.(type) {
	case nil:
		return Null()
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case json.Number:
		n, err := t.Float64()
		if err != nil {
			return String(t.String())
		}
		return Number(n)
	case string:
		return String(t)
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = FromAny(item)
		}
		return Value{kind: KindList, list: items}
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			obj[k] = FromAny(item)
		}
		return Value{kind: KindMap, obj: obj}
	default:
		return Null()
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = FromAny(raw)
	return nil
}

// DocumentFromAny converts a decoded JSON object into a Document.
func DocumentFromAny(raw map[string]any) Document {
	doc := make(Document, len(raw))
	for k, v := range raw {
		doc[k] = FromAny(v)
	}
	return doc
}

// Clone returns a shallow copy of the document; field values are immutable
// from the caller's perspective.
func (d Document) Clone() Document {
	out := make(Document, len(d))
	for k, v := range d {
		out[k] = v
	}
	return out
}

// SortedFields returns the document's field names in lexical order. Used to
// keep analysis deterministic regardless of map iteration order.
func (d Document) SortedFields() []string {
	fields := make([]string, 0, len(d))
	for k := range d {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}
