package tablestore

import (
	"context"
	"errors"
)

// MaxBatch is the largest number of records the backing store accepts in a
// single create or update call. Larger batches must go through
// CreateInBatches / UpdateInBatches.
const MaxBatch = 10

var ErrNotFound = errors.New("record not found")

// Fields holds the column values of one record. Link columns are []string of
// record ids; checkbox columns are bool (or 1/0 from formula-backed columns).
type Fields map[string]any

// Record is a stored row.
type Record struct {
	ID     string
	Fields Fields
}

// Cond matches records whose field equals a value. A []string field matches
// when it contains the value.
type Cond struct {
	Field string
	Value any
}

// Filter is the conjunction of its conditions.
type Filter []Cond

// Sort orders a listing by one field.
type Sort struct {
	Field string
	Desc  bool
}

// Query narrows and orders a List call.
type Query struct {
	Filter Filter
	Sort   []Sort
}

// Update replaces the given fields of one record, leaving others untouched.
type Update struct {
	ID     string
	Fields Fields
}

// Store is the narrow interface over a hosted tabular backend. All workflow
// state lives behind it; the engine never sees a concrete backend.
type Store interface {
	Find(ctx context.Context, table, id string) (Record, error)
	List(ctx context.Context, table string, q Query) ([]Record, error)
	Create(ctx context.Context, table string, fields []Fields) ([]Record, error)
	Update(ctx context.Context, table string, ups []Update) ([]Record, error)
}

// Guarded is implemented by stores that can update a single record only while
// a guard field still holds an expected value. ErrConflict is returned when
// the guard fails.
type Guarded interface {
	UpdateIfEqual(ctx context.Context, table, id, guardField string, guardValue any, fields Fields) (Record, error)
}

var ErrConflict = errors.New("guarded update conflict")

// CreateInBatches chunks fields into sequential Create calls of at most
// MaxBatch records. Chunks stay ordered so the returned records map back to
// the inputs by index.
func CreateInBatches(ctx context.Context, s Store, table string, fields []Fields) ([]Record, error) {
	var out []Record
	for start := 0; start < len(fields); start += MaxBatch {
		end := start + MaxBatch
		if end > len(fields) {
			end = len(fields)
		}
		recs, err := s.Create(ctx, table, fields[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// UpdateInBatches chunks updates into sequential Update calls of at most
// MaxBatch records.
func UpdateInBatches(ctx context.Context, s Store, table string, ups []Update) ([]Record, error) {
	var out []Record
	for start := 0; start < len(ups); start += MaxBatch {
		end := start + MaxBatch
		if end > len(ups) {
			end = len(ups)
		}
		recs, err := s.Update(ctx, table, ups[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, recs...)
	}
	return out, nil
}

// Matches reports whether the record satisfies every condition.
func (f Filter) Matches(r Record) bool {
	for _, c := range f {
		if !fieldEquals(r.Fields[c.Field], c.Value) {
			return false
		}
	}
	return true
}

func fieldEquals(have, want any) bool {
	// An empty guard matches an unset or empty field: a cleared link column
	// may surface as nil, "" or an empty array depending on the backend.
	if want == nil || want == "" {
		switch v := have.(type) {
		case nil:
			return true
		case string:
			return v == ""
		case []string:
			return len(v) == 0
		case []any:
			return len(v) == 0
		}
	}
	switch v := have.(type) {
	case []string:
		for _, s := range v {
			if valueEquals(s, want) {
				return true
			}
		}
		return false
	case []any:
		for _, s := range v {
			if valueEquals(s, want) {
				return true
			}
		}
		return false
	default:
		return valueEquals(have, want)
	}
}

func valueEquals(have, want any) bool {
	if have == nil {
		// An unset checkbox equals false.
		if b, ok := want.(bool); ok {
			return !b
		}
		return want == nil
	}
	if toNumber(have) != nil && toNumber(want) != nil {
		return *toNumber(have) == *toNumber(want)
	}
	if hb, ok := have.(bool); ok {
		if wb, ok := want.(bool); ok {
			return hb == wb
		}
		// Formula-backed checkboxes surface as 1/0.
		if wn := toNumber(want); wn != nil {
			return hb == (*wn != 0)
		}
	}
	if wb, ok := want.(bool); ok {
		if hn := toNumber(have); hn != nil {
			return wb == (*hn != 0)
		}
	}
	return have == want
}

func toNumber(v any) *float64 {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	default:
		return nil
	}
	return &f
}

// Bool normalizes a checkbox field that may arrive as bool, number or a
// one-element lookup array.
func Bool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case []any:
		return len(b) > 0 && Bool(b[0])
	case []string:
		return false
	default:
		if n := toNumber(v); n != nil {
			return *n != 0
		}
		return false
	}
}

// Number normalizes a numeric field, returning 0 when unset.
func Number(v any) float64 {
	if n := toNumber(v); n != nil {
		return *n
	}
	return 0
}

// String normalizes a text field, returning "" when unset.
func String(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// FirstLink returns the first id of a link field, which may arrive as
// []string, []any or a bare string.
func FirstLink(v any) string {
	switch l := v.(type) {
	case []string:
		if len(l) > 0 {
			return l[0]
		}
	case []any:
		if len(l) > 0 {
			return String(l[0])
		}
	case string:
		return l
	}
	return ""
}

// Links returns all ids of a link field.
func Links(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s := String(e); s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if l != "" {
			return []string{l}
		}
	}
	return nil
}
