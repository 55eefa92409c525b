package tablestore

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemStore is an in-process Store used in tests and demo mode. Listings
// return records in insertion order unless sorted.
type MemStore struct {
	mu     sync.Mutex
	tables map[string][]Record
}

func NewMemStore() *MemStore {
	return &MemStore{tables: map[string][]Record{}}
}

func (m *MemStore) Find(ctx context.Context, table, id string) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tables[table] {
		if rec.ID == id {
			return cloneRecord(rec), nil
		}
	}
	return Record{}, ErrNotFound
}

func (m *MemStore) List(ctx context.Context, table string, q Query) ([]Record, error) {
	m.mu.Lock()
	var out []Record
	for _, rec := range m.tables[table] {
		if q.Filter.Matches(rec) {
			out = append(out, cloneRecord(rec))
		}
	}
	m.mu.Unlock()
	sortRecords(out, q.Sort)
	return out, nil
}

func (m *MemStore) Create(ctx context.Context, table string, fields []Fields) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, f := range fields {
		rec := Record{ID: "rec" + strings.ReplaceAll(uuid.New().String(), "-", "")[:14], Fields: cloneFields(f)}
		m.tables[table] = append(m.tables[table], rec)
		out = append(out, cloneRecord(rec))
	}
	return out, nil
}

func (m *MemStore) Update(ctx context.Context, table string, ups []Update) ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Record
	for _, up := range ups {
		rec, err := m.applyLocked(table, up.ID, up.Fields)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// UpdateIfEqual performs an atomic compare-and-swap under the store lock.
func (m *MemStore) UpdateIfEqual(ctx context.Context, table, id, guardField string, guardValue any, fields Fields) (Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range m.tables[table] {
		if rec.ID != id {
			continue
		}
		if !fieldEquals(rec.Fields[guardField], guardValue) {
			return Record{}, ErrConflict
		}
		return m.applyLocked(table, id, fields)
	}
	return Record{}, ErrNotFound
}

func (m *MemStore) applyLocked(table, id string, fields Fields) (Record, error) {
	recs := m.tables[table]
	for i := range recs {
		if recs[i].ID == id {
			for k, v := range fields {
				recs[i].Fields[k] = v
			}
			return cloneRecord(recs[i]), nil
		}
	}
	return Record{}, ErrNotFound
}

// Seed inserts a record with a caller-chosen id, for test fixtures.
func (m *MemStore) Seed(table, id string, fields Fields) Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := Record{ID: id, Fields: cloneFields(fields)}
	m.tables[table] = append(m.tables[table], rec)
	return cloneRecord(rec)
}

func sortRecords(recs []Record, sorts []Sort) {
	if len(sorts) == 0 {
		return
	}
	sort.SliceStable(recs, func(i, j int) bool {
		for _, s := range sorts {
			a, b := recs[i].Fields[s.Field], recs[j].Fields[s.Field]
			cmp := compareValues(a, b)
			if cmp == 0 {
				continue
			}
			if s.Desc {
				return cmp > 0
			}
			return cmp < 0
		}
		return false
	})
}

func compareValues(a, b any) int {
	an, bn := toNumber(a), toNumber(b)
	if an != nil && bn != nil {
		switch {
		case *an < *bn:
			return -1
		case *an > *bn:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(String(a), String(b))
}

func cloneRecord(rec Record) Record {
	return Record{ID: rec.ID, Fields: cloneFields(rec.Fields)}
}

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		if links, ok := v.([]string); ok {
			v = append([]string(nil), links...)
		}
		out[k] = v
	}
	return out
}
