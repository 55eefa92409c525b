package repo

import (
	"context"
	"testing"

	"orderline/internal/config"
	"orderline/internal/domain"
	"orderline/internal/tablestore"
)

func TestIncidentOpen(t *testing.T) {
	cases := []struct {
		status string
		open   bool
	}{
		{"Offen", true},
		{"In Arbeit", true},
		{"Gelöst", false},
		{"gelöst", false},
		{"Closed", false},
		{"CLOSED", false},
		{"", true},
	}
	for _, tc := range cases {
		inc := domain.Incident{Status: tc.status}
		if got := IncidentOpen(inc); got != tc.open {
			t.Errorf("IncidentOpen(%q) = %v, want %v", tc.status, got, tc.open)
		}
	}
}

func TestOpenIncidentsByOrder(t *testing.T) {
	store := tablestore.NewMemStore()
	tables := config.Default().Tables
	r := New(store, tables)
	ctx := context.Background()

	store.Seed(tables.Incidents, "recInc1", tablestore.Fields{
		FieldOrderLink: []string{"recA"},
		FieldStatus:    "Offen",
	})
	store.Seed(tables.Incidents, "recInc2", tablestore.Fields{
		FieldOrderLink: []string{"recA", "recB"},
		FieldStatus:    "In Arbeit",
	})
	store.Seed(tables.Incidents, "recInc3", tablestore.Fields{
		FieldOrderLink: []string{"recA"},
		FieldStatus:    "Gelöst",
	})

	counts, err := r.OpenIncidentsByOrder(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["recA"] != 2 {
		t.Errorf("recA = %d, want 2", counts["recA"])
	}
	if counts["recB"] != 1 {
		t.Errorf("recB = %d, want 1", counts["recB"])
	}
}

// A base without an incidents table must not break order listings.
func TestListIncidentsMissingTable(t *testing.T) {
	tables := config.Default().Tables
	r := New(notFoundStore{}, tables)
	incidents, err := r.ListIncidents(context.Background())
	if err != nil {
		t.Fatalf("missing table surfaced as error: %v", err)
	}
	if incidents != nil {
		t.Fatalf("got %v, want nil", incidents)
	}
}

type notFoundStore struct{}

func (notFoundStore) Find(ctx context.Context, table, id string) (tablestore.Record, error) {
	return tablestore.Record{}, tablestore.ErrNotFound
}

func (notFoundStore) List(ctx context.Context, table string, q tablestore.Query) ([]tablestore.Record, error) {
	return nil, tablestore.ErrNotFound
}

func (notFoundStore) Create(ctx context.Context, table string, fields []tablestore.Fields) ([]tablestore.Record, error) {
	return nil, tablestore.ErrNotFound
}

func (notFoundStore) Update(ctx context.Context, table string, ups []tablestore.Update) ([]tablestore.Record, error) {
	return nil, tablestore.ErrNotFound
}
