package tablestore

import (
	"context"
	"errors"
	"testing"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(t.TempDir())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteRoundTrip(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	recs, err := store.Create(ctx, "Aufträge", []Fields{{
		"Name":   "Auftrag 1001",
		"Kunde":  "Müller GmbH",
		"Links":  []string{"recA", "recB"},
		"Anzahl": 3.0,
		"Fertig": true,
	}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(recs) != 1 || recs[0].ID == "" {
		t.Fatalf("create returned %v", recs)
	}

	got, err := store.Find(ctx, "Aufträge", recs[0].ID)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	// Link fields round-trip through JSON as []any; the normalizers must
	// still resolve them.
	if links := Links(got.Fields["Links"]); len(links) != 2 || links[0] != "recA" {
		t.Fatalf("links %v", got.Fields["Links"])
	}
	if String(got.Fields["Kunde"]) != "Müller GmbH" {
		t.Fatalf("kunde %v", got.Fields["Kunde"])
	}
	if Number(got.Fields["Anzahl"]) != 3 || !Bool(got.Fields["Fertig"]) {
		t.Fatalf("fields %v", got.Fields)
	}

	if _, err := store.Find(ctx, "Aufträge", "recMissing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
	if _, err := store.Find(ctx, "OtherTable", recs[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cross-table find got %v, want ErrNotFound", err)
	}
}

func TestSQLiteListFilterSort(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "Steps", []Fields{
		{"Name": "B", "Reihenfolge Global": 2.0, "Für Initialisierung verwenden": true},
		{"Name": "C", "Reihenfolge Global": 3.0},
		{"Name": "A", "Reihenfolge Global": 1.0, "Für Initialisierung verwenden": true},
	}); err != nil {
		t.Fatalf("create: %v", err)
	}

	recs, err := store.List(ctx, "Steps", Query{
		Filter: Filter{{Field: "Für Initialisierung verwenden", Value: true}},
		Sort:   []Sort{{Field: "Reihenfolge Global"}},
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if String(recs[0].Fields["Name"]) != "A" || String(recs[1].Fields["Name"]) != "B" {
		t.Fatalf("order wrong: %v, %v", recs[0].Fields["Name"], recs[1].Fields["Name"])
	}
}

func TestSQLiteUpdateMergesFields(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	recs, err := store.Create(ctx, "T", []Fields{{"Name": "x", "Erledigt?": false}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := store.Update(ctx, "T", []Update{{ID: recs[0].ID, Fields: Fields{"Erledigt?": true}}}); err != nil {
		t.Fatalf("update: %v", err)
	}
	got, _ := store.Find(ctx, "T", recs[0].ID)
	if !Bool(got.Fields["Erledigt?"]) {
		t.Fatal("update lost the flag")
	}
	if String(got.Fields["Name"]) != "x" {
		t.Fatal("update clobbered untouched field")
	}
}

func TestSQLiteUpdateIfEqual(t *testing.T) {
	store := newSQLiteStore(t)
	ctx := context.Background()

	recs, err := store.Create(ctx, "Aufträge", []Fields{{"Init_Steps_Done": false}})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	id := recs[0].ID
	if _, err := store.UpdateIfEqual(ctx, "Aufträge", id, "Init_Steps_Done", false, Fields{"Init_Steps_Done": true}); err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	_, err = store.UpdateIfEqual(ctx, "Aufträge", id, "Init_Steps_Done", false, Fields{"Init_Steps_Done": true})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("got %v, want ErrConflict", err)
	}

	// A guard against an unset link field must match the empty state.
	if _, err := store.UpdateIfEqual(ctx, "Aufträge", id, "Aktueller Auftragsschritt", "", Fields{
		"Aktueller Auftragsschritt": []string{"recStep1"},
	}); err != nil {
		t.Fatalf("empty-guard update: %v", err)
	}
	_, err = store.UpdateIfEqual(ctx, "Aufträge", id, "Aktueller Auftragsschritt", "", Fields{
		"Aktueller Auftragsschritt": []string{"recStep2"},
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("stale empty guard got %v, want ErrConflict", err)
	}
}
