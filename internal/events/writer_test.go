package events

import (
	"context"
	"testing"
	"time"

	"orderline/internal/tablestore"
)

func TestAppendWritesRecord(t *testing.T) {
	store := tablestore.NewMemStore()
	w := Writer{
		Store: store,
		Table: "Events",
		Now:   func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) },
	}
	w.Append(context.Background(), "order.initialized", "recOrder1", EventPayload{"steps": 3})

	recs, err := store.List(context.Background(), "Events", tablestore.Query{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d events, want 1", len(recs))
	}
	f := recs[0].Fields
	if tablestore.String(f["Type"]) != "order.initialized" {
		t.Errorf("type %v", f["Type"])
	}
	if tablestore.FirstLink(f["Auftrag"]) != "recOrder1" {
		t.Errorf("order link %v", f["Auftrag"])
	}
	if tablestore.String(f["TS"]) != "2024-05-01T12:00:00Z" {
		t.Errorf("timestamp %v", f["TS"])
	}
}

func TestAppendNoTableIsNoop(t *testing.T) {
	store := tablestore.NewMemStore()
	w := Writer{Store: store}
	w.Append(context.Background(), "step.completed", "recOrder1", nil)

	recs, _ := store.List(context.Background(), "Events", tablestore.Query{})
	if len(recs) != 0 {
		t.Fatalf("no-op writer created %d records", len(recs))
	}
}
