package engine

import (
	"context"
	"testing"

	"orderline/internal/config"
	"orderline/internal/domain"
	"orderline/internal/repo"
	"orderline/internal/tablestore"
)

func TestListOrdersDerivedFields(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	tables := config.Default().Tables
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	store.Seed(tables.Incidents, "recInc1xxxxxxxxxx", tablestore.Fields{
		repo.FieldOrderLink: []string{ids.order},
		repo.FieldStatus:    "Offen",
	})
	store.Seed(tables.Incidents, "recInc2xxxxxxxxxx", tablestore.Fields{
		repo.FieldOrderLink: []string{ids.order},
		repo.FieldStatus:    "Gelöst",
	})

	views, err := e.ListOrders(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(views) != 1 {
		t.Fatalf("got %d orders, want 1", len(views))
	}
	v := views[0]
	if v.OpenIncidents != 1 {
		t.Errorf("open incidents = %d, want 1 (resolved one must not count)", v.OpenIncidents)
	}
	if v.Severity != domain.SeverityYellow {
		t.Errorf("severity = %s, want yellow", v.Severity)
	}
	if v.CurrentStepName != "Auftrag anlegen" {
		t.Errorf("current step name = %q", v.CurrentStepName)
	}
}

func TestGetOrderRedSeverity(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	tables := config.Default().Tables
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		store.Seed(tables.Incidents, "recIncR"+string(rune('0'+i))+"xxxxxxxxx", tablestore.Fields{
			repo.FieldOrderLink: []string{ids.order},
			repo.FieldStatus:    "Offen",
		})
	}
	v, err := e.GetOrder(ctx, ids.order)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v.Severity != domain.SeverityRed {
		t.Errorf("severity = %s, want red", v.Severity)
	}
	// Uninitialized order: no current step, no name, still listable.
	if v.CurrentStepName != "" {
		t.Errorf("current step name = %q, want empty", v.CurrentStepName)
	}
}

func TestStepDetailActionsSorted(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	tables := config.Default().Tables
	ctx := context.Background()

	store.Seed(tables.Actions, "recAct2xxxxxxxxxx", tablestore.Fields{
		repo.FieldName:              "Stückliste anlegen",
		repo.FieldActionStep:        []string{ids.s1},
		repo.FieldActionOrderInStep: 2.0,
	})
	store.Seed(tables.Actions, "recAct1xxxxxxxxxx", tablestore.Fields{
		repo.FieldName:              "Kundendaten erfassen",
		repo.FieldActionStep:        []string{ids.s1},
		repo.FieldActionOrderInStep: 1.0,
		repo.FieldActionMandatory:   true,
	})
	store.Seed(tables.Actions, "recAct3xxxxxxxxxx", tablestore.Fields{
		repo.FieldName:       "Gehört zu Step 2",
		repo.FieldActionStep: []string{ids.s2},
	})

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	order, _ := e.Repo.GetOrder(ctx, ids.order)
	detail, err := e.GetStepDetail(ctx, ids.order, order.CurrentStepID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(detail.Actions))
	}
	if detail.Actions[0].Name != "Kundendaten erfassen" || detail.Actions[1].Name != "Stückliste anlegen" {
		t.Fatalf("actions out of order: %v, %v", detail.Actions[0].Name, detail.Actions[1].Name)
	}
	if detail.Step.Name != "Auftrag anlegen" {
		t.Fatalf("step name %q", detail.Step.Name)
	}
}

func TestGetStepDetailOwnership(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	tables := config.Default().Tables
	ctx := context.Background()

	store.Seed(tables.Orders, "recOrder2xxxxxxxx", tablestore.Fields{
		repo.FieldName: "Auftrag 1002",
	})
	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	order, _ := e.Repo.GetOrder(ctx, ids.order)
	_, err := e.GetStepDetail(ctx, "recOrder2xxxxxxxx", order.CurrentStepID)
	if err != ErrStepMismatch {
		t.Fatalf("got %v, want ErrStepMismatch", err)
	}
}

func TestSwimlaneNamesResolved(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	tables := config.Default().Tables
	ctx := context.Background()

	store.Seed(tables.Lanes, "recLane1xxxxxxxxx", tablestore.Fields{
		repo.FieldName: "Vertrieb",
	})
	// Attach the lane to the first step only.
	if _, err := store.Update(ctx, tables.Steps, []tablestore.Update{{
		ID:     ids.s1,
		Fields: tablestore.Fields{repo.FieldStepLane: []string{"recLane1xxxxxxxxx"}},
	}}); err != nil {
		t.Fatalf("attach lane: %v", err)
	}
	store.Seed(tables.QualityGates, "recQG1xxxxxxxxxxx", tablestore.Fields{
		repo.FieldName:      "QG Vorbereitung",
		repo.FieldStepPhase: []string{ids.p1},
	})

	board, err := e.GetSwimlane(ctx)
	if err != nil {
		t.Fatalf("swimlane: %v", err)
	}
	if len(board.Steps) != 3 {
		t.Fatalf("got %d steps, want 3", len(board.Steps))
	}
	if board.Steps[0].LaneName != "Vertrieb" {
		t.Errorf("lane name %q", board.Steps[0].LaneName)
	}
	if board.Steps[1].LaneName != unknownName {
		t.Errorf("unassigned lane %q, want %q", board.Steps[1].LaneName, unknownName)
	}
	if board.Steps[0].PhaseName != "Vorbereitung" {
		t.Errorf("phase name %q", board.Steps[0].PhaseName)
	}
	if len(board.QualityGates) != 1 || board.QualityGates[0].PhaseName != "Vorbereitung" {
		t.Errorf("quality gates %+v", board.QualityGates)
	}
	if len(board.Lanes) != 2 {
		t.Errorf("lanes %v", board.Lanes)
	}
}
