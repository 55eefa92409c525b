package engine

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"orderline/internal/config"
	"orderline/internal/events"
	"orderline/internal/repo"
	"orderline/internal/tablestore"
)

func newTestEnv(t *testing.T) (*tablestore.MemStore, Engine) {
	t.Helper()
	store := tablestore.NewMemStore()
	cfg := config.Default()
	e := New(repo.New(store, cfg.Tables), events.Writer{}, zap.NewNop())
	return store, e
}

// blueprintIDs names the fixture records: two phases, three steps S1 -> S2 ->
// S3 where S2 closes phase one, and two gate items on phase one.
type blueprintIDs struct {
	p1, p2     string
	s1, s2, s3 string
	g1, g2     string
	order      string
}

func seedBlueprint(t *testing.T, store *tablestore.MemStore) blueprintIDs {
	t.Helper()
	tables := config.Default().Tables
	ids := blueprintIDs{
		p1: "recPhase1xxxxxxxx", p2: "recPhase2xxxxxxxx",
		s1: "recStep1xxxxxxxxx", s2: "recStep2xxxxxxxxx", s3: "recStep3xxxxxxxxx",
		g1: "recGate1xxxxxxxxx", g2: "recGate2xxxxxxxxx",
		order: "recOrder1xxxxxxxx",
	}
	store.Seed(tables.Phases, ids.p1, tablestore.Fields{
		repo.FieldName:         "Vorbereitung",
		repo.FieldPhaseOrder:   1.0,
		repo.FieldPhaseUseInit: true,
	})
	store.Seed(tables.Phases, ids.p2, tablestore.Fields{
		repo.FieldName:         "Umsetzung",
		repo.FieldPhaseOrder:   2.0,
		repo.FieldPhaseUseInit: true,
	})
	store.Seed(tables.Steps, ids.s1, tablestore.Fields{
		repo.FieldName:            "Auftrag anlegen",
		repo.FieldStepGlobalOrder: 1.0,
		repo.FieldStepPhase:       []string{ids.p1},
		repo.FieldStepNext:        []string{ids.s2},
		repo.FieldStepUseInit:     true,
	})
	store.Seed(tables.Steps, ids.s2, tablestore.Fields{
		repo.FieldName:            "Unterlagen prüfen",
		repo.FieldStepGlobalOrder: 2.0,
		repo.FieldStepPhase:       []string{ids.p1},
		repo.FieldStepNext:        []string{ids.s3},
		repo.FieldStepLastOfPhase: true,
		repo.FieldStepUseInit:     true,
	})
	store.Seed(tables.Steps, ids.s3, tablestore.Fields{
		repo.FieldName:            "Fertigung starten",
		repo.FieldStepGlobalOrder: 3.0,
		repo.FieldStepPhase:       []string{ids.p2},
		repo.FieldStepLastOfPhase: true,
		repo.FieldStepUseInit:     true,
	})
	store.Seed(tables.GateItems, ids.g1, tablestore.Fields{
		repo.FieldName:       "Zeichnung freigegeben",
		repo.FieldStepPhase:  []string{ids.p1},
		repo.FieldPhaseOrder: 1.0,
	})
	store.Seed(tables.GateItems, ids.g2, tablestore.Fields{
		repo.FieldName:       "Material bestellt",
		repo.FieldStepPhase:  []string{ids.p1},
		repo.FieldPhaseOrder: 2.0,
	})
	store.Seed(tables.Orders, ids.order, tablestore.Fields{
		repo.FieldName:     "Auftrag 1001",
		repo.FieldCustomer: "Müller GmbH",
		repo.FieldStatus:   "Aktiv",
		repo.FieldPriority: "Mittel",
	})
	return ids
}

func TestInitializeClonesBlueprint(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	res, err := e.Initialize(ctx, ids.order)
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if res.CreatedPhases != 2 || res.CreatedSteps != 3 || res.CreatedGateItems != 2 {
		t.Fatalf("got %+v, want 2 phases, 3 steps, 2 gate items", res)
	}

	order, err := e.Repo.GetOrder(ctx, ids.order)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if !order.InitStepsDone || !order.InitPhasesDone {
		t.Fatalf("init flags not set: %+v", order)
	}
	if order.CurrentStepID == "" {
		t.Fatal("current step pointer not set")
	}

	// The pointer must land on the clone of the first blueprint step, and the
	// clone chain must mirror S1 -> S2 -> S3.
	first, err := e.Repo.GetOrderStep(ctx, order.CurrentStepID)
	if err != nil {
		t.Fatalf("get first order step: %v", err)
	}
	if first.StepID != ids.s1 {
		t.Fatalf("pointer is clone of %s, want clone of %s", first.StepID, ids.s1)
	}
	second, err := e.Repo.GetOrderStep(ctx, first.NextOrderStepID)
	if err != nil {
		t.Fatalf("follow chain to second step: %v", err)
	}
	if second.StepID != ids.s2 {
		t.Fatalf("second clone is of %s, want %s", second.StepID, ids.s2)
	}
	third, err := e.Repo.GetOrderStep(ctx, second.NextOrderStepID)
	if err != nil {
		t.Fatalf("follow chain to third step: %v", err)
	}
	if third.StepID != ids.s3 {
		t.Fatalf("third clone is of %s, want %s", third.StepID, ids.s3)
	}
	if third.NextOrderStepID != "" {
		t.Fatalf("terminal clone has next pointer %q", third.NextOrderStepID)
	}
}

func TestInitializeTwiceRejected(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("first initialize: %v", err)
	}
	_, err := e.Initialize(ctx, ids.order)
	if !errors.Is(err, ErrAlreadyInitialized) {
		t.Fatalf("second initialize: got %v, want ErrAlreadyInitialized", err)
	}

	// No extra clones may have appeared.
	steps, err := e.Repo.ListOrderSteps(ctx, ids.order)
	if err != nil {
		t.Fatalf("list order steps: %v", err)
	}
	if len(steps) != 3 {
		t.Fatalf("got %d order steps after double init, want 3", len(steps))
	}
}

func TestInitializeRequiresFlaggedSteps(t *testing.T) {
	store, e := newTestEnv(t)
	tables := config.Default().Tables
	store.Seed(tables.Orders, "recEmptyOrderxxxx", tablestore.Fields{
		repo.FieldName: "Leerer Auftrag",
	})
	_, err := e.Initialize(context.Background(), "recEmptyOrderxxxx")
	if err == nil {
		t.Fatal("initialize with empty blueprint succeeded")
	}
}

func TestInitializeMissingOrder(t *testing.T) {
	store, e := newTestEnv(t)
	seedBlueprint(t, store)
	_, err := e.Initialize(context.Background(), "recDoesNotExistxx")
	if !repo.IsNotFound(err) {
		t.Fatalf("got %v, want not-found", err)
	}
}

func TestCompleteAdvancesPointer(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	order, _ := e.Repo.GetOrder(ctx, ids.order)
	firstID := order.CurrentStepID

	res, err := e.Complete(ctx, ids.order, firstID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	order, _ = e.Repo.GetOrder(ctx, ids.order)
	if order.CurrentStepID != res.NextStepID {
		t.Fatalf("pointer %s, want %s", order.CurrentStepID, res.NextStepID)
	}
	done, err := e.Repo.GetOrderStep(ctx, firstID)
	if err != nil {
		t.Fatalf("get completed step: %v", err)
	}
	if !done.Done {
		t.Fatal("completed step not marked done")
	}
	next, _ := e.Repo.GetOrderStep(ctx, res.NextStepID)
	if next.StepID != ids.s2 {
		t.Fatalf("advanced to clone of %s, want %s", next.StepID, ids.s2)
	}
}

func TestCompleteEnforcesQualityGate(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	order, _ := e.Repo.GetOrder(ctx, ids.order)
	if _, err := e.Complete(ctx, ids.order, order.CurrentStepID); err != nil {
		t.Fatalf("complete first step: %v", err)
	}
	order, _ = e.Repo.GetOrder(ctx, ids.order)
	gateStepID := order.CurrentStepID

	// S2 closes phase one; both gate items are still open.
	_, err := e.Complete(ctx, ids.order, gateStepID)
	if !errors.Is(err, ErrGateIncomplete) {
		t.Fatalf("got %v, want ErrGateIncomplete", err)
	}
	order, _ = e.Repo.GetOrder(ctx, ids.order)
	if order.CurrentStepID != gateStepID {
		t.Fatal("gate rejection moved the pointer")
	}

	step, _ := e.Repo.GetOrderStep(ctx, gateStepID)
	items, err := e.Repo.ListOrderGateItems(ctx, step.OrderPhaseID)
	if err != nil {
		t.Fatalf("list gate items: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("got %d gate items, want 2", len(items))
	}
	// One done is not enough.
	if err := e.SetGateItemDone(ctx, ids.order, items[0].ID, true); err != nil {
		t.Fatalf("set gate item: %v", err)
	}
	if _, err := e.Complete(ctx, ids.order, gateStepID); !errors.Is(err, ErrGateIncomplete) {
		t.Fatalf("got %v with one open item, want ErrGateIncomplete", err)
	}
	if err := e.SetGateItemDone(ctx, ids.order, items[1].ID, true); err != nil {
		t.Fatalf("set gate item: %v", err)
	}
	if _, err := e.Complete(ctx, ids.order, gateStepID); err != nil {
		t.Fatalf("complete with full gate: %v", err)
	}
}

func TestCompleteTerminalStep(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	lastID, err := e.ResolveOrderStep(ctx, ids.order, ids.s3)
	if err != nil {
		t.Fatalf("resolve terminal step: %v", err)
	}
	// S3 closes phase two, which has no gate items: the gate passes vacuously
	// and the failure must be the missing next pointer.
	_, err = e.Complete(ctx, ids.order, lastID)
	if !errors.Is(err, ErrNoNextStep) {
		t.Fatalf("got %v, want ErrNoNextStep", err)
	}
}

func TestCompleteRejectsForeignStep(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	tables := config.Default().Tables
	ctx := context.Background()

	store.Seed(tables.Orders, "recOrder2xxxxxxxx", tablestore.Fields{
		repo.FieldName: "Auftrag 1002",
	})
	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize first order: %v", err)
	}
	if _, err := e.Initialize(ctx, "recOrder2xxxxxxxx"); err != nil {
		t.Fatalf("initialize second order: %v", err)
	}
	foreign, err := e.ResolveOrderStep(ctx, "recOrder2xxxxxxxx", ids.s1)
	if err != nil {
		t.Fatalf("resolve foreign step: %v", err)
	}
	before, _ := e.Repo.GetOrder(ctx, ids.order)
	if _, err := e.Complete(ctx, ids.order, foreign); !errors.Is(err, ErrStepMismatch) {
		t.Fatalf("got %v, want ErrStepMismatch", err)
	}
	after, _ := e.Repo.GetOrder(ctx, ids.order)
	if after.CurrentStepID != before.CurrentStepID {
		t.Fatal("rejected completion moved the pointer")
	}
	foreignStep, _ := e.Repo.GetOrderStep(ctx, foreign)
	if foreignStep.Done {
		t.Fatal("rejected completion marked the foreign step done")
	}
}

func TestGateOKVacuousWithoutItems(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	lastID, _ := e.ResolveOrderStep(ctx, ids.order, ids.s3)
	step, _ := e.Repo.GetOrderStep(ctx, lastID)
	ok, err := e.GateOK(ctx, step.OrderPhaseID)
	if err != nil {
		t.Fatalf("gate check: %v", err)
	}
	if !ok {
		t.Fatal("phase without gate items must pass")
	}
}

func TestSetGateItemDoneOwnership(t *testing.T) {
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
	step, _ := e.Repo.GetOrderStep(ctx, order.CurrentStepID)
	items, _ := e.Repo.ListOrderGateItems(ctx, step.OrderPhaseID)
	if len(items) == 0 {
		t.Fatal("fixture has no gate items")
	}
	err := e.SetGateItemDone(ctx, "recOrder2xxxxxxxx", items[0].ID, true)
	if !errors.Is(err, ErrGateItemMismatch) {
		t.Fatalf("got %v, want ErrGateItemMismatch", err)
	}
	got, _ := e.Repo.GetOrderGateItem(ctx, items[0].ID)
	if got.Done {
		t.Fatal("rejected toggle still flipped the item")
	}
}

func TestResolveOrderStep(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	got, err := e.ResolveOrderStep(ctx, ids.order, ids.s2)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	step, err := e.Repo.GetOrderStep(ctx, got)
	if err != nil {
		t.Fatalf("get resolved step: %v", err)
	}
	if step.StepID != ids.s2 {
		t.Fatalf("resolved clone of %s, want %s", step.StepID, ids.s2)
	}
	if _, err := e.ResolveOrderStep(ctx, ids.order, "recNoSuchStepxxxx"); !repo.IsNotFound(err) {
		t.Fatalf("got %v for unknown blueprint step, want not-found", err)
	}
}

// TestWalkWholeOrder drives one order from creation to the terminal step.
func TestWalkWholeOrder(t *testing.T) {
	store, e := newTestEnv(t)
	ids := seedBlueprint(t, store)
	ctx := context.Background()

	if _, err := e.Initialize(ctx, ids.order); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	// Step 1: plain completion.
	order, _ := e.Repo.GetOrder(ctx, ids.order)
	if _, err := e.Complete(ctx, ids.order, order.CurrentStepID); err != nil {
		t.Fatalf("complete step 1: %v", err)
	}

	// Step 2: blocked until the gate is done.
	order, _ = e.Repo.GetOrder(ctx, ids.order)
	step, _ := e.Repo.GetOrderStep(ctx, order.CurrentStepID)
	items, _ := e.Repo.ListOrderGateItems(ctx, step.OrderPhaseID)
	for _, item := range items {
		if err := e.SetGateItemDone(ctx, ids.order, item.ID, true); err != nil {
			t.Fatalf("gate item: %v", err)
		}
	}
	if _, err := e.Complete(ctx, ids.order, order.CurrentStepID); err != nil {
		t.Fatalf("complete step 2: %v", err)
	}

	// Step 3: terminal.
	order, _ = e.Repo.GetOrder(ctx, ids.order)
	if _, err := e.Complete(ctx, ids.order, order.CurrentStepID); !errors.Is(err, ErrNoNextStep) {
		t.Fatalf("complete terminal step: got %v, want ErrNoNextStep", err)
	}

	// The first two clones are done, the last is not.
	steps, _ := e.Repo.ListOrderSteps(ctx, ids.order)
	doneCount := 0
	for _, s := range steps {
		if s.Done {
			doneCount++
		}
	}
	if doneCount != 2 {
		t.Fatalf("got %d done steps, want 2", doneCount)
	}
}
