package repo

import (
	"context"

	"orderline/internal/domain"
	"orderline/internal/tablestore"
)

// CreateOrderPhases clones the given blueprint phases for one order, chunked
// into batches of at most ten. The returned instances are index-aligned with
// the input phases.
func (r Repo) CreateOrderPhases(ctx context.Context, orderID string, phases []domain.Phase) ([]domain.OrderPhase, error) {
	fields := make([]tablestore.Fields, 0, len(phases))
	for _, p := range phases {
		fields = append(fields, tablestore.Fields{
			FieldOrderLink: []string{orderID},
			FieldStepPhase: []string{p.ID},
		})
	}
	recs, err := tablestore.CreateInBatches(ctx, r.Store, r.Tables.OrderPhases, fields)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderPhase, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeOrderPhase(rec))
	}
	return out, nil
}

// CreateOrderSteps clones the given blueprint steps for one order, resolving
// each step's phase through the blueprint-phase -> order-phase mapping. Steps
// whose phase was not instantiated get an empty phase link, matching the
// source behavior.
func (r Repo) CreateOrderSteps(ctx context.Context, orderID string, steps []domain.Step, orderPhaseByPhase map[string]string) ([]domain.OrderStep, error) {
	fields := make([]tablestore.Fields, 0, len(steps))
	for _, s := range steps {
		f := tablestore.Fields{
			FieldOrderLink:  []string{orderID},
			FieldActionStep: []string{s.ID},
		}
		if orderPhaseID := orderPhaseByPhase[s.PhaseID]; orderPhaseID != "" {
			f[FieldOrderPhaseLink] = []string{orderPhaseID}
		} else {
			f[FieldOrderPhaseLink] = []string{}
		}
		if s.PhaseID != "" {
			f[FieldPhaseLink] = []string{s.PhaseID}
		}
		fields = append(fields, f)
	}
	recs, err := tablestore.CreateInBatches(ctx, r.Store, r.Tables.OrderSteps, fields)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderStep, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeOrderStep(rec))
	}
	return out, nil
}

// OrderGateItemSpec describes one gate-item instance to create.
type OrderGateItemSpec struct {
	OrderID      string
	OrderPhaseID string
	GateItemID   string
	Order        float64
}

// CreateOrderGateItems clones gate-item templates for the instantiated
// order-phases, chunked into batches of at most ten.
func (r Repo) CreateOrderGateItems(ctx context.Context, specs []OrderGateItemSpec) ([]domain.OrderGateItem, error) {
	fields := make([]tablestore.Fields, 0, len(specs))
	for _, spec := range specs {
		fields = append(fields, tablestore.Fields{
			FieldOrderLink:      []string{spec.OrderID},
			FieldGateOrderPhase: []string{spec.OrderPhaseID},
			FieldGateItemLink:   []string{spec.GateItemID},
			FieldGateSortOrder:  spec.Order,
		})
	}
	recs, err := tablestore.CreateInBatches(ctx, r.Store, r.Tables.OrderGateItems, fields)
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderGateItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeOrderGateItem(rec))
	}
	return out, nil
}

// SetOrderStepNext wires one cloned step to its successor.
func (r Repo) SetOrderStepNext(ctx context.Context, orderStepID, nextOrderStepID string) error {
	_, err := r.Store.Update(ctx, r.Tables.OrderSteps, []tablestore.Update{{
		ID:     orderStepID,
		Fields: tablestore.Fields{FieldNextOrderStep: []string{nextOrderStepID}},
	}})
	return err
}

// MarkOrderStepDone flags a completed step.
func (r Repo) MarkOrderStepDone(ctx context.Context, orderStepID string) error {
	_, err := r.Store.Update(ctx, r.Tables.OrderSteps, []tablestore.Update{{
		ID:     orderStepID,
		Fields: tablestore.Fields{FieldStepDone: true},
	}})
	return err
}

// ListOrderGateItems lists the gate-item instances of one order-phase, in
// sort order.
func (r Repo) ListOrderGateItems(ctx context.Context, orderPhaseID string) ([]domain.OrderGateItem, error) {
	recs, err := r.Store.List(ctx, r.Tables.OrderGateItems, tablestore.Query{
		Filter: tablestore.Filter{{Field: FieldGateOrderPhase, Value: orderPhaseID}},
		Sort:   []tablestore.Sort{{Field: FieldGateSortOrder}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderGateItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeOrderGateItem(rec))
	}
	return out, nil
}

func (r Repo) GetOrderGateItem(ctx context.Context, id string) (domain.OrderGateItem, error) {
	rec, err := r.Store.Find(ctx, r.Tables.OrderGateItems, id)
	if err != nil {
		return domain.OrderGateItem{}, err
	}
	return decodeOrderGateItem(rec), nil
}

// SetGateItemDone toggles the only mutable field of a gate-item instance.
func (r Repo) SetGateItemDone(ctx context.Context, id string, done bool) error {
	_, err := r.Store.Update(ctx, r.Tables.OrderGateItems, []tablestore.Update{{
		ID:     id,
		Fields: tablestore.Fields{FieldGateItemDone: done},
	}})
	return err
}
