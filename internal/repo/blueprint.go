package repo

import (
	"context"

	"orderline/internal/domain"
	"orderline/internal/tablestore"
)

// PhasesForInit lists blueprint phases flagged for initialization, ordered by
// their sequence number.
func (r Repo) PhasesForInit(ctx context.Context) ([]domain.Phase, error) {
	recs, err := r.Store.List(ctx, r.Tables.Phases, tablestore.Query{
		Filter: tablestore.Filter{{Field: FieldPhaseUseInit, Value: true}},
		Sort:   []tablestore.Sort{{Field: FieldPhaseOrder}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Phase, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodePhase(rec))
	}
	return out, nil
}

// StepsForInit lists blueprint steps flagged for initialization, ordered by
// global sequence.
func (r Repo) StepsForInit(ctx context.Context) ([]domain.Step, error) {
	recs, err := r.Store.List(ctx, r.Tables.Steps, tablestore.Query{
		Filter: tablestore.Filter{{Field: FieldStepUseInit, Value: true}},
		Sort:   []tablestore.Sort{{Field: FieldStepGlobalOrder}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Step, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeStep(rec))
	}
	return out, nil
}

// ListPhases returns all blueprint phases in sequence order.
func (r Repo) ListPhases(ctx context.Context) ([]domain.Phase, error) {
	recs, err := r.Store.List(ctx, r.Tables.Phases, tablestore.Query{
		Sort: []tablestore.Sort{{Field: FieldPhaseOrder}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Phase, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodePhase(rec))
	}
	return out, nil
}

// ListSteps returns all blueprint steps in global sequence order.
func (r Repo) ListSteps(ctx context.Context) ([]domain.Step, error) {
	recs, err := r.Store.List(ctx, r.Tables.Steps, tablestore.Query{
		Sort: []tablestore.Sort{{Field: FieldStepGlobalOrder}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Step, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeStep(rec))
	}
	return out, nil
}

func (r Repo) GetStep(ctx context.Context, id string) (domain.Step, error) {
	rec, err := r.Store.Find(ctx, r.Tables.Steps, id)
	if err != nil {
		return domain.Step{}, err
	}
	return decodeStep(rec), nil
}

func (r Repo) ListLanes(ctx context.Context) ([]domain.Lane, error) {
	recs, err := r.Store.List(ctx, r.Tables.Lanes, tablestore.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Lane, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeLane(rec))
	}
	return out, nil
}

// ListActions returns all blueprint actions. Callers filter by step in code;
// link-field filter formulas are unreliable against the hosted store.
func (r Repo) ListActions(ctx context.Context) ([]domain.Action, error) {
	recs, err := r.Store.List(ctx, r.Tables.Actions, tablestore.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Action, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeAction(rec))
	}
	return out, nil
}

// ListGateItems returns all gate-item templates.
func (r Repo) ListGateItems(ctx context.Context) ([]domain.GateItem, error) {
	recs, err := r.Store.List(ctx, r.Tables.GateItems, tablestore.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.GateItem, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeGateItem(rec))
	}
	return out, nil
}

// ListQualityGates returns the named gates shown on the board.
func (r Repo) ListQualityGates(ctx context.Context) ([]domain.QualityGate, error) {
	recs, err := r.Store.List(ctx, r.Tables.QualityGates, tablestore.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.QualityGate, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeQualityGate(rec))
	}
	return out, nil
}
