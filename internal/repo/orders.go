package repo

import (
	"context"

	"orderline/internal/domain"
	"orderline/internal/tablestore"
)

func (r Repo) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	rec, err := r.Store.Find(ctx, r.Tables.Orders, id)
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(rec), nil
}

func (r Repo) ListOrders(ctx context.Context) ([]domain.Order, error) {
	recs, err := r.Store.List(ctx, r.Tables.Orders, tablestore.Query{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeOrder(rec))
	}
	return out, nil
}

// CreateOrderOptions carries the user-supplied fields of a new order.
type CreateOrderOptions struct {
	Name      string
	Customer  string
	Priority  string
	ProcessID string
}

// CreateOrder inserts a new order with the source system's defaults:
// priority "Mittel", status "Aktiv".
func (r Repo) CreateOrder(ctx context.Context, opts CreateOrderOptions) (domain.Order, error) {
	priority := opts.Priority
	if priority == "" {
		priority = "Mittel"
	}
	fields := tablestore.Fields{
		FieldName:     opts.Name,
		FieldCustomer: opts.Customer,
		FieldPriority: priority,
		FieldStatus:   "Aktiv",
	}
	if opts.ProcessID != "" {
		fields[FieldProcess] = []string{opts.ProcessID}
	}
	recs, err := r.Store.Create(ctx, r.Tables.Orders, []tablestore.Fields{fields})
	if err != nil {
		return domain.Order{}, err
	}
	return decodeOrder(recs[0]), nil
}

// FinishInit points the order at its first instantiated step and sets both
// init-done flags. When the store supports guarded updates the write is
// rejected if another initializer got there first.
func (r Repo) FinishInit(ctx context.Context, orderID, firstOrderStepID string) error {
	fields := tablestore.Fields{
		FieldCurrentOrderStep: []string{firstOrderStepID},
		FieldInitStepsDone:    true,
		FieldInitPhasesDone:   true,
		FieldInitTrigger:      false,
	}
	if g, ok := r.Store.(tablestore.Guarded); ok {
		_, err := g.UpdateIfEqual(ctx, r.Tables.Orders, orderID, FieldInitStepsDone, false, fields)
		return err
	}
	_, err := r.Store.Update(ctx, r.Tables.Orders, []tablestore.Update{{ID: orderID, Fields: fields}})
	return err
}

// AdvanceOrder moves the current-step pointer from one order-step to the
// next. The guard rejects the write when the pointer no longer equals the
// step being completed's predecessor state, i.e. a concurrent completion won.
func (r Repo) AdvanceOrder(ctx context.Context, orderID, fromOrderStepID, toOrderStepID string) error {
	fields := tablestore.Fields{
		FieldCurrentOrderStep: []string{toOrderStepID},
	}
	if g, ok := r.Store.(tablestore.Guarded); ok {
		_, err := g.UpdateIfEqual(ctx, r.Tables.Orders, orderID, FieldCurrentOrderStep, fromOrderStepID, fields)
		return err
	}
	_, err := r.Store.Update(ctx, r.Tables.Orders, []tablestore.Update{{ID: orderID, Fields: fields}})
	return err
}

func (r Repo) GetOrderStep(ctx context.Context, id string) (domain.OrderStep, error) {
	rec, err := r.Store.Find(ctx, r.Tables.OrderSteps, id)
	if err != nil {
		return domain.OrderStep{}, err
	}
	return decodeOrderStep(rec), nil
}

func (r Repo) GetOrderPhase(ctx context.Context, id string) (domain.OrderPhase, error) {
	rec, err := r.Store.Find(ctx, r.Tables.OrderPhases, id)
	if err != nil {
		return domain.OrderPhase{}, err
	}
	return decodeOrderPhase(rec), nil
}

// ListOrderSteps lists all order-step instances of one order.
func (r Repo) ListOrderSteps(ctx context.Context, orderID string) ([]domain.OrderStep, error) {
	recs, err := r.Store.List(ctx, r.Tables.OrderSteps, tablestore.Query{
		Filter: tablestore.Filter{{Field: FieldOrderLink, Value: orderID}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]domain.OrderStep, 0, len(recs))
	for _, rec := range recs {
		out = append(out, decodeOrderStep(rec))
	}
	return out, nil
}
