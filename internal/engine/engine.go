package engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"orderline/internal/domain"
	"orderline/internal/events"
	"orderline/internal/metrics"
	"orderline/internal/repo"
	"orderline/internal/tablestore"
)

// Domain precondition failures. The boundary maps these to 400 with the
// message as-is; everything else is an upstream failure.
var (
	ErrAlreadyInitialized = errors.New("order has already been initialized")
	ErrGateIncomplete     = errors.New("not all quality gate items are complete; finish the quality gate before completing this step")
	ErrNoNextStep         = errors.New("no next step found; the order may be complete")
	ErrStepMismatch       = errors.New("step does not belong to this order")
	ErrGateItemMismatch   = errors.New("quality gate item does not belong to this order")
)

// ErrConflict is returned when the optimistic guard detects a concurrent
// writer; callers should reload and retry.
var ErrConflict = tablestore.ErrConflict

// Engine runs the two writers of workflow state (initializer, completion)
// and the read projections.
type Engine struct {
	Repo   repo.Repo
	Events events.Writer
	Log    *zap.Logger
}

func New(r repo.Repo, ev events.Writer, log *zap.Logger) Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return Engine{Repo: r, Events: ev, Log: log}
}

// InitializeResult counts the instance records created for one order.
type InitializeResult struct {
	CreatedPhases    int
	CreatedSteps     int
	CreatedGateItems int
}

// Initialize clones the active blueprint into order-scoped instances: one
// order-phase per qualifying phase, one order-step per qualifying step (with
// next-pointers rewired among the clones), one gate-item instance per
// template of an instantiated phase. Finally the order's current-step pointer
// is set to the clone of the first blueprint step and both init flags are
// set. There is no rollback: a failure mid-way leaves partial state behind,
// which is an operational concern, not something to mask.
func (e Engine) Initialize(ctx context.Context, orderID string) (InitializeResult, error) {
	res, err := e.initialize(ctx, orderID)
	switch {
	case err == nil:
		metrics.ObserveInitialization("ok")
	case errors.Is(err, ErrAlreadyInitialized):
		metrics.ObserveInitialization("already_initialized")
	default:
		metrics.ObserveInitialization("error")
	}
	return res, err
}

func (e Engine) initialize(ctx context.Context, orderID string) (InitializeResult, error) {
	order, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return InitializeResult{}, err
	}
	if order.InitStepsDone || order.InitPhasesDone {
		return InitializeResult{}, ErrAlreadyInitialized
	}

	phases, err := e.Repo.PhasesForInit(ctx)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("load blueprint phases: %w", err)
	}
	steps, err := e.Repo.StepsForInit(ctx)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("load blueprint steps: %w", err)
	}
	if len(steps) == 0 {
		return InitializeResult{}, errors.New("blueprint has no steps flagged for initialization")
	}
	gateItems, err := e.Repo.ListGateItems(ctx)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("load gate item templates: %w", err)
	}
	gateItemsByPhase := map[string][]domain.GateItem{}
	for _, item := range gateItems {
		if item.PhaseID != "" {
			gateItemsByPhase[item.PhaseID] = append(gateItemsByPhase[item.PhaseID], item)
		}
	}

	orderPhases, err := e.Repo.CreateOrderPhases(ctx, orderID, phases)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("create order phases: %w", err)
	}
	orderPhaseByPhase := map[string]string{}
	for i, op := range orderPhases {
		orderPhaseByPhase[phases[i].ID] = op.ID
	}

	orderSteps, err := e.Repo.CreateOrderSteps(ctx, orderID, steps, orderPhaseByPhase)
	if err != nil {
		return InitializeResult{}, fmt.Errorf("create order steps: %w", err)
	}
	orderStepByStep := map[string]string{}
	for i, os := range orderSteps {
		orderStepByStep[steps[i].ID] = os.ID
	}

	// Wire next-pointers among the clones, restricted to steps that were
	// instantiated. A single failed pointer update is logged and skipped:
	// the rest of the chain is still worth having.
	for i, os := range orderSteps {
		nextStepID := steps[i].NextStepID
		if nextStepID == "" {
			continue
		}
		nextOrderStepID, ok := orderStepByStep[nextStepID]
		if !ok {
			continue
		}
		if err := e.Repo.SetOrderStepNext(ctx, os.ID, nextOrderStepID); err != nil {
			e.Log.Warn("set next pointer on order step",
				zap.String("order", orderID),
				zap.String("order_step", os.ID),
				zap.Error(err))
		}
	}

	var specs []repo.OrderGateItemSpec
	for i, op := range orderPhases {
		for _, tmpl := range gateItemsByPhase[phases[i].ID] {
			specs = append(specs, repo.OrderGateItemSpec{
				OrderID:      orderID,
				OrderPhaseID: op.ID,
				GateItemID:   tmpl.ID,
				Order:        tmpl.Order,
			})
		}
	}
	var createdGateItems []domain.OrderGateItem
	if len(specs) > 0 {
		createdGateItems, err = e.Repo.CreateOrderGateItems(ctx, specs)
		if err != nil {
			return InitializeResult{}, fmt.Errorf("create order gate items: %w", err)
		}
	}

	firstOrderStepID := orderStepByStep[steps[0].ID]
	if err := e.Repo.FinishInit(ctx, orderID, firstOrderStepID); err != nil {
		if errors.Is(err, tablestore.ErrConflict) {
			// Another initializer set the flags between our guard check and
			// the final write.
			return InitializeResult{}, ErrAlreadyInitialized
		}
		return InitializeResult{}, fmt.Errorf("finish initialization: %w", err)
	}

	res := InitializeResult{
		CreatedPhases:    len(orderPhases),
		CreatedSteps:     len(orderSteps),
		CreatedGateItems: len(createdGateItems),
	}
	e.Events.Append(ctx, "order.initialized", orderID, events.EventPayload{
		"phases":     res.CreatedPhases,
		"steps":      res.CreatedSteps,
		"gate_items": res.CreatedGateItems,
		"first_step": firstOrderStepID,
	})
	return res, nil
}

// CompleteResult carries the id the order advanced to.
type CompleteResult struct {
	NextStepID string
}

// Complete validates that the step belongs to the order, enforces the
// quality gate when the step closes its phase, advances the order's
// current-step pointer to the cloned next step and marks the completed step
// done. The pointer write and the done write are not transactional; when the
// second fails the order has advanced and the error says so.
func (e Engine) Complete(ctx context.Context, orderID, orderStepID string) (CompleteResult, error) {
	res, err := e.complete(ctx, orderID, orderStepID)
	switch {
	case err == nil:
		metrics.ObserveCompletion("ok")
	case errors.Is(err, ErrConflict):
		metrics.ObserveCompletion("conflict")
	case errors.Is(err, ErrGateIncomplete), errors.Is(err, ErrNoNextStep), errors.Is(err, ErrStepMismatch):
		metrics.ObserveCompletion("rejected")
	default:
		metrics.ObserveCompletion("error")
	}
	return res, err
}

func (e Engine) complete(ctx context.Context, orderID, orderStepID string) (CompleteResult, error) {
	order, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return CompleteResult{}, err
	}
	step, err := e.Repo.GetOrderStep(ctx, orderStepID)
	if err != nil {
		return CompleteResult{}, err
	}
	if step.OrderID != orderID {
		return CompleteResult{}, ErrStepMismatch
	}

	lastOfPhase := false
	if step.StepID != "" {
		bp, err := e.Repo.GetStep(ctx, step.StepID)
		if err != nil {
			return CompleteResult{}, fmt.Errorf("load blueprint step: %w", err)
		}
		lastOfPhase = bp.LastOfPhase
	}
	if lastOfPhase && step.OrderPhaseID != "" {
		ok, err := e.GateOK(ctx, step.OrderPhaseID)
		if err != nil {
			return CompleteResult{}, fmt.Errorf("check quality gate: %w", err)
		}
		if !ok {
			return CompleteResult{}, ErrGateIncomplete
		}
	}

	nextID := step.NextOrderStepID
	if nextID == "" {
		return CompleteResult{}, ErrNoNextStep
	}

	// Single write to the one field representing workflow position, guarded
	// against a concurrent completion that moved the pointer since we read
	// the order.
	if err := e.Repo.AdvanceOrder(ctx, orderID, order.CurrentStepID, nextID); err != nil {
		if errors.Is(err, tablestore.ErrConflict) {
			return CompleteResult{}, fmt.Errorf("order was advanced concurrently: %w", ErrConflict)
		}
		return CompleteResult{}, fmt.Errorf("advance order: %w", err)
	}
	if err := e.Repo.MarkOrderStepDone(ctx, orderStepID); err != nil {
		// The order has moved on but the old step is not flagged done.
		// Surface it; a reconciliation pass can repair the flag.
		return CompleteResult{}, fmt.Errorf("order advanced to %s but step %s was not marked done: %w", nextID, orderStepID, err)
	}

	e.Events.Append(ctx, "step.completed", orderID, events.EventPayload{
		"completed": orderStepID,
		"next":      nextID,
	})
	return CompleteResult{NextStepID: nextID}, nil
}

// GateOK reports whether every gate-item instance of the order-phase is
// done. A phase without gate items passes vacuously.
func (e Engine) GateOK(ctx context.Context, orderPhaseID string) (bool, error) {
	items, err := e.Repo.ListOrderGateItems(ctx, orderPhaseID)
	if err != nil {
		return false, err
	}
	for _, item := range items {
		if !item.Done {
			return false, nil
		}
	}
	return true, nil
}

// SetGateItemDone toggles a gate-item instance after checking it belongs to
// the order.
func (e Engine) SetGateItemDone(ctx context.Context, orderID, gateItemID string, done bool) error {
	item, err := e.Repo.GetOrderGateItem(ctx, gateItemID)
	if err != nil {
		return err
	}
	if item.OrderID != "" && item.OrderID != orderID {
		return ErrGateItemMismatch
	}
	if err := e.Repo.SetGateItemDone(ctx, gateItemID, done); err != nil {
		return err
	}
	e.Events.Append(ctx, "gate_item.toggled", orderID, events.EventPayload{
		"gate_item": gateItemID,
		"done":      done,
	})
	return nil
}
