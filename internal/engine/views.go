package engine

import (
	"context"
	"fmt"
	"sort"

	"orderline/internal/domain"
	"orderline/internal/tablestore"
)

// OrderView is an order enriched with the derived display fields the board
// needs: resolved current-step name, open-incident count and Ampel color.
type OrderView struct {
	domain.Order
	CurrentStepName string
	OpenIncidents   int
	Severity        domain.Severity
}

// ListOrders returns every order with severity and current-step name
// resolved through the blueprint.
func (e Engine) ListOrders(ctx context.Context) ([]OrderView, error) {
	orders, err := e.Repo.ListOrders(ctx)
	if err != nil {
		return nil, err
	}
	openByOrder, err := e.Repo.OpenIncidentsByOrder(ctx)
	if err != nil {
		return nil, err
	}
	stepNames, err := e.stepNamesByID(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]OrderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, OrderView{
			Order:           o,
			CurrentStepName: e.currentStepName(ctx, o, stepNames),
			OpenIncidents:   openByOrder[o.ID],
			Severity:        domain.SeverityFor(openByOrder[o.ID]),
		})
	}
	return out, nil
}

// GetOrder returns one order with the same derived fields as the listing.
func (e Engine) GetOrder(ctx context.Context, orderID string) (OrderView, error) {
	o, err := e.Repo.GetOrder(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	open, err := e.Repo.CountOpenIncidents(ctx, orderID)
	if err != nil {
		return OrderView{}, err
	}
	stepNames, err := e.stepNamesByID(ctx)
	if err != nil {
		return OrderView{}, err
	}
	return OrderView{
		Order:           o,
		CurrentStepName: e.currentStepName(ctx, o, stepNames),
		OpenIncidents:   open,
		Severity:        domain.SeverityFor(open),
	}, nil
}

func (e Engine) stepNamesByID(ctx context.Context) (map[string]string, error) {
	steps, err := e.Repo.ListSteps(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(steps))
	for _, s := range steps {
		names[s.ID] = s.Name
	}
	return names, nil
}

// currentStepName resolves the current-step pointer (an order-step instance)
// to the blueprint step's display name. Failures degrade to an empty name;
// the listing must not break because one pointer dangles.
func (e Engine) currentStepName(ctx context.Context, o domain.Order, stepNames map[string]string) string {
	if o.CurrentStepID == "" {
		return ""
	}
	instance, err := e.Repo.GetOrderStep(ctx, o.CurrentStepID)
	if err != nil {
		return ""
	}
	if name, ok := stepNames[instance.StepID]; ok {
		return name
	}
	return instance.StepID
}

// OrderStepView is the step-detail projection of one order-step instance.
// Name and LastOfPhase are derived from the blueprint; the hosted store
// computed them as lookup fields.
type OrderStepView struct {
	ID              string
	Name            string
	StepID          string
	StepName        string
	LastOfPhase     bool
	Done            bool
	NextOrderStepID string
	OrderPhaseID    string
}

// StepDetail bundles an order-step with its blueprint actions and the
// quality-gate items of its phase.
type StepDetail struct {
	Step      OrderStepView
	Actions   []domain.Action
	GateItems []domain.OrderGateItem
}

// GetStepDetail loads one order-step with actions (sorted by in-step order)
// and gate items (sorted).
func (e Engine) GetStepDetail(ctx context.Context, orderID, orderStepID string) (StepDetail, error) {
	step, err := e.Repo.GetOrderStep(ctx, orderStepID)
	if err != nil {
		return StepDetail{}, err
	}
	if step.OrderID != orderID {
		return StepDetail{}, ErrStepMismatch
	}
	bp, err := e.Repo.GetStep(ctx, step.StepID)
	if err != nil {
		return StepDetail{}, fmt.Errorf("load blueprint step: %w", err)
	}
	all, err := e.Repo.ListActions(ctx)
	if err != nil {
		return StepDetail{}, fmt.Errorf("load actions: %w", err)
	}
	var actions []domain.Action
	for _, a := range all {
		if a.StepID == bp.ID {
			actions = append(actions, a)
		}
	}
	sort.SliceStable(actions, func(i, j int) bool {
		return actions[i].OrderInStep < actions[j].OrderInStep
	})
	var gateItems []domain.OrderGateItem
	if step.OrderPhaseID != "" {
		gateItems, err = e.Repo.ListOrderGateItems(ctx, step.OrderPhaseID)
		if err != nil {
			return StepDetail{}, fmt.Errorf("load gate items: %w", err)
		}
	}
	return StepDetail{
		Step: OrderStepView{
			ID:              step.ID,
			Name:            bp.Name,
			StepID:          bp.ID,
			StepName:        bp.Name,
			LastOfPhase:     bp.LastOfPhase,
			Done:            step.Done,
			NextOrderStepID: step.NextOrderStepID,
			OrderPhaseID:    step.OrderPhaseID,
		},
		Actions:   actions,
		GateItems: gateItems,
	}, nil
}

// ResolveOrderStep maps a blueprint step id to the order's instance of it.
func (e Engine) ResolveOrderStep(ctx context.Context, orderID, blueprintStepID string) (string, error) {
	if _, err := e.Repo.GetOrder(ctx, orderID); err != nil {
		return "", err
	}
	steps, err := e.Repo.ListOrderSteps(ctx, orderID)
	if err != nil {
		return "", err
	}
	if len(steps) == 0 {
		return "", fmt.Errorf("no order steps exist for this order: %w", tablestore.ErrNotFound)
	}
	for _, s := range steps {
		if s.StepID == blueprintStepID {
			return s.ID, nil
		}
	}
	return "", fmt.Errorf("no order step for blueprint step %s: %w", blueprintStepID, tablestore.ErrNotFound)
}

// SwimlaneStep is one blueprint step placed on the board.
type SwimlaneStep struct {
	ID        string
	Name      string
	LaneID    string
	LaneName  string
	PhaseID   string
	PhaseName string
}

// QualityGateView is a named gate with its phase resolved.
type QualityGateView struct {
	ID        string
	Name      string
	PhaseID   string
	PhaseName string
}

// Swimlane is the full board: ordered steps with lane/phase names, the
// distinct lanes, the ordered phase names and the quality gates.
type Swimlane struct {
	Steps        []SwimlaneStep
	Lanes        []string
	Phases       []string
	QualityGates []QualityGateView
}

const unknownName = "Unbekannt"

// GetSwimlane assembles the board from blueprint data only.
func (e Engine) GetSwimlane(ctx context.Context) (Swimlane, error) {
	steps, err := e.Repo.ListSteps(ctx)
	if err != nil {
		return Swimlane{}, err
	}
	lanes, err := e.Repo.ListLanes(ctx)
	if err != nil {
		return Swimlane{}, err
	}
	phases, err := e.Repo.ListPhases(ctx)
	if err != nil {
		return Swimlane{}, err
	}
	gates, err := e.Repo.ListQualityGates(ctx)
	if err != nil {
		return Swimlane{}, err
	}

	laneNames := make(map[string]string, len(lanes))
	for _, l := range lanes {
		laneNames[l.ID] = l.Name
	}
	phaseNames := make(map[string]string, len(phases))
	for _, p := range phases {
		phaseNames[p.ID] = p.Name
	}
	name := func(m map[string]string, id string) string {
		if n, ok := m[id]; ok && n != "" {
			return n
		}
		return unknownName
	}

	board := Swimlane{}
	seenLanes := map[string]bool{}
	for _, s := range steps {
		laneName := name(laneNames, s.LaneID)
		board.Steps = append(board.Steps, SwimlaneStep{
			ID:        s.ID,
			Name:      s.Name,
			LaneID:    s.LaneID,
			LaneName:  laneName,
			PhaseID:   s.PhaseID,
			PhaseName: name(phaseNames, s.PhaseID),
		})
		if !seenLanes[laneName] {
			seenLanes[laneName] = true
			board.Lanes = append(board.Lanes, laneName)
		}
	}
	for _, p := range phases {
		board.Phases = append(board.Phases, p.Name)
	}
	for _, g := range gates {
		board.QualityGates = append(board.QualityGates, QualityGateView{
			ID:        g.ID,
			Name:      g.Name,
			PhaseID:   g.PhaseID,
			PhaseName: name(phaseNames, g.PhaseID),
		})
	}
	return board, nil
}

// BlueprintSteps lists all blueprint steps in global order.
func (e Engine) BlueprintSteps(ctx context.Context) ([]domain.Step, error) {
	return e.Repo.ListSteps(ctx)
}
