package domain

// Severity is the three-level "Ampel" indicator derived from open incidents.
type Severity string

const (
	SeverityGreen  Severity = "green"
	SeverityYellow Severity = "yellow"
	SeverityRed    Severity = "red"
)

// SeverityFor maps an open-incident count to an Ampel color:
// 0 -> green, 1-2 -> yellow, 3+ -> red.
func SeverityFor(openIncidents int) Severity {
	switch {
	case openIncidents >= 3:
		return SeverityRed
	case openIncidents >= 1:
		return SeverityYellow
	default:
		return SeverityGreen
	}
}

// Order is an Auftrag, a tracked unit of work. CurrentStepID points at the
// active order-step instance and is the single source of truth for workflow
// position; current phase/lane views are derived through it.
type Order struct {
	ID             string
	Name           string
	Customer       string
	Priority       string
	Status         string
	ProcessID      string
	CurrentStepID  string
	OrderStepIDs   []string
	InitStepsDone  bool
	InitPhasesDone bool
	CreatedAt      string
	UpdatedAt      string
}

// Phase is a blueprint stage template.
type Phase struct {
	ID         string
	Name       string
	Order      float64
	UseForInit bool
}

// Step is a blueprint step template within a phase and lane.
type Step struct {
	ID          string
	Name        string
	GlobalOrder float64
	PhaseID     string
	LaneID      string
	NextStepID  string
	LastOfPhase bool
	UseForInit  bool
}

// Lane groups steps by responsible role; display only.
type Lane struct {
	ID   string
	Name string
}

// Action is a blueprint checklist action inside a step.
type Action struct {
	ID          string
	Name        string
	StepID      string
	Description string
	OrderInStep float64
	GlobalOrder float64
	Mandatory   bool
}

// GateItem is a blueprint quality-gate checklist item template.
type GateItem struct {
	ID      string
	Name    string
	PhaseID string
	Order   float64
}

// QualityGate is a named gate attached to a phase, shown on the board.
type QualityGate struct {
	ID      string
	Name    string
	PhaseID string
}

// OrderPhase is the order-scoped instance of a blueprint phase.
type OrderPhase struct {
	ID      string
	OrderID string
	PhaseID string
}

// OrderStep is the order-scoped instance of a blueprint step. Done and
// NextOrderStepID are the only fields mutated after creation.
type OrderStep struct {
	ID              string
	OrderID         string
	StepID          string
	OrderPhaseID    string
	PhaseID         string
	NextOrderStepID string
	Done            bool
}

// OrderGateItem is the order-scoped instance of a gate-item template.
type OrderGateItem struct {
	ID           string
	OrderID      string
	OrderPhaseID string
	GateItemID   string
	Name         string
	Order        float64
	Done         bool
}

// Incident is an issue linked to an order; read-only from this system.
type Incident struct {
	ID       string
	OrderIDs []string
	Status   string
}
