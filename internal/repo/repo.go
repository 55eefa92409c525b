package repo

import (
	"errors"

	"orderline/internal/config"
	"orderline/internal/domain"
	"orderline/internal/tablestore"
)

// Field names as they exist in the backing base. The German names (including
// the "letzer" typo in the last-step flag) are load-bearing: they must match
// the production Airtable schema byte for byte.
const (
	FieldName     = "Name"
	FieldCustomer = "Kunde"
	FieldPriority = "Priorität"
	FieldStatus   = "Status"
	FieldProcess  = "Prozess"

	FieldCurrentOrderStep = "Aktueller Auftragsschritt"
	FieldOrderStepLinks   = "Auftragsschritte"
	FieldInitStepsDone    = "Init_Steps_Done"
	FieldInitPhasesDone   = "Init_Phases_Done"
	FieldInitTrigger      = "Initialisieren"
	FieldCreatedAt        = "Erstellt am"
	FieldUpdatedAt        = "Aktualisiert am"

	FieldPhaseOrder   = "Reihenfolge"
	FieldPhaseUseInit = "Für Initialisierung verwenden?"

	FieldStepGlobalOrder = "Reihenfolge Global"
	FieldStepPhase       = "Phase"
	FieldStepLane        = "Lane"
	FieldStepNext        = "Next Step"
	FieldStepLastOfPhase = "Ist letzer Schritt der Phase"
	FieldStepUseInit     = "Für Initialisierung verwenden"

	FieldActionStep        = "Step"
	FieldActionDescription = "Beschreibung"
	FieldActionOrderInStep = "Reihenfolge in Step"
	FieldActionOrderGlobal = "Reihenfolge (global)"
	FieldActionMandatory   = "Pflicht"

	FieldOrderLink      = "Auftrag"
	FieldOrderPhaseLink = "Auftragsphase (link)"
	FieldPhaseLink      = "Phase (link)"
	FieldNextOrderStep  = "Next Auftragsschritt"
	FieldStepDone       = "Erledigt?"

	FieldGateOrderPhase = "Auftragsphase"
	FieldGateItemLink   = "Quality Gate Item"
	FieldGateSortOrder  = "Reihenfolge (Sort)"
	FieldGateItemDone   = "Erledigt"
)

// ErrNotFound mirrors the store sentinel for callers that never import the
// store package.
var ErrNotFound = tablestore.ErrNotFound

// Repo maps store records to domain values for the configured tables.
type Repo struct {
	Store  tablestore.Store
	Tables config.Tables
}

func New(store tablestore.Store, tables config.Tables) Repo {
	return Repo{Store: store, Tables: tables}
}

// IsNotFound reports whether err is the store's not-found sentinel.
func IsNotFound(err error) bool {
	return errors.Is(err, tablestore.ErrNotFound)
}

func decodeOrder(rec tablestore.Record) domain.Order {
	f := rec.Fields
	return domain.Order{
		ID:             rec.ID,
		Name:           tablestore.String(f[FieldName]),
		Customer:       tablestore.String(f[FieldCustomer]),
		Priority:       tablestore.String(f[FieldPriority]),
		Status:         tablestore.String(f[FieldStatus]),
		ProcessID:      tablestore.FirstLink(f[FieldProcess]),
		CurrentStepID:  tablestore.FirstLink(f[FieldCurrentOrderStep]),
		OrderStepIDs:   tablestore.Links(f[FieldOrderStepLinks]),
		InitStepsDone:  tablestore.Bool(f[FieldInitStepsDone]),
		InitPhasesDone: tablestore.Bool(f[FieldInitPhasesDone]),
		CreatedAt:      tablestore.String(f[FieldCreatedAt]),
		UpdatedAt:      tablestore.String(f[FieldUpdatedAt]),
	}
}

func decodePhase(rec tablestore.Record) domain.Phase {
	f := rec.Fields
	return domain.Phase{
		ID:         rec.ID,
		Name:       tablestore.String(f[FieldName]),
		Order:      tablestore.Number(f[FieldPhaseOrder]),
		UseForInit: tablestore.Bool(f[FieldPhaseUseInit]),
	}
}

func decodeStep(rec tablestore.Record) domain.Step {
	f := rec.Fields
	return domain.Step{
		ID:          rec.ID,
		Name:        tablestore.String(f[FieldName]),
		GlobalOrder: tablestore.Number(f[FieldStepGlobalOrder]),
		PhaseID:     tablestore.FirstLink(f[FieldStepPhase]),
		LaneID:      tablestore.FirstLink(f[FieldStepLane]),
		NextStepID:  tablestore.FirstLink(f[FieldStepNext]),
		LastOfPhase: tablestore.Bool(f[FieldStepLastOfPhase]),
		UseForInit:  tablestore.Bool(f[FieldStepUseInit]),
	}
}

func decodeLane(rec tablestore.Record) domain.Lane {
	return domain.Lane{ID: rec.ID, Name: tablestore.String(rec.Fields[FieldName])}
}

func decodeAction(rec tablestore.Record) domain.Action {
	f := rec.Fields
	return domain.Action{
		ID:          rec.ID,
		Name:        tablestore.String(f[FieldName]),
		StepID:      tablestore.FirstLink(f[FieldActionStep]),
		Description: tablestore.String(f[FieldActionDescription]),
		OrderInStep: tablestore.Number(f[FieldActionOrderInStep]),
		GlobalOrder: tablestore.Number(f[FieldActionOrderGlobal]),
		Mandatory:   tablestore.Bool(f[FieldActionMandatory]),
	}
}

func decodeGateItem(rec tablestore.Record) domain.GateItem {
	f := rec.Fields
	return domain.GateItem{
		ID:      rec.ID,
		Name:    tablestore.String(f[FieldName]),
		PhaseID: tablestore.FirstLink(f[FieldStepPhase]),
		Order:   tablestore.Number(f[FieldPhaseOrder]),
	}
}

func decodeQualityGate(rec tablestore.Record) domain.QualityGate {
	f := rec.Fields
	return domain.QualityGate{
		ID:      rec.ID,
		Name:    tablestore.String(f[FieldName]),
		PhaseID: tablestore.FirstLink(f[FieldStepPhase]),
	}
}

func decodeOrderPhase(rec tablestore.Record) domain.OrderPhase {
	f := rec.Fields
	return domain.OrderPhase{
		ID:      rec.ID,
		OrderID: tablestore.FirstLink(f[FieldOrderLink]),
		PhaseID: tablestore.FirstLink(f[FieldStepPhase]),
	}
}

func decodeOrderStep(rec tablestore.Record) domain.OrderStep {
	f := rec.Fields
	return domain.OrderStep{
		ID:              rec.ID,
		OrderID:         tablestore.FirstLink(f[FieldOrderLink]),
		StepID:          tablestore.FirstLink(f[FieldActionStep]),
		OrderPhaseID:    tablestore.FirstLink(f[FieldOrderPhaseLink]),
		PhaseID:         tablestore.FirstLink(f[FieldPhaseLink]),
		NextOrderStepID: tablestore.FirstLink(f[FieldNextOrderStep]),
		Done:            tablestore.Bool(f[FieldStepDone]),
	}
}

func decodeOrderGateItem(rec tablestore.Record) domain.OrderGateItem {
	f := rec.Fields
	return domain.OrderGateItem{
		ID:           rec.ID,
		OrderID:      tablestore.FirstLink(f[FieldOrderLink]),
		OrderPhaseID: tablestore.FirstLink(f[FieldGateOrderPhase]),
		GateItemID:   tablestore.FirstLink(f[FieldGateItemLink]),
		Name:         tablestore.String(f[FieldName]),
		Order:        tablestore.Number(f[FieldGateSortOrder]),
		Done:         tablestore.Bool(f[FieldGateItemDone]),
	}
}

func decodeIncident(rec tablestore.Record) domain.Incident {
	f := rec.Fields
	return domain.Incident{
		ID:       rec.ID,
		OrderIDs: tablestore.Links(f[FieldOrderLink]),
		Status:   tablestore.String(f[FieldStatus]),
	}
}
