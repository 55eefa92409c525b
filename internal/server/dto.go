package server

import (
	"orderline/internal/domain"
	"orderline/internal/engine"
)

// Request payloads

type CreateOrderRequest struct {
	Name       string `json:"name"`
	Kunde      string `json:"kunde"`
	Prioritaet string `json:"prioritaet,omitempty"`
	Prozess    string `json:"prozess,omitempty"`
}

type PatchStepRequest struct {
	GateItemID string `json:"gateItemId,omitempty"`
	Erledigt   bool   `json:"erledigt"`
}

// Response payloads. Field names are the contract of the existing frontend.

type OrderResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Kunde           string `json:"kunde"`
	Status          string `json:"status"`
	Prioritaet      string `json:"prioritaet"`
	AktuellerStep   string `json:"aktuellerStep,omitempty"`
	AktuellerStepID string `json:"aktuellerStepId,omitempty"`
	OffeneStoerung  int    `json:"offeneStoerungen"`
	Ampel           string `json:"ampel"`
	ErstelltAm      string `json:"erstelltAm,omitempty"`
	AktualisiertAm  string `json:"aktualisiertAm,omitempty"`
	InitStepsDone   bool   `json:"initStepsDone"`
	InitPhasesDone  bool   `json:"initPhasesDone"`
}

type OrdersListResponse struct {
	Success bool            `json:"success"`
	Orders  []OrderResponse `json:"orders"`
	Count   int             `json:"count"`
}

type OrderDetailResponse struct {
	Success bool          `json:"success"`
	Order   OrderResponse `json:"order"`
}

type InitializeResponse struct {
	Success          bool `json:"success"`
	CreatedPhases    int  `json:"createdPhases"`
	CreatedSteps     int  `json:"createdSteps"`
	CreatedGateItems int  `json:"createdGateItems"`
}

type OrderStepResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	StepID          string `json:"stepId"`
	StepName        string `json:"stepName"`
	IstLetzter      bool   `json:"istLetzterSchritt"`
	Erledigt        bool   `json:"erledigt"`
	NextOrderStepID string `json:"nextOrderStepId,omitempty"`
	OrderPhaseID    string `json:"orderPhaseId,omitempty"`
}

type ActionResponse struct {
	ID           string  `json:"id"`
	Name         string  `json:"name"`
	Beschreibung string  `json:"beschreibung,omitempty"`
	OrderInStep  float64 `json:"reihenfolgeInStep"`
	OrderGlobal  float64 `json:"reihenfolgeGlobal"`
	Pflicht      bool    `json:"pflicht"`
}

type GateItemResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Erledigt    bool    `json:"erledigt"`
	Reihenfolge float64 `json:"reihenfolge"`
}

type StepDetailResponse struct {
	Success   bool               `json:"success"`
	Step      OrderStepResponse  `json:"step"`
	Actions   []ActionResponse   `json:"actions"`
	GateItems []GateItemResponse `json:"gateItems"`
}

type PatchStepResponse struct {
	Success bool `json:"success"`
}

type CompleteResponse struct {
	Success    bool   `json:"success"`
	NextStepID string `json:"nextStepId"`
}

type ResolveStepResponse struct {
	Success     bool   `json:"success"`
	OrderStepID string `json:"orderStepId"`
}

type SwimlaneStepResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	LaneID    string `json:"laneId,omitempty"`
	LaneName  string `json:"laneName"`
	PhaseID   string `json:"phaseId,omitempty"`
	PhaseName string `json:"phaseName"`
}

type QualityGateResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PhaseID   string `json:"phaseId,omitempty"`
	PhaseName string `json:"phaseName"`
}

type SwimlaneResponse struct {
	Success      bool                   `json:"success"`
	Steps        []SwimlaneStepResponse `json:"steps"`
	Lanes        []string               `json:"lanes"`
	Phases       []string               `json:"phases"`
	QualityGates []QualityGateResponse  `json:"qualityGates"`
	TotalSteps   int                    `json:"totalSteps"`
}

type BlueprintStepResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	GlobalOrder float64 `json:"reihenfolgeGlobal"`
	PhaseID     string  `json:"phaseId,omitempty"`
	LaneID      string  `json:"laneId,omitempty"`
	NextStepID  string  `json:"nextStepId,omitempty"`
	LastOfPhase bool    `json:"istLetzterSchritt"`
	UseForInit  bool    `json:"fuerInitialisierung"`
}

type BlueprintStepsResponse struct {
	Success bool                    `json:"success"`
	Steps   []BlueprintStepResponse `json:"steps"`
	Count   int                     `json:"count"`
}

// Mapping helpers

func orderResponse(v engine.OrderView) OrderResponse {
	return OrderResponse{
		ID:              v.ID,
		Name:            v.Name,
		Kunde:           v.Customer,
		Status:          v.Status,
		Prioritaet:      v.Priority,
		AktuellerStep:   v.CurrentStepName,
		AktuellerStepID: v.CurrentStepID,
		OffeneStoerung:  v.OpenIncidents,
		Ampel:           string(v.Severity),
		ErstelltAm:      v.CreatedAt,
		AktualisiertAm:  v.UpdatedAt,
		InitStepsDone:   v.InitStepsDone,
		InitPhasesDone:  v.InitPhasesDone,
	}
}

func mapOrders(views []engine.OrderView) []OrderResponse {
	out := make([]OrderResponse, 0, len(views))
	for _, v := range views {
		out = append(out, orderResponse(v))
	}
	return out
}

func stepDetailResponse(d engine.StepDetail) StepDetailResponse {
	res := StepDetailResponse{
		Success: true,
		Step: OrderStepResponse{
			ID:              d.Step.ID,
			Name:            d.Step.Name,
			StepID:          d.Step.StepID,
			StepName:        d.Step.StepName,
			IstLetzter:      d.Step.LastOfPhase,
			Erledigt:        d.Step.Done,
			NextOrderStepID: d.Step.NextOrderStepID,
			OrderPhaseID:    d.Step.OrderPhaseID,
		},
		Actions:   []ActionResponse{},
		GateItems: []GateItemResponse{},
	}
	for _, a := range d.Actions {
		res.Actions = append(res.Actions, ActionResponse{
			ID:           a.ID,
			Name:         a.Name,
			Beschreibung: a.Description,
			OrderInStep:  a.OrderInStep,
			OrderGlobal:  a.GlobalOrder,
			Pflicht:      a.Mandatory,
		})
	}
	for _, g := range d.GateItems {
		res.GateItems = append(res.GateItems, GateItemResponse{
			ID:          g.ID,
			Name:        g.Name,
			Erledigt:    g.Done,
			Reihenfolge: g.Order,
		})
	}
	return res
}

func swimlaneResponse(b engine.Swimlane) SwimlaneResponse {
	res := SwimlaneResponse{
		Success:      true,
		Steps:        []SwimlaneStepResponse{},
		Lanes:        b.Lanes,
		Phases:       b.Phases,
		QualityGates: []QualityGateResponse{},
		TotalSteps:   len(b.Steps),
	}
	for _, s := range b.Steps {
		res.Steps = append(res.Steps, SwimlaneStepResponse{
			ID:        s.ID,
			Name:      s.Name,
			LaneID:    s.LaneID,
			LaneName:  s.LaneName,
			PhaseID:   s.PhaseID,
			PhaseName: s.PhaseName,
		})
	}
	for _, g := range b.QualityGates {
		res.QualityGates = append(res.QualityGates, QualityGateResponse{
			ID:        g.ID,
			Name:      g.Name,
			PhaseID:   g.PhaseID,
			PhaseName: g.PhaseName,
		})
	}
	return res
}

func mapBlueprintSteps(steps []domain.Step) []BlueprintStepResponse {
	out := make([]BlueprintStepResponse, 0, len(steps))
	for _, s := range steps {
		out = append(out, BlueprintStepResponse{
			ID:          s.ID,
			Name:        s.Name,
			GlobalOrder: s.GlobalOrder,
			PhaseID:     s.PhaseID,
			LaneID:      s.LaneID,
			NextStepID:  s.NextStepID,
			LastOfPhase: s.LastOfPhase,
			UseForInit:  s.UseForInit,
		})
	}
	return out
}
