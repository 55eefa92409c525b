package server

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"orderline/internal/engine"
	"orderline/internal/metrics"
	"orderline/internal/repo"
)

// Config for the HTTP API handler.
type Config struct {
	Engine   engine.Engine
	BasePath string
}

// apiError models the error envelope every failing endpoint returns.
type apiError struct {
	status  int
	Success bool   `json:"success"`
	Message string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Message }

func newAPIError(status int, message, details string) huma.StatusError {
	return &apiError{status: status, Success: false, Message: message, Details: details}
}

// New returns an HTTP handler exposing the Orderline API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" || basePath == "/" {
		basePath = ""
	} else if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	// Override Huma errors to use the envelope the frontend expects.
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, msg, "")
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity {
			// Schema/request validation failures are plain bad requests here.
			status = http.StatusBadRequest
		}
		var details []string
		for _, e := range errs {
			if e != nil {
				details = append(details, e.Error())
			}
		}
		return newAPIError(status, msg, strings.Join(details, "; "))
	}

	router := chi.NewRouter()
	router.Use(metrics.Middleware)
	router.Method(http.MethodGet, "/metrics", metrics.Handler())

	hcfg := huma.DefaultConfig("Orderline API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	api := humachi.New(router, hcfg)
	var group huma.API = api
	if basePath != "" {
		group = huma.NewGroup(api, basePath)
	}

	registerHealth(group)
	registerOrders(group, cfg.Engine)
	registerSteps(group, cfg.Engine)
	registerBoard(group, cfg.Engine)

	return router, nil
}

// handleError maps engine failures onto the wire. Domain precondition
// failures are 400 with the sentinel's message, guard conflicts 409, missing
// records 404 and everything else an opaque 500 with the cause in details.
func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, engine.ErrConflict):
		return newAPIError(http.StatusConflict, err.Error(), "")
	case repo.IsNotFound(err):
		return newAPIError(http.StatusNotFound, err.Error(), "")
	case errors.Is(err, engine.ErrAlreadyInitialized),
		errors.Is(err, engine.ErrGateIncomplete),
		errors.Is(err, engine.ErrNoNextStep),
		errors.Is(err, engine.ErrStepMismatch),
		errors.Is(err, engine.ErrGateItemMismatch):
		return newAPIError(http.StatusBadRequest, err.Error(), "")
	default:
		return newAPIError(http.StatusInternalServerError, "internal error", err.Error())
	}
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerOrders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List orders with severity and current step",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body OrdersListResponse `json:"body"`
	}, error) {
		views, err := e.ListOrders(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrdersListResponse `json:"body"`
		}{Body: OrdersListResponse{
			Success: true,
			Orders:  mapOrders(views),
			Count:   len(views),
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        http.MethodPost,
		Path:          "/orders",
		Summary:       "Create order",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateOrderRequest `json:"body"`
	}) (*struct {
		Body OrderDetailResponse `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Name) == "" || strings.TrimSpace(input.Body.Kunde) == "" {
			return nil, newAPIError(http.StatusBadRequest, "name and kunde are required", "")
		}
		order, err := e.Repo.CreateOrder(ctx, repo.CreateOrderOptions{
			Name:      input.Body.Name,
			Customer:  input.Body.Kunde,
			Priority:  input.Body.Prioritaet,
			ProcessID: input.Body.Prozess,
		})
		if err != nil {
			return nil, handleError(err)
		}
		view, err := e.GetOrder(ctx, order.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderDetailResponse `json:"body"`
		}{Body: OrderDetailResponse{Success: true, Order: orderResponse(view)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{id}",
		Summary:     "Get order",
		Errors: []int{
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body OrderDetailResponse `json:"body"`
	}, error) {
		view, err := e.GetOrder(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body OrderDetailResponse `json:"body"`
		}{Body: OrderDetailResponse{Success: true, Order: orderResponse(view)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "initialize-order",
		Method:      http.MethodPost,
		Path:        "/orders/{id}/initialize",
		Summary:     "Clone the blueprint into order instances",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body InitializeResponse `json:"body"`
	}, error) {
		res, err := e.Initialize(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body InitializeResponse `json:"body"`
		}{Body: InitializeResponse{
			Success:          true,
			CreatedPhases:    res.CreatedPhases,
			CreatedSteps:     res.CreatedSteps,
			CreatedGateItems: res.CreatedGateItems,
		}}, nil
	})
}

func registerSteps(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-order-step",
		Method:      http.MethodGet,
		Path:        "/orders/{id}/steps/{stepId}",
		Summary:     "Get order step with actions and gate items",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		StepID string `path:"stepId"`
	}) (*struct {
		Body StepDetailResponse `json:"body"`
	}, error) {
		detail, err := e.GetStepDetail(ctx, input.ID, input.StepID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body StepDetailResponse `json:"body"`
		}{Body: stepDetailResponse(detail)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "patch-order-step",
		Method:      http.MethodPatch,
		Path:        "/orders/{id}/steps/{stepId}",
		Summary:     "Toggle a quality gate item",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID     string           `path:"id"`
		StepID string           `path:"stepId"`
		Body   PatchStepRequest `json:"body"`
	}) (*struct {
		Body PatchStepResponse `json:"body"`
	}, error) {
		if input.Body.GateItemID == "" {
			return nil, newAPIError(http.StatusBadRequest, "no valid action; gateItemId is required", "")
		}
		// The step id scopes the call; ownership is checked against the order.
		if _, err := e.GetStepDetail(ctx, input.ID, input.StepID); err != nil {
			return nil, handleError(err)
		}
		if err := e.SetGateItemDone(ctx, input.ID, input.Body.GateItemID, input.Body.Erledigt); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body PatchStepResponse `json:"body"`
		}{Body: PatchStepResponse{Success: true}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-order-step",
		Method:      http.MethodPost,
		Path:        "/orders/{id}/steps/{stepId}/complete",
		Summary:     "Complete a step and advance the order",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusConflict,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID     string `path:"id"`
		StepID string `path:"stepId"`
	}) (*struct {
		Body CompleteResponse `json:"body"`
	}, error) {
		res, err := e.Complete(ctx, input.ID, input.StepID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body CompleteResponse `json:"body"`
		}{Body: CompleteResponse{Success: true, NextStepID: res.NextStepID}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "resolve-order-step",
		Method:      http.MethodGet,
		Path:        "/orders/{id}/steps-by-blueprint",
		Summary:     "Resolve a blueprint step to the order's instance",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ID              string `path:"id"`
		BlueprintStepID string `query:"stepBlueprintId"`
	}) (*struct {
		Body ResolveStepResponse `json:"body"`
	}, error) {
		if input.BlueprintStepID == "" {
			return nil, newAPIError(http.StatusBadRequest, "stepBlueprintId is required", "")
		}
		id, err := e.ResolveOrderStep(ctx, input.ID, input.BlueprintStepID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body ResolveStepResponse `json:"body"`
		}{Body: ResolveStepResponse{Success: true, OrderStepID: id}}, nil
	})
}

func registerBoard(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-swimlane",
		Method:      http.MethodGet,
		Path:        "/swimlane",
		Summary:     "Swimlane board of the blueprint",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body SwimlaneResponse `json:"body"`
	}, error) {
		board, err := e.GetSwimlane(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body SwimlaneResponse `json:"body"`
		}{Body: swimlaneResponse(board)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-steps",
		Method:      http.MethodGet,
		Path:        "/steps",
		Summary:     "List blueprint steps in global order",
		Errors:      []int{http.StatusInternalServerError},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body BlueprintStepsResponse `json:"body"`
	}, error) {
		steps, err := e.BlueprintSteps(ctx)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body BlueprintStepsResponse `json:"body"`
		}{Body: BlueprintStepsResponse{
			Success: true,
			Steps:   mapBlueprintSteps(steps),
			Count:   len(steps),
		}}, nil
	})
}
