package orderlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Orderline HTTP API client.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Order represents the API order model.
type Order struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Kunde           string `json:"kunde"`
	Status          string `json:"status"`
	Prioritaet      string `json:"prioritaet"`
	AktuellerStep   string `json:"aktuellerStep"`
	AktuellerStepID string `json:"aktuellerStepId"`
	OffeneStoerung  int    `json:"offeneStoerungen"`
	Ampel           string `json:"ampel"`
}

// OrderStep is an order's instance of a blueprint step.
type OrderStep struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	StepID          string `json:"stepId"`
	IstLetzter      bool   `json:"istLetzterSchritt"`
	Erledigt        bool   `json:"erledigt"`
	NextOrderStepID string `json:"nextOrderStepId"`
	OrderPhaseID    string `json:"orderPhaseId"`
}

// GateItem is one quality-gate checklist entry of an order phase.
type GateItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Erledigt    bool    `json:"erledigt"`
	Reihenfolge float64 `json:"reihenfolge"`
}

// StepDetail bundles a step with its actions and gate items.
type StepDetail struct {
	Step      OrderStep        `json:"step"`
	Actions   []map[string]any `json:"actions"`
	GateItems []GateItem       `json:"gateItems"`
}

// InitializeResult counts the records created by initialization.
type InitializeResult struct {
	CreatedPhases    int `json:"createdPhases"`
	CreatedSteps     int `json:"createdSteps"`
	CreatedGateItems int `json:"createdGateItems"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Orders lists all orders.
func (c *Client) Orders(ctx context.Context) ([]Order, error) {
	var resp struct {
		Orders []Order `json:"orders"`
	}
	err := c.do(ctx, http.MethodGet, "orders", nil, &resp)
	return resp.Orders, err
}

// Order fetches one order.
func (c *Client) Order(ctx context.Context, id string) (Order, error) {
	var resp struct {
		Order Order `json:"order"`
	}
	err := c.do(ctx, http.MethodGet, "orders/"+url.PathEscape(id), nil, &resp)
	return resp.Order, err
}

// CreateOrder creates an order.
func (c *Client) CreateOrder(ctx context.Context, name, kunde string) (Order, error) {
	body := map[string]any{"name": name, "kunde": kunde}
	var resp struct {
		Order Order `json:"order"`
	}
	err := c.do(ctx, http.MethodPost, "orders", body, &resp)
	return resp.Order, err
}

// Initialize clones the blueprint into the order.
func (c *Client) Initialize(ctx context.Context, orderID string) (InitializeResult, error) {
	var resp InitializeResult
	endpoint := fmt.Sprintf("orders/%s/initialize", url.PathEscape(orderID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp, err
}

// StepDetail fetches one order step with actions and gate items.
func (c *Client) StepDetail(ctx context.Context, orderID, orderStepID string) (StepDetail, error) {
	var resp StepDetail
	endpoint := fmt.Sprintf("orders/%s/steps/%s", url.PathEscape(orderID), url.PathEscape(orderStepID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// SetGateItem toggles a quality-gate item on a step.
func (c *Client) SetGateItem(ctx context.Context, orderID, orderStepID, gateItemID string, done bool) error {
	body := map[string]any{"gateItemId": gateItemID, "erledigt": done}
	endpoint := fmt.Sprintf("orders/%s/steps/%s", url.PathEscape(orderID), url.PathEscape(orderStepID))
	return c.do(ctx, http.MethodPatch, endpoint, body, nil)
}

// Complete finishes a step and returns the id the order advanced to.
func (c *Client) Complete(ctx context.Context, orderID, orderStepID string) (string, error) {
	var resp struct {
		NextStepID string `json:"nextStepId"`
	}
	endpoint := fmt.Sprintf("orders/%s/steps/%s/complete", url.PathEscape(orderID), url.PathEscape(orderStepID))
	err := c.do(ctx, http.MethodPost, endpoint, nil, &resp)
	return resp.NextStepID, err
}

// ResolveStep maps a blueprint step id to the order's instance of it.
func (c *Client) ResolveStep(ctx context.Context, orderID, blueprintStepID string) (string, error) {
	var resp struct {
		OrderStepID string `json:"orderStepId"`
	}
	endpoint := fmt.Sprintf("orders/%s/steps-by-blueprint?stepBlueprintId=%s",
		url.PathEscape(orderID), url.QueryEscape(blueprintStepID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.OrderStepID, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
