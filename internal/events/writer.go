package events

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"orderline/internal/tablestore"
)

// Writer appends workflow audit records to an optional events table.
// Appends are best effort: the workflow never fails because its diary did.
type Writer struct {
	Store tablestore.Store
	Table string
	Log   *zap.Logger
	Now   func() time.Time
}

type EventPayload map[string]any

// Append writes one event. A Writer with no table configured is a no-op.
func (w Writer) Append(ctx context.Context, evtType, orderID string, payload EventPayload) {
	if w.Table == "" || w.Store == nil {
		return
	}
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	if payload == nil {
		payload = EventPayload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		w.log().Warn("marshal event payload", zap.String("type", evtType), zap.Error(err))
		return
	}
	fields := tablestore.Fields{
		"Type":    evtType,
		"Auftrag": []string{orderID},
		"Payload": string(data),
		"TS":      now().UTC().Format(time.RFC3339),
	}
	if _, err := w.Store.Create(ctx, w.Table, []tablestore.Fields{fields}); err != nil {
		w.log().Warn("append event", zap.String("type", evtType), zap.String("order", orderID), zap.Error(err))
	}
}

func (w Writer) log() *zap.Logger {
	if w.Log != nil {
		return w.Log
	}
	return zap.NewNop()
}
