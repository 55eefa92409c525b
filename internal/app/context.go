package app

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"orderline/internal/config"
	"orderline/internal/engine"
	"orderline/internal/events"
	"orderline/internal/repo"
	"orderline/internal/tablestore"
)

// OpenStore builds the table store the config names. The airtable kind talks
// to the hosted backend, sqlite keeps everything in a workspace-local file and
// memory is for tests and dry runs.
func OpenStore(cfg *config.Config) (tablestore.Store, error) {
	switch cfg.Store.Kind {
	case config.StoreAirtable:
		return &tablestore.AirtableStore{
			APIKey:   cfg.Airtable.APIKey,
			BaseID:   cfg.Airtable.BaseID,
			Endpoint: cfg.Airtable.Endpoint,
			Client:   &http.Client{Timeout: 30 * time.Second},
		}, nil
	case config.StoreSQLite:
		return tablestore.OpenSQLite(cfg.Store.Workspace)
	case config.StoreMemory:
		return tablestore.NewMemStore(), nil
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}
}

// NewEngine wires repo, event writer and logger into an engine over the
// given store.
func NewEngine(cfg *config.Config, store tablestore.Store, log *zap.Logger) engine.Engine {
	r := repo.New(store, cfg.Tables)
	ev := events.Writer{
		Store: store,
		Table: cfg.Tables.Events,
		Log:   log,
	}
	return engine.New(r, ev, log)
}
