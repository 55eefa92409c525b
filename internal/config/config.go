package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Store kinds.
const (
	StoreAirtable = "airtable"
	StoreSQLite   = "sqlite"
	StoreMemory   = "memory"
)

// Config models orderline.yml. The Airtable credentials are usually injected
// from the environment (ORDERLINE_AIRTABLE_API_KEY, ORDERLINE_AIRTABLE_BASE_ID)
// rather than written to the file.
type Config struct {
	Store struct {
		Kind      string `yaml:"kind"`
		Workspace string `yaml:"workspace"`
	} `yaml:"store"`
	HTTP struct {
		Addr     string `yaml:"addr"`
		BasePath string `yaml:"base_path"`
	} `yaml:"http"`
	Airtable struct {
		APIKey   string `yaml:"api_key"`
		BaseID   string `yaml:"base_id"`
		Endpoint string `yaml:"endpoint"`
	} `yaml:"airtable"`
	Tables Tables `yaml:"tables"`
}

// Tables maps logical tables to their names in the backing store. Defaults
// are the German names of the Airtable base this system grew out of.
type Tables struct {
	Orders         string `yaml:"orders"`
	Phases         string `yaml:"phases"`
	Steps          string `yaml:"steps"`
	Lanes          string `yaml:"lanes"`
	Actions        string `yaml:"actions"`
	GateItems      string `yaml:"gate_items"`
	QualityGates   string `yaml:"quality_gates"`
	OrderPhases    string `yaml:"order_phases"`
	OrderSteps     string `yaml:"order_steps"`
	OrderGateItems string `yaml:"order_gate_items"`
	Incidents      string `yaml:"incidents"`
	// Events is optional; empty disables the audit trail.
	Events string `yaml:"events"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, "orderline.yml")
}

// Load reads and validates config from the workspace.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config %s not found; run with defaults or create it from the template", Path(workspace))
		}
		return nil, err
	}
	return FromYAML(data)
}

// LoadOptional returns the default config if the file does not exist.
func LoadOptional(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// FromYAML parses config from raw YAML bytes, filling defaults for anything
// unset. Validation is deferred to Validate so env credentials can be merged
// in first.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	cfg.fillDefaults()
	return cfg, nil
}

// Default returns the built-in configuration (memory store, German schema).
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	cfg.fillDefaults()
	return &cfg
}

func (c *Config) fillDefaults() {
	if c.Store.Kind == "" {
		c.Store.Kind = StoreMemory
	}
	if c.Store.Workspace == "" {
		c.Store.Workspace = "."
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.BasePath == "" {
		c.HTTP.BasePath = "/"
	}
	def := defaultTables()
	fill := func(dst *string, v string) {
		if *dst == "" {
			*dst = v
		}
	}
	fill(&c.Tables.Orders, def.Orders)
	fill(&c.Tables.Phases, def.Phases)
	fill(&c.Tables.Steps, def.Steps)
	fill(&c.Tables.Lanes, def.Lanes)
	fill(&c.Tables.Actions, def.Actions)
	fill(&c.Tables.GateItems, def.GateItems)
	fill(&c.Tables.QualityGates, def.QualityGates)
	fill(&c.Tables.OrderPhases, def.OrderPhases)
	fill(&c.Tables.OrderSteps, def.OrderSteps)
	fill(&c.Tables.OrderGateItems, def.OrderGateItems)
	fill(&c.Tables.Incidents, def.Incidents)
}

func defaultTables() Tables {
	return Tables{
		Orders:         "Aufträge",
		Phases:         "Phases",
		Steps:          "Steps",
		Lanes:          "Lanes",
		Actions:        "Actions",
		GateItems:      "Quality Gate Items",
		QualityGates:   "Quality Gates",
		OrderPhases:    "Auftragsphasen",
		OrderSteps:     "Auftragsschritte",
		OrderGateItems: "Auftrags-Quality-Gate-Items",
		Incidents:      "Incidents",
	}
}

// Validate checks the store selection and, for the Airtable backend, the two
// required credentials. Errors are descriptive on purpose: a missing key or a
// malformed base id must never surface as an opaque crash.
func (c *Config) Validate() error {
	switch c.Store.Kind {
	case StoreAirtable:
		if c.Airtable.APIKey == "" {
			return fmt.Errorf("airtable api key missing; set ORDERLINE_AIRTABLE_API_KEY or airtable.api_key in %s", "orderline.yml")
		}
		if c.Airtable.BaseID == "" {
			return fmt.Errorf("airtable base id missing; set ORDERLINE_AIRTABLE_BASE_ID or airtable.base_id in %s", "orderline.yml")
		}
		if !strings.HasPrefix(c.Airtable.BaseID, "app") || len(c.Airtable.BaseID) != 17 {
			return fmt.Errorf("airtable base id %q is malformed; expected an id like appXXXXXXXXXXXXXX", c.Airtable.BaseID)
		}
	case StoreSQLite, StoreMemory:
	default:
		return fmt.Errorf("unknown store kind %q; expected airtable, sqlite or memory", c.Store.Kind)
	}
	if c.Tables.Orders == "" || c.Tables.Steps == "" || c.Tables.Phases == "" {
		return fmt.Errorf("tables.orders, tables.phases and tables.steps are required")
	}
	return nil
}

const defaultTemplate = `store:
  kind: memory
  workspace: .

http:
  addr: ":8080"
  base_path: /

airtable:
  api_key: ""
  base_id: ""

tables:
  orders: "Aufträge"
  phases: "Phases"
  steps: "Steps"
  lanes: "Lanes"
  actions: "Actions"
  gate_items: "Quality Gate Items"
  quality_gates: "Quality Gates"
  order_phases: "Auftragsphasen"
  order_steps: "Auftragsschritte"
  order_gate_items: "Auftrags-Quality-Gate-Items"
  incidents: "Incidents"
  events: ""
`

// GenerateDefault returns the default config YAML, for `ol config init`.
func GenerateDefault() string {
	return defaultTemplate
}
