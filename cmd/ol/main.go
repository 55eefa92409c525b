package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"orderline/internal/app"
	"orderline/internal/config"
	"orderline/internal/engine"
	"orderline/internal/repo"
	"orderline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "ol",
	Short: "Orderline CLI",
	Long: `Orderline tracks orders as they move through a blueprint of phases and steps.
Core concepts:
- Blueprint: the reusable process definition (phases, steps, lanes, actions, quality gates).
- Order (Auftrag): one customer job walking through the blueprint.
- Initialization: clones the blueprint into order-scoped phases, steps and gate items.
- Completion: checks the quality gate when a step closes its phase, then advances the
  order's current-step pointer along the cloned chain.
- Ampel: green/yellow/red from the order's open incident count.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ORDERLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(stepsCmd())
	rootCmd.AddCommand(swimlaneCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

// loadConfig reads orderline.yml (falling back to defaults), merges the
// Airtable credentials from the environment and validates the result.
func loadConfig() (*config.Config, error) {
	workspace := viper.GetString("workspace")
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("airtable-api-key"); v != "" {
		cfg.Airtable.APIKey = v
	}
	if v := viper.GetString("airtable-base-id"); v != "" {
		cfg.Airtable.BaseID = v
	}
	if cfg.Store.Workspace == "" || cfg.Store.Workspace == "." {
		cfg.Store.Workspace = workspace
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := app.OpenStore(cfg)
	if err != nil {
		return err
	}
	e := app.NewEngine(cfg, store, zap.NewNop())
	return fn(ctx, e)
}

func orderCmd() *cobra.Command {
	order := &cobra.Command{
		Use:   "order",
		Short: "Manage orders",
		Long:  "Orders walk the blueprint. Create one, initialize it to clone the blueprint, then complete steps to advance it.",
	}
	order.AddCommand(orderListCmd())
	order.AddCommand(orderCreateCmd())
	order.AddCommand(orderShowCmd())
	order.AddCommand(orderInitCmd())
	order.AddCommand(orderCompleteCmd())
	return order
}

func orderListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				views, err := e.ListOrders(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(views)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Kunde", "Status", "Aktueller Step", "Störungen", "Ampel"})
				for _, v := range views {
					tw.AppendRow(table.Row{v.ID, v.Name, v.Customer, v.Status, v.CurrentStepName, v.OpenIncidents, v.Severity})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func orderCreateCmd() *cobra.Command {
	var name, kunde, priority, process string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if name == "" {
				return fmt.Errorf("--name required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.Repo.CreateOrder(ctx, repo.CreateOrderOptions{
					Name:      name,
					Customer:  kunde,
					Priority:  priority,
					ProcessID: process,
				})
				if err != nil {
					return err
				}
				return printJSONOrIndent(o)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "order name")
	cmd.Flags().StringVar(&kunde, "kunde", "", "customer name")
	cmd.Flags().StringVar(&priority, "priority", "", "priority (defaults to Mittel)")
	cmd.Flags().StringVar(&process, "process", "", "process record id to link")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func orderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an order with derived fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				v, err := e.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrIndent(v)
			})
		},
	}
	return cmd
}

func orderInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init <id>",
		Short: "Initialize an order from the blueprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Initialize(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Initialized: %d phases, %d steps, %d gate items\n",
					res.CreatedPhases, res.CreatedSteps, res.CreatedGateItems)
				return nil
			})
		},
	}
	return cmd
}

func orderCompleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "complete <order-id> <order-step-id>",
		Short: "Complete a step and advance the order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				res, err := e.Complete(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(res)
				}
				fmt.Printf("Advanced to %s\n", res.NextStepID)
				return nil
			})
		},
	}
	return cmd
}

func stepsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "steps",
		Short: "List blueprint steps in global order",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				steps, err := e.BlueprintSteps(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(steps)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Reihenfolge", "Phase", "Letzter der Phase", "Init"})
				for _, s := range steps {
					tw.AppendRow(table.Row{s.ID, s.Name, s.GlobalOrder, s.PhaseID, s.LastOfPhase, s.UseForInit})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func swimlaneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swimlane",
		Short: "Show the swimlane board of the blueprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				board, err := e.GetSwimlane(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(board)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Step", "Lane", "Phase"})
				for _, s := range board.Steps {
					tw.AppendRow(table.Row{s.Name, s.LaneName, s.PhaseName})
				}
				tw.Render()
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{Use: "config", Short: "Manage configuration"}
	cfg.AddCommand(configInitCmd())
	cfg.AddCommand(configShowCmd())
	return cfg
}

func configInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default orderline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault()), 0o644); err != nil {
				return err
			}
			fmt.Printf("Wrote %s\n", path)
			return nil
		},
	}
	return cmd
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			// Never print the API key.
			cfg.Airtable.APIKey = ""
			return printJSONOrIndent(cfg)
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.HTTP.Addr = addr
			}
			if basePath != "" {
				cfg.HTTP.BasePath = basePath
			}
			log, err := zap.NewProduction()
			if err != nil {
				return err
			}
			defer log.Sync()
			store, err := app.OpenStore(cfg)
			if err != nil {
				return err
			}
			e := app.NewEngine(cfg, store, log)
			handler, err := server.New(server.Config{Engine: e, BasePath: cfg.HTTP.BasePath})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			log.Info("serving", zap.String("addr", cfg.HTTP.Addr), zap.String("store", cfg.Store.Kind))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (overrides config)")
	return cmd
}

func printJSONOrIndent(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
