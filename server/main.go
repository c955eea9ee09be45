// Command server runs the pipeline definition API and its maintenance
// commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/meikuraledutech/pipeline"
	"github.com/meikuraledutech/pipeline/config"
	"github.com/meikuraledutech/pipeline/editor"
	"github.com/meikuraledutech/pipeline/postgres"
	"github.com/meikuraledutech/pipeline/sqlite"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		verbose    bool
		configPath string
	)

	root := &cobra.Command{
		Use:          "pipeline-server",
		Short:        "Serve and maintain pipeline definitions",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := log.InfoLevel
			if verbose {
				level = log.DebugLevel
			}
			cmd.SetContext(log.WithContext(cmd.Context(), newLogger(os.Stderr, level)))
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("PIPELINE_CONFIG"), "path to a YAML or TOML config file")

	loadConfig := func(cmd *cobra.Command) (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		if !verbose {
			log.FromContext(cmd.Context()).SetLevel(cfg.Level())
		}
		return cfg, nil
	}

	root.AddCommand(newServeCmd(loadConfig))
	root.AddCommand(newSchemaCmd(loadConfig))
	root.AddCommand(newValidateCmd())
	root.AddCommand(newLayoutCmd(loadConfig, &configPath))
	return root
}

type configLoader func(cmd *cobra.Command) (*config.Config, error)

// newLogger creates a logger with timestamp formatting.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

func newServeCmd(loadConfig configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := log.FromContext(ctx)

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, closeStore, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeStore()

			app := newApp(store, logger, cfg.Layout)
			logger.Info("listening", "addr", cfg.Listen, "driver", cfg.Driver)
			return app.Listen(cfg.Listen)
		},
	}
}

func newSchemaCmd(loadConfig configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Create or drop the pipeline tables",
	}

	run := func(action string, fn func(pipeline.Store, context.Context) error) *cobra.Command {
		return &cobra.Command{
			Use:   action,
			Short: action + " the pipeline tables",
			RunE: func(cmd *cobra.Command, args []string) error {
				ctx := cmd.Context()
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				store, closeStore, err := openStore(ctx, cfg)
				if err != nil {
					return err
				}
				defer closeStore()

				if err := fn(store, ctx); err != nil {
					printError("schema %s failed: %v", action, err)
					return err
				}
				printSuccess("schema %s (%s)", action, cfg.Driver)
				return nil
			},
		}
	}

	cmd.AddCommand(run("create", pipeline.Store.CreateSchema))
	cmd.AddCommand(run("drop", pipeline.Store.DropSchema))
	return cmd
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <pipeline.json>",
		Short: "Check a pipeline definition without saving it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := readPipeline(args[0])
			if err != nil {
				return err
			}
			errs := validatePipeline(p)
			if len(errs) == 0 {
				printSuccess("%s is valid (%d steps)", p.Name, len(p.Steps))
				return nil
			}
			printValidationErrors(errs)
			return fmt.Errorf("%d validation error(s)", len(errs))
		},
	}
}

func newLayoutCmd(loadConfig configLoader, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "layout <pipeline.json>",
		Short: "Print the definition with auto-layout positions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := editor.DefaultLayoutConfig()
			if *configPath != "" {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				layout = cfg.Layout
			}

			p, err := readPipeline(args[0])
			if err != nil {
				return err
			}
			out, err := layoutPipeline(p, layout)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func readPipeline(path string) (*pipeline.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p pipeline.Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return &p, nil
}

// openStore connects the configured driver. The returned func releases it.
func openStore(ctx context.Context, cfg *config.Config) (pipeline.Store, func(), error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		s, err := sqlite.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("connect: %w", err)
		}
		return postgres.New(pool), pool.Close, nil
	}
}
