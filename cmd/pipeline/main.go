package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go-person-etl/internal/app"
	"go-person-etl/internal/config"
	"go-person-etl/internal/logging"
	"go-person-etl/internal/model"
	"go-person-etl/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "pipeline",
		Short:         "Person record ETL",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("config", os.Getenv("ETL_CONFIG"), "path to a YAML config file")
	root.AddCommand(newRunCmd(), newRateCmd(), newExecutionsCmd())
	return root
}

// loadApp reads --config and wires the pipeline. Logs go to stderr so
// stdout stays machine readable.
func loadApp(cmd *cobra.Command) (*app.App, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return app.New(cmd.Context(), cfg, logger)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once",
		Long: `Run extract, transform and load once and print the execution report.

Examples:
  pipeline run --input data/input/people.csv --insert-db
  pipeline run --sample --trm 4150.25`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, _ := cmd.Flags().GetString("input")
			sample, _ := cmd.Flags().GetBool("sample")
			insert, _ := cmd.Flags().GetBool("insert-db")

			if input == "" && !sample {
				return fmt.Errorf("one of --input or --sample is required")
			}
			req := pipeline.RunRequest{InputFile: input, UseSample: sample, InsertToDatabase: insert}
			if cmd.Flags().Changed("trm") {
				trm, _ := cmd.Flags().GetFloat64("trm")
				req.Rate = &trm
			}

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			defer a.Logger.Sync()

			report, runErr := a.Orchestrator.Run(cmd.Context(), req)
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if runErr != nil {
				return runErr
			}
			if report.Status == model.StatusError {
				return errors.New("run finished with status ERROR")
			}
			a.Logger.Info("run finished", zap.String("status", string(report.Status)))
			return nil
		},
	}
	cmd.Flags().String("input", "", "input file (.csv, .xlsx or .json)")
	cmd.Flags().Bool("sample", false, "use the embedded sample dataset")
	cmd.Flags().Bool("insert-db", false, "insert records into the database")
	cmd.Flags().Float64("trm", 0, "exchange rate override")
	return cmd
}

func newRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate",
		Short: "Print the current exchange rate and where it came from",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			return printJSON(cmd.OutOrStdout(), a.Rates.Lookup(cmd.Context()))
		},
	}
}

func newExecutionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "executions",
		Short: "List execution history",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			a, err := loadApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Store == nil {
				return fmt.Errorf("database is not enabled")
			}
			execs, err := a.Store.ListExecutions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), execs)
		},
	}
	cmd.Flags().Int("limit", 20, "maximum executions to list")
	return cmd
}
