package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"abmviz/internal"
	"abmviz/internal/config"
	"abmviz/internal/container"
	"abmviz/internal/testkit"
)

// options are the flags shared by every command
type options struct {
	logLevel string
	dataDir  string
	outDir   string
	baseline string
	files    []string
	names    []string
	workers  int
	tracked  []string
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	opts := &options{}
	rootCmd := &cobra.Command{
		Use:           "abmviz",
		Short:         "Post-process agent-based model scenario runs against a baseline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.logLevel, "log-level", "", "ERROR, WARN, INFO, DEBUG or TRACE (default from LOG_LEVEL)")
	flags.StringVar(&opts.dataDir, "data-dir", "", "directory holding the dataset files (default from DATA_DIR)")
	flags.StringVar(&opts.outDir, "output-dir", "", "directory for workbooks and charts (default from OUTPUT_DIR)")
	flags.StringVar(&opts.baseline, "baseline", "", "baseline dataset name (default from BASELINE_FILE)")
	flags.StringSliceVar(&opts.files, "scenario-files", nil, "scenario dataset names (default from SCENARIO_FILES)")
	flags.StringSliceVar(&opts.names, "scenario-names", nil, "scenario display names (default from SCENARIO_NAMES)")
	flags.IntVar(&opts.workers, "workers", 0, "scenarios compared concurrently (default from MAX_WORKERS)")
	flags.StringSliceVar(&opts.tracked, "tracked", nil, "variables to derive and compare (default from TRACKED_VARIABLES)")

	rootCmd.AddCommand(
		newRunCmd(opts),
		newInspectCmd(opts),
		newDemoCmd(opts),
		newServeCmd(opts),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// setup loads configuration, applies flag overrides and builds the
// dependency container
func setup(opts *options) (*container.Container, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.Data.Dir = opts.dataDir
	}
	if opts.outDir != "" {
		cfg.Output.Dir = opts.outDir
	}
	if opts.baseline != "" {
		cfg.Data.BaselineFile = opts.baseline
	}
	if len(opts.files) > 0 {
		cfg.Data.ScenarioFiles = opts.files
	}
	if len(opts.names) > 0 {
		cfg.Data.ScenarioNames = opts.names
	}
	if opts.workers > 0 {
		cfg.Pipeline.MaxWorkers = opts.workers
	}
	if len(opts.tracked) > 0 {
		cfg.Pipeline.Tracked = opts.tracked
	}
	cfg.Warnings = nil
	if err := cfg.Finalize(); err != nil {
		return nil, err
	}

	logger := internal.NewDefaultLogger()
	if opts.logLevel != "" {
		level, ok := internal.ParseLogLevel(opts.logLevel)
		if !ok {
			return nil, fmt.Errorf("unknown log level %q", opts.logLevel)
		}
		logger = internal.NewLogger(level)
	}
	for _, w := range cfg.Warnings {
		logger.Warn("[Config] %s", w)
	}
	return container.New(cfg, logger)
}

func newRunCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Derive means, sector aggregates and comparisons, then write workbook, charts and report",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(opts)
			if err != nil {
				return err
			}
			cfg := c.Config
			out, err := c.Analysis.Run(cmd.Context(), c.RunRequest())
			if err != nil {
				return err
			}

			if err := os.MkdirAll(cfg.Output.Dir, 0o755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
			path := filepath.Join(cfg.Output.Dir, fmt.Sprintf("report_%s.md", out.Summary.RunID))
			if err := os.WriteFile(path, out.Markdown, 0o644); err != nil {
				return fmt.Errorf("failed to write report: %w", err)
			}
			fmt.Printf("Run %s complete: %d scenarios, %d diagnostics (%d warnings)\n",
				out.Summary.RunID, len(out.Summary.Scenarios), out.Summary.DiagnosticCount, out.Summary.Warnings())
			if out.Summary.Workbook != "" {
				fmt.Printf("Workbook: %s\n", out.Summary.Workbook)
			}
			fmt.Printf("Report:   %s\n", path)
			return nil
		},
	}
	return cmd
}

func newInspectCmd(opts *options) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "inspect [dataset]",
		Short: "List the variables of a dataset and check it can be used in a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(opts)
			if err != nil {
				return err
			}
			rep, err := c.Inspector.Inspect(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}

			fmt.Printf("Dataset %s: %d variables\n", rep.Dataset, len(rep.Variables))
			for _, v := range rep.Variables {
				fmt.Printf("  %-40s %-20v %v\n", v.Name, v.Shape, v.Axes)
			}
			for _, m := range rep.Missing {
				fmt.Printf("  missing: %s\n", m)
			}
			for _, w := range rep.Warnings {
				fmt.Printf("  warning: %s\n", w)
			}
			for _, i := range rep.Issues {
				fmt.Printf("  issue:   %s\n", i)
			}
			if !rep.Compatible {
				return fmt.Errorf("dataset %s is not compatible", rep.Dataset)
			}
			fmt.Println("Compatible.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func newDemoCmd(opts *options) *cobra.Command {
	var seed int64
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Write synthetic baseline and scenario datasets shaped by the catalogue",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(opts)
			if err != nil {
				return err
			}
			cfg, store := c.Config, c.Store
			genCfg := testkit.DefaultSimulationConfig()
			genCfg.Seed = seed
			gen := testkit.NewSimulationGenerator(c.Catalogue, genCfg)

			base, err := gen.Baseline(cfg.Data.BaselineFile)
			if err != nil {
				return err
			}
			if err := store.Save(cmd.Context(), base); err != nil {
				return err
			}
			for _, name := range cfg.Data.ScenarioFiles {
				sc, err := gen.Scenario(name, base)
				if err != nil {
					return err
				}
				if err := store.Save(cmd.Context(), sc); err != nil {
					return err
				}
			}
			fmt.Printf("Wrote %d datasets to %s\n", 1+len(cfg.Data.ScenarioFiles), cfg.Data.Dir)
			return nil
		},
	}
	cmd.Flags().Int64Var(&seed, "seed", testkit.DefaultSimulationConfig().Seed, "random seed")
	return cmd
}

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the pipeline once and serve its summary and report over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := setup(opts)
			if err != nil {
				return err
			}
			cfg, logger := c.Config, c.Logger
			if addr != "" {
				cfg.Server.Addr = addr
			}
			if _, err := c.Analysis.Run(cmd.Context(), c.RunRequest()); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              cfg.Server.Addr,
				Handler:           c.HTTPHandler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errCh := make(chan error, 1)
			go func() {
				logger.Info("[HTTP] listening on %s", cfg.Server.Addr)
				errCh <- srv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				logger.Info("[HTTP] shutting down")
				return srv.Shutdown(shutdownCtx)
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from HTTP_ADDR)")
	return cmd
}
