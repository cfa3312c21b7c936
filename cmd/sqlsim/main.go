// Package main contains the cli implementation of the simulator. It uses
// cobra package for cli tool implementation.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	_ "modernc.org/sqlite"

	"sqlsim/generation"
	"sqlsim/internal/sqlcheck"
	"sqlsim/output"
	"sqlsim/runner"
	"sqlsim/sim"
)

type runFlags struct {
	configFile      string
	seed            int64
	maxInteractions int
	backend         string
	dsn             string
	outputDir       string
	name            string
	format          string
	checkSQL        bool
	disableReopen   bool
	verbose         bool
}

func (f *runFlags) options(cmd *cobra.Command) (sim.Options, error) {
	opts := sim.DefaultOptions()
	if f.configFile != "" {
		loaded, err := sim.LoadOptions(f.configFile)
		if err != nil {
			return opts, err
		}
		opts = loaded
	}
	if cmd.Flags().Changed("seed") {
		opts.Seed = f.seed
	}
	if cmd.Flags().Changed("max-interactions") {
		opts.MaxInteractions = f.maxInteractions
	}
	if cmd.Flags().Changed("backend") {
		opts.Backend = sim.Backend(strings.ToLower(f.backend))
	}
	if cmd.Flags().Changed("dsn") {
		opts.DSN = f.dsn
	}
	if f.checkSQL {
		opts.CheckSQL = true
	}
	if f.disableReopen {
		opts.DisableReopenDatabase = true
	}
	return opts, opts.Validate()
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if !verbose {
		return zap.NewNop(), nil
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.DisableStacktrace = true
	return cfg.Build()
}

// simulate generates a plan for the options, writes the plan pair, and
// interprets the plan against a fresh database. The report is returned even
// when the run fails.
func simulate(ctx context.Context, opts sim.Options, base string, log *zap.Logger) (*runner.Report, error) {
	genEnv := sim.NewGenerationEnv(opts, log)
	plan := generation.ArbitraryPlan(genEnv)

	if opts.CheckSQL {
		if err := sqlcheck.New().CheckPlan(plan); err != nil {
			return nil, fmt.Errorf("generated plan failed SQL check: %w", err)
		}
	}
	if base != "" {
		if err := plan.WriteFiles(base); err != nil {
			return nil, err
		}
	}

	env, err := sim.NewEnv(opts, log)
	if err != nil {
		return nil, err
	}
	defer func() { _ = env.Close() }()

	report, runErr := runner.New(env, plan).Run(ctx)
	return report, runErr
}

func newRunCmd() *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Generate a plan and execute it against the database under test",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(flags.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			name := flags.name
			if name == "" {
				name = fmt.Sprintf("plan-%d", opts.Seed)
			}
			base := filepath.Join(flags.outputDir, name)

			report, runErr := simulate(cmd.Context(), opts, base, log)
			if report != nil {
				formatter, ferr := output.NewFormatter(flags.format)
				if ferr != nil {
					return ferr
				}
				formatted, ferr := formatter.FormatReport(report)
				if ferr != nil {
					return ferr
				}
				fmt.Fprint(cmd.OutOrStdout(), formatted)
				fmt.Fprintf(cmd.OutOrStdout(), "plan files: %s.plan %s.json\n", base, base)
			}
			return runErr
		},
	}
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "TOML options file")
	cmd.Flags().Int64Var(&flags.seed, "seed", 1, "generator seed")
	cmd.Flags().IntVar(&flags.maxInteractions, "max-interactions", 100, "plan length bound")
	cmd.Flags().StringVar(&flags.backend, "backend", "sqlite", "engine under test (sqlite or mysql)")
	cmd.Flags().StringVar(&flags.dsn, "dsn", "", "DSN for the mysql backend")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", ".", "directory for the plan file pair")
	cmd.Flags().StringVar(&flags.name, "name", "", "base name of the plan file pair")
	cmd.Flags().StringVarP(&flags.format, "format", "f", "human", "report format (human or json)")
	cmd.Flags().BoolVar(&flags.checkSQL, "check-sql", false, "parse every rendered query before running")
	cmd.Flags().BoolVar(&flags.disableReopen, "disable-reopen", false, "never inject the REOPEN_DATABASE fault")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	return cmd
}

func newDiffCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diff <file.plan>",
		Short: "Reconstruct a pruned plan from an edited plan file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pruned, err := generation.ComputeViaDiff(args[0])
			if err != nil {
				return err
			}
			total := 0
			for _, interactions := range pruned {
				for _, interaction := range interactions {
					fmt.Fprintf(cmd.OutOrStdout(), "%s;\n", interaction)
					total++
				}
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%d items, %d interactions survive\n", len(pruned), total)
			return nil
		},
	}
}

func newLintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "lint <file.json>",
		Short: "Check every query of a serialized plan against a SQL grammar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := generation.LoadPlan(args[0])
			if err != nil {
				return err
			}
			if err := sqlcheck.New().CheckPlan(plan); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d items, all queries parse\n", args[0], len(plan.Plan))
			return nil
		},
	}
}

func newLoopCmd() *cobra.Command {
	var flags runFlags
	var runs, parallel int
	var startSeed int64
	cmd := &cobra.Command{
		Use:   "loop",
		Short: "Run a campaign of seeds and report the first failure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			baseOpts, err := flags.options(cmd)
			if err != nil {
				return err
			}
			log, err := newLogger(flags.verbose)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i := 0; i < runs; i++ {
				opts := baseOpts
				opts.Seed = startSeed + int64(i)
				g.Go(func() error {
					base := filepath.Join(flags.outputDir, fmt.Sprintf("plan-%d", opts.Seed))
					if _, err := simulate(ctx, opts, base, log); err != nil {
						return fmt.Errorf("seed %d: %w", opts.Seed, err)
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s seed %d\n", color.GreenString("PASS"), opts.Seed)
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "all %d seeds passed\n", runs)
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags.configFile, "config", "c", "", "TOML options file")
	cmd.Flags().IntVar(&flags.maxInteractions, "max-interactions", 100, "plan length bound")
	cmd.Flags().StringVar(&flags.backend, "backend", "sqlite", "engine under test (sqlite or mysql)")
	cmd.Flags().StringVar(&flags.dsn, "dsn", "", "DSN for the mysql backend")
	cmd.Flags().StringVarP(&flags.outputDir, "output-dir", "o", ".", "directory for plan file pairs")
	cmd.Flags().BoolVar(&flags.checkSQL, "check-sql", false, "parse every rendered query before running")
	cmd.Flags().BoolVar(&flags.disableReopen, "disable-reopen", false, "never inject the REOPEN_DATABASE fault")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")
	cmd.Flags().IntVar(&runs, "runs", 10, "number of seeds to try")
	cmd.Flags().Int64Var(&startSeed, "start-seed", 1, "first seed of the campaign")
	cmd.Flags().IntVar(&parallel, "parallel", 4, "concurrent simulations")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "sqlsim",
		Short: "Deterministic property-based simulator for SQL engines",
	}
	rootCmd.AddCommand(newRunCmd(), newDiffCmd(), newLintCmd(), newLoopCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}
