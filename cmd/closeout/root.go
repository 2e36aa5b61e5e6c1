package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/deixis/closeout"
	"github.com/deixis/closeout/internal/config"
	"github.com/deixis/closeout/internal/metrics"
	"github.com/deixis/closeout/internal/runner"
	"github.com/deixis/closeout/internal/summary"
	"github.com/deixis/closeout/internal/workflow"
)

// app holds the state shared by all commands of one execution.
type app struct {
	stdout io.Writer
	stderr io.Writer

	verbose bool
	noColor bool

	loaded   *config.LoadResult
	log      *slog.Logger
	metrics  *metrics.Metrics
	lookPath func(string) (string, error) // nil: exec.LookPath

	exitCode int
}

// execute runs the command line and returns the process exit code. Every
// failure of the orchestrator itself, usage errors included, maps to
// workflow.LocalErrorExitCode so it never reads as a decision.
func execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{stdout: stdout, stderr: stderr}
	return a.execute(ctx, args)
}

func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		a.printError(err)
		return workflow.LocalErrorExitCode
	}
	return a.exitCode
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "closeout",
		Short: "Run the closeout evaluator and summarise its decision",
		Long: `closeout invokes the pre-built closeout evaluator, classifies its exit code
(0 GO, 2 NO_GO, 3 NEEDS_DATA, anything else ERROR), summarises its JSON report
and exits with the evaluator's own code. Failures to run the evaluator at all
(binary not found, spawn failure, timeout) exit with code 1.`,
		Version:       closeout.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "debug logging and the decision summary")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(
		a.runCmd(),
		a.batchCmd(),
		a.locateCmd(),
		a.mcpCmd(),
	)
	return root
}

// init sets up logging and loads the configuration.
func (a *app) init() error {
	level := slog.LevelInfo
	if a.verbose {
		level = slog.LevelDebug
	}
	noColor := a.noColor || !isTerminal(a.stderr)
	if noColor {
		color.NoColor = true
	}
	a.log = slog.New(tint.NewHandler(a.stderr, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
		NoColor:    noColor,
	}))
	slog.SetDefault(a.log)

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	a.loaded = loaded
	if loaded.Path != "" {
		a.log.Debug("loaded config", "path", loaded.Path)
	}
	return nil
}

func (a *app) config() *config.Config { return a.loaded.Config }

// newEngine builds the workflow engine for the loaded configuration.
func (a *app) newEngine() (*workflow.Engine, *runner.Runner) {
	cfg := a.config()
	r := &runner.Runner{
		Timeout:   cfg.Timeout(),
		KillGrace: cfg.KillGrace(),
	}
	return &workflow.Engine{
		Config:   cfg,
		Runner:   r,
		Root:     a.loaded.Root,
		Metrics:  a.metrics,
		Logger:   a.log,
		LookPath: a.lookPath,
	}, r
}

func (a *app) summaryOptions() summary.Options {
	cfg := a.config()
	return summary.Options{
		MaxIssues:  cfg.MaxIssues(),
		MessageMax: cfg.MessageMax(),
		CodeMax:    summary.DefaultOptions.CodeMax,
	}
}

func (a *app) printError(err error) {
	fmt.Fprintf(a.stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("ERROR:"), err)
}

// statusColor paints a decision status for the terminal.
func statusColor(s string) *color.Color {
	switch s {
	case "GO":
		return color.New(color.FgGreen, color.Bold)
	case "NO_GO":
		return color.New(color.FgRed, color.Bold)
	case "NEEDS_DATA":
		return color.New(color.FgYellow, color.Bold)
	default:
		return color.New(color.FgMagenta, color.Bold)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// binLabel is the name shown in stderr headers.
func binLabel(path string) string {
	return filepath.Base(path)
}
