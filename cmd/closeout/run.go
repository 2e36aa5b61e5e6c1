package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/deixis/closeout/internal/report"
	"github.com/deixis/closeout/internal/summary"
)

func (a *app) runCmd() *cobra.Command {
	var (
		flags invocationFlags
		in       string
		out      string
		artifact string
	)
	cmd := &cobra.Command{
		Use:   "run --in <input.json> [--out <report.json>]",
		Short: "Run the evaluator once and exit with its decision code",
		Long: `Run the evaluator on one input file. The summary is printed to stderr and the
process exits with the evaluator's code: 0 GO, 2 NO_GO, 3 NEEDS_DATA, anything
else ERROR. Without --out the report is read from the evaluator's stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(cmd.Flags())
			if err != nil {
				return err
			}
			req.In = in
			req.Out = out
			req.ArtifactDir = artifact

			engine, _ := a.newEngine()
			rr, err := engine.Closeout(cmd.Context(), req)
			if err != nil {
				return err
			}

			a.printRun(a.stderr, rr)
			a.exitCode = rr.ExitCode
			return nil
		},
	}
	cmd.Flags().StringVar(&in, "in", "", "input JSON path (required)")
	cmd.Flags().StringVar(&out, "out", "", "report JSON path (default: evaluator stdout)")
	cmd.Flags().StringVar(&artifact, "artifact-dir", "", "also copy a parsed report to <dir>/closeout.json")
	_ = cmd.MarkFlagRequired("in")
	flags.register(cmd)
	return cmd
}

// printRun writes the human summary of one run.
func (a *app) printRun(w io.Writer, rr *report.RunResult) {
	fmt.Fprint(w, a.summaryOptions().Report(rr.Report))
	if a.verbose && rr.HasReport() {
		fmt.Fprintln(w)
		fmt.Fprint(w, summary.Decision(rr.Report))
	}
	fmt.Fprint(w, summary.Stderr(binLabel(rr.Binary), rr.Stderr, a.config().StderrMax()))
	if a.verbose && rr.Artifact != "" {
		fmt.Fprintf(w, "Copied report to %s\n", rr.Artifact)
	}
	fmt.Fprintf(w, "\nStatus: %s (exit %d)\n", statusColor(rr.Status.String()).Sprint(rr.Status), rr.ExitCode)
}
