package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/deixis/closeout/internal/summary"
	"github.com/deixis/closeout/internal/workflow"
)

func (a *app) batchCmd() *cobra.Command {
	var (
		flags    invocationFlags
		manifest string
		outDir   string
		jobs     int
		asJSON   bool
	)
	cmd := &cobra.Command{
		Use:   "batch [--manifest runs.yaml] [--out-dir dir] [inputs...]",
		Short: "Run the evaluator on many inputs concurrently",
		Long: `Run independent evaluations concurrently. Runs come from a YAML manifest
(runs: [{name, in, out}]) and/or positional inputs; with --out-dir each input's
report is written to <out-dir>/<stem>.closeout.json. Output paths must be distinct.

Exits 1 if any run could not be executed, otherwise with the code of the most
severe decision (ERROR, then NO_GO, then NEEDS_DATA, then GO).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			base, err := flags.request(cmd.Flags())
			if err != nil {
				return err
			}

			var items []workflow.BatchItem
			if manifest != "" {
				m, err := workflow.LoadManifest(manifest)
				if err != nil {
					return err
				}
				mi, err := m.Items(base)
				if err != nil {
					return err
				}
				items = append(items, mi...)
			}
			items = append(items, workflow.ItemsFromInputs(args, outDir, base)...)

			engine, _ := a.newEngine()
			res, err := engine.Batch(cmd.Context(), items, jobs)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(a.stdout)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				a.printBatch(a.stdout, res)
			}
			a.exitCode = res.ExitCode
			return nil
		},
	}
	cmd.Flags().StringVar(&manifest, "manifest", "", "YAML batch manifest")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "directory for reports of positional inputs")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", workflow.DefaultJobs, "maximum concurrent runs")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the aggregate result as JSON")
	flags.register(cmd)
	return cmd
}

func (a *app) printBatch(w io.Writer, res *workflow.BatchResult) {
	table := tablewriter.NewWriter(w)
	table.Header("Name", "Status", "Exit", "Report", "Duration", "Run")
	for _, o := range res.Outcomes {
		if o.Err != nil {
			table.Append([]string{o.Name, "FAILED", "-", "-", "-", o.Error})
			continue
		}
		rr := o.Result
		rep := "no"
		if rr.HasReport() {
			rep = "yes"
		}
		table.Append([]string{
			o.Name,
			rr.Status.String(),
			strconv.Itoa(rr.ExitCode),
			rep,
			rr.Duration.Round(time.Millisecond).String(),
			rr.ID,
		})
	}
	table.Render()

	fmt.Fprintf(w, "\n%d runs: %s\n", len(res.Outcomes), summary.FormatCounts(res.Counts()))
	if a.verbose {
		for _, o := range res.Outcomes {
			if o.Result == nil {
				continue
			}
			fmt.Fprintf(w, "\n== %s\n", o.Name)
			a.printRun(w, o.Result)
		}
	}
}
