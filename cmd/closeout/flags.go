package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/deixis/closeout/internal/config"
	"github.com/deixis/closeout/internal/workflow"
)

// invocationFlags are the evaluator options shared by run and batch.
type invocationFlags struct {
	bin             string
	dialect         string
	pretty          bool
	compact         bool
	emitNull        bool
	omitNull        bool
	noMassBreakdown bool
	timeout         int

	maxDeltaMass  float64
	minDiskArea   float64
	maxPowerHover float64
}

func (f *invocationFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.bin, "bin", "", "path to the evaluator binary (default: discovered)")
	fs.StringVar(&f.dialect, "dialect", "", "invocation dialect: closeout_cli, closeout_demo or one from .closeout.yaml")
	fs.BoolVar(&f.pretty, "pretty", false, "pretty-print the report (default)")
	fs.BoolVar(&f.compact, "compact", false, "compact report output")
	fs.BoolVar(&f.emitNull, "emit-null", false, "emit null for unset numeric fields (default)")
	fs.BoolVar(&f.omitNull, "omit-null", false, "omit unset numeric fields instead of emitting null")
	fs.BoolVar(&f.noMassBreakdown, "no-mass-breakdown", false, "do not require the mass-breakdown gate")
	fs.IntVar(&f.timeout, "timeout", 0, "timeout in seconds (default from config, 120)")
	fs.Float64Var(&f.maxDeltaMass, "max-delta-mass", 0, "maximum allowed mass delta in kg")
	fs.Float64Var(&f.minDiskArea, "min-disk-area", 0, "minimum rotor disk area in m2")
	fs.Float64Var(&f.maxPowerHover, "max-power-hover", 0, "maximum hover power in kW")

	cmd.MarkFlagsMutuallyExclusive("pretty", "compact")
	cmd.MarkFlagsMutuallyExclusive("emit-null", "omit-null")
}

// request converts the parsed flags into a base request. Thresholds are
// only passed when their flag was given.
func (f *invocationFlags) request(fs *pflag.FlagSet) (workflow.Request, error) {
	req := workflow.DefaultRequest("", "")
	req.Binary = f.bin
	req.Dialect = f.dialect
	req.Pretty = !f.compact
	req.EmitNull = !f.omitNull
	req.RequireMassBreakdown = !f.noMassBreakdown

	if fs.Changed("timeout") {
		if f.timeout <= 0 {
			return req, fmt.Errorf("%w: --timeout must be a positive number of seconds", workflow.ErrInvalidRequest)
		}
		req.Timeout = time.Duration(f.timeout) * time.Second
	}

	var t config.Thresholds
	if fs.Changed("max-delta-mass") {
		t.MaxDeltaMassKg = &f.maxDeltaMass
	}
	if fs.Changed("min-disk-area") {
		t.MinDiskAreaM2 = &f.minDiskArea
	}
	if fs.Changed("max-power-hover") {
		t.MaxPowerHoverK = &f.maxPowerHover
	}
	req.Thresholds = t
	return req, nil
}
