package config

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
)

// Built-in dialect names.
const (
	DialectCLI  = "closeout_cli"
	DialectDemo = "closeout_demo"

	DefaultDialect = DialectCLI
)

// Threshold keys understood by dialect threshold maps.
const (
	ThresholdMaxDeltaMass  = "max_delta_mass"
	ThresholdMinDiskArea   = "min_disk_area"
	ThresholdMaxPowerHover = "max_power_hover"
)

// ErrNoStdout is returned when a dialect cannot write its report to stdout
// and no output path was given.
var ErrNoStdout = errors.New("dialect cannot write the report to stdout; an output path is required")

// Dialect describes how an evaluator binary expects to be invoked.
//
// Args is an argv template. Each token may contain the placeholders
// {in}, {out}, {pretty}, {emit_null} and {require_mass_breakdown};
// booleans render as 1 or 0. {out} renders the output path, or
// StdoutSentinel when none was requested.
type Dialect struct {
	Name           string            `yaml:"-"`
	Binary         string            `yaml:"binary"`
	Args           []string          `yaml:"args"`
	StdoutSentinel string            `yaml:"stdout_sentinel"` // empty: the dialect always writes a file
	Thresholds     map[string]string `yaml:"thresholds"`      // threshold key -> flag
}

var builtinDialects = map[string]Dialect{
	DialectCLI: {
		Name:   DialectCLI,
		Binary: "closeout_cli",
		Args: []string{
			"--in", "{in}",
			"--out", "{out}",
			"--pretty", "{pretty}",
			"--emit-null", "{emit_null}",
			"--require-mass-breakdown", "{require_mass_breakdown}",
		},
		StdoutSentinel: "-",
		Thresholds: map[string]string{
			ThresholdMaxDeltaMass:  "--max-delta-mass",
			ThresholdMinDiskArea:   "--min-disk-area",
			ThresholdMaxPowerHover: "--max-power-hover",
		},
	},
	DialectDemo: {
		Name:   DialectDemo,
		Binary: "closeout_demo",
		Args:   []string{"{out}"},
	},
}

// DialectNames lists the built-in and configured dialects, sorted.
func (c *Config) DialectNames() []string {
	names := make(map[string]struct{}, len(builtinDialects)+len(c.Dialects))
	for n := range builtinDialects {
		names[n] = struct{}{}
	}
	for n := range c.Dialects {
		names[n] = struct{}{}
	}
	return slices.Sorted(maps.Keys(names))
}

// Validate reports configuration mistakes in a dialect definition.
func (d Dialect) Validate() error {
	if d.Binary == "" {
		return fmt.Errorf("dialect %q: binary is required", d.Name)
	}
	if len(d.Args) == 0 {
		return fmt.Errorf("dialect %q: args are required", d.Name)
	}
	for key := range d.Thresholds {
		switch key {
		case ThresholdMaxDeltaMass, ThresholdMinDiskArea, ThresholdMaxPowerHover:
		default:
			return fmt.Errorf("dialect %q: unknown threshold %q", d.Name, key)
		}
	}
	return nil
}

// Invocation holds the per-run values substituted into a dialect.
type Invocation struct {
	In                   string
	Out                  string // empty: report on stdout
	Pretty               bool
	EmitNull             bool
	RequireMassBreakdown bool
	Thresholds           Thresholds
}

// Expand renders the argument list (without the binary) for inv.
// Thresholds the dialect has no flag for are skipped.
func (d Dialect) Expand(inv Invocation) ([]string, error) {
	out := inv.Out
	if out == "" {
		if d.StdoutSentinel == "" {
			return nil, fmt.Errorf("dialect %q: %w", d.Name, ErrNoStdout)
		}
		out = d.StdoutSentinel
	}

	r := strings.NewReplacer(
		"{in}", inv.In,
		"{out}", out,
		"{pretty}", bool01(inv.Pretty),
		"{emit_null}", bool01(inv.EmitNull),
		"{require_mass_breakdown}", bool01(inv.RequireMassBreakdown),
	)
	args := make([]string, 0, len(d.Args)+2*len(d.Thresholds))
	for _, tok := range d.Args {
		args = append(args, r.Replace(tok))
	}

	values := inv.Thresholds.Values()
	for _, key := range slices.Sorted(maps.Keys(values)) {
		flag, ok := d.Thresholds[key]
		if !ok {
			continue
		}
		args = append(args, flag, strconv.FormatFloat(values[key], 'g', -1, 64))
	}
	return args, nil
}

func bool01(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
