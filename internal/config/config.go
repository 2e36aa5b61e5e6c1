// Package config loads the optional .closeout.yaml file and environment
// overrides that shape how the evaluator is located and invoked.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up from the working directory upward.
const FileName = ".closeout.yaml"

// Default values.
const (
	DefaultTimeout    = 120 * time.Second
	DefaultKillGrace  = 5 * time.Second
	DefaultStderrMax  = 2000
	DefaultMaxIssues  = 5
	DefaultMessageMax = 120
)

// Environment variables that override the file.
const (
	EnvBinary  = "CLOSEOUT_BIN"
	EnvDialect = "CLOSEOUT_DIALECT"
	EnvTimeout = "CLOSEOUT_TIMEOUT"
)

// Config holds the parsed .closeout.yaml configuration.
// All fields are optional; zero values represent defaults.
type Config struct {
	Version      int                `yaml:"version"`
	Binary       string             `yaml:"binary"`     // explicit evaluator path
	RawDialect   string             `yaml:"dialect"`    // e.g. closeout_cli
	RawTimeout   string             `yaml:"timeout"`    // e.g. "2m", "90s"
	RawKillGrace string             `yaml:"kill_grace"` // wait for pipes after a kill
	Search       []string           `yaml:"search"`     // extra candidate locations
	Dialects     map[string]Dialect `yaml:"dialects"`
	Summary      SummaryConfig      `yaml:"summary"`
	Thresholds   Thresholds         `yaml:"thresholds"`
}

// SummaryConfig bounds the human summary.
type SummaryConfig struct {
	MaxIssues  int `yaml:"max_issues"`
	MessageMax int `yaml:"message_max"`
	StderrMax  int `yaml:"stderr_max"`
}

// Thresholds are optional evaluator overrides. Nil means "not passed".
type Thresholds struct {
	MaxDeltaMassKg *float64 `yaml:"max_delta_mass" json:"max_delta_mass,omitempty"`
	MinDiskAreaM2  *float64 `yaml:"min_disk_area" json:"min_disk_area,omitempty"`
	MaxPowerHoverK *float64 `yaml:"max_power_hover" json:"max_power_hover,omitempty"`
}

// Merge returns t with every unset field taken from base.
func (t Thresholds) Merge(base Thresholds) Thresholds {
	if t.MaxDeltaMassKg == nil {
		t.MaxDeltaMassKg = base.MaxDeltaMassKg
	}
	if t.MinDiskAreaM2 == nil {
		t.MinDiskAreaM2 = base.MinDiskAreaM2
	}
	if t.MaxPowerHoverK == nil {
		t.MaxPowerHoverK = base.MaxPowerHoverK
	}
	return t
}

// Values returns the set thresholds keyed by dialect threshold name.
func (t Thresholds) Values() map[string]float64 {
	out := make(map[string]float64, 3)
	if t.MaxDeltaMassKg != nil {
		out[ThresholdMaxDeltaMass] = *t.MaxDeltaMassKg
	}
	if t.MinDiskAreaM2 != nil {
		out[ThresholdMinDiskArea] = *t.MinDiskAreaM2
	}
	if t.MaxPowerHoverK != nil {
		out[ThresholdMaxPowerHover] = *t.MaxPowerHoverK
	}
	return out
}

// Timeout returns the configured timeout or the default.
func (c *Config) Timeout() time.Duration {
	return parseDuration(c.RawTimeout, DefaultTimeout)
}

// KillGrace returns how long to wait for output pipes after the evaluator
// has been killed.
func (c *Config) KillGrace() time.Duration {
	return parseDuration(c.RawKillGrace, DefaultKillGrace)
}

// DialectName returns the configured dialect name or DefaultDialect.
func (c *Config) DialectName() string {
	if c.RawDialect != "" {
		return c.RawDialect
	}
	return DefaultDialect
}

// Dialect returns the named dialect, preferring a definition from the
// config file over the built-in one. An empty name selects DialectName().
func (c *Config) Dialect(name string) (Dialect, error) {
	if name == "" {
		name = c.DialectName()
	}
	if d, ok := c.Dialects[name]; ok {
		d.Name = name
		if err := d.Validate(); err != nil {
			return Dialect{}, err
		}
		return d, nil
	}
	if d, ok := builtinDialects[name]; ok {
		return d, nil
	}
	return Dialect{}, fmt.Errorf("unknown dialect %q (known: %s)", name, strings.Join(c.DialectNames(), ", "))
}

// MaxIssues returns the configured issue detail cap or the default.
func (c *Config) MaxIssues() int {
	return positiveOr(c.Summary.MaxIssues, DefaultMaxIssues)
}

// MessageMax returns the configured issue message cap or the default.
func (c *Config) MessageMax() int {
	return positiveOr(c.Summary.MessageMax, DefaultMessageMax)
}

// StderrMax returns the configured stderr snippet cap or the default.
func (c *Config) StderrMax() int {
	return positiveOr(c.Summary.StderrMax, DefaultStderrMax)
}

// LoadResult holds the parsed config and the discovered project root.
type LoadResult struct {
	Config *Config
	Root   string // directory holding .closeout.yaml or .git; falls back to workspace
	Path   string // config file path, empty when none was found
}

// Load reads .closeout.yaml from the project root, then applies overrides
// from <root>/.env and the process environment (which wins). The root is
// the first directory at or above workspace holding .closeout.yaml or .git.
// A missing file yields a default Config.
func Load(workspace string) (*LoadResult, error) {
	return load(workspace, os.LookupEnv)
}

func load(workspace string, lookupEnv func(string) (string, bool)) (*LoadResult, error) {
	ws, err := filepath.Abs(workspace)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace: %w", err)
	}
	root, err := findRoot(ws)
	if err != nil {
		root = ws
	}

	res := &LoadResult{Config: &Config{}, Root: root}

	path := filepath.Join(root, FileName)
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, res.Config); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", FileName, err)
		}
		res.Path = path
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("reading %s: %w", FileName, err)
	}

	dotenv, err := godotenv.Read(filepath.Join(root, ".env"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading .env: %w", err)
	}
	res.Config.applyEnv(func(key string) (string, bool) {
		if v, ok := lookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	})
	return res, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvBinary); ok && v != "" {
		c.Binary = v
	}
	if v, ok := lookup(EnvDialect); ok && v != "" {
		c.RawDialect = v
	}
	if v, ok := lookup(EnvTimeout); ok && v != "" {
		c.RawTimeout = v
	}
}

// findRoot walks upward from dir looking for .closeout.yaml or .git.
func findRoot(dir string) (string, error) {
	for {
		for _, marker := range []string{FileName, ".git"} {
			if _, err := os.Stat(filepath.Join(dir, marker)); err == nil {
				return dir, nil
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no %s or .git found", FileName)
		}
		dir = parent
	}
}

// ParseDuration accepts Go durations ("90s", "2m") and bare seconds
// ("90"). The result is always positive.
func ParseDuration(raw string) (time.Duration, error) {
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d, nil
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second, nil
	}
	return 0, fmt.Errorf("invalid duration %q", raw)
}

func parseDuration(raw string, def time.Duration) time.Duration {
	if raw == "" {
		return def
	}
	if d, err := ParseDuration(raw); err == nil {
		return d
	}
	return def
}

func positiveOr(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}
