package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func noEnv(string) (string, bool) { return "", false }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoad_FromRoot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), "version: 1\ntimeout: 10m\ndialect: closeout_demo\nsearch: [tools/bin/closeout_demo]\n")

	res, err := load(dir, noEnv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != dir {
		t.Errorf("Root = %q, want %q", res.Root, dir)
	}
	if res.Path != filepath.Join(dir, FileName) {
		t.Errorf("Path = %q", res.Path)
	}
	if res.Config.Version != 1 {
		t.Errorf("Version = %d, want 1", res.Config.Version)
	}
	if res.Config.Timeout() != 10*time.Minute {
		t.Errorf("Timeout = %v, want 10m", res.Config.Timeout())
	}
	if res.Config.DialectName() != DialectDemo {
		t.Errorf("DialectName = %q", res.Config.DialectName())
	}
	if len(res.Config.Search) != 1 {
		t.Errorf("Search = %v", res.Config.Search)
	}
}

func TestLoad_FromSubdirectory(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, FileName), "version: 2\n")
	sub := filepath.Join(root, "runs", "variant-a")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := load(sub, noEnv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != root {
		t.Errorf("Root = %q, want %q", res.Root, root)
	}
	if res.Config.Version != 2 {
		t.Errorf("Version = %d, want 2", res.Config.Version)
	}
}

func TestLoad_GitRootWithoutFile(t *testing.T) {
	root := t.TempDir()
	if err := os.Mkdir(filepath.Join(root, ".git"), 0o755); err != nil {
		t.Fatal(err)
	}
	sub := filepath.Join(root, "a")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	res, err := load(sub, noEnv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if res.Root != root {
		t.Errorf("Root = %q, want %q", res.Root, root)
	}
	if res.Path != "" {
		t.Errorf("Path = %q, want empty", res.Path)
	}
}

func TestLoad_Defaults(t *testing.T) {
	res, err := load(t.TempDir(), noEnv)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := res.Config
	if c.Timeout() != DefaultTimeout {
		t.Errorf("Timeout = %v", c.Timeout())
	}
	if c.KillGrace() != DefaultKillGrace {
		t.Errorf("KillGrace = %v", c.KillGrace())
	}
	if c.DialectName() != DialectCLI {
		t.Errorf("DialectName = %q", c.DialectName())
	}
	if c.MaxIssues() != 5 || c.MessageMax() != 120 || c.StderrMax() != 2000 {
		t.Errorf("summary defaults = %d/%d/%d", c.MaxIssues(), c.MessageMax(), c.StderrMax())
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), "timeout: [unterminated\n")
	if _, err := load(dir, noEnv); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), "binary: /from/yaml\ntimeout: 10s\ndialect: closeout_cli\n")
	writeFile(t, filepath.Join(dir, ".env"), "CLOSEOUT_BIN=/from/dotenv\nCLOSEOUT_TIMEOUT=30\n")

	env := map[string]string{EnvDialect: DialectDemo}
	res, err := load(dir, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := res.Config
	if c.Binary != "/from/dotenv" {
		t.Errorf("Binary = %q, want .env value", c.Binary)
	}
	if c.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v, want 30s", c.Timeout())
	}
	if c.DialectName() != DialectDemo {
		t.Errorf("DialectName = %q, want process env value", c.DialectName())
	}

	// Process environment beats .env.
	env[EnvBinary] = "/from/env"
	res, err = load(dir, func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.Config.Binary != "/from/env" {
		t.Errorf("Binary = %q, want process env value", res.Config.Binary)
	}
}

func TestTimeout_InvalidFallsBack(t *testing.T) {
	for _, raw := range []string{"soon", "-5s", "0", "-3"} {
		c := &Config{RawTimeout: raw}
		if c.Timeout() != DefaultTimeout {
			t.Errorf("Timeout(%q) = %v, want default", raw, c.Timeout())
		}
	}
	c := &Config{RawTimeout: "45"}
	if c.Timeout() != 45*time.Second {
		t.Errorf("Timeout(45) = %v", c.Timeout())
	}
}

func TestConfig_DialectLookup(t *testing.T) {
	c := &Config{
		Dialects: map[string]Dialect{
			"legacy": {Binary: "closeout_legacy", Args: []string{"-i", "{in}", "-o", "{out}"}, StdoutSentinel: "stdout"},
			"broken": {Args: []string{"{out}"}},
		},
	}
	d, err := c.Dialect("legacy")
	if err != nil {
		t.Fatalf("Dialect(legacy): %v", err)
	}
	if d.Name != "legacy" || d.Binary != "closeout_legacy" {
		t.Errorf("legacy = %+v", d)
	}
	if _, err := c.Dialect("broken"); err == nil {
		t.Error("expected validation error for dialect without binary")
	}
	if _, err := c.Dialect("nope"); err == nil {
		t.Error("expected error for unknown dialect")
	}
	d, err = c.Dialect("")
	if err != nil || d.Name != DialectCLI {
		t.Errorf("default dialect = %q, %v", d.Name, err)
	}
	names := c.DialectNames()
	want := []string{"broken", DialectCLI, DialectDemo, "legacy"}
	if len(names) != len(want) {
		t.Fatalf("DialectNames = %v", names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("DialectNames[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestLoad_DialectFromYAML(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, FileName), `
dialect: legacy
dialects:
  legacy:
    binary: closeout_legacy
    args: ["-i", "{in}", "-o", "{out}"]
    stdout_sentinel: stdout
    thresholds:
      max_delta_mass: -m
thresholds:
  max_delta_mass: 15.5
`)
	res, err := load(dir, noEnv)
	if err != nil {
		t.Fatal(err)
	}
	d, err := res.Config.Dialect("")
	if err != nil {
		t.Fatal(err)
	}
	args, err := d.Expand(Invocation{In: "in.json", Thresholds: res.Config.Thresholds})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"-i", "in.json", "-o", "stdout", "-m", "15.5"}
	if !equal(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestExpand_CLI(t *testing.T) {
	d := builtinDialects[DialectCLI]
	args, err := d.Expand(Invocation{In: "in.json", Out: "out.json", Pretty: true, EmitNull: false, RequireMassBreakdown: true})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"--in", "in.json", "--out", "out.json", "--pretty", "1", "--emit-null", "0", "--require-mass-breakdown", "1"}
	if !equal(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestExpand_StdoutSentinelAndThresholds(t *testing.T) {
	d := builtinDialects[DialectCLI]
	mass, power := 12.0, 85.25
	args, err := d.Expand(Invocation{In: "-", Thresholds: Thresholds{MaxDeltaMassKg: &mass, MaxPowerHoverK: &power}})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"--in", "-", "--out", "-", "--pretty", "0", "--emit-null", "0", "--require-mass-breakdown", "0",
		"--max-delta-mass", "12", "--max-power-hover", "85.25",
	}
	if !equal(args, want) {
		t.Errorf("args = %v, want %v", args, want)
	}
}

func TestExpand_DemoRequiresOutput(t *testing.T) {
	d := builtinDialects[DialectDemo]
	if _, err := d.Expand(Invocation{In: "in.json"}); !errors.Is(err, ErrNoStdout) {
		t.Errorf("err = %v, want ErrNoStdout", err)
	}
	mass := 1.0
	args, err := d.Expand(Invocation{In: "in.json", Out: "artifacts/closeout.json", Thresholds: Thresholds{MaxDeltaMassKg: &mass}})
	if err != nil {
		t.Fatal(err)
	}
	if !equal(args, []string{"artifacts/closeout.json"}) {
		t.Errorf("args = %v", args)
	}
}

func TestThresholds_Merge(t *testing.T) {
	a, b := 1.0, 2.0
	got := Thresholds{MaxDeltaMassKg: &a}.Merge(Thresholds{MaxDeltaMassKg: &b, MinDiskAreaM2: &b})
	if *got.MaxDeltaMassKg != 1 || *got.MinDiskAreaM2 != 2 || got.MaxPowerHoverK != nil {
		t.Errorf("Merge = %+v", got.Values())
	}
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		raw     string
		want    time.Duration
		wantErr bool
	}{
		{"90s", 90 * time.Second, false},
		{"2m", 2 * time.Minute, false},
		{"45", 45 * time.Second, false},
		{"0", 0, true},
		{"-5s", 0, true},
		{"soon", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseDuration(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseDuration(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}
