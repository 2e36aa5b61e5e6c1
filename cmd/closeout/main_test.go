package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/deixis/closeout/internal/workflow"
)

// fakeEvaluator speaks the closeout_cli dialect; the outcome is chosen by
// the input file name.
const fakeEvaluator = `#!/bin/sh
all="$*"
in=""
out="-"
while [ $# -gt 0 ]; do
  case "$1" in
    --in) in="$2"; shift 2 ;;
    --out) out="$2"; shift 2 ;;
    *) shift ;;
  esac
done
emit() {
  if [ "$out" = "-" ]; then printf '%s\n' "$1"; else printf '%s\n' "$1" > "$out"; fi
}
case "$(basename "$in")" in
  heavy*)
    emit '{"variant_name":"V2","gates":{"mass_gate":"Fail","disk_area_gate":"Pass","power_gate":"Pass"},"issues":[{"code":"MASS_OVER","message":"delta mass exceeds limit","kind":"mass"}],"gate_result":{"decision":"NO_GO","failed_gates":["mass_gate"]}}'
    echo "mass gate failed" >&2
    exit 2 ;;
  missing*) echo "not json"; exit 3 ;;
  broken*) exit 7 ;;
  slow*) sleep 30 ;;
  args*) echo "$all" >&2; emit '{}'; exit 0 ;;
  noisy*)
    i=0
    while [ $i -lt 300 ]; do echo "warning line $i" >&2; i=$((i+1)); done
    emit '{}'; exit 0 ;;
  *) emit '{"gates":{"mass_gate":"Pass","disk_area_gate":"Pass","power_gate":"Pass"},"issues":[]}'; exit 0 ;;
esac
`

// workspace creates a project with the fake evaluator in build/ and makes
// it the working directory.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".closeout.yaml"), []byte("version: 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(dir, "build", "closeout_cli")
	if err := os.MkdirAll(filepath.Dir(bin), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bin, []byte(fakeEvaluator), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Chdir(dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errb bytes.Buffer
	a := &app{
		stdout:   &out,
		stderr:   &errb,
		noColor:  true,
		lookPath: func(string) (string, error) { return "", errors.New("not on path") },
	}
	code = a.execute(context.Background(), args)
	return code, out.String(), errb.String()
}

func assertContains(t *testing.T, text string, wants ...string) {
	t.Helper()
	for _, want := range wants {
		if !strings.Contains(text, want) {
			t.Errorf("expected %q in output, got:\n%s", want, text)
		}
	}
}

func TestRun_Go(t *testing.T) {
	workspace(t)
	code, _, stderr := runCLI(t, "run", "--in", "light.json")
	if code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr)
	}
	assertContains(t, stderr,
		"Closeout Summary",
		"- Gates: mass=Pass, disk_area=Pass, power=Pass",
		"- Issue counts: none",
		"- (none)",
		"Status: GO (exit 0)",
	)
}

func TestRun_NoGoToFile(t *testing.T) {
	dir := workspace(t)
	code, _, stderr := runCLI(t, "run", "--in", "heavy.json", "--out", "out/heavy.report.json")
	if code != 2 {
		t.Fatalf("exit = %d, want 2; stderr:\n%s", code, stderr)
	}
	assertContains(t, stderr,
		"- Gates: mass=Fail",
		"- Issue counts: mass=1",
		"- MASS_OVER: delta mass exceeds limit",
		"[closeout_cli stderr]\nmass gate failed",
		"Status: NO_GO (exit 2)",
	)
	if _, err := os.Stat(filepath.Join(dir, "out", "heavy.report.json")); err != nil {
		t.Errorf("report not written: %v", err)
	}
	if strings.Contains(stderr, "Closeout Decision") {
		t.Error("decision block is verbose-only")
	}
}

func TestRun_VerboseDecision(t *testing.T) {
	workspace(t)
	code, _, stderr := runCLI(t, "run", "-v", "--in", "heavy.json")
	if code != 2 {
		t.Fatalf("exit = %d", code)
	}
	assertContains(t, stderr, "Closeout Decision", "- Variant: V2", "- Failed gates: 1 (mass_gate)")
}

func TestRun_NeedsDataWithoutReport(t *testing.T) {
	workspace(t)
	code, _, stderr := runCLI(t, "run", "--in", "missing.json")
	if code != 3 {
		t.Fatalf("exit = %d, want 3", code)
	}
	assertContains(t, stderr, "Closeout Summary\n- (no JSON parsed)\n", "Status: NEEDS_DATA (exit 3)")
}

func TestRun_ForwardsUnknownCode(t *testing.T) {
	workspace(t)
	code, _, stderr := runCLI(t, "run", "--in", "broken.json")
	if code != 7 {
		t.Fatalf("exit = %d, want 7", code)
	}
	assertContains(t, stderr, "Status: ERROR (exit 7)")
}

func TestRun_ArgumentAssembly(t *testing.T) {
	workspace(t)
	code, _, stderr := runCLI(t, "run", "--in", "args.json",
		"--compact", "--omit-null", "--no-mass-breakdown", "--max-delta-mass", "3")
	if code != 0 {
		t.Fatalf("exit = %d, stderr:\n%s", code, stderr)
	}
	assertContains(t, stderr,
		"--in args.json --out - --pretty 0 --emit-null 0 --require-mass-breakdown 0 --max-delta-mass 3")
}

func TestRun_DefaultToggles(t *testing.T) {
	workspace(t)
	code, _, stderr := runCLI(t, "run", "--in", "args.json", "--out", "r.json")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	assertContains(t, stderr, "--out r.json --pretty 1 --emit-null 1 --require-mass-breakdown 1")
}

func TestRun_StderrSnippetTruncated(t *testing.T) {
	workspace(t)
	_, _, stderr := runCLI(t, "run", "--in", "noisy.json")
	assertContains(t, stderr, "[closeout_cli stderr]\nwarning line 0", "\n...\n")
	if strings.Contains(stderr, "warning line 299") {
		t.Error("stderr snippet must be cut")
	}
}

func TestRun_ArtifactDir(t *testing.T) {
	dir := workspace(t)
	code, _, stderr := runCLI(t, "-v", "run", "--in", "heavy.json", "--out", "out/heavy.json", "--artifact-dir", "artifacts")
	if code != 2 {
		t.Fatalf("exit = %d, want 2; stderr:\n%s", code, stderr)
	}
	want := filepath.Join(dir, "artifacts", "closeout.json")
	assertContains(t, stderr, "Copied report to "+want)
	copied, err := os.ReadFile(want)
	if err != nil {
		t.Fatal(err)
	}
	orig, err := os.ReadFile(filepath.Join(dir, "out", "heavy.json"))
	if err != nil {
		t.Fatal(err)
	}
	if string(copied) != string(orig) {
		t.Errorf("artifact differs from report:\n%s\nvs\n%s", copied, orig)
	}
}

func TestRun_Timeout(t *testing.T) {
	workspace(t)
	start := time.Now()
	code, _, stderr := runCLI(t, "run", "--in", "slow.json", "--timeout", "1")
	if code != workflow.LocalErrorExitCode {
		t.Fatalf("exit = %d, want %d", code, workflow.LocalErrorExitCode)
	}
	assertContains(t, stderr, "ERROR:", "timeout")
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Errorf("returned after %v", elapsed)
	}
}

func TestRun_LocalErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing in", []string{"run"}, "in"},
		{"pretty and compact", []string{"run", "--in", "a.json", "--pretty", "--compact"}, "pretty"},
		{"emit and omit null", []string{"run", "--in", "a.json", "--emit-null", "--omit-null"}, "null"},
		{"binary missing", []string{"run", "--in", "a.json", "--bin", "./nope/closeout_cli"}, "not found"},
		{"bad timeout", []string{"run", "--in", "a.json", "--timeout", "0"}, "timeout"},
		{"unknown dialect", []string{"run", "--in", "a.json", "--dialect", "nope"}, "unknown dialect"},
		{"demo needs out", []string{"run", "--in", "a.json", "--dialect", "closeout_demo", "--bin", "build/closeout_cli"}, "output path"},
		{"unknown flag", []string{"run", "--frobnicate"}, "unknown flag"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			workspace(t)
			code, _, stderr := runCLI(t, tt.args...)
			if code != workflow.LocalErrorExitCode {
				t.Errorf("exit = %d, want %d", code, workflow.LocalErrorExitCode)
			}
			assertContains(t, stderr, "ERROR:", tt.want)
		})
	}
}

func TestRun_BinaryFromEnvironment(t *testing.T) {
	dir := workspace(t)
	alt := filepath.Join(dir, "alt_eval")
	if err := os.WriteFile(alt, []byte("#!/bin/sh\necho '{}'\nexit 3\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CLOSEOUT_BIN", alt)

	code, _, _ := runCLI(t, "run", "--in", "light.json")
	if code != 3 {
		t.Errorf("exit = %d, want 3 from the env binary", code)
	}

	// The flag wins over the environment.
	code, _, _ = runCLI(t, "run", "--in", "light.json", "--bin", "build/closeout_cli")
	if code != 0 {
		t.Errorf("exit = %d, want 0 from --bin", code)
	}
}

func TestBatch_Table(t *testing.T) {
	workspace(t)
	code, stdout, stderr := runCLI(t, "batch", "--out-dir", "reports", "light.json", "heavy.json", "missing.json")
	if code != 2 {
		t.Fatalf("exit = %d, want 2; stderr:\n%s", code, stderr)
	}
	upper := strings.ToUpper(stdout)
	assertContains(t, upper, "NAME", "STATUS")
	assertContains(t, stdout, "light", "heavy", "missing", "NO_GO", "NEEDS_DATA", "3 runs: GO=1, NEEDS_DATA=1, NO_GO=1")
}

func TestBatch_JSON(t *testing.T) {
	workspace(t)
	code, stdout, _ := runCLI(t, "batch", "--json", "--out-dir", "reports", "light.json", "slow.json", "--timeout", "1")
	if code != workflow.LocalErrorExitCode {
		t.Fatalf("exit = %d, want %d", code, workflow.LocalErrorExitCode)
	}
	var got struct {
		Runs []struct {
			Name   string `json:"name"`
			Error  string `json:"error"`
			Result *struct {
				Status   string `json:"status"`
				ExitCode int    `json:"exit_code"`
			} `json:"result"`
		} `json:"runs"`
		ExitCode int `json:"exit_code"`
	}
	if err := json.Unmarshal([]byte(stdout), &got); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, stdout)
	}
	if len(got.Runs) != 2 || got.ExitCode != workflow.LocalErrorExitCode {
		t.Fatalf("got %+v", got)
	}
	if got.Runs[0].Result == nil || got.Runs[0].Result.Status != "GO" {
		t.Errorf("light = %+v", got.Runs[0])
	}
	if got.Runs[1].Result != nil || !strings.Contains(got.Runs[1].Error, "timeout") {
		t.Errorf("slow = %+v", got.Runs[1])
	}
}

func TestBatch_Manifest(t *testing.T) {
	dir := workspace(t)
	manifest := "pretty: false\nruns:\n  - name: one\n    in: light.json\n    out: r/one.json\n  - name: two\n    in: broken.json\n    out: r/two.json\n"
	if err := os.WriteFile(filepath.Join(dir, "runs.yaml"), []byte(manifest), 0o644); err != nil {
		t.Fatal(err)
	}
	code, stdout, stderr := runCLI(t, "batch", "--manifest", "runs.yaml")
	if code != 7 {
		t.Fatalf("exit = %d, want 7; stderr:\n%s", code, stderr)
	}
	assertContains(t, stdout, "one", "two", "ERROR")
}

func TestBatch_Collision(t *testing.T) {
	workspace(t)
	code, _, stderr := runCLI(t, "batch", "--out-dir", "reports", "a/design.json", "b/design.json")
	if code != workflow.LocalErrorExitCode {
		t.Fatalf("exit = %d", code)
	}
	assertContains(t, stderr, "more than one run")
}

func TestLocate(t *testing.T) {
	dir := workspace(t)
	code, stdout, _ := runCLI(t, "locate")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	assertContains(t, stdout, filepath.Join(dir, "build", "closeout_cli"), "candidate")

	code, _, stderr := runCLI(t, "locate", "--dialect", "closeout_demo")
	if code != workflow.LocalErrorExitCode {
		t.Errorf("exit = %d, want %d", code, workflow.LocalErrorExitCode)
	}
	assertContains(t, stderr, "closeout_demo")
}

func TestMCPInstructions(t *testing.T) {
	workspace(t)
	code, stdout, _ := runCLI(t, "mcp", "--instructions")
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	assertContains(t, stdout, "closeout_run", "closeout_inspect")
}
