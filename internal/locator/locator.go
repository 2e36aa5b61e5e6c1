// Package locator finds the evaluator binary.
//
// Resolution order is fixed so that the same tree resolves the same binary
// on every machine: an explicit path, then the search path, then the
// conventional build-output locations relative to the project root.
package locator

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrBinaryNotFound is matched by every locator failure.
var ErrBinaryNotFound = errors.New("evaluator binary not found")

// NotFoundError lists every location that was tried.
type NotFoundError struct {
	Name  string
	Tried []string
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s not found", e.Name)
	if len(e.Tried) > 0 {
		fmt.Fprintf(&b, "; tried:")
		for _, t := range e.Tried {
			fmt.Fprintf(&b, "\n  %s", t)
		}
	}
	return b.String()
}

func (e *NotFoundError) Unwrap() error { return ErrBinaryNotFound }

// Source names the rule that produced a resolved path.
type Source string

const (
	FromExplicit  Source = "explicit"
	FromPath      Source = "PATH"
	FromCandidate Source = "candidate"
)

// Match is a resolved evaluator binary.
type Match struct {
	Path   string
	Source Source
}

// DefaultCandidates returns the conventional build-output locations for
// a binary name, in the order they are tried.
func DefaultCandidates(name string) []string {
	dirs := []string{
		"build",
		"build/bin",
		"build/Release",
		"build/Debug",
		"build/RelWithDebInfo",
		"cmake-build-release",
		"cmake-build-debug",
		"out/build",
		"bin",
	}
	out := make([]string, len(dirs))
	for i, d := range dirs {
		out[i] = filepath.Join(d, exeName(name))
	}
	return out
}

// Locator resolves the evaluator binary.
type Locator struct {
	Name       string   // conventional binary name, e.g. closeout_cli
	Base       string   // directory that relative candidates are resolved against
	Candidates []string // relative or absolute; DefaultCandidates(Name) when nil

	// LookPath searches the system path. Defaults to exec.LookPath.
	LookPath func(file string) (string, error)
}

// Resolve returns the evaluator path. See Locate.
func (l *Locator) Resolve(explicit string) (string, error) {
	m, err := l.Locate(explicit)
	if err != nil {
		return "", err
	}
	return m.Path, nil
}

// Locate returns the first match of: explicit (when non-empty), Name on
// the system path, then each candidate in order. A relative explicit path
// is taken relative to the working directory, candidates relative to Base.
// An explicit path that does not exist is an error; it never falls through
// to the other rules.
func (l *Locator) Locate(explicit string) (*Match, error) {
	if explicit != "" {
		p, err := filepath.Abs(explicit)
		if err == nil {
			var info os.FileInfo
			info, err = os.Stat(p)
			if err == nil && info.IsDir() {
				err = fmt.Errorf("%s is a directory", p)
			}
		}
		if err != nil {
			return nil, &NotFoundError{Name: explicit, Tried: []string{explicit + " (" + errText(err) + ")"}}
		}
		return &Match{Path: p, Source: FromExplicit}, nil
	}

	if l.Name == "" {
		return nil, &NotFoundError{Name: "evaluator"}
	}

	var tried []string

	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	if p, err := lookPath(l.Name); err == nil {
		if abs, err := filepath.Abs(p); err == nil {
			p = abs
		}
		return &Match{Path: p, Source: FromPath}, nil
	}
	tried = append(tried, "$PATH/"+l.Name)

	candidates := l.Candidates
	if candidates == nil {
		candidates = DefaultCandidates(l.Name)
	}
	for _, c := range candidates {
		p, err := l.abs(c)
		if err != nil {
			continue
		}
		tried = append(tried, p)
		if isExecutable(p) {
			return &Match{Path: p, Source: FromCandidate}, nil
		}
	}

	return nil, &NotFoundError{Name: l.Name, Tried: tried}
}

func (l *Locator) abs(p string) (string, error) {
	if filepath.IsAbs(p) || l.Base == "" {
		return filepath.Abs(p)
	}
	return filepath.Join(l.Base, p), nil
}

// isExecutable reports whether p is a regular file with an execute bit.
func isExecutable(p string) bool {
	info, err := os.Stat(p)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

func exeName(name string) string {
	if runtime.GOOS == "windows" && filepath.Ext(name) == "" {
		return name + ".exe"
	}
	return name
}

func errText(err error) string {
	if errors.Is(err, os.ErrNotExist) {
		return "does not exist"
	}
	return err.Error()
}
