// Package summary renders bounded, human-readable summaries of evaluator
// reports. Reports are untrusted: every field is optional and may carry
// the wrong type, so every lookup falls back to a default.
package summary

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"github.com/deixis/closeout/internal/report"
)

const (
	// Unknown marks a gate verdict or issue kind that is missing or invalid.
	Unknown = "Unknown"

	ellipsis = "..."
)

// Options bound the rendered summary.
type Options struct {
	MaxIssues  int // issue detail lines
	MessageMax int // characters per issue message, ellipsis included
	CodeMax    int // characters per issue code, ellipsis included
}

// DefaultOptions matches the evaluator's documented summary format.
var DefaultOptions = Options{
	MaxIssues:  5,
	MessageMax: 120,
	CodeMax:    500,
}

// Summarize renders v with DefaultOptions.
func Summarize(v report.Value) string {
	return DefaultOptions.Summarize(v)
}

// NoReport is the summary printed when no structured report was obtained.
func NoReport() string {
	return "Closeout Summary\n- (no JSON parsed)\n"
}

// Report renders v, or NoReport when no document (or a bare null) was
// parsed.
func (o Options) Report(v report.Value) string {
	if !v.Present() || v.IsNull() {
		return NoReport()
	}
	return o.Summarize(v)
}

// Summarize renders the gate verdicts, issue counts by kind and the first
// well-formed issues of v. It never fails; an absent or malformed v renders
// with every field defaulted.
func (o Options) Summarize(v report.Value) string {
	o = o.withDefaults()

	var b strings.Builder
	fmt.Fprintln(&b, "Closeout Summary")
	fmt.Fprintf(&b, "- Gates: %s\n", Gates(v))
	fmt.Fprintf(&b, "- Issue counts: %s\n", FormatCounts(IssueCounts(v)))
	fmt.Fprintln(&b, "- Top issues:")
	for _, line := range o.issueLines(v) {
		fmt.Fprintln(&b, line)
	}
	return b.String()
}

// Gates renders the three gate verdicts.
func Gates(v report.Value) string {
	gates := v.Get("gates")
	return fmt.Sprintf("mass=%s, disk_area=%s, power=%s",
		oneLine(gates.Get("mass_gate").StringOr(Unknown)),
		oneLine(gates.Get("disk_area_gate").StringOr(Unknown)),
		oneLine(gates.Get("power_gate").StringOr(Unknown)),
	)
}

// IssueCounts tallies issues by kind. Entries that are not objects, or
// whose kind is missing, empty or not a string, count under Unknown.
func IssueCounts(v report.Value) map[string]int {
	counts := make(map[string]int)
	for _, it := range v.Get("issues").Items() {
		kind := Unknown
		if it.IsObject() {
			if k, ok := it.Get("kind").AsString(); ok && k != "" {
				kind = oneLine(k)
			}
		}
		counts[kind]++
	}
	return counts
}

// FormatCounts renders counts as "key=count" pairs sorted by key, or
// "none" when empty.
func FormatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return "none"
	}
	keys := slices.Sorted(maps.Keys(counts))
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, counts[k])
	}
	return strings.Join(parts, ", ")
}

func (o Options) issueLines(v report.Value) []string {
	var lines []string
	for _, it := range v.Get("issues").Items() {
		if len(lines) == o.MaxIssues {
			break
		}
		if !it.IsObject() {
			continue
		}
		code := Truncate(oneLine(it.Get("code").ScalarOr("")), o.CodeMax)
		msg := Truncate(oneLine(it.Get("message").ScalarOr("")), o.MessageMax)
		if code == "" && msg == "" {
			continue
		}
		lines = append(lines, strings.TrimSpace(fmt.Sprintf("- %s: %s", code, msg)))
	}
	if len(lines) == 0 {
		return []string{"- (none)"}
	}
	return lines
}

// Truncate shortens s to at most max characters. A shortened string ends
// in "..." and the ellipsis counts toward max.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(r[:max])
	}
	return string(r[:max-len(ellipsis)]) + ellipsis
}

// oneLine replaces control characters so that every report string renders
// on a single line.
func oneLine(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
}

func (o Options) withDefaults() Options {
	if o.MaxIssues <= 0 {
		o.MaxIssues = DefaultOptions.MaxIssues
	}
	if o.MessageMax <= 0 {
		o.MessageMax = DefaultOptions.MessageMax
	}
	if o.CodeMax <= 0 {
		o.CodeMax = DefaultOptions.CodeMax
	}
	return o
}
