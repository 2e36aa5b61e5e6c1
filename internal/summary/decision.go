package summary

import (
	"fmt"
	"strings"

	"github.com/deixis/closeout/internal/report"
)

// Decision renders the evaluator's own decision metadata: variant, gate
// decision, failed gates, missing data and mass delta. Missing fields render
// as "unknown" or "N/A".
func Decision(v report.Value) string {
	gr := v.Get("gate_result")
	md := v.Get("mass_delta")

	var b strings.Builder
	fmt.Fprintln(&b, "Closeout Decision")
	fmt.Fprintf(&b, "- Variant: %s\n", oneLine(v.Get("variant_name").ScalarOr("unknown")))
	fmt.Fprintf(&b, "- Concept: %s\n", oneLine(v.Get("variant_concept").ScalarOr("unknown")))
	fmt.Fprintf(&b, "- Gate decision: %s\n", oneLine(gr.Get("decision").ScalarOr("unknown")))
	fmt.Fprintf(&b, "- Failed gates: %s\n", listCount(gr.Get("failed_gates")))
	fmt.Fprintf(&b, "- Missing data: %s\n", listCount(gr.Get("missing_data")))
	fmt.Fprintf(&b, "- Delta mass: %s kg\n", md.Get("delta_mass_total_kg").ScalarOr("N/A"))
	fmt.Fprintf(&b, "- Resulting mass: %s kg\n", md.Get("resulting_aircraft_mass_kg").ScalarOr("N/A"))
	fmt.Fprintf(&b, "- Payload ratio: %s\n", md.Get("resulting_payload_ratio").ScalarOr("N/A"))
	return b.String()
}

// listCount renders the length of a list followed by its scalar entries,
// e.g. "2 (mass_gate, power_gate)".
func listCount(v report.Value) string {
	items := v.Items()
	if len(items) == 0 {
		return "0"
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		if s := it.ScalarOr(""); s != "" {
			names = append(names, Truncate(oneLine(s), 60))
		}
	}
	if len(names) == 0 {
		return fmt.Sprintf("%d", len(items))
	}
	return fmt.Sprintf("%d (%s)", len(items), strings.Join(names, ", "))
}

// Stderr renders the evaluator's stderr under a "[label stderr]" header,
// cut to max characters. It returns "" when stderr is blank.
func Stderr(label, stderr string, max int) string {
	if strings.TrimSpace(stderr) == "" {
		return ""
	}
	r := []rune(stderr)
	cut := max > 0 && len(r) > max
	if cut {
		r = r[:max]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\n[%s stderr]\n", label)
	b.WriteString(string(r))
	if cut {
		b.WriteString("\n...")
	}
	b.WriteString("\n")
	return b.String()
}
