// Package status maps evaluator exit codes to decision statuses.
//
// The table in Classify is the contract between the evaluator and every
// caller of this module. It is never derived from the report.
package status

// Status is the symbolic decision derived from an evaluator exit code.
type Status string

const (
	Go        Status = "GO"
	NoGo      Status = "NO_GO"
	NeedsData Status = "NEEDS_DATA"
	Error     Status = "ERROR"
)

// Evaluator exit codes that carry a decision.
const (
	ExitGo        = 0
	ExitNoGo      = 2
	ExitNeedsData = 3
)

// Classify returns the status for an evaluator exit code. It is total:
// every code outside the decision table is Error.
func Classify(code int) Status {
	switch code {
	case ExitGo:
		return Go
	case ExitNoGo:
		return NoGo
	case ExitNeedsData:
		return NeedsData
	default:
		return Error
	}
}

// IsDecision reports whether s is a decision rendered by the evaluator
// (GO, NO_GO or NEEDS_DATA) rather than an evaluator error.
func (s Status) IsDecision() bool {
	return s == Go || s == NoGo || s == NeedsData
}

// Severity orders statuses for aggregation: Error > NoGo > NeedsData > Go.
// Unknown values rank with Error.
func (s Status) Severity() int {
	switch s {
	case Go:
		return 0
	case NeedsData:
		return 1
	case NoGo:
		return 2
	default:
		return 3
	}
}

func (s Status) String() string { return string(s) }
