// Package closeout orchestrates the external closeout evaluator and
// reconciles its exit code with the structured report it produces.
package closeout

// Version is the closeout orchestrator version.
const Version = "0.3.0"
