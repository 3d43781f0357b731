// Package memory owns the token-bounded conversation window for one session:
// ordered message history, a rolling summary of pruned messages, and the
// budget enforcement that keeps prompt context from growing unbounded.
package memory

// Estimator estimates the token cost of a text span. Estimates are used for
// budget comparisons only, so they must be deterministic but not
// billing-accurate.
type Estimator interface {
	Estimate(text string) int
}

// perMessageOverhead accounts for role framing and delimiters around each
// message when it is rendered into a prompt.
const perMessageOverhead = 4

// HeuristicEstimator approximates tokens as ~4 characters each, rounded up,
// plus a small per-message overhead. Good enough for threshold comparison.
type HeuristicEstimator struct{}

func (HeuristicEstimator) Estimate(text string) int {
	if len(text) == 0 {
		return 0
	}
	return (len(text)+3)/4 + perMessageOverhead
}
