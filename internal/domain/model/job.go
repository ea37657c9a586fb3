package model

import "time"

// Job is one recording queued for processing. Seq is its position in the
// batch.
type Job struct {
	Seq       int
	Recording Recording
}

// Outcome is what processing one recording produced. Match and Metrics are
// set together on success; Err is set otherwise.
type Outcome struct {
	Seq       int
	Recording Recording

	Estimate   *TimestampEstimate
	Candidates int
	Match      *ResolvedMatch
	Metrics    *MatchMetrics
	Err        error

	Elapsed time.Duration
}

// Resolved reports whether the outcome carries a match.
func (o Outcome) Resolved() bool {
	return o.Err == nil && o.Match != nil
}
