package models

import "time"

// Attempt outcomes.
const (
	AttemptReached  = "reached"
	AttemptSkipped  = "skipped"
	AttemptReplaced = "replaced"
	AttemptAborted  = "aborted"
)

// Attempt records one waypoint attempt and how it ended.
type Attempt struct {
	// ID is the unique identifier for the attempt.
	ID string `json:"id"`

	// RunID groups the attempts of one plan execution.
	RunID string `json:"run_id,omitempty"`

	// Mission is the mission the waypoint belongs to.
	Mission string `json:"mission"`

	// Waypoint is the waypoint that was attempted.
	Waypoint string `json:"waypoint"`

	// Outcome is one of the Attempt* constants.
	Outcome string `json:"outcome"`

	// Reason qualifies skips and aborts.
	Reason string `json:"reason,omitempty"`

	// Elapsed is how long the attempt ran.
	Elapsed time.Duration `json:"elapsed"`

	// RecordedAt is when the attempt finished.
	RecordedAt time.Time `json:"recorded_at"`
}

// AttemptSummary aggregates attempts per mission.
type AttemptSummary struct {
	Mission   string        `json:"mission"`
	Reached   int           `json:"reached"`
	Skipped   int           `json:"skipped"`
	Replaced  int           `json:"replaced"`
	Aborted   int           `json:"aborted"`
	AvgToGoal time.Duration `json:"avg_to_goal"`
}
