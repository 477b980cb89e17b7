package models

// Outcome is the result of one sequencer activation, consumed by the outer
// mission graph to pick the next state.
type Outcome string

const (
	// OutcomeCompleted means every waypoint in the mission has been
	// traversed and the cursor was reset for reuse.
	OutcomeCompleted Outcome = "completed"

	// OutcomeAborted means the mission gave up: either the first waypoint
	// was never reached, or the final waypoint outlived the mission-abort
	// budget.
	OutcomeAborted Outcome = "aborted"

	// OutcomeNextWaypoint means the activation finished one waypoint step
	// (reached, skipped, or retargeted) and the state should be re-entered.
	OutcomeNextWaypoint Outcome = "next_waypoint"
)

// Valid reports whether the outcome is one of the defined values.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeCompleted, OutcomeAborted, OutcomeNextWaypoint:
		return true
	}
	return false
}
