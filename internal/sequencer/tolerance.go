package sequencer

import (
	"math"

	"github.com/fieldrover/wayfarer/internal/geo"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/pose"
)

// Tolerances bound how far the estimate may sit from the target for a
// waypoint to count as reached.
type Tolerances struct {
	// Distance is the maximum XY-plane error in meters.
	Distance float64

	// Angle is the maximum yaw error in radians.
	Angle float64
}

// Reached reports whether the estimate is within tolerance of the target.
// An estimate that has not seen pose data yet is never reached. The yaw
// difference is compared unwrapped, so a heading off by a full turn reads
// as far away.
func Reached(target mission.Waypoint, est pose.Estimate, tol Tolerances) bool {
	if !est.Valid {
		return false
	}
	if geo.Distance2D(target.X, target.Y, est.X, est.Y) > tol.Distance {
		return false
	}
	return math.Abs(target.Yaw-est.Yaw) <= tol.Angle
}
