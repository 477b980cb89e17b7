package sequencer

import (
	"context"
	"time"

	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/geo"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
)

// explorationFallback handles countdown expiry for exploration missions:
// retry the current slot with a halfway point when the following waypoint
// is far enough away, otherwise skip ahead. Exploration never aborts on
// timeout.
func (s *Sequencer) explorationFallback(ctx context.Context, wp mission.Waypoint, begin time.Time) models.Outcome {
	took := s.now().Sub(begin)

	next, ok := s.store.Next()
	if !ok {
		s.store.Advance()
		s.logger.Warn().Str("waypoint", wp.Name).Msg("no following waypoint, skipping")
		s.skip(ctx, wp, ReasonNoFollowing, took)
		return models.OutcomeNextWaypoint
	}

	halfway := Halfway(wp, next)
	if geo.Distance2D(halfway.X, halfway.Y, next.X, next.Y) < s.config.HalfwayClearance {
		s.store.Advance()
		s.logger.Warn().
			Str("waypoint", wp.Name).
			Float64("clearance_m", s.config.HalfwayClearance).
			Msg("halfway point too close to the next waypoint, skipping")
		s.skip(ctx, wp, ReasonHalfwayTooClose, took)
		return models.OutcomeNextWaypoint
	}

	s.store.ReplaceCurrent(halfway)
	replaced, _ := s.store.Current()

	s.logger.Info().
		Str("waypoint", replaced.Name).
		Float64("x_m", replaced.X).
		Float64("y_m", replaced.Y).
		Msg("retrying with halfway point")
	if err := events.LogWaypointReplaced(ctx, s.sink, s.mission, replaced); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record replacement")
	}
	s.recorder.WaypointReplaced(s.mission)
	s.recordAttempt(ctx, replaced.Name, models.AttemptReplaced, "", took)

	return models.OutcomeNextWaypoint
}

// Halfway synthesizes the intermediate waypoint exploration missions fall
// back to: the XY midpoint between the expired target and the following
// waypoint, keeping the expired target's heading.
func Halfway(current, next mission.Waypoint) mission.Waypoint {
	x, y := geo.Midpoint2D(current.X, current.Y, next.X, next.Y)
	return mission.Waypoint{
		Name: current.Name,
		X:    x,
		Y:    y,
		Yaw:  current.Yaw,
	}
}
