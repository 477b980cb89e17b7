// Package sequencer drives a robot through one mission's ordered waypoints.
package sequencer

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/metrics"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/pose"
)

// Reasons attached to skip and abort decisions.
const (
	ReasonTimeout         = "timeout"
	ReasonFirstWaypoint   = "first_waypoint"
	ReasonLastWaypoint    = "last_waypoint"
	ReasonHalfwayTooClose = "halfway_too_close"
	ReasonNoFollowing     = "no_following_waypoint"
)

// Config contains sequencer configuration.
type Config struct {
	// Tick is the polling interval of the countdown loop.
	// Default: 1 second.
	Tick time.Duration

	// WaypointBudget is how long the robot gets to reach each waypoint.
	// Default: 60 seconds.
	WaypointBudget time.Duration

	// MissionAbortBudget is the extra time granted on the final waypoint
	// before the whole mission aborts.
	// Default: 80 seconds.
	MissionAbortBudget time.Duration

	// Tolerances decide when a waypoint counts as reached.
	// Default: 0.3 m, 0.7 rad.
	Tolerances Tolerances

	// Exploration enables the halfway-point fallback on countdown expiry
	// instead of the skip/abort policy.
	Exploration bool

	// HalfwayClearance is the minimum distance a synthesized halfway point
	// must keep from the following waypoint to be worth visiting.
	// Default: 0.4 meters.
	HalfwayClearance float64

	// CountdownLogEvery throttles the remaining-time log.
	// Default: 5 seconds.
	CountdownLogEvery time.Duration
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Tick:               1 * time.Second,
		WaypointBudget:     60 * time.Second,
		MissionAbortBudget: 80 * time.Second,
		Tolerances:         Tolerances{Distance: 0.3, Angle: 0.7},
		HalfwayClearance:   0.4,
		CountdownLogEvery:  5 * time.Second,
	}
}

// PoseSource yields snapshots of the latest pose estimate.
type PoseSource interface {
	Snapshot() pose.Estimate
}

// Publisher emits the active waypoint target to the motion stack. Publish
// may block until a downstream consumer is attached.
type Publisher interface {
	Publish(ctx context.Context, wp mission.Waypoint) error
}

// AttemptRecorder persists per-waypoint attempt records.
type AttemptRecorder interface {
	Create(ctx context.Context, attempt *models.Attempt) error
}

// Deps are the collaborators a sequencer drives. Poses and Publisher are
// required; Sink, Metrics and Attempts may be nil.
type Deps struct {
	Poses     PoseSource
	Publisher Publisher
	Sink      events.Sink
	Metrics   *metrics.Recorder
	Attempts  AttemptRecorder
}

// Progress is a point-in-time view of the mission's traversal, safe to
// read while an activation runs. Waypoint is empty when the store is
// exhausted.
type Progress struct {
	Waypoint  string `json:"waypoint,omitempty"`
	Cursor    int    `json:"cursor"`
	Waypoints int    `json:"waypoints"`
}

// Sequencer executes one mission. Each Execute call drives a single
// waypoint attempt; the outer graph re-enters until the outcome is
// Completed or Aborted. The waypoint cursor lives in the store and
// persists across activations.
type Sequencer struct {
	config    Config
	mission   string
	store     *mission.Store
	poses     PoseSource
	publisher Publisher
	sink      events.Sink
	recorder  *metrics.Recorder
	attempts  AttemptRecorder
	logger    zerolog.Logger

	started bool

	// Progress mirror for introspection; the store itself is
	// activation-local and must not be read across goroutines.
	progressMu sync.Mutex
	progress   Progress

	// Injectable clock and sleep, swapped out by tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Sequencer for one mission's waypoints.
func New(config Config, missionName string, store *mission.Store, deps Deps) *Sequencer {
	if config.Tick <= 0 {
		config.Tick = DefaultConfig().Tick
	}
	if config.WaypointBudget <= 0 {
		config.WaypointBudget = DefaultConfig().WaypointBudget
	}
	if config.MissionAbortBudget <= 0 {
		config.MissionAbortBudget = DefaultConfig().MissionAbortBudget
	}
	if config.Tolerances.Distance <= 0 {
		config.Tolerances.Distance = DefaultConfig().Tolerances.Distance
	}
	if config.Tolerances.Angle <= 0 {
		config.Tolerances.Angle = DefaultConfig().Tolerances.Angle
	}
	if config.HalfwayClearance <= 0 {
		config.HalfwayClearance = DefaultConfig().HalfwayClearance
	}
	if config.CountdownLogEvery <= 0 {
		config.CountdownLogEvery = DefaultConfig().CountdownLogEvery
	}

	sink := deps.Sink
	if sink == nil {
		sink = events.NoopSink{}
	}

	s := &Sequencer{
		config:    config,
		mission:   missionName,
		store:     store,
		poses:     deps.Poses,
		publisher: deps.Publisher,
		sink:      sink,
		recorder:  deps.Metrics,
		attempts:  deps.Attempts,
		logger:    logging.Component("sequencer").With().Str("mission", missionName).Logger(),
		now:       time.Now,
		sleep:     sleepContext,
	}
	s.recordProgress()
	return s
}

// Mission returns the mission name the sequencer was built for.
func (s *Sequencer) Mission() string {
	return s.mission
}

// Progress reports the traversal position for introspection.
func (s *Sequencer) Progress() Progress {
	s.progressMu.Lock()
	defer s.progressMu.Unlock()
	return s.progress
}

func (s *Sequencer) recordProgress() {
	p := Progress{Cursor: s.store.Cursor(), Waypoints: s.store.Len()}
	if wp, ok := s.store.Current(); ok {
		p.Waypoint = wp.Name
	}

	s.progressMu.Lock()
	s.progress = p
	s.progressMu.Unlock()
}

// Execute runs one activation: publish the waypoint under the cursor, poll
// the pose feed against the countdown, and decide the outcome. Cancellation
// surfaces as a non-nil error, never as an outcome.
func (s *Sequencer) Execute(ctx context.Context) (models.Outcome, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	defer s.recordProgress()

	if s.store.Exhausted() {
		s.store.Reset()
		s.started = false
		s.logger.Info().Int("waypoints", s.store.Len()).Msg("mission completed")
		if err := events.LogMissionCompleted(ctx, s.sink, s.mission, s.store.Len()); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record mission completion")
		}
		s.recorder.MissionCompleted()
		return models.OutcomeCompleted, nil
	}

	if !s.started {
		s.started = true
		s.logger.Info().Int("waypoints", s.store.Len()).Bool("exploration", s.config.Exploration).Msg("mission started")
		if err := events.LogMissionStarted(ctx, s.sink, s.mission); err != nil {
			s.logger.Warn().Err(err).Msg("failed to record mission start")
		}
	}

	wp, _ := s.store.Current()

	s.logger.Info().
		Str("waypoint", wp.Name).
		Float64("x_m", wp.X).
		Float64("y_m", wp.Y).
		Float64("yaw_rad", wp.Yaw).
		Msg("publishing waypoint target")

	if err := s.publisher.Publish(ctx, wp); err != nil {
		return "", err
	}
	if err := events.LogWaypointSet(ctx, s.sink, s.mission, wp); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record waypoint target")
	}

	begin := s.now()

	reached, err := s.awaitArrival(ctx, wp, s.config.WaypointBudget)
	if err != nil {
		return "", err
	}
	if reached {
		return s.arrived(ctx, wp, begin), nil
	}

	if s.config.Exploration {
		return s.explorationFallback(ctx, wp, begin), nil
	}

	// A mission that cannot leave its start point is unrunnable. This check
	// comes before the final-waypoint one so single-waypoint missions abort.
	if s.store.First() {
		s.store.Reset()
		s.started = false
		s.logger.Warn().Str("waypoint", wp.Name).Msg("first waypoint unreachable, aborting mission")
		s.abort(ctx, wp, ReasonFirstWaypoint, s.now().Sub(begin))
		return models.OutcomeAborted, nil
	}

	if s.store.Last() {
		s.logger.Warn().
			Str("waypoint", wp.Name).
			Dur("extra", s.config.MissionAbortBudget).
			Msg("final waypoint not reached, extending countdown")

		reached, err := s.awaitArrival(ctx, wp, s.config.MissionAbortBudget)
		if err != nil {
			return "", err
		}
		if reached {
			return s.arrived(ctx, wp, begin), nil
		}

		// The cursor stays where it is; the caller decides what to do with
		// a partially-advanced, aborted mission.
		s.started = false
		s.logger.Warn().Str("waypoint", wp.Name).Msg("final waypoint unreachable, aborting mission")
		s.abort(ctx, wp, ReasonLastWaypoint, s.now().Sub(begin))
		return models.OutcomeAborted, nil
	}

	s.store.Advance()
	s.logger.Warn().Str("waypoint", wp.Name).Msg("waypoint not reached in time, skipping")
	s.skip(ctx, wp, ReasonTimeout, s.now().Sub(begin))
	return models.OutcomeNextWaypoint, nil
}

// awaitArrival polls the pose feed once per tick until the target is
// reached, the budget runs out, or ctx is cancelled.
func (s *Sequencer) awaitArrival(ctx context.Context, target mission.Waypoint, budget time.Duration) (bool, error) {
	var lastLog time.Time

	for remaining := budget; remaining > 0; remaining -= s.config.Tick {
		if Reached(target, s.poses.Snapshot(), s.config.Tolerances) {
			return true, nil
		}

		if now := s.now(); now.Sub(lastLog) >= s.config.CountdownLogEvery {
			lastLog = now
			s.logger.Info().
				Str("waypoint", target.Name).
				Dur("remaining", remaining).
				Msg("waiting for arrival")
		}

		if err := s.sleep(ctx, s.config.Tick); err != nil {
			return false, err
		}
	}

	return false, nil
}

func (s *Sequencer) arrived(ctx context.Context, wp mission.Waypoint, begin time.Time) models.Outcome {
	took := s.now().Sub(begin)
	s.store.Advance()

	s.logger.Info().Str("waypoint", wp.Name).Dur("took", took).Msg("waypoint reached")
	if err := events.LogWaypointReached(ctx, s.sink, s.mission, wp, took); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record arrival")
	}
	s.recorder.WaypointReached(s.mission, took)
	s.recordAttempt(ctx, wp.Name, models.AttemptReached, "", took)

	return models.OutcomeNextWaypoint
}

func (s *Sequencer) skip(ctx context.Context, wp mission.Waypoint, reason string, took time.Duration) {
	if err := events.LogWaypointSkipped(ctx, s.sink, s.mission, wp, reason); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record skip")
	}
	s.recorder.WaypointSkipped(s.mission, reason)
	s.recordAttempt(ctx, wp.Name, models.AttemptSkipped, reason, took)
}

func (s *Sequencer) abort(ctx context.Context, wp mission.Waypoint, reason string, took time.Duration) {
	if err := events.LogMissionAborted(ctx, s.sink, s.mission, wp.Name, reason); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record abort")
	}
	s.recorder.MissionAborted(reason)
	s.recordAttempt(ctx, wp.Name, models.AttemptAborted, reason, took)
}

func (s *Sequencer) recordAttempt(ctx context.Context, waypoint, outcome, reason string, took time.Duration) {
	if s.attempts == nil {
		return
	}

	attempt := &models.Attempt{
		Mission:  s.mission,
		Waypoint: waypoint,
		Outcome:  outcome,
		Reason:   reason,
		Elapsed:  took,
	}
	if err := s.attempts.Create(ctx, attempt); err != nil {
		s.logger.Warn().Err(err).Msg("failed to record attempt")
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
