package graph

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/pose"
	"github.com/fieldrover/wayfarer/internal/sequencer"
)

// perfectRobot teleports to every published target, so waypoints are
// reached on the first poll.
type perfectRobot struct {
	mu  sync.Mutex
	est pose.Estimate
}

func (r *perfectRobot) Publish(ctx context.Context, wp mission.Waypoint) error {
	r.mu.Lock()
	r.est = pose.Estimate{X: wp.X, Y: wp.Y, Yaw: wp.Yaw, Valid: true}
	r.mu.Unlock()
	return nil
}

func (r *perfectRobot) Snapshot() pose.Estimate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.est
}

// parkedRobot sits at the origin no matter what is published.
type parkedRobot struct{}

func (parkedRobot) Publish(ctx context.Context, wp mission.Waypoint) error { return nil }

func (parkedRobot) Snapshot() pose.Estimate {
	return pose.Estimate{Valid: true}
}

func fastConfig() Config {
	return Config{
		Standard: sequencer.Config{
			Tick:               time.Millisecond,
			WaypointBudget:     3 * time.Millisecond,
			MissionAbortBudget: 5 * time.Millisecond,
			Tolerances:         sequencer.Tolerances{Distance: 0.3, Angle: 0.7},
			HalfwayClearance:   0.4,
			CountdownLogEvery:  time.Minute,
		},
	}
}

func countEvents(ring *events.Ring, eventType models.EventType) int {
	n := 0
	for _, event := range ring.Snapshot() {
		if event.Type == eventType {
			n++
		}
	}
	return n
}

func TestBuildRunsPlanToSuccess(t *testing.T) {
	plan := &mission.Plan{
		Name: "hallway_plan",
		Missions: []mission.Mission{
			{Name: "leg_one", Waypoints: []mission.Waypoint{
				{Name: "wp_1", X: 1, Y: 0},
				{Name: "wp_2", X: 2, Y: 0},
			}},
			{Name: "leg_two", Waypoints: []mission.Waypoint{
				{Name: "wp_1", X: 3, Y: 0},
			}},
		},
	}

	robot := &perfectRobot{}
	ring := events.NewRing(64)

	m, err := Build(plan, fastConfig(), sequencer.Deps{
		Poses:     robot,
		Publisher: robot,
		Sink:      ring,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	terminal, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if terminal != Success {
		t.Fatalf("expected success, got %s", terminal)
	}

	if got := countEvents(ring, models.EventTypeMissionCompleted); got != 2 {
		t.Errorf("expected 2 completed missions, got %d", got)
	}
	if got := countEvents(ring, models.EventTypeWaypointReached); got != 3 {
		t.Errorf("expected 3 reached waypoints, got %d", got)
	}
}

func TestBuildRoutesAbortThroughOverride(t *testing.T) {
	// leg_one is unreachable for a parked robot; its on_aborted override
	// routes to recovery, whose waypoint sits at the origin.
	plan := &mission.Plan{
		Name: "recovery_plan",
		Missions: []mission.Mission{
			{Name: "leg_one", OnAborted: "recovery", Waypoints: []mission.Waypoint{
				{Name: "wp_far", X: 5, Y: 5},
			}},
			{Name: "recovery", Waypoints: []mission.Waypoint{
				{Name: "wp_home", X: 0, Y: 0},
			}},
		},
	}

	ring := events.NewRing(64)
	m, err := Build(plan, fastConfig(), sequencer.Deps{
		Poses:     parkedRobot{},
		Publisher: parkedRobot{},
		Sink:      ring,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	terminal, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if terminal != Success {
		t.Fatalf("expected success via recovery, got %s", terminal)
	}

	if got := countEvents(ring, models.EventTypeMissionAborted); got != 1 {
		t.Errorf("expected 1 aborted mission, got %d", got)
	}
	if got := countEvents(ring, models.EventTypeMissionCompleted); got != 1 {
		t.Errorf("expected 1 completed mission, got %d", got)
	}
}

func TestBuildDefaultAbortFailsPlan(t *testing.T) {
	plan := &mission.Plan{
		Name: "doomed_plan",
		Missions: []mission.Mission{
			{Name: "leg_one", Waypoints: []mission.Waypoint{
				{Name: "wp_far", X: 5, Y: 5},
			}},
		},
	}

	m, err := Build(plan, fastConfig(), sequencer.Deps{
		Poses:     parkedRobot{},
		Publisher: parkedRobot{},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	terminal, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if terminal != Failure {
		t.Errorf("expected failure, got %s", terminal)
	}
}

func TestBuildExplorationPlanNeverAborts(t *testing.T) {
	plan := &mission.Plan{
		Name: "survey_plan",
		Missions: []mission.Mission{
			{Name: "survey", Exploration: true, Waypoints: []mission.Waypoint{
				{Name: "probe_1", X: 5, Y: 5},
				{Name: "probe_2", X: 0.1, Y: 0},
			}},
		},
	}

	ring := events.NewRing(128)
	m, err := Build(plan, fastConfig(), sequencer.Deps{
		Poses:     parkedRobot{},
		Publisher: parkedRobot{},
		Sink:      ring,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	terminal, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if terminal != Success {
		t.Fatalf("expected success, got %s", terminal)
	}
	if got := countEvents(ring, models.EventTypeMissionAborted); got != 0 {
		t.Errorf("exploration must not abort, saw %d aborts", got)
	}
}

func TestBuildAppliesExplorationProfile(t *testing.T) {
	// The waypoint sits far outside the standard tolerance; only the wide
	// exploration tolerance lets a parked robot reach it.
	plan := &mission.Plan{
		Name: "profile_plan",
		Missions: []mission.Mission{
			{Name: "sweep", Exploration: true, Waypoints: []mission.Waypoint{
				{Name: "probe_1", X: 3, Y: 0},
			}},
		},
	}

	cfg := fastConfig()
	cfg.Exploration = cfg.Standard
	cfg.Exploration.Tolerances = sequencer.Tolerances{Distance: 5, Angle: 0.7}

	ring := events.NewRing(64)
	m, err := Build(plan, cfg, sequencer.Deps{
		Poses:     parkedRobot{},
		Publisher: parkedRobot{},
		Sink:      ring,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	terminal, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if terminal != Success {
		t.Fatalf("expected success, got %s", terminal)
	}
	if got := countEvents(ring, models.EventTypeWaypointReached); got != 1 {
		t.Errorf("expected 1 reached event, got %d", got)
	}
}

func TestBuildExposesStatesByName(t *testing.T) {
	plan := &mission.Plan{
		Name: "lookup_plan",
		Missions: []mission.Mission{
			{Name: "leg_one", Waypoints: []mission.Waypoint{{Name: "wp_1", X: 1}}},
		},
	}

	m, err := Build(plan, fastConfig(), sequencer.Deps{
		Poses:     parkedRobot{},
		Publisher: parkedRobot{},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	state, ok := m.StateFor("leg_one")
	if !ok {
		t.Fatal("expected leg_one to be registered")
	}
	seq, ok := state.(*sequencer.Sequencer)
	if !ok {
		t.Fatalf("expected a sequencer state, got %T", state)
	}
	if got := seq.Progress(); got.Waypoint != "wp_1" || got.Waypoints != 1 {
		t.Errorf("unexpected progress: %+v", got)
	}

	if _, ok := m.StateFor("missing"); ok {
		t.Error("expected lookup miss for an unregistered name")
	}
	if _, ok := m.StateFor(Success); ok {
		t.Error("terminal names must not resolve to states")
	}
}

func TestBuildRejectsBadPlans(t *testing.T) {
	deps := sequencer.Deps{Poses: parkedRobot{}, Publisher: parkedRobot{}}

	if _, err := Build(nil, fastConfig(), deps); err == nil {
		t.Error("expected error for nil plan")
	}
	if _, err := Build(&mission.Plan{Name: "empty"}, fastConfig(), deps); err == nil {
		t.Error("expected error for plan without missions")
	}

	duplicate := &mission.Plan{
		Name: "dup",
		Missions: []mission.Mission{
			{Name: "leg", Waypoints: []mission.Waypoint{{Name: "wp"}}},
			{Name: "leg", Waypoints: []mission.Waypoint{{Name: "wp"}}},
		},
	}
	if _, err := Build(duplicate, fastConfig(), deps); !errors.Is(err, ErrDuplicateState) {
		t.Errorf("expected ErrDuplicateState, got %v", err)
	}

	unknownTarget := &mission.Plan{
		Name: "dangling",
		Missions: []mission.Mission{
			{Name: "leg", OnAborted: "missing", Waypoints: []mission.Waypoint{{Name: "wp"}}},
		},
	}
	if _, err := Build(unknownTarget, fastConfig(), deps); !errors.Is(err, ErrUnknownState) {
		t.Errorf("expected ErrUnknownState, got %v", err)
	}
}
