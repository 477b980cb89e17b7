package sequencer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/pose"
)

var (
	wpA = mission.Waypoint{Name: "wp_a", X: 0, Y: 0, Yaw: 0}
	wpB = mission.Waypoint{Name: "wp_b", X: 2, Y: 0, Yaw: 0}
	wpC = mission.Waypoint{Name: "wp_c", X: 4, Y: 0, Yaw: 0}

	farAway = pose.Estimate{X: 100, Y: 100, Yaw: 0, Valid: true}
)

// fakeClock advances only when the sequencer sleeps, so countdown loops
// run instantly.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
	return nil
}

type poseFunc func() pose.Estimate

func (f poseFunc) Snapshot() pose.Estimate { return f() }

func poseAt(wp mission.Waypoint) pose.Estimate {
	return pose.Estimate{X: wp.X, Y: wp.Y, Yaw: wp.Yaw, Valid: true}
}

type fakePublisher struct {
	published []mission.Waypoint
	err       error
}

func (p *fakePublisher) Publish(ctx context.Context, wp mission.Waypoint) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, wp)
	return nil
}

type captureAttempts struct {
	attempts []*models.Attempt
}

func (c *captureAttempts) Create(ctx context.Context, attempt *models.Attempt) error {
	c.attempts = append(c.attempts, attempt)
	return nil
}

type harness struct {
	seq      *Sequencer
	store    *mission.Store
	pub      *fakePublisher
	ring     *events.Ring
	attempts *captureAttempts
	clock    *fakeClock
}

func newHarness(t *testing.T, cfg Config, waypoints []mission.Waypoint, poses PoseSource) *harness {
	t.Helper()

	h := &harness{
		store:    mission.NewStore(waypoints),
		pub:      &fakePublisher{},
		ring:     events.NewRing(64),
		attempts: &captureAttempts{},
		clock:    newFakeClock(),
	}
	h.seq = New(cfg, "hallway_run", h.store, Deps{
		Poses:     poses,
		Publisher: h.pub,
		Sink:      h.ring,
		Attempts:  h.attempts,
	})
	h.seq.now = h.clock.now
	h.seq.sleep = h.clock.sleep
	return h
}

func testConfig() Config {
	return Config{
		Tick:               1 * time.Second,
		WaypointBudget:     3 * time.Second,
		MissionAbortBudget: 5 * time.Second,
		Tolerances:         Tolerances{Distance: 0.3, Angle: 0.7},
		HalfwayClearance:   0.4,
		CountdownLogEvery:  time.Minute,
	}
}

func eventTypes(ring *events.Ring) []models.EventType {
	var types []models.EventType
	for _, event := range ring.Snapshot() {
		types = append(types, event.Type)
	}
	return types
}

func TestSequencerCompletesMission(t *testing.T) {
	ctx := context.Background()

	cur := poseAt(wpA)
	poses := poseFunc(func() pose.Estimate { return cur })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB}, poses)

	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected next_waypoint after reaching wp_a, got %s", outcome)
	}
	if h.store.Cursor() != 1 {
		t.Fatalf("expected cursor 1, got %d", h.store.Cursor())
	}

	cur = poseAt(wpB)
	outcome, err = h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected next_waypoint after reaching wp_b, got %s", outcome)
	}
	if !h.store.Exhausted() {
		t.Fatal("expected store to be exhausted")
	}

	outcome, err = h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeCompleted {
		t.Fatalf("expected completed, got %s", outcome)
	}
	if h.store.Cursor() != 0 {
		t.Errorf("expected cursor reset to 0 on completion, got %d", h.store.Cursor())
	}

	if len(h.pub.published) != 2 || h.pub.published[0].Name != "wp_a" || h.pub.published[1].Name != "wp_b" {
		t.Errorf("unexpected publishes: %v", h.pub.published)
	}

	want := []models.EventType{
		models.EventTypeMissionStarted,
		models.EventTypeWaypointSet,
		models.EventTypeWaypointReached,
		models.EventTypeWaypointSet,
		models.EventTypeWaypointReached,
		models.EventTypeMissionCompleted,
	}
	if diff := cmp.Diff(want, eventTypes(h.ring)); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}

	// The reset store must support a fresh traversal.
	cur = poseAt(wpA)
	outcome, err = h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected next_waypoint on reuse, got %s", outcome)
	}
	if len(h.pub.published) != 3 || h.pub.published[2].Name != "wp_a" {
		t.Errorf("expected wp_a republished on reuse, got %v", h.pub.published)
	}
}

func TestSequencerAbortsWhenFirstWaypointUnreachable(t *testing.T) {
	ctx := context.Background()

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB, wpC}, poses)

	start := h.clock.now()
	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeAborted {
		t.Fatalf("expected aborted, got %s", outcome)
	}
	if h.store.Cursor() != 0 {
		t.Errorf("expected cursor reset to 0, got %d", h.store.Cursor())
	}
	if got := h.clock.now().Sub(start); got != 3*time.Second {
		t.Errorf("expected a single waypoint budget to elapse, got %v", got)
	}

	if len(h.attempts.attempts) != 1 {
		t.Fatalf("expected 1 attempt, got %d", len(h.attempts.attempts))
	}
	attempt := h.attempts.attempts[0]
	if attempt.Outcome != models.AttemptAborted || attempt.Reason != ReasonFirstWaypoint {
		t.Errorf("unexpected attempt: %+v", attempt)
	}
}

func TestSequencerSingleWaypointAborts(t *testing.T) {
	ctx := context.Background()

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA}, poses)

	start := h.clock.now()
	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeAborted {
		t.Fatalf("expected aborted, got %s", outcome)
	}

	// The first-waypoint rule wins over the final-waypoint extension, so no
	// second countdown runs.
	if got := h.clock.now().Sub(start); got != 3*time.Second {
		t.Errorf("expected no extended countdown, elapsed %v", got)
	}
	if h.attempts.attempts[0].Reason != ReasonFirstWaypoint {
		t.Errorf("expected first waypoint reason, got %q", h.attempts.attempts[0].Reason)
	}
}

func TestSequencerSkipsInteriorWaypoint(t *testing.T) {
	ctx := context.Background()

	cur := poseAt(wpA)
	poses := poseFunc(func() pose.Estimate { return cur })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB, wpC}, poses)

	if outcome, err := h.seq.Execute(ctx); err != nil || outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected wp_a reached, got %s, %v", outcome, err)
	}

	cur = farAway
	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected next_waypoint after skipping wp_b, got %s", outcome)
	}
	if h.store.Cursor() != 2 {
		t.Errorf("expected cursor on wp_c, got %d", h.store.Cursor())
	}

	var skipped *models.Event
	for _, event := range h.ring.Snapshot() {
		if event.Type == models.EventTypeWaypointSkipped {
			e := event
			skipped = &e
		}
	}
	if skipped == nil {
		t.Fatal("expected a waypoint.skipped event")
	}
	var payload models.WaypointSkippedPayload
	if err := json.Unmarshal(skipped.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Waypoint != "wp_b" || payload.Reason != ReasonTimeout {
		t.Errorf("unexpected skip payload: %+v", payload)
	}
}

func TestSequencerExtendsCountdownOnFinalWaypoint(t *testing.T) {
	ctx := context.Background()

	snapshots := 0
	poses := poseFunc(func() pose.Estimate {
		snapshots++
		if snapshots > 4 {
			return poseAt(wpB)
		}
		return farAway
	})
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB}, poses)
	h.store.Advance() // start on the final waypoint

	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected arrival during the extended countdown, got %s", outcome)
	}
	if !h.store.Exhausted() {
		t.Error("expected store exhausted after the final waypoint")
	}
	if snapshots <= 3 {
		t.Errorf("expected polling past the first budget, saw %d snapshots", snapshots)
	}

	if outcome, err := h.seq.Execute(ctx); err != nil || outcome != models.OutcomeCompleted {
		t.Fatalf("expected completed, got %s, %v", outcome, err)
	}
}

func TestSequencerAbortsOnFinalWaypointWithoutReset(t *testing.T) {
	ctx := context.Background()

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB}, poses)
	h.store.Advance()

	start := h.clock.now()
	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeAborted {
		t.Fatalf("expected aborted, got %s", outcome)
	}
	if h.store.Cursor() != 1 {
		t.Errorf("expected cursor left on the final waypoint, got %d", h.store.Cursor())
	}

	// Both budgets must elapse before the abort.
	if got := h.clock.now().Sub(start); got != 8*time.Second {
		t.Errorf("expected 8s elapsed, got %v", got)
	}

	var aborted *models.Event
	for _, event := range h.ring.Snapshot() {
		if event.Type == models.EventTypeMissionAborted {
			e := event
			aborted = &e
		}
	}
	if aborted == nil {
		t.Fatal("expected a mission.aborted event")
	}
	var payload models.MissionAbortedPayload
	if err := json.Unmarshal(aborted.Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.Reason != ReasonLastWaypoint || payload.Waypoint != "wp_b" {
		t.Errorf("unexpected abort payload: %+v", payload)
	}
}

func TestSequencerExplorationReplacesWithHalfway(t *testing.T) {
	ctx := context.Background()

	a := mission.Waypoint{Name: "probe_1", X: 0, Y: 0, Yaw: 0.3}
	b := mission.Waypoint{Name: "probe_2", X: 2, Y: 0, Yaw: 1.0}

	cfg := testConfig()
	cfg.Exploration = true

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, cfg, []mission.Waypoint{a, b}, poses)

	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected next_waypoint, got %s", outcome)
	}
	if h.store.Cursor() != 0 {
		t.Errorf("expected cursor unchanged, got %d", h.store.Cursor())
	}
	if h.store.Len() != 2 {
		t.Errorf("expected store length unchanged, got %d", h.store.Len())
	}

	replaced, ok := h.store.Current()
	if !ok {
		t.Fatal("expected a current waypoint")
	}
	if replaced.X != 1.0 || replaced.Y != 0 {
		t.Errorf("expected halfway point (1, 0), got (%v, %v)", replaced.X, replaced.Y)
	}
	if replaced.Yaw != 0.3 {
		t.Errorf("expected heading kept, got %v", replaced.Yaw)
	}
	if replaced.Name != "probe_1" {
		t.Errorf("expected slot name kept, got %q", replaced.Name)
	}
}

func TestSequencerExplorationConvergesThenSkips(t *testing.T) {
	ctx := context.Background()

	a := mission.Waypoint{Name: "probe_1", X: 0, Y: 0, Yaw: 0}
	b := mission.Waypoint{Name: "probe_2", X: 2, Y: 0, Yaw: 0}

	cfg := testConfig()
	cfg.Exploration = true

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, cfg, []mission.Waypoint{a, b}, poses)

	// Halfway points converge on probe_2: 1.0, then 1.5, then within the
	// clearance, which skips the slot.
	for i, wantX := range []float64{1.0, 1.5} {
		outcome, err := h.seq.Execute(ctx)
		if err != nil {
			t.Fatalf("Execute %d: %v", i, err)
		}
		if outcome != models.OutcomeNextWaypoint {
			t.Fatalf("Execute %d: expected next_waypoint, got %s", i, outcome)
		}
		cur, _ := h.store.Current()
		if cur.X != wantX {
			t.Fatalf("Execute %d: expected halfway x %v, got %v", i, wantX, cur.X)
		}
	}

	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected skip outcome next_waypoint, got %s", outcome)
	}
	if h.store.Cursor() != 1 {
		t.Errorf("expected cursor advanced to probe_2, got %d", h.store.Cursor())
	}

	// Each activation republishes the mutated slot.
	if len(h.pub.published) != 3 {
		t.Fatalf("expected 3 publishes, got %d", len(h.pub.published))
	}
	if h.pub.published[1].X != 1.0 || h.pub.published[2].X != 1.5 {
		t.Errorf("expected republished halfway targets, got %v", h.pub.published)
	}

	started := 0
	for _, eventType := range eventTypes(h.ring) {
		if eventType == models.EventTypeMissionStarted {
			started++
		}
	}
	if started != 1 {
		t.Errorf("expected one mission.started per traversal, got %d", started)
	}

	var lastSkip models.WaypointSkippedPayload
	for _, event := range h.ring.Snapshot() {
		if event.Type == models.EventTypeWaypointSkipped {
			if err := json.Unmarshal(event.Payload, &lastSkip); err != nil {
				t.Fatalf("unmarshal payload: %v", err)
			}
		}
	}
	if lastSkip.Reason != ReasonHalfwayTooClose {
		t.Errorf("expected halfway_too_close skip, got %q", lastSkip.Reason)
	}
}

func TestSequencerExplorationSkipsLastWaypoint(t *testing.T) {
	ctx := context.Background()

	cfg := testConfig()
	cfg.Exploration = true

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, cfg, []mission.Waypoint{wpA, wpB}, poses)
	h.store.Advance() // final waypoint, nothing following

	outcome, err := h.seq.Execute(ctx)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Exploration never aborts on timeout.
	if outcome != models.OutcomeNextWaypoint {
		t.Fatalf("expected next_waypoint, got %s", outcome)
	}
	if !h.store.Exhausted() {
		t.Error("expected cursor advanced past the end")
	}

	for _, eventType := range eventTypes(h.ring) {
		if eventType == models.EventTypeMissionAborted {
			t.Error("exploration timeout must not abort the mission")
		}
	}

	if outcome, err := h.seq.Execute(ctx); err != nil || outcome != models.OutcomeCompleted {
		t.Fatalf("expected completed, got %s, %v", outcome, err)
	}
}

func TestSequencerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB}, poses)

	sleeps := 0
	h.seq.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps++
		if sleeps == 2 {
			cancel()
		}
		return ctx.Err()
	}

	outcome, err := h.seq.Execute(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if outcome != "" {
		t.Errorf("expected no outcome on cancellation, got %s", outcome)
	}
	if h.store.Cursor() != 0 {
		t.Errorf("expected cursor unchanged, got %d", h.store.Cursor())
	}

	for _, eventType := range eventTypes(h.ring) {
		if eventType == models.EventTypeMissionAborted {
			t.Error("cancellation must not record an abort")
		}
	}
}

func TestSequencerPublishErrorPropagates(t *testing.T) {
	ctx := context.Background()

	poses := poseFunc(func() pose.Estimate { return farAway })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA}, poses)

	errBoom := errors.New("no subscribers")
	h.pub.err = errBoom

	outcome, err := h.seq.Execute(ctx)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected publish error, got %v", err)
	}
	if outcome != "" {
		t.Errorf("expected no outcome, got %s", outcome)
	}
}

func TestSequencerReportsProgress(t *testing.T) {
	ctx := context.Background()

	cur := poseAt(wpA)
	poses := poseFunc(func() pose.Estimate { return cur })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB}, poses)

	if got := h.seq.Progress(); got.Waypoint != "wp_a" || got.Cursor != 0 || got.Waypoints != 2 {
		t.Fatalf("unexpected initial progress: %+v", got)
	}

	if _, err := h.seq.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if got := h.seq.Progress(); got.Waypoint != "wp_b" || got.Cursor != 1 {
		t.Fatalf("expected progress on wp_b, got %+v", got)
	}

	cur = poseAt(wpB)
	if _, err := h.seq.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	// Exhausted: no current waypoint until the completing activation resets.
	if got := h.seq.Progress(); got.Waypoint != "" || got.Cursor != 2 {
		t.Fatalf("expected exhausted progress, got %+v", got)
	}

	if outcome, err := h.seq.Execute(ctx); err != nil || outcome != models.OutcomeCompleted {
		t.Fatalf("expected completed, got %s, %v", outcome, err)
	}
	if got := h.seq.Progress(); got.Waypoint != "wp_a" || got.Cursor != 0 {
		t.Fatalf("expected progress back at the start, got %+v", got)
	}
}

func TestSequencerRecordsAttempts(t *testing.T) {
	ctx := context.Background()

	cur := poseAt(wpA)
	poses := poseFunc(func() pose.Estimate { return cur })
	h := newHarness(t, testConfig(), []mission.Waypoint{wpA, wpB, wpC}, poses)

	if _, err := h.seq.Execute(ctx); err != nil {
		t.Fatalf("Execute: %v", err)
	}

	cur = farAway
	if _, err := h.seq.Execute(ctx); err != nil { // wp_b skipped
		t.Fatalf("Execute: %v", err)
	}
	if _, err := h.seq.Execute(ctx); err != nil { // wp_c aborts after both budgets
		t.Fatalf("Execute: %v", err)
	}

	if len(h.attempts.attempts) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(h.attempts.attempts))
	}

	want := []struct {
		waypoint string
		outcome  string
		reason   string
		elapsed  time.Duration
	}{
		{"wp_a", models.AttemptReached, "", 0},
		{"wp_b", models.AttemptSkipped, ReasonTimeout, 3 * time.Second},
		{"wp_c", models.AttemptAborted, ReasonLastWaypoint, 8 * time.Second},
	}
	for i, w := range want {
		got := h.attempts.attempts[i]
		if got.Waypoint != w.waypoint || got.Outcome != w.outcome || got.Reason != w.reason || got.Elapsed != w.elapsed {
			t.Errorf("attempt %d: got %+v, want %+v", i, got, w)
		}
		if got.Mission != "hallway_run" {
			t.Errorf("attempt %d: unexpected mission %q", i, got.Mission)
		}
	}
}
