// Package pose tracks the robot's estimated pose from an asynchronous feed.
package pose

import (
	"sync"
	"time"
)

// Estimate is the robot's planar pose. Valid is false until the first
// feed message arrives.
type Estimate struct {
	X     float64 `json:"x_m"`
	Y     float64 `json:"y_m"`
	Yaw   float64 `json:"yaw_rad"`
	Valid bool    `json:"valid"`
}

// Tracker holds the latest pose estimate. Update and Snapshot are safe to
// call concurrently; the lock is held only for the copy.
type Tracker struct {
	mu         sync.Mutex
	est        Estimate
	lastUpdate time.Time
	updates    uint64

	now func() time.Time
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{now: time.Now}
}

// Update overwrites the stored estimate and marks it valid.
func (t *Tracker) Update(est Estimate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	est.Valid = true
	t.est = est
	t.lastUpdate = t.now()
	t.updates++
}

// Snapshot returns a copy of the latest estimate. It never blocks on the
// producer beyond the copy itself.
func (t *Tracker) Snapshot() Estimate {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.est
}

// Stats returns the update count and the time of the last update.
func (t *Tracker) Stats() (uint64, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.updates, t.lastUpdate
}
