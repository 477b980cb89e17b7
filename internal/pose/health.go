package pose

import (
	"fmt"
	"time"
)

// FeedState classifies the freshness of the pose feed.
type FeedState string

const (
	FeedWaiting FeedState = "waiting"
	FeedLive    FeedState = "live"
	FeedStale   FeedState = "stale"
	FeedLost    FeedState = "lost"
)

// Feed freshness thresholds.
const (
	DefaultStaleAfter = 2 * time.Second
	DefaultLostAfter  = 10 * time.Second
)

// FeedHealth describes the pose feed's freshness and why.
type FeedHealth struct {
	State      FeedState `json:"state"`
	Reason     string    `json:"reason"`
	Updates    uint64    `json:"updates"`
	LastUpdate time.Time `json:"last_update,omitempty"`
}

// ClassifyFeed derives feed health from the tracker's update statistics.
func ClassifyFeed(updates uint64, lastUpdate, now time.Time, staleAfter, lostAfter time.Duration) FeedHealth {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if lostAfter <= 0 {
		lostAfter = DefaultLostAfter
	}

	health := FeedHealth{
		Updates:    updates,
		LastUpdate: lastUpdate,
	}

	if updates == 0 {
		health.State = FeedWaiting
		health.Reason = "no pose received yet"
		return health
	}

	age := now.Sub(lastUpdate)
	switch {
	case age >= lostAfter:
		health.State = FeedLost
		health.Reason = fmt.Sprintf("last pose %s ago", age.Round(time.Second))
	case age >= staleAfter:
		health.State = FeedStale
		health.Reason = fmt.Sprintf("last pose %s ago", age.Round(time.Millisecond))
	default:
		health.State = FeedLive
		health.Reason = "receiving poses"
	}
	return health
}

// Health classifies the tracker's feed using the default thresholds.
func (t *Tracker) Health() FeedHealth {
	updates, last := t.Stats()
	return ClassifyFeed(updates, last, t.now(), DefaultStaleAfter, DefaultLostAfter)
}
