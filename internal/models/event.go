package models

import (
	"encoding/json"
	"time"
)

// EventType categorizes events in the system.
type EventType string

const (
	// Plan events
	EventTypePlanStarted  EventType = "plan.started"
	EventTypePlanFinished EventType = "plan.finished"

	// Mission events
	EventTypeMissionStarted   EventType = "mission.started"
	EventTypeMissionCompleted EventType = "mission.completed"
	EventTypeMissionAborted   EventType = "mission.aborted"

	// Waypoint events
	EventTypeWaypointSet      EventType = "waypoint.set"
	EventTypeWaypointReached  EventType = "waypoint.reached"
	EventTypeWaypointSkipped  EventType = "waypoint.skipped"
	EventTypeWaypointReplaced EventType = "waypoint.replaced"

	// Pose feed events
	EventTypeFeedEstablished EventType = "feed.established"
	EventTypeFeedDegraded    EventType = "feed.degraded"
	EventTypeFeedRecovered   EventType = "feed.recovered"

	// System events
	EventTypeError   EventType = "error"
	EventTypeWarning EventType = "warning"
)

// EntityType identifies the type of entity an event relates to.
type EntityType string

const (
	EntityTypePlan     EntityType = "plan"
	EntityTypeMission  EntityType = "mission"
	EntityTypeWaypoint EntityType = "waypoint"
	EntityTypeFeed     EntityType = "feed"
	EntityTypeSystem   EntityType = "system"
)

// Event represents an append-only log entry.
type Event struct {
	// ID is the unique identifier for the event.
	ID string `json:"id"`

	// RunID groups the events of one plan execution.
	RunID string `json:"run_id,omitempty"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type categorizes the event.
	Type EventType `json:"type"`

	// EntityType identifies what kind of entity this event relates to.
	EntityType EntityType `json:"entity_type"`

	// EntityID is the ID of the related entity.
	EntityID string `json:"entity_id"`

	// Payload contains event-specific data.
	Payload json.RawMessage `json:"payload,omitempty"`

	// Metadata contains additional context.
	Metadata map[string]string `json:"metadata,omitempty"`
}

// WaypointSetPayload is the payload for waypoint.set events.
type WaypointSetPayload struct {
	Mission  string  `json:"mission"`
	Waypoint string  `json:"waypoint"`
	X        float64 `json:"x_m"`
	Y        float64 `json:"y_m"`
	Yaw      float64 `json:"yaw_rad"`
}

// WaypointReachedPayload is the payload for waypoint.reached events.
type WaypointReachedPayload struct {
	Mission  string `json:"mission"`
	Waypoint string `json:"waypoint"`
	Duration string `json:"duration"`
}

// WaypointSkippedPayload is the payload for waypoint.skipped events.
type WaypointSkippedPayload struct {
	Mission  string `json:"mission"`
	Waypoint string `json:"waypoint"`
	Reason   string `json:"reason"`
}

// WaypointReplacedPayload is the payload for waypoint.replaced events.
type WaypointReplacedPayload struct {
	Mission  string  `json:"mission"`
	Waypoint string  `json:"waypoint"`
	X        float64 `json:"x_m"`
	Y        float64 `json:"y_m"`
	Yaw      float64 `json:"yaw_rad"`
}

// MissionAbortedPayload is the payload for mission.aborted events.
type MissionAbortedPayload struct {
	Mission  string `json:"mission"`
	Waypoint string `json:"waypoint"`
	Reason   string `json:"reason"`
}

// MissionCompletedPayload is the payload for mission.completed events.
type MissionCompletedPayload struct {
	Mission   string `json:"mission"`
	Waypoints int    `json:"waypoints"`
}

// PlanFinishedPayload is the payload for plan.finished events.
type PlanFinishedPayload struct {
	Plan     string `json:"plan"`
	Terminal string `json:"terminal"`
	Duration string `json:"duration"`
}

// FeedHealthPayload is the payload for feed.degraded and feed.recovered
// events.
type FeedHealthPayload struct {
	State  string `json:"state"`
	Reason string `json:"reason"`
}

// ErrorPayload is the payload for error events.
type ErrorPayload struct {
	Error   string `json:"error"`
	Context string `json:"context,omitempty"`
}
