package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
)

// LogWaypointSet records that a waypoint was published as the active target.
func LogWaypointSet(ctx context.Context, sink Sink, missionName string, wp mission.Waypoint) error {
	return emit(ctx, sink, models.EventTypeWaypointSet, models.EntityTypeWaypoint, wp.Name, models.WaypointSetPayload{
		Mission:  missionName,
		Waypoint: wp.Name,
		X:        wp.X,
		Y:        wp.Y,
		Yaw:      wp.Yaw,
	})
}

// LogWaypointReached records an arrival within tolerance.
func LogWaypointReached(ctx context.Context, sink Sink, missionName string, wp mission.Waypoint, took time.Duration) error {
	return emit(ctx, sink, models.EventTypeWaypointReached, models.EntityTypeWaypoint, wp.Name, models.WaypointReachedPayload{
		Mission:  missionName,
		Waypoint: wp.Name,
		Duration: took.String(),
	})
}

// LogWaypointSkipped records a waypoint given up on.
func LogWaypointSkipped(ctx context.Context, sink Sink, missionName string, wp mission.Waypoint, reason string) error {
	return emit(ctx, sink, models.EventTypeWaypointSkipped, models.EntityTypeWaypoint, wp.Name, models.WaypointSkippedPayload{
		Mission:  missionName,
		Waypoint: wp.Name,
		Reason:   reason,
	})
}

// LogWaypointReplaced records a halfway-waypoint replacement.
func LogWaypointReplaced(ctx context.Context, sink Sink, missionName string, wp mission.Waypoint) error {
	return emit(ctx, sink, models.EventTypeWaypointReplaced, models.EntityTypeWaypoint, wp.Name, models.WaypointReplacedPayload{
		Mission:  missionName,
		Waypoint: wp.Name,
		X:        wp.X,
		Y:        wp.Y,
		Yaw:      wp.Yaw,
	})
}

// LogMissionStarted records a traversal attempt beginning at the first waypoint.
func LogMissionStarted(ctx context.Context, sink Sink, missionName string) error {
	return emit(ctx, sink, models.EventTypeMissionStarted, models.EntityTypeMission, missionName, nil)
}

// LogMissionCompleted records a mission whose waypoints were all traversed.
func LogMissionCompleted(ctx context.Context, sink Sink, missionName string, waypoints int) error {
	return emit(ctx, sink, models.EventTypeMissionCompleted, models.EntityTypeMission, missionName, models.MissionCompletedPayload{
		Mission:   missionName,
		Waypoints: waypoints,
	})
}

// LogMissionAborted records a mission abort and its reason.
func LogMissionAborted(ctx context.Context, sink Sink, missionName, waypoint, reason string) error {
	return emit(ctx, sink, models.EventTypeMissionAborted, models.EntityTypeMission, missionName, models.MissionAbortedPayload{
		Mission:  missionName,
		Waypoint: waypoint,
		Reason:   reason,
	})
}

// LogPlanStarted records the start of a plan execution.
func LogPlanStarted(ctx context.Context, sink Sink, planName string) error {
	return emit(ctx, sink, models.EventTypePlanStarted, models.EntityTypePlan, planName, nil)
}

// LogPlanFinished records the terminal state of a plan execution.
func LogPlanFinished(ctx context.Context, sink Sink, planName, terminal string, took time.Duration) error {
	return emit(ctx, sink, models.EventTypePlanFinished, models.EntityTypePlan, planName, models.PlanFinishedPayload{
		Plan:     planName,
		Terminal: terminal,
		Duration: took.String(),
	})
}

// LogFeedEstablished records the first pose message arriving.
func LogFeedEstablished(ctx context.Context, sink Sink, source string) error {
	return emit(ctx, sink, models.EventTypeFeedEstablished, models.EntityTypeFeed, source, nil)
}

// LogFeedDegraded records the pose feed going stale or lost.
func LogFeedDegraded(ctx context.Context, sink Sink, source, state, reason string) error {
	return emit(ctx, sink, models.EventTypeFeedDegraded, models.EntityTypeFeed, source, models.FeedHealthPayload{
		State:  state,
		Reason: reason,
	})
}

// LogFeedRecovered records the pose feed coming back after a degradation.
func LogFeedRecovered(ctx context.Context, sink Sink, source string) error {
	return emit(ctx, sink, models.EventTypeFeedRecovered, models.EntityTypeFeed, source, nil)
}

// LogError records a failure that ended the run.
func LogError(ctx context.Context, sink Sink, source string, cause error, detail string) error {
	return emit(ctx, sink, models.EventTypeError, models.EntityTypeSystem, source, models.ErrorPayload{
		Error:   cause.Error(),
		Context: detail,
	})
}

func emit(ctx context.Context, sink Sink, eventType models.EventType, entityType models.EntityType, entityID string, payload any) error {
	if sink == nil {
		return fmt.Errorf("event sink is required")
	}
	if entityID == "" {
		return fmt.Errorf("entity id is required")
	}

	event := &models.Event{
		Type:       eventType,
		EntityType: entityType,
		EntityID:   entityID,
	}

	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
		}
		event.Payload = data
	}

	return sink.Emit(ctx, event)
}
