// Package metrics provides Prometheus metrics for the wayfarer daemon.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder records sequencing metrics. A nil *Recorder is valid and drops
// every observation, so tests can pass nil.
type Recorder struct {
	waypointsReached  *prometheus.CounterVec
	waypointsSkipped  *prometheus.CounterVec
	waypointsReplaced *prometheus.CounterVec
	missionsCompleted prometheus.Counter
	missionsAborted   *prometheus.CounterVec
	waypointSeconds   *prometheus.HistogramVec
	publishWait       prometheus.Histogram
	poseUpdates       prometheus.Counter
	poseDecodeFails   prometheus.Counter
	subscribers       prometheus.Gauge
	feedState         prometheus.Gauge
}

// NewRecorder creates a recorder registered with the given registerer.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		waypointsReached: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfarer_waypoints_reached_total",
				Help: "Waypoints confirmed reached within tolerance",
			},
			[]string{"mission"},
		),
		waypointsSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfarer_waypoints_skipped_total",
				Help: "Waypoints given up on, by reason",
			},
			[]string{"mission", "reason"},
		),
		waypointsReplaced: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfarer_waypoints_replaced_total",
				Help: "Waypoints replaced with a synthesized halfway target",
			},
			[]string{"mission"},
		),
		missionsCompleted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wayfarer_missions_completed_total",
				Help: "Missions that traversed every waypoint",
			},
		),
		missionsAborted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wayfarer_missions_aborted_total",
				Help: "Missions aborted, by reason",
			},
			[]string{"reason"},
		),
		waypointSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wayfarer_waypoint_seconds",
				Help:    "Time from waypoint publish to reached",
				Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
			},
			[]string{"mission"},
		),
		publishWait: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wayfarer_publish_wait_seconds",
				Help:    "Time the first publish waited for a subscriber",
				Buckets: prometheus.DefBuckets,
			},
		),
		poseUpdates: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wayfarer_pose_updates_total",
				Help: "Pose messages accepted from the feed",
			},
		),
		poseDecodeFails: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "wayfarer_pose_decode_failures_total",
				Help: "Pose datagrams dropped as undecodable",
			},
		),
		subscribers: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wayfarer_subscribers",
				Help: "Currently connected waypoint subscribers",
			},
		),
		feedState: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "wayfarer_feed_state",
				Help: "Pose feed freshness (0 waiting, 1 live, 2 stale, 3 lost)",
			},
		),
	}
}

// WaypointReached records an arrival and its duration.
func (r *Recorder) WaypointReached(mission string, took time.Duration) {
	if r == nil {
		return
	}
	r.waypointsReached.WithLabelValues(mission).Inc()
	r.waypointSeconds.WithLabelValues(mission).Observe(took.Seconds())
}

// WaypointSkipped records a skipped waypoint.
func (r *Recorder) WaypointSkipped(mission, reason string) {
	if r == nil {
		return
	}
	r.waypointsSkipped.WithLabelValues(mission, reason).Inc()
}

// WaypointReplaced records a halfway-waypoint replacement.
func (r *Recorder) WaypointReplaced(mission string) {
	if r == nil {
		return
	}
	r.waypointsReplaced.WithLabelValues(mission).Inc()
}

// MissionCompleted records a completed mission.
func (r *Recorder) MissionCompleted() {
	if r == nil {
		return
	}
	r.missionsCompleted.Inc()
}

// MissionAborted records an aborted mission.
func (r *Recorder) MissionAborted(reason string) {
	if r == nil {
		return
	}
	r.missionsAborted.WithLabelValues(reason).Inc()
}

// PublishWait records how long the first publish waited for a subscriber.
func (r *Recorder) PublishWait(wait time.Duration) {
	if r == nil {
		return
	}
	r.publishWait.Observe(wait.Seconds())
}

// PoseUpdate counts one accepted pose message.
func (r *Recorder) PoseUpdate() {
	if r == nil {
		return
	}
	r.poseUpdates.Inc()
}

// PoseDecodeFailure counts one dropped pose datagram.
func (r *Recorder) PoseDecodeFailure() {
	if r == nil {
		return
	}
	r.poseDecodeFails.Inc()
}

// SetSubscribers tracks the waypoint subscriber count.
func (r *Recorder) SetSubscribers(n int) {
	if r == nil {
		return
	}
	r.subscribers.Set(float64(n))
}

// SetFeedState tracks the pose feed freshness class.
func (r *Recorder) SetFeedState(v float64) {
	if r == nil {
		return
	}
	r.feedState.Set(v)
}
