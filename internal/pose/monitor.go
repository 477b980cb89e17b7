package pose

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/metrics"
)

// MonitorConfig holds the feed monitor settings.
type MonitorConfig struct {
	// Interval is how often the feed is classified.
	Interval time.Duration

	// StaleAfter is the pose age at which the feed counts as stale.
	StaleAfter time.Duration

	// LostAfter is the pose age at which the feed counts as lost.
	LostAfter time.Duration
}

// DefaultMonitorConfig returns the default monitor settings.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Interval:   time.Second,
		StaleAfter: DefaultStaleAfter,
		LostAfter:  DefaultLostAfter,
	}
}

// Monitor watches the tracker's feed freshness and records transitions.
// The listener announces the first pose; the monitor covers everything
// after that: it emits feed.degraded when poses stop arriving and
// feed.recovered when they resume.
type Monitor struct {
	source  string
	tracker *Tracker
	sink    events.Sink
	rec     *metrics.Recorder
	config  MonitorConfig
	logger  zerolog.Logger

	now func() time.Time

	mu   sync.Mutex
	last FeedState
}

// NewMonitor creates a feed monitor. Source identifies the feed in
// emitted events and should match the listener's address.
func NewMonitor(source string, tracker *Tracker, sink events.Sink, rec *metrics.Recorder, config MonitorConfig) *Monitor {
	if config.Interval <= 0 {
		config.Interval = DefaultMonitorConfig().Interval
	}
	if config.StaleAfter <= 0 {
		config.StaleAfter = DefaultMonitorConfig().StaleAfter
	}
	if config.LostAfter <= 0 {
		config.LostAfter = DefaultMonitorConfig().LostAfter
	}
	if sink == nil {
		sink = events.NoopSink{}
	}

	return &Monitor{
		source:  source,
		tracker: tracker,
		sink:    sink,
		rec:     rec,
		config:  config,
		logger:  logging.Component("pose"),
		now:     time.Now,
		last:    FeedWaiting,
	}
}

// Run classifies the feed every interval until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.check(ctx)
		}
	}
}

// State returns the classification from the last check.
func (m *Monitor) State() FeedState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

func (m *Monitor) check(ctx context.Context) {
	updates, lastUpdate := m.tracker.Stats()
	health := ClassifyFeed(updates, lastUpdate, m.now(), m.config.StaleAfter, m.config.LostAfter)

	m.rec.SetFeedState(feedStateValue(health.State))

	m.mu.Lock()
	prev := m.last
	m.last = health.State
	m.mu.Unlock()

	if health.State == prev {
		return
	}

	switch health.State {
	case FeedStale, FeedLost:
		m.logger.Warn().
			Str("state", string(health.State)).
			Str("reason", health.Reason).
			Msg("pose feed degraded")
		if err := events.LogFeedDegraded(ctx, m.sink, m.source, string(health.State), health.Reason); err != nil {
			m.logger.Warn().Err(err).Msg("failed to record feed event")
		}
	case FeedLive:
		// The waiting to live transition is the listener's first-pose
		// announcement; only report recoveries here.
		if prev == FeedWaiting {
			return
		}
		m.logger.Info().Msg("pose feed recovered")
		if err := events.LogFeedRecovered(ctx, m.sink, m.source); err != nil {
			m.logger.Warn().Err(err).Msg("failed to record feed event")
		}
	}
}

func feedStateValue(s FeedState) float64 {
	switch s {
	case FeedLive:
		return 1
	case FeedStale:
		return 2
	case FeedLost:
		return 3
	default:
		return 0
	}
}
