// Package publisher streams waypoint targets to motion subscribers.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/metrics"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/wire"
)

const (
	// DefaultWaitPoll is how often the first publish re-checks for a
	// subscriber while blocked.
	DefaultWaitPoll = 100 * time.Millisecond

	// DefaultWaitLogEvery throttles the waiting-for-subscriber log.
	DefaultWaitLogEvery = 1 * time.Second
)

// Wire streams stamped waypoint targets to TCP subscribers as JSON lines.
// The first Publish blocks until at least one subscriber is attached;
// after that, publishes are fire and forget and dead subscribers are
// dropped on write failure. Late joiners immediately receive the latest
// published target.
type Wire struct {
	frameID  string
	logger   zerolog.Logger
	recorder *metrics.Recorder

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]*json.Encoder
	last     *wire.PoseStamped
	seen     bool

	// Injectable clock and wait pacing, swapped out by tests.
	now      func() time.Time
	waitPoll time.Duration
	logEvery time.Duration
}

// NewWire binds the waypoint stream listener. Run must be called for
// subscribers to attach.
func NewWire(addr, frameID string, recorder *metrics.Recorder) (*Wire, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, errors.New("publish address is required")
	}
	if frameID == "" {
		frameID = "world"
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	return &Wire{
		frameID:  frameID,
		logger:   logging.Component("publisher"),
		recorder: recorder,
		listener: listener,
		conns:    make(map[net.Conn]*json.Encoder),
		now:      time.Now,
		waitPoll: DefaultWaitPoll,
		logEvery: DefaultWaitLogEvery,
	}, nil
}

// Addr returns the bound listen address.
func (w *Wire) Addr() net.Addr {
	return w.listener.Addr()
}

// Subscribers returns the number of attached subscribers.
func (w *Wire) Subscribers() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.conns)
}

// Run accepts subscribers until ctx is cancelled.
func (w *Wire) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		_ = w.listener.Close()
	}()

	w.logger.Info().Str("bind", w.listener.Addr().String()).Msg("waypoint stream listening")

	for {
		conn, err := w.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		w.attach(conn)
	}
}

// attach registers a subscriber and replays the latest target, so a late
// joiner does not idle until the next activation republishes.
func (w *Wire) attach(conn net.Conn) {
	encoder := json.NewEncoder(conn)

	w.mu.Lock()
	w.conns[conn] = encoder
	var replayErr error
	if w.last != nil {
		if replayErr = encoder.Encode(*w.last); replayErr != nil {
			_ = conn.Close()
			delete(w.conns, conn)
		}
	}
	n := len(w.conns)
	w.mu.Unlock()
	w.recorder.SetSubscribers(n)

	if replayErr != nil {
		w.logger.Warn().
			Err(replayErr).
			Str("remote", conn.RemoteAddr().String()).
			Msg("dropping subscriber")
		return
	}

	w.logger.Info().
		Str("remote", conn.RemoteAddr().String()).
		Int("subscribers", n).
		Msg("subscriber attached")
}

// Publish sends a stamped target pose to every subscriber. The very first
// call blocks, polling and logging at a throttled rate, until a subscriber
// is attached or ctx is cancelled.
func (w *Wire) Publish(ctx context.Context, wp mission.Waypoint) error {
	if err := w.awaitSubscriber(ctx); err != nil {
		return err
	}

	w.broadcast(wire.NewPoseStamped(w.now(), w.frameID, wp.X, wp.Y, wp.Yaw))
	return nil
}

func (w *Wire) awaitSubscriber(ctx context.Context) error {
	w.mu.Lock()
	seen := w.seen
	w.mu.Unlock()
	if seen {
		return nil
	}

	start := w.now()
	var lastLog time.Time

	for {
		if w.Subscribers() > 0 {
			w.mu.Lock()
			w.seen = true
			w.mu.Unlock()
			w.recorder.PublishWait(w.now().Sub(start))
			return nil
		}

		if now := w.now(); now.Sub(lastLog) >= w.logEvery {
			lastLog = now
			w.logger.Info().Msg("waiting for a waypoint subscriber")
		}

		timer := time.NewTimer(w.waitPoll)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

func (w *Wire) broadcast(msg wire.PoseStamped) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.last = &msg

	for conn, encoder := range w.conns {
		if err := encoder.Encode(msg); err != nil {
			w.logger.Warn().
				Err(err).
				Str("remote", conn.RemoteAddr().String()).
				Msg("dropping subscriber")
			_ = conn.Close()
			delete(w.conns, conn)
		}
	}
	w.recorder.SetSubscribers(len(w.conns))
}

// Close drops all subscribers and stops the listener.
func (w *Wire) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for conn := range w.conns {
		_ = conn.Close()
	}
	w.conns = make(map[net.Conn]*json.Encoder)
	return w.listener.Close()
}
