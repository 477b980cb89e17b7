package pose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/metrics"
	"github.com/fieldrover/wayfarer/internal/wire"
)

// Listener feeds the tracker from pose datagrams received over UDP.
// Each datagram carries one wire.PoseStamped JSON document.
type Listener struct {
	addr    string
	tracker *Tracker
	sink    events.Sink
	rec     *metrics.Recorder
	logger  zerolog.Logger

	mu    sync.Mutex
	bound net.Addr
}

// NewListener creates a pose feed listener bound to addr.
func NewListener(addr string, tracker *Tracker, sink events.Sink, rec *metrics.Recorder) *Listener {
	if sink == nil {
		sink = events.NoopSink{}
	}
	return &Listener{
		addr:    addr,
		tracker: tracker,
		sink:    sink,
		rec:     rec,
		logger:  logging.Component("pose"),
	}
}

// BoundAddr returns the address the listener is bound to, or nil before
// Run has opened the socket.
func (l *Listener) BoundAddr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bound
}

// Run receives datagrams until the context is canceled. Malformed
// datagrams are counted and dropped, never fatal.
func (l *Listener) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}

	l.mu.Lock()
	l.bound = conn.LocalAddr()
	l.mu.Unlock()

	l.logger.Info().Str("bind", conn.LocalAddr().String()).Msg("pose feed listening")

	// Unblock ReadFrom on shutdown.
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		conn.Close()
	}()
	defer close(done)

	established := false
	buf := make([]byte, 64*1024)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("read pose datagram: %w", err)
		}

		var msg wire.PoseStamped
		if err := json.Unmarshal(buf[:n], &msg); err != nil {
			l.rec.PoseDecodeFailure()
			l.logger.Debug().Err(err).Int("bytes", n).Msg("dropping undecodable pose datagram")
			continue
		}

		l.tracker.Update(Estimate{
			X:   msg.Position.X,
			Y:   msg.Position.Y,
			Yaw: msg.Yaw(),
		})
		l.rec.PoseUpdate()

		if !established {
			established = true
			l.logger.Info().Str("frame_id", msg.FrameID).Msg("pose feed established")
			if err := events.LogFeedEstablished(ctx, l.sink, l.addr); err != nil {
				l.logger.Warn().Err(err).Msg("failed to record feed event")
			}
		}
	}
}
