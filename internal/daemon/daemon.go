// Package daemon assembles the wayfarer services and drives a plan run:
// the pose feed, the waypoint stream, the introspection endpoint and the
// mission graph.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/fieldrover/wayfarer/internal/config"
	"github.com/fieldrover/wayfarer/internal/db"
	"github.com/fieldrover/wayfarer/internal/events"
	"github.com/fieldrover/wayfarer/internal/graph"
	"github.com/fieldrover/wayfarer/internal/introspect"
	"github.com/fieldrover/wayfarer/internal/logging"
	"github.com/fieldrover/wayfarer/internal/metrics"
	"github.com/fieldrover/wayfarer/internal/mission"
	"github.com/fieldrover/wayfarer/internal/models"
	"github.com/fieldrover/wayfarer/internal/pose"
	"github.com/fieldrover/wayfarer/internal/publisher"
	"github.com/fieldrover/wayfarer/internal/sequencer"
)

const shutdownGrace = 5 * time.Second

// Daemon owns every service of one plan run.
type Daemon struct {
	cfg    config.Config
	plan   *mission.Plan
	runID  string
	logger zerolog.Logger

	tracker  *pose.Tracker
	listener *pose.Listener
	monitor  *pose.Monitor
	wire     *publisher.Wire
	machine  *graph.Machine
	ring     *events.Ring
	sink     events.Sink
	recorder *metrics.Recorder

	database *db.DB
	httpLn   net.Listener
	httpSrv  *http.Server

	now func() time.Time

	mu        sync.Mutex
	startedAt time.Time
	terminal  string
}

// attemptStamper records waypoint attempts under the daemon's run id.
type attemptStamper struct {
	repo  *db.AttemptRepository
	runID string
}

func (a attemptStamper) Create(ctx context.Context, attempt *models.Attempt) error {
	attempt.RunID = a.runID
	return a.repo.Create(ctx, attempt)
}

// New wires a daemon for the given plan. The waypoint stream and the
// introspection endpoint are bound immediately, so their addresses are
// known before Run starts serving.
func New(cfg config.Config, plan *mission.Plan) (*Daemon, error) {
	if plan == nil {
		return nil, errors.New("plan is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:    cfg,
		plan:   plan,
		runID:  uuid.NewString(),
		logger: logging.Component("daemon"),
		now:    time.Now,
	}

	registry := prometheus.NewRegistry()
	d.recorder = metrics.NewRecorder(registry)

	d.ring = events.NewRing(cfg.EventBuffer)
	sinks := events.Multi{d.ring}

	var attempts sequencer.AttemptRecorder
	if cfg.Database != "" {
		database, err := db.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if _, err := database.MigrateUp(context.Background()); err != nil {
			database.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
		d.database = database
		sinks = append(sinks, events.NewDatabaseSink(db.NewEventRepository(database), d.runID))
		attempts = attemptStamper{repo: db.NewAttemptRepository(database), runID: d.runID}
	}
	d.sink = sinks

	frameID := plan.FrameID
	if frameID == "" {
		frameID = cfg.FrameID
	}

	wire, err := publisher.NewWire(cfg.Listen.Publish, frameID, d.recorder)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to bind waypoint stream: %w", err)
	}
	d.wire = wire

	d.tracker = pose.NewTracker()
	d.listener = pose.NewListener(cfg.Listen.Pose, d.tracker, d.sink, d.recorder)
	d.monitor = pose.NewMonitor(cfg.Listen.Pose, d.tracker, d.sink, d.recorder, pose.DefaultMonitorConfig())

	machine, err := graph.Build(plan, graph.Config{
		Standard:    cfg.SequencerConfig(),
		Exploration: cfg.ExplorationConfig(),
	}, sequencer.Deps{
		Poses:     d.tracker,
		Publisher: d.wire,
		Sink:      d.sink,
		Metrics:   d.recorder,
		Attempts:  attempts,
	})
	if err != nil {
		d.Close()
		return nil, err
	}
	d.machine = machine

	httpLn, err := net.Listen("tcp", cfg.Listen.HTTP)
	if err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to bind introspection endpoint: %w", err)
	}
	d.httpLn = httpLn
	d.httpSrv = &http.Server{
		Handler:           introspect.NewServer(d, d.ring, plan, registry).Handler(),
		ReadHeaderTimeout: shutdownGrace,
	}

	return d, nil
}

// RunID identifies this plan run in events and attempt records.
func (d *Daemon) RunID() string { return d.runID }

// HTTPAddr returns the bound introspection address.
func (d *Daemon) HTTPAddr() net.Addr { return d.httpLn.Addr() }

// PublishAddr returns the bound waypoint stream address.
func (d *Daemon) PublishAddr() net.Addr { return d.wire.Addr() }

// PoseAddr returns the pose socket address, or nil until Run has bound it.
func (d *Daemon) PoseAddr() net.Addr { return d.listener.BoundAddr() }

// Run serves the support services and executes the plan. It returns nil
// when the plan settles or the context is canceled, and the first
// service error otherwise.
func (d *Daemon) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	start := d.now()
	d.mu.Lock()
	d.startedAt = start
	d.mu.Unlock()

	d.logger.Info().
		Str("plan", d.plan.Name).
		Str("run_id", d.runID).
		Int("missions", len(d.plan.Missions)).
		Str("publish", d.wire.Addr().String()).
		Str("http", d.httpLn.Addr().String()).
		Msg("wayfarer starting")

	if err := events.LogPlanStarted(runCtx, d.sink, d.plan.Name); err != nil {
		d.logger.Warn().Err(err).Msg("failed to record event")
	}

	g, gctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		if err := d.listener.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("pose feed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := d.monitor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("feed monitor: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := d.wire.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("waypoint stream: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		err := d.httpSrv.Serve(d.httpLn)
		if errors.Is(err, http.ErrServerClosed) || errors.Is(err, net.ErrClosed) {
			return nil
		}
		return fmt.Errorf("introspection: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownGrace)
		defer stop()
		if err := d.httpSrv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("introspection shutdown: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		// Stop the support services once the plan settles.
		defer cancel()

		terminal, err := d.machine.Run(gctx)
		took := d.now().Sub(start)

		d.mu.Lock()
		d.terminal = terminal
		d.mu.Unlock()

		if err != nil {
			if errors.Is(err, context.Canceled) {
				d.logger.Info().Msg("run canceled")
				return nil
			}
			return fmt.Errorf("plan run: %w", err)
		}

		d.logger.Info().
			Str("terminal", terminal).
			Dur("took", took).
			Msg("plan finished")

		// The group context is about to die with us; give the final
		// event its own deadline.
		flushCtx, flush := context.WithTimeout(context.Background(), 2*time.Second)
		defer flush()
		if err := events.LogPlanFinished(flushCtx, d.sink, d.plan.Name, terminal, took); err != nil {
			d.logger.Warn().Err(err).Msg("failed to record event")
		}
		return nil
	})

	err := g.Wait()
	if err == nil {
		d.logger.Info().Msg("wayfarer stopped")
		return nil
	}

	// The group context died with the failing service; give the error
	// event its own deadline.
	flushCtx, flush := context.WithTimeout(context.Background(), 2*time.Second)
	defer flush()
	if logErr := events.LogError(flushCtx, d.sink, "daemon", err, "plan "+d.plan.Name); logErr != nil {
		d.logger.Warn().Err(logErr).Msg("failed to record event")
	}
	return err
}

// Status reports the live run state for the introspection endpoint.
func (d *Daemon) Status() introspect.Status {
	d.mu.Lock()
	startedAt := d.startedAt
	terminal := d.terminal
	d.mu.Unlock()

	status := introspect.Status{
		Plan:        d.plan.Name,
		RunID:       d.runID,
		State:       d.machine.Current(),
		Terminal:    terminal,
		StartedAt:   startedAt,
		Feed:        d.tracker.Health(),
		Pose:        d.tracker.Snapshot(),
		Subscribers: d.wire.Subscribers(),
	}
	if state, ok := d.machine.StateFor(status.State); ok {
		if seq, ok := state.(*sequencer.Sequencer); ok {
			p := seq.Progress()
			status.Waypoint = p.Waypoint
			status.Cursor = p.Cursor
			status.Waypoints = p.Waypoints
		}
	}
	if !startedAt.IsZero() {
		status.Uptime = d.now().Sub(startedAt).Round(time.Millisecond).String()
	}
	return status
}

// Close releases the daemon's sockets and database handle. It is safe to
// call after a failed New and after Run has returned.
func (d *Daemon) Close() error {
	var errs []error
	if d.httpLn != nil {
		if err := d.httpLn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if d.wire != nil {
		if err := d.wire.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	if d.database != nil {
		if err := d.database.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
