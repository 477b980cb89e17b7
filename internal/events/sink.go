// Package events provides event emission and buffering for wayfarer.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/fieldrover/wayfarer/internal/models"
)

// Sink receives sequencing events.
type Sink interface {
	Emit(ctx context.Context, event *models.Event) error
	Close() error
}

// NoopSink drops all events.
type NoopSink struct{}

// Emit ignores events.
func (NoopSink) Emit(ctx context.Context, event *models.Event) error {
	return nil
}

// Close is a no-op.
func (NoopSink) Close() error {
	return nil
}

// Repository is the minimal interface needed to persist events.
type Repository interface {
	Create(ctx context.Context, event *models.Event) error
}

// DatabaseSink writes events to the SQLite event log.
type DatabaseSink struct {
	mu    sync.Mutex
	repo  Repository
	runID string
}

// NewDatabaseSink creates a database-backed event sink. Events emitted
// without a run ID inherit the sink's.
func NewDatabaseSink(repo Repository, runID string) *DatabaseSink {
	return &DatabaseSink{repo: repo, runID: runID}
}

// Emit persists an event through the repository.
func (s *DatabaseSink) Emit(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo == nil {
		return errors.New("event repository is required")
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.RunID == "" {
		event.RunID = s.runID
	}

	return s.repo.Create(ctx, event)
}

// Close is a no-op; the database is owned by the caller.
func (s *DatabaseSink) Close() error {
	return nil
}

// Multi fans events out to every sink in order.
type Multi []Sink

// Emit delivers the event to each sink, joining any errors.
func (m Multi) Emit(ctx context.Context, event *models.Event) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Emit(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes each sink, joining any errors.
func (m Multi) Close() error {
	var errs []error
	for _, sink := range m {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
