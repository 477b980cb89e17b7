package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrover/wayfarer/internal/models"
)

// Attempt repository errors.
var (
	ErrInvalidAttempt = errors.New("invalid attempt")
)

// AttemptRepository handles waypoint attempt persistence.
type AttemptRepository struct {
	db *DB
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(db *DB) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts a new attempt record.
func (r *AttemptRepository) Create(ctx context.Context, attempt *models.Attempt) error {
	if attempt.Mission == "" || attempt.Waypoint == "" || attempt.Outcome == "" {
		return ErrInvalidAttempt
	}

	if attempt.ID == "" {
		attempt.ID = uuid.New().String()
	}
	if attempt.RecordedAt.IsZero() {
		attempt.RecordedAt = time.Now().UTC()
	} else {
		attempt.RecordedAt = attempt.RecordedAt.UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO attempts (
			id, run_id, mission, waypoint, outcome, reason, elapsed_ms, recorded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		attempt.ID,
		nullString(attempt.RunID),
		attempt.Mission,
		attempt.Waypoint,
		attempt.Outcome,
		nullString(attempt.Reason),
		attempt.Elapsed.Milliseconds(),
		attempt.RecordedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert attempt: %w", err)
	}

	return nil
}

// ListByRun retrieves the attempts of one plan execution in order.
func (r *AttemptRepository) ListByRun(ctx context.Context, runID string, limit int) ([]*models.Attempt, error) {
	if limit <= 0 {
		limit = 200
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, run_id, mission, waypoint, outcome, reason, elapsed_ms, recorded_at
		FROM attempts
		WHERE run_id = ?
		ORDER BY recorded_at, id
		LIMIT ?
	`, runID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*models.Attempt
	for rows.Next() {
		var a models.Attempt
		var runID, reason sql.NullString
		var elapsedMS int64
		var recordedAt string

		if err := rows.Scan(&a.ID, &runID, &a.Mission, &a.Waypoint, &a.Outcome, &reason, &elapsedMS, &recordedAt); err != nil {
			return nil, err
		}

		a.RunID = runID.String
		a.Reason = reason.String
		a.Elapsed = time.Duration(elapsedMS) * time.Millisecond

		parsed, err := time.Parse(time.RFC3339Nano, recordedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse attempt timestamp: %w", err)
		}
		a.RecordedAt = parsed

		attempts = append(attempts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}

// SummarizeByMission aggregates a run's attempts per mission.
func (r *AttemptRepository) SummarizeByMission(ctx context.Context, runID string) ([]*models.AttemptSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT mission,
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = ? THEN 1 ELSE 0 END),
			COALESCE(AVG(CASE WHEN outcome = ? THEN elapsed_ms END), 0)
		FROM attempts
		WHERE run_id = ?
		GROUP BY mission
		ORDER BY mission
	`,
		models.AttemptReached,
		models.AttemptSkipped,
		models.AttemptReplaced,
		models.AttemptAborted,
		models.AttemptReached,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize attempts: %w", err)
	}
	defer rows.Close()

	var summaries []*models.AttemptSummary
	for rows.Next() {
		var s models.AttemptSummary
		var avgMS float64
		if err := rows.Scan(&s.Mission, &s.Reached, &s.Skipped, &s.Replaced, &s.Aborted, &avgMS); err != nil {
			return nil, err
		}
		s.AvgToGoal = time.Duration(avgMS) * time.Millisecond
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating summaries: %w", err)
	}

	return summaries, nil
}
