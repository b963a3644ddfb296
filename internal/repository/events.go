package repository

import (
	"context"
	"time"

	"reserva/internal/database"
	"reserva/internal/models"
)

type EventRepository struct {
	db *database.DB
}

func NewEventRepository(db *database.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Claim inserts the durable dedupe record for an event id. Returns false
// when the id was seen before — the at-most-once guarantee. The row is
// created in RETRY state with a first deadline so a crash mid-processing
// leaves it visible to the replay worker instead of losing it.
func (r *EventRepository) Claim(ctx context.Context, event *models.ProcessorEvent, firstDeadline time.Time) (bool, error) {
	query := `
		INSERT INTO processor_events (event_id, type, payload, status, attempts, next_attempt_at)
		VALUES ($1, $2, $3, 'RETRY', 0, $4)
		ON CONFLICT (event_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query, event.EventID, event.Type, event.Payload, firstDeadline)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// RecordRejected dead-letters an event that failed authenticity checks.
// Never retried automatically.
func (r *EventRepository) RecordRejected(ctx context.Context, event *models.ProcessorEvent, reason string) error {
	query := `
		INSERT INTO processor_events (event_id, type, payload, status, last_error)
		VALUES ($1, $2, $3, 'REJECTED', $4)
		ON CONFLICT (event_id) DO NOTHING`
	_, err := r.db.ExecContext(ctx, query, event.EventID, event.Type, event.Payload, reason)
	return err
}

func (r *EventRepository) MarkProcessed(ctx context.Context, eventID string, anomaly bool) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processor_events
		SET status = 'PROCESSED', anomaly = $1, processed_at = NOW(), next_attempt_at = NULL
		WHERE event_id = $2`, anomaly, eventID)
	return err
}

func (r *EventRepository) MarkRetry(ctx context.Context, eventID string, attempts int, nextAttempt time.Time, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processor_events
		SET status = 'RETRY', attempts = $1, next_attempt_at = $2, last_error = $3
		WHERE event_id = $4`, attempts, nextAttempt, lastError, eventID)
	return err
}

// MarkDead parks an event after the retry budget is exhausted. The full
// payload stays in the row for manual replay.
func (r *EventRepository) MarkDead(ctx context.Context, eventID string, lastError string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE processor_events
		SET status = 'DEAD', next_attempt_at = NULL, last_error = $1
		WHERE event_id = $2`, lastError, eventID)
	return err
}

// DueForRetry returns RETRY events whose backoff deadline has passed.
func (r *EventRepository) DueForRetry(ctx context.Context, now time.Time, limit int) ([]models.ProcessorEvent, error) {
	query := `
		SELECT event_id, type, payload, status, attempts, next_attempt_at, anomaly, last_error, received_at, processed_at
		FROM processor_events
		WHERE status = 'RETRY' AND next_attempt_at <= $1
		ORDER BY next_attempt_at
		LIMIT $2`

	rows, err := r.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []models.ProcessorEvent
	for rows.Next() {
		var e models.ProcessorEvent
		err := rows.Scan(
			&e.EventID,
			&e.Type,
			&e.Payload,
			&e.Status,
			&e.Attempts,
			&e.NextAttemptAt,
			&e.Anomaly,
			&e.LastError,
			&e.ReceivedAt,
			&e.ProcessedAt,
		)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
