package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"reserva/internal/apperr"
	"reserva/internal/database"
	"reserva/internal/models"
)

type RefundRepository struct {
	db *database.DB
}

func NewRefundRepository(db *database.DB) *RefundRepository {
	return &RefundRepository{db: db}
}

const refundColumns = `id, booking_id, tenant_id, amount, reason, status, submission_id, created_at, updated_at`

func scanRefund(row interface{ Scan(...any) error }, rec *models.RefundRecord) error {
	return row.Scan(
		&rec.ID,
		&rec.BookingID,
		&rec.TenantID,
		&rec.Amount,
		&rec.Reason,
		&rec.Status,
		&rec.SubmissionID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
}

// Request validates and inserts a REQUESTED refund under the per-booking
// advisory lock, so two concurrent partial refunds cannot both pass the
// sum check against a stale total. The sum counts every non-FAILED refund:
// a refund sitting between Submitted and Completed already commits funds.
func (r *RefundRepository) Request(ctx context.Context, refund *models.RefundRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := lockBooking(ctx, tx, refund.BookingID); err != nil {
		return err
	}

	var bookingStatus models.BookingStatus
	var capturedAmount int64
	var paymentStatus models.PaymentStatus
	query := `
		SELECT b.status, p.captured_amount, p.status
		FROM bookings b
		JOIN payment_records p ON p.booking_id = b.id
		WHERE b.id = $1 AND b.tenant_id = $2`
	err = tx.QueryRowContext(ctx, query, refund.BookingID, refund.TenantID).
		Scan(&bookingStatus, &capturedAmount, &paymentStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrNotFound
	}
	if err != nil {
		return err
	}

	if paymentStatus != models.PaymentCaptured {
		return apperr.ErrConflict
	}
	if bookingStatus != models.BookingConfirmed && bookingStatus != models.BookingCompleted {
		return apperr.ErrConflict
	}

	var committed int64
	sumQuery := `
		SELECT COALESCE(SUM(amount), 0) FROM refund_records
		WHERE booking_id = $1 AND status != 'FAILED'`
	if err := tx.QueryRowContext(ctx, sumQuery, refund.BookingID).Scan(&committed); err != nil {
		return err
	}

	if refund.Amount <= 0 || refund.Amount+committed > capturedAmount {
		return apperr.ErrRefundExceedsCaptured
	}

	refund.Status = models.RefundRequested
	insertQuery := `
		INSERT INTO refund_records (id, booking_id, tenant_id, amount, reason, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`
	err = tx.QueryRowContext(ctx, insertQuery,
		refund.ID,
		refund.BookingID,
		refund.TenantID,
		refund.Amount,
		refund.Reason,
		refund.Status,
	).Scan(&refund.CreatedAt, &refund.UpdatedAt)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// MarkSubmitted records the processor submission id after the external
// refund call succeeded.
func (r *RefundRepository) MarkSubmitted(ctx context.Context, id uuid.UUID, submissionID string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refund_records
		SET status = 'SUBMITTED', submission_id = $1, updated_at = NOW()
		WHERE id = $2 AND status = 'REQUESTED'`, submissionID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperr.ErrConflict
	}
	return nil
}

// RefundOutcome is what a refund-confirmation event did. Known is false
// when the submission id resolves to nothing (the event may have arrived
// before our own submission committed, so the caller retries); Applied is
// false on replay against an already-terminal record.
type RefundOutcome struct {
	Refund          models.RefundRecord
	BookingRefunded bool
	Known           bool
	Applied         bool
}

// ApplyCompletion moves a SUBMITTED refund to COMPLETED and, when the
// completed total now equals the captured amount, the booking to
// REFUNDED — atomically, under the per-booking lock.
func (r *RefundRepository) ApplyCompletion(ctx context.Context, submissionID string) (RefundOutcome, error) {
	var out RefundOutcome

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return out, err
	}
	defer tx.Rollback()

	lookup := `SELECT booking_id FROM refund_records WHERE submission_id = $1`
	var bookingID uuid.UUID
	err = tx.QueryRowContext(ctx, lookup, submissionID).Scan(&bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return out, nil
	}
	if err != nil {
		return out, err
	}

	out.Known = true

	if err := lockBooking(ctx, tx, bookingID); err != nil {
		return out, err
	}

	completeQuery := `
		UPDATE refund_records
		SET status = 'COMPLETED', updated_at = NOW()
		WHERE submission_id = $1 AND status = 'SUBMITTED'
		RETURNING ` + refundColumns
	err = scanRefund(tx.QueryRowContext(ctx, completeQuery, submissionID), &out.Refund)
	if errors.Is(err, sql.ErrNoRows) {
		// Already completed or failed; replay is a no-op.
		return out, nil
	}
	if err != nil {
		return out, err
	}
	out.Applied = true

	var completed, captured int64
	totalsQuery := `
		SELECT
			(SELECT COALESCE(SUM(amount), 0) FROM refund_records WHERE booking_id = $1 AND status = 'COMPLETED'),
			(SELECT captured_amount FROM payment_records WHERE booking_id = $1)`
	if err := tx.QueryRowContext(ctx, totalsQuery, bookingID).Scan(&completed, &captured); err != nil {
		return out, err
	}

	if completed >= captured {
		res, err := tx.ExecContext(ctx, `
			UPDATE bookings
			SET status = 'REFUNDED', version = version + 1, updated_at = NOW()
			WHERE id = $1 AND status = 'CONFIRMED'`, bookingID)
		if err != nil {
			return out, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return out, err
		}
		out.BookingRefunded = n == 1
	}

	if err := tx.Commit(); err != nil {
		return RefundOutcome{}, err
	}
	return out, nil
}

// ApplyFailure moves a SUBMITTED refund to FAILED. The booking is left
// untouched; failed refunds are surfaced for operator review, never
// retried automatically.
func (r *RefundRepository) ApplyFailure(ctx context.Context, submissionID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE refund_records
		SET status = 'FAILED', updated_at = NOW()
		WHERE submission_id = $1 AND status = 'SUBMITTED'`, submissionID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRecord, error) {
	rec := &models.RefundRecord{}
	query := `SELECT ` + refundColumns + ` FROM refund_records WHERE id = $1`

	err := scanRefund(r.db.QueryRowContext(ctx, query, id), rec)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return rec, err
}

func (r *RefundRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.RefundRecord, error) {
	query := `SELECT ` + refundColumns + ` FROM refund_records WHERE booking_id = $1 ORDER BY created_at`

	rows, err := r.db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refunds []models.RefundRecord
	for rows.Next() {
		var rec models.RefundRecord
		if err := scanRefund(rows, &rec); err != nil {
			return nil, err
		}
		refunds = append(refunds, rec)
	}
	return refunds, rows.Err()
}
