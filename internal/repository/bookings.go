package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reserva/internal/apperr"
	"reserva/internal/database"
	"reserva/internal/models"
)

type BookingRepository struct {
	db *database.DB
}

func NewBookingRepository(db *database.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

const bookingColumns = `id, tenant_id, slot_id, customer_name, customer_email, total_price,
	       status, commission, payout, expires_at, version, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }, b *models.Booking) error {
	return row.Scan(
		&b.ID,
		&b.TenantID,
		&b.SlotID,
		&b.CustomerName,
		&b.CustomerEmail,
		&b.TotalPrice,
		&b.Status,
		&b.Commission,
		&b.Payout,
		&b.ExpiresAt,
		&b.Version,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
}

// Reserve atomically claims slot capacity for a new PENDING booking. The
// slot row is locked FOR UPDATE so all concurrent reservations for the
// same slot serialize here; exactly one caller wins the last unit of
// capacity. Expired PENDING holds on the slot are cancelled inside the
// same transaction, so a lapsed hold frees its unit immediately; the
// cancelled holds are returned so callers can publish for them.
func (r *BookingRepository) Reserve(ctx context.Context, booking *models.Booking, holdWindow time.Duration) ([]models.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var capacity int
	var slotTenant uuid.UUID
	lockQuery := `SELECT tenant_id, capacity FROM slots WHERE id = $1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, lockQuery, booking.SlotID).Scan(&slotTenant, &capacity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if slotTenant != booking.TenantID {
		return nil, apperr.ErrNotFound
	}

	// Lazy expiry: a PENDING hold past its deadline no longer counts
	// against capacity. The status guard makes this a no-op if a capture
	// event confirmed the booking in the meantime.
	expireQuery := `
		UPDATE bookings
		SET status = 'CANCELLED', version = version + 1, updated_at = NOW()
		WHERE slot_id = $1 AND status = 'PENDING' AND expires_at < NOW()
		RETURNING ` + bookingColumns
	rows, err := tx.QueryContext(ctx, expireQuery, booking.SlotID)
	if err != nil {
		return nil, err
	}
	var expired []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			rows.Close()
			return nil, err
		}
		expired = append(expired, b)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var active int
	countQuery := `
		SELECT COUNT(*) FROM bookings
		WHERE slot_id = $1 AND status IN ('PENDING', 'CONFIRMED')`
	if err := tx.QueryRowContext(ctx, countQuery, booking.SlotID).Scan(&active); err != nil {
		return nil, err
	}
	if active >= capacity {
		// Rollback undoes the lazy expiry too, so nothing is reported.
		return nil, apperr.ErrSlotUnavailable
	}

	booking.Status = models.BookingPending
	booking.ExpiresAt = time.Now().Add(holdWindow)

	insertQuery := `
		INSERT INTO bookings (id, tenant_id, slot_id, customer_name, customer_email, total_price, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING version, created_at, updated_at`
	err = tx.QueryRowContext(ctx, insertQuery,
		booking.ID,
		booking.TenantID,
		booking.SlotID,
		booking.CustomerName,
		booking.CustomerEmail,
		booking.TotalPrice,
		booking.Status,
		booking.ExpiresAt,
	).Scan(&booking.Version, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		return nil, err
	}

	paymentQuery := `INSERT INTO payment_records (booking_id, status) VALUES ($1, 'PENDING')`
	if _, err := tx.ExecContext(ctx, paymentQuery, booking.ID); err != nil {
		return nil, err
	}

	return expired, tx.Commit()
}

func (r *BookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	booking := &models.Booking{}
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	err := scanBooking(r.db.QueryRowContext(ctx, query, id), booking)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return booking, err
}

// Transition applies from -> to with a status+version guard. Returns false
// when another writer got there first; the caller decides whether that is
// a conflict or a benign no-op.
func (r *BookingRepository) Transition(ctx context.Context, id uuid.UUID, from, to models.BookingStatus, version int64) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("illegal booking transition %s -> %s", from, to)
	}

	query := `
		UPDATE bookings
		SET status = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND status = $3 AND version = $4`
	res, err := r.db.ExecContext(ctx, query, to, id, from, version)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// CaptureResult describes what applying a capture event did to a booking.
type CaptureResult int

const (
	CaptureApplied CaptureResult = iota
	CaptureAlreadyConfirmed
	CaptureAnomaly
	CaptureNotFound
)

// ApplyCapture moves a PENDING booking to CONFIRMED, records the captured
// amount and persists the commission split, all in one transaction under a
// per-booking advisory lock. Events for the same booking therefore apply
// strictly in arrival order. A capture landing on a terminal booking
// applies nothing and is reported as an anomaly.
func (r *BookingRepository) ApplyCapture(ctx context.Context, bookingID uuid.UUID, processorRef string, amount, commission, payout int64) (CaptureResult, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return CaptureNotFound, err
	}
	defer tx.Rollback()

	if err := lockBooking(ctx, tx, bookingID); err != nil {
		return CaptureNotFound, err
	}

	var status models.BookingStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = $1`, bookingID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return CaptureNotFound, nil
	}
	if err != nil {
		return CaptureNotFound, err
	}

	switch status {
	case models.BookingPending:
	case models.BookingConfirmed:
		return CaptureAlreadyConfirmed, nil
	default:
		// Terminal booking: record nothing, no state regression.
		return CaptureAnomaly, nil
	}

	updateBooking := `
		UPDATE bookings
		SET status = 'CONFIRMED', commission = $1, payout = $2, version = version + 1, updated_at = NOW()
		WHERE id = $3 AND status = 'PENDING'`
	res, err := tx.ExecContext(ctx, updateBooking, commission, payout, bookingID)
	if err != nil {
		return CaptureNotFound, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return CaptureNotFound, err
	}
	if n == 0 {
		// A concurrent writer committed between our read and the guarded
		// update. Re-read and report; the payment record stays untouched.
		err = tx.QueryRowContext(ctx, `SELECT status FROM bookings WHERE id = $1`, bookingID).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return CaptureNotFound, nil
		}
		if err != nil {
			return CaptureNotFound, err
		}
		if status == models.BookingConfirmed {
			return CaptureAlreadyConfirmed, nil
		}
		return CaptureAnomaly, nil
	}

	updatePayment := `
		UPDATE payment_records
		SET status = 'CAPTURED', captured_amount = $1, processor_ref = $2, updated_at = NOW()
		WHERE booking_id = $3`
	if _, err := tx.ExecContext(ctx, updatePayment, amount, processorRef, bookingID); err != nil {
		return CaptureNotFound, err
	}

	if err := tx.Commit(); err != nil {
		return CaptureNotFound, err
	}
	return CaptureApplied, nil
}

// ApplyPaymentFailure cancels a still-PENDING booking and marks its
// payment record FAILED. A booking in any other state is left alone.
func (r *BookingRepository) ApplyPaymentFailure(ctx context.Context, bookingID uuid.UUID) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if err := lockBooking(ctx, tx, bookingID); err != nil {
		return false, err
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE bookings
		SET status = 'CANCELLED', version = version + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'PENDING'`, bookingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE payment_records SET status = 'FAILED', updated_at = NOW()
		WHERE booking_id = $1 AND status = 'PENDING'`, bookingID); err != nil {
		return false, err
	}

	return true, tx.Commit()
}

// ExpirePending cancels every PENDING booking whose hold window has
// lapsed and returns them. The status guard in the UPDATE makes the sweep
// race-free against a late capture: whichever statement commits first
// wins, the loser matches zero rows.
func (r *BookingRepository) ExpirePending(ctx context.Context, now time.Time) ([]models.Booking, error) {
	query := `
		UPDATE bookings
		SET status = 'CANCELLED', version = version + 1, updated_at = NOW()
		WHERE status = 'PENDING' AND expires_at < $1
		RETURNING ` + bookingColumns

	rows, err := r.db.QueryContext(ctx, query, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []models.Booking
	for rows.Next() {
		var b models.Booking
		if err := scanBooking(rows, &b); err != nil {
			return nil, err
		}
		expired = append(expired, b)
	}
	return expired, rows.Err()
}

// CompleteElapsed moves CONFIRMED bookings whose slot has ended to
// COMPLETED. Run by the background worker.
func (r *BookingRepository) CompleteElapsed(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE bookings b
		SET status = 'COMPLETED', version = version + 1, updated_at = NOW()
		FROM slots s
		WHERE b.slot_id = s.id AND b.status = 'CONFIRMED' AND s.ends_at < $1`
	res, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// lockBooking takes the per-booking advisory lock for the current
// transaction. Single writer per aggregate; released at commit/rollback.
func lockBooking(ctx context.Context, tx *sql.Tx, bookingID uuid.UUID) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, bookingID.String())
	return err
}
