package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"reserva/internal/database"
	"reserva/internal/models"
)

type PaymentRepository struct {
	db *database.DB
}

func NewPaymentRepository(db *database.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.PaymentRecord, error) {
	record := &models.PaymentRecord{}
	query := `
		SELECT booking_id, processor_ref, captured_amount, status, created_at, updated_at
		FROM payment_records
		WHERE booking_id = $1`

	err := r.db.QueryRowContext(ctx, query, bookingID).Scan(
		&record.BookingID,
		&record.ProcessorRef,
		&record.CapturedAmount,
		&record.Status,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return record, err
}

// SetProcessorRef stores the reference returned by payment initiation so
// later processor events can be resolved back to the booking.
func (r *PaymentRepository) SetProcessorRef(ctx context.Context, bookingID uuid.UUID, ref string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE payment_records SET processor_ref = $1, updated_at = NOW()
		WHERE booking_id = $2`, ref, bookingID)
	return err
}

// ResolveBookingByRef finds the booking a processor reference belongs to.
func (r *PaymentRepository) ResolveBookingByRef(ctx context.Context, ref string) (uuid.UUID, error) {
	var bookingID uuid.UUID
	err := r.db.QueryRowContext(ctx, `
		SELECT booking_id FROM payment_records WHERE processor_ref = $1`, ref).Scan(&bookingID)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, nil
	}
	return bookingID, err
}
