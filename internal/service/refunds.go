package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"reserva/internal/apperr"
	"reserva/internal/auth"
	"reserva/internal/logger"
	"reserva/internal/models"
)

type RefundService struct {
	refunds   RefundStore
	bookings  BookingStore
	payments  PaymentStore
	processor Processor
	publisher Publisher
}

func NewRefundService(refunds RefundStore, bookings BookingStore, payments PaymentStore, processor Processor, publisher Publisher) *RefundService {
	return &RefundService{
		refunds:   refunds,
		bookings:  bookings,
		payments:  payments,
		processor: processor,
		publisher: publisher,
	}
}

// Request validates and opens a refund workflow. The store serializes
// concurrent requests per booking, so two partial refunds can never both
// pass the sum check against a stale total. On success the refund is
// submitted to the processor and moves to SUBMITTED; the terminal outcome
// arrives later as a processor event.
func (s *RefundService) Request(ctx context.Context, principal auth.Principal, req *models.RefundRequest) (*models.RefundRecord, error) {
	if principal.Role == auth.RoleCustomer {
		return nil, apperr.ErrNotFound
	}

	booking, err := s.bookings.GetByID(ctx, req.BookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperr.ErrNotFound
	}
	if err := auth.CheckScope(principal, booking.TenantID); err != nil {
		return nil, apperr.ErrNotFound
	}

	refund := &models.RefundRecord{
		ID:        uuid.New(),
		BookingID: booking.ID,
		TenantID:  booking.TenantID,
		Amount:    req.Amount,
		Reason:    req.Reason,
	}
	if err := s.refunds.Request(ctx, refund); err != nil {
		return nil, err
	}

	payment, err := s.payments.GetByBookingID(ctx, booking.ID)
	if err != nil || payment == nil {
		logger.WithContext(ctx).Error("Failed to load payment record for refund submission",
			"error", err,
			"booking_id", booking.ID,
			"refund_id", refund.ID)
		// Stays REQUESTED; an operator resubmits after investigating.
		return refund, nil
	}

	submissionID, err := s.processor.SubmitRefund(ctx, payment.ProcessorRef, refund.Amount)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to submit refund to processor",
			"error", err,
			"booking_id", booking.ID,
			"refund_id", refund.ID)
		return refund, nil
	}

	if err := s.refunds.MarkSubmitted(ctx, refund.ID, submissionID); err != nil {
		logger.WithContext(ctx).Error("Failed to mark refund submitted",
			"error", err,
			"refund_id", refund.ID,
			"submission_id", submissionID)
		return refund, nil
	}

	refund.Status = models.RefundSubmitted
	refund.SubmissionID = &submissionID
	return refund, nil
}

// ListForBooking returns a booking's refunds under the same visibility
// rules as the booking itself.
func (s *RefundService) ListForBooking(ctx context.Context, principal auth.Principal, bookingID uuid.UUID) ([]models.RefundRecord, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperr.ErrNotFound
	}
	if err := auth.CheckScope(principal, booking.TenantID); err != nil {
		return nil, apperr.ErrNotFound
	}

	return s.refunds.ListByBooking(ctx, bookingID)
}
