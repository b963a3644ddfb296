package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reserva/internal/apperr"
	"reserva/internal/auth"
	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/models"
)

type BookingService struct {
	bookings  BookingStore
	slots     SlotStore
	tenants   TenantStore
	payments  PaymentStore
	processor Processor
	publisher Publisher
	cache     TenantCache
	policy    Policy
}

func NewBookingService(bookings BookingStore, slots SlotStore, tenants TenantStore, payments PaymentStore, processor Processor, publisher Publisher, cache TenantCache, policy Policy) *BookingService {
	return &BookingService{
		bookings:  bookings,
		slots:     slots,
		tenants:   tenants,
		payments:  payments,
		processor: processor,
		publisher: publisher,
		cache:     cache,
		policy:    policy,
	}
}

// Reserve atomically claims slot capacity and creates a PENDING booking
// with a hold deadline. On success a payment is initiated with the
// processor; its outcome arrives later as a processor event, never as
// part of this call.
func (s *BookingService) Reserve(ctx context.Context, principal auth.Principal, req *models.ReserveRequest) (*models.Booking, error) {
	// Customers may book any tenant; a tenant operator only its own.
	if principal.Role == auth.RoleTenant {
		if err := auth.CheckScope(principal, req.TenantID); err != nil {
			return nil, apperr.ErrNotFound
		}
	}

	tenant, err := s.lookupTenant(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant: %w", err)
	}
	if tenant == nil || !tenant.Active {
		return nil, apperr.ErrNotFound
	}

	booking := &models.Booking{
		ID:            uuid.New(),
		TenantID:      req.TenantID,
		SlotID:        req.SlotID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		TotalPrice:    req.TotalPrice,
	}

	expired, err := s.bookings.Reserve(ctx, booking, s.policy.HoldWindow)
	if err != nil {
		if err == apperr.ErrSlotUnavailable {
			metrics.ReservationConflicts.Inc()
		}
		return nil, err
	}

	// Holds cancelled lazily inside Reserve are announced the same way
	// the background sweep announces them.
	for _, lapsed := range expired {
		metrics.ExpiredBookings.Inc()
		event := models.BookingExpiredEvent{
			BookingID: lapsed.ID,
			TenantID:  lapsed.TenantID,
			Timestamp: time.Now(),
		}
		if err := s.publisher.Publish(models.SubjectBookingExpired, event); err != nil {
			logger.WithContext(ctx).Error("Failed to publish booking expired event",
				"error", err,
				"booking_id", lapsed.ID)
		}
	}

	// Fire-and-forget: if initiation fails the booking simply never sees
	// a capture event and the hold window cancels it.
	ref, err := s.processor.InitiatePayment(ctx, booking.ID, booking.TotalPrice)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to initiate payment",
			"error", err,
			"booking_id", booking.ID)
		return booking, nil
	}
	if err := s.payments.SetProcessorRef(ctx, booking.ID, ref); err != nil {
		logger.WithContext(ctx).Error("Failed to store processor reference",
			"error", err,
			"booking_id", booking.ID,
			"processor_ref", ref)
	}

	return booking, nil
}

// Get returns a booking, hiding other tenants' bookings behind not-found.
func (s *BookingService) Get(ctx context.Context, principal auth.Principal, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperr.ErrNotFound
	}

	if principal.Role != auth.RoleCustomer {
		if err := auth.CheckScope(principal, booking.TenantID); err != nil {
			// Same response as a nonexistent id: existence is not confirmed
			// across tenant boundaries.
			return nil, apperr.ErrNotFound
		}
	}

	return booking, nil
}

// Cancel moves a booking to CANCELLED. Allowed from PENDING, or from
// CONFIRMED before the slot starts. Cancelling a CONFIRMED booking does
// not move money: any captured amount must be returned through an
// explicit refund request.
func (s *BookingService) Cancel(ctx context.Context, principal auth.Principal, id uuid.UUID) (*models.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	if booking == nil {
		return nil, apperr.ErrNotFound
	}

	if principal.Role != auth.RoleCustomer {
		if err := auth.CheckScope(principal, booking.TenantID); err != nil {
			return nil, apperr.ErrNotFound
		}
	}

	if booking.Status.Terminal() {
		return nil, apperr.ErrConflict
	}

	if booking.Status == models.BookingConfirmed {
		slot, err := s.slots.GetByID(ctx, booking.SlotID)
		if err != nil {
			return nil, fmt.Errorf("failed to get slot: %w", err)
		}
		if slot == nil || !time.Now().Before(slot.StartsAt) {
			return nil, apperr.ErrConflict
		}
	}

	applied, err := s.bookings.Transition(ctx, booking.ID, booking.Status, models.BookingCancelled, booking.Version)
	if err != nil {
		return nil, fmt.Errorf("failed to cancel booking: %w", err)
	}
	if !applied {
		// Another writer (capture event, expiry sweep) got there first.
		return nil, apperr.ErrConflict
	}

	booking.Status = models.BookingCancelled
	booking.Version++

	event := models.BookingCancelledEvent{
		BookingID: booking.ID,
		TenantID:  booking.TenantID,
		Reason:    "cancel requested",
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(models.SubjectBookingCancelled, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish booking cancelled event",
			"error", err,
			"booking_id", booking.ID,
			"event_type", models.SubjectBookingCancelled)
	}

	return booking, nil
}

// lookupTenant reads through the cache when one is configured.
func (s *BookingService) lookupTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
	if s.cache != nil {
		if tenant, err := s.cache.Get(ctx, id); err == nil && tenant != nil {
			return tenant, nil
		}
	}

	tenant, err := s.tenants.GetByID(ctx, id)
	if err != nil || tenant == nil {
		return tenant, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, tenant); err != nil {
			logger.WithContext(ctx).Warn("Failed to cache tenant", "error", err, "tenant_id", id)
		}
	}
	return tenant, nil
}
