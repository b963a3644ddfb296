package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reserva/internal/commission"
	"reserva/internal/logger"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/repository"
)

// Outcome is the ingestion result reported back to the processor.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeRejected  Outcome = "rejected"
	OutcomeQueued    Outcome = "queued"
)

// Verifier checks the authenticity of an inbound processor notification.
type Verifier interface {
	Verify(payload *models.WebhookPayload) bool
}

// errUnresolved marks an event whose target aggregate does not exist yet
// (e.g. the capture beat our own booking commit). Retried within the
// bounded window, then dead-lettered.
var errUnresolved = errors.New("event target not resolved")

type IngestionService struct {
	events    EventStore
	bookings  BookingStore
	payments  PaymentStore
	refunds   RefundStore
	tenants   TenantStore
	verifier  Verifier
	publisher Publisher
	cache     TenantCache
	policy    Policy
}

func NewIngestionService(events EventStore, bookings BookingStore, payments PaymentStore, refunds RefundStore, tenants TenantStore, verifier Verifier, publisher Publisher, cache TenantCache, policy Policy) *IngestionService {
	return &IngestionService{
		events:    events,
		bookings:  bookings,
		payments:  payments,
		refunds:   refunds,
		tenants:   tenants,
		verifier:  verifier,
		publisher: publisher,
		cache:     cache,
		policy:    policy,
	}
}

// Ingest consumes one processor notification. Duplicate delivery is a
// success outcome: the event id is claimed exactly once, and replaying an
// already-claimed id changes nothing.
func (s *IngestionService) Ingest(ctx context.Context, payload *models.WebhookPayload) (Outcome, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutcomeRejected, err
	}
	event := &models.ProcessorEvent{
		EventID: payload.EventID,
		Type:    payload.Type,
		Payload: raw,
	}

	if !s.verifier.Verify(payload) {
		if err := s.events.RecordRejected(ctx, event, "signature verification failed"); err != nil {
			return OutcomeRejected, err
		}
		metrics.EventsIngested.WithLabelValues(string(OutcomeRejected)).Inc()
		metrics.DeadLetteredEvents.Inc()
		logger.WithContext(ctx).Warn("Rejected processor event with invalid signature",
			"event_id", payload.EventID,
			"event_type", payload.Type)
		return OutcomeRejected, nil
	}

	claimed, err := s.events.Claim(ctx, event, time.Now().Add(s.backoff(1)))
	if err != nil {
		return OutcomeQueued, err
	}
	if !claimed {
		metrics.EventsIngested.WithLabelValues(string(OutcomeDuplicate)).Inc()
		return OutcomeDuplicate, nil
	}

	anomaly, err := s.apply(ctx, payload)
	if err != nil {
		if markErr := s.events.MarkRetry(ctx, payload.EventID, 1, time.Now().Add(s.backoff(1)), err.Error()); markErr != nil {
			return OutcomeQueued, markErr
		}
		metrics.EventsIngested.WithLabelValues(string(OutcomeQueued)).Inc()
		return OutcomeQueued, nil
	}

	if err := s.events.MarkProcessed(ctx, payload.EventID, anomaly); err != nil {
		return OutcomeAccepted, err
	}
	metrics.EventsIngested.WithLabelValues(string(OutcomeAccepted)).Inc()
	return OutcomeAccepted, nil
}

// ProcessStored re-runs a claimed-but-unfinished event from the retry
// queue. Dead-letters it once the attempt budget is spent.
func (s *IngestionService) ProcessStored(ctx context.Context, event *models.ProcessorEvent) error {
	payload := &models.WebhookPayload{}
	if err := json.Unmarshal(event.Payload, payload); err != nil {
		metrics.DeadLetteredEvents.Inc()
		return s.events.MarkDead(ctx, event.EventID, "unparseable payload: "+err.Error())
	}

	anomaly, err := s.apply(ctx, payload)
	if err == nil {
		return s.events.MarkProcessed(ctx, event.EventID, anomaly)
	}

	attempts := event.Attempts + 1
	if attempts >= s.policy.MaxEventAttempts {
		metrics.DeadLetteredEvents.Inc()
		logger.WithContext(ctx).Error("Dead-lettering processor event",
			"event_id", event.EventID,
			"event_type", event.Type,
			"attempts", attempts,
			"error", err)
		return s.events.MarkDead(ctx, event.EventID, err.Error())
	}

	return s.events.MarkRetry(ctx, event.EventID, attempts, time.Now().Add(s.backoff(attempts+1)), err.Error())
}

// apply routes one verified, claimed event to its aggregate. Returns
// anomaly=true when the event was consumed but flagged for
// reconciliation instead of applied.
func (s *IngestionService) apply(ctx context.Context, payload *models.WebhookPayload) (bool, error) {
	switch payload.Type {
	case models.EventTypePaymentCaptured:
		return s.applyCapture(ctx, payload)
	case models.EventTypePaymentFailed:
		return s.applyPaymentFailure(ctx, payload)
	case models.EventTypeRefundCompleted:
		return s.applyRefundCompletion(ctx, payload)
	case models.EventTypeRefundFailed:
		return s.applyRefundFailure(ctx, payload)
	default:
		logger.WithContext(ctx).Warn("Processor event of unknown type recorded",
			"event_id", payload.EventID,
			"event_type", payload.Type)
		return true, nil
	}
}

func (s *IngestionService) applyCapture(ctx context.Context, payload *models.WebhookPayload) (bool, error) {
	bookingID, err := s.resolveBooking(ctx, payload)
	if err != nil {
		return false, err
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if booking == nil {
		return false, errUnresolved
	}

	amount := payload.Amount
	if amount <= 0 {
		amount = booking.TotalPrice
	}
	if amount > booking.TotalPrice {
		// Captured more than the booking's price: never persisted, the
		// invariant capturedAmount <= totalPrice is kept at the boundary.
		s.reportAnomaly(ctx, payload, booking, "captured amount exceeds booking total")
		return true, nil
	}

	tenant, err := s.lookupTenant(ctx, booking.TenantID)
	if err != nil {
		return false, err
	}
	if tenant == nil {
		return false, fmt.Errorf("tenant %s missing for booking %s", booking.TenantID, booking.ID)
	}

	split := commission.Compute(booking.TotalPrice, tenant.CommissionBps, s.policy.MinimumCommission)

	result, err := s.bookings.ApplyCapture(ctx, bookingID, payload.ProcessorRef, amount, split.Commission, split.Payout)
	if err != nil {
		return false, err
	}

	switch result {
	case repository.CaptureApplied:
		event := models.BookingConfirmedEvent{
			BookingID:  booking.ID,
			TenantID:   booking.TenantID,
			TotalPrice: booking.TotalPrice,
			Commission: split.Commission,
			Payout:     split.Payout,
			Timestamp:  time.Now(),
		}
		if err := s.publisher.Publish(models.SubjectBookingConfirmed, event); err != nil {
			logger.WithContext(ctx).Error("Failed to publish booking confirmed event",
				"error", err,
				"booking_id", booking.ID,
				"event_type", models.SubjectBookingConfirmed)
		}
		return false, nil

	case repository.CaptureAlreadyConfirmed:
		// A second capture with a fresh event id; nothing to apply.
		return false, nil

	case repository.CaptureAnomaly:
		// Late capture for a booking already CANCELLED (or otherwise
		// terminal). Recorded, never applied: no state regression. Flagged
		// for refund-of-unintended-charge handling.
		s.reportAnomaly(ctx, payload, booking, "capture arrived for terminal booking")
		return true, nil

	default:
		return false, errUnresolved
	}
}

func (s *IngestionService) applyPaymentFailure(ctx context.Context, payload *models.WebhookPayload) (bool, error) {
	bookingID, err := s.resolveBooking(ctx, payload)
	if err != nil {
		return false, err
	}

	cancelled, err := s.bookings.ApplyPaymentFailure(ctx, bookingID)
	if err != nil {
		return false, err
	}
	if !cancelled {
		// Not PENDING anymore; a failure event for a confirmed or already
		// cancelled booking is ignored by design.
		return false, nil
	}

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil || booking == nil {
		return false, nil
	}
	event := models.BookingCancelledEvent{
		BookingID: booking.ID,
		TenantID:  booking.TenantID,
		Reason:    "payment failed",
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(models.SubjectBookingCancelled, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish booking cancelled event",
			"error", err,
			"booking_id", booking.ID,
			"event_type", models.SubjectBookingCancelled)
	}
	return false, nil
}

func (s *IngestionService) applyRefundCompletion(ctx context.Context, payload *models.WebhookPayload) (bool, error) {
	if payload.SubmissionID == "" {
		return true, nil
	}

	out, err := s.refunds.ApplyCompletion(ctx, payload.SubmissionID)
	if err != nil {
		return false, err
	}
	if !out.Known {
		return false, errUnresolved
	}
	if !out.Applied {
		return false, nil
	}

	event := models.RefundCompletedEvent{
		RefundID:  out.Refund.ID,
		BookingID: out.Refund.BookingID,
		TenantID:  out.Refund.TenantID,
		Amount:    out.Refund.Amount,
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(models.SubjectRefundCompleted, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish refund completed event",
			"error", err,
			"refund_id", out.Refund.ID,
			"event_type", models.SubjectRefundCompleted)
	}

	if out.BookingRefunded {
		logger.WithContext(ctx).Info("Booking fully refunded",
			"booking_id", out.Refund.BookingID)
	}
	return false, nil
}

func (s *IngestionService) applyRefundFailure(ctx context.Context, payload *models.WebhookPayload) (bool, error) {
	if payload.SubmissionID == "" {
		return true, nil
	}

	applied, err := s.refunds.ApplyFailure(ctx, payload.SubmissionID)
	if err != nil {
		return false, err
	}
	if applied {
		// Failed refunds need human judgment; surfaced, never auto-retried.
		logger.WithContext(ctx).Warn("Refund marked failed by processor",
			"submission_id", payload.SubmissionID,
			"event_id", payload.EventID)
	}
	return false, nil
}

// resolveBooking finds the target booking by explicit id or by the
// processor reference stored at initiation time.
func (s *IngestionService) resolveBooking(ctx context.Context, payload *models.WebhookPayload) (uuid.UUID, error) {
	if payload.BookingID != "" {
		id, err := uuid.Parse(payload.BookingID)
		if err != nil {
			return uuid.Nil, errUnresolved
		}
		return id, nil
	}

	if payload.ProcessorRef != "" {
		id, err := s.payments.ResolveBookingByRef(ctx, payload.ProcessorRef)
		if err != nil {
			return uuid.Nil, err
		}
		if id != uuid.Nil {
			return id, nil
		}
	}
	return uuid.Nil, errUnresolved
}

func (s *IngestionService) reportAnomaly(ctx context.Context, payload *models.WebhookPayload, booking *models.Booking, detail string) {
	metrics.ReconciliationAnomalies.Inc()
	logger.WithContext(ctx).Error("Reconciliation anomaly",
		"event_id", payload.EventID,
		"event_type", payload.Type,
		"booking_id", booking.ID,
		"booking_status", booking.Status,
		"detail", detail)

	event := models.ReconciliationAnomalyEvent{
		EventID:   payload.EventID,
		Type:      payload.Type,
		BookingID: booking.ID,
		Detail:    detail,
		Timestamp: time.Now(),
	}
	if err := s.publisher.Publish(models.SubjectReconciliationAnomaly, event); err != nil {
		logger.WithContext(ctx).Error("Failed to publish reconciliation anomaly",
			"error", err,
			"event_id", payload.EventID)
	}
}

func (s *IngestionService) lookupTenant(ctx context.Context, id uuid.UUID) (*models.Tenant, error) {
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

// backoff returns the exponential delay before the given attempt.
func (s *IngestionService) backoff(attempt int) time.Duration {
	delay := s.policy.RetryBaseDelay
	if delay == 0 {
		delay = 30 * time.Second
	}
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay > time.Hour {
			return time.Hour
		}
	}
	return delay
}
