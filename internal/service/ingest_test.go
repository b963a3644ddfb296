package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reserva/internal/external"
	"reserva/internal/models"
	"reserva/internal/service"
)

const (
	testMerchant = "merchant"
	testSecret   = "supersecret"
)

func newIngestion(m *memState, pub *recordingPublisher) *service.IngestionService {
	verifier := external.NewWebhookVerifier(testMerchant, testSecret)
	return service.NewIngestionService(eventStore{m}, bookingStore{m}, paymentStore{m}, refundStore{m}, m, verifier, pub, nil, testPolicy())
}

func signedPayload(eventType string, mutate func(*models.WebhookPayload)) *models.WebhookPayload {
	p := &models.WebhookPayload{
		EventID:   uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().Format(time.RFC3339),
	}
	if mutate != nil {
		mutate(p)
	}
	p.Token = external.SignParams(testMerchant, testSecret, external.NotificationParams(p))
	return p
}

func seedPendingBooking(m *memState, tenantID uuid.UUID, price int64) *models.Booking {
	booking := &models.Booking{
		ID:         uuid.New(),
		TenantID:   tenantID,
		SlotID:     uuid.New(),
		TotalPrice: price,
		Status:     models.BookingPending,
		ExpiresAt:  time.Now().Add(30 * time.Minute),
		Version:    1,
	}
	m.bookings[booking.ID] = booking
	m.payments[booking.ID] = &models.PaymentRecord{
		BookingID: booking.ID,
		Status:    models.PaymentPending,
	}
	return booking
}

func TestIngestSignature(t *testing.T) {
	t.Run("tampered payload is rejected and dead-lettered", func(t *testing.T) {
		m := newMemState()
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.Amount = 10000
		})
		p.Amount = 99999 // mutate after signing

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeRejected, outcome)

		stored := m.events[p.EventID]
		require.NotNil(t, stored)
		assert.Equal(t, models.EventRejected, stored.Status)
	})

	t.Run("missing token is rejected", func(t *testing.T) {
		m := newMemState()
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypePaymentCaptured, nil)
		p.Token = ""

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeRejected, outcome)
	})
}

func TestIngestCapture(t *testing.T) {
	t.Run("capture confirms booking with commission split", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		pub := &recordingPublisher{}
		svc := newIngestion(m, pub)

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
			p.ProcessorRef = "proc-1"
			p.Amount = 10000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)

		got := m.bookings[booking.ID]
		assert.Equal(t, models.BookingConfirmed, got.Status)
		require.NotNil(t, got.Commission)
		require.NotNil(t, got.Payout)
		assert.Equal(t, int64(1000), *got.Commission)
		assert.Equal(t, int64(9000), *got.Payout)

		payment := m.payments[booking.ID]
		assert.Equal(t, models.PaymentCaptured, payment.Status)
		assert.Equal(t, int64(10000), payment.CapturedAmount)

		assert.Len(t, pub.bySubject(models.SubjectBookingConfirmed), 1)
		assert.Equal(t, models.EventProcessed, m.events[p.EventID].Status)
	})

	t.Run("redelivered event id changes nothing", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		pub := &recordingPublisher{}
		svc := newIngestion(m, pub)

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
			p.Amount = 10000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, service.OutcomeAccepted, outcome)
		versionAfterFirst := m.bookings[booking.ID].Version

		outcome, err = svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeDuplicate, outcome)
		assert.Equal(t, versionAfterFirst, m.bookings[booking.ID].Version)
		assert.Len(t, pub.bySubject(models.SubjectBookingConfirmed), 1)
	})

	t.Run("second capture with fresh event id is a no-op", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		svc := newIngestion(m, &recordingPublisher{})

		first := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
			p.Amount = 10000
		})
		_, err := svc.Ingest(context.Background(), first)
		require.NoError(t, err)

		second := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
			p.Amount = 10000
		})
		outcome, err := svc.Ingest(context.Background(), second)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.BookingConfirmed, m.bookings[booking.ID].Status)
	})

	t.Run("capture resolves booking via processor reference", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		m.payments[booking.ID].ProcessorRef = "proc-7"
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.ProcessorRef = "proc-7"
			p.Amount = 10000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.BookingConfirmed, m.bookings[booking.ID].Status)
	})

	t.Run("late capture on cancelled booking is an anomaly, not a resurrection", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		booking.Status = models.BookingCancelled
		pub := &recordingPublisher{}
		svc := newIngestion(m, pub)

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
			p.Amount = 10000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)

		assert.Equal(t, models.BookingCancelled, m.bookings[booking.ID].Status)
		assert.True(t, m.events[p.EventID].Anomaly)
		assert.Len(t, pub.bySubject(models.SubjectReconciliationAnomaly), 1)
	})

	t.Run("cancel committing mid-capture applies nothing", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		pub := &recordingPublisher{}
		svc := newIngestion(m, pub)

		// An expiry sweep commits its cancel after the capture has read
		// PENDING but before its guarded write.
		m.captureHook = func(m *memState) {
			b := m.bookings[booking.ID]
			b.Status = models.BookingCancelled
			b.Version++
		}

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
			p.Amount = 10000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)

		assert.Equal(t, models.BookingCancelled, m.bookings[booking.ID].Status)
		assert.Nil(t, m.bookings[booking.ID].Commission)
		assert.Equal(t, models.PaymentPending, m.payments[booking.ID].Status)
		assert.Zero(t, m.payments[booking.ID].CapturedAmount)
		assert.True(t, m.events[p.EventID].Anomaly)
		assert.Empty(t, pub.bySubject(models.SubjectBookingConfirmed))
		assert.Len(t, pub.bySubject(models.SubjectReconciliationAnomaly), 1)
	})

	t.Run("overcapture is flagged, never persisted", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
			p.Amount = 20000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.BookingPending, m.bookings[booking.ID].Status)
		assert.True(t, m.events[p.EventID].Anomaly)
	})

	t.Run("capture for unknown booking is queued and replayed", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		svc := newIngestion(m, &recordingPublisher{})

		bookingID := uuid.New()
		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = bookingID.String()
			p.Amount = 10000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeQueued, outcome)
		assert.Equal(t, models.EventRetry, m.events[p.EventID].Status)

		// The booking commits, then the replay worker picks the event up.
		m.bookings[bookingID] = &models.Booking{
			ID:         bookingID,
			TenantID:   tenant.ID,
			TotalPrice: 10000,
			Status:     models.BookingPending,
			ExpiresAt:  time.Now().Add(30 * time.Minute),
			Version:    1,
		}
		m.payments[bookingID] = &models.PaymentRecord{BookingID: bookingID, Status: models.PaymentPending}

		require.NoError(t, svc.ProcessStored(context.Background(), m.events[p.EventID]))
		assert.Equal(t, models.EventProcessed, m.events[p.EventID].Status)
		assert.Equal(t, models.BookingConfirmed, m.bookings[bookingID].Status)
	})

	t.Run("event dead-letters after the retry budget", func(t *testing.T) {
		m := newMemState()
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypePaymentCaptured, func(p *models.WebhookPayload) {
			p.BookingID = uuid.NewString()
			p.Amount = 10000
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		require.Equal(t, service.OutcomeQueued, outcome)

		stored := m.events[p.EventID]
		stored.Attempts = testPolicy().MaxEventAttempts - 1

		require.NoError(t, svc.ProcessStored(context.Background(), stored))
		assert.Equal(t, models.EventDead, m.events[p.EventID].Status)
	})
}

func TestIngestPaymentFailed(t *testing.T) {
	t.Run("failure cancels a pending booking", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		pub := &recordingPublisher{}
		svc := newIngestion(m, pub)

		p := signedPayload(models.EventTypePaymentFailed, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.BookingCancelled, m.bookings[booking.ID].Status)
		assert.Equal(t, models.PaymentFailed, m.payments[booking.ID].Status)
		assert.Len(t, pub.bySubject(models.SubjectBookingCancelled), 1)
	})

	t.Run("failure after confirmation is ignored", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		booking.Status = models.BookingConfirmed
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypePaymentFailed, func(p *models.WebhookPayload) {
			p.BookingID = booking.ID.String()
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.BookingConfirmed, m.bookings[booking.ID].Status)
	})
}

func TestIngestRefundEvents(t *testing.T) {
	seedSubmittedRefund := func(m *memState, booking *models.Booking, amount int64, submissionID string) *models.RefundRecord {
		refund := &models.RefundRecord{
			ID:           uuid.New(),
			BookingID:    booking.ID,
			TenantID:     booking.TenantID,
			Amount:       amount,
			Reason:       "customer request",
			Status:       models.RefundSubmitted,
			SubmissionID: &submissionID,
		}
		m.refunds[refund.ID] = refund
		return refund
	}

	confirm := func(m *memState, booking *models.Booking, captured int64) {
		booking.Status = models.BookingConfirmed
		m.payments[booking.ID].Status = models.PaymentCaptured
		m.payments[booking.ID].CapturedAmount = captured
	}

	t.Run("partial completion leaves booking confirmed", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		confirm(m, booking, 10000)
		refund := seedSubmittedRefund(m, booking, 4000, "sub-1")
		pub := &recordingPublisher{}
		svc := newIngestion(m, pub)

		p := signedPayload(models.EventTypeRefundCompleted, func(p *models.WebhookPayload) {
			p.SubmissionID = "sub-1"
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.RefundCompleted, m.refunds[refund.ID].Status)
		assert.Equal(t, models.BookingConfirmed, m.bookings[booking.ID].Status)
		assert.Len(t, pub.bySubject(models.SubjectRefundCompleted), 1)
	})

	t.Run("full completion moves booking to refunded", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		confirm(m, booking, 10000)
		seedSubmittedRefund(m, booking, 10000, "sub-2")
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypeRefundCompleted, func(p *models.WebhookPayload) {
			p.SubmissionID = "sub-2"
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.BookingRefunded, m.bookings[booking.ID].Status)
	})

	t.Run("unknown submission id is queued for replay", func(t *testing.T) {
		m := newMemState()
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypeRefundCompleted, func(p *models.WebhookPayload) {
			p.SubmissionID = "sub-unknown"
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeQueued, outcome)
	})

	t.Run("refund failure surfaces without touching the booking", func(t *testing.T) {
		m := newMemState()
		tenant := seedTenant(m, 1000)
		booking := seedPendingBooking(m, tenant.ID, 10000)
		confirm(m, booking, 10000)
		refund := seedSubmittedRefund(m, booking, 4000, "sub-3")
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload(models.EventTypeRefundFailed, func(p *models.WebhookPayload) {
			p.SubmissionID = "sub-3"
		})

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.Equal(t, models.RefundFailed, m.refunds[refund.ID].Status)
		assert.Equal(t, models.BookingConfirmed, m.bookings[booking.ID].Status)
	})

	t.Run("unknown event type is recorded as an anomaly", func(t *testing.T) {
		m := newMemState()
		svc := newIngestion(m, &recordingPublisher{})

		p := signedPayload("payment.mystery", nil)

		outcome, err := svc.Ingest(context.Background(), p)
		require.NoError(t, err)
		assert.Equal(t, service.OutcomeAccepted, outcome)
		assert.True(t, m.events[p.EventID].Anomaly)
	})
}
