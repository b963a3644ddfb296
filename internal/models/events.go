package models

import (
	"time"

	"github.com/google/uuid"
)

// Domain event subjects published to NATS for external notifiers.
const (
	SubjectBookingConfirmed      = "booking.confirmed"
	SubjectBookingCancelled      = "booking.cancelled"
	SubjectBookingExpired        = "booking.expired"
	SubjectRefundCompleted       = "refund.completed"
	SubjectReconciliationAnomaly = "reconciliation.anomaly"
)

// BookingConfirmedEvent is emitted when a capture event confirms a booking.
type BookingConfirmedEvent struct {
	BookingID  uuid.UUID `json:"booking_id"`
	TenantID   uuid.UUID `json:"tenant_id"`
	TotalPrice int64     `json:"total_price"`
	Commission int64     `json:"commission"`
	Payout     int64     `json:"payout"`
	Timestamp  time.Time `json:"timestamp"`
}

// BookingCancelledEvent is emitted on customer cancel or payment failure.
type BookingCancelledEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingExpiredEvent is emitted when the hold window lapses unpaid.
type BookingExpiredEvent struct {
	BookingID uuid.UUID `json:"booking_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Timestamp time.Time `json:"timestamp"`
}

// RefundCompletedEvent is emitted when the processor confirms a refund.
type RefundCompletedEvent struct {
	RefundID  uuid.UUID `json:"refund_id"`
	BookingID uuid.UUID `json:"booking_id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}

// ReconciliationAnomalyEvent flags an event that arrived for a terminal or
// mismatched aggregate. Recorded, never silently dropped.
type ReconciliationAnomalyEvent struct {
	EventID   string    `json:"event_id"`
	Type      string    `json:"type"`
	BookingID uuid.UUID `json:"booking_id"`
	Detail    string    `json:"detail"`
	Timestamp time.Time `json:"timestamp"`
}
