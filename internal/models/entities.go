package models

import (
	"time"

	"github.com/google/uuid"
)

// Tenant represents an onboarded service provider. Identity is immutable;
// the commission rate is mutable by platform operators only. Tenants are
// deactivated (soft) but never deleted while bookings reference them.
type Tenant struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Slug          string    `json:"slug" db:"slug"`
	Name          string    `json:"name" db:"name"`
	Active        bool      `json:"active" db:"active"`
	CommissionBps int64     `json:"commission_bps" db:"commission_bps"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// Slot is a reservable unit of a tenant's offering at a specific time.
// Capacity is 1 unless the tenant configures higher concurrency.
type Slot struct {
	ID        uuid.UUID `json:"id" db:"id"`
	TenantID  uuid.UUID `json:"tenant_id" db:"tenant_id"`
	PackageID string    `json:"package_id" db:"package_id"`
	StartsAt  time.Time `json:"starts_at" db:"starts_at"`
	EndsAt    time.Time `json:"ends_at" db:"ends_at"`
	Capacity  int       `json:"capacity" db:"capacity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Booking is the central aggregate. TenantID is immutable after creation.
// Version backs optimistic concurrency on state transitions.
type Booking struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	TenantID      uuid.UUID     `json:"tenant_id" db:"tenant_id"`
	SlotID        uuid.UUID     `json:"slot_id" db:"slot_id"`
	CustomerName  string        `json:"customer_name" db:"customer_name"`
	CustomerEmail string        `json:"customer_email" db:"customer_email"`
	TotalPrice    int64         `json:"total_price" db:"total_price"`
	Status        BookingStatus `json:"status" db:"status"`
	Commission    *int64        `json:"commission,omitempty" db:"commission"`
	Payout        *int64        `json:"payout,omitempty" db:"payout"`
	ExpiresAt     time.Time     `json:"expires_at" db:"expires_at"`
	Version       int64         `json:"version" db:"version"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// PaymentRecord tracks the external payment lifecycle, one per booking.
// CapturedAmount never exceeds the booking's TotalPrice.
type PaymentRecord struct {
	BookingID      uuid.UUID     `json:"booking_id" db:"booking_id"`
	ProcessorRef   string        `json:"processor_ref" db:"processor_ref"`
	CapturedAmount int64         `json:"captured_amount" db:"captured_amount"`
	Status         PaymentStatus `json:"status" db:"status"`
	CreatedAt      time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at" db:"updated_at"`
}

// RefundRecord tracks one refund workflow for a booking. The sum of
// COMPLETED refund amounts never exceeds the captured amount.
type RefundRecord struct {
	ID           uuid.UUID    `json:"id" db:"id"`
	BookingID    uuid.UUID    `json:"booking_id" db:"booking_id"`
	TenantID     uuid.UUID    `json:"tenant_id" db:"tenant_id"`
	Amount       int64        `json:"amount" db:"amount"`
	Reason       string       `json:"reason" db:"reason"`
	Status       RefundStatus `json:"status" db:"status"`
	SubmissionID *string      `json:"submission_id,omitempty" db:"submission_id"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

// ProcessorEvent is an inbound processor notification. The event id is the
// global idempotency key; a row here is the durable dedupe record and, for
// REJECTED/DEAD rows, the dead-letter store.
type ProcessorEvent struct {
	EventID       string      `json:"event_id" db:"event_id"`
	Type          string      `json:"type" db:"type"`
	Payload       []byte      `json:"payload" db:"payload"`
	Status        EventStatus `json:"status" db:"status"`
	Attempts      int         `json:"attempts" db:"attempts"`
	NextAttemptAt *time.Time  `json:"next_attempt_at,omitempty" db:"next_attempt_at"`
	Anomaly       bool        `json:"anomaly" db:"anomaly"`
	LastError     *string     `json:"last_error,omitempty" db:"last_error"`
	ReceivedAt    time.Time   `json:"received_at" db:"received_at"`
	ProcessedAt   *time.Time  `json:"processed_at,omitempty" db:"processed_at"`
}
