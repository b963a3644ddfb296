package models

import "github.com/google/uuid"

// CreateTenantRequest - platform operator onboards a tenant
type CreateTenantRequest struct {
	Slug          string `json:"slug" binding:"required"`
	Name          string `json:"name" binding:"required"`
	CommissionBps int64  `json:"commission_bps" binding:"min=0,max=10000"`
}

// UpdateCommissionRequest - platform operator changes a tenant's rate
type UpdateCommissionRequest struct {
	CommissionBps int64 `json:"commission_bps" binding:"min=0,max=10000"`
}

// CreateSlotRequest - tenant operator publishes a reservable slot
type CreateSlotRequest struct {
	TenantID  uuid.UUID `json:"tenant_id" binding:"required"`
	PackageID string    `json:"package_id" binding:"required"`
	StartsAt  string    `json:"starts_at" binding:"required"`
	EndsAt    string    `json:"ends_at" binding:"required"`
	Capacity  int       `json:"capacity"`
}

// ReserveRequest - customer claims a slot
type ReserveRequest struct {
	TenantID      uuid.UUID `json:"tenant_id" binding:"required"`
	SlotID        uuid.UUID `json:"slot_id" binding:"required"`
	CustomerName  string    `json:"customer_name" binding:"required"`
	CustomerEmail string    `json:"customer_email" binding:"required,email"`
	TotalPrice    int64     `json:"total_price" binding:"required,gt=0"`
}

// RefundRequest - authorized actor requests a (partial) refund
type RefundRequest struct {
	BookingID uuid.UUID `json:"booking_id" binding:"required"`
	Amount    int64     `json:"amount" binding:"required,gt=0"`
	Reason    string    `json:"reason" binding:"required"`
}

// WebhookPayload - signed notification from the payment processor.
// Token is a SHA-256 over the sorted parameter values plus the shared
// secret; payload timestamps are never used for ordering.
type WebhookPayload struct {
	EventID      string `json:"eventId" binding:"required"`
	Type         string `json:"type" binding:"required"`
	BookingID    string `json:"bookingId"`
	ProcessorRef string `json:"processorRef"`
	SubmissionID string `json:"submissionId"`
	Amount       int64  `json:"amount"`
	Token        string `json:"token" binding:"required"`
	Timestamp    string `json:"timestamp"`
}

// WebhookAck - idempotent acknowledgement returned to the processor
type WebhookAck struct {
	Outcome string `json:"outcome"`
	EventID string `json:"event_id"`
}

// ErrorResponse - uniform error body
type ErrorResponse struct {
	Error string `json:"error"`
}
