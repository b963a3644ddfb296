package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"reserva/internal/external"
	"reserva/internal/messaging"
	"reserva/internal/models"
	"reserva/internal/repository"
)

// Store interfaces consumed by the services. The repository types satisfy
// them in production; tests substitute in-memory fakes.

type TenantStore interface {
	Create(ctx context.Context, tenant *models.Tenant) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	UpdateCommission(ctx context.Context, id uuid.UUID, bps int64) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type SlotStore interface {
	Create(ctx context.Context, slot *models.Slot) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Slot, error)
}

type BookingStore interface {
	Reserve(ctx context.Context, booking *models.Booking, holdWindow time.Duration) ([]models.Booking, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	Transition(ctx context.Context, id uuid.UUID, from, to models.BookingStatus, version int64) (bool, error)
	ApplyCapture(ctx context.Context, bookingID uuid.UUID, processorRef string, amount, commission, payout int64) (repository.CaptureResult, error)
	ApplyPaymentFailure(ctx context.Context, bookingID uuid.UUID) (bool, error)
}

type PaymentStore interface {
	GetByBookingID(ctx context.Context, bookingID uuid.UUID) (*models.PaymentRecord, error)
	SetProcessorRef(ctx context.Context, bookingID uuid.UUID, ref string) error
	ResolveBookingByRef(ctx context.Context, ref string) (uuid.UUID, error)
}

type RefundStore interface {
	Request(ctx context.Context, refund *models.RefundRecord) error
	MarkSubmitted(ctx context.Context, id uuid.UUID, submissionID string) error
	ApplyCompletion(ctx context.Context, submissionID string) (repository.RefundOutcome, error)
	ApplyFailure(ctx context.Context, submissionID string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.RefundRecord, error)
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]models.RefundRecord, error)
}

type EventStore interface {
	Claim(ctx context.Context, event *models.ProcessorEvent, firstDeadline time.Time) (bool, error)
	RecordRejected(ctx context.Context, event *models.ProcessorEvent, reason string) error
	MarkProcessed(ctx context.Context, eventID string, anomaly bool) error
	MarkRetry(ctx context.Context, eventID string, attempts int, nextAttempt time.Time, lastError string) error
	MarkDead(ctx context.Context, eventID string, lastError string) error
}

// Processor is the outbound payment-processor collaborator.
type Processor interface {
	InitiatePayment(ctx context.Context, bookingID uuid.UUID, amount int64) (string, error)
	SubmitRefund(ctx context.Context, processorRef string, amount int64) (string, error)
}

// Publisher emits domain events for external notifiers.
type Publisher interface {
	Publish(subject string, data interface{}) error
}

// TenantCache is the optional read-through tenant cache; services work
// without one.
type TenantCache interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Tenant, error)
	Set(ctx context.Context, tenant *models.Tenant) error
	Invalidate(ctx context.Context, id uuid.UUID) error
}

// Policy carries the tunable business constants.
type Policy struct {
	HoldWindow        time.Duration
	MinimumCommission int64
	MaxEventAttempts  int
	RetryBaseDelay    time.Duration
}

type Services struct {
	Tenants   *TenantService
	Bookings  *BookingService
	Ingestion *IngestionService
	Refunds   *RefundService
}

func NewServices(repos *repository.Repositories, natsClient *messaging.NATSClient, processorClient *external.ProcessorClient, verifier Verifier, tenantCache TenantCache, policy Policy) *Services {
	tenantService := NewTenantService(repos.Tenants, repos.Slots, tenantCache)
	bookingService := NewBookingService(repos.Bookings, repos.Slots, repos.Tenants, repos.Payments, processorClient, natsClient, tenantCache, policy)
	refundService := NewRefundService(repos.Refunds, repos.Bookings, repos.Payments, processorClient, natsClient)
	ingestionService := NewIngestionService(repos.Events, repos.Bookings, repos.Payments, repos.Refunds, repos.Tenants, verifier, natsClient, tenantCache, policy)

	return &Services{
		Tenants:   tenantService,
		Bookings:  bookingService,
		Ingestion: ingestionService,
		Refunds:   refundService,
	}
}
