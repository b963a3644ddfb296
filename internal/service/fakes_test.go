package service_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"reserva/internal/apperr"
	"reserva/internal/models"
	"reserva/internal/repository"
)

// memState is an in-memory stand-in for the Postgres repositories. It
// mirrors their guarded-update semantics (status+version transitions,
// single writer per booking) so the services see the same behavior they
// would against the real store.
type memState struct {
	mu       sync.Mutex
	tenants  map[uuid.UUID]*models.Tenant
	slots    map[uuid.UUID]*models.Slot
	bookings map[uuid.UUID]*models.Booking
	payments map[uuid.UUID]*models.PaymentRecord
	refunds  map[uuid.UUID]*models.RefundRecord
	events   map[string]*models.ProcessorEvent

	// captureHook runs between ApplyCapture's status read and its guarded
	// write, with the state lock held. Tests use it to interleave a
	// concurrent cancel the way another transaction would.
	captureHook func(*memState)
}

func newMemState() *memState {
	return &memState{
		tenants:  make(map[uuid.UUID]*models.Tenant),
		slots:    make(map[uuid.UUID]*models.Slot),
		bookings: make(map[uuid.UUID]*models.Booking),
		payments: make(map[uuid.UUID]*models.PaymentRecord),
		refunds:  make(map[uuid.UUID]*models.RefundRecord),
		events:   make(map[string]*models.ProcessorEvent),
	}
}

// --- TenantStore ---

func (m *memState) Create(_ context.Context, tenant *models.Tenant) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tenants {
		if t.Slug == tenant.Slug {
			return apperr.ErrConflict
		}
	}
	cp := *tenant
	m.tenants[tenant.ID] = &cp
	return nil
}

func (m *memState) GetByID(_ context.Context, id uuid.UUID) (*models.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return nil, nil
	}
	cp := *t
	return &cp, nil
}

func (m *memState) UpdateCommission(_ context.Context, id uuid.UUID, bps int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return apperr.ErrNotFound
	}
	t.CommissionBps = bps
	return nil
}

func (m *memState) Deactivate(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tenants[id]
	if !ok {
		return apperr.ErrNotFound
	}
	t.Active = false
	return nil
}

// --- SlotStore ---

func (m *memState) CreateSlot(_ context.Context, slot *models.Slot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *slot
	m.slots[slot.ID] = &cp
	return nil
}

func (m *memState) GetSlotByID(_ context.Context, id uuid.UUID) (*models.Slot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.slots[id]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// slotStore gives the SlotStore interface its expected method names.
type slotStore struct{ *memState }

func (s slotStore) Create(ctx context.Context, slot *models.Slot) error {
	return s.memState.CreateSlot(ctx, slot)
}

func (s slotStore) GetByID(ctx context.Context, id uuid.UUID) (*models.Slot, error) {
	return s.memState.GetSlotByID(ctx, id)
}

// --- BookingStore ---

type bookingStore struct{ *memState }

func (b bookingStore) Reserve(_ context.Context, booking *models.Booking, holdWindow time.Duration) ([]models.Booking, error) {
	m := b.memState
	m.mu.Lock()
	defer m.mu.Unlock()

	slot, ok := m.slots[booking.SlotID]
	if !ok || slot.TenantID != booking.TenantID {
		return nil, apperr.ErrNotFound
	}

	now := time.Now()
	active := 0
	var expired []models.Booking
	for _, existing := range m.bookings {
		if existing.SlotID != booking.SlotID {
			continue
		}
		if existing.Status == models.BookingPending && existing.ExpiresAt.Before(now) {
			existing.Status = models.BookingCancelled
			existing.Version++
			expired = append(expired, *existing)
			continue
		}
		if existing.Status == models.BookingPending || existing.Status == models.BookingConfirmed {
			active++
		}
	}
	if active >= slot.Capacity {
		return nil, apperr.ErrSlotUnavailable
	}

	booking.Status = models.BookingPending
	booking.ExpiresAt = now.Add(holdWindow)
	booking.Version = 1
	booking.CreatedAt = now
	booking.UpdatedAt = now

	cp := *booking
	m.bookings[booking.ID] = &cp
	m.payments[booking.ID] = &models.PaymentRecord{
		BookingID: booking.ID,
		Status:    models.PaymentPending,
	}
	return expired, nil
}

func (b bookingStore) GetByID(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	m := b.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return nil, nil
	}
	cp := *booking
	return &cp, nil
}

func (b bookingStore) Transition(_ context.Context, id uuid.UUID, from, to models.BookingStatus, version int64) (bool, error) {
	if !models.CanTransition(from, to) {
		return false, fmt.Errorf("illegal booking transition %s -> %s", from, to)
	}
	m := b.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok || booking.Status != from || booking.Version != version {
		return false, nil
	}
	booking.Status = to
	booking.Version++
	return true, nil
}

func (b bookingStore) ApplyCapture(_ context.Context, bookingID uuid.UUID, processorRef string, amount, commission, payout int64) (repository.CaptureResult, error) {
	m := b.memState
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[bookingID]
	if !ok {
		return repository.CaptureNotFound, nil
	}

	switch booking.Status {
	case models.BookingPending:
	case models.BookingConfirmed:
		return repository.CaptureAlreadyConfirmed, nil
	default:
		return repository.CaptureAnomaly, nil
	}

	if m.captureHook != nil {
		m.captureHook(m)
	}
	// Guarded write: a writer that slipped in after the read wins and the
	// capture applies nothing, mirroring the repository's zero-row path.
	if booking.Status != models.BookingPending {
		if booking.Status == models.BookingConfirmed {
			return repository.CaptureAlreadyConfirmed, nil
		}
		return repository.CaptureAnomaly, nil
	}

	booking.Status = models.BookingConfirmed
	booking.Commission = &commission
	booking.Payout = &payout
	booking.Version++

	if payment, ok := m.payments[bookingID]; ok {
		payment.Status = models.PaymentCaptured
		payment.CapturedAmount = amount
		payment.ProcessorRef = processorRef
	}
	return repository.CaptureApplied, nil
}

func (b bookingStore) ApplyPaymentFailure(_ context.Context, bookingID uuid.UUID) (bool, error) {
	m := b.memState
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[bookingID]
	if !ok || booking.Status != models.BookingPending {
		return false, nil
	}
	booking.Status = models.BookingCancelled
	booking.Version++
	if payment, ok := m.payments[bookingID]; ok && payment.Status == models.PaymentPending {
		payment.Status = models.PaymentFailed
	}
	return true, nil
}

// --- PaymentStore ---

type paymentStore struct{ *memState }

func (p paymentStore) GetByBookingID(_ context.Context, bookingID uuid.UUID) (*models.PaymentRecord, error) {
	m := p.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[bookingID]
	if !ok {
		return nil, nil
	}
	cp := *payment
	return &cp, nil
}

func (p paymentStore) SetProcessorRef(_ context.Context, bookingID uuid.UUID, ref string) error {
	m := p.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[bookingID]
	if !ok {
		return apperr.ErrNotFound
	}
	payment.ProcessorRef = ref
	return nil
}

func (p paymentStore) ResolveBookingByRef(_ context.Context, ref string) (uuid.UUID, error) {
	m := p.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, payment := range m.payments {
		if payment.ProcessorRef == ref {
			return id, nil
		}
	}
	return uuid.Nil, nil
}

// --- RefundStore ---

type refundStore struct{ *memState }

func (r refundStore) Request(_ context.Context, refund *models.RefundRecord) error {
	m := r.memState
	m.mu.Lock()
	defer m.mu.Unlock()

	booking, ok := m.bookings[refund.BookingID]
	if !ok || booking.TenantID != refund.TenantID {
		return apperr.ErrNotFound
	}
	payment, ok := m.payments[refund.BookingID]
	if !ok {
		return apperr.ErrNotFound
	}

	if payment.Status != models.PaymentCaptured {
		return apperr.ErrConflict
	}
	if booking.Status != models.BookingConfirmed && booking.Status != models.BookingCompleted {
		return apperr.ErrConflict
	}

	var committed int64
	for _, existing := range m.refunds {
		if existing.BookingID == refund.BookingID && existing.Status != models.RefundFailed {
			committed += existing.Amount
		}
	}
	if refund.Amount <= 0 || refund.Amount+committed > payment.CapturedAmount {
		return apperr.ErrRefundExceedsCaptured
	}

	refund.Status = models.RefundRequested
	cp := *refund
	m.refunds[refund.ID] = &cp
	return nil
}

func (r refundStore) MarkSubmitted(_ context.Context, id uuid.UUID, submissionID string) error {
	m := r.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	refund, ok := m.refunds[id]
	if !ok || refund.Status != models.RefundRequested {
		return apperr.ErrConflict
	}
	refund.Status = models.RefundSubmitted
	refund.SubmissionID = &submissionID
	return nil
}

func (r refundStore) ApplyCompletion(_ context.Context, submissionID string) (repository.RefundOutcome, error) {
	m := r.memState
	m.mu.Lock()
	defer m.mu.Unlock()

	var out repository.RefundOutcome
	var target *models.RefundRecord
	for _, refund := range m.refunds {
		if refund.SubmissionID != nil && *refund.SubmissionID == submissionID {
			target = refund
			break
		}
	}
	if target == nil {
		return out, nil
	}
	out.Known = true

	if target.Status != models.RefundSubmitted {
		return out, nil
	}
	target.Status = models.RefundCompleted
	out.Applied = true
	out.Refund = *target

	var completed int64
	for _, refund := range m.refunds {
		if refund.BookingID == target.BookingID && refund.Status == models.RefundCompleted {
			completed += refund.Amount
		}
	}
	payment := m.payments[target.BookingID]
	booking := m.bookings[target.BookingID]
	if payment != nil && booking != nil && completed >= payment.CapturedAmount && booking.Status == models.BookingConfirmed {
		booking.Status = models.BookingRefunded
		booking.Version++
		out.BookingRefunded = true
	}
	return out, nil
}

func (r refundStore) ApplyFailure(_ context.Context, submissionID string) (bool, error) {
	m := r.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, refund := range m.refunds {
		if refund.SubmissionID != nil && *refund.SubmissionID == submissionID && refund.Status == models.RefundSubmitted {
			refund.Status = models.RefundFailed
			return true, nil
		}
	}
	return false, nil
}

func (r refundStore) GetByID(_ context.Context, id uuid.UUID) (*models.RefundRecord, error) {
	m := r.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	refund, ok := m.refunds[id]
	if !ok {
		return nil, nil
	}
	cp := *refund
	return &cp, nil
}

func (r refundStore) ListByBooking(_ context.Context, bookingID uuid.UUID) ([]models.RefundRecord, error) {
	m := r.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.RefundRecord
	for _, refund := range m.refunds {
		if refund.BookingID == bookingID {
			out = append(out, *refund)
		}
	}
	return out, nil
}

// --- EventStore ---

type eventStore struct{ *memState }

func (e eventStore) Claim(_ context.Context, event *models.ProcessorEvent, firstDeadline time.Time) (bool, error) {
	m := e.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[event.EventID]; exists {
		return false, nil
	}
	deadline := firstDeadline
	m.events[event.EventID] = &models.ProcessorEvent{
		EventID:       event.EventID,
		Type:          event.Type,
		Payload:       event.Payload,
		Status:        models.EventRetry,
		NextAttemptAt: &deadline,
		ReceivedAt:    time.Now(),
	}
	return true, nil
}

func (e eventStore) RecordRejected(_ context.Context, event *models.ProcessorEvent, reason string) error {
	m := e.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.events[event.EventID]; exists {
		return nil
	}
	m.events[event.EventID] = &models.ProcessorEvent{
		EventID:    event.EventID,
		Type:       event.Type,
		Payload:    event.Payload,
		Status:     models.EventRejected,
		LastError:  &reason,
		ReceivedAt: time.Now(),
	}
	return nil
}

func (e eventStore) MarkProcessed(_ context.Context, eventID string, anomaly bool) error {
	m := e.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return apperr.ErrNotFound
	}
	now := time.Now()
	event.Status = models.EventProcessed
	event.Anomaly = anomaly
	event.ProcessedAt = &now
	event.NextAttemptAt = nil
	return nil
}

func (e eventStore) MarkRetry(_ context.Context, eventID string, attempts int, nextAttempt time.Time, lastError string) error {
	m := e.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return apperr.ErrNotFound
	}
	event.Status = models.EventRetry
	event.Attempts = attempts
	event.NextAttemptAt = &nextAttempt
	event.LastError = &lastError
	return nil
}

func (e eventStore) MarkDead(_ context.Context, eventID string, lastError string) error {
	m := e.memState
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return apperr.ErrNotFound
	}
	event.Status = models.EventDead
	event.NextAttemptAt = nil
	event.LastError = &lastError
	return nil
}

// --- Collaborator fakes ---

type stubProcessor struct {
	mu          sync.Mutex
	initRef     string
	initErr     error
	subID       string
	subErr      error
	initiations int
	submissions int
}

func (p *stubProcessor) InitiatePayment(context.Context, uuid.UUID, int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.initiations++
	return p.initRef, p.initErr
}

func (p *stubProcessor) SubmitRefund(context.Context, string, int64) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submissions++
	return p.subID, p.subErr
}

type publishedEvent struct {
	subject string
	data    interface{}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{subject: subject, data: data})
	return nil
}

func (p *recordingPublisher) bySubject(subject string) []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []publishedEvent
	for _, e := range p.events {
		if e.subject == subject {
			out = append(out, e)
		}
	}
	return out
}
