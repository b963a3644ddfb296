package models

// BookingStatus is the booking lifecycle state.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
	BookingCompleted BookingStatus = "COMPLETED"
	BookingRefunded  BookingStatus = "REFUNDED"
)

// Terminal reports whether no further transition is allowed from s.
func (s BookingStatus) Terminal() bool {
	switch s {
	case BookingCancelled, BookingCompleted, BookingRefunded:
		return true
	}
	return false
}

// bookingTransitions is the closed set of legal booking transitions.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingPending:   {BookingConfirmed, BookingCancelled},
	BookingConfirmed: {BookingCompleted, BookingRefunded, BookingCancelled},
}

// CanTransition reports whether from -> to is a legal booking transition.
func CanTransition(from, to BookingStatus) bool {
	for _, next := range bookingTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment record state.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentCaptured PaymentStatus = "CAPTURED"
	PaymentFailed   PaymentStatus = "FAILED"
)

// RefundStatus is the refund record state.
type RefundStatus string

const (
	RefundRequested RefundStatus = "REQUESTED"
	RefundSubmitted RefundStatus = "SUBMITTED"
	RefundCompleted RefundStatus = "COMPLETED"
	RefundFailed    RefundStatus = "FAILED"
)

// CanTransitionRefund reports whether from -> to is a legal refund transition.
func CanTransitionRefund(from, to RefundStatus) bool {
	switch from {
	case RefundRequested:
		return to == RefundSubmitted || to == RefundFailed
	case RefundSubmitted:
		return to == RefundCompleted || to == RefundFailed
	}
	return false
}

// EventStatus is the processing state of a stored processor event.
type EventStatus string

const (
	EventProcessed EventStatus = "PROCESSED"
	EventRetry     EventStatus = "RETRY"
	EventRejected  EventStatus = "REJECTED"
	EventDead      EventStatus = "DEAD"
)

// Processor event types consumed by the ingestion pipeline.
const (
	EventTypePaymentCaptured = "payment.captured"
	EventTypePaymentFailed   = "payment.failed"
	EventTypeRefundCompleted = "refund.completed"
	EventTypeRefundFailed    = "refund.failed"
)
