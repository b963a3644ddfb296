package repository

import (
	"reserva/internal/database"
)

type Repositories struct {
	Tenants  *TenantRepository
	Slots    *SlotRepository
	Bookings *BookingRepository
	Payments *PaymentRepository
	Refunds  *RefundRepository
	Events   *EventRepository
}

func NewRepositories(db *database.DB) *Repositories {
	return &Repositories{
		Tenants:  NewTenantRepository(db),
		Slots:    NewSlotRepository(db),
		Bookings: NewBookingRepository(db),
		Payments: NewPaymentRepository(db),
		Refunds:  NewRefundRepository(db),
		Events:   NewEventRepository(db),
	}
}
