package worker

import (
	"encoding/json"
	"log/slog"

	"github.com/nats-io/stan.go"

	"reserva/internal/messaging"
	"reserva/internal/models"
)

const notifyQueue = "notifications"

// NotificationConsumer drains the domain event subjects and dispatches
// customer-facing notifications. Dispatch is currently a structured log
// line; the queue-group subscription keeps delivery exactly-once per
// group when more worker replicas join.
type NotificationConsumer struct {
	nats *messaging.NATSClient
	subs []stan.Subscription
}

func NewNotificationConsumer(nats *messaging.NATSClient) *NotificationConsumer {
	return &NotificationConsumer{nats: nats}
}

func (c *NotificationConsumer) Start() error {
	subjects := map[string]stan.MsgHandler{
		models.SubjectBookingConfirmed:      c.handleBookingConfirmed,
		models.SubjectBookingCancelled:      c.handleBookingCancelled,
		models.SubjectBookingExpired:        c.handleBookingExpired,
		models.SubjectRefundCompleted:       c.handleRefundCompleted,
		models.SubjectReconciliationAnomaly: c.handleAnomaly,
	}

	for subject, handler := range subjects {
		sub, err := c.nats.SubscribeQueue(subject, notifyQueue, handler)
		if err != nil {
			return err
		}
		c.subs = append(c.subs, sub)
	}

	slog.Info("Notification consumer started", "subjects", len(subjects))
	return nil
}

func (c *NotificationConsumer) Stop() {
	for _, sub := range c.subs {
		if err := sub.Close(); err != nil {
			slog.Error("Failed to close subscription", "error", err)
		}
	}
}

func (c *NotificationConsumer) handleBookingConfirmed(m *stan.Msg) {
	var event models.BookingConfirmedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking confirmed event", "error", err)
		return
	}

	slog.Info("Dispatching booking confirmation",
		"booking_id", event.BookingID,
		"tenant_id", event.TenantID,
		"total_price", event.TotalPrice)

	m.Ack()
}

func (c *NotificationConsumer) handleBookingCancelled(m *stan.Msg) {
	var event models.BookingCancelledEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking cancelled event", "error", err)
		return
	}

	slog.Info("Dispatching booking cancellation notice",
		"booking_id", event.BookingID,
		"tenant_id", event.TenantID,
		"reason", event.Reason)

	m.Ack()
}

func (c *NotificationConsumer) handleBookingExpired(m *stan.Msg) {
	var event models.BookingExpiredEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal booking expired event", "error", err)
		return
	}

	slog.Info("Dispatching hold expiry notice",
		"booking_id", event.BookingID,
		"tenant_id", event.TenantID)

	m.Ack()
}

func (c *NotificationConsumer) handleRefundCompleted(m *stan.Msg) {
	var event models.RefundCompletedEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal refund completed event", "error", err)
		return
	}

	slog.Info("Dispatching refund confirmation",
		"refund_id", event.RefundID,
		"booking_id", event.BookingID,
		"amount", event.Amount)

	m.Ack()
}

func (c *NotificationConsumer) handleAnomaly(m *stan.Msg) {
	var event models.ReconciliationAnomalyEvent
	if err := json.Unmarshal(m.Data, &event); err != nil {
		slog.Error("Failed to unmarshal reconciliation anomaly event", "error", err)
		return
	}

	// Anomalies page an operator rather than a customer.
	slog.Warn("Routing reconciliation anomaly to operators",
		"event_id", event.EventID,
		"event_type", event.Type,
		"booking_id", event.BookingID,
		"detail", event.Detail)

	m.Ack()
}
