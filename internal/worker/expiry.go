package worker

import (
	"context"
	"log/slog"
	"time"

	"reserva/internal/messaging"
	"reserva/internal/metrics"
	"reserva/internal/models"
	"reserva/internal/repository"
)

// ExpiryJob cancels PENDING bookings whose hold window has lapsed and
// retires CONFIRMED bookings whose slot has ended. The repository updates
// are status-guarded, so a capture racing the sweep cannot be undone.
type ExpiryJob struct {
	bookings   *repository.BookingRepository
	natsClient *messaging.NATSClient
	interval   time.Duration
	ticker     *time.Ticker
	done       chan bool
}

func NewExpiryJob(bookings *repository.BookingRepository, natsClient *messaging.NATSClient, interval time.Duration) *ExpiryJob {
	if interval == 0 {
		interval = 30 * time.Second
	}
	return &ExpiryJob{
		bookings:   bookings,
		natsClient: natsClient,
		interval:   interval,
		done:       make(chan bool),
	}
}

func (j *ExpiryJob) Start(ctx context.Context) {
	slog.Info("Starting booking expiry job", "interval", j.interval)

	j.ticker = time.NewTicker(j.interval)

	// Run initial sweep immediately
	go j.sweep(ctx)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				go j.sweep(ctx)
			case <-j.done:
				slog.Info("Booking expiry job stopped")
				return
			}
		}
	}()
}

func (j *ExpiryJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *ExpiryJob) sweep(ctx context.Context) {
	now := time.Now()

	expired, err := j.bookings.ExpirePending(ctx, now)
	if err != nil {
		slog.Error("Failed to expire pending bookings", "error", err)
		return
	}

	for _, booking := range expired {
		metrics.ExpiredBookings.Inc()
		slog.Info("Expired unpaid booking",
			"booking_id", booking.ID,
			"tenant_id", booking.TenantID,
			"expires_at", booking.ExpiresAt)

		event := models.BookingExpiredEvent{
			BookingID: booking.ID,
			TenantID:  booking.TenantID,
			Timestamp: now,
		}
		if j.natsClient != nil {
			if err := j.natsClient.Publish(models.SubjectBookingExpired, event); err != nil {
				slog.Error("Failed to publish booking expired event",
					"error", err,
					"booking_id", booking.ID)
			}
		}
	}

	completed, err := j.bookings.CompleteElapsed(ctx, now)
	if err != nil {
		slog.Error("Failed to complete elapsed bookings", "error", err)
		return
	}
	if completed > 0 {
		slog.Info("Completed elapsed bookings", "count", completed)
	}
}
