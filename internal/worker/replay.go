package worker

import (
	"context"
	"log/slog"
	"time"

	"reserva/internal/repository"
	"reserva/internal/service"
)

const replayBatchSize = 100

// ReplayJob re-drives processor events parked in RETRY state, typically
// captures that arrived before their booking committed.
type ReplayJob struct {
	events    *repository.EventRepository
	ingestion *service.IngestionService
	interval  time.Duration
	ticker    *time.Ticker
	done      chan bool
}

func NewReplayJob(events *repository.EventRepository, ingestion *service.IngestionService, interval time.Duration) *ReplayJob {
	if interval == 0 {
		interval = 15 * time.Second
	}
	return &ReplayJob{
		events:    events,
		ingestion: ingestion,
		interval:  interval,
		done:      make(chan bool),
	}
}

func (j *ReplayJob) Start(ctx context.Context) {
	slog.Info("Starting event replay job", "interval", j.interval)

	j.ticker = time.NewTicker(j.interval)

	go func() {
		for {
			select {
			case <-j.ticker.C:
				j.replayDue(ctx)
			case <-j.done:
				slog.Info("Event replay job stopped")
				return
			}
		}
	}()
}

func (j *ReplayJob) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
}

func (j *ReplayJob) replayDue(ctx context.Context) {
	due, err := j.events.DueForRetry(ctx, time.Now(), replayBatchSize)
	if err != nil {
		slog.Error("Failed to load events due for retry", "error", err)
		return
	}
	if len(due) == 0 {
		return
	}

	slog.Info("Replaying processor events", "count", len(due))

	for i := range due {
		if err := j.ingestion.ProcessStored(ctx, &due[i]); err != nil {
			slog.Error("Failed to replay processor event",
				"error", err,
				"event_id", due[i].EventID,
				"event_type", due[i].Type)
		}
	}
}
