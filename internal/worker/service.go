package worker

import (
	"context"
	"log/slog"

	"reserva/internal/cache"
	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/external"
	"reserva/internal/messaging"
	"reserva/internal/repository"
	"reserva/internal/service"
)

// Service owns the background side of the system: the hold-expiry sweep
// and the replay of parked processor events. It runs as its own binary so
// the API tier can scale independently.
type Service struct {
	db        *database.DB
	nats      *messaging.NATSClient
	repos     *repository.Repositories
	expiryJob *ExpiryJob
	replayJob *ReplayJob
	notifier  *NotificationConsumer
	cancel    context.CancelFunc
}

func NewService(cfg *config.Config) (*Service, error) {
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, err
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		db.Close()
		return nil, err
	}

	tenantCache, err := cache.NewTenantCache(cfg.Redis)
	if err != nil {
		slog.Warn("Tenant cache unavailable, continuing without", "error", err)
		tenantCache = nil
	}

	repos := repository.NewRepositories(db)
	verifier := external.NewWebhookVerifier(cfg.Processor.MerchantSlug, cfg.Processor.Secret)

	policy := service.Policy{
		HoldWindow:        cfg.HoldWindow,
		MinimumCommission: cfg.MinimumCommission,
		MaxEventAttempts:  cfg.MaxEventAttempts,
		RetryBaseDelay:    cfg.RetryBaseDelay,
	}

	var ingestion *service.IngestionService
	if tenantCache != nil {
		ingestion = service.NewIngestionService(repos.Events, repos.Bookings, repos.Payments, repos.Refunds, repos.Tenants, verifier, natsClient, tenantCache, policy)
	} else {
		ingestion = service.NewIngestionService(repos.Events, repos.Bookings, repos.Payments, repos.Refunds, repos.Tenants, verifier, natsClient, nil, policy)
	}

	return &Service{
		db:        db,
		nats:      natsClient,
		repos:     repos,
		expiryJob: NewExpiryJob(repos.Bookings, natsClient, cfg.SweepInterval),
		replayJob: NewReplayJob(repos.Events, ingestion, cfg.ReplayInterval),
		notifier:  NewNotificationConsumer(natsClient),
	}, nil
}

func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if err := s.notifier.Start(); err != nil {
		return err
	}
	s.expiryJob.Start(ctx)
	s.replayJob.Start(ctx)

	slog.Info("Worker jobs started")
	return nil
}

func (s *Service) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down worker service...")

	if s.cancel != nil {
		s.cancel()
	}
	s.notifier.Stop()
	s.expiryJob.Stop()
	s.replayJob.Stop()

	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			slog.Error("Error closing NATS connection", "error", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
			return err
		}
	}
	return nil
}
