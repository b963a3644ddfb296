package api

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"reserva/internal/auth"
	"reserva/internal/cache"
	"reserva/internal/config"
	"reserva/internal/database"
	"reserva/internal/external"
	"reserva/internal/handlers"
	"reserva/internal/messaging"
	"reserva/internal/metrics"
	"reserva/internal/middleware"
	"reserva/internal/repository"
	"reserva/internal/service"
)

// Server wires the HTTP API together with its storage and messaging
// collaborators. Background jobs run in the worker binary.
type Server struct {
	router   *gin.Engine
	config   *config.Config
	db       *database.DB
	nats     *messaging.NATSClient
	services *service.Services
	repos    *repository.Repositories
}

func NewServer(cfg *config.Config) *Server {
	gin.SetMode(cfg.GinMode)

	db, err := database.Connect(cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := db.RunMigrations(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	natsClient, err := messaging.NewNATSClient(cfg.NATS)
	if err != nil {
		log.Fatalf("Failed to connect to NATS: %v", err)
	}

	tenantCache, err := cache.NewTenantCache(cfg.Redis)
	if err != nil {
		// The cache is an optimization; the API runs without it.
		log.Printf("Tenant cache unavailable, continuing without: %v", err)
		tenantCache = nil
	}

	processorClient := external.NewProcessorClient(cfg.Processor)
	verifier := external.NewWebhookVerifier(cfg.Processor.MerchantSlug, cfg.Processor.Secret)

	repos := repository.NewRepositories(db)

	policy := service.Policy{
		HoldWindow:        cfg.HoldWindow,
		MinimumCommission: cfg.MinimumCommission,
		MaxEventAttempts:  cfg.MaxEventAttempts,
		RetryBaseDelay:    cfg.RetryBaseDelay,
	}

	var services *service.Services
	if tenantCache != nil {
		services = service.NewServices(repos, natsClient, processorClient, verifier, tenantCache, policy)
	} else {
		services = service.NewServices(repos, natsClient, processorClient, verifier, nil, policy)
	}

	router := gin.New()
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(metrics.Middleware())

	server := &Server{
		router:   router,
		config:   cfg,
		db:       db,
		nats:     natsClient,
		services: services,
		repos:    repos,
	}

	server.setupRoutes()

	return server
}

func (s *Server) setupRoutes() {
	h := handlers.NewHandlers(s.services)
	guard := auth.NewGuard(s.config.AuthSecret, s.config.AuthIssuer)

	api := s.router.Group("/api")

	// Processor notifications authenticate themselves via the payload
	// token, not a bearer credential.
	api.POST("/webhooks/events", h.ProcessorWebhook)

	authed := api.Group("")
	authed.Use(middleware.BearerAuth(guard))
	{
		bookings := authed.Group("/bookings")
		{
			bookings.POST("", h.CreateBooking)
			bookings.GET("/:id", h.GetBooking)
			bookings.POST("/:id/cancel", h.CancelBooking)
			bookings.GET("/:id/refunds", h.ListBookingRefunds)
		}

		refunds := authed.Group("/refunds")
		refunds.Use(middleware.RequireRole(auth.RolePlatform, auth.RoleTenant))
		{
			refunds.POST("", h.CreateRefund)
		}

		slots := authed.Group("/slots")
		slots.Use(middleware.RequireRole(auth.RolePlatform, auth.RoleTenant))
		{
			slots.POST("", h.CreateSlot)
		}

		tenants := authed.Group("/tenants")
		tenants.Use(middleware.RequireRole(auth.RolePlatform))
		{
			tenants.POST("", h.CreateTenant)
			tenants.PATCH("/:id/commission", h.UpdateTenantCommission)
			tenants.POST("/:id/deactivate", h.DeactivateTenant)
		}
	}

	s.router.GET("/health", s.healthCheck)
	s.router.GET("/metrics", metrics.Handler())
}

// healthCheck reports liveness together with connection pool state.
func (s *Server) healthCheck(c *gin.Context) {
	check := s.db.HealthCheck(c.Request.Context())
	status := http.StatusOK
	if check.Status != "healthy" {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, check)
}

func (s *Server) Run() error {
	addr := fmt.Sprintf(":%s", s.config.Port)
	return s.router.Run(addr)
}

// GetRouter exposes the router for tests.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

func (s *Server) Cleanup() error {
	if s.nats != nil {
		if err := s.nats.Close(); err != nil {
			log.Printf("Error closing NATS connection: %v", err)
		}
	}

	if s.db != nil {
		if err := s.db.Close(); err != nil {
			log.Printf("Error closing database connection: %v", err)
			return err
		}
	}
	return nil
}
