package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reserva/internal/config"
	"reserva/internal/logger"
	"reserva/internal/worker"
)

func main() {
	log.Println("Starting worker service...")

	cfg := config.Load()
	cfg.NATS.ClientID = "reserva-worker"

	logger.Init(cfg.LogLevel, cfg.LogFormat)

	workerService, err := worker.NewService(cfg)
	if err != nil {
		log.Fatalf("Failed to create worker service: %v", err)
	}

	if err := workerService.Start(); err != nil {
		log.Fatalf("Failed to start worker service: %v", err)
	}
	log.Println("Worker service started successfully")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := workerService.Shutdown(ctx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Worker service stopped")
}
