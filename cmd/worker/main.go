package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"crm-exporter/cmd"
	"crm-exporter/internal/config"
	"crm-exporter/internal/database"
	"crm-exporter/internal/extract"
	"crm-exporter/internal/messaging"
	"crm-exporter/internal/scheduler"
)

func main() {
	log.Println("Starting Worker Process...")

	cmd.LoadEnvFile()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	registry := scheduler.NewRegistry()
	if err := registry.Register(extract.Definition(cmd.NewCRMFactory(cfg), cmd.NewStoreFactory(cfg))); err != nil {
		log.Fatalf("Failed to register extract task: %v", err)
	}

	receiver, err := messaging.NewRabbitMQReceiver(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}

	worker := messaging.NewWorker(db, registry, receiver)

	done := make(chan struct{})
	go func() {
		worker.Start(cfg.WorkerConcurrency)
		close(done)
	}()

	log.Println("Worker started. Waiting for tasks. Press Ctrl+C to exit.")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutdown signal received, stopping worker...")
	worker.Stop()
	<-done

	log.Println("Worker process stopped.")
}
