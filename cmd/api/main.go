package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"crm-exporter/cmd"
	"crm-exporter/internal/api"
	"crm-exporter/internal/database"
	"crm-exporter/internal/extract"
	"crm-exporter/internal/messaging"
	"crm-exporter/internal/salesforce"
	"crm-exporter/internal/scheduler"
	"crm-exporter/internal/storage"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type APIConfig struct {
	DatabaseURL string `env:"DATABASE_URL,notEmpty,required"`
	RabbitMQURL string `env:"RABBITMQ_URL,notEmpty,required"`

	SalesforceLoginURL      string `env:"SF_LOGIN_URL" envDefault:"https://login.salesforce.com"`
	SalesforceClientId      string `env:"SF_CLIENT_ID"`
	SalesforceClientSecret  string `env:"SF_CLIENT_SECRET"`
	SalesforceUsername      string `env:"SF_USERNAME"`
	SalesforcePassword      string `env:"SF_PASSWORD"`
	SalesforceSecurityToken string `env:"SF_SECURITY_TOKEN"`
	SalesforceAPIVersion    string `env:"SF_API_VERSION"`

	S3EndpointURL     string `env:"S3_ENDPOINT_URL"`
	S3AccessKeyID     string `env:"AWS_ACCESS_KEY_ID"`
	S3SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY"`
	S3Region          string `env:"AWS_REGION" envDefault:"us-east-1"`

	APIPort string `env:"API_PORT" envDefault:"8001"`
}

func main() {
	log.Println("Starting API Server...")

	cmd.LoadEnvFile()

	var cfg APIConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	publisher, err := messaging.NewRabbitMQPublisher(cfg.RabbitMQURL)
	if err != nil {
		log.Fatalf("Failed to connect to RabbitMQ: %v", err)
	}
	defer publisher.Close()

	registry := scheduler.NewRegistry()
	err = registry.Register(extract.Definition(
		func() extract.CRM {
			return salesforce.NewClient(salesforce.ClientConfig{
				LoginURL:      cfg.SalesforceLoginURL,
				ClientId:      cfg.SalesforceClientId,
				ClientSecret:  cfg.SalesforceClientSecret,
				Username:      cfg.SalesforceUsername,
				Password:      cfg.SalesforcePassword,
				SecurityToken: cfg.SalesforceSecurityToken,
				APIVersion:    cfg.SalesforceAPIVersion,
			})
		},
		func() (storage.ObjectStore, error) {
			return storage.NewS3ObjectStore(storage.S3ClientConfig{
				Endpoint:        cfg.S3EndpointURL,
				AccessKeyID:     cfg.S3AccessKeyID,
				SecretAccessKey: cfg.S3SecretAccessKey,
				Region:          cfg.S3Region,
			})
		},
	))
	if err != nil {
		log.Fatalf("Failed to register extract task: %v", err)
	}

	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(db, publisher, registry)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    ":" + cfg.APIPort,
		Handler: r,
	}

	// Goroutine for graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			log.Fatalf("Server forced to shutdown: %v", err)
		}
	}()

	log.Printf("API server listening on port %s", cfg.APIPort)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %s: %v\n", cfg.APIPort, err)
	}

	log.Println("Server stopped.")
}
