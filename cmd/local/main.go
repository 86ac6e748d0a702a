package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
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
	"crm-exporter/pkg/models"

	"github.com/caarlos0/env/v11"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"
)

// Local mode: API, worker, queue, and object storage in a single process.
// Output files land under ROOT/storage instead of S3.
type Config struct {
	Root string `env:"ROOT" envDefault:"./crm-exporter-local"`
	Port int    `env:"PORT" envDefault:"8001"`

	SalesforceLoginURL      string `env:"SF_LOGIN_URL" envDefault:"https://login.salesforce.com"`
	SalesforceClientId      string `env:"SF_CLIENT_ID"`
	SalesforceClientSecret  string `env:"SF_CLIENT_SECRET"`
	SalesforceUsername      string `env:"SF_USERNAME"`
	SalesforcePassword      string `env:"SF_PASSWORD"`
	SalesforceSecurityToken string `env:"SF_SECURITY_TOKEN"`
	SalesforceAPIVersion    string `env:"SF_API_VERSION"`
}

func createDatabase(root string) *gorm.DB {
	path := filepath.Join(root, "db", "crm-exporter.db")
	if err := os.MkdirAll(filepath.Dir(path), os.ModePerm); err != nil {
		log.Fatalf("Failed to create database directory: %v", err)
	}

	db, err := database.NewDatabase(path)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}

	return db
}

// createQueue re-enqueues runs that were still queued when the process last
// stopped.
func createQueue(db *gorm.DB) *messaging.InMemoryQueue {
	var runs []database.ExtractRun
	if err := db.Where("status = ?", database.JobQueued).Find(&runs).Error; err != nil {
		log.Fatalf("Failed to fetch queued runs from database: %v", err)
	}

	queue := messaging.NewInMemoryQueue()

	for _, run := range runs {
		var payload models.ExtractTaskPayload
		if err := json.Unmarshal(run.Config, &payload); err != nil {
			log.Printf("Skipping run %s with unreadable config: %v", run.Id, err)
			continue
		}
		if err := queue.PublishExtractTask(context.Background(), payload); err != nil {
			log.Fatalf("Failed to re-enqueue run %s: %v", run.Id, err)
		}
	}

	return queue
}

func main() {
	cmd.LoadEnvFile()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("error parsing config: %v", err)
	}

	if err := os.MkdirAll(cfg.Root, os.ModePerm); err != nil {
		log.Fatalf("error creating root directory: %v", err)
	}

	db := createDatabase(cfg.Root)
	queue := createQueue(db)

	store, err := storage.NewLocalObjectStore(filepath.Join(cfg.Root, "storage"))
	if err != nil {
		log.Fatalf("Failed to create local object store: %v", err)
	}

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
		func() (storage.ObjectStore, error) { return store, nil },
	))
	if err != nil {
		log.Fatalf("Failed to register extract task: %v", err)
	}

	worker := messaging.NewWorker(db, registry, queue)
	go worker.Start(1)

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
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	apiHandler := api.NewBackendService(db, queue, registry)
	apiHandler.AddRoutes(r)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

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
		worker.Stop()
	}()

	log.Printf("Local server listening on port %d", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Could not listen on %d: %v\n", cfg.Port, err)
	}

	log.Println("Server stopped.")
}
