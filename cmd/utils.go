package cmd

import (
	"flag"
	"log"

	"crm-exporter/internal/config"
	"crm-exporter/internal/extract"
	"crm-exporter/internal/salesforce"
	"crm-exporter/internal/storage"

	"github.com/joho/godotenv"
)

func LoadEnvFile() {
	var configPath string

	flag.StringVar(&configPath, "env", "", "path to load env from")
	flag.Parse()

	if configPath == "" {
		log.Printf("no env file specified, using os.Environ only")
		return
	}

	log.Printf("loading env from file %s", configPath)
	if err := godotenv.Load(configPath); err != nil {
		log.Fatalf("error loading .env file '%s': %v", configPath, err)
	}
}

// NewCRMFactory builds the per-run Salesforce client constructor from config.
func NewCRMFactory(cfg *config.Config) func() extract.CRM {
	return func() extract.CRM {
		return salesforce.NewClient(salesforce.ClientConfig{
			LoginURL:      cfg.SalesforceLoginURL,
			ClientId:      cfg.SalesforceClientId,
			ClientSecret:  cfg.SalesforceClientSecret,
			Username:      cfg.SalesforceUsername,
			Password:      cfg.SalesforcePassword,
			SecurityToken: cfg.SalesforceSecurityToken,
			APIVersion:    cfg.SalesforceAPIVersion,
		})
	}
}

// NewStoreFactory builds the per-run object store constructor from config.
func NewStoreFactory(cfg *config.Config) func() (storage.ObjectStore, error) {
	return func() (storage.ObjectStore, error) {
		return storage.NewS3ObjectStore(storage.S3ClientConfig{
			Endpoint:        cfg.S3EndpointURL,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Region:          cfg.S3Region,
		})
	}
}
