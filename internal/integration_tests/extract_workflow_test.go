//go:build integration
// +build integration

package integrationtests

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"crm-exporter/internal/api"
	"crm-exporter/internal/database"
	"crm-exporter/internal/extract"
	"crm-exporter/internal/messaging"
	"crm-exporter/internal/salesforce"
	"crm-exporter/internal/scheduler"
	"crm-exporter/internal/storage"
	"crm-exporter/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const dataBucket = "crm-exports"

func createDB(t *testing.T, ctx context.Context) *gorm.DB {
	uri := setupPostgresContainer(t, ctx)
	db, err := database.NewDatabase(uri)
	require.NoError(t, err)

	return db
}

// fakeCRMServer serves the token, describe, and query endpoints for a single
// Account object with three records.
func fakeCRMServer(t *testing.T) *httptest.Server {
	t.Helper()

	var server *httptest.Server
	mux := http.NewServeMux()

	mux.HandleFunc("POST /services/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "test-token",
			"instance_url": server.URL,
		})
	})

	mux.HandleFunc("GET /services/data/v59.0/sobjects/Account/describe", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"fields": []map[string]string{{"name": "Id"}, {"name": "Name"}},
		})
	})

	mux.HandleFunc("GET /services/data/v59.0/query", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(salesforce.QueryResult{
			TotalSize: 3,
			Done:      true,
			Records: []salesforce.Record{
				{"Id": "001", "Name": "Acme", "attributes": map[string]any{"type": "Account"}},
				{"Id": "002", "Name": "Globex", "attributes": map[string]any{"type": "Account"}},
				{"Id": "003", "Name": "Initech", "attributes": map[string]any{"type": "Account"}},
			},
		})
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func submitExtract(t *testing.T, router http.Handler, req models.ExtractRequest) uuid.UUID {
	var res models.ExtractSubmitResponse
	require.NoError(t, httpRequest(router, "POST", "/extracts", req, &res))
	return res.RunId
}

func waitForRun(t *testing.T, router http.Handler, runId uuid.UUID) models.ExtractRun {
	var run models.ExtractRun

	for i := 0; i < 40; i++ {
		time.Sleep(250 * time.Millisecond)
		require.NoError(t, httpRequest(router, "GET", fmt.Sprintf("/extracts/%s", runId), nil, &run))

		if run.Status == database.JobCompleted || run.Status == database.JobFailed {
			return run
		}
	}

	t.Fatal("timeout reached before extract run finished")
	return run
}

func TestExtractWorkflow(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	minioUrl := setupMinioContainer(t, ctx)

	s3Config := storage.S3ClientConfig{
		Endpoint:        minioUrl,
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	}

	objectStore, err := storage.NewS3ObjectStore(s3Config)
	require.NoError(t, err)
	require.NoError(t, objectStore.CreateBucket(ctx, dataBucket))

	crmServer := fakeCRMServer(t)

	db := createDB(t, ctx)

	queue := messaging.NewInMemoryQueue()

	registry := scheduler.NewRegistry()
	require.NoError(t, registry.Register(extract.Definition(
		func() extract.CRM {
			return salesforce.NewClient(salesforce.ClientConfig{
				LoginURL: crmServer.URL,
				Username: "user@example.com",
				Password: "hunter2",
			})
		},
		func() (storage.ObjectStore, error) {
			return storage.NewS3ObjectStore(s3Config)
		},
	)))

	backend := api.NewBackendService(db, queue, registry)
	router := chi.NewRouter()
	backend.AddRoutes(router)

	worker := messaging.NewWorker(db, registry, queue)
	go worker.Start(1)
	defer worker.Stop()

	runId := submitExtract(t, router, models.ExtractRequest{
		Object: "Account",
		Format: "csv",
		Bucket: dataBucket,
		Key:    "accounts.csv",
	})

	run := waitForRun(t, router, runId)
	assert.Equal(t, database.JobCompleted, run.Status)
	assert.Empty(t, run.Error)
	require.NotNil(t, run.CompletionTime)

	data, err := objectStore.GetObject(ctx, dataBucket, "accounts.csv")
	require.NoError(t, err)

	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"Id", "Name"}, rows[0])
	assert.Equal(t, []string{"001", "Acme"}, rows[1])
}
