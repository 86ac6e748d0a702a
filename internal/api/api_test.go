package api_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	backend "crm-exporter/internal/api"
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
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func createDB(t *testing.T, create ...any) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, database.GetMigrator(db).Migrate())

	for _, c := range create {
		require.NoError(t, db.Create(c).Error)
	}

	return db
}

func createRegistry(t *testing.T) *scheduler.Registry {
	registry := scheduler.NewRegistry()
	require.NoError(t, registry.Register(extract.Definition(
		func() extract.CRM { return salesforce.NewClient(salesforce.ClientConfig{}) },
		func() (storage.ObjectStore, error) { return storage.NewLocalObjectStore(t.TempDir()) },
	)))
	return registry
}

func createRouter(t *testing.T, db *gorm.DB, queue *messaging.InMemoryQueue) chi.Router {
	service := backend.NewBackendService(db, queue, createRegistry(t))
	router := chi.NewRouter()
	service.AddRoutes(router)
	return router
}

func TestSubmitExtract(t *testing.T) {
	db := createDB(t)
	queue := messaging.NewInMemoryQueue()
	router := createRouter(t, db, queue)

	body, err := json.Marshal(models.ExtractRequest{
		Object: "Account",
		Format: "csv",
		Bucket: "exports",
		Key:    "accounts.csv",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/extracts", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.ExtractSubmitResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.NotEqual(t, uuid.Nil, response.RunId)

	var run database.ExtractRun
	require.NoError(t, db.First(&run, "id = ?", response.RunId).Error)
	assert.Equal(t, database.JobQueued, run.Status)
	assert.Equal(t, "Account", run.Object)
	assert.Equal(t, "accounts.csv", run.ObjectKey)

	task := <-queue.Tasks()
	assert.Equal(t, messaging.ExtractQueue, task.Type())

	var payload models.ExtractTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, response.RunId, payload.RunId)
	assert.Equal(t, "Account", payload.Object)
}

func TestSubmitExtractValidation(t *testing.T) {
	db := createDB(t)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	submit := func(req models.ExtractRequest) *httptest.ResponseRecorder {
		body, err := json.Marshal(req)
		require.NoError(t, err)

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/extracts", bytes.NewReader(body)))
		return rec
	}

	t.Run("MissingObjectAndQuery", func(t *testing.T) {
		rec := submit(models.ExtractRequest{Bucket: "b", Key: "k"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("RelationshipWithoutQuery", func(t *testing.T) {
		rec := submit(models.ExtractRequest{Object: "Account", RelationshipObject: "Contacts", Bucket: "b", Key: "k"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("MissingBucket", func(t *testing.T) {
		rec := submit(models.ExtractRequest{Object: "Account", Key: "k"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("UnsupportedFormat", func(t *testing.T) {
		rec := submit(models.ExtractRequest{Object: "Account", Bucket: "b", Key: "k", Format: "parquet"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("QueryMode", func(t *testing.T) {
		rec := submit(models.ExtractRequest{Query: "SELECT Id FROM Account", Bucket: "b", Key: "k"})
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestListRuns(t *testing.T) {
	id1, id2 := uuid.New(), uuid.New()
	db := createDB(t,
		&database.ExtractRun{Id: id1, TaskName: extract.TaskName, Object: "Account", Bucket: "b", ObjectKey: "a.csv", Status: database.JobCompleted, CreationTime: time.Now().Add(-time.Hour)},
		&database.ExtractRun{Id: id2, TaskName: extract.TaskName, Object: "Contact", Bucket: "b", ObjectKey: "c.csv", Status: database.JobQueued, CreationTime: time.Now()},
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extracts", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Runs, 2)

	// Newest run first.
	assert.Equal(t, id2, response.Runs[0].RunId)
	assert.Equal(t, id1, response.Runs[1].RunId)
}

func TestListRunsFilterByStatus(t *testing.T) {
	id := uuid.New()
	db := createDB(t,
		&database.ExtractRun{Id: id, TaskName: extract.TaskName, Bucket: "b", ObjectKey: "a.csv", Status: database.JobFailed, CreationTime: time.Now()},
		&database.ExtractRun{Id: uuid.New(), TaskName: extract.TaskName, Bucket: "b", ObjectKey: "c.csv", Status: database.JobQueued, CreationTime: time.Now()},
	)
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extracts?Status=FAILED", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.ListRunsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response.Runs, 1)
	assert.Equal(t, id, response.Runs[0].RunId)
}

func TestGetRun(t *testing.T) {
	runId := uuid.New()
	db := createDB(t, &database.ExtractRun{
		Id:           runId,
		TaskName:     extract.TaskName,
		Object:       "Account",
		Bucket:       "exports",
		ObjectKey:    "accounts.csv",
		Format:       "csv",
		Status:       database.JobFailed,
		Error:        sql.NullString{String: "failed to sign in to crm", Valid: true},
		CreationTime: time.Now(),
	})
	router := createRouter(t, db, messaging.NewInMemoryQueue())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extracts/"+runId.String(), nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response models.ExtractRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, runId, response.RunId)
	assert.Equal(t, database.JobFailed, response.Status)
	assert.Equal(t, "failed to sign in to crm", response.Error)
}

func TestGetRunNotFound(t *testing.T) {
	router := createRouter(t, createDB(t), messaging.NewInMemoryQueue())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extracts/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extracts/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListTasks(t *testing.T) {
	router := createRouter(t, createDB(t), messaging.NewInMemoryQueue())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tasks", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var response []models.TaskDefinitionInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	require.Len(t, response, 1)
	assert.Equal(t, extract.TaskName, response[0].Name)
	assert.Equal(t, messaging.ExtractQueue, response[0].Queue)
	assert.NotEmpty(t, response[0].Params)
}

func TestHealth(t *testing.T) {
	router := createRouter(t, createDB(t), messaging.NewInMemoryQueue())

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
