package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"crm-exporter/internal/salesforce"
	"crm-exporter/internal/storage"
)

var (
	// ErrEmptyQuery is returned when custom-query mode is selected without a
	// query string. It is raised before any hook call.
	ErrEmptyQuery = errors.New("custom query mode selected but query is empty")

	// ErrNoFields is returned when the resolved field list is empty.
	ErrNoFields = errors.New("resolved field list is empty")
)

// CRM is the query hook the task authenticates and fetches through.
type CRM interface {
	SignIn(ctx context.Context) error

	ListFields(ctx context.Context, object string) ([]string, error)

	FetchObject(ctx context.Context, object string, fields []string) (*salesforce.QueryResult, error)

	RunQuery(ctx context.Context, query string) (*salesforce.QueryResult, error)

	WriteRecords(records []salesforce.Record, path string, opts salesforce.WriteOptions) error
}

// TaskConfig holds everything one extract run needs. It is never mutated once
// Run begins; field resolution happens on a copy.
type TaskConfig struct {
	// Object is the CRM object type to fetch in named-object mode.
	Object string

	// Fields restricts the fetch to an explicit field list. When empty, the
	// full field set of Object is resolved from the CRM.
	Fields []string

	// Query, when set, overrides named-object fetching with a raw query.
	Query string

	// RelationshipObject names a nested relationship collection to flatten
	// out of a custom query result.
	RelationshipObject string

	Format string
	Bucket string
	Key    string

	IncludeFetchTime bool
	CoerceTimestamps bool
}

// ExtractTransferTask fetches records from the CRM, serializes them to a
// temporary local file, and uploads that file to object storage. Construction
// performs no I/O; every side effect happens in Run.
type ExtractTransferTask struct {
	cfg   TaskConfig
	crm   CRM
	store storage.ObjectStore
}

func NewExtractTransferTask(cfg TaskConfig, crm CRM, store storage.ObjectStore) *ExtractTransferTask {
	return &ExtractTransferTask{cfg: cfg, crm: crm, store: store}
}

// Run executes the extract as a single linear sequence. Every error is fatal
// to this execution and propagates to the caller; the temporary file is
// removed on every exit path.
func (t *ExtractTransferTask) Run(ctx context.Context) error {
	tmp, err := os.CreateTemp("", "crm-extract-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	defer func() {
		tmp.Close()
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			slog.Error("error removing temporary file", "path", tmp.Name(), "error", err)
		}
	}()
	defer t.store.Close()

	if err := t.crm.SignIn(ctx); err != nil {
		return fmt.Errorf("failed to sign in to crm: %w", err)
	}

	fields := t.cfg.Fields
	if len(fields) == 0 {
		fields, err = t.crm.ListFields(ctx, t.cfg.Object)
		if err != nil {
			return fmt.Errorf("failed to list fields for object %s: %w", t.cfg.Object, err)
		}
	}
	if len(fields) == 0 {
		return fmt.Errorf("%w for object %s", ErrNoFields, t.cfg.Object)
	}

	slog.Info("fetching records from crm", "object", t.cfg.Object, "fields", len(fields), "custom_query", t.cfg.Query != "")

	var result *salesforce.QueryResult
	if t.cfg.Query != "" {
		result, err = t.customQuery(ctx, t.cfg.Query)
	} else {
		result, err = t.crm.FetchObject(ctx, t.cfg.Object, fields)
	}
	if err != nil {
		return fmt.Errorf("failed to fetch records: %w", err)
	}

	slog.Info("writing query results", "path", tmp.Name(), "records", len(result.Records), "format", t.cfg.Format)

	if err := t.crm.WriteRecords(result.Records, tmp.Name(), salesforce.WriteOptions{
		Format:           t.cfg.Format,
		CoerceTimestamps: t.cfg.CoerceTimestamps,
		IncludeFetchTime: t.cfg.IncludeFetchTime,
	}); err != nil {
		return fmt.Errorf("failed to serialize records: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to flush output file: %w", err)
	}

	if err := t.store.UploadFile(ctx, tmp.Name(), t.cfg.Bucket, t.cfg.Key, true); err != nil {
		return fmt.Errorf("failed to upload output file: %w", err)
	}

	slog.Info("extract finished", "bucket", t.cfg.Bucket, "key", t.cfg.Key)

	return nil
}

// customQuery runs a raw query, flattening the configured relationship
// collection out of the result. It signs in again first: re-login is
// idempotent, and raw queries may run against a session that was established
// much earlier in the execution.
func (t *ExtractTransferTask) customQuery(ctx context.Context, query string) (*salesforce.QueryResult, error) {
	if query == "" {
		return nil, ErrEmptyQuery
	}

	if err := t.crm.SignIn(ctx); err != nil {
		return nil, fmt.Errorf("failed to sign in to crm: %w", err)
	}

	result, err := t.crm.RunQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	if t.cfg.RelationshipObject != "" {
		result.Records = salesforce.FlattenRelationship(result.Records, t.cfg.RelationshipObject)
	}

	return result, nil
}
