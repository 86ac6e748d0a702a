package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"crm-exporter/internal/database"
	"crm-exporter/internal/extract"
	"crm-exporter/internal/messaging"
	"crm-exporter/internal/salesforce"
	"crm-exporter/internal/scheduler"
	"crm-exporter/pkg/models"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BackendService struct {
	db        *gorm.DB
	publisher messaging.Publisher
	registry  *scheduler.Registry
}

func NewBackendService(db *gorm.DB, publisher messaging.Publisher, registry *scheduler.Registry) *BackendService {
	return &BackendService{db: db, publisher: publisher, registry: registry}
}

func (s *BackendService) AddRoutes(r chi.Router) {
	r.Get("/health", RestHandler(func(r *http.Request) (any, error) { return nil, nil }))
	r.Route("/extracts", func(r chi.Router) {
		r.Post("/", RestHandler(s.SubmitExtract))
		r.Get("/", RestHandler(s.ListRuns))
		r.Get("/{run_id}", RestHandler(s.GetRun))
	})
	r.Get("/tasks", RestHandler(s.ListTasks))
}

func validFormat(format string) bool {
	switch format {
	case "", salesforce.FormatCSV, salesforce.FormatJSON, salesforce.FormatNDJSON:
		return true
	default:
		return false
	}
}

func (s *BackendService) SubmitExtract(r *http.Request) (any, error) {
	req, err := ParseRequest[models.ExtractRequest](r)
	if err != nil {
		return nil, err
	}

	if req.Object == "" && req.Query == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "either Object or Query is required")
	}
	if req.RelationshipObject != "" && req.Query == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "RelationshipObject requires a custom Query")
	}
	if req.Bucket == "" || req.Key == "" {
		return nil, CodedErrorf(http.StatusBadRequest, "Bucket and Key are required")
	}
	if !validFormat(req.Format) {
		return nil, CodedErrorf(http.StatusBadRequest, "unsupported format %q, expected csv, json, or ndjson", req.Format)
	}

	ctx := r.Context()

	payload := models.ExtractTaskPayload{
		RunId:              uuid.New(),
		Object:             req.Object,
		Fields:             req.Fields,
		Query:              req.Query,
		RelationshipObject: req.RelationshipObject,
		Format:             req.Format,
		Bucket:             req.Bucket,
		Key:                req.Key,
		IncludeFetchTime:   req.IncludeFetchTime,
		CoerceTimestamps:   req.CoerceTimestamps,
	}

	config, err := json.Marshal(payload)
	if err != nil {
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to encode run config")
	}

	run := &database.ExtractRun{
		Id:           payload.RunId,
		TaskName:     extract.TaskName,
		Object:       req.Object,
		Bucket:       req.Bucket,
		ObjectKey:    req.Key,
		Format:       req.Format,
		Status:       database.JobQueued,
		Config:       config,
		CreationTime: time.Now().UTC(),
	}

	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		slog.Error("error creating extract run", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to create extract run")
	}

	if err := s.publisher.PublishExtractTask(ctx, payload); err != nil {
		slog.Error("error publishing extract task", "run_id", payload.RunId, "error", err)
		if err := database.UpdateRunStatus(ctx, s.db, payload.RunId, database.JobFailed); err != nil {
			slog.Error("error marking unpublished run as failed", "run_id", payload.RunId, "error", err)
		}
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to enqueue extract run")
	}

	return models.ExtractSubmitResponse{
		Message: "extract run submitted",
		RunId:   payload.RunId,
	}, nil
}

type listRunsParams struct {
	Status string
	Limit  int
}

func (s *BackendService) ListRuns(r *http.Request) (any, error) {
	params, err := ParseRequestQueryParams[listRunsParams](r)
	if err != nil {
		return nil, err
	}
	if params.Limit <= 0 || params.Limit > 500 {
		params.Limit = 50
	}

	query := s.db.WithContext(r.Context()).Order("creation_time DESC").Limit(params.Limit)
	if params.Status != "" {
		query = query.Where("status = ?", params.Status)
	}

	var runs []database.ExtractRun
	if err := query.Find(&runs).Error; err != nil {
		slog.Error("error listing extract runs", "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to list extract runs")
	}

	res := models.ListRunsResponse{Runs: make([]models.ExtractRun, 0, len(runs))}
	for _, run := range runs {
		res.Runs = append(res.Runs, convertRun(run))
	}

	return res, nil
}

func (s *BackendService) GetRun(r *http.Request) (any, error) {
	runId, err := uuid.Parse(chi.URLParam(r, "run_id"))
	if err != nil {
		return nil, CodedErrorf(http.StatusBadRequest, "invalid run id")
	}

	var run database.ExtractRun
	if err := s.db.WithContext(r.Context()).First(&run, "id = ?", runId).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, CodedErrorf(http.StatusNotFound, "extract run %s not found", runId)
		}
		slog.Error("error fetching extract run", "run_id", runId, "error", err)
		return nil, CodedErrorf(http.StatusInternalServerError, "failed to fetch extract run")
	}

	return convertRun(run), nil
}

func (s *BackendService) ListTasks(r *http.Request) (any, error) {
	defs := s.registry.Definitions()

	infos := make([]models.TaskDefinitionInfo, 0, len(defs))
	for _, def := range defs {
		info := models.TaskDefinitionInfo{Name: def.Name, Queue: def.Queue}
		for _, param := range def.Params {
			info.Params = append(info.Params, models.TaskParam{
				Name:        param.Name,
				Type:        param.Type,
				Required:    param.Required,
				Description: param.Description,
			})
		}
		infos = append(infos, info)
	}

	return infos, nil
}

func convertRun(run database.ExtractRun) models.ExtractRun {
	res := models.ExtractRun{
		RunId:        run.Id,
		TaskName:     run.TaskName,
		Object:       run.Object,
		Bucket:       run.Bucket,
		Key:          run.ObjectKey,
		Format:       run.Format,
		Status:       run.Status,
		CreationTime: run.CreationTime,
	}
	if run.Error.Valid {
		res.Error = run.Error.String
	}
	if run.CompletionTime.Valid {
		completion := run.CompletionTime.Time
		res.CompletionTime = &completion
	}
	return res
}
