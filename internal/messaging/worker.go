package messaging

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"crm-exporter/internal/database"
	"crm-exporter/internal/scheduler"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Worker consumes tasks from the queue and executes them through the
// scheduler registry, recording run status in the database. Failed runs are
// nacked without requeue; retry policy belongs to whatever schedules runs.
type Worker struct {
	db       *gorm.DB
	registry *scheduler.Registry
	receiver Receiver
}

func NewWorker(db *gorm.DB, registry *scheduler.Registry, receiver Receiver) *Worker {
	return &Worker{db: db, registry: registry, receiver: receiver}
}

// Start consumes tasks with the given number of goroutines and blocks until
// the receiver's channel is closed.
func (w *Worker) Start(concurrency int) {
	if concurrency <= 0 {
		concurrency = 1
	}

	slog.Info("starting worker", "concurrency", concurrency)

	var wg sync.WaitGroup
	wg.Add(concurrency)
	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			for task := range w.receiver.Tasks() {
				w.ProcessTask(task)
			}
		}()
	}
	wg.Wait()
}

func (w *Worker) Stop() {
	slog.Info("stopping worker")
	w.receiver.Close()
}

// runEnvelope is the bookkeeping part of every payload; the rest is decoded
// by the task definition's factory.
type runEnvelope struct {
	RunId uuid.UUID
}

func (w *Worker) ProcessTask(task Task) {
	ctx := context.Background()

	def, ok := w.registry.Lookup(task.Type())
	if !ok {
		slog.Error("received task for unregistered queue", "queue", task.Type())
		if err := task.Reject(); err != nil {
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	var envelope runEnvelope
	if err := json.Unmarshal(task.Payload(), &envelope); err != nil {
		slog.Error("error unmarshalling task envelope", "queue", task.Type(), "error", err)
		if err := task.Reject(); err != nil { // Discard malformed message
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	if err := database.UpdateRunStatus(ctx, w.db, envelope.RunId, database.JobRunning); err != nil {
		slog.Error("error marking run as running", "run_id", envelope.RunId, "error", err)
	}

	runnable, err := def.New(task.Payload())
	if err != nil {
		slog.Error("error building task from payload", "task", def.Name, "error", err)
		w.failRun(ctx, envelope.RunId, err)
		if err := task.Reject(); err != nil { // Payload will not get better on redelivery
			slog.Error("error rejecting message from queue", "error", err)
		}
		return
	}

	slog.Info("executing task", "task", def.Name, "run_id", envelope.RunId)

	if err := runnable.Run(ctx); err != nil {
		slog.Error("task execution failed", "task", def.Name, "run_id", envelope.RunId, "error", err)
		w.failRun(ctx, envelope.RunId, err)
		if err := task.Nack(); err != nil {
			slog.Error("error reporting processing failure on message from queue", "error", err)
		}
		return
	}

	if err := database.UpdateRunStatus(ctx, w.db, envelope.RunId, database.JobCompleted); err != nil {
		slog.Error("error marking run as completed", "run_id", envelope.RunId, "error", err)
	}

	slog.Info("successfully processed task", "task", def.Name, "run_id", envelope.RunId)
	if err := task.Ack(); err != nil {
		slog.Error("error acknowledging message from queue", "error", err)
	}
}

func (w *Worker) failRun(ctx context.Context, runId uuid.UUID, runErr error) {
	database.SaveRunError(ctx, w.db, runId, runErr.Error())
	if err := database.UpdateRunStatus(ctx, w.db, runId, database.JobFailed); err != nil {
		slog.Error("error marking run as failed", "run_id", runId, "error", err)
	}
}
