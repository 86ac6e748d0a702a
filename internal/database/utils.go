package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func UpdateRunStatus(ctx context.Context, txn *gorm.DB, runId uuid.UUID, status string) error {
	updates := map[string]any{"status": status}
	if status == JobCompleted || status == JobFailed {
		updates["completion_time"] = time.Now().UTC()
	}

	if err := txn.WithContext(ctx).Model(&ExtractRun{Id: runId}).Updates(updates).Error; err != nil {
		slog.Error("error updating run status", "run_id", runId, "status", status, "error", err)
		return err
	}
	return nil
}

func SaveRunError(ctx context.Context, txn *gorm.DB, runId uuid.UUID, errorMessage string) {
	if err := txn.WithContext(ctx).Model(&ExtractRun{Id: runId}).Update("error", errorMessage).Error; err != nil {
		slog.Error("error saving run error", "run_id", runId, "error", err)
	}
}
