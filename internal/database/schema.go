package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	JobQueued    string = "QUEUED"
	JobRunning   string = "RUNNING"
	JobCompleted string = "COMPLETED"
	JobFailed    string = "FAILED"
)

// ExtractRun records one scheduled execution of an extract task. The task
// itself keeps no state; this history belongs to the scheduling layer.
type ExtractRun struct {
	Id uuid.UUID `gorm:"type:uuid;primaryKey"`

	TaskName string `gorm:"size:64;not null"`

	Object    string
	Bucket    string `gorm:"not null"`
	ObjectKey string `gorm:"not null"`
	Format    string `gorm:"size:16"`

	Status string `gorm:"size:20;not null"`

	// Config is the full payload the run was submitted with.
	Config datatypes.JSON

	Error sql.NullString

	CreationTime   time.Time
	CompletionTime sql.NullTime
}
