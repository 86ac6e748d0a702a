package models

import (
	"time"

	"github.com/google/uuid"
)

// ExtractTaskPayload is the message published to the extract queue. It carries
// the run id used for status bookkeeping plus the full task configuration.
type ExtractTaskPayload struct {
	RunId uuid.UUID

	Object             string
	Fields             []string
	Query              string
	RelationshipObject string
	Format             string
	Bucket             string
	Key                string
	IncludeFetchTime   bool
	CoerceTimestamps   bool
}

type ExtractRequest struct {
	Object             string
	Fields             []string
	Query              string
	RelationshipObject string
	Format             string
	Bucket             string
	Key                string
	IncludeFetchTime   bool
	CoerceTimestamps   bool
}

type ExtractSubmitResponse struct {
	Message string
	RunId   uuid.UUID
}

type ExtractRun struct {
	RunId    uuid.UUID
	TaskName string
	Object   string
	Bucket   string
	Key      string
	Format   string
	Status   string
	Error    string `json:"Error,omitempty"`

	CreationTime   time.Time
	CompletionTime *time.Time `json:"CompletionTime,omitempty"`
}

type ListRunsResponse struct {
	Runs []ExtractRun
}

type TaskParam struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

type TaskDefinitionInfo struct {
	Name   string
	Queue  string
	Params []TaskParam
}
