package extract

import (
	"encoding/json"
	"fmt"

	"crm-exporter/internal/messaging"
	"crm-exporter/internal/scheduler"
	"crm-exporter/internal/storage"
	"crm-exporter/pkg/models"
)

const TaskName = "salesforce_to_s3"

// Definition registers the extract task with the scheduler: its name, queue,
// parameter schema, and a factory that builds a task from a queued payload.
// Hooks are constructed per execution since each run signs in and releases
// its storage connection independently.
func Definition(newCRM func() CRM, newStore func() (storage.ObjectStore, error)) scheduler.TaskDefinition {
	return scheduler.TaskDefinition{
		Name:  TaskName,
		Queue: messaging.ExtractQueue,
		Params: []scheduler.ParamSpec{
			{Name: "Object", Type: "string", Required: true, Description: "CRM object type to fetch"},
			{Name: "Fields", Type: "[]string", Description: "explicit field list; all fields when empty"},
			{Name: "Query", Type: "string", Description: "raw query overriding the default object fetch"},
			{Name: "RelationshipObject", Type: "string", Description: "nested relationship collection to flatten out of a custom query result"},
			{Name: "Format", Type: "string", Description: "output format: csv, json, or ndjson"},
			{Name: "Bucket", Type: "string", Required: true, Description: "destination bucket"},
			{Name: "Key", Type: "string", Required: true, Description: "destination object key"},
			{Name: "IncludeFetchTime", Type: "bool", Description: "stamp a fetch-time field on every record"},
			{Name: "CoerceTimestamps", Type: "bool", Description: "coerce date and datetime values to unix timestamps"},
		},
		New: func(payload []byte) (scheduler.Runnable, error) {
			var p models.ExtractTaskPayload
			if err := json.Unmarshal(payload, &p); err != nil {
				return nil, fmt.Errorf("failed to unmarshal extract task payload: %w", err)
			}

			store, err := newStore()
			if err != nil {
				return nil, fmt.Errorf("failed to create object store: %w", err)
			}

			cfg := TaskConfig{
				Object:             p.Object,
				Fields:             p.Fields,
				Query:              p.Query,
				RelationshipObject: p.RelationshipObject,
				Format:             p.Format,
				Bucket:             p.Bucket,
				Key:                p.Key,
				IncludeFetchTime:   p.IncludeFetchTime,
				CoerceTimestamps:   p.CoerceTimestamps,
			}

			return NewExtractTransferTask(cfg, newCRM(), store), nil
		},
	}
}
