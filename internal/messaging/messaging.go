package messaging

import (
	"context"
	"time"

	"crm-exporter/pkg/models"
)

const (
	ExtractQueue    = "extract_queue"
	RetryDelay      = 5 * time.Second
	MaxConnectRetry = 5
)

type Task interface {
	Type() string

	Payload() []byte

	Ack() error

	Nack() error

	Reject() error
}

type Publisher interface {
	PublishExtractTask(ctx context.Context, payload models.ExtractTaskPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
