// Package messaging carries breakup detection jobs from the API to workers.
// Both a RabbitMQ implementation and an in-process queue for the
// single-binary deployment are provided.
package messaging

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	BreakupQueue    = "breakup_detection_queue"
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

type BreakupTaskPayload struct {
	JobId uuid.UUID
}

type Publisher interface {
	PublishBreakupTask(ctx context.Context, payload BreakupTaskPayload) error

	Close()
}

type Receiver interface {
	Tasks() <-chan Task

	Close()
}
