package messaging

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryQueue(t *testing.T) {
	queue := NewInMemoryQueue()
	defer queue.Close()

	jobId := uuid.New()
	require.NoError(t, queue.PublishBreakupTask(context.Background(), BreakupTaskPayload{JobId: jobId}))

	task := <-queue.Tasks()
	assert.Equal(t, BreakupQueue, task.Type())

	var payload BreakupTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	assert.Equal(t, jobId, payload.JobId)

	assert.NoError(t, task.Ack())
}
