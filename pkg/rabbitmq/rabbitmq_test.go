package rabbitmq

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobEncoding(t *testing.T) {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	body, err := encodeJob("abc123", at)
	require.NoError(t, err)

	job, err := decodeJob(body)
	require.NoError(t, err)
	assert.Equal(t, "abc123", job.OrderID)
	assert.True(t, at.Equal(job.EnqueuedAt))

	_, err = encodeJob("", at)
	assert.Error(t, err)
	_, err = decodeJob([]byte(`{"enqueued_at":"2024-05-01T10:00:00Z"}`))
	assert.ErrorContains(t, err, "missing order_id")
	_, err = decodeJob([]byte(`not json`))
	assert.Error(t, err)
}

func TestClientWithoutChannel(t *testing.T) {
	c := &Client{queue: DefaultQueue}
	assert.Error(t, c.Enqueue(context.Background(), "abc"))
	assert.Error(t, c.ConsumeFulfillment(context.Background(), nil))
	assert.NoError(t, c.Close())
}
