package events

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	closed bool
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestKafkaPublisherFlushesOnClose(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaPublisher(w, 4)

	for _, typ := range []string{EventOrderCreated, EventOrderApproved, EventOrderFulfilled} {
		env, err := NewEnvelope(typ, "pixstore", "order1", OrderPayload{OrderID: "order1", Status: typ})
		require.NoError(t, err)
		require.NoError(t, p.Publish(context.Background(), env))
	}
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	require.Len(t, w.msgs, 3)
	assert.True(t, w.closed)
	for _, m := range w.msgs {
		assert.Equal(t, "order1", string(m.Key))
	}

	var env Envelope
	require.NoError(t, json.Unmarshal(w.msgs[1].Value, &env))
	assert.Equal(t, EventOrderApproved, env.EventType)
	assert.Equal(t, 1, env.EventVersion)
	assert.NotEmpty(t, env.EventID)

	payload, err := UnwrapPayload[OrderPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "order1", payload.OrderID)

	err = p.Publish(context.Background(), env)
	assert.ErrorIs(t, err, ErrPublisherClosed)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), Envelope{}))
}
