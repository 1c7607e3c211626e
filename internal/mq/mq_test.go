package mq

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/mzaid0/Nestora/config"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend(t *testing.T) {
	ctx := context.Background()

	_, err := NewBackend(ctx, config.MQConfig{})
	assert.ErrorIs(t, err, ErrDisabled)

	backend, err := NewBackend(ctx, config.MQConfig{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, backend)

	_, err = NewBackend(ctx, config.MQConfig{Backend: "kafka"})
	assert.EqualError(t, err, `unsupported mq backend "kafka"`)

	_, err = NewBackend(ctx, config.MQConfig{Backend: BackendRabbitMQ})
	assert.EqualError(t, err, "rabbitmq url is required")

	_, err = NewBackend(ctx, config.MQConfig{Backend: BackendPubSub})
	assert.EqualError(t, err, "pubsub project id is required")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))

	attrs := headersToAttributes(amqp.Table{
		"type":  "user.signed_up",
		"raw":   []byte("bytes"),
		"count": int32(3),
	})
	assert.Equal(t, map[string]string{
		"type":  "user.signed_up",
		"raw":   "bytes",
		"count": "3",
	}, attrs)
}

func TestMemoryBackend_ReplaysBacklogThenStreams(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := backend.Publish(ctx, "users", []byte("first"), map[string]string{"type": "a"})
	require.NoError(t, err)

	received := make(chan Message, 2)
	errCh := make(chan error, 1)
	go func() {
		errCh <- backend.Subscribe(ctx, "users", func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	first := <-received
	assert.Equal(t, "first", string(first.Data))
	assert.Equal(t, "a", first.Attributes["type"])

	require.Eventually(t, func() bool {
		backend.mu.Lock()
		defer backend.mu.Unlock()
		return len(backend.subs["users"]) == 1
	}, time.Second, 5*time.Millisecond)

	_, err = backend.Publish(ctx, "users", []byte("second"), nil)
	require.NoError(t, err)
	second := <-received
	assert.Equal(t, "second", string(second.Data))
	assert.NotEqual(t, first.ID, second.ID)

	cancel()
	assert.True(t, errors.Is(<-errCh, context.Canceled))
}

func TestMemoryBackend_BacklogKeepsNewest(t *testing.T) {
	backend := NewMemoryBackend()
	defer backend.Close()

	ctx := context.Background()
	total := maxPending + 10
	for i := 1; i <= total; i++ {
		_, err := backend.Publish(ctx, "users", []byte(strconv.Itoa(i)), nil)
		require.NoError(t, err)
	}

	backend.mu.Lock()
	backlog := backend.pending["users"]
	backend.mu.Unlock()

	require.Len(t, backlog, maxPending)
	assert.Equal(t, "11", string(backlog[0].Data))
	assert.Equal(t, strconv.Itoa(total), string(backlog[len(backlog)-1].Data))
}

func TestMemoryBackend_Closed(t *testing.T) {
	backend := NewMemoryBackend()
	require.NoError(t, backend.Close())
	require.NoError(t, backend.Close())

	_, err := backend.Publish(context.Background(), "users", nil, nil)
	assert.ErrorIs(t, err, errMemoryClosed)
	assert.ErrorIs(t, backend.Subscribe(context.Background(), "users", nil), errMemoryClosed)
}
