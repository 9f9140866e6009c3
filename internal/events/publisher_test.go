package events

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPublisher(t *testing.T) (*Publisher, *redis.Client) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewPublisher(client, "coph:import:events", zap.NewNop()), client
}

func TestPublish(t *testing.T) {
	publisher, client := newTestPublisher(t)

	err := publisher.Publish(context.Background(), RunEvent{
		RunID:   "run-123",
		Event:   EventRunCommitted,
		Device:  "amazfit_bip",
		User:    "anon",
		Records: 10,
		Applied: 38,
		Failed:  2,
	})
	require.NoError(t, err)

	messages, err := client.XRange(context.Background(), "coph:import:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 1)

	var event RunEvent
	require.NoError(t, json.Unmarshal([]byte(messages[0].Values["data"].(string)), &event))
	assert.Equal(t, "run-123", event.RunID)
	assert.Equal(t, EventRunCommitted, event.Event)
	assert.Equal(t, 38, event.Applied)
	assert.Equal(t, 2, event.Failed)
	assert.NotEmpty(t, messages[0].Values["timestamp"])
}

func TestPublish_OrderedStream(t *testing.T) {
	publisher, client := newTestPublisher(t)

	for _, name := range []string{EventRunStarted, EventRunCommitted, EventMappingsSaved} {
		err := publisher.Publish(context.Background(), RunEvent{RunID: "run-123", Event: name})
		require.NoError(t, err)
	}

	messages, err := client.XRange(context.Background(), "coph:import:events", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, messages, 3)

	var got []string
	for _, m := range messages {
		var event RunEvent
		require.NoError(t, json.Unmarshal([]byte(m.Values["data"].(string)), &event))
		got = append(got, event.Event)
	}
	assert.Equal(t, []string{EventRunStarted, EventRunCommitted, EventMappingsSaved}, got)
}

func TestPublish_ConnectionError(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	publisher := NewPublisher(client, "coph:import:events", zap.NewNop())

	mr.Close()
	err = publisher.Publish(context.Background(), RunEvent{RunID: "run-123", Event: EventRunStarted})
	require.Error(t, err)
}
