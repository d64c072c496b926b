package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/go-wuieval/pkg/events"
)

// mockStreamClient records XADD calls in memory.
type mockStreamClient struct {
	mu    sync.Mutex
	calls []*redis.XAddArgs
	err   error
}

// XAdd returns a sequential entry id, or the configured error.
func (m *mockStreamClient) XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd {
	m.mu.Lock()
	defer m.mu.Unlock()

	cmd := redis.NewStringCmd(ctx, "xadd", a.Stream)
	if m.err != nil {
		cmd.SetErr(m.err)
		return cmd
	}
	m.calls = append(m.calls, a)
	cmd.SetVal("1-" + string(rune('0'+len(m.calls))))
	return cmd
}

func TestNewRedisStreamSink(t *testing.T) {
	_, err := NewRedisStreamSink(nil, "", 0)
	assert.ErrorIs(t, err, ErrNoClient)

	sink, err := NewRedisStreamSink(&mockStreamClient{}, "", 0)
	require.NoError(t, err)
	assert.Equal(t, DefaultStream, sink.Stream())
	assert.Equal(t, int64(DefaultMaxLen), sink.maxLen)
}

func TestRedisStreamSink_Append(t *testing.T) {
	client := &mockStreamClient{}
	sink, err := NewRedisStreamSink(client, "test:events", 100)
	require.NoError(t, err)

	env, err := events.NewEnvelope("JobSucceeded", "batch.orchestrator", "batch-1", "key-1",
		map[string]string{"result_id": "r1"})
	require.NoError(t, err)

	require.NoError(t, sink.Append(context.Background(), env))

	require.Len(t, client.calls, 1)
	call := client.calls[0]
	assert.Equal(t, "test:events", call.Stream)
	assert.Equal(t, int64(100), call.MaxLen)
	assert.True(t, call.Approx)

	values, ok := call.Values.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "JobSucceeded", values["type"])
	assert.Equal(t, "key-1", values["idempotency_key"])
	assert.Equal(t, "batch-1", values["subject"])

	var decoded events.Envelope
	require.NoError(t, json.Unmarshal([]byte(values["envelope"].(string)), &decoded))
	assert.Equal(t, env.ID, decoded.ID)
	assert.JSONEq(t, `{"result_id":"r1"}`, string(decoded.Payload))
}

func TestRedisStreamSink_AppendError(t *testing.T) {
	client := &mockStreamClient{err: errors.New("connection refused")}
	sink, err := NewRedisStreamSink(client, "s", 10)
	require.NoError(t, err)

	err = sink.Append(context.Background(), events.Envelope{ID: "e1", Type: "JobFailed"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
