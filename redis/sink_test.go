package redis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reugn/go-heartbeat"
	"github.com/reugn/go-heartbeat/internal/assert"
)

// fakeClient keeps hashes in memory.
type fakeClient struct {
	hashes  map[string]map[string]string
	expires map[string]time.Duration
	err     error
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		hashes:  make(map[string]map[string]string),
		expires: make(map[string]time.Duration),
	}
}

func (c *fakeClient) HSet(ctx context.Context, key string, values ...any) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	if c.err != nil {
		cmd.SetErr(c.err)
		return cmd
	}
	hash, ok := c.hashes[key]
	if !ok {
		hash = make(map[string]string)
		c.hashes[key] = hash
	}
	for i := 0; i+1 < len(values); i += 2 {
		hash[fmt.Sprint(values[i])] = fmt.Sprint(values[i+1])
	}
	cmd.SetVal(int64(len(values) / 2))
	return cmd
}

func (c *fakeClient) HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd {
	cmd := redis.NewMapStringStringCmd(ctx)
	if c.err != nil {
		cmd.SetErr(c.err)
		return cmd
	}
	cmd.SetVal(c.hashes[key])
	return cmd
}

func (c *fakeClient) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	cmd := redis.NewBoolCmd(ctx)
	c.expires[key] = expiration
	cmd.SetVal(true)
	return cmd
}

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestHashSink(t *testing.T) {
	client := newFakeClient()
	sink, err := NewHashSink(context.Background(), client, "heartbeat:dev-1", time.Hour,
		discardLogger)
	assert.NoError(t, err)

	assert.NoError(t, sink.SetUnsigned(heartbeat.CPUUsagePct, 1234))
	assert.NoError(t, sink.SetUnsigned(heartbeat.TimerTaskStackFreeBytes, 640))
	assert.NoError(t, sink.SetUnsigned(heartbeat.CPUUsagePct, 7500))

	values, err := sink.Load()
	assert.NoError(t, err)
	assert.Equal(t, map[string]uint32{
		"cpu_usage_pct":               7500,
		"timer_task_stack_free_bytes": 640,
	}, values)
	assert.Equal(t, time.Hour, client.expires["heartbeat:dev-1"])
}

func TestHashSink_Errors(t *testing.T) {
	errConn := errors.New("connection refused")
	client := newFakeClient()
	client.err = errConn

	sink, err := NewHashSink(context.Background(), client, "heartbeat", 0, discardLogger)
	assert.NoError(t, err)

	err = sink.SetUnsigned(heartbeat.CPUUsagePct, 1)
	assert.ErrorIs(t, err, errConn)
	assert.ErrorContains(t, err, "cpu_usage_pct")

	_, err = sink.Load()
	assert.ErrorIs(t, err, errConn)
	assert.Equal(t, 0, len(client.expires))
}

func TestHashSink_InvalidValue(t *testing.T) {
	client := newFakeClient()
	client.hashes["heartbeat"] = map[string]string{"cpu_usage_pct": "n/a"}

	sink, err := NewHashSink(context.Background(), client, "heartbeat", 0, discardLogger)
	assert.NoError(t, err)

	_, err = sink.Load()
	assert.ErrorContains(t, err, "cpu_usage_pct")
}

func TestNewHashSink_InvalidArguments(t *testing.T) {
	_, err := NewHashSink(context.Background(), nil, "heartbeat", 0, nil)
	assert.ErrorContains(t, err, "nil")

	_, err = NewHashSink(context.Background(), newFakeClient(), "", 0, nil)
	assert.ErrorContains(t, err, "empty")
}
