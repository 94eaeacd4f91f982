//go:build integration

package tasks

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	rdb, err := NewRedisClient(context.Background(), url)
	require.NoError(t, err)
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func TestIntegration_RedisStore(t *testing.T) {
	rdb := getTestRedis(t)
	store := NewRedisStore(rdb, time.Hour)
	ctx := context.Background()

	run := &Run{ID: NewRunID(), Task: echoTask, Status: StatusQueued, MaxAttempts: 3, CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Create(ctx, run))
	assert.Error(t, store.Create(ctx, run), "ids are unique")

	started := time.Now().Add(-time.Hour).UTC()
	updated, err := store.Update(ctx, run.ID, func(r *Run) error {
		r.Status = StatusExecuting
		r.StartedAt = &started
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StatusExecuting, updated.Status)

	ids, err := store.ExecutingBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{run.ID}, ids)

	_, err = store.Update(ctx, run.ID, func(r *Run) error {
		r.Status = StatusCompleted
		return nil
	})
	require.NoError(t, err)
	ids, err = store.ExecutingBefore(ctx, time.Now())
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = store.Get(ctx, "run_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	data, err := store.LoadCheckpoint(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, data)
	require.NoError(t, store.SaveCheckpoint(ctx, run.ID, []byte(`{"a":1}`)))
	data, err = store.LoadCheckpoint(ctx, run.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(data))
}

func TestIntegration_RedisQueue(t *testing.T) {
	rdb := getTestRedis(t)
	q := NewRedisQueue(rdb)
	ctx := context.Background()

	require.NoError(t, q.Enqueue(ctx, "run_a"))
	require.NoError(t, q.Enqueue(ctx, "run_b"))

	id, err := q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "run_a", id, "first in, first out")

	id, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "run_b", id)

	id, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, q.EnqueueAt(ctx, "run_due", time.Now().Add(-time.Second)))
	require.NoError(t, q.EnqueueAt(ctx, "run_later", time.Now().Add(time.Hour)))
	n, err := q.PromoteDue(ctx, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	id, err = q.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "run_due", id)
}

func TestIntegration_RuntimeOnRedis(t *testing.T) {
	rdb := getTestRedis(t)
	rt := NewRuntime(NewRedisStore(rdb, time.Hour), NewRedisQueue(rdb), Options{DequeueWait: time.Second}, nil)
	rt.Register(echoTask, func(ctx context.Context, rc *RunContext) (any, error) {
		if err := rc.SetMetadata(ctx, map[string]int{"progress": 100}); err != nil {
			return nil, err
		}
		return "done", nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = rt.Start(ctx) }()

	run, err := rt.Trigger(context.Background(), echoTask, nil, TriggerOptions{})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		got, err := rt.Retrieve(context.Background(), run.ID)
		return err == nil && got.Status == StatusCompleted
	}, 5*time.Second, 50*time.Millisecond)

	got, err := rt.Retrieve(context.Background(), run.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `"done"`, string(got.Output))
	assert.JSONEq(t, `{"progress": 100}`, string(got.Metadata))
}
