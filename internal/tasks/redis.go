package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRunTTL is how long finished runs and checkpoints stay readable.
const DefaultRunTTL = 7 * 24 * time.Hour

const (
	keyPrefix     = "apply:"
	runKeyPrefix  = keyPrefix + "run:"
	checkpointKey = keyPrefix + "checkpoint:"
	executingKey  = keyPrefix + "runs:executing"
	readyQueueKey = keyPrefix + "queue"
	delayedSetKey = keyPrefix + "queue:delayed"
	maxTxRetries  = 10
	promoteBatch  = 100
)

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// RedisStore keeps each run as a JSON document with a TTL. Runs in EXECUTING
// are also indexed in a sorted set scored by start time for the crash reaper.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisStore creates a RedisStore. A zero ttl uses DefaultRunTTL.
func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultRunTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func runKey(id string) string { return runKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, run *Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, runKey(run.ID), data, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	if !ok {
		return fmt.Errorf("create run: %s already exists", run.ID)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Run, error) {
	return getRun(ctx, s.rdb, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getRun(ctx context.Context, c getter, id string) (*Run, error) {
	data, err := c.Get(ctx, runKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	var run Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &run, nil
}

// Update runs fn inside WATCH/MULTI and retries when another writer wins.
func (s *RedisStore) Update(ctx context.Context, id string, fn func(*Run) error) (*Run, error) {
	key := runKey(id)
	var result *Run
	var fnErr error

	txf := func(tx *redis.Tx) error {
		run, err := getRun(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := fn(run); err != nil {
			result, fnErr = run, err
			return nil
		}
		run.UpdatedAt = time.Now().UTC()
		data, err := json.Marshal(run)
		if err != nil {
			return fmt.Errorf("encode run: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			if run.Status == StatusExecuting && run.StartedAt != nil {
				pipe.ZAdd(ctx, executingKey, redis.Z{Score: float64(run.StartedAt.Unix()), Member: id})
			} else {
				pipe.ZRem(ctx, executingKey, id)
			}
			return nil
		})
		if err == nil {
			result, fnErr = run, nil
		}
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.rdb.Watch(ctx, txf, key)
		if err == nil {
			return result, fnErr
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, fmt.Errorf("update run %s: too much contention", id)
}

func (s *RedisStore) ExecutingBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, executingKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("list executing runs: %w", err)
	}
	return ids, nil
}

func (s *RedisStore) SaveCheckpoint(ctx context.Context, id string, data []byte) error {
	if err := s.rdb.Set(ctx, checkpointKey+id, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadCheckpoint(ctx context.Context, id string) ([]byte, error) {
	data, err := s.rdb.Get(ctx, checkpointKey+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	return data, nil
}

// RedisQueue is a list of ready ids (LPUSH/BRPOP) plus a sorted set of
// delayed ids scored by their due time.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue creates a RedisQueue.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

func (q *RedisQueue) Enqueue(ctx context.Context, id string) error {
	if err := q.rdb.LPush(ctx, readyQueueKey, id).Err(); err != nil {
		return fmt.Errorf("enqueue run: %w", err)
	}
	return nil
}

func (q *RedisQueue) EnqueueAt(ctx context.Context, id string, at time.Time) error {
	err := q.rdb.ZAdd(ctx, delayedSetKey, redis.Z{Score: float64(at.UnixMilli()), Member: id}).Err()
	if err != nil {
		return fmt.Errorf("schedule run: %w", err)
	}
	return nil
}

func (q *RedisQueue) Dequeue(ctx context.Context, wait time.Duration) (string, error) {
	res, err := q.rdb.BRPop(ctx, wait, readyQueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("dequeue run: %w", err)
	}
	// BRPOP returns [key, value].
	return res[1], nil
}

// PromoteDue is safe to run from several processes: only the caller whose
// ZREM removes an id pushes it.
func (q *RedisQueue) PromoteDue(ctx context.Context, now time.Time) (int, error) {
	ids, err := q.rdb.ZRangeByScore(ctx, delayedSetKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: promoteBatch,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("list due runs: %w", err)
	}

	promoted := 0
	for _, id := range ids {
		removed, err := q.rdb.ZRem(ctx, delayedSetKey, id).Result()
		if err != nil {
			return promoted, fmt.Errorf("claim due run: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.Enqueue(ctx, id); err != nil {
			return promoted, err
		}
		promoted++
	}
	return promoted, nil
}
