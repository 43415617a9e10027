package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"swap-engine/internal/domain"
)

// dedupTTL bounds how long an identity key can outlive its job if the
// process dies between dequeue and terminal mark.
const dedupTTL = 24 * time.Hour

// RedisStore is a Redis-backed JobStore. The backlog is a list drained
// with BRPOP; per-order identity keys implement enqueue idempotency and
// plain counters track terminal outcomes.
type RedisStore struct {
	client *redis.Client
	prefix string
	logger *log.Logger
}

// Compile-time interface check.
var _ JobStore = (*RedisStore)(nil)

// NewRedisStore creates a job store on the given Redis client. The
// store takes ownership of the client and closes it in Close.
func NewRedisStore(client *redis.Client, prefix string, logger *log.Logger) *RedisStore {
	if prefix == "" {
		prefix = "swapq"
	}
	if logger == nil {
		logger = log.Default()
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		logger: logger,
	}
}

func (s *RedisStore) waitingKey() string          { return s.prefix + ":waiting" }
func (s *RedisStore) activeKey() string           { return s.prefix + ":active" }
func (s *RedisStore) completedKey() string        { return s.prefix + ":completed" }
func (s *RedisStore) failedKey() string           { return s.prefix + ":failed" }
func (s *RedisStore) jobKey(orderID string) string { return s.prefix + ":job:" + orderID }

// Enqueue claims the order's identity key and pushes the job onto the
// backlog. A job whose key is already claimed is rejected.
func (s *RedisStore) Enqueue(ctx context.Context, job domain.Job) error {
	ok, err := s.client.SetNX(ctx, s.jobKey(job.OrderID), "1", dedupTTL).Result()
	if err != nil {
		return fmt.Errorf("claim job key: %w", err)
	}
	if !ok {
		return ErrDuplicateJob
	}

	payload, err := json.Marshal(job)
	if err != nil {
		s.release(ctx, job.OrderID)
		return fmt.Errorf("marshal job: %w", err)
	}

	if err := s.client.LPush(ctx, s.waitingKey(), payload).Err(); err != nil {
		s.release(ctx, job.OrderID)
		return fmt.Errorf("push job: %w", err)
	}
	return nil
}

// Dequeue blocks on the backlog until a job arrives or the context is
// done.
func (s *RedisStore) Dequeue(ctx context.Context) (domain.Job, error) {
	res, err := s.client.BRPop(ctx, 0, s.waitingKey()).Result()
	if err != nil {
		return domain.Job{}, fmt.Errorf("pop job: %w", err)
	}
	// BRPOP returns [key, value].
	var job domain.Job
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return domain.Job{}, fmt.Errorf("unmarshal job: %w", err)
	}

	if err := s.client.Incr(ctx, s.activeKey()).Err(); err != nil {
		s.logger.Printf("[queue] failed to bump active counter: %v", err)
	}
	return job, nil
}

// MarkCompleted releases the identity key and counts the success.
func (s *RedisStore) MarkCompleted(ctx context.Context, job domain.Job) error {
	return s.markDone(ctx, job, s.completedKey())
}

// MarkFailed releases the identity key and counts the failure.
func (s *RedisStore) MarkFailed(ctx context.Context, job domain.Job) error {
	return s.markDone(ctx, job, s.failedKey())
}

func (s *RedisStore) markDone(ctx context.Context, job domain.Job, counterKey string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.jobKey(job.OrderID))
	pipe.Decr(ctx, s.activeKey())
	pipe.Incr(ctx, counterKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mark job done: %w", err)
	}
	return nil
}

// Stats returns current job counts.
func (s *RedisStore) Stats(ctx context.Context) (Stats, error) {
	waiting, err := s.client.LLen(ctx, s.waitingKey()).Result()
	if err != nil {
		return Stats{}, fmt.Errorf("read backlog length: %w", err)
	}

	return Stats{
		Waiting:   waiting,
		Active:    s.counter(ctx, s.activeKey()),
		Completed: s.counter(ctx, s.completedKey()),
		Failed:    s.counter(ctx, s.failedKey()),
	}, nil
}

// Close closes the underlying Redis client, which unblocks pending
// BRPOP calls.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// release drops the identity key after a failed enqueue.
func (s *RedisStore) release(ctx context.Context, orderID string) {
	if err := s.client.Del(ctx, s.jobKey(orderID)).Err(); err != nil {
		s.logger.Printf("[queue] failed to release job key for %s: %v", orderID, err)
	}
}

// counter reads an integer key, treating a missing key as zero.
func (s *RedisStore) counter(ctx context.Context, key string) int64 {
	n, err := s.client.Get(ctx, key).Int64()
	if err != nil && err != redis.Nil {
		s.logger.Printf("[queue] failed to read counter %s: %v", key, err)
	}
	return n
}
