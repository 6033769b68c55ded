package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jupark12/go-content-queue/models"
	"github.com/redis/go-redis/v9"
)

// maxUpdateRetries bounds optimistic retries when a watched key changes.
const maxUpdateRetries = 50

// RedisStore keeps each job as a JSON string and indexes ids in a sorted set
// scored by creation time.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore uses keys under prefix.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) jobKey(id string) string {
	return s.prefix + "job:" + id
}

func (s *RedisStore) indexKey() string {
	return s.prefix + "jobs"
}

func (s *RedisStore) Create(ctx context.Context, job *models.Job) error {
	doc, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", job.ID, err)
	}

	ok, err := s.client.SetNX(ctx, s.jobKey(job.ID), doc, 0).Result()
	if err != nil {
		return fmt.Errorf("store job %s: %w", job.ID, err)
	}
	if !ok {
		return fmt.Errorf("create job %s: %w", job.ID, ErrDuplicateJob)
	}

	member := redis.Z{Score: float64(job.CreatedAt.UnixNano()), Member: job.ID}
	if err := s.client.ZAdd(ctx, s.indexKey(), member).Err(); err != nil {
		return fmt.Errorf("index job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*models.Job, error) {
	doc, err := s.client.Get(ctx, s.jobKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("get job %s: %w", id, err)
	}
	return decodeJob(doc)
}

func (s *RedisStore) List(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("list job ids: %w", err)
	}

	jobs := make([]*models.Job, 0, len(ids))
	if len(ids) == 0 {
		return jobs, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.jobKey(id)
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load jobs: %w", err)
	}

	for _, v := range values {
		doc, ok := v.(string)
		if !ok {
			continue
		}
		job, err := decodeJob([]byte(doc))
		if err != nil {
			return nil, err
		}
		if status != "" && job.Status != status {
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// Update uses WATCH/MULTI and retries when another writer wins the race.
func (s *RedisStore) Update(ctx context.Context, id string, fn UpdateFunc) (*models.Job, error) {
	key := s.jobKey(id)
	var updated *models.Job

	txf := func(tx *redis.Tx) error {
		doc, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return fmt.Errorf("job %s: %w", id, models.ErrNotFound)
			}
			return fmt.Errorf("get job %s: %w", id, err)
		}

		job, err := decodeJob(doc)
		if err != nil {
			return err
		}
		if err := fn(job); err != nil {
			return err
		}

		next, err := json.Marshal(job)
		if err != nil {
			return fmt.Errorf("marshal job %s: %w", id, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, 0)
			return nil
		})
		if err != nil {
			return err
		}
		updated = job
		return nil
	}

	for range maxUpdateRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, fmt.Errorf("update job %s: too much contention", id)
}
