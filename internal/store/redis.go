package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record in a hash and indexes a partition's sort keys
// in a sorted set so prefix queries stay ordered.
type RedisStore struct {
	client    RedisClient
	keyPrefix string
	now       func() time.Time
}

// RedisPipeliner is the subset of pipeline commands RedisStore issues.
type RedisPipeliner interface {
	HSet(ctx context.Context, key string, values ...any) *redis.IntCmd
	HSetNX(ctx context.Context, key, field string, value any) *redis.BoolCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	Exec(ctx context.Context) ([]redis.Cmder, error)
}

// RedisClient is the minimal client surface used by RedisStore.
type RedisClient interface {
	Pipeline() RedisPipeliner
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	ZRangeByLex(ctx context.Context, key string, by *redis.ZRangeBy) *redis.StringSliceCmd
}

// NewRedisStore constructs a Redis-backed Store.
func NewRedisStore(client RedisClient, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = "orderflow:"
	}
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
		now:       time.Now,
	}
}

func (r *RedisStore) recordKey(key Key) string {
	return r.keyPrefix + "rec:" + key.String()
}

func (r *RedisStore) partitionKey(partition string) string {
	return r.keyPrefix + "part:" + partition
}

func (r *RedisStore) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := r.now().UTC().Format(time.RFC3339Nano)
	recKey := r.recordKey(rec.Key)

	pipe := r.client.Pipeline()
	pipe.HSet(ctx, recKey, map[string]any{
		"partition":  rec.Key.Partition,
		"sort":       rec.Key.Sort,
		"status":     rec.Status,
		"data":       string(rec.Data),
		"updated_at": now,
	})
	pipe.HSetNX(ctx, recKey, "created_at", now)
	pipe.ZAdd(ctx, r.partitionKey(rec.Key.Partition), redis.Z{Score: 0, Member: rec.Key.Sort})
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisStore) Get(ctx context.Context, key Key) (Record, error) {
	fields, err := r.client.HGetAll(ctx, r.recordKey(key)).Result()
	if err != nil {
		return Record{}, err
	}
	if len(fields) == 0 {
		return Record{}, ErrNotFound
	}
	return recordFromHash(key, fields)
}

func (r *RedisStore) Query(ctx context.Context, partition, sortPrefix string) ([]Record, error) {
	by := &redis.ZRangeBy{Min: "-", Max: "+"}
	if sortPrefix != "" {
		by.Min = "[" + sortPrefix
		by.Max = "[" + sortPrefix + "\xff"
	}
	sorts, err := r.client.ZRangeByLex(ctx, r.partitionKey(partition), by).Result()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, sort := range sorts {
		key := Key{Partition: partition, Sort: sort}
		rec, err := r.Get(ctx, key)
		if err == ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (r *RedisStore) UpdateStatus(ctx context.Context, key Key, status string) (Record, error) {
	rec, err := r.Get(ctx, key)
	if err != nil {
		return Record{}, err
	}

	now := r.now().UTC()
	pipe := r.client.Pipeline()
	pipe.HSet(ctx, r.recordKey(key), map[string]any{
		"status":     status,
		"updated_at": now.Format(time.RFC3339Nano),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return Record{}, err
	}
	rec.Status = status
	rec.UpdatedAt = now
	return rec, nil
}

func recordFromHash(key Key, fields map[string]string) (Record, error) {
	rec := Record{
		Key:    key,
		Status: fields["status"],
		Data:   []byte(fields["data"]),
	}
	var err error
	if raw := fields["created_at"]; raw != "" {
		if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return Record{}, fmt.Errorf("parse created_at: %w", err)
		}
	}
	if raw := fields["updated_at"]; raw != "" {
		if rec.UpdatedAt, err = time.Parse(time.RFC3339Nano, raw); err != nil {
			return Record{}, fmt.Errorf("parse updated_at: %w", err)
		}
	}
	return rec, nil
}
