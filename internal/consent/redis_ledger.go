package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLedger is an optional distributed backend for consent state, letting
// a companion local process observe the same grants, grounded on the
// teacher's Redis-backed session store idiom.
type RedisLedger struct {
	client    *redis.Client
	keyPrefix string
}

// RedisConfig configures the Redis connection for a RedisLedger.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// NewRedisLedger connects to Redis and verifies reachability with a PING.
func NewRedisLedger(cfg RedisConfig) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "oneshim:consent:"
	}
	return &RedisLedger{client: client, keyPrefix: prefix}, nil
}

func (r *RedisLedger) key(category Category) string {
	return r.keyPrefix + string(category)
}

// Grant records consent for category in Redis.
func (r *RedisLedger) Grant(ctx context.Context, category Category) error {
	rec := Record{Category: category, Granted: true, GrantedAt: time.Now().UTC(), PolicyVersion: CurrentPolicyVersion}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(category), data, 0).Err()
}

// Revoke writes a tombstone for category in Redis.
func (r *RedisLedger) Revoke(ctx context.Context, category Category) error {
	existing, err := r.getRecord(ctx, category)
	if err != nil {
		return err
	}
	if existing == nil || !existing.Granted {
		return nil
	}
	now := time.Now().UTC()
	existing.RevokedAt = &now
	data, err := json.Marshal(existing)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key(category), data, 0).Err()
}

// IsValid reports whether category is currently valid, per Redis state.
func (r *RedisLedger) IsValid(ctx context.Context, category Category) bool {
	rec, err := r.getRecord(ctx, category)
	if err != nil || rec == nil {
		return false
	}
	return rec.Granted && rec.RevokedAt == nil && rec.PolicyVersion == CurrentPolicyVersion
}

func (r *RedisLedger) getRecord(ctx context.Context, category Category) (*Record, error) {
	data, err := r.client.Get(ctx, r.key(category)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

// Close releases the underlying Redis client.
func (r *RedisLedger) Close() error {
	return r.client.Close()
}
