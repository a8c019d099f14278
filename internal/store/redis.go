// Package store implements the typed key/value operations spec.md §6
// names as the shared state back-end: hash, set, ordered list, and string
// keys, plus scalar increment/expire primitives (part of Backend; no
// caller in this module uses them). Redis is the only backing store
// wired here; every structured field (timings, loggedInQueues, waiting
// records) is JSON text the repository alone encodes and decodes.
package store

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Adapter is the thin typed wrapper over go-redis/v9 that the repository
// (internal/callcenter) builds on. It never interprets the structured
// JSON payloads it stores — that is the repository's job.
type Adapter struct {
	rdb *redis.Client
}

// Config mirrors the REDIS_* environment variables (spec.md §6).
type Config struct {
	Addr     string
	Password string
}

// New dials a Redis client. It does not block on connectivity; callers
// that want a fail-fast startup should call Ping.
func New(cfg Config) *Adapter {
	return &Adapter{rdb: redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
	})}
}

// Ping verifies connectivity, surfacing a STORE_ERROR on failure.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.rdb.Ping(ctx).Err(); err != nil {
		return StoreFailure("ping", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (a *Adapter) Close() error { return a.rdb.Close() }

// HGetAll loads every field of a hash key. An empty map with no error
// signals "hash does not exist" — callers map that to NOT_FOUND.
func (a *Adapter) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	m, err := a.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, StoreFailure("HGetAll", err)
	}
	return m, nil
}

// HSet writes every field in fields to the hash at key.
func (a *Adapter) HSet(ctx context.Context, key string, fields map[string]string) error {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	if err := a.rdb.HSet(ctx, key, args...).Err(); err != nil {
		return StoreFailure("HSet", err)
	}
	return nil
}

// SAdd adds members to the set at key.
func (a *Adapter) SAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := a.rdb.SAdd(ctx, key, args...).Err(); err != nil {
		return StoreFailure("SAdd", err)
	}
	return nil
}

// SRem removes members from the set at key.
func (a *Adapter) SRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	if err := a.rdb.SRem(ctx, key, args...).Err(); err != nil {
		return StoreFailure("SRem", err)
	}
	return nil
}

// SMembers returns every member of the set at key.
func (a *Adapter) SMembers(ctx context.Context, key string) ([]string, error) {
	members, err := a.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, StoreFailure("SMembers", err)
	}
	return members, nil
}

// RPush appends value to the tail of the list at key.
func (a *Adapter) RPush(ctx context.Context, key string, value string) error {
	if err := a.rdb.RPush(ctx, key, value).Err(); err != nil {
		return StoreFailure("RPush", err)
	}
	return nil
}

// LPop pops the head element of the list at key. It returns ("", false,
// nil) when the list is empty rather than an error.
func (a *Adapter) LPop(ctx context.Context, key string) (string, bool, error) {
	v, err := a.rdb.LPop(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, StoreFailure("LPop", err)
	}
	return v, true, nil
}

// LRange returns the full contents of the list at key, head to tail.
func (a *Adapter) LRange(ctx context.Context, key string) ([]string, error) {
	vals, err := a.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, StoreFailure("LRange", err)
	}
	return vals, nil
}

// LRem removes every occurrence of value from the list at key, returning
// the count removed.
func (a *Adapter) LRem(ctx context.Context, key string, value string) (int64, error) {
	n, err := a.rdb.LRem(ctx, key, 0, value).Result()
	if err != nil {
		return 0, StoreFailure("LRem", err)
	}
	return n, nil
}

// Get reads a string key. ok is false when the key is absent.
func (a *Adapter) Get(ctx context.Context, key string) (value string, ok bool, err error) {
	v, err := a.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, StoreFailure("Get", err)
	}
	return v, true, nil
}

// Set writes a string key unconditionally.
func (a *Adapter) Set(ctx context.Context, key, value string) error {
	if err := a.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return StoreFailure("Set", err)
	}
	return nil
}

// Incr atomically increments the counter at key and returns its new value.
func (a *Adapter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := a.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, StoreFailure("Incr", err)
	}
	return n, nil
}

// Expire sets a TTL in seconds on key.
func (a *Adapter) Expire(ctx context.Context, key string, seconds int) error {
	if err := a.rdb.Expire(ctx, key, time.Duration(seconds)*time.Second).Err(); err != nil {
		return StoreFailure("Expire", err)
	}
	return nil
}

// Transaction groups a set of multi-key mutations (e.g. agentLogin's
// hash write plus N set adds) so that, on a store that supports it, they
// apply atomically. fn receives a TxOps scoped to a single MULTI/EXEC.
func (a *Adapter) Transaction(ctx context.Context, fn func(tx TxOps) error) error {
	_, err := a.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		tx := &Tx{pipe: pipe}
		return fn(tx)
	})
	if err != nil {
		return StoreFailure("Transaction", err)
	}
	return nil
}

// Tx is the pipelined view of Adapter used inside Transaction. Reads are
// not supported inside a Tx (go-redis pipelines queue commands and only
// resolve results after EXEC); callers read state before opening the
// transaction and only issue writes through it.
type Tx struct {
	pipe redis.Pipeliner
}

var _ TxOps = (*Tx)(nil)

func (t *Tx) HSet(ctx context.Context, key string, fields map[string]string) {
	args := make([]interface{}, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	t.pipe.HSet(ctx, key, args...)
}

func (t *Tx) SAdd(ctx context.Context, key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.pipe.SAdd(ctx, key, args...)
}

func (t *Tx) SRem(ctx context.Context, key string, members ...string) {
	if len(members) == 0 {
		return
	}
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	t.pipe.SRem(ctx, key, args...)
}

