package store

import "context"

// Backend is the set of typed operations the Queue/Agent Repository
// needs from the shared key/value store. *Adapter implements it against
// Redis; tests substitute an in-memory fake so the repository and
// selector can be exercised without a live Redis instance — the store
// can be swapped, per spec.md §4.2's closing note.
type Backend interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SMembers(ctx context.Context, key string) ([]string, error)

	RPush(ctx context.Context, key string, value string) error
	LPop(ctx context.Context, key string) (string, bool, error)
	LRange(ctx context.Context, key string) ([]string, error)
	LRem(ctx context.Context, key string, value string) (int64, error)

	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error

	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, seconds int) error

	Transaction(ctx context.Context, fn func(tx TxOps) error) error
}

// TxOps is the write-only view of a Backend exposed inside Transaction.
// Pipelined transports (Redis MULTI/EXEC) cannot resolve reads until the
// transaction commits, so TxOps intentionally has no Get/HGetAll: callers
// read state before opening the transaction and only issue writes here.
type TxOps interface {
	HSet(ctx context.Context, key string, fields map[string]string)
	SAdd(ctx context.Context, key string, members ...string)
	SRem(ctx context.Context, key string, members ...string)
}

var _ Backend = (*Adapter)(nil)
