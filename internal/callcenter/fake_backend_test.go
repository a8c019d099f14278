package callcenter

import (
	"context"
	"sync"

	"github.com/nextlevelbuilder/dialer/internal/store"
)

// fakeBackend is an in-memory store.Backend used to exercise the
// repository and selector without a live Redis instance.
type fakeBackend struct {
	mu     sync.Mutex
	hashes map[string]map[string]string
	sets   map[string]map[string]struct{}
	lists  map[string][]string
	strs   map[string]string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		hashes: map[string]map[string]string{},
		sets:   map[string]map[string]struct{}{},
		lists:  map[string][]string{},
		strs:   map[string]string{},
	}
}

var _ store.Backend = (*fakeBackend)(nil)

func (f *fakeBackend) HGetAll(_ context.Context, key string) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]string{}
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return out, nil
}

func (f *fakeBackend) HSet(_ context.Context, key string, fields map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.hashes[key]
	if !ok {
		h = map[string]string{}
		f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
	return nil
}

func (f *fakeBackend) SAdd(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sAddLocked(key, members...)
	return nil
}

func (f *fakeBackend) sAddLocked(key string, members ...string) {
	s, ok := f.sets[key]
	if !ok {
		s = map[string]struct{}{}
		f.sets[key] = s
	}
	for _, m := range members {
		s[m] = struct{}{}
	}
}

func (f *fakeBackend) SRem(_ context.Context, key string, members ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sRemLocked(key, members...)
	return nil
}

func (f *fakeBackend) sRemLocked(key string, members ...string) {
	s, ok := f.sets[key]
	if !ok {
		return
	}
	for _, m := range members {
		delete(s, m)
	}
}

func (f *fakeBackend) SMembers(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for m := range f.sets[key] {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeBackend) RPush(_ context.Context, key string, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists[key] = append(f.lists[key], value)
	return nil
}

func (f *fakeBackend) LPop(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	if len(l) == 0 {
		return "", false, nil
	}
	v := l[0]
	f.lists[key] = l[1:]
	return v, true, nil
}

func (f *fakeBackend) LRange(_ context.Context, key string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lists[key]))
	copy(out, f.lists[key])
	return out, nil
}

func (f *fakeBackend) LRem(_ context.Context, key string, value string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	l := f.lists[key]
	out := l[:0]
	var removed int64
	for _, v := range l {
		if v == value {
			removed++
			continue
		}
		out = append(out, v)
	}
	f.lists[key] = out
	return removed, nil
}

func (f *fakeBackend) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.strs[key]
	return v, ok, nil
}

func (f *fakeBackend) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.strs[key] = value
	return nil
}

func (f *fakeBackend) Incr(_ context.Context, key string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	// Not exercised by the repository tests; stored as decimal text.
	f.strs[key] = "0"
	return 0, nil
}

func (f *fakeBackend) Expire(_ context.Context, key string, seconds int) error {
	return nil
}

func (f *fakeBackend) Transaction(ctx context.Context, fn func(tx store.TxOps) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&fakeTx{f: f, ctx: ctx})
}

// fakeTx applies writes immediately under the backend's lock, which the
// caller already holds for the duration of Transaction — a simplification
// of Redis's MULTI/EXEC queuing that is sufficient for exercising the
// repository's multi-key invariants in tests.
type fakeTx struct {
	f   *fakeBackend
	ctx context.Context
}

func (t *fakeTx) HSet(_ context.Context, key string, fields map[string]string) {
	h, ok := t.f.hashes[key]
	if !ok {
		h = map[string]string{}
		t.f.hashes[key] = h
	}
	for k, v := range fields {
		h[k] = v
	}
}

func (t *fakeTx) SAdd(_ context.Context, key string, members ...string) {
	t.f.sAddLocked(key, members...)
}

func (t *fakeTx) SRem(_ context.Context, key string, members ...string) {
	t.f.sRemLocked(key, members...)
}
