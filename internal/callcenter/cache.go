package callcenter

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/nextlevelbuilder/dialer/internal/store"
)

// cacheSize bounds the number of hash reads held in front of Redis. The
// repository is the only writer of these caches and replaces an entry
// with the written value on every write it issues, so staleness is bounded by concurrent writes
// from other processes — which spec.md §5 assumes away (single active
// router).
const cacheSize = 4096

// entityCache fronts repeated queue/agent hash reads with an in-process
// LRU, refreshed with the written value on every repository-issued write. It never serves a
// write this process did not itself perform, so it cannot mask another
// router's concurrent mutation beyond what §5's single-router assumption
// already tolerates.
type entityCache struct {
	queues *lru.Cache[string, *store.Queue]
	agents *lru.Cache[string, *store.Agent]
}

func newEntityCache() *entityCache {
	queues, err := lru.New[string, *store.Queue](cacheSize)
	if err != nil {
		panic(err) // only fails for non-positive size, which cacheSize never is
	}
	agents, err := lru.New[string, *store.Agent](cacheSize)
	if err != nil {
		panic(err)
	}
	return &entityCache{queues: queues, agents: agents}
}

func (c *entityCache) getQueue(cc, queueID string) (*store.Queue, bool) {
	return c.queues.Get(cc + ":" + queueID)
}

func (c *entityCache) putQueue(cc string, q *store.Queue) {
	c.queues.Add(cc+":"+q.ID, q)
}

func (c *entityCache) invalidateQueue(cc, queueID string) {
	c.queues.Remove(cc + ":" + queueID)
}

func (c *entityCache) getAgent(cc, agentID string) (*store.Agent, bool) {
	return c.agents.Get(cc + ":" + agentID)
}

func (c *entityCache) putAgent(cc string, a *store.Agent) {
	c.agents.Add(cc+":"+a.ID, a)
}

func (c *entityCache) invalidateAgent(cc, agentID string) {
	c.agents.Remove(cc + ":" + agentID)
}
