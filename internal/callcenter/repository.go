// Package callcenter implements the Queue/Agent Repository (C3) and the
// round-robin Agent Selector (C4): CRUD and status transitions for
// queues, agents, and queue membership, enforcing the data invariants of
// spec.md §3, plus the deterministic agent-selection algorithm of §4.4.
package callcenter

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/nextlevelbuilder/dialer/internal/store"
	"github.com/nextlevelbuilder/dialer/internal/timing"
)

// Repository is the sole encoder/decoder of the JSON fields held inside
// queue/agent hashes (timings, shiftTimings, loggedInQueues) — no other
// package unmarshals raw hash text.
type Repository struct {
	store store.Backend
	cache *entityCache
}

func New(backend store.Backend) *Repository {
	return &Repository{store: backend, cache: newEntityCache()}
}

// StatusContext carries the optional extras a setAgentStatus transition
// may need: the channel id to bind when moving to RINGING/ON_CALL, or a
// wrap-up duration when entering WRAPPING_UP.
type StatusContext struct {
	BoundChannelID string
	WrapDuration   time.Duration
}

// --- Queue CRUD -------------------------------------------------------

func (r *Repository) CreateQueue(ctx context.Context, cc, queueID, name string, strategy store.Strategy, timings string) error {
	if cc == "" || queueID == "" {
		return store.InvalidInput("createQueue", fmt.Errorf("callCenterId and queueId are required"))
	}
	q := store.Queue{ID: queueID, Name: name, Strategy: strategy, Timings: timings, Status: store.QueueClosed}
	if err := r.store.HSet(ctx, queueKey(cc, queueID), queueFields(q)); err != nil {
		return err
	}
	if err := r.store.SAdd(ctx, queuesMasterKey(cc), queueID); err != nil {
		return err
	}
	r.cache.putQueue(cc, &q)
	return nil
}

func (r *Repository) GetQueueDetails(ctx context.Context, cc, queueID string) (*store.Queue, error) {
	if q, ok := r.cache.getQueue(cc, queueID); ok {
		return q, nil
	}
	fields, err := r.store.HGetAll(ctx, queueKey(cc, queueID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, store.NotFound("getQueueDetails")
	}
	q := queueFromFields(queueID, fields)
	r.cache.putQueue(cc, q)
	return q, nil
}

func (r *Repository) IsQueueActive(ctx context.Context, cc, queueID string, now time.Time) (bool, error) {
	q, err := r.GetQueueDetails(ctx, cc, queueID)
	if err != nil {
		return false, err
	}
	return timing.Evaluate(q.Timings, now), nil
}

// --- Agent CRUD --------------------------------------------------------

func (r *Repository) AddAgent(ctx context.Context, cc, agentID, name, endpoint, shiftTimings string) error {
	if cc == "" || agentID == "" {
		return store.InvalidInput("addAgent", fmt.Errorf("callCenterId and agentId are required"))
	}
	a := store.Agent{
		ID: agentID, Name: name, Endpoint: endpoint, ShiftTimings: shiftTimings,
		Status: store.AgentLoggedOut, LoggedInQueues: []string{},
	}
	fields, err := agentFields(a)
	if err != nil {
		return store.InvalidInput("addAgent", err)
	}
	if err := r.store.HSet(ctx, agentKey(cc, agentID), fields); err != nil {
		return err
	}
	if err := r.store.SAdd(ctx, agentsMasterKey(cc), agentID); err != nil {
		return err
	}
	r.cache.putAgent(cc, &a)
	return nil
}

func (r *Repository) GetAgentDetails(ctx context.Context, cc, agentID string) (*store.Agent, error) {
	if a, ok := r.cache.getAgent(cc, agentID); ok {
		return a, nil
	}
	fields, err := r.store.HGetAll(ctx, agentKey(cc, agentID))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, store.NotFound("getAgentDetails")
	}
	a, err := agentFromFields(agentID, fields)
	if err != nil {
		return nil, store.StoreFailure("getAgentDetails", err)
	}
	r.cache.putAgent(cc, a)
	return a, nil
}

func (r *Repository) IsAgentOnShift(ctx context.Context, cc, agentID string, now time.Time) (bool, error) {
	a, err := r.GetAgentDetails(ctx, cc, agentID)
	if err != nil {
		return false, err
	}
	return timing.Evaluate(a.ShiftTimings, now), nil
}

// AgentLogin implements spec.md §4.2 agentLogin: the agent must exist and
// be LOGGED_OUT, and either forceLogin is set or the agent is currently
// on shift. Invariant (2) is preserved by writing the agent hash and every
// logged-in-queue set membership inside one store transaction.
func (r *Repository) AgentLogin(ctx context.Context, cc, agentID string, queueIDs []string, forceLogin bool, now time.Time) error {
	a, err := r.GetAgentDetails(ctx, cc, agentID)
	if err != nil {
		return err
	}
	if a.Status != store.AgentLoggedOut {
		return store.IllegalState("agentLogin", fmt.Errorf("agent %s is not logged out", agentID))
	}
	if !forceLogin {
		onShift, err := r.IsAgentOnShift(ctx, cc, agentID, now)
		if err != nil {
			return err
		}
		if !onShift {
			return store.IllegalState("agentLogin", fmt.Errorf("agent %s is off shift", agentID))
		}
	}

	updated := *a
	updated.Status = store.AgentAvailable
	updated.LoggedInQueues = append([]string{}, queueIDs...)
	fields, err := agentFields(updated)
	if err != nil {
		return store.InvalidInput("agentLogin", err)
	}

	err = r.store.Transaction(ctx, func(tx store.TxOps) error {
		tx.HSet(ctx, agentKey(cc, agentID), fields)
		for _, qID := range queueIDs {
			tx.SAdd(ctx, queueLoggedInKey(cc, qID), agentID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.cache.putAgent(cc, &updated)
	return nil
}

// AgentLogout implements spec.md §4.2 agentLogout.
func (r *Repository) AgentLogout(ctx context.Context, cc, agentID string) error {
	a, err := r.GetAgentDetails(ctx, cc, agentID)
	if err != nil {
		return err
	}
	if a.Status == store.AgentLoggedOut {
		return store.IllegalState("agentLogout", fmt.Errorf("agent %s is already logged out", agentID))
	}

	updated := *a
	updated.Status = store.AgentLoggedOut
	loggedOutQueues := a.LoggedInQueues
	updated.LoggedInQueues = []string{}
	fields, err := agentFields(updated)
	if err != nil {
		return store.InvalidInput("agentLogout", err)
	}

	err = r.store.Transaction(ctx, func(tx store.TxOps) error {
		tx.HSet(ctx, agentKey(cc, agentID), fields)
		for _, qID := range loggedOutQueues {
			tx.SRem(ctx, queueLoggedInKey(cc, qID), agentID)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.cache.putAgent(cc, &updated)
	return nil
}

// SetAgentStatus applies one of the transitions in spec.md §4.3's table.
// It does not itself validate the transition table beyond writing the
// status verbatim — the router, which knows which external event is
// driving the change, is the only caller and always passes a reachable
// target state.
func (r *Repository) SetAgentStatus(ctx context.Context, cc, agentID string, newStatus store.AgentStatus, sctx StatusContext) error {
	a, err := r.GetAgentDetails(ctx, cc, agentID)
	if err != nil {
		return err
	}
	updated := *a
	updated.Status = newStatus
	if newStatus == store.AgentRinging || newStatus == store.AgentOnCall {
		updated.BoundChannelID = sctx.BoundChannelID
	}
	if newStatus == store.AgentAvailable {
		updated.BoundChannelID = ""
	}
	fields, err := agentFields(updated)
	if err != nil {
		return store.InvalidInput("setAgentStatus", err)
	}
	if err := r.store.HSet(ctx, agentKey(cc, agentID), fields); err != nil {
		return err
	}
	r.cache.putAgent(cc, &updated)
	return nil
}

// --- Waiting calls ------------------------------------------------------

func (r *Repository) AddCallToQueue(ctx context.Context, cc, queueID string, rec store.WaitingCall) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return store.InvalidInput("addCallToQueue", err)
	}
	return r.store.RPush(ctx, queueCallsKey(cc, queueID), string(data))
}

// RemoveCallFromQueue removes every occurrence of the record whose
// ChannelID matches channelID, returning the number removed. It is
// idempotent: once a channel's record is gone, further calls return 0.
func (r *Repository) RemoveCallFromQueue(ctx context.Context, cc, queueID, channelID string) (int, error) {
	all, err := r.store.LRange(ctx, queueCallsKey(cc, queueID))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, raw := range all {
		var rec store.WaitingCall
		if json.Unmarshal([]byte(raw), &rec) != nil {
			continue
		}
		if rec.ChannelID != channelID {
			continue
		}
		n, err := r.store.LRem(ctx, queueCallsKey(cc, queueID), raw)
		if err != nil {
			return removed, err
		}
		removed += int(n)
	}
	return removed, nil
}

// GetNextCallFromQueue pops the head waiting record, or (nil, nil) when
// the queue is empty.
func (r *Repository) GetNextCallFromQueue(ctx context.Context, cc, queueID string) (*store.WaitingCall, error) {
	raw, ok, err := r.store.LPop(ctx, queueCallsKey(cc, queueID))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	var rec store.WaitingCall
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, store.StoreFailure("getNextCallFromQueue", err)
	}
	return &rec, nil
}

// --- Queue membership, used by the selector -----------------------------

func (r *Repository) LoggedInAgents(ctx context.Context, cc, queueID string) ([]string, error) {
	members, err := r.store.SMembers(ctx, queueLoggedInKey(cc, queueID))
	if err != nil {
		return nil, err
	}
	sort.Strings(members)
	return members, nil
}

// ListQueueIDs returns every queue id registered for cc, used by the
// startup reconciliation routine to walk all queue membership sets.
func (r *Repository) ListQueueIDs(ctx context.Context, cc string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, queuesMasterKey(cc))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// ListAgentIDs returns every agent id registered for cc.
func (r *Repository) ListAgentIDs(ctx context.Context, cc string) ([]string, error) {
	ids, err := r.store.SMembers(ctx, agentsMasterKey(cc))
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// RepairQueueMembership directly adjusts a queue's logged-in-agents set,
// bypassing the agentLogin/agentLogout preconditions. It exists solely for
// the startup reconciliation routine restoring invariant (2) after a
// partial multi-key write (design note "Atomicity gaps"); ordinary
// callers must go through AgentLogin/AgentLogout.
func (r *Repository) RepairQueueMembership(ctx context.Context, cc, queueID string, add, remove []string) error {
	if len(add) > 0 {
		if err := r.store.SAdd(ctx, queueLoggedInKey(cc, queueID), add...); err != nil {
			return err
		}
	}
	if len(remove) > 0 {
		if err := r.store.SRem(ctx, queueLoggedInKey(cc, queueID), remove...); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) lastRoundRobinAgent(ctx context.Context, cc, queueID string) (string, bool, error) {
	v, ok, err := r.store.Get(ctx, queueLastAgentRRKey(cc, queueID))
	if err != nil {
		return "", false, err
	}
	return v, ok, nil
}

func (r *Repository) setLastRoundRobinAgent(ctx context.Context, cc, queueID, agentID string) error {
	return r.store.Set(ctx, queueLastAgentRRKey(cc, queueID), agentID)
}

// --- field encoding -------------------------------------------------------

func queueFields(q store.Queue) map[string]string {
	return map[string]string{
		"name":     q.Name,
		"strategy": string(q.Strategy),
		"timings":  q.Timings,
		"status":   string(q.Status),
	}
}

func queueFromFields(queueID string, f map[string]string) *store.Queue {
	status := store.QueueStatus(f["status"])
	if status == "" {
		status = store.QueueClosed
	}
	return &store.Queue{
		ID:       queueID,
		Name:     f["name"],
		Strategy: store.Strategy(f["strategy"]),
		Timings:  f["timings"],
		Status:   status,
	}
}

func agentFields(a store.Agent) (map[string]string, error) {
	loggedIn, err := json.Marshal(a.LoggedInQueues)
	if err != nil {
		return nil, err
	}
	return map[string]string{
		"name":           a.Name,
		"endpoint":       a.Endpoint,
		"shiftTimings":   a.ShiftTimings,
		"status":         string(a.Status),
		"loggedInQueues": string(loggedIn),
		"boundChannelId": a.BoundChannelID,
	}, nil
}

func agentFromFields(agentID string, f map[string]string) (*store.Agent, error) {
	var loggedIn []string
	if v := f["loggedInQueues"]; v != "" {
		if err := json.Unmarshal([]byte(v), &loggedIn); err != nil {
			return nil, fmt.Errorf("decode loggedInQueues: %w", err)
		}
	}
	status := store.AgentStatus(f["status"])
	if status == "" {
		status = store.AgentLoggedOut
	}
	return &store.Agent{
		ID:             agentID,
		Name:           f["name"],
		Endpoint:       f["endpoint"],
		ShiftTimings:   f["shiftTimings"],
		Status:         status,
		LoggedInQueues: loggedIn,
		BoundChannelID: f["boundChannelId"],
	}, nil
}
