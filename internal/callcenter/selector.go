package callcenter

import (
	"context"
	"time"

	"github.com/nextlevelbuilder/dialer/internal/store"
)

// NoAgent is returned by Select when no eligible agent exists.
const NoAgent = ""

// Select implements the round-robin Agent Selector (C4): it loads the
// queue's logged-in set, filters to AVAILABLE + on-shift agents, sorts
// lexicographically for a deterministic rotation order, advances past
// the last-selected pointer (or picks the first, if unset or stale), and
// persists the new pointer before returning.
//
// The pointer advances even when the caller later fails to originate to
// the selected agent — spec.md §4.4 requires this so failures don't
// starve the next agent in rotation.
func (r *Repository) Select(ctx context.Context, cc, queueID string, now time.Time) (string, error) {
	members, err := r.LoggedInAgents(ctx, cc, queueID)
	if err != nil {
		return NoAgent, err
	}

	eligible := make([]string, 0, len(members))
	for _, agentID := range members {
		a, err := r.GetAgentDetails(ctx, cc, agentID)
		if err != nil {
			if store.IsKind(err, store.KindNotFound) {
				continue
			}
			return NoAgent, err
		}
		if a.Status != store.AgentAvailable {
			continue
		}
		onShift, err := r.IsAgentOnShift(ctx, cc, agentID, now)
		if err != nil {
			return NoAgent, err
		}
		if !onShift {
			continue
		}
		eligible = append(eligible, agentID)
	}

	if len(eligible) == 0 {
		return NoAgent, nil
	}

	selected := eligible[0]
	if pointer, ok, err := r.lastRoundRobinAgent(ctx, cc, queueID); err != nil {
		return NoAgent, err
	} else if ok {
		if idx := indexOf(eligible, pointer); idx >= 0 {
			selected = eligible[(idx+1)%len(eligible)]
		}
	}

	if err := r.setLastRoundRobinAgent(ctx, cc, queueID, selected); err != nil {
		return NoAgent, err
	}
	return selected, nil
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
