package callcenter

import (
	"context"
	"testing"
	"time"

	"github.com/nextlevelbuilder/dialer/internal/store"
)

func loginAvailable(t *testing.T, r *Repository, ctx context.Context, agentID string, now time.Time) {
	t.Helper()
	r.AddAgent(ctx, cc, agentID, agentID, "PJSIP/"+agentID, "24/7")
	if err := r.AgentLogin(ctx, cc, agentID, []string{"Q1"}, false, now); err != nil {
		t.Fatalf("login %s: %v", agentID, err)
	}
}

// TestSelectRoundRobinOrder is scenario 2 from spec.md §8: three
// successive calls against three AVAILABLE, on-shift agents select A, B, C
// in order, since the pointer starts unset (first of the sorted list).
func TestSelectRoundRobinOrder(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	now := time.Now()
	for _, id := range []string{"A", "B", "C"} {
		loginAvailable(t, r, ctx, id, now)
	}

	var got []string
	for i := 0; i < 3; i++ {
		agentID, err := r.Select(ctx, cc, "Q1", now)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		got = append(got, agentID)
	}
	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("selection %d: got %v, want %v", i, got, want)
		}
	}
}

// TestSelectSkipsNonEligible is scenario 3: with B ON_CALL, four calls
// select A, C, A, C.
func TestSelectSkipsNonEligible(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	now := time.Now()
	for _, id := range []string{"A", "B", "C"} {
		loginAvailable(t, r, ctx, id, now)
	}
	if err := r.SetAgentStatus(ctx, cc, "B", store.AgentOnCall, StatusContext{}); err != nil {
		t.Fatalf("SetAgentStatus: %v", err)
	}

	want := []string{"A", "C", "A", "C"}
	for i, w := range want {
		agentID, err := r.Select(ctx, cc, "Q1", now)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if agentID != w {
			t.Fatalf("selection %d: got %s, want %s", i, agentID, w)
		}
	}
}

// TestSelectNoneWhenNoEligibleAgents covers the NONE return path.
func TestSelectNoneWhenNoEligibleAgents(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	agentID, err := r.Select(ctx, cc, "Q1", time.Now())
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if agentID != NoAgent {
		t.Fatalf("expected NoAgent, got %q", agentID)
	}
}

// TestSelectPointerAdvancesDespiteLaterFailure checks invariant (5): the
// pointer is written on every selection regardless of what happens next,
// so a failed attempt does not starve the next agent in rotation.
func TestSelectPointerAdvancesDespiteLaterFailure(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	now := time.Now()
	loginAvailable(t, r, ctx, "A", now)
	loginAvailable(t, r, ctx, "B", now)

	first, err := r.Select(ctx, cc, "Q1", now)
	if err != nil || first != "A" {
		t.Fatalf("first selection: got %s err=%v", first, err)
	}
	// Simulate origination failure: A goes back to AVAILABLE without the
	// pointer being reset.
	if err := r.SetAgentStatus(ctx, cc, "A", store.AgentAvailable, StatusContext{}); err != nil {
		t.Fatalf("SetAgentStatus: %v", err)
	}
	second, err := r.Select(ctx, cc, "Q1", now)
	if err != nil || second != "B" {
		t.Fatalf("second selection should skip to B, got %s err=%v", second, err)
	}
}

// TestSelectEvenDistribution is the testable property from spec.md §8:
// across n selections over an unchanging eligible set of size k, each
// agent is selected floor(n/k) or ceil(n/k) times, and no agent repeats
// back-to-back when k>=2.
func TestSelectEvenDistribution(t *testing.T) {
	ctx := context.Background()
	r := newTestRepo()
	now := time.Now()
	ids := []string{"A", "B", "C", "D"}
	for _, id := range ids {
		loginAvailable(t, r, ctx, id, now)
	}

	counts := map[string]int{}
	const n = 20
	var prev string
	for i := 0; i < n; i++ {
		agentID, err := r.Select(ctx, cc, "Q1", now)
		if err != nil {
			t.Fatalf("Select: %v", err)
		}
		if agentID == prev {
			t.Fatalf("agent %s selected twice in a row at iteration %d", agentID, i)
		}
		prev = agentID
		counts[agentID]++
	}
	k := len(ids)
	lo, hi := n/k, (n+k-1)/k
	for _, id := range ids {
		if counts[id] < lo || counts[id] > hi {
			t.Errorf("agent %s selected %d times, want between %d and %d", id, counts[id], lo, hi)
		}
	}
}
