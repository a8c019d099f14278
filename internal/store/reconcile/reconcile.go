// Package reconcile provides the startup invariant-repair routine called
// out in spec.md §9's "Atomicity gaps" design note: agentLogin/agentLogout
// mutate the agent hash and one set per queue inside a store transaction
// (see internal/callcenter.Repository), but a process that crashes or is
// killed mid-transaction against a store that doesn't honor it can still
// leave queue membership sets out of sync with the agent records that are
// meant to be their source of truth. This package detects and repairs that
// drift each time the `dialer reconcile` subcommand runs (serve does not
// run it) and keeps an audit trail in an embedded SQLite
// database, independent of the Redis store it reconciles.
package reconcile

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/nextlevelbuilder/dialer/internal/callcenter"
	"github.com/nextlevelbuilder/dialer/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Open opens (creating if absent) the SQLite ledger database at path.
// golang-migrate's sqlite3 driver asserts its instance down to
// mattn/go-sqlite3's concrete connection type, so that is the driver used
// here rather than a pure-Go one.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("reconcile: open %s: %w", path, err)
	}
	db.SetMaxOpenConns(1) // single-writer file, mirrors the migrator's own assumption
	return db, nil
}

// Migrate applies every pending migration embedded in this package to db.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("reconcile: load migrations: %w", err)
	}
	dbDriver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("reconcile: sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", dbDriver)
	if err != nil {
		return fmt.Errorf("reconcile: build migrator: %w", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("reconcile: migrate up: %w", err)
	}
	return nil
}

// Ledger records every membership repair made by Reconcile.
type Ledger struct {
	db *sql.DB
}

// NewLedger wraps an already-migrated database as a Ledger.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Repair is one row of the audit trail: agentID was added to or removed
// from queueID's logged-in-agents set to restore invariant (2).
type Repair struct {
	CallCenterID string
	QueueID      string
	AgentID      string
	Action       string // "add" or "remove"
	RepairedAt   time.Time
}

func (l *Ledger) record(ctx context.Context, r Repair) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO repairs (call_center_id, queue_id, agent_id, action, repaired_at) VALUES (?, ?, ?, ?, ?)`,
		r.CallCenterID, r.QueueID, r.AgentID, r.Action, r.RepairedAt.Unix(),
	)
	return err
}

// Repairs returns every recorded repair for callCenterID, most recent
// first.
func (l *Ledger) Repairs(ctx context.Context, callCenterID string) ([]Repair, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT call_center_id, queue_id, agent_id, action, repaired_at FROM repairs WHERE call_center_id = ? ORDER BY id DESC`,
		callCenterID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Repair
	for rows.Next() {
		var r Repair
		var repairedAt int64
		if err := rows.Scan(&r.CallCenterID, &r.QueueID, &r.AgentID, &r.Action, &repairedAt); err != nil {
			return nil, err
		}
		r.RepairedAt = time.Unix(repairedAt, 0)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Reconcile walks every agent and queue in callCenterID, comparing each
// agent's LoggedInQueues (the source of truth for a logged-in agent) to
// the actual queue:{q}:agents_loggedIn set membership, and repairs any
// mismatch: an agent missing from a queue it claims to serve is re-added,
// and a stale membership for an agent that no longer claims that queue
// (or is LOGGED_OUT) is removed. It returns the number of repairs made.
func Reconcile(ctx context.Context, repo *callcenter.Repository, ledger *Ledger, callCenterID string) (int, error) {
	queueIDs, err := repo.ListQueueIDs(ctx, callCenterID)
	if err != nil {
		return 0, fmt.Errorf("reconcile: list queues: %w", err)
	}
	agentIDs, err := repo.ListAgentIDs(ctx, callCenterID)
	if err != nil {
		return 0, fmt.Errorf("reconcile: list agents: %w", err)
	}

	expected := make(map[string]map[string]bool, len(queueIDs)) // queueID -> agentID -> should be logged in
	for _, qID := range queueIDs {
		expected[qID] = map[string]bool{}
	}
	for _, aID := range agentIDs {
		agent, err := repo.GetAgentDetails(ctx, callCenterID, aID)
		if err != nil {
			if store.IsKind(err, store.KindNotFound) {
				continue
			}
			return 0, fmt.Errorf("reconcile: get agent %s: %w", aID, err)
		}
		if agent.Status == store.AgentLoggedOut {
			continue
		}
		for _, qID := range agent.LoggedInQueues {
			if expected[qID] == nil {
				expected[qID] = map[string]bool{}
			}
			expected[qID][aID] = true
		}
	}

	repaired := 0
	for qID, want := range expected {
		actual, err := repo.LoggedInAgents(ctx, callCenterID, qID)
		if err != nil {
			return repaired, fmt.Errorf("reconcile: logged-in agents for %s: %w", qID, err)
		}
		actualSet := make(map[string]bool, len(actual))
		for _, a := range actual {
			actualSet[a] = true
		}

		var toAdd, toRemove []string
		for aID := range want {
			if !actualSet[aID] {
				toAdd = append(toAdd, aID)
			}
		}
		for _, aID := range actual {
			if !want[aID] {
				toRemove = append(toRemove, aID)
			}
		}
		if len(toAdd) == 0 && len(toRemove) == 0 {
			continue
		}
		sort.Strings(toAdd)
		sort.Strings(toRemove)

		if err := repo.RepairQueueMembership(ctx, callCenterID, qID, toAdd, toRemove); err != nil {
			return repaired, fmt.Errorf("reconcile: repair %s: %w", qID, err)
		}
		now := time.Now()
		for _, aID := range toAdd {
			slog.Warn("reconcile: restoring missing queue membership", "queue", qID, "agent", aID)
			if ledger != nil {
				if err := ledger.record(ctx, Repair{CallCenterID: callCenterID, QueueID: qID, AgentID: aID, Action: "add", RepairedAt: now}); err != nil {
					return repaired, fmt.Errorf("reconcile: ledger record: %w", err)
				}
			}
			repaired++
		}
		for _, aID := range toRemove {
			slog.Warn("reconcile: removing stale queue membership", "queue", qID, "agent", aID)
			if ledger != nil {
				if err := ledger.record(ctx, Repair{CallCenterID: callCenterID, QueueID: qID, AgentID: aID, Action: "remove", RepairedAt: now}); err != nil {
					return repaired, fmt.Errorf("reconcile: ledger record: %w", err)
				}
			}
			repaired++
		}
	}
	return repaired, nil
}
