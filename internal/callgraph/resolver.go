// Package callgraph resolves raw call sites into call edges and maintains
// the pending queue of calls whose target symbol is not yet known.
//
// Files are indexed independently and in no particular order, so a call into
// a not-yet-indexed file cannot be resolved at record time. Such calls are
// stored as unresolved rows and promoted to edges as soon as a matching
// symbol is inserted; promotion is incremental (keyed by the names just
// inserted) and idempotent (edge uniqueness absorbs re-runs).
package callgraph

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cix/internal/logging"
	"cix/internal/storage"
	"cix/internal/symbols"
)

// CallSite is one raw call emitted by a parser pass: the enclosing
// definition's name, the callee as written, the call kind, and the line.
type CallSite struct {
	Caller string
	Callee string
	Kind   string
	Line   int
}

// Edge is a resolved caller-to-callee relationship. CalleeName keeps the
// callee as written at the call site even after resolution, so name-based
// lookup works without touching the symbol referenced by CalleeID.
type Edge struct {
	CallerID   string `json:"callerId"`
	CalleeID   string `json:"calleeId"`
	CalleeName string `json:"calleeName"`
	Kind       string `json:"kind"`
	Line       int    `json:"line"`
}

// UnresolvedCall is a pending record for a call site whose callee name had
// zero or multiple symbol matches at resolution time
type UnresolvedCall struct {
	ID         int64  `json:"id"`
	CallerID   string `json:"callerId"`
	CalleeName string `json:"calleeName"`
	Kind       string `json:"kind"`
	Line       int    `json:"line"`
	CreatedAt  int64  `json:"createdAt"`
}

// Resolver owns call_edges and unresolved_calls
type Resolver struct {
	db      *storage.DB
	symbols *symbols.Store
	logger  *logging.Logger
}

// NewResolver creates a new call graph resolver
func NewResolver(db *storage.DB, symbolStore *symbols.Store, logger *logging.Logger) *Resolver {
	return &Resolver{
		db:      db,
		symbols: symbolStore,
		logger:  logger.WithComponent("callgraph"),
	}
}

// calleeKey normalizes a callee name for symbol matching: the last path
// segment of a qualified name ("a::b::f" -> "f", "obj.f" -> "f")
func calleeKey(name string) string {
	key := name
	if idx := strings.LastIndex(key, "::"); idx >= 0 {
		key = key[idx+2:]
	}
	if idx := strings.LastIndex(key, "."); idx >= 0 {
		key = key[idx+1:]
	}
	return key
}

// DemoteIncomingEdgesTx converts edges pointing at any of the given symbol
// ids back into unresolved calls, provided the caller lives outside that set.
// Called before a file's symbols are replaced: the new symbols get fresh ids,
// so surviving callers must re-resolve against them. PromotePendingTx repairs
// these rows at the end of the same index pass.
func (r *Resolver) DemoteIncomingEdgesTx(tx *sql.Tx, oldIDs []string) error {
	if len(oldIDs) == 0 {
		return nil
	}

	placeholders, args := inClause(oldIDs)
	now := time.Now().Unix()

	rows, err := tx.Query(`
		SELECT caller_id, callee_name, call_kind, call_line
		FROM call_edges
		WHERE callee_id IN `+placeholders+`
		  AND caller_id NOT IN `+placeholders,
		append(append([]interface{}{}, args...), args...)...)
	if err != nil {
		return fmt.Errorf("failed to query incoming edges: %w", err)
	}

	type pending struct {
		callerID   string
		calleeName string
		kind       string
		line       int
	}
	var demoted []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.callerID, &p.calleeName, &p.kind, &p.line); err != nil {
			rows.Close() //nolint:errcheck
			return fmt.Errorf("failed to scan incoming edge: %w", err)
		}
		demoted = append(demoted, p)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("failed to close rows: %w", err)
	}

	for _, p := range demoted {
		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO unresolved_calls (caller_id, callee_name, callee_key, call_kind, call_line, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, p.callerID, p.calleeName, calleeKey(p.calleeName), p.kind, p.line, now); err != nil {
			return fmt.Errorf("failed to demote edge: %w", err)
		}
	}

	// The stale edges are removed here rather than left for the symbol
	// delete cascade: a surviving row would keep its (caller_id,
	// callee_name, call_line) key and block re-promotion against the
	// file's new symbol ids.
	if _, err := tx.Exec(`DELETE FROM call_edges WHERE callee_id IN `+placeholders, args...); err != nil {
		return fmt.Errorf("failed to delete demoted edges: %w", err)
	}

	return nil
}

// DeleteCallerDataTx removes all edges and unresolved calls whose caller is
// one of the given symbol ids. Run when those callers are being replaced,
// before the file's new call sites are recorded.
func (r *Resolver) DeleteCallerDataTx(tx *sql.Tx, callerIDs []string) error {
	if len(callerIDs) == 0 {
		return nil
	}

	placeholders, args := inClause(callerIDs)

	if _, err := tx.Exec(`DELETE FROM call_edges WHERE caller_id IN `+placeholders, args...); err != nil {
		return fmt.Errorf("failed to delete call edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM unresolved_calls WHERE caller_id IN `+placeholders, args...); err != nil {
		return fmt.Errorf("failed to delete unresolved calls: %w", err)
	}

	return nil
}

// RecordStats counts the outcome of a record pass
type RecordStats struct {
	EdgesInserted      int
	UnresolvedInserted int
	Skipped            int
}

// RecordCallsTx resolves and stores the call sites of one file's fresh
// symbol set. callers maps definition name to its new symbol id. Sites whose
// callee resolves to exactly one symbol become edges; zero or multiple
// matches become unresolved calls (ambiguity is a valid steady state, never
// guessed at). Noise names from the builtin skip list are passed in
// pre-filtered by the parser layer.
func (r *Resolver) RecordCallsTx(tx *sql.Tx, callers map[string]string, sites []CallSite) (RecordStats, error) {
	var stats RecordStats
	now := time.Now().Unix()

	for _, site := range sites {
		callerID, ok := callers[site.Caller]
		if !ok {
			// Call site inside a definition the parser did not emit
			// (e.g. file-level code); nothing to attach it to
			stats.Skipped++
			continue
		}

		kind := site.Kind
		if kind == "" {
			kind = "direct"
		}

		matches, err := r.symbols.LookupByNameTx(tx, calleeKey(site.Callee))
		if err != nil {
			return stats, err
		}

		if len(matches) == 1 {
			if err := insertEdgeTx(tx, callerID, matches[0].ID, site.Callee, kind, site.Line); err != nil {
				return stats, err
			}
			stats.EdgesInserted++
			continue
		}

		if _, err := tx.Exec(`
			INSERT OR IGNORE INTO unresolved_calls (caller_id, callee_name, callee_key, call_kind, call_line, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, callerID, site.Callee, calleeKey(site.Callee), kind, site.Line, now); err != nil {
			return stats, fmt.Errorf("failed to insert unresolved call: %w", err)
		}
		stats.UnresolvedInserted++
	}

	return stats, nil
}

// PromotePendingTx rescans unresolved calls whose callee key matches one of
// the just-inserted symbol names and promotes unique matches to edges. Only
// the given names are scanned, so the cost of a file's index pass does not
// grow with the total unresolved backlog. Safe to run repeatedly.
func (r *Resolver) PromotePendingTx(tx *sql.Tx, newNames []string) (int, error) {
	if len(newNames) == 0 {
		return 0, nil
	}

	keys := make([]string, 0, len(newNames))
	seen := make(map[string]bool, len(newNames))
	for _, name := range newNames {
		key := calleeKey(name)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	placeholders, args := inClause(keys)
	rows, err := tx.Query(`
		SELECT id, caller_id, callee_name, callee_key, call_kind, call_line
		FROM unresolved_calls
		WHERE callee_key IN `+placeholders,
		args...)
	if err != nil {
		return 0, fmt.Errorf("failed to query pending calls: %w", err)
	}

	type pendingRow struct {
		id         int64
		callerID   string
		calleeName string
		calleeKey  string
		kind       string
		line       int
	}
	var pending []pendingRow
	for rows.Next() {
		var p pendingRow
		if err := rows.Scan(&p.id, &p.callerID, &p.calleeName, &p.calleeKey, &p.kind, &p.line); err != nil {
			rows.Close() //nolint:errcheck
			return 0, fmt.Errorf("failed to scan pending call: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Close(); err != nil {
		return 0, fmt.Errorf("failed to close rows: %w", err)
	}

	promoted := 0
	for _, p := range pending {
		matches, err := r.symbols.LookupByNameTx(tx, p.calleeKey)
		if err != nil {
			return promoted, err
		}
		if len(matches) != 1 {
			// Still unknown or now ambiguous; leave the row pending
			continue
		}

		if err := insertEdgeTx(tx, p.callerID, matches[0].ID, p.calleeName, p.kind, p.line); err != nil {
			return promoted, err
		}
		if _, err := tx.Exec(`DELETE FROM unresolved_calls WHERE id = ?`, p.id); err != nil {
			return promoted, fmt.Errorf("failed to delete promoted call: %w", err)
		}
		promoted++
	}

	return promoted, nil
}

func insertEdgeTx(tx *sql.Tx, callerID, calleeID, calleeName, kind string, line int) error {
	_, err := tx.Exec(`
		INSERT OR IGNORE INTO call_edges (caller_id, callee_id, callee_name, call_kind, call_line)
		VALUES (?, ?, ?, ?, ?)
	`, callerID, calleeID, calleeName, kind, line)
	if err != nil {
		return fmt.Errorf("failed to insert call edge: %w", err)
	}
	return nil
}

// EdgesFrom returns the edges whose caller is the given symbol
func (r *Resolver) EdgesFrom(callerID string) ([]Edge, error) {
	rows, err := r.db.Query(`
		SELECT caller_id, callee_id, callee_name, call_kind, call_line
		FROM call_edges
		WHERE caller_id = ?
		ORDER BY call_line
	`, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	return scanEdges(rows)
}

// EdgesTo returns the edges whose callee is the given symbol
func (r *Resolver) EdgesTo(calleeID string) ([]Edge, error) {
	rows, err := r.db.Query(`
		SELECT caller_id, callee_id, callee_name, call_kind, call_line
		FROM call_edges
		WHERE callee_id = ?
		ORDER BY call_line
	`, calleeID)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	return scanEdges(rows)
}

// UnresolvedForCaller returns pending calls originating from a symbol
func (r *Resolver) UnresolvedForCaller(callerID string) ([]UnresolvedCall, error) {
	rows, err := r.db.Query(`
		SELECT id, caller_id, callee_name, call_kind, call_line, created_at
		FROM unresolved_calls
		WHERE caller_id = ?
		ORDER BY call_line
	`, callerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query unresolved calls: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var calls []UnresolvedCall
	for rows.Next() {
		var c UnresolvedCall
		if err := rows.Scan(&c.ID, &c.CallerID, &c.CalleeName, &c.Kind, &c.Line, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan unresolved call: %w", err)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

// Counts returns the total number of edges and unresolved calls
func (r *Resolver) Counts() (edges int, unresolved int, err error) {
	if err = r.db.QueryRow(`SELECT COUNT(*) FROM call_edges`).Scan(&edges); err != nil {
		return 0, 0, fmt.Errorf("failed to count edges: %w", err)
	}
	if err = r.db.QueryRow(`SELECT COUNT(*) FROM unresolved_calls`).Scan(&unresolved); err != nil {
		return 0, 0, fmt.Errorf("failed to count unresolved calls: %w", err)
	}
	return edges, unresolved, nil
}

func scanEdges(rows *sql.Rows) ([]Edge, error) {
	var edges []Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.CallerID, &e.CalleeID, &e.CalleeName, &e.Kind, &e.Line); err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// inClause builds a SQL IN clause and its args for a list of string values
func inClause(values []string) (string, []interface{}) {
	marks := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		marks[i] = "?"
		args[i] = v
	}
	return "(" + strings.Join(marks, ", ") + ")", args
}
