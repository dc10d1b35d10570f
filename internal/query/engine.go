// Package query provides read-only navigation over the symbol index and
// call graph: callers, callees, bounded reachability, and index statistics.
package query

import (
	"database/sql"
	"fmt"

	"cix/internal/callgraph"
	"cix/internal/errors"
	"cix/internal/logging"
	"cix/internal/storage"
	"cix/internal/symbols"
)

// DefaultLimit bounds list responses when the caller passes no limit
const DefaultLimit = 50

// Engine is the read side of the index. It never writes; the indexer owns
// all mutation.
type Engine struct {
	db      *storage.DB
	symbols *symbols.Store
	calls   *callgraph.Resolver
	logger  *logging.Logger
}

// NewEngine creates a new query engine
func NewEngine(db *storage.DB, symbolStore *symbols.Store, resolver *callgraph.Resolver, logger *logging.Logger) *Engine {
	return &Engine{
		db:      db,
		symbols: symbolStore,
		calls:   resolver,
		logger:  logger.WithComponent("query"),
	}
}

// CallerInfo is one resolved caller of a symbol
type CallerInfo struct {
	Symbol   symbols.Symbol `json:"symbol"`
	CallLine int            `json:"callLine"`
	Kind     string         `json:"kind"`
}

// CalleeInfo is one call made by a symbol. Resolved is false for calls whose
// target is not (yet) in the index; those carry only the callee name.
type CalleeInfo struct {
	Symbol   *symbols.Symbol `json:"symbol,omitempty"`
	Name     string          `json:"name"`
	CallLine int             `json:"callLine"`
	Kind     string          `json:"kind"`
	Resolved bool            `json:"resolved"`
}

// ReachableCaller is a caller found by the reverse-edge walk, tagged with
// its distance from the starting symbol.
type ReachableCaller struct {
	Symbol symbols.Symbol `json:"symbol"`
	Depth  int            `json:"depth"`
}

// ReachableResult is the outcome of a bounded reverse reachability walk
type ReachableResult struct {
	Callers   []ReachableCaller `json:"callers"`
	Truncated bool              `json:"truncated"`
}

// Stats summarizes the index contents
type Stats struct {
	Files           int            `json:"files"`
	Symbols         int            `json:"symbols"`
	SymbolsByKind   map[string]int `json:"symbolsByKind"`
	CallEdges       int            `json:"callEdges"`
	UnresolvedCalls int            `json:"unresolvedCalls"`
}

// ResolveSymbol finds the symbol a CLI argument refers to. The argument may
// be a symbol id or a name; names may be ambiguous, in which case the
// candidates are returned for the caller to disambiguate.
func (e *Engine) ResolveSymbol(nameOrID, scopeHint string) ([]symbols.Symbol, error) {
	if sym, err := e.symbols.Get(nameOrID); err != nil {
		return nil, err
	} else if sym != nil {
		return []symbols.Symbol{*sym}, nil
	}

	matches, err := e.symbols.LookupByName(nameOrID, scopeHint)
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, errors.New(errors.SymbolNotFound,
			fmt.Sprintf("no symbol named %q in the index", nameOrID), nil)
	}
	return matches, nil
}

// CallersOf returns the symbols that call the given symbol, ordered by file
// and line for stable output.
func (e *Engine) CallersOf(symbolID string, limit int) ([]CallerInfo, error) {
	limit = clampLimit(limit)

	rows, err := e.db.Query(`
		SELECT s.id, s.file_path, s.name, s.kind, s.start_line, s.end_line, s.container, s.signature,
		       ce.call_line, ce.call_kind
		FROM call_edges ce
		JOIN symbols s ON s.id = ce.caller_id
		WHERE ce.callee_id = ?
		ORDER BY s.file_path, ce.call_line
		LIMIT ?
	`, symbolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query callers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var callers []CallerInfo
	for rows.Next() {
		var c CallerInfo
		if err := rows.Scan(
			&c.Symbol.ID, &c.Symbol.FilePath, &c.Symbol.Name, &c.Symbol.Kind,
			&c.Symbol.StartLine, &c.Symbol.EndLine, &c.Symbol.Container, &c.Symbol.Signature,
			&c.CallLine, &c.Kind,
		); err != nil {
			return nil, fmt.Errorf("failed to scan caller: %w", err)
		}
		callers = append(callers, c)
	}
	return callers, rows.Err()
}

// CalleesOf returns the calls made by the given symbol. Resolved calls carry
// the target symbol; unresolved calls carry just the name as written.
func (e *Engine) CalleesOf(symbolID string, limit int) ([]CalleeInfo, error) {
	limit = clampLimit(limit)

	rows, err := e.db.Query(`
		SELECT s.id, s.file_path, s.name, s.kind, s.start_line, s.end_line, s.container, s.signature,
		       ce.callee_name, ce.call_line, ce.call_kind
		FROM call_edges ce
		JOIN symbols s ON s.id = ce.callee_id
		WHERE ce.caller_id = ?
		ORDER BY ce.call_line
		LIMIT ?
	`, symbolID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query callees: %w", err)
	}

	var callees []CalleeInfo
	for rows.Next() {
		var c CalleeInfo
		var sym symbols.Symbol
		if err := rows.Scan(
			&sym.ID, &sym.FilePath, &sym.Name, &sym.Kind,
			&sym.StartLine, &sym.EndLine, &sym.Container, &sym.Signature,
			&c.Name, &c.CallLine, &c.Kind,
		); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to scan callee: %w", err)
		}
		c.Symbol = &sym
		c.Resolved = true
		callees = append(callees, c)
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}

	if len(callees) >= limit {
		return callees, nil
	}

	pending, err := e.calls.UnresolvedForCaller(symbolID)
	if err != nil {
		return nil, err
	}
	for _, p := range pending {
		if len(callees) >= limit {
			break
		}
		callees = append(callees, CalleeInfo{
			Name:     p.CalleeName,
			CallLine: p.Line,
			Kind:     p.Kind,
			Resolved: false,
		})
	}
	return callees, nil
}

// ReachableCallers walks call edges in reverse from the given symbol up to
// maxDepth hops and returns every distinct caller reached, breadth first.
// A visited set makes the walk cycle-safe; maxNodes and perLevel bound the
// result on dense graphs. Deeper limits only ever add callers.
func (e *Engine) ReachableCallers(symbolID string, maxDepth, maxNodes, perLevel int) (*ReachableResult, error) {
	if maxDepth < 1 {
		maxDepth = 1
	}
	if maxNodes < 1 {
		maxNodes = DefaultLimit
	}
	if perLevel < 1 {
		perLevel = DefaultLimit
	}

	result := &ReachableResult{}
	visited := map[string]bool{symbolID: true}
	frontier := []string{symbolID}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			edges, err := e.calls.EdgesTo(id)
			if err != nil {
				return nil, err
			}
			if len(edges) > perLevel {
				edges = edges[:perLevel]
				result.Truncated = true
			}
			for _, edge := range edges {
				if visited[edge.CallerID] {
					continue
				}
				visited[edge.CallerID] = true

				if len(result.Callers) >= maxNodes {
					result.Truncated = true
					return result, nil
				}

				sym, err := e.symbols.Get(edge.CallerID)
				if err != nil {
					return nil, err
				}
				if sym == nil {
					continue
				}
				result.Callers = append(result.Callers, ReachableCaller{Symbol: *sym, Depth: depth})
				next = append(next, edge.CallerID)
			}
		}
		frontier = next
	}

	return result, nil
}

// EntryPoints returns callable symbols that nothing in the index calls.
// These are the roots of the call graph: mains, handlers, exported API.
func (e *Engine) EntryPoints(limit int) ([]symbols.Symbol, error) {
	limit = clampLimit(limit)

	rows, err := e.db.Query(`
		SELECT id, file_path, name, kind, start_line, end_line, container, signature
		FROM symbols
		WHERE kind IN ('function', 'method')
		  AND id NOT IN (SELECT callee_id FROM call_edges)
		ORDER BY file_path, start_line
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query entry points: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	return scanSymbolRows(rows)
}

// LeafFunctions returns callable symbols that call nothing the index knows
// about (no outgoing edges and no pending calls).
func (e *Engine) LeafFunctions(limit int) ([]symbols.Symbol, error) {
	limit = clampLimit(limit)

	rows, err := e.db.Query(`
		SELECT id, file_path, name, kind, start_line, end_line, container, signature
		FROM symbols
		WHERE kind IN ('function', 'method')
		  AND id NOT IN (SELECT caller_id FROM call_edges)
		  AND id NOT IN (SELECT caller_id FROM unresolved_calls)
		ORDER BY file_path, start_line
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaf functions: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	return scanSymbolRows(rows)
}

// IndexStats returns counts for the status command
func (e *Engine) IndexStats() (*Stats, error) {
	stats := &Stats{SymbolsByKind: make(map[string]int)}

	if err := e.db.QueryRow(`SELECT COUNT(*) FROM indexed_files`).Scan(&stats.Files); err != nil {
		return nil, fmt.Errorf("failed to count files: %w", err)
	}
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&stats.Symbols); err != nil {
		return nil, fmt.Errorf("failed to count symbols: %w", err)
	}

	rows, err := e.db.Query(`SELECT kind, COUNT(*) FROM symbols GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("failed to count symbols by kind: %w", err)
	}
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			rows.Close() //nolint:errcheck
			return nil, fmt.Errorf("failed to scan kind count: %w", err)
		}
		stats.SymbolsByKind[kind] = count
	}
	if err := rows.Close(); err != nil {
		return nil, fmt.Errorf("failed to close rows: %w", err)
	}

	edges, unresolved, err := e.calls.Counts()
	if err != nil {
		return nil, err
	}
	stats.CallEdges = edges
	stats.UnresolvedCalls = unresolved

	return stats, nil
}

func scanSymbolRows(rows *sql.Rows) ([]symbols.Symbol, error) {
	var syms []symbols.Symbol
	for rows.Next() {
		var s symbols.Symbol
		if err := rows.Scan(&s.ID, &s.FilePath, &s.Name, &s.Kind,
			&s.StartLine, &s.EndLine, &s.Container, &s.Signature); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		syms = append(syms, s)
	}
	return syms, rows.Err()
}

func clampLimit(limit int) int {
	if limit < 1 {
		return DefaultLimit
	}
	return limit
}
