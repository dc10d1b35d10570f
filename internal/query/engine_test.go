package query

import (
	"database/sql"
	"testing"

	"cix/internal/callgraph"
	"cix/internal/errors"
	"cix/internal/logging"
	"cix/internal/storage"
	"cix/internal/symbols"
)

type fixture struct {
	engine   *Engine
	store    *symbols.Store
	resolver *callgraph.Resolver
	db       *storage.DB
	ids      map[string]string // name -> symbol id
}

func setupEngine(t *testing.T) *fixture {
	t.Helper()

	tmpDir := t.TempDir()
	logger := logging.NewNopLogger()

	db, err := storage.Open(tmpDir, logger)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() {
		db.Close() //nolint:errcheck // Test cleanup
	})

	store := symbols.NewStore(db, logger)
	resolver := callgraph.NewResolver(db, store, logger)
	return &fixture{
		engine:   NewEngine(db, store, resolver, logger),
		store:    store,
		resolver: resolver,
		db:       db,
		ids:      make(map[string]string),
	}
}

// seed indexes a file's definitions and call sites through the same
// transaction shape the indexer uses.
func (f *fixture) seed(t *testing.T, path string, defs []symbols.Def, sites []callgraph.CallSite) {
	t.Helper()

	err := f.db.WithTx(func(tx *sql.Tx) error {
		oldIDs, err := f.store.OldSymbolIDsTx(tx, path)
		if err != nil {
			return err
		}
		if err := f.resolver.DemoteIncomingEdgesTx(tx, oldIDs); err != nil {
			return err
		}
		if err := f.resolver.DeleteCallerDataTx(tx, oldIDs); err != nil {
			return err
		}

		inserted, err := f.store.ReplaceFileSymbolsTx(tx, path, defs)
		if err != nil {
			return err
		}

		callers := make(map[string]string, len(inserted))
		names := make([]string, 0, len(inserted))
		for _, sym := range inserted {
			callers[sym.Name] = sym.ID
			names = append(names, sym.Name)
			f.ids[sym.Name] = sym.ID
		}

		if _, err := f.resolver.RecordCallsTx(tx, callers, sites); err != nil {
			return err
		}
		_, err = f.resolver.PromotePendingTx(tx, names)
		return err
	})
	if err != nil {
		t.Fatalf("seed(%s) failed: %v", path, err)
	}
}

// seedChain builds main -> a -> b -> c plus an extra direct caller of b
func seedChain(t *testing.T, f *fixture) {
	f.seed(t, "c.go", []symbols.Def{{Name: "c", Kind: "function", StartLine: 1, EndLine: 5}}, nil)
	f.seed(t, "b.go",
		[]symbols.Def{{Name: "b", Kind: "function", StartLine: 1, EndLine: 8}},
		[]callgraph.CallSite{{Caller: "b", Callee: "c", Line: 4}})
	f.seed(t, "a.go",
		[]symbols.Def{{Name: "a", Kind: "function", StartLine: 1, EndLine: 8}},
		[]callgraph.CallSite{{Caller: "a", Callee: "b", Line: 3}})
	f.seed(t, "main.go",
		[]symbols.Def{
			{Name: "main", Kind: "function", StartLine: 1, EndLine: 10},
			{Name: "other", Kind: "function", StartLine: 12, EndLine: 20},
		},
		[]callgraph.CallSite{
			{Caller: "main", Callee: "a", Line: 5},
			{Caller: "other", Callee: "b", Line: 15},
		})
}

func TestCallersOf(t *testing.T) {
	f := setupEngine(t)
	seedChain(t, f)

	callers, err := f.engine.CallersOf(f.ids["b"], 0)
	if err != nil {
		t.Fatalf("CallersOf failed: %v", err)
	}
	if len(callers) != 2 {
		t.Fatalf("got %d callers of b, want 2", len(callers))
	}

	names := map[string]bool{}
	for _, c := range callers {
		names[c.Symbol.Name] = true
	}
	if !names["a"] || !names["other"] {
		t.Errorf("callers of b = %v, want a and other", names)
	}
}

func TestCalleesOfIncludesUnresolved(t *testing.T) {
	f := setupEngine(t)
	seedChain(t, f)

	f.seed(t, "d.go",
		[]symbols.Def{{Name: "d", Kind: "function", StartLine: 1, EndLine: 10}},
		[]callgraph.CallSite{
			{Caller: "d", Callee: "c", Line: 2},
			{Caller: "d", Callee: "not_indexed_yet", Line: 5},
		})

	callees, err := f.engine.CalleesOf(f.ids["d"], 0)
	if err != nil {
		t.Fatalf("CalleesOf failed: %v", err)
	}
	if len(callees) != 2 {
		t.Fatalf("got %d callees, want 2", len(callees))
	}

	var resolved, unresolved int
	for _, c := range callees {
		if c.Resolved {
			resolved++
			if c.Symbol == nil || c.Symbol.Name != "c" {
				t.Errorf("resolved callee should be c, got %+v", c.Symbol)
			}
		} else {
			unresolved++
			if c.Name != "not_indexed_yet" {
				t.Errorf("unresolved callee name = %q", c.Name)
			}
		}
	}
	if resolved != 1 || unresolved != 1 {
		t.Errorf("want 1 resolved + 1 unresolved, got %d+%d", resolved, unresolved)
	}
}

func TestReachableCallersDepth(t *testing.T) {
	f := setupEngine(t)
	seedChain(t, f)

	// Depth 1 from c: only b
	res, err := f.engine.ReachableCallers(f.ids["c"], 1, 100, 100)
	if err != nil {
		t.Fatalf("ReachableCallers failed: %v", err)
	}
	if len(res.Callers) != 1 || res.Callers[0].Symbol.Name != "b" {
		t.Fatalf("depth 1 from c: got %v, want [b]", res.Callers)
	}

	// Depth 3 from c: b, a, other, main
	res, err = f.engine.ReachableCallers(f.ids["c"], 3, 100, 100)
	if err != nil {
		t.Fatalf("ReachableCallers failed: %v", err)
	}
	if len(res.Callers) != 4 {
		t.Fatalf("depth 3 from c: got %d callers, want 4", len(res.Callers))
	}

	depths := map[string]int{}
	for _, c := range res.Callers {
		depths[c.Symbol.Name] = c.Depth
	}
	want := map[string]int{"b": 1, "a": 2, "other": 2, "main": 3}
	for name, d := range want {
		if depths[name] != d {
			t.Errorf("depth of %s = %d, want %d", name, depths[name], d)
		}
	}
}

func TestReachableCallersCycleSafe(t *testing.T) {
	f := setupEngine(t)

	// Mutual recursion: ping <-> pong
	f.seed(t, "ping.go",
		[]symbols.Def{{Name: "ping", Kind: "function", StartLine: 1, EndLine: 5}},
		[]callgraph.CallSite{{Caller: "ping", Callee: "pong", Line: 3}})
	f.seed(t, "pong.go",
		[]symbols.Def{{Name: "pong", Kind: "function", StartLine: 1, EndLine: 5}},
		[]callgraph.CallSite{{Caller: "pong", Callee: "ping", Line: 3}})

	res, err := f.engine.ReachableCallers(f.ids["ping"], 4, 100, 100)
	if err != nil {
		t.Fatalf("ReachableCallers failed: %v", err)
	}
	if len(res.Callers) != 1 || res.Callers[0].Symbol.Name != "pong" {
		t.Errorf("cycle walk from ping: got %v, want just pong", res.Callers)
	}
}

func TestReachableCallersNodeCap(t *testing.T) {
	f := setupEngine(t)
	seedChain(t, f)

	res, err := f.engine.ReachableCallers(f.ids["c"], 3, 2, 100)
	if err != nil {
		t.Fatalf("ReachableCallers failed: %v", err)
	}
	if len(res.Callers) != 2 {
		t.Errorf("got %d callers, want 2 (capped)", len(res.Callers))
	}
	if !res.Truncated {
		t.Error("capped walk should report truncation")
	}
}

func TestEntryPointsAndLeaves(t *testing.T) {
	f := setupEngine(t)
	seedChain(t, f)

	entries, err := f.engine.EntryPoints(0)
	if err != nil {
		t.Fatalf("EntryPoints failed: %v", err)
	}
	entryNames := map[string]bool{}
	for _, s := range entries {
		entryNames[s.Name] = true
	}
	if !entryNames["main"] || !entryNames["other"] {
		t.Errorf("entry points = %v, want main and other", entryNames)
	}
	if entryNames["b"] || entryNames["c"] {
		t.Errorf("called symbols must not be entry points: %v", entryNames)
	}

	leaves, err := f.engine.LeafFunctions(0)
	if err != nil {
		t.Fatalf("LeafFunctions failed: %v", err)
	}
	if len(leaves) != 1 || leaves[0].Name != "c" {
		t.Errorf("leaf functions = %v, want [c]", leaves)
	}
}

func TestResolveSymbol(t *testing.T) {
	f := setupEngine(t)
	seedChain(t, f)

	// By id
	matches, err := f.engine.ResolveSymbol(f.ids["b"], "")
	if err != nil {
		t.Fatalf("ResolveSymbol by id failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "b" {
		t.Errorf("resolve by id got %v", matches)
	}

	// By name
	matches, err = f.engine.ResolveSymbol("main", "")
	if err != nil {
		t.Fatalf("ResolveSymbol by name failed: %v", err)
	}
	if len(matches) != 1 || matches[0].Name != "main" {
		t.Errorf("resolve by name got %v", matches)
	}

	// Unknown name
	_, err = f.engine.ResolveSymbol("no_such_symbol", "")
	if !errors.HasCode(err, errors.SymbolNotFound) {
		t.Errorf("want SymbolNotFound, got %v", err)
	}
}

func TestIndexStats(t *testing.T) {
	f := setupEngine(t)
	seedChain(t, f)

	stats, err := f.engine.IndexStats()
	if err != nil {
		t.Fatalf("IndexStats failed: %v", err)
	}
	if stats.Symbols != 5 {
		t.Errorf("symbols = %d, want 5", stats.Symbols)
	}
	if stats.SymbolsByKind["function"] != 5 {
		t.Errorf("function count = %d, want 5", stats.SymbolsByKind["function"])
	}
	if stats.CallEdges != 4 {
		t.Errorf("edges = %d, want 4", stats.CallEdges)
	}
	if stats.UnresolvedCalls != 0 {
		t.Errorf("unresolved = %d, want 0", stats.UnresolvedCalls)
	}
}
