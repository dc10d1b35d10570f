package cache

import (
	"bytes"
	"testing"

	"cix/internal/logging"
	"cix/internal/storage"
)

func setupCache(t *testing.T) *AnalysisCache {
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

	c, err := NewAnalysisCache(db, logger)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	return c
}

func TestGetMissing(t *testing.T) {
	c := setupCache(t)

	entry, err := c.Get("aaa111", "bbb222")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Errorf("empty cache returned %+v", entry)
	}
}

func TestPutGetRoundTrip(t *testing.T) {
	c := setupCache(t)

	payload := []byte(`{"touchedSymbols":["run","main"],"impactSet":[]}`)
	err := c.Put(&Entry{
		FromRev:      "aaa111",
		ToRev:        "bbb222",
		Method:       MethodHeuristic,
		RiskLevel:    "Medium",
		Summary:      "touches parser internals",
		FilesChanged: 3,
		LinesAdded:   40,
		LinesRemoved: 12,
		Payload:      payload,
	})
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := c.Get("aaa111", "bbb222")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry == nil {
		t.Fatal("entry not found after Put")
	}
	if entry.Method != MethodHeuristic || entry.RiskLevel != "Medium" {
		t.Errorf("entry = %+v", entry)
	}
	if entry.FilesChanged != 3 || entry.LinesAdded != 40 || entry.LinesRemoved != 12 {
		t.Errorf("stats mismatch: %+v", entry)
	}
	if !bytes.Equal(entry.Payload, payload) {
		t.Errorf("payload mismatch: %q", entry.Payload)
	}
	if entry.CreatedAt == 0 {
		t.Error("createdAt not set")
	}
}

func TestModelAssistedSupersedesHeuristic(t *testing.T) {
	c := setupCache(t)

	put := func(method, summary string) {
		t.Helper()
		if err := c.Put(&Entry{
			FromRev: "a", ToRev: "b",
			Method: method, RiskLevel: "Low", Summary: summary,
			Payload: []byte("{}"),
		}); err != nil {
			t.Fatalf("Put(%s) failed: %v", method, err)
		}
	}

	put(MethodHeuristic, "rough guess")
	put(MethodModelAssisted, "informed analysis")

	entry, err := c.Get("a", "b")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Method != MethodModelAssisted || entry.Summary != "informed analysis" {
		t.Errorf("model-assisted should replace heuristic: %+v", entry)
	}

	// The reverse write is silently skipped
	put(MethodHeuristic, "later rough guess")

	entry, err = c.Get("a", "b")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Method != MethodModelAssisted || entry.Summary != "informed analysis" {
		t.Errorf("heuristic must never replace model-assisted: %+v", entry)
	}
}

func TestHeuristicReplacesHeuristic(t *testing.T) {
	c := setupCache(t)

	for _, summary := range []string{"first", "second"} {
		if err := c.Put(&Entry{
			FromRev: "a", ToRev: "b",
			Method: MethodHeuristic, RiskLevel: "Low", Summary: summary,
			Payload: []byte("{}"),
		}); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
	}

	entry, err := c.Get("a", "b")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry.Summary != "second" {
		t.Errorf("same-level write should be last-writer-wins: %+v", entry)
	}

	n, err := c.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 1 {
		t.Errorf("count = %d, want 1", n)
	}
}

func TestKeysAreDirectional(t *testing.T) {
	c := setupCache(t)

	if err := c.Put(&Entry{
		FromRev: "a", ToRev: "b",
		Method: MethodHeuristic, RiskLevel: "Low", Summary: "forward",
		Payload: []byte("{}"),
	}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	entry, err := c.Get("b", "a")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if entry != nil {
		t.Errorf("reversed key should miss, got %+v", entry)
	}
}
