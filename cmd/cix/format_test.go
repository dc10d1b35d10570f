package main

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"cix/internal/impact"
	"cix/internal/indexer"
	"cix/internal/symbols"
)

func TestEnvelopeJSON(t *testing.T) {
	env := envelope{Success: true, Data: map[string]int{"symbols": 3}}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"success":true`) {
		t.Errorf("missing success discriminator: %s", s)
	}
	if !strings.Contains(s, `"symbols":3`) {
		t.Errorf("missing data: %s", s)
	}
}

func TestEnvelopeFailureJSON(t *testing.T) {
	env := envelope{Success: false, Error: &errorBody{Code: "REF_NOT_FOUND", Message: "no such ref"}}

	data, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, `"success":false`) || !strings.Contains(s, "REF_NOT_FOUND") {
		t.Errorf("failure envelope malformed: %s", s)
	}
	if strings.Contains(s, `"data"`) {
		t.Errorf("failure envelope should omit data: %s", s)
	}
}

func TestEnvelopeYAMLRoundTrip(t *testing.T) {
	env := envelope{Success: true, Data: &indexResponse{
		Stats:  indexer.Stats{FilesIndexed: 2, Symbols: 7, Duration: time.Second},
		Source: "tree-sitter",
	}}

	data, err := yaml.Marshal(env)
	if err != nil {
		t.Fatalf("yaml marshal failed: %v", err)
	}
	s := string(data)
	if !strings.Contains(s, "success: true") {
		t.Errorf("missing success: %s", s)
	}
	if !strings.Contains(s, "source: tree-sitter") {
		t.Errorf("missing source: %s", s)
	}
}

func TestSymbolsResponseHuman(t *testing.T) {
	resp := &symbolsResponse{
		File: "src/a.go",
		Symbols: []symbols.Symbol{
			{Name: "Get", Kind: "method", Container: "Handler", StartLine: 10, EndLine: 20},
			{Name: "New", Kind: "function", StartLine: 3, EndLine: 8},
		},
	}

	out := resp.human()
	if !strings.Contains(out, "src/a.go: 2 symbols") {
		t.Errorf("missing header: %s", out)
	}
	if !strings.Contains(out, "Handler.Get") {
		t.Errorf("method should show its container: %s", out)
	}
	if !strings.Contains(out, "lines 3-8") {
		t.Errorf("missing line span: %s", out)
	}
}

func TestImpactResponseHuman(t *testing.T) {
	resp := &impactResponse{Result: impact.Result{
		FromRev:      "abc1234",
		ToRev:        "def5678",
		Method:       "heuristic",
		Summary:      "1 files changed (+2/-1), 1 symbols touched, 1 callers affected",
		FilesChanged: 1,
		LinesAdded:   2,
		LinesRemoved: 1,
		Risk:         impact.Risk{Level: impact.RiskMedium, Flags: []string{"medium-blast-radius"}, Score: 0.3},
		TouchedSymbols: []impact.TouchedSymbol{
			{Name: "target", Kind: "function", FilePath: "src.go", SpanLines: 4, ChangedLines: 2},
		},
		ImpactSet: []impact.ImpactEntry{
			{Name: "notify", FilePath: "caller.go", Depth: 1},
		},
		Cached: true,
	}}

	out := resp.human()
	for _, want := range []string{
		"abc1234..def5678",
		"Medium risk",
		"(cached)",
		"target",
		"[1] notify",
		"medium-blast-radius",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("human output missing %q:\n%s", want, out)
		}
	}
}

func TestIndexResponseHumanListsFailures(t *testing.T) {
	resp := &indexResponse{
		Stats: indexer.Stats{
			FilesIndexed: 3,
			FilesFailed:  1,
			Duration:     1500 * time.Millisecond,
			Errors:       []indexer.FileError{{Path: "bad.rs", Error: "parse failed"}},
		},
		Source: "tree-sitter",
	}

	out := resp.human()
	if !strings.Contains(out, "Indexed 3 files in 1.5s") {
		t.Errorf("missing summary: %s", out)
	}
	if !strings.Contains(out, "failed: bad.rs: parse failed") {
		t.Errorf("missing failure line: %s", out)
	}
}
