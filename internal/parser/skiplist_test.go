package parser

import "testing"

func TestSkipCallee(t *testing.T) {
	tests := []struct {
		name string
		skip bool
	}{
		{"unwrap", true},
		{"result.unwrap", true},
		{"Option::unwrap", true},
		{"append", true},
		{"console.log", true},
		{"index_file", false},
		{"storage::open", false},
		{"h.lookup", false},
	}

	for _, tt := range tests {
		if got := SkipCallee(tt.name); got != tt.skip {
			t.Errorf("SkipCallee(%q) = %v, want %v", tt.name, got, tt.skip)
		}
	}
}

func TestLanguageFromPath(t *testing.T) {
	tests := []struct {
		path string
		lang Language
		ok   bool
	}{
		{"main.go", LangGo, true},
		{"src/lib.rs", LangRust, true},
		{"app.py", LangPython, true},
		{"index.js", LangJavaScript, true},
		{"component.tsx", LangTSX, true},
		{"Server.TS", LangTypeScript, true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}

	for _, tt := range tests {
		lang, ok := LanguageFromPath(tt.path)
		if lang != tt.lang || ok != tt.ok {
			t.Errorf("LanguageFromPath(%q) = %v, %v; want %v, %v", tt.path, lang, ok, tt.lang, tt.ok)
		}
	}
}
