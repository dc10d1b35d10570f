package parser

import (
	"path/filepath"
	"strings"
)

// Language identifies a supported source language
type Language string

const (
	LangGo         Language = "go"
	LangRust       Language = "rust"
	LangPython     Language = "python"
	LangJavaScript Language = "javascript"
	LangTypeScript Language = "typescript"
	LangTSX        Language = "tsx"
)

// AllLanguages lists every language the extractor handles
func AllLanguages() []Language {
	return []Language{LangGo, LangRust, LangPython, LangJavaScript, LangTypeScript, LangTSX}
}

// LanguageFromPath maps a file path to its language by extension
func LanguageFromPath(path string) (Language, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return LangGo, true
	case ".rs":
		return LangRust, true
	case ".py":
		return LangPython, true
	case ".js", ".jsx", ".mjs", ".cjs":
		return LangJavaScript, true
	case ".ts":
		return LangTypeScript, true
	case ".tsx":
		return LangTSX, true
	default:
		return "", false
	}
}
