// Package symbols implements the symbol store: the durable table of
// extracted definitions, replaced per file as one atomic unit.
package symbols

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cix/internal/logging"
	"cix/internal/storage"
)

// Symbol is one indexed definition (function, method, type) with a stable id.
// Ids are never reused: a re-index of the owning file replaces every symbol
// with a fresh id, and holders of an old id must treat it as gone.
type Symbol struct {
	ID        string `json:"id"`
	FilePath  string `json:"filePath"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
	Container string `json:"container,omitempty"`
	Signature string `json:"signature,omitempty"`
}

// Def is the input shape for a symbol definition produced by a parser pass
type Def struct {
	Name      string
	Kind      string
	StartLine int
	EndLine   int
	Container string
	Signature string
}

// Store provides database operations on the symbols table
type Store struct {
	db     *storage.DB
	logger *logging.Logger
}

// NewStore creates a new symbol store
func NewStore(db *storage.DB, logger *logging.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.WithComponent("symbols"),
	}
}

// ReplaceFileSymbols deletes all existing symbols for filePath and inserts
// defs as one transaction, returning the new symbols with their fresh ids.
func (s *Store) ReplaceFileSymbols(filePath string, defs []Def) ([]Symbol, error) {
	var inserted []Symbol
	err := s.db.WithTx(func(tx *sql.Tx) error {
		var txErr error
		inserted, txErr = s.ReplaceFileSymbolsTx(tx, filePath, defs)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// ReplaceFileSymbolsTx is ReplaceFileSymbols within a caller-owned
// transaction, so the indexer can combine the symbol replace with call-edge
// bookkeeping in a single atomic unit.
func (s *Store) ReplaceFileSymbolsTx(tx *sql.Tx, filePath string, defs []Def) ([]Symbol, error) {
	if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, filePath); err != nil {
		return nil, fmt.Errorf("failed to delete old symbols: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO symbols (id, file_path, name, kind, start_line, end_line, container, signature, indexed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare symbol insert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // Best effort cleanup

	now := time.Now().Unix()
	inserted := make([]Symbol, 0, len(defs))
	for _, def := range defs {
		sym := Symbol{
			ID:        uuid.NewString(),
			FilePath:  filePath,
			Name:      def.Name,
			Kind:      def.Kind,
			StartLine: def.StartLine,
			EndLine:   def.EndLine,
			Container: def.Container,
			Signature: def.Signature,
		}
		if _, err := stmt.Exec(sym.ID, sym.FilePath, sym.Name, sym.Kind, sym.StartLine, sym.EndLine, sym.Container, sym.Signature, now); err != nil {
			return nil, fmt.Errorf("failed to insert symbol %s: %w", def.Name, err)
		}
		inserted = append(inserted, sym)
	}

	return inserted, nil
}

// OldSymbolIDsTx returns the ids currently stored for a file, read within
// the caller's transaction. Used to clean up call-graph rows before replace.
func (s *Store) OldSymbolIDsTx(tx *sql.Tx, filePath string) ([]string, error) {
	rows, err := tx.Query(`SELECT id FROM symbols WHERE file_path = ?`, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbol ids: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan symbol id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const symbolColumns = `id, file_path, name, kind, start_line, end_line, container, signature`

// LookupByName returns all symbols with the given name. When scopeHint is
// non-empty, matches whose container equals the hint, or whose defining
// file matches it (exactly or as a trailing path segment), are preferred:
// if any exist, only those are returned. Ambiguity is never collapsed
// here; the caller decides what multiple matches mean.
func (s *Store) LookupByName(name, scopeHint string) ([]Symbol, error) {
	rows, err := s.db.Query(`
		SELECT `+symbolColumns+` FROM symbols
		WHERE name = ?
		ORDER BY file_path, start_line
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup symbol %s: %w", name, err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	matches, err := scanSymbols(rows)
	if err != nil {
		return nil, err
	}

	if scopeHint != "" {
		var scoped []Symbol
		for _, m := range matches {
			if m.Container == scopeHint || matchesFilePath(m.FilePath, scopeHint) {
				scoped = append(scoped, m)
			}
		}
		if len(scoped) > 0 {
			return scoped, nil
		}
	}

	return matches, nil
}

// matchesFilePath reports whether a symbol's defining file matches a
// user-supplied hint: the full repo-relative path, or a trailing segment
// of it ("store.go" matches "internal/symbols/store.go").
func matchesFilePath(filePath, hint string) bool {
	hint = filepath.ToSlash(hint)
	return filePath == hint || strings.HasSuffix(filePath, "/"+hint)
}

// LookupByNameTx is LookupByName within a caller-owned transaction
func (s *Store) LookupByNameTx(tx *sql.Tx, name string) ([]Symbol, error) {
	rows, err := tx.Query(`
		SELECT `+symbolColumns+` FROM symbols
		WHERE name = ?
		ORDER BY file_path, start_line
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup symbol %s: %w", name, err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	return scanSymbols(rows)
}

// Get returns a single symbol by id, or nil when the id is unknown
func (s *Store) Get(id string) (*Symbol, error) {
	row := s.db.QueryRow(`SELECT `+symbolColumns+` FROM symbols WHERE id = ?`, id)

	var sym Symbol
	err := row.Scan(&sym.ID, &sym.FilePath, &sym.Name, &sym.Kind, &sym.StartLine, &sym.EndLine, &sym.Container, &sym.Signature)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get symbol %s: %w", id, err)
	}
	return &sym, nil
}

// SymbolsForFile returns all symbols currently recorded for a file,
// ordered by position
func (s *Store) SymbolsForFile(filePath string) ([]Symbol, error) {
	rows, err := s.db.Query(`
		SELECT `+symbolColumns+` FROM symbols
		WHERE file_path = ?
		ORDER BY start_line
	`, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols for file: %w", err)
	}
	defer rows.Close() //nolint:errcheck // Best effort cleanup

	return scanSymbols(rows)
}

// DeleteFile removes all symbols for a file. Call-graph rows referencing
// them are removed by cascade.
func (s *Store) DeleteFile(filePath string) error {
	if _, err := s.db.Exec(`DELETE FROM symbols WHERE file_path = ?`, filePath); err != nil {
		return fmt.Errorf("failed to delete symbols for %s: %w", filePath, err)
	}
	return nil
}

// Count returns the total number of indexed symbols
func (s *Store) Count() (int, error) {
	var count int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count symbols: %w", err)
	}
	return count, nil
}

func scanSymbols(rows *sql.Rows) ([]Symbol, error) {
	var symbols []Symbol
	for rows.Next() {
		var sym Symbol
		if err := rows.Scan(&sym.ID, &sym.FilePath, &sym.Name, &sym.Kind, &sym.StartLine, &sym.EndLine, &sym.Container, &sym.Signature); err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}
