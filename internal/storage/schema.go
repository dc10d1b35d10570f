package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		if err := createSymbolsTable(tx); err != nil {
			return err
		}
		if err := createCallEdgesTable(tx); err != nil {
			return err
		}
		if err := createUnresolvedCallsTable(tx); err != nil {
			return err
		}
		if err := createDiffAnalysisCacheTable(tx); err != nil {
			return err
		}
		if err := createIndexedFilesTable(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Database schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		db.logger.Debug("Database schema is up to date", map[string]interface{}{
			"version": version,
		})
		return nil
	}

	if version == 0 {
		// Database file existed but was never initialized
		return db.initializeSchema()
	}

	db.logger.Info("Running database migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Migrations are added here as the schema evolves

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	_, err := tx.Exec("DELETE FROM schema_version")
	if err != nil {
		return err
	}
	_, err = tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

// createSchemaVersionTable creates the schema_version tracking table
func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createSymbolsTable creates the symbols table. The symbols for a file are
// always replaced as a unit, so rows never outlive a re-index of their file.
func createSymbolsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS symbols (
			id TEXT PRIMARY KEY,
			file_path TEXT NOT NULL,
			name TEXT NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('function', 'method', 'type', 'interface', 'class')),
			start_line INTEGER NOT NULL,
			end_line INTEGER NOT NULL,
			container TEXT NOT NULL DEFAULT '',
			signature TEXT NOT NULL DEFAULT '',
			indexed_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create symbols table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_symbols_file_path ON symbols(file_path)",
		"CREATE INDEX IF NOT EXISTS idx_symbols_name ON symbols(name)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createCallEdgesTable creates the call_edges table. The callee display name
// is denormalized so name-based lookup works without graph traversal, and the
// uniqueness constraint makes edge promotion idempotent.
func createCallEdgesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS call_edges (
			id INTEGER PRIMARY KEY,
			caller_id TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
			callee_id TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
			callee_name TEXT NOT NULL,
			call_kind TEXT NOT NULL DEFAULT 'direct',
			call_line INTEGER NOT NULL,

			UNIQUE(caller_id, callee_name, call_line)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create call_edges table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_call_edges_caller_id ON call_edges(caller_id)",
		"CREATE INDEX IF NOT EXISTS idx_call_edges_callee_id ON call_edges(callee_id)",
		"CREATE INDEX IF NOT EXISTS idx_call_edges_callee_name ON call_edges(callee_name)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createUnresolvedCallsTable creates the unresolved_calls table: the pending
// queue for call sites whose callee is not yet (or ambiguously) known.
// Uniqueness mirrors call_edges so a pending row is the same fact as an edge,
// just not yet promotable.
func createUnresolvedCallsTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS unresolved_calls (
			id INTEGER PRIMARY KEY,
			caller_id TEXT NOT NULL REFERENCES symbols(id) ON DELETE CASCADE,
			callee_name TEXT NOT NULL,
			callee_key TEXT NOT NULL,
			call_kind TEXT NOT NULL DEFAULT 'direct',
			call_line INTEGER NOT NULL,
			created_at INTEGER NOT NULL,

			UNIQUE(caller_id, callee_name, call_line)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create unresolved_calls table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_unresolved_calls_caller_id ON unresolved_calls(caller_id)",
		"CREATE INDEX IF NOT EXISTS idx_unresolved_calls_callee_name ON unresolved_calls(callee_name)",
		"CREATE INDEX IF NOT EXISTS idx_unresolved_calls_callee_key ON unresolved_calls(callee_key)",
	}

	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createDiffAnalysisCacheTable creates the diff_analysis_cache table keyed by
// resolved revision pair. The method column distinguishes heuristic results
// (replaceable) from model-assisted ones (final).
func createDiffAnalysisCacheTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS diff_analysis_cache (
			id INTEGER PRIMARY KEY,
			from_rev TEXT NOT NULL,
			to_rev TEXT NOT NULL,
			method TEXT NOT NULL CHECK(method IN ('heuristic', 'model-assisted')),
			risk_level TEXT NOT NULL,
			summary TEXT NOT NULL DEFAULT '',
			files_changed INTEGER NOT NULL DEFAULT 0,
			lines_added INTEGER NOT NULL DEFAULT 0,
			lines_removed INTEGER NOT NULL DEFAULT 0,
			payload BLOB,
			created_at INTEGER NOT NULL,

			UNIQUE(from_rev, to_rev)
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create diff_analysis_cache table: %w", err)
	}

	if _, err := tx.Exec(
		"CREATE INDEX IF NOT EXISTS idx_diff_cache_revs ON diff_analysis_cache(from_rev, to_rev)",
	); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// createIndexedFilesTable creates the indexed_files table used for
// unchanged-content skip during re-index.
func createIndexedFilesTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS indexed_files (
			path TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			symbol_count INTEGER NOT NULL DEFAULT 0,
			indexed_at INTEGER NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create indexed_files table: %w", err)
	}
	return nil
}
