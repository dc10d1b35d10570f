package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cix/internal/logging"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dir := t.TempDir()

	db, err := Open(dir, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestDatabaseInitialization(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir, logging.NewNopLogger())
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	dbPath := filepath.Join(dir, ".cix", "cix.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Fatalf("database file was not created at %s", dbPath)
	}

	version, err := db.getSchemaVersion()
	if err != nil {
		t.Fatalf("failed to get schema version: %v", err)
	}
	if version != currentSchemaVersion {
		t.Errorf("schema version = %d, want %d", version, currentSchemaVersion)
	}
}

func TestReopenExistingDatabase(t *testing.T) {
	dir := t.TempDir()
	logger := logging.NewNopLogger()

	db, err := Open(dir, logger)
	if err != nil {
		t.Fatalf("first open failed: %v", err)
	}
	if _, err := db.Exec(
		`INSERT INTO symbols (id, file_path, name, kind, start_line, end_line, indexed_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		"id-1", "a.go", "alpha", "function", 1, 3, time.Now().Unix(),
	); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	db.Close()

	db, err = Open(dir, logger)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM symbols`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 after reopen", count)
	}
}

func TestSchemaTables(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{
		"symbols", "call_edges", "unresolved_calls", "diff_analysis_cache", "indexed_files",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestForeignKeysEnforced(t *testing.T) {
	db := setupTestDB(t)

	var enabled int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&enabled); err != nil {
		t.Fatalf("pragma query failed: %v", err)
	}
	if enabled != 1 {
		t.Fatal("foreign_keys pragma is off; edge cascade deletion depends on it")
	}

	// An edge referencing a missing symbol must be rejected
	_, err := db.Exec(
		`INSERT INTO call_edges (caller_id, callee_id, callee_name, call_kind, call_line) VALUES (?, ?, ?, ?, ?)`,
		"ghost-a", "ghost-b", "x", "direct", 1,
	)
	if err == nil {
		t.Error("edge with dangling symbol references was accepted")
	}
}

func TestForeignKeysOnEveryPooledConnection(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	// Holding the first connection forces the pool to open a second one;
	// both must carry the pragmas, not just whichever served an Exec.
	first, err := db.Conn().Conn(ctx)
	if err != nil {
		t.Fatalf("failed to pin first connection: %v", err)
	}
	defer first.Close()

	second, err := db.Conn().Conn(ctx)
	if err != nil {
		t.Fatalf("failed to pin second connection: %v", err)
	}
	defer second.Close()

	for i, conn := range []*sql.Conn{first, second} {
		var fk int
		if err := conn.QueryRowContext(ctx, `PRAGMA foreign_keys`).Scan(&fk); err != nil {
			t.Fatalf("pragma query on connection %d failed: %v", i, err)
		}
		if fk != 1 {
			t.Errorf("connection %d has foreign_keys = %d, want 1", i, fk)
		}
	}
}

func TestWithTxCommit(t *testing.T) {
	db := setupTestDB(t)

	err := db.WithTx(func(tx *sql.Tx) error {
		_, err := tx.Exec(
			`INSERT INTO indexed_files (path, content_hash, symbol_count, indexed_at) VALUES (?, ?, ?, ?)`,
			"a.go", "deadbeef", 2, time.Now().Unix(),
		)
		return err
	})
	if err != nil {
		t.Fatalf("WithTx failed: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM indexed_files`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1 after commit", count)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	db := setupTestDB(t)

	wantErr := fmt.Errorf("refusing to commit")
	err := db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			`INSERT INTO indexed_files (path, content_hash, symbol_count, indexed_at) VALUES (?, ?, ?, ?)`,
			"a.go", "deadbeef", 2, time.Now().Unix(),
		); err != nil {
			return err
		}
		return wantErr
	})
	if err == nil {
		t.Fatal("WithTx swallowed the error")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM indexed_files`).Scan(&count); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Errorf("count = %d, want 0 after rollback", count)
	}
}
