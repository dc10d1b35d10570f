// Package cache persists diff analysis results keyed by revision pair.
// Results come in two quality levels: "heuristic" and "model-assisted".
// A model-assisted result permanently supersedes a heuristic one for the
// same key; the reverse write is skipped. The check is a read-modify-write
// immediately before writing, inside one transaction.
package cache

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"cix/internal/logging"
	"cix/internal/storage"
)

// Analysis methods, ordered by quality
const (
	MethodHeuristic     = "heuristic"
	MethodModelAssisted = "model-assisted"
)

// Entry is one cached analysis. Payload carries the full structured result
// (touched symbols, impact set, changes) as zstd-compressed JSON owned by
// the impact layer; the remaining columns are queryable summaries.
type Entry struct {
	FromRev      string `json:"fromRev"`
	ToRev        string `json:"toRev"`
	Method       string `json:"method"`
	RiskLevel    string `json:"riskLevel"`
	Summary      string `json:"summary"`
	FilesChanged int    `json:"filesChanged"`
	LinesAdded   int    `json:"linesAdded"`
	LinesRemoved int    `json:"linesRemoved"`
	Payload      []byte `json:"-"`
	CreatedAt    int64  `json:"createdAt"`
}

// AnalysisCache stores diff analysis results in the index database
type AnalysisCache struct {
	db      *storage.DB
	logger  *logging.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewAnalysisCache creates the cache. The zstd coders are reused across
// calls; both are safe for concurrent use via EncodeAll/DecodeAll.
func NewAnalysisCache(db *storage.DB, logger *logging.Logger) (*AnalysisCache, error) {
	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &AnalysisCache{
		db:      db,
		logger:  logger.WithComponent("cache"),
		encoder: encoder,
		decoder: decoder,
	}, nil
}

// Get returns the cached entry for a revision pair, or nil when absent
func (c *AnalysisCache) Get(fromRev, toRev string) (*Entry, error) {
	row := c.db.QueryRow(`
		SELECT from_rev, to_rev, method, risk_level, summary,
		       files_changed, lines_added, lines_removed, payload, created_at
		FROM diff_analysis_cache
		WHERE from_rev = ? AND to_rev = ?
	`, fromRev, toRev)

	var e Entry
	var compressed []byte
	err := row.Scan(&e.FromRev, &e.ToRev, &e.Method, &e.RiskLevel, &e.Summary,
		&e.FilesChanged, &e.LinesAdded, &e.LinesRemoved, &compressed, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read analysis cache: %w", err)
	}

	if len(compressed) > 0 {
		payload, err := c.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress cached payload: %w", err)
		}
		e.Payload = payload
	}
	return &e, nil
}

// Put writes an entry, enforcing the supersession rule: a heuristic result
// never overwrites a model-assisted one for the same key. Skipped writes
// are silent; the stored result is simply the better one.
func (c *AnalysisCache) Put(entry *Entry) error {
	compressed := c.encoder.EncodeAll(entry.Payload, nil)
	now := time.Now().Unix()

	return c.db.WithTx(func(tx *sql.Tx) error {
		var existing string
		err := tx.QueryRow(`
			SELECT method FROM diff_analysis_cache WHERE from_rev = ? AND to_rev = ?
		`, entry.FromRev, entry.ToRev).Scan(&existing)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("failed to check cached method: %w", err)
		}

		if existing == MethodModelAssisted && entry.Method == MethodHeuristic {
			c.logger.Debug("Skipping heuristic write over model-assisted result", map[string]interface{}{
				"fromRev": entry.FromRev,
				"toRev":   entry.ToRev,
			})
			return nil
		}

		_, err = tx.Exec(`
			INSERT INTO diff_analysis_cache
				(from_rev, to_rev, method, risk_level, summary,
				 files_changed, lines_added, lines_removed, payload, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(from_rev, to_rev) DO UPDATE SET
				method = excluded.method,
				risk_level = excluded.risk_level,
				summary = excluded.summary,
				files_changed = excluded.files_changed,
				lines_added = excluded.lines_added,
				lines_removed = excluded.lines_removed,
				payload = excluded.payload,
				created_at = excluded.created_at
		`, entry.FromRev, entry.ToRev, entry.Method, entry.RiskLevel, entry.Summary,
			entry.FilesChanged, entry.LinesAdded, entry.LinesRemoved, compressed, now)
		if err != nil {
			return fmt.Errorf("failed to write analysis cache: %w", err)
		}
		return nil
	})
}

// Count returns the number of cached analyses
func (c *AnalysisCache) Count() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM diff_analysis_cache`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return n, nil
}
