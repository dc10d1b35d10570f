// Package indexer orchestrates parsing and persistence: it walks source
// trees, feeds files through a parser, and applies each file's symbols and
// call sites to the database in a single transaction per file, so readers
// never observe a half-indexed file.
package indexer

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"cix/internal/callgraph"
	"cix/internal/config"
	"cix/internal/logging"
	"cix/internal/parser"
	"cix/internal/storage"
	"cix/internal/symbols"
)

const (
	defaultMaxFileSize = 1 << 20 // 1 MiB
	defaultWorkers     = 4
)

// defaultIgnores are directory names skipped during walks when the
// configuration doesn't list its own.
var defaultIgnores = []string{
	".git", ".cix", "node_modules", "vendor", "target", "__pycache__", "dist", "build",
}

// FileStats reports the outcome of indexing one file
type FileStats struct {
	Path       string `json:"path"`
	Symbols    int    `json:"symbols"`
	Edges      int    `json:"edges"`
	Unresolved int    `json:"unresolved"`
	Promoted   int    `json:"promoted"`
	// Unchanged is true when the file's content hash matched the stored
	// one and nothing was re-parsed
	Unchanged bool `json:"unchanged"`
}

// FileError pairs a file path with the error that kept it out of the index
type FileError struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

// Stats aggregates a directory indexing run
type Stats struct {
	FilesIndexed  int           `json:"filesIndexed"`
	FilesSkipped  int           `json:"filesSkipped"`
	FilesFailed   int           `json:"filesFailed"`
	Symbols       int           `json:"symbols"`
	Edges         int           `json:"edges"`
	Unresolved    int           `json:"unresolved"`
	Duration      time.Duration `json:"duration"`
	Errors        []FileError   `json:"errors,omitempty"`
}

// Indexer applies parsed files to the symbol index and call graph
type Indexer struct {
	repoRoot string
	db       *storage.DB
	store    *symbols.Store
	resolver *callgraph.Resolver
	parser   parser.Parser
	cfg      config.IndexingConfig
	logger   *logging.Logger
}

// NewIndexer creates an indexer rooted at repoRoot
func NewIndexer(
	repoRoot string,
	db *storage.DB,
	store *symbols.Store,
	resolver *callgraph.Resolver,
	p parser.Parser,
	cfg config.IndexingConfig,
	logger *logging.Logger,
) *Indexer {
	return &Indexer{
		repoRoot: repoRoot,
		db:       db,
		store:    store,
		resolver: resolver,
		parser:   p,
		cfg:      cfg,
		logger:   logger.WithComponent("indexer"),
	}
}

// IndexFile indexes one file by repo-relative path. Unchanged content is
// detected by hash and skipped. The database write is one transaction:
// incoming edges to the file's old symbols are demoted to pending calls,
// old symbols are replaced, the file's own calls are recorded, and pending
// calls naming the new symbols are promoted back to edges.
func (ix *Indexer) IndexFile(ctx context.Context, relPath string) (*FileStats, error) {
	relPath = filepath.ToSlash(relPath)

	source, err := os.ReadFile(filepath.Join(ix.repoRoot, relPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", relPath, err)
	}

	hash := contentHash(source)
	stored, err := ix.storedHash(relPath)
	if err != nil {
		return nil, err
	}
	if stored == hash {
		return &FileStats{Path: relPath, Unchanged: true}, nil
	}

	result, err := ix.parser.Parse(ctx, relPath, source)
	if err != nil {
		return nil, err
	}

	return ix.apply(relPath, hash, result)
}

// IndexParsed applies an externally produced parse result, such as a
// document from a SCIP index. The content hash is taken from the file on
// disk when it exists, so a later IndexFile call can skip it if unchanged.
func (ix *Indexer) IndexParsed(result *parser.Result) (*FileStats, error) {
	relPath := filepath.ToSlash(result.Path)
	hash := ""
	if source, err := os.ReadFile(filepath.Join(ix.repoRoot, relPath)); err == nil {
		hash = contentHash(source)
	}
	return ix.apply(relPath, hash, result)
}

// RemoveFile drops a deleted file from the index. Edges into its symbols
// are demoted to pending calls first, so a later re-creation of the file
// re-links callers without re-indexing them.
func (ix *Indexer) RemoveFile(relPath string) error {
	relPath = filepath.ToSlash(relPath)

	err := ix.db.WithTx(func(tx *sql.Tx) error {
		oldIDs, err := ix.store.OldSymbolIDsTx(tx, relPath)
		if err != nil {
			return err
		}
		if err := ix.resolver.DemoteIncomingEdgesTx(tx, oldIDs); err != nil {
			return err
		}
		if err := ix.resolver.DeleteCallerDataTx(tx, oldIDs); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM symbols WHERE file_path = ?`, relPath); err != nil {
			return fmt.Errorf("failed to delete symbols for %s: %w", relPath, err)
		}
		if _, err := tx.Exec(`DELETE FROM indexed_files WHERE path = ?`, relPath); err != nil {
			return fmt.Errorf("failed to delete index record for %s: %w", relPath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	ix.logger.Info("Removed file from index", map[string]interface{}{
		"path": relPath,
	})
	return nil
}

// IndexDirectory walks dir (repo-relative, "" for the whole repo), parses
// candidate files in parallel, and applies results sequentially. Per-file
// failures are collected in Stats.Errors; the walk continues past them.
func (ix *Indexer) IndexDirectory(ctx context.Context, dir string) (*Stats, error) {
	start := time.Now()
	stats := &Stats{}

	paths, err := ix.collectFiles(dir)
	if err != nil {
		return nil, err
	}

	type parsed struct {
		path   string
		hash   string
		result *parser.Result
		err    error
	}

	workers := ix.cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
		if n := runtime.NumCPU(); n < workers {
			workers = n
		}
	}

	jobs := make(chan string)
	results := make(chan parsed)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range jobs {
				source, err := os.ReadFile(filepath.Join(ix.repoRoot, path))
				if err != nil {
					results <- parsed{path: path, err: err}
					continue
				}
				hash := contentHash(source)
				stored, err := ix.storedHash(path)
				if err == nil && stored == hash {
					results <- parsed{path: path, hash: hash}
					continue
				}
				res, err := ix.parser.Parse(ctx, path, source)
				results <- parsed{path: path, hash: hash, result: res, err: err}
			}
		}()
	}

	// Cancellation stops the feeder early; closing results once the
	// workers drain keeps the consumer loop from waiting on jobs that
	// were never dispatched.
	go func() {
		defer close(jobs)
		for _, path := range paths {
			select {
			case jobs <- path:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	// Database writes stay on this goroutine; SQLite likes one writer.
	for p := range results {
		switch {
		case p.err != nil:
			stats.FilesFailed++
			stats.Errors = append(stats.Errors, FileError{Path: p.path, Error: p.err.Error()})
			ix.logger.Warn("Failed to index file", map[string]interface{}{
				"path":  p.path,
				"error": p.err.Error(),
			})
		case p.result == nil:
			stats.FilesSkipped++
		default:
			fileStats, err := ix.apply(p.path, p.hash, p.result)
			if err != nil {
				stats.FilesFailed++
				stats.Errors = append(stats.Errors, FileError{Path: p.path, Error: err.Error()})
				continue
			}
			stats.FilesIndexed++
			stats.Symbols += fileStats.Symbols
			stats.Edges += fileStats.Edges + fileStats.Promoted
			stats.Unresolved += fileStats.Unresolved
		}
	}

	stats.Duration = time.Since(start)
	ix.logger.Info("Directory indexing complete", map[string]interface{}{
		"filesIndexed": stats.FilesIndexed,
		"filesSkipped": stats.FilesSkipped,
		"filesFailed":  stats.FilesFailed,
		"symbols":      stats.Symbols,
		"duration":     stats.Duration.String(),
	})
	return stats, nil
}

// apply writes one parsed file to the database in a single transaction
func (ix *Indexer) apply(relPath, hash string, result *parser.Result) (*FileStats, error) {
	defs := make([]symbols.Def, 0, len(result.Definitions))
	for _, d := range result.Definitions {
		defs = append(defs, symbols.Def{
			Name:      d.Name,
			Kind:      d.Kind,
			StartLine: d.StartLine,
			EndLine:   d.EndLine,
			Container: d.Container,
			Signature: d.Signature,
		})
	}

	sites := make([]callgraph.CallSite, 0, len(result.Calls))
	for _, c := range result.Calls {
		sites = append(sites, callgraph.CallSite{
			Caller: c.Caller,
			Callee: c.Callee,
			Kind:   c.Kind,
			Line:   c.Line,
		})
	}

	fileStats := &FileStats{Path: relPath}

	err := ix.db.WithTx(func(tx *sql.Tx) error {
		oldIDs, err := ix.store.OldSymbolIDsTx(tx, relPath)
		if err != nil {
			return err
		}
		if err := ix.resolver.DemoteIncomingEdgesTx(tx, oldIDs); err != nil {
			return err
		}
		if err := ix.resolver.DeleteCallerDataTx(tx, oldIDs); err != nil {
			return err
		}

		newSyms, err := ix.store.ReplaceFileSymbolsTx(tx, relPath, defs)
		if err != nil {
			return err
		}
		fileStats.Symbols = len(newSyms)

		callers := make(map[string]string, len(newSyms))
		names := make([]string, 0, len(newSyms))
		for _, sym := range newSyms {
			names = append(names, sym.Name)
			if sym.Kind == "function" || sym.Kind == "method" {
				if _, dup := callers[sym.Name]; !dup {
					callers[sym.Name] = sym.ID
				}
			}
		}

		recorded, err := ix.resolver.RecordCallsTx(tx, callers, sites)
		if err != nil {
			return err
		}
		fileStats.Edges = recorded.EdgesInserted
		fileStats.Unresolved = recorded.UnresolvedInserted

		promoted, err := ix.resolver.PromotePendingTx(tx, names)
		if err != nil {
			return err
		}
		fileStats.Promoted = promoted

		_, err = tx.Exec(`
			INSERT INTO indexed_files (path, content_hash, symbol_count, indexed_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				content_hash = excluded.content_hash,
				symbol_count = excluded.symbol_count,
				indexed_at = excluded.indexed_at
		`, relPath, hash, len(newSyms), time.Now().Unix())
		if err != nil {
			return fmt.Errorf("failed to record indexed file %s: %w", relPath, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ix.logger.Debug("Indexed file", map[string]interface{}{
		"path":       relPath,
		"symbols":    fileStats.Symbols,
		"edges":      fileStats.Edges,
		"unresolved": fileStats.Unresolved,
		"promoted":   fileStats.Promoted,
	})
	return fileStats, nil
}

// collectFiles walks dir and returns repo-relative candidate paths
func (ix *Indexer) collectFiles(dir string) ([]string, error) {
	root := ix.repoRoot
	if dir != "" {
		root = filepath.Join(ix.repoRoot, dir)
	}

	ignores := ix.cfg.Ignore
	if len(ignores) == 0 {
		ignores = defaultIgnores
	}
	ignored := make(map[string]bool, len(ignores))
	for _, name := range ignores {
		ignored[name] = true
	}

	maxSize := ix.cfg.MaxFileSizeBytes
	if maxSize <= 0 {
		maxSize = defaultMaxFileSize
	}

	var allowed map[parser.Language]bool
	if len(ix.cfg.Languages) > 0 {
		allowed = make(map[parser.Language]bool, len(ix.cfg.Languages))
		for _, l := range ix.cfg.Languages {
			allowed[parser.Language(l)] = true
		}
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && (ignored[name] || strings.HasPrefix(name, ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		if !ix.parser.Supports(path) {
			return nil
		}
		if allowed != nil {
			lang, ok := parser.LanguageFromPath(path)
			if !ok || !allowed[lang] {
				return nil
			}
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if info.Size() > int64(maxSize) {
			ix.logger.Debug("Skipping oversized file", map[string]interface{}{
				"path": path,
				"size": info.Size(),
			})
			return nil
		}
		rel, err := filepath.Rel(ix.repoRoot, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", root, err)
	}
	return paths, nil
}

func (ix *Indexer) storedHash(relPath string) (string, error) {
	var hash string
	err := ix.db.QueryRow(
		`SELECT content_hash FROM indexed_files WHERE path = ?`, relPath,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up indexed file %s: %w", relPath, err)
	}
	return hash, nil
}

func contentHash(source []byte) string {
	sum := blake2b.Sum256(source)
	return hex.EncodeToString(sum[:])
}
