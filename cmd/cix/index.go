package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"cix/internal/index"
	"cix/internal/indexer"
	"cix/internal/parser"
)

var (
	indexForce bool
)

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Index source files into the symbol and call graph database",
	Long: `Walks the repository (or the given subdirectory), extracts symbol
definitions and call sites, and updates the index. Files whose content
hash is unchanged are skipped unless --force is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVar(&indexForce, "force", false,
		"Re-index every file, ignoring content hashes")
	rootCmd.AddCommand(indexCmd)
}

type indexResponse struct {
	indexer.Stats `yaml:",inline"`
	Source        string `json:"source" yaml:"source"`
}

func (r *indexResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Indexed %d files in %s (%d unchanged, %d failed)\n",
		r.FilesIndexed, r.Duration.Round(time.Millisecond), r.FilesSkipped, r.FilesFailed)
	fmt.Fprintf(&b, "  symbols: %d\n  call edges: %d\n  unresolved calls: %d",
		r.Symbols, r.Edges, r.Unresolved)
	for _, fe := range r.Errors {
		fmt.Fprintf(&b, "\n  failed: %s: %s", fe.Path, fe.Error)
	}
	return b.String()
}

func runIndex(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	lock, err := index.AcquireLock(a.cixDir())
	if err != nil {
		return emitFailure(err)
	}
	defer lock.Release()

	if indexForce {
		if _, err := a.db.Exec(`DELETE FROM indexed_files`); err != nil {
			return emitFailure(fmt.Errorf("failed to clear file hashes: %w", err))
		}
	}

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	}

	stats, source, err := a.runIndexing(cmd.Context(), dir)
	if err != nil {
		return emitFailure(err)
	}

	if err := a.saveIndexMeta(cmd.Context(), stats, source); err != nil {
		a.logger.Warn("Failed to write index metadata", map[string]interface{}{
			"error": err.Error(),
		})
	}

	return emit(&indexResponse{Stats: *stats, Source: source})
}

// runIndexing indexes with tree-sitter when available, otherwise from the
// configured SCIP index.
func (a *app) runIndexing(ctx context.Context, dir string) (*indexer.Stats, string, error) {
	p, perr := a.newParser()
	if perr == nil {
		ix := a.newIndexer(p)
		stats, err := ix.IndexDirectory(ctx, dir)
		return stats, "tree-sitter", err
	}

	if !a.cfg.Scip.Enabled {
		return nil, "", perr
	}
	stats, err := a.indexFromSCIP(ctx, dir)
	return stats, "scip", err
}

// indexFromSCIP loads the configured SCIP index and applies its documents
func (a *app) indexFromSCIP(ctx context.Context, dir string) (*indexer.Stats, error) {
	loader := parser.NewSCIPLoader(a.logger)
	results, err := loader.Load(ctx, filepath.Join(a.repoRoot, a.cfg.Scip.IndexPath))
	if err != nil {
		return nil, err
	}

	ix := a.newIndexer(nil)
	start := time.Now()
	stats := &indexer.Stats{}

	prefix := ""
	if dir != "" {
		prefix = filepath.ToSlash(dir) + "/"
	}

	for i := range results {
		res := &results[i]
		if prefix != "" && !strings.HasPrefix(res.Path, prefix) {
			stats.FilesSkipped++
			continue
		}
		fileStats, err := ix.IndexParsed(res)
		if err != nil {
			stats.FilesFailed++
			stats.Errors = append(stats.Errors, indexer.FileError{Path: res.Path, Error: err.Error()})
			continue
		}
		stats.FilesIndexed++
		stats.Symbols += fileStats.Symbols
		stats.Edges += fileStats.Edges + fileStats.Promoted
		stats.Unresolved += fileStats.Unresolved
	}

	stats.Duration = time.Since(start)
	return stats, nil
}

// saveIndexMeta records the run in .cix/index.toml
func (a *app) saveIndexMeta(ctx context.Context, stats *indexer.Stats, source string) error {
	head, err := a.git.Head(ctx)
	if err != nil {
		head = "" // not a git repo; freshness falls back to age
	}

	idxStats, err := a.engine.IndexStats()
	if err != nil {
		return err
	}

	meta := &index.Meta{
		CreatedAt:   time.Now(),
		CommitHash:  head,
		Source:      source,
		FileCount:   idxStats.Files,
		SymbolCount: idxStats.Symbols,
		EdgeCount:   idxStats.CallEdges,
		Duration:    stats.Duration.Round(time.Millisecond).String(),
	}
	return meta.Save(a.cixDir())
}
