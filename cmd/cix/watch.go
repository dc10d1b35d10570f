package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cix/internal/watcher"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the repository and re-index changed files",
	Long: `Runs an initial index, then polls the repository for source changes
and re-indexes each changed file. Deleted files are dropped from the
index; their callers' calls park as unresolved until the callee
reappears. Stops on SIGINT or SIGTERM.`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	p, err := a.newParser()
	if err != nil {
		return emitFailure(err)
	}
	ix := a.newIndexer(p)

	stats, err := ix.IndexDirectory(cmd.Context(), "")
	if err != nil {
		return emitFailure(err)
	}
	fmt.Printf("Initial index: %d files, %d symbols\n", stats.FilesIndexed, stats.Symbols)

	handler := func(events []watcher.Event) {
		for _, ev := range events {
			switch ev.Type {
			case watcher.EventDelete:
				if err := ix.RemoveFile(ev.Path); err != nil {
					a.logger.Warn("Failed to remove file from index", map[string]interface{}{
						"path":  ev.Path,
						"error": err.Error(),
					})
				} else {
					fmt.Printf("removed  %s\n", ev.Path)
				}
			default:
				fileStats, err := ix.IndexFile(cmd.Context(), ev.Path)
				if err != nil {
					a.logger.Warn("Failed to re-index file", map[string]interface{}{
						"path":  ev.Path,
						"error": err.Error(),
					})
					continue
				}
				if !fileStats.Unchanged {
					fmt.Printf("indexed  %s (%d symbols)\n", ev.Path, fileStats.Symbols)
				}
			}
		}
	}

	w := watcher.New(a.repoRoot, a.cfg.Watcher, a.cfg.Indexing.Ignore, p.Supports, a.logger, handler)
	if err := w.Start(); err != nil {
		return emitFailure(err)
	}

	fmt.Println("Watching for changes. Press Ctrl-C to stop.")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-cmd.Context().Done():
	}

	w.Stop()
	return nil
}
