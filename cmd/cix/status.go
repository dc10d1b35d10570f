package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"cix/internal/index"
	"cix/internal/query"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show index contents and freshness",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

type statusResponse struct {
	Stats          *query.Stats `json:"stats" yaml:"stats"`
	CachedAnalyses int          `json:"cachedAnalyses" yaml:"cachedAnalyses"`
	Meta           *index.Meta  `json:"meta,omitempty" yaml:"meta,omitempty"`
	Fresh          bool         `json:"fresh" yaml:"fresh"`
	StaleReason    string       `json:"staleReason,omitempty" yaml:"staleReason,omitempty"`
}

func (r *statusResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Index: %d files, %d symbols, %d call edges, %d unresolved calls\n",
		r.Stats.Files, r.Stats.Symbols, r.Stats.CallEdges, r.Stats.UnresolvedCalls)

	kinds := make([]string, 0, len(r.Stats.SymbolsByKind))
	for k := range r.Stats.SymbolsByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(&b, "  %-10s %d\n", k, r.Stats.SymbolsByKind[k])
	}

	fmt.Fprintf(&b, "Cached analyses: %d\n", r.CachedAnalyses)

	if r.Meta != nil {
		fmt.Fprintf(&b, "Last indexed: %s (commit %s, source %s, took %s)\n",
			r.Meta.CreatedAt.Format("2006-01-02 15:04:05"), r.Meta.CommitHash,
			r.Meta.Source, r.Meta.Duration)
	}
	if r.Fresh {
		b.WriteString("Freshness: up to date")
	} else {
		fmt.Fprintf(&b, "Freshness: stale (%s)", r.StaleReason)
	}
	return b.String()
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	stats, err := a.engine.IndexStats()
	if err != nil {
		return emitFailure(err)
	}

	cached, err := a.cache.Count()
	if err != nil {
		return emitFailure(err)
	}

	meta, err := index.LoadMeta(a.cixDir())
	if err != nil {
		a.logger.Warn("Failed to read index metadata", map[string]interface{}{
			"error": err.Error(),
		})
	}
	freshness := meta.CheckFreshness(a.repoRoot)

	return emit(&statusResponse{
		Stats:          stats,
		CachedAnalyses: cached,
		Meta:           meta,
		Fresh:          freshness.Fresh,
		StaleReason:    freshness.Reason,
	})
}
