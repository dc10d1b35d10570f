package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cix/internal/errors"
	"cix/internal/query"
	"cix/internal/symbols"
)

var (
	callgraphDepth       int
	callgraphLimit       int
	callgraphFile        string
	callgraphEntryPoints bool
	callgraphLeaves      bool
)

var callgraphCmd = &cobra.Command{
	Use:   "callgraph [name]",
	Short: "Walk the call graph around a symbol",
	Long: `Lists the transitive callers of a symbol up to --depth, each tagged
with its distance. With --entry-points or --leaves, lists graph-wide
entry points (never called) or leaf functions (call nothing) instead.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCallgraph,
}

func init() {
	callgraphCmd.Flags().IntVar(&callgraphDepth, "depth", 3, "Traversal depth bound")
	callgraphCmd.Flags().IntVar(&callgraphLimit, "limit", query.DefaultLimit, "Maximum results")
	callgraphCmd.Flags().StringVar(&callgraphFile, "file", "", "Disambiguate by defining file")
	callgraphCmd.Flags().BoolVar(&callgraphEntryPoints, "entry-points", false,
		"List symbols nothing in the index calls")
	callgraphCmd.Flags().BoolVar(&callgraphLeaves, "leaves", false,
		"List functions that call nothing")
	rootCmd.AddCommand(callgraphCmd)
}

type reachableResponse struct {
	Symbol    symbols.Symbol          `json:"symbol" yaml:"symbol"`
	Depth     int                     `json:"depth" yaml:"depth"`
	Callers   []query.ReachableCaller `json:"callers" yaml:"callers"`
	Truncated bool                    `json:"truncated" yaml:"truncated"`
}

func (r *reachableResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d reachable callers within depth %d",
		r.Symbol.Name, len(r.Callers), r.Depth)
	for _, c := range r.Callers {
		fmt.Fprintf(&b, "\n  [%d] %s  %s", c.Depth, c.Symbol.Name, c.Symbol.FilePath)
	}
	if r.Truncated {
		b.WriteString("\n  (truncated)")
	}
	return b.String()
}

type symbolListResponse struct {
	Title   string           `json:"title" yaml:"title"`
	Symbols []symbols.Symbol `json:"symbols" yaml:"symbols"`
}

func (r *symbolListResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d", r.Title, len(r.Symbols))
	for _, s := range r.Symbols {
		fmt.Fprintf(&b, "\n  %s  %s:%d", s.Name, s.FilePath, s.StartLine)
	}
	return b.String()
}

func runCallgraph(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	switch {
	case callgraphEntryPoints:
		syms, err := a.engine.EntryPoints(callgraphLimit)
		if err != nil {
			return emitFailure(err)
		}
		return emit(&symbolListResponse{Title: "Entry points", Symbols: syms})

	case callgraphLeaves:
		syms, err := a.engine.LeafFunctions(callgraphLimit)
		if err != nil {
			return emitFailure(err)
		}
		return emit(&symbolListResponse{Title: "Leaf functions", Symbols: syms})
	}

	if len(args) != 1 {
		return emitFailure(errors.New(errors.SymbolNotFound,
			"a symbol name is required unless --entry-points or --leaves is given", nil))
	}

	sym, err := resolveOne(a, args[0], callgraphFile)
	if err != nil {
		return emitFailure(err)
	}

	result, err := a.engine.ReachableCallers(sym.ID, callgraphDepth, callgraphLimit,
		a.cfg.Impact.MaxCallersPerLevel)
	if err != nil {
		return emitFailure(err)
	}

	return emit(&reachableResponse{
		Symbol:    *sym,
		Depth:     callgraphDepth,
		Callers:   result.Callers,
		Truncated: result.Truncated,
	})
}
