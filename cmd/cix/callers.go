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
	callersLimit int
	callersFile  string
)

var callersCmd = &cobra.Command{
	Use:   "callers <name>",
	Short: "List the direct callers of a symbol",
	Long: `Lists every indexed call site that targets the named symbol. The
argument may be a symbol name or id; ambiguous names can be narrowed
with --file.`,
	Args: cobra.ExactArgs(1),
	RunE: runCallers,
}

func init() {
	callersCmd.Flags().IntVar(&callersLimit, "limit", query.DefaultLimit, "Maximum results")
	callersCmd.Flags().StringVar(&callersFile, "file", "", "Disambiguate by defining file")
	rootCmd.AddCommand(callersCmd)
}

type callersResponse struct {
	Symbol  symbols.Symbol     `json:"symbol" yaml:"symbol"`
	Callers []query.CallerInfo `json:"callers" yaml:"callers"`
}

func (r *callersResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s): %d callers",
		r.Symbol.Name, r.Symbol.Kind, r.Symbol.FilePath, len(r.Callers))
	for _, c := range r.Callers {
		fmt.Fprintf(&b, "\n  %s  %s:%d", c.Symbol.Name, c.Symbol.FilePath, c.CallLine)
	}
	return b.String()
}

// resolveOne narrows a name-or-id argument to exactly one symbol
func resolveOne(a *app, nameOrID, fileHint string) (*symbols.Symbol, error) {
	candidates, err := a.engine.ResolveSymbol(nameOrID, fileHint)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 1 {
		return &candidates[0], nil
	}

	locations := make([]string, 0, len(candidates))
	for _, c := range candidates {
		locations = append(locations, fmt.Sprintf("%s (%s:%d, id %s)", c.Name, c.FilePath, c.StartLine, c.ID))
	}
	return nil, errors.New(errors.SymbolNotFound,
		fmt.Sprintf("%q is ambiguous; use --file or an id", nameOrID), nil).
		WithDetails(locations)
}

func runCallers(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	sym, err := resolveOne(a, args[0], callersFile)
	if err != nil {
		return emitFailure(err)
	}

	callers, err := a.engine.CallersOf(sym.ID, callersLimit)
	if err != nil {
		return emitFailure(err)
	}

	return emit(&callersResponse{Symbol: *sym, Callers: callers})
}
