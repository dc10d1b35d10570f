package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cix/internal/query"
	"cix/internal/symbols"
)

var (
	calleesLimit int
	calleesFile  string
)

var calleesCmd = &cobra.Command{
	Use:   "callees <name>",
	Short: "List the calls a symbol makes",
	Long: `Lists every call site inside the named symbol. Calls whose target is
not in the index are reported unresolved, with the callee name as
written at the call site.`,
	Args: cobra.ExactArgs(1),
	RunE: runCallees,
}

func init() {
	calleesCmd.Flags().IntVar(&calleesLimit, "limit", query.DefaultLimit, "Maximum results")
	calleesCmd.Flags().StringVar(&calleesFile, "file", "", "Disambiguate by defining file")
	rootCmd.AddCommand(calleesCmd)
}

type calleesResponse struct {
	Symbol  symbols.Symbol     `json:"symbol" yaml:"symbol"`
	Callees []query.CalleeInfo `json:"callees" yaml:"callees"`
}

func (r *calleesResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s, %s): %d callees",
		r.Symbol.Name, r.Symbol.Kind, r.Symbol.FilePath, len(r.Callees))
	for _, c := range r.Callees {
		if c.Resolved {
			fmt.Fprintf(&b, "\n  %s  %s (line %d)", c.Name, c.Symbol.FilePath, c.CallLine)
		} else {
			fmt.Fprintf(&b, "\n  %s  [unresolved] (line %d)", c.Name, c.CallLine)
		}
	}
	return b.String()
}

func runCallees(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	sym, err := resolveOne(a, args[0], calleesFile)
	if err != nil {
		return emitFailure(err)
	}

	callees, err := a.engine.CalleesOf(sym.ID, calleesLimit)
	if err != nil {
		return emitFailure(err)
	}

	return emit(&calleesResponse{Symbol: *sym, Callees: callees})
}
