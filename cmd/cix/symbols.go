package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"cix/internal/errors"
	"cix/internal/symbols"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols <file>",
	Short: "List the indexed symbols of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runSymbols,
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}

type symbolsResponse struct {
	File    string           `json:"file" yaml:"file"`
	Symbols []symbols.Symbol `json:"symbols" yaml:"symbols"`
}

func (r *symbolsResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %d symbols", r.File, len(r.Symbols))
	for _, s := range r.Symbols {
		name := s.Name
		if s.Container != "" {
			name = s.Container + "." + s.Name
		}
		fmt.Fprintf(&b, "\n  %-9s %-30s lines %d-%d", s.Kind, name, s.StartLine, s.EndLine)
	}
	return b.String()
}

func runSymbols(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	file := filepath.ToSlash(args[0])
	syms, err := a.store.SymbolsForFile(file)
	if err != nil {
		return emitFailure(err)
	}
	if len(syms) == 0 {
		return emitFailure(errors.New(errors.FileNotIndexed,
			fmt.Sprintf("no symbols indexed for %s", file), nil))
	}

	return emit(&symbolsResponse{File: file, Symbols: syms})
}
