package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cix/internal/errors"
	"cix/internal/impact"
)

var (
	impactStaged  bool
	impactWorking bool
)

var impactCmd = &cobra.Command{
	Use:   "impact [<from> <to>]",
	Short: "Analyze the impact of a change",
	Long: `Maps the diff between two revisions onto the index: which symbols it
touches, who transitively calls them, and a risk assessment. Results
for revision pairs are cached. With --staged or --working the
uncommitted changes are analyzed instead, without caching.`,
	Args: cobra.MaximumNArgs(2),
	RunE: runImpact,
}

func init() {
	impactCmd.Flags().BoolVar(&impactStaged, "staged", false, "Analyze staged changes against HEAD")
	impactCmd.Flags().BoolVar(&impactWorking, "working", false, "Analyze unstaged working tree changes")
	rootCmd.AddCommand(impactCmd)
}

type impactResponse struct {
	impact.Result `yaml:",inline"`
}

func (r *impactResponse) human() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Impact %s..%s  [%s risk, score %.2f]", r.FromRev, r.ToRev,
		r.Risk.Level, r.Risk.Score)
	if r.Cached {
		b.WriteString("  (cached)")
	}
	fmt.Fprintf(&b, "\n%s\n", r.Summary)
	fmt.Fprintf(&b, "\n%d files changed, +%d/-%d lines, method %s\n",
		r.FilesChanged, r.LinesAdded, r.LinesRemoved, r.Method)

	if len(r.TouchedSymbols) > 0 {
		b.WriteString("\nTouched symbols:\n")
		for _, s := range r.TouchedSymbols {
			fmt.Fprintf(&b, "  %-9s %-30s %s (%d of %d lines)\n",
				s.Kind, s.Name, s.FilePath, s.ChangedLines, s.SpanLines)
		}
	}
	if len(r.ImpactSet) > 0 {
		b.WriteString("\nAffected callers:\n")
		for _, e := range r.ImpactSet {
			fmt.Fprintf(&b, "  [%d] %s  %s\n", e.Depth, e.Name, e.FilePath)
		}
		if r.Truncated {
			b.WriteString("  (truncated)\n")
		}
	}
	if len(r.Risk.Flags) > 0 {
		fmt.Fprintf(&b, "\nRisk flags: %s\n", strings.Join(r.Risk.Flags, ", "))
	}
	for _, c := range r.Changes {
		fmt.Fprintf(&b, "\n%s %s: %s", c.ChangeType, c.SymbolName, c.Description)
	}
	return strings.TrimRight(b.String(), "\n")
}

func runImpact(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return emitFailure(err)
	}
	defer a.Close()

	var result *impact.Result
	switch {
	case impactStaged:
		result, err = a.analyzer.AnalyzeStaged(cmd.Context())
	case impactWorking:
		result, err = a.analyzer.AnalyzeWorking(cmd.Context())
	case len(args) == 2:
		result, err = a.analyzer.Analyze(cmd.Context(), args[0], args[1])
	default:
		return emitFailure(errors.New(errors.RefNotFound,
			"two revisions are required unless --staged or --working is given", nil))
	}
	if err != nil {
		return emitFailure(err)
	}

	return emit(&impactResponse{Result: *result})
}
