package main

import (
	"cix/internal/version"

	"github.com/spf13/cobra"
)

var (
	// repoFlag is the repository root; "." when run inside the repo
	repoFlag string
	// formatFlag selects the output format: json, yaml or human
	formatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "cix",
	Short: "cix - code index and impact analysis",
	Long: `cix maintains a persistent symbol and call graph index for a repository
and maps git diffs onto it: which symbols a change touches, who calls
them transitively, and how risky the change looks.`,
	Version:       version.Info(),
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("cix version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "r", ".",
		"Repository root")
	rootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "human",
		"Output format: json, yaml or human")
}
