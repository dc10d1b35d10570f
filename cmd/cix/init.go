package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"cix/internal/config"
	"cix/internal/logging"
	"cix/internal/storage"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the index in the current repository",
	Long: `Creates the .cix directory with a default configuration and an empty
index database. Safe to run again; existing configuration is kept.`,
	RunE: runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)
}

type initResponse struct {
	RepoRoot   string `json:"repoRoot" yaml:"repoRoot"`
	ConfigPath string `json:"configPath" yaml:"configPath"`
	DBPath     string `json:"dbPath" yaml:"dbPath"`
	Existing   bool   `json:"existing" yaml:"existing"`
}

func (r *initResponse) human() string {
	if r.Existing {
		return fmt.Sprintf("Index already initialized at %s", r.RepoRoot)
	}
	return fmt.Sprintf("Initialized empty index at %s\n  config: %s\n  database: %s",
		r.RepoRoot, r.ConfigPath, r.DBPath)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func runInit(cmd *cobra.Command, args []string) error {
	repoRoot, err := filepath.Abs(repoFlag)
	if err != nil {
		return emitFailure(err)
	}

	cixDir := filepath.Join(repoRoot, ".cix")
	configPath := filepath.Join(cixDir, "config.json")
	dbPath := filepath.Join(cixDir, "cix.db")

	existing := fileExists(dbPath)

	cfg, err := config.LoadConfig(repoRoot)
	if err != nil {
		return emitFailure(err)
	}
	if !fileExists(configPath) {
		if err := cfg.Save(repoRoot); err != nil {
			return emitFailure(err)
		}
	}

	logger := logging.NewLogger(logging.Config{
		Format: logging.Format(cfg.Logging.Format),
		Level:  logging.LogLevel(cfg.Logging.Level),
	})

	// Opening creates the database and schema
	db, err := storage.Open(repoRoot, logger)
	if err != nil {
		return emitFailure(err)
	}
	db.Close()

	return emit(&initResponse{
		RepoRoot:   repoRoot,
		ConfigPath: configPath,
		DBPath:     dbPath,
		Existing:   existing,
	})
}
