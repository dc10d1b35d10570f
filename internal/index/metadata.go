// Package index provides index metadata persistence and freshness tracking.
package index

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// MetadataVersion is the current version of the metadata format.
	MetadataVersion = 1

	// metadataFile is the filename for index metadata inside .cix.
	metadataFile = "index.toml"
)

// Meta describes the state of the on-disk index: when it was built, from
// which commit, with which extraction source, and how big it is.
type Meta struct {
	Version     int       `toml:"version"`
	CreatedAt   time.Time `toml:"created_at"`
	CommitHash  string    `toml:"commit_hash"`
	Source      string    `toml:"source"` // "tree-sitter" or "scip"
	FileCount   int       `toml:"file_count"`
	SymbolCount int       `toml:"symbol_count"`
	EdgeCount   int       `toml:"edge_count"`
	Duration    string    `toml:"duration"`
}

// FreshnessResult describes index freshness status.
type FreshnessResult struct {
	Fresh          bool
	Reason         string
	CommitsBehind  int
	HasUncommitted bool
	IndexedCommit  string
	CurrentCommit  string
}

// LoadMeta loads index metadata from the .cix directory.
// Returns nil without error if no metadata file exists.
func LoadMeta(cixDir string) (*Meta, error) {
	path := filepath.Join(cixDir, metadataFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil // No metadata yet
		}
		return nil, fmt.Errorf("reading index metadata: %w", err)
	}

	var meta Meta
	if err := toml.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parsing index metadata: %w", err)
	}

	// Version mismatch - treat as no metadata
	if meta.Version != MetadataVersion {
		return nil, nil
	}

	return &meta, nil
}

// Save writes index metadata to the .cix directory.
func (m *Meta) Save(cixDir string) error {
	if err := os.MkdirAll(cixDir, 0755); err != nil {
		return fmt.Errorf("creating .cix directory: %w", err)
	}

	m.Version = MetadataVersion

	var buf strings.Builder
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("marshaling index metadata: %w", err)
	}

	path := filepath.Join(cixDir, metadataFile)
	if err := os.WriteFile(path, []byte(buf.String()), 0644); err != nil {
		return fmt.Errorf("writing index metadata: %w", err)
	}

	return nil
}

// CheckFreshness determines if the index is up to date. For git repos,
// compares the indexed commit against HEAD and the working tree state.
// For non-git repos, falls back to time-based staleness (24h).
func (m *Meta) CheckFreshness(repoRoot string) FreshnessResult {
	if m == nil {
		return FreshnessResult{
			Fresh:  false,
			Reason: "no index metadata found",
		}
	}

	head, err := currentCommit(repoRoot)
	if err != nil {
		// Non-git repo: fall back to time-based staleness
		return m.checkTimeFreshness()
	}

	result := FreshnessResult{
		IndexedCommit: m.CommitHash,
		CurrentCommit: head,
	}

	dirty := hasUncommittedChanges(repoRoot)

	if m.CommitHash == head {
		if dirty {
			result.HasUncommitted = true
			result.Reason = "uncommitted changes detected"
			return result
		}
		result.Fresh = true
		return result
	}

	behind := countCommitsBehind(repoRoot, m.CommitHash, head)
	result.CommitsBehind = behind
	result.HasUncommitted = dirty

	switch {
	case behind > 0 && dirty:
		result.Reason = fmt.Sprintf("%d commit(s) behind HEAD + uncommitted changes", behind)
	case behind > 0:
		result.Reason = fmt.Sprintf("%d commit(s) behind HEAD", behind)
	case dirty:
		result.Reason = "uncommitted changes detected"
	default:
		result.Reason = "repository state changed"
	}
	return result
}

// checkTimeFreshness checks freshness for non-git repos.
func (m *Meta) checkTimeFreshness() FreshnessResult {
	age := time.Since(m.CreatedAt)
	if age > 24*time.Hour {
		return FreshnessResult{
			Fresh:  false,
			Reason: fmt.Sprintf("index is %s old", humanDuration(age)),
		}
	}
	return FreshnessResult{
		Fresh: true,
	}
}

// currentCommit returns the short hash of HEAD.
func currentCommit(repoRoot string) (string, error) {
	cmd := exec.Command("git", "rev-parse", "--short", "HEAD")
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

// hasUncommittedChanges reports whether the working tree differs from HEAD.
func hasUncommittedChanges(repoRoot string) bool {
	cmd := exec.Command("git", "status", "--porcelain")
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return false
	}
	return len(strings.TrimSpace(string(out))) > 0
}

// countCommitsBehind returns the number of commits between two refs.
func countCommitsBehind(repoRoot, fromCommit, toCommit string) int {
	if fromCommit == "" || toCommit == "" {
		return 0
	}

	cmd := exec.Command("git", "rev-list", "--count", fmt.Sprintf("%s..%s", fromCommit, toCommit))
	cmd.Dir = repoRoot
	out, err := cmd.Output()
	if err != nil {
		return 0
	}

	var count int
	fmt.Sscanf(strings.TrimSpace(string(out)), "%d", &count)
	return count
}

// humanDuration formats a duration in human-readable form.
func humanDuration(d time.Duration) string {
	if d < time.Minute {
		return "just now"
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		if mins == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", mins)
	}
	if d < 24*time.Hour {
		hours := int(d.Hours())
		if hours == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", hours)
	}
	days := int(d.Hours() / 24)
	if days == 1 {
		return "1 day"
	}
	return fmt.Sprintf("%d days", days)
}
