// Package gitrev shells out to git for revision resolution and diff
// retrieval. It is the only place the indexer touches version control;
// everything downstream works on resolved revisions and raw diff text.
package gitrev

import (
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"cix/internal/errors"
	"cix/internal/logging"
)

// DefaultTimeout bounds every git invocation
const DefaultTimeout = 5000 * time.Millisecond

// Provider runs git commands against one repository
type Provider struct {
	repoRoot string
	timeout  time.Duration
	logger   *logging.Logger
}

// DiffStats aggregates numstat output for a revision pair
type DiffStats struct {
	FilesChanged int      `json:"filesChanged"`
	LinesAdded   int      `json:"linesAdded"`
	LinesRemoved int      `json:"linesRemoved"`
	Files        []string `json:"files"`
}

// NewProvider creates a git provider rooted at repoRoot. timeoutMs of zero
// uses the default.
func NewProvider(repoRoot string, timeoutMs int, logger *logging.Logger) *Provider {
	timeout := DefaultTimeout
	if timeoutMs > 0 {
		timeout = time.Duration(timeoutMs) * time.Millisecond
	}
	return &Provider{
		repoRoot: repoRoot,
		timeout:  timeout,
		logger:   logger.WithComponent("gitrev"),
	}
}

// ResolveRef resolves a ref name to a short commit hash. An unknown ref is
// a RefNotFound error, distinct from git being broken.
func (p *Provider) ResolveRef(ctx context.Context, name string) (string, error) {
	out, err := p.run(ctx, "rev-parse", "--short", name)
	if err != nil {
		if errors.HasCode(err, errors.Timeout) {
			return "", err
		}
		return "", errors.New(errors.RefNotFound,
			fmt.Sprintf("cannot resolve ref %q", name), err)
	}
	return strings.TrimSpace(out), nil
}

// Head resolves the current HEAD commit
func (p *Provider) Head(ctx context.Context) (string, error) {
	return p.ResolveRef(ctx, "HEAD")
}

// UnifiedDiff returns the unified diff between two resolved revisions
func (p *Provider) UnifiedDiff(ctx context.Context, from, to string) (string, error) {
	return p.run(ctx, "diff", "--unified=3", from, to)
}

// StagedDiff returns the unified diff of staged changes
func (p *Provider) StagedDiff(ctx context.Context) (string, error) {
	return p.run(ctx, "diff", "--unified=3", "--cached")
}

// WorkingDiff returns the unified diff of unstaged working tree changes
func (p *Provider) WorkingDiff(ctx context.Context) (string, error) {
	return p.run(ctx, "diff", "--unified=3")
}

// Numstat returns per-file change statistics between two revisions
func (p *Provider) Numstat(ctx context.Context, from, to string) (*DiffStats, error) {
	out, err := p.run(ctx, "diff", "--numstat", from, to)
	if err != nil {
		return nil, err
	}
	return parseNumstat(out), nil
}

// StagedNumstat returns statistics for staged changes
func (p *Provider) StagedNumstat(ctx context.Context) (*DiffStats, error) {
	out, err := p.run(ctx, "diff", "--numstat", "--cached")
	if err != nil {
		return nil, err
	}
	return parseNumstat(out), nil
}

// WorkingNumstat returns statistics for unstaged working tree changes
func (p *Provider) WorkingNumstat(ctx context.Context) (*DiffStats, error) {
	out, err := p.run(ctx, "diff", "--numstat")
	if err != nil {
		return nil, err
	}
	return parseNumstat(out), nil
}

// run executes a git command with the provider timeout
func (p *Provider) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = p.repoRoot

	p.logger.Debug("Executing git command", map[string]interface{}{
		"args":    args,
		"timeout": p.timeout.String(),
	})

	output, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			// Retryable; callers must not cache this as a result
			return "", errors.New(errors.Timeout, "git command timed out", err)
		}
		if exitErr, ok := err.(*exec.ExitError); ok {
			return "", errors.New(errors.InternalError, "git command failed", err).
				WithDetails(map[string]interface{}{
					"args":   args,
					"stderr": strings.TrimSpace(string(exitErr.Stderr)),
				})
		}
		return "", errors.New(errors.InternalError, "failed to run git", err)
	}

	return string(output), nil
}

// parseNumstat reads "added\tremoved\tpath" lines. Binary files report "-"
// and contribute to the file list only.
func parseNumstat(out string) *DiffStats {
	stats := &DiffStats{}
	for _, line := range strings.Split(out, "\n") {
		parts := strings.Split(strings.TrimSpace(line), "\t")
		if len(parts) < 3 {
			continue
		}
		if added, err := strconv.Atoi(parts[0]); err == nil {
			stats.LinesAdded += added
		}
		if removed, err := strconv.Atoi(parts[1]); err == nil {
			stats.LinesRemoved += removed
		}
		stats.Files = append(stats.Files, parts[2])
	}
	stats.FilesChanged = len(stats.Files)
	return stats
}
