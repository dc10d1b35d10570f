package gitrev

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"cix/internal/errors"
	"cix/internal/logging"
)

// setupTestRepo builds a scratch repository with two commits:
// v1 adds main.go, v2 modifies it and adds util.go.
func setupTestRepo(t *testing.T) (string, *Provider) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}

	dir := t.TempDir()
	run := func(args ...string) {
		t.Helper()
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test",
		)
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v failed: %v\n%s", args, err, out)
		}
	}

	write := func(name, content string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	run("init", "-b", "main")
	write("main.go", "package main\n\nfunc main() {}\n")
	run("add", ".")
	run("commit", "-m", "v1")
	run("tag", "v1")

	write("main.go", "package main\n\nfunc main() {\n\trun()\n}\n")
	write("util.go", "package main\n\nfunc run() {}\n")
	run("add", ".")
	run("commit", "-m", "v2")
	run("tag", "v2")

	return dir, NewProvider(dir, 0, logging.NewNopLogger())
}

func TestResolveRef(t *testing.T) {
	_, p := setupTestRepo(t)
	ctx := context.Background()

	head, err := p.ResolveRef(ctx, "HEAD")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD) failed: %v", err)
	}
	if head == "" {
		t.Error("HEAD resolved to empty hash")
	}

	v2, err := p.ResolveRef(ctx, "v2")
	if err != nil {
		t.Fatalf("ResolveRef(v2) failed: %v", err)
	}
	if v2 != head {
		t.Errorf("v2 = %s, HEAD = %s; want equal", v2, head)
	}
}

func TestResolveRefNotFound(t *testing.T) {
	_, p := setupTestRepo(t)

	_, err := p.ResolveRef(context.Background(), "no-such-branch")
	if !errors.HasCode(err, errors.RefNotFound) {
		t.Errorf("want RefNotFound, got %v", err)
	}
}

func TestUnifiedDiffAndNumstat(t *testing.T) {
	_, p := setupTestRepo(t)
	ctx := context.Background()

	diff, err := p.UnifiedDiff(ctx, "v1", "v2")
	if err != nil {
		t.Fatalf("UnifiedDiff failed: %v", err)
	}
	if diff == "" {
		t.Fatal("diff between v1 and v2 should not be empty")
	}

	stats, err := p.Numstat(ctx, "v1", "v2")
	if err != nil {
		t.Fatalf("Numstat failed: %v", err)
	}
	if stats.FilesChanged != 2 {
		t.Errorf("files changed = %d, want 2", stats.FilesChanged)
	}
	if stats.LinesAdded == 0 {
		t.Error("lines added should be non-zero")
	}
}

func TestEmptyDiff(t *testing.T) {
	_, p := setupTestRepo(t)

	diff, err := p.UnifiedDiff(context.Background(), "v2", "v2")
	if err != nil {
		t.Fatalf("UnifiedDiff failed: %v", err)
	}
	if diff != "" {
		t.Errorf("same-rev diff should be empty, got %q", diff)
	}
}

func TestParseNumstat(t *testing.T) {
	out := "10\t2\tsrc/main.rs\n0\t5\tsrc/old.rs\n-\t-\tassets/logo.png\n"
	stats := parseNumstat(out)

	if stats.FilesChanged != 3 {
		t.Errorf("files = %d, want 3", stats.FilesChanged)
	}
	if stats.LinesAdded != 10 {
		t.Errorf("added = %d, want 10", stats.LinesAdded)
	}
	if stats.LinesRemoved != 7 {
		t.Errorf("removed = %d, want 7", stats.LinesRemoved)
	}
}
