package branch

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/basilisk-labs/codex-swarm/internal/gitx"
)

func runGit(t *testing.T, cwd string, args ...string) {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = cwd
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Fatalf("git %s failed: %v\n%s", strings.Join(args, " "), err, out)
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	runGit(t, dir, "init", "-q", "-b", "main")
	runGit(t, dir, "config", "user.email", "test@example.com")
	runGit(t, dir, "config", "user.name", "Test")
	if err := os.WriteFile(filepath.Join(dir, "README.md"), []byte("# test\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "README.md")
	runGit(t, dir, "commit", "-q", "-m", "initial")
	return dir
}

func TestCreate_RejectsDirectMode(t *testing.T) {
	dir := initRepo(t)
	l := New(gitx.New(dir), filepath.Join(dir, ".worktrees"), "task", ModeDirect)

	_, err := l.Create(context.Background(), CreateOptions{TaskID: "202501010000-ABCD", FreeText: "fix bug", AgentID: "AGENT1", Base: "main"})
	if err == nil {
		t.Fatal("expected branch creation to be rejected in direct mode")
	}
}

func TestCreate_WithWorktree(t *testing.T) {
	dir := initRepo(t)
	worktreesRoot := filepath.Join(dir, ".worktrees")
	l := New(gitx.New(dir), worktreesRoot, "task", ModeBranchPR)

	result, err := l.Create(context.Background(), CreateOptions{
		TaskID:   "202501010000-ABCD",
		FreeText: "fix login bug",
		AgentID:  "AGENT1",
		Base:     "main",
		Worktree: true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if result.Branch != "task/202501010000-ABCD/fix-login-bug" {
		t.Errorf("Branch = %q", result.Branch)
	}
	if _, err := os.Stat(result.WorktreePath); err != nil {
		t.Errorf("expected worktree dir to exist: %v", err)
	}
}

func TestRemove_RejectsWorktreeOutsideRoot(t *testing.T) {
	dir := initRepo(t)
	worktreesRoot := filepath.Join(dir, ".worktrees")
	l := New(gitx.New(dir), worktreesRoot, "task", ModeBranchPR)

	outside := t.TempDir()
	err := l.Remove(context.Background(), "task/202501010000-ABCD/x", outside, true)
	if err == nil {
		t.Fatal("expected Remove to reject a worktree path outside the configured root")
	}
}

func TestMergedCandidates_EmptyDiffIsCandidate(t *testing.T) {
	dir := initRepo(t)
	worktreesRoot := filepath.Join(dir, ".worktrees")
	l := New(gitx.New(dir), worktreesRoot, "task", ModeBranchPR)
	ctx := context.Background()

	runGit(t, dir, "branch", "task/202501010000-ABCD/fix-login-bug")

	candidates, err := l.MergedCandidates(ctx, "main")
	if err != nil {
		t.Fatalf("MergedCandidates: %v", err)
	}
	if len(candidates) != 1 || candidates[0].TaskID != "202501010000-ABCD" {
		t.Errorf("candidates = %+v", candidates)
	}
}

func TestEnsureWorktreesIgnored_Idempotent(t *testing.T) {
	dir := initRepo(t)
	worktreesRoot := filepath.Join(dir, ".worktrees")
	l := New(gitx.New(dir), worktreesRoot, "task", ModeBranchPR)
	ctx := context.Background()

	if err := l.EnsureWorktreesIgnored(ctx); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := l.EnsureWorktreesIgnored(ctx); err != nil {
		t.Fatalf("second call: %v", err)
	}

	excludePath := filepath.Join(dir, ".git", "info", "exclude")
	data, err := os.ReadFile(excludePath)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), ".worktrees/") != 1 {
		t.Errorf("expected exactly one .worktrees/ entry, got:\n%s", data)
	}
}
