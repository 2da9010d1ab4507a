package gitx

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
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

func TestToplevelAndCurrentBranch(t *testing.T) {
	dir := initRepo(t)
	a := New(dir)
	ctx := context.Background()

	top, err := a.Toplevel(ctx)
	if err != nil {
		t.Fatalf("Toplevel: %v", err)
	}
	if resolved, _ := filepath.EvalSymlinks(top); resolved != mustEvalSymlinks(t, dir) {
		t.Errorf("Toplevel = %q, want %q", top, dir)
	}

	branch, err := a.CurrentBranch(ctx)
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if branch != "main" {
		t.Errorf("CurrentBranch = %q, want main", branch)
	}
}

func mustEvalSymlinks(t *testing.T, p string) string {
	t.Helper()
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		t.Fatal(err)
	}
	return resolved
}

func TestStatus_CleanAndDirty(t *testing.T) {
	dir := initRepo(t)
	a := New(dir)
	ctx := context.Background()

	lines, err := a.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(lines) != 0 {
		t.Errorf("expected a clean tree, got %v", lines)
	}

	if err := os.WriteFile(filepath.Join(dir, "new.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	lines, err = a.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if len(lines) != 1 {
		t.Errorf("expected one changed entry, got %v", lines)
	}
}

func TestBranchExistsAndConfigGetSet(t *testing.T) {
	dir := initRepo(t)
	a := New(dir)
	ctx := context.Background()

	if a.BranchExists(ctx, "does-not-exist") {
		t.Error("BranchExists should be false for a nonexistent branch")
	}

	if _, ok := a.ConfigGet(ctx, "codexswarm.baseBranch"); ok {
		t.Error("ConfigGet should report unset for a key never written")
	}
	if err := a.ConfigSet(ctx, "codexswarm.baseBranch", "main"); err != nil {
		t.Fatalf("ConfigSet: %v", err)
	}
	got, ok := a.ConfigGet(ctx, "codexswarm.baseBranch")
	if !ok || got != "main" {
		t.Errorf("ConfigGet after set = (%q, %v), want (main, true)", got, ok)
	}
}

func TestWorktreeAddListRemove(t *testing.T) {
	dir := initRepo(t)
	a := New(dir)
	ctx := context.Background()

	wtPath := filepath.Join(t.TempDir(), "wt1")
	if err := a.WorktreeAdd(ctx, wtPath, "feature/test", "main", true); err != nil {
		t.Fatalf("WorktreeAdd: %v", err)
	}

	entries, err := a.WorktreeList(ctx)
	if err != nil {
		t.Fatalf("WorktreeList: %v", err)
	}
	found := false
	for _, e := range entries {
		if e.Branch == "feature/test" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected feature/test worktree in list, got %+v", entries)
	}

	if err := a.WorktreeRemove(ctx, wtPath, true); err != nil {
		t.Fatalf("WorktreeRemove: %v", err)
	}
}

func TestDiffNames(t *testing.T) {
	dir := initRepo(t)
	a := New(dir)
	ctx := context.Background()

	runGit(t, dir, "checkout", "-q", "-b", "feature")
	if err := os.WriteFile(filepath.Join(dir, "added.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	runGit(t, dir, "add", "added.txt")
	runGit(t, dir, "commit", "-q", "-m", "add file")

	names, err := a.Diff("main", "feature").Names(ctx)
	if err != nil {
		t.Fatalf("Diff.Names: %v", err)
	}
	if len(names) != 1 || names[0] != "added.txt" {
		t.Errorf("Diff.Names = %v, want [added.txt]", names)
	}
}

func TestHooksDir(t *testing.T) {
	dir := initRepo(t)
	a := New(dir)
	ctx := context.Background()

	hooksDir, err := a.HooksDir(ctx)
	if err != nil {
		t.Fatalf("HooksDir: %v", err)
	}
	if !strings.HasSuffix(hooksDir, filepath.Join(".git", "hooks")) {
		t.Errorf("HooksDir = %q, want suffix .git/hooks", hooksDir)
	}
}
