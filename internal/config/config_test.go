package config

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.SchemaVersion != 1 {
		t.Errorf("Default SchemaVersion = %d, want 1", cfg.SchemaVersion)
	}
	if cfg.WorkflowMode != ModeBranchPR {
		t.Errorf("Default WorkflowMode = %q, want %q", cfg.WorkflowMode, ModeBranchPR)
	}
	if cfg.Paths.TasksPath != "tasks/tasks.json" {
		t.Errorf("Default Paths.TasksPath = %q, want %q", cfg.Paths.TasksPath, "tasks/tasks.json")
	}
	if !cfg.IsVerifyRequired([]string{"backend"}) {
		t.Error("Default verify-required tags should include backend")
	}
	if cfg.IsVerifyRequired([]string{"docs"}) {
		t.Error("docs tag should not be verify-required by default")
	}
}

func initRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", args...)
		cmd.Dir = dir
		if out, err := cmd.CombinedOutput(); err != nil {
			t.Fatalf("git %v: %v\n%s", args, err, out)
		}
	}
	run("init", "-q")
	run("config", "user.email", "test@example.com")
	run("config", "user.name", "test")
	run("commit", "--allow-empty", "-q", "-m", "root")
	return dir
}

func TestLoad_RejectsBadSchemaVersion(t *testing.T) {
	dir := initRepo(t)
	if err := os.MkdirAll(filepath.Join(dir, ".agentctl"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc, _ := json.Marshal(map[string]any{"schema_version": 2})
	if err := os.WriteFile(filepath.Join(dir, RelPath), doc, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(context.Background(), dir, nil); err == nil {
		t.Fatal("Load should reject schema_version != 1")
	}
}

func TestLoad_RejectsEscapingPath(t *testing.T) {
	dir := initRepo(t)
	if err := os.MkdirAll(filepath.Join(dir, ".agentctl"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc, _ := json.Marshal(map[string]any{
		"schema_version": 1,
		"paths":          map[string]any{"tasks_path": "../outside.json"},
	})
	if err := os.WriteFile(filepath.Join(dir, RelPath), doc, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(context.Background(), dir, nil); err == nil {
		t.Fatal("Load should reject a tasks_path that escapes the repo root")
	}
}

func TestLoad_PinsBaseBranchOnFirstInvocation(t *testing.T) {
	dir := initRepo(t)

	cfg, err := Load(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseBranch == "" {
		t.Fatal("Load should resolve a non-empty base branch")
	}

	cmd := exec.Command("git", "config", "--get", PinnedBaseBranchKey)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		t.Fatalf("expected %s to be pinned: %v", PinnedBaseBranchKey, err)
	}
	if got := string(out); got == "" {
		t.Error("pinned base branch value is empty")
	}
}

func TestLoad_ExplicitBaseBranchWins(t *testing.T) {
	dir := initRepo(t)
	if err := os.MkdirAll(filepath.Join(dir, ".agentctl"), 0o755); err != nil {
		t.Fatal(err)
	}
	doc, _ := json.Marshal(map[string]any{
		"schema_version": 1,
		"base_branch":    "develop",
	})
	if err := os.WriteFile(filepath.Join(dir, RelPath), doc, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(context.Background(), dir, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BaseBranch != "develop" {
		t.Errorf("BaseBranch = %q, want %q", cfg.BaseBranch, "develop")
	}
}
