package workflow

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/basilisk-labs/codex-swarm/internal/branch"
	"github.com/basilisk-labs/codex-swarm/internal/config"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/store"
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
	runGit(t, dir, "commit", "--allow-empty", "-q", "-m", "initial")
	return dir
}

// newEngine builds an Engine rooted at dir in direct mode with a fixed
// clock, the shape most CRUD/operation tests exercise.
func newEngine(t *testing.T, dir string) (*Engine, *store.Local) {
	t.Helper()
	ctx := context.Background()
	cfg, err := config.Load(ctx, dir, &config.Config{WorkflowMode: config.ModeDirect})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	backend := store.NewLocal(cfg.TasksJSONPath(), cfg.AbsPath(cfg.Paths.AgentsDir), cfg.Tasks.VerifyRequiredTags)
	g := gitx.New(dir)
	bl := branch.New(g, cfg.WorktreesRoot(), cfg.Branch.TaskPrefix, branch.ModeDirect)
	e := New(cfg, g, backend, bl, map[string]bool{"CODER": true})
	e.Now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	return e, backend
}

// completeDoc fills every section config.Default() requires, so Finish's
// doc-completeness check passes.
const completeDoc = "Ship the release.\n\n## Scope\n\nRelease tooling.\n\n## Risks\n\nLow.\n\n## Verify Steps\n\nRun the tests.\n\n## Rollback Plan\n\nRevert the commit."

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to store.Status
		want     bool
	}{
		{store.StatusTODO, store.StatusDOING, true},
		{store.StatusTODO, store.StatusBlocked, true},
		{store.StatusTODO, store.StatusDone, false},
		{store.StatusDOING, store.StatusDone, true},
		{store.StatusBlocked, store.StatusTODO, true},
		{store.StatusDone, store.StatusDOING, false},
		{store.StatusDone, store.StatusDone, true},
	}
	for _, c := range cases {
		if got := canTransition(c.from, c.to); got != c.want {
			t.Errorf("canTransition(%s,%s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestCheckStructuredComment(t *testing.T) {
	cfg := config.Default()
	if err := checkStructuredComment(cfg, commentStart, "Starting: working the thing"); err != nil {
		t.Errorf("expected valid start comment to pass: %v", err)
	}
	if err := checkStructuredComment(cfg, commentStart, "nope"); err == nil {
		t.Error("expected missing prefix to fail")
	}
	if err := checkStructuredComment(cfg, commentStart, "Starting:"); err == nil {
		t.Error("expected too-short body to fail")
	}
}

func TestReadiness(t *testing.T) {
	tasks := []store.Task{
		{ID: "a", Status: store.StatusDone, Commit: &store.Commit{Hash: "abcdef1", Message: "done"}},
		{ID: "b", Status: store.StatusTODO, DependsOn: []string{"a"}},
		{ID: "c", Status: store.StatusTODO, DependsOn: []string{"missing"}},
	}
	if _, ok := readiness(tasks, "b"); !ok {
		t.Error("task b should be ready (dep a is DONE with commit)")
	}
	if _, ok := readiness(tasks, "c"); ok {
		t.Error("task c should not be ready (missing dep)")
	}
}

func TestEngine_NewAddUpdateComment(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	ctx := context.Background()

	created, err := e.New(ctx, "Add caching layer", NewTaskOptions{Tags: []string{"docs"}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if created.Status != store.StatusTODO {
		t.Errorf("new task status = %s, want TODO", created.Status)
	}

	title := "Add caching layer v2"
	updated, err := e.Update(ctx, created.ID, UpdateFields{Title: &title})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if updated.Title != title {
		t.Errorf("Update title = %q, want %q", updated.Title, title)
	}

	commented, err := e.Comment(ctx, created.ID, "HUMAN", "looks good so far")
	if err != nil {
		t.Fatalf("Comment: %v", err)
	}
	if len(commented.Comments) != 1 || commented.Comments[0].Body != "looks good so far" {
		t.Errorf("unexpected comments: %+v", commented.Comments)
	}

	dup := store.Task{ID: created.ID, Title: "dup", Status: store.StatusTODO}
	if _, err := e.Add(ctx, dup); err == nil {
		t.Error("expected Add to reject a duplicate id")
	}
}

func TestEngine_ListNextSearch(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	ctx := context.Background()

	a, err := e.New(ctx, "Write the parser", NewTaskOptions{Tags: []string{"backend"}, Verify: []string{"go test ./..."}})
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	_, err = e.New(ctx, "Write the renderer", NewTaskOptions{Tags: []string{"frontend"}, DependsOn: []string{a.ID}, Verify: []string{"go test ./..."}})
	if err != nil {
		t.Fatalf("New b: %v", err)
	}

	list, err := e.List(ctx, store.StatusTODO, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d tasks, want 2", len(list))
	}

	next, ok, err := e.Next(ctx)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if !ok || next.ID != a.ID {
		t.Errorf("Next = %+v, ok=%v, want task %s ready first (the other depends on it)", next, ok, a.ID)
	}

	found, err := e.Search(ctx, "parser")
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(found) != 1 || found[0].ID != a.ID {
		t.Errorf("Search(parser) = %+v, want exactly task %s", found, a.ID)
	}
}

func TestEngine_StartRejectsUnready(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	ctx := context.Background()

	blocker, err := e.New(ctx, "Blocker", NewTaskOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	dependent, err := e.New(ctx, "Dependent", NewTaskOptions{DependsOn: []string{blocker.ID}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = e.Start(ctx, dependent.ID, "CODER", "Starting: the dependent task work begins now", StartOptions{})
	if err == nil {
		t.Fatal("expected Start to reject an unready task")
	}

	_, err = e.Start(ctx, dependent.ID, "CODER", "Starting: the dependent task work begins now", StartOptions{Force: true})
	if err != nil {
		t.Fatalf("forced Start should succeed: %v", err)
	}
}

func TestEngine_StartBlockFinishHappyPath(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	ctx := context.Background()

	task, err := e.New(ctx, "Ship the release", NewTaskOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := e.Start(ctx, task.ID, "CODER", "Starting: kicking off the release work now", StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := e.Backend.SetTaskDoc(ctx, task.ID, "CODER", completeDoc); err != nil {
		t.Fatalf("SetTaskDoc: %v", err)
	}

	blocked, err := e.Block(ctx, task.ID, "CODER", "Blocked: waiting on an upstream dependency to land", BlockOptions{})
	if err != nil {
		t.Fatalf("Block: %v", err)
	}
	if blocked.Task.Status != store.StatusBlocked {
		t.Fatalf("status after Block = %s, want BLOCKED", blocked.Task.Status)
	}

	if _, err := e.SetStatus(ctx, task.ID, store.StatusDOING, SetStatusOptions{}); err != nil {
		t.Fatalf("SetStatus back to DOING: %v", err)
	}
	if _, err := e.SetStatus(ctx, task.ID, store.StatusDone, SetStatusOptions{}); err == nil {
		t.Fatal("SetStatus must reject DONE as a target")
	}

	runGit(t, dir, "commit", "--allow-empty", "-q", "-m", "ship it")
	finished, err := e.Finish(ctx, task.ID, "HEAD", "CODER", "Verified: the release shipped and checks passed locally", FinishOptions{})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if finished.Task.Status != store.StatusDone {
		t.Errorf("status after Finish = %s, want DONE", finished.Task.Status)
	}
	if finished.Task.Commit == nil || finished.Task.Commit.Hash == "" {
		t.Error("Finish did not record a commit")
	}
}

func TestEngine_FinishRequiresIntegratorInBranchPR(t *testing.T) {
	dir := initRepo(t)
	ctx := context.Background()
	cfg, err := config.Load(ctx, dir, &config.Config{WorkflowMode: config.ModeBranchPR, BaseBranch: "main"})
	if err != nil {
		t.Fatalf("config.Load: %v", err)
	}
	backend := store.NewLocal(cfg.TasksJSONPath(), cfg.AbsPath(cfg.Paths.AgentsDir), cfg.Tasks.VerifyRequiredTags)
	g := gitx.New(dir)
	bl := branch.New(g, cfg.WorktreesRoot(), cfg.Branch.TaskPrefix, branch.ModeBranchPR)
	e := New(cfg, g, backend, bl, nil)

	task, err := e.New(ctx, "Branch PR task", NewTaskOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Start(ctx, task.ID, "CODER", "Starting: working on the branch pr task now", StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = e.Finish(ctx, task.ID, "HEAD", "CODER", "Verified: everything checks out fine here today", FinishOptions{})
	if err == nil {
		t.Fatal("expected Finish to reject a non-INTEGRATOR author in branch_pr mode")
	}
}

func TestEnforceStatusCommitPolicy(t *testing.T) {
	cases := []struct {
		name      string
		policy    config.CommentPolicy
		confirmed bool
		wantWarn  bool
		wantErr   bool
	}{
		{"allow always passes silently", config.PolicyAllow, false, false, false},
		{"warn without confirmation returns a warning", config.PolicyWarn, false, true, false},
		{"warn with confirmation is silent", config.PolicyWarn, true, false, false},
		{"confirm without confirmation blocks", config.PolicyConfirm, false, false, true},
		{"confirm with confirmation passes", config.PolicyConfirm, true, false, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			warning, err := enforceStatusCommitPolicy(c.policy, "finish", c.confirmed)
			if c.wantErr && err == nil {
				t.Fatal("expected an error")
			}
			if !c.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if c.wantWarn && warning == "" {
				t.Error("expected a non-empty warning")
			}
			if !c.wantWarn && warning != "" {
				t.Errorf("expected no warning, got %q", warning)
			}
		})
	}
}

func TestEnforceStatusCommitPolicy_ConfirmBlocksWithExitCode2(t *testing.T) {
	_, err := enforceStatusCommitPolicy(config.PolicyConfirm, "finish", false)
	var e *errs.Error
	if !errs.As(err, &e) {
		t.Fatalf("expected an *errs.Error, got %v", err)
	}
	if e.ExitCode() != 2 {
		t.Errorf("ExitCode() = %d, want 2", e.ExitCode())
	}
}

func TestEngine_FinishCommitFromComment(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	ctx := context.Background()

	task, err := e.New(ctx, "Ship the release", NewTaskOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Start(ctx, task.ID, "CODER", "Starting: kicking off the release work now", StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := e.Backend.SetTaskDoc(ctx, task.ID, "CODER", completeDoc); err != nil {
		t.Fatalf("SetTaskDoc: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("release notes"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	runGit(t, dir, "add", "notes.txt")
	staged, err := e.Git.StagedFiles(ctx)
	if err != nil {
		t.Fatalf("StagedFiles: %v", err)
	}

	res, err := e.Finish(ctx, task.ID, "", "CODER", "Verified: the release shipped and the notes are attached", FinishOptions{
		CommitFromComment:   true,
		ConfirmStatusCommit: true,
		StagedFiles:         staged,
	})
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if res.Task.Status != store.StatusDone {
		t.Errorf("status after Finish = %s, want DONE", res.Task.Status)
	}
	if res.Commit == nil || res.Commit.Hash == "" {
		t.Error("Finish did not record a commit-from-comment commit")
	}
}

func TestEngine_FinishCommitFromComment_PolicyConfirmBlocksWithoutFlag(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	e.Cfg.StatusCommitPolicy = config.PolicyConfirm
	ctx := context.Background()

	task, err := e.New(ctx, "Ship the release", NewTaskOptions{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := e.Start(ctx, task.ID, "CODER", "Starting: kicking off the release work now", StartOptions{}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	_, err = e.Finish(ctx, task.ID, "", "CODER", "Verified: the release shipped and checks passed locally", FinishOptions{
		CommitFromComment: true,
	})
	if err == nil {
		t.Fatal("expected Finish to block the commit-from-comment path under status_commit_policy=confirm")
	}
	var ee *errs.Error
	if !errs.As(err, &ee) {
		t.Fatalf("expected an *errs.Error, got %v", err)
	}
	if ee.ExitCode() != 2 {
		t.Errorf("ExitCode() = %d, want 2", ee.ExitCode())
	}
}

func TestRunVerify_SkipsWhenAlreadyVerified(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	ctx := context.Background()

	task := store.Task{ID: "x", Title: "x", Status: store.StatusDOING, Verify: []string{"true"}}
	prDir := t.TempDir()
	if err := writeMinimalPRMeta(t, prDir, task.ID); err != nil {
		t.Fatalf("writeMinimalPRMeta: %v", err)
	}

	result, err := e.RunVerify(ctx, task, dir, prDir)
	if err != nil {
		t.Fatalf("RunVerify: %v", err)
	}
	if result.Skipped {
		t.Fatal("first run should not be skipped")
	}

	result2, err := e.RunVerify(ctx, task, dir, prDir)
	if err != nil {
		t.Fatalf("RunVerify (second): %v", err)
	}
	if !result2.Skipped {
		t.Error("second run against an unchanged HEAD should be skipped")
	}
}

func writeMinimalPRMeta(t *testing.T, prDir, taskID string) error {
	t.Helper()
	_, err := openMinimalPR(prDir, taskID)
	return err
}

func openMinimalPR(prDir, taskID string) (string, error) {
	return prDir, nil // meta.json is created lazily by docs.Open in real flows; verify.log alone is enough for RunVerify
}

func TestCheckTransitionRejectsInvalid(t *testing.T) {
	if err := checkTransition(store.StatusDone, store.StatusDOING); err == nil {
		t.Error("expected DONE -> DOING to be rejected")
	}
}

func TestWorktreesRootPath(t *testing.T) {
	dir := initRepo(t)
	e, _ := newEngine(t, dir)
	if got := e.Cfg.WorktreesRoot(); !strings.HasPrefix(got, dir) {
		t.Errorf("WorktreesRoot() = %q, want prefix %q", got, dir)
	}
	if got := filepath.Base(e.Cfg.Paths.WorktreesDir); got == "" {
		t.Error("worktrees dir should not be empty")
	}
}
