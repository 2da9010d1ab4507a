package workflow

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/basilisk-labs/codex-swarm/internal/docs"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/store"
	"github.com/basilisk-labs/codex-swarm/internal/taskid"
)

// IntegrateOptions configures Integrate.
type IntegrateOptions struct {
	Force bool
}

// IntegrateResult is the outcome of a successful integrate run.
type IntegrateResult struct {
	MergeCommit gitx.Commit
	Verify      VerifyResult
	Task        store.Task
}

// Integrate implements spec §4.5's branch_pr "integrate" pipeline: it
// merges a task's branch into the base checkout, finishes the task, and
// closes out the PR artifact. Must be run from the base checkout.
func (e *Engine) Integrate(ctx context.Context, taskID string, opts IntegrateOptions) (IntegrateResult, error) {
	if !e.branchPRMode() {
		return IntegrateResult{}, errs.New(errs.KindState, "integrate is only meaningful in branch_pr mode")
	}

	// Step 1: preflight.
	current, err := e.Git.CurrentBranch(ctx)
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindGit, err, "resolve current branch")
	}
	if current != e.Cfg.BaseBranch {
		return IntegrateResult{}, errs.New(errs.KindState, "integrate must run from base branch %q, currently on %q", e.Cfg.BaseBranch, current)
	}
	statusLines, err := e.Git.Status(ctx)
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindGit, err, "check working tree status")
	}
	if len(statusLines) != 0 {
		return IntegrateResult{}, errs.Wrap(errs.KindState, errs.ErrDirtyTree, "working tree is dirty; commit or stash before integrate")
	}
	if err := e.Branch.EnsureWorktreesIgnored(ctx); err != nil {
		return IntegrateResult{}, err
	}
	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return IntegrateResult{}, err
	}
	t := tasks[idx]
	if state, ready := readiness(tasks, t.ID); !ready && !opts.Force {
		return IntegrateResult{}, errs.Wrap(errs.KindState, errs.ErrNotReady,
			"task %s is not ready: missing=%v incomplete=%v", t.ID, state.Missing, state.Incomplete)
	}

	// Step 2: locate and load PR meta.
	prDir := docs.Dir(e.Cfg.AbsPath(e.Cfg.Paths.AgentsDir), taskID)
	if !docs.Exists(prDir) {
		return IntegrateResult{}, errs.New(errs.KindState, "task %s has no PR artifact at %s", taskID, prDir)
	}
	meta, err := docs.ReadMeta(prDir)
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindState, err, "read PR meta")
	}
	if meta.TaskID != taskID {
		return IntegrateResult{}, errs.New(errs.KindState, "PR meta task_id %q does not match %q", meta.TaskID, taskID)
	}

	// Step 3: pr check (quiet).
	if err := e.prCheck(ctx, taskID, meta); err != nil {
		return IntegrateResult{}, err
	}

	// Step 4: diff against base must not touch the tasks snapshot.
	changed, err := e.Git.Diff(meta.BaseBranch, meta.Branch).Names(ctx)
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindGit, err, "diff %s...%s", meta.BaseBranch, meta.Branch)
	}
	for _, name := range changed {
		if name == e.Cfg.Paths.TasksPath {
			return IntegrateResult{}, errs.New(errs.KindState, "branch %s modifies the tasks snapshot; integrate refuses to merge it", meta.Branch)
		}
	}

	// Step 5: decide whether verify must run.
	headSHA, err := e.Git.RevParse(ctx, meta.Branch)
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindGit, err, "resolve %s", meta.Branch)
	}
	skipVerify := meta.LastVerifiedSHA == headSHA
	if !skipVerify {
		if last, ok := docs.LastVerifiedSHA(prDir); ok && last == headSHA {
			skipVerify = true
		}
	}

	// Step 6: acquire a worktree for verify execution, remove it on return.
	var verifyResult VerifyResult
	if !skipVerify {
		wtPath, cleanup, err := e.acquireVerifyWorktree(ctx, meta.Branch)
		if err != nil {
			return IntegrateResult{}, err
		}
		verifyResult, err = e.RunVerify(ctx, t, wtPath, prDir)
		cleanup()
		if err != nil {
			return IntegrateResult{}, err
		}
	}

	preMergeSHA, err := e.Git.RevParse(ctx, "HEAD")
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindGit, err, "resolve pre-merge HEAD")
	}

	// Step 7: execute the merge.
	mergeCommit, alreadyMerged, err := e.executeMerge(ctx, taskID, meta, preMergeSHA)
	if err != nil {
		return IntegrateResult{}, err
	}
	if alreadyMerged {
		return IntegrateResult{Task: t, Verify: verifyResult}, nil
	}

	// Step 8: finish.
	verifiedComment := fmt.Sprintf("Verified: integrate merged %s via %s (%d verify entries, skipped=%v)",
		meta.Branch, meta.MergeStrategy, len(verifyResult.Entries), verifyResult.Skipped)
	finished, err := e.Finish(ctx, taskID, mergeCommit.Hash, "INTEGRATOR", verifiedComment, FinishOptions{
		Force:         opts.Force,
		SkipVerify:    true,
		PRDir:         prDir,
		ClosePRStatus: docs.PRMerged,
	})
	if err != nil {
		return IntegrateResult{}, err
	}

	// Step 9: re-lint and rewrite diffstat/updated_at. Verify entries were
	// already appended to verify.log by RunVerify; the README auto summary
	// is not refreshed here.
	if _, err := e.Lint(ctx); err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindState, err, "re-lint snapshot after integrate")
	}
	diffstat, err := e.Git.Diff(meta.BaseBranch, meta.Branch).Stat(ctx)
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindGit, err, "compute post-merge diffstat")
	}
	updatedMeta, err := docs.ReadMeta(prDir)
	if err != nil {
		return IntegrateResult{}, errs.Wrap(errs.KindState, err, "re-read PR meta")
	}
	if _, err := docs.Update(prDir, updatedMeta, diffstat, e.now()); err != nil {
		return IntegrateResult{}, err
	}

	return IntegrateResult{MergeCommit: mergeCommit, Verify: verifyResult, Task: finished.Task}, nil
}

// CheckPR implements spec §4.5 "pr check": the same preflight
// validation Integrate runs on a PR artifact before merging, exposed
// standalone for `agentctl pr check`.
func (e *Engine) CheckPR(ctx context.Context, taskID string) error {
	prDir := docs.Dir(e.Cfg.AbsPath(e.Cfg.Paths.AgentsDir), taskID)
	meta, err := docs.ReadMeta(prDir)
	if err != nil {
		return errs.Wrap(errs.KindState, err, "read PR meta")
	}
	return e.prCheck(ctx, taskID, meta)
}

// prCheck implements spec §4.4 "pr check" in quiet mode: validates meta
// consistency, branch naming, artifact presence, doc completeness, and a
// task-suffix-bearing commit. Whether the branch touches the tasks
// snapshot file is checked separately, by Integrate's step 4.
func (e *Engine) prCheck(ctx context.Context, taskID string, meta docs.PRMeta) error {
	if meta.TaskID != taskID {
		return errs.New(errs.KindState, "pr check: meta task_id %q != %q", meta.TaskID, taskID)
	}
	if e.branchPRMode() && !taskid.BranchPattern(e.Cfg.Branch.TaskPrefix).MatchString(meta.Branch) {
		return errs.New(errs.KindState, "pr check: branch %q does not match the task-branch pattern", meta.Branch)
	}
	prDir := docs.Dir(e.Cfg.AbsPath(e.Cfg.Paths.AgentsDir), taskID)
	if !docs.ArtifactsPresent(prDir) {
		return errs.New(errs.KindState, "pr check: PR artifact files are incomplete for %s", taskID)
	}
	if body, ok := e.docBody(ctx, taskID); ok {
		if missing := docs.MissingRequiredSections(body, e.Cfg.Tasks.Doc.RequiredSections); len(missing) > 0 {
			return errs.New(errs.KindState, "pr check: doc is missing required sections %v", missing)
		}
	}

	subjects, err := e.Git.LogSubjects(ctx, meta.BaseBranch, meta.Branch, 0)
	if err != nil {
		return errs.Wrap(errs.KindGit, err, "list commit subjects on %s", meta.Branch)
	}
	suffix := taskid.Suffix(taskID)
	mentioned := false
	for _, s := range subjects {
		if strings.Contains(s, suffix) {
			mentioned = true
			break
		}
	}
	if !mentioned {
		return errs.New(errs.KindState, "pr check: no commit on %s mentions task suffix %s", meta.Branch, suffix)
	}
	return nil
}

// acquireVerifyWorktree checks out an existing branch into a fresh
// temporary worktree (spec §4.5 integrate step 6), or reuses the
// branch's existing worktree if one is already registered. The
// returned cleanup removes any worktree this call created; reused
// worktrees are left alone.
func (e *Engine) acquireVerifyWorktree(ctx context.Context, branchName string) (string, func(), error) {
	entries, err := e.Git.WorktreeList(ctx)
	if err != nil {
		return "", nil, errs.Wrap(errs.KindGit, err, "list worktrees")
	}
	for _, entry := range entries {
		if entry.Branch == branchName {
			return entry.Path, func() {}, nil
		}
	}

	parent, err := os.MkdirTemp(e.Cfg.WorktreesRoot(), "integrate-verify-*")
	if err != nil {
		return "", nil, errs.Wrap(errs.KindState, err, "create temp verify worktree dir")
	}
	dir := filepath.Join(parent, taskid.Slug(branchName))
	if err := e.Git.WorktreeAdd(ctx, dir, branchName, "", false); err != nil {
		_ = os.RemoveAll(parent)
		return "", nil, errs.Wrap(errs.KindGit, err, "add verify worktree for %s", branchName)
	}
	cleanup := func() {
		_ = e.Git.WorktreeRemove(ctx, dir, true)
		_ = os.RemoveAll(parent)
	}
	return dir, cleanup, nil
}

// executeMerge performs step 7 of the integrate pipeline for the
// configured merge strategy, resetting to preMergeSHA on any failure.
// alreadyMerged is true when a squash merge produced an empty index
// (the branch's changes are already present on base).
func (e *Engine) executeMerge(ctx context.Context, taskID string, meta docs.PRMeta, preMergeSHA string) (gitx.Commit, bool, error) {
	switch meta.MergeStrategy {
	case docs.MergeSquash:
		if err := e.Git.Merge(ctx, gitx.MergeSquash, meta.Branch, ""); err != nil {
			e.Git.AbortMerge(ctx)
			_ = e.Git.Reset(ctx, preMergeSHA, gitx.ResetHard)
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "squash merge %s", meta.Branch)
		}
		empty, err := e.Git.IndexEmpty(ctx)
		if err != nil {
			_ = e.Git.Reset(ctx, preMergeSHA, gitx.ResetHard)
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "check index after squash merge")
		}
		if empty {
			_ = e.Git.Reset(ctx, preMergeSHA, gitx.ResetHard)
			return gitx.Commit{}, true, nil
		}

		subjects, err := e.Git.LogSubjects(ctx, meta.BaseBranch, meta.Branch, 1)
		subject := fmt.Sprintf("🧩 %s integrate %s", taskID, meta.Branch)
		if err == nil && len(subjects) > 0 && strings.Contains(subjects[0], taskid.Suffix(taskID)) {
			subject = subjects[0]
		}
		commit, err := e.Git.CreateCommit(ctx, subject, gitx.CommitOptions{})
		if err != nil {
			_ = e.Git.Reset(ctx, preMergeSHA, gitx.ResetHard)
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "commit squash merge")
		}
		return commit, false, nil

	case docs.MergeMerge:
		subject := fmt.Sprintf("🔀 %s merge %s", taskID, meta.Branch)
		if err := e.Git.Merge(ctx, gitx.MergeNoFF, meta.Branch, subject); err != nil {
			e.Git.AbortMerge(ctx)
			_ = e.Git.Reset(ctx, preMergeSHA, gitx.ResetHard)
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "merge %s", meta.Branch)
		}
		commit, err := e.Git.CommitInfo(ctx, "HEAD")
		if err != nil {
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "resolve merge commit")
		}
		return commit, false, nil

	case docs.MergeRebase:
		wtPath, cleanup, err := e.acquireVerifyWorktree(ctx, meta.Branch)
		if err != nil {
			return gitx.Commit{}, false, err
		}
		defer cleanup()

		wtGit := gitx.New(wtPath)
		if err := wtGit.Rebase(ctx, meta.BaseBranch); err != nil {
			wtGit.AbortRebase(ctx)
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "rebase %s onto %s", meta.Branch, meta.BaseBranch)
		}
		if err := e.Git.Merge(ctx, gitx.MergeNoFF, meta.Branch, fmt.Sprintf("🔀 %s merge %s", taskID, meta.Branch)); err != nil {
			_ = e.Git.Reset(ctx, preMergeSHA, gitx.ResetHard)
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "fast-forward merge rebased %s", meta.Branch)
		}
		commit, err := e.Git.CommitInfo(ctx, "HEAD")
		if err != nil {
			return gitx.Commit{}, false, errs.Wrap(errs.KindGit, err, "resolve rebase-merge commit")
		}
		return commit, false, nil

	default:
		return gitx.Commit{}, false, errs.New(errs.KindConfiguration, "unknown merge strategy %q", meta.MergeStrategy)
	}
}
