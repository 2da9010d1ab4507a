package workflow

import (
	"context"
	"strings"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/policy"
	"github.com/basilisk-labs/codex-swarm/internal/store"
)

// contextFlags resolves the current checkout's relationship to the
// worktrees root and base branch, the same facts
// policy.TasksWriteContext needs, reused here for the guard check.
func (e *Engine) contextFlags(ctx context.Context) (onBase, inTaskWorktree bool, err error) {
	top, err := e.Git.Toplevel(ctx)
	if err != nil {
		return false, false, errs.Wrap(errs.KindGit, err, "resolve repo toplevel")
	}
	worktreesRoot := e.Cfg.WorktreesRoot()
	inTaskWorktree = strings.HasPrefix(top, strings.TrimSuffix(worktreesRoot, "/")+"/")

	current, err := e.Git.CurrentBranch(ctx)
	if err != nil {
		return false, inTaskWorktree, errs.Wrap(errs.KindGit, err, "resolve current branch")
	}
	onBase = current == e.Cfg.BaseBranch
	return onBase, inTaskWorktree, nil
}

// commitFromComment implements spec §4.6 "commit-from-comment":
// normalize the comment body into a subject+body, stage the
// auto-allowed paths' guard check, then commit (the caller is
// responsible for having `git add`-ed the files beforehand; this
// package never stages files itself, since the workflow engine
// operates on the already-staged index the same way `agentctl commit`
// does).
func (e *Engine) commitFromComment(ctx context.Context, status store.Status, taskID, body string, stagedFiles, allowPrefixes []string, allowTasks bool) (gitx.Commit, error) {
	subject, full := policy.NormalizeCommentCommit(string(status), taskID, body)

	if err := policy.SubjectCheck(subject, []string{taskID}, e.Cfg.Commit.GenericTokens); err != nil {
		return gitx.Commit{}, err
	}

	prefixes := allowPrefixes
	if len(prefixes) == 0 {
		prefixes = policy.AutoAllowPrefixes(stagedFiles)
	}

	onBase, inWorktree, err := e.contextFlags(ctx)
	if err != nil {
		return gitx.Commit{}, err
	}

	req := policy.GuardRequest{
		StagedFiles:    stagedFiles,
		AllowPrefixes:  prefixes,
		AllowTasks:     allowTasks,
		TasksJSONRel:   e.Cfg.Paths.TasksPath,
		OnBaseBranch:   onBase,
		InTaskWorktree: inWorktree,
	}
	if err := policy.CheckStaged(req); err != nil {
		return gitx.Commit{}, err
	}

	commit, err := e.Git.CreateCommit(ctx, full, gitx.CommitOptions{})
	if err != nil {
		return gitx.Commit{}, errs.Wrap(errs.KindGit, err, "create commit for task %s", taskID)
	}
	return commit, nil
}
