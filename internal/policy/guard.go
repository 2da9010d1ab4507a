package policy

import (
	"context"
	"strings"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
)

// GuardRequest is the input to CheckStaged, the single place allowlist,
// denylist, and the tasks-snapshot special case are enforced (spec
// §4.6).
type GuardRequest struct {
	StagedFiles    []string
	AllowPrefixes  []string
	AllowTasks     bool
	TasksJSONRel   string // repo-relative path of the tasks snapshot
	OnBaseBranch   bool
	InTaskWorktree bool
	RequireClean   bool
	IndexEmpty     bool
}

// CheckStaged enforces spec §4.6's allow/denylist rules against a set
// of staged files.
func CheckStaged(req GuardRequest) error {
	if req.RequireClean && !req.IndexEmpty {
		return errs.Wrap(errs.KindState, errs.ErrDirtyTree, "staged-clean guard: index is not clean")
	}

	for _, f := range req.StagedFiles {
		if f == req.TasksJSONRel {
			if !req.AllowTasks {
				return errs.New(errs.KindState, "staging %s requires --allow-tasks", req.TasksJSONRel)
			}
			if req.InTaskWorktree || !req.OnBaseBranch {
				return errs.New(errs.KindState, "tasks snapshot writes are only allowed from the base checkout on the base branch")
			}
			continue
		}
		if !MatchesAnyPrefix(f, req.AllowPrefixes) {
			return errs.New(errs.KindState, "staged file %q is not under any allowed prefix", f)
		}
	}
	return nil
}

// TasksWriteContext reports whether the repo is currently allowed to
// mutate the shared tasks snapshot: not inside a task worktree, and (in
// branch_pr mode) on the base branch (spec §4.5 "Tasks-write context").
func TasksWriteContext(ctx context.Context, g *gitx.Adapter, worktreesRoot, baseBranch string, branchPRMode bool) error {
	top, err := g.Toplevel(ctx)
	if err != nil {
		return errs.Wrap(errs.KindGit, err, "resolve repo toplevel")
	}
	if strings.HasPrefix(top, strings.TrimSuffix(worktreesRoot, "/")+"/") {
		return errs.Wrap(errs.KindContext, errs.ErrWriteContext, "current checkout is inside a task worktree")
	}

	if branchPRMode {
		current, err := g.CurrentBranch(ctx)
		if err != nil {
			return errs.Wrap(errs.KindGit, err, "resolve current branch")
		}
		if current != baseBranch {
			return errs.Wrap(errs.KindContext, errs.ErrWriteContext, "current branch %q is not the base branch %q", current, baseBranch)
		}
	}
	return nil
}
