// Package branch implements the Branch & Worktree Lifecycle (spec
// §4.7): task-branch naming, creation/reuse, status, removal, the
// "work start" convenience bundle, and cleanup of merged task branches.
package branch

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/taskid"
)

// Mode mirrors config.WorkflowMode without importing internal/config,
// keeping this package below config in the dependency graph.
type Mode string

const (
	ModeDirect   Mode = "direct"
	ModeBranchPR Mode = "branch_pr"
)

// Lifecycle drives branch/worktree operations for one repo.
type Lifecycle struct {
	Git           *gitx.Adapter
	WorktreesRoot string
	TaskPrefix    string
	Mode          Mode
}

// New constructs a Lifecycle.
func New(g *gitx.Adapter, worktreesRoot, taskPrefix string, mode Mode) *Lifecycle {
	return &Lifecycle{Git: g, WorktreesRoot: worktreesRoot, TaskPrefix: taskPrefix, Mode: mode}
}

// CreateOptions configures Create.
type CreateOptions struct {
	TaskID    string
	FreeText  string
	AgentID   string
	Base      string
	Worktree  bool
	Reuse     bool
}

// CreateResult is the outcome of Create.
type CreateResult struct {
	Branch       string
	WorktreePath string
	Reused       bool
}

// Create implements "branch create" (spec §4.7).
func (l *Lifecycle) Create(ctx context.Context, opts CreateOptions) (CreateResult, error) {
	if l.Mode == ModeDirect {
		return CreateResult{}, errs.New(errs.KindState, "creating task branches is disabled in direct mode; switch workflow_mode to branch_pr")
	}
	if strings.TrimSpace(opts.AgentID) == "" {
		return CreateResult{}, errs.New(errs.KindInput, "branch create requires an explicit agent id in branch_pr mode")
	}

	branchName := taskid.BranchName(l.TaskPrefix, opts.TaskID, opts.FreeText)

	if !l.Git.BranchExists(ctx, opts.Base) {
		if _, ok := l.Git.ShowRef(ctx, "refs/heads/"+opts.Base); !ok {
			return CreateResult{}, errs.New(errs.KindInput, "base branch %q does not exist", opts.Base)
		}
	}

	entries, err := l.Git.WorktreeList(ctx)
	if err != nil {
		return CreateResult{}, errs.Wrap(errs.KindGit, err, "list worktrees")
	}
	for _, e := range entries {
		if e.Branch == branchName {
			if opts.Reuse {
				return CreateResult{Branch: branchName, WorktreePath: e.Path, Reused: true}, nil
			}
			return CreateResult{}, errs.New(errs.KindState, "branch %q is already checked out in worktree %s (pass --reuse to attach)", branchName, e.Path)
		}
	}

	result := CreateResult{Branch: branchName}
	if opts.Worktree {
		dirName := taskid.WorktreeDirName(opts.TaskID, opts.FreeText)
		wtPath := filepath.Join(l.WorktreesRoot, dirName)
		newBranch := !l.Git.BranchExists(ctx, branchName)
		if err := l.Git.WorktreeAdd(ctx, wtPath, branchName, opts.Base, newBranch); err != nil {
			return CreateResult{}, errs.Wrap(errs.KindGit, err, "create worktree for %s", branchName)
		}
		result.WorktreePath = wtPath
	} else if !l.Git.BranchExists(ctx, branchName) {
		return CreateResult{}, errs.New(errs.KindInput, "branch_pr mode requires a worktree when creating a new branch")
	}

	return result, nil
}

// Status is the result of branch status (spec §4.7).
type Status struct {
	Branch       string
	Ahead        int
	Behind       int
	WorktreePath string
}

// StatusOf computes ahead/behind counts against base plus any
// registered worktree.
func (l *Lifecycle) StatusOf(ctx context.Context, branchName, base string) (Status, error) {
	ahead, err := l.countCommits(ctx, base, branchName)
	if err != nil {
		return Status{}, err
	}
	behind, err := l.countCommits(ctx, branchName, base)
	if err != nil {
		return Status{}, err
	}
	st := Status{Branch: branchName, Ahead: ahead, Behind: behind}

	entries, err := l.Git.WorktreeList(ctx)
	if err != nil {
		return Status{}, errs.Wrap(errs.KindGit, err, "list worktrees")
	}
	for _, e := range entries {
		if e.Branch == branchName {
			st.WorktreePath = e.Path
		}
	}
	return st, nil
}

func (l *Lifecycle) countCommits(ctx context.Context, base, head string) (int, error) {
	subjects, err := l.Git.LogSubjects(ctx, base, head, 0)
	if err != nil {
		return 0, errs.Wrap(errs.KindGit, err, "count commits %s..%s", base, head)
	}
	return len(subjects), nil
}

// Remove implements "branch remove": removes the worktree (must live
// inside WorktreesRoot) and/or the branch itself.
func (l *Lifecycle) Remove(ctx context.Context, branchName, worktreePath string, force bool) error {
	if worktreePath != "" {
		abs, err := filepath.Abs(worktreePath)
		if err != nil {
			return errs.Wrap(errs.KindInput, err, "resolve worktree path")
		}
		root, err := filepath.Abs(l.WorktreesRoot)
		if err != nil {
			return errs.Wrap(errs.KindConfiguration, err, "resolve worktrees root")
		}
		if !strings.HasPrefix(abs, strings.TrimSuffix(root, "/")+"/") {
			return errs.Wrap(errs.KindInput, errs.ErrPathEscape, "worktree path %q is outside the configured worktrees dir", worktreePath)
		}
		if err := l.Git.WorktreeRemove(ctx, abs, force); err != nil {
			return errs.Wrap(errs.KindGit, err, "remove worktree %s", abs)
		}
	}
	if l.Git.BranchExists(ctx, branchName) {
		args := []string{"branch"}
		if force {
			args = append(args, "-D")
		} else {
			args = append(args, "-d")
		}
		args = append(args, branchName)
		if err := l.deleteBranch(ctx, args); err != nil {
			return err
		}
	}
	return nil
}

func (l *Lifecycle) deleteBranch(ctx context.Context, args []string) error {
	// gitx.Adapter has no generic Run exposed; branch delete is common
	// enough to route through a dedicated adapter method instead of
	// reaching into exec directly here.
	return l.Git.DeleteBranch(ctx, args[len(args)-1], args[1] == "-D")
}

// EnsureWorktreesIgnored appends the worktrees dir to .git/info/exclude
// if not already present (spec §4.7 "work start" step 1).
func (l *Lifecycle) EnsureWorktreesIgnored(ctx context.Context) error {
	return l.Git.EnsurePathIgnored(ctx, l.WorktreesRoot)
}

// CandidateBranch describes one branch considered by CleanupMerged.
type CandidateBranch struct {
	Branch       string
	TaskID       string
	WorktreePath string
}

// MergedCandidates enumerates task branches whose diff against base is
// empty (spec §4.7 "cleanup merged"); the caller filters by task status
// DONE before acting.
func (l *Lifecycle) MergedCandidates(ctx context.Context, base string) ([]CandidateBranch, error) {
	pattern := taskid.BranchPattern(l.TaskPrefix)
	branches, err := l.Git.ListLocalBranches(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindGit, err, "list local branches")
	}
	entries, err := l.Git.WorktreeList(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindGit, err, "list worktrees")
	}
	worktreeFor := map[string]string{}
	for _, e := range entries {
		worktreeFor[e.Branch] = e.Path
	}

	var candidates []CandidateBranch
	for _, b := range branches {
		if !pattern.MatchString(b) {
			continue
		}
		names, err := l.Git.Diff(base, b).Names(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.KindGit, err, "diff %s...%s", base, b)
		}
		if len(names) != 0 {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(b, l.TaskPrefix+"/"), "/", 2)
		taskID := b
		if len(parts) > 0 {
			taskID = parts[0]
		}
		candidates = append(candidates, CandidateBranch{Branch: b, TaskID: taskID, WorktreePath: worktreeFor[b]})
	}
	return candidates, nil
}
