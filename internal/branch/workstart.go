package branch

import "context"

// WorkStartResult is the outcome of WorkStart.
type WorkStartResult struct {
	Branch       string
	WorktreePath string
}

// WorkStart runs the convenience sequence described in spec §4.7: make
// sure the worktrees dir is gitignored, then create the branch with a
// worktree. Scaffolding the README and opening/refreshing the PR
// artifact inside the worktree are not done here; this package stays
// focused on branch/worktree mechanics. The `work start` CLI command
// runs its own sequence and does not call WorkStart.
func (l *Lifecycle) WorkStart(ctx context.Context, opts CreateOptions) (WorkStartResult, error) {
	if err := l.EnsureWorktreesIgnored(ctx); err != nil {
		return WorkStartResult{}, err
	}
	opts.Worktree = true
	result, err := l.Create(ctx, opts)
	if err != nil {
		return WorkStartResult{}, err
	}
	return WorkStartResult{Branch: result.Branch, WorktreePath: result.WorktreePath}, nil
}
