// Package workflow implements the Workflow Engine (spec §4.5): the
// task.status state machine, structured-comment rules, the
// start/block/finish/set-status operations, task CRUD, verify
// execution, and the branch_pr "integrate" pipeline. It is the single
// entry point for mutating operations, driving the Task Store (via its
// Backend), the Doc & Artifact Manager, the Commit Policy, the Branch
// Lifecycle, and the Git Adapter under the ordering guarantee in spec
// §5: validate, then write the store, then write on-disk artifacts,
// then run Git mutations last.
package workflow

import (
	"context"
	"time"

	"github.com/basilisk-labs/codex-swarm/internal/branch"
	"github.com/basilisk-labs/codex-swarm/internal/config"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/policy"
	"github.com/basilisk-labs/codex-swarm/internal/store"
)

// docBodyReader is implemented by backends that can return a task's
// full on-disk document body (prefix + doc + auto summary), needed to
// validate required sections beyond the bare doc field. Backends that
// don't implement it (e.g. Remote) degrade gracefully: section
// validation is skipped, matching spec §9's "legacy/remote-only
// backends may lack" guidance generalized to this related capability.
type docBodyReader interface {
	ReadTaskDocBody(ctx context.Context, id string) (string, error)
}

// Engine wires the Workflow Engine's collaborators for one repo
// checkout. Now is an injectable clock so tests stay deterministic;
// production callers pass time.Now.
type Engine struct {
	Cfg         *config.Config
	Git         *gitx.Adapter
	Backend     store.Backend
	Branch      *branch.Lifecycle
	KnownAgents map[string]bool
	Now         func() time.Time
}

// New constructs an Engine.
func New(cfg *config.Config, g *gitx.Adapter, backend store.Backend, bl *branch.Lifecycle, knownAgents map[string]bool) *Engine {
	return &Engine{
		Cfg:         cfg,
		Git:         g,
		Backend:     backend,
		Branch:      bl,
		KnownAgents: knownAgents,
		Now:         time.Now,
	}
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// loadTask fetches the current task set and returns the task and its
// index, or errs.ErrTaskNotFound.
func (e *Engine) loadTask(ctx context.Context, id string) ([]store.Task, int, error) {
	tasks, err := e.Backend.ListTasks(ctx)
	if err != nil {
		return nil, -1, err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return nil, -1, errs.Wrap(errs.KindInput, errs.ErrTaskNotFound, "task %s", id)
	}
	return tasks, idx, nil
}

func indexOf(tasks []store.Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// branchPRMode reports whether the engine is configured for branch_pr
// semantics.
func (e *Engine) branchPRMode() bool {
	return e.Cfg.WorkflowMode == config.ModeBranchPR
}

// requireTasksWriteContext enforces spec §4.5's single-writer rule
// unless force is set.
func (e *Engine) requireTasksWriteContext(ctx context.Context, force bool) error {
	if force {
		return nil
	}
	return policy.TasksWriteContext(ctx, e.Git, e.Cfg.WorktreesRoot(), e.Cfg.BaseBranch, e.branchPRMode())
}

// docBody best-effort reads a task's full document body; returns ("",
// false) when the backend doesn't support it.
func (e *Engine) docBody(ctx context.Context, id string) (string, bool) {
	reader, ok := e.Backend.(docBodyReader)
	if !ok {
		return "", false
	}
	body, err := reader.ReadTaskDocBody(ctx, id)
	if err != nil {
		return "", false
	}
	return body, true
}
