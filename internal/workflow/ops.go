package workflow

import (
	"context"
	"os"

	"github.com/basilisk-labs/codex-swarm/internal/docs"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/store"
)

// OpResult is the outcome of an operation that may also produce a
// commit (start/block with commit_from_comment).
type OpResult struct {
	Task    store.Task
	Commit  *gitx.Commit
	Warning string
}

// StartOptions configures Start.
type StartOptions struct {
	Force               bool
	CommitFromComment   bool
	ConfirmStatusCommit bool
	StagedFiles         []string
	AllowPrefixes       []string
	AllowTasks          bool
}

// Start implements spec §4.5 "start": readiness and comment-rule
// checks, TODO/BLOCKED→DOING transition, comment append, optional
// commit-from-comment.
func (e *Engine) Start(ctx context.Context, taskID, author, body string, opts StartOptions) (OpResult, error) {
	var warning string
	if opts.CommitFromComment {
		w, err := enforceStatusCommitPolicy(e.Cfg.StatusCommitPolicy, "start", opts.ConfirmStatusCommit)
		if err != nil {
			return OpResult{}, err
		}
		warning = w
	}
	if err := e.requireTasksWriteContext(ctx, opts.Force); err != nil {
		return OpResult{}, err
	}
	if err := checkStructuredComment(e.Cfg, commentStart, body); err != nil {
		return OpResult{}, err
	}

	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return OpResult{}, err
	}
	t := tasks[idx]

	if err := checkTransition(t.Status, store.StatusDOING); err != nil {
		return OpResult{}, err
	}
	if t.Status != store.StatusDOING {
		if state, ready := readiness(tasks, t.ID); !ready && !opts.Force {
			return OpResult{}, errs.Wrap(errs.KindState, errs.ErrNotReady,
				"task %s is not ready: missing=%v incomplete=%v", t.ID, state.Missing, state.Incomplete)
		}
	}

	t.Status = store.StatusDOING
	t.Comments = append(t.Comments, store.Comment{Author: author, Body: body})
	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return OpResult{}, err
	}

	result := OpResult{Task: t, Warning: warning}
	if opts.CommitFromComment {
		commit, err := e.commitFromComment(ctx, t.Status, t.ID, body, opts.StagedFiles, opts.AllowPrefixes, opts.AllowTasks)
		if err != nil {
			return result, err
		}
		result.Commit = &commit
	}
	return result, nil
}

// BlockOptions configures Block.
type BlockOptions struct {
	Force               bool
	CommitFromComment   bool
	ConfirmStatusCommit bool
	StagedFiles         []string
	AllowPrefixes       []string
	AllowTasks          bool
}

// Block implements spec §4.5 "block": comment rule, transition to
// BLOCKED from any non-terminal state, comment append.
func (e *Engine) Block(ctx context.Context, taskID, author, body string, opts BlockOptions) (OpResult, error) {
	var warning string
	if opts.CommitFromComment {
		w, err := enforceStatusCommitPolicy(e.Cfg.StatusCommitPolicy, "block", opts.ConfirmStatusCommit)
		if err != nil {
			return OpResult{}, err
		}
		warning = w
	}
	if err := e.requireTasksWriteContext(ctx, opts.Force); err != nil {
		return OpResult{}, err
	}
	if err := checkStructuredComment(e.Cfg, commentBlocked, body); err != nil {
		return OpResult{}, err
	}

	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return OpResult{}, err
	}
	t := tasks[idx]

	if err := checkTransition(t.Status, store.StatusBlocked); err != nil {
		return OpResult{}, err
	}

	t.Status = store.StatusBlocked
	t.Comments = append(t.Comments, store.Comment{Author: author, Body: body})
	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return OpResult{}, err
	}

	result := OpResult{Task: t, Warning: warning}
	if opts.CommitFromComment {
		commit, err := e.commitFromComment(ctx, t.Status, t.ID, body, opts.StagedFiles, opts.AllowPrefixes, opts.AllowTasks)
		if err != nil {
			return result, err
		}
		result.Commit = &commit
	}
	return result, nil
}

// SetStatusOptions configures SetStatus.
type SetStatusOptions struct {
	Force bool
}

// SetStatus implements spec §4.5 "set-status": a generic transition
// honoring the same state-machine rules, with DONE explicitly rejected
// (it must go via Finish).
func (e *Engine) SetStatus(ctx context.Context, taskID string, to store.Status, opts SetStatusOptions) (store.Task, error) {
	if to == store.StatusDone {
		return store.Task{}, errs.New(errs.KindInput, "set-status cannot target DONE; use finish")
	}
	if err := e.requireTasksWriteContext(ctx, opts.Force); err != nil {
		return store.Task{}, err
	}

	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	t := tasks[idx]

	if err := checkTransition(t.Status, to); err != nil {
		return store.Task{}, err
	}
	if to == store.StatusDOING && t.Status != store.StatusDOING {
		if state, ready := readiness(tasks, t.ID); !ready && !opts.Force {
			return store.Task{}, errs.Wrap(errs.KindState, errs.ErrNotReady,
				"task %s is not ready: missing=%v incomplete=%v", t.ID, state.Missing, state.Incomplete)
		}
	}

	t.Status = to
	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// FinishOptions configures Finish.
type FinishOptions struct {
	Force          bool
	SkipVerify     bool
	WorkDir        string // working directory verify commands run in; defaults to repo root
	PRDir          string // "" when no PR artifact is associated with this task
	ClosePRStatus  docs.PRStatus
	CloseCommentBy string // author attributed to the replayed handoff-note comments

	// CommitFromComment builds the DONE commit from body instead of
	// resolving a pre-existing commitRev, the same status/comment-driven
	// commit path Start/Block use. FinishAutoStatusCommit in the
	// workflow config implies this whenever commitRev is "" and body is
	// non-empty, without the caller having to set it explicitly.
	CommitFromComment   bool
	ConfirmStatusCommit bool
	StagedFiles         []string
	AllowPrefixes       []string
	AllowTasks          bool
}

// FinishResult is the outcome of Finish: the updated task, and — when
// CommitFromComment (explicit or config-implied) built the DONE commit
// itself — the commit it created.
type FinishResult struct {
	Task    store.Task
	Commit  *gitx.Commit
	Warning string
}

// Finish implements spec §4.5 "finish": lint/readiness/doc-completeness
// validation, the INTEGRATOR author requirement in branch_pr mode,
// verify execution (skip-if-unchanged aware), commit resolution (either
// `git show` on a pre-existing commitRev, or a status/comment-driven
// commit built from body), the DONE transition, and — when a PR
// artifact is associated — handoff-note replay and PR meta closure.
func (e *Engine) Finish(ctx context.Context, taskID, commitRev, author, body string, opts FinishOptions) (FinishResult, error) {
	statusCommit := opts.CommitFromComment || (e.Cfg.FinishAutoStatusCommit && commitRev == "" && body != "")

	var warning string
	if statusCommit {
		w, err := enforceStatusCommitPolicy(e.Cfg.StatusCommitPolicy, "finish", opts.ConfirmStatusCommit)
		if err != nil {
			return FinishResult{}, err
		}
		warning = w
	}

	if err := e.requireTasksWriteContext(ctx, opts.Force); err != nil {
		return FinishResult{}, err
	}
	if err := checkStructuredComment(e.Cfg, commentVerified, body); err != nil {
		return FinishResult{}, err
	}
	if e.branchPRMode() && author != "INTEGRATOR" {
		return FinishResult{}, errs.New(errs.KindInput, "finish requires --author=INTEGRATOR in branch_pr mode")
	}

	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return FinishResult{}, err
	}
	t := tasks[idx]

	if err := checkTransition(t.Status, store.StatusDone); err != nil {
		return FinishResult{}, err
	}
	if state, ready := readiness(tasks, t.ID); !ready && !opts.Force {
		return FinishResult{}, errs.Wrap(errs.KindState, errs.ErrNotReady,
			"task %s is not ready: missing=%v incomplete=%v", t.ID, state.Missing, state.Incomplete)
	}

	if docBody, ok := e.docBody(ctx, t.ID); ok {
		missing := docs.MissingRequiredSections(docBody, e.Cfg.Tasks.Doc.RequiredSections)
		if len(missing) > 0 && !opts.Force {
			return FinishResult{}, errs.New(errs.KindState, "task %s: doc is missing required sections %v", t.ID, missing)
		}
	}

	if !opts.SkipVerify && len(t.Verify) > 0 {
		if _, err := e.RunVerify(ctx, t, opts.WorkDir, opts.PRDir); err != nil {
			return FinishResult{}, err
		}
	}

	var commit gitx.Commit
	if statusCommit {
		if body == "" {
			return FinishResult{}, errs.New(errs.KindInput, "finish: a comment body is required to build the commit from the comment")
		}
		commit, err = e.commitFromComment(ctx, store.StatusDone, t.ID, body, opts.StagedFiles, opts.AllowPrefixes, opts.AllowTasks)
		if err != nil {
			return FinishResult{}, err
		}
	} else {
		commit, err = e.Git.CommitInfo(ctx, commitRev)
		if err != nil {
			return FinishResult{}, errs.Wrap(errs.KindGit, err, "resolve commit %s", commitRev)
		}
	}

	t.Status = store.StatusDone
	t.Commit = &store.Commit{Hash: commit.Hash, Message: commit.Subject}
	t.Comments = append(t.Comments, store.Comment{Author: author, Body: body})

	if opts.PRDir != "" && docs.Exists(opts.PRDir) {
		if err := e.replayHandoffNotes(opts.PRDir, &t, opts.CloseCommentBy); err != nil {
			return FinishResult{}, err
		}
		if opts.ClosePRStatus != "" {
			if err := e.closePR(opts.PRDir, opts.ClosePRStatus, commit.Hash); err != nil {
				return FinishResult{}, err
			}
		}
	}

	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return FinishResult{}, err
	}
	return FinishResult{Task: t, Commit: &commit, Warning: warning}, nil
}

func (e *Engine) replayHandoffNotes(prDir string, t *store.Task, by string) error {
	data, err := readReviewBody(prDir)
	if err != nil {
		return err
	}
	notes := docs.ParseHandoffNotes(data)
	digest := docs.HandoffDigest(notes)

	meta, err := docs.ReadMeta(prDir)
	if err != nil {
		return errs.Wrap(errs.KindState, err, "read PR meta in %s", prDir)
	}
	if digest == meta.HandoffAppliedDigest {
		return nil
	}
	for _, n := range notes {
		author := n.Author
		if by != "" {
			author = by
		}
		t.Comments = append(t.Comments, store.Comment{Author: author, Body: n.Body})
	}
	meta.HandoffAppliedDigest = digest
	meta.HandoffAppliedAt = e.now().UTC().Format("2006-01-02T15:04:05Z07:00")
	return docs.WriteMeta(prDir, meta)
}

func (e *Engine) closePR(prDir string, status docs.PRStatus, commitHash string) error {
	meta, err := docs.ReadMeta(prDir)
	if err != nil {
		return errs.Wrap(errs.KindState, err, "read PR meta in %s", prDir)
	}
	now := e.now().UTC().Format("2006-01-02T15:04:05Z07:00")
	meta.Status = status
	switch status {
	case docs.PRMerged:
		meta.MergedAt = now
		meta.MergeCommit = commitHash
	case docs.PRClosed:
		meta.ClosedAt = now
		meta.CloseCommit = commitHash
	}
	return docs.WriteMeta(prDir, meta)
}

func readReviewBody(prDir string) (string, error) {
	data, err := os.ReadFile(docs.ReviewPath(prDir))
	if err != nil {
		return "", errs.Wrap(errs.KindState, err, "read review.md in %s", prDir)
	}
	return string(data), nil
}
