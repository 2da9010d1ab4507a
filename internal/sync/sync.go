// Package sync implements the Sync Controller (spec §4.8): push/pull
// between the Remote backend's local cache and its HTTP tracker, with
// per-task conflict strategies and batched, confirmable writes. It is
// only reachable when the active backend advertises store.CapSync.
package sync

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/store"
)

// Direction is the sync direction requested on the CLI.
type Direction string

const (
	DirectionPush Direction = "push"
	DirectionPull Direction = "pull"
)

// ConflictStrategy resolves a push/pull disagreement between the local
// cache and the remote tracker (spec §4.8 "pull").
type ConflictStrategy string

const (
	ConflictDiff         ConflictStrategy = "diff"
	ConflictPreferLocal  ConflictStrategy = "prefer-local"
	ConflictPreferRemote ConflictStrategy = "prefer-remote"
	ConflictFail         ConflictStrategy = "fail"
)

// PushPreview is the set of locally-dirty tasks a push would write.
type PushPreview struct {
	Tasks []store.Task
}

// PushResult reports what a confirmed push actually wrote.
type PushResult struct {
	Written []store.Task
}

// PullConflict names one task whose local cache and remote copy
// disagree, together with the unified JSON diff between them.
type PullConflict struct {
	TaskID string
	Diff   string
}

// PullResult reports what a pull did: tasks overwritten from remote,
// tasks re-pushed under prefer-local, and any diff-mode conflicts
// (which abort the pull without mutating the cache).
type PullResult struct {
	Overwritten []store.Task
	RePushed    []store.Task
	Conflicts   []PullConflict
	Aborted     bool
}

// Controller orchestrates sync against one Remote backend.
type Controller struct {
	Remote *store.Remote
}

// New constructs a Controller.
func New(r *store.Remote) *Controller {
	return &Controller{Remote: r}
}

// requireSync guards every entry point on store.CapSync, matching the
// dynamic-capability pattern the rest of the Task Store uses (spec
// §4.3's "capability check at load time" generalized to this backend).
func (c *Controller) requireSync() error {
	if !c.Remote.Capabilities()[store.CapSync] {
		return errs.Wrap(errs.KindState, errs.ErrUnsupportedCapability, "backend does not support sync")
	}
	return nil
}

// PreviewPush lists the locally-dirty tasks a push would write (spec
// §4.8 "push: list locally-dirty tasks; print the preview").
func (c *Controller) PreviewPush(ctx context.Context) (PushPreview, error) {
	if err := c.requireSync(); err != nil {
		return PushPreview{}, err
	}
	dirty, err := c.Remote.DirtyTasks(ctx)
	if err != nil {
		return PushPreview{}, err
	}
	return PushPreview{Tasks: dirty}, nil
}

// Push writes every locally-dirty task to the remote tracker, honoring
// the backend's configured batch size and pause, but only after the
// caller has confirmed (spec §4.8 "require explicit confirmation").
func (c *Controller) Push(ctx context.Context, confirm bool) (PushResult, error) {
	if err := c.requireSync(); err != nil {
		return PushResult{}, err
	}
	if !confirm {
		return PushResult{}, errs.New(errs.KindInput, "push requires explicit confirmation")
	}

	dirty, err := c.Remote.DirtyTasks(ctx)
	if err != nil {
		return PushResult{}, err
	}
	if len(dirty) == 0 {
		return PushResult{}, nil
	}

	log.Info("pushing dirty tasks to remote tracker", "count", len(dirty), "batch_size", c.Remote.BatchSize)
	if err := c.Remote.WriteTasks(ctx, dirty); err != nil {
		return PushResult{}, err
	}
	return PushResult{Written: dirty}, nil
}

// Pull fetches the remote task list and reconciles it against the local
// cache one task at a time (spec §4.8 "pull"). Tasks with no local dirty
// copy, or whose dirty copy matches the remote record, are overwritten
// from remote and their dirty flag cleared. A dirty local copy that
// differs from remote is resolved per strategy:
//   - diff: emit a unified JSON diff for the task and abort the whole
//     pull without mutating anything (spec's S6 scenario).
//   - prefer-local: re-push the local copy (it wins).
//   - prefer-remote: overwrite the cache with the remote copy.
//   - fail: abort the pull entirely, leaving the cache untouched.
func (c *Controller) Pull(ctx context.Context, strategy ConflictStrategy, confirm bool) (PullResult, error) {
	if err := c.requireSync(); err != nil {
		return PullResult{}, err
	}

	remoteTasks, err := c.Remote.FetchRemoteTasks(ctx)
	if err != nil {
		return PullResult{}, err
	}
	cached, err := c.Remote.CachedTasks(ctx)
	if err != nil {
		return PullResult{}, err
	}
	dirtyByID := make(map[string]store.Task, len(cached))
	for _, t := range cached {
		dirtyByID[t.ID] = t
	}
	dirty, err := c.Remote.DirtyTasks(ctx)
	if err != nil {
		return PullResult{}, err
	}
	isDirty := make(map[string]bool, len(dirty))
	for _, t := range dirty {
		isDirty[t.ID] = true
	}

	if strategy == ConflictDiff || strategy == ConflictFail {
		for _, remote := range remoteTasks {
			local, hasLocal := dirtyByID[remote.ID]
			if !hasLocal || !isDirty[remote.ID] {
				continue
			}
			if diffText, same, derr := unifiedDiff(remote.ID, local, remote); derr != nil {
				return PullResult{}, derr
			} else if !same && strategy == ConflictFail {
				return PullResult{Aborted: true}, errs.New(errs.KindState, "pull conflict on task %s: local and remote differ", remote.ID)
			} else if !same {
				return PullResult{Conflicts: []PullConflict{{TaskID: remote.ID, Diff: diffText}}, Aborted: true}, nil
			}
		}
	}

	var result PullResult
	for _, remote := range remoteTasks {
		local, hasLocal := dirtyByID[remote.ID]
		if !hasLocal || !isDirty[remote.ID] {
			if err := c.Remote.SetCachedTask(ctx, remote, false); err != nil {
				return result, err
			}
			result.Overwritten = append(result.Overwritten, remote)
			continue
		}

		diffText, same, derr := unifiedDiff(remote.ID, local, remote)
		if derr != nil {
			return result, derr
		}
		if same {
			if err := c.Remote.SetCachedTask(ctx, remote, false); err != nil {
				return result, err
			}
			result.Overwritten = append(result.Overwritten, remote)
			continue
		}

		switch strategy {
		case ConflictDiff:
			result.Conflicts = append(result.Conflicts, PullConflict{TaskID: remote.ID, Diff: diffText})
			result.Aborted = true
			return result, nil
		case ConflictFail:
			result.Aborted = true
			return result, errs.New(errs.KindState, "pull conflict on task %s: local and remote differ", remote.ID)
		case ConflictPreferRemote:
			if !confirm {
				return result, errs.New(errs.KindInput, "pull with prefer-remote requires explicit confirmation")
			}
			if err := c.Remote.SetCachedTask(ctx, remote, false); err != nil {
				return result, err
			}
			result.Overwritten = append(result.Overwritten, remote)
		case ConflictPreferLocal:
			if !confirm {
				return result, errs.New(errs.KindInput, "pull with prefer-local requires explicit confirmation")
			}
			if err := c.Remote.WriteTask(ctx, local); err != nil {
				return result, err
			}
			result.RePushed = append(result.RePushed, local)
		default:
			return result, errs.New(errs.KindConfiguration, "unknown conflict strategy %q", strategy)
		}
	}

	return result, nil
}

// unifiedDiff renders a line-oriented diff between the canonical JSON of
// a local and remote copy of one task, and reports whether they are in
// fact identical once normalized.
func unifiedDiff(taskID string, local, remote store.Task) (string, bool, error) {
	localJSON, err := json.MarshalIndent(local, "", "  ")
	if err != nil {
		return "", false, errs.Wrap(errs.KindState, err, "marshal local copy of task %s", taskID)
	}
	remoteJSON, err := json.MarshalIndent(remote, "", "  ")
	if err != nil {
		return "", false, errs.Wrap(errs.KindState, err, "marshal remote copy of task %s", taskID)
	}
	if string(localJSON) == string(remoteJSON) {
		return "", true, nil
	}

	diff := difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(remoteJSON)),
		B:        difflib.SplitLines(string(localJSON)),
		FromFile: fmt.Sprintf("remote/%s.json", taskID),
		ToFile:   fmt.Sprintf("local/%s.json", taskID),
		Context:  3,
	}
	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return "", false, errs.Wrap(errs.KindState, err, "render diff for task %s", taskID)
	}
	return text, false, nil
}
