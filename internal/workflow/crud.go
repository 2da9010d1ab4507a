package workflow

import (
	"context"
	"sort"
	"strings"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/store"
)

// linter is implemented by backends that can lint their own on-disk
// state (Local, via its cached checksum check); Remote falls back to
// the in-memory-only store.Lint below, which can't detect drift
// against a stored checksum it never wrote.
type linter interface {
	Lint(ctx context.Context, knownAgents map[string]bool) (store.LintReport, error)
}

// NewTaskOptions configures New.
type NewTaskOptions struct {
	IDSuffixLength int
	Description    string
	Priority       string
	Owner          string
	Tags           []string
	DependsOn      []string
	Verify         []string
}

// New implements spec §4.5 "task new": generates a fresh task id,
// validates the record, and writes it. Does not require the
// tasks-write-context guard to be bypassable — task creation is always
// subject to the single-writer rule.
func (e *Engine) New(ctx context.Context, title string, opts NewTaskOptions) (store.Task, error) {
	if err := e.requireTasksWriteContext(ctx, false); err != nil {
		return store.Task{}, err
	}

	length := opts.IDSuffixLength
	if length == 0 {
		length = e.Cfg.Tasks.IDSuffixLengthDefault
	}
	id, err := e.Backend.GenerateTaskID(ctx, length, 20)
	if err != nil {
		return store.Task{}, err
	}

	t := store.Task{
		ID:          id,
		Title:       title,
		Description: opts.Description,
		Status:      store.StatusTODO,
		Priority:    opts.Priority,
		Owner:       opts.Owner,
		Tags:        opts.Tags,
		DependsOn:   opts.DependsOn,
		Verify:      opts.Verify,
	}
	if err := t.Validate(e.Cfg.Tasks.VerifyRequiredTags); err != nil {
		return store.Task{}, err
	}
	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// Add writes a caller-constructed task record as-is (spec §4.5 "task
// add": input validation, no id generation), rejecting a duplicate id.
func (e *Engine) Add(ctx context.Context, t store.Task) (store.Task, error) {
	if err := e.requireTasksWriteContext(ctx, false); err != nil {
		return store.Task{}, err
	}
	if err := t.Validate(e.Cfg.Tasks.VerifyRequiredTags); err != nil {
		return store.Task{}, err
	}

	tasks, err := e.Backend.ListTasks(ctx)
	if err != nil {
		return store.Task{}, err
	}
	if indexOf(tasks, t.ID) >= 0 {
		return store.Task{}, errs.Wrap(errs.KindInput, errs.ErrDuplicateTaskID, "task %s already exists", t.ID)
	}

	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// UpdateFields carries the optional field changes Update applies;
// nil pointer fields are left untouched, and Tags/DependsOn/Verify
// replace the existing slice whenever their *Set flag is true (an empty
// slice then clears the field).
type UpdateFields struct {
	Title       *string
	Description *string
	Priority    *string
	Owner       *string
	Tags        []string
	TagsSet     bool
	DependsOn   []string
	DependsOnSet bool
	Verify      []string
	VerifySet   bool
}

// Update implements spec §4.5 "task update": applies the given field
// changes, re-validates, and writes.
func (e *Engine) Update(ctx context.Context, taskID string, fields UpdateFields) (store.Task, error) {
	if err := e.requireTasksWriteContext(ctx, false); err != nil {
		return store.Task{}, err
	}

	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	t := tasks[idx]

	if fields.Title != nil {
		t.Title = *fields.Title
	}
	if fields.Description != nil {
		t.Description = *fields.Description
	}
	if fields.Priority != nil {
		t.Priority = *fields.Priority
	}
	if fields.Owner != nil {
		t.Owner = *fields.Owner
	}
	if fields.TagsSet {
		t.Tags = fields.Tags
	}
	if fields.DependsOnSet {
		t.DependsOn = fields.DependsOn
	}
	if fields.VerifySet {
		t.Verify = fields.Verify
	}

	if err := t.Validate(e.Cfg.Tasks.VerifyRequiredTags); err != nil {
		return store.Task{}, err
	}
	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// Scaffold implements spec §4.5/§4.7 "task scaffold": (re-)writes the
// task's on-disk doc from its current record. Idempotent — an unchanged
// record produces byte-identical output, so scaffolding an existing doc
// without further changes is a no-op (spec §6 "Idempotence"). Doc
// metadata is touched only when the task had no README before the call.
func (e *Engine) Scaffold(ctx context.Context, taskID string) (store.Task, error) {
	if err := e.requireTasksWriteContext(ctx, false); err != nil {
		return store.Task{}, err
	}
	t, err := e.loadOne(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	_, hadDoc := e.docBody(ctx, t.ID)
	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return store.Task{}, err
	}
	if !hadDoc && e.Backend.Capabilities()[store.CapTouchTaskDocMetadata] {
		_ = e.Backend.TouchTaskDocMetadata(ctx, t.ID, "agentctl")
	}
	return t, nil
}

// Scrub implements spec §4.5 "task scrub": strips a task's comments and
// doc body back to empty, leaving schema fields intact (used to redact
// a task record without deleting it).
func (e *Engine) Scrub(ctx context.Context, taskID string) (store.Task, error) {
	if err := e.requireTasksWriteContext(ctx, false); err != nil {
		return store.Task{}, err
	}

	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	t := tasks[idx]
	t.Comments = nil

	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return store.Task{}, err
	}
	if err := e.Backend.SetTaskDoc(ctx, taskID, "SYSTEM", ""); err != nil {
		return store.Task{}, err
	}
	return e.loadOne(ctx, taskID)
}

// Comment appends a free-form comment, bypassing the structured-comment
// rules that gate start/block/finish (spec §4.5 "task comment").
func (e *Engine) Comment(ctx context.Context, taskID, author, body string) (store.Task, error) {
	if err := e.requireTasksWriteContext(ctx, false); err != nil {
		return store.Task{}, err
	}

	tasks, idx, err := e.loadTask(ctx, taskID)
	if err != nil {
		return store.Task{}, err
	}
	t := tasks[idx]
	t.Comments = append(t.Comments, store.Comment{Author: author, Body: body})

	if err := e.Backend.WriteTask(ctx, t); err != nil {
		return store.Task{}, err
	}
	return t, nil
}

// Lint runs the store's lint rules against the current task set,
// preferring the backend's own (checksum-aware) Lint method when
// available.
func (e *Engine) Lint(ctx context.Context) (store.LintReport, error) {
	if l, ok := e.Backend.(linter); ok {
		return l.Lint(ctx, e.KnownAgents)
	}
	tasks, err := e.Backend.ListTasks(ctx)
	if err != nil {
		return store.LintReport{}, err
	}
	meta, err := store.BuildMeta(tasks)
	if err != nil {
		return store.LintReport{}, err
	}
	return store.Lint(store.Document{Tasks: tasks, Meta: meta}, e.Cfg.Tasks.VerifyRequiredTags, e.KnownAgents), nil
}

// List implements spec §4.5 "task list", with optional status/tag
// filters applied in-memory.
func (e *Engine) List(ctx context.Context, status store.Status, tag string) ([]store.Task, error) {
	tasks, err := e.Backend.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	var out []store.Task
	for _, t := range tasks {
		if status != "" && t.Status != status {
			continue
		}
		if tag != "" && !containsString(t.Tags, tag) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Next implements spec §4.5 "task next": the first ready TODO task in
// id order, or a zero Task and false if none is ready.
func (e *Engine) Next(ctx context.Context) (store.Task, bool, error) {
	tasks, err := e.Backend.ListTasks(ctx)
	if err != nil {
		return store.Task{}, false, err
	}
	sorted := make([]store.Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	for _, t := range sorted {
		if t.Status != store.StatusTODO {
			continue
		}
		if _, ready := readiness(tasks, t.ID); ready {
			return t, true, nil
		}
	}
	return store.Task{}, false, nil
}

// Show implements spec §4.5 "task show".
func (e *Engine) Show(ctx context.Context, taskID string) (store.Task, error) {
	return e.loadOne(ctx, taskID)
}

// Search implements spec §4.5 "task search": a case-insensitive
// substring match over id, title, description, and tags.
func (e *Engine) Search(ctx context.Context, query string) ([]store.Task, error) {
	tasks, err := e.Backend.ListTasks(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []store.Task
	for _, t := range tasks {
		if strings.Contains(strings.ToLower(t.ID), q) ||
			strings.Contains(strings.ToLower(t.Title), q) ||
			strings.Contains(strings.ToLower(t.Description), q) {
			out = append(out, t)
			continue
		}
		for _, tag := range t.Tags {
			if strings.Contains(strings.ToLower(tag), q) {
				out = append(out, t)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Normalize implements spec §4.5 "task normalize": re-reads and
// rewrites every record through the write path so schema drift is
// corrected.
func (e *Engine) Normalize(ctx context.Context) error {
	if err := e.requireTasksWriteContext(ctx, false); err != nil {
		return err
	}
	return e.Backend.NormalizeTasks(ctx)
}

// Migrate is an alias for Normalize today (spec §4.5 "task migrate");
// kept as a distinct operation name so a future schema_version bump can
// diverge from plain normalization without an API break.
func (e *Engine) Migrate(ctx context.Context) error {
	return e.Normalize(ctx)
}

// Export implements spec §4.5 "task export": produces the canonical
// snapshot at path.
func (e *Engine) Export(ctx context.Context, path string) error {
	return e.Backend.ExportTasksJSON(ctx, path)
}

func (e *Engine) loadOne(ctx context.Context, id string) (store.Task, error) {
	tasks, idx, err := e.loadTask(ctx, id)
	if err != nil {
		return store.Task{}, err
	}
	return tasks[idx], nil
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
