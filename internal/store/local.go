package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/basilisk-labs/codex-swarm/internal/docs"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/frontmatter"
	"github.com/basilisk-labs/codex-swarm/internal/taskid"
)

// readmeFrontmatterKeys fixes the field order the README frontmatter is
// rendered in, mirroring Task field order for readable diffs.
var readmeFrontmatterKeys = []string{
	"id", "title", "status", "priority", "owner", "depends_on", "tags",
	"verify", "commit", "comments", "doc_version", "doc_updated_at",
	"doc_updated_by", "created_at",
}

// Local is the filesystem-backed Task Store backend (spec §4.3): one
// tasks.json snapshot plus a per-task README.md with frontmatter under
// tasksRoot. Atomic writes follow the teacher's
// internal/storage/file.go pattern (temp file, fsync, rename);
// dependency-state/checksum results are cached per checksum with
// hashicorp/golang-lru/v2 instead of a hand-rolled map.
type Local struct {
	TasksJSONPath string
	TasksRoot     string // directory holding <task-id>/README.md
	RequiredTags  []string

	mu        sync.Mutex
	depCache  *lru.Cache[string, depCacheEntry]
	tasksOnce []Task
	loaded    bool
}

type depCacheEntry struct {
	states map[string]TaskDepState
	cycles []Cycle
}

// NewLocal constructs a Local backend. requiredTags is the
// verify-required tag set from the workflow config.
func NewLocal(tasksJSONPath, tasksRoot string, requiredTags []string) *Local {
	cache, _ := lru.New[string, depCacheEntry](8)
	return &Local{
		TasksJSONPath: tasksJSONPath,
		TasksRoot:     tasksRoot,
		RequiredTags:  requiredTags,
		depCache:      cache,
	}
}

func (l *Local) Capabilities() map[Capability]bool {
	return map[Capability]bool{
		CapListTasks:            true,
		CapWriteTask:            true,
		CapWriteTasks:           true,
		CapExport:               true,
		CapGetTaskDoc:           true,
		CapSetTaskDoc:           true,
		CapTouchTaskDocMetadata: true,
		CapNormalize:            true,
		CapSync:                false,
	}
}

// ListTasks returns the full task set, memoized per process until a
// mutating call invalidates the cache (spec §4.3).
func (l *Local) ListTasks(ctx context.Context) ([]Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listLocked()
}

func (l *Local) listLocked() ([]Task, error) {
	if l.loaded {
		return l.tasksOnce, nil
	}
	doc, err := l.readDocument()
	if err != nil {
		return nil, err
	}
	l.tasksOnce = doc.Tasks
	l.loaded = true
	return l.tasksOnce, nil
}

func (l *Local) invalidateLocked() {
	l.loaded = false
	l.tasksOnce = nil
}

func (l *Local) readDocument() (Document, error) {
	data, err := os.ReadFile(l.TasksJSONPath)
	if os.IsNotExist(err) {
		return Document{}, nil
	}
	if err != nil {
		return Document{}, errs.Wrap(errs.KindState, err, "read %s", l.TasksJSONPath)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, errs.Wrap(errs.KindIntegrity, err, "parse %s", l.TasksJSONPath)
	}
	return doc, nil
}

// WriteTask upserts a single task and rewrites the snapshot and README.
func (l *Local) WriteTask(ctx context.Context, t Task) error {
	return l.WriteTasks(ctx, []Task{t})
}

// WriteTasks upserts tasks (matched by id) and rewrites the snapshot
// plus each task's README (spec §4.3 "WriteTask/WriteTasks").
func (l *Local) WriteTasks(ctx context.Context, tasks []Task) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, err := l.listLocked()
	if err != nil {
		return err
	}

	byID := make(map[string]int, len(current))
	for i, t := range current {
		byID[t.ID] = i
	}

	for _, t := range tasks {
		if err := t.Validate(l.RequiredTags); err != nil {
			return err
		}
		if idx, ok := byID[t.ID]; ok {
			current[idx] = t
		} else {
			byID[t.ID] = len(current)
			current = append(current, t)
		}
	}

	if err := l.writeSnapshotLocked(current); err != nil {
		return err
	}
	for _, t := range tasks {
		if err := l.writeReadmeLocked(t); err != nil {
			return err
		}
	}

	l.tasksOnce = current
	l.loaded = true
	l.depCache.Purge()
	return nil
}

func (l *Local) writeSnapshotLocked(tasks []Task) error {
	sorted := byIDAsc(tasks)
	meta, err := BuildMeta(sorted)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(Document{Tasks: sorted, Meta: meta}, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindState, err, "marshal tasks snapshot")
	}
	return atomicWrite(l.TasksJSONPath, append(data, '\n'))
}

// readmePath returns <tasksRoot>/<task-id>/README.md.
func (l *Local) readmePath(id string) string {
	return filepath.Join(l.TasksRoot, id, "README.md")
}

func (l *Local) writeReadmeLocked(t Task) error {
	path := l.readmePath(t.ID)
	existingBody := ""
	if data, err := os.ReadFile(path); err == nil {
		_, body, splitErr := frontmatter.Split(string(data))
		if splitErr == nil {
			existingBody = body
		}
	}

	fm := taskFrontmatter(t)
	body := docs.MergeDoc(existingBody, t.Doc)
	if !strings.Contains(body, docs.AutoSummaryHeading) {
		body = docs.ReplaceAutoSummary(body, nil)
	}

	var out strings.Builder
	out.WriteString(frontmatter.Delimiter)
	out.WriteString("\n")
	out.WriteString(frontmatter.Render(fm, readmeFrontmatterKeys))
	out.WriteString(frontmatter.Delimiter)
	out.WriteString("\n\n")
	out.WriteString(body)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errs.Wrap(errs.KindState, err, "create task doc dir for %s", t.ID)
	}
	return atomicWrite(path, []byte(out.String()))
}

func taskFrontmatter(t Task) map[string]frontmatter.Value {
	fm := map[string]frontmatter.Value{
		"id":             t.ID,
		"title":          t.Title,
		"status":         string(t.Status),
		"priority":       t.Priority,
		"owner":          t.Owner,
		"depends_on":     toValueSlice(t.DependsOn),
		"tags":           toValueSlice(t.Tags),
		"verify":         toValueSlice(t.Verify),
		"doc_version":    int64(t.DocVersion),
		"doc_updated_at": t.DocUpdatedAt,
		"doc_updated_by": t.DocUpdatedBy,
		"created_at":     t.CreatedAt,
	}
	if t.Commit != nil {
		fm["commit"] = map[string]frontmatter.Value{"hash": t.Commit.Hash, "message": t.Commit.Message}
	}
	if len(t.Comments) > 0 {
		items := make([]frontmatter.Value, 0, len(t.Comments))
		for _, c := range t.Comments {
			items = append(items, map[string]frontmatter.Value{"author": c.Author, "body": c.Body})
		}
		fm["comments"] = items
	}
	return fm
}

func toValueSlice(ss []string) []frontmatter.Value {
	out := make([]frontmatter.Value, 0, len(ss))
	for _, s := range ss {
		out = append(out, s)
	}
	return out
}

// GetTaskDoc returns the current "## Summary" body for a task.
func (l *Local) GetTaskDoc(ctx context.Context, id string) (string, error) {
	data, err := os.ReadFile(l.readmePath(id))
	if err != nil {
		return "", errs.Wrap(errs.KindState, err, "read doc for task %s", id)
	}
	_, body, err := frontmatter.Split(string(data))
	if err != nil {
		return "", errs.Wrap(errs.KindIntegrity, err, "parse doc for task %s", id)
	}
	return docs.Doc(body), nil
}

// SetTaskDoc updates the task's doc body; metadata is touched only if
// the normalized content actually changed (spec §4.3).
func (l *Local) SetTaskDoc(ctx context.Context, id, by, text string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tasks, err := l.listLocked()
	if err != nil {
		return err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return errs.Wrap(errs.KindInput, errs.ErrTaskNotFound, "task %s", id)
	}

	t := tasks[idx]
	normalized := strings.TrimSpace(text)
	if normalized == strings.TrimSpace(t.Doc) {
		return nil
	}
	t.Doc = normalized
	t.touchDocMetadata(by, time.Now())
	tasks[idx] = t

	if err := l.writeSnapshotLocked(tasks); err != nil {
		return err
	}
	if err := l.writeReadmeLocked(t); err != nil {
		return err
	}
	l.tasksOnce = tasks
	l.depCache.Purge()
	return nil
}

// ReadTaskDocBody returns the full README body (prefix + doc + auto
// summary) for a task, used by callers that must validate required
// sections beyond the doc field alone (spec §4.4 "shared between doc
// writes and PR checks").
func (l *Local) ReadTaskDocBody(ctx context.Context, id string) (string, error) {
	data, err := os.ReadFile(l.readmePath(id))
	if err != nil {
		return "", errs.Wrap(errs.KindState, err, "read doc for task %s", id)
	}
	_, body, err := frontmatter.Split(string(data))
	if err != nil {
		return "", errs.Wrap(errs.KindIntegrity, err, "parse doc for task %s", id)
	}
	return body, nil
}

// TouchTaskDocMetadata forces a metadata refresh without content changes.
func (l *Local) TouchTaskDocMetadata(ctx context.Context, id, by string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	tasks, err := l.listLocked()
	if err != nil {
		return err
	}
	idx := indexOf(tasks, id)
	if idx < 0 {
		return errs.Wrap(errs.KindInput, errs.ErrTaskNotFound, "task %s", id)
	}
	tasks[idx].touchDocMetadata(by, time.Now())
	if err := l.writeSnapshotLocked(tasks); err != nil {
		return err
	}
	if err := l.writeReadmeLocked(tasks[idx]); err != nil {
		return err
	}
	l.tasksOnce = tasks
	return nil
}

// NormalizeTasks re-reads and rewrites every record through the write
// path so schema drift is corrected (spec §4.3).
func (l *Local) NormalizeTasks(ctx context.Context) error {
	l.mu.Lock()
	tasks, err := l.listLocked()
	l.mu.Unlock()
	if err != nil {
		return err
	}
	return l.WriteTasks(ctx, tasks)
}

// ExportTasksJSON writes the canonical snapshot to an arbitrary path
// (spec §4.3 "ExportTasksJSON").
func (l *Local) ExportTasksJSON(ctx context.Context, path string) error {
	tasks, err := l.ListTasks(ctx)
	if err != nil {
		return err
	}
	sorted := byIDAsc(tasks)
	meta, err := BuildMeta(sorted)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(Document{Tasks: sorted, Meta: meta}, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindState, err, "marshal export")
	}
	return atomicWrite(path, append(data, '\n'))
}

// GenerateTaskID draws a unique id against the current task set (spec
// §4.3 "GenerateTaskId").
func (l *Local) GenerateTaskID(ctx context.Context, length, attempts int) (string, error) {
	tasks, err := l.ListTasks(ctx)
	if err != nil {
		return "", err
	}
	exists := make(map[string]bool, len(tasks))
	for _, t := range tasks {
		exists[t.ID] = true
	}
	return taskid.GenerateUnique(length, attempts, func(id string) bool { return exists[id] })
}

// DependencyState computes (and caches, keyed by checksum) the
// dependency state for the current task set.
func (l *Local) DependencyState(ctx context.Context) (map[string]TaskDepState, []Cycle, error) {
	tasks, err := l.ListTasks(ctx)
	if err != nil {
		return nil, nil, err
	}
	sum, err := Checksum(tasks)
	if err != nil {
		return nil, nil, err
	}
	if entry, ok := l.depCache.Get(sum); ok {
		return entry.states, entry.cycles, nil
	}
	states, cycles := DependencyState(tasks)
	l.depCache.Add(sum, depCacheEntry{states: states, cycles: cycles})
	return states, cycles, nil
}

// Lint runs the store's lint rules against the current snapshot on disk.
func (l *Local) Lint(ctx context.Context, knownAgents map[string]bool) (LintReport, error) {
	doc, err := l.readDocument()
	if err != nil {
		return LintReport{}, err
	}
	return Lint(doc, l.RequiredTags, knownAgents), nil
}

func indexOf(tasks []Task, id string) int {
	for i, t := range tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// atomicWrite writes data to path via a temp file in the same
// directory, fsync, then rename — the teacher's
// internal/storage/file.go atomicWrite pattern generalized to any path.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.KindState, err, "create dir %s", dir)
	}

	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return errs.Wrap(errs.KindState, err, "create temp file in %s", dir)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errs.Wrap(errs.KindState, err, "write %s", tmpPath)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errs.Wrap(errs.KindState, err, "sync %s", tmpPath)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.KindState, err, "close %s", tmpPath)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return errs.Wrap(errs.KindState, err, "rename %s to %s", tmpPath, path)
	}
	success = true
	return nil
}
