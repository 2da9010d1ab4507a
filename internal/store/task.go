// Package store implements the Task Store (spec §4.3): the Task type,
// its validation invariants, dependency-state computation, lint rules,
// and the Local/Remote backends that persist tasks. Atomic writes follow
// the teacher's internal/storage/file.go pattern (temp file in the same
// directory, fsync, rename); checksum-keyed caching uses
// hashicorp/golang-lru/v2 instead of a hand-rolled map+mutex cache.
package store

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/taskid"
)

// Status is a task's lifecycle state (spec §3).
type Status string

const (
	StatusTODO    Status = "TODO"
	StatusDOING   Status = "DOING"
	StatusBlocked Status = "BLOCKED"
	StatusDone    Status = "DONE"
)

func (s Status) Valid() bool {
	switch s {
	case StatusTODO, StatusDOING, StatusBlocked, StatusDone:
		return true
	}
	return false
}

// Commit is the {hash, message} pair a DONE task must carry.
type Commit struct {
	Hash    string `json:"hash"`
	Message string `json:"message"`
}

var commitHashPattern = regexp.MustCompile(`^[0-9a-f]{7,}$`)

// Valid reports whether c has a well-formed hash and a non-empty message.
func (c *Commit) Valid() bool {
	return c != nil && commitHashPattern.MatchString(c.Hash) && strings.TrimSpace(c.Message) != ""
}

// Comment is one {author, body} task comment.
type Comment struct {
	Author string `json:"author"`
	Body   string `json:"body"`
}

// Task is the spec §3 Task entity.
type Task struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Status        Status    `json:"status"`
	Priority      string    `json:"priority,omitempty"`
	Owner         string    `json:"owner,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	DependsOn     []string  `json:"depends_on,omitempty"`
	Verify        []string  `json:"verify,omitempty"`
	Comments      []Comment `json:"comments,omitempty"`
	Commit        *Commit   `json:"commit,omitempty"`
	Doc           string    `json:"doc,omitempty"`
	DocVersion    int       `json:"doc_version,omitempty"`
	DocUpdatedAt  string    `json:"doc_updated_at,omitempty"`
	DocUpdatedBy  string    `json:"doc_updated_by,omitempty"`
	CreatedAt     string    `json:"created_at,omitempty"`
}

// specialOwners are non-task-specific owner sentinels (spec §4.3 lint
// "owner against known agent ids, with special-case HUMAN/ORCHESTRATOR").
// Actual agent ids are supplied by the caller at lint time since they are
// deployment-specific; these two are always accepted.
var specialOwners = map[string]bool{"HUMAN": true, "ORCHESTRATOR": true}

// Validate checks the invariants in spec §3 that apply to a single task
// in isolation (cross-task invariants — uniqueness, acyclicity,
// dependency completeness — are checked by DependencyState and Lint).
func (t *Task) Validate(requiredTags []string) error {
	if !taskid.Valid(t.ID) {
		return errs.New(errs.KindInput, "task id %q does not match the required grammar", t.ID)
	}
	if strings.TrimSpace(t.Title) == "" {
		return errs.New(errs.KindInput, "task %s: title must not be empty", t.ID)
	}
	if !t.Status.Valid() {
		return errs.New(errs.KindInput, "task %s: invalid status %q", t.ID, t.Status)
	}
	if err := checkUniqueNonEmpty(t.ID, "tags", t.Tags); err != nil {
		return err
	}
	if err := checkUniqueNonEmpty(t.ID, "depends_on", t.DependsOn); err != nil {
		return err
	}
	for _, dep := range t.DependsOn {
		if dep == t.ID {
			return errs.New(errs.KindInput, "task %s: depends_on must not contain itself", t.ID)
		}
	}
	if err := checkUniqueNonEmpty(t.ID, "verify", t.Verify); err != nil {
		return err
	}
	if requiresVerify(t.Tags, requiredTags) && len(t.Verify) == 0 {
		return errs.New(errs.KindInput, "task %s: tags %v require a non-empty verify list", t.ID, t.Tags)
	}
	if t.Status == StatusDone && !t.Commit.Valid() {
		return errs.New(errs.KindInput, "task %s: status DONE requires a valid commit {hash,message}", t.ID)
	}
	if t.DocVersion < 0 {
		return errs.New(errs.KindInput, "task %s: doc_version must be >= 0", t.ID)
	}
	return nil
}

func requiresVerify(tags, required []string) bool {
	set := map[string]bool{}
	for _, r := range required {
		set[r] = true
	}
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}

func checkUniqueNonEmpty(taskID, field string, items []string) error {
	seen := map[string]bool{}
	for _, item := range items {
		if strings.TrimSpace(item) == "" {
			return errs.New(errs.KindInput, "task %s: %s entries must not be empty", taskID, field)
		}
		if seen[item] {
			return errs.New(errs.KindInput, "task %s: %s contains duplicate %q", taskID, field, item)
		}
		seen[item] = true
	}
	return nil
}

// touchDocMetadata recomputes doc_version/doc_updated_at/doc_updated_by
// (spec §3 "doc metadata is recomputed whenever the doc section
// changes"). stamp is supplied by the caller; the Local and Remote
// backends pass time.Now().
func (t *Task) touchDocMetadata(by string, stamp time.Time) {
	t.DocVersion++
	t.DocUpdatedAt = stamp.UTC().Format(time.RFC3339)
	t.DocUpdatedBy = by
}

// CanonicalJSON renders tasks sorted by id with sorted map keys and
// compact separators, the exact input to the meta.checksum computation
// (spec §3).
func CanonicalJSON(tasks []Task) ([]byte, error) {
	sorted := make([]Task, len(tasks))
	copy(sorted, tasks)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	return canonicalMarshal(sorted)
}

func byIDAsc(tasks []Task) []Task {
	out := make([]Task, len(tasks))
	copy(out, tasks)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
