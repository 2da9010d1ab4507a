package docs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

// PRStatus is the meta.json lifecycle state.
type PRStatus string

const (
	PROpen   PRStatus = "OPEN"
	PRMerged PRStatus = "MERGED"
	PRClosed PRStatus = "CLOSED"
)

// MergeStrategy mirrors gitx.MergeStrategy without importing gitx, since
// docs must stay below store/gitx in the dependency graph.
type MergeStrategy string

const (
	MergeSquash MergeStrategy = "squash"
	MergeMerge  MergeStrategy = "merge"
	MergeRebase MergeStrategy = "rebase"
)

// PRMeta is the PR Artifact meta.json document (spec §3).
type PRMeta struct {
	CorrelationID         string        `json:"correlation_id"`
	TaskID                string        `json:"task_id"`
	TaskTitle             string        `json:"task_title"`
	Branch                string        `json:"branch"`
	BaseBranch            string        `json:"base_branch"`
	Author                string        `json:"author"`
	CreatedAt             string        `json:"created_at"`
	UpdatedAt             string        `json:"updated_at"`
	HeadSHA               string        `json:"head_sha"`
	MergeStrategy         MergeStrategy `json:"merge_strategy"`
	Status                PRStatus      `json:"status"`
	MergedAt              string        `json:"merged_at,omitempty"`
	MergeCommit           string        `json:"merge_commit,omitempty"`
	ClosedAt              string        `json:"closed_at,omitempty"`
	CloseCommit           string        `json:"close_commit,omitempty"`
	LastVerifiedSHA       string        `json:"last_verified_sha,omitempty"`
	LastVerifiedAt        string        `json:"last_verified_at,omitempty"`
	HandoffAppliedDigest  string        `json:"handoff_applied_digest,omitempty"`
	HandoffAppliedAt      string        `json:"handoff_applied_at,omitempty"`
}

const (
	metaFile     = "meta.json"
	diffstatFile = "diffstat.txt"
	verifyFile   = "verify.log"
	reviewFile   = "review.md"
)

// Dir returns the PR artifact directory for a task under tasksRoot.
func Dir(tasksRoot, taskID string) string {
	return filepath.Join(tasksRoot, taskID, "pr")
}

// reviewTemplate is the review.md skeleton written by Open.
const reviewTemplate = `# Review

## Handoff Notes

- REVIEWER: (pending)
- INTEGRATOR: (pending)
`

// Open creates or refreshes the PR skeleton for a task: meta.json
// (preserving created_at if present), empty diffstat.txt, an initial
// verify.log header, and review.md with the Handoff Notes section
// (spec §4.4 "pr open").
func Open(dir string, meta PRMeta, now time.Time) (PRMeta, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return PRMeta{}, errs.Wrap(errs.KindState, err, "create PR artifact dir %s", dir)
	}

	existing, err := ReadMeta(dir)
	if err == nil {
		meta.CreatedAt = existing.CreatedAt
		meta.CorrelationID = existing.CorrelationID
	} else {
		meta.CreatedAt = now.UTC().Format(time.RFC3339)
		meta.CorrelationID = uuid.NewString()
	}
	meta.UpdatedAt = now.UTC().Format(time.RFC3339)
	if meta.Status == "" {
		meta.Status = PROpen
	}

	if err := WriteMeta(dir, meta); err != nil {
		return PRMeta{}, err
	}

	diffstatPath := filepath.Join(dir, diffstatFile)
	if _, err := os.Stat(diffstatPath); os.IsNotExist(err) {
		if err := os.WriteFile(diffstatPath, []byte{}, 0o644); err != nil {
			return PRMeta{}, errs.Wrap(errs.KindState, err, "write %s", diffstatFile)
		}
	}

	verifyPath := filepath.Join(dir, verifyFile)
	if _, err := os.Stat(verifyPath); os.IsNotExist(err) {
		header := fmt.Sprintf("# verify log for %s\n", meta.TaskID)
		if err := os.WriteFile(verifyPath, []byte(header), 0o644); err != nil {
			return PRMeta{}, errs.Wrap(errs.KindState, err, "write %s", verifyFile)
		}
	}

	reviewPath := filepath.Join(dir, reviewFile)
	if _, err := os.Stat(reviewPath); os.IsNotExist(err) {
		if err := os.WriteFile(reviewPath, []byte(reviewTemplate), 0o644); err != nil {
			return PRMeta{}, errs.Wrap(errs.KindState, err, "write %s", reviewFile)
		}
	}

	return meta, nil
}

// Update rewrites diffstat.txt (from a caller-produced `git diff
// --stat` string) and meta.json with updated_at set to now; other meta
// fields, such as head_sha, are written as the caller passes them. It
// does not touch the task README's auto summary.
func Update(dir string, meta PRMeta, diffstat string, now time.Time) (PRMeta, error) {
	meta.UpdatedAt = now.UTC().Format(time.RFC3339)
	if err := os.WriteFile(filepath.Join(dir, diffstatFile), []byte(diffstat), 0o644); err != nil {
		return PRMeta{}, errs.Wrap(errs.KindState, err, "write %s", diffstatFile)
	}
	if err := WriteMeta(dir, meta); err != nil {
		return PRMeta{}, err
	}
	return meta, nil
}

// ReadMeta loads meta.json from dir.
func ReadMeta(dir string) (PRMeta, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return PRMeta{}, err
	}
	var m PRMeta
	if err := json.Unmarshal(data, &m); err != nil {
		return PRMeta{}, errs.Wrap(errs.KindIntegrity, err, "parse %s", metaFile)
	}
	return m, nil
}

// WriteMeta persists meta.json with stable indentation.
func WriteMeta(dir string, meta PRMeta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errs.Wrap(errs.KindState, err, "marshal %s", metaFile)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), append(data, '\n'), 0o644); err != nil {
		return errs.Wrap(errs.KindState, err, "write %s", metaFile)
	}
	return nil
}

// AppendVerifyLine appends a timestamped line to verify.log.
func AppendVerifyLine(dir, line string) error {
	f, err := os.OpenFile(filepath.Join(dir, verifyFile), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errs.Wrap(errs.KindState, err, "open %s", verifyFile)
	}
	defer f.Close()
	if _, err := f.WriteString(line + "\n"); err != nil {
		return errs.Wrap(errs.KindState, err, "append %s", verifyFile)
	}
	return f.Sync()
}

// LastVerifiedSHA scans verify.log for the last "verified_sha=<sha>" line.
func LastVerifiedSHA(dir string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(dir, verifyFile))
	if err != nil {
		return "", false
	}
	var last string
	for _, line := range strings.Split(string(data), "\n") {
		if idx := strings.Index(line, "verified_sha="); idx >= 0 {
			last = strings.TrimSpace(line[idx+len("verified_sha="):])
		}
	}
	return last, last != ""
}

// Exists reports whether a PR artifact directory has been created.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, metaFile))
	return err == nil
}

// ArtifactsPresent reports whether all four tracked files (meta.json,
// diffstat.txt, verify.log, review.md) exist.
func ArtifactsPresent(dir string) bool {
	for _, name := range []string{metaFile, diffstatFile, verifyFile, reviewFile} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			return false
		}
	}
	return true
}

// ReviewPath, DiffstatPath, VerifyLogPath are the artifact file paths.
func ReviewPath(dir string) string   { return filepath.Join(dir, reviewFile) }
func DiffstatPath(dir string) string { return filepath.Join(dir, diffstatFile) }
func VerifyLogPath(dir string) string { return filepath.Join(dir, verifyFile) }
