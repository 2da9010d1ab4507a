// Package config loads and validates the workflow config document (spec
// §3 "Workflow Config", §4.1 Config Loader): a fixed repo-relative JSON
// file declaring paths, task policy knobs, and the branch/commit
// conventions every other subsystem consults. Layering is defaults <
// project file < env < flags (there is no home-directory layer), merged with
// dario.cat/mergo and validated with go-playground/validator/v10 instead
// of hand-rolled field-by-field merge/check code.
package config

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dario.cat/mergo"
	"github.com/go-playground/validator/v10"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
)

// RelPath is the fixed repo-relative location of the workflow config.
const RelPath = ".agentctl/workflow.json"

// PinnedBaseBranchKey is the git config key the loader pins the
// resolved base branch into on first invocation (spec §4.1).
const PinnedBaseBranchKey = "codexswarm.baseBranch"

// WorkflowMode is workflow_mode: direct or branch_pr.
type WorkflowMode string

const (
	ModeDirect   WorkflowMode = "direct"
	ModeBranchPR WorkflowMode = "branch_pr"
)

// CommentPolicy is status_commit_policy.
type CommentPolicy string

const (
	PolicyAllow   CommentPolicy = "allow"
	PolicyWarn    CommentPolicy = "warn"
	PolicyConfirm CommentPolicy = "confirm"
)

// Paths is the paths{} section. Every field is validated to resolve
// inside the repo root; no field may be absolute or escape via "..".
type Paths struct {
	TasksPath       string `json:"tasks_path" validate:"required"`
	AgentsDir       string `json:"agents_dir" validate:"required"`
	AgentctlDocsDir string `json:"agentctl_docs_path" validate:"required"`
	WorkflowDir     string `json:"workflow_dir" validate:"required"`
	WorktreesDir    string `json:"worktrees_dir" validate:"required"`
}

// CommentRule is one entry of tasks.comments.{start,blocked,verified}.
type CommentRule struct {
	Prefix   string `json:"prefix"`
	MinChars int    `json:"min_chars"`
}

// DocPolicy is tasks.doc.
type DocPolicy struct {
	Sections         []string `json:"sections"`
	RequiredSections []string `json:"required_sections"`
}

// TasksPolicy is the tasks{} section.
type TasksPolicy struct {
	IDSuffixLengthDefault int                    `json:"id_suffix_length_default" validate:"min=4,max=12"`
	VerifyRequiredTags    []string               `json:"verify_required_tags"`
	Doc                   DocPolicy              `json:"doc"`
	Comments              map[string]CommentRule `json:"comments"`
}

// Branch is the branch{} section.
type Branch struct {
	TaskPrefix string `json:"task_prefix" validate:"required"`
}

// Commit is the commit{} section.
type Commit struct {
	GenericTokens []string `json:"generic_tokens"`
}

// TasksBackend is the tasks_backend{} section.
type TasksBackend struct {
	ConfigPath string `json:"config_path"`
}

// Config is the fully resolved Workflow Config document (spec §3).
type Config struct {
	SchemaVersion         int           `json:"schema_version" validate:"eq=1"`
	WorkflowMode          WorkflowMode  `json:"workflow_mode" validate:"required,oneof=direct branch_pr"`
	Paths                 Paths         `json:"paths" validate:"required"`
	Tasks                 TasksPolicy   `json:"tasks"`
	Branch                Branch        `json:"branch" validate:"required"`
	Commit                Commit        `json:"commit"`
	StatusCommitPolicy    CommentPolicy `json:"status_commit_policy" validate:"omitempty,oneof=allow warn confirm"`
	FinishAutoStatusCommit bool         `json:"finish_auto_status_commit"`
	BaseBranch            string        `json:"base_branch,omitempty"`
	TasksBackend          TasksBackend  `json:"tasks_backend"`

	// repoRoot, set by Load, backs the typed accessors below; it is not
	// part of the JSON document.
	repoRoot string
}

// Default returns the built-in defaults merged beneath any file the
// loader finds, the same role the teacher's Default() plays for
// AgentOps config.
func Default() *Config {
	return &Config{
		SchemaVersion: 1,
		WorkflowMode:  ModeBranchPR,
		Paths: Paths{
			TasksPath:       "tasks/tasks.json",
			AgentsDir:       "tasks",
			AgentctlDocsDir: ".agentctl/docs",
			WorkflowDir:     ".agentctl",
			WorktreesDir:    ".worktrees",
		},
		Tasks: TasksPolicy{
			IDSuffixLengthDefault: 6,
			VerifyRequiredTags:    []string{"code", "backend", "frontend"},
			Doc: DocPolicy{
				Sections:         []string{"Summary", "Scope", "Risks", "Verify Steps", "Rollback Plan"},
				RequiredSections: []string{"Summary", "Scope", "Risks", "Verify Steps", "Rollback Plan"},
			},
			Comments: map[string]CommentRule{
				"start":    {Prefix: "Starting:", MinChars: 8},
				"blocked":  {Prefix: "Blocked:", MinChars: 8},
				"verified": {Prefix: "Verified:", MinChars: 8},
			},
		},
		Branch: Branch{TaskPrefix: "task"},
		Commit: Commit{GenericTokens: []string{"fix", "update", "wip", "changes", "stuff"}},
		StatusCommitPolicy:     PolicyWarn,
		FinishAutoStatusCommit: true,
	}
}

var validate = validator.New()

// Load resolves the workflow config for the repo at repoRoot, layering
// (lowest to highest priority): built-in defaults, the repo-relative
// RelPath document, environment variables, and flagOverrides. Mirrors
// the teacher's home/project/env/flag precedence chain in
// internal/config/config.go, replacing the YAML project file with the
// JSON workflow document this spec requires and the hand-rolled merge
// with mergo.Merge(..., mergo.WithOverride).
func Load(ctx context.Context, repoRoot string, flagOverrides *Config) (*Config, error) {
	cfg := Default()
	cfg.repoRoot = repoRoot

	docPath := filepath.Join(repoRoot, RelPath)
	if data, err := os.ReadFile(docPath); err == nil {
		var fromFile Config
		if err := json.Unmarshal(data, &fromFile); err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, err, "parse %s", RelPath)
		}
		if fromFile.SchemaVersion != 0 && fromFile.SchemaVersion != 1 {
			return nil, errs.New(errs.KindConfiguration, "%s: schema_version %d is not supported (want 1)", RelPath, fromFile.SchemaVersion)
		}
		if err := mergo.Merge(cfg, &fromFile, mergo.WithOverride); err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, err, "merge %s", RelPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errs.Wrap(errs.KindConfiguration, err, "read %s", RelPath)
	}

	applyEnv(cfg)

	if flagOverrides != nil {
		if err := mergo.Merge(cfg, flagOverrides, mergo.WithOverride); err != nil {
			return nil, errs.Wrap(errs.KindConfiguration, err, "merge flag overrides")
		}
	}

	if err := cfg.validatePaths(); err != nil {
		return nil, err
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, errs.Wrap(errs.KindConfiguration, err, "validate %s", RelPath)
	}

	if err := cfg.resolveBaseBranch(ctx, repoRoot); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv applies AGENTCTL_* environment overrides, mirroring the
// teacher's AGENTOPS_* variables.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AGENTCTL_WORKFLOW_MODE")); v != "" {
		cfg.WorkflowMode = WorkflowMode(v)
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCTL_BASE_BRANCH")); v != "" {
		cfg.BaseBranch = v
	}
	if v := strings.TrimSpace(os.Getenv("AGENTCTL_TASKS_PATH")); v != "" {
		cfg.Paths.TasksPath = v
	}
}

// validatePaths rejects any configured path that is absolute or escapes
// the repository root once joined and cleaned (spec §3 "All paths must
// resolve inside the repo root").
func (c *Config) validatePaths() error {
	fields := map[string]string{
		"paths.tasks_path":         c.Paths.TasksPath,
		"paths.agents_dir":         c.Paths.AgentsDir,
		"paths.agentctl_docs_path": c.Paths.AgentctlDocsDir,
		"paths.workflow_dir":       c.Paths.WorkflowDir,
		"paths.worktrees_dir":      c.Paths.WorktreesDir,
	}
	for name, p := range fields {
		if err := c.checkRelPath(name, p); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) checkRelPath(name, rel string) error {
	if rel == "" {
		return errs.New(errs.KindConfiguration, "%s must not be empty", name)
	}
	if filepath.IsAbs(rel) {
		return errs.Wrap(errs.KindConfiguration, errs.ErrPathEscape, "%s %q is absolute", name, rel)
	}
	joined := filepath.Join(c.repoRoot, rel)
	cleanedRoot := filepath.Clean(c.repoRoot)
	if joined != cleanedRoot && !strings.HasPrefix(joined, cleanedRoot+string(filepath.Separator)) {
		return errs.Wrap(errs.KindConfiguration, errs.ErrPathEscape, "%s %q escapes repo root", name, rel)
	}
	return nil
}

// resolveBaseBranch implements spec §4.1's priority chain: explicit
// config value, then the pinned codexswarm.baseBranch git config key,
// then "main". On first invocation, if neither is set and the current
// checkout is not itself a task branch, the resolved branch is pinned.
func (c *Config) resolveBaseBranch(ctx context.Context, repoRoot string) error {
	if c.BaseBranch != "" {
		return nil
	}

	g := gitx.New(repoRoot)
	if pinned, ok := g.ConfigGet(ctx, PinnedBaseBranchKey); ok && pinned != "" {
		c.BaseBranch = pinned
		return nil
	}

	c.BaseBranch = "main"

	current, err := g.CurrentBranch(ctx)
	if err != nil {
		// Best-effort: a missing/detached HEAD shouldn't block config
		// resolution, only branch-mutating operations later.
		return nil
	}
	if current == "" {
		return nil
	}

	taskBranchPattern := regexp.MustCompile(`^` + regexp.QuoteMeta(c.Branch.TaskPrefix) + `/`)
	if taskBranchPattern.MatchString(current) {
		return nil
	}

	c.BaseBranch = current
	_ = g.ConfigSet(ctx, PinnedBaseBranchKey, current)
	return nil
}

// RepoRoot returns the repository root Load resolved paths against.
func (c *Config) RepoRoot() string { return c.repoRoot }

// AbsPath joins a repo-relative configured path against RepoRoot.
func (c *Config) AbsPath(rel string) string {
	return filepath.Join(c.repoRoot, rel)
}

// TasksJSONPath is the absolute path to the tasks store document.
func (c *Config) TasksJSONPath() string { return c.AbsPath(c.Paths.TasksPath) }

// TaskDocDir is the absolute path to a task's document directory.
func (c *Config) TaskDocDir(taskID string) string {
	return filepath.Join(c.AbsPath(c.Paths.AgentsDir), taskID)
}

// WorktreesRoot is the absolute path to the configured worktrees directory.
func (c *Config) WorktreesRoot() string { return c.AbsPath(c.Paths.WorktreesDir) }

// IsVerifyRequired reports whether any of tags intersects the
// configured verify-required tag set (spec §3 invariant).
func (c *Config) IsVerifyRequired(tags []string) bool {
	required := map[string]bool{}
	for _, t := range c.Tasks.VerifyRequiredTags {
		required[t] = true
	}
	for _, t := range tags {
		if required[t] {
			return true
		}
	}
	return false
}
