package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

// HookMarker is embedded in every managed hook script so Install can
// detect (and refuse to overwrite) a hook it doesn't own (spec §4.6).
const HookMarker = "# managed-by: agentctl (do not edit below this line)"

// ManagedHooks are the hook names this package installs.
var ManagedHooks = []string{"pre-commit", "commit-msg"}

const hookShebang = "#!/bin/sh\n"

func hookBody(name string) string {
	switch name {
	case "pre-commit":
		return fmt.Sprintf(`%s%s
exec agentctl guard commit --hook-stage=pre-commit "$@"
`, hookShebang, HookMarker)
	case "commit-msg":
		return fmt.Sprintf(`%s%s
exec agentctl guard commit --hook-stage=commit-msg "$1"
`, hookShebang, HookMarker)
	default:
		return hookShebang + HookMarker + "\n"
	}
}

// Install writes the managed hook scripts into hooksDir, refusing to
// overwrite any existing hook that lacks HookMarker (spec §4.6
// "idempotent ... refuses to overwrite non-managed hooks").
func Install(hooksDir string) error {
	if err := os.MkdirAll(hooksDir, 0o755); err != nil {
		return errs.Wrap(errs.KindHook, err, "create hooks dir %s", hooksDir)
	}
	for _, name := range ManagedHooks {
		path := filepath.Join(hooksDir, name)
		if existing, err := os.ReadFile(path); err == nil {
			if !strings.Contains(string(existing), HookMarker) {
				return errs.Wrap(errs.KindHook, errs.ErrHookNotManaged, "hook %s is not managed by agentctl", name)
			}
		} else if !os.IsNotExist(err) {
			return errs.Wrap(errs.KindHook, err, "stat hook %s", name)
		}
		if err := os.WriteFile(path, []byte(hookBody(name)), 0o755); err != nil {
			return errs.Wrap(errs.KindHook, err, "write hook %s", name)
		}
	}
	return nil
}

// Uninstall removes managed hooks, leaving non-managed ones untouched.
func Uninstall(hooksDir string) error {
	for _, name := range ManagedHooks {
		path := filepath.Join(hooksDir, name)
		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return errs.Wrap(errs.KindHook, err, "stat hook %s", name)
		}
		if !strings.Contains(string(data), HookMarker) {
			continue
		}
		if err := os.Remove(path); err != nil {
			return errs.Wrap(errs.KindHook, err, "remove hook %s", name)
		}
	}
	return nil
}

// HookEnv is the env protocol hooks read (spec §4.6): TASK_ID,
// ALLOW_TASKS, ALLOW_BASE.
type HookEnv struct {
	TaskID     string
	AllowTasks bool
	AllowBase  bool
}

// ReadHookEnv reads the hook env protocol from the process environment.
// Accepts both the CODEX_SWARM_-prefixed names agentctl sets on
// subprocesses it spawns and the bare names a hand-invoked git hook
// relies on, prefixed taking precedence when both are set.
func ReadHookEnv() HookEnv {
	return HookEnv{
		TaskID:     firstNonEmpty(os.Getenv("CODEX_SWARM_TASK_ID"), os.Getenv("TASK_ID")),
		AllowTasks: firstNonEmpty(os.Getenv("CODEX_SWARM_ALLOW_TASKS"), os.Getenv("ALLOW_TASKS")) == "1",
		AllowBase:  firstNonEmpty(os.Getenv("CODEX_SWARM_ALLOW_BASE"), os.Getenv("ALLOW_BASE")) == "1",
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// PreCommitCheck enforces the pre-commit rules (spec §4.6): in
// branch_pr mode, reject tasks-snapshot commits from a worktree or
// outside the base branch, reject code commits on the base branch
// unless allowed, and reject commits on non-task branches.
func PreCommitCheck(env HookEnv, branchPRMode bool, onBaseBranch, inTaskWorktree, onTaskBranch bool, stagesTasksSnapshot bool) error {
	if !branchPRMode {
		return nil
	}
	if stagesTasksSnapshot {
		if inTaskWorktree || !onBaseBranch {
			return errs.New(errs.KindHook, "refusing to commit the tasks snapshot from a worktree or non-base branch")
		}
		if !env.AllowTasks {
			return errs.New(errs.KindHook, "refusing to commit the tasks snapshot without ALLOW_TASKS=1")
		}
		return nil
	}
	if onBaseBranch && !env.AllowBase {
		return errs.New(errs.KindHook, "refusing a code commit on the base branch without ALLOW_BASE=1")
	}
	if !onBaseBranch && !onTaskBranch {
		return errs.New(errs.KindHook, "refusing a commit on a non-task branch in branch_pr mode")
	}
	return nil
}

// CommitMsgCheck enforces the commit-msg rule (spec §4.6): the first
// non-comment line must mention env.TaskID's suffix if set, otherwise
// any of knownSuffixes.
func CommitMsgCheck(env HookEnv, firstLine string, taskSuffix func(id string) string, knownSuffixes []string) error {
	lower := strings.ToLower(firstLine)
	if env.TaskID != "" {
		suffix := strings.ToLower(taskSuffix(env.TaskID))
		if !strings.Contains(lower, suffix) {
			return errs.New(errs.KindHook, "commit message must mention the active task suffix %q", suffix)
		}
		return nil
	}
	for _, suffix := range knownSuffixes {
		if strings.Contains(lower, strings.ToLower(suffix)) {
			return nil
		}
	}
	return errs.New(errs.KindHook, "commit message must mention a known task suffix")
}
