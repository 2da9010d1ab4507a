package main

import (
	"context"
	"fmt"
	"os"
	"os/user"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/branch"
	"github.com/basilisk-labs/codex-swarm/internal/config"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/store"
	"github.com/basilisk-labs/codex-swarm/internal/sync"
	"github.com/basilisk-labs/codex-swarm/internal/workflow"
)

var (
	dryRun  bool
	verbose bool
	output  string
	cfgFile string
	force   bool
)

var rootCmd = &cobra.Command{
	Use:   "agentctl",
	Short: "Task workflow engine CLI",
	Long: `agentctl drives a repo's shared task snapshot, branch/worktree
lifecycle, and commit policy for agent-driven development.

Core commands:
  task       create, update, and inspect tasks
  work       the branch+scaffold+PR-artifact "start work" bundle
  start/block/finish   the task status state machine
  verify     run a task's declared verify commands
  integrate  merge a finished task's branch in branch_pr mode
  guard/hooks  commit-policy enforcement and git hook management
  sync       push/pull against a remote tracker`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		reportError(err)
		os.Exit(exitCodeFor(err))
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "show what would happen without executing")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "table", "output format (json, yaml, table)")
	rootCmd.PersistentFlags().StringVar(&cfgFile, "repo", "", "repo root (default: discovered from cwd)")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "bypass readiness/write-context checks where the operation allows it")
}

func GetDryRun() bool   { return dryRun }
func GetVerbose() bool  { return verbose }
func GetOutput() string { return output }
func GetForce() bool    { return force }

func VerbosePrintf(format string, args ...interface{}) {
	if verbose {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

func GetCurrentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func reportError(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
}

func exitCodeFor(err error) int {
	var e *errs.Error
	if errs.As(err, &e) {
		return e.ExitCode()
	}
	return 1
}

// deps bundles the collaborators every subcommand needs, built once
// per invocation from the resolved repo root and workflow config.
type deps struct {
	Cfg     *config.Config
	Git     *gitx.Adapter
	Backend store.Backend
	Remote  *store.Remote // non-nil only when Backend is the Remote backend
	Branch  *branch.Lifecycle
	Engine  *workflow.Engine
	Sync    *sync.Controller // non-nil only when Backend advertises store.CapSync
}

// knownAgents is the fixed set of non-HUMAN/ORCHESTRATOR agent ids the
// engine accepts as comment/owner authors. The roster is fixed here and
// is not read from any config document; it matches the generic single-agent-class roster spec.md's examples use.
var knownAgents = map[string]bool{
	"CODER":      true,
	"REVIEWER":   true,
	"INTEGRATOR": true,
}

func loadDeps(ctx context.Context) (*deps, error) {
	repoRoot := cfgFile
	if repoRoot == "" {
		top, err := gitx.New(mustGetwd()).Toplevel(ctx)
		if err != nil {
			return nil, errs.Wrap(errs.KindGit, err, "resolve repo root (not inside a git checkout?)")
		}
		repoRoot = top
	}

	cfg, err := config.Load(ctx, repoRoot, nil)
	if err != nil {
		return nil, err
	}

	g := gitx.New(repoRoot)

	backend, remote, err := buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	mode := branch.ModeDirect
	if cfg.WorkflowMode == config.ModeBranchPR {
		mode = branch.ModeBranchPR
	}
	bl := branch.New(g, cfg.WorktreesRoot(), cfg.Branch.TaskPrefix, mode)

	engine := workflow.New(cfg, g, backend, bl, knownAgents)

	d := &deps{Cfg: cfg, Git: g, Backend: backend, Remote: remote, Branch: bl, Engine: engine}
	if remote != nil {
		d.Sync = sync.New(remote)
	}
	return d, nil
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal("resolve working directory", "err", err)
	}
	return wd
}

// remoteBackendConfig is the tasks_backend.config_path document shape:
// present only for repos configured against an HTTP task tracker.
type remoteBackendConfig struct {
	BaseURL   string `json:"base_url"`
	CachePath string `json:"cache_path"`
	EnvFile   string `json:"env_file"`
}

func buildBackend(cfg *config.Config) (store.Backend, *store.Remote, error) {
	if strings.TrimSpace(cfg.TasksBackend.ConfigPath) == "" {
		return store.NewLocal(cfg.TasksJSONPath(), cfg.AbsPath(cfg.Paths.AgentsDir), cfg.Tasks.VerifyRequiredTags), nil, nil
	}

	rc, err := readRemoteBackendConfig(cfg.AbsPath(cfg.TasksBackend.ConfigPath))
	if err != nil {
		return nil, nil, err
	}
	r := store.NewRemote(rc.BaseURL, cfg.AbsPath(rc.CachePath), cfg.AbsPath(rc.EnvFile), cfg.Tasks.VerifyRequiredTags)
	return r, r, nil
}
