package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/policy"
	"github.com/basilisk-labs/codex-swarm/internal/taskid"
)

var guardCmd = &cobra.Command{
	Use:   "guard",
	Short: "commit-policy guard checks, also invoked by managed git hooks",
}

var guardCleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "fail unless the index is clean",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		empty, err := d.Git.IndexEmpty(cmd.Context())
		if err != nil {
			return err
		}
		return policy.CheckStaged(policy.GuardRequest{RequireClean: true, IndexEmpty: empty})
	},
}

var guardSuggestAllowCmd = &cobra.Command{
	Use:   "suggest-allow",
	Short: "print the auto-allow path prefixes derived from the staged files",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		staged, err := d.Git.StagedFiles(cmd.Context())
		if err != nil {
			return err
		}
		prefixes := policy.AutoAllowPrefixes(staged)
		if handled, err := renderStructured(prefixes); handled {
			return err
		}
		for _, p := range prefixes {
			fmt.Println(p)
		}
		return nil
	},
}

var guardCommitCmd = &cobra.Command{
	Use:   "commit",
	Short: "the git-hook entry point: validates a pre-commit or commit-msg invocation",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := loadDeps(ctx)
		if err != nil {
			return err
		}
		stage, _ := cmd.Flags().GetString("hook-stage")
		env := policy.ReadHookEnv()

		top, err := d.Git.Toplevel(ctx)
		if err != nil {
			return err
		}
		worktreesRoot := d.Cfg.WorktreesRoot()
		inTaskWorktree := strings.HasPrefix(top, strings.TrimSuffix(worktreesRoot, "/")+"/")

		current, err := d.Git.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		onBase := current == d.Cfg.BaseBranch
		onTaskBranch := taskid.BranchPattern(d.Cfg.Branch.TaskPrefix).MatchString(current)

		switch stage {
		case "pre-commit", "":
			staged, err := d.Git.StagedFiles(ctx)
			if err != nil {
				return err
			}
			stagesTasksSnapshot := false
			for _, f := range staged {
				if f == d.Cfg.Paths.TasksPath {
					stagesTasksSnapshot = true
					break
				}
			}
			branchPR := d.Cfg.WorkflowMode == "branch_pr"
			return policy.PreCommitCheck(env, branchPR, onBase, inTaskWorktree, onTaskBranch, stagesTasksSnapshot)

		case "commit-msg":
			if len(args) != 1 {
				return errs.New(errs.KindInput, "commit-msg stage requires the commit message file path as its argument")
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return errs.Wrap(errs.KindHook, err, "read commit message file %s", args[0])
			}
			firstLine := firstNonCommentLine(string(data))

			tasks, err := d.Engine.List(ctx, "", "")
			if err != nil {
				return err
			}
			suffixes := make([]string, 0, len(tasks))
			for _, t := range tasks {
				suffixes = append(suffixes, taskid.Suffix(t.ID))
			}
			return policy.CommitMsgCheck(env, firstLine, taskid.Suffix, suffixes)

		default:
			return errs.New(errs.KindInput, "unknown hook stage %q", stage)
		}
	},
}

func firstNonCommentLine(msg string) string {
	for _, line := range strings.Split(msg, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return line
	}
	return ""
}

func init() {
	guardCommitCmd.Flags().String("hook-stage", "pre-commit", "which git hook invoked this check: pre-commit or commit-msg")
	guardCmd.AddCommand(guardCleanCmd, guardSuggestAllowCmd, guardCommitCmd)
	rootCmd.AddCommand(guardCmd)
}
