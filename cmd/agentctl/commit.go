package main

import (
	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/gitx"
	"github.com/basilisk-labs/codex-swarm/internal/policy"
)

var commitCmd = &cobra.Command{
	Use:   "commit <task-id>",
	Short: "create a commit from the staged index, subject-gated against the task id (spec S4)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := loadDeps(ctx)
		if err != nil {
			return err
		}
		msg, _ := cmd.Flags().GetString("message")
		if msg == "" {
			return errs.New(errs.KindInput, "commit requires -m/--message")
		}
		allowPrefix, _ := cmd.Flags().GetStringSlice("allow-prefix")
		allowTasks, _ := cmd.Flags().GetBool("allow-tasks")

		if err := policy.SubjectCheck(msg, []string{args[0]}, d.Cfg.Commit.GenericTokens); err != nil {
			return err
		}

		staged, err := d.Git.StagedFiles(ctx)
		if err != nil {
			return err
		}
		prefixes := allowPrefix
		if len(prefixes) == 0 {
			prefixes = policy.AutoAllowPrefixes(staged)
		}

		top, err := d.Git.Toplevel(ctx)
		if err != nil {
			return err
		}
		current, err := d.Git.CurrentBranch(ctx)
		if err != nil {
			return err
		}
		onBase := current == d.Cfg.BaseBranch
		inWorktree := len(top) > 0 && top != d.Cfg.RepoRoot()

		if err := policy.CheckStaged(policy.GuardRequest{
			StagedFiles:    staged,
			AllowPrefixes:  prefixes,
			AllowTasks:     allowTasks,
			TasksJSONRel:   d.Cfg.Paths.TasksPath,
			OnBaseBranch:   onBase,
			InTaskWorktree: inWorktree,
		}); err != nil {
			return err
		}

		commit, err := d.Git.CreateCommit(ctx, msg, gitx.CommitOptions{})
		if err != nil {
			return err
		}
		return printResult(commit)
	},
}

func init() {
	commitCmd.Flags().StringP("message", "m", "", "commit message (required)")
	commitCmd.Flags().StringSlice("allow-prefix", nil, "additional path prefixes the guard allows")
	commitCmd.Flags().Bool("allow-tasks", false, "allow staging the tasks snapshot")
	rootCmd.AddCommand(commitCmd)
}
