package main

import (
	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/workflow"
)

func opFlags(c *cobra.Command) {
	c.Flags().String("author", "", "comment author (default: current user)")
	c.Flags().Bool("commit", false, "commit the comment via commit-from-comment")
	c.Flags().StringSlice("allow-prefix", nil, "additional path prefixes the commit-from-comment guard allows")
	c.Flags().Bool("allow-tasks", false, "allow the commit-from-comment guard to stage the tasks snapshot")
	c.Flags().Bool("confirm-status-commit", false, "acknowledge a status_commit_policy of warn/confirm for this status/comment-driven commit")
}

func commentAuthor(cmd *cobra.Command) string {
	author, _ := cmd.Flags().GetString("author")
	if author == "" {
		author = GetCurrentUser()
	}
	return author
}

var startCmd = &cobra.Command{
	Use:   "start <id> <comment>",
	Short: `transition a task to DOING; comment must start with "Starting:"`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		commit, _ := cmd.Flags().GetBool("commit")
		allowPrefix, _ := cmd.Flags().GetStringSlice("allow-prefix")
		allowTasks, _ := cmd.Flags().GetBool("allow-tasks")
		confirmStatusCommit, _ := cmd.Flags().GetBool("confirm-status-commit")

		var staged []string
		if commit {
			if staged, err = d.Git.StagedFiles(cmd.Context()); err != nil {
				return err
			}
		}

		res, err := d.Engine.Start(cmd.Context(), args[0], commentAuthor(cmd), args[1], workflow.StartOptions{
			Force:               GetForce(),
			CommitFromComment:   commit,
			ConfirmStatusCommit: confirmStatusCommit,
			StagedFiles:         staged,
			AllowPrefixes:       allowPrefix,
			AllowTasks:          allowTasks,
		})
		if err != nil {
			return err
		}
		printWarning(res.Warning)
		return printTask(res.Task)
	},
}

var blockCmd = &cobra.Command{
	Use:   "block <id> <comment>",
	Short: `transition a task to BLOCKED; comment must start with "Blocked:"`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		commit, _ := cmd.Flags().GetBool("commit")
		allowPrefix, _ := cmd.Flags().GetStringSlice("allow-prefix")
		allowTasks, _ := cmd.Flags().GetBool("allow-tasks")
		confirmStatusCommit, _ := cmd.Flags().GetBool("confirm-status-commit")

		var staged []string
		if commit {
			if staged, err = d.Git.StagedFiles(cmd.Context()); err != nil {
				return err
			}
		}

		res, err := d.Engine.Block(cmd.Context(), args[0], commentAuthor(cmd), args[1], workflow.BlockOptions{
			Force:               GetForce(),
			CommitFromComment:   commit,
			ConfirmStatusCommit: confirmStatusCommit,
			StagedFiles:         staged,
			AllowPrefixes:       allowPrefix,
			AllowTasks:          allowTasks,
		})
		if err != nil {
			return err
		}
		printWarning(res.Warning)
		return printTask(res.Task)
	},
}

var finishCmd = &cobra.Command{
	Use:   "finish <id> <comment>",
	Short: `transition a task to DONE; comment must start with "Verified:"`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		commitRev, _ := cmd.Flags().GetString("commit")
		skipVerify, _ := cmd.Flags().GetBool("skip-verify")
		workDir, _ := cmd.Flags().GetString("workdir")
		prDir, _ := cmd.Flags().GetString("pr-dir")
		commitFromComment, _ := cmd.Flags().GetBool("commit-from-comment")
		allowPrefix, _ := cmd.Flags().GetStringSlice("allow-prefix")
		allowTasks, _ := cmd.Flags().GetBool("allow-tasks")
		confirmStatusCommit, _ := cmd.Flags().GetBool("confirm-status-commit")

		if commitFromComment {
			commitRev = ""
		}
		var staged []string
		if commitFromComment {
			if staged, err = d.Git.StagedFiles(cmd.Context()); err != nil {
				return err
			}
		}

		res, err := d.Engine.Finish(cmd.Context(), args[0], commitRev, commentAuthor(cmd), args[1], workflow.FinishOptions{
			Force:               GetForce(),
			SkipVerify:          skipVerify,
			WorkDir:             workDir,
			PRDir:               prDir,
			CommitFromComment:   commitFromComment,
			ConfirmStatusCommit: confirmStatusCommit,
			StagedFiles:         staged,
			AllowPrefixes:       allowPrefix,
			AllowTasks:          allowTasks,
		})
		if err != nil {
			return err
		}
		printWarning(res.Warning)
		return printTask(res.Task)
	},
}

func init() {
	opFlags(startCmd)
	opFlags(blockCmd)
	finishCmd.Flags().String("author", "", "comment author (default: current user; INTEGRATOR required in branch_pr mode)")
	finishCmd.Flags().String("commit", "HEAD", "commit to record as the DONE commit (ignored when --commit-from-comment is set)")
	finishCmd.Flags().Bool("skip-verify", false, "skip running the task's verify commands")
	finishCmd.Flags().String("workdir", "", "directory verify commands run in (default: repo root)")
	finishCmd.Flags().String("pr-dir", "", "PR artifact directory to record verify output into")
	finishCmd.Flags().Bool("commit-from-comment", false, "build the DONE commit from the comment via commit-from-comment")
	finishCmd.Flags().StringSlice("allow-prefix", nil, "additional path prefixes the commit-from-comment guard allows")
	finishCmd.Flags().Bool("allow-tasks", false, "allow the commit-from-comment guard to stage the tasks snapshot")
	finishCmd.Flags().Bool("confirm-status-commit", false, "acknowledge a status_commit_policy of warn/confirm for this status/comment-driven commit")

	rootCmd.AddCommand(startCmd, blockCmd, finishCmd)
}
