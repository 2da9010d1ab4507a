package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/branch"
	"github.com/basilisk-labs/codex-swarm/internal/docs"
)

var workCmd = &cobra.Command{
	Use:   "work",
	Short: "convenience bundles over branch/task/PR operations",
}

var workStartCmd = &cobra.Command{
	Use:   "start <task-id>",
	Short: "create the task's branch+worktree, scaffold its doc, and open its PR artifact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := loadDeps(ctx)
		if err != nil {
			return err
		}
		taskID := args[0]

		if err := d.Branch.EnsureWorktreesIgnored(ctx); err != nil {
			return err
		}

		freeText, _ := cmd.Flags().GetString("title")
		agentID, _ := cmd.Flags().GetString("agent")
		if agentID == "" {
			agentID = GetCurrentUser()
		}
		strategy, _ := cmd.Flags().GetString("merge-strategy")

		res, err := d.Branch.Create(ctx, branch.CreateOptions{
			TaskID:   taskID,
			FreeText: freeText,
			AgentID:  agentID,
			Base:     d.Cfg.BaseBranch,
			Worktree: true,
			Reuse:    true,
		})
		if err != nil {
			return err
		}

		t, err := d.Engine.Scaffold(ctx, taskID)
		if err != nil {
			return err
		}

		// The PR artifact lives under the task tree checked into the
		// branch itself, so it is written against the new worktree's
		// checkout rather than the base repo's.
		docsRoot := d.Cfg.RepoRoot()
		if res.WorktreePath != "" {
			docsRoot = res.WorktreePath
		}
		prDir := docs.Dir(filepath.Join(docsRoot, d.Cfg.Paths.AgentsDir), taskID)
		meta, err := docs.Open(prDir, docs.PRMeta{
			TaskID:        taskID,
			TaskTitle:     t.Title,
			Branch:        res.Branch,
			BaseBranch:    d.Cfg.BaseBranch,
			Author:        agentID,
			MergeStrategy: docs.MergeStrategy(strategy),
		}, nowUTC())
		if err != nil {
			return err
		}

		return printResult(map[string]interface{}{
			"branch": res,
			"task":   t,
			"pr":     meta,
			"pr_dir": prDir,
		})
	},
}

func init() {
	workStartCmd.Flags().String("title", "", "free-text slug suffix for the branch name")
	workStartCmd.Flags().String("agent", "", "agent id starting the work (default: current user)")
	workStartCmd.Flags().String("merge-strategy", "squash", "merge strategy recorded on the PR artifact")
	workCmd.AddCommand(workStartCmd)
	rootCmd.AddCommand(workCmd)
}
