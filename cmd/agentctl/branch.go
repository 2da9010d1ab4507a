package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/branch"
)

var branchCmd = &cobra.Command{
	Use:   "branch",
	Short: "manage task branches and worktrees",
}

var branchCreateCmd = &cobra.Command{
	Use:   "create <task-id>",
	Short: "create (or reuse) a task branch, optionally in its own worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		freeText, _ := cmd.Flags().GetString("title")
		agentID, _ := cmd.Flags().GetString("agent")
		if agentID == "" {
			agentID = GetCurrentUser()
		}
		base, _ := cmd.Flags().GetString("base")
		if base == "" {
			base = d.Cfg.BaseBranch
		}
		worktree, _ := cmd.Flags().GetBool("worktree")
		reuse, _ := cmd.Flags().GetBool("reuse")

		res, err := d.Branch.Create(cmd.Context(), branch.CreateOptions{
			TaskID:   args[0],
			FreeText: freeText,
			AgentID:  agentID,
			Base:     base,
			Worktree: worktree,
			Reuse:    reuse,
		})
		if err != nil {
			return err
		}
		return printResult(res)
	},
}

var branchStatusCmd = &cobra.Command{
	Use:   "status <branch-name>",
	Short: "show ahead/behind counts and worktree path for a branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		st, err := d.Branch.StatusOf(cmd.Context(), args[0], d.Cfg.BaseBranch)
		if err != nil {
			return err
		}
		if handled, err := renderStructured(st); handled {
			return err
		}
		fmt.Printf("%s  ahead=%d behind=%d worktree=%s\n", st.Branch, st.Ahead, st.Behind, st.WorktreePath)
		return nil
	},
}

var branchRemoveCmd = &cobra.Command{
	Use:   "remove <branch-name>",
	Short: "remove a task branch and its worktree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		worktreePath, _ := cmd.Flags().GetString("worktree-path")
		return d.Branch.Remove(cmd.Context(), args[0], worktreePath, GetForce())
	},
}

func init() {
	branchCreateCmd.Flags().String("title", "", "free-text slug suffix for the branch name")
	branchCreateCmd.Flags().String("agent", "", "agent id creating the branch (default: current user)")
	branchCreateCmd.Flags().String("base", "", "base branch (default: the resolved workflow base branch)")
	branchCreateCmd.Flags().Bool("worktree", false, "create the branch in its own worktree")
	branchCreateCmd.Flags().Bool("reuse", false, "reuse the branch if it already exists")
	branchRemoveCmd.Flags().String("worktree-path", "", "worktree path to remove alongside the branch")

	branchCmd.AddCommand(branchCreateCmd, branchStatusCmd, branchRemoveCmd)
	rootCmd.AddCommand(branchCmd)
}
