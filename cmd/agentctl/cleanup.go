package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/store"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "remove branches/worktrees left behind by finished tasks",
}

var cleanupMergedCmd = &cobra.Command{
	Use:   "merged",
	Short: "remove task branches that are fully merged into base and whose task is DONE",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")

		candidates, err := d.Branch.MergedCandidates(cmd.Context(), d.Cfg.BaseBranch)
		if err != nil {
			return err
		}

		var removable []string
		for _, c := range candidates {
			t, err := d.Engine.Show(cmd.Context(), c.TaskID)
			if err != nil || t.Status != store.StatusDone {
				continue
			}
			removable = append(removable, c.Branch)
			if !yes {
				fmt.Printf("would remove %s (task %s, worktree %q)\n", c.Branch, c.TaskID, c.WorktreePath)
				continue
			}
			var wt string
			for _, cand := range candidates {
				if cand.Branch == c.Branch {
					wt = cand.WorktreePath
				}
			}
			if err := d.Branch.Remove(cmd.Context(), c.Branch, wt, false); err != nil {
				return err
			}
			fmt.Printf("removed %s\n", c.Branch)
		}
		if !yes && len(removable) > 0 {
			fmt.Println("re-run with --yes to remove the branches above")
		}
		return nil
	},
}

func init() {
	cleanupMergedCmd.Flags().Bool("yes", false, "actually remove the candidate branches instead of just listing them")
	cleanupCmd.AddCommand(cleanupMergedCmd)
	rootCmd.AddCommand(cleanupCmd)
}
