package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	syncpkg "github.com/basilisk-labs/codex-swarm/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "push/pull tasks against the configured remote tracker",
}

var syncPushCmd = &cobra.Command{
	Use:   "push",
	Short: "push locally-dirty tasks to the remote tracker",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		if d.Sync == nil {
			return errs.New(errs.KindState, "sync is not configured (set tasks_backend.config_path)")
		}
		yes, _ := cmd.Flags().GetBool("yes")

		preview, err := d.Sync.PreviewPush(cmd.Context())
		if err != nil {
			return err
		}
		if GetOutput() != "json" {
			fmt.Printf("%d dirty task(s) to push\n", len(preview.Tasks))
		}
		if !yes {
			if handled, err := renderStructured(preview); handled {
				return err
			}
			fmt.Println("re-run with --yes to push")
			return nil
		}

		result, err := d.Sync.Push(cmd.Context(), true)
		if err != nil {
			return err
		}
		return printResult(result)
	},
}

var syncPullCmd = &cobra.Command{
	Use:   "pull",
	Short: "pull the remote tracker's tasks into the local cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		if d.Sync == nil {
			return errs.New(errs.KindState, "sync is not configured (set tasks_backend.config_path)")
		}
		strategy, _ := cmd.Flags().GetString("conflict")
		yes, _ := cmd.Flags().GetBool("yes")

		result, err := d.Sync.Pull(cmd.Context(), syncpkg.ConflictStrategy(strategy), yes)
		if err != nil {
			return err
		}
		if result.Aborted && GetOutput() != "json" {
			for _, c := range result.Conflicts {
				fmt.Printf("conflict on %s:\n%s\n", c.TaskID, c.Diff)
			}
		}
		return printResult(result)
	},
}

func init() {
	syncPushCmd.Flags().Bool("yes", false, "confirm the push")
	syncPullCmd.Flags().String("conflict", string(syncpkg.ConflictDiff), "conflict strategy: diff, prefer-local, prefer-remote, fail")
	syncPullCmd.Flags().Bool("yes", false, "confirm prefer-local/prefer-remote resolution")
	syncCmd.AddCommand(syncPushCmd, syncPullCmd)
	rootCmd.AddCommand(syncCmd)
}
