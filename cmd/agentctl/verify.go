package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/docs"
)

var readyCmd = &cobra.Command{
	Use:   "ready <id>",
	Short: "check whether a task's dependencies are satisfied",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		state, ready, err := d.Engine.Readiness(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if handled, err := renderStructured(map[string]interface{}{"ready": ready, "state": state}); handled {
			return err
		}
		fmt.Printf("ready: %v\n", ready)
		if len(state.Missing) > 0 {
			fmt.Printf("missing: %v\n", state.Missing)
		}
		if len(state.Incomplete) > 0 {
			fmt.Printf("incomplete: %v\n", state.Incomplete)
		}
		return nil
	},
}

var verifyCmd = &cobra.Command{
	Use:   "verify <id>",
	Short: "run a task's declared verify commands",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		t, err := d.Engine.Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		workDir, _ := cmd.Flags().GetString("workdir")
		prDir, _ := cmd.Flags().GetString("pr-dir")
		if prDir == "" {
			dir := docs.Dir(d.Cfg.AbsPath(d.Cfg.Paths.AgentsDir), args[0])
			if docs.Exists(dir) {
				prDir = dir
			}
		}

		result, err := d.Engine.RunVerify(cmd.Context(), t, workDir, prDir)
		if err != nil {
			return err
		}
		if handled, err := renderStructured(result); handled {
			return err
		}
		if result.Skipped {
			fmt.Println("skipped (already verified at this sha)")
			return nil
		}
		for _, e := range result.Entries {
			fmt.Println(e.Line)
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().String("workdir", "", "directory verify commands run in (default: repo root)")
	verifyCmd.Flags().String("pr-dir", "", "PR artifact directory to record verify output into")
	rootCmd.AddCommand(readyCmd, verifyCmd)
}
