package main

import (
	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/workflow"
)

var integrateCmd = &cobra.Command{
	Use:   "integrate <id>",
	Short: "merge a finished task's branch into base and close out its PR artifact (branch_pr mode)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		result, err := d.Engine.Integrate(cmd.Context(), args[0], workflow.IntegrateOptions{Force: GetForce()})
		if err != nil {
			return err
		}
		if handled, err := renderStructured(result); handled {
			return err
		}
		return printTask(result.Task)
	},
}

func init() {
	rootCmd.AddCommand(integrateCmd)
}
