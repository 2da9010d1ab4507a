package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var taskDocCmd = &cobra.Command{
	Use:   "doc",
	Short: "read or replace a task's doc field",
}

var taskDocShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "print a task's doc field",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		doc, err := d.Backend.GetTaskDoc(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(doc)
		return nil
	},
}

var taskDocSetCmd = &cobra.Command{
	Use:   "set <id> <text>",
	Short: "replace a task's doc field",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		by, _ := cmd.Flags().GetString("by")
		if by == "" {
			by = GetCurrentUser()
		}
		return d.Backend.SetTaskDoc(cmd.Context(), args[0], by, args[1])
	},
}

func init() {
	taskDocSetCmd.Flags().String("by", "", "attributed author (default: current user)")
	taskDocCmd.AddCommand(taskDocShowCmd, taskDocSetCmd)
	taskCmd.AddCommand(taskDocCmd)
}
