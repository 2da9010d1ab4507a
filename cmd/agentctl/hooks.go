package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/errs"
	"github.com/basilisk-labs/codex-swarm/internal/policy"
)

var hooksCmd = &cobra.Command{
	Use:   "hooks",
	Short: "install or uninstall the managed pre-commit/commit-msg git hooks",
}

var hooksInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "install the managed git hooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := loadDeps(ctx)
		if err != nil {
			return err
		}
		dir, err := d.Git.HooksDir(ctx)
		if err != nil {
			return err
		}
		return policy.Install(dir)
	},
}

var hooksUninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "remove the managed git hooks",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := loadDeps(ctx)
		if err != nil {
			return err
		}
		dir, err := d.Git.HooksDir(ctx)
		if err != nil {
			return err
		}
		return policy.Uninstall(dir)
	},
}

var hooksRunCmd = &cobra.Command{
	Use:   "run <hook>",
	Short: "print the guard command a managed hook runs (does not run the check itself)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, h := range policy.ManagedHooks {
			if h == args[0] {
				fmt.Printf("run %q via: agentctl guard commit --hook-stage=%s\n", h, h)
				return nil
			}
		}
		return errs.New(errs.KindInput, "unknown hook %q (known: %v)", args[0], policy.ManagedHooks)
	},
}

func init() {
	hooksCmd.AddCommand(hooksInstallCmd, hooksUninstallCmd, hooksRunCmd)
	rootCmd.AddCommand(hooksCmd)
}
