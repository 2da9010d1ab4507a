package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/docs"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

var prCmd = &cobra.Command{
	Use:   "pr",
	Short: "manage a task's PR artifact",
}

var prOpenCmd = &cobra.Command{
	Use:   "open <task-id> <branch>",
	Short: "create or refresh a task's PR artifact skeleton",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		t, err := d.Engine.Show(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		author, _ := cmd.Flags().GetString("author")
		if author == "" {
			author = GetCurrentUser()
		}
		strategy, _ := cmd.Flags().GetString("merge-strategy")

		dir := docs.Dir(d.Cfg.AbsPath(d.Cfg.Paths.AgentsDir), args[0])
		meta, err := docs.Open(dir, docs.PRMeta{
			TaskID:        args[0],
			TaskTitle:     t.Title,
			Branch:        args[1],
			BaseBranch:    d.Cfg.BaseBranch,
			Author:        author,
			MergeStrategy: docs.MergeStrategy(strategy),
		}, nowUTC())
		if err != nil {
			return err
		}
		return printResult(meta)
	},
}

var prUpdateCmd = &cobra.Command{
	Use:   "update <task-id>",
	Short: "refresh a task's PR diffstat and meta against its branch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		dir := docs.Dir(d.Cfg.AbsPath(d.Cfg.Paths.AgentsDir), args[0])
		meta, err := docs.ReadMeta(dir)
		if err != nil {
			return err
		}
		diffstat, err := d.Git.Diff(meta.BaseBranch, meta.Branch).Stat(cmd.Context())
		if err != nil {
			return err
		}
		headSHA, err := d.Git.RevParse(cmd.Context(), meta.Branch)
		if err != nil {
			return err
		}
		meta.HeadSHA = headSHA
		updated, err := docs.Update(dir, meta, diffstat, nowUTC())
		if err != nil {
			return err
		}
		return printResult(updated)
	},
}

var prCheckCmd = &cobra.Command{
	Use:   "check <task-id>",
	Short: "validate a task's PR artifact is ready to integrate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		if err := d.Engine.CheckPR(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Println("ok")
		return nil
	},
}

var prNoteCmd = &cobra.Command{
	Use:   "note <task-id> <author> <body>",
	Short: "append a handoff note to a task's review.md",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		dir := docs.Dir(d.Cfg.AbsPath(d.Cfg.Paths.AgentsDir), args[0])
		if !docs.Exists(dir) {
			return errs.New(errs.KindState, "task %s has no PR artifact at %s", args[0], dir)
		}
		f, err := os.OpenFile(docs.ReviewPath(dir), os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return errs.Wrap(errs.KindState, err, "open review.md")
		}
		defer f.Close()
		_, err = fmt.Fprintf(f, "- %s: %s\n", args[1], args[2])
		return err
	},
}

func init() {
	prOpenCmd.Flags().String("author", "", "PR author (default: current user)")
	prOpenCmd.Flags().String("merge-strategy", "squash", "merge strategy: squash, merge, or rebase")
	prCmd.AddCommand(prOpenCmd, prUpdateCmd, prCheckCmd, prNoteCmd)
	rootCmd.AddCommand(prCmd)
}
