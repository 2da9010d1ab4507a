package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/store"
	"github.com/basilisk-labs/codex-swarm/internal/workflow"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "create and manage tasks",
}

func init() {
	rootCmd.AddCommand(taskCmd)
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

var taskNewCmd = &cobra.Command{
	Use:   "new <title>",
	Short: "create a task with a generated id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		desc, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		owner, _ := cmd.Flags().GetString("owner")
		tags, _ := cmd.Flags().GetString("tags")
		dependsOn, _ := cmd.Flags().GetString("depends-on")
		verify, _ := cmd.Flags().GetString("verify")

		t, err := d.Engine.New(cmd.Context(), args[0], workflow.NewTaskOptions{
			Description: desc,
			Priority:    priority,
			Owner:       owner,
			Tags:        splitCSV(tags),
			DependsOn:   splitCSV(dependsOn),
			Verify:      splitCSV(verify),
		})
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var taskAddCmd = &cobra.Command{
	Use:   "add <id> <title>",
	Short: "add a fully-specified task record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		desc, _ := cmd.Flags().GetString("description")
		priority, _ := cmd.Flags().GetString("priority")
		owner, _ := cmd.Flags().GetString("owner")
		tags, _ := cmd.Flags().GetString("tags")
		dependsOn, _ := cmd.Flags().GetString("depends-on")
		verify, _ := cmd.Flags().GetString("verify")

		t, err := d.Engine.Add(cmd.Context(), store.Task{
			ID:          args[0],
			Title:       args[1],
			Description: desc,
			Status:      store.StatusTODO,
			Priority:    priority,
			Owner:       owner,
			Tags:        splitCSV(tags),
			DependsOn:   splitCSV(dependsOn),
			Verify:      splitCSV(verify),
		})
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var taskUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "update a task's editable fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		fields := workflow.UpdateFields{}
		if cmd.Flags().Changed("title") {
			v, _ := cmd.Flags().GetString("title")
			fields.Title = &v
		}
		if cmd.Flags().Changed("description") {
			v, _ := cmd.Flags().GetString("description")
			fields.Description = &v
		}
		if cmd.Flags().Changed("priority") {
			v, _ := cmd.Flags().GetString("priority")
			fields.Priority = &v
		}
		if cmd.Flags().Changed("owner") {
			v, _ := cmd.Flags().GetString("owner")
			fields.Owner = &v
		}
		if cmd.Flags().Changed("tags") {
			v, _ := cmd.Flags().GetString("tags")
			fields.Tags, fields.TagsSet = splitCSV(v), true
		}
		if cmd.Flags().Changed("depends-on") {
			v, _ := cmd.Flags().GetString("depends-on")
			fields.DependsOn, fields.DependsOnSet = splitCSV(v), true
		}
		if cmd.Flags().Changed("verify") {
			v, _ := cmd.Flags().GetString("verify")
			fields.Verify, fields.VerifySet = splitCSV(v), true
		}

		t, err := d.Engine.Update(cmd.Context(), args[0], fields)
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var taskCommentCmd = &cobra.Command{
	Use:   "comment <id> <body>",
	Short: "append a free-form comment",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		author, _ := cmd.Flags().GetString("author")
		if author == "" {
			author = GetCurrentUser()
		}
		t, err := d.Engine.Comment(cmd.Context(), args[0], author, args[1])
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var taskSetStatusCmd = &cobra.Command{
	Use:   "set-status <id> <status>",
	Short: "set a task's status directly (cannot target DONE; use finish)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		t, err := d.Engine.SetStatus(cmd.Context(), args[0], store.Status(strings.ToUpper(args[1])), workflow.SetStatusOptions{Force: GetForce()})
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var taskLintCmd = &cobra.Command{
	Use:   "lint",
	Short: "run lint rules against the current task set",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		report, err := d.Engine.Lint(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(report)
	},
}

var taskShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "show one task",
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
		return printTask(t)
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "list tasks, optionally filtered",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		status, _ := cmd.Flags().GetString("status")
		tag, _ := cmd.Flags().GetString("tag")
		tasks, err := d.Engine.List(cmd.Context(), store.Status(strings.ToUpper(status)), tag)
		if err != nil {
			return err
		}
		return printTaskList(tasks)
	},
}

var taskNextCmd = &cobra.Command{
	Use:   "next",
	Short: "show the first ready TODO task",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		t, ok, err := d.Engine.Next(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			if handled, err := renderStructured(nil); handled {
				return err
			}
			println("No ready tasks")
			return nil
		}
		return printTask(t)
	},
}

var taskSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "search tasks by id/title/description/tags",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		tasks, err := d.Engine.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printTaskList(tasks)
	},
}

var taskScaffoldCmd = &cobra.Command{
	Use:   "scaffold <id>",
	Short: "(re-)write a task's on-disk doc; a no-op if it already matches",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		t, err := d.Engine.Scaffold(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printTask(t)
	},
}

var taskExportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "export the canonical task snapshot",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		return d.Engine.Export(cmd.Context(), args[0])
	},
}

var taskNormalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "re-read and rewrite every task record to correct schema drift",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		return d.Engine.Normalize(cmd.Context())
	},
}

var taskMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "migrate task records to the current schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		return d.Engine.Migrate(cmd.Context())
	},
}

func init() {
	for _, c := range []*cobra.Command{taskNewCmd, taskAddCmd, taskUpdateCmd} {
		c.Flags().String("description", "", "task description")
		c.Flags().String("priority", "", "task priority")
		c.Flags().String("owner", "", "task owner")
		c.Flags().String("tags", "", "comma-separated tags")
		c.Flags().String("depends-on", "", "comma-separated dependency task ids")
		c.Flags().String("verify", "", "comma-separated verify commands")
	}
	taskCommentCmd.Flags().String("author", "", "comment author (default: current user)")
	taskListCmd.Flags().String("status", "", "filter by status")
	taskListCmd.Flags().String("tag", "", "filter by tag")

	taskCmd.AddCommand(
		taskNewCmd, taskAddCmd, taskUpdateCmd, taskCommentCmd, taskSetStatusCmd,
		taskLintCmd, taskShowCmd, taskListCmd, taskNextCmd, taskSearchCmd,
		taskScaffoldCmd, taskExportCmd, taskNormalizeCmd, taskMigrateCmd,
	)
}
