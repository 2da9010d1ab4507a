package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/basilisk-labs/codex-swarm/internal/config"
	"github.com/basilisk-labs/codex-swarm/internal/errs"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "show or edit the repo's workflow config document",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "print the fully resolved workflow config",
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := loadDeps(cmd.Context())
		if err != nil {
			return err
		}
		return printResult(d.Cfg)
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "set a top-level scalar field in the on-disk workflow config (workflow_mode, base_branch, status_commit_policy)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		d, err := loadDeps(ctx)
		if err != nil {
			return err
		}

		docPath := filepath.Join(d.Cfg.RepoRoot(), config.RelPath)
		raw := map[string]interface{}{}
		if data, err := os.ReadFile(docPath); err == nil {
			if jerr := jsonUnmarshalInto(data, &raw); jerr != nil {
				return jerr
			}
		} else if !os.IsNotExist(err) {
			return errs.Wrap(errs.KindConfiguration, err, "read %s", config.RelPath)
		} else {
			raw["schema_version"] = 1
		}

		switch args[0] {
		case "workflow_mode", "base_branch", "status_commit_policy":
			raw[args[0]] = args[1]
		default:
			return errs.New(errs.KindInput, "config set only supports workflow_mode, base_branch, status_commit_policy (edit %s directly for other fields)", config.RelPath)
		}

		if err := os.MkdirAll(filepath.Dir(docPath), 0o755); err != nil {
			return errs.Wrap(errs.KindConfiguration, err, "create %s", filepath.Dir(docPath))
		}
		return jsonWriteIndented(docPath, raw)
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
