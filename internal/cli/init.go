package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"chore-planner/internal/config"
)

const defaultConfigHeader = `# Chore planner config
# Priority: CLI flag > environment > this file > default.
# Environment names: TELEGRAM_TOKEN, DATABASE_URL, HOUSEHOLD_TZ, HORIZON_DAYS,
# ROLLOVER_TIME, REPORT_TIME, ADMIN_IDS (comma-separated Telegram IDs).

`

func renderDefaultConfig() ([]byte, error) {
	body, err := yaml.Marshal(config.Defaults())
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return append([]byte(defaultConfigHeader), body...), nil
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Long: `Write the default configuration.

If --config is given the file is written to that path, otherwise to ./choreplanner.yaml.
Fails if the file already exists unless --force is passed.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dest := cfgFile
			if dest == "" {
				dest = "choreplanner.yaml"
			}

			if dir := filepath.Dir(dest); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("mkdir: %w", err)
				}
			}

			if !force {
				if _, err := os.Stat(dest); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", dest)
				} else if !errors.Is(err, os.ErrNotExist) {
					return fmt.Errorf("stat %s: %w", dest, err)
				}
			}

			data, err := renderDefaultConfig()
			if err != nil {
				return err
			}
			if err := os.WriteFile(dest, data, 0o600); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "config written to %s\n", dest)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite existing config file")
	return cmd
}
