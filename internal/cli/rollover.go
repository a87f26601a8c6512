package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"chore-planner/internal/notify"
	"chore-planner/internal/repository"
	"chore-planner/internal/service"
)

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Top up every active chore's instances to the scheduling horizon once and exit",
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := openOffline()
		if err != nil {
			return err
		}
		defer a.Close()

		inserted, err := a.engine.Rollover(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "rollover: %d new instances\n", inserted)
		return err
	},
}

var regenerateCmd = &cobra.Command{
	Use:   "regenerate <definitionID>",
	Short: "Drop and rebuild the future pending instances of one chore",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseUint(args[0], 10, 64)
		if err != nil || id == 0 {
			return fmt.Errorf("definition id must be a positive number, got %q", args[0])
		}

		a, err := openOffline()
		if err != nil {
			return err
		}
		defer a.Close()

		inserted, err := a.engine.Regenerate(cmd.Context(), uint(id))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "chore #%d: %d instances scheduled\n", id, inserted)
		return nil
	},
}

// openOffline wires the engine without Telegram; notifications only go to the log.
func openOffline() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newApp(cfg, func(*repository.UserRepository) service.Notifier { return notify.Log{} })
}
