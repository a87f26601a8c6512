package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "choreplanner",
	Short:        "Household chore planner — Telegram bot and recurring chore engine",
	SilenceUsage: true,
}

// Execute is the entry point called from cmd/choreplanner/main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file path (default: ./choreplanner.yaml)")
	flags.String("database-url", "chore_planner.db", "SQLite database file")
	flags.String("timezone", "UTC", "household IANA time zone, e.g. Europe/Berlin")
	flags.Int("horizon-days", 30, "how many days ahead chores are scheduled")
	bindFlag("database_url", flags, "database-url")
	bindFlag("timezone", flags, "timezone")
	bindFlag("horizon_days", flags, "horizon-days")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(rolloverCmd)
	rootCmd.AddCommand(regenerateCmd)
	rootCmd.AddCommand(newInitCmd())
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("choreplanner")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "error reading config file:", err)
			os.Exit(1)
		}
	} else {
		fmt.Fprintln(os.Stderr, "config:", viper.ConfigFileUsed())
	}
}

func bindFlag(viperKey string, fs *pflag.FlagSet, flagName string) {
	if err := viper.BindPFlag(viperKey, fs.Lookup(flagName)); err != nil {
		panic(fmt.Sprintf("bindFlag %q → %q: %v", flagName, viperKey, err))
	}
}
