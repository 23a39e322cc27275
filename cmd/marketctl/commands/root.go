package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"carmarket/internal/config"
	"carmarket/internal/version"
)

var envFile string

var rootCmd = &cobra.Command{
	Use:   "marketctl",
	Short: "Operate a carmarket deployment",
	Long: `marketctl runs maintenance tasks against the configured carmarket database.

It reads the same environment (and .env files) as the server.`,
	Version:       version.Current().Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Comma separated env files to load instead of .env")
}

func loadConfig() (config.Config, error) {
	if envFile != "" {
		if err := os.Setenv("ENV_FILE", envFile); err != nil {
			return config.Config{}, err
		}
	}
	return config.Load()
}
