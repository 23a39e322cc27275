package commands

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"carmarket/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print build information as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(version.Current())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
