package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"carmarket/internal/app"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, dialect, err := app.OpenDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", dialect)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
