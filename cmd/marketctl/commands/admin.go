package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"carmarket/internal/app"
	"carmarket/internal/auth"
	"carmarket/internal/store"
)

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account, or reset an existing one to admin",
	Long: `Create an admin account, or promote and reset the account with that email.

Without --password a strong password is generated and printed once.

Examples:
  marketctl create-admin --email ops@example.com
  marketctl create-admin --email ops@example.com --password 'S3cure!pass'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		email := strings.TrimSpace(adminEmail)
		if email == "" {
			return errors.New("--email is required")
		}
		password := adminPassword
		generated := false
		if password == "" {
			p, err := auth.GeneratePassword(16)
			if err != nil {
				return err
			}
			password, generated = p, true
		} else if err := auth.ValidatePasswordStrength(password); err != nil {
			return err
		}
		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, dialect, err := app.OpenDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := store.New(db, dialect).EnsureAdmin(cmd.Context(), email, adminName, hash); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "admin ready: %s\n", strings.ToLower(email))
		if generated {
			fmt.Fprintf(cmd.OutOrStdout(), "password: %s\n", password)
		}
		return nil
	},
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email (required)")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "Display name")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Password; generated when empty")
	rootCmd.AddCommand(createAdminCmd)
}
