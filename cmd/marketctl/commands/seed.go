package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"carmarket/internal/app"
	"carmarket/internal/auth"
	"carmarket/internal/models"
	"carmarket/internal/store"
)

type seedUser struct {
	name, email, password string
	role                  models.Role
}

var demoUsers = []seedUser{
	{"Admin", "admin@example.com", "admin123", models.RoleAdmin},
	{"Demo Seller", "seller@example.com", "seller123", models.RoleSeller},
	{"Demo Buyer", "user@example.com", "user123", models.RoleUser},
}

func intp(v int) *int { return &v }

var demoListings = []models.Listing{
	{Title: "Aura GT-S Concept", Price: 185000, Brand: "Aura", Model: "GT-S", Year: intp(2024), FuelType: "electric",
		Description: "Low-slung grand tourer with a carbon tub and dual motors."},
	{Title: "Mountain Defender Pro", Price: 74900, Brand: "Mountain", Model: "Defender Pro", Year: intp(2022), FuelType: "diesel",
		Description: "Full-time four wheel drive, locking differentials, tow pack."},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo accounts and listings",
	Long: `Insert demo accounts (admin, seller, buyer) and two available listings.

Existing accounts are left untouched; listings are only added when the demo
seller has none. Intended for local development only.`,
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
		return seed(cmd.Context(), store.New(db, dialect), cmd.OutOrStdout())
	},
}

func seed(ctx context.Context, st *store.Store, out io.Writer) error {
	var sellerID string
	for _, su := range demoUsers {
		u, err := st.GetUserByEmail(ctx, su.email)
		if errors.Is(err, store.ErrNotFound) {
			hash, herr := auth.HashPassword(su.password)
			if herr != nil {
				return herr
			}
			u, err = st.CreateUser(ctx, models.User{Name: su.name, Email: su.email, PasswordHash: hash, Role: su.role, IsActive: true})
			if err == nil {
				fmt.Fprintf(out, "created %s %s / %s\n", su.role, su.email, su.password)
			}
		}
		if err != nil {
			return fmt.Errorf("seed %s: %w", su.email, err)
		}
		if su.role == models.RoleSeller {
			sellerID = u.ID
		}
	}

	_, total, err := st.ListListings(ctx, models.ListingQuery{SellerID: sellerID, Limit: 1})
	if err != nil {
		return err
	}
	if total > 0 {
		fmt.Fprintln(out, "demo listings already present")
		return nil
	}
	for _, l := range demoListings {
		l.SellerID = sellerID
		l.Status = models.ListingAvailable
		created, err := st.CreateListing(ctx, l)
		if err != nil {
			return fmt.Errorf("seed listing %q: %w", l.Title, err)
		}
		fmt.Fprintf(out, "created listing %s %q\n", created.ID, created.Title)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
