package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"carmarket/internal/auth"
	appdb "carmarket/internal/db"
	"carmarket/internal/models"
	"carmarket/internal/store"
)

func TestSeedIsIdempotent(t *testing.T) {
	db, err := appdb.OpenSQLite(filepath.Join(t.TempDir(), "seed.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()
	if err := appdb.ApplyMigrations(db, appdb.SQLite); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.New(db, appdb.SQLite)
	ctx := context.Background()

	var out bytes.Buffer
	if err := seed(ctx, st, &out); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	if err := seed(ctx, st, &out); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	u, err := st.GetUserByEmail(ctx, "seller@example.com")
	if err != nil {
		t.Fatalf("seller: %v", err)
	}
	if u.Role != models.RoleSeller || !auth.VerifyPassword(u.PasswordHash, "seller123") {
		t.Fatalf("unexpected seller %+v", u)
	}
	items, total, err := st.ListListings(ctx, models.ListingQuery{SellerID: u.ID})
	if err != nil || total != 2 {
		t.Fatalf("expected 2 demo listings, got %d (%v)", total, err)
	}
	for _, l := range items {
		if l.Status != models.ListingAvailable {
			t.Fatalf("demo listing %q is %s", l.Title, l.Status)
		}
	}
}
