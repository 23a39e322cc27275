package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	appdb "carmarket/internal/db"
	"carmarket/internal/models"
)

func newTestStore(t *testing.T, maxOpen int) *Store {
	t.Helper()
	sqdb, err := appdb.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), maxOpen, maxOpen, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqdb.Close() })
	if err := appdb.ApplyMigrations(sqdb, appdb.SQLite); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return New(sqdb, appdb.SQLite)
}

func mustUser(t *testing.T, st *Store, email string, role models.Role) models.User {
	t.Helper()
	u, err := st.CreateUser(context.Background(), models.User{Name: email, Email: email, PasswordHash: "x", Role: role, IsActive: true})
	if err != nil {
		t.Fatalf("create user %s: %v", email, err)
	}
	return u
}

func mustListing(t *testing.T, st *Store, sellerID string, status models.ListingStatus) models.Listing {
	t.Helper()
	l, err := st.CreateListing(context.Background(), models.Listing{Title: "Car", Price: 185000, SellerID: sellerID, Status: status, Brand: "Volvo", Model: "XC60"})
	if err != nil {
		t.Fatalf("create listing: %v", err)
	}
	return l
}

func TestCreateUserDuplicateEmailConflict(t *testing.T) {
	st := newTestStore(t, 1)
	mustUser(t, st, "dup@example.com", models.RoleUser)
	_, err := st.CreateUser(context.Background(), models.User{Name: "x", Email: "DUP@example.com ", PasswordHash: "x", Role: models.RoleUser, IsActive: true})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestGetUserRoundTripsNullableFields(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	u := mustUser(t, st, "p@example.com", models.RoleSeller)
	phone := "+1 555 0100"
	if _, err := st.UpdateProfile(ctx, u.ID, ProfilePatch{Phone: &phone}); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if err := st.RecordLogin(ctx, u.ID); err != nil {
		t.Fatalf("record login: %v", err)
	}
	got, err := st.GetUserByEmail(ctx, "P@example.com")
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if got.Role != models.RoleSeller || !got.IsActive {
		t.Fatalf("unexpected role/active: %+v", got)
	}
	if got.Phone == nil || *got.Phone != phone || got.Address != nil {
		t.Fatalf("unexpected nullable fields: %+v", got)
	}
	if got.LastLoginAt == nil {
		t.Fatalf("expected last login to be recorded")
	}
	if _, err := st.GetUserByID(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetListingStatusIsCompareAndSwap(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	l := mustListing(t, st, seller.ID, models.ListingPending)

	if err := st.SetListingStatus(ctx, l.ID, []models.ListingStatus{models.ListingPending}, models.ListingAvailable, nil); err != nil {
		t.Fatalf("approve: %v", err)
	}
	err := st.SetListingStatus(ctx, l.ID, []models.ListingStatus{models.ListingPending}, models.ListingRejected, nil)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on second decision, got %v", err)
	}
	got, err := st.GetListing(ctx, l.ID)
	if err != nil {
		t.Fatalf("get listing: %v", err)
	}
	if got.Status != models.ListingAvailable {
		t.Fatalf("expected available, got %s", got.Status)
	}
}

func TestConcurrentSalesSellListingOnce(t *testing.T) {
	st := newTestStore(t, 4)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	b1 := mustUser(t, st, "b1@example.com", models.RoleUser)
	b2 := mustUser(t, st, "b2@example.com", models.RoleUser)
	l := mustListing(t, st, seller.ID, models.ListingAvailable)

	var orders []models.Order
	for _, b := range []models.User{b1, b2} {
		o, err := st.CreateOrder(ctx, models.Order{ListingID: l.ID, BuyerID: b.ID, SellerID: seller.ID, FinalPrice: l.Price, Status: models.OrderPendingPayment})
		if err != nil {
			t.Fatalf("create order: %v", err)
		}
		orders = append(orders, o)
	}

	errs := make([]error, len(orders))
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i, o := range orders {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			<-start
			_, errs[i] = st.TransitionOrder(ctx, id, models.OrderPendingPayment, models.OrderPaid, true)
		}(i, o.ID)
	}
	close(start)
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrListingSold):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Fatalf("expected one winner and one loser, got wins=%d losses=%d", wins, losses)
	}
	got, _ := st.GetListing(ctx, l.ID)
	if got.Status != models.ListingSold {
		t.Fatalf("expected sold listing, got %s", got.Status)
	}
	paid := 0
	for _, o := range orders {
		cur, err := st.GetOrder(ctx, o.ID)
		if err != nil {
			t.Fatalf("get order: %v", err)
		}
		if cur.Status == models.OrderPaid {
			paid++
		} else if cur.Status != models.OrderPendingPayment {
			t.Fatalf("losing order must roll back, got %s", cur.Status)
		}
	}
	if paid != 1 {
		t.Fatalf("expected exactly one paid order, got %d", paid)
	}
}

func TestTransitionOrderRejectsStaleFromState(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	buyer := mustUser(t, st, "b@example.com", models.RoleUser)
	l := mustListing(t, st, seller.ID, models.ListingAvailable)
	o, _ := st.CreateOrder(ctx, models.Order{ListingID: l.ID, BuyerID: buyer.ID, SellerID: seller.ID, FinalPrice: 80000, Status: models.OrderDraft})

	if _, err := st.TransitionOrder(ctx, o.ID, models.OrderDraft, models.OrderCompleted, true); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if _, err := st.TransitionOrder(ctx, o.ID, models.OrderDraft, models.OrderCompleted, true); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on repeat, got %v", err)
	}
}

func TestImagesKeepSinglePrimary(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	l := mustListing(t, st, seller.ID, models.ListingAvailable)

	first, err := st.AddImages(ctx, l.ID, []string{"/u/a.jpg", "/u/b.jpg"}, 10)
	if err != nil {
		t.Fatalf("add images: %v", err)
	}
	if !first[0].IsPrimary || first[1].IsPrimary {
		t.Fatalf("expected only first image primary: %+v", first)
	}
	more, err := st.AddImages(ctx, l.ID, []string{"/u/c.jpg"}, 10)
	if err != nil {
		t.Fatalf("add more: %v", err)
	}
	if more[0].IsPrimary || more[0].DisplayOrder != 2 {
		t.Fatalf("unexpected appended image: %+v", more[0])
	}

	yes := true
	if _, err := st.UpdateImage(ctx, more[0].ID, ImagePatch{IsPrimary: &yes}); err != nil {
		t.Fatalf("set primary: %v", err)
	}
	assertPrimary(t, st, l.ID, more[0].ID)

	if _, err := st.DeleteImage(ctx, more[0].ID); err != nil {
		t.Fatalf("delete primary: %v", err)
	}
	assertPrimary(t, st, l.ID, first[0].ID)

	if _, err := st.AddImages(ctx, l.ID, make([]string, 9), 10); !errors.Is(err, ErrImageLimit) {
		t.Fatalf("expected ErrImageLimit, got %v", err)
	}
}

func assertPrimary(t *testing.T, st *Store, listingID, wantID string) {
	t.Helper()
	imgs, err := st.ListImages(context.Background(), listingID)
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	primaries := 0
	for _, img := range imgs {
		if img.IsPrimary {
			primaries++
			if img.ID != wantID {
				t.Fatalf("expected primary %s, got %s", wantID, img.ID)
			}
		}
	}
	if primaries != 1 {
		t.Fatalf("expected exactly one primary, got %d", primaries)
	}
}

func TestDeleteListingWithOrdersConflicts(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	buyer := mustUser(t, st, "b@example.com", models.RoleUser)
	withOrder := mustListing(t, st, seller.ID, models.ListingAvailable)
	plain := mustListing(t, st, seller.ID, models.ListingAvailable)
	if _, err := st.CreateOrder(ctx, models.Order{ListingID: withOrder.ID, BuyerID: buyer.ID, SellerID: seller.ID, FinalPrice: 1, Status: models.OrderDraft}); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if err := st.DeleteListing(ctx, withOrder.ID); !errors.Is(err, ErrHasOrders) {
		t.Fatalf("expected ErrHasOrders, got %v", err)
	}
	if err := st.DeleteListing(ctx, plain.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := st.DeleteListing(ctx, plain.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestFavoritesUniquePair(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	user := mustUser(t, st, "u@example.com", models.RoleUser)
	l := mustListing(t, st, seller.ID, models.ListingAvailable)

	if err := st.AddFavorite(ctx, user.ID, l.ID); err != nil {
		t.Fatalf("add favorite: %v", err)
	}
	if err := st.AddFavorite(ctx, user.ID, l.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate pair, got %v", err)
	}
	ids, _ := st.ListFavoriteIDs(ctx, user.ID)
	if len(ids) != 1 || ids[0] != l.ID {
		t.Fatalf("unexpected favorites %v", ids)
	}
	removed, err := st.RemoveFavorite(ctx, user.ID, l.ID)
	if err != nil || !removed {
		t.Fatalf("remove favorite removed=%v err=%v", removed, err)
	}
}

func TestDocumentsKeepAppendOrder(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	buyer := mustUser(t, st, "b@example.com", models.RoleUser)
	l := mustListing(t, st, seller.ID, models.ListingAvailable)
	o, _ := st.CreateOrder(ctx, models.Order{ListingID: l.ID, BuyerID: buyer.ID, SellerID: seller.ID, FinalPrice: 1, Status: models.OrderDraft})

	for _, name := range []string{"title.pdf", "bill-of-sale.pdf", "inspection.pdf"} {
		if _, err := st.AddDocument(ctx, o.ID, name, "s3://docs/"+name); err != nil {
			t.Fatalf("add document: %v", err)
		}
	}
	got, err := st.GetOrder(ctx, o.ID)
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if len(got.Documents) != 3 || got.Documents[0].Name != "title.pdf" || got.Documents[2].Name != "inspection.pdf" {
		t.Fatalf("unexpected documents %+v", got.Documents)
	}
}

func TestListListingsFilters(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	mustListing(t, st, seller.ID, models.ListingAvailable)
	mustListing(t, st, seller.ID, models.ListingPending)
	cheap, _ := st.CreateListing(ctx, models.Listing{Title: "Budget hatch", Price: 9000, SellerID: seller.ID, Status: models.ListingAvailable, Brand: "Fiat", FuelType: "Petrol"})

	items, total, err := st.ListListings(ctx, models.ListingQuery{Statuses: []models.ListingStatus{models.ListingAvailable}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 available, got total=%d len=%d", total, len(items))
	}
	max := 10000.0
	items, total, _ = st.ListListings(ctx, models.ListingQuery{MaxPrice: &max, Q: "HATCH", FuelType: "petrol"})
	if total != 1 || items[0].ID != cheap.ID {
		t.Fatalf("expected only the budget listing, got %+v", items)
	}
	counts, err := st.CountListingsByStatus(ctx, seller.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[models.ListingAvailable] != 2 || counts[models.ListingPending] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestAdminActionsFilter(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	admin := mustUser(t, st, "a@example.com", models.RoleAdmin)
	if err := st.InsertAdminAction(ctx, admin.ID, "approve_listing", "car-1", `{"decision":"approved"}`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := st.InsertAdminAction(ctx, admin.ID, "create_seller", "", ""); err != nil {
		t.Fatalf("insert: %v", err)
	}
	items, total, err := st.ListAdminActions(ctx, models.AdminActionQuery{ActionType: "approve_listing"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || items[0].AdminEmail != "a@example.com" || items[0].TargetID == nil || *items[0].TargetID != "car-1" {
		t.Fatalf("unexpected actions %+v", items)
	}
	_, total, _ = st.ListAdminActions(ctx, models.AdminActionQuery{From: time.Now().Add(time.Hour)})
	if total != 0 {
		t.Fatalf("expected no actions in the future, got %d", total)
	}
}

func TestConcurrentUploadsKeepCapAndSinglePrimary(t *testing.T) {
	st := newTestStore(t, 4)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	l := mustListing(t, st, seller.ID, models.ListingAvailable)

	errs := concurrentUploads(st, l.ID, 5, 3)
	ok := 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrImageLimit):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 3 {
		t.Fatalf("expected three batches to fit under the cap, got %d", ok)
	}
	imgs, _ := st.ListImages(ctx, l.ID)
	if len(imgs) != 9 {
		t.Fatalf("expected 9 images, got %d", len(imgs))
	}
	primaries := 0
	for _, img := range imgs {
		if img.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected one primary, got %d", primaries)
	}
}

func TestSecondPrimaryRejectedByIndex(t *testing.T) {
	st := newTestStore(t, 1)
	ctx := context.Background()
	seller := mustUser(t, st, "s@example.com", models.RoleSeller)
	l := mustListing(t, st, seller.ID, models.ListingAvailable)
	if _, err := st.AddImages(ctx, l.ID, []string{"/u/a.jpg"}, 10); err != nil {
		t.Fatalf("add image: %v", err)
	}
	now := time.Now().UTC()
	_, err := st.db.ExecContext(ctx, `INSERT INTO car_images(`+imageColumns+`) VALUES(?,?,?,?,?,?,?)`,
		"img-2", l.ID, "/u/b.jpg", true, 5, now, now)
	if !appdb.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation for a second primary, got %v", err)
	}
}

// concurrentUploads starts n AddImages batches of size each at once.
func concurrentUploads(st *Store, listingID string, n, size int) []error {
	errs := make([]error, n)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range errs {
		urls := make([]string, size)
		for j := range urls {
			urls[j] = fmt.Sprintf("/uploads/%d-%d.jpg", i, j)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, errs[i] = st.AddImages(context.Background(), listingID, urls, 10)
		}()
	}
	close(start)
	wg.Wait()
	return errs
}
