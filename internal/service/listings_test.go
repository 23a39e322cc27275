package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"carmarket/internal/apperr"
	"carmarket/internal/models"
	"carmarket/internal/policy"
)

func TestListingVisibilityAndApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	buyer := f.actor(t, "buyer@example.com", models.RoleUser)

	_, err := f.svc.CreateListing(ctx, buyer, ListingInput{Title: strp("x"), Price: floatp(1)})
	assertKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.CreateListing(ctx, seller, ListingInput{Title: strp("x"), Price: floatp(0)})
	assertKind(t, err, apperr.ErrValidation)

	l, err := f.svc.CreateListing(ctx, seller, ListingInput{Title: strp("Pending car"), Price: floatp(12000)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != models.ListingPending {
		t.Fatalf("expected pending, got %s", l.Status)
	}
	_, err = f.svc.GetListing(ctx, buyer, l.ID)
	assertKind(t, err, apperr.ErrNotFound)
	_, err = f.svc.GetListing(ctx, policy.Actor{}, l.ID)
	assertKind(t, err, apperr.ErrNotFound)
	if _, err := f.svc.GetListing(ctx, seller, l.ID); err != nil {
		t.Fatalf("owner should see pending listing: %v", err)
	}
	public, total, err := f.svc.ListListings(ctx, policy.Actor{}, models.ListingQuery{})
	if err != nil || total != 0 || len(public) != 0 {
		t.Fatalf("pending listing leaked into catalogue: %v %d", err, total)
	}
	own, total, err := f.svc.ListListings(ctx, seller, models.ListingQuery{SellerID: seller.ID})
	if err != nil || total != 1 || own[0].ID != l.ID {
		t.Fatalf("own inventory: %v %d", err, total)
	}
	_, total, _ = f.svc.ListListings(ctx, buyer, models.ListingQuery{Statuses: []models.ListingStatus{models.ListingPending}})
	if total != 0 {
		t.Fatalf("pending filter must be ignored for buyers, got %d", total)
	}

	_, err = f.svc.ApproveOrReject(ctx, seller, l.ID, DecisionApproved, "")
	assertKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.ApproveOrReject(ctx, f.admin, l.ID, "maybe", "")
	assertKind(t, err, apperr.ErrValidation)
	approved, err := f.svc.ApproveOrReject(ctx, f.admin, l.ID, DecisionApproved, "")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if approved.Status != models.ListingAvailable {
		t.Fatalf("expected available, got %s", approved.Status)
	}
	_, err = f.svc.ApproveOrReject(ctx, f.admin, l.ID, DecisionRejected, "late")
	assertKind(t, err, apperr.ErrConflict)

	public, total, err = f.svc.ListListings(ctx, policy.Actor{}, models.ListingQuery{})
	if err != nil || total != 1 || public[0].ID != l.ID {
		t.Fatalf("approved listing missing from catalogue: %v %d", err, total)
	}
	actions, _, err := f.svc.ListAdminActions(ctx, f.admin, models.AdminActionQuery{})
	if err != nil || len(actions) != 1 || actions[0].ActionType != ActionApproveListing {
		t.Fatalf("unexpected admin actions %v %+v", err, actions)
	}
}

func TestRejectKeepsReason(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	l, err := f.svc.CreateListing(ctx, seller, ListingInput{Title: strp("Blurry"), Price: floatp(900)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	rejected, err := f.svc.ApproveOrReject(ctx, f.admin, l.ID, DecisionRejected, "photos unclear")
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if rejected.Status != models.ListingRejected || rejected.RejectionReason == nil || *rejected.RejectionReason != "photos unclear" {
		t.Fatalf("unexpected rejected listing %+v", rejected)
	}
	_, err = f.svc.UpdateListing(ctx, seller, l.ID, ListingInput{Title: strp("Sharper")})
	assertKind(t, err, apperr.ErrConflict)
}

func TestListingsWithoutApproval(t *testing.T) {
	cfg := testConfig()
	cfg.ListingApprovalRequired = false
	f := newFixtureWith(t, cfg)
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	l, err := f.svc.CreateListing(context.Background(), seller, ListingInput{Title: strp("Direct"), Price: floatp(100)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if l.Status != models.ListingAvailable {
		t.Fatalf("expected available, got %s", l.Status)
	}
	_, err = f.svc.ApproveOrReject(context.Background(), f.admin, l.ID, DecisionRejected, "too late")
	assertKind(t, err, apperr.ErrConflict)
}

func TestListingOwnership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.actor(t, "a@example.com", models.RoleSeller)
	b := f.actor(t, "b@example.com", models.RoleSeller)
	l := f.approvedListing(t, a, "Owned", 5000)

	_, err := f.svc.UpdateListing(ctx, b, l.ID, ListingInput{Price: floatp(1)})
	assertKind(t, err, apperr.ErrForbidden)
	err = f.svc.DeleteListing(ctx, b, l.ID)
	assertKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.UpdateListing(ctx, a, "does-not-exist", ListingInput{Price: floatp(1)})
	assertKind(t, err, apperr.ErrNotFound)

	updated, err := f.svc.UpdateListing(ctx, a, l.ID, ListingInput{Price: floatp(4999.999), Description: strp("  one owner ")})
	if err != nil {
		t.Fatalf("owner update: %v", err)
	}
	if updated.Price != 5000 || updated.Description != "one owner" || updated.Title != "Owned" {
		t.Fatalf("unexpected update %+v", updated)
	}
	year := 1700
	_, err = f.svc.UpdateListing(ctx, a, l.ID, ListingInput{Year: &year})
	assertKind(t, err, apperr.ErrValidation)

	if _, err := f.svc.UpdateListing(ctx, f.admin, l.ID, ListingInput{Title: strp("Admin edit")}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if err := f.svc.DeleteListing(ctx, f.admin, l.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
	_, err = f.svc.GetListing(ctx, a, l.ID)
	assertKind(t, err, apperr.ErrNotFound)
}

func TestDeleteListingWithOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	buyer := f.actor(t, "buyer@example.com", models.RoleUser)
	l := f.approvedListing(t, seller, "Ordered", 700)
	if _, err := f.svc.Checkout(ctx, buyer, l.ID); err != nil {
		t.Fatalf("checkout: %v", err)
	}
	err := f.svc.DeleteListing(ctx, seller, l.ID)
	assertKind(t, err, apperr.ErrConflict)
	if apperr.Message(err) != "listing has orders" {
		t.Fatalf("unexpected message %q", apperr.Message(err))
	}
}

func TestReserveTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	l := f.approvedListing(t, seller, "Reservable", 700)
	r, err := f.svc.ReserveListing(ctx, seller, l.ID)
	if err != nil || r.Status != models.ListingReserved {
		t.Fatalf("reserve: %v %+v", err, r)
	}
	_, err = f.svc.ReserveListing(ctx, seller, l.ID)
	assertKind(t, err, apperr.ErrConflict)
}

func pngBytes(n int) []byte {
	return []byte(fmt.Sprintf("\x89PNG\r\n\x1a\nfake-%d", n))
}

func TestUploadImages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	other := f.actor(t, "other@example.com", models.RoleSeller)
	l := f.approvedListing(t, seller, "Photogenic", 3000)

	files := make([]UploadFile, 0, 10)
	for i := 0; i < 10; i++ {
		files = append(files, UploadFile{Name: fmt.Sprintf("%d.png", i), Data: pngBytes(i)})
	}
	_, err := f.svc.UploadImages(ctx, other, l.ID, files[:1])
	assertKind(t, err, apperr.ErrForbidden)
	_, err = f.svc.UploadImages(ctx, seller, l.ID, nil)
	assertKind(t, err, apperr.ErrValidation)

	imgs, err := f.svc.UploadImages(ctx, seller, l.ID, files)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if len(imgs) != 10 || !imgs[0].IsPrimary || imgs[1].IsPrimary || imgs[9].DisplayOrder != 9 {
		t.Fatalf("unexpected images %+v", imgs)
	}
	if f.media.count() != 10 {
		t.Fatalf("expected 10 stored files, got %d", f.media.count())
	}

	_, err = f.svc.UploadImages(ctx, seller, l.ID, []UploadFile{{Name: "11.png", Data: pngBytes(11)}})
	assertKind(t, err, apperr.ErrValidation)
	if apperr.Message(err) != "maximum images exceeded" {
		t.Fatalf("unexpected message %q", apperr.Message(err))
	}
	if f.media.count() != 10 {
		t.Fatalf("rejected upload left files behind: %d", f.media.count())
	}

	second := imgs[1]
	primary := true
	updated, err := f.svc.UpdateImage(ctx, seller, l.ID, second.ID, ImagePatchInput{IsPrimary: &primary})
	if err != nil || !updated.IsPrimary {
		t.Fatalf("set primary: %v %+v", err, updated)
	}
	listed, err := f.svc.ListImages(ctx, seller, l.ID)
	if err != nil {
		t.Fatalf("list images: %v", err)
	}
	primaries := 0
	for _, img := range listed {
		if img.IsPrimary {
			primaries++
		}
	}
	if primaries != 1 {
		t.Fatalf("expected one primary image, got %d", primaries)
	}

	if err := f.svc.DeleteImage(ctx, seller, l.ID, second.ID); err != nil {
		t.Fatalf("delete image: %v", err)
	}
	listed, _ = f.svc.ListImages(ctx, seller, l.ID)
	if len(listed) != 9 || !listed[0].IsPrimary {
		t.Fatalf("expected promoted primary among 9 images, got %+v", listed)
	}
	if f.media.count() != 9 {
		t.Fatalf("expected file removed, got %d", f.media.count())
	}
	err = f.svc.DeleteImage(ctx, seller, l.ID, second.ID)
	assertKind(t, err, apperr.ErrNotFound)
}

func TestUploadRejectsOversizedFile(t *testing.T) {
	cfg := testConfig()
	cfg.MaxImageBytes = 8
	f := newFixtureWith(t, cfg)
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	l := f.approvedListing(t, seller, "Big", 3000)
	_, err := f.svc.UploadImages(context.Background(), seller, l.ID, []UploadFile{{Name: "big.png", Data: pngBytes(1)}})
	assertKind(t, err, apperr.ErrValidation)
	if f.media.count() != 0 {
		t.Fatalf("expected no stored files, got %d", f.media.count())
	}
}

func TestSoldListingIsFrozen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	buyer := f.actor(t, "buyer@example.com", models.RoleUser)
	l := f.approvedListing(t, seller, "Sold soon", 3000)
	o, err := f.svc.Checkout(ctx, buyer, l.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := f.svc.ConfirmPayment(ctx, buyer, o.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	_, err = f.svc.UpdateListing(ctx, seller, l.ID, ListingInput{Price: floatp(1)})
	assertKind(t, err, apperr.ErrConflict)
	_, err = f.svc.UploadImages(ctx, seller, l.ID, []UploadFile{{Name: "a.png", Data: pngBytes(1)}})
	assertKind(t, err, apperr.ErrConflict)
	_, err = f.svc.ReserveListing(ctx, seller, l.ID)
	assertKind(t, err, apperr.ErrConflict)
}

func TestFavoritesToggle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	buyer := f.actor(t, "buyer@example.com", models.RoleUser)
	l := f.approvedListing(t, seller, "Liked", 3000)

	res, err := f.svc.ToggleFavorite(ctx, buyer, l.ID)
	if err != nil || res.Status != "added" || len(res.Favorites) != 1 || res.Favorites[0] != l.ID {
		t.Fatalf("first toggle: %v %+v", err, res)
	}
	res, err = f.svc.ToggleFavorite(ctx, buyer, l.ID)
	if err != nil || res.Status != "removed" || len(res.Favorites) != 0 {
		t.Fatalf("second toggle: %v %+v", err, res)
	}
	_, err = f.svc.ToggleFavorite(ctx, buyer, "missing")
	assertKind(t, err, apperr.ErrNotFound)
}

func TestInquiries(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	buyer := f.actor(t, "buyer@example.com", models.RoleUser)
	l := f.approvedListing(t, seller, "Test drive me", 3000)

	_, err := f.svc.CreateInquiry(ctx, seller, InquiryInput{ListingID: l.ID, Message: "mine"})
	assertKind(t, err, apperr.ErrValidation)
	past := time.Now().UTC().AddDate(0, 0, -2).Format(time.DateOnly)
	_, err = f.svc.CreateInquiry(ctx, buyer, InquiryInput{ListingID: l.ID, Message: "hi", Type: "test_drive", RequestedDate: &past})
	assertKind(t, err, apperr.ErrValidation)
	bad := "15/01/2030"
	_, err = f.svc.CreateInquiry(ctx, buyer, InquiryInput{ListingID: l.ID, Message: "hi", RequestedDate: &bad})
	assertKind(t, err, apperr.ErrValidation)
	_, err = f.svc.CreateInquiry(ctx, buyer, InquiryInput{ListingID: l.ID, Message: "hi", Type: "haggle"})
	assertKind(t, err, apperr.ErrValidation)

	future := time.Now().UTC().AddDate(0, 0, 3).Format(time.DateOnly)
	inq, err := f.svc.CreateInquiry(ctx, buyer, InquiryInput{ListingID: l.ID, Message: "Saturday?", Type: "test_drive", RequestedDate: &future})
	if err != nil {
		t.Fatalf("create inquiry: %v", err)
	}
	if inq.Status != models.InquiryOpen || inq.SellerID != seller.ID || inq.RequestedDate == nil || *inq.RequestedDate != future {
		t.Fatalf("unexpected inquiry %+v", inq)
	}
	events := f.notes.ofType("inquiry.created")
	if len(events) != 1 || events[0].Recipient != "seller@example.com" || events[0].InquiryID != inq.ID {
		t.Fatalf("unexpected inquiry events %+v", events)
	}

	_, err = f.svc.UpdateInquiryStatus(ctx, buyer, inq.ID, models.InquiryResponded)
	assertKind(t, err, apperr.ErrForbidden)
	got, err := f.svc.UpdateInquiryStatus(ctx, seller, inq.ID, models.InquiryResponded)
	if err != nil || got.Status != models.InquiryResponded {
		t.Fatalf("respond: %v %+v", err, got)
	}
	_, err = f.svc.UpdateInquiryStatus(ctx, seller, inq.ID, models.InquiryOpen)
	assertKind(t, err, apperr.ErrConflict)
	if _, err := f.svc.UpdateInquiryStatus(ctx, seller, inq.ID, models.InquiryClosed); err != nil {
		t.Fatalf("close: %v", err)
	}

	mine, total, err := f.svc.ListMyInquiries(ctx, buyer, Page{})
	if err != nil || total != 1 || mine[0].ID != inq.ID {
		t.Fatalf("my inquiries: %v %d", err, total)
	}
	theirs, total, err := f.svc.ListSellerInquiries(ctx, seller, models.InquiryQuery{})
	if err != nil || total != 1 || theirs[0].Status != models.InquiryClosed {
		t.Fatalf("seller inquiries: %v %d", err, total)
	}
}

func TestReviews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	buyer := f.actor(t, "buyer@example.com", models.RoleUser)
	l := f.approvedListing(t, seller, "Reviewed", 3000)

	for _, rating := range []int{0, 6} {
		_, err := f.svc.CreateReview(ctx, buyer, ReviewInput{ListingID: l.ID, Rating: rating, Comment: "meh"})
		assertKind(t, err, apperr.ErrValidation)
	}
	list, err := f.svc.ListReviews(ctx, policy.Actor{}, l.ID)
	if err != nil || list.Count != 0 {
		t.Fatalf("invalid reviews were stored: %v %+v", err, list)
	}

	if _, err := f.svc.CreateReview(ctx, buyer, ReviewInput{ListingID: l.ID, Rating: 5, Comment: "great"}); err != nil {
		t.Fatalf("review: %v", err)
	}
	if _, err := f.svc.CreateReview(ctx, seller, ReviewInput{ListingID: l.ID, Rating: 2, Comment: "biased"}); err != nil {
		t.Fatalf("review: %v", err)
	}
	list, err = f.svc.ListReviews(ctx, policy.Actor{}, l.ID)
	if err != nil || list.Count != 2 || list.AverageRating != 3.5 {
		t.Fatalf("unexpected review list %v %+v", err, list)
	}
	if list.Reviews[0].UserName == "" {
		t.Fatalf("expected reviewer name, got %+v", list.Reviews[0])
	}
}

func TestSellerReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seller := f.actor(t, "seller@example.com", models.RoleSeller)
	buyer := f.actor(t, "buyer@example.com", models.RoleUser)
	sold := f.approvedListing(t, seller, "Sold", 185000)
	f.approvedListing(t, seller, "Still here", 1000)

	o, err := f.svc.Checkout(ctx, buyer, sold.ID)
	if err != nil {
		t.Fatalf("checkout: %v", err)
	}
	if _, err := f.svc.ConfirmPayment(ctx, buyer, o.ID); err != nil {
		t.Fatalf("pay: %v", err)
	}
	if _, err := f.svc.CreateInquiry(ctx, buyer, InquiryInput{ListingID: sold.ID, Message: "papers?"}); err != nil {
		t.Fatalf("inquiry: %v", err)
	}

	_, err = f.svc.SellerReport(ctx, buyer)
	assertKind(t, err, apperr.ErrForbidden)
	rep, err := f.svc.SellerReport(ctx, seller)
	if err != nil {
		t.Fatalf("report: %v", err)
	}
	if rep.TotalRevenue != 185000 || rep.TotalSales != 1 || rep.OpenInquiries != 1 {
		t.Fatalf("unexpected totals %+v", rep)
	}
	if rep.ListingsByStatus[models.ListingSold] != 1 || rep.ListingsByStatus[models.ListingAvailable] != 1 {
		t.Fatalf("unexpected status counts %+v", rep.ListingsByStatus)
	}
	if len(rep.Weekly) != reportWeeks {
		t.Fatalf("expected %d weekly buckets, got %d", reportWeeks, len(rep.Weekly))
	}
	last := rep.Weekly[len(rep.Weekly)-1]
	if last.Week != weekKey(time.Now().UTC()) || last.Sales != 1 || last.Revenue != 185000 {
		t.Fatalf("unexpected current week bucket %+v", last)
	}

	_, err = f.svc.SalesReport(ctx, seller)
	assertKind(t, err, apperr.ErrForbidden)
	sales, err := f.svc.SalesReport(ctx, f.admin)
	if err != nil {
		t.Fatalf("sales report: %v", err)
	}
	if sales.TotalSales != 1 || len(sales.SellerPerformance) != 1 || sales.SellerPerformance[0].SellerID != seller.ID || len(sales.RecentTransactions) != 1 {
		t.Fatalf("unexpected sales report %+v", sales)
	}
}

func TestLastISOWeeks(t *testing.T) {
	// Thursday 2026-01-01 is in ISO week 2026-W01.
	now := time.Date(2026, 1, 1, 15, 0, 0, 0, time.UTC)
	weeks := lastISOWeeks(now, 8)
	if len(weeks) != 8 {
		t.Fatalf("expected 8 weeks, got %d", len(weeks))
	}
	if weeks[7].key != "2026-W01" || weeks[6].key != "2025-W52" || weeks[0].key != "2025-W46" {
		t.Fatalf("unexpected keys %v %v %v", weeks[0].key, weeks[6].key, weeks[7].key)
	}
	if weeks[7].start != time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("unexpected week start %v", weeks[7].start)
	}
}
