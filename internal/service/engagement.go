package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"carmarket/internal/apperr"
	"carmarket/internal/lifecycle"
	"carmarket/internal/models"
	"carmarket/internal/notify"
	"carmarket/internal/policy"
	"carmarket/internal/store"
)

type FavoriteToggle struct {
	Status    string   `json:"status"`
	Favorites []string `json:"favorites"`
}

// ToggleFavorite removes the pair when present and adds it otherwise. A
// concurrent add that loses the unique race still reports "added".
func (s *Service) ToggleFavorite(ctx context.Context, actor policy.Actor, listingID string) (FavoriteToggle, error) {
	l, err := s.loadListing(ctx, actor, listingID)
	if err != nil {
		return FavoriteToggle{}, err
	}
	removed, err := s.favorites.RemoveFavorite(ctx, actor.ID, l.ID)
	if err != nil {
		return FavoriteToggle{}, err
	}
	status := "removed"
	if !removed {
		status = "added"
		if err := s.favorites.AddFavorite(ctx, actor.ID, l.ID); err != nil && !errors.Is(err, store.ErrConflict) {
			return FavoriteToggle{}, err
		}
	}
	ids, err := s.favorites.ListFavoriteIDs(ctx, actor.ID)
	if err != nil {
		return FavoriteToggle{}, err
	}
	return FavoriteToggle{Status: status, Favorites: ids}, nil
}

func (s *Service) ListFavorites(ctx context.Context, actor policy.Actor) ([]string, error) {
	return s.favorites.ListFavoriteIDs(ctx, actor.ID)
}

type InquiryInput struct {
	ListingID     string  `json:"car_id"`
	Message       string  `json:"message"`
	Type          string  `json:"type"`
	RequestedDate *string `json:"requested_date"`
}

func (s *Service) CreateInquiry(ctx context.Context, actor policy.Actor, in InquiryInput) (models.Inquiry, error) {
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return models.Inquiry{}, apperr.Validation("message is required")
	}
	typ := models.InquiryType(strings.TrimSpace(in.Type))
	if typ == "" {
		typ = models.InquiryGeneral
	}
	if typ != models.InquiryGeneral && typ != models.InquiryTestDrive {
		return models.Inquiry{}, apperr.Validation("type must be general or test_drive")
	}
	requested, err := s.parseRequestedDate(in.RequestedDate)
	if err != nil {
		return models.Inquiry{}, err
	}
	l, err := s.loadListing(ctx, actor, in.ListingID)
	if err != nil {
		return models.Inquiry{}, err
	}
	if l.SellerID == actor.ID {
		return models.Inquiry{}, apperr.Validation("cannot inquire about your own listing")
	}
	inq, err := s.inquiries.CreateInquiry(ctx, models.Inquiry{
		ListingID:     l.ID,
		UserID:        actor.ID,
		SellerID:      l.SellerID,
		Message:       msg,
		Type:          typ,
		RequestedDate: requested,
	})
	if err != nil {
		return models.Inquiry{}, err
	}
	log.Printf("inquiry created id=%s car_id=%s user=%s type=%s", inq.ID, l.ID, actor.ID, typ)

	data := map[string]string{"car": strings.TrimSpace(l.Brand + " " + l.Model), "title": l.Title, "type": string(typ)}
	if requested != nil {
		data["requested_date"] = *requested
	}
	s.notifier.Publish(notify.Event{
		Type:      notify.EventInquiryCreated,
		ListingID: l.ID,
		InquiryID: inq.ID,
		ActorID:   actor.ID,
		Recipient: s.userEmail(ctx, l.SellerID),
		Summary:   msg,
		Data:      data,
	})
	return inq, nil
}

func (s *Service) parseRequestedDate(v *string) (*string, error) {
	if v == nil || strings.TrimSpace(*v) == "" {
		return nil, nil
	}
	raw := strings.TrimSpace(*v)
	d, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return nil, apperr.Validation("requested_date must be YYYY-MM-DD")
	}
	today := s.now().Truncate(24 * time.Hour)
	if d.Before(today) {
		return nil, apperr.Validation("requested_date must not be in the past")
	}
	out := d.Format(time.DateOnly)
	return &out, nil
}

func (s *Service) ListMyInquiries(ctx context.Context, actor policy.Actor, page Page) ([]models.Inquiry, int, error) {
	return s.inquiries.ListInquiries(ctx, models.InquiryQuery{UserID: actor.ID, Limit: page.Limit, Offset: page.Offset})
}

func (s *Service) ListSellerInquiries(ctx context.Context, actor policy.Actor, query models.InquiryQuery) ([]models.Inquiry, int, error) {
	if !policy.RequireSellerConsole(actor) {
		return nil, 0, apperr.Forbidden("seller role required")
	}
	query.UserID = ""
	if !actor.IsAdmin() {
		query.SellerID = actor.ID
	}
	return s.inquiries.ListInquiries(ctx, query)
}

func (s *Service) UpdateInquiryStatus(ctx context.Context, actor policy.Actor, id string, to models.InquiryStatus) (models.Inquiry, error) {
	switch to {
	case models.InquiryOpen, models.InquiryResponded, models.InquiryClosed:
	default:
		return models.Inquiry{}, apperr.Validation("status must be open, responded or closed")
	}
	inq, err := s.inquiries.GetInquiry(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Inquiry{}, apperr.NotFound("inquiry not found")
	}
	if err != nil {
		return models.Inquiry{}, err
	}
	if !policy.CanMutate(actor, policy.InquirySellerSide(inq)) {
		return models.Inquiry{}, apperr.Forbidden("not allowed to modify this inquiry")
	}
	if !lifecycle.CanTransitionInquiry(inq.Status, to) {
		return models.Inquiry{}, apperr.Conflict(fmt.Sprintf("cannot move inquiry from %s to %s", inq.Status, to))
	}
	if err := s.inquiries.SetInquiryStatus(ctx, inq.ID, inq.Status, to); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return models.Inquiry{}, apperr.Conflict("inquiry changed, reload and retry")
		}
		return models.Inquiry{}, err
	}
	return s.inquiries.GetInquiry(ctx, inq.ID)
}

type ReviewInput struct {
	ListingID string `json:"car_id"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
}

type ReviewList struct {
	Reviews       []models.Review `json:"reviews"`
	AverageRating float64         `json:"average_rating"`
	Count         int             `json:"count"`
}

func (s *Service) CreateReview(ctx context.Context, actor policy.Actor, in ReviewInput) (models.Review, error) {
	if in.Rating < 1 || in.Rating > 5 {
		return models.Review{}, apperr.Validation("rating must be between 1 and 5")
	}
	comment := strings.TrimSpace(in.Comment)
	if comment == "" {
		return models.Review{}, apperr.Validation("comment is required")
	}
	l, err := s.loadListing(ctx, actor, in.ListingID)
	if err != nil {
		return models.Review{}, err
	}
	u, err := s.users.GetUserByID(ctx, actor.ID)
	if err != nil {
		return models.Review{}, err
	}
	name := u.Name
	if name == "" {
		name = u.Email
	}
	return s.reviews.CreateReview(ctx, models.Review{
		ListingID: l.ID,
		UserID:    u.ID,
		UserName:  name,
		Rating:    in.Rating,
		Comment:   comment,
	})
}

func (s *Service) ListReviews(ctx context.Context, actor policy.Actor, listingID string) (ReviewList, error) {
	l, err := s.loadListing(ctx, actor, listingID)
	if err != nil {
		return ReviewList{}, err
	}
	items, err := s.reviews.ListReviews(ctx, l.ID)
	if err != nil {
		return ReviewList{}, err
	}
	out := ReviewList{Reviews: items, Count: len(items)}
	if len(items) > 0 {
		sum := 0
		for _, r := range items {
			sum += r.Rating
		}
		out.AverageRating = float64(sum) / float64(len(items))
	}
	return out, nil
}
