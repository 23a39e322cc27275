package service

import (
	"context"
	"errors"
	"log"
	"math"
	"strings"

	"carmarket/internal/apperr"
	"carmarket/internal/lifecycle"
	"carmarket/internal/models"
	"carmarket/internal/policy"
	"carmarket/internal/store"
)

const minListingYear = 1886

type ListingInput struct {
	Title       *string  `json:"title"`
	Price       *float64 `json:"price"`
	Description *string  `json:"description"`
	Brand       *string  `json:"brand"`
	Model       *string  `json:"model"`
	Year        *int     `json:"year"`
	FuelType    *string  `json:"fuel_type"`
}

type ListingView struct {
	models.Listing
	Images []models.ListingImage `json:"images"`
}

func (s *Service) CreateListing(ctx context.Context, actor policy.Actor, in ListingInput) (models.Listing, error) {
	if !policy.CanCreateListing(actor) {
		return models.Listing{}, apperr.Forbidden("only sellers can create listings")
	}
	if in.Title == nil || in.Price == nil {
		return models.Listing{}, apperr.Validation("title and price are required")
	}
	l := models.Listing{SellerID: actor.ID, Status: models.ListingAvailable}
	if s.cfg.ListingApprovalRequired {
		l.Status = models.ListingPending
	}
	if err := s.applyListingInput(&l, in); err != nil {
		return models.Listing{}, err
	}
	created, err := s.listings.CreateListing(ctx, l)
	if err != nil {
		return models.Listing{}, err
	}
	log.Printf("listing created id=%s seller=%s status=%s", created.ID, created.SellerID, created.Status)
	return created, nil
}

func (s *Service) applyListingInput(l *models.Listing, in ListingInput) error {
	if in.Title != nil {
		l.Title = strings.TrimSpace(*in.Title)
		if l.Title == "" {
			return apperr.Validation("title is required")
		}
	}
	if in.Price != nil {
		p := math.Round(*in.Price*100) / 100
		if p <= 0 || math.IsNaN(p) || math.IsInf(p, 0) {
			return apperr.Validation("price must be greater than 0")
		}
		l.Price = p
	}
	if in.Description != nil {
		l.Description = strings.TrimSpace(*in.Description)
	}
	if in.Brand != nil {
		l.Brand = strings.TrimSpace(*in.Brand)
	}
	if in.Model != nil {
		l.Model = strings.TrimSpace(*in.Model)
	}
	if in.Year != nil {
		y := *in.Year
		if y < minListingYear || y > s.now().Year()+1 {
			return apperr.Validation("year is out of range")
		}
		l.Year = &y
	}
	if in.FuelType != nil {
		l.FuelType = strings.ToLower(strings.TrimSpace(*in.FuelType))
	}
	return nil
}

func (s *Service) loadListing(ctx context.Context, actor policy.Actor, id string) (models.Listing, error) {
	l, err := s.listings.GetListing(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Listing{}, apperr.NotFound("car not found")
	}
	if err != nil {
		return models.Listing{}, err
	}
	if !policy.CanViewListing(actor, l) {
		return models.Listing{}, apperr.NotFound("car not found")
	}
	return l, nil
}

func (s *Service) loadOwnedListing(ctx context.Context, actor policy.Actor, id string) (models.Listing, error) {
	l, err := s.loadListing(ctx, actor, id)
	if err != nil {
		return models.Listing{}, err
	}
	if !policy.CanMutate(actor, policy.ListingResource(l)) {
		return models.Listing{}, apperr.Forbidden("not allowed to modify this listing")
	}
	return l, nil
}

func (s *Service) GetListing(ctx context.Context, actor policy.Actor, id string) (ListingView, error) {
	l, err := s.loadListing(ctx, actor, id)
	if err != nil {
		return ListingView{}, err
	}
	imgs, err := s.images.ListImages(ctx, l.ID)
	if err != nil {
		return ListingView{}, err
	}
	return ListingView{Listing: l, Images: imgs}, nil
}

func (s *Service) ListListings(ctx context.Context, actor policy.Actor, query models.ListingQuery) ([]ListingView, int, error) {
	ownInventory := query.SellerID != "" && query.SellerID == actor.ID
	if !actor.IsAdmin() && !ownInventory {
		statuses, ok := visibleSubset(query.Statuses)
		if !ok {
			return []ListingView{}, 0, nil
		}
		query.Statuses = statuses
	}
	items, total, err := s.listings.ListListings(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ListingView, 0, len(items))
	for _, l := range items {
		imgs, err := s.images.ListImages(ctx, l.ID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ListingView{Listing: l, Images: imgs})
	}
	return out, total, nil
}

func visibleSubset(requested []models.ListingStatus) ([]models.ListingStatus, bool) {
	if len(requested) == 0 {
		return lifecycle.VisibleStatuses(), true
	}
	out := make([]models.ListingStatus, 0, len(requested))
	for _, st := range requested {
		if lifecycle.Visible(st) {
			out = append(out, st)
		}
	}
	return out, len(out) > 0
}

func (s *Service) UpdateListing(ctx context.Context, actor policy.Actor, id string, in ListingInput) (models.Listing, error) {
	l, err := s.loadOwnedListing(ctx, actor, id)
	if err != nil {
		return models.Listing{}, err
	}
	if l.Status.Terminal() && !actor.IsAdmin() {
		return models.Listing{}, apperr.Conflict("listing is no longer editable")
	}
	if err := s.applyListingInput(&l, in); err != nil {
		return models.Listing{}, err
	}
	updated, err := s.listings.UpdateListingDetails(ctx, l)
	if errors.Is(err, store.ErrConflict) {
		return models.Listing{}, apperr.Conflict("listing changed, reload and retry")
	}
	if err != nil {
		return models.Listing{}, err
	}
	log.Printf("listing updated id=%s actor=%s", updated.ID, actor.ID)
	return updated, nil
}

func (s *Service) DeleteListing(ctx context.Context, actor policy.Actor, id string) error {
	l, err := s.loadOwnedListing(ctx, actor, id)
	if err != nil {
		return err
	}
	if !lifecycle.Deletable(l.Status) && !actor.IsAdmin() {
		return apperr.Conflict("listing can no longer be deleted")
	}
	imgs, err := s.images.ListImages(ctx, l.ID)
	if err != nil {
		return err
	}
	switch err := s.listings.DeleteListing(ctx, l.ID); {
	case errors.Is(err, store.ErrHasOrders):
		return apperr.Conflict("listing has orders")
	case errors.Is(err, store.ErrNotFound):
		return apperr.NotFound("car not found")
	case err != nil:
		return err
	}
	s.removeFiles(imgs)
	log.Printf("listing deleted id=%s actor=%s", l.ID, actor.ID)
	return nil
}

func (s *Service) ReserveListing(ctx context.Context, actor policy.Actor, id string) (models.Listing, error) {
	l, err := s.loadOwnedListing(ctx, actor, id)
	if err != nil {
		return models.Listing{}, err
	}
	return s.transitionListing(ctx, actor, l, models.ListingReserved, nil, "invalid listing status transition")
}

func (s *Service) transitionListing(ctx context.Context, actor policy.Actor, l models.Listing, to models.ListingStatus, reason *string, staleMsg string) (models.Listing, error) {
	trigger, ok := lifecycle.ListingTrigger(l.Status, to)
	switch {
	case !ok || trigger == lifecycle.BySale:
		return models.Listing{}, apperr.Conflict(staleMsg)
	case trigger == lifecycle.ByAdmin && !actor.IsAdmin():
		return models.Listing{}, apperr.Forbidden("admin role required")
	case trigger == lifecycle.ByOwner && !policy.CanMutate(actor, policy.ListingResource(l)):
		return models.Listing{}, apperr.Forbidden("not allowed to modify this listing")
	}
	err := s.listings.SetListingStatus(ctx, l.ID, []models.ListingStatus{l.Status}, to, reason)
	if errors.Is(err, store.ErrConflict) {
		return models.Listing{}, apperr.Conflict(staleMsg)
	}
	if err != nil {
		return models.Listing{}, err
	}
	updated, err := s.listings.GetListing(ctx, l.ID)
	if err != nil {
		return models.Listing{}, err
	}
	log.Printf("listing status changed id=%s from=%s to=%s actor=%s", l.ID, l.Status, to, actor.ID)
	return updated, nil
}
