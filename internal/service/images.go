package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"carmarket/internal/apperr"
	"carmarket/internal/imaging"
	"carmarket/internal/models"
	"carmarket/internal/policy"
	"carmarket/internal/store"
)

const maxFilesPerUpload = 10

type UploadFile struct {
	Name string
	Data []byte
}

type ImagePatchInput struct {
	IsPrimary    *bool `json:"is_primary"`
	DisplayOrder *int  `json:"display_order"`
}

func (s *Service) editableListing(ctx context.Context, actor policy.Actor, id string) (models.Listing, error) {
	l, err := s.loadOwnedListing(ctx, actor, id)
	if err != nil {
		return models.Listing{}, err
	}
	if l.Status.Terminal() && !actor.IsAdmin() {
		return models.Listing{}, apperr.Conflict("listing is no longer editable")
	}
	return l, nil
}

func (s *Service) UploadImages(ctx context.Context, actor policy.Actor, listingID string, files []UploadFile) ([]models.ListingImage, error) {
	if len(files) == 0 {
		return nil, apperr.Validation("no images uploaded")
	}
	if len(files) > maxFilesPerUpload {
		return nil, apperr.Validation(fmt.Sprintf("at most %d images per upload", maxFilesPerUpload))
	}
	l, err := s.editableListing(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	existing, err := s.images.ListImages(ctx, l.ID)
	if err != nil {
		return nil, err
	}
	if len(existing)+len(files) > s.cfg.MaxImagesPerListing {
		return nil, apperr.Validation("maximum images exceeded")
	}

	processed := make([][]byte, 0, len(files))
	for _, f := range files {
		if int64(len(f.Data)) > s.cfg.MaxImageBytes {
			return nil, apperr.Validation(fmt.Sprintf("%s: image file too large", f.Name))
		}
		out, err := s.processor.Process(f.Data)
		if err != nil {
			return nil, imageError(f.Name, err)
		}
		processed = append(processed, out)
	}

	urls := make([]string, 0, len(processed))
	for _, data := range processed {
		u, err := s.media.Save("car-"+l.ID, ".jpg", data)
		if err != nil {
			s.removeURLs(urls)
			return nil, err
		}
		urls = append(urls, u)
	}
	imgs, err := s.images.AddImages(ctx, l.ID, urls, s.cfg.MaxImagesPerListing)
	if err != nil {
		s.removeURLs(urls)
		if errors.Is(err, store.ErrImageLimit) {
			return nil, apperr.Validation("maximum images exceeded")
		}
		return nil, err
	}
	log.Printf("listing images uploaded car_id=%s count=%d actor=%s", l.ID, len(imgs), actor.ID)
	return imgs, nil
}

func imageError(name string, err error) error {
	switch {
	case errors.Is(err, imaging.ErrUnsupportedType),
		errors.Is(err, imaging.ErrTooLarge),
		errors.Is(err, imaging.ErrDimensions),
		errors.Is(err, imaging.ErrCorrupt):
		return apperr.Validation(fmt.Sprintf("%s: %v", name, err))
	}
	return err
}

func (s *Service) ListImages(ctx context.Context, actor policy.Actor, listingID string) ([]models.ListingImage, error) {
	l, err := s.loadListing(ctx, actor, listingID)
	if err != nil {
		return nil, err
	}
	return s.images.ListImages(ctx, l.ID)
}

func (s *Service) ownedImage(ctx context.Context, actor policy.Actor, listingID, imageID string) (models.ListingImage, error) {
	if _, err := s.editableListing(ctx, actor, listingID); err != nil {
		return models.ListingImage{}, err
	}
	img, err := s.images.GetImage(ctx, imageID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && img.ListingID != listingID) {
		return models.ListingImage{}, apperr.NotFound("image not found")
	}
	return img, err
}

func (s *Service) UpdateImage(ctx context.Context, actor policy.Actor, listingID, imageID string, in ImagePatchInput) (models.ListingImage, error) {
	if in.DisplayOrder != nil && *in.DisplayOrder < 0 {
		return models.ListingImage{}, apperr.Validation("display_order must not be negative")
	}
	if _, err := s.ownedImage(ctx, actor, listingID, imageID); err != nil {
		return models.ListingImage{}, err
	}
	img, err := s.images.UpdateImage(ctx, imageID, store.ImagePatch{IsPrimary: in.IsPrimary, DisplayOrder: in.DisplayOrder})
	if errors.Is(err, store.ErrNotFound) {
		return models.ListingImage{}, apperr.NotFound("image not found")
	}
	return img, err
}

func (s *Service) DeleteImage(ctx context.Context, actor policy.Actor, listingID, imageID string) error {
	if _, err := s.ownedImage(ctx, actor, listingID, imageID); err != nil {
		return err
	}
	img, err := s.images.DeleteImage(ctx, imageID)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("image not found")
	}
	if err != nil {
		return err
	}
	s.removeFiles([]models.ListingImage{img})
	return nil
}

func (s *Service) removeFiles(imgs []models.ListingImage) {
	urls := make([]string, 0, len(imgs))
	for _, img := range imgs {
		urls = append(urls, img.ImageURL)
	}
	s.removeURLs(urls)
}

func (s *Service) removeURLs(urls []string) {
	if s.media == nil {
		return
	}
	for _, u := range urls {
		if err := s.media.Remove(u); err != nil {
			log.Printf("image file remove failed url=%s err=%v", u, err)
		}
	}
}
