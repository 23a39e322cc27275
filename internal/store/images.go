package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"carmarket/internal/models"
)

const imageColumns = `id,car_id,image_url,is_primary,display_order,created_at,updated_at`

func scanImage(row scanner) (models.ListingImage, error) {
	var img models.ListingImage
	err := row.Scan(&img.ID, &img.ListingID, &img.ImageURL, &img.IsPrimary, &img.DisplayOrder, &img.CreatedAt, &img.UpdatedAt)
	return img, err
}

func (s *Store) ListImages(ctx context.Context, listingID string) ([]models.ListingImage, error) {
	return s.listImages(ctx, s.db, listingID)
}

func (s *Store) listImages(ctx context.Context, q querier, listingID string) ([]models.ListingImage, error) {
	rows, err := q.QueryContext(ctx, s.q(`SELECT `+imageColumns+` FROM car_images WHERE car_id=? ORDER BY display_order ASC, created_at ASC, id ASC`), listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.ListingImage{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, rows.Err()
}

func (s *Store) GetImage(ctx context.Context, id string) (models.ListingImage, error) {
	img, err := scanImage(s.db.QueryRowContext(ctx, s.q(`SELECT `+imageColumns+` FROM car_images WHERE id=?`), id))
	if err == sql.ErrNoRows {
		return models.ListingImage{}, ErrNotFound
	}
	return img, err
}

func (s *Store) AddImages(ctx context.Context, listingID string, urls []string, maxImages int) ([]models.ListingImage, error) {
	var out []models.ListingImage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.lockListing(ctx, tx, listingID); err != nil {
			return err
		}
		var count, primaries int
		var maxOrder sql.NullInt64
		if err := tx.QueryRowContext(ctx, s.q(
			`SELECT COUNT(1), COALESCE(SUM(CASE WHEN is_primary THEN 1 ELSE 0 END),0), MAX(display_order) FROM car_images WHERE car_id=?`),
			listingID,
		).Scan(&count, &primaries, &maxOrder); err != nil {
			return err
		}
		if count+len(urls) > maxImages {
			return ErrImageLimit
		}
		next := 0
		if maxOrder.Valid {
			next = int(maxOrder.Int64) + 1
		}
		now := time.Now().UTC()
		out = make([]models.ListingImage, 0, len(urls))
		for i, u := range urls {
			img := models.ListingImage{
				ID:           uuid.NewString(),
				ListingID:    listingID,
				ImageURL:     u,
				IsPrimary:    primaries == 0 && i == 0,
				DisplayOrder: next + i,
				CreatedAt:    now,
				UpdatedAt:    now,
			}
			if _, err := tx.ExecContext(ctx, s.q(
				`INSERT INTO car_images(`+imageColumns+`) VALUES(?,?,?,?,?,?,?)`),
				img.ID, img.ListingID, img.ImageURL, img.IsPrimary, img.DisplayOrder, img.CreatedAt, img.UpdatedAt,
			); err != nil {
				return err
			}
			out = append(out, img)
		}
		return nil
	})
	return out, err
}

type ImagePatch struct {
	IsPrimary    *bool
	DisplayOrder *int
}

func (s *Store) UpdateImage(ctx context.Context, id string, patch ImagePatch) (models.ListingImage, error) {
	var img models.ListingImage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		img, err = s.lockedImage(ctx, tx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		if patch.IsPrimary != nil && *patch.IsPrimary {
			if _, err := tx.ExecContext(ctx, s.q(`UPDATE car_images SET is_primary=?, updated_at=? WHERE car_id=? AND id<>?`), false, now, img.ListingID, img.ID); err != nil {
				return err
			}
		}
		if patch.IsPrimary != nil {
			img.IsPrimary = *patch.IsPrimary
		}
		if patch.DisplayOrder != nil {
			img.DisplayOrder = *patch.DisplayOrder
		}
		img.UpdatedAt = now
		_, err = tx.ExecContext(ctx, s.q(`UPDATE car_images SET is_primary=?, display_order=?, updated_at=? WHERE id=?`), img.IsPrimary, img.DisplayOrder, img.UpdatedAt, img.ID)
		return err
	})
	return img, err
}

func (s *Store) DeleteImage(ctx context.Context, id string) (models.ListingImage, error) {
	var img models.ListingImage
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		img, err = s.lockedImage(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM car_images WHERE id=?`), id); err != nil {
			return err
		}
		if !img.IsPrimary {
			return nil
		}
		var nextID string
		err = tx.QueryRowContext(ctx, s.q(
			`SELECT id FROM car_images WHERE car_id=? ORDER BY display_order ASC, created_at ASC, id ASC LIMIT 1`),
			img.ListingID,
		).Scan(&nextID)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, s.q(`UPDATE car_images SET is_primary=?, updated_at=? WHERE id=?`), true, time.Now().UTC(), nextID)
		return err
	})
	return img, err
}

func (s *Store) lockedImage(ctx context.Context, tx *sql.Tx, id string) (models.ListingImage, error) {
	var listingID string
	err := tx.QueryRowContext(ctx, s.q(`SELECT car_id FROM car_images WHERE id=?`), id).Scan(&listingID)
	if err == sql.ErrNoRows {
		return models.ListingImage{}, ErrNotFound
	}
	if err != nil {
		return models.ListingImage{}, err
	}
	if err := s.lockListing(ctx, tx, listingID); err != nil {
		return models.ListingImage{}, err
	}
	img, err := scanImage(tx.QueryRowContext(ctx, s.q(`SELECT `+imageColumns+` FROM car_images WHERE id=?`), id))
	if err == sql.ErrNoRows {
		return models.ListingImage{}, ErrNotFound
	}
	return img, err
}
