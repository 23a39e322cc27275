package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"carmarket/internal/models"
)

const listingColumns = `id,title,price,description,seller_id,status,brand,model,year,fuel_type,rejection_reason,created_at,updated_at`

func scanListing(row scanner) (models.Listing, error) {
	var l models.Listing
	var year sql.NullInt64
	var reason sql.NullString
	if err := row.Scan(&l.ID, &l.Title, &l.Price, &l.Description, &l.SellerID, &l.Status, &l.Brand, &l.Model, &year, &l.FuelType, &reason, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return models.Listing{}, err
	}
	if year.Valid {
		y := int(year.Int64)
		l.Year = &y
	}
	l.RejectionReason = stringPtr(reason)
	return l, nil
}

func (s *Store) CreateListing(ctx context.Context, l models.Listing) (models.Listing, error) {
	now := time.Now().UTC()
	l.ID = uuid.NewString()
	l.CreatedAt, l.UpdatedAt = now, now
	var year any
	if l.Year != nil {
		year = *l.Year
	}
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO cars(id,title,price,description,seller_id,status,brand,model,year,fuel_type,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`),
		l.ID, l.Title, l.Price, l.Description, l.SellerID, l.Status, l.Brand, l.Model, year, l.FuelType, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return models.Listing{}, err
	}
	return l, nil
}

func (s *Store) GetListing(ctx context.Context, id string) (models.Listing, error) {
	l, err := scanListing(s.db.QueryRowContext(ctx, s.q(`SELECT `+listingColumns+` FROM cars WHERE id=?`), id))
	if err == sql.ErrNoRows {
		return models.Listing{}, ErrNotFound
	}
	return l, err
}

// UpdateListingDetails writes the editable attributes. The write is guarded on
// the status the caller read, so a listing sold meanwhile is not edited.
func (s *Store) UpdateListingDetails(ctx context.Context, l models.Listing) (models.Listing, error) {
	l.UpdatedAt = time.Now().UTC()
	var year any
	if l.Year != nil {
		year = *l.Year
	}
	res, err := s.db.ExecContext(ctx, s.q(
		`UPDATE cars SET title=?, price=?, description=?, brand=?, model=?, year=?, fuel_type=?, updated_at=? WHERE id=? AND status=?`),
		l.Title, l.Price, l.Description, l.Brand, l.Model, year, l.FuelType, l.UpdatedAt, l.ID, l.Status,
	)
	if err != nil {
		return models.Listing{}, err
	}
	return l, affectedOne(res, ErrConflict)
}

func (s *Store) SetListingStatus(ctx context.Context, id string, from []models.ListingStatus, to models.ListingStatus, reason *string) error {
	return setListingStatus(ctx, s.db, s.q, id, from, to, reason, ErrConflict)
}

func setListingStatus(ctx context.Context, q querier, rebind func(string) string, id string, from []models.ListingStatus, to models.ListingStatus, reason *string, miss error) error {
	args := []any{to, nullString(reason), time.Now().UTC(), id}
	for _, f := range from {
		args = append(args, f)
	}
	res, err := q.ExecContext(ctx, rebind(
		`UPDATE cars SET status=?, rejection_reason=COALESCE(?, rejection_reason), updated_at=? WHERE id=? AND status IN (`+placeholders(len(from))+`)`),
		args...,
	)
	if err != nil {
		return err
	}
	return affectedOne(res, miss)
}

func (s *Store) DeleteListing(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM orders WHERE car_id=?`), id).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return ErrHasOrders
		}
		res, err := tx.ExecContext(ctx, s.q(`DELETE FROM cars WHERE id=?`), id)
		if err != nil {
			return err
		}
		return affectedOne(res, ErrNotFound)
	})
}

func listingWhere(query models.ListingQuery) where {
	var w where
	if query.SellerID != "" {
		w.add("seller_id=?", query.SellerID)
	}
	if len(query.Statuses) > 0 {
		vals := make([]string, 0, len(query.Statuses))
		for _, st := range query.Statuses {
			vals = append(vals, string(st))
		}
		w.in("status", vals)
	}
	if strings.TrimSpace(query.Q) != "" {
		p := likePattern(query.Q)
		w.add("(LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(brand) LIKE ? OR LOWER(model) LIKE ?)", p, p, p, p)
	}
	if b := strings.TrimSpace(query.Brand); b != "" {
		w.add("LOWER(brand)=?", strings.ToLower(b))
	}
	if f := strings.TrimSpace(query.FuelType); f != "" {
		w.add("LOWER(fuel_type)=?", strings.ToLower(f))
	}
	if query.MinPrice != nil {
		w.add("price>=?", *query.MinPrice)
	}
	if query.MaxPrice != nil {
		w.add("price<=?", *query.MaxPrice)
	}
	return w
}

func (s *Store) ListListings(ctx context.Context, query models.ListingQuery) ([]models.Listing, int, error) {
	w := listingWhere(query)
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM cars`+w.sql()), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := clampLimit(query.Limit)
	args := append(append([]any{}, w.args...), limit, query.Offset)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+listingColumns+` FROM cars`+w.sql()+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.Listing, 0, limit)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, l)
	}
	return out, total, rows.Err()
}

func (s *Store) CountListingsByStatus(ctx context.Context, sellerID string) (map[models.ListingStatus]int, error) {
	var w where
	if sellerID != "" {
		w.add("seller_id=?", sellerID)
	}
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT status, COUNT(1) FROM cars`+w.sql()+` GROUP BY status`), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[models.ListingStatus]int{}
	for rows.Next() {
		var st models.ListingStatus
		var n int
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		out[st] = n
	}
	return out, rows.Err()
}
