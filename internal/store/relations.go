package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	appdb "carmarket/internal/db"
	"carmarket/internal/models"
)

func (s *Store) AddFavorite(ctx context.Context, userID, listingID string) error {
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO favorites(id,user_id,car_id,created_at) VALUES(?,?,?,?)`),
		uuid.NewString(), userID, listingID, time.Now().UTC())
	if appdb.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *Store) RemoveFavorite(ctx context.Context, userID, listingID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.q(`DELETE FROM favorites WHERE user_id=? AND car_id=?`), userID, listingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) ListFavoriteIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT car_id FROM favorites WHERE user_id=? ORDER BY created_at DESC, id DESC`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

const inquiryColumns = `id,car_id,user_id,seller_id,message,type,requested_date,status,created_at,updated_at`

func scanInquiry(row scanner) (models.Inquiry, error) {
	var i models.Inquiry
	var requested sql.NullString
	if err := row.Scan(&i.ID, &i.ListingID, &i.UserID, &i.SellerID, &i.Message, &i.Type, &requested, &i.Status, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return models.Inquiry{}, err
	}
	i.RequestedDate = stringPtr(requested)
	return i, nil
}

func (s *Store) CreateInquiry(ctx context.Context, i models.Inquiry) (models.Inquiry, error) {
	now := time.Now().UTC()
	i.ID = uuid.NewString()
	i.Status = models.InquiryOpen
	i.CreatedAt, i.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO inquiries(`+inquiryColumns+`) VALUES(?,?,?,?,?,?,?,?,?,?)`),
		i.ID, i.ListingID, i.UserID, i.SellerID, i.Message, i.Type, nullString(i.RequestedDate), i.Status, i.CreatedAt, i.UpdatedAt)
	if err != nil {
		return models.Inquiry{}, err
	}
	return i, nil
}

func (s *Store) GetInquiry(ctx context.Context, id string) (models.Inquiry, error) {
	i, err := scanInquiry(s.db.QueryRowContext(ctx, s.q(`SELECT `+inquiryColumns+` FROM inquiries WHERE id=?`), id))
	if err == sql.ErrNoRows {
		return models.Inquiry{}, ErrNotFound
	}
	return i, err
}

func (s *Store) ListInquiries(ctx context.Context, query models.InquiryQuery) ([]models.Inquiry, int, error) {
	var w where
	if query.UserID != "" {
		w.add("user_id=?", query.UserID)
	}
	if query.SellerID != "" {
		w.add("seller_id=?", query.SellerID)
	}
	if query.Status != "" {
		w.add("status=?", query.Status)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM inquiries`+w.sql()), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := clampLimit(query.Limit)
	args := append(append([]any{}, w.args...), limit, query.Offset)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+inquiryColumns+` FROM inquiries`+w.sql()+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.Inquiry, 0, limit)
	for rows.Next() {
		i, err := scanInquiry(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, i)
	}
	return out, total, rows.Err()
}

func (s *Store) SetInquiryStatus(ctx context.Context, id string, from, to models.InquiryStatus) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE inquiries SET status=?, updated_at=? WHERE id=? AND status=?`), to, time.Now().UTC(), id, from)
	if err != nil {
		return err
	}
	return affectedOne(res, ErrConflict)
}

func (s *Store) CreateReview(ctx context.Context, r models.Review) (models.Review, error) {
	r.ID = uuid.NewString()
	r.CreatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO reviews(id,car_id,user_id,user_name,rating,comment,created_at) VALUES(?,?,?,?,?,?,?)`),
		r.ID, r.ListingID, r.UserID, r.UserName, r.Rating, r.Comment, r.CreatedAt)
	if err != nil {
		return models.Review{}, err
	}
	return r, nil
}

func (s *Store) ListReviews(ctx context.Context, listingID string) ([]models.Review, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT id,car_id,user_id,user_name,rating,comment,created_at FROM reviews WHERE car_id=? ORDER BY created_at DESC, id DESC`), listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []models.Review{}
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.ListingID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) InsertAdminAction(ctx context.Context, adminID, actionType, targetID, details string) error {
	var target any
	if targetID != "" {
		target = targetID
	}
	if details == "" {
		details = "{}"
	}
	_, err := s.db.ExecContext(ctx, s.q(`INSERT INTO admin_actions(id,admin_id,action_type,target_id,details,created_at) VALUES(?,?,?,?,?,?)`),
		uuid.NewString(), adminID, actionType, target, details, time.Now().UTC())
	return err
}

func (s *Store) ListAdminActions(ctx context.Context, query models.AdminActionQuery) ([]models.AdminAction, int, error) {
	var w where
	if query.ActionType != "" {
		w.add("a.action_type=?", query.ActionType)
	}
	if !query.From.IsZero() {
		w.add("a.created_at>=?", query.From.UTC())
	}
	if !query.To.IsZero() {
		w.add("a.created_at<=?", query.To.UTC())
	}
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM admin_actions a`+w.sql()), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := query.Limit
	if limit <= 0 {
		limit = 50
	}
	limit = clampLimit(limit)
	args := append(append([]any{}, w.args...), limit, query.Offset)
	rows, err := s.db.QueryContext(ctx, s.q(
		`SELECT a.id,a.admin_id,COALESCE(u.email,''),a.action_type,a.target_id,a.details,a.created_at FROM admin_actions a LEFT JOIN users u ON u.id=a.admin_id`+
			w.sql()+` ORDER BY a.created_at DESC, a.id DESC LIMIT ? OFFSET ?`),
		args...,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.AdminAction, 0, limit)
	for rows.Next() {
		var a models.AdminAction
		var target sql.NullString
		if err := rows.Scan(&a.ID, &a.AdminID, &a.AdminEmail, &a.ActionType, &target, &a.DetailsJSON, &a.CreatedAt); err != nil {
			return nil, 0, err
		}
		a.TargetID = stringPtr(target)
		out = append(out, a)
	}
	return out, total, rows.Err()
}

func (s *Store) CountInquiries(ctx context.Context, sellerID string, status models.InquiryStatus) (int, error) {
	var w where
	if sellerID != "" {
		w.add("seller_id=?", sellerID)
	}
	if status != "" {
		w.add("status=?", status)
	}
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM inquiries`+w.sql()), w.args...).Scan(&n)
	return n, err
}
