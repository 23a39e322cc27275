package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	appdb "carmarket/internal/db"
	"carmarket/internal/models"
)

const userColumns = `id,name,email,password_hash,role,is_active,phone,address,avatar,last_login_at,created_at,updated_at`

func scanUser(row scanner) (models.User, error) {
	var u models.User
	var phone, address, avatar sql.NullString
	var lastLogin sql.NullTime
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &phone, &address, &avatar, &lastLogin, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return models.User{}, err
	}
	u.Phone = stringPtr(phone)
	u.Address = stringPtr(address)
	u.Avatar = stringPtr(avatar)
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLoginAt = &t
	}
	return u, nil
}

func (s *Store) CreateUser(ctx context.Context, u models.User) (models.User, error) {
	now := time.Now().UTC()
	u.ID = uuid.NewString()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt, u.UpdatedAt = now, now
	_, err := s.db.ExecContext(ctx, s.q(
		`INSERT INTO users(id,name,email,password_hash,role,is_active,phone,address,avatar,created_at,updated_at) VALUES(?,?,?,?,?,?,?,?,?,?,?)`),
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.IsActive, nullString(u.Phone), nullString(u.Address), nullString(u.Avatar), u.CreatedAt, u.UpdatedAt,
	)
	if appdb.IsUniqueViolation(err) {
		return models.User{}, ErrConflict
	}
	if err != nil {
		return models.User{}, err
	}
	return u, nil
}

func (s *Store) EnsureAdmin(ctx context.Context, email, name, passwordHash string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil
	}
	u, err := s.GetUserByEmail(ctx, email)
	if err == ErrNotFound {
		_, err = s.CreateUser(ctx, models.User{Name: name, Email: email, PasswordHash: passwordHash, Role: models.RoleAdmin, IsActive: true})
		return err
	}
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, s.q(
		`UPDATE users SET role=?, is_active=?, password_hash=?, updated_at=? WHERE id=?`),
		models.RoleAdmin, true, passwordHash, time.Now().UTC(), u.ID,
	)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE email=?`), strings.ToLower(strings.TrimSpace(email))))
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) GetUserByID(ctx context.Context, id string) (models.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, s.q(`SELECT `+userColumns+` FROM users WHERE id=?`), id))
	if err == sql.ErrNoRows {
		return models.User{}, ErrNotFound
	}
	return u, err
}

func (s *Store) ListUsers(ctx context.Context, query models.UserQuery) ([]models.User, int, error) {
	var w where
	if query.Role != "" {
		w.add("role=?", query.Role)
	}
	if query.Active != nil {
		w.add("is_active=?", *query.Active)
	}
	if strings.TrimSpace(query.Q) != "" {
		p := likePattern(query.Q)
		w.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", p, p)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(1) FROM users`+w.sql()), w.args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	limit := clampLimit(query.Limit)
	args := append(append([]any{}, w.args...), limit, query.Offset)
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT `+userColumns+` FROM users`+w.sql()+` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]models.User, 0, limit)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

type UserAdminPatch struct {
	Role     *models.Role
	IsActive *bool
}

func (s *Store) UpdateUserAdmin(ctx context.Context, id string, patch UserAdminPatch) (models.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if patch.Role != nil {
		u.Role = *patch.Role
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	u.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET role=?, is_active=?, updated_at=? WHERE id=?`), u.Role, u.IsActive, u.UpdatedAt, u.ID)
	if err != nil {
		return models.User{}, err
	}
	return u, affectedOne(res, ErrNotFound)
}

type ProfilePatch struct {
	Name    *string
	Phone   *string
	Address *string
	Avatar  *string
}

func (s *Store) UpdateProfile(ctx context.Context, id string, patch ProfilePatch) (models.User, error) {
	u, err := s.GetUserByID(ctx, id)
	if err != nil {
		return models.User{}, err
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	if patch.Phone != nil {
		u.Phone = patch.Phone
	}
	if patch.Address != nil {
		u.Address = patch.Address
	}
	if patch.Avatar != nil {
		u.Avatar = patch.Avatar
	}
	u.UpdatedAt = time.Now().UTC()
	_, err = s.db.ExecContext(ctx, s.q(
		`UPDATE users SET name=?, phone=?, address=?, avatar=?, updated_at=? WHERE id=?`),
		u.Name, nullString(u.Phone), nullString(u.Address), nullString(u.Avatar), u.UpdatedAt, u.ID,
	)
	return u, err
}

func (s *Store) UpdatePasswordHash(ctx context.Context, id, hash string) error {
	res, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET password_hash=?, updated_at=? WHERE id=?`), hash, time.Now().UTC(), id)
	if err != nil {
		return err
	}
	return affectedOne(res, ErrNotFound)
}

func (s *Store) RecordLogin(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE users SET last_login_at=? WHERE id=?`), time.Now().UTC(), id)
	return err
}
