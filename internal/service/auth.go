package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	netmail "net/mail"
	"strings"
	"time"

	"carmarket/internal/apperr"
	"carmarket/internal/auth"
	"carmarket/internal/models"
	"carmarket/internal/policy"
	"carmarket/internal/store"
)

type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

func (s *Service) Register(ctx context.Context, name, email, password string) (models.User, error) {
	name = strings.TrimSpace(name)
	email, err := normalizeEmail(email)
	if err != nil {
		return models.User{}, err
	}
	if name == "" {
		return models.User{}, apperr.Validation("name is required")
	}
	if err := s.ValidatePassword(password); err != nil {
		return models.User{}, err
	}
	return s.createUser(ctx, models.User{Name: name, Email: email, Role: models.RoleUser, IsActive: true}, password)
}

func (s *Service) createUser(ctx context.Context, u models.User, password string) (models.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return models.User{}, err
	}
	u.PasswordHash = hash
	created, err := s.users.CreateUser(ctx, u)
	if errors.Is(err, store.ErrConflict) {
		return models.User{}, apperr.Conflict("email already registered")
	}
	if err != nil {
		return models.User{}, err
	}
	log.Printf("user created id=%s role=%s", created.ID, created.Role)
	return created, nil
}

func (s *Service) Login(ctx context.Context, email, password string) (LoginResult, error) {
	u, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return LoginResult{}, apperr.Unauthorized("invalid credentials")
		}
		return LoginResult{}, err
	}
	if !auth.VerifyPassword(u.PasswordHash, password) {
		return LoginResult{}, apperr.Unauthorized("invalid credentials")
	}
	if !u.IsActive {
		return LoginResult{}, apperr.Forbidden("account deactivated")
	}
	token, exp, err := s.tokens.Issue(u)
	if err != nil {
		return LoginResult{}, err
	}
	if err := s.users.RecordLogin(ctx, u.ID); err != nil {
		log.Printf("record login failed user=%s err=%v", u.ID, err)
	} else {
		now := s.now()
		u.LastLoginAt = &now
	}
	return LoginResult{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate resolves a bearer token to the current state of its user, so
// role changes and deactivation apply to tokens already issued.
func (s *Service) Authenticate(ctx context.Context, rawToken string) (models.User, error) {
	claims, err := s.tokens.Parse(rawToken)
	if err != nil {
		return models.User{}, apperr.Unauthorized("invalid token")
	}
	u, err := s.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.User{}, apperr.Unauthorized("invalid token")
		}
		return models.User{}, err
	}
	if !u.IsActive {
		return models.User{}, apperr.Forbidden("account deactivated")
	}
	return u, nil
}

func (s *Service) Me(ctx context.Context, actor policy.Actor) (models.User, error) {
	u, err := s.users.GetUserByID(ctx, actor.ID)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, err
}

type ProfileInput struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
	Avatar  *string `json:"avatar"`
}

func (s *Service) UpdateProfile(ctx context.Context, actor policy.Actor, in ProfileInput) (models.User, error) {
	if in.Name != nil {
		n := strings.TrimSpace(*in.Name)
		if n == "" {
			return models.User{}, apperr.Validation("name must not be empty")
		}
		in.Name = &n
	}
	u, err := s.users.UpdateProfile(ctx, actor.ID, store.ProfilePatch{
		Name:    in.Name,
		Phone:   trimmed(in.Phone),
		Address: trimmed(in.Address),
		Avatar:  trimmed(in.Avatar),
	})
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperr.NotFound("user not found")
	}
	return u, err
}

func (s *Service) ChangePassword(ctx context.Context, actor policy.Actor, current, next string) error {
	u, err := s.users.GetUserByID(ctx, actor.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("user not found")
		}
		return err
	}
	if !auth.VerifyPassword(u.PasswordHash, current) {
		return apperr.Unauthorized("current password is incorrect")
	}
	if err := s.ValidatePassword(next); err != nil {
		return err
	}
	hash, err := auth.HashPassword(next)
	if err != nil {
		return err
	}
	if err := s.users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
		return err
	}
	log.Printf("password changed user=%s", u.ID)
	return nil
}

func (s *Service) ValidatePassword(pw string) error {
	if strings.TrimSpace(pw) == "" {
		return apperr.Validation("password is required")
	}
	if len(pw) < s.cfg.PasswordMinLength {
		return apperr.Validation(fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLength))
	}
	if len(pw) > s.cfg.PasswordMaxLength {
		return apperr.Validation(fmt.Sprintf("password must be at most %d characters", s.cfg.PasswordMaxLength))
	}
	return nil
}

func (s *Service) EnsureBootstrapAdmin(ctx context.Context) error {
	email := strings.TrimSpace(s.cfg.BootstrapAdminEmail)
	if email == "" || s.cfg.BootstrapAdminPassword == "" {
		return nil
	}
	email, err := normalizeEmail(email)
	if err != nil {
		return fmt.Errorf("bootstrap admin: %w", err)
	}
	hash, err := auth.HashPassword(s.cfg.BootstrapAdminPassword)
	if err != nil {
		return err
	}
	if err := s.users.EnsureAdmin(ctx, email, s.cfg.BootstrapAdminName, hash); err != nil {
		return err
	}
	log.Printf("bootstrap admin ensured email=%s", email)
	return nil
}

func normalizeEmail(v string) (string, error) {
	v = strings.ToLower(strings.TrimSpace(v))
	if v == "" {
		return "", apperr.Validation("email is required")
	}
	addr, err := netmail.ParseAddress(v)
	if err != nil || addr.Address != v {
		return "", apperr.Validation("invalid email")
	}
	return v, nil
}

func trimmed(p *string) *string {
	if p == nil {
		return nil
	}
	v := strings.TrimSpace(*p)
	return &v
}
