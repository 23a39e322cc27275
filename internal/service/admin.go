package service

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"carmarket/internal/apperr"
	"carmarket/internal/auth"
	"carmarket/internal/models"
	"carmarket/internal/policy"
	"carmarket/internal/store"
)

const (
	ActionCreateUser     = "create_user"
	ActionUpdateUser     = "update_user"
	ActionCreateSeller   = "create_seller"
	ActionApproveListing = "approve_listing"
	ActionRejectListing  = "reject_listing"
)

func requireAdmin(actor policy.Actor) error {
	if !actor.IsAdmin() {
		return apperr.Forbidden("admin role required")
	}
	return nil
}

// recordAction appends to the audit trail. A failed insert is logged; the
// admin mutation it describes has already happened.
func (s *Service) recordAction(ctx context.Context, actor policy.Actor, actionType, target string, details map[string]any) {
	meta, _ := json.Marshal(details)
	if err := s.audit.InsertAdminAction(ctx, actor.ID, actionType, target, string(meta)); err != nil {
		log.Printf("admin action record failed type=%s target=%s admin=%s err=%v", actionType, target, actor.ID, err)
	}
}

func (s *Service) ListUsers(ctx context.Context, actor policy.Actor, query models.UserQuery) ([]models.User, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	return s.users.ListUsers(ctx, query)
}

type CreateUserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (s *Service) AdminCreateUser(ctx context.Context, actor policy.Actor, in CreateUserInput) (models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return models.User{}, err
	}
	role := models.RoleUser
	if strings.TrimSpace(in.Role) != "" {
		r, err := models.ParseRole(in.Role)
		if err != nil {
			return models.User{}, apperr.Validation("invalid role")
		}
		role = r
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return models.User{}, apperr.Validation("name is required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return models.User{}, err
	}
	if err := s.ValidatePassword(in.Password); err != nil {
		return models.User{}, err
	}
	u, err := s.createUser(ctx, models.User{Name: name, Email: email, Role: role, IsActive: true}, in.Password)
	if err != nil {
		return models.User{}, err
	}
	s.recordAction(ctx, actor, ActionCreateUser, u.ID, map[string]any{"email": u.Email, "role": u.Role})
	return u, nil
}

type UpdateUserInput struct {
	Role     *string `json:"role"`
	IsActive *bool   `json:"is_active"`
}

func (s *Service) AdminUpdateUser(ctx context.Context, actor policy.Actor, id string, in UpdateUserInput) (models.User, error) {
	if err := requireAdmin(actor); err != nil {
		return models.User{}, err
	}
	var patch store.UserAdminPatch
	if in.Role != nil {
		r, err := models.ParseRole(*in.Role)
		if err != nil {
			return models.User{}, apperr.Validation("invalid role")
		}
		patch.Role = &r
	}
	patch.IsActive = in.IsActive
	if patch.Role == nil && patch.IsActive == nil {
		return models.User{}, apperr.Validation("nothing to update")
	}
	if id == actor.ID {
		if (patch.Role != nil && *patch.Role != models.RoleAdmin) || (patch.IsActive != nil && !*patch.IsActive) {
			return models.User{}, apperr.Conflict("admins cannot demote or deactivate themselves")
		}
	}
	u, err := s.users.UpdateUserAdmin(ctx, id, patch)
	if errors.Is(err, store.ErrNotFound) {
		return models.User{}, apperr.NotFound("user not found")
	}
	if err != nil {
		return models.User{}, err
	}
	details := map[string]any{}
	if patch.Role != nil {
		details["role"] = *patch.Role
	}
	if patch.IsActive != nil {
		details["is_active"] = *patch.IsActive
	}
	s.recordAction(ctx, actor, ActionUpdateUser, u.ID, details)
	log.Printf("user updated id=%s role=%s active=%t admin=%s", u.ID, u.Role, u.IsActive, actor.ID)
	return u, nil
}

type CreateSellerInput struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Address  *string `json:"address"`
	Password string  `json:"password"`
}

type CreatedSeller struct {
	Seller            models.User `json:"seller"`
	TemporaryPassword string      `json:"temporary_password,omitempty"`
}

func (s *Service) CreateSeller(ctx context.Context, actor policy.Actor, in CreateSellerInput) (CreatedSeller, error) {
	if err := requireAdmin(actor); err != nil {
		return CreatedSeller{}, err
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return CreatedSeller{}, apperr.Validation("name and email are required")
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return CreatedSeller{}, err
	}
	password := in.Password
	generated := ""
	if password == "" {
		if generated, err = auth.GeneratePassword(12); err != nil {
			return CreatedSeller{}, err
		}
		password = generated
	} else if err := auth.ValidatePasswordStrength(password); err != nil {
		return CreatedSeller{}, apperr.Validation(err.Error())
	}
	u, err := s.createUser(ctx, models.User{
		Name:     name,
		Email:    email,
		Role:     models.RoleSeller,
		IsActive: true,
		Phone:    trimmed(in.Phone),
		Address:  trimmed(in.Address),
	}, password)
	if err != nil {
		return CreatedSeller{}, err
	}
	s.recordAction(ctx, actor, ActionCreateSeller, u.ID, map[string]any{
		"seller_email":       u.Email,
		"seller_name":        u.Name,
		"password_generated": generated != "",
	})
	return CreatedSeller{Seller: u, TemporaryPassword: generated}, nil
}

func (s *Service) ListAllListings(ctx context.Context, actor policy.Actor, query models.ListingQuery) ([]ListingView, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	return s.ListListings(ctx, actor, query)
}

const (
	DecisionApproved = "approved"
	DecisionRejected = "rejected"
)

func (s *Service) ApproveOrReject(ctx context.Context, actor policy.Actor, listingID, decision, reason string) (models.Listing, error) {
	if err := requireAdmin(actor); err != nil {
		return models.Listing{}, err
	}
	var to models.ListingStatus
	var reasonPtr *string
	action := ActionApproveListing
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case DecisionApproved, string(models.ListingAvailable):
		to = models.ListingAvailable
	case DecisionRejected:
		to = models.ListingRejected
		action = ActionRejectListing
		if r := strings.TrimSpace(reason); r != "" {
			reasonPtr = &r
		}
	default:
		return models.Listing{}, apperr.Validation("decision must be approved or rejected")
	}
	l, err := s.loadListing(ctx, actor, listingID)
	if err != nil {
		return models.Listing{}, err
	}
	updated, err := s.transitionListing(ctx, actor, l, to, reasonPtr, "listing has already been decided")
	if err != nil {
		return models.Listing{}, err
	}
	details := map[string]any{"title": l.Title, "seller_id": l.SellerID}
	if reasonPtr != nil {
		details["reason"] = *reasonPtr
	}
	s.recordAction(ctx, actor, action, l.ID, details)
	log.Printf("listing decided id=%s status=%s admin=%s", l.ID, to, actor.ID)
	return updated, nil
}

func (s *Service) ListAdminActions(ctx context.Context, actor policy.Actor, query models.AdminActionQuery) ([]models.AdminAction, int, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, 0, err
	}
	if !query.From.IsZero() && !query.To.IsZero() && query.To.Before(query.From) {
		return nil, 0, apperr.Validation("end date is before start date")
	}
	return s.audit.ListAdminActions(ctx, query)
}
