package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/identity"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/validation"
)

// User conflict codes.
const (
	CodeEmailTaken       = "email_taken"
	CodeCannotDeleteSelf = "cannot_delete_self"
)

// Password bounds; bcrypt ignores bytes past 72.
const (
	PasswordMin = 8
	PasswordMax = 72
)

// IdentityProvider is the authentication provider used by UserService.
type IdentityProvider interface {
	Create(ctx context.Context, email, password string, confirmed bool) (*models.User, error)
	Update(ctx context.Context, id uuid.UUID, c identity.Changes) (*models.User, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Emails(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
}

// UserInput is the payload of CreateUser and UpdateUser. On update an empty
// Password keeps the current one.
type UserInput struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FullName     string `json:"fullName"`
	CompanyID    string `json:"companyId"`
	RoleID       string `json:"roleId"`
	ConfirmEmail bool   `json:"confirmEmail"`
}

// UserView joins a profile with its identity email.
type UserView struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"full_name"`
	CompanyID   *uuid.UUID `json:"company_id,omitempty"`
	CompanyName string     `json:"company_name,omitempty"`
	RoleID      *uuid.UUID `json:"role_id,omitempty"`
	RoleName    string     `json:"role_name,omitempty"`
}

// UserService provisions identities and their profiles. The two stores are
// not updated atomically: a failed profile insert deletes the new identity
// on a best-effort basis.
type UserService struct {
	Deps
	identities IdentityProvider
}

func NewUserService(d Deps, identities IdentityProvider) *UserService {
	return &UserService{Deps: d, identities: identities}
}

type userFields struct {
	fullName  string
	companyID *uuid.UUID
	roleID    uuid.UUID
}

func (s *UserService) validate(ctx context.Context, in UserInput, creating bool) (userFields, error) {
	v := validation.Violations{}
	validation.Email("email", in.Email, v)
	if creating || in.Password != "" {
		validation.Length("password", in.Password, PasswordMin, PasswordMax, v)
	}
	validation.Length("fullName", in.FullName, 2, 150, v)
	f := userFields{fullName: strings.TrimSpace(in.FullName)}
	f.companyID = validation.OptionalUUID("companyId", in.CompanyID, v)
	f.roleID = validation.UUID("roleId", in.RoleID, v)
	if err := invalid(v); err != nil {
		return f, err
	}

	db := s.DB.WithContext(ctx)
	ok, err := exists(db, &models.Role{}, "id = ?", f.roleID)
	if err != nil {
		return f, fmt.Errorf("check role: %w", err)
	}
	if !ok {
		v.Add("roleId", "unknown_role")
	}
	if f.companyID != nil {
		ok, err := exists(db, &models.Company{}, "id = ?", *f.companyID)
		if err != nil {
			return f, fmt.Errorf("check company: %w", err)
		}
		if !ok {
			v.Add("companyId", "unknown_company")
		}
	}
	return f, invalid(v)
}

// CreateUser creates the identity, then its profile.
func (s *UserService) CreateUser(ctx context.Context, in UserInput) (view *UserView, err error) {
	defer func() { s.done(ctx, "user", "create", err, logrus.Fields{"email": in.Email}) }()

	f, err := s.validate(ctx, in, true)
	if err != nil {
		return nil, err
	}
	u, err := s.identities.Create(ctx, in.Email, in.Password, in.ConfirmEmail)
	if errors.Is(err, identity.ErrEmailTaken) {
		return nil, &ConflictError{Field: "email", Code: CodeEmailTaken}
	}
	if err != nil {
		return nil, fmt.Errorf("create identity: %w", err)
	}

	profile := models.Profile{ID: u.ID, FullName: f.fullName, CompanyID: f.companyID, RoleID: &f.roleID}
	if err := s.DB.WithContext(ctx).Create(&profile).Error; err != nil {
		if cerr := s.identities.Delete(ctx, u.ID); cerr != nil {
			s.Log.WithContext(ctx).WithError(cerr).WithField("user_id", u.ID).
				Error("compensation failed: identity left without profile")
		}
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return s.get(ctx, u.ID)
}

// UpdateUser updates the identity (email, password, confirmation) and the
// profile (name, company, role).
func (s *UserService) UpdateUser(ctx context.Context, rawID string, in UserInput) (view *UserView, err error) {
	defer func() { s.done(ctx, "user", "update", err, logrus.Fields{"user_id": rawID}) }()

	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	f, err := s.validate(ctx, in, false)
	if err != nil {
		return nil, err
	}
	var profile models.Profile
	if err := s.DB.WithContext(ctx).First(&profile, "id = ?", id).Error; err != nil {
		return nil, dbError(err, "load profile", "", "")
	}

	email := in.Email
	changes := identity.Changes{Email: &email, ConfirmEmail: in.ConfirmEmail}
	if in.Password != "" {
		changes.Password = &in.Password
	}
	if _, err := s.identities.Update(ctx, id, changes); err != nil {
		switch {
		case errors.Is(err, identity.ErrEmailTaken):
			return nil, &ConflictError{Field: "email", Code: CodeEmailTaken}
		case errors.Is(err, identity.ErrNotFound):
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update identity: %w", err)
	}

	err = s.DB.WithContext(ctx).Model(&profile).Updates(map[string]any{
		"full_name":  f.fullName,
		"company_id": f.companyID,
		"role_id":    f.roleID,
	}).Error
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	s.invalidateUser(id)
	return s.get(ctx, id)
}

// DeleteUser deletes the identity, then the profile. A profile left behind
// after the identity is gone is logged and reported, not repaired.
func (s *UserService) DeleteUser(ctx context.Context, actor uuid.UUID, rawID string) (err error) {
	defer func() { s.done(ctx, "user", "delete", err, logrus.Fields{"user_id": rawID, "actor_id": actor}) }()

	id, err := parseID("id", rawID)
	if err != nil {
		return err
	}
	if id == actor {
		return &ConflictError{Field: "id", Code: CodeCannotDeleteSelf}
	}
	identityGone := false
	if err := s.identities.Delete(ctx, id); err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			return fmt.Errorf("delete identity: %w", err)
		}
		identityGone = true
	}
	res := s.DB.WithContext(ctx).Delete(&models.Profile{}, "id = ?", id)
	if res.Error != nil {
		s.Log.WithContext(ctx).WithError(res.Error).WithField("user_id", id).
			Error("profile delete failed after identity removal")
		return fmt.Errorf("delete profile: %w", res.Error)
	}
	if identityGone && res.RowsAffected == 0 {
		return ErrNotFound
	}
	s.invalidateUser(id)
	return nil
}

// GetUser returns one user.
func (s *UserService) GetUser(ctx context.Context, rawID string) (*UserView, error) {
	id, err := parseID("id", rawID)
	if err != nil {
		return nil, err
	}
	return s.get(ctx, id)
}

func (s *UserService) get(ctx context.Context, id uuid.UUID) (*UserView, error) {
	views, err := s.list(ctx, s.DB.WithContext(ctx).Where("profiles.id = ?", id))
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, ErrNotFound
	}
	return &views[0], nil
}

// ListUsers returns every user ordered by name.
func (s *UserService) ListUsers(ctx context.Context) ([]UserView, error) {
	return s.list(ctx, s.DB.WithContext(ctx))
}

func (s *UserService) list(ctx context.Context, q *gorm.DB) ([]UserView, error) {
	var profiles []models.Profile
	if err := q.Preload("Company").Preload("Role").Order("full_name").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	ids := make([]uuid.UUID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}
	emails, err := s.identities.Emails(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]UserView, len(profiles))
	for i, p := range profiles {
		v := UserView{ID: p.ID, Email: emails[p.ID], FullName: p.FullName, CompanyID: p.CompanyID, RoleID: p.RoleID}
		if p.Company != nil {
			v.CompanyName = p.Company.Name
		}
		if p.Role != nil {
			v.RoleName = p.Role.Name
		}
		out[i] = v
	}
	return out, nil
}
