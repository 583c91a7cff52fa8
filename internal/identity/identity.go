// Package identity is the authentication provider: credentials live in the
// users table, hashed with bcrypt. It is the only package that reads or
// writes password hashes.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/models"
)

var (
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrEmailTaken         = errors.New("email_taken")
	ErrNotFound           = errors.New("user_not_found")
)

// Provider manages identities. Its handle must be able to write the users
// table regardless of the caller.
type Provider struct {
	db   *gorm.DB
	cost int
	now  func() time.Time
}

func NewProvider(db *gorm.DB) *Provider {
	return &Provider{db: db, cost: bcrypt.DefaultCost, now: time.Now}
}

// WithCost sets the bcrypt cost; tests use bcrypt.MinCost.
func (p *Provider) WithCost(cost int) *Provider {
	p.cost = cost
	return p
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Authenticate returns the user whose email and password match.
func (p *Provider) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var u models.User
	err := p.db.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	if bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

func (p *Provider) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := p.db.WithContext(ctx).First(&u, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// Emails returns the email of each known id.
func (p *Provider) Emails(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var users []models.User
	if err := p.db.WithContext(ctx).Select("id", "email").Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("list emails: %w", err)
	}
	for _, u := range users {
		out[u.ID] = u.Email
	}
	return out, nil
}

// Exists reports whether id is a known identity.
func (p *Provider) Exists(ctx context.Context, id uuid.UUID) bool {
	var n int64
	if err := p.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Limit(1).Count(&n).Error; err != nil {
		return false
	}
	return n > 0
}

// Create registers a new identity. confirmed marks the email as verified.
func (p *Provider) Create(ctx context.Context, email, password string, confirmed bool) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u := &models.User{Email: normalizeEmail(email), PasswordHash: string(hash)}
	if confirmed {
		now := p.now().UTC()
		u.EmailConfirmedAt = &now
	}
	db := p.db.WithContext(ctx)
	var n int64
	if err := db.Model(&models.User{}).Where("email = ?", u.Email).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check email: %w", err)
	}
	if n > 0 {
		return nil, ErrEmailTaken
	}
	if err := db.Create(u).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// Changes describes an identity update. Nil fields are left unchanged.
type Changes struct {
	Email        *string
	Password     *string
	ConfirmEmail bool
}

// Update applies c to the identity id. ConfirmEmail forces the email as
// verified when it was not already.
func (p *Provider) Update(ctx context.Context, id uuid.UUID, c Changes) (*models.User, error) {
	u, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	db := p.db.WithContext(ctx)
	updates := map[string]any{}
	if c.Email != nil {
		email := normalizeEmail(*c.Email)
		if email != u.Email {
			var n int64
			if err := db.Model(&models.User{}).Where("email = ? AND id <> ?", email, id).Count(&n).Error; err != nil {
				return nil, fmt.Errorf("check email: %w", err)
			}
			if n > 0 {
				return nil, ErrEmailTaken
			}
			updates["email"] = email
			u.Email = email
		}
	}
	if c.Password != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*c.Password), p.cost)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		updates["password_hash"] = string(hash)
		u.PasswordHash = string(hash)
	}
	if c.ConfirmEmail && u.EmailConfirmedAt == nil {
		now := p.now().UTC()
		updates["email_confirmed_at"] = now
		u.EmailConfirmedAt = &now
	}
	if len(updates) == 0 {
		return u, nil
	}
	if err := db.Model(&models.User{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (p *Provider) Delete(ctx context.Context, id uuid.UUID) error {
	res := p.db.WithContext(ctx).Delete(&models.User{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("delete user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
