// Package tenant resolves the caller's (user, company) pair once per request
// and carries it explicitly into every tenant-scoped operation.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/models"
)

// ErrNoTenant is returned when an operation needs a company and the caller has none.
var ErrNoTenant = errors.New("user is not associated with a company")

// Context identifies the caller. A zero UserID means anonymous; a nil
// CompanyID means the user has no tenant.
type Context struct {
	UserID    uuid.UUID
	CompanyID *uuid.UUID
}

// Anonymous reports whether no user is attached.
func (c Context) Anonymous() bool { return c.UserID == uuid.Nil }

// Company returns the tenant id or ErrNoTenant.
func (c Context) Company() (uuid.UUID, error) {
	if c.CompanyID == nil || *c.CompanyID == uuid.Nil {
		return uuid.Nil, ErrNoTenant
	}
	return *c.CompanyID, nil
}

// For builds a Context for a user in company.
func For(userID, companyID uuid.UUID) Context {
	return Context{UserID: userID, CompanyID: &companyID}
}

// Resolver maps users to their tenant through the profiles table.
type Resolver struct {
	db *gorm.DB
}

// NewResolver creates a Resolver reading from db.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Resolve returns the Context of userID. An anonymous user or a user
// without a profile row is not an error: the missing parts stay empty.
func (r *Resolver) Resolve(ctx context.Context, userID uuid.UUID) (Context, error) {
	if userID == uuid.Nil {
		return Context{}, nil
	}
	var p models.Profile
	err := r.db.WithContext(ctx).Select("id", "company_id").Where("id = ?", userID).Take(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Context{UserID: userID}, nil
	}
	if err != nil {
		return Context{}, fmt.Errorf("resolve tenant: %w", err)
	}
	return Context{UserID: userID, CompanyID: p.CompanyID}, nil
}

type ctxKey struct{}

// With stores c in ctx.
func With(ctx context.Context, c Context) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// From returns the Context stored by With, or an anonymous Context.
func From(ctx context.Context) Context {
	c, _ := ctx.Value(ctxKey{}).(Context)
	return c
}

// Middleware resolves the session user's tenant and stores it in the request
// context. It must run after auth.Middleware.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		uid, _ := auth.UserIDFromContext(req.Context())
		c, err := r.Resolve(req.Context(), uid)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, req.WithContext(With(req.Context(), c)))
	})
}
