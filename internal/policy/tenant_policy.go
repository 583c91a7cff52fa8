package policy

import (
	"context"

	"github.com/google/uuid"

	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/tenant"
)

// TenantPolicy checks that a row belongs to the caller's company.
// Works with any model that implements models.TenantOwned.
type TenantPolicy struct{}

// NewTenantPolicy creates a new tenant policy.
func NewTenantPolicy() *TenantPolicy {
	return &TenantPolicy{}
}

// Can checks the resource's company against the tenant stored in ctx.
// For list/create (resource is nil) it only requires the caller to have a company.
func (p *TenantPolicy) Can(ctx context.Context, userID uuid.UUID, _ gate.Action, resource any) bool {
	tc := tenant.From(ctx)
	if tc.UserID != userID {
		return false
	}
	companyID, err := tc.Company()
	if err != nil {
		return false
	}
	if resource == nil {
		return true
	}
	owned, ok := resource.(models.TenantOwned)
	if !ok {
		// Rows without a company are never reachable through a tenant policy.
		return false
	}
	return owned.GetCompanyID() == companyID
}
