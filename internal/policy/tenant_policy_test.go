package policy_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/policy"
	"github.com/diewo77/go-backoffice/internal/tenant"
)

type notOwned struct{ ID uuid.UUID }

func TestTenantPolicy_NilResource(t *testing.T) {
	p := policy.NewTenantPolicy()
	user, company := uuid.New(), uuid.New()
	ctx := tenant.With(context.Background(), tenant.For(user, company))

	if !p.Can(ctx, user, gate.ActionView, nil) {
		t.Error("Expected a tenant member to list")
	}
	noCompany := tenant.With(context.Background(), tenant.Context{UserID: user})
	if p.Can(noCompany, user, gate.ActionView, nil) {
		t.Error("Expected a user without company to be denied")
	}
}

func TestTenantPolicy_SameCompany(t *testing.T) {
	p := policy.NewTenantPolicy()
	user, company := uuid.New(), uuid.New()
	ctx := tenant.With(context.Background(), tenant.For(user, company))

	mine := &models.Transaction{CompanyID: company}
	theirs := &models.Transaction{CompanyID: uuid.New()}
	for _, action := range []gate.Action{gate.ActionView, gate.ActionEdit, gate.ActionDelete} {
		if !p.Can(ctx, user, action, mine) {
			t.Errorf("Expected %s on own row to be allowed", action)
		}
		if p.Can(ctx, user, action, theirs) {
			t.Errorf("Expected %s on another tenant's row to be denied", action)
		}
	}
}

func TestTenantPolicy_ContextMismatch(t *testing.T) {
	p := policy.NewTenantPolicy()
	company := uuid.New()
	ctx := tenant.With(context.Background(), tenant.For(uuid.New(), company))

	if p.Can(ctx, uuid.New(), gate.ActionView, &models.Contact{CompanyID: company}) {
		t.Error("Expected a user other than the resolved one to be denied")
	}
	if p.Can(context.Background(), uuid.New(), gate.ActionView, nil) {
		t.Error("Expected a missing tenant context to be denied")
	}
}

func TestTenantPolicy_NotTenantOwned(t *testing.T) {
	p := policy.NewTenantPolicy()
	user := uuid.New()
	ctx := tenant.With(context.Background(), tenant.For(user, uuid.New()))
	if p.Can(ctx, user, gate.ActionView, &notOwned{ID: uuid.New()}) {
		t.Error("Expected a row without company to be denied")
	}
}
