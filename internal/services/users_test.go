package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/identity"
	"github.com/diewo77/go-backoffice/internal/models"
)

func userFixture(t *testing.T) (*UserService, Deps, *fakeCache, *identity.Provider, *models.Role) {
	t.Helper()
	d, cache := testDeps(t)
	ids := identity.NewProvider(d.DB).WithCost(bcrypt.MinCost)
	admin, err := db.EnsureAdminRole(d.DB)
	require.NoError(t, err)
	return NewUserService(d, ids), d, cache, ids, admin
}

func TestCreateUser(t *testing.T) {
	svc, d, _, ids, admin := userFixture(t)
	ctx := context.Background()
	company := models.Company{Name: "Acme"}
	require.NoError(t, d.DB.Create(&company).Error)

	u, err := svc.CreateUser(ctx, UserInput{
		Email:        "ana@acme.test",
		Password:     "long-enough",
		FullName:     "Ana",
		CompanyID:    company.ID.String(),
		RoleID:       admin.ID.String(),
		ConfirmEmail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@acme.test", u.Email)
	assert.Equal(t, "Acme", u.CompanyName)
	assert.Equal(t, "admin", u.RoleName)

	got, err := ids.Authenticate(ctx, "ana@acme.test", "long-enough")
	require.NoError(t, err)
	assert.NotNil(t, got.EmailConfirmedAt)

	_, err = svc.CreateUser(ctx, UserInput{Email: "ana@acme.test", Password: "long-enough", FullName: "Ana 2", RoleID: admin.ID.String()})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, CodeEmailTaken, ce.Code)
}

func TestCreateUserValidation(t *testing.T) {
	svc, _, _, _, _ := userFixture(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, UserInput{Email: "bad", Password: "short", FullName: "A", RoleID: "x"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "invalid_email", ve.Fields["email"])
	assert.Equal(t, "too_short", ve.Fields["password"])
	assert.Equal(t, "too_short", ve.Fields["fullName"])
	assert.Equal(t, "invalid_uuid", ve.Fields["roleId"])

	_, err = svc.CreateUser(ctx, UserInput{
		Email: "ok@acme.test", Password: "long-enough", FullName: "Ok",
		RoleID: uuid.NewString(), CompanyID: uuid.NewString(),
	})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "unknown_role", ve.Fields["roleId"])
	assert.Equal(t, "unknown_company", ve.Fields["companyId"])
}

type failingProfileIdentities struct {
	IdentityProvider
	id        uuid.UUID
	deleted   []uuid.UUID
	deleteErr error
}

func (f *failingProfileIdentities) Create(_ context.Context, email, _ string, _ bool) (*models.User, error) {
	return &models.User{Base: models.Base{ID: f.id}, Email: email}, nil
}

func (f *failingProfileIdentities) Delete(_ context.Context, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return f.deleteErr
}

func TestCreateUserCompensatesFailedProfile(t *testing.T) {
	d, _ := testDeps(t)
	admin, err := db.EnsureAdminRole(d.DB)
	require.NoError(t, err)

	// An existing profile with the same id makes the insert fail.
	id := uuid.New()
	require.NoError(t, d.DB.Create(&models.Profile{ID: id}).Error)

	for _, deleteErr := range []error{nil, errors.New("provider down")} {
		fake := &failingProfileIdentities{id: id, deleteErr: deleteErr}
		svc := NewUserService(d, fake)
		_, err = svc.CreateUser(context.Background(), UserInput{
			Email: "dup@acme.test", Password: "long-enough", FullName: "Dup", RoleID: admin.ID.String(),
		})
		requireClass(t, ClassUnexpected, err)
		assert.Equal(t, []uuid.UUID{id}, fake.deleted)
	}
}

func TestUpdateUser(t *testing.T) {
	svc, d, cache, ids, admin := userFixture(t)
	ctx := context.Background()
	roles := NewRoleService(d)
	viewer, err := roles.CreateRole(ctx, RoleInput{Name: "Viewer"})
	require.NoError(t, err)

	u, err := svc.CreateUser(ctx, UserInput{Email: "bo@acme.test", Password: "long-enough", FullName: "Bo", RoleID: admin.ID.String()})
	require.NoError(t, err)

	updated, err := svc.UpdateUser(ctx, u.ID.String(), UserInput{
		Email: "bo2@acme.test", FullName: "Bo Two", RoleID: viewer.ID.String(), ConfirmEmail: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "bo2@acme.test", updated.Email)
	assert.Equal(t, "Viewer", updated.RoleName)
	assert.Equal(t, []uuid.UUID{u.ID}, cache.users)

	// Empty password keeps the current one.
	_, err = ids.Authenticate(ctx, "bo2@acme.test", "long-enough")
	assert.NoError(t, err)

	_, err = svc.UpdateUser(ctx, uuid.NewString(), UserInput{Email: "x@acme.test", FullName: "Xx", RoleID: viewer.ID.String()})
	requireClass(t, ClassNotFound, err)
}

func TestDeleteUser(t *testing.T) {
	svc, _, cache, ids, admin := userFixture(t)
	ctx := context.Background()
	actor := uuid.New()

	u, err := svc.CreateUser(ctx, UserInput{Email: "cy@acme.test", Password: "long-enough", FullName: "Cy", RoleID: admin.ID.String()})
	require.NoError(t, err)

	requireClass(t, ClassConflict, svc.DeleteUser(ctx, u.ID, u.ID.String()))

	require.NoError(t, svc.DeleteUser(ctx, actor, u.ID.String()))
	assert.False(t, ids.Exists(ctx, u.ID))
	_, err = svc.GetUser(ctx, u.ID.String())
	requireClass(t, ClassNotFound, err)
	assert.Contains(t, cache.users, u.ID)

	requireClass(t, ClassNotFound, svc.DeleteUser(ctx, actor, u.ID.String()))
}

func TestListUsers(t *testing.T) {
	svc, _, _, _, admin := userFixture(t)
	ctx := context.Background()
	for _, name := range []string{"Zoe", "Al"} {
		_, err := svc.CreateUser(ctx, UserInput{Email: name + "@acme.test", Password: "long-enough", FullName: name, RoleID: admin.ID.String()})
		require.NoError(t, err)
	}
	list, err := svc.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Al", list[0].FullName)
	assert.Equal(t, "al@acme.test", list[0].Email)
}
