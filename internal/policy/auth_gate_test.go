package policy_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/gate"
	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/policy"
	"github.com/diewo77/go-backoffice/internal/screens"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := gdb.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := gdb.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.SeedScreens(gdb); err != nil {
		t.Fatalf("seed: %v", err)
	}
	return gdb
}

func screenUUID(t *testing.T, path string) uuid.UUID {
	t.Helper()
	s, ok := screens.ByPath(path)
	if !ok {
		t.Fatalf("unknown screen %s", path)
	}
	return s.ID
}

// userWithRole creates a profile bound to a new role named name.
func userWithRole(t *testing.T, gdb *gorm.DB, name string, master bool, perms ...models.RoleScreenPermission) uuid.UUID {
	t.Helper()
	role := models.Role{Name: name, IsMaster: master, Permissions: perms}
	if err := gdb.Create(&role).Error; err != nil {
		t.Fatalf("create role: %v", err)
	}
	userID := uuid.New()
	if err := gdb.Create(&models.Profile{ID: userID, RoleID: &role.ID}).Error; err != nil {
		t.Fatalf("create profile: %v", err)
	}
	return userID
}

func as(userID uuid.UUID) context.Context {
	return auth.WithUserID(context.Background(), userID)
}

func TestCanAccess_Matrix(t *testing.T) {
	gdb := setupDB(t)
	ag := policy.NewAuthGate(gdb, 16, time.Minute, nil)
	clerk := userWithRole(t, gdb, "Clerk", false, models.RoleScreenPermission{
		ScreenID: screenUUID(t, screens.PathPayables), CanView: true, CanEdit: true,
	})
	ctx := as(clerk)

	if !ag.CanAccess(ctx, screens.PathPayables, gate.ActionView) || !ag.CanAccess(ctx, screens.PathPayables, gate.ActionEdit) {
		t.Error("Expected granted actions to be allowed")
	}
	if ag.CanAccess(ctx, screens.PathPayables, gate.ActionDelete) {
		t.Error("Expected delete to be denied")
	}
	if ag.CanAccess(ctx, screens.PathReceivables, gate.ActionView) {
		t.Error("Expected a screen without a row to be denied")
	}
	if ag.CanAccess(ctx, "/not/a/screen", gate.ActionView) {
		t.Error("Expected an unknown path to be denied")
	}
	if ag.CanAccess(context.Background(), screens.PathPayables, gate.ActionView) {
		t.Error("Expected anonymous access to be denied")
	}

	g, err := ag.ResolveScreenPermission(ctx, screens.PathPayables)
	if err != nil || g != (gate.Grant{CanView: true, CanEdit: true}) {
		t.Errorf("grant = %+v, %v", g, err)
	}
}

func TestCanAccess_MasterBypassesMatrix(t *testing.T) {
	gdb := setupDB(t)
	ag := policy.NewAuthGate(gdb, 16, time.Minute, nil)
	ctx := as(userWithRole(t, gdb, "Owner", true))

	for _, s := range screens.All() {
		for _, action := range []gate.Action{gate.ActionView, gate.ActionEdit, gate.ActionDelete} {
			if !ag.CanAccess(ctx, s.Path, action) {
				t.Errorf("Expected master to %s %s", action, s.Path)
			}
		}
	}
	if ag.IsAdminRole(ctx) {
		t.Error("Expected a master role not named admin to fail the admin check")
	}
}

func TestCanAccess_NoRole(t *testing.T) {
	gdb := setupDB(t)
	ag := policy.NewAuthGate(gdb, 16, time.Minute, nil)
	userID := uuid.New()
	if err := gdb.Create(&models.Profile{ID: userID}).Error; err != nil {
		t.Fatal(err)
	}
	if ag.CanAccess(as(userID), screens.PathDashboard, gate.ActionView) || ag.IsAdminRole(as(userID)) {
		t.Error("Expected a user without role to be denied")
	}
	if ag.CanAccess(as(uuid.New()), screens.PathDashboard, gate.ActionView) {
		t.Error("Expected a user without profile to be denied")
	}
}

func TestIsAdminRole(t *testing.T) {
	gdb := setupDB(t)
	ag := policy.NewAuthGate(gdb, 16, time.Minute, nil)

	cases := map[string]bool{"admin": true, "Admin": true, "ADMIN": true, "administrator": false, "admins": false}
	for name, want := range cases {
		ctx := as(userWithRole(t, gdb, name, false))
		if got := ag.IsAdminRole(ctx); got != want {
			t.Errorf("IsAdminRole(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInvalidateUserRefreshesRole(t *testing.T) {
	gdb := setupDB(t)
	ag := policy.NewAuthGate(gdb, 16, time.Minute, nil)
	userID := userWithRole(t, gdb, "Viewer", false)
	ctx := as(userID)

	if ag.CanAccess(ctx, screens.PathDashboard, gate.ActionView) {
		t.Fatal("Expected no access before the grant")
	}
	var p models.Profile
	gdb.Preload("Role").First(&p, "id = ?", userID)
	gdb.Create(&models.RoleScreenPermission{RoleID: p.Role.ID, ScreenID: screenUUID(t, screens.PathDashboard), CanView: true})

	if ag.CanAccess(ctx, screens.PathDashboard, gate.ActionView) {
		t.Error("Expected the cached role to be served until invalidation")
	}
	ag.InvalidateUser(userID)
	if !ag.CanAccess(ctx, screens.PathDashboard, gate.ActionView) {
		t.Error("Expected the new grant after invalidation")
	}
}

func TestRequireScreen(t *testing.T) {
	gdb := setupDB(t)
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	ag := policy.NewAuthGate(gdb, 16, time.Minute, m)
	viewer := userWithRole(t, gdb, "Viewer", false, models.RoleScreenPermission{
		ScreenID: screenUUID(t, screens.PathContacts), CanView: true,
	})
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

	view := ag.RequireScreen(screens.PathContacts, gate.ActionView)(ok)
	edit := ag.RequireScreen(screens.PathContacts, gate.ActionEdit)(ok)

	rr := httptest.NewRecorder()
	view.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/contacts", nil).WithContext(as(viewer)))
	if rr.Code != http.StatusNoContent {
		t.Errorf("view status = %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/contacts", nil).WithContext(as(viewer))
	req.Header.Set("Accept", "application/json")
	edit.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden || !strings.Contains(rr.Body.String(), `"success":false`) {
		t.Errorf("edit status = %d body = %s", rr.Code, rr.Body.String())
	}

	if got := testutil.ToFloat64(m.AuthzDecisionsTotal.WithLabelValues("screen", "deny")); got != 1 {
		t.Errorf("deny decisions = %v", got)
	}
}

func TestRequireAdmin(t *testing.T) {
	gdb := setupDB(t)
	ag := policy.NewAuthGate(gdb, 16, time.Minute, nil)
	admin := userWithRole(t, gdb, "admin", true)
	master := userWithRole(t, gdb, "Owner", true)
	h := ag.RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }))

	for _, c := range []struct {
		ctx  context.Context
		want int
	}{
		{as(admin), http.StatusOK},
		{as(master), http.StatusForbidden},
		{context.Background(), http.StatusUnauthorized},
	} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/admin/roles", nil).WithContext(c.ctx))
		if rr.Code != c.want {
			t.Errorf("status = %d, want %d", rr.Code, c.want)
		}
	}
}
