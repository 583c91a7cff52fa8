package tenant

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/internal/models"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(models.All()...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestResolve(t *testing.T) {
	db := setupDB(t)
	r := NewResolver(db)
	ctx := context.Background()

	company := models.Company{Name: "Acme"}
	if err := db.Create(&company).Error; err != nil {
		t.Fatalf("create company: %v", err)
	}
	withCompany := uuid.New()
	noCompany := uuid.New()
	db.Create(&models.Profile{ID: withCompany, CompanyID: &company.ID})
	db.Create(&models.Profile{ID: noCompany})

	c, err := r.Resolve(ctx, uuid.Nil)
	if err != nil || !c.Anonymous() || c.CompanyID != nil {
		t.Fatalf("anonymous: %+v, %v", c, err)
	}

	c, err = r.Resolve(ctx, withCompany)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if id, err := c.Company(); err != nil || id != company.ID {
		t.Fatalf("expected company %s, got %s (%v)", company.ID, id, err)
	}

	c, err = r.Resolve(ctx, noCompany)
	if err != nil || c.UserID != noCompany {
		t.Fatalf("no company: %+v, %v", c, err)
	}
	if _, err := c.Company(); !errors.Is(err, ErrNoTenant) {
		t.Fatalf("expected ErrNoTenant, got %v", err)
	}

	stranger := uuid.New()
	c, err = r.Resolve(ctx, stranger)
	if err != nil || c.UserID != stranger || c.CompanyID != nil {
		t.Fatalf("missing profile keeps user id: %+v, %v", c, err)
	}
}

func TestMiddleware(t *testing.T) {
	db := setupDB(t)
	company := models.Company{Name: "Acme"}
	db.Create(&company)
	uid := uuid.New()
	db.Create(&models.Profile{ID: uid, CompanyID: &company.ID})

	var got Context
	h := NewResolver(db).Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = From(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(auth.WithUserID(req.Context(), uid))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if got.UserID != uid || got.CompanyID == nil || *got.CompanyID != company.ID {
		t.Fatalf("unexpected context %+v", got)
	}
}

func TestFromEmptyContext(t *testing.T) {
	if !From(context.Background()).Anonymous() {
		t.Fatal("expected anonymous context")
	}
	c := For(uuid.New(), uuid.New())
	if _, err := c.Company(); err != nil {
		t.Fatalf("For should set company: %v", err)
	}
}
