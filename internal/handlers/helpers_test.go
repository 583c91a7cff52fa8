package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-backoffice/httpx"
	"github.com/diewo77/go-backoffice/i18n"
	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/logging"
	"github.com/diewo77/go-backoffice/internal/models"
	"github.com/diewo77/go-backoffice/internal/services"
	"github.com/diewo77/go-backoffice/internal/tenant"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, gdb.AutoMigrate(models.All()...))
	require.NoError(t, db.Seed(gdb))
	return gdb
}

func testDeps(t *testing.T) services.Deps {
	t.Helper()
	return services.Deps{DB: setupDB(t), Log: logging.Discard()}
}

// newTenant creates a company and returns a context for a user of it.
func newTenant(t *testing.T, gdb *gorm.DB, name string) tenant.Context {
	t.Helper()
	company := models.Company{Name: name}
	require.NoError(t, gdb.Create(&company).Error)
	userID := uuid.New()
	require.NoError(t, gdb.Create(&models.Profile{ID: userID, FullName: name + " owner", CompanyID: &company.ID}).Error)
	return tenant.For(userID, company.ID)
}

// jsonRequest builds a JSON API request in English.
func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req.WithContext(i18n.WithLang(req.Context(), "en"))
}

// formRequest builds a url-encoded form post in English.
func formRequest(method, target string, vals url.Values) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req.WithContext(i18n.WithLang(req.Context(), "en"))
}

func withTenant(req *http.Request, tc tenant.Context) *http.Request {
	return req.WithContext(tenant.With(req.Context(), tc))
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) httpx.Result {
	t.Helper()
	var res httpx.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res), "body: %s", rr.Body.String())
	return res
}

// dataID reads data.id from a successful Result.
func dataID(t *testing.T, res httpx.Result) string {
	t.Helper()
	m, ok := res.Data.(map[string]any)
	require.True(t, ok, "data: %#v", res.Data)
	id, _ := m["id"].(string)
	require.NotEmpty(t, id)
	return id
}
