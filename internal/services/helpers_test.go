package services

import (
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/logging"
	"github.com/diewo77/go-backoffice/internal/models"
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

type fakeCache struct {
	mu    sync.Mutex
	users []uuid.UUID
	all   int
}

func (c *fakeCache) InvalidateUser(id uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users = append(c.users, id)
}

func (c *fakeCache) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.all++
}

func testDeps(t *testing.T) (Deps, *fakeCache) {
	t.Helper()
	cache := &fakeCache{}
	return Deps{DB: setupDB(t), Log: logging.Discard(), Cache: cache}, cache
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

func requireClass(t *testing.T, class string, err error) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, class, Classify(err), "error: %v", err)
}

func requireField(t *testing.T, err error, field, code string) {
	t.Helper()
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Equal(t, code, ve.Fields[field], "fields: %v", ve.Fields)
}
