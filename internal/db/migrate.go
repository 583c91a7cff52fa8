package db

import (
	"embed"
	"errors"
	"fmt"

	migrate "github.com/golang-migrate/migrate/v4"
	// Registers the postgres database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/config"
	"github.com/diewo77/go-backoffice/internal/models"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// requiredTables must exist once migrations ran.
var requiredTables = []string{"screens", "roles", "role_screen_permissions", "profiles", "companies", "transactions", "recurring_transactions"}

// Migrate brings the schema up to date. mode "sql" runs the embedded SQL
// migrations (postgres only), "auto" uses gorm AutoMigrate and "off" only
// checks the required tables.
func Migrate(db *gorm.DB, mode string, dbCfg config.DatabaseConfig) error {
	switch mode {
	case config.MigrateSQL:
		if db.Dialector.Name() != DialectPostgres {
			return fmt.Errorf("sql migrations need postgres, got %s", db.Dialector.Name())
		}
		if err := RunSQLMigrations(MigrateURL(dbCfg)); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
	case config.MigrateAuto:
		if err := AutoMigrate(db); err != nil {
			return err
		}
	}
	for _, table := range requiredTables {
		if !db.Migrator().HasTable(table) {
			return errors.New("missing table after migration: " + table)
		}
	}
	return nil
}

// AutoMigrate creates or updates every table from the models.
func AutoMigrate(db *gorm.DB) error {
	for _, m := range models.All() {
		if err := db.AutoMigrate(m); err != nil {
			return fmt.Errorf("automigrate %T: %w", m, err)
		}
	}
	return nil
}

// RunSQLMigrations applies the embedded migrations to the postgres database at url.
func RunSQLMigrations(url string) error {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, url)
	if err != nil {
		return err
	}
	defer m.Close()
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}
