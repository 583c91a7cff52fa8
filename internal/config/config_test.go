package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_DRIVER", "DATABASE_DSN", "MIGRATIONS", "SESSION_TTL", "SCHEDULER_CATCH_UP_LIMIT"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Server.Port != "8080" {
		t.Errorf("port = %q", cfg.Server.Port)
	}
	if !cfg.Database.IsPostgres() {
		t.Error("postgres should be the default driver")
	}
	if cfg.App.Migrations != MigrateAuto {
		t.Errorf("migrations = %q", cfg.App.Migrations)
	}
	if cfg.Session.TTL != 14*24*time.Hour {
		t.Errorf("session ttl = %s", cfg.Session.TTL)
	}
	if cfg.Scheduler.CatchUpLimit != 366 {
		t.Errorf("catch-up = %d", cfg.Scheduler.CatchUpLimit)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("MIGRATIONS", "true")
	t.Setenv("SESSION_TTL", "2h")
	t.Setenv("ROLE_CACHE_SIZE", "notanumber")
	t.Setenv("DATABASE_DSN", `"postgres://u:p@db:5432/x?sslmode=disable"`)

	cfg := Load()
	if cfg.Database.IsPostgres() {
		t.Error("expected sqlite driver")
	}
	if cfg.App.Migrations != MigrateSQL {
		t.Errorf("legacy boolean should map to sql, got %q", cfg.App.Migrations)
	}
	if cfg.Session.TTL != 2*time.Hour {
		t.Errorf("session ttl = %s", cfg.Session.TTL)
	}
	if cfg.Cache.RoleSize != 1024 {
		t.Errorf("invalid int should keep default, got %d", cfg.Cache.RoleSize)
	}
	if got := cfg.Database.URL(); got != "postgres://u:p@db:5432/x?sslmode=disable" {
		t.Errorf("url = %q", got)
	}
}

func TestDSNFromParts(t *testing.T) {
	d := DatabaseConfig{Host: "h", Port: 5433, User: "u", Password: "p", DBName: "d", SSLMode: "require"}
	if got := d.DSN(); got != "host=h port=5433 user=u password=p dbname=d sslmode=require" {
		t.Errorf("dsn = %q", got)
	}
	if got := d.URL(); got != "postgres://u:p@h:5433/d?sslmode=require" {
		t.Errorf("url = %q", got)
	}
}
