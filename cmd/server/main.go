package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/auth"
	"github.com/diewo77/go-backoffice/i18n"
	"github.com/diewo77/go-backoffice/internal/config"
	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/logging"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/policy"
	"github.com/diewo77/go-backoffice/internal/services"
)

var (
	migrateOnlyFlag = flag.Bool("migrate-only", false, "Run DB migrations and exit")
	seedOnlyFlag    = flag.Bool("seed-only", false, "Run DB seed and exit")
)

func main() {
	flag.Parse()

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format, cfg.App.Dev))
	if err := i18n.Load(); err != nil {
		log.WithError(err).Fatal("failed to load translations")
	}
	auth.Configure(cfg.Session.Secret, cfg.Session.TTL)
	if cfg.Session.Secret == "" && !cfg.App.Dev {
		log.Warn("SESSION_SECRET is not set, using the development secret")
	}

	dbConn, err := db.Open(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}

	if *migrateOnlyFlag {
		if err := db.Migrate(dbConn, cfg.App.Migrations, cfg.Database); err != nil {
			log.WithError(err).Fatal("migration failed")
		}
		log.Info("migrations completed successfully")
		return
	}
	if *seedOnlyFlag {
		if err := db.Seed(dbConn); err != nil {
			log.WithError(err).Fatal("seeding failed")
		}
		log.Info("seeding completed successfully")
		return
	}

	if err := db.Migrate(dbConn, cfg.App.Migrations, cfg.Database); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	// Screens, currencies and the admin role are synced on every start.
	if cfg.App.Seed {
		if err := db.Seed(dbConn); err != nil {
			log.WithError(err).Fatal("seeding failed")
		}
	}

	m := metrics.New()
	routerCfg := policy.NewRouterConfig(dbConn, cfg, log, m)

	// Sessions of deleted identities are rejected.
	identities := routerCfg.Identities
	auth.SetUserVerifier(func(ctx context.Context, uid uuid.UUID) bool {
		return identities.Exists(ctx, uid)
	})

	if cfg.App.AdminEmail != "" && cfg.App.AdminPassword != "" {
		bootstrapAdmin(context.Background(), dbConn, routerCfg.Users, cfg.App, log)
	}

	appHandler := NewApp(dbConn, routerCfg, log, m)

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      appHandler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "dev": cfg.App.Dev}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("error during shutdown")
	}
	log.Info("server stopped gracefully")
}

// bootstrapAdmin creates the configured admin user unless the email is taken.
func bootstrapAdmin(ctx context.Context, gdb *gorm.DB, users *services.UserService, app config.AppConfig, log *logrus.Logger) {
	role, err := db.EnsureAdminRole(gdb)
	if err != nil {
		log.WithError(err).Error("admin bootstrap failed")
		return
	}
	_, err = users.CreateUser(ctx, services.UserInput{
		Email:        app.AdminEmail,
		Password:     app.AdminPassword,
		FullName:     "Administrator",
		RoleID:       role.ID.String(),
		ConfirmEmail: true,
	})
	switch services.Classify(err) {
	case services.ClassOK:
		log.WithField("email", app.AdminEmail).Info("admin user created")
	case services.ClassConflict:
		log.WithField("email", app.AdminEmail).Debug("admin user already exists")
	default:
		log.WithError(err).Error("admin bootstrap failed")
	}
}
