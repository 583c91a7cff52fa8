// Command scheduler materializes due recurring transactions on a cron
// schedule, or once with --run-once.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/diewo77/go-backoffice/internal/config"
	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/logging"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/scheduler"
	"github.com/diewo77/go-backoffice/internal/services"
)

var (
	runOnceFlag = flag.Bool("run-once", false, "Run a single tick and exit")
	dateFlag    = flag.String("date", "", "Tick date (YYYY-MM-DD), defaults to today (UTC)")
)

func main() {
	flag.Parse()

	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format, cfg.App.Dev))

	today := time.Now().UTC()
	if *dateFlag != "" {
		d, err := time.Parse(time.DateOnly, *dateFlag)
		if err != nil {
			log.WithError(err).WithField("date", *dateFlag).Fatal("invalid --date")
		}
		today = d
	}

	gdb, err := db.Open(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	if err := db.Migrate(gdb, cfg.App.Migrations, cfg.Database); err != nil {
		log.WithError(err).Fatal("migration failed")
	}

	m := metrics.New()
	svc := services.NewRecurringService(services.Deps{DB: gdb, Log: log, Metrics: m})
	if cfg.Scheduler.CatchUpLimit > 0 {
		svc.CatchUpLimit = cfg.Scheduler.CatchUpLimit
	}
	runner := scheduler.New(gdb, svc, log, m)

	if *runOnceFlag || *dateFlag != "" {
		if err := runTick(runner, today, log); err != nil {
			log.WithError(err).Fatal("tick failed")
		}
		return
	}

	c, err := runner.Schedule(cfg.Scheduler.Cron)
	if err != nil {
		log.WithError(err).Fatal("scheduler setup failed")
	}
	if cfg.Scheduler.RunOnStart {
		if err := runTick(runner, today, log); err != nil {
			log.WithError(err).Error("startup tick failed")
		}
	}
	c.Start()
	log.WithField("cron", cfg.Scheduler.Cron).Info("scheduler started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Wait for a running tick to finish.
	<-c.Stop().Done()
	log.Info("scheduler stopped")
}

func runTick(runner *scheduler.Runner, today time.Time, log *logrus.Logger) error {
	rep, ran, err := runner.RunOnce(context.Background(), today)
	if err != nil || !ran {
		return err
	}
	log.WithFields(logrus.Fields{
		"date":     today.Format(time.DateOnly),
		"scanned":  rep.Scanned,
		"created":  rep.Created,
		"finished": rep.Finished,
	}).Info("tick completed")
	return nil
}
