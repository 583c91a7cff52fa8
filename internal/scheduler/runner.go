// Package scheduler runs the recurring-transaction tick periodically. At most
// one tick runs at a time: on postgres through a session advisory lock, so
// several scheduler processes may share a database, and through a mutex
// otherwise.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/diewo77/go-backoffice/internal/db"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/recurrence"
	"github.com/diewo77/go-backoffice/internal/services"
)

// LockKey is the advisory lock id shared by every scheduler process.
const LockKey int64 = 0x7265637572726e67

// Ticker materializes due occurrences for a day.
type Ticker interface {
	Tick(ctx context.Context, today time.Time) (services.TickReport, error)
}

type Runner struct {
	db      *gorm.DB
	ticker  Ticker
	log     *logrus.Logger
	metrics *metrics.Metrics
	mu      sync.Mutex
	// Now returns the current time; ticks use its UTC calendar day.
	Now func() time.Time
}

func New(gdb *gorm.DB, ticker Ticker, log *logrus.Logger, m *metrics.Metrics) *Runner {
	return &Runner{db: gdb, ticker: ticker, log: log, metrics: m, Now: time.Now}
}

// RunOnce ticks for today unless another tick holds the lock, in which case
// ran is false.
func (r *Runner) RunOnce(ctx context.Context, today time.Time) (rep services.TickReport, ran bool, err error) {
	today = recurrence.Date(today)
	unlock, ok, err := r.acquire(ctx)
	if err != nil {
		return rep, false, err
	}
	if !ok {
		r.metrics.ObserveSkippedTick()
		r.log.WithField("today", today.Format(time.DateOnly)).Warn("tick skipped: another run holds the lock")
		return rep, false, nil
	}
	defer unlock()

	start := time.Now()
	rep, err = r.ticker.Tick(ctx, today)
	r.metrics.ObserveTick(rep.Scanned, rep.Created, rep.Finished, time.Since(start), err)
	if err != nil {
		return rep, true, fmt.Errorf("tick %s: %w", today.Format(time.DateOnly), err)
	}
	return rep, true, nil
}

// acquire takes the job lock. The returned func releases it.
func (r *Runner) acquire(ctx context.Context) (func(), bool, error) {
	if r.db.Dialector.Name() != db.DialectPostgres {
		if !r.mu.TryLock() {
			return nil, false, nil
		}
		return r.mu.Unlock, true, nil
	}

	sqlDB, err := r.db.DB()
	if err != nil {
		return nil, false, err
	}
	// Advisory locks belong to a session, so lock and unlock on one connection.
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("scheduler conn: %w", err)
	}
	var locked bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", LockKey).Scan(&locked); err != nil {
		_ = conn.Close()
		return nil, false, fmt.Errorf("advisory lock: %w", err)
	}
	if !locked {
		_ = conn.Close()
		return nil, false, nil
	}
	return func() {
		if _, err := conn.ExecContext(context.Background(), "SELECT pg_advisory_unlock($1)", LockKey); err != nil {
			r.log.WithError(err).Error("advisory unlock failed")
		}
		_ = conn.Close()
	}, true, nil
}

// Schedule registers the tick on a cron spec (UTC). Overlapping runs in this
// process are skipped; the caller starts and stops the returned cron.
func (r *Runner) Schedule(spec string) (*cron.Cron, error) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.PrintfLogger(r.log)), cron.SkipIfStillRunning(cron.PrintfLogger(r.log))),
	)
	_, err := c.AddFunc(spec, func() {
		today := r.Now()
		rep, ran, err := r.RunOnce(context.Background(), today)
		entry := r.log.WithField("today", recurrence.Date(today).Format(time.DateOnly))
		switch {
		case err != nil:
			entry.WithError(err).Error("scheduled tick failed")
		case ran:
			entry.WithFields(logrus.Fields{"created": rep.Created, "finished": rep.Finished}).Info("scheduled tick completed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}
	return c, nil
}
