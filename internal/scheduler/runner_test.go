package scheduler

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/diewo77/go-backoffice/internal/logging"
	"github.com/diewo77/go-backoffice/internal/metrics"
	"github.com/diewo77/go-backoffice/internal/services"
)

type fakeTicker struct {
	mu      sync.Mutex
	days    []time.Time
	report  services.TickReport
	err     error
	started chan struct{}
	release chan struct{}
}

func (f *fakeTicker) Tick(_ context.Context, today time.Time) (services.TickReport, error) {
	f.mu.Lock()
	f.days = append(f.days, today)
	f.mu.Unlock()
	if f.started != nil {
		f.started <- struct{}{}
		<-f.release
	}
	return f.report, f.err
}

func sqliteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gdb
}

func mockPostgres(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	return gdb, mock
}

var (
	lockSQL   = regexp.QuoteMeta("SELECT pg_try_advisory_lock($1)")
	unlockSQL = regexp.QuoteMeta("SELECT pg_advisory_unlock($1)")
)

func TestRunOnceTruncatesToDay(t *testing.T) {
	ticker := &fakeTicker{report: services.TickReport{Scanned: 2, Created: 3, Finished: 1}}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := New(sqliteDB(t), ticker, logging.Discard(), m)

	rep, ran, err := r.RunOnce(context.Background(), time.Date(2026, 3, 10, 17, 45, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, rep.Created)
	require.Len(t, ticker.days, 1)
	assert.Equal(t, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), ticker.days[0])

	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickRunsTotal.WithLabelValues("ok")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TransactionsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TemplatesFinished))
}

func TestRunOnceReportsTickError(t *testing.T) {
	ticker := &fakeTicker{err: errors.New("db gone")}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := New(sqliteDB(t), ticker, logging.Discard(), m)

	_, ran, err := r.RunOnce(context.Background(), time.Now())
	assert.True(t, ran)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db gone")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickRunsTotal.WithLabelValues("error")))

	// The lock was released.
	ticker.err = nil
	_, ran, err = r.RunOnce(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunOnceSkipsWhileRunning(t *testing.T) {
	ticker := &fakeTicker{started: make(chan struct{}), release: make(chan struct{})}
	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	r := New(sqliteDB(t), ticker, logging.Discard(), m)

	done := make(chan bool)
	go func() {
		_, ran, _ := r.RunOnce(context.Background(), time.Now())
		done <- ran
	}()
	<-ticker.started

	_, ran, err := r.RunOnce(context.Background(), time.Now())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TickRunsTotal.WithLabelValues("skipped")))

	close(ticker.release)
	assert.True(t, <-done)
}

func TestRunOnceAdvisoryLock(t *testing.T) {
	gdb, mock := mockPostgres(t)
	ticker := &fakeTicker{report: services.TickReport{Created: 1}}
	r := New(gdb, ticker, logging.Discard(), nil)

	mock.ExpectQuery(lockSQL).WithArgs(LockKey).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(true))
	mock.ExpectExec(unlockSQL).WithArgs(LockKey).
		WillReturnResult(sqlmock.NewResult(0, 1))

	rep, ran, err := r.RunOnce(context.Background(), time.Now())
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 1, rep.Created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceAdvisoryLockHeldElsewhere(t *testing.T) {
	gdb, mock := mockPostgres(t)
	ticker := &fakeTicker{}
	r := New(gdb, ticker, logging.Discard(), nil)

	mock.ExpectQuery(lockSQL).WithArgs(LockKey).
		WillReturnRows(sqlmock.NewRows([]string{"pg_try_advisory_lock"}).AddRow(false))

	_, ran, err := r.RunOnce(context.Background(), time.Now())
	require.NoError(t, err)
	assert.False(t, ran)
	assert.Empty(t, ticker.days)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunOnceAdvisoryLockError(t *testing.T) {
	gdb, mock := mockPostgres(t)
	r := New(gdb, &fakeTicker{}, logging.Discard(), nil)

	mock.ExpectQuery(lockSQL).WithArgs(LockKey).WillReturnError(errors.New("connection reset"))

	_, ran, err := r.RunOnce(context.Background(), time.Now())
	require.Error(t, err)
	assert.False(t, ran)
}

func TestSchedule(t *testing.T) {
	r := New(sqliteDB(t), &fakeTicker{}, logging.Discard(), nil)

	c, err := r.Schedule("0 2 * * *")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = r.Schedule("every night")
	assert.Error(t, err)
}
