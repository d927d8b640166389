// Package persistence opens the bun database for the membership store and
// applies the embedded schema migrations with goose.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/goliatone/go-membership"
	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds database options
type Config interface {
	GetDatabaseDriver() string
	GetDatabaseDSN() string
}

// goose keeps its base FS and dialect in package globals
var gooseMu sync.Mutex

// Open connects to the configured database and verifies the connection.
func Open(ctx context.Context, driver, dsn string) (*bun.DB, error) {
	var db *bun.DB

	switch driver {
	case DriverSQLite, "sqlite3", "":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		// a single connection keeps :memory: databases alive and
		// serialises writers the way sqlite expects.
		sqldb.SetMaxOpenConns(1)
		db = bun.NewDB(sqldb, sqlitedialect.New())

		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable sqlite foreign keys")
		}
	case DriverPostgres, "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		db = bun.NewDB(sqldb, pgdialect.New())
	default:
		return nil, goerrors.New(fmt.Sprintf("unsupported database driver %q", driver), goerrors.CategoryBadInput)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to reach database")
	}

	return db, nil
}

// OpenFromConfig is Open with values from cfg
func OpenFromConfig(ctx context.Context, cfg Config) (*bun.DB, error) {
	return Open(ctx, cfg.GetDatabaseDriver(), cfg.GetDatabaseDSN())
}

// Migrate applies every pending migration bundled with the membership package.
func Migrate(ctx context.Context, db *bun.DB, driver string, logger membership.Logger) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(membership.GetMigrationsFS())
	defer goose.SetBaseFS(nil)

	if logger != nil {
		goose.SetLogger(gooseLogger{logger: logger})
	} else {
		goose.SetLogger(goose.NopLogger())
	}

	if err := goose.SetDialect(gooseDialect(driver)); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := goose.UpContext(ctx, db.DB, membership.MigrationsDir); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to apply migrations")
	}

	return nil
}

// Version returns the current schema version
func Version(ctx context.Context, db *bun.DB, driver string) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := goose.SetDialect(gooseDialect(driver)); err != nil {
		return 0, err
	}

	return goose.GetDBVersionContext(ctx, db.DB)
}

func gooseDialect(driver string) string {
	switch driver {
	case DriverPostgres, "pgx":
		return "postgres"
	default:
		return "sqlite3"
	}
}

type gooseLogger struct {
	logger membership.Logger
}

func (l gooseLogger) Printf(format string, v ...any) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

func (l gooseLogger) Fatalf(format string, v ...any) {
	l.logger.Error(fmt.Sprintf(format, v...))
}
