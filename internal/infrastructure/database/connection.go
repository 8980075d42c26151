package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/eslsoft/deeplisten/internal/infrastructure/config"
	"github.com/eslsoft/deeplisten/internal/infrastructure/database/migrate"
)

// DB is a database handle paired with the ent dialect used to build queries for it.
type DB struct {
	*sql.DB
	Dialect string
}

// NewConnection opens the configured database.
func NewConnection(cfg *config.Config, logger logrus.FieldLogger) (*DB, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database driver: %w", err)
	}

	dsn, err := cfg.DatabaseURL()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database dsn: %w", err)
	}

	switch driver {
	case "postgres":
		return newPostgres(cfg, dsn, logger)
	case "sqlite3":
		return OpenSQLite(dsn)
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

func newPostgres(cfg *config.Config, dsn string, logger logrus.FieldLogger) (*DB, func(), error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("parse pool config: %w", err)
	}
	poolCfg.MaxConns = 10

	if cfg.Database.LogSQL {
		sqlLogger := logger.WithField("component", "pgx")
		poolCfg.ConnConfig.Tracer = &tracelog.TraceLog{
			Logger: tracelog.LoggerFunc(func(_ context.Context, lvl tracelog.LogLevel, msg string, data map[string]any) {
				sqlLogger.WithFields(logrus.Fields(data)).Debugf("%s: %s", lvl, msg)
			}),
			LogLevel: tracelog.LogLevelTrace,
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}

	rawDB := stdlib.OpenDBFromPool(pool)
	return &DB{DB: rawDB, Dialect: dialect.Postgres}, func() {
		_ = rawDB.Close()
		pool.Close()
	}, nil
}

// OpenSQLite opens a sqlite database. The pool is pinned to a single
// connection so callers must not hold rows open across queries.
func OpenSQLite(dsn string) (*DB, func(), error) {
	rawDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite db: %w", err)
	}
	rawDB.SetMaxOpenConns(1)
	rawDB.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rawDB.PingContext(ctx); err != nil {
		rawDB.Close()
		return nil, nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := rawDB.ExecContext(ctx, "PRAGMA foreign_keys = ON;"); err != nil {
		rawDB.Close()
		return nil, nil, fmt.Errorf("enable sqlite foreign keys: %w", err)
	}

	return &DB{DB: rawDB, Dialect: dialect.SQLite}, func() {
		_ = rawDB.Close()
	}, nil
}

// Migrate creates or upgrades every table.
func (db *DB) Migrate(ctx context.Context) error {
	return migrate.Create(ctx, db.DB, db.Dialect)
}
