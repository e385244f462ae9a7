package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsandov/botpress-simulator/pkg/logs"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	ErrInvalidDialect = errors.New("database: invalid dialect")
	ErrMissingDSN     = errors.New("database: dsn is required for mysql and postgres")
)

type Dialect string

const (
	DialectMySQL      Dialect = "mysql"
	DialectPostgreSQL Dialect = "postgres"
	DialectSQLite     Dialect = "sqlite"

	defaultSQLiteDSN = "file::memory:?cache=shared"
)

// Config selects a driver and its connection string. SQLite falls back to a
// shared in-memory database when DSN is empty.
type Config struct {
	Dialect     string
	DSN         string
	MaxIdle     int
	MaxOpen     int
	MaxLifetime time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxIdle == 0 {
		c.MaxIdle = 10
	}
	if c.MaxOpen == 0 {
		c.MaxOpen = 100
	}
	if c.MaxLifetime == 0 {
		c.MaxLifetime = time.Hour
	}
	if c.DSN == "" && Dialect(c.Dialect) == DialectSQLite {
		c.DSN = defaultSQLiteDSN
	}
}

func (c *Config) Validate() error {
	switch Dialect(c.Dialect) {
	case DialectSQLite:
		return nil
	case DialectMySQL, DialectPostgreSQL:
		if c.DSN == "" {
			return ErrMissingDSN
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDialect, c.Dialect)
	}
}

type Options struct {
	Logger        *logs.Logger
	MaxRetries    int
	RetryInterval time.Duration
	Tracing       bool
	// LogQueries enables gorm's own statement logger.
	LogQueries bool
}

// Open connects with retries and pings before returning. Waiting between
// attempts stops when ctx is done.
func Open(ctx context.Context, cfg Config, opts *Options) (*gorm.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if opts == nil {
		opts = &Options{}
	}
	if opts.Logger == nil {
		opts.Logger = logs.GetLogger()
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	if opts.RetryInterval == 0 {
		opts.RetryInterval = 2 * time.Second
	}

	gormConfig := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if opts.LogQueries {
		gormConfig.Logger = gormlogger.Default.LogMode(gormlogger.Info)
	}

	var (
		db  *gorm.DB
		err error
	)
	for i := 0; i <= opts.MaxRetries; i++ {
		db, err = gorm.Open(dialector(Dialect(cfg.Dialect), cfg.DSN), gormConfig)
		if err == nil {
			break
		}
		if i == opts.MaxRetries {
			return nil, fmt.Errorf("database: failed after %d attempts: %w", opts.MaxRetries, err)
		}
		opts.Logger.Warn(ctx, "database connection failed, retrying...",
			zap.Error(err),
			zap.Int("attempt", i+1),
			zap.Duration("retry_interval", opts.RetryInterval),
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.RetryInterval):
		}
	}

	if opts.Tracing {
		if err := db.Use(otelgorm.NewPlugin(otelgorm.WithDBName(cfg.Dialect))); err != nil {
			return nil, fmt.Errorf("database: failed to install tracing plugin: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdle)
	sqlDB.SetMaxOpenConns(cfg.MaxOpen)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := Ping(pingCtx, db); err != nil {
		sqlDB.Close()
		return nil, err
	}

	opts.Logger.Info(ctx, "database connection established", zap.String("dialect", cfg.Dialect))
	return db, nil
}

// Ping checks the connection pool can still reach the database.
func Ping(ctx context.Context, db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("database: failed to get sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database: ping failed: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialector(d Dialect, dsn string) gorm.Dialector {
	switch d {
	case DialectMySQL:
		return mysql.Open(dsn)
	case DialectPostgreSQL:
		return postgres.Open(dsn)
	default:
		return sqlite.Open(dsn)
	}
}
