package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erp/gstbilling/internal/infrastructure/config"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database wraps the GORM handle used by the repositories together with the
// pooled connection underneath it
type Database struct {
	DB  *gorm.DB
	sql *sql.DB
}

// Open connects to Postgres, applies the pool limits from cfg and verifies
// the connection before returning
func Open(ctx context.Context, cfg *config.DatabaseConfig, gormLogger logger.Interface) (*Database, error) {
	if gormLogger == nil {
		gormLogger = logger.Discard
	}
	gormDB, err := gorm.Open(postgres.Open(cfg.DSN()), GormConfig(gormLogger))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db, err := wrap(gormDB)
	if err != nil {
		return nil, err
	}

	db.sql.SetMaxOpenConns(cfg.MaxOpenConns)
	db.sql.SetMaxIdleConns(cfg.MaxIdleConns)
	db.sql.SetConnMaxLifetime(minutes(cfg.ConnMaxLifetime))
	db.sql.SetConnMaxIdleTime(minutes(cfg.ConnMaxIdleTime))

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func wrap(gormDB *gorm.DB) (*Database, error) {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return nil, fmt.Errorf("unwrap sql.DB: %w", err)
	}
	return &Database{DB: gormDB, sql: sqlDB}, nil
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}

// GormConfig returns the settings every connection is opened with.
// TranslateError surfaces unique violations as gorm.ErrDuplicatedKey.
func GormConfig(gormLogger logger.Interface) *gorm.Config {
	return &gorm.Config{
		Logger:                 gormLogger,
		SkipDefaultTransaction: true,
		PrepareStmt:            true,
		TranslateError:         true,
	}
}

// PingContext checks the connection within ctx's deadline. It backs the
// database health check.
func (d *Database) PingContext(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

// SQL exposes the pooled connection for migrations and pool metrics
func (d *Database) SQL() *sql.DB {
	return d.sql
}

func (d *Database) Close() error {
	return d.sql.Close()
}
