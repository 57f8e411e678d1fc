// Package store persists users and their favorite books in SQLite through
// gorm. The underlying *sql.DB is shared with the session store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a requested row does not exist.
	ErrNotFound = errors.New("store: not found")
	// ErrEmailTaken is returned when signing up with a registered email.
	ErrEmailTaken = errors.New("store: email already registered")
)

// DB bundles the gorm handle with its connection pool.
type DB struct {
	gorm *gorm.DB
	sql  *sql.DB
}

// Open connects to the SQLite database at dsn using the pure-Go modernc
// driver and migrates the schema.
func Open(dsn string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", dsn, err)
	}
	// SQLite serialises writers, and a shared in-memory database lives only
	// as long as one of its connections.
	sqlDB.SetMaxOpenConns(1)

	db, err := gorm.Open(sqlite.New(sqlite.Config{DriverName: "sqlite", Conn: sqlDB}), &gorm.Config{
		Logger: logger.New(
			slog.NewLogLogger(slog.Default().Handler(), slog.LevelWarn),
			logger.Config{
				SlowThreshold:             500 * time.Millisecond,
				LogLevel:                  logger.Warn,
				IgnoreRecordNotFoundError: true,
			},
		),
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: opening gorm: %w", err)
	}

	if err := db.AutoMigrate(&User{}, &Favorite{}); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("store: migrating schema: %w", err)
	}
	return &DB{gorm: db, sql: sqlDB}, nil
}

// SQL returns the connection pool, used by the session store.
func (d *DB) SQL() *sql.DB { return d.sql }

func (d *DB) Users() *Users { return &Users{db: d.gorm} }

func (d *DB) Favorites() *Favorites { return &Favorites{db: d.gorm} }

// Ping checks that the database answers.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) Close() error {
	return d.sql.Close()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
