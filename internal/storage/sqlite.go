package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"ledger/internal/core"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Options configures the SQLite repository.
type Options struct {
	Path string

	// StrictCategoryRefs turns on SQLite foreign key enforcement, making
	// transactions.category a hard reference to categories.id.
	StrictCategoryRefs bool
}

// SQLiteRepository owns the ledger tables. All statements go through a single
// connection, so SQLite serializes them in submission order.
type SQLiteRepository struct {
	db   *sql.DB
	path string
}

// NewSQLiteRepository opens (creating if needed) the database at opts.Path and
// initializes the schema.
func NewSQLiteRepository(opts Options) (*SQLiteRepository, error) {
	if opts.Path == "" {
		return nil, errors.New("sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := DSN(opts)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dsn); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db, path: opts.Path}, nil
}

// DSN builds the modernc.org/sqlite connection string for opts.
func DSN(opts Options) string {
	dsn := "file:" + opts.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	if opts.StrictCategoryRefs {
		dsn += "&_pragma=foreign_keys(1)"
	}
	return dsn
}

// Path returns the database file path.
func (r *SQLiteRepository) Path() string {
	return r.path
}

// Ping verifies the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// classify marks SQLite constraint violations (CHECK, NOT NULL, FOREIGN KEY, ...)
// with core.ErrConstraint, keeping the driver error in the chain.
func classify(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) && se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		return fmt.Errorf("%w: %w", core.ErrConstraint, err)
	}
	return err
}
