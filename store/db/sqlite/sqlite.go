package sqlite

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/lightpath-ai/lightpath/internal/profile"
	"github.com/lightpath-ai/lightpath/store"
)

// SQLite is intended for demo and development deployments. It stores
// embeddings as little-endian float32 blobs and ranks candidates in Go,
// so vector search cost grows with the candidate set. Production
// deployments should use the PostgreSQL driver with pgvector.

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a database specified by its database driver name and a
// driver-specific data source name, usually consisting of at least a
// database name and connection information.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	// Ensure a DSN is set before attempting to open the database.
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// Connect to the database with some sane settings:
	// - No shared-cache: it's obsolete; WAL journal mode is a better solution.
	// - No foreign key constraints: it's currently disabled by default, but it's a
	// good practice to be explicit and prevent future surprises on SQLite upgrades.
	// - Journal mode set to WAL: it's the recommended journal mode for most applications
	// as it prevents locking issues.
	//
	// Notes:
	// - When using the `modernc.org/sqlite` driver, each pragma must be prefixed with `_pragma=`.
	//
	// References:
	// - https://pkg.go.dev/modernc.org/sqlite#Driver.Open
	// - https://www.sqlite.org/sharedcache.html
	// - https://www.sqlite.org/pragma.html
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// SQLite handles concurrency differently; a single connection with WAL
	// is optimal for local usage and sidesteps write-lock contention.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the engine schema. Embedding blobs carry their own length,
// so no dimension is baked into the DDL; dimension agreement is enforced by
// the search layer.
func (d *DB) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS opportunity (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			category_id INTEGER NOT NULL DEFAULT 0,
			is_active INTEGER NOT NULL DEFAULT 1,
			is_featured INTEGER NOT NULL DEFAULT 0,
			views_count INTEGER NOT NULL DEFAULT 0,
			enrollments_count INTEGER NOT NULL DEFAULT 0,
			avg_rating REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS opportunity_embedding (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			opportunity_id INTEGER NOT NULL,
			model TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (opportunity_id, model)
		)`,
		`CREATE TABLE IF NOT EXISTS mentor (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			display_name TEXT NOT NULL,
			bio TEXT NOT NULL DEFAULT '',
			skills TEXT NOT NULL DEFAULT '[]',
			tier TEXT NOT NULL DEFAULT 'bronze',
			timezone TEXT NOT NULL DEFAULT 'UTC',
			is_active INTEGER NOT NULL DEFAULT 1,
			sessions_count INTEGER NOT NULL DEFAULT 0,
			avg_rating REAL NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS mentor_embedding (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			mentor_id INTEGER NOT NULL,
			model TEXT NOT NULL,
			embedding BLOB NOT NULL,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (mentor_id, model)
		)`,
		`CREATE TABLE IF NOT EXISTS learner_profile (
			user_id INTEGER PRIMARY KEY,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			fields TEXT NOT NULL,
			age_group TEXT NOT NULL DEFAULT '',
			profile_text TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			embedding BLOB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS learning_path_item (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			opportunity_id INTEGER NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			created_ts BIGINT NOT NULL,
			UNIQUE (user_id, opportunity_id)
		)`,
		`CREATE TABLE IF NOT EXISTS booking (
			id TEXT PRIMARY KEY,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			mentor_id INTEGER NOT NULL,
			learner_id INTEGER NOT NULL,
			start_ts BIGINT NOT NULL,
			end_ts BIGINT NOT NULL,
			duration_minutes INTEGER NOT NULL,
			status TEXT NOT NULL,
			UNIQUE (mentor_id, start_ts)
		)`,
	}

	for _, stmt := range stmts {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to migrate schema")
		}
	}
	return nil
}
