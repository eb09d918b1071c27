package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	// Import the PostgreSQL driver.
	_ "github.com/lib/pq"

	"github.com/lightpath-ai/lightpath/internal/profile"
	"github.com/lightpath-ai/lightpath/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens a PostgreSQL database with the DSN from the profile.
// Vector search requires the pgvector extension; Migrate installs it.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	pgDB, err := sql.Open("postgres", profile.DSN)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	driver := DB{db: pgDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

// Migrate creates the engine schema. Embedding columns are sized to the
// configured dimensionality; changing dimensions requires re-embedding.
func (d *DB) Migrate(ctx context.Context) error {
	dims := d.profile.AIEmbeddingDims

	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		`CREATE TABLE IF NOT EXISTS opportunity (
			id SERIAL PRIMARY KEY,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL,
			difficulty TEXT NOT NULL,
			category_id INTEGER NOT NULL DEFAULT 0,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			is_featured BOOLEAN NOT NULL DEFAULT FALSE,
			views_count INTEGER NOT NULL DEFAULT 0,
			enrollments_count INTEGER NOT NULL DEFAULT 0,
			avg_rating REAL NOT NULL DEFAULT 0
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS opportunity_embedding (
			id SERIAL PRIMARY KEY,
			opportunity_id INTEGER NOT NULL,
			model TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (opportunity_id, model)
		)`, dims),
		`CREATE TABLE IF NOT EXISTS mentor (
			id SERIAL PRIMARY KEY,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			display_name TEXT NOT NULL,
			bio TEXT NOT NULL DEFAULT '',
			skills TEXT[] NOT NULL DEFAULT '{}',
			tier TEXT NOT NULL DEFAULT 'bronze',
			timezone TEXT NOT NULL DEFAULT 'UTC',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			sessions_count INTEGER NOT NULL DEFAULT 0,
			avg_rating REAL NOT NULL DEFAULT 0
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS mentor_embedding (
			id SERIAL PRIMARY KEY,
			mentor_id INTEGER NOT NULL,
			model TEXT NOT NULL,
			embedding vector(%d) NOT NULL,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			UNIQUE (mentor_id, model)
		)`, dims),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS learner_profile (
			user_id INTEGER PRIMARY KEY,
			created_ts BIGINT NOT NULL,
			updated_ts BIGINT NOT NULL,
			fields TEXT NOT NULL,
			age_group TEXT NOT NULL DEFAULT '',
			profile_text TEXT NOT NULL DEFAULT '',
			model TEXT NOT NULL,
			embedding vector(%d) NOT NULL
		)`, dims),
		`CREATE TABLE IF NOT EXISTS learning_path_item (
			id SERIAL PRIMARY KEY,
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

// placeholder returns the n-th positional parameter.
func placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

// placeholders returns "$1, $2, ..., $n".
func placeholders(n int) string {
	list := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		list = append(list, placeholder(i))
	}
	return strings.Join(list, ", ")
}
