package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/lightpath-ai/lightpath/store"
)

func (d *DB) CreateMentor(ctx context.Context, create *store.Mentor) (*store.Mentor, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = now
	}

	fields := []string{"created_ts", "updated_ts", "display_name", "bio", "skills", "tier", "timezone", "is_active", "sessions_count", "avg_rating"}
	args := []any{create.CreatedTs, create.UpdatedTs, create.DisplayName, create.Bio, pq.Array(create.Skills), create.Tier, create.Timezone, create.IsActive, create.SessionsCount, create.AvgRating}

	stmt := "INSERT INTO mentor (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING id"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create mentor")
	}

	return create, nil
}

func (d *DB) ListMentors(ctx context.Context, find *store.FindMentor) ([]*store.Mentor, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "mentor.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IDs; len(v) != 0 {
		where, args = append(where, "mentor.id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(v))
	}
	if v := find.Tier; v != nil {
		where, args = append(where, "mentor.tier = "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.OnlyActive {
		where = append(where, "mentor.is_active = TRUE")
	}

	query := `SELECT
		mentor.id,
		mentor.created_ts,
		mentor.updated_ts,
		mentor.display_name,
		mentor.bio,
		mentor.skills,
		mentor.tier,
		mentor.timezone,
		mentor.is_active,
		mentor.sessions_count,
		mentor.avg_rating
	FROM mentor
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY mentor.created_ts DESC, mentor.id DESC`
	if v := find.Limit; v != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list mentors")
	}
	defer rows.Close()

	list := []*store.Mentor{}
	for rows.Next() {
		mentor := &store.Mentor{}
		if err := rows.Scan(
			&mentor.ID,
			&mentor.CreatedTs,
			&mentor.UpdatedTs,
			&mentor.DisplayName,
			&mentor.Bio,
			pq.Array(&mentor.Skills),
			&mentor.Tier,
			&mentor.Timezone,
			&mentor.IsActive,
			&mentor.SessionsCount,
			&mentor.AvgRating,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan mentor")
		}
		list = append(list, mentor)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpsertMentorEmbedding(ctx context.Context, upsert *store.MentorEmbedding) (*store.MentorEmbedding, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	upsert.UpdatedTs = now

	stmt := `INSERT INTO mentor_embedding (mentor_id, model, embedding, created_ts, updated_ts)
	VALUES (` + placeholders(5) + `)
	ON CONFLICT (mentor_id, model) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		updated_ts = EXCLUDED.updated_ts
	RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.MentorID,
		upsert.Model,
		pgvector.NewVector(upsert.Embedding),
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.ID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert mentor embedding")
	}

	return upsert, nil
}

func (d *DB) MentorVectorSearch(ctx context.Context, opts *store.MentorVectorSearchOptions) ([]*store.MentorWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	where, args := []string{"e.model = " + placeholder(1)}, []any{opts.Model}

	if v := opts.Tier; v != nil {
		where, args = append(where, "m.tier = "+placeholder(len(args)+1)), append(args, *v)
	}
	if opts.OnlyActive {
		where = append(where, "m.is_active = TRUE")
	}

	args = append(args, pgvector.NewVector(opts.Vector))
	vectorPos := placeholder(len(args))
	args = append(args, opts.Limit)
	limitPos := placeholder(len(args))

	query := `SELECT
		m.id,
		m.created_ts,
		m.updated_ts,
		m.display_name,
		m.bio,
		m.skills,
		m.tier,
		m.timezone,
		m.is_active,
		m.sessions_count,
		m.avg_rating,
		1 - (e.embedding <=> ` + vectorPos + `) AS score
	FROM mentor_embedding e
	JOIN mentor m ON m.id = e.mentor_id
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY e.embedding <=> ` + vectorPos + `, m.created_ts ASC, m.id ASC
	LIMIT ` + limitPos

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run mentor vector search")
	}
	defer rows.Close()

	list := []*store.MentorWithScore{}
	for rows.Next() {
		result := &store.MentorWithScore{Mentor: &store.Mentor{}}
		if err := rows.Scan(
			&result.Mentor.ID,
			&result.Mentor.CreatedTs,
			&result.Mentor.UpdatedTs,
			&result.Mentor.DisplayName,
			&result.Mentor.Bio,
			pq.Array(&result.Mentor.Skills),
			&result.Mentor.Tier,
			&result.Mentor.Timezone,
			&result.Mentor.IsActive,
			&result.Mentor.SessionsCount,
			&result.Mentor.AvgRating,
			&result.Score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan mentor search result")
		}
		list = append(list, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
