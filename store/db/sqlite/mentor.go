package sqlite

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

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

	skillsJSON, err := json.Marshal(create.Skills)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal mentor skills")
	}

	fields := []string{"created_ts", "updated_ts", "display_name", "bio", "skills", "tier", "timezone", "is_active", "sessions_count", "avg_rating"}
	args := []any{create.CreatedTs, create.UpdatedTs, create.DisplayName, create.Bio, string(skillsJSON), create.Tier, create.Timezone, create.IsActive, create.SessionsCount, create.AvgRating}
	placeholder := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	stmt := "INSERT INTO mentor (" + strings.Join(fields, ", ") + ") VALUES (" + placeholder + ") RETURNING id"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create mentor")
	}

	return create, nil
}

func (d *DB) ListMentors(ctx context.Context, find *store.FindMentor) ([]*store.Mentor, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "mentor.id = ?"), append(args, *v)
	}
	if v := find.IDs; len(v) != 0 {
		holders := make([]string, 0, len(v))
		for _, id := range v {
			holders = append(holders, "?")
			args = append(args, id)
		}
		where = append(where, "mentor.id IN ("+strings.Join(holders, ", ")+")")
	}
	if v := find.Tier; v != nil {
		where, args = append(where, "mentor.tier = ?"), append(args, *v)
	}
	if find.OnlyActive {
		where = append(where, "mentor.is_active = 1")
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
		query += " LIMIT ?"
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
		var skillsJSON string
		if err := rows.Scan(
			&mentor.ID,
			&mentor.CreatedTs,
			&mentor.UpdatedTs,
			&mentor.DisplayName,
			&mentor.Bio,
			&skillsJSON,
			&mentor.Tier,
			&mentor.Timezone,
			&mentor.IsActive,
			&mentor.SessionsCount,
			&mentor.AvgRating,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan mentor")
		}
		if err := json.Unmarshal([]byte(skillsJSON), &mentor.Skills); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal mentor skills")
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

	blob, err := float32ArrayToBlob(upsert.Embedding)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO mentor_embedding (mentor_id, model, embedding, created_ts, updated_ts)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT (mentor_id, model) DO UPDATE SET
		embedding = excluded.embedding,
		updated_ts = excluded.updated_ts
	RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.MentorID,
		upsert.Model,
		blob,
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

	where, args := []string{"e.model = ?"}, []any{opts.Model}

	if v := opts.Tier; v != nil {
		where, args = append(where, "m.tier = ?"), append(args, *v)
	}
	if opts.OnlyActive {
		where = append(where, "m.is_active = 1")
	}

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
		e.embedding
	FROM mentor_embedding e
	JOIN mentor m ON m.id = e.mentor_id
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY m.created_ts DESC, m.id DESC
	LIMIT ?`
	args = append(args, candidateCap(opts.Limit, opts.MaxCandidates))

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run mentor vector search")
	}
	defer rows.Close()

	list := []*store.MentorWithScore{}
	for rows.Next() {
		result := &store.MentorWithScore{Mentor: &store.Mentor{}}
		var skillsJSON string
		var blob []byte
		if err := rows.Scan(
			&result.Mentor.ID,
			&result.Mentor.CreatedTs,
			&result.Mentor.UpdatedTs,
			&result.Mentor.DisplayName,
			&result.Mentor.Bio,
			&skillsJSON,
			&result.Mentor.Tier,
			&result.Mentor.Timezone,
			&result.Mentor.IsActive,
			&result.Mentor.SessionsCount,
			&result.Mentor.AvgRating,
			&blob,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan mentor search candidate")
		}
		if err := json.Unmarshal([]byte(skillsJSON), &result.Mentor.Skills); err != nil {
			return nil, errors.Wrap(err, "failed to unmarshal mentor skills")
		}
		embedding, err := blobToFloat32Array(blob)
		if err != nil {
			return nil, err
		}
		result.Score = float32(cosineSimilarity(opts.Vector, embedding))
		list = append(list, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(list, func(i, j int) bool {
		if list[i].Score != list[j].Score {
			return list[i].Score > list[j].Score
		}
		if list[i].Mentor.CreatedTs != list[j].Mentor.CreatedTs {
			return list[i].Mentor.CreatedTs < list[j].Mentor.CreatedTs
		}
		return list[i].Mentor.ID < list[j].Mentor.ID
	})
	if len(list) > opts.Limit {
		list = list[:opts.Limit]
	}

	return list, nil
}
