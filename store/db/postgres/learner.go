package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/lightpath-ai/lightpath/store"
)

func (d *DB) UpsertLearnerProfile(ctx context.Context, upsert *store.LearnerProfile) (*store.LearnerProfile, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	upsert.UpdatedTs = now

	fieldsJSON, err := json.Marshal(upsert.Fields)
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal profile fields")
	}

	stmt := `INSERT INTO learner_profile (user_id, created_ts, updated_ts, fields, age_group, profile_text, model, embedding)
	VALUES (` + placeholders(8) + `)
	ON CONFLICT (user_id) DO UPDATE SET
		updated_ts = EXCLUDED.updated_ts,
		fields = EXCLUDED.fields,
		age_group = EXCLUDED.age_group,
		profile_text = EXCLUDED.profile_text,
		model = EXCLUDED.model,
		embedding = EXCLUDED.embedding`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.UserID,
		upsert.CreatedTs,
		upsert.UpdatedTs,
		string(fieldsJSON),
		upsert.AgeGroup,
		upsert.ProfileText,
		upsert.Model,
		pgvector.NewVector(upsert.Embedding),
	); err != nil {
		return nil, errors.Wrap(err, "failed to upsert learner profile")
	}

	return upsert, nil
}

func (d *DB) GetLearnerProfile(ctx context.Context, userID int32) (*store.LearnerProfile, error) {
	query := `SELECT
		user_id,
		created_ts,
		updated_ts,
		fields,
		age_group,
		profile_text,
		model,
		embedding
	FROM learner_profile
	WHERE user_id = ` + placeholder(1)

	learnerProfile := &store.LearnerProfile{}
	var fieldsJSON string
	var embedding pgvector.Vector
	if err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&learnerProfile.UserID,
		&learnerProfile.CreatedTs,
		&learnerProfile.UpdatedTs,
		&fieldsJSON,
		&learnerProfile.AgeGroup,
		&learnerProfile.ProfileText,
		&learnerProfile.Model,
		&embedding,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get learner profile")
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &learnerProfile.Fields); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal profile fields")
	}
	learnerProfile.Embedding = embedding.Slice()

	return learnerProfile, nil
}
