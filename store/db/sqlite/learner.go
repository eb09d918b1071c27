package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

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
	blob, err := float32ArrayToBlob(upsert.Embedding)
	if err != nil {
		return nil, err
	}

	stmt := `INSERT INTO learner_profile (user_id, created_ts, updated_ts, fields, age_group, profile_text, model, embedding)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (user_id) DO UPDATE SET
		updated_ts = excluded.updated_ts,
		fields = excluded.fields,
		age_group = excluded.age_group,
		profile_text = excluded.profile_text,
		model = excluded.model,
		embedding = excluded.embedding`
	if _, err := d.db.ExecContext(ctx, stmt,
		upsert.UserID,
		upsert.CreatedTs,
		upsert.UpdatedTs,
		string(fieldsJSON),
		upsert.AgeGroup,
		upsert.ProfileText,
		upsert.Model,
		blob,
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
	WHERE user_id = ?`

	learnerProfile := &store.LearnerProfile{}
	var fieldsJSON string
	var blob []byte
	if err := d.db.QueryRowContext(ctx, query, userID).Scan(
		&learnerProfile.UserID,
		&learnerProfile.CreatedTs,
		&learnerProfile.UpdatedTs,
		&fieldsJSON,
		&learnerProfile.AgeGroup,
		&learnerProfile.ProfileText,
		&learnerProfile.Model,
		&blob,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get learner profile")
	}

	if err := json.Unmarshal([]byte(fieldsJSON), &learnerProfile.Fields); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal profile fields")
	}
	embedding, err := blobToFloat32Array(blob)
	if err != nil {
		return nil, err
	}
	learnerProfile.Embedding = embedding

	return learnerProfile, nil
}
