package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lightpath-ai/lightpath/store"
)

func (d *DB) UpsertLearningPathItem(ctx context.Context, upsert *store.LearningPathItem) (*store.LearningPathItem, error) {
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = time.Now().Unix()
	}

	stmt := `INSERT INTO learning_path_item (user_id, opportunity_id, position, created_ts)
	VALUES (?, ?, ?, ?)
	ON CONFLICT (user_id, opportunity_id) DO UPDATE SET
		position = excluded.position
	RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.UserID,
		upsert.OpportunityID,
		upsert.Position,
		upsert.CreatedTs,
	).Scan(&upsert.ID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert learning path item")
	}

	return upsert, nil
}

func (d *DB) ListLearningPathItems(ctx context.Context, find *store.FindLearningPathItem) ([]*store.LearningPathItem, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.OpportunityID; v != nil {
		where, args = append(where, "opportunity_id = ?"), append(args, *v)
	}

	query := `SELECT
		id,
		user_id,
		opportunity_id,
		position,
		created_ts
	FROM learning_path_item
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY position ASC, id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list learning path items")
	}
	defer rows.Close()

	list := []*store.LearningPathItem{}
	for rows.Next() {
		item := &store.LearningPathItem{}
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.OpportunityID,
			&item.Position,
			&item.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan learning path item")
		}
		list = append(list, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
