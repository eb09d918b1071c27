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

func (d *DB) CreateOpportunity(ctx context.Context, create *store.Opportunity) (*store.Opportunity, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = now
	}

	fields := []string{"created_ts", "updated_ts", "title", "description", "type", "difficulty", "category_id", "is_active", "is_featured", "views_count", "enrollments_count", "avg_rating"}
	args := []any{create.CreatedTs, create.UpdatedTs, create.Title, create.Description, create.Type, create.Difficulty, create.CategoryID, create.IsActive, create.IsFeatured, create.ViewsCount, create.EnrollmentsCount, create.AvgRating}

	stmt := "INSERT INTO opportunity (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING id"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create opportunity")
	}

	return create, nil
}

func (d *DB) ListOpportunities(ctx context.Context, find *store.FindOpportunity) ([]*store.Opportunity, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "opportunity.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.IDs; len(v) != 0 {
		where, args = append(where, "opportunity.id = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(v))
	}
	if v := find.Type; v != nil {
		where, args = append(where, "opportunity.type = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Difficulty; v != nil {
		where, args = append(where, "opportunity.difficulty = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.CategoryID; v != nil {
		where, args = append(where, "opportunity.category_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if find.OnlyActive {
		where = append(where, "opportunity.is_active = TRUE")
	}

	orderBy := "opportunity.created_ts DESC, opportunity.id DESC"
	if find.OrderByEnrollments {
		orderBy = "opportunity.enrollments_count DESC, opportunity.id ASC"
	}

	query := `SELECT
		opportunity.id,
		opportunity.created_ts,
		opportunity.updated_ts,
		opportunity.title,
		opportunity.description,
		opportunity.type,
		opportunity.difficulty,
		opportunity.category_id,
		opportunity.is_active,
		opportunity.is_featured,
		opportunity.views_count,
		opportunity.enrollments_count,
		opportunity.avg_rating
	FROM opportunity
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY ` + orderBy
	if v := find.Limit; v != nil {
		query += " LIMIT " + placeholder(len(args)+1)
		args = append(args, *v)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list opportunities")
	}
	defer rows.Close()

	list := []*store.Opportunity{}
	for rows.Next() {
		opportunity := &store.Opportunity{}
		if err := rows.Scan(
			&opportunity.ID,
			&opportunity.CreatedTs,
			&opportunity.UpdatedTs,
			&opportunity.Title,
			&opportunity.Description,
			&opportunity.Type,
			&opportunity.Difficulty,
			&opportunity.CategoryID,
			&opportunity.IsActive,
			&opportunity.IsFeatured,
			&opportunity.ViewsCount,
			&opportunity.EnrollmentsCount,
			&opportunity.AvgRating,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan opportunity")
		}
		list = append(list, opportunity)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpsertOpportunityEmbedding(ctx context.Context, upsert *store.OpportunityEmbedding) (*store.OpportunityEmbedding, error) {
	now := time.Now().Unix()
	if upsert.CreatedTs == 0 {
		upsert.CreatedTs = now
	}
	upsert.UpdatedTs = now

	stmt := `INSERT INTO opportunity_embedding (opportunity_id, model, embedding, created_ts, updated_ts)
	VALUES (` + placeholders(5) + `)
	ON CONFLICT (opportunity_id, model) DO UPDATE SET
		embedding = EXCLUDED.embedding,
		updated_ts = EXCLUDED.updated_ts
	RETURNING id`
	if err := d.db.QueryRowContext(ctx, stmt,
		upsert.OpportunityID,
		upsert.Model,
		pgvector.NewVector(upsert.Embedding),
		upsert.CreatedTs,
		upsert.UpdatedTs,
	).Scan(&upsert.ID); err != nil {
		return nil, errors.Wrap(err, "failed to upsert opportunity embedding")
	}

	return upsert, nil
}

// OpportunityVectorSearch ranks active embeddings by cosine similarity using
// the pgvector `<=>` distance operator. Filters apply before ranking so the
// returned page is drawn from the filtered set only.
func (d *DB) OpportunityVectorSearch(ctx context.Context, opts *store.OpportunityVectorSearchOptions) ([]*store.OpportunityWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	where, args := []string{"e.model = " + placeholder(1)}, []any{opts.Model}

	if v := opts.Type; v != nil {
		where, args = append(where, "o.type = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.Difficulty; v != nil {
		where, args = append(where, "o.difficulty = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := opts.CategoryID; v != nil {
		where, args = append(where, "o.category_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if opts.OnlyActive {
		where = append(where, "o.is_active = TRUE")
	}

	args = append(args, pgvector.NewVector(opts.Vector))
	vectorPos := placeholder(len(args))
	args = append(args, opts.Limit)
	limitPos := placeholder(len(args))

	query := `SELECT
		o.id,
		o.created_ts,
		o.updated_ts,
		o.title,
		o.description,
		o.type,
		o.difficulty,
		o.category_id,
		o.is_active,
		o.is_featured,
		o.views_count,
		o.enrollments_count,
		o.avg_rating,
		1 - (e.embedding <=> ` + vectorPos + `) AS score
	FROM opportunity_embedding e
	JOIN opportunity o ON o.id = e.opportunity_id
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY e.embedding <=> ` + vectorPos + `, o.created_ts ASC, o.id ASC
	LIMIT ` + limitPos

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to run opportunity vector search")
	}
	defer rows.Close()

	list := []*store.OpportunityWithScore{}
	for rows.Next() {
		result := &store.OpportunityWithScore{Opportunity: &store.Opportunity{}}
		if err := rows.Scan(
			&result.Opportunity.ID,
			&result.Opportunity.CreatedTs,
			&result.Opportunity.UpdatedTs,
			&result.Opportunity.Title,
			&result.Opportunity.Description,
			&result.Opportunity.Type,
			&result.Opportunity.Difficulty,
			&result.Opportunity.CategoryID,
			&result.Opportunity.IsActive,
			&result.Opportunity.IsFeatured,
			&result.Opportunity.ViewsCount,
			&result.Opportunity.EnrollmentsCount,
			&result.Opportunity.AvgRating,
			&result.Score,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan opportunity search result")
		}
		list = append(list, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}
