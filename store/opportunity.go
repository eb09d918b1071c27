package store

import (
	"context"

	"github.com/pkg/errors"
)

// OpportunityType is the kind of opportunity offered on the platform.
type OpportunityType string

const (
	OpportunityTypeCourse     OpportunityType = "course"
	OpportunityTypeJob        OpportunityType = "job"
	OpportunityTypeMentorship OpportunityType = "mentorship"
	OpportunityTypeWorkshop   OpportunityType = "workshop"
)

// Difficulty is the 3-tier ordinal difficulty of an opportunity.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Opportunity represents a learnable or bookable offering: a course, job,
// mentorship program, or workshop. Popularity counters change over time
// independently of the content vector.
type Opportunity struct {
	ID               int32
	CreatedTs        int64
	UpdatedTs        int64
	Title            string
	Description      string
	Type             OpportunityType
	Difficulty       Difficulty
	CategoryID       int32
	IsActive         bool
	IsFeatured       bool
	ViewsCount       int32
	EnrollmentsCount int32
	AvgRating        float32
}

// FindOpportunity is the find condition for opportunities.
type FindOpportunity struct {
	ID                 *int32
	IDs                []int32
	Type               *OpportunityType
	Difficulty         *Difficulty
	CategoryID         *int32
	OnlyActive         bool
	OrderByEnrollments bool
	Limit              *int
}

// OpportunityEmbedding represents the content vector of an opportunity.
type OpportunityEmbedding struct {
	ID            int32
	OpportunityID int32
	Model         string
	Embedding     []float32
	CreatedTs     int64
	UpdatedTs     int64
}

// OpportunityWithScore represents a vector search result with similarity score.
type OpportunityWithScore struct {
	Opportunity *Opportunity
	Score       float32 // Similarity score (0-1, higher is more similar)
}

// OpportunityVectorSearchOptions represents the options for opportunity vector search.
// The categorical filters are applied before ranking, never after.
type OpportunityVectorSearchOptions struct {
	Vector        []float32
	Model         string
	Limit         int
	Type          *OpportunityType
	Difficulty    *Difficulty
	CategoryID    *int32
	OnlyActive    bool
	MaxCandidates int // In-process ranking paths cap candidate fetch; 0 uses the default
}

// Validate validates the OpportunityVectorSearchOptions.
func (o *OpportunityVectorSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.Errorf("vector cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 10 // Default limit
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	if o.Model == "" {
		return errors.Errorf("embedding model is required")
	}
	return nil
}

// CreateOpportunity creates an opportunity.
func (s *Store) CreateOpportunity(ctx context.Context, create *Opportunity) (*Opportunity, error) {
	return s.driver.CreateOpportunity(ctx, create)
}

// ListOpportunities lists opportunities matching the find condition.
func (s *Store) ListOpportunities(ctx context.Context, find *FindOpportunity) ([]*Opportunity, error) {
	return s.driver.ListOpportunities(ctx, find)
}

// GetOpportunity gets a single opportunity by ID.
func (s *Store) GetOpportunity(ctx context.Context, id int32) (*Opportunity, error) {
	list, err := s.driver.ListOpportunities(ctx, &FindOpportunity{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpsertOpportunityEmbedding inserts or updates an opportunity embedding.
func (s *Store) UpsertOpportunityEmbedding(ctx context.Context, embedding *OpportunityEmbedding) (*OpportunityEmbedding, error) {
	return s.driver.UpsertOpportunityEmbedding(ctx, embedding)
}

// OpportunityVectorSearch performs vector similarity search on opportunities.
func (s *Store) OpportunityVectorSearch(ctx context.Context, opts *OpportunityVectorSearchOptions) ([]*OpportunityWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.OpportunityVectorSearch(ctx, opts)
}
