package store

import (
	"context"

	"github.com/pkg/errors"
)

// MentorTier is the standing of a mentor on the platform.
type MentorTier string

const (
	MentorTierBronze   MentorTier = "bronze"
	MentorTierSilver   MentorTier = "silver"
	MentorTierGold     MentorTier = "gold"
	MentorTierPlatinum MentorTier = "platinum"
)

// Mentor represents a bookable mentor.
type Mentor struct {
	ID            int32
	CreatedTs     int64
	UpdatedTs     int64
	DisplayName   string
	Bio           string
	Skills        []string
	Tier          MentorTier
	Timezone      string
	IsActive      bool
	SessionsCount int32
	AvgRating     float32
}

// FindMentor is the find condition for mentors.
type FindMentor struct {
	ID              *int32
	IDs             []int32
	Tier            *MentorTier
	OnlyActive      bool
	OrderBySessions bool
	Limit           *int
}

// MentorEmbedding represents the content vector of a mentor profile.
type MentorEmbedding struct {
	ID        int32
	MentorID  int32
	Model     string
	Embedding []float32
	CreatedTs int64
	UpdatedTs int64
}

// MentorWithScore represents a vector search result with similarity score.
type MentorWithScore struct {
	Mentor *Mentor
	Score  float32
}

// MentorVectorSearchOptions represents the options for mentor vector search.
type MentorVectorSearchOptions struct {
	Vector        []float32
	Model         string
	Limit         int
	Tier          *MentorTier
	OnlyActive    bool
	MaxCandidates int
}

// Validate validates the MentorVectorSearchOptions.
func (o *MentorVectorSearchOptions) Validate() error {
	if len(o.Vector) == 0 {
		return errors.Errorf("vector cannot be empty")
	}
	if o.Limit < 0 {
		return errors.Errorf("limit cannot be negative: %d", o.Limit)
	}
	if o.Limit == 0 {
		o.Limit = 10
	}
	if o.Limit > 1000 {
		return errors.Errorf("limit too large (max 1000): %d", o.Limit)
	}
	if o.Model == "" {
		return errors.Errorf("embedding model is required")
	}
	return nil
}

// CreateMentor creates a mentor.
func (s *Store) CreateMentor(ctx context.Context, create *Mentor) (*Mentor, error) {
	return s.driver.CreateMentor(ctx, create)
}

// ListMentors lists mentors matching the find condition.
func (s *Store) ListMentors(ctx context.Context, find *FindMentor) ([]*Mentor, error) {
	return s.driver.ListMentors(ctx, find)
}

// GetMentor gets a single mentor by ID.
func (s *Store) GetMentor(ctx context.Context, id int32) (*Mentor, error) {
	list, err := s.driver.ListMentors(ctx, &FindMentor{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// UpsertMentorEmbedding inserts or updates a mentor embedding.
func (s *Store) UpsertMentorEmbedding(ctx context.Context, embedding *MentorEmbedding) (*MentorEmbedding, error) {
	return s.driver.UpsertMentorEmbedding(ctx, embedding)
}

// MentorVectorSearch performs vector similarity search on mentors.
func (s *Store) MentorVectorSearch(ctx context.Context, opts *MentorVectorSearchOptions) ([]*MentorWithScore, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return s.driver.MentorVectorSearch(ctx, opts)
}
