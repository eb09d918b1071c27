package recommend

import (
	"context"

	"github.com/lightpath-ai/lightpath/ai/core/search"
	"github.com/lightpath-ai/lightpath/store"
)

// Space names registered with the search service.
const (
	SpaceOpportunities = "opportunities"
	SpaceMentors       = "mentors"
)

// OpportunityIndex adapts the store's opportunity vector search to the
// search.Index interface. Filtering and ranking happen inside the driver
// (pgvector on postgres, a bounded scored scan on sqlite).
type OpportunityIndex struct {
	store      *store.Store
	model      string
	dimensions int
}

// NewOpportunityIndex creates an index over the opportunity embeddings
// stored under the given model.
func NewOpportunityIndex(st *store.Store, model string, dimensions int) *OpportunityIndex {
	return &OpportunityIndex{store: st, model: model, dimensions: dimensions}
}

func (x *OpportunityIndex) Space() string {
	return SpaceOpportunities
}

func (x *OpportunityIndex) Dimensions() int {
	return x.dimensions
}

func (x *OpportunityIndex) Search(ctx context.Context, query []float32, filters search.Filters, k int) ([]search.Candidate, error) {
	opts := &store.OpportunityVectorSearchOptions{
		Vector:     query,
		Model:      x.model,
		Limit:      k,
		CategoryID: filters.CategoryID,
		OnlyActive: filters.ActiveOnly,
	}
	if filters.Type != nil {
		t := store.OpportunityType(*filters.Type)
		opts.Type = &t
	}
	if filters.Difficulty != nil {
		d := store.Difficulty(*filters.Difficulty)
		opts.Difficulty = &d
	}

	results, err := x.store.OpportunityVectorSearch(ctx, opts)
	if err != nil {
		return nil, err
	}

	candidates := make([]search.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, search.Candidate{
			ID:        r.Opportunity.ID,
			Score:     float64(r.Score),
			CreatedTs: r.Opportunity.CreatedTs,
		})
	}
	return candidates, nil
}

// MentorIndex adapts the store's mentor vector search to the
// search.Index interface.
type MentorIndex struct {
	store      *store.Store
	model      string
	dimensions int
}

// NewMentorIndex creates an index over the mentor embeddings stored
// under the given model.
func NewMentorIndex(st *store.Store, model string, dimensions int) *MentorIndex {
	return &MentorIndex{store: st, model: model, dimensions: dimensions}
}

func (x *MentorIndex) Space() string {
	return SpaceMentors
}

func (x *MentorIndex) Dimensions() int {
	return x.dimensions
}

func (x *MentorIndex) Search(ctx context.Context, query []float32, filters search.Filters, k int) ([]search.Candidate, error) {
	// Mentors carry no type, category or difficulty dimensions. A filter
	// on one of them is a conjunction no mentor can satisfy.
	if filters.Type != nil || filters.CategoryID != nil || filters.Difficulty != nil {
		return []search.Candidate{}, nil
	}

	results, err := x.store.MentorVectorSearch(ctx, &store.MentorVectorSearchOptions{
		Vector:     query,
		Model:      x.model,
		Limit:      k,
		OnlyActive: filters.ActiveOnly,
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]search.Candidate, 0, len(results))
	for _, r := range results {
		candidates = append(candidates, search.Candidate{
			ID:        r.Mentor.ID,
			Score:     float64(r.Score),
			CreatedTs: r.Mentor.CreatedTs,
		})
	}
	return candidates, nil
}
