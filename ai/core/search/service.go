package search

import (
	"context"
	"fmt"
	"sort"
)

// Candidate is one scored search hit.
type Candidate struct {
	ID        int32
	Score     float64
	CreatedTs int64
}

// Filters is a conjunction of exact-match predicates applied to the
// candidate set before ranking. Nil pointers leave a dimension
// unconstrained.
type Filters struct {
	Type       *string
	CategoryID *int32
	Difficulty *string
	ActiveOnly bool
}

// DimensionMismatchError reports a query vector whose dimensionality does
// not match the target space.
type DimensionMismatchError struct {
	Space    string
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch in space %q: expected=%d got=%d", e.Space, e.Expected, e.Got)
}

// IndexUnavailableError wraps a backend failure. It is transient: the
// caller may retry with backoff, the search service never does.
type IndexUnavailableError struct {
	Space string
	Err   error
}

func (e *IndexUnavailableError) Error() string {
	return fmt.Sprintf("index for space %q unavailable: %v", e.Space, e.Err)
}

func (e *IndexUnavailableError) Unwrap() error {
	return e.Err
}

func (e *IndexUnavailableError) Transient() bool {
	return true
}

// Index provides ranked candidates for one space.
type Index interface {
	// Space is the name of the vector universe this index serves.
	Space() string

	// Dimensions is the fixed dimensionality of the space.
	Dimensions() int

	// Search returns up to k candidates passing the filters, ranked by
	// cosine similarity descending. Backend failures are returned raw;
	// the service wraps them.
	Search(ctx context.Context, query []float32, filters Filters, k int) ([]Candidate, error)
}

// Service executes filtered similarity queries over registered spaces.
// It is read-only and safe for concurrent use.
type Service interface {
	// Search ranks the filtered candidate set of a space against the
	// query vector. Fewer than k matches return all of them; a legitimate
	// zero-match result is an empty slice with a nil error.
	Search(ctx context.Context, space string, query []float32, filters Filters, k int) ([]Candidate, error)

	// Spaces lists the registered space names.
	Spaces() []string
}

type service struct {
	indexes map[string]Index
}

// NewService creates a search service over the given indexes, keyed by
// their space names.
func NewService(indexes ...Index) Service {
	m := make(map[string]Index, len(indexes))
	for _, index := range indexes {
		m[index.Space()] = index
	}
	return &service{indexes: m}
}

func (s *service) Search(ctx context.Context, space string, query []float32, filters Filters, k int) ([]Candidate, error) {
	if k <= 0 {
		return nil, fmt.Errorf("invalid k %d: must be positive", k)
	}

	index, ok := s.indexes[space]
	if !ok {
		return nil, fmt.Errorf("invalid space %q: not registered", space)
	}
	if len(query) != index.Dimensions() {
		return nil, &DimensionMismatchError{Space: space, Expected: index.Dimensions(), Got: len(query)}
	}

	candidates, err := index.Search(ctx, query, filters, k)
	if err != nil {
		return nil, &IndexUnavailableError{Space: space, Err: err}
	}

	// Indexes are expected to rank already; re-sorting makes the ordering
	// contract independent of the backend.
	SortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (s *service) Spaces() []string {
	spaces := make([]string, 0, len(s.indexes))
	for space := range s.indexes {
		spaces = append(spaces, space)
	}
	sort.Strings(spaces)
	return spaces
}

// SortCandidates orders by score descending, ties by creation time
// ascending, then by ID for a total deterministic order.
func SortCandidates(candidates []Candidate) {
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].CreatedTs != candidates[j].CreatedTs {
			return candidates[i].CreatedTs < candidates[j].CreatedTs
		}
		return candidates[i].ID < candidates[j].ID
	})
}
