package search

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// Entry is a vector plus the filterable attributes of its entity.
type Entry struct {
	ID         int32
	Vector     []float32
	Type       string
	CategoryID int32
	Difficulty string
	Active     bool
	CreatedTs  int64
}

// MemoryIndex is an in-process brute-force index. Suited to demo data
// sets and tests; larger deployments use the store-backed indexes.
type MemoryIndex struct {
	space      string
	dimensions int

	mu      sync.RWMutex
	entries map[int32]Entry
}

// NewMemoryIndex creates an empty index for one space.
func NewMemoryIndex(space string, dimensions int) *MemoryIndex {
	return &MemoryIndex{
		space:      space,
		dimensions: dimensions,
		entries:    make(map[int32]Entry),
	}
}

func (x *MemoryIndex) Space() string {
	return x.space
}

func (x *MemoryIndex) Dimensions() int {
	return x.dimensions
}

// Upsert inserts or replaces an entry.
func (x *MemoryIndex) Upsert(entry Entry) error {
	if len(entry.Vector) != x.dimensions {
		return &DimensionMismatchError{Space: x.space, Expected: x.dimensions, Got: len(entry.Vector)}
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries[entry.ID] = entry
	return nil
}

// Delete removes an entry if present.
func (x *MemoryIndex) Delete(id int32) {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.entries, id)
}

// Len returns the number of indexed entries.
func (x *MemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.entries)
}

func (x *MemoryIndex) Search(ctx context.Context, query []float32, filters Filters, k int) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("search cancelled: %w", err)
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	candidates := []Candidate{}
	for _, entry := range x.entries {
		if !entry.matches(filters) {
			continue
		}
		candidates = append(candidates, Candidate{
			ID:        entry.ID,
			Score:     cosineSimilarity(query, entry.Vector),
			CreatedTs: entry.CreatedTs,
		})
	}

	SortCandidates(candidates)
	if len(candidates) > k {
		candidates = candidates[:k]
	}
	return candidates, nil
}

func (e Entry) matches(f Filters) bool {
	if f.ActiveOnly && !e.Active {
		return false
	}
	if f.Type != nil && e.Type != *f.Type {
		return false
	}
	if f.CategoryID != nil && e.CategoryID != *f.CategoryID {
		return false
	}
	if f.Difficulty != nil && e.Difficulty != *f.Difficulty {
		return false
	}
	return true
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
