package search

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryIndexUpsertDimensionCheck(t *testing.T) {
	index := NewMemoryIndex("opportunities", 4)

	err := index.Upsert(Entry{ID: 1, Vector: []float32{1, 0}})
	var mismatch *DimensionMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected DimensionMismatchError, got %v", err)
	}
	if mismatch.Expected != 4 || mismatch.Got != 2 {
		t.Errorf("mismatch = expected %d got %d, want expected 4 got 2", mismatch.Expected, mismatch.Got)
	}
	if index.Len() != 0 {
		t.Errorf("Len() = %d after rejected upsert, want 0", index.Len())
	}
}

func TestMemoryIndexUpsertReplaces(t *testing.T) {
	index := NewMemoryIndex("opportunities", 2)

	if err := index.Upsert(Entry{ID: 1, Vector: []float32{1, 0}, Active: true, CreatedTs: 10}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := index.Upsert(Entry{ID: 1, Vector: []float32{0, 1}, Active: true, CreatedTs: 10}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if index.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", index.Len())
	}

	candidates, err := index.Search(context.Background(), []float32{0, 1}, Filters{}, 1)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(candidates) != 1 || candidates[0].Score < 0.99 {
		t.Errorf("replaced vector not searchable: %v", candidates)
	}
}

func TestMemoryIndexDelete(t *testing.T) {
	index := NewMemoryIndex("opportunities", 2)

	if err := index.Upsert(Entry{ID: 1, Vector: []float32{1, 0}, Active: true}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	index.Delete(1)
	index.Delete(99) // absent IDs are a no-op

	if index.Len() != 0 {
		t.Errorf("Len() = %d after delete, want 0", index.Len())
	}
}

func TestMemoryIndexSearchCancelledContext(t *testing.T) {
	index := NewMemoryIndex("opportunities", 2)
	if err := index.Upsert(Entry{ID: 1, Vector: []float32{1, 0}, Active: true}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := index.Search(ctx, []float32{1, 0}, Filters{}, 1); err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestEntryMatches(t *testing.T) {
	entry := Entry{ID: 1, Type: "course", CategoryID: 10, Difficulty: "beginner", Active: false}

	tests := []struct {
		name     string
		filters  Filters
		expected bool
	}{
		{"empty filters", Filters{}, true},
		{"type match", Filters{Type: strPtr("course")}, true},
		{"type mismatch", Filters{Type: strPtr("job")}, false},
		{"category match", Filters{CategoryID: int32Ptr(10)}, true},
		{"category mismatch", Filters{CategoryID: int32Ptr(20)}, false},
		{"difficulty match", Filters{Difficulty: strPtr("beginner")}, true},
		{"difficulty mismatch", Filters{Difficulty: strPtr("advanced")}, false},
		{"active only excludes inactive", Filters{ActiveOnly: true}, false},
		{"all filters must hold", Filters{Type: strPtr("course"), CategoryID: int32Ptr(20)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := entry.matches(tt.filters); got != tt.expected {
				t.Errorf("matches() = %v, want %v", got, tt.expected)
			}
		})
	}
}
