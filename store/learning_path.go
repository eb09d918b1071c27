package store

import "context"

// LearningPathItem is one step of a user's active learning path. Membership
// is what the re-ranking engine boosts; ordering is cosmetic for callers.
type LearningPathItem struct {
	ID            int32
	UserID        int32
	OpportunityID int32
	Position      int32
	CreatedTs     int64
}

// FindLearningPathItem is the find condition for learning path items.
type FindLearningPathItem struct {
	UserID        *int32
	OpportunityID *int32
}

// UpsertLearningPathItem inserts or updates a learning path item.
func (s *Store) UpsertLearningPathItem(ctx context.Context, upsert *LearningPathItem) (*LearningPathItem, error) {
	return s.driver.UpsertLearningPathItem(ctx, upsert)
}

// ListLearningPathItems lists learning path items.
func (s *Store) ListLearningPathItems(ctx context.Context, find *FindLearningPathItem) ([]*LearningPathItem, error) {
	return s.driver.ListLearningPathItems(ctx, find)
}

// GetLearningPathMembership returns the set of opportunity IDs on the user's
// active learning path.
func (s *Store) GetLearningPathMembership(ctx context.Context, userID int32) (map[int32]struct{}, error) {
	items, err := s.driver.ListLearningPathItems(ctx, &FindLearningPathItem{UserID: &userID})
	if err != nil {
		return nil, err
	}
	membership := make(map[int32]struct{}, len(items))
	for _, item := range items {
		membership[item.OpportunityID] = struct{}{}
	}
	return membership, nil
}
