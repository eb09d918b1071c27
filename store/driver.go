package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that interact with the underlying database.
type Driver interface {
	GetDB() *sql.DB
	Close() error
	Migrate(ctx context.Context) error

	// Opportunity model related methods.
	CreateOpportunity(ctx context.Context, create *Opportunity) (*Opportunity, error)
	ListOpportunities(ctx context.Context, find *FindOpportunity) ([]*Opportunity, error)
	UpsertOpportunityEmbedding(ctx context.Context, embedding *OpportunityEmbedding) (*OpportunityEmbedding, error)
	OpportunityVectorSearch(ctx context.Context, opts *OpportunityVectorSearchOptions) ([]*OpportunityWithScore, error)

	// Mentor model related methods.
	CreateMentor(ctx context.Context, create *Mentor) (*Mentor, error)
	ListMentors(ctx context.Context, find *FindMentor) ([]*Mentor, error)
	UpsertMentorEmbedding(ctx context.Context, embedding *MentorEmbedding) (*MentorEmbedding, error)
	MentorVectorSearch(ctx context.Context, opts *MentorVectorSearchOptions) ([]*MentorWithScore, error)

	// Learner profile model related methods.
	UpsertLearnerProfile(ctx context.Context, upsert *LearnerProfile) (*LearnerProfile, error)
	GetLearnerProfile(ctx context.Context, userID int32) (*LearnerProfile, error)

	// Learning path model related methods.
	UpsertLearningPathItem(ctx context.Context, upsert *LearningPathItem) (*LearningPathItem, error)
	ListLearningPathItems(ctx context.Context, find *FindLearningPathItem) ([]*LearningPathItem, error)

	// Booking model related methods.
	CreateBooking(ctx context.Context, create *Booking) (*Booking, error)
	ListBookings(ctx context.Context, find *FindBooking) ([]*Booking, error)
	UpdateBookingStatus(ctx context.Context, id string, status BookingStatus) (*Booking, error)
}
