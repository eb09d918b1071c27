package store

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// BookingStatus is the lifecycle state of a mentor session booking.
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// DefaultBookingDurationMinutes is used when a booking request does not
// specify a duration.
const DefaultBookingDurationMinutes = 60

// Booking is a scheduled mentor session. The engine proposes bookings in
// pending status; confirmation is the persistence collaborator's commit, and
// the unique constraint on (mentor_id, start_ts) is what rejects two
// proposals racing for the same slot.
type Booking struct {
	ID              string
	CreatedTs       int64
	UpdatedTs       int64
	MentorID        int32
	LearnerID       int32
	StartTs         int64
	EndTs           int64
	DurationMinutes int32
	Status          BookingStatus
}

// FindBooking is the find condition for bookings.
type FindBooking struct {
	ID            *string
	MentorID      *int32
	LearnerID     *int32
	StatusList    []BookingStatus
	StartTsAfter  *int64
	StartTsBefore *int64
}

// BusyStatuses are the booking statuses that occupy calendar time.
func BusyStatuses() []BookingStatus {
	return []BookingStatus{BookingStatusPending, BookingStatusConfirmed}
}

// SlotConflictError reports that a mentor slot was claimed by a concurrent
// booking between slot selection and commit. Callers re-run slot selection
// excluding the taken interval.
type SlotConflictError struct {
	MentorID int32
	StartTs  int64
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot already booked: mentor=%d start=%d", e.MentorID, e.StartTs)
}

// IsConflict marks the error as a conflict for retry classification.
func (e *SlotConflictError) IsConflict() bool {
	return true
}

// CreateBooking persists a booking. A unique-constraint violation on the
// mentor/start pair means the slot was taken between decision and commit.
func (s *Store) CreateBooking(ctx context.Context, create *Booking) (*Booking, error) {
	if create.ID == "" {
		return nil, errors.New("booking id is required")
	}
	if create.StartTs >= create.EndTs {
		return nil, errors.Errorf("invalid booking interval: start %d >= end %d", create.StartTs, create.EndTs)
	}
	return s.driver.CreateBooking(ctx, create)
}

// ListBookings lists bookings matching the find condition.
func (s *Store) ListBookings(ctx context.Context, find *FindBooking) ([]*Booking, error) {
	return s.driver.ListBookings(ctx, find)
}

// UpdateBookingStatus moves a booking through its lifecycle.
func (s *Store) UpdateBookingStatus(ctx context.Context, id string, status BookingStatus) (*Booking, error) {
	return s.driver.UpdateBookingStatus(ctx, id, status)
}
