package scheduling

import (
	"context"
	"fmt"

	"github.com/lightpath-ai/lightpath/store"
)

// WorkingHours is a recurring daily availability window in minutes from
// midnight. EndMinute is the latest minute a session may end at, so a
// slot fits iff it lies entirely inside [StartMinute, EndMinute] of one
// day.
type WorkingHours struct {
	StartMinute int
	EndMinute   int
}

// Validate checks the window lies inside one day.
func (w WorkingHours) Validate() error {
	if w.StartMinute < 0 || w.EndMinute > 24*60 {
		return fmt.Errorf("invalid working hours: [%d, %d] outside the day", w.StartMinute, w.EndMinute)
	}
	if w.StartMinute >= w.EndMinute {
		return fmt.Errorf("invalid working hours: start %d >= end %d", w.StartMinute, w.EndMinute)
	}
	return nil
}

// Intersect returns the daily window both participants are available
// in. The second return is false when the windows do not meet.
func (w WorkingHours) Intersect(other WorkingHours) (WorkingHours, bool) {
	window := WorkingHours{
		StartMinute: w.StartMinute,
		EndMinute:   w.EndMinute,
	}
	if other.StartMinute > window.StartMinute {
		window.StartMinute = other.StartMinute
	}
	if other.EndMinute < window.EndMinute {
		window.EndMinute = other.EndMinute
	}
	if window.StartMinute >= window.EndMinute {
		return WorkingHours{}, false
	}
	return window, true
}

// Calendar is one participant's availability: a recurring daily working
// window plus concrete busy intervals. Working hours are interpreted in
// the location of the slot search request.
type Calendar struct {
	WorkingHours WorkingHours
	Busy         []Interval
}

// BookingLister is the slice of the store the calendar source reads.
type BookingLister interface {
	ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error)
}

// StoreCalendars derives calendars from persisted bookings: pending and
// confirmed sessions occupy time, cancelled and finished ones do not.
type StoreCalendars struct {
	store BookingLister
}

// NewStoreCalendars creates a booking-backed calendar source.
func NewStoreCalendars(lister BookingLister) *StoreCalendars {
	return &StoreCalendars{store: lister}
}

// MentorCalendar builds a mentor's calendar for the scan window.
func (c *StoreCalendars) MentorCalendar(ctx context.Context, mentorID int32, hours WorkingHours, window Interval) (Calendar, error) {
	find := &store.FindBooking{MentorID: &mentorID}
	busy, err := c.busyIntervals(ctx, find, window)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{WorkingHours: hours, Busy: busy}, nil
}

// LearnerCalendar builds a learner's calendar for the scan window.
func (c *StoreCalendars) LearnerCalendar(ctx context.Context, learnerID int32, hours WorkingHours, window Interval) (Calendar, error) {
	find := &store.FindBooking{LearnerID: &learnerID}
	busy, err := c.busyIntervals(ctx, find, window)
	if err != nil {
		return Calendar{}, err
	}
	return Calendar{WorkingHours: hours, Busy: busy}, nil
}

func (c *StoreCalendars) busyIntervals(ctx context.Context, find *store.FindBooking, window Interval) ([]Interval, error) {
	// A day of margin below the window so a booking straddling its lower
	// edge still counts as busy.
	startAfter := window.Start - 24*60*60
	find.StatusList = store.BusyStatuses()
	find.StartTsAfter = &startAfter
	find.StartTsBefore = &window.End

	bookings, err := c.store.ListBookings(ctx, find)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}

	busy := make([]Interval, 0, len(bookings))
	for _, booking := range bookings {
		busy = append(busy, Interval{Start: booking.StartTs, End: booking.EndTs})
	}
	return busy, nil
}
