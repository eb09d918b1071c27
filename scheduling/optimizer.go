package scheduling

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lightpath-ai/lightpath/store"
)

// Candidate generation defaults.
const (
	DefaultHorizonDays        = 14
	DefaultGranularityMinutes = 30
)

// ErrNoSlotFound means the whole horizon holds zero feasible slots. It
// is a legitimate domain outcome for full calendars; callers escalate by
// extending the horizon or scheduling manually, not by retrying.
var ErrNoSlotFound = errors.New("no feasible slot within the horizon")

// TimeOfDay is a coarse daypart bucket for soft preferences.
type TimeOfDay string

// Daypart buckets, keyed off a slot's start hour.
const (
	TimeOfDayMorning   TimeOfDay = "morning"   // 06:00-11:59
	TimeOfDayAfternoon TimeOfDay = "afternoon" // 12:00-16:59
	TimeOfDayEvening   TimeOfDay = "evening"   // 17:00-21:59
)

// Preferences are soft constraints. Each match adds to a slot's score;
// a slot matching none is still returned when it is the only feasible
// one.
type Preferences struct {
	TimeOfDay TimeOfDay
	Weekdays  []time.Weekday
}

func (p Preferences) score(start time.Time) int {
	score := 0
	if p.TimeOfDay != "" && bucketOf(start) == p.TimeOfDay {
		score++
	}
	for _, weekday := range p.Weekdays {
		if start.Weekday() == weekday {
			score++
			break
		}
	}
	return score
}

func bucketOf(t time.Time) TimeOfDay {
	switch hour := t.Hour(); {
	case hour >= 6 && hour < 12:
		return TimeOfDayMorning
	case hour >= 12 && hour < 17:
		return TimeOfDayAfternoon
	case hour >= 17 && hour < 22:
		return TimeOfDayEvening
	default:
		return ""
	}
}

// Request describes one slot search.
type Request struct {
	// From is the reference time candidates are scanned from. Zero means
	// now.
	From time.Time
	// DurationMinutes of the session. Zero selects the default booking
	// duration.
	DurationMinutes int
	// HorizonDays bounds the scan. Zero selects DefaultHorizonDays.
	HorizonDays int
	// GranularityMinutes aligns candidate starts to wall-clock
	// boundaries. Zero selects DefaultGranularityMinutes.
	GranularityMinutes int
	Preferences        Preferences
	// Exclude lists intervals to treat as taken regardless of the
	// calendars, so a conflicted proposal can re-run the search without
	// waiting for calendar refresh.
	Exclude []Interval
	// Location working hours and dayparts are evaluated in. Nil means
	// UTC.
	Location *time.Location
}

// Slot is a feasible meeting time for both participants.
type Slot struct {
	Start time.Time
	End   time.Time
	// Score counts satisfied preferences.
	Score int
}

// Interval returns the slot as a closed unix-seconds interval.
func (s *Slot) Interval() Interval {
	return Interval{Start: s.Start.Unix(), End: s.End.Unix()}
}

// FindSlot scans the horizon for the best feasible slot for both
// participants. Feasibility is hard: the slot must sit inside the shared
// working window of one day and clear every busy interval of both
// calendars. Preferences only order the feasible set; the earliest slot
// wins ties.
func FindSlot(ctx context.Context, mentor, learner Calendar, req Request) (*Slot, error) {
	duration := req.DurationMinutes
	if duration == 0 {
		duration = store.DefaultBookingDurationMinutes
	}
	if duration < 0 {
		return nil, fmt.Errorf("invalid duration %d minutes", duration)
	}
	granularity := req.GranularityMinutes
	if granularity == 0 {
		granularity = DefaultGranularityMinutes
	}
	if granularity < 0 {
		return nil, fmt.Errorf("invalid granularity %d minutes", granularity)
	}
	horizon := req.HorizonDays
	if horizon == 0 {
		horizon = DefaultHorizonDays
	}
	if horizon < 0 {
		return nil, fmt.Errorf("invalid horizon %d days", horizon)
	}
	if err := mentor.WorkingHours.Validate(); err != nil {
		return nil, err
	}
	if err := learner.WorkingHours.Validate(); err != nil {
		return nil, err
	}

	location := req.Location
	if location == nil {
		location = time.UTC
	}
	from := req.From
	if from.IsZero() {
		from = time.Now()
	}
	from = from.In(location)

	window, ok := mentor.WorkingHours.Intersect(learner.WorkingHours)
	if !ok {
		return nil, ErrNoSlotFound
	}

	// First candidate minute of a day: the window start rounded up to a
	// granularity boundary.
	firstMinute := window.StartMinute
	if rem := firstMinute % granularity; rem != 0 {
		firstMinute += granularity - rem
	}

	var best *Slot
	for day := 0; day < horizon; day++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("slot search cancelled: %w", err)
		}

		midnight := time.Date(from.Year(), from.Month(), from.Day()+day, 0, 0, 0, 0, location)
		for minute := firstMinute; minute+duration <= window.EndMinute; minute += granularity {
			start := midnight.Add(time.Duration(minute) * time.Minute)
			if start.Before(from) {
				continue
			}
			end := start.Add(time.Duration(duration) * time.Minute)

			slot := Interval{Start: start.Unix(), End: end.Unix()}
			if slot.OverlapsAny(req.Exclude) {
				continue
			}
			if slot.OverlapsAny(mentor.Busy) || slot.OverlapsAny(learner.Busy) {
				continue
			}

			score := req.Preferences.score(start)
			if best == nil || score > best.Score {
				best = &Slot{Start: start, End: end, Score: score}
			}
		}
	}

	if best == nil {
		return nil, ErrNoSlotFound
	}
	return best, nil
}

// ProposeBooking packages a chosen slot as a pending booking. Committing
// it, and surviving the unique mentor/start constraint, is the store's
// job.
func ProposeBooking(slot *Slot, mentorID, learnerID int32) *store.Booking {
	return &store.Booking{
		ID:              uuid.NewString(),
		MentorID:        mentorID,
		LearnerID:       learnerID,
		StartTs:         slot.Start.Unix(),
		EndTs:           slot.End.Unix(),
		DurationMinutes: int32(slot.End.Sub(slot.Start) / time.Minute),
		Status:          store.BookingStatusPending,
	}
}
