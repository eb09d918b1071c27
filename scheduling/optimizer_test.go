package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lightpath-ai/lightpath/store"
)

// monday is the fixed reference time all slot tests scan from.
var monday = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func TestReferenceDateIsMonday(t *testing.T) {
	if monday.Weekday() != time.Monday {
		t.Fatalf("reference date %v is a %v, fixtures assume Monday", monday, monday.Weekday())
	}
}

func hours(startHour, endHour int) WorkingHours {
	return WorkingHours{StartMinute: startHour * 60, EndMinute: endHour * 60}
}

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, 2+day, hour, minute, 0, 0, time.UTC)
}

func busyBetween(day, startHour, startMinute, endHour, endMinute int) Interval {
	return Interval{
		Start: at(day, startHour, startMinute).Unix(),
		End:   at(day, endHour, endMinute).Unix(),
	}
}

func TestFindSlotEarliestWhenUnconstrained(t *testing.T) {
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 17)},
		Calendar{WorkingHours: hours(9, 17)},
		Request{From: monday, DurationMinutes: 60})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}

	if !slot.Start.Equal(at(0, 9, 0)) {
		t.Errorf("Start = %v, want %v", slot.Start, at(0, 9, 0))
	}
	if !slot.End.Equal(at(0, 10, 0)) {
		t.Errorf("End = %v, want %v", slot.End, at(0, 10, 0))
	}
	if slot.Score != 0 {
		t.Errorf("Score = %d, want 0", slot.Score)
	}
}

func TestFindSlotDefaultDuration(t *testing.T) {
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 17)},
		Calendar{WorkingHours: hours(9, 17)},
		Request{From: monday})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if got := slot.End.Sub(slot.Start); got != store.DefaultBookingDurationMinutes*time.Minute {
		t.Errorf("duration = %v, want %v minutes", got, store.DefaultBookingDurationMinutes)
	}
}

func TestFindSlotIntersectsWorkingHours(t *testing.T) {
	// Mentor mornings only, learner from 11: the shared window is 11-12.
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 12)},
		Calendar{WorkingHours: hours(11, 17)},
		Request{From: monday, DurationMinutes: 60})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if !slot.Start.Equal(at(0, 11, 0)) {
		t.Errorf("Start = %v, want %v", slot.Start, at(0, 11, 0))
	}
}

func TestFindSlotDisjointWorkingHours(t *testing.T) {
	_, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 12)},
		Calendar{WorkingHours: hours(13, 17)},
		Request{From: monday, DurationMinutes: 60})
	if !errors.Is(err, ErrNoSlotFound) {
		t.Errorf("error = %v, want ErrNoSlotFound", err)
	}
}

func TestFindSlotSkipsBusyIntervalsOfEitherCalendar(t *testing.T) {
	// The shared window is one slot a day; Monday is blocked for the
	// mentor, Tuesday for the learner.
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(11, 12), Busy: []Interval{busyBetween(0, 11, 0, 12, 0)}},
		Calendar{WorkingHours: hours(9, 17), Busy: []Interval{busyBetween(1, 11, 0, 12, 0)}},
		Request{From: monday, DurationMinutes: 60})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if !slot.Start.Equal(at(2, 11, 0)) {
		t.Errorf("Start = %v, want Wednesday %v", slot.Start, at(2, 11, 0))
	}
}

func TestFindSlotClosedIntervalBoundary(t *testing.T) {
	// Busy through 10:30 inclusive: the 10:30 candidate touches it and
	// conflicts, leaving the day empty.
	_, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(10, 11), Busy: []Interval{busyBetween(0, 10, 0, 10, 30)}},
		Calendar{WorkingHours: hours(10, 11)},
		Request{From: monday, DurationMinutes: 30, HorizonDays: 1})
	if !errors.Is(err, ErrNoSlotFound) {
		t.Fatalf("error = %v, want ErrNoSlotFound for a touching boundary", err)
	}

	// One second short of the boundary frees the 10:30 candidate.
	busyShort := Interval{Start: at(0, 10, 0).Unix(), End: at(0, 10, 30).Unix() - 1}
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(10, 11), Busy: []Interval{busyShort}},
		Calendar{WorkingHours: hours(10, 11)},
		Request{From: monday, DurationMinutes: 30, HorizonDays: 1})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if !slot.Start.Equal(at(0, 10, 30)) {
		t.Errorf("Start = %v, want %v", slot.Start, at(0, 10, 30))
	}
}

func TestFindSlotNoOvernightSpillover(t *testing.T) {
	// A 2-hour session never fits a 1-hour daily window.
	_, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(10, 11)},
		Calendar{WorkingHours: hours(10, 11)},
		Request{From: monday, DurationMinutes: 120})
	if !errors.Is(err, ErrNoSlotFound) {
		t.Errorf("error = %v, want ErrNoSlotFound", err)
	}
}

func TestFindSlotRespectsFrom(t *testing.T) {
	// At 16:30 the last fitting Monday start (16:00) is already past.
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 17)},
		Calendar{WorkingHours: hours(9, 17)},
		Request{From: at(0, 16, 30), DurationMinutes: 60})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if !slot.Start.Equal(at(1, 9, 0)) {
		t.Errorf("Start = %v, want Tuesday %v", slot.Start, at(1, 9, 0))
	}
}

func TestFindSlotGranularityAlignment(t *testing.T) {
	// Window opens 9:15; candidates stay on the half-hour grid.
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: WorkingHours{StartMinute: 9*60 + 15, EndMinute: 12 * 60}},
		Calendar{WorkingHours: hours(9, 17)},
		Request{From: monday, DurationMinutes: 30})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if !slot.Start.Equal(at(0, 9, 30)) {
		t.Errorf("Start = %v, want %v", slot.Start, at(0, 9, 30))
	}
}

func TestFindSlotTimeOfDayPreference(t *testing.T) {
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 20)},
		Calendar{WorkingHours: hours(9, 20)},
		Request{
			From:            monday,
			DurationMinutes: 60,
			Preferences:     Preferences{TimeOfDay: TimeOfDayEvening},
		})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if !slot.Start.Equal(at(0, 17, 0)) {
		t.Errorf("Start = %v, want evening slot %v", slot.Start, at(0, 17, 0))
	}
	if slot.Score != 1 {
		t.Errorf("Score = %d, want 1", slot.Score)
	}
}

func TestFindSlotWeekdayPreference(t *testing.T) {
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 17)},
		Calendar{WorkingHours: hours(9, 17)},
		Request{
			From:            monday,
			DurationMinutes: 60,
			Preferences:     Preferences{Weekdays: []time.Weekday{time.Saturday}},
		})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if got := slot.Start.Weekday(); got != time.Saturday {
		t.Errorf("Weekday = %v, want Saturday", got)
	}
	if !slot.Start.Equal(at(5, 9, 0)) {
		t.Errorf("Start = %v, want %v", slot.Start, at(5, 9, 0))
	}
}

func TestFindSlotPreferencesAreAdditive(t *testing.T) {
	// Saturday evening scores 2, beating Monday evening and Saturday
	// morning at 1 each.
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 20)},
		Calendar{WorkingHours: hours(9, 20)},
		Request{
			From:            monday,
			DurationMinutes: 60,
			Preferences: Preferences{
				TimeOfDay: TimeOfDayEvening,
				Weekdays:  []time.Weekday{time.Saturday},
			},
		})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if got := slot.Start.Weekday(); got != time.Saturday {
		t.Errorf("Weekday = %v, want Saturday", got)
	}
	if !slot.Start.Equal(at(5, 17, 0)) {
		t.Errorf("Start = %v, want %v", slot.Start, at(5, 17, 0))
	}
	if slot.Score != 2 {
		t.Errorf("Score = %d, want 2", slot.Score)
	}
}

func TestFindSlotUnsatisfiablePreferenceStillReturnsSoonest(t *testing.T) {
	// Evenings never fall inside a 9-12 window; the soonest feasible
	// slot is returned anyway.
	slot, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 12)},
		Calendar{WorkingHours: hours(9, 12)},
		Request{
			From:            monday,
			DurationMinutes: 60,
			Preferences:     Preferences{TimeOfDay: TimeOfDayEvening},
		})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}
	if !slot.Start.Equal(at(0, 9, 0)) {
		t.Errorf("Start = %v, want %v", slot.Start, at(0, 9, 0))
	}
	if slot.Score != 0 {
		t.Errorf("Score = %d, want 0", slot.Score)
	}
}

func TestFindSlotExcludeSupportsConflictRetry(t *testing.T) {
	mentor := Calendar{WorkingHours: hours(9, 17)}
	learner := Calendar{WorkingHours: hours(9, 17)}

	first, err := FindSlot(context.Background(), mentor, learner,
		Request{From: monday, DurationMinutes: 60})
	if err != nil {
		t.Fatalf("FindSlot() error = %v", err)
	}

	// The proposed slot was taken: re-run excluding it. 10:00 still
	// touches the excluded [9:00, 10:00], so the retry lands on 10:30.
	retry, err := FindSlot(context.Background(), mentor, learner,
		Request{From: monday, DurationMinutes: 60, Exclude: []Interval{first.Interval()}})
	if err != nil {
		t.Fatalf("retry FindSlot() error = %v", err)
	}
	if !retry.Start.Equal(at(0, 10, 30)) {
		t.Errorf("retry Start = %v, want %v", retry.Start, at(0, 10, 30))
	}
}

func TestFindSlotFullyBookedHorizon(t *testing.T) {
	// One busy block covering the whole horizon.
	horizonEnd := Interval{Start: monday.Unix(), End: monday.AddDate(0, 0, DefaultHorizonDays).Unix()}

	_, err := FindSlot(context.Background(),
		Calendar{WorkingHours: hours(9, 17), Busy: []Interval{horizonEnd}},
		Calendar{WorkingHours: hours(9, 17)},
		Request{From: monday, DurationMinutes: 60})
	if !errors.Is(err, ErrNoSlotFound) {
		t.Errorf("error = %v, want ErrNoSlotFound", err)
	}
}

func TestFindSlotValidation(t *testing.T) {
	valid := Calendar{WorkingHours: hours(9, 17)}

	tests := []struct {
		name    string
		mentor  Calendar
		learner Calendar
		req     Request
	}{
		{"negative duration", valid, valid, Request{From: monday, DurationMinutes: -30}},
		{"negative granularity", valid, valid, Request{From: monday, GranularityMinutes: -15}},
		{"negative horizon", valid, valid, Request{From: monday, HorizonDays: -1}},
		{"inverted working hours", Calendar{WorkingHours: WorkingHours{StartMinute: 600, EndMinute: 540}}, valid, Request{From: monday}},
		{"working hours beyond the day", valid, Calendar{WorkingHours: WorkingHours{StartMinute: 540, EndMinute: 25 * 60}}, Request{From: monday}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FindSlot(context.Background(), tt.mentor, tt.learner, tt.req); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestFindSlotCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := FindSlot(ctx,
		Calendar{WorkingHours: hours(9, 17)},
		Calendar{WorkingHours: hours(9, 17)},
		Request{From: monday})
	if err == nil || errors.Is(err, ErrNoSlotFound) {
		t.Errorf("error = %v, want context error", err)
	}
}

func TestProposeBooking(t *testing.T) {
	slot := &Slot{Start: at(0, 11, 0), End: at(0, 12, 0)}

	booking := ProposeBooking(slot, 7, 42)

	if booking.ID == "" {
		t.Error("booking ID is empty")
	}
	if booking.MentorID != 7 || booking.LearnerID != 42 {
		t.Errorf("participants = mentor %d learner %d, want 7 and 42", booking.MentorID, booking.LearnerID)
	}
	if booking.Status != store.BookingStatusPending {
		t.Errorf("Status = %v, want %v", booking.Status, store.BookingStatusPending)
	}
	if booking.StartTs != slot.Start.Unix() || booking.EndTs != slot.End.Unix() {
		t.Errorf("interval = [%d, %d], want [%d, %d]", booking.StartTs, booking.EndTs, slot.Start.Unix(), slot.End.Unix())
	}
	if booking.DurationMinutes != 60 {
		t.Errorf("DurationMinutes = %d, want 60", booking.DurationMinutes)
	}

	again := ProposeBooking(slot, 7, 42)
	if again.ID == booking.ID {
		t.Error("proposals should mint distinct IDs")
	}
}
