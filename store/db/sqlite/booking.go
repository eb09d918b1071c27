package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/lightpath-ai/lightpath/store"
)

func (d *DB) CreateBooking(ctx context.Context, create *store.Booking) (*store.Booking, error) {
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = now
	}

	fields := []string{"id", "created_ts", "updated_ts", "mentor_id", "learner_id", "start_ts", "end_ts", "duration_minutes", "status"}
	args := []any{create.ID, create.CreatedTs, create.UpdatedTs, create.MentorID, create.LearnerID, create.StartTs, create.EndTs, create.DurationMinutes, create.Status}
	placeholder := strings.TrimSuffix(strings.Repeat("?, ", len(args)), ", ")

	stmt := "INSERT INTO booking (" + strings.Join(fields, ", ") + ") VALUES (" + placeholder + ")"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		// modernc.org/sqlite reports constraint failures by message only.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, &store.SlotConflictError{MentorID: create.MentorID, StartTs: create.StartTs}
		}
		return nil, errors.Wrap(err, "failed to create booking")
	}

	return create, nil
}

func (d *DB) ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "booking.id = ?"), append(args, *v)
	}
	if v := find.MentorID; v != nil {
		where, args = append(where, "booking.mentor_id = ?"), append(args, *v)
	}
	if v := find.LearnerID; v != nil {
		where, args = append(where, "booking.learner_id = ?"), append(args, *v)
	}
	if v := find.StatusList; len(v) != 0 {
		holders := make([]string, 0, len(v))
		for _, status := range v {
			holders = append(holders, "?")
			args = append(args, string(status))
		}
		where = append(where, "booking.status IN ("+strings.Join(holders, ", ")+")")
	}
	if v := find.StartTsAfter; v != nil {
		where, args = append(where, "booking.start_ts >= ?"), append(args, *v)
	}
	if v := find.StartTsBefore; v != nil {
		where, args = append(where, "booking.start_ts < ?"), append(args, *v)
	}

	query := `SELECT
		booking.id,
		booking.created_ts,
		booking.updated_ts,
		booking.mentor_id,
		booking.learner_id,
		booking.start_ts,
		booking.end_ts,
		booking.duration_minutes,
		booking.status
	FROM booking
	WHERE ` + strings.Join(where, " AND ") + `
	ORDER BY booking.start_ts ASC, booking.id ASC`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bookings")
	}
	defer rows.Close()

	list := []*store.Booking{}
	for rows.Next() {
		booking := &store.Booking{}
		if err := rows.Scan(
			&booking.ID,
			&booking.CreatedTs,
			&booking.UpdatedTs,
			&booking.MentorID,
			&booking.LearnerID,
			&booking.StartTs,
			&booking.EndTs,
			&booking.DurationMinutes,
			&booking.Status,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan booking")
		}
		list = append(list, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

func (d *DB) UpdateBookingStatus(ctx context.Context, id string, status store.BookingStatus) (*store.Booking, error) {
	stmt := `UPDATE booking SET status = ?, updated_ts = ? WHERE id = ?`
	result, err := d.db.ExecContext(ctx, stmt, status, time.Now().Unix(), id)
	if err != nil {
		return nil, errors.Wrap(err, "failed to update booking status")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, errors.Errorf("booking not found: %s", id)
	}

	list, err := d.ListBookings(ctx, &store.FindBooking{ID: &id})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, errors.Errorf("booking not found: %s", id)
	}
	return list[0], nil
}
