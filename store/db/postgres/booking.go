package postgres

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/lib/pq"
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

	stmt := "INSERT INTO booking (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ")"
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return nil, &store.SlotConflictError{MentorID: create.MentorID, StartTs: create.StartTs}
		}
		return nil, errors.Wrap(err, "failed to create booking")
	}

	return create, nil
}

func (d *DB) ListBookings(ctx context.Context, find *store.FindBooking) ([]*store.Booking, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "booking.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.MentorID; v != nil {
		where, args = append(where, "booking.mentor_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.LearnerID; v != nil {
		where, args = append(where, "booking.learner_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.StatusList; len(v) != 0 {
		list := make([]string, 0, len(v))
		for _, status := range v {
			list = append(list, string(status))
		}
		where, args = append(where, "booking.status = ANY("+placeholder(len(args)+1)+")"), append(args, pq.Array(list))
	}
	if v := find.StartTsAfter; v != nil {
		where, args = append(where, "booking.start_ts >= "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.StartTsBefore; v != nil {
		where, args = append(where, "booking.start_ts < "+placeholder(len(args)+1)), append(args, *v)
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
	stmt := `UPDATE booking
		SET status = $1, updated_ts = $2
		WHERE id = $3
		RETURNING id, created_ts, updated_ts, mentor_id, learner_id, start_ts, end_ts, duration_minutes, status`
	booking := &store.Booking{}
	if err := d.db.QueryRowContext(ctx, stmt, status, time.Now().Unix(), id).Scan(
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
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Errorf("booking not found: %s", id)
		}
		return nil, errors.Wrap(err, "failed to update booking status")
	}
	return booking, nil
}
