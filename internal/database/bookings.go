package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calbook/internal/models"
)

// reserveLockTimeout bounds the wait for the per-event-type writer lock.
const reserveLockTimeout = 5 * time.Second

const bookingColumns = `b.id, b.uid, b.event_type_id, et.title, b.booker_name, b.booker_email,
	                 b.start_time, b.end_time, b.timezone, b.status,
	                 COALESCE(b.rescheduled_from_id, 0), COALESCE(b.cancellation_reason, ''),
	                 b.created_at, b.updated_at`

// ReserveBooking inserts a CONFIRMED booking if and only if no other
// CONFIRMED booking of the same event type overlaps [start, end). The
// overlap re-check and the insert run inside one transaction, serialized
// per event type, so of two concurrent attempts for the same window
// exactly one commits; the other observes it and gets ErrSlotUnavailable.
// Any slot list the caller derived earlier is advisory only.
func (db *DB) ReserveBooking(ctx context.Context, booking *models.Booking) error {
	release, err := db.locks.acquire(ctx, booking.EventTypeID, reserveLockTimeout)
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	overlap, err := hasOverlap(ctx, tx, booking.EventTypeID, 0, booking.StartTime, booking.EndTime)
	if err != nil {
		return err
	}
	if overlap {
		return ErrSlotUnavailable
	}

	if err := insertBooking(ctx, tx, booking); err != nil {
		return err
	}
	return tx.Commit()
}

// RescheduleBooking atomically marks the original RESCHEDULED and inserts
// the replacement as CONFIRMED with a back-reference, after re-checking
// the new window against every other CONFIRMED booking of the event type.
// A lost race leaves the original untouched.
func (db *DB) RescheduleBooking(ctx context.Context, originalID int64, replacement *models.Booking) error {
	release, err := db.locks.acquire(ctx, replacement.EventTypeID, reserveLockTimeout)
	if err != nil {
		return err
	}
	defer release()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	overlap, err := hasOverlap(ctx, tx, replacement.EventTypeID, originalID, replacement.StartTime, replacement.EndTime)
	if err != nil {
		return err
	}
	if overlap {
		return ErrSlotUnavailable
	}

	// The status guard re-validates inside the transaction; the original
	// may have been cancelled since the caller last read it.
	res, err := tx.ExecContext(ctx,
		`UPDATE bookings SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.StatusRescheduled, time.Now().UTC(), originalID, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to mark booking rescheduled: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrBookingNotActive
	}

	replacement.RescheduledFromID = originalID
	if err := insertBooking(ctx, tx, replacement); err != nil {
		return err
	}
	return tx.Commit()
}

// CancelBooking transitions CONFIRMED -> CANCELLED and records the reason.
// CANCELLED is terminal; the slot is released for future conflict checks.
func (db *DB) CancelBooking(ctx context.Context, id int64, reason string) error {
	res, err := db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, cancellation_reason = ?, updated_at = ? WHERE id = ? AND status = ?`,
		models.StatusCancelled, reason, time.Now().UTC(), id, models.StatusConfirmed)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		if _, err := db.GetBooking(ctx, id); err != nil {
			return err
		}
		return ErrBookingNotActive
	}
	return nil
}

func hasOverlap(ctx context.Context, tx *sql.Tx, eventTypeID, excludeID int64, start, end time.Time) (bool, error) {
	// Half-open [start, end) overlap, same test the slot filter uses.
	query := `SELECT COUNT(*) FROM bookings
	          WHERE event_type_id = ? AND status = ? AND id != ?
	            AND start_time < ? AND end_time > ?`
	var count int
	err := tx.QueryRowContext(ctx, query,
		eventTypeID, models.StatusConfirmed, excludeID, fmtTime(end), fmtTime(start)).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check for overlap: %w", err)
	}
	return count > 0, nil
}

func insertBooking(ctx context.Context, tx *sql.Tx, b *models.Booking) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `INSERT INTO bookings (
				uid, event_type_id, booker_name, booker_email, start_time, end_time,
				timezone, status, rescheduled_from_id, cancellation_reason, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.UID, b.EventTypeID, b.BookerName, b.BookerEmail,
		fmtTime(b.StartTime), fmtTime(b.EndTime), b.Timezone, b.Status,
		nullableID(b.RescheduledFromID), nullableString(b.CancellationReason), now, now)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	b.ID = id
	b.CreatedAt = now
	b.UpdatedAt = now

	for i := range b.Answers {
		b.Answers[i].BookingID = id
		r, err := tx.ExecContext(ctx,
			`INSERT INTO booking_answers (booking_id, question_id, answer) VALUES (?, ?, ?)`,
			id, b.Answers[i].QuestionID, b.Answers[i].Answer)
		if err != nil {
			return fmt.Errorf("failed to insert booking answer: %w", err)
		}
		aid, err := r.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get answer insert id: %w", err)
		}
		b.Answers[i].ID = aid
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	return db.getBookingWhere(ctx, "b.id = ?", id)
}

func (db *DB) GetBookingByUID(ctx context.Context, uid string) (*models.Booking, error) {
	return db.getBookingWhere(ctx, "b.uid = ?", uid)
}

func (db *DB) getBookingWhere(ctx context.Context, where string, arg any) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
	          FROM bookings b JOIN event_types et ON et.id = b.event_type_id
	          WHERE ` + where
	row := db.QueryRowContext(ctx, query, arg)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	answers, err := db.getAnswers(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	booking.Answers = answers
	return booking, nil
}

// ConfirmedBookings returns every CONFIRMED booking of the event type
// whose interval intersects [from, to), ordered by start. Conflict checks
// always read committed state; there is no cached view of this set.
func (db *DB) ConfirmedBookings(ctx context.Context, eventTypeID int64, from, to time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
	          FROM bookings b JOIN event_types et ON et.id = b.event_type_id
	          WHERE b.event_type_id = ? AND b.status = ? AND b.start_time < ? AND b.end_time > ?
	          ORDER BY b.start_time ASC`
	rows, err := db.QueryContext(ctx, query, eventTypeID, models.StatusConfirmed, fmtTime(to), fmtTime(from))
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

// ListBookings serves the admin listing with optional status and
// upcoming/past filters, upcoming ascending and everything else
// most-recent-first.
func (db *DB) ListBookings(ctx context.Context, filter models.BookingFilter, now time.Time) ([]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
	          FROM bookings b JOIN event_types et ON et.id = b.event_type_id`
	var conds []string
	var args []any

	if filter.Status != "" {
		conds = append(conds, "b.status = ?")
		args = append(args, filter.Status)
	}
	order := " ORDER BY b.start_time DESC"
	if filter.Upcoming {
		conds = append(conds, "b.start_time >= ?", "b.status = ?")
		args = append(args, fmtTime(now), models.StatusConfirmed)
		order = " ORDER BY b.start_time ASC"
	} else if filter.Past {
		conds = append(conds, "(b.start_time < ? OR b.status IN (?, ?))")
		args = append(args, fmtTime(now), models.StatusCancelled, models.StatusRescheduled)
	}

	for i, c := range conds {
		if i == 0 {
			query += " WHERE " + c
		} else {
			query += " AND " + c
		}
	}
	query += order

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()
	return collectBookings(rows)
}

func (db *DB) GetBookingStats(ctx context.Context, now time.Time) (*models.BookingStats, error) {
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	stats := &models.BookingStats{}
	type count struct {
		dst   *int
		query string
		args  []any
	}
	counts := []count{
		{&stats.Upcoming, `SELECT COUNT(*) FROM bookings WHERE status = ? AND start_time > ?`,
			[]any{models.StatusConfirmed, fmtTime(now)}},
		{&stats.Today, `SELECT COUNT(*) FROM bookings WHERE status = ? AND start_time >= ? AND start_time < ?`,
			[]any{models.StatusConfirmed, fmtTime(dayStart), fmtTime(dayEnd)}},
		{&stats.Total, `SELECT COUNT(*) FROM bookings`, nil},
		{&stats.Cancelled, `SELECT COUNT(*) FROM bookings WHERE status = ?`, []any{models.StatusCancelled}},
	}
	for _, c := range counts {
		if err := db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("failed to get booking stats: %w", err)
		}
	}
	return stats, nil
}

// GetDailyBookings groups bookings in [from, to] by UTC calendar date,
// feeding the admin export.
func (db *DB) GetDailyBookings(ctx context.Context, from, to time.Time) (map[string][]models.Booking, error) {
	query := `SELECT ` + bookingColumns + `
	          FROM bookings b JOIN event_types et ON et.id = b.event_type_id
	          WHERE b.start_time >= ? AND b.start_time < ?
	          ORDER BY b.start_time ASC`
	rows, err := db.QueryContext(ctx, query, fmtTime(from), fmtTime(to.AddDate(0, 0, 1)))
	if err != nil {
		return nil, fmt.Errorf("failed to get daily bookings: %w", err)
	}
	defer rows.Close()

	bookings, err := collectBookings(rows)
	if err != nil {
		return nil, err
	}

	daily := make(map[string][]models.Booking)
	for _, b := range bookings {
		key := b.StartTime.UTC().Format(models.DateFormat)
		daily[key] = append(daily[key], b)
	}
	return daily, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*models.Booking, error) {
	var b models.Booking
	var startStr, endStr string
	err := row.Scan(
		&b.ID, &b.UID, &b.EventTypeID, &b.EventTypeTitle, &b.BookerName, &b.BookerEmail,
		&startStr, &endStr, &b.Timezone, &b.Status,
		&b.RescheduledFromID, &b.CancellationReason,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if b.StartTime, err = parseStoredTime(startStr); err != nil {
		return nil, err
	}
	if b.EndTime, err = parseStoredTime(endStr); err != nil {
		return nil, err
	}
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]models.Booking, error) {
	var bookings []models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (db *DB) getAnswers(ctx context.Context, bookingID int64) ([]models.BookingAnswer, error) {
	query := `SELECT a.id, a.booking_id, a.question_id, COALESCE(q.question, ''), a.answer
	          FROM booking_answers a
	          LEFT JOIN booking_questions q ON q.id = a.question_id
	          WHERE a.booking_id = ? ORDER BY a.id ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking answers: %w", err)
	}
	defer rows.Close()

	var answers []models.BookingAnswer
	for rows.Next() {
		var a models.BookingAnswer
		if err := rows.Scan(&a.ID, &a.BookingID, &a.QuestionID, &a.Question, &a.Answer); err != nil {
			return nil, fmt.Errorf("failed to scan booking answer: %w", err)
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}
