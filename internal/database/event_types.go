package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"calbook/internal/models"
)

func (db *DB) CreateEventType(ctx context.Context, et *models.EventType) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := checkSlugFree(ctx, tx, et.Slug, 0); err != nil {
		return err
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `INSERT INTO event_types (
				title, description, slug, duration, buffer_before, buffer_after,
				color, is_active, schedule_id, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		et.Title, et.Description, et.Slug, et.Duration, et.BufferBefore, et.BufferAfter,
		et.Color, et.IsActive, nullableID(et.ScheduleID), now, now)
	if err != nil {
		return fmt.Errorf("failed to create event type: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	et.ID = id
	et.CreatedAt = now
	et.UpdatedAt = now

	if err := insertQuestions(ctx, tx, id, et.Questions); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateEventType replaces the row and, when Questions is non-nil, the
// whole question set. Passing nil questions leaves the existing set alone.
func (db *DB) UpdateEventType(ctx context.Context, et *models.EventType) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := checkSlugFree(ctx, tx, et.Slug, et.ID); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx, `UPDATE event_types SET
				title = ?, description = ?, slug = ?, duration = ?, buffer_before = ?,
				buffer_after = ?, color = ?, is_active = ?, schedule_id = ?, updated_at = ?
			WHERE id = ?`,
		et.Title, et.Description, et.Slug, et.Duration, et.BufferBefore, et.BufferAfter,
		et.Color, et.IsActive, nullableID(et.ScheduleID), time.Now().UTC(), et.ID)
	if err != nil {
		return fmt.Errorf("failed to update event type: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	if et.Questions != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM booking_questions WHERE event_type_id = ?`, et.ID); err != nil {
			return fmt.Errorf("failed to replace questions: %w", err)
		}
		if err := insertQuestions(ctx, tx, et.ID, et.Questions); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (db *DB) DeleteEventType(ctx context.Context, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM event_types WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete event type: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetEventTypeByID(ctx context.Context, id int64) (*models.EventType, error) {
	return db.getEventTypeWhere(ctx, "id = ?", id)
}

func (db *DB) GetEventTypeBySlug(ctx context.Context, slug string) (*models.EventType, error) {
	return db.getEventTypeWhere(ctx, "slug = ?", slug)
}

func (db *DB) getEventTypeWhere(ctx context.Context, where string, arg any) (*models.EventType, error) {
	query := `SELECT id, title, COALESCE(description, ''), slug, duration, buffer_before,
	                 buffer_after, COALESCE(color, ''), is_active, COALESCE(schedule_id, 0),
	                 created_at, updated_at
	          FROM event_types WHERE ` + where
	var et models.EventType
	err := db.QueryRowContext(ctx, query, arg).Scan(
		&et.ID, &et.Title, &et.Description, &et.Slug, &et.Duration, &et.BufferBefore,
		&et.BufferAfter, &et.Color, &et.IsActive, &et.ScheduleID,
		&et.CreatedAt, &et.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get event type: %w", err)
	}

	questions, err := db.getQuestions(ctx, et.ID)
	if err != nil {
		return nil, err
	}
	et.Questions = questions
	return &et, nil
}

func (db *DB) ListEventTypes(ctx context.Context) ([]models.EventType, error) {
	query := `SELECT id, title, COALESCE(description, ''), slug, duration, buffer_before,
	                 buffer_after, COALESCE(color, ''), is_active, COALESCE(schedule_id, 0),
	                 created_at, updated_at
	          FROM event_types ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list event types: %w", err)
	}
	defer rows.Close()

	var eventTypes []models.EventType
	for rows.Next() {
		var et models.EventType
		err := rows.Scan(
			&et.ID, &et.Title, &et.Description, &et.Slug, &et.Duration, &et.BufferBefore,
			&et.BufferAfter, &et.Color, &et.IsActive, &et.ScheduleID,
			&et.CreatedAt, &et.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event type: %w", err)
		}
		eventTypes = append(eventTypes, et)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range eventTypes {
		questions, err := db.getQuestions(ctx, eventTypes[i].ID)
		if err != nil {
			return nil, err
		}
		eventTypes[i].Questions = questions
	}
	return eventTypes, nil
}

func checkSlugFree(ctx context.Context, tx *sql.Tx, slug string, excludeID int64) error {
	var count int
	err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_types WHERE slug = ? AND id != ?`, slug, excludeID).Scan(&count)
	if err != nil {
		return fmt.Errorf("failed to check slug: %w", err)
	}
	if count > 0 {
		return ErrSlugExists
	}
	return nil
}

func insertQuestions(ctx context.Context, tx *sql.Tx, eventTypeID int64, questions []models.BookingQuestion) error {
	for i := range questions {
		q := &questions[i]
		opts, err := marshalOptions(q.Options)
		if err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO booking_questions (
					event_type_id, question, type, is_required, options, ord
				) VALUES (?, ?, ?, ?, ?, ?)`,
			eventTypeID, q.Question, q.Type, q.IsRequired, opts, i)
		if err != nil {
			return fmt.Errorf("failed to insert question: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get question insert id: %w", err)
		}
		q.ID = id
		q.EventTypeID = eventTypeID
		q.Order = i
	}
	return nil
}

func (db *DB) getQuestions(ctx context.Context, eventTypeID int64) ([]models.BookingQuestion, error) {
	query := `SELECT id, event_type_id, question, type, is_required, COALESCE(options, ''), ord
	          FROM booking_questions WHERE event_type_id = ? ORDER BY ord ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, eventTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get questions: %w", err)
	}
	defer rows.Close()

	var questions []models.BookingQuestion
	for rows.Next() {
		var q models.BookingQuestion
		var opts string
		if err := rows.Scan(&q.ID, &q.EventTypeID, &q.Question, &q.Type, &q.IsRequired, &opts, &q.Order); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		if q.Options, err = unmarshalOptions(opts); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// Question options live as a typed []string in the domain; JSON appears
// only here at the persistence edge.
func marshalOptions(options []string) (any, error) {
	if len(options) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(options)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal question options: %w", err)
	}
	return string(raw), nil
}

func unmarshalOptions(raw string) ([]string, error) {
	if raw == "" {
		return nil, nil
	}
	var options []string
	if err := json.Unmarshal([]byte(raw), &options); err != nil {
		return nil, fmt.Errorf("failed to unmarshal question options: %w", err)
	}
	return options, nil
}
