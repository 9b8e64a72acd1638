package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"calbook/internal/models"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// CreateSchedule inserts the schedule and its rules in one transaction.
// When the schedule is marked default, every other default is demoted in
// the same transaction, so exactly one default survives concurrent edits.
func (db *DB) CreateSchedule(ctx context.Context, s *models.AvailabilitySchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if s.IsDefault {
		if err := demoteDefaults(ctx, tx, 0); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO availability_schedules (name, timezone, is_default, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		s.Name, s.Timezone, s.IsDefault, now, now)
	if err != nil {
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	s.UpdatedAt = now

	if err := insertRules(ctx, tx, id, s.Rules); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateSchedule rewrites the schedule row and, when Rules is non-nil,
// replaces the rule set. Default demotion happens in the same transaction.
func (db *DB) UpdateSchedule(ctx context.Context, s *models.AvailabilitySchedule) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if s.IsDefault {
		if err := demoteDefaults(ctx, tx, s.ID); err != nil {
			return err
		}
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE availability_schedules SET name = ?, timezone = ?, is_default = ?, updated_at = ? WHERE id = ?`,
		s.Name, s.Timezone, s.IsDefault, time.Now().UTC(), s.ID)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}

	if s.Rules != nil {
		if _, err := tx.ExecContext(ctx, `DELETE FROM availability_rules WHERE schedule_id = ?`, s.ID); err != nil {
			return fmt.Errorf("failed to replace rules: %w", err)
		}
		if err := insertRules(ctx, tx, s.ID, s.Rules); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// SetDefaultSchedule promotes one schedule and demotes the rest as a
// single atomic unit, never leaving zero or two defaults behind.
func (db *DB) SetDefaultSchedule(ctx context.Context, id int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := demoteDefaults(ctx, tx, id); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE availability_schedules SET is_default = 1, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set default schedule: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return tx.Commit()
}

func (db *DB) DeleteSchedule(ctx context.Context, id int64) error {
	var inUse int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM event_types WHERE schedule_id = ?`, id).Scan(&inUse)
	if err != nil {
		return fmt.Errorf("failed to check schedule usage: %w", err)
	}
	if inUse > 0 {
		return fmt.Errorf("%w: %d event type(s)", ErrScheduleInUse, inUse)
	}

	res, err := db.ExecContext(ctx, `DELETE FROM availability_schedules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete schedule: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) GetSchedule(ctx context.Context, id int64) (*models.AvailabilitySchedule, error) {
	var s models.AvailabilitySchedule
	err := db.QueryRowContext(ctx,
		`SELECT id, name, timezone, is_default, created_at, updated_at
		 FROM availability_schedules WHERE id = ?`, id).Scan(
		&s.ID, &s.Name, &s.Timezone, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get schedule: %w", err)
	}

	if s.Rules, err = db.getRules(ctx, id); err != nil {
		return nil, err
	}
	if s.Overrides, err = db.getOverrides(ctx, id); err != nil {
		return nil, err
	}
	return &s, nil
}

func (db *DB) ListSchedules(ctx context.Context) ([]models.AvailabilitySchedule, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, name, timezone, is_default, created_at, updated_at
		 FROM availability_schedules ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %w", err)
	}
	defer rows.Close()

	var schedules []models.AvailabilitySchedule
	for rows.Next() {
		var s models.AvailabilitySchedule
		if err := rows.Scan(&s.ID, &s.Name, &s.Timezone, &s.IsDefault, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan schedule: %w", err)
		}
		schedules = append(schedules, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range schedules {
		if schedules[i].Rules, err = db.getRules(ctx, schedules[i].ID); err != nil {
			return nil, err
		}
		if schedules[i].Overrides, err = db.getOverrides(ctx, schedules[i].ID); err != nil {
			return nil, err
		}
	}
	return schedules, nil
}

// AddDateOverride relies on the UNIQUE(schedule_id, date) constraint to
// keep one override per date; a duplicate maps to ErrOverrideExists.
func (db *DB) AddDateOverride(ctx context.Context, o *models.DateOverride) error {
	res, err := db.ExecContext(ctx,
		`INSERT INTO date_overrides (schedule_id, date, is_blocked, start_time, end_time)
		 VALUES (?, ?, ?, ?, ?)`,
		o.ScheduleID, o.Date, o.IsBlocked, nullableString(o.StartTime), nullableString(o.EndTime))
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return ErrOverrideExists
		}
		return fmt.Errorf("failed to add date override: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	o.ID = id
	return nil
}

func (db *DB) DeleteDateOverride(ctx context.Context, scheduleID, overrideID int64) error {
	res, err := db.ExecContext(ctx,
		`DELETE FROM date_overrides WHERE id = ? AND schedule_id = ?`, overrideID, scheduleID)
	if err != nil {
		return fmt.Errorf("failed to delete date override: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func demoteDefaults(ctx context.Context, tx *sql.Tx, keepID int64) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE availability_schedules SET is_default = 0, updated_at = ? WHERE is_default = 1 AND id != ?`,
		time.Now().UTC(), keepID)
	if err != nil {
		return fmt.Errorf("failed to demote default schedules: %w", err)
	}
	return nil
}

func insertRules(ctx context.Context, tx *sql.Tx, scheduleID int64, rules []models.AvailabilityRule) error {
	for i := range rules {
		r := &rules[i]
		res, err := tx.ExecContext(ctx,
			`INSERT INTO availability_rules (schedule_id, day_of_week, start_time, end_time)
			 VALUES (?, ?, ?, ?)`,
			scheduleID, r.DayOfWeek, r.StartTime, r.EndTime)
		if err != nil {
			return fmt.Errorf("failed to insert rule: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get rule insert id: %w", err)
		}
		r.ID = id
		r.ScheduleID = scheduleID
	}
	return nil
}

func (db *DB) getRules(ctx context.Context, scheduleID int64) ([]models.AvailabilityRule, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, schedule_id, day_of_week, start_time, end_time
		 FROM availability_rules WHERE schedule_id = ? ORDER BY day_of_week ASC, start_time ASC`,
		scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AvailabilityRule
	for rows.Next() {
		var r models.AvailabilityRule
		if err := rows.Scan(&r.ID, &r.ScheduleID, &r.DayOfWeek, &r.StartTime, &r.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

func (db *DB) getOverrides(ctx context.Context, scheduleID int64) ([]models.DateOverride, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT id, schedule_id, date, is_blocked, COALESCE(start_time, ''), COALESCE(end_time, '')
		 FROM date_overrides WHERE schedule_id = ? ORDER BY date ASC`,
		scheduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to get overrides: %w", err)
	}
	defer rows.Close()

	var overrides []models.DateOverride
	for rows.Next() {
		var o models.DateOverride
		if err := rows.Scan(&o.ID, &o.ScheduleID, &o.Date, &o.IsBlocked, &o.StartTime, &o.EndTime); err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		overrides = append(overrides, o)
	}
	return overrides, rows.Err()
}
