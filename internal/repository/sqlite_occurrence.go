package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

// SQLiteOccurrenceRepo implements OccurrenceRepo using a SQLite database.
type SQLiteOccurrenceRepo struct {
	db db.DBTX
}

// NewSQLiteOccurrenceRepo creates a new SQLiteOccurrenceRepo.
func NewSQLiteOccurrenceRepo(conn db.DBTX) *SQLiteOccurrenceRepo {
	return &SQLiteOccurrenceRepo{db: conn}
}

const occurrenceColumns = `id, goal_id, date, original_date, completed, notes, origin, skipped, created_at, updated_at`

func (r *SQLiteOccurrenceRepo) ListByGoal(ctx context.Context, goalID string) ([]domain.Occurrence, error) {
	return r.query(ctx, `SELECT `+occurrenceColumns+` FROM occurrences
		WHERE goal_id = ? ORDER BY date, id`, goalID)
}

func (r *SQLiteOccurrenceRepo) ListByGoalInRange(ctx context.Context, goalID string, window calendar.Range) ([]domain.Occurrence, error) {
	return r.query(ctx, `SELECT `+occurrenceColumns+` FROM occurrences
		WHERE goal_id = ? AND date >= ? AND date <= ? ORDER BY date, id`,
		goalID, window.Start.String(), window.End.String())
}

func (r *SQLiteOccurrenceRepo) ListInRange(ctx context.Context, window calendar.Range) ([]domain.Occurrence, error) {
	return r.query(ctx, `SELECT `+occurrenceColumns+` FROM occurrences
		WHERE date >= ? AND date <= ? ORDER BY date, goal_id, id`,
		window.Start.String(), window.End.String())
}

func (r *SQLiteOccurrenceRepo) GetByID(ctx context.Context, id string) (*domain.Occurrence, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+occurrenceColumns+` FROM occurrences WHERE id = ?`, id)
	o, err := scanOccurrence(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("occurrence: %w", ErrNotFound)
		}
		return nil, err
	}
	return &o, nil
}

func (r *SQLiteOccurrenceRepo) ApplyDiff(ctx context.Context, goalID string, create []domain.Occurrence, deleteIDs []string) error {
	for _, id := range deleteIDs {
		if _, err := r.db.ExecContext(ctx, `DELETE FROM occurrences WHERE id = ? AND goal_id = ?`, id, goalID); err != nil {
			return fmt.Errorf("deleting occurrence %s: %w", id, err)
		}
	}
	for i := range create {
		o := &create[i]
		if o.GoalID != goalID {
			return fmt.Errorf("occurrence %s belongs to goal %s, not %s", o.ID, o.GoalID, goalID)
		}
		if err := r.insert(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteOccurrenceRepo) insert(ctx context.Context, o *domain.Occurrence) error {
	query := `INSERT INTO occurrences (` + occurrenceColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		o.ID,
		o.GoalID,
		o.Date.String(),
		originalDate(o).String(),
		boolToInt(o.Completed),
		nullableStringToValue(o.Notes),
		string(o.Origin),
		boolToInt(o.Skipped),
		o.CreatedAt.UTC().Format(time.RFC3339),
		o.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting occurrence: %w", err)
	}
	return nil
}

func (r *SQLiteOccurrenceRepo) Update(ctx context.Context, o *domain.Occurrence) error {
	query := `UPDATE occurrences SET date = ?, original_date = ?, completed = ?, notes = ?, origin = ?, skipped = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, query,
		o.Date.String(),
		originalDate(o).String(),
		boolToInt(o.Completed),
		nullableStringToValue(o.Notes),
		string(o.Origin),
		boolToInt(o.Skipped),
		o.UpdatedAt.UTC().Format(time.RFC3339),
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("updating occurrence: %w", err)
	}
	return requireAffected(res, "occurrence")
}

func (r *SQLiteOccurrenceRepo) query(ctx context.Context, query string, args ...any) ([]domain.Occurrence, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing occurrences: %w", err)
	}
	defer rows.Close()

	var out []domain.Occurrence
	for rows.Next() {
		o, err := scanOccurrence(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating occurrences: %w", err)
	}
	return out, nil
}

func scanOccurrence(s scanner) (domain.Occurrence, error) {
	var o domain.Occurrence
	var dateStr, originalStr, originStr, createdAtStr, updatedAtStr string
	var completed, skipped int
	var notes sql.NullString

	err := s.Scan(&o.ID, &o.GoalID, &dateStr, &originalStr, &completed, &notes, &originStr, &skipped, &createdAtStr, &updatedAtStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return o, err
		}
		return o, fmt.Errorf("scanning occurrence: %w", err)
	}

	if o.Date, err = calendar.Parse(dateStr); err != nil {
		return o, fmt.Errorf("occurrence %s: %w", o.ID, err)
	}
	if o.OriginalDate, err = calendar.Parse(originalStr); err != nil {
		return o, fmt.Errorf("occurrence %s: %w", o.ID, err)
	}
	o.Completed = intToBool(completed)
	o.Skipped = intToBool(skipped)
	o.Notes = parseNullableString(notes)
	o.Origin = domain.Origin(originStr)
	if o.CreatedAt, o.UpdatedAt, err = parseTimestamps(createdAtStr, updatedAtStr); err != nil {
		return o, fmt.Errorf("occurrence %s: %w", o.ID, err)
	}
	return o, nil
}

func originalDate(o *domain.Occurrence) calendar.Date {
	if o.OriginalDate.IsZero() {
		return o.Date
	}
	return o.OriginalDate
}
