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
	"github.com/alexanderramin/cadence/internal/rrule"
)

// SQLiteGoalRepo implements GoalRepo using a SQLite database.
type SQLiteGoalRepo struct {
	db db.DBTX
}

// NewSQLiteGoalRepo creates a new SQLiteGoalRepo.
func NewSQLiteGoalRepo(conn db.DBTX) *SQLiteGoalRepo {
	return &SQLiteGoalRepo{db: conn}
}

const goalColumns = `id, title, description, rrule, horizon, created_at, updated_at`

func (r *SQLiteGoalRepo) Create(ctx context.Context, g *domain.Goal) error {
	query := `INSERT INTO goals (` + goalColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, query,
		g.ID,
		g.Title,
		g.Description,
		encodeRule(g.Rule),
		nullableDateToString(g.Horizon),
		g.CreatedAt.UTC().Format(time.RFC3339),
		g.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting goal: %w", err)
	}
	return nil
}

func (r *SQLiteGoalRepo) GetByID(ctx context.Context, id string) (*domain.Goal, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("goal: %w", ErrNotFound)
	}
	return g, err
}

func (r *SQLiteGoalRepo) List(ctx context.Context) ([]*domain.Goal, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+goalColumns+` FROM goals ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("listing goals: %w", err)
	}
	defer rows.Close()

	var goals []*domain.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, err
		}
		goals = append(goals, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating goals: %w", err)
	}
	return goals, nil
}

func (r *SQLiteGoalRepo) UpdateHorizon(ctx context.Context, id string, horizon calendar.Date) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET horizon = ?, updated_at = ? WHERE id = ?`,
		nullableDateToString(horizon), nowUTC(), id)
	if err != nil {
		return fmt.Errorf("updating goal horizon: %w", err)
	}
	return requireAffected(res, "goal")
}

// UpdateDetails writes the goal's title, description and updated_at.
func (r *SQLiteGoalRepo) UpdateDetails(ctx context.Context, g *domain.Goal) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET title = ?, description = ?, updated_at = ? WHERE id = ?`,
		g.Title, g.Description, g.UpdatedAt.UTC().Format(time.RFC3339), g.ID)
	if err != nil {
		return fmt.Errorf("updating goal details: %w", err)
	}
	return requireAffected(res, "goal")
}

func (r *SQLiteGoalRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM goals WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting goal: %w", err)
	}
	return requireAffected(res, "goal")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanGoal(s scanner) (*domain.Goal, error) {
	var g domain.Goal
	var ruleText, horizonStr sql.NullString
	var createdAtStr, updatedAtStr string

	if err := s.Scan(&g.ID, &g.Title, &g.Description, &ruleText, &horizonStr, &createdAtStr, &updatedAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning goal: %w", err)
	}

	rule, err := decodeRule(ruleText)
	if err != nil {
		return nil, fmt.Errorf("goal %s: %w", g.ID, err)
	}
	g.Rule = rule

	if g.Horizon, err = parseNullableDate(horizonStr); err != nil {
		return nil, fmt.Errorf("parsing goal horizon: %w", err)
	}
	if g.CreatedAt, g.UpdatedAt, err = parseTimestamps(createdAtStr, updatedAtStr); err != nil {
		return nil, fmt.Errorf("goal %s: %w", g.ID, err)
	}
	return &g, nil
}

func encodeRule(rule *domain.RecurrenceRule) interface{} {
	if rule == nil {
		return nil
	}
	return rrule.Encode(*rule)
}

func decodeRule(text sql.NullString) (*domain.RecurrenceRule, error) {
	if !text.Valid || text.String == "" {
		return nil, nil
	}
	rule, err := rrule.Decode(text.String)
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func requireAffected(res sql.Result, what string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return nil
}
