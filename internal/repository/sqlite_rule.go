package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/cadence/internal/db"
	"github.com/alexanderramin/cadence/internal/domain"
)

// SQLiteRuleRepo implements RuleRepo over the goals.rrule column.
type SQLiteRuleRepo struct {
	db db.DBTX
}

// NewSQLiteRuleRepo creates a new SQLiteRuleRepo.
func NewSQLiteRuleRepo(conn db.DBTX) *SQLiteRuleRepo {
	return &SQLiteRuleRepo{db: conn}
}

func (r *SQLiteRuleRepo) Load(ctx context.Context, goalID string) (*domain.RecurrenceRule, error) {
	var text sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT rrule FROM goals WHERE id = ?`, goalID).Scan(&text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("goal: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("loading rule: %w", err)
	}
	rule, err := decodeRule(text)
	if err != nil {
		return nil, fmt.Errorf("loading rule for goal %s: %w", goalID, err)
	}
	return rule, nil
}

func (r *SQLiteRuleRepo) Save(ctx context.Context, goalID string, rule *domain.RecurrenceRule) error {
	res, err := r.db.ExecContext(ctx, `UPDATE goals SET rrule = ?, updated_at = ? WHERE id = ?`,
		encodeRule(rule), nowUTC(), goalID)
	if err != nil {
		return fmt.Errorf("saving rule: %w", err)
	}
	return requireAffected(res, "goal")
}
