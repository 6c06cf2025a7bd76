package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/splitledger/splitledger/internal/models"
)

// CreateExpense persists an expense and its splits in one transaction.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO expenses (id, group_id, title, amount, currency, payer_id, strategy, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		expense.ID, expense.GroupID, expense.Title, expense.Amount.String(),
		expense.Currency, expense.PayerID, expense.Strategy, expense.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert expense: %w", err)
	}

	for i := range expense.Splits {
		split := &expense.Splits[i]
		if split.ID == "" {
			split.ID = uuid.New().String()
		}
		split.ExpenseID = expense.ID

		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_splits (id, expense_id, participant_id, amount, percentage, is_payer, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			split.ID, split.ExpenseID, split.ParticipantID,
			split.Amount.String(), split.Percentage.String(), split.IsPayer, split.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to insert split: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetExpense retrieves an expense with its splits.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expense, err := s.scanExpense(s.db.QueryRowContext(ctx,
		`SELECT id, group_id, title, amount, currency, payer_id, strategy, created_at,
		        is_locked, locked_at, locked_by_finalization_id
		 FROM expenses WHERE id = ?`,
		expenseID,
	))
	if err == sql.ErrNoRows {
		return nil, models.Errorf(models.KindExpenseNotFound, "expense not found: %s", expenseID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get expense: %w", err)
	}

	expense.Splits, err = s.listSplits(ctx, expense.ID)
	if err != nil {
		return nil, err
	}
	return expense, nil
}

// ListExpensesByGroup returns all expenses of a group with their splits,
// oldest first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, title, amount, currency, payer_id, strategy, created_at,
		        is_locked, locked_at, locked_by_finalization_id
		 FROM expenses WHERE group_id = ? ORDER BY created_at, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []models.Expense
	for rows.Next() {
		expense, err := s.scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		expenses = append(expenses, *expense)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}

	for i := range expenses {
		expenses[i].Splits, err = s.listSplits(ctx, expenses[i].ID)
		if err != nil {
			return nil, err
		}
	}
	return expenses, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) scanExpense(row rowScanner) (*models.Expense, error) {
	expense := &models.Expense{}
	var amount string
	err := row.Scan(
		&expense.ID, &expense.GroupID, &expense.Title, &amount, &expense.Currency,
		&expense.PayerID, &expense.Strategy, &expense.CreatedAt,
		&expense.Locked, &expense.LockedAt, &expense.LockedByFinalizationID,
	)
	if err != nil {
		return nil, err
	}
	if expense.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return expense, nil
}

func (s *SQLiteStore) listSplits(ctx context.Context, expenseID string) ([]models.ExpenseSplit, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, expense_id, participant_id, amount, percentage, is_payer, status
		 FROM expense_splits WHERE expense_id = ? ORDER BY participant_id`,
		expenseID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list splits: %w", err)
	}
	defer rows.Close()

	var splits []models.ExpenseSplit
	for rows.Next() {
		var split models.ExpenseSplit
		var amount, percentage string
		if err := rows.Scan(&split.ID, &split.ExpenseID, &split.ParticipantID,
			&amount, &percentage, &split.IsPayer, &split.Status); err != nil {
			return nil, fmt.Errorf("failed to scan split: %w", err)
		}
		if split.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		if split.Percentage, err = parseAmount(percentage); err != nil {
			return nil, err
		}
		splits = append(splits, split)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate splits: %w", err)
	}
	return splits, nil
}

// ReplaceSplits reconciles the expense's split rows against the given set in
// one transaction. The lock check runs inside the same transaction so a
// concurrent finalization approval cannot slip in between.
func (s *SQLiteStore) ReplaceSplits(ctx context.Context, expenseID string, strategy models.SplitStrategy, splits []models.ExpenseSplit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var locked bool
	err = tx.QueryRowContext(ctx, "SELECT is_locked FROM expenses WHERE id = ?", expenseID).Scan(&locked)
	if err == sql.ErrNoRows {
		return models.Errorf(models.KindExpenseNotFound, "expense not found: %s", expenseID)
	}
	if err != nil {
		return fmt.Errorf("failed to check expense lock: %w", err)
	}
	if locked {
		return models.Errorf(models.KindExpenseLocked, "expense %s is locked by a finalization", expenseID)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE expenses SET strategy = ? WHERE id = ?", strategy, expenseID); err != nil {
		return fmt.Errorf("failed to update expense strategy: %w", err)
	}

	// Upsert the reconciled splits, then delete rows for participants that
	// are no longer part of the expense.
	keep := make([]any, 0, len(splits)+1)
	keep = append(keep, expenseID)
	for i := range splits {
		split := &splits[i]
		if split.ID == "" {
			split.ID = uuid.New().String()
		}
		split.ExpenseID = expenseID

		_, err = tx.ExecContext(ctx,
			`INSERT INTO expense_splits (id, expense_id, participant_id, amount, percentage, is_payer, status)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (expense_id, participant_id) DO UPDATE SET
			     amount = excluded.amount,
			     percentage = excluded.percentage,
			     is_payer = excluded.is_payer,
			     status = excluded.status`,
			split.ID, split.ExpenseID, split.ParticipantID,
			split.Amount.String(), split.Percentage.String(), split.IsPayer, split.Status,
		)
		if err != nil {
			return fmt.Errorf("failed to upsert split: %w", err)
		}
		keep = append(keep, split.ParticipantID)
	}

	query := "DELETE FROM expense_splits WHERE expense_id = ?"
	if len(splits) > 0 {
		query += " AND participant_id NOT IN (?" + strings.Repeat(",?", len(splits)-1) + ")"
	}
	if _, err := tx.ExecContext(ctx, query, keep...); err != nil {
		return fmt.Errorf("failed to delete removed splits: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
