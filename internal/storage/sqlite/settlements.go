package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/splitledger/splitledger/internal/models"
)

// CreateSettlement persists a new settlement.
func (s *SQLiteStore) CreateSettlement(ctx context.Context, settlement *models.Settlement) error {
	if settlement.ID == "" {
		settlement.ID = uuid.New().String()
	}
	if settlement.CreatedAt == 0 {
		settlement.CreatedAt = time.Now().Unix()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settlements (id, group_id, from_participant_id, to_participant_id,
		                          amount, currency, status, method, external_ref, note,
		                          created_at, confirmed_at, settled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		settlement.ID, settlement.GroupID, settlement.FromParticipantID, settlement.ToParticipantID,
		settlement.Amount.String(), settlement.Currency, settlement.Status,
		settlement.Method, settlement.ExternalRef, settlement.Note,
		settlement.CreatedAt, settlement.ConfirmedAt, settlement.SettledAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert settlement: %w", err)
	}
	return nil
}

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	settlement := &models.Settlement{}
	var amount string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, from_participant_id, to_participant_id, amount, currency,
		        status, method, external_ref, note, created_at, confirmed_at, settled_at
		 FROM settlements WHERE id = ?`,
		settlementID,
	).Scan(&settlement.ID, &settlement.GroupID, &settlement.FromParticipantID, &settlement.ToParticipantID,
		&amount, &settlement.Currency, &settlement.Status, &settlement.Method,
		&settlement.ExternalRef, &settlement.Note, &settlement.CreatedAt,
		&settlement.ConfirmedAt, &settlement.SettledAt)
	if err == sql.ErrNoRows {
		return nil, models.Errorf(models.KindSettlementNotFound, "settlement not found: %s", settlementID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get settlement: %w", err)
	}
	if settlement.Amount, err = parseAmount(amount); err != nil {
		return nil, err
	}
	return settlement, nil
}

// ListSettlementsByGroup retrieves all settlements for a group, newest first.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]models.Settlement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, from_participant_id, to_participant_id, amount, currency,
		        status, method, external_ref, note, created_at, confirmed_at, settled_at
		 FROM settlements WHERE group_id = ? ORDER BY created_at DESC, id`,
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		var settlement models.Settlement
		var amount string
		if err := rows.Scan(&settlement.ID, &settlement.GroupID, &settlement.FromParticipantID,
			&settlement.ToParticipantID, &amount, &settlement.Currency, &settlement.Status,
			&settlement.Method, &settlement.ExternalRef, &settlement.Note,
			&settlement.CreatedAt, &settlement.ConfirmedAt, &settlement.SettledAt); err != nil {
			return nil, fmt.Errorf("failed to scan settlement: %w", err)
		}
		if settlement.Amount, err = parseAmount(amount); err != nil {
			return nil, err
		}
		settlements = append(settlements, settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}
	return settlements, nil
}

// UpdateSettlement writes status, method, external ref and the confirmation
// and settled timestamps, guarded by a compare-and-swap on the expected
// current status.
func (s *SQLiteStore) UpdateSettlement(ctx context.Context, settlement *models.Settlement, expect models.SettlementStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET status = ?, method = ?, external_ref = ?, confirmed_at = ?, settled_at = ?
		 WHERE id = ? AND status = ?`,
		settlement.Status, settlement.Method, settlement.ExternalRef,
		settlement.ConfirmedAt, settlement.SettledAt,
		settlement.ID, expect,
	)
	if err != nil {
		return fmt.Errorf("failed to update settlement: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing row from a lost status race.
		var current models.SettlementStatus
		err := s.db.QueryRowContext(ctx, "SELECT status FROM settlements WHERE id = ?", settlement.ID).Scan(&current)
		if err == sql.ErrNoRows {
			return models.Errorf(models.KindSettlementNotFound, "settlement not found: %s", settlement.ID)
		}
		if err != nil {
			return fmt.Errorf("failed to check settlement status: %w", err)
		}
		return models.Errorf(models.KindInvalidStateTransition,
			"settlement %s is %s, expected %s", settlement.ID, current, expect)
	}
	return nil
}

// ExpirePendingSettlements fails every PENDING settlement confirmed at or
// before cutoff. The cutoff compares against confirmed_at, so time spent
// sitting SUGGESTED does not count toward expiry. The sweep is a single
// statement and safe to re-run.
func (s *SQLiteStore) ExpirePendingSettlements(ctx context.Context, cutoff int64) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE settlements SET status = ? WHERE status = ? AND confirmed_at <= ?`,
		models.SettlementFailed, models.SettlementPending, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire settlements: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read expiry result: %w", err)
	}
	return affected, nil
}
