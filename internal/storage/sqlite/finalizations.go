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

// CreateFinalization persists a new PENDING finalization. The partial unique
// index on (group_id) WHERE status='PENDING' enforces single-flight even when
// two initiations race past the pre-check.
func (s *SQLiteStore) CreateFinalization(ctx context.Context, f *models.ExpenseFinalization) error {
	if f.ID == "" {
		f.ID = uuid.New().String()
	}
	if f.CreatedAt == 0 {
		f.CreatedAt = time.Now().Unix()
	}
	if f.Status == "" {
		f.Status = models.FinalizationPending
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO finalizations (id, group_id, status, finalized_at, deadline,
		                            initiator_id, reason, created_at, resolved_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.GroupID, f.Status, f.FinalizedAt, f.Deadline,
		f.InitiatorID, f.Reason, f.CreatedAt, f.ResolvedAt,
	)
	if err != nil {
		if strings.Contains(err.Error(), "idx_finalizations_one_pending") ||
			strings.Contains(err.Error(), "UNIQUE constraint") {
			return models.Errorf(models.KindFinalizationAlreadyPending,
				"group %s already has a pending finalization", f.GroupID)
		}
		return fmt.Errorf("failed to insert finalization: %w", err)
	}
	return nil
}

// GetFinalization retrieves a finalization by ID.
func (s *SQLiteStore) GetFinalization(ctx context.Context, finalizationID string) (*models.ExpenseFinalization, error) {
	f := &models.ExpenseFinalization{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, group_id, status, finalized_at, deadline, initiator_id, reason, created_at, resolved_at
		 FROM finalizations WHERE id = ?`,
		finalizationID,
	).Scan(&f.ID, &f.GroupID, &f.Status, &f.FinalizedAt, &f.Deadline,
		&f.InitiatorID, &f.Reason, &f.CreatedAt, &f.ResolvedAt)
	if err == sql.ErrNoRows {
		return nil, models.Errorf(models.KindFinalizationNotFound, "finalization not found: %s", finalizationID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get finalization: %w", err)
	}
	return f, nil
}

// DeleteFinalization removes a finalization; its member responses go with it
// through the cascading foreign key.
func (s *SQLiteStore) DeleteFinalization(ctx context.Context, finalizationID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM finalizations WHERE id = ?", finalizationID)
	if err != nil {
		return fmt.Errorf("failed to delete finalization: %w", err)
	}
	return nil
}

// ListOverdueFinalizations returns past-deadline finalizations that still
// need resolution. EXPIRED rows are included so an approval interrupted
// between the expiry mark and the lock can be finished by the next sweep.
func (s *SQLiteStore) ListOverdueFinalizations(ctx context.Context, now int64) ([]models.ExpenseFinalization, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, group_id, status, finalized_at, deadline, initiator_id, reason, created_at, resolved_at
		 FROM finalizations WHERE status IN (?, ?) AND deadline <= ? ORDER BY deadline, id`,
		models.FinalizationPending, models.FinalizationExpired, now,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue finalizations: %w", err)
	}
	defer rows.Close()

	var fins []models.ExpenseFinalization
	for rows.Next() {
		var f models.ExpenseFinalization
		if err := rows.Scan(&f.ID, &f.GroupID, &f.Status, &f.FinalizedAt, &f.Deadline,
			&f.InitiatorID, &f.Reason, &f.CreatedAt, &f.ResolvedAt); err != nil {
			return nil, fmt.Errorf("failed to scan finalization: %w", err)
		}
		fins = append(fins, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate finalizations: %w", err)
	}
	return fins, nil
}

// ApproveFinalization moves a PENDING or EXPIRED finalization to APPROVED
// and locks the group's historical expenses in the same transaction. The
// status compare-and-swap makes concurrent triggers safe: exactly one caller
// performs the transition, later callers get (0, false, nil).
func (s *SQLiteStore) ApproveFinalization(ctx context.Context, finalizationID string, now int64) (int64, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var groupID string
	var status models.FinalizationStatus
	var finalizedAt int64
	err = tx.QueryRowContext(ctx,
		"SELECT group_id, status, finalized_at FROM finalizations WHERE id = ?",
		finalizationID,
	).Scan(&groupID, &status, &finalizedAt)
	if err == sql.ErrNoRows {
		return 0, false, models.Errorf(models.KindFinalizationNotFound, "finalization not found: %s", finalizationID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read finalization: %w", err)
	}
	if status.Terminal() {
		// A concurrent evaluation already resolved it; late callers no-op.
		return 0, false, nil
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE finalizations SET status = ?, resolved_at = ?
		 WHERE id = ? AND status IN (?, ?)`,
		models.FinalizationApproved, now, finalizationID,
		models.FinalizationPending, models.FinalizationExpired,
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to approve finalization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read approve result: %w", err)
	}
	if affected == 0 {
		return 0, false, nil
	}

	lockRes, err := tx.ExecContext(ctx,
		`UPDATE expenses SET is_locked = 1, locked_at = ?, locked_by_finalization_id = ?
		 WHERE group_id = ? AND created_at <= ? AND is_locked = 0`,
		now, finalizationID, groupID, finalizedAt,
	)
	if err != nil {
		return 0, false, fmt.Errorf("failed to lock expenses: %w", err)
	}
	locked, err := lockRes.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read lock result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return locked, true, nil
}

// RejectFinalization moves a PENDING finalization to REJECTED. No expenses
// are touched. Losing the race reports (false, nil).
func (s *SQLiteStore) RejectFinalization(ctx context.Context, finalizationID string, now int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE finalizations SET status = ?, resolved_at = ? WHERE id = ? AND status = ?",
		models.FinalizationRejected, now, finalizationID, models.FinalizationPending,
	)
	if err != nil {
		return false, fmt.Errorf("failed to reject finalization: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reject result: %w", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx, "SELECT 1 FROM finalizations WHERE id = ?", finalizationID).Scan(&exists)
		if err == sql.ErrNoRows {
			return false, models.Errorf(models.KindFinalizationNotFound, "finalization not found: %s", finalizationID)
		}
		if err != nil {
			return false, fmt.Errorf("failed to check finalization existence: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// MarkFinalizationExpired moves a PENDING finalization to EXPIRED. A lost
// race is not an error; the subsequent approve compare-and-swap covers both
// states.
func (s *SQLiteStore) MarkFinalizationExpired(ctx context.Context, finalizationID string, now int64) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE finalizations SET status = ? WHERE id = ? AND status = ?",
		models.FinalizationExpired, finalizationID, models.FinalizationPending,
	)
	if err != nil {
		return fmt.Errorf("failed to mark finalization expired: %w", err)
	}
	return nil
}

// CreatePendingResponses fans out one PENDING member response per participant.
func (s *SQLiteStore) CreatePendingResponses(ctx context.Context, finalizationID string, participantIDs []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, pid := range participantIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO member_responses (finalization_id, participant_id, status)
			 VALUES (?, ?, ?)`,
			finalizationID, pid, models.ResponsePending,
		)
		if err != nil {
			return fmt.Errorf("failed to insert member response: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// ListResponses returns all member responses for a finalization.
func (s *SQLiteStore) ListResponses(ctx context.Context, finalizationID string) ([]models.MemberResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT finalization_id, participant_id, status, responded_at
		 FROM member_responses WHERE finalization_id = ? ORDER BY participant_id`,
		finalizationID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list member responses: %w", err)
	}
	defer rows.Close()

	var responses []models.MemberResponse
	for rows.Next() {
		var r models.MemberResponse
		if err := rows.Scan(&r.FinalizationID, &r.ParticipantID, &r.Status, &r.RespondedAt); err != nil {
			return nil, fmt.Errorf("failed to scan member response: %w", err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate member responses: %w", err)
	}
	return responses, nil
}

// RecordResponse sets one member's answer. Only a PENDING response may
// change; answering twice loses the compare-and-swap.
func (s *SQLiteStore) RecordResponse(ctx context.Context, finalizationID, participantID string, status models.ResponseStatus, now int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE member_responses SET status = ?, responded_at = ?
		 WHERE finalization_id = ? AND participant_id = ? AND status = ?`,
		status, now, finalizationID, participantID, models.ResponsePending,
	)
	if err != nil {
		return fmt.Errorf("failed to record member response: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read response result: %w", err)
	}
	if affected == 0 {
		var exists int
		err := s.db.QueryRowContext(ctx,
			"SELECT 1 FROM member_responses WHERE finalization_id = ? AND participant_id = ?",
			finalizationID, participantID,
		).Scan(&exists)
		if err == sql.ErrNoRows {
			return models.Errorf(models.KindParticipantNotFound,
				"no approval request for participant %s on finalization %s", participantID, finalizationID)
		}
		if err != nil {
			return fmt.Errorf("failed to check member response: %w", err)
		}
		return models.Errorf(models.KindInvalidStateTransition,
			"participant %s already responded to finalization %s", participantID, finalizationID)
	}
	return nil
}
