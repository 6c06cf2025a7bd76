// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"

	"github.com/splitledger/splitledger/internal/models"
)

// Store defines the interface for ledger storage operations. The abstraction
// allows swapping storage backends (SQLite, PostgreSQL, ...) without changing
// the service layer.
//
// Operations that read, decide and write group-scoped state (split
// replacement, finalization approval) are atomic inside the store: they run
// in a single transaction with a status compare-and-swap, so two concurrent
// triggers cannot interleave into double-locking or conflicting transitions.
type Store interface {
	// CreateGroup persists a new group. ID and CreatedAt are populated by
	// the store when unset.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group by id, failing with KindGroupNotFound.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// AddParticipant persists a new participant slot in a group.
	AddParticipant(ctx context.Context, p *models.Participant) error

	// GetParticipant retrieves one participant by id.
	GetParticipant(ctx context.Context, participantID string) (*models.Participant, error)

	// ListParticipants returns all participants of a group, ordered by id.
	ListParticipants(ctx context.Context, groupID string) ([]models.Participant, error)

	// CreateExpense persists an expense together with its splits in one
	// transaction.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with its splits.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// ListExpensesByGroup returns all expenses of a group with their splits.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error)

	// ReplaceSplits atomically reconciles an expense's split rows against
	// the given set: rows with ids are updated, rows without ids are
	// inserted, rows absent from the set are deleted. Fails with
	// KindExpenseLocked if the expense is locked, checked inside the same
	// transaction.
	ReplaceSplits(ctx context.Context, expenseID string, strategy models.SplitStrategy, splits []models.ExpenseSplit) error

	// CreateSettlement persists a new settlement.
	CreateSettlement(ctx context.Context, s *models.Settlement) error

	// GetSettlement retrieves a settlement by id.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// ListSettlementsByGroup returns a group's settlements, newest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]models.Settlement, error)

	// UpdateSettlement writes s's status, method, external ref and settled
	// timestamp, guarded by a compare-and-swap on the expected current
	// status. Fails with KindInvalidStateTransition if the row has moved.
	UpdateSettlement(ctx context.Context, s *models.Settlement, expect models.SettlementStatus) error

	// ExpirePendingSettlements fails every PENDING settlement confirmed at
	// or before cutoff, returning how many rows changed. Safe to re-run.
	ExpirePendingSettlements(ctx context.Context, cutoff int64) (int64, error)

	// CreateFinalization persists a new PENDING finalization, failing with
	// KindFinalizationAlreadyPending if the group already has one.
	CreateFinalization(ctx context.Context, f *models.ExpenseFinalization) error

	// GetFinalization retrieves a finalization by id.
	GetFinalization(ctx context.Context, finalizationID string) (*models.ExpenseFinalization, error)

	// DeleteFinalization removes a finalization and, via cascade, its
	// member responses. Used to unwind an initiation whose approval
	// fan-out failed.
	DeleteFinalization(ctx context.Context, finalizationID string) error

	// ListOverdueFinalizations returns finalizations whose deadline is at
	// or before now and that still need resolution: PENDING rows awaiting
	// expiry and EXPIRED rows whose approval was interrupted.
	ListOverdueFinalizations(ctx context.Context, now int64) ([]models.ExpenseFinalization, error)

	// ApproveFinalization transitions a PENDING or EXPIRED finalization to
	// APPROVED and, in the same transaction, locks every unlocked expense
	// of the group created at or before the finalization snapshot. Returns
	// how many expenses were locked and whether this call performed the
	// transition; a lost race reports (0, false, nil).
	ApproveFinalization(ctx context.Context, finalizationID string, now int64) (locked int64, approved bool, err error)

	// RejectFinalization transitions a PENDING finalization to REJECTED.
	// A lost race reports (false, nil); no expenses are touched.
	RejectFinalization(ctx context.Context, finalizationID string, now int64) (rejected bool, err error)

	// MarkFinalizationExpired transitions a PENDING finalization to
	// EXPIRED. Losing the race is not an error.
	MarkFinalizationExpired(ctx context.Context, finalizationID string, now int64) error

	// CreatePendingResponses fans out one PENDING member response per
	// participant for a finalization.
	CreatePendingResponses(ctx context.Context, finalizationID string, participantIDs []string) error

	// ListResponses returns all member responses for a finalization.
	ListResponses(ctx context.Context, finalizationID string) ([]models.MemberResponse, error)

	// RecordResponse sets one member's response. Only a PENDING response
	// may change; answering twice fails with KindInvalidStateTransition.
	RecordResponse(ctx context.Context, finalizationID, participantID string, status models.ResponseStatus, now int64) error

	// Close releases any resources held by the store.
	Close() error
}
