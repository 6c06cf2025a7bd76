package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/ledger"
	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

// ExpenseService owns expense creation, split recomputation and the balance
// read path.
type ExpenseService struct {
	store  storage.Store
	events EventSink

	// now is swappable for tests.
	now func() time.Time
}

// NewExpenseService creates an ExpenseService with the given storage backend
// and event sink.
func NewExpenseService(store storage.Store, events EventSink) *ExpenseService {
	return &ExpenseService{store: store, events: events, now: time.Now}
}

// CreateExpenseParams carries one expense mutation request.
type CreateExpenseParams struct {
	GroupID  string
	ActorID  string
	Title    string
	Amount   decimal.Decimal
	Currency string
	PayerID  string
	Strategy models.SplitStrategy
	Shares   []models.ShareInput
}

// CreateExpense computes splits under the requested strategy and persists the
// expense with them.
func (s *ExpenseService) CreateExpense(ctx context.Context, p CreateExpenseParams) (*models.Expense, error) {
	group, err := s.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		return nil, err
	}
	if err := s.checkParticipants(ctx, p.GroupID, p.PayerID, p.Shares); err != nil {
		return nil, err
	}

	splits, err := ledger.ComputeSplits(p.Amount, p.Strategy, p.PayerID, p.Shares)
	if err != nil {
		return nil, err
	}

	currency := p.Currency
	if currency == "" {
		currency = group.Currency
	}

	expense := &models.Expense{
		GroupID:   p.GroupID,
		Title:     p.Title,
		Amount:    p.Amount,
		Currency:  currency,
		PayerID:   p.PayerID,
		Strategy:  p.Strategy,
		Splits:    splits,
		CreatedAt: s.now().Unix(),
	}
	if err := s.store.CreateExpense(ctx, expense); err != nil {
		slog.Error("CreateExpense failed", "group_id", p.GroupID, "error", err)
		return nil, err
	}

	s.events.Emit(ctx, models.Event{
		Type:       models.EventExpenseCreated,
		GroupID:    expense.GroupID,
		SubjectID:  expense.ID,
		ActorID:    p.ActorID,
		OccurredAt: expense.CreatedAt,
		Attrs:      map[string]string{"amount": expense.Amount.String(), "strategy": string(expense.Strategy)},
	})
	return expense, nil
}

// RecomputeSplits applies a new strategy or share set to an existing expense.
// Splits are reconciled by participant identity so settlement status on
// unaffected shares survives the edit. Fails with KindExpenseLocked on a
// finalization-locked expense.
func (s *ExpenseService) RecomputeSplits(ctx context.Context, expenseID, actorID string, strategy models.SplitStrategy, shares []models.ShareInput) (*models.Expense, error) {
	expense, err := s.store.GetExpense(ctx, expenseID)
	if err != nil {
		return nil, err
	}
	if expense.Locked {
		return nil, models.Errorf(models.KindExpenseLocked,
			"expense %s is locked by finalization %s", expenseID, expense.LockedByFinalizationID)
	}
	if err := s.checkParticipants(ctx, expense.GroupID, expense.PayerID, shares); err != nil {
		return nil, err
	}

	computed, err := ledger.ComputeSplits(expense.Amount, strategy, expense.PayerID, shares)
	if err != nil {
		return nil, err
	}
	merged := ledger.ReconcileSplits(expense.Splits, computed)

	// The store re-checks the lock flag inside the write transaction, so a
	// finalization approved between our read and this write still wins.
	if err := s.store.ReplaceSplits(ctx, expenseID, strategy, merged); err != nil {
		slog.Error("RecomputeSplits failed", "expense_id", expenseID, "error", err)
		return nil, err
	}

	s.events.Emit(ctx, models.Event{
		Type:       models.EventExpenseUpdated,
		GroupID:    expense.GroupID,
		SubjectID:  expense.ID,
		ActorID:    actorID,
		OccurredAt: s.now().Unix(),
		Attrs:      map[string]string{"strategy": string(strategy)},
	})
	return s.store.GetExpense(ctx, expenseID)
}

// GetExpense retrieves an expense with its splits.
func (s *ExpenseService) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	return s.store.GetExpense(ctx, expenseID)
}

// ListExpenses returns all expenses of a group.
func (s *ExpenseService) ListExpenses(ctx context.Context, groupID string) ([]models.Expense, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListExpensesByGroup(ctx, groupID)
}

// Balances returns every participant's net position across the group's
// expenses: positive means owed to them, negative means they owe. Gross of
// settlements; netting completed settlements is the consumer's read.
func (s *ExpenseService) Balances(ctx context.Context, groupID string) (map[string]decimal.Decimal, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	participants, err := s.store.ListParticipants(ctx, groupID)
	if err != nil {
		return nil, err
	}
	expenses, err := s.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ledger.Balances(participants, expenses), nil
}

// checkParticipants verifies that the payer and every share participant are
// members of the group.
func (s *ExpenseService) checkParticipants(ctx context.Context, groupID, payerID string, shares []models.ShareInput) error {
	participants, err := s.store.ListParticipants(ctx, groupID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(participants))
	for _, p := range participants {
		known[p.ID] = true
	}
	if payerID != "" && !known[payerID] {
		return models.Errorf(models.KindParticipantNotFound, "payer %s is not in group %s", payerID, groupID)
	}
	for _, sh := range shares {
		if !known[sh.ParticipantID] {
			return models.Errorf(models.KindParticipantNotFound,
				"participant %s is not in group %s", sh.ParticipantID, groupID)
		}
	}
	return nil
}
