package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/money"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedGroup creates a group with an admin and two bound members.
func seedGroup(t *testing.T, store *SQLiteStore) (*models.Group, []models.Participant) {
	t.Helper()
	ctx := context.Background()

	group := &models.Group{Name: "Lisbon Trip", Currency: "EUR"}
	require.NoError(t, store.CreateGroup(ctx, group))
	require.NotEmpty(t, group.ID)
	require.NotZero(t, group.CreatedAt)

	participants := []models.Participant{
		{GroupID: group.ID, Name: "Ana", UserID: "user-ana", Role: models.RoleAdmin},
		{GroupID: group.ID, Name: "Bruno", UserID: "user-bruno", Role: models.RoleMember},
		{GroupID: group.ID, Name: "Carla", UserID: "user-carla", Role: models.RoleMember},
	}
	for i := range participants {
		require.NoError(t, store.AddParticipant(ctx, &participants[i]))
	}
	return group, participants
}

func seedExpense(t *testing.T, store *SQLiteStore, group *models.Group, participants []models.Participant, amount string, createdAt int64) *models.Expense {
	t.Helper()
	total := money.MustParse(amount)
	share := total.Div(money.MustParse("3")).Round(2)

	expense := &models.Expense{
		GroupID:   group.ID,
		Title:     "dinner",
		Amount:    total,
		Currency:  group.Currency,
		PayerID:   participants[0].ID,
		Strategy:  models.SplitEqual,
		CreatedAt: createdAt,
		Splits: []models.ExpenseSplit{
			{ParticipantID: participants[0].ID, Amount: total.Sub(share).Sub(share), IsPayer: true, Status: models.SplitPending},
			{ParticipantID: participants[1].ID, Amount: share, Status: models.SplitPending},
			{ParticipantID: participants[2].ID, Amount: share, Status: models.SplitPending},
		},
	}
	require.NoError(t, store.CreateExpense(context.Background(), expense))
	return expense
}

func TestGroupRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	got, err := store.GetGroup(ctx, group.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lisbon Trip", got.Name)
	assert.Equal(t, "EUR", got.Currency)

	listed, err := store.ListParticipants(ctx, group.ID)
	require.NoError(t, err)
	assert.Len(t, listed, 3)

	p, err := store.GetParticipant(ctx, participants[0].ID)
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, p.Role)
	assert.True(t, p.Bound())

	_, err = store.GetGroup(ctx, "nope")
	assert.True(t, models.IsKind(err, models.KindGroupNotFound))
}

func TestExpenseRoundtrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	expense := seedExpense(t, store, group, participants, "100.00", 1000)

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.True(t, got.Amount.Equal(money.MustParse("100.00")), "amount %s", got.Amount)
	assert.Len(t, got.Splits, 3)
	assert.False(t, got.Locked)

	sum := money.Sum(got.Splits[0].Amount, got.Splits[1].Amount, got.Splits[2].Amount)
	assert.True(t, sum.Equal(got.Amount), "splits sum %s, total %s", sum, got.Amount)

	listed, err := store.ListExpensesByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, expense.ID, listed[0].ID)

	_, err = store.GetExpense(ctx, "nope")
	assert.True(t, models.IsKind(err, models.KindExpenseNotFound))
}

func TestReplaceSplitsReconciles(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)
	expense := seedExpense(t, store, group, participants, "90.00", 1000)

	before, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	keepID := before.Splits[0].ID

	// Drop the third participant, change amounts, keep surviving row ids.
	replacement := []models.ExpenseSplit{
		{ID: before.Splits[0].ID, ParticipantID: before.Splits[0].ParticipantID,
			Amount: money.MustParse("45.00"), IsPayer: before.Splits[0].IsPayer, Status: models.SplitSettled},
		{ID: before.Splits[1].ID, ParticipantID: before.Splits[1].ParticipantID,
			Amount: money.MustParse("45.00"), Status: models.SplitPending},
	}
	require.NoError(t, store.ReplaceSplits(ctx, expense.ID, models.SplitAmount, replacement))

	after, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SplitAmount, after.Strategy)
	require.Len(t, after.Splits, 2)

	byParticipant := map[string]models.ExpenseSplit{}
	for _, sp := range after.Splits {
		byParticipant[sp.ParticipantID] = sp
	}
	kept := byParticipant[before.Splits[0].ParticipantID]
	assert.Equal(t, keepID, kept.ID)
	assert.Equal(t, models.SplitSettled, kept.Status)
	assert.True(t, kept.Amount.Equal(money.MustParse("45.00")))
}

func TestReplaceSplitsLockedFails(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)
	expense := seedExpense(t, store, group, participants, "60.00", 1000)

	fin := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 2000, Deadline: 3000, InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, fin))
	_, approved, err := store.ApproveFinalization(ctx, fin.ID, 2500)
	require.NoError(t, err)
	require.True(t, approved)

	err = store.ReplaceSplits(ctx, expense.ID, models.SplitEqual, nil)
	assert.True(t, models.IsKind(err, models.KindExpenseLocked), "got %v", err)
}

func TestSettlementUpdateCAS(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	settlement := &models.Settlement{
		GroupID:           group.ID,
		FromParticipantID: participants[1].ID,
		ToParticipantID:   participants[0].ID,
		Amount:            money.MustParse("33.34"),
		Currency:          "EUR",
		Status:            models.SettlementSuggested,
	}
	require.NoError(t, store.CreateSettlement(ctx, settlement))

	settlement.Status = models.SettlementPending
	settlement.Method = "transfer"
	require.NoError(t, store.UpdateSettlement(ctx, settlement, models.SettlementSuggested))

	// Stale expectation loses the compare-and-swap.
	settlement.Status = models.SettlementPending
	err := store.UpdateSettlement(ctx, settlement, models.SettlementSuggested)
	assert.True(t, models.IsKind(err, models.KindInvalidStateTransition), "got %v", err)

	got, err := store.GetSettlement(ctx, settlement.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SettlementPending, got.Status)
	assert.Equal(t, "transfer", got.Method)
}

func TestExpirePendingSettlements(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	mk := func(status models.SettlementStatus, createdAt, confirmedAt int64) *models.Settlement {
		s := &models.Settlement{
			GroupID:           group.ID,
			FromParticipantID: participants[1].ID,
			ToParticipantID:   participants[0].ID,
			Amount:            money.MustParse("10.00"),
			Currency:          "EUR",
			Status:            status,
			CreatedAt:         createdAt,
			ConfirmedAt:       confirmedAt,
		}
		require.NoError(t, store.CreateSettlement(ctx, s))
		return s
	}

	old := mk(models.SettlementPending, 500, 1000)
	// Created long before the cutoff but confirmed after it. The clock runs
	// from confirmation, so this one survives.
	lateConfirm := mk(models.SettlementPending, 500, 5000)
	suggested := mk(models.SettlementSuggested, 500, 0)

	expired, err := store.ExpirePendingSettlements(ctx, 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(1), expired)

	for id, want := range map[string]models.SettlementStatus{
		old.ID:         models.SettlementFailed,
		lateConfirm.ID: models.SettlementPending,
		suggested.ID:   models.SettlementSuggested,
	} {
		got, err := store.GetSettlement(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, got.Status)
	}

	// Re-running finds nothing left to expire.
	expired, err = store.ExpirePendingSettlements(ctx, 2000)
	require.NoError(t, err)
	assert.Zero(t, expired)
}

func TestFinalizationSingleFlight(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	first := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 1000, Deadline: 2000, InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, first))

	second := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 1100, Deadline: 2100, InitiatorID: participants[0].ID,
	}
	err := store.CreateFinalization(ctx, second)
	assert.True(t, models.IsKind(err, models.KindFinalizationAlreadyPending), "got %v", err)

	// Once the pending one resolves, a new attempt is allowed again.
	rejected, err := store.RejectFinalization(ctx, first.ID, 1500)
	require.NoError(t, err)
	require.True(t, rejected)

	second.ID = ""
	require.NoError(t, store.CreateFinalization(ctx, second))
}

func TestApproveFinalizationLocksUpToSnapshot(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	early := seedExpense(t, store, group, participants, "30.00", 1000)
	late := seedExpense(t, store, group, participants, "60.00", 5000)

	fin := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 2000, Deadline: 9000, InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, fin))

	locked, approved, err := store.ApproveFinalization(ctx, fin.ID, 2500)
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, int64(1), locked)

	gotEarly, err := store.GetExpense(ctx, early.ID)
	require.NoError(t, err)
	assert.True(t, gotEarly.Locked)
	assert.Equal(t, fin.ID, gotEarly.LockedByFinalizationID)
	assert.Equal(t, int64(2500), gotEarly.LockedAt)

	gotLate, err := store.GetExpense(ctx, late.ID)
	require.NoError(t, err)
	assert.False(t, gotLate.Locked)

	gotFin, err := store.GetFinalization(ctx, fin.ID)
	require.NoError(t, err)
	assert.Equal(t, models.FinalizationApproved, gotFin.Status)
	assert.Equal(t, int64(2500), gotFin.ResolvedAt)

	// A second trigger loses the race and reports a clean no-op.
	locked, approved, err = store.ApproveFinalization(ctx, fin.ID, 2600)
	require.NoError(t, err)
	assert.False(t, approved)
	assert.Zero(t, locked)
}

func TestApproveAfterExpiry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)
	seedExpense(t, store, group, participants, "30.00", 1000)

	fin := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 2000, Deadline: 3000, InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, fin))

	overdue, err := store.ListOverdueFinalizations(ctx, 4000)
	require.NoError(t, err)
	require.Len(t, overdue, 1)

	require.NoError(t, store.MarkFinalizationExpired(ctx, fin.ID, 4000))

	// Still overdue after the expiry mark, so a sweep interrupted between
	// marking and approving picks it up again.
	overdue, err = store.ListOverdueFinalizations(ctx, 4000)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, models.FinalizationExpired, overdue[0].Status)

	locked, approved, err := store.ApproveFinalization(ctx, fin.ID, 4100)
	require.NoError(t, err)
	assert.True(t, approved)
	assert.Equal(t, int64(1), locked)

	// Resolved finalizations drop out of the overdue listing.
	overdue, err = store.ListOverdueFinalizations(ctx, 5000)
	require.NoError(t, err)
	assert.Empty(t, overdue)
}

func TestDeleteFinalizationCascadesResponses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	fin := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 1000, Deadline: 2000, InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, fin))
	require.NoError(t, store.CreatePendingResponses(ctx, fin.ID,
		[]string{participants[1].ID, participants[2].ID}))

	require.NoError(t, store.DeleteFinalization(ctx, fin.ID))

	_, err := store.GetFinalization(ctx, fin.ID)
	assert.True(t, models.IsKind(err, models.KindFinalizationNotFound), "got %v", err)

	responses, err := store.ListResponses(ctx, fin.ID)
	require.NoError(t, err)
	assert.Empty(t, responses)

	// The unique pending slot is free again.
	fin.ID = ""
	require.NoError(t, store.CreateFinalization(ctx, fin))
}

func TestRejectFinalizationLeavesExpensesUnlocked(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)
	expense := seedExpense(t, store, group, participants, "30.00", 1000)

	fin := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 2000, Deadline: 3000, InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, fin))

	rejected, err := store.RejectFinalization(ctx, fin.ID, 2500)
	require.NoError(t, err)
	assert.True(t, rejected)

	got, err := store.GetExpense(ctx, expense.ID)
	require.NoError(t, err)
	assert.False(t, got.Locked)

	// Rejecting again is a no-op, not an error.
	rejected, err = store.RejectFinalization(ctx, fin.ID, 2600)
	require.NoError(t, err)
	assert.False(t, rejected)

	// Approval after rejection must not resurrect it.
	_, approved, err := store.ApproveFinalization(ctx, fin.ID, 2700)
	require.NoError(t, err)
	assert.False(t, approved)
}

func TestRecordResponseOnlyOnce(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	group, participants := seedGroup(t, store)

	fin := &models.ExpenseFinalization{
		GroupID: group.ID, FinalizedAt: 1000, Deadline: 2000, InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, fin))
	require.NoError(t, store.CreatePendingResponses(ctx, fin.ID,
		[]string{participants[1].ID, participants[2].ID}))

	require.NoError(t, store.RecordResponse(ctx, fin.ID, participants[1].ID, models.ResponseAccepted, 1500))

	err := store.RecordResponse(ctx, fin.ID, participants[1].ID, models.ResponseDeclined, 1600)
	assert.True(t, models.IsKind(err, models.KindInvalidStateTransition), "got %v", err)

	err = store.RecordResponse(ctx, fin.ID, "stranger", models.ResponseAccepted, 1600)
	assert.True(t, models.IsKind(err, models.KindParticipantNotFound), "got %v", err)

	responses, err := store.ListResponses(ctx, fin.ID)
	require.NoError(t, err)
	require.Len(t, responses, 2)

	byParticipant := map[string]models.MemberResponse{}
	for _, r := range responses {
		byParticipant[r.ParticipantID] = r
	}
	assert.Equal(t, models.ResponseAccepted, byParticipant[participants[1].ID].Status)
	assert.Equal(t, int64(1500), byParticipant[participants[1].ID].RespondedAt)
	assert.Equal(t, models.ResponsePending, byParticipant[participants[2].ID].Status)
}
