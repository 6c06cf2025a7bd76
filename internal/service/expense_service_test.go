package service

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/money"
	"github.com/splitledger/splitledger/internal/storage"
	"github.com/splitledger/splitledger/internal/storage/sqlite"
)

// captureSink records emitted events for assertions.
type captureSink struct {
	events []models.Event
}

func (c *captureSink) Emit(_ context.Context, event models.Event) {
	c.events = append(c.events, event)
}

func (c *captureSink) ofType(t models.EventType) []models.Event {
	var out []models.Event
	for _, e := range c.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

func newTestStore(t *testing.T) storage.Store {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// seedGroup creates a group with admin Ana and bound members Bruno and Carla.
func seedGroup(t *testing.T, store storage.Store) (*models.Group, []models.Participant) {
	t.Helper()
	ctx := context.Background()

	group := &models.Group{Name: "Lisbon Trip", Currency: "EUR"}
	require.NoError(t, store.CreateGroup(ctx, group))

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

func equalShares(participants []models.Participant) []models.ShareInput {
	shares := make([]models.ShareInput, len(participants))
	for i, p := range participants {
		shares[i] = models.ShareInput{ParticipantID: p.ID}
	}
	return shares
}

func TestCreateExpenseEqualSplit(t *testing.T) {
	store := newTestStore(t)
	group, participants := seedGroup(t, store)
	events := &captureSink{}
	svc := NewExpenseService(store, events)

	expense, err := svc.CreateExpense(context.Background(), CreateExpenseParams{
		GroupID:  group.ID,
		ActorID:  participants[0].ID,
		Title:    "dinner",
		Amount:   money.MustParse("100.00"),
		PayerID:  participants[0].ID,
		Strategy: models.SplitEqual,
		Shares:   equalShares(participants),
	})
	require.NoError(t, err)

	// Currency falls back to the group's.
	assert.Equal(t, "EUR", expense.Currency)
	require.Len(t, expense.Splits, 3)

	sum := money.Sum(expense.Splits[0].Amount, expense.Splits[1].Amount, expense.Splits[2].Amount)
	assert.True(t, sum.Equal(expense.Amount), "splits sum %s, total %s", sum, expense.Amount)

	for _, sp := range expense.Splits {
		if sp.ParticipantID == participants[0].ID {
			assert.True(t, sp.IsPayer)
			assert.True(t, sp.Amount.Equal(money.MustParse("33.34")), "payer share %s", sp.Amount)
		} else {
			assert.False(t, sp.IsPayer)
			assert.True(t, sp.Amount.Equal(money.MustParse("33.33")), "member share %s", sp.Amount)
		}
	}

	assert.Len(t, events.ofType(models.EventExpenseCreated), 1)
}

func TestCreateExpenseRejectsUnknownParticipant(t *testing.T) {
	store := newTestStore(t)
	group, participants := seedGroup(t, store)
	svc := NewExpenseService(store, &captureSink{})

	_, err := svc.CreateExpense(context.Background(), CreateExpenseParams{
		GroupID:  group.ID,
		Title:    "dinner",
		Amount:   money.MustParse("50.00"),
		PayerID:  participants[0].ID,
		Strategy: models.SplitEqual,
		Shares: []models.ShareInput{
			{ParticipantID: participants[0].ID},
			{ParticipantID: "stranger"},
		},
	})
	assert.True(t, models.IsKind(err, models.KindParticipantNotFound), "got %v", err)
}

func TestRecomputeSplitsPreservesSettledStatus(t *testing.T) {
	store := newTestStore(t)
	group, participants := seedGroup(t, store)
	svc := NewExpenseService(store, &captureSink{})
	ctx := context.Background()

	expense, err := svc.CreateExpense(ctx, CreateExpenseParams{
		GroupID:  group.ID,
		Title:    "hotel",
		Amount:   money.MustParse("90.00"),
		PayerID:  participants[0].ID,
		Strategy: models.SplitEqual,
		Shares:   equalShares(participants),
	})
	require.NoError(t, err)

	// Bruno pays his share out of band; his split is marked settled.
	for i := range expense.Splits {
		if expense.Splits[i].ParticipantID == participants[1].ID {
			expense.Splits[i].Status = models.SplitSettled
		}
	}
	require.NoError(t, store.ReplaceSplits(ctx, expense.ID, expense.Strategy, expense.Splits))

	// Switching to explicit amounts must not reset Bruno's settled status.
	updated, err := svc.RecomputeSplits(ctx, expense.ID, participants[0].ID, models.SplitAmount,
		[]models.ShareInput{
			{ParticipantID: participants[0].ID, Amount: money.MustParse("50.00")},
			{ParticipantID: participants[1].ID, Amount: money.MustParse("30.00")},
			{ParticipantID: participants[2].ID, Amount: money.MustParse("10.00")},
		})
	require.NoError(t, err)
	require.Len(t, updated.Splits, 3)

	for _, sp := range updated.Splits {
		switch sp.ParticipantID {
		case participants[1].ID:
			assert.Equal(t, models.SplitSettled, sp.Status)
			assert.True(t, sp.Amount.Equal(money.MustParse("30.00")))
		default:
			assert.Equal(t, models.SplitPending, sp.Status)
		}
	}
}

func TestRecomputeSplitsLockedExpenseFails(t *testing.T) {
	store := newTestStore(t)
	group, participants := seedGroup(t, store)
	svc := NewExpenseService(store, &captureSink{})
	ctx := context.Background()

	expense, err := svc.CreateExpense(ctx, CreateExpenseParams{
		GroupID:  group.ID,
		Title:    "flights",
		Amount:   money.MustParse("300.00"),
		PayerID:  participants[0].ID,
		Strategy: models.SplitEqual,
		Shares:   equalShares(participants),
	})
	require.NoError(t, err)

	fin := &models.ExpenseFinalization{
		GroupID:     group.ID,
		FinalizedAt: time.Now().Unix() + 10,
		Deadline:    time.Now().Unix() + 1000,
		InitiatorID: participants[0].ID,
	}
	require.NoError(t, store.CreateFinalization(ctx, fin))
	_, approved, err := store.ApproveFinalization(ctx, fin.ID, time.Now().Unix())
	require.NoError(t, err)
	require.True(t, approved)

	_, err = svc.RecomputeSplits(ctx, expense.ID, participants[0].ID, models.SplitEqual, equalShares(participants))
	assert.True(t, models.IsKind(err, models.KindExpenseLocked), "got %v", err)
}

func TestBalancesNetPositions(t *testing.T) {
	store := newTestStore(t)
	group, participants := seedGroup(t, store)
	svc := NewExpenseService(store, &captureSink{})
	ctx := context.Background()

	// Ana pays 90 split equally; Bruno pays 30 split equally.
	_, err := svc.CreateExpense(ctx, CreateExpenseParams{
		GroupID: group.ID, Title: "dinner", Amount: money.MustParse("90.00"),
		PayerID: participants[0].ID, Strategy: models.SplitEqual, Shares: equalShares(participants),
	})
	require.NoError(t, err)
	_, err = svc.CreateExpense(ctx, CreateExpenseParams{
		GroupID: group.ID, Title: "taxi", Amount: money.MustParse("30.00"),
		PayerID: participants[1].ID, Strategy: models.SplitEqual, Shares: equalShares(participants),
	})
	require.NoError(t, err)

	balances, err := svc.Balances(ctx, group.ID)
	require.NoError(t, err)

	assert.True(t, balances[participants[0].ID].Equal(money.MustParse("60.00")), "ana %s", balances[participants[0].ID])
	assert.True(t, balances[participants[1].ID].Equal(money.MustParse("-10.00")), "bruno %s", balances[participants[1].ID])
	assert.True(t, balances[participants[2].ID].Equal(money.MustParse("-50.00")), "carla %s", balances[participants[2].ID])

	total := decimalSum(balances)
	assert.True(t, total.IsZero(), "balances must sum to zero, got %s", total)
}

func decimalSum(balances map[string]decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, b := range balances {
		total = total.Add(b)
	}
	return total
}
