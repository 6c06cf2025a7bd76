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

// SettlementService owns settlement suggestion and the settlement lifecycle
// state machine: SUGGESTED -> PENDING -> {COMPLETED, CANCELLED, FAILED}.
type SettlementService struct {
	store  storage.Store
	events EventSink

	// expiry is how long a settlement may sit PENDING before the sweep
	// fails it.
	expiry time.Duration

	now func() time.Time
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(store storage.Store, events EventSink, expiry time.Duration) *SettlementService {
	return &SettlementService{store: store, events: events, expiry: expiry, now: time.Now}
}

// Suggest computes the group's current balances and proposes payments that
// would zero them. Nothing is persisted; a suggestion becomes a record only
// through Create.
func (s *SettlementService) Suggest(ctx context.Context, groupID string) ([]models.Settlement, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
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
	balances := ledger.Balances(participants, expenses)
	return ledger.SuggestSettlements(groupID, group.Currency, balances), nil
}

// CreateSettlementParams carries one settlement creation request.
type CreateSettlementParams struct {
	GroupID           string
	ActorID           string
	FromParticipantID string
	ToParticipantID   string
	Amount            decimal.Decimal
	Currency          string
	Note              string
}

// Create persists a settlement in SUGGESTED state.
func (s *SettlementService) Create(ctx context.Context, p CreateSettlementParams) (*models.Settlement, error) {
	return s.create(ctx, p, models.SettlementSuggested)
}

// CreateWithStatus is the explicit administrative entry point for settlements
// born COMPLETED or CANCELLED (e.g. backfilling a cash payment). It bypasses
// PENDING, so every use is logged with the acting participant.
func (s *SettlementService) CreateWithStatus(ctx context.Context, p CreateSettlementParams, status models.SettlementStatus) (*models.Settlement, error) {
	if status != models.SettlementCompleted && status != models.SettlementCancelled {
		return nil, models.Errorf(models.KindInvalidStateTransition,
			"settlements may only be created directly as COMPLETED or CANCELLED, not %s", status)
	}
	slog.Warn("settlement created with explicit status",
		"group_id", p.GroupID, "actor_id", p.ActorID, "status", status)
	return s.create(ctx, p, status)
}

func (s *SettlementService) create(ctx context.Context, p CreateSettlementParams, status models.SettlementStatus) (*models.Settlement, error) {
	group, err := s.store.GetGroup(ctx, p.GroupID)
	if err != nil {
		return nil, err
	}
	for _, pid := range []string{p.FromParticipantID, p.ToParticipantID} {
		participant, err := s.store.GetParticipant(ctx, pid)
		if err != nil {
			return nil, err
		}
		if participant.GroupID != p.GroupID {
			return nil, models.Errorf(models.KindParticipantNotFound,
				"participant %s is not in group %s", pid, p.GroupID)
		}
	}
	if p.Amount.Sign() <= 0 {
		return nil, models.Errorf(models.KindInvalidStateTransition,
			"settlement amount must be positive, got %s", p.Amount)
	}

	currency := p.Currency
	if currency == "" {
		currency = group.Currency
	}
	now := s.now().Unix()

	settlement := &models.Settlement{
		GroupID:           p.GroupID,
		FromParticipantID: p.FromParticipantID,
		ToParticipantID:   p.ToParticipantID,
		Amount:            p.Amount,
		Currency:          currency,
		Status:            status,
		Note:              p.Note,
		CreatedAt:         now,
	}
	if status == models.SettlementCompleted {
		settlement.SettledAt = now
	}

	if err := s.store.CreateSettlement(ctx, settlement); err != nil {
		slog.Error("CreateSettlement failed", "group_id", p.GroupID, "error", err)
		return nil, err
	}

	s.events.Emit(ctx, models.Event{
		Type:       models.EventSettlementCreated,
		GroupID:    settlement.GroupID,
		SubjectID:  settlement.ID,
		ActorID:    p.ActorID,
		OccurredAt: now,
		Attrs:      map[string]string{"amount": settlement.Amount.String(), "status": string(status)},
	})
	return settlement, nil
}

// Confirm commits a participant to a suggested settlement: SUGGESTED ->
// PENDING, recording method and optional external reference.
func (s *SettlementService) Confirm(ctx context.Context, settlementID, actorID, method, externalRef string) (*models.Settlement, error) {
	return s.transition(ctx, settlementID, actorID, models.SettlementSuggested, models.SettlementPending,
		models.EventSettlementConfirmed, func(st *models.Settlement) {
			st.Method = method
			st.ExternalRef = externalRef
			st.ConfirmedAt = s.now().Unix()
		})
}

// Complete records external confirmation of payment: PENDING -> COMPLETED.
func (s *SettlementService) Complete(ctx context.Context, settlementID, actorID, externalRef string) (*models.Settlement, error) {
	return s.transition(ctx, settlementID, actorID, models.SettlementPending, models.SettlementCompleted,
		models.EventSettlementCompleted, func(st *models.Settlement) {
			if externalRef != "" {
				st.ExternalRef = externalRef
			}
			st.SettledAt = s.now().Unix()
		})
}

// Fail records rejection or terminal failure: PENDING -> FAILED.
func (s *SettlementService) Fail(ctx context.Context, settlementID, actorID string) (*models.Settlement, error) {
	return s.transition(ctx, settlementID, actorID, models.SettlementPending, models.SettlementFailed,
		models.EventSettlementFailed, nil)
}

// Cancel withdraws a committed settlement: PENDING -> CANCELLED.
func (s *SettlementService) Cancel(ctx context.Context, settlementID, actorID string) (*models.Settlement, error) {
	return s.transition(ctx, settlementID, actorID, models.SettlementPending, models.SettlementCancelled,
		models.EventSettlementCancelled, nil)
}

func (s *SettlementService) transition(ctx context.Context, settlementID, actorID string,
	from, to models.SettlementStatus, eventType models.EventType, apply func(*models.Settlement)) (*models.Settlement, error) {

	settlement, err := s.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, err
	}
	if settlement.Status != from {
		return nil, models.Errorf(models.KindInvalidStateTransition,
			"settlement %s is %s, cannot move to %s", settlementID, settlement.Status, to)
	}

	settlement.Status = to
	if apply != nil {
		apply(settlement)
	}

	// The store compare-and-swaps on the prior status, so a concurrent
	// transition cannot be overwritten.
	if err := s.store.UpdateSettlement(ctx, settlement, from); err != nil {
		return nil, err
	}

	s.events.Emit(ctx, models.Event{
		Type:       eventType,
		GroupID:    settlement.GroupID,
		SubjectID:  settlement.ID,
		ActorID:    actorID,
		OccurredAt: s.now().Unix(),
	})
	return settlement, nil
}

// Get retrieves a settlement by id.
func (s *SettlementService) Get(ctx context.Context, settlementID string) (*models.Settlement, error) {
	return s.store.GetSettlement(ctx, settlementID)
}

// List returns a group's settlements, newest first.
func (s *SettlementService) List(ctx context.Context, groupID string) ([]models.Settlement, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	return s.store.ListSettlementsByGroup(ctx, groupID)
}

// ExpireSettlements fails every settlement that has sat PENDING past the
// configured expiry, measured from confirmation rather than creation. Expiry
// is one-way and never reversed. Invoked by the scheduler; re-running is
// harmless.
func (s *SettlementService) ExpireSettlements(ctx context.Context) (int64, error) {
	cutoff := s.now().Add(-s.expiry).Unix()
	expired, err := s.store.ExpirePendingSettlements(ctx, cutoff)
	if err != nil {
		slog.Error("ExpireSettlements failed", "error", err)
		return 0, err
	}
	if expired > 0 {
		slog.Info("expired pending settlements", "count", expired)
	}
	return expired, nil
}
