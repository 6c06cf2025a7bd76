package service

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

// FinalizationService owns the workflow that locks a group's expense history:
// PENDING -> {APPROVED, REJECTED, EXPIRED -> APPROVED}.
type FinalizationService struct {
	store     storage.Store
	auth      Authorizer
	approvals Approvals
	events    EventSink

	// defaultDeadlineDays applies when the initiator does not override.
	defaultDeadlineDays int

	now func() time.Time
}

// NewFinalizationService creates a FinalizationService.
func NewFinalizationService(store storage.Store, auth Authorizer, approvals Approvals, events EventSink, defaultDeadlineDays int) *FinalizationService {
	return &FinalizationService{
		store:               store,
		auth:                auth,
		approvals:           approvals,
		events:              events,
		defaultDeadlineDays: defaultDeadlineDays,
		now:                 time.Now,
	}
}

// Initiate starts a finalization for a group. Only a group admin may
// initiate; a group can have at most one PENDING finalization at a time.
// The snapshot cutoff is fixed here: expenses created at or before it are
// the ones locked on approval. deadlineDays <= 0 selects the default.
//
// With no other bound members to ask, the finalization auto-approves
// immediately, running the same locking side effect as the quorum path.
func (s *FinalizationService) Initiate(ctx context.Context, groupID, initiatorID, reason string, deadlineDays int) (*models.ExpenseFinalization, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}

	isAdmin, err := s.auth.IsGroupAdmin(ctx, groupID, initiatorID)
	if err != nil {
		return nil, err
	}
	if !isAdmin {
		return nil, models.Errorf(models.KindUnauthorized,
			"participant %s is not an admin of group %s", initiatorID, groupID)
	}

	members, err := s.approvalTargets(ctx, groupID, initiatorID)
	if err != nil {
		return nil, err
	}

	if deadlineDays <= 0 {
		deadlineDays = s.defaultDeadlineDays
	}
	now := s.now()

	fin := &models.ExpenseFinalization{
		GroupID:     groupID,
		Status:      models.FinalizationPending,
		FinalizedAt: now.Unix(),
		Deadline:    now.Add(time.Duration(deadlineDays) * 24 * time.Hour).Unix(),
		InitiatorID: initiatorID,
		Reason:      reason,
		CreatedAt:   now.Unix(),
	}
	if err := s.store.CreateFinalization(ctx, fin); err != nil {
		return nil, err
	}

	// A pending finalization without its approval requests would be
	// approved by the next evaluation without anyone having been asked, and
	// would block re-initiation meanwhile. Unwind it if fan-out fails.
	if len(members) > 0 {
		if err := s.approvals.CreatePending(ctx, fin.ID, members); err != nil {
			if delErr := s.store.DeleteFinalization(ctx, fin.ID); delErr != nil {
				slog.Error("failed to unwind finalization after fan-out failure",
					"finalization_id", fin.ID, "error", delErr)
			}
			return nil, err
		}
	}

	s.events.Emit(ctx, models.Event{
		Type:       models.EventFinalizationInitiated,
		GroupID:    groupID,
		SubjectID:  fin.ID,
		ActorID:    initiatorID,
		OccurredAt: now.Unix(),
		Attrs:      map[string]string{"deadline": strconv.FormatInt(fin.Deadline, 10)},
	})

	if len(members) == 0 {
		// Solo admin group: nothing to wait for.
		slog.Info("finalization auto-approving, no members to ask",
			"finalization_id", fin.ID, "group_id", groupID)
		if err := s.approve(ctx, fin, initiatorID); err != nil {
			return nil, err
		}
		return s.store.GetFinalization(ctx, fin.ID)
	}

	slog.Info("finalization initiated",
		"finalization_id", fin.ID, "group_id", groupID, "approvals", len(members))
	return fin, nil
}

// approvalTargets returns the participants whose consent is required: every
// bound member except the initiator. Unbound slots cannot respond.
func (s *FinalizationService) approvalTargets(ctx context.Context, groupID, initiatorID string) ([]string, error) {
	participants, err := s.store.ListParticipants(ctx, groupID)
	if err != nil {
		return nil, err
	}
	var targets []string
	for _, p := range participants {
		if p.ID == initiatorID || !p.Bound() {
			continue
		}
		targets = append(targets, p.ID)
	}
	return targets, nil
}

// RecordMemberResponse stores one member's accept/decline and immediately
// re-evaluates the finalization. Responses to an already-resolved
// finalization are a no-op.
func (s *FinalizationService) RecordMemberResponse(ctx context.Context, finalizationID, participantID string, accept bool) error {
	fin, err := s.store.GetFinalization(ctx, finalizationID)
	if err != nil {
		return err
	}
	if fin.Status.Terminal() {
		return nil
	}

	status := models.ResponseDeclined
	if accept {
		status = models.ResponseAccepted
	}
	if err := s.approvals.Record(ctx, finalizationID, participantID, status); err != nil {
		return err
	}
	return s.CheckAndProcess(ctx, finalizationID)
}

// CheckAndProcess evaluates a finalization's responses: any decline rejects
// it; unanimous terminal responses with no decline approve it and lock the
// group's historical expenses. Concurrent evaluations are safe: the store's
// compare-and-swap lets exactly one trigger perform the transition, and a
// late evaluator treats the lost race as success.
func (s *FinalizationService) CheckAndProcess(ctx context.Context, finalizationID string) error {
	fin, err := s.store.GetFinalization(ctx, finalizationID)
	if err != nil {
		return err
	}
	if fin.Status.Terminal() {
		return nil
	}

	responses, err := s.approvals.ListResponses(ctx, finalizationID)
	if err != nil {
		return err
	}

	if len(responses) == 0 {
		// Zero responses is unanimity only when there was nobody to ask.
		// With bound members present, approving here would lock the group
		// without anyone having consented.
		members, err := s.approvalTargets(ctx, fin.GroupID, fin.InitiatorID)
		if err != nil {
			return err
		}
		if len(members) > 0 {
			slog.Warn("finalization has no approval requests on record, refusing to evaluate",
				"finalization_id", fin.ID, "group_id", fin.GroupID)
			return nil
		}
		return s.approve(ctx, fin, "")
	}

	declined := false
	allTerminal := true
	for _, r := range responses {
		if r.Status == models.ResponseDeclined {
			declined = true
		}
		if !r.Status.Terminal() {
			allTerminal = false
		}
	}

	switch {
	case declined:
		return s.reject(ctx, fin)
	case allTerminal:
		return s.approve(ctx, fin, "")
	default:
		return nil // still waiting on responses
	}
}

// ProcessExpiredFinalizations handles finalizations whose deadline has
// passed. A PENDING one with a recorded decline is rejected; otherwise
// silence counts as consent and it is marked EXPIRED then approved with the
// same locking side effect. The overdue query also returns rows already
// EXPIRED, so a sweep interrupted between the two steps finishes the
// approval on its next run.
func (s *FinalizationService) ProcessExpiredFinalizations(ctx context.Context) error {
	overdue, err := s.store.ListOverdueFinalizations(ctx, s.now().Unix())
	if err != nil {
		return err
	}

	for i := range overdue {
		fin := &overdue[i]

		if fin.Status == models.FinalizationPending {
			responses, err := s.approvals.ListResponses(ctx, fin.ID)
			if err != nil {
				slog.Error("expiry sweep: failed to list responses", "finalization_id", fin.ID, "error", err)
				continue
			}

			declined := false
			for _, r := range responses {
				if r.Status == models.ResponseDeclined {
					declined = true
					break
				}
			}
			if declined {
				if err := s.reject(ctx, fin); err != nil {
					slog.Error("expiry sweep: reject failed", "finalization_id", fin.ID, "error", err)
				}
				continue
			}

			if err := s.store.MarkFinalizationExpired(ctx, fin.ID, s.now().Unix()); err != nil {
				slog.Error("expiry sweep: mark expired failed", "finalization_id", fin.ID, "error", err)
				continue
			}
			s.events.Emit(ctx, models.Event{
				Type:       models.EventFinalizationExpired,
				GroupID:    fin.GroupID,
				SubjectID:  fin.ID,
				OccurredAt: s.now().Unix(),
			})
		}

		// EXPIRED always proceeds to APPROVED, whether it was marked just
		// now or by an earlier interrupted sweep.
		if err := s.approve(ctx, fin, ""); err != nil {
			slog.Error("expiry sweep: approve failed", "finalization_id", fin.ID, "error", err)
		}
	}
	return nil
}

// Get retrieves a finalization by id.
func (s *FinalizationService) Get(ctx context.Context, finalizationID string) (*models.ExpenseFinalization, error) {
	return s.store.GetFinalization(ctx, finalizationID)
}

// approve performs the irreversible side effect the workflow gates: the
// status transition and the expense locking happen in one store transaction.
func (s *FinalizationService) approve(ctx context.Context, fin *models.ExpenseFinalization, actorID string) error {
	locked, approved, err := s.store.ApproveFinalization(ctx, fin.ID, s.now().Unix())
	if err != nil {
		return err
	}
	if !approved {
		// A concurrent trigger got there first; nothing left to do.
		return nil
	}

	slog.Info("finalization approved",
		"finalization_id", fin.ID, "group_id", fin.GroupID, "expenses_locked", locked)
	s.events.Emit(ctx, models.Event{
		Type:       models.EventFinalizationApproved,
		GroupID:    fin.GroupID,
		SubjectID:  fin.ID,
		ActorID:    actorID,
		OccurredAt: s.now().Unix(),
		Attrs:      map[string]string{"expenses_locked": strconv.FormatInt(locked, 10)},
	})
	return nil
}

func (s *FinalizationService) reject(ctx context.Context, fin *models.ExpenseFinalization) error {
	rejected, err := s.store.RejectFinalization(ctx, fin.ID, s.now().Unix())
	if err != nil {
		return err
	}
	if !rejected {
		return nil
	}

	slog.Info("finalization rejected", "finalization_id", fin.ID, "group_id", fin.GroupID)
	s.events.Emit(ctx, models.Event{
		Type:       models.EventFinalizationRejected,
		GroupID:    fin.GroupID,
		SubjectID:  fin.ID,
		OccurredAt: s.now().Unix(),
	})
	return nil
}
