// Package service orchestrates the ledger engine over storage and the
// external collaborators. Every operation takes the acting participant as an
// explicit argument; there is no ambient identity.
package service

import (
	"context"
	"log/slog"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

// Authorizer answers authorization questions. Deciding who may act is an
// external concern; the engine only consumes the answer.
type Authorizer interface {
	// IsGroupAdmin reports whether the participant is an admin of the group.
	IsGroupAdmin(ctx context.Context, groupID, participantID string) (bool, error)
}

// Approvals is the approval/request collaborator: it fans out per-member
// approval requests for a finalization and reports their responses.
type Approvals interface {
	CreatePending(ctx context.Context, finalizationID string, participantIDs []string) error
	Record(ctx context.Context, finalizationID, participantID string, status models.ResponseStatus) error
	ListResponses(ctx context.Context, finalizationID string) ([]models.MemberResponse, error)
}

// EventSink receives domain events. A collaborator turns them into
// notifications; the engine does not decide delivery.
type EventSink interface {
	Emit(ctx context.Context, event models.Event)
}

// RoleAuthorizer is the built-in Authorizer: it reads the participant's role
// from storage. Deployments with a separate identity system supply their own.
type RoleAuthorizer struct {
	Store storage.Store
}

func (a RoleAuthorizer) IsGroupAdmin(ctx context.Context, groupID, participantID string) (bool, error) {
	p, err := a.Store.GetParticipant(ctx, participantID)
	if err != nil {
		return false, err
	}
	return p.GroupID == groupID && p.Role == models.RoleAdmin, nil
}

// StoreApprovals is the built-in Approvals collaborator backed by the same
// store (member_responses table).
type StoreApprovals struct {
	Store storage.Store
}

func (a StoreApprovals) CreatePending(ctx context.Context, finalizationID string, participantIDs []string) error {
	return a.Store.CreatePendingResponses(ctx, finalizationID, participantIDs)
}

func (a StoreApprovals) Record(ctx context.Context, finalizationID, participantID string, status models.ResponseStatus) error {
	return a.Store.RecordResponse(ctx, finalizationID, participantID, status, nowUnix())
}

func (a StoreApprovals) ListResponses(ctx context.Context, finalizationID string) ([]models.MemberResponse, error) {
	return a.Store.ListResponses(ctx, finalizationID)
}

// LogSink is the default EventSink: it logs events at INFO. Real deployments
// replace it with a queue or notification fan-out.
type LogSink struct{}

func (LogSink) Emit(_ context.Context, event models.Event) {
	slog.Info("domain event",
		"type", event.Type,
		"group_id", event.GroupID,
		"subject_id", event.SubjectID,
		"actor_id", event.ActorID,
	)
}
