package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/storage"
)

// GroupService owns group and participant management. Invitation and join
// flows live outside this engine; this is just the minimal slot bookkeeping
// balances are computed over.
type GroupService struct {
	store storage.Store
	now   func() time.Time
}

// NewGroupService creates a GroupService with the given storage backend.
func NewGroupService(store storage.Store) *GroupService {
	return &GroupService{store: store, now: time.Now}
}

// ParticipantInput describes one participant slot at group creation.
type ParticipantInput struct {
	Name   string
	UserID string // empty for unbound slots
	Role   models.Role
}

// CreateGroup creates a group with its initial participant slots.
func (s *GroupService) CreateGroup(ctx context.Context, name, currency string, participants []ParticipantInput) (*models.Group, []models.Participant, error) {
	group := &models.Group{Name: name, Currency: currency}
	if err := s.store.CreateGroup(ctx, group); err != nil {
		slog.Error("CreateGroup failed", "error", err)
		return nil, nil, err
	}

	created := make([]models.Participant, 0, len(participants))
	for _, in := range participants {
		p := models.Participant{
			GroupID: group.ID,
			Name:    in.Name,
			UserID:  in.UserID,
			Role:    in.Role,
		}
		if err := s.store.AddParticipant(ctx, &p); err != nil {
			slog.Error("AddParticipant failed", "group_id", group.ID, "error", err)
			return nil, nil, err
		}
		created = append(created, p)
	}

	slog.Info("group created", "group_id", group.ID, "participants", len(created))
	return group, created, nil
}

// GetGroup retrieves a group and its participants.
func (s *GroupService) GetGroup(ctx context.Context, groupID string) (*models.Group, []models.Participant, error) {
	group, err := s.store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	participants, err := s.store.ListParticipants(ctx, groupID)
	if err != nil {
		return nil, nil, err
	}
	return group, participants, nil
}

// AddParticipant adds a slot to an existing group.
func (s *GroupService) AddParticipant(ctx context.Context, groupID string, in ParticipantInput) (*models.Participant, error) {
	if _, err := s.store.GetGroup(ctx, groupID); err != nil {
		return nil, err
	}
	p := &models.Participant{
		GroupID: groupID,
		Name:    in.Name,
		UserID:  in.UserID,
		Role:    in.Role,
	}
	if err := s.store.AddParticipant(ctx, p); err != nil {
		slog.Error("AddParticipant failed", "group_id", groupID, "error", err)
		return nil, err
	}
	return p, nil
}
