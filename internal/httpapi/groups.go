package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/service"
)

type participantRequest struct {
	Name   string      `json:"name"`
	UserID string      `json:"user_id,omitempty"`
	Role   models.Role `json:"role,omitempty"`
}

type createGroupRequest struct {
	Name         string               `json:"name"`
	Currency     string               `json:"currency"`
	Participants []participantRequest `json:"participants"`
}

type participantResponse struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	UserID string      `json:"user_id,omitempty"`
	Role   models.Role `json:"role"`
}

type groupResponse struct {
	ID           string                `json:"id"`
	Name         string                `json:"name"`
	Currency     string                `json:"currency"`
	CreatedAt    int64                 `json:"created_at"`
	Participants []participantResponse `json:"participants"`
}

func toGroupResponse(g *models.Group, participants []models.Participant) groupResponse {
	resp := groupResponse{
		ID:           g.ID,
		Name:         g.Name,
		Currency:     g.Currency,
		CreatedAt:    g.CreatedAt,
		Participants: make([]participantResponse, len(participants)),
	}
	for i, p := range participants {
		resp.Participants[i] = participantResponse{ID: p.ID, Name: p.Name, UserID: p.UserID, Role: p.Role}
	}
	return resp
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	var req createGroupRequest
	if !decode(w, r, &req) {
		return
	}

	inputs := make([]service.ParticipantInput, len(req.Participants))
	for i, p := range req.Participants {
		inputs[i] = service.ParticipantInput{Name: p.Name, UserID: p.UserID, Role: p.Role}
	}

	group, participants, err := h.groups.CreateGroup(r.Context(), req.Name, req.Currency, inputs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGroupResponse(group, participants))
}

func (h *Handler) getGroup(w http.ResponseWriter, r *http.Request) {
	group, participants, err := h.groups.GetGroup(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGroupResponse(group, participants))
}

func (h *Handler) addParticipant(w http.ResponseWriter, r *http.Request) {
	var req participantRequest
	if !decode(w, r, &req) {
		return
	}

	p, err := h.groups.AddParticipant(r.Context(), chi.URLParam(r, "groupID"),
		service.ParticipantInput{Name: req.Name, UserID: req.UserID, Role: req.Role})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, participantResponse{ID: p.ID, Name: p.Name, UserID: p.UserID, Role: p.Role})
}

type balancesResponse struct {
	GroupID  string                     `json:"group_id"`
	Balances map[string]decimal.Decimal `json:"balances"`
}

func (h *Handler) getBalances(w http.ResponseWriter, r *http.Request) {
	groupID := chi.URLParam(r, "groupID")
	balances, err := h.expenses.Balances(r.Context(), groupID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, balancesResponse{GroupID: groupID, Balances: balances})
}
