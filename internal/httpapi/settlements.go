package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/service"
)

type settlementResponse struct {
	ID                string                  `json:"id"`
	GroupID           string                  `json:"group_id"`
	FromParticipantID string                  `json:"from_participant_id"`
	ToParticipantID   string                  `json:"to_participant_id"`
	Amount            decimal.Decimal         `json:"amount"`
	Currency          string                  `json:"currency"`
	Status            models.SettlementStatus `json:"status"`
	Method            string                  `json:"method,omitempty"`
	ExternalRef       string                  `json:"external_ref,omitempty"`
	Note              string                  `json:"note,omitempty"`
	CreatedAt         int64                   `json:"created_at"`
	ConfirmedAt       int64                   `json:"confirmed_at,omitempty"`
	SettledAt         int64                   `json:"settled_at,omitempty"`
}

func toSettlementResponse(s *models.Settlement) settlementResponse {
	return settlementResponse{
		ID:                s.ID,
		GroupID:           s.GroupID,
		FromParticipantID: s.FromParticipantID,
		ToParticipantID:   s.ToParticipantID,
		Amount:            s.Amount,
		Currency:          s.Currency,
		Status:            s.Status,
		Method:            s.Method,
		ExternalRef:       s.ExternalRef,
		Note:              s.Note,
		CreatedAt:         s.CreatedAt,
		ConfirmedAt:       s.ConfirmedAt,
		SettledAt:         s.SettledAt,
	}
}

func toSettlementResponses(settlements []models.Settlement) []settlementResponse {
	out := make([]settlementResponse, len(settlements))
	for i := range settlements {
		out[i] = toSettlementResponse(&settlements[i])
	}
	return out
}

func (h *Handler) listSettlements(w http.ResponseWriter, r *http.Request) {
	settlements, err := h.settlements.List(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponses(settlements))
}

func (h *Handler) suggestSettlements(w http.ResponseWriter, r *http.Request) {
	suggested, err := h.settlements.Suggest(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponses(suggested))
}

type createSettlementRequest struct {
	FromParticipantID string          `json:"from_participant_id"`
	ToParticipantID   string          `json:"to_participant_id"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency,omitempty"`
	Note              string          `json:"note,omitempty"`

	// Status, when set, records the settlement directly as COMPLETED or
	// CANCELLED instead of starting the normal lifecycle.
	Status models.SettlementStatus `json:"status,omitempty"`
}

func (h *Handler) createSettlement(w http.ResponseWriter, r *http.Request) {
	var req createSettlementRequest
	if !decode(w, r, &req) {
		return
	}

	params := service.CreateSettlementParams{
		GroupID:           chi.URLParam(r, "groupID"),
		ActorID:           actor(r),
		FromParticipantID: req.FromParticipantID,
		ToParticipantID:   req.ToParticipantID,
		Amount:            req.Amount,
		Currency:          req.Currency,
		Note:              req.Note,
	}

	var (
		settlement *models.Settlement
		err        error
	)
	if req.Status != "" {
		settlement, err = h.settlements.CreateWithStatus(r.Context(), params, req.Status)
	} else {
		settlement, err = h.settlements.Create(r.Context(), params)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSettlementResponse(settlement))
}

func (h *Handler) getSettlement(w http.ResponseWriter, r *http.Request) {
	settlement, err := h.settlements.Get(r.Context(), chi.URLParam(r, "settlementID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

type confirmSettlementRequest struct {
	Method      string `json:"method,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
}

func (h *Handler) confirmSettlement(w http.ResponseWriter, r *http.Request) {
	var req confirmSettlementRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	settlement, err := h.settlements.Confirm(r.Context(), chi.URLParam(r, "settlementID"),
		actor(r), req.Method, req.ExternalRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

type completeSettlementRequest struct {
	ExternalRef string `json:"external_ref,omitempty"`
}

func (h *Handler) completeSettlement(w http.ResponseWriter, r *http.Request) {
	var req completeSettlementRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	settlement, err := h.settlements.Complete(r.Context(), chi.URLParam(r, "settlementID"),
		actor(r), req.ExternalRef)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

func (h *Handler) failSettlement(w http.ResponseWriter, r *http.Request) {
	settlement, err := h.settlements.Fail(r.Context(), chi.URLParam(r, "settlementID"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}

func (h *Handler) cancelSettlement(w http.ResponseWriter, r *http.Request) {
	settlement, err := h.settlements.Cancel(r.Context(), chi.URLParam(r, "settlementID"), actor(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSettlementResponse(settlement))
}
