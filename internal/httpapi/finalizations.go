package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/splitledger/splitledger/internal/models"
)

type finalizationResponse struct {
	ID          string                    `json:"id"`
	GroupID     string                    `json:"group_id"`
	Status      models.FinalizationStatus `json:"status"`
	FinalizedAt int64                     `json:"finalized_at"`
	Deadline    int64                     `json:"deadline"`
	InitiatorID string                    `json:"initiator_id"`
	Reason      string                    `json:"reason,omitempty"`
	CreatedAt   int64                     `json:"created_at"`
	ResolvedAt  int64                     `json:"resolved_at,omitempty"`
}

func toFinalizationResponse(f *models.ExpenseFinalization) finalizationResponse {
	return finalizationResponse{
		ID:          f.ID,
		GroupID:     f.GroupID,
		Status:      f.Status,
		FinalizedAt: f.FinalizedAt,
		Deadline:    f.Deadline,
		InitiatorID: f.InitiatorID,
		Reason:      f.Reason,
		CreatedAt:   f.CreatedAt,
		ResolvedAt:  f.ResolvedAt,
	}
}

type initiateFinalizationRequest struct {
	Reason       string `json:"reason,omitempty"`
	DeadlineDays int    `json:"deadline_days,omitempty"`
}

func (h *Handler) initiateFinalization(w http.ResponseWriter, r *http.Request) {
	var req initiateFinalizationRequest
	if r.ContentLength > 0 && !decode(w, r, &req) {
		return
	}

	fin, err := h.finalizations.Initiate(r.Context(), chi.URLParam(r, "groupID"),
		actor(r), req.Reason, req.DeadlineDays)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFinalizationResponse(fin))
}

func (h *Handler) getFinalization(w http.ResponseWriter, r *http.Request) {
	fin, err := h.finalizations.Get(r.Context(), chi.URLParam(r, "finalizationID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFinalizationResponse(fin))
}

type memberResponseRequest struct {
	Accept bool `json:"accept"`
}

func (h *Handler) recordMemberResponse(w http.ResponseWriter, r *http.Request) {
	var req memberResponseRequest
	if !decode(w, r, &req) {
		return
	}

	finalizationID := chi.URLParam(r, "finalizationID")
	if err := h.finalizations.RecordMemberResponse(r.Context(), finalizationID, actor(r), req.Accept); err != nil {
		writeError(w, err)
		return
	}

	fin, err := h.finalizations.Get(r.Context(), finalizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFinalizationResponse(fin))
}

// processFinalization forces a re-evaluation of the finalization's responses.
// The quorum check runs on every recorded response already; this exists for
// operational recovery when an evaluation was interrupted.
func (h *Handler) processFinalization(w http.ResponseWriter, r *http.Request) {
	finalizationID := chi.URLParam(r, "finalizationID")
	if err := h.finalizations.CheckAndProcess(r.Context(), finalizationID); err != nil {
		writeError(w, err)
		return
	}

	fin, err := h.finalizations.Get(r.Context(), finalizationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFinalizationResponse(fin))
}
