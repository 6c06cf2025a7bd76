package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/splitledger/splitledger/internal/models"
)

type errorResponse struct {
	Error string           `json:"error"`
	Kind  models.ErrorKind `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// writeError maps domain error kinds to status codes. Locked and
// unauthorized must stay distinguishable from not-found so clients can render
// the right state.
func writeError(w http.ResponseWriter, err error) {
	kind := models.KindOf(err)
	status := http.StatusInternalServerError

	switch kind {
	case models.KindInvalidSplit, models.KindPayerNotInSplit:
		status = http.StatusUnprocessableEntity
	case models.KindExpenseLocked:
		status = http.StatusLocked
	case models.KindUnauthorized:
		status = http.StatusForbidden
	case models.KindGroupNotFound, models.KindParticipantNotFound, models.KindExpenseNotFound,
		models.KindFinalizationNotFound, models.KindSettlementNotFound:
		status = http.StatusNotFound
	case models.KindFinalizationAlreadyPending, models.KindInvalidStateTransition:
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		slog.Error("internal error", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error(), Kind: kind})
}

func decode(w http.ResponseWriter, r *http.Request, into any) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}
