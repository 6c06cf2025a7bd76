package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/splitledger/splitledger/internal/models"
	"github.com/splitledger/splitledger/internal/service"
)

type shareRequest struct {
	ParticipantID string          `json:"participant_id"`
	Amount        decimal.Decimal `json:"amount,omitempty"`
	Percentage    decimal.Decimal `json:"percentage,omitempty"`
}

func toShareInputs(shares []shareRequest) []models.ShareInput {
	inputs := make([]models.ShareInput, len(shares))
	for i, sh := range shares {
		inputs[i] = models.ShareInput{ParticipantID: sh.ParticipantID, Amount: sh.Amount, Percentage: sh.Percentage}
	}
	return inputs
}

type createExpenseRequest struct {
	Title    string               `json:"title"`
	Amount   decimal.Decimal      `json:"amount"`
	Currency string               `json:"currency,omitempty"`
	PayerID  string               `json:"payer_id"`
	Strategy models.SplitStrategy `json:"strategy"`
	Shares   []shareRequest       `json:"shares"`
}

type splitResponse struct {
	ID            string             `json:"id"`
	ParticipantID string             `json:"participant_id"`
	Amount        decimal.Decimal    `json:"amount"`
	Percentage    decimal.Decimal    `json:"percentage"`
	IsPayer       bool               `json:"is_payer"`
	Status        models.SplitStatus `json:"status"`
}

type expenseResponse struct {
	ID        string               `json:"id"`
	GroupID   string               `json:"group_id"`
	Title     string               `json:"title"`
	Amount    decimal.Decimal      `json:"amount"`
	Currency  string               `json:"currency"`
	PayerID   string               `json:"payer_id"`
	Strategy  models.SplitStrategy `json:"strategy"`
	Splits    []splitResponse      `json:"splits"`
	CreatedAt int64                `json:"created_at"`
	Locked    bool                 `json:"locked"`
	LockedAt  int64                `json:"locked_at,omitempty"`
}

func toExpenseResponse(e *models.Expense) expenseResponse {
	resp := expenseResponse{
		ID:        e.ID,
		GroupID:   e.GroupID,
		Title:     e.Title,
		Amount:    e.Amount,
		Currency:  e.Currency,
		PayerID:   e.PayerID,
		Strategy:  e.Strategy,
		Splits:    make([]splitResponse, len(e.Splits)),
		CreatedAt: e.CreatedAt,
		Locked:    e.Locked,
		LockedAt:  e.LockedAt,
	}
	for i, sp := range e.Splits {
		resp.Splits[i] = splitResponse{
			ID:            sp.ID,
			ParticipantID: sp.ParticipantID,
			Amount:        sp.Amount,
			Percentage:    sp.Percentage,
			IsPayer:       sp.IsPayer,
			Status:        sp.Status,
		}
	}
	return resp
}

func (h *Handler) createExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if !decode(w, r, &req) {
		return
	}

	expense, err := h.expenses.CreateExpense(r.Context(), service.CreateExpenseParams{
		GroupID:  chi.URLParam(r, "groupID"),
		ActorID:  actor(r),
		Title:    req.Title,
		Amount:   req.Amount,
		Currency: req.Currency,
		PayerID:  req.PayerID,
		Strategy: req.Strategy,
		Shares:   toShareInputs(req.Shares),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toExpenseResponse(expense))
}

func (h *Handler) listExpenses(w http.ResponseWriter, r *http.Request) {
	expenses, err := h.expenses.ListExpenses(r.Context(), chi.URLParam(r, "groupID"))
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]expenseResponse, len(expenses))
	for i := range expenses {
		out[i] = toExpenseResponse(&expenses[i])
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getExpense(w http.ResponseWriter, r *http.Request) {
	expense, err := h.expenses.GetExpense(r.Context(), chi.URLParam(r, "expenseID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}

type recomputeSplitsRequest struct {
	Strategy models.SplitStrategy `json:"strategy"`
	Shares   []shareRequest       `json:"shares"`
}

func (h *Handler) recomputeSplits(w http.ResponseWriter, r *http.Request) {
	var req recomputeSplitsRequest
	if !decode(w, r, &req) {
		return
	}

	expense, err := h.expenses.RecomputeSplits(r.Context(), chi.URLParam(r, "expenseID"),
		actor(r), req.Strategy, toShareInputs(req.Shares))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toExpenseResponse(expense))
}
