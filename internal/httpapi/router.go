// Package httpapi is the thin JSON request layer over the ledger services.
// It parses requests, passes the acting participant through explicitly and
// maps domain error kinds to status codes; all behavior lives in the
// services.
package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/splitledger/splitledger/internal/middleware"
	"github.com/splitledger/splitledger/internal/service"
)

// actorHeader carries the acting participant id, set by whatever
// authentication layer fronts this API.
const actorHeader = "X-Participant-ID"

// Handler bundles the ledger services behind HTTP routes.
type Handler struct {
	groups        *service.GroupService
	expenses      *service.ExpenseService
	settlements   *service.SettlementService
	finalizations *service.FinalizationService
}

// NewHandler creates the API handler.
func NewHandler(groups *service.GroupService, expenses *service.ExpenseService,
	settlements *service.SettlementService, finalizations *service.FinalizationService) *Handler {
	return &Handler{
		groups:        groups,
		expenses:      expenses,
		settlements:   settlements,
		finalizations: finalizations,
	}
}

// Router builds the chi router with logging, metrics and recovery.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Logging)
	r.Use(middleware.Metrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/groups", func(r chi.Router) {
			r.Post("/", h.createGroup)
			r.Get("/{groupID}", h.getGroup)
			r.Post("/{groupID}/participants", h.addParticipant)
			r.Get("/{groupID}/balances", h.getBalances)
			r.Get("/{groupID}/expenses", h.listExpenses)
			r.Post("/{groupID}/expenses", h.createExpense)
			r.Get("/{groupID}/settlements", h.listSettlements)
			r.Get("/{groupID}/settlements/suggested", h.suggestSettlements)
			r.Post("/{groupID}/settlements", h.createSettlement)
			r.Post("/{groupID}/finalizations", h.initiateFinalization)
		})

		r.Route("/expenses", func(r chi.Router) {
			r.Get("/{expenseID}", h.getExpense)
			r.Put("/{expenseID}/splits", h.recomputeSplits)
		})

		r.Route("/settlements", func(r chi.Router) {
			r.Get("/{settlementID}", h.getSettlement)
			r.Post("/{settlementID}/confirm", h.confirmSettlement)
			r.Post("/{settlementID}/complete", h.completeSettlement)
			r.Post("/{settlementID}/fail", h.failSettlement)
			r.Post("/{settlementID}/cancel", h.cancelSettlement)
		})

		r.Route("/finalizations", func(r chi.Router) {
			r.Get("/{finalizationID}", h.getFinalization)
			r.Post("/{finalizationID}/responses", h.recordMemberResponse)
			r.Post("/{finalizationID}/process", h.processFinalization)
		})
	})

	return r
}

func actor(r *http.Request) string {
	return r.Header.Get(actorHeader)
}
