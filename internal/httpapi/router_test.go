package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/splitledger/splitledger/internal/service"
	"github.com/splitledger/splitledger/internal/storage/sqlite"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	events := service.LogSink{}
	handler := NewHandler(
		service.NewGroupService(store),
		service.NewExpenseService(store, events),
		service.NewSettlementService(store, events, time.Hour),
		service.NewFinalizationService(store,
			service.RoleAuthorizer{Store: store}, service.StoreApprovals{Store: store}, events, 7),
	)
	server := httptest.NewServer(handler.Router())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, actorID string, body any, into any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if actorID != "" {
		req.Header.Set(actorHeader, actorID)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	if into != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestExpenseFlowOverHTTP(t *testing.T) {
	server := newTestServer(t)

	var group groupResponse
	status := doJSON(t, http.MethodPost, server.URL+"/api/v1/groups", "", createGroupRequest{
		Name:     "Lisbon Trip",
		Currency: "EUR",
		Participants: []participantRequest{
			{Name: "Ana", UserID: "user-ana", Role: "ADMIN"},
			{Name: "Bruno", UserID: "user-bruno", Role: "MEMBER"},
			{Name: "Carla", UserID: "user-carla", Role: "MEMBER"},
		},
	}, &group)
	require.Equal(t, http.StatusCreated, status)
	require.Len(t, group.Participants, 3)

	ana := group.Participants[0]
	shares := make([]shareRequest, len(group.Participants))
	for i, p := range group.Participants {
		shares[i] = shareRequest{ParticipantID: p.ID}
	}

	var expense expenseResponse
	status = doJSON(t, http.MethodPost, server.URL+"/api/v1/groups/"+group.ID+"/expenses", ana.ID,
		map[string]any{
			"title": "dinner", "amount": "100.00", "payer_id": ana.ID,
			"strategy": "EQUAL", "shares": shares,
		}, &expense)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "100", expense.Amount.String())
	assert.Len(t, expense.Splits, 3)

	var balances balancesResponse
	status = doJSON(t, http.MethodGet, server.URL+"/api/v1/groups/"+group.ID+"/balances", "", nil, &balances)
	require.Equal(t, http.StatusOK, status)
	// Ana fronted 100.00 and owes her own 33.34 share.
	assert.Equal(t, "66.66", balances.Balances[ana.ID].StringFixed(2))

	var suggested []settlementResponse
	status = doJSON(t, http.MethodGet, server.URL+"/api/v1/groups/"+group.ID+"/settlements/suggested", "", nil, &suggested)
	require.Equal(t, http.StatusOK, status)
	require.Len(t, suggested, 2)
	for _, s := range suggested {
		assert.Equal(t, ana.ID, s.ToParticipantID)
	}
}

func TestErrorStatusMapping(t *testing.T) {
	server := newTestServer(t)

	var group groupResponse
	status := doJSON(t, http.MethodPost, server.URL+"/api/v1/groups", "", createGroupRequest{
		Name:     "Pair",
		Currency: "EUR",
		Participants: []participantRequest{
			{Name: "Ana", UserID: "user-ana", Role: "ADMIN"},
			{Name: "Bruno", UserID: "user-bruno", Role: "MEMBER"},
		},
	}, &group)
	require.Equal(t, http.StatusCreated, status)
	ana, bruno := group.Participants[0], group.Participants[1]

	// Unknown group id.
	status = doJSON(t, http.MethodGet, server.URL+"/api/v1/groups/nope", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, status)

	// AMOUNT shares that do not sum to the total.
	status = doJSON(t, http.MethodPost, server.URL+"/api/v1/groups/"+group.ID+"/expenses", ana.ID,
		map[string]any{
			"title": "bad", "amount": "100.00", "payer_id": ana.ID, "strategy": "AMOUNT",
			"shares": []map[string]any{
				{"participant_id": ana.ID, "amount": "10.00"},
				{"participant_id": bruno.ID, "amount": "10.00"},
			},
		}, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)

	// Non-admin initiating a finalization.
	status = doJSON(t, http.MethodPost, server.URL+"/api/v1/groups/"+group.ID+"/finalizations", bruno.ID,
		map[string]any{"reason": "nope"}, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Admin initiates, then a second attempt conflicts.
	status = doJSON(t, http.MethodPost, server.URL+"/api/v1/groups/"+group.ID+"/finalizations", ana.ID,
		map[string]any{"reason": "trip over"}, nil)
	require.Equal(t, http.StatusCreated, status)
	status = doJSON(t, http.MethodPost, server.URL+"/api/v1/groups/"+group.ID+"/finalizations", ana.ID,
		map[string]any{"reason": "again"}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestLockedExpenseReturns423(t *testing.T) {
	server := newTestServer(t)

	var group groupResponse
	status := doJSON(t, http.MethodPost, server.URL+"/api/v1/groups", "", createGroupRequest{
		Name:     "Solo",
		Currency: "EUR",
		Participants: []participantRequest{
			{Name: "Ana", UserID: "user-ana", Role: "ADMIN"},
		},
	}, &group)
	require.Equal(t, http.StatusCreated, status)
	ana := group.Participants[0]

	var expense expenseResponse
	status = doJSON(t, http.MethodPost, server.URL+"/api/v1/groups/"+group.ID+"/expenses", ana.ID,
		map[string]any{
			"title": "solo dinner", "amount": "40.00", "payer_id": ana.ID,
			"strategy": "EQUAL", "shares": []map[string]any{{"participant_id": ana.ID}},
		}, &expense)
	require.Equal(t, http.StatusCreated, status)

	// A solo-admin finalization approves immediately and locks history.
	var fin finalizationResponse
	status = doJSON(t, http.MethodPost, server.URL+"/api/v1/groups/"+group.ID+"/finalizations", ana.ID,
		map[string]any{"reason": "done"}, &fin)
	require.Equal(t, http.StatusCreated, status)
	assert.Equal(t, "APPROVED", string(fin.Status))

	status = doJSON(t, http.MethodPut, server.URL+"/api/v1/expenses/"+expense.ID+"/splits", ana.ID,
		map[string]any{"strategy": "EQUAL", "shares": []map[string]any{{"participant_id": ana.ID}}}, nil)
	assert.Equal(t, http.StatusLocked, status)
}
