package api

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coss1333/Qr-market/internal/blob"
	"github.com/coss1333/Qr-market/internal/domain/model"
	"github.com/coss1333/Qr-market/internal/market"
	"github.com/coss1333/Qr-market/internal/reconcile"
	"github.com/coss1333/Qr-market/internal/store"
	"github.com/coss1333/Qr-market/internal/store/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const receiveAddr = "0x5aaeb6053f3e94c9b9a09f33669435e7ef1beaed"

type fakeChecker struct {
	result  *reconcile.RunResult
	err     error
	calls   int
	trigger reconcile.Trigger
}

func (f *fakeChecker) Tick(_ context.Context, trigger reconcile.Trigger) (*reconcile.RunResult, error) {
	f.calls++
	f.trigger = trigger
	return f.result, f.err
}

func (f *fakeChecker) LastResult() (*reconcile.RunResult, bool) {
	return f.result, f.result != nil
}

type testEnv struct {
	handler http.Handler
	lots    *memory.LotStore
	checks  *memory.CheckStore
	checker *fakeChecker
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	blobs, err := blob.NewFSStore(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		lots:    memory.NewLotStore(),
		checks:  memory.NewCheckStore(),
		checker: &fakeChecker{},
	}
	svc := market.NewService(env.lots, blobs, logger)
	env.handler = NewServer(svc, env.checker, logger, WithCheckHistory(env.checks)).Handler()
	return env
}

func (e *testEnv) do(t *testing.T, method, path, principal string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, r)
	if principal != "" {
		req.Header.Set(PrincipalHeader, principal)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) createLot(t *testing.T, seller string) lotResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/lots", seller, map[string]any{
		"title":           "Front row",
		"price":           "0.05",
		"currency":        "BNB",
		"receive_address": receiveAddr,
		"artifact_b64":    base64.StdEncoding.EncodeToString([]byte("ticket-bytes")),
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var lot lotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &lot))
	return lot
}

func TestCreateLot_Success(t *testing.T) {
	env := newTestEnv(t)

	lot := env.createLot(t, "alice")

	assert.NotEqual(t, uuid.Nil, lot.ID)
	assert.Equal(t, "BNB", lot.Currency)
	assert.Equal(t, model.CurrencyNativeBSC, lot.CurrencyKind)
	assert.Equal(t, "0.05", lot.Price.String())
	assert.Equal(t, "alice", lot.Seller)
	assert.Equal(t, model.LotStatusAvailable, lot.Status)
}

func TestCreateLot_RequiresPrincipal(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/lots", "", map[string]any{"title": "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateLot_RejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"unknown field", map[string]any{"title": "x", "colour": "red"}},
		{"bad base64", map[string]any{"title": "x", "price": "1", "currency": "BNB", "receive_address": receiveAddr, "artifact_b64": "%%%"}},
		{"zero price", map[string]any{"title": "x", "price": "0", "currency": "BNB", "receive_address": receiveAddr}},
		{"trc20 without contract", map[string]any{"title": "x", "price": "1", "currency": "TRC20", "receive_address": receiveAddr}},
		{"bad address", map[string]any{"title": "x", "price": "1", "currency": "BNB", "receive_address": "0x1234"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/v1/lots", "alice", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestListAndGetLot(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createLot(t, "alice")

	rec := env.do(t, http.MethodGet, "/api/v1/lots", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []lotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, lot.ID, list[0].ID)

	rec = env.do(t, http.MethodGet, "/api/v1/lots/"+lot.ID.String(), "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/lots/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/lots/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestReserve_ReturnsInstructionsThenConflicts(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createLot(t, "alice")
	path := "/api/v1/lots/" + lot.ID.String() + "/reserve"

	rec := env.do(t, http.MethodPost, path, "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var instr market.PaymentInstructions
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &instr))
	assert.Equal(t, lot.ID, instr.LotID)
	assert.Equal(t, "BNB", instr.Currency)
	assert.Equal(t, "0.05", instr.Price.String())
	assert.Equal(t, lot.ReceiveAddress, instr.PayTo)
	assert.Contains(t, instr.Note, "buy:"+lot.ID.String())

	rec = env.do(t, http.MethodPost, path, "carol", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestReserve_SellerForbidden(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createLot(t, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/lots/"+lot.ID.String()+"/reserve", "alice", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestWithdraw(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createLot(t, "alice")
	path := "/api/v1/lots/" + lot.ID.String()

	rec := env.do(t, http.MethodDelete, path, "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, path, "alice", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/lots", "", nil)
	var list []lotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestArtifact_OnlyAfterPayment(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createLot(t, "alice")
	path := "/api/v1/lots/" + lot.ID.String() + "/artifact"

	rec := env.do(t, http.MethodPost, "/api/v1/lots/"+lot.ID.String()+"/reserve", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, path, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	ok, err := env.lots.ConditionalUpdate(context.Background(), lot.ID, model.LotStatusAwaitingPayment, model.LotStatusPaid, store.LotUpdate{})
	require.NoError(t, err)
	require.True(t, ok)

	rec = env.do(t, http.MethodGet, path, "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp artifactResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	data, err := base64.StdEncoding.DecodeString(resp.B64)
	require.NoError(t, err)
	assert.Equal(t, []byte("ticket-bytes"), data)
	assert.Equal(t, blob.Handle([]byte("ticket-bytes")), resp.Handle)

	rec = env.do(t, http.MethodGet, path, "mallory", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLotChecks(t *testing.T) {
	env := newTestEnv(t)
	lot := env.createLot(t, "alice")
	runID := uuid.New()
	require.NoError(t, env.checks.SaveChecks(context.Background(), []store.CheckRecord{{
		RunID:     runID,
		Trigger:   string(reconcile.TriggerScheduled),
		LotID:     lot.ID,
		Currency:  model.CurrencyNativeBSC,
		Outcome:   reconcile.OutcomePaid,
		Reference: "0xabc",
		Applied:   true,
		CheckedAt: time.Now(),
	}}))

	rec := env.do(t, http.MethodGet, "/api/v1/lots/"+lot.ID.String()+"/checks", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp []checkRecordResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, runID, resp[0].RunID)
	assert.Equal(t, "0xabc", resp[0].Reference)

	rec = env.do(t, http.MethodGet, "/api/v1/lots/"+lot.ID.String()+"/checks?limit=500", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLotChecks_WithoutHistory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewServer(nil, &fakeChecker{}, logger).Handler()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/lots/"+uuid.NewString()+"/checks", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestCheckPayments(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/payments/last", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	env.checker.result = &reconcile.RunResult{RunID: uuid.New(), Trigger: reconcile.TriggerManual, Total: 2, Paid: 1, NotPaid: 1}
	rec = env.do(t, http.MethodPost, "/api/v1/payments/check", "ops", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, env.checker.calls)
	assert.Equal(t, reconcile.TriggerManual, env.checker.trigger)

	var got reconcile.RunResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Paid)

	rec = env.do(t, http.MethodGet, "/api/v1/payments/last", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckPayments_TickFailure(t *testing.T) {
	env := newTestEnv(t)
	env.checker.err = errors.New("list reserved lots: connection refused")

	rec := env.do(t, http.MethodPost, "/api/v1/payments/check", "ops", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection refused")
}
