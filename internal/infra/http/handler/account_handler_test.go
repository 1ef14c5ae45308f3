package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/testutil"
	"github.com/MinCore-Dev/mincore-ledger/internal/usecase"
)

func classifyTestErr(err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.NewError(domain.CodeConnectionLost, "store unreachable", err)
}

type memDirectory struct{ store *testutil.MemStore }

func (d memDirectory) EnsureAccount(ctx context.Context, id uuid.UUID) error {
	if _, err := d.store.GetByID(ctx, id); err == nil {
		return nil
	}
	d.store.Seed(id, 0)
	return nil
}

type apiFixture struct {
	store  *testutil.MemStore
	router chi.Router
}

func newAPIFixture() *apiFixture {
	store := testutil.NewMemStore()
	engine := usecase.NewEngine(store, store, testutil.IdemRepo{S: store}, classifyTestErr)

	accounts := NewAccountHandler(engine, memDirectory{store: store})
	transfers := NewTransferHandler(engine)

	r := chi.NewRouter()
	r.Post("/accounts", accounts.Create)
	r.Get("/accounts/{id}/balance", accounts.Balance)
	r.Post("/accounts/{id}/deposit", accounts.Deposit)
	r.Post("/accounts/{id}/withdraw", accounts.Withdraw)
	r.Post("/transfers", transfers.Create)

	return &apiFixture{store: store, router: r}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeJSON[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestAccountHandler_CreateAndBalance(t *testing.T) {
	f := newAPIFixture()

	rec := f.do(t, http.MethodPost, "/accounts", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[createAccountResponse](t, rec)
	require.NotEmpty(t, created.ID)

	rec = f.do(t, http.MethodGet, "/accounts/"+created.ID+"/balance", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	bal := decodeJSON[balanceResponse](t, rec)
	assert.Equal(t, created.ID, bal.ID)
	assert.Equal(t, int64(0), bal.Balance)
}

func TestAccountHandler_CreateWithExplicitID(t *testing.T) {
	f := newAPIFixture()
	id := uuid.NewString()

	rec := f.do(t, http.MethodPost, "/accounts", createAccountRequest{ID: id}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decodeJSON[createAccountResponse](t, rec)
	assert.Equal(t, id, created.ID)

	rec = f.do(t, http.MethodPost, "/accounts", createAccountRequest{ID: "not-a-uuid"}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAccountHandler_DepositWithdrawFlow(t *testing.T) {
	f := newAPIFixture()
	acct := uuid.New()
	f.store.Seed(acct, 0)

	rec := f.do(t, http.MethodPost, fmt.Sprintf("/accounts/%s/deposit", acct),
		amountRequest{Amount: 1000, Reason: "payroll"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dep := decodeJSON[mutationResponse](t, rec)
	assert.Equal(t, int64(1), dep.Seq)
	assert.Equal(t, int64(1000), dep.Balance)

	rec = f.do(t, http.MethodPost, fmt.Sprintf("/accounts/%s/withdraw", acct),
		amountRequest{Amount: 300, Reason: "rent"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	wit := decodeJSON[mutationResponse](t, rec)
	assert.Equal(t, int64(2), wit.Seq)
	assert.Equal(t, int64(700), wit.Balance)
}

func TestAccountHandler_IdempotencyKeyReplay(t *testing.T) {
	f := newAPIFixture()
	acct := uuid.New()
	f.store.Seed(acct, 0)

	headers := map[string]string{"Idempotency-Key": "k1"}
	body := amountRequest{Amount: 500, Reason: "bonus"}
	path := fmt.Sprintf("/accounts/%s/deposit", acct)

	rec := f.do(t, http.MethodPost, path, body, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decodeJSON[mutationResponse](t, rec)
	assert.False(t, first.Replayed)

	rec = f.do(t, http.MethodPost, path, body, headers)
	require.Equal(t, http.StatusOK, rec.Code)
	second := decodeJSON[mutationResponse](t, rec)
	assert.True(t, second.Replayed)
	assert.Equal(t, int64(500), f.store.BalanceOf(acct))

	// Same key, different amount.
	rec = f.do(t, http.MethodPost, path, amountRequest{Amount: 999, Reason: "bonus"}, headers)
	assert.Equal(t, http.StatusConflict, rec.Code)
	errBody := decodeJSON[errorResponse](t, rec)
	assert.Equal(t, string(domain.CodeIdempotencyMismatch), errBody.Code)
}

func TestAccountHandler_ErrorStatuses(t *testing.T) {
	f := newAPIFixture()
	acct := uuid.New()
	f.store.Seed(acct, 100)

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{
			name:   "insufficient funds",
			path:   fmt.Sprintf("/accounts/%s/withdraw", acct),
			body:   amountRequest{Amount: 500},
			status: http.StatusUnprocessableEntity,
			code:   string(domain.CodeInsufficientFunds),
		},
		{
			name:   "invalid amount",
			path:   fmt.Sprintf("/accounts/%s/deposit", acct),
			body:   amountRequest{Amount: -1},
			status: http.StatusBadRequest,
			code:   string(domain.CodeInvalidAmount),
		},
		{
			name:   "unknown account",
			path:   fmt.Sprintf("/accounts/%s/deposit", uuid.New()),
			body:   amountRequest{Amount: 100},
			status: http.StatusNotFound,
			code:   string(domain.CodeUnknownAccount),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, tt.path, tt.body, nil)
			require.Equal(t, tt.status, rec.Code)
			errBody := decodeJSON[errorResponse](t, rec)
			assert.Equal(t, tt.code, errBody.Code)
		})
	}
}

func TestAccountHandler_BadRequests(t *testing.T) {
	f := newAPIFixture()

	rec := f.do(t, http.MethodPost, "/accounts/not-a-uuid/deposit", amountRequest{Amount: 1}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/accounts/not-a-uuid/balance", nil, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, fmt.Sprintf("/accounts/%s/deposit", uuid.New()),
		bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	f.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestTransferHandler_Create(t *testing.T) {
	f := newAPIFixture()
	a, b := uuid.New(), uuid.New()
	f.store.Seed(a, 1000)
	f.store.Seed(b, 0)

	rec := f.do(t, http.MethodPost, "/transfers", createTransferRequest{
		FromAccountID: a.String(),
		ToAccountID:   b.String(),
		Amount:        400,
		Reason:        "split",
	}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decodeJSON[createTransferResponse](t, rec)
	assert.False(t, res.Replayed)
	assert.Equal(t, int64(1), res.FromSeq)
	assert.Equal(t, int64(1), res.ToSeq)
	assert.Equal(t, int64(600), f.store.BalanceOf(a))
	assert.Equal(t, int64(400), f.store.BalanceOf(b))
}

func TestTransferHandler_Validation(t *testing.T) {
	f := newAPIFixture()
	a := uuid.New()
	f.store.Seed(a, 100)

	rec := f.do(t, http.MethodPost, "/transfers", createTransferRequest{
		FromAccountID: "nope",
		ToAccountID:   a.String(),
		Amount:        10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/transfers", createTransferRequest{
		FromAccountID: a.String(),
		ToAccountID:   "nope",
		Amount:        10,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
