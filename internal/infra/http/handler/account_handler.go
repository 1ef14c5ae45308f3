package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
	"github.com/MinCore-Dev/mincore-ledger/internal/usecase"
)

// AccountHandler exposes account creation, balance reads and the
// single-account mutations.
type AccountHandler struct {
	engine    *usecase.Engine
	directory gateway.AccountDirectory
}

func NewAccountHandler(engine *usecase.Engine, directory gateway.AccountDirectory) *AccountHandler {
	return &AccountHandler{engine: engine, directory: directory}
}

type createAccountRequest struct {
	ID string `json:"id"` // optional, generated when absent
}

type createAccountResponse struct {
	ID string `json:"id"`
}

type amountRequest struct {
	Amount int64  `json:"amount"` // smallest currency unit
	Reason string `json:"reason"`
}

type mutationResponse struct {
	Replayed bool  `json:"replayed"`
	Seq      int64 `json:"seq,omitempty"`
	Balance  int64 `json:"balance,omitempty"`
}

type balanceResponse struct {
	ID      string `json:"id"`
	Balance int64  `json:"balance"`
}

// Create ensures a zero-balance row exists for the identity.
func (h *AccountHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err.Error() != "EOF" {
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid payload"})
		return
	}

	id := uuid.New()
	if req.ID != "" {
		parsed, err := uuid.Parse(req.ID)
		if err != nil {
			respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid account id"})
			return
		}
		id = parsed
	}

	if err := h.directory.EnsureAccount(r.Context(), id); err != nil {
		log.Error().Err(err).Msg("failed to ensure account")
		respondJSON(w, http.StatusInternalServerError, errorResponse{Code: string(domain.CodeConnectionLost), Message: "internal error"})
		return
	}
	respondJSON(w, http.StatusCreated, createAccountResponse{ID: id.String()})
}

// Deposit credits the account.
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, account uuid.UUID, req amountRequest, idemKey string) (*usecase.Result, error) {
		return h.engine.Deposit(ctx, account, req.Amount, req.Reason, idemKey)
	}, func(res *usecase.Result) mutationResponse {
		return mutationResponse{Replayed: res.Replayed, Seq: res.ToSeq, Balance: res.ToBalance}
	})
}

// Withdraw debits the account.
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(ctx context.Context, account uuid.UUID, req amountRequest, idemKey string) (*usecase.Result, error) {
		return h.engine.Withdraw(ctx, account, req.Amount, req.Reason, idemKey)
	}, func(res *usecase.Result) mutationResponse {
		return mutationResponse{Replayed: res.Replayed, Seq: res.FromSeq, Balance: res.FromBalance}
	})
}

// Balance reads the current balance. Reads are never gated by degraded mode.
func (h *AccountHandler) Balance(w http.ResponseWriter, r *http.Request) {
	account, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid account id"})
		return
	}

	balance, err := h.engine.GetBalance(r.Context(), account)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, balanceResponse{ID: account.String(), Balance: balance})
}

func (h *AccountHandler) mutate(
	w http.ResponseWriter,
	r *http.Request,
	call func(ctx context.Context, account uuid.UUID, req amountRequest, idemKey string) (*usecase.Result, error),
	shape func(res *usecase.Result) mutationResponse,
) {
	account, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid account id"})
		return
	}

	var req amountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid payload"})
		return
	}

	res, err := call(r.Context(), account, req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, shape(res))
}
