package handler

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/MinCore-Dev/mincore-ledger/internal/usecase"
)

// TransferHandler exposes transfers between two accounts.
type TransferHandler struct {
	engine *usecase.Engine
}

func NewTransferHandler(engine *usecase.Engine) *TransferHandler {
	return &TransferHandler{engine: engine}
}

type createTransferRequest struct {
	FromAccountID string `json:"from_account_id"`
	ToAccountID   string `json:"to_account_id"`
	Amount        int64  `json:"amount"` // smallest currency unit
	Reason        string `json:"reason"`
}

type createTransferResponse struct {
	Replayed bool  `json:"replayed"`
	FromSeq  int64 `json:"from_seq,omitempty"`
	ToSeq    int64 `json:"to_seq,omitempty"`
}

func (h *TransferHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid payload"})
		return
	}

	from, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid from_account_id"})
		return
	}
	to, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		respondJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid to_account_id"})
		return
	}

	res, err := h.engine.Transfer(r.Context(), from, to, req.Amount, req.Reason, r.Header.Get("Idempotency-Key"))
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, createTransferResponse{
		Replayed: res.Replayed,
		FromSeq:  res.FromSeq,
		ToSeq:    res.ToSeq,
	})
}
