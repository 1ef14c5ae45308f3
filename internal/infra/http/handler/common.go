package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

// respondDomainError maps the semantic error vocabulary onto HTTP statuses.
// Unclassified errors never reach clients as raw text.
func respondDomainError(w http.ResponseWriter, err error) {
	var de *domain.Error
	if !errors.As(err, &de) {
		log.Error().Err(err).Msg("unclassified error reached the handler")
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Code:    string(domain.CodeConnectionLost),
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch de.Code {
	case domain.CodeInvalidAmount:
		status = http.StatusBadRequest
	case domain.CodeUnknownAccount:
		status = http.StatusNotFound
	case domain.CodeInsufficientFunds:
		status = http.StatusUnprocessableEntity
	case domain.CodeIdempotencyMismatch, domain.CodeDuplicateKey:
		status = http.StatusConflict
	case domain.CodeDegradedMode, domain.CodeConnectionLost,
		domain.CodeDeadlockRetryExhausted, domain.CodeMigrationLocked:
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, errorResponse{Code: string(de.Code), Message: de.Message})
}
