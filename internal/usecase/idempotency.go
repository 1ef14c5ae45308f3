package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MinCore-Dev/mincore-ledger/internal/domain"
)

// resolveKey returns the caller-supplied idempotency key, or a generated
// one-shot key when none was given. A generated key still runs through the
// dedup machinery but can never be replayed by a future caller.
func resolveKey(key string) string {
	if key != "" {
		return key
	}
	return uuid.NewString()
}

// canonicalPayload encodes the semantic parameters of an operation as a
// deterministic string: scope|from|to|amount|normalized_reason. A missing
// participant serializes as the zero uuid; the reason is trimmed and
// case-folded so cosmetic differences do not break replay detection.
func canonicalPayload(kind domain.OpKind, from, to uuid.UUID, amount int64, reason string) string {
	return fmt.Sprintf("%s|%s|%s|%d|%s",
		kind, from, to, amount, strings.ToLower(strings.TrimSpace(reason)))
}

func hashKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func hashPayload(payload string) string {
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
