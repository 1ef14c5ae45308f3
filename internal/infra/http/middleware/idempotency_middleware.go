package middleware

import (
	"bytes"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MinCore-Dev/mincore-ledger/internal/gateway"
)

const cacheTTL = 24 * time.Hour

// responseRecorder captures what the handler writes so it can be cached.
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}

// Idempotency replays cached responses for repeated Idempotency-Key headers.
// Cache failures fail open: the engine's transactional dedup still prevents
// double application, the edge cache only saves the round-trip.
func Idempotency(cache gateway.ResponseCache) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()

			cached, err := cache.Get(ctx, key)
			if err != nil {
				log.Error().Err(err).Msg("idempotency cache lookup failed")
				next.ServeHTTP(w, r)
				return
			}

			if cached != nil {
				log.Info().Str("key", key).Msg("idempotency cache hit")
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("X-Idempotency-Hit", "true")
				w.WriteHeader(cached.StatusCode)
				if _, err := w.Write(cached.Body); err != nil {
					log.Error().Err(err).Msg("failed to write cached response")
				}
				return
			}

			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}

			next.ServeHTTP(recorder, r)

			// 5xx responses are not cached so the client can retry.
			if recorder.statusCode < 500 {
				err := cache.Save(ctx, key, gateway.CachedResponse{
					StatusCode: recorder.statusCode,
					Body:       recorder.body.Bytes(),
				}, cacheTTL)
				if err != nil {
					log.Error().Err(err).Msg("idempotency cache save failed")
				}
			}
		})
	}
}
