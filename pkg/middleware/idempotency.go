package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"time"

	"github.com/accueilpro/accueilpro/pkg/logger"
	"github.com/accueilpro/accueilpro/pkg/response"
)

type IdempotencyStore interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

const idempotencyTTL = 24 * time.Hour

// Idempotency replays the first successful response for a repeated
// Idempotency-Key on POST. Keys are scoped to the caller's user id.
func Idempotency(store IdempotencyStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if r.Method != http.MethodPost || key == "" {
				next.ServeHTTP(w, r)
				return
			}

			scope := ""
			if c := Claims(r); c != nil {
				scope = c.Subject
			}
			storeKey := fmt.Sprintf("idempotency:%x", sha256.Sum256([]byte(scope+"|"+r.URL.Path+"|"+key)))
			ctx := r.Context()

			fresh, err := store.SetNX(ctx, storeKey, "pending", idempotencyTTL)
			if err != nil {
				logger.WarnContext(ctx, "idempotency store unavailable", "error", err)
				next.ServeHTTP(w, r)
				return
			}
			if !fresh {
				var prev storedResponse
				if err := store.GetJSON(ctx, storeKey, &prev); err == nil && prev.Status != 0 {
					w.Header().Set("Content-Type", prev.ContentType)
					w.Header().Set("Idempotent-Replayed", "true")
					w.WriteHeader(prev.Status)
					_, _ = w.Write(prev.Body)
					return
				}
				response.Conflict(w, "a request with this Idempotency-Key is still in progress")
				return
			}

			rec := &responseRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.statusCode >= 200 && rec.statusCode < 300 {
				saved := storedResponse{
					Status:      rec.statusCode,
					ContentType: rec.Header().Get("Content-Type"),
					Body:        rec.body.Bytes(),
				}
				if err := store.SetJSON(ctx, storeKey, saved, idempotencyTTL); err != nil {
					logger.WarnContext(ctx, "failed to store idempotent response", "error", err)
				}
				return
			}
			// let the client retry after a failure
			_ = store.Delete(ctx, storeKey)
		})
	}
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(body []byte) (int, error) {
	r.body.Write(body)
	return r.ResponseWriter.Write(body)
}
