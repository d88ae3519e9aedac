package idempotency

import (
	"context"
	"net/http"
	"time"

	"github.com/medflow/stockledger/pkg/actor"
	"github.com/medflow/stockledger/pkg/errors"
	"github.com/medflow/stockledger/pkg/httputil"
	"github.com/medflow/stockledger/pkg/logger"
)

// HeaderKey is the request header carrying the client's idempotency key.
const HeaderKey = "Idempotency-Key"

// Middleware rejects a repeated Idempotency-Key with 409 DUPLICATE_REQUEST
// while the first request with that key succeeded within ttl. Keys are
// scoped per actor and path. Requests without the header pass through.
func Middleware(store Store, ttl time.Duration, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientKey := r.Header.Get(HeaderKey)
			if clientKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			key := scopedKey(r, clientKey)
			claimed, err := store.Claim(r.Context(), key, ttl)
			if err != nil {
				// Without the store the request still runs; only deduplication is lost.
				log.Warn().Err(err).Str("path", r.URL.Path).Msg("idempotency store unavailable")
				next.ServeHTTP(w, r)
				return
			}
			if !claimed {
				httputil.Error(w, r, errors.DuplicateRequest(clientKey))
				return
			}

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			completed := false
			defer func() {
				// A panicking handler never succeeded, so its key is freed too.
				if !completed || rec.status >= http.StatusMultipleChoices {
					release(store, key, r, log)
				}
			}()

			next.ServeHTTP(rec, r)
			completed = true
		})
	}
}

// release frees key on a fresh context, since the request's may already be done.
func release(store Store, key string, r *http.Request, log *logger.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := store.Release(ctx, key); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to release idempotency key")
	}
}

func scopedKey(r *http.Request, clientKey string) string {
	return actor.IDFromContext(r.Context()) + ":" + r.Method + ":" + r.URL.Path + ":" + clientKey
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
