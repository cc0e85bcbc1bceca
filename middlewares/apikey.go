package middlewares

import (
	"crypto/subtle"
	"net/http"

	"github.com/LexiconIndonesia/crawler-admin-service/common/utils"
	"github.com/rs/zerolog/log"
)

// ApiKeyHeader carries the console API key.
const ApiKeyHeader = "X-API-KEY"

// ApiKey rejects requests without the configured key. An empty key disables
// the check.
func ApiKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if key == "" {
			log.Warn().Msg("BACKEND_API_KEY is empty, API key check disabled")
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(ApiKeyHeader)
			if got == "" {
				utils.WriteError(w, http.StatusUnauthorized, "missing API key")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				log.Warn().Str("remote", r.RemoteAddr).Msg("Invalid API key")
				utils.WriteError(w, http.StatusUnauthorized, "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
