package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
)

type contextKey string

const ClientKey contextKey = "client"

// APIKeyAuth validates API key from Authorization header. validKeys maps
// client name to key; an empty map disables auth.
func APIKeyAuth(validKeys map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(validKeys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isProbe(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				writeError(w, http.StatusUnauthorized, "missing Authorization header")
				return
			}

			// Support both "Bearer <key>" and "<key>" formats
			apiKey := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
			if apiKey == "" {
				writeError(w, http.StatusUnauthorized, "invalid Authorization header format")
				return
			}

			valid := false
			var client string
			for c, key := range validKeys {
				if subtle.ConstantTimeCompare([]byte(apiKey), []byte(key)) == 1 {
					valid = true
					client = c
					break
				}
			}
			if !valid {
				writeError(w, http.StatusUnauthorized, "invalid API key")
				return
			}

			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ClientKey, client)))
		})
	}
}

// KeysFromList names keys client-1, client-2, ... in list order
func KeysFromList(keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for i, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out["client-"+strconv.Itoa(i+1)] = k
		}
	}
	return out
}

// GetClientFromContext extracts the authenticated client name
func GetClientFromContext(ctx context.Context) string {
	if c, ok := ctx.Value(ClientKey).(string); ok {
		return c
	}
	return ""
}

// isProbe reports paths that bypass auth and rate limits
func isProbe(path string) bool {
	return path == "/health" || path == "/metrics"
}
