package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"

	"github.com/sysinv/sysinv/pkg/types"
)

// APIKeyMiddleware returns middleware that enforces agent-key authentication
// on every request.
//
// Behaviour:
//   - If mode != "apikey" or keys is empty, all requests are allowed (pass-through).
//   - Otherwise the value of header must equal one of keys.
//   - A missing, empty, or incorrect key returns 401 with a JSON error body.
func APIKeyMiddleware(mode, header string, keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Non-apikey modes or unconfigured keys → allow everything.
		if mode != "apikey" || len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get(header)
			if got == "" {
				unauthorized(w, "missing agent key")
				return
			}
			if !accepted(got, keys) {
				unauthorized(w, "invalid agent key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accepted compares got against every key in constant time.
func accepted(got string, keys []string) bool {
	ok := 0
	for _, k := range keys {
		ok |= subtle.ConstantTimeCompare([]byte(got), []byte(k))
	}
	return ok == 1
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(types.ErrorResponse{Error: msg}) //nolint:errcheck
}
