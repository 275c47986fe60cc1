package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"finitefield.org/airtools-web/internal/httpx"
)

// requireBearer rejects requests whose Authorization header does not carry token.
func requireBearer(token string) func(http.Handler) http.Handler {
	expected := []byte(token)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := strings.TrimSpace(r.Header.Get("Authorization"))
			scheme, value, ok := strings.Cut(header, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || len(expected) == 0 ||
				subtle.ConstantTimeCompare([]byte(strings.TrimSpace(value)), expected) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="site-images"`)
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "admin token required", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
